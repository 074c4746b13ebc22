package proxy

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
)

// Content types understood by the inbound parser.
const (
	ContentTypeJSON      = "application/json"
	ContentTypeForm      = "application/x-www-form-urlencoded"
	ContentTypeMultipart = "multipart/form-data"
)

// DefaultMaxMemory is the in-memory part of multipart parsing; larger
// files spill to disk.
const DefaultMaxMemory = 32 << 20

// ErrBodyTooLarge is returned when the inbound body exceeds the limit.
var ErrBodyTooLarge = errors.New("request body too large")

// File is an uploaded file of a multipart request.
type File struct {
	Field  string
	Header *multipart.FileHeader
}

// OutboundRequest is the upstream-bound form of an inbound request.
type OutboundRequest struct {
	Method string
	// Path is appended to BaseURL.
	Path    string
	BaseURL string
	APIKey  string

	Params url.Values
	// JSON is non-nil iff the body is a JSON object.
	JSON map[string]any
	// Form holds urlencoded or multipart fields.
	Form  url.Values
	Files []File
	// Raw is the body of any other request, passed through as is.
	Raw []byte

	// ContentType is the inbound Content-Type, "" when absent.
	ContentType string
	RequestID   string

	form *multipart.Form
}

// Cleanup removes temporary files of a parsed multipart body.
func (o *OutboundRequest) Cleanup() error {
	if o == nil || o.form == nil {
		return nil
	}
	return o.form.RemoveAll()
}

// ParseInbound reads r into an OutboundRequest. JSON objects, urlencoded
// and multipart bodies are decoded; everything else, including invalid
// JSON, is kept raw. maxBody limits the body size; zero disables the limit.
// Callers must Cleanup the result once it has been forwarded.
func ParseInbound(r *http.Request, maxBody int64) (*OutboundRequest, error) {
	return parseInbound(r, maxBody, DefaultMaxMemory)
}

func parseInbound(r *http.Request, maxBody, maxMemory int64) (*OutboundRequest, error) {
	out := &OutboundRequest{
		Method:      r.Method,
		Path:        r.URL.Path,
		Params:      r.URL.Query(),
		ContentType: r.Header.Get("Content-Type"),
	}
	if r.Body == nil || r.Body == http.NoBody {
		return out, nil
	}

	body := &limitedBody{r: r.Body, remaining: maxBody, unlimited: maxBody <= 0}

	mediaType, params, _ := mime.ParseMediaType(out.ContentType)
	if mediaType == ContentTypeMultipart {
		if err := parseMultipart(out, body, params["boundary"], maxMemory); err != nil {
			if body.exceeded {
				return nil, ErrBodyTooLarge
			}
			return nil, err
		}
		return out, nil
	}

	raw, err := io.ReadAll(body)
	if err != nil {
		if body.exceeded {
			return nil, ErrBodyTooLarge
		}
		return nil, fmt.Errorf("read request body: %w", err)
	}

	switch {
	case isJSON(mediaType):
		if obj, ok := decodeObject(raw); ok {
			out.JSON = obj
			return out, nil
		}
	case mediaType == ContentTypeForm:
		form, err := url.ParseQuery(string(raw))
		if err == nil {
			out.Form = form
			return out, nil
		}
	}

	if len(raw) > 0 {
		out.Raw = raw
	}
	return out, nil
}

// decodeObject decodes a single JSON object. Numbers are kept as
// json.Number so they are re-encoded verbatim.
func decodeObject(raw []byte) (map[string]any, bool) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var obj map[string]any
	if err := dec.Decode(&obj); err != nil || obj == nil {
		return nil, false
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, false
	}
	return obj, true
}

// limitedBody fails with ErrBodyTooLarge once more than remaining bytes
// are read.
type limitedBody struct {
	r         io.Reader
	remaining int64
	unlimited bool
	exceeded  bool
}

func (b *limitedBody) Read(p []byte) (int, error) {
	if b.unlimited {
		return b.r.Read(p)
	}
	if b.exceeded {
		return 0, ErrBodyTooLarge
	}
	if int64(len(p)) > b.remaining+1 {
		p = p[:b.remaining+1]
	}
	n, err := b.r.Read(p)
	if int64(n) > b.remaining {
		b.exceeded = true
		return int(b.remaining), ErrBodyTooLarge
	}
	b.remaining -= int64(n)
	return n, err
}

func parseMultipart(out *OutboundRequest, body io.Reader, boundary string, maxMemory int64) error {
	if boundary == "" {
		return fmt.Errorf("parse multipart body: %w", http.ErrMissingBoundary)
	}
	form, err := multipart.NewReader(body, boundary).ReadForm(maxMemory)
	if err != nil {
		if errors.Is(err, multipart.ErrMessageTooLarge) {
			return ErrBodyTooLarge
		}
		return fmt.Errorf("parse multipart body: %w", err)
	}

	out.form = form
	out.Form = url.Values(form.Value)
	for field, headers := range form.File {
		for _, fh := range headers {
			out.Files = append(out.Files, File{Field: field, Header: fh})
		}
	}
	return nil
}

func isJSON(mediaType string) bool {
	return mediaType == ContentTypeJSON || strings.HasSuffix(mediaType, "+json")
}

// URL returns the upstream URL: BaseURL without trailing slash, Path and Params.
func (o *OutboundRequest) URL() (*url.URL, error) {
	u, err := url.Parse(strings.TrimRight(o.BaseURL, "/") + o.Path)
	if err != nil {
		return nil, err
	}
	if len(o.Params) > 0 {
		u.RawQuery = o.Params.Encode()
	}
	return u, nil
}

// body encodes the payload. The returned content type replaces the inbound
// one only when the encoding requires it, as with a new multipart boundary.
// A non-nil body must be closed if it is never sent.
func (o *OutboundRequest) body() (io.ReadCloser, string, error) {
	switch {
	case o.JSON != nil:
		b, err := json.Marshal(o.JSON)
		if err != nil {
			return nil, "", fmt.Errorf("encode json body: %w", err)
		}
		return io.NopCloser(bytes.NewReader(b)), o.ContentType, nil
	case len(o.Files) > 0 || isMultipart(o.ContentType):
		return o.multipartBody()
	case o.Form != nil:
		return io.NopCloser(strings.NewReader(o.Form.Encode())), o.ContentType, nil
	case o.Raw != nil:
		return io.NopCloser(bytes.NewReader(o.Raw)), o.ContentType, nil
	default:
		return nil, o.ContentType, nil
	}
}

// multipartBody streams the form and files through a pipe so uploads are
// not buffered twice. Closing the reader stops the writer goroutine.
func (o *OutboundRequest) multipartBody() (io.ReadCloser, string, error) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		pw.CloseWithError(o.writeMultipart(mw))
	}()

	return pr, mw.FormDataContentType(), nil
}

func (o *OutboundRequest) writeMultipart(mw *multipart.Writer) error {
	for field, values := range o.Form {
		for _, v := range values {
			if err := mw.WriteField(field, v); err != nil {
				return err
			}
		}
	}
	for _, f := range o.Files {
		if err := writeFilePart(mw, f); err != nil {
			return err
		}
	}
	return mw.Close()
}

func writeFilePart(mw *multipart.Writer, f File) error {
	src, err := f.Header.Open()
	if err != nil {
		return fmt.Errorf("open upload %q: %w", f.Header.Filename, err)
	}
	defer src.Close()

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition",
		fmt.Sprintf(`form-data; name=%q; filename=%q`, f.Field, f.Header.Filename))
	ct := f.Header.Header.Get("Content-Type")
	if ct == "" {
		ct = "application/octet-stream"
	}
	h.Set("Content-Type", ct)

	part, err := mw.CreatePart(h)
	if err != nil {
		return err
	}
	_, err = io.Copy(part, src)
	return err
}

func isMultipart(contentType string) bool {
	mediaType, _, _ := mime.ParseMediaType(contentType)
	return mediaType == ContentTypeMultipart
}
