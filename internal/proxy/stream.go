package proxy

import (
	"errors"
	"io"
	"sync"
	"sync/atomic"
)

// DefaultChunkSize is the read buffer of a Stream.
const DefaultChunkSize = 32 << 10

// Stream is an open upstream response body consumed chunk by chunk. It is
// forward-only and Next must not be called concurrently; Close may be
// called from any goroutine. The body is released exactly once: on EOF,
// on a read error or on the first Close, whichever comes first.
type Stream struct {
	body    io.ReadCloser
	buf     []byte
	target  string
	onClose func()

	// deferred is a read error held back behind the data it came with.
	// Only Next touches it.
	deferred error

	once     sync.Once
	closeErr error
	closed   atomic.Bool
}

func newStream(body io.ReadCloser, target string, onClose func()) *Stream {
	return &Stream{
		body:    body,
		buf:     make([]byte, DefaultChunkSize),
		target:  target,
		onClose: onClose,
	}
}

// Next returns the next chunk, or io.EOF once the body is exhausted. The
// chunk is only valid until the following call. A read failure closes the
// stream and is returned as a *ProxyError.
func (s *Stream) Next() ([]byte, error) {
	if s.closed.Load() {
		return nil, io.EOF
	}

	if err := s.deferred; err != nil {
		s.deferred = nil
		return nil, s.finish(err)
	}

	for {
		n, err := s.body.Read(s.buf)
		if n > 0 {
			// Deliver the data now, report err on the next call.
			s.deferred = err
			return s.buf[:n], nil
		}
		if err == nil {
			continue
		}
		return nil, s.finish(err)
	}
}

func (s *Stream) finish(err error) error {
	_ = s.Close()
	if errors.Is(err, io.EOF) {
		return io.EOF
	}
	return NewProxyError("stream", s.target, "upstream stream failed", err)
}

// Close releases the upstream body. It is safe to call more than once and
// from any exit path.
func (s *Stream) Close() error {
	s.once.Do(func() {
		s.closed.Store(true)
		s.closeErr = s.body.Close()
		if s.onClose != nil {
			s.onClose()
		}
	})
	return s.closeErr
}
