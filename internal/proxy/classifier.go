package proxy

import (
	"strings"
	"time"
)

// Mode is the forwarding mode of an upstream call.
type Mode int

const (
	// ModeBlocking buffers the whole upstream response.
	ModeBlocking Mode = iota
	// ModeStreaming relays the upstream response chunk by chunk.
	ModeStreaming
)

// String returns the metric label of the mode.
func (m Mode) String() string {
	if m == ModeStreaming {
		return "streaming"
	}
	return "blocking"
}

// Timeouts are per socket operation deadlines.
type Timeouts struct {
	Read  time.Duration
	Write time.Duration
}

// Default timeout policies.
var (
	UpstreamCallTimeouts = Timeouts{Read: 300 * time.Second, Write: 10 * time.Second}
	DefaultTimeouts      = Timeouts{Read: 10 * time.Second, Write: 10 * time.Second}
)

// DefaultStreamingPaths are the endpoints that may answer with a stream.
var DefaultStreamingPaths = []string{
	"/chat-messages",
	"/completion-messages",
	"/workflows/run",
}

const (
	responseModeField = "response_mode"
	responseStreaming = "streaming"
)

// Classification is the outcome of classifying a request.
type Classification struct {
	Mode         Mode
	Timeouts     Timeouts
	UpstreamCall bool
}

// Classifier decides the forwarding mode and timeouts of requests.
type Classifier struct {
	paths            [][]string
	upstreamTimeouts Timeouts
	defaultTimeouts  Timeouts
}

// NewClassifier creates a Classifier. Empty paths select
// DefaultStreamingPaths; zero timeouts select the defaults.
func NewClassifier(paths []string, upstream, other Timeouts) *Classifier {
	if len(paths) == 0 {
		paths = DefaultStreamingPaths
	}
	c := &Classifier{
		upstreamTimeouts: withDefaults(upstream, UpstreamCallTimeouts),
		defaultTimeouts:  withDefaults(other, DefaultTimeouts),
	}
	for _, p := range paths {
		if segs := segments(p); len(segs) > 0 {
			c.paths = append(c.paths, segs)
		}
	}
	return c
}

var defaultClassifier = NewClassifier(nil, UpstreamCallTimeouts, DefaultTimeouts)

// Classify classifies a request with the default allow-list and timeouts.
func Classify(method, path string, body map[string]any) Classification {
	return defaultClassifier.Classify(method, path, body)
}

// Classify returns the classification of a request. Only POST requests to
// an allow-listed path are upstream calls; they stream iff the JSON body's
// response_mode is "streaming", compared case-insensitively.
func (c *Classifier) Classify(method, path string, body map[string]any) Classification {
	if !strings.EqualFold(method, "POST") || !c.allowed(path) {
		return Classification{Mode: ModeBlocking, Timeouts: c.defaultTimeouts}
	}

	mode := ModeBlocking
	if rm, ok := body[responseModeField].(string); ok && strings.EqualFold(rm, responseStreaming) {
		mode = ModeStreaming
	}
	return Classification{Mode: mode, Timeouts: c.upstreamTimeouts, UpstreamCall: true}
}

// allowed matches the trailing path segments against the allow-list, so
// "/v1/chat-messages" matches "/chat-messages".
func (c *Classifier) allowed(path string) bool {
	segs := segments(path)
	for _, want := range c.paths {
		if len(want) > len(segs) {
			continue
		}
		tail := segs[len(segs)-len(want):]
		match := true
		for i := range want {
			if tail[i] != want[i] {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

func segments(path string) []string {
	var out []string
	for _, s := range strings.Split(path, "/") {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

func withDefaults(t, def Timeouts) Timeouts {
	if t.Read <= 0 {
		t.Read = def.Read
	}
	if t.Write <= 0 {
		t.Write = def.Write
	}
	return t
}
