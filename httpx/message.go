package httpx

import (
	"io"
	"strings"
)

// EventHooks lets a caller observe header-by-header and status-line
// parsing as it happens: the Go stand-in for the boost::signals2 signals
// (on_header_added, on_version, on_header_end) the original's message
// and response classes expose. Callbacks run synchronously, in
// registration order, on the goroutine the Connection reads the
// response on.
type EventHooks struct {
	OnHeaderAdded []func(key, value string)
	OnStatusCode  []func(code int)
	OnVersion     []func(proto string)
	OnHeaderEnd   []func()
}

func (h *EventHooks) fireHeaderAdded(key, value string) {
	for _, cb := range h.OnHeaderAdded {
		cb(key, value)
	}
}

func (h *EventHooks) fireStatusCode(code int) {
	for _, cb := range h.OnStatusCode {
		cb(code)
	}
}

func (h *EventHooks) fireVersion(proto string) {
	for _, cb := range h.OnVersion {
		cb(proto)
	}
}

func (h *EventHooks) fireHeaderEnd() {
	for _, cb := range h.OnHeaderEnd {
		cb()
	}
}

// message is the line-oriented HTTP/1.1 framing shared by Request and
// Response: a protocol version, an ordered header set, and a body whose
// framing (Content-Length, chunked, or close-delimited) is only known
// once the header block ends.
type message struct {
	Proto         string
	Header        Header
	Body          io.ReadCloser
	ContentLength int64 // -1 when unknown
}

// ContentType returns the Content-Type header with any ";param=..."
// suffix stripped, matching message::content_type in the original.
func (m *message) ContentType() string {
	ct := m.Header.Get("Content-Type")
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		return ct[:i]
	}
	return ct
}

// EachHeader calls fn once per header value, in Header's iteration order.
func (m *message) EachHeader(fn func(key, value string)) {
	m.Header.Each(fn)
}
