package httpx

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
)

// Request represents an outbound HTTP/1.1 request.
type Request struct {
	message

	Method     string
	URL        *url.URL
	RequestURI string
	Host       string

	// GetBody, if non-nil, returns a new copy of Body. Nothing in this
	// package calls it: a retried attempt writes whatever Body its
	// request holds at that point.
	GetBody func() (io.ReadCloser, error)

	ctx context.Context

	RequestID     string
	CorrelationID string
	TraceID       string
	SpanID        string
	ParentSpanID  string
	TraceState    string
}

// FromURI builds a request targeting an absolute URI. It only parses
// the URL; the request's Endpoint is derived from it later, by
// Request.Endpoint, when the Client dispatches the request.
func FromURI(method, rawurl string) (*Request, error) {
	u, err := url.Parse(rawurl)
	if err != nil {
		return nil, fmt.Errorf("httpx: parse uri: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, ErrBadRequest
	}
	return &Request{
		message:   message{Proto: "HTTP/1.1", Header: Header{}, ContentLength: -1},
		Method:    strings.ToUpper(method),
		URL:       u,
		Host:      u.Host,
		RequestID: genID(),
	}, nil
}

// resolveTrace fills in TraceID/SpanID/ParentSpanID/CorrelationID from
// the request's context when the caller hasn't already set them
// explicitly, so a request issued under WithTrace/WithCorrelationID
// propagates that context onto the wire without every call site having
// to do it by hand.
func (r *Request) resolveTrace() {
	if r.CorrelationID == "" {
		if id, ok := CorrelationIDFrom(r.Context()); ok {
			r.CorrelationID = id
		}
	}
	if r.TraceID != "" {
		return
	}
	if tr, ok := TraceFrom(r.Context()); ok {
		r.TraceID = tr.TraceID
		r.ParentSpanID = tr.SpanID
		r.SpanID = genSpanID()
		return
	}
	r.TraceID = genTraceID()
	r.SpanID = genSpanID()
}

// Endpoint derives the Endpoint this request must be dispatched to.
func (r *Request) Endpoint() (Endpoint, error) {
	return EndpointFromURL(r.URL)
}

// RequestPath returns the request-target: path plus query, defaulting
// to "/" for an empty path, as the request line requires.
func (r *Request) RequestPath() string {
	if r.URL == nil {
		return "/"
	}
	p := r.URL.EscapedPath()
	if p == "" {
		p = "/"
	}
	if r.URL.RawQuery != "" {
		p += "?" + r.URL.RawQuery
	}
	return p
}

// Bytes serializes the request line and headers (not the body) to the
// wire format a Connection writes first. RequestID/CorrelationID/trace
// context are resolved and turned into their wire headers here, unless
// the caller already set those headers explicitly.
func (r *Request) Bytes() []byte {
	r.resolveTrace()

	var buf bytes.Buffer
	proto := r.Proto
	if proto == "" {
		proto = "HTTP/1.1"
	}
	fmt.Fprintf(&buf, "%s %s %s\r\n", r.Method, r.RequestPath(), proto)

	host := r.Host
	if host == "" && r.URL != nil {
		host = r.URL.Host
	}
	fmt.Fprintf(&buf, "Host: %s\r\n", host)

	wroteContentLength := false
	r.Header.Each(func(k, v string) {
		if strings.EqualFold(k, "Host") {
			return
		}
		if strings.EqualFold(k, "Content-Length") {
			wroteContentLength = true
		}
		fmt.Fprintf(&buf, "%s: %s\r\n", k, v)
	})
	if !wroteContentLength && r.ContentLength >= 0 {
		fmt.Fprintf(&buf, "Content-Length: %d\r\n", r.ContentLength)
	}
	if r.RequestID != "" && r.Header.Get("X-Request-ID") == "" {
		fmt.Fprintf(&buf, "X-Request-ID: %s\r\n", r.RequestID)
	}
	if r.CorrelationID != "" && r.Header.Get("X-Correlation-ID") == "" {
		fmt.Fprintf(&buf, "X-Correlation-ID: %s\r\n", r.CorrelationID)
	}
	if r.TraceID != "" && r.SpanID != "" && r.Header.Get("Traceparent") == "" {
		fmt.Fprintf(&buf, "Traceparent: %s\r\n", formatTraceparent(r.TraceID, r.SpanID, "01"))
	}
	if r.TraceState != "" && r.Header.Get("Tracestate") == "" {
		fmt.Fprintf(&buf, "Tracestate: %s\r\n", r.TraceState)
	}
	buf.WriteString("\r\n")
	return buf.Bytes()
}

// Context returns the request's context, defaulting to Background.
func (r *Request) Context() context.Context {
	if r == nil || r.ctx == nil {
		return context.Background()
	}
	return r.ctx
}

// WithContext returns a shallow copy of r with its context changed to ctx.
func WithContext(r *Request, ctx context.Context) *Request {
	if r == nil {
		return nil
	}
	r2 := *r
	r2.ctx = ctx
	return &r2
}
