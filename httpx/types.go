package httpx

import (
	"net/textproto"
)

// headerField is one key/value pair in a Header, in the order it was
// added.
type headerField struct {
	key   string
	value string
}

// Header is an ordered header set: unlike net/http.Header's
// map[string][]string, insertion order is preserved across Add/Set, so
// a Request's wire bytes reproduce the order the caller built them in.
type Header struct {
	fields []headerField
}

func (h Header) Get(key string) string {
	k := textproto.CanonicalMIMEHeaderKey(key)
	for _, f := range h.fields {
		if f.key == k {
			return f.value
		}
	}
	return ""
}

// Values returns every value added under key, in insertion order.
func (h Header) Values(key string) []string {
	k := textproto.CanonicalMIMEHeaderKey(key)
	var out []string
	for _, f := range h.fields {
		if f.key == k {
			out = append(out, f.value)
		}
	}
	return out
}

// Set replaces all existing values for key with value, keeping the
// position of the first existing occurrence, or appending if key is
// not yet present.
func (h *Header) Set(key, value string) {
	k := textproto.CanonicalMIMEHeaderKey(key)
	replaced := false
	out := h.fields[:0]
	for _, f := range h.fields {
		if f.key != k {
			out = append(out, f)
			continue
		}
		if !replaced {
			out = append(out, headerField{key: k, value: value})
			replaced = true
		}
	}
	h.fields = out
	if !replaced {
		h.fields = append(h.fields, headerField{key: k, value: value})
	}
}

// Add appends a new value for key, preserving any existing values.
func (h *Header) Add(key, value string) {
	k := textproto.CanonicalMIMEHeaderKey(key)
	h.fields = append(h.fields, headerField{key: k, value: value})
}

// Del removes every value for key.
func (h *Header) Del(key string) {
	k := textproto.CanonicalMIMEHeaderKey(key)
	out := h.fields[:0]
	for _, f := range h.fields {
		if f.key != k {
			out = append(out, f)
		}
	}
	h.fields = out
}

// Each calls fn once per header value, in insertion order.
func (h Header) Each(fn func(key, value string)) {
	for _, f := range h.fields {
		fn(f.key, f.value)
	}
}
