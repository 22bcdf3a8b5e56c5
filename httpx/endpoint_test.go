package httpx

import (
	"net/url"
	"testing"
)

func TestEndpointFromURL_DefaultPorts(t *testing.T) {
	cases := []struct {
		raw      string
		wantPort uint16
		wantTLS  bool
	}{
		{"http://example.com/a", 80, false},
		{"https://example.com/a", 443, true},
		{"http://example.com:8080/a", 8080, false},
		{"amqp://broker.local/", 5672, false},
	}
	for _, c := range cases {
		u, err := url.Parse(c.raw)
		if err != nil {
			t.Fatalf("parse %q: %v", c.raw, err)
		}
		ep, err := EndpointFromURL(u)
		if err != nil {
			t.Fatalf("EndpointFromURL(%q): %v", c.raw, err)
		}
		if ep.Port != c.wantPort || ep.TLS != c.wantTLS {
			t.Fatalf("EndpointFromURL(%q) = %+v, want port %d tls %v", c.raw, ep, c.wantPort, c.wantTLS)
		}
	}
}

func TestEndpointFromURL_RejectsUnknownScheme(t *testing.T) {
	u, _ := url.Parse("ftp://example.com/a")
	_, err := EndpointFromURL(u)
	if err != ErrUnsupportedScheme {
		t.Fatalf("err = %v, want ErrUnsupportedScheme", err)
	}
}

func TestEndpointFromURL_RejectsMissingHost(t *testing.T) {
	u, _ := url.Parse("/relative/path")
	if _, err := EndpointFromURL(u); err == nil {
		t.Fatal("expected error for relative URL")
	}
}

func TestEndpoint_SameHostPortCollapses(t *testing.T) {
	a, _ := EndpointFromURL(mustParse(t, "http://example.com/a"))
	b, _ := EndpointFromURL(mustParse(t, "http://example.com/b"))
	if a != b {
		t.Fatalf("Endpoint for two paths on the same host:port should be equal, got %+v != %+v", a, b)
	}
}

func mustParse(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse %q: %v", raw, err)
	}
	return u
}
