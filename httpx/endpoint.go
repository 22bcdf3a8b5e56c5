package httpx

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
)

// Endpoint identifies the remote peer a Connection or Pool talks to:
// scheme, host, port, and whether the transport must be TLS. It is
// comparable, so it keys the Client's pool map directly the way
// details::connection_details keys connection_pool's map in the
// original via its hash/equal functors.
type Endpoint struct {
	Scheme string
	Host   string
	Port   uint16
	TLS    bool
}

// schemeDefaultPort mirrors uri::port_for_scheme in the original. Only
// the schemes this client actually speaks are listed; the original also
// carries imap/pop3/smtp defaults, which belong to sibling protocols
// outside this client's scope.
var schemeDefaultPort = map[string]uint16{
	"http":  80,
	"https": 443,
	"amqp":  5672,
	"amqps": 5671,
}

// EndpointFromURL derives an Endpoint from a parsed absolute request URL.
func EndpointFromURL(u *url.URL) (Endpoint, error) {
	if u == nil || u.Host == "" {
		return Endpoint{}, ErrBadRequest
	}
	scheme := strings.ToLower(u.Scheme)
	host := u.Hostname()
	if host == "" {
		return Endpoint{}, ErrBadRequest
	}
	port, ok := schemeDefaultPort[scheme]
	if !ok {
		return Endpoint{}, ErrUnsupportedScheme
	}
	if p := u.Port(); p != "" {
		v, err := strconv.Atoi(p)
		if err != nil || v <= 0 || v > 65535 {
			return Endpoint{}, ErrBadRequest
		}
		port = uint16(v)
	}
	return Endpoint{
		Scheme: scheme,
		Host:   host,
		Port:   port,
		TLS:    scheme == "https" || scheme == "amqps",
	}, nil
}

func (e Endpoint) String() string {
	return fmt.Sprintf("%s://%s:%d", e.Scheme, e.Host, e.Port)
}

// Addr returns the host:port pair suitable for net.Dial.
func (e Endpoint) Addr() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(int(e.Port)))
}
