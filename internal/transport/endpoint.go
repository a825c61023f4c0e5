package transport

import (
	"net/url"
	"strings"
)

// Origin is the scheme/host pair endpoints are built from.
type Origin struct {
	Host   string // host[:port]
	Secure bool   // served over TLS, use wss
}

// Scheme returns "wss" for secure origins and "ws" otherwise.
func (o Origin) Scheme() string {
	if o.Secure {
		return "wss"
	}
	return "ws"
}

// Endpoint renders {scheme}://{host}/ws/{path}/{id}/. The id segment is
// omitted when empty and is path-escaped otherwise.
func Endpoint(o Origin, path, id string) string {
	var b strings.Builder
	b.WriteString(o.Scheme())
	b.WriteString("://")
	b.WriteString(o.Host)
	b.WriteString("/ws/")
	b.WriteString(strings.Trim(path, "/"))
	b.WriteString("/")
	if id != "" {
		b.WriteString(url.PathEscape(id))
		b.WriteString("/")
	}
	return b.String()
}
