package dispatch

import (
	"net"
	"net/http"
)

// ClientIP identifies the caller of r for throttling. Proxy headers are
// honored only through chi's RealIP middleware, which rewrites RemoteAddr
// before this runs.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
