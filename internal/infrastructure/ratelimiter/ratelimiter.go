package ratelimiter

import (
	"net"
	"net/http"
	"strings"
	"time"
)

const sourceHeaderKey = "X-RateLimit-Key"

type Limiter interface {
	Allow(sourceKey string) (bool, time.Duration)
	Remaining(sourceKey string) int
	Limit() int
}

// SourceKey identifies the caller of r: the X-RateLimit-Key header when
// present, otherwise the remote host.
func SourceKey(r *http.Request) string {
	if key := strings.TrimSpace(r.Header.Get(sourceHeaderKey)); key != "" {
		return key
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
