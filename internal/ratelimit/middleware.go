package ratelimit

import (
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

const (
	HeaderLimit     = "X-RateLimit-Limit"
	HeaderRemaining = "X-RateLimit-Remaining"
	HeaderReset     = "X-RateLimit-Reset"
)

// DefaultMessage is the 429 error body.
const DefaultMessage = "Too many requests, please try again later."

// ClientKey identifies the caller. With trustProxy set it is the right-most
// X-Forwarded-For hop, the one appended by the fronting proxy; hops to its
// left are client supplied and ignored. Otherwise it is the remote host.
func ClientKey(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if hop := lastHop(r.Header.Values("X-Forwarded-For")); hop != "" {
			return hop
		}
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	if r.RemoteAddr != "" {
		return r.RemoteAddr
	}
	return "unknown"
}

func lastHop(values []string) string {
	for i := len(values) - 1; i >= 0; i-- {
		hops := strings.Split(values[i], ",")
		for j := len(hops) - 1; j >= 0; j-- {
			if hop := strings.TrimSpace(hops[j]); hop != "" {
				return hop
			}
		}
	}
	return ""
}

// Middleware guards next with l. Every response carries the quota headers;
// requests over the limit get 429 with a JSON error. trustProxy is passed
// to ClientKey.
func Middleware(l *Limiter, message string, trustProxy bool, log *zap.Logger) func(http.Handler) http.Handler {
	if message == "" {
		message = DefaultMessage
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := ClientKey(r, trustProxy)
			res := l.Check(key)

			h := w.Header()
			h.Set(HeaderLimit, strconv.Itoa(res.Limit))
			h.Set(HeaderRemaining, strconv.Itoa(res.Remaining))
			h.Set(HeaderReset, strconv.FormatInt(resetSeconds(res), 10))

			if !res.Allowed {
				log.Warn("rate limit exceeded",
					zap.String("limiter", l.Name()),
					zap.String("client", key),
					zap.String("path", r.URL.Path),
				)
				h.Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// resetSeconds is the window end in epoch seconds, rounded up.
func resetSeconds(res Result) int64 {
	ms := res.ResetAt.UnixMilli()
	return (ms + 999) / 1000
}
