package ratelimit

import (
	"net"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	pkgerrors "github.com/narulaskaran/social-graph/pkg/errors"
)

// ClientIP returns the remote address without its port. Run chi's RealIP
// middleware first when the API sits behind a proxy.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Middleware rejects requests over the limit with a 429 rendered by the error
// handler. rps is reported in the error message and Retry-After header.
func Middleware(limiter RateLimiter, rps float64, errHandler *pkgerrors.ErrorHandler, logger *zap.Logger) func(http.Handler) http.Handler {
	retryAfter := "1"
	if rps > 0 && rps < 1 {
		retryAfter = strconv.Itoa(int(1/rps + 0.5))
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := "ip:" + ClientIP(r)
			allowed, err := limiter.Allow(r.Context(), key)
			if err != nil {
				logger.Warn("Rate limiter error", zap.String("key", key), zap.Error(err))
			}
			if !allowed {
				w.Header().Set("Retry-After", retryAfter)
				errHandler.Handle(w, r, pkgerrors.NewRateLimitError(rps))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
