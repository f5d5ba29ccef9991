package api

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// bytesPerToken sizes the charge for one upload: each started 8 MiB of body
// costs one token.
const bytesPerToken = 8 << 20

func (s *Server) withRateLimit(next http.Handler) http.Handler {
	if s.rateLimiter == nil {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !shouldRateLimit(r) {
			next.ServeHTTP(w, r)
			return
		}

		subject := s.rateLimitSubject(r) + ":" + routeLabel(r.URL.Path)
		decision, err := s.rateLimiter.Allow(r.Context(), subject, requestCost(r))
		if err != nil {
			s.logger.Printf("rate limiter check failed for subject=%s err=%v", subject, err)
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(decision.Remaining, 10))
		if decision.Allowed {
			next.ServeHTTP(w, r)
			return
		}

		retryAfter := max(int(decision.RetryAfter.Round(time.Second).Seconds()), 1)
		w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
		s.metrics.rateLimitRejected.WithLabelValues(routeLabel(r.URL.Path)).Inc()
		writeJSON(w, http.StatusTooManyRequests, map[string]string{
			"error": "rate limit exceeded",
		})
	})
}

func (s *Server) rateLimitSubject(r *http.Request) string {
	if subject := strings.TrimSpace(r.Header.Get(s.userIDHeader)); subject != "" {
		return "user:" + subject
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil || host == "" {
		return "anonymous"
	}
	return "ip:" + host
}

func requestCost(r *http.Request) int64 {
	if r.ContentLength <= 0 {
		return 1
	}
	return (r.ContentLength + bytesPerToken - 1) / bytesPerToken
}

func shouldRateLimit(r *http.Request) bool {
	return r.Method == http.MethodPost && r.URL.Path == "/convert"
}
