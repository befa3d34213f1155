package api

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"
)

// authenticate accepts either "Authorization: Bearer <key>" or an
// X-API-Key header. Disabled auth passes everything through.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.auth.Enabled {
			next.ServeHTTP(w, r)
			return
		}

		key := r.Header.Get("X-API-Key")
		if key == "" {
			if header := r.Header.Get("Authorization"); strings.HasPrefix(header, "Bearer ") {
				key = strings.TrimPrefix(header, "Bearer ")
			}
		}
		if _, ok := s.apiKey[key]; !ok || key == "" {
			writeErrorMessage(w, http.StatusUnauthorized, "missing or invalid API key")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// rateLimit applies a per-client token bucket keyed by remote IP.
func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.clientLimiter(r).Allow() {
			writeErrorMessage(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) clientLimiter(r *http.Request) *rate.Limiter {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}

	s.limiterMu.Lock()
	defer s.limiterMu.Unlock()
	limiter, ok := s.limiters[host]
	if !ok {
		limiter = rate.NewLimiter(rate.Limit(s.cfg.RateLimit.RPS), s.cfg.RateLimit.Burst)
		s.limiters[host] = limiter
	}
	return limiter
}

// recordRequest feeds the request duration histogram, labeled by the
// chi route pattern so ids do not explode cardinality.
func (s *Server) recordRequest(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.metrics == nil {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = "unmatched"
		}
		s.metrics.RecordHTTPRequest(r.Method, route,
			strconv.Itoa(ww.Status()), time.Since(start))
	})
}
