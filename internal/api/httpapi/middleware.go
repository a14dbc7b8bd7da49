package httpapi

import (
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const rateWindow = time.Minute

func (h *handler) metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		h.opts.Metrics.ObserveRequest("http", route, strconv.Itoa(status), time.Since(start))
	})
}

// rateLimitMiddleware считает запросы клиента в окне фиксированной минуты.
// Ошибка Redis не блокирует выдачу номеров (fail open).
func (h *handler) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		now := time.Now()
		key := fmt.Sprintf("rl:%s:%d", clientIP(r), now.Unix()/int64(rateWindow.Seconds()))

		ok, _, err := h.opts.RateLimiter.Allow(r.Context(), key, h.opts.RateLimitPerMinute, rateWindow)
		if err != nil {
			h.log.Warn("rate limiter unavailable, allowing request", "err", err)
			next.ServeHTTP(w, r)
			return
		}
		if !ok {
			retry := rateWindow - now.Sub(now.Truncate(rateWindow))
			w.Header().Set("Retry-After", strconv.Itoa(int(retry.Seconds())+1))
			writeJSON(w, http.StatusTooManyRequests, ErrorResponse{Error: "rate limit exceeded"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
