package httpadapter

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

const requestIDHeader = "X-Request-Id"

type requestIDContextKey struct{}

func requestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	requestID, _ := ctx.Value(requestIDContextKey{}).(string)
	return requestID
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := strings.TrimSpace(r.Header.Get(requestIDHeader))
		if requestID == "" {
			requestID = uuid.NewString()
		}

		ctx := context.WithValue(r.Context(), requestIDContextKey{}, requestID)
		r = r.WithContext(ctx)
		w.Header().Set(requestIDHeader, requestID)

		next.ServeHTTP(w, r)
	})
}

func accessLogMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		next.ServeHTTP(recorder, r)

		remoteAddr := r.RemoteAddr
		if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
			remoteAddr = host
		}

		logAttrs := []any{
			"request_id", requestIDFromContext(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"status", recorder.statusCode,
			"duration_ms", float64(time.Since(start).Microseconds()) / 1000.0,
			"bytes", recorder.bytesWritten,
			"remote_addr", remoteAddr,
			"user_agent", r.UserAgent(),
		}

		switch {
		case recorder.statusCode >= 500:
			slog.Error("http_request", logAttrs...)
		case recorder.statusCode >= 400:
			slog.Warn("http_request", logAttrs...)
		default:
			slog.Info("http_request", logAttrs...)
		}
	})
}

// rateLimitMiddleware applies one token bucket to the whole API.
func rateLimitMiddleware(next http.Handler, rps float64, burst int) http.Handler {
	if rps <= 0 {
		return next
	}
	if burst <= 0 {
		burst = 1
	}
	limiter := rate.NewLimiter(rate.Limit(rps), burst)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reservation := limiter.Reserve()
		if !reservation.OK() {
			writeTooManyRequests(w, time.Second)
			return
		}
		if delay := reservation.Delay(); delay > 0 {
			reservation.Cancel()
			writeTooManyRequests(w, delay)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeTooManyRequests(w http.ResponseWriter, delay time.Duration) {
	seconds := int(delay / time.Second)
	if delay%time.Second != 0 {
		seconds++
	}
	if seconds < 1 {
		seconds = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(seconds))
	writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "rate limit exceeded"})
}

// backpressureMiddleware admits at most maxInFlight concurrent requests. A request that
// cannot get a slot within wait is rejected with 503.
func backpressureMiddleware(next http.Handler, maxInFlight int, wait time.Duration) http.Handler {
	if maxInFlight <= 0 {
		return next
	}
	slots := make(chan struct{}, maxInFlight)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		timer := time.NewTimer(wait)
		defer timer.Stop()

		select {
		case slots <- struct{}{}:
		case <-timer.C:
			slog.Warn("http_backpressure_reject",
				"request_id", requestIDFromContext(r.Context()),
				"path", r.URL.Path,
				"max_in_flight", maxInFlight,
			)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "server is overloaded, retry later"})
			return
		case <-r.Context().Done():
			return
		}
		defer func() { <-slots }()

		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Write(b []byte) (int, error) {
	n, err := w.ResponseWriter.Write(b)
	w.bytesWritten += n
	return n, err
}

func (w *statusRecorder) Flush() {
	flusher, ok := w.ResponseWriter.(http.Flusher)
	if ok {
		flusher.Flush()
	}
}

func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not implement http.Hijacker")
	}
	return hijacker.Hijack()
}

func (w *statusRecorder) Push(target string, opts *http.PushOptions) error {
	pusher, ok := w.ResponseWriter.(http.Pusher)
	if !ok {
		return http.ErrNotSupported
	}
	return pusher.Push(target, opts)
}
