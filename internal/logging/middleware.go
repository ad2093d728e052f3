// ABOUTME: HTTP request logging middleware.
// ABOUTME: Captures method, path, status, duration and bodies; stores them and emits one log line per request.

package logging

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/2389/sitewalk/internal/auth"
	"github.com/2389/sitewalk/internal/store"
)

const maxBodySize = 10 * 1024 // 10KB limit for body capture

// RequestLogger persists request logs.
type RequestLogger interface {
	LogRequest(ctx context.Context, log *store.RequestLog) error
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
	written    bool
	body       *bytes.Buffer
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.written {
		rw.statusCode = code
		rw.written = true
		rw.ResponseWriter.WriteHeader(code)
	}
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.written {
		rw.statusCode = http.StatusOK
		rw.written = true
	}
	if rw.body.Len() < maxBodySize {
		toCopy := len(b)
		if rw.body.Len()+toCopy > maxBodySize {
			toCopy = maxBodySize - rw.body.Len()
		}
		rw.body.Write(b[:toCopy])
	}
	return rw.ResponseWriter.Write(b)
}

// Hijack implements http.Hijacker to support WebSocket upgrades
func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, http.ErrNotSupported
	}
	return h.Hijack()
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Middleware records every request except health checks and static assets.
// Binary responses (the schedule workbook) are not captured.
func Middleware(sink RequestLogger, logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/healthz" || strings.HasPrefix(r.URL.Path, "/static/") {
				next.ServeHTTP(w, r)
				return
			}

			var requestBody string
			if r.Body != nil {
				bodyBytes, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
				if err == nil {
					requestBody = string(bodyBytes)
					r.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))
				}
			}

			ctx, resolvedUser := auth.WithUserSlot(r.Context())
			r = r.WithContext(ctx)

			start := time.Now()
			wrapped := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
				body:           &bytes.Buffer{},
			}

			next.ServeHTTP(wrapped, r)

			duration := time.Since(start)
			userID := resolvedUser()

			ip := r.RemoteAddr
			if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
				ip = strings.TrimSpace(strings.Split(forwarded, ",")[0])
			}

			responseBody := wrapped.body.String()
			if ct := wrapped.Header().Get("Content-Type"); ct != "" && !isTextual(ct) {
				responseBody = ""
			}

			entry := &store.RequestLog{
				RequestID:    middleware.GetReqID(r.Context()),
				Area:         AreaFromPath(r.URL.Path),
				Method:       r.Method,
				Path:         r.URL.Path,
				StatusCode:   wrapped.statusCode,
				DurationMs:   int(duration.Milliseconds()),
				UserID:       userID,
				IPAddress:    ip,
				UserAgent:    r.Header.Get("User-Agent"),
				RequestBody:  requestBody,
				ResponseBody: responseBody,
			}
			if wrapped.statusCode >= 500 {
				entry.Error = http.StatusText(wrapped.statusCode)
			}

			event := logger.Info()
			if wrapped.statusCode >= 500 {
				event = logger.Error()
			} else if wrapped.statusCode >= 400 {
				event = logger.Warn()
			}
			event.Str("request_id", entry.RequestID).
				Str("area", entry.Area).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", wrapped.statusCode).
				Dur("duration", duration).
				Str("user", userID).
				Msg("request")

			if sink == nil {
				return
			}
			go func() {
				if err := sink.LogRequest(context.Background(), entry); err != nil {
					logger.Warn().Err(err).Msg("failed to store request log")
				}
			}()
		})
	}
}

func isTextual(contentType string) bool {
	return strings.HasPrefix(contentType, "text/") ||
		strings.HasPrefix(contentType, "application/json")
}
