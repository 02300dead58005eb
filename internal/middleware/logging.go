// internal/middleware/logging.go

package middleware

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// RequestIDHeader carries a per-request id from the client to the server logs.
const RequestIDHeader = "X-Request-ID"

// statusRecorder captures the status code written by the wrapped handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Hijack lets websocket upgrades pass through the logging middleware.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return hj.Hijack()
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// LogMiddleware is an HTTP middleware that logs incoming requests using Logrus.
// Logs the method, path, status, request id and duration of each request.
func LogMiddleware(logger *logrus.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			logger.WithFields(logrus.Fields{
				"method":     r.Method,
				"path":       r.URL.Path,
				"status":     rec.status,
				"request_id": r.Header.Get(RequestIDHeader),
				"duration":   time.Since(start),
				"remote":     r.RemoteAddr,
			}).Debug("HTTP Request")
		})
	}
}

// LogTransport is the client-side counterpart: an http.RoundTripper that stamps every
// outbound request with a request id and logs its outcome.
type LogTransport struct {
	Base   http.RoundTripper
	Logger *logrus.Logger
}

func (t *LogTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	if req.Header.Get(RequestIDHeader) == "" {
		req = req.Clone(req.Context())
		req.Header.Set(RequestIDHeader, uuid.NewString())
	}

	start := time.Now()
	resp, err := base.RoundTrip(req)
	fields := logrus.Fields{
		"method":     req.Method,
		"path":       req.URL.Path,
		"request_id": req.Header.Get(RequestIDHeader),
		"duration":   time.Since(start),
	}
	if err != nil {
		t.Logger.WithFields(fields).WithError(err).Warn("HTTP call failed")
		return nil, err
	}
	fields["status"] = resp.StatusCode
	t.Logger.WithFields(fields).Debug("HTTP call")
	return resp, nil
}

// LogWebSocketConnect logs a push channel connection for a match.
func LogWebSocketConnect(logger *logrus.Logger, remote string, matchID string) {
	logger.WithFields(logrus.Fields{
		"remote":   remote,
		"match_id": matchID,
	}).Info("WebSocket connected")
}

// LogWebSocketDisconnect logs the end of a push channel.
func LogWebSocketDisconnect(logger *logrus.Logger, remote string, matchID string, err error) {
	fields := logrus.Fields{
		"remote":   remote,
		"match_id": matchID,
	}
	if err != nil {
		fields["error"] = err
	}
	logger.WithFields(fields).Info("WebSocket disconnected")
}
