package middleware

import (
	"encoding/json"
	"net/http"
	"time"

	logpkg "github.com/benvon/schedule-builder/internal/logger"
	"go.uber.org/zap"
)

const (
	// DefaultMaxRequestSize bounds request bodies; a full schedule bundle is well under it
	DefaultMaxRequestSize int64 = 1 << 20
	// DefaultRequestTimeout bounds a whole request, including the database round trips of a save
	DefaultRequestTimeout = 30 * time.Second
)

// ErrorResponse is the envelope middleware writes when it rejects a request.
// It matches the handlers' error envelope plus the request path.
type ErrorResponse struct {
	Success   bool   `json:"success"`
	Error     string `json:"error"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
	Path      string `json:"path"`
}

func writeError(w http.ResponseWriter, r *http.Request, status int, errorType, message string, logger *zap.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	err := json.NewEncoder(w).Encode(ErrorResponse{
		Error:     errorType,
		Message:   message,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Path:      r.URL.Path,
	})
	if err != nil {
		logger.Error("failed_to_encode_error_response",
			zap.Error(err),
			zap.Int("status_code", status),
			logpkg.Path(r.URL.Path),
		)
	}
}

// Recover turns a handler panic into a 500 envelope. If the handler already
// started its response the connection is left as is.
func Recover(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := newStatusRecorder(w)
			defer func() {
				err := recover()
				if err == nil {
					return
				}
				if err == http.ErrAbortHandler {
					panic(err)
				}
				logger.Error("panic_recovered",
					zap.Any("error", err),
					zap.String("method", r.Method),
					logpkg.Path(r.URL.Path),
					zap.Bool("response_started", rec.wroteHeader),
					zap.Stack("stack"),
				)
				if !rec.wroteHeader {
					writeError(rec, r, http.StatusInternalServerError, "Internal Server Error", "An unexpected error occurred", logger)
				}
			}()

			next.ServeHTTP(rec, r)
		})
	}
}

// MaxRequestSize rejects bodies larger than maxBytes
func MaxRequestSize(maxBytes int64, logger *zap.Logger) func(http.Handler) http.Handler {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxRequestSize
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > maxBytes {
				writeError(w, r, http.StatusRequestEntityTooLarge, "Request Entity Too Large", "Request body is too large", logger)
				return
			}
			// Handlers see *http.MaxBytesError when a chunked body runs over
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}

// Timeout cancels the request context after timeout and answers 503
func Timeout(timeout time.Duration) func(http.Handler) http.Handler {
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	body, _ := json.Marshal(ErrorResponse{Error: "Service Unavailable", Message: "Request timed out"})
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, timeout, string(body))
	}
}
