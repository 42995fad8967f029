package httphandler

import (
	"log/slog"
	"net/http"
	"time"
)

// responseRecorder remembers the status and body size written through it.
type responseRecorder struct {
	http.ResponseWriter
	status  int
	written int
}

func (rr *responseRecorder) WriteHeader(status int) {
	if rr.status == 0 {
		rr.status = status
	}
	rr.ResponseWriter.WriteHeader(status)
}

func (rr *responseRecorder) Write(b []byte) (int, error) {
	if rr.status == 0 {
		rr.status = http.StatusOK
	}
	n, err := rr.ResponseWriter.Write(b)
	rr.written += n
	return n, err
}

// committed reports whether the status line has gone out.
func (rr *responseRecorder) committed() bool { return rr.status != 0 }

func record(w http.ResponseWriter) *responseRecorder {
	if rr, ok := w.(*responseRecorder); ok {
		return rr
	}
	return &responseRecorder{ResponseWriter: w}
}

// loggingMiddleware logs one line per request. Server errors log at WARN.
// The credential itself is never logged, only whether the cookie was sent.
func loggingMiddleware(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rr := record(w)

		next.ServeHTTP(rr, r)

		status := rr.status
		if status == 0 {
			status = http.StatusOK
		}
		level := slog.LevelInfo
		if status >= http.StatusInternalServerError {
			level = slog.LevelWarn
		}

		_, cookieErr := r.Cookie(credentialCookie)
		logger.Log(r.Context(), level, "http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"bytes", rr.written,
			"has_credential", cookieErr == nil,
			"duration", time.Since(start).Round(time.Microsecond),
		)
	})
}

// recoveryMiddleware turns a handler panic into a JSON 500. When the handler
// already committed a response, the panic is only logged.
func recoveryMiddleware(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rr := record(w)
		defer func() {
			v := recover()
			if v == nil {
				return
			}
			logger.Error("panic recovered", "panic", v, "path", r.URL.Path, "committed", rr.committed())
			if !rr.committed() {
				writeStatus(rr, http.StatusInternalServerError)
			}
		}()

		next.ServeHTTP(rr, r)
	})
}

// allowMethod rejects requests whose method differs from method with a JSON
// 405 body. ServeMux method patterns answer with a plain-text body instead.
func allowMethod(method string, next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != method {
			w.Header().Set("Allow", method)
			writeStatus(w, http.StatusMethodNotAllowed)
			return
		}
		next(w, r)
	})
}
