package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"image-pipeline/pkg/errdefs"
	"image-pipeline/pkg/pipeline"
)

const requestIDHeader = "X-Request-Id"

// withRequestID assigns every request an id, honoring one supplied by the
// caller, and echoes it on the response.
func (s *Server) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r)
	})
}

// statusRecorder captures the status code written by the handler chain.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) withAccessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		begin := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(recorder, r)

		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", recorder.status,
			"durationMs", time.Since(begin).Milliseconds(),
			"requestId", w.Header().Get(requestIDHeader))
	})
}

// withRecovery turns a panicking handler into an INTERNAL_ERROR envelope.
// Even a bug in the handler chain must not break the 200-only contract.
func (s *Server) withRecovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if recovered := recover(); recovered != nil {
				s.logger.Error("handler panic",
					"path", r.URL.Path,
					"panic", recovered)

				result := pipeline.Failure(errdefs.New(errdefs.Internal, "internal error"))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusOK)
				_ = json.NewEncoder(w).Encode(result)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
