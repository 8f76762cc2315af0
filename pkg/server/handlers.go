package server

import (
	"encoding/json"
	"net/http"
	"time"

	"image-pipeline/pkg/errdefs"
	"image-pipeline/pkg/pipeline"
)

// maxRequestBytes bounds the process request body. The body holds a small
// JSON document; anything larger is not a legitimate request.
const maxRequestBytes = 1 << 20

// handleProcess runs one pipeline job. The response is always HTTP 200
// with a JobResult envelope; the ok field carries the outcome.
func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	var req pipeline.Request

	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	if err := decoder.Decode(&req); err != nil {
		result := pipeline.Failure(
			errdefs.Wrap(errdefs.Internal, err, "request body is not valid JSON"))
		s.writeResult(w, result)
		return
	}

	s.writeResult(w, s.pipeline.Process(r.Context(), req))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, map[string]any{
		"ok":   true,
		"time": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) writeResult(w http.ResponseWriter, result *pipeline.Result) {
	s.writeJSON(w, result)
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("cannot write response", "error", err)
	}
}
