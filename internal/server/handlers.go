package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/sozercan/siteinsight/apimodels"
	"github.com/sozercan/siteinsight/internal/core"
)

const maxBodyBytes = 1 << 20

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req apimodels.QueryRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request: %v", err))
		return
	}
	defer r.Body.Close()

	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "query must not be empty")
		return
	}

	s.logger.Debug("Received query request", map[string]interface{}{
		"query":       req.Query,
		"property_id": req.PropertyID,
	})

	resp := s.router.Route(r.Context(), core.Query{
		RawText:     req.Query,
		PropertyID:  strings.TrimSpace(req.PropertyID),
		Checks:      req.Checks,
		RequestedAt: time.Now(),
	})
	resp.Metadata.RequestID = middleware.GetReqID(r.Context())

	writeJSON(w, statusFor(resp), resp)
}

// statusFor maps a fused response to an HTTP status. Partial results are
// still a 200.
func statusFor(resp apimodels.FusedResponse) int {
	if resp.Status != apimodels.StatusError {
		return http.StatusOK
	}
	for _, e := range resp.Errors {
		if e.Kind != core.KindValidation {
			return http.StatusBadGateway
		}
	}
	if len(resp.Errors) == 0 {
		return http.StatusBadGateway
	}
	return http.StatusUnprocessableEntity
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
