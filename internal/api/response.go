package api

import (
	"encoding/json"
	"net/http"

	apperrors "pgt-ticketing/internal/common/errors"
)

type envelope struct {
	Success bool   `json:"success"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError renders err as {success:false, code, message} plus its
// metadata and extra. Details stay in the log.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error, extra map[string]interface{}) {
	std := apperrors.AsStandardError(err)
	status := std.HTTPStatus()

	body := map[string]interface{}{
		"success": false,
		"code":    string(std.Code),
		"message": std.Message,
	}
	for k, v := range std.Metadata {
		body[k] = v
	}
	for k, v := range extra {
		body[k] = v
	}

	fields := map[string]interface{}{
		"code":      string(std.Code),
		"status":    status,
		"path":      r.URL.Path,
		"requestId": requestID(r.Context()),
	}
	if std.Details != "" {
		fields["details"] = std.Details
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", fields)
	} else {
		s.logger.Debug("request rejected", fields)
	}

	writeJSON(w, status, body)
}
