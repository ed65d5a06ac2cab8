package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/kitbuilder587/abn-search/internal/domain"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError отдает конверт {error, message, statusCode}. Причина 5xx наружу не уходит.
func writeError(w http.ResponseWriter, err error) *domain.APIError {
	apiErr := domain.AsAPIError(err)
	status := apiErr.StatusCode
	if status == 0 {
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, domain.NewAPIError(apiErr.Code, apiErr.Message, status))
	return apiErr
}
