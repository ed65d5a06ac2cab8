package httpapi

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/kitbuilder587/abn-search/internal/domain"
)

func (h *Handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	resp, err := h.search.Search(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		apiErr := writeError(w, err)
		if apiErr.IsServerError() {
			h.logger.Error("search failed",
				zap.String("request_id", chimw.GetReqID(r.Context())),
				zap.Error(err),
			)
		}
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleLookup(w http.ResponseWriter, r *http.Request) {
	entity, err := h.search.Lookup(r.Context(), chi.URLParam(r, "abn"))
	if err != nil {
		if !errors.Is(err, domain.ErrABNNotFound) && !errors.Is(err, domain.ErrInvalidABN) {
			h.logger.Error("lookup failed",
				zap.String("request_id", chimw.GetReqID(r.Context())),
				zap.Error(err),
			)
		}
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, entity)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if h.db != nil {
		if err := h.db.Ping(r.Context()); err != nil {
			h.logger.Warn("health check failed", zap.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, domain.NewAPIError(
				domain.CodeUnavailable, "Database is unavailable.", http.StatusServiceUnavailable,
			))
			return
		}
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}
