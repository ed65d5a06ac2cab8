package httpapi

import (
	"bytes"
	"net/http"

	"go.uber.org/zap"

	"github.com/kitbuilder587/abn-search/internal/domain"
	"github.com/kitbuilder587/abn-search/internal/query"
	"github.com/kitbuilder587/abn-search/internal/view"
)

func (h *Handler) handleIndex(w http.ResponseWriter, r *http.Request) {
	h.renderPage(w, query.Snapshot{})
}

func (h *Handler) handleSearchPage(w http.ResponseWriter, r *http.Request) {
	q := domain.Key(r.URL.Query().Get("q"))
	if q == "" {
		h.renderPage(w, query.Snapshot{})
		return
	}

	res := h.web.Fetch(r.Context(), q)
	h.renderPage(w, query.Snapshot{Query: q, Result: res})
}

// handleRetry - кнопка "Try Again": тот же запрос мимо кеша.
func (h *Handler) handleRetry(w http.ResponseWriter, r *http.Request) {
	q := domain.Key(r.URL.Query().Get("q"))
	if q == "" {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	res := h.web.Refetch(r.Context(), q)
	h.renderPage(w, query.Snapshot{Query: q, Result: res})
}

func (h *Handler) renderPage(w http.ResponseWriter, snap query.Snapshot) {
	var buf bytes.Buffer
	if err := view.Render(&buf, view.NewPage(snap)); err != nil {
		h.logger.Error("render page", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	buf.WriteTo(w)
}
