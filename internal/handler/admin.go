package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/pavelanni/revision/internal/model"
)

const defaultExchangeLimit = 50

func (h *Handler) handleSessionCounts(w http.ResponseWriter, r *http.Request) {
	counts, err := h.store.CountSessions(r.Context())
	if err != nil {
		h.writeError(w, r, fmt.Errorf("count sessions: %w", err))
		return
	}
	writeJSON(w, http.StatusOK, counts)
}

// handleExchanges lists recent prompt/reply pairs, newest first.
// Query parameters: kind (generate, judge) and limit.
func (h *Handler) handleExchanges(w http.ResponseWriter, r *http.Request) {
	kind := r.URL.Query().Get("kind")
	switch kind {
	case "", model.ExchangeGenerate, model.ExchangeJudge:
	default:
		h.writeError(w, r, fmt.Errorf("%w: unknown kind %q", errBadRequest, kind))
		return
	}

	limit := defaultExchangeLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			h.writeError(w, r, fmt.Errorf("%w: invalid limit %q", errBadRequest, s))
			return
		}
		limit = n
	}

	exchanges, err := h.store.ListExchanges(r.Context(), kind, limit)
	if err != nil {
		h.writeError(w, r, fmt.Errorf("list exchanges: %w", err))
		return
	}
	if exchanges == nil {
		exchanges = []model.Exchange{}
	}
	writeJSON(w, http.StatusOK, exchanges)
}
