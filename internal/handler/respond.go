package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/pavelanni/revision/internal/catalog"
	"github.com/pavelanni/revision/internal/generate"
	appI18n "github.com/pavelanni/revision/internal/i18n"
	"github.com/pavelanni/revision/internal/session"
	"github.com/pavelanni/revision/internal/store"
)

var (
	errBadRequest     = errors.New("malformed request body")
	errMissingFields  = errors.New("missing required fields")
	errPromptRequired = errors.New("prompt is required")
)

// errorResponse is the body of every non-2xx reply. Code is the message ID,
// stable across languages.
type errorResponse struct {
	Error    string        `json:"error"`
	Code     string        `json:"code"`
	Recovery *recoveryView `json:"recovery,omitempty"`
}

// recoveryView is shown when a session cannot display any question. The
// only action offered is going back to the generator.
type recoveryView struct {
	Message string `json:"message"`
	Hint    string `json:"hint"`
	Action  string `json:"action"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errors.Join(errBadRequest, err)
	}
	return nil
}

// errorStatus maps a domain error to an HTTP status and a message ID.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest, "BadRequest"
	case errors.Is(err, errMissingFields):
		return http.StatusBadRequest, "MissingFields"
	case errors.Is(err, errPromptRequired):
		return http.StatusBadRequest, "PromptRequired"
	case errors.Is(err, session.ErrInvalidConfig):
		return http.StatusBadRequest, "ConfigIncomplete"
	case errors.Is(err, catalog.ErrInvalidSelection):
		return http.StatusBadRequest, "InvalidSelection"
	case errors.Is(err, session.ErrNoAnswer):
		return http.StatusBadRequest, "NoAnswer"
	case errors.Is(err, session.ErrUnknownQuestion):
		return http.StatusBadRequest, "BadRequest"
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, "SessionNotFound"
	case errors.Is(err, session.ErrIntegrity):
		return http.StatusConflict, "SessionRecovery"
	case errors.Is(err, session.ErrFeedbackRequired):
		return http.StatusConflict, "CheckAnswerFirst"
	case errors.Is(err, session.ErrWrongPhase):
		return http.StatusConflict, "WrongPhase"
	case errors.Is(err, session.ErrNoQuestions):
		return http.StatusUnprocessableEntity, "NoQuestionsGenerated"
	case errors.Is(err, generate.ErrGenerationFailed):
		return http.StatusBadGateway, "GenerationFailed"
	default:
		return http.StatusInternalServerError, "InternalError"
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, id := errorStatus(err)
	ctx := r.Context()

	resp := errorResponse{Code: id}
	switch id {
	case "InvalidSelection":
		detail := strings.TrimPrefix(err.Error(), catalog.ErrInvalidSelection.Error()+": ")
		resp.Error = appI18n.Td(ctx, id, map[string]any{"Detail": detail})
	case "SessionRecovery":
		resp.Recovery = newRecoveryView(r)
		resp.Error = resp.Recovery.Message
	default:
		resp.Error = appI18n.T(ctx, id)
	}

	if status >= http.StatusInternalServerError {
		slog.Error("request failed", "path", r.URL.Path, "status", status, "error", err)
	} else {
		slog.Debug("request rejected", "path", r.URL.Path, "status", status, "error", err)
	}
	writeJSON(w, status, resp)
}

func newRecoveryView(r *http.Request) *recoveryView {
	ctx := r.Context()
	return &recoveryView{
		Message: appI18n.T(ctx, "SessionRecovery"),
		Hint:    appI18n.T(ctx, "RecoveryHint"),
		Action:  appI18n.T(ctx, "BackToGenerator"),
	}
}
