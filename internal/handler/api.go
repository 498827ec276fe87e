package handler

import (
	"net/http"
	"strings"

	"github.com/pavelanni/revision/internal/evaluate"
)

type generateRequest struct {
	Prompt string `json:"prompt"`
}

type generateResponse struct {
	Content string `json:"content"`
}

// handleGenerateQuestions forwards a client-rendered prompt and returns the
// raw reply for the client to parse.
func (h *Handler) handleGenerateQuestions(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		h.writeError(w, r, errPromptRequired)
		return
	}
	content, err := h.gen.Raw(r.Context(), req.Prompt)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, generateResponse{Content: content})
}

// handleCheckAnswer evaluates one answer outside of any session.
func (h *Handler) handleCheckAnswer(w http.ResponseWriter, r *http.Request) {
	var req evaluate.Request
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	for _, f := range []string{req.Question, req.UserAnswer, req.CorrectAnswer, string(req.QuestionType)} {
		if strings.TrimSpace(f) == "" {
			h.writeError(w, r, errMissingFields)
			return
		}
	}
	writeJSON(w, http.StatusOK, h.eval.EvaluateRequest(r.Context(), req))
}
