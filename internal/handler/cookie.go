package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/pavelanni/revision/internal/session"
	"github.com/pavelanni/revision/internal/store"
)

const sessionCookieName = "revision-session"

// cookieSessionID returns the quiz session id carried by the request, or ""
// when there is none or the cookie does not verify.
func (h *Handler) cookieSessionID(r *http.Request) string {
	c, err := h.cookies.Get(r, sessionCookieName)
	if err != nil {
		slog.Debug("ignoring invalid session cookie", "error", err)
		return ""
	}
	id, _ := c.Values["id"].(string)
	return id
}

func (h *Handler) setSessionCookie(w http.ResponseWriter, r *http.Request, id string) error {
	// Get hands back a fresh session when the old cookie does not decode.
	c, _ := h.cookies.Get(r, sessionCookieName)
	c.Values["id"] = id
	return c.Save(r, w)
}

func (h *Handler) currentSession(ctx context.Context, r *http.Request) (session.Session, error) {
	id := h.cookieSessionID(r)
	if id == "" {
		return session.Session{}, store.ErrNotFound
	}
	return h.store.GetSession(ctx, id)
}

// newSession stores a fresh configuring session and points the cookie at it.
func (h *Handler) newSession(w http.ResponseWriter, r *http.Request) (session.Session, error) {
	sess := session.New()
	if err := h.store.SaveSession(r.Context(), sess); err != nil {
		return session.Session{}, err
	}
	if err := h.setSessionCookie(w, r, sess.ID); err != nil {
		return session.Session{}, err
	}
	slog.Info("session created", "session", sess.ID)
	return sess, nil
}
