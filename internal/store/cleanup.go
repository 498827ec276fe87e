package store

import (
	"context"
	"log/slog"
	"time"
)

// DefaultSessionTTL is how long an untouched session is kept.
const DefaultSessionTTL = 24 * time.Hour

// CleanupIdleSessions removes sessions not updated within ttl and returns
// how many were removed.
func (s *Store) CleanupIdleSessions(ctx context.Context, ttl time.Duration) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM quiz_sessions WHERE updated_at < ?`, time.Now().UTC().Add(-ttl))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// RunCleanup calls CleanupIdleSessions every interval until ctx is done.
func (s *Store) RunCleanup(ctx context.Context, interval, ttl time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.CleanupIdleSessions(ctx, ttl)
			if err != nil {
				slog.Warn("session cleanup failed", "error", err)
				continue
			}
			if n > 0 {
				slog.Info("removed idle sessions", "count", n)
			}
		}
	}
}
