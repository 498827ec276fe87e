package store

import (
	"context"
	"time"

	"github.com/pavelanni/revision/internal/model"
)

// RecordExchange stores one LLM prompt/reply pair.
func (s *Store) RecordExchange(ctx context.Context, ex model.Exchange) error {
	if ex.CreatedAt.IsZero() {
		ex.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO llm_exchanges (kind, model, prompt, response, error, duration_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ex.Kind, ex.Model, ex.Prompt, ex.Response, ex.Error, ex.Duration.Milliseconds(), ex.CreatedAt,
	)
	return err
}

// ListExchanges returns the most recent exchanges, newest first.
// Empty kind means all kinds.
func (s *Store) ListExchanges(ctx context.Context, kind string, limit int) ([]model.Exchange, error) {
	query := `SELECT id, kind, model, prompt, response, error, duration_ms, created_at FROM llm_exchanges WHERE 1=1`
	var args []any
	if kind != "" {
		query += ` AND kind = ?`
		args = append(args, kind)
	}
	query += ` ORDER BY id DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var exchanges []model.Exchange
	for rows.Next() {
		var ex model.Exchange
		var ms int64
		if err := rows.Scan(&ex.ID, &ex.Kind, &ex.Model, &ex.Prompt, &ex.Response, &ex.Error, &ms, &ex.CreatedAt); err != nil {
			return nil, err
		}
		ex.Duration = time.Duration(ms) * time.Millisecond
		exchanges = append(exchanges, ex)
	}
	return exchanges, rows.Err()
}
