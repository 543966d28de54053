package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/tabletalk/tabletalk/internal/history"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) HealthCheck(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping history db: %w", err)
	}
	return nil
}

func (r *Repository) RecordTurn(ctx context.Context, turn history.Turn) error {
	query := `
INSERT INTO conversation_turn (turn_id, question, sql_text, answer, row_count, duration_ms, asked_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := r.db.ExecContext(ctx, query,
		turn.TurnID,
		turn.Question,
		turn.SQL,
		turn.Answer,
		turn.RowCount,
		turn.DurationMS,
		turn.AskedAt,
	)
	if err != nil {
		return fmt.Errorf("record turn: %w", err)
	}
	return nil
}

func (r *Repository) GetTurn(ctx context.Context, turnID string) (history.Turn, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT turn_id, question, sql_text, answer, row_count, duration_ms, asked_at
FROM conversation_turn
WHERE turn_id = $1`, turnID)

	var turn history.Turn
	err := row.Scan(
		&turn.TurnID,
		&turn.Question,
		&turn.SQL,
		&turn.Answer,
		&turn.RowCount,
		&turn.DurationMS,
		&turn.AskedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return history.Turn{}, history.ErrNotFound
	}
	if err != nil {
		return history.Turn{}, fmt.Errorf("get turn: %w", err)
	}
	return turn, nil
}

func (r *Repository) ListRecent(ctx context.Context, limit int) ([]history.Turn, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := r.db.QueryContext(ctx, `
SELECT turn_id, question, sql_text, answer, row_count, duration_ms, asked_at
FROM conversation_turn
ORDER BY asked_at DESC
LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent turns: %w", err)
	}
	defer rows.Close()

	var turns []history.Turn
	for rows.Next() {
		var turn history.Turn
		if err := rows.Scan(
			&turn.TurnID,
			&turn.Question,
			&turn.SQL,
			&turn.Answer,
			&turn.RowCount,
			&turn.DurationMS,
			&turn.AskedAt,
		); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		turns = append(turns, turn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate turns: %w", err)
	}
	return turns, nil
}
