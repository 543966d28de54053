// Package history records answered turns for later review.
package history

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by GetTurn when no turn has the given id.
var ErrNotFound = errors.New("turn not found")

// Turn is the persisted shape of one answered question.
type Turn struct {
	TurnID     string
	Question   string
	SQL        string
	Answer     string
	RowCount   int
	DurationMS int64
	AskedAt    time.Time
}

// Recorder persists turns. Recording is best effort at the call
// sites; a failed write never fails the turn itself.
type Recorder interface {
	RecordTurn(ctx context.Context, turn Turn) error
	ListRecent(ctx context.Context, limit int) ([]Turn, error)
	GetTurn(ctx context.Context, turnID string) (Turn, error)
}

// NopRecorder discards everything. Used when no history database is
// configured.
type NopRecorder struct{}

func (NopRecorder) RecordTurn(context.Context, Turn) error { return nil }

func (NopRecorder) ListRecent(context.Context, int) ([]Turn, error) { return nil, nil }

func (NopRecorder) GetTurn(context.Context, string) (Turn, error) { return Turn{}, ErrNotFound }
