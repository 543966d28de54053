// Package pipeline chains question planning, SQL execution, and answer
// synthesis into a single conversational turn.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/tabletalk/tabletalk/internal/observability"
	"github.com/tabletalk/tabletalk/internal/planner"
	"github.com/tabletalk/tabletalk/internal/warehouse"
)

// Turn is the full record of one answered question.
type Turn struct {
	TurnID   string
	Question string
	SQL      string
	Answer   string
	Columns  []string
	Rows     [][]any
	RowCount int
	Duration time.Duration
}

type Planner interface {
	Plan(ctx context.Context, question string) (string, error)
}

type Executor interface {
	Query(ctx context.Context, sqlText string) (warehouse.Result, error)
}

type Synthesizer interface {
	Synthesize(ctx context.Context, question, sqlText string, result warehouse.Result) (string, error)
}

type Pipeline struct {
	Planner     Planner
	Executor    Executor
	Synthesizer Synthesizer
	Logger      *slog.Logger
}

func New(plan Planner, exec Executor, synth Synthesizer, logger *slog.Logger) *Pipeline {
	return &Pipeline{Planner: plan, Executor: exec, Synthesizer: synth, Logger: logger}
}

// Ask runs one turn end to end. The first failing stage aborts the
// turn; nothing is retried and no partial answer is produced.
func (p *Pipeline) Ask(ctx context.Context, question string) (Turn, error) {
	started := time.Now()
	observability.IncrementQuestions()

	sqlText, err := p.Planner.Plan(ctx, question)
	if err != nil {
		var planErr *planner.PlanError
		if errors.As(err, &planErr) {
			observability.IncrementPlanningFailures()
		}
		return Turn{}, fmt.Errorf("plan question: %w", err)
	}
	p.log(ctx, "question planned", slog.String("sql", sqlText))

	result, err := p.Executor.Query(ctx, sqlText)
	if err != nil {
		return Turn{}, fmt.Errorf("execute plan: %w", err)
	}
	p.log(ctx, "plan executed",
		slog.Int("rows", len(result.Rows)),
		slog.Duration("query_duration", result.Duration))

	answer, err := p.Synthesizer.Synthesize(ctx, question, sqlText, result)
	if err != nil {
		return Turn{}, fmt.Errorf("synthesize answer: %w", err)
	}

	elapsed := time.Since(started)
	observability.ObserveAnswerLatency(elapsed)

	return Turn{
		TurnID:   uuid.NewString(),
		Question: question,
		SQL:      sqlText,
		Answer:   answer,
		Columns:  result.Columns,
		Rows:     result.Rows,
		RowCount: len(result.Rows),
		Duration: elapsed,
	}, nil
}

// Answer is the minimal surface for callers that only want the final
// text, such as the REPL.
func (p *Pipeline) Answer(ctx context.Context, question string) (string, error) {
	turn, err := p.Ask(ctx, question)
	if err != nil {
		return "", err
	}
	return turn.Answer, nil
}

func (p *Pipeline) log(ctx context.Context, msg string, attrs ...any) {
	if p.Logger != nil {
		p.Logger.DebugContext(ctx, msg, attrs...)
	}
}
