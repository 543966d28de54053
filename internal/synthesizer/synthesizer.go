// Package synthesizer narrates a query result in business language,
// constrained to the values present in the result rows.
package synthesizer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/tabletalk/tabletalk/internal/warehouse"
)

const answerSystemPrompt = `You answer questions about a small business's clients, invoices, and invoice line items.

You are given:
- the user's original question
- the SQL query that was executed
- the tabular result of that query (as Markdown)

CRITICAL RULES:
- Do NOT hallucinate any numeric values. All numbers you mention MUST appear in the result table.
- If needed, you may do simple mental aggregation (e.g. sum a column across rows) but it must be consistent with the result.
- If something is not present in the result table, explicitly say it is not available.
- Be concise and business-friendly.
`

const (
	answerTemperature = 0.1
	maxRenderedRows   = 50
	emptyResultMarker = "(EMPTY RESULT)"
)

type Generator interface {
	Generate(ctx context.Context, systemPrompt, userPrompt string, temperature float64) (string, error)
}

type Synthesizer struct {
	llm Generator
}

func New(llm Generator) *Synthesizer {
	return &Synthesizer{llm: llm}
}

// Synthesize narrates the result of sql for the original question. The
// grounding rules live in the system prompt only; the output is not
// programmatically checked against the rows.
func (s *Synthesizer) Synthesize(ctx context.Context, question, sqlText string, result warehouse.Result) (string, error) {
	payload, err := json.MarshalIndent(map[string]any{
		"question":              question,
		"sql":                   sqlText,
		"result_table_markdown": renderTable(result),
		"num_rows":              len(result.Rows),
	}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal answer prompt: %w", err)
	}

	answer, err := s.llm.Generate(ctx, answerSystemPrompt, string(payload), answerTemperature)
	if err != nil {
		return "", fmt.Errorf("synthesize answer: %w", err)
	}
	return answer, nil
}

// renderTable renders at most maxRenderedRows rows as a Markdown pipe
// table. The total row count travels separately in the payload, so a
// truncated rendering still reports the true cardinality.
func renderTable(result warehouse.Result) string {
	if len(result.Rows) == 0 {
		return emptyResultMarker
	}

	rows := result.Rows
	if len(rows) > maxRenderedRows {
		rows = rows[:maxRenderedRows]
	}

	var b strings.Builder
	b.WriteString("| " + strings.Join(result.Columns, " | ") + " |\n")
	separators := make([]string, len(result.Columns))
	for i := range separators {
		separators[i] = "---"
	}
	b.WriteString("| " + strings.Join(separators, " | ") + " |\n")
	for _, row := range rows {
		cells := make([]string, len(row))
		for i, value := range row {
			cells[i] = formatValue(value)
		}
		b.WriteString("| " + strings.Join(cells, " | ") + " |\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatValue(value any) string {
	switch typed := value.(type) {
	case nil:
		return ""
	case time.Time:
		return typed.Format("2006-01-02")
	case float64:
		// Trailing-zero free, so 1800.0 renders as the 1800 a reader
		// would quote back.
		return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.4f", typed), "0"), ".")
	default:
		return fmt.Sprint(typed)
	}
}
