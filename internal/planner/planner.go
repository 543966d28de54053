// Package planner turns a natural-language question into a single SQL
// SELECT statement using a fixed schema contract.
package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

const schemaDescription = `You are given a DuckDB database with the following tables and columns:

Table: Clients
- client_id (VARCHAR)
- client_name (VARCHAR)
- industry (VARCHAR)
- country (VARCHAR)

Table: Invoices
- invoice_id (VARCHAR)
- client_id (VARCHAR)  -- foreign key to Clients.client_id
- invoice_date (DATE)
- due_date (DATE)
- status (VARCHAR)     -- e.g. 'Paid', 'Overdue'
- currency (VARCHAR)
- fx_rate_to_usd (DOUBLE)  -- conversion rate to USD

Table: InvoiceLineItems
- line_id (VARCHAR)
- invoice_id (VARCHAR)   -- foreign key to Invoices.invoice_id
- service_name (VARCHAR)
- quantity (BIGINT)
- unit_price (DOUBLE)
- tax_rate (DOUBLE)      -- e.g. 0.2 for 20% VAT

Business rules:
- Line total in invoice currency INCLUDING tax:
    line_total = quantity * unit_price * (1 + tax_rate)
- Line total converted to USD:
    line_total_usd = line_total * fx_rate_to_usd
- When a question asks for "total billed in 2024 (including tax)" or "revenue in 2024":
    * Filter invoices by invoice_date in 2024.
    * Join Invoices with InvoiceLineItems on invoice_id.
    * Compute SUM(quantity * unit_price * (1 + tax_rate) * fx_rate_to_usd).
- When grouping by client:
    * Join Clients on client_id and group by Clients.client_id or client_name.
- When grouping by service_name:
    * Group by InvoiceLineItems.service_name.
- When counting line items per service_name:
    * Use COUNT(DISTINCT line_id) or COUNT(*) grouped by service_name.

Rules:
- Use ONLY these tables and columns.
- Use SQL compatible with DuckDB.
- Do NOT modify data (no INSERT/UPDATE/DELETE); ONLY SELECT queries.
- Prefer explicit JOINs when combining tables.
`

const systemPrompt = schemaDescription + `
You are a Text-to-SQL model that translates a user's question into a single SQL SELECT query.

Return STRICT JSON with this shape (no extra text):

{
  "sql": "<sql_query_here>"
}

Do NOT include comments or explanations, only valid JSON.
`

// planTemperature stays at the minimum to favor reproducible SQL shapes.
// Not a guarantee: the same question may still yield equivalent but
// differently shaped SQL across calls.
const planTemperature = 0

// PlanError means the completion could not be parsed into a usable SQL
// statement. Raw retains the full completion text for diagnosis.
type PlanError struct {
	Raw string
}

func (e *PlanError) Error() string {
	return fmt.Sprintf("completion did not contain a SQL query; raw: %s", e.Raw)
}

type Generator interface {
	Generate(ctx context.Context, systemPrompt, userPrompt string, temperature float64) (string, error)
}

type Planner struct {
	llm Generator
}

func New(llm Generator) *Planner {
	return &Planner{llm: llm}
}

// Plan returns one SQL SELECT statement for the question, trimmed of
// surrounding whitespace. It does not re-validate the SELECT-only rule;
// that gate belongs to the store at execution time.
func (p *Planner) Plan(ctx context.Context, question string) (string, error) {
	userPrompt, err := json.MarshalIndent(map[string]string{
		"question":     question,
		"instructions": "Translate the question into a single SELECT SQL query.",
	}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal planner prompt: %w", err)
	}

	raw, err := p.llm.Generate(ctx, systemPrompt, string(userPrompt), planTemperature)
	if err != nil {
		return "", fmt.Errorf("plan sql: %w", err)
	}

	candidate, ok := extractJSONObject(raw)
	if !ok {
		return "", &PlanError{Raw: raw}
	}

	var envelope struct {
		SQL string `json:"sql"`
	}
	if err := json.Unmarshal([]byte(candidate), &envelope); err != nil {
		return "", &PlanError{Raw: raw}
	}
	sqlText := strings.TrimSpace(envelope.SQL)
	if sqlText == "" {
		return "", &PlanError{Raw: raw}
	}
	return sqlText, nil
}

// extractJSONObject tolerates fenced code blocks and stray commentary
// around the JSON envelope: it strips a surrounding fence if present, then
// slices from the first '{' to the last '}'. Deliberately loose; tightening
// it would change which completions are accepted.
func extractJSONObject(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		s = strings.Trim(s, "`")
	}
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end == -1 || end < start {
		return "", false
	}
	return s[start : end+1], true
}
