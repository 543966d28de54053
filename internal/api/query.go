package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/tabletalk/tabletalk/internal/auth"
	"github.com/tabletalk/tabletalk/internal/dataset"
	"github.com/tabletalk/tabletalk/internal/history"
)

type planRequest struct {
	Question string `json:"question"`
}

type planResponse struct {
	Question string `json:"question"`
	SQL      string `json:"sql"`
}

// handlePlan translates a question to SQL without executing it.
func handlePlan(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Planner == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "PLAN_NOT_CONFIGURED", "planner is not configured", false, nil)
		return
	}
	if err := requireRole(r, auth.RoleAsk); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}

	var request planRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&request); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid plan request body", false, map[string]any{"details": err.Error()})
		return
	}
	if strings.TrimSpace(request.Question) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "QUESTION_REQUIRED", "question is required", false, nil)
		return
	}

	sqlText, err := deps.Planner.Plan(r.Context(), request.Question)
	if err != nil {
		writeTurnError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, planResponse{Question: request.Question, SQL: sqlText})
}

type queryRequest struct {
	SQL     string `json:"sql"`
	MaxRows int    `json:"max_rows"`
}

type queryResponse struct {
	Columns []string       `json:"columns"`
	Rows    [][]any        `json:"rows"`
	NumRows int            `json:"num_rows"`
	Stats   map[string]any `json:"stats"`
}

// handleQuery runs caller-supplied SQL through the same SELECT-only
// gate as planned SQL.
func handleQuery(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Warehouse == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "QUERY_NOT_CONFIGURED", "warehouse is not configured", false, nil)
		return
	}
	if err := requireRole(r, auth.RoleAsk); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}

	var request queryRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&request); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid query request body", false, map[string]any{"details": err.Error()})
		return
	}
	if strings.TrimSpace(request.SQL) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "SQL_REQUIRED", "sql is required", false, nil)
		return
	}

	result, err := deps.Warehouse.Query(r.Context(), request.SQL)
	if err != nil {
		writeTurnError(w, r, err)
		return
	}

	rows := result.Rows
	if request.MaxRows > 0 && len(rows) > request.MaxRows {
		rows = rows[:request.MaxRows]
	}
	writeJSON(w, http.StatusOK, queryResponse{
		Columns: result.Columns,
		Rows:    rows,
		NumRows: len(result.Rows),
		Stats: map[string]any{
			"duration_ms": result.Duration.Milliseconds(),
		},
	})
}

type schemaTable struct {
	Name       string           `json:"name"`
	Columns    []string         `json:"columns"`
	SampleRows []map[string]any `json:"sample_rows"`
}

// handleSchema reports the fixed three-table schema with a handful of
// live sample rows per table.
func handleSchema(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Warehouse == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "SCHEMA_NOT_CONFIGURED", "warehouse is not configured", false, nil)
		return
	}
	if err := requireRole(r, auth.RoleAsk); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}

	samples := deps.SchemaSampleRows
	if samples <= 0 {
		samples = 5
	}

	tables := make([]schemaTable, 0, 3)
	for _, name := range []string{dataset.TableClients, dataset.TableInvoices, dataset.TableLineItems} {
		result, err := deps.Warehouse.Query(r.Context(), fmt.Sprintf("SELECT * FROM %s LIMIT %d", name, samples))
		if err != nil {
			writeError(r.Context(), w, http.StatusInternalServerError, "SCHEMA_SAMPLE_FAILED", "failed to sample table", true, map[string]any{"table": name, "details": err.Error()})
			return
		}
		tables = append(tables, schemaTable{
			Name:       name,
			Columns:    result.Columns,
			SampleRows: result.RowMaps(),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"tables": tables})
}

type historyTurn struct {
	TurnID     string `json:"turn_id"`
	Question   string `json:"question"`
	SQL        string `json:"sql"`
	Answer     string `json:"answer"`
	NumRows    int    `json:"num_rows"`
	DurationMS int64  `json:"duration_ms"`
	AskedAt    string `json:"asked_at"`
}

func handleHistory(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.History == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "HISTORY_NOT_CONFIGURED", "history is not configured", false, nil)
		return
	}
	if err := requireRole(r, auth.RoleOps); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}

	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(r.Context(), w, http.StatusBadRequest, "INVALID_LIMIT", "limit must be a positive integer", false, nil)
			return
		}
		limit = parsed
	}

	turns, err := deps.History.ListRecent(r.Context(), limit)
	if err != nil {
		writeError(r.Context(), w, http.StatusInternalServerError, "HISTORY_READ_FAILED", "failed to read history", true, map[string]any{"details": err.Error()})
		return
	}

	out := make([]historyTurn, 0, len(turns))
	for _, turn := range turns {
		out = append(out, toHistoryTurn(turn))
	}
	writeJSON(w, http.StatusOK, map[string]any{"turns": out})
}

// handleHistoryTurn fetches a single recorded turn by id.
func handleHistoryTurn(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.History == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "HISTORY_NOT_CONFIGURED", "history is not configured", false, nil)
		return
	}
	if err := requireRole(r, auth.RoleOps); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}

	turnID := r.PathValue("turn_id")
	turn, err := deps.History.GetTurn(r.Context(), turnID)
	if errors.Is(err, history.ErrNotFound) {
		writeError(r.Context(), w, http.StatusNotFound, "TURN_NOT_FOUND", "no turn with that id", false, map[string]any{"turn_id": turnID})
		return
	}
	if err != nil {
		writeError(r.Context(), w, http.StatusInternalServerError, "HISTORY_READ_FAILED", "failed to read history", true, map[string]any{"details": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, toHistoryTurn(turn))
}

func toHistoryTurn(turn history.Turn) historyTurn {
	return historyTurn{
		TurnID:     turn.TurnID,
		Question:   turn.Question,
		SQL:        turn.SQL,
		Answer:     turn.Answer,
		NumRows:    turn.RowCount,
		DurationMS: turn.DurationMS,
		AskedAt:    turn.AskedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
}
