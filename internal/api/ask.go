package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/tabletalk/tabletalk/internal/auth"
	"github.com/tabletalk/tabletalk/internal/history"
	"github.com/tabletalk/tabletalk/internal/llm"
	"github.com/tabletalk/tabletalk/internal/pipeline"
	"github.com/tabletalk/tabletalk/internal/planner"
	"github.com/tabletalk/tabletalk/internal/warehouse"
)

type askRequest struct {
	Question   string `json:"question"`
	ReturnSQL  *bool  `json:"return_sql"`
	ReturnRows *bool  `json:"return_rows"`
	MaxRows    int    `json:"max_rows"`
}

type askResponse struct {
	Question string           `json:"question"`
	SQL      string           `json:"sql,omitempty"`
	Answer   string           `json:"answer"`
	Rows     []map[string]any `json:"rows,omitempty"`
	NumRows  int              `json:"num_rows"`
}

func handleAsk(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Pipeline == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "ASK_NOT_CONFIGURED", "ask dependencies are not configured", false, nil)
		return
	}

	if err := requireRole(r, auth.RoleAsk); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}

	// Unknown fields are tolerated here; dashboards and older CLI
	// builds send extras this endpoint never needed.
	var request askRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid ask request body", false, map[string]any{"details": err.Error()})
		return
	}
	if strings.TrimSpace(request.Question) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "QUESTION_REQUIRED", "question is required", false, nil)
		return
	}

	returnSQL := request.ReturnSQL == nil || *request.ReturnSQL
	returnRows := request.ReturnRows == nil || *request.ReturnRows
	maxRows := request.MaxRows
	if maxRows <= 0 {
		maxRows = deps.DefaultMaxRows
	}
	if maxRows <= 0 {
		maxRows = 50
	}

	turn, err := deps.Pipeline.Ask(r.Context(), request.Question)
	if err != nil {
		writeTurnError(w, r, err)
		return
	}
	recordTurn(deps, r, turn)

	response := askResponse{
		Question: turn.Question,
		Answer:   turn.Answer,
		NumRows:  turn.RowCount,
	}
	if returnSQL {
		response.SQL = turn.SQL
	}
	if returnRows {
		rows := turn.Rows
		if len(rows) > maxRows {
			rows = rows[:maxRows]
		}
		response.Rows = warehouse.Result{Columns: turn.Columns, Rows: rows}.RowMaps()
	}
	writeJSON(w, http.StatusOK, response)
}

// writeTurnError maps pipeline failures onto the wire error envelope.
// Planning failures carry the raw model output so callers can inspect
// what the model actually said.
func writeTurnError(w http.ResponseWriter, r *http.Request, err error) {
	var planErr *planner.PlanError
	if errors.As(err, &planErr) {
		writeError(r.Context(), w, http.StatusUnprocessableEntity, "PLANNING_FAILED", "could not derive sql from the question", false, map[string]any{"raw": planErr.Raw})
		return
	}
	if errors.Is(err, warehouse.ErrRejectedStatement) {
		writeError(r.Context(), w, http.StatusBadRequest, "SQL_NOT_ALLOWED", "only SELECT statements are allowed", false, nil)
		return
	}
	var execErr *warehouse.ExecutionError
	if errors.As(err, &execErr) {
		writeError(r.Context(), w, http.StatusBadRequest, "QUERY_EXECUTION_FAILED", "query execution failed", false, map[string]any{"sql": execErr.SQL, "details": execErr.Err.Error()})
		return
	}
	var completionErr *llm.CompletionError
	if errors.As(err, &completionErr) {
		writeError(r.Context(), w, http.StatusBadGateway, "COMPLETION_FAILED", "completion provider request failed", true, map[string]any{"status_code": completionErr.StatusCode})
		return
	}
	writeError(r.Context(), w, http.StatusInternalServerError, "INTERNAL", "answering failed", true, map[string]any{"details": err.Error()})
}

func recordTurn(deps Dependencies, r *http.Request, turn pipeline.Turn) {
	if deps.History == nil {
		return
	}
	err := deps.History.RecordTurn(r.Context(), history.Turn{
		TurnID:     turn.TurnID,
		Question:   turn.Question,
		SQL:        turn.SQL,
		Answer:     turn.Answer,
		RowCount:   turn.RowCount,
		DurationMS: turn.Duration.Milliseconds(),
		AskedAt:    time.Now().UTC(),
	})
	if err != nil && deps.Logger != nil {
		deps.Logger.WarnContext(r.Context(), "record turn failed", "error", err)
	}
}
