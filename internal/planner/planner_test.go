package planner

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type stubGenerator struct {
	response    string
	err         error
	gotSystem   string
	gotUser     string
	temperature float64
}

func (s *stubGenerator) Generate(_ context.Context, systemPrompt, userPrompt string, temperature float64) (string, error) {
	s.gotSystem = systemPrompt
	s.gotUser = userPrompt
	s.temperature = temperature
	return s.response, s.err
}

func TestPlanReturnsTrimmedSQL(t *testing.T) {
	stub := &stubGenerator{response: `{"sql": "  SELECT * FROM Clients  "}`}
	sql, err := New(stub).Plan(context.Background(), "Which clients are based in the UK?")
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	if sql != "SELECT * FROM Clients" {
		t.Fatalf("Plan() = %q", sql)
	}
	if stub.temperature != 0 {
		t.Fatalf("temperature = %v", stub.temperature)
	}
	if !strings.Contains(stub.gotSystem, "InvoiceLineItems") {
		t.Fatal("system prompt is missing the schema description")
	}
	if !strings.Contains(stub.gotUser, "Which clients are based in the UK?") {
		t.Fatalf("user prompt = %q", stub.gotUser)
	}
}

func TestPlanStripsCodeFence(t *testing.T) {
	stub := &stubGenerator{response: "```json\n{\"sql\": \"SELECT client_name FROM Clients WHERE country = 'UK'\"}\n```"}
	sql, err := New(stub).Plan(context.Background(), "UK clients?")
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	if sql != "SELECT client_name FROM Clients WHERE country = 'UK'" {
		t.Fatalf("Plan() = %q", sql)
	}
}

func TestPlanSlicesAroundCommentary(t *testing.T) {
	stub := &stubGenerator{response: "Here you go:\n{\"sql\": \"SELECT 1\"}\nHope that helps!"}
	sql, err := New(stub).Plan(context.Background(), "anything")
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	if sql != "SELECT 1" {
		t.Fatalf("Plan() = %q", sql)
	}
}

func TestPlanFailsWithoutJSONEnvelope(t *testing.T) {
	const raw = "Sure! Here's the SQL: SELECT * FROM Clients"
	stub := &stubGenerator{response: raw}
	_, err := New(stub).Plan(context.Background(), "anything")
	var planErr *PlanError
	if !errors.As(err, &planErr) {
		t.Fatalf("Plan() error = %v, want *PlanError", err)
	}
	if planErr.Raw != raw {
		t.Fatalf("Raw = %q", planErr.Raw)
	}
}

func TestPlanFailsOnEmptySQLField(t *testing.T) {
	stub := &stubGenerator{response: `{"sql": ""}`}
	_, err := New(stub).Plan(context.Background(), "anything")
	var planErr *PlanError
	if !errors.As(err, &planErr) {
		t.Fatalf("Plan() error = %v, want *PlanError", err)
	}
}

func TestPlanPropagatesGeneratorError(t *testing.T) {
	wantErr := errors.New("provider down")
	stub := &stubGenerator{err: wantErr}
	_, err := New(stub).Plan(context.Background(), "anything")
	if !errors.Is(err, wantErr) {
		t.Fatalf("Plan() error = %v, want wrapped provider error", err)
	}
	var planErr *PlanError
	if errors.As(err, &planErr) {
		t.Fatal("provider errors must not be reported as plan errors")
	}
}
