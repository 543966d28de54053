package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/tabletalk/tabletalk/internal/auth"
	"github.com/tabletalk/tabletalk/internal/config"
	"github.com/tabletalk/tabletalk/internal/pipeline"
	"github.com/tabletalk/tabletalk/internal/warehouse"
)

type fakePipeline struct {
	turn pipeline.Turn
	err  error
}

func (f fakePipeline) Ask(context.Context, string) (pipeline.Turn, error) {
	return f.turn, f.err
}

type fakePlanner struct {
	sql string
	err error
}

func (f fakePlanner) Plan(context.Context, string) (string, error) {
	return f.sql, f.err
}

type fakeWarehouse struct {
	result warehouse.Result
	err    error
	sql    []string
}

func (f *fakeWarehouse) Query(_ context.Context, sqlText string) (warehouse.Result, error) {
	f.sql = append(f.sql, sqlText)
	return f.result, f.err
}

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg, err := config.Load("tabletalk-api", func(string) (string, bool) { return "", false })
	if err != nil {
		t.Fatalf("config.Load() error = %v", err)
	}
	return cfg
}

func TestHealthEndpoint(t *testing.T) {
	handler := NewHandler(testConfig(t), Dependencies{})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var payload map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if payload["service"] != "tabletalk-api" {
		t.Fatalf("service = %v", payload["service"])
	}
	if rec.Header().Get("X-Tabletalk-Trace") == "" {
		t.Fatal("expected trace id header")
	}
}

func TestReadyEndpointReportsFailure(t *testing.T) {
	cfg := testConfig(t)
	cfg.AI.APIKey = ""
	handler := NewHandler(cfg, Dependencies{
		Readiness: CombineReadinessChecks(CheckAICredential(cfg)),
	})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/ready", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "NOT_READY") {
		t.Fatalf("body = %s", rec.Body.String())
	}
}

func TestReadyEndpointOK(t *testing.T) {
	cfg := testConfig(t)
	cfg.AI.APIKey = "sk-test"
	handler := NewHandler(cfg, Dependencies{
		Readiness: CombineReadinessChecks(CheckAICredential(cfg)),
	})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/ready", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestProtectedEndpointsRequireAuth(t *testing.T) {
	cfg := testConfig(t)
	cfg.Auth.Required = true
	validator, err := auth.NewStaticAPIKeyValidator("secret-key:analyst:ask")
	if err != nil {
		t.Fatalf("validator: %v", err)
	}
	handler := NewHandler(cfg, Dependencies{
		AuthMiddleware: auth.Middleware(nil, validator),
		Pipeline: fakePipeline{turn: pipeline.Turn{
			TurnID:   "turn-1",
			Question: "q",
			Answer:   "a",
		}},
	})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/ask", strings.NewReader(`{"question":"q"}`))
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/v1/ask", strings.NewReader(`{"question":"q"}`))
	req.Header.Set("X-API-Key", "secret-key")
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body %s", rec.Code, rec.Body.String())
	}

	// Health stays open even with auth required.
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("health status = %d, want 200", rec.Code)
	}
}

func TestRoleEnforcement(t *testing.T) {
	cfg := testConfig(t)
	cfg.Auth.Required = true
	validator, err := auth.NewStaticAPIKeyValidator("ops-key:operator:ops,ask-key:analyst:ask")
	if err != nil {
		t.Fatalf("validator: %v", err)
	}
	handler := NewHandler(cfg, Dependencies{
		AuthMiddleware: auth.Middleware(nil, validator),
		Pipeline: fakePipeline{turn: pipeline.Turn{
			TurnID:   "turn-1",
			Question: "q",
			Answer:   "a",
		}},
		History: &memoryRecorder{},
	})

	// An ops-only key cannot ask questions.
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/ask", strings.NewReader(`{"question":"q"}`))
	req.Header.Set("X-API-Key", "ops-key")
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("ops key on ask: status = %d, want 403", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "FORBIDDEN") {
		t.Fatalf("body = %s", rec.Body.String())
	}

	// An ask-only key cannot browse history.
	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/v1/history", nil)
	req.Header.Set("X-API-Key", "ask-key")
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("ask key on history: status = %d, want 403", rec.Code)
	}

	// The right role passes.
	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/v1/history", nil)
	req.Header.Set("X-API-Key", "ops-key")
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("ops key on history: status = %d, want 200, body %s", rec.Code, rec.Body.String())
	}
}

func TestMetricsEndpoint(t *testing.T) {
	handler := NewHandler(testConfig(t), Dependencies{})

	// Prime the request counter so the exposition contains it.
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/health", nil))

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "tabletalk_http_requests_total") {
		t.Fatal("expected request counter in metrics exposition")
	}
}
