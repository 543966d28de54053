package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestTraceMiddlewarePreservesIncomingTrace(t *testing.T) {
	h := TraceMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := TraceIDFromContext(r.Context()); got != "turn-trace-1" {
			t.Fatalf("TraceIDFromContext() = %q", got)
		}
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodPost, "/v1/ask", strings.NewReader(`{"question":"q"}`))
	req.Header.Set("X-Tabletalk-Trace", "turn-trace-1")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if got := rr.Header().Get("X-Tabletalk-Trace"); got != "turn-trace-1" {
		t.Fatalf("trace header = %q", got)
	}
}

func TestTraceMiddlewareMintsTrace(t *testing.T) {
	h := TraceMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if TraceIDFromContext(r.Context()) == "" {
			t.Fatal("expected generated trace id")
		}
		w.WriteHeader(http.StatusNoContent)
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/ask", nil))

	if rr.Header().Get("X-Tabletalk-Trace") == "" {
		t.Fatal("expected X-Tabletalk-Trace header")
	}
}

func TestTraceIDContextHelpers(t *testing.T) {
	ctx := ContextWithTraceID(context.Background(), "abc123")
	if got := TraceIDFromContext(ctx); got != "abc123" {
		t.Fatalf("TraceIDFromContext() = %q", got)
	}
}

func TestLoggingMiddlewareEmitsRequestLine(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	h := TraceMiddleware(LoggingMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"error_code":"PLANNING_FAILED"}`))
	})))

	req := httptest.NewRequest(http.MethodPost, "/v1/ask", strings.NewReader(`{"question":"q"}`))
	req.Header.Set("X-Tabletalk-Trace", "turn-trace-2")
	h.ServeHTTP(httptest.NewRecorder(), req)

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("log line is not JSON: %v (%s)", err, buf.String())
	}
	if line["msg"] != "request completed" {
		t.Fatalf("msg = %v", line["msg"])
	}
	if line["trace_id"] != "turn-trace-2" {
		t.Fatalf("trace_id = %v", line["trace_id"])
	}
	if line["path"] != "/v1/ask" || line["method"] != http.MethodPost {
		t.Fatalf("path/method = %v/%v", line["path"], line["method"])
	}
	if line["status"] != float64(http.StatusUnprocessableEntity) {
		t.Fatalf("status = %v", line["status"])
	}
	if _, ok := line["duration_ms"]; !ok {
		t.Fatal("expected duration_ms attribute")
	}
}

func TestLoggingMiddlewareSkipsMetricsScrapes(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	h := LoggingMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/metrics", nil))

	if buf.Len() != 0 {
		t.Fatalf("expected no log line for metrics scrape, got %s", buf.String())
	}
}

func TestRouteLabelUsesPatternForParameterizedRoutes(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/history/{turn_id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	var got string
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mux.ServeHTTP(w, r)
		got = routeLabel(r)
	})
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/history/turn-42", nil))

	if got != "/v1/history/{turn_id}" {
		t.Fatalf("routeLabel() = %q", got)
	}
}

func TestRouteLabelFallsBackToPath(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/not-registered", nil)
	if got := routeLabel(req); got != "/not-registered" {
		t.Fatalf("routeLabel() = %q", got)
	}
}
