// Package tabletalkctl implements the operator CLI: one-shot commands
// against the HTTP API plus an interactive question loop.
package tabletalkctl

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

type Options struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	HTTPClient *http.Client
	Stdin      io.Reader
	Stdout     io.Writer
	Stderr     io.Writer
}

func Run(ctx context.Context, args []string, defaults Options) int {
	stdout := defaults.Stdout
	if stdout == nil {
		stdout = io.Discard
	}
	stderr := defaults.Stderr
	if stderr == nil {
		stderr = io.Discard
	}

	fs := flag.NewFlagSet("tabletalkctl", flag.ContinueOnError)
	fs.SetOutput(stderr)

	baseURL := fs.String("base-url", firstNonEmpty(defaults.BaseURL, "http://localhost:8000"), "TableTalk API base URL")
	apiKey := fs.String("api-key", defaults.APIKey, "API key for authenticated requests")
	timeout := fs.Duration("timeout", durationOr(defaults.Timeout, 120*time.Second), "HTTP timeout (e.g. 30s)")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() < 1 {
		writeUsage(stderr)
		return 2
	}

	client := defaults.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: *timeout}
	}

	runner := &runner{
		client:  client,
		baseURL: strings.TrimRight(*baseURL, "/"),
		apiKey:  strings.TrimSpace(*apiKey),
		stdout:  stdout,
		stderr:  stderr,
	}

	command := strings.TrimSpace(fs.Arg(0))
	switch command {
	case "health":
		return runner.do(ctx, http.MethodGet, "/v1/health", nil)
	case "ready":
		return runner.do(ctx, http.MethodGet, "/v1/ready", nil)
	case "schema":
		return runner.do(ctx, http.MethodGet, "/v1/schema", nil)
	case "history":
		return runner.do(ctx, http.MethodGet, "/v1/history", nil)
	case "ask":
		question := strings.TrimSpace(strings.Join(fs.Args()[1:], " "))
		if question == "" {
			_, _ = fmt.Fprintln(stderr, "ask requires a question")
			return 2
		}
		return runner.do(ctx, http.MethodPost, "/v1/ask", map[string]any{"question": question})
	case "plan":
		question := strings.TrimSpace(strings.Join(fs.Args()[1:], " "))
		if question == "" {
			_, _ = fmt.Fprintln(stderr, "plan requires a question")
			return 2
		}
		return runner.do(ctx, http.MethodPost, "/v1/plan", map[string]any{"question": question})
	case "query":
		sqlText := strings.TrimSpace(strings.Join(fs.Args()[1:], " "))
		if sqlText == "" {
			_, _ = fmt.Fprintln(stderr, "query requires a sql statement")
			return 2
		}
		return runner.do(ctx, http.MethodPost, "/v1/query", map[string]any{"sql": sqlText})
	case "repl":
		stdin := defaults.Stdin
		if stdin == nil {
			_, _ = fmt.Fprintln(stderr, "repl requires an input stream")
			return 2
		}
		return runner.repl(ctx, stdin)
	default:
		_, _ = fmt.Fprintf(stderr, "unknown command %q\n\n", command)
		writeUsage(stderr)
		return 2
	}
}

type runner struct {
	client  *http.Client
	baseURL string
	apiKey  string
	stdout  io.Writer
	stderr  io.Writer
}

// repl answers questions from the input stream until EOF or an
// exit/quit line. Failed turns print the error and keep the loop
// going.
func (r *runner) repl(ctx context.Context, stdin io.Reader) int {
	scanner := bufio.NewScanner(stdin)
	scanner.Buffer(make([]byte, 64*1024), 64*1024)
	for {
		_, _ = fmt.Fprint(r.stdout, "question> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			break
		}
		r.askOne(ctx, line)
	}
	if err := scanner.Err(); err != nil {
		_, _ = fmt.Fprintf(r.stderr, "read input: %v\n", err)
		return 1
	}
	return 0
}

func (r *runner) askOne(ctx context.Context, question string) {
	code, body, err := r.request(ctx, http.MethodPost, "/v1/ask", map[string]any{"question": question})
	if err != nil {
		_, _ = fmt.Fprintf(r.stderr, "request failed: %v\n", err)
		return
	}
	if code >= 400 {
		_, _ = fmt.Fprintf(r.stderr, "http %d: %s\n", code, strings.TrimSpace(string(body)))
		return
	}

	var response struct {
		SQL    string `json:"sql"`
		Answer string `json:"answer"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		_, _ = fmt.Fprintf(r.stderr, "decode response: %v\n", err)
		return
	}
	if response.SQL != "" {
		_, _ = fmt.Fprintf(r.stdout, "sql: %s\n", response.SQL)
	}
	_, _ = fmt.Fprintf(r.stdout, "%s\n", response.Answer)
}

func (r *runner) do(ctx context.Context, method, path string, payload map[string]any) int {
	code, body, err := r.request(ctx, method, path, payload)
	if err != nil {
		_, _ = fmt.Fprintf(r.stderr, "request failed: %v\n", err)
		return 1
	}
	if code >= 400 {
		_, _ = fmt.Fprintf(r.stderr, "http %d: %s\n", code, strings.TrimSpace(string(body)))
		return 1
	}
	if pretty, ok := prettyJSON(body); ok {
		_, _ = fmt.Fprintln(r.stdout, pretty)
		return 0
	}
	if len(body) > 0 {
		_, _ = fmt.Fprintln(r.stdout, string(body))
	}
	return 0
}

func (r *runner) request(ctx context.Context, method, path string, payload map[string]any) (int, []byte, error) {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, err
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, r.baseURL+path, body)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if r.apiKey != "" {
		req.Header.Set("X-API-Key", r.apiKey)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, responseBody, nil
}

func prettyJSON(raw []byte) (string, bool) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return "", false
	}
	var anyValue any
	if err := json.Unmarshal(raw, &anyValue); err != nil {
		return "", false
	}
	formatted, err := json.MarshalIndent(anyValue, "", "  ")
	if err != nil {
		return "", false
	}
	return string(formatted), true
}

func writeUsage(w io.Writer) {
	_, _ = fmt.Fprintln(w, "usage: tabletalkctl [flags] <command> [args]")
	_, _ = fmt.Fprintln(w, "")
	_, _ = fmt.Fprintln(w, "commands:")
	_, _ = fmt.Fprintln(w, "  health             GET /v1/health")
	_, _ = fmt.Fprintln(w, "  ready              GET /v1/ready")
	_, _ = fmt.Fprintln(w, "  schema             GET /v1/schema")
	_, _ = fmt.Fprintln(w, "  history            GET /v1/history")
	_, _ = fmt.Fprintln(w, "  ask <question>     POST /v1/ask")
	_, _ = fmt.Fprintln(w, "  plan <question>    POST /v1/plan")
	_, _ = fmt.Fprintln(w, "  query <sql>        POST /v1/query")
	_, _ = fmt.Fprintln(w, "  repl               interactive question loop")
}

func firstNonEmpty(a, b string) string {
	if strings.TrimSpace(a) != "" {
		return strings.TrimSpace(a)
	}
	return b
}

func durationOr(v, fallback time.Duration) time.Duration {
	if v > 0 {
		return v
	}
	return fallback
}
