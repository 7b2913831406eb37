package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stevehiehn/spren/internal/planner"
	"github.com/stevehiehn/spren/internal/provider"
	"github.com/stevehiehn/spren/internal/retry"
	"github.com/stevehiehn/spren/internal/shell"
)

const echoPlan = `{"version": "1.0", "explanation": "say hello",
 "steps": [
  {"command": "echo abc123", "explanation": "make an id", "provides": "id"},
  {"command": "echo got ${id}", "explanation": "use it", "dependent_on": "id"}
 ]}`

func newServer(t *testing.T) *Server {
	t.Helper()
	return &Server{WorkDir: t.TempDir(), Profile: shell.Posix, Version: "test"}
}

func call(t *testing.T, s *Server, method string, params any) *JSONRPCResponse {
	t.Helper()
	var raw json.RawMessage
	if params != nil {
		b, err := json.Marshal(params)
		if err != nil {
			t.Fatal(err)
		}
		raw = b
	}
	return s.handle(context.Background(), JSONRPCRequest{JSONRPC: "2.0", ID: 1, Method: method, Params: raw})
}

func callTool(t *testing.T, s *Server, name string, args map[string]any) (string, bool) {
	t.Helper()
	resp := call(t, s, "tools/call", map[string]any{"name": name, "arguments": args})
	if resp.Error != nil {
		t.Fatalf("unexpected RPC error: %s", resp.Error.Message)
	}
	m, ok := resp.Result.(map[string]any)
	if !ok {
		t.Fatalf("unexpected result type: %T", resp.Result)
	}
	content := m["content"].([]map[string]any)
	if len(content) == 0 {
		t.Fatal("empty content")
	}
	isErr, _ := m["isError"].(bool)
	return content[0]["text"].(string), isErr
}

func TestInitializeResponse(t *testing.T) {
	resp := call(t, newServer(t), "initialize", nil)
	if resp.Error != nil {
		t.Fatalf("unexpected error: %v", resp.Error)
	}
	m := resp.Result.(map[string]any)
	if m["protocolVersion"] != "2024-11-05" {
		t.Errorf("unexpected protocol version: %v", m["protocolVersion"])
	}
	info := m["serverInfo"].(map[string]any)
	if info["name"] != "spren" || info["version"] != "test" {
		t.Errorf("unexpected server info: %v", info)
	}
}

func TestToolsList(t *testing.T) {
	resp := call(t, newServer(t), "tools/list", nil)
	tools := resp.Result.(map[string]any)["tools"].([]toolDef)
	want := map[string]bool{
		"plan.extract": false, "plan.validate": false, "plan.preview": false,
		"plan.dry_run": false, "plan.run": false, "plan.generate": false, "plan.schema": false,
	}
	for _, tool := range tools {
		want[tool.Name] = true
	}
	for name, found := range want {
		if !found {
			t.Errorf("missing tool %s", name)
		}
	}
}

func TestUnknownMethodAndTool(t *testing.T) {
	s := newServer(t)
	if resp := call(t, s, "resources/list", nil); resp.Error == nil || resp.Error.Code != codeMethodNotFound {
		t.Errorf("expected method not found, got %+v", resp)
	}
	resp := call(t, s, "tools/call", map[string]any{"name": "plan.nope"})
	if resp.Error == nil || resp.Error.Code != codeInvalidParams {
		t.Errorf("expected invalid params, got %+v", resp)
	}
}

func TestExtractTool(t *testing.T) {
	text, isErr := callTool(t, newServer(t), "plan.extract", map[string]any{
		"text": "Here you go:\n" + echoPlan + "\nEnjoy!",
	})
	if isErr {
		t.Fatalf("extract failed: %s", text)
	}
	if !strings.HasPrefix(text, "{") || !strings.Contains(text, `"version"`) {
		t.Errorf("unexpected extraction: %s", text)
	}

	text, isErr = callTool(t, newServer(t), "plan.extract", map[string]any{"text": "no plan here"})
	if !isErr || !strings.Contains(text, "EXTRACTION_ERROR") {
		t.Errorf("expected extraction error, got %q", text)
	}
}

func TestValidateTool(t *testing.T) {
	s := newServer(t)
	if text, isErr := callTool(t, s, "plan.validate", map[string]any{"plan": echoPlan}); isErr || text != "Plan is valid." {
		t.Errorf("expected valid, got %q", text)
	}

	bad := `{"version": "2.0", "steps": [{"command": "ls", "explanation": "x"}]}`
	if text, isErr := callTool(t, s, "plan.validate", map[string]any{"plan": bad}); !isErr || !strings.Contains(text, "VALIDATION_ERROR") {
		t.Errorf("expected validation error, got %q", text)
	}

	if _, isErr := callTool(t, s, "plan.validate", map[string]any{}); !isErr {
		t.Error("expected error without plan or file")
	}
}

func TestValidateToolFromFile(t *testing.T) {
	s := newServer(t)
	yamlPlan := "version: \"1.0\"\nsteps:\n  - command: echo hi\n    explanation: greet\n"
	if err := os.WriteFile(filepath.Join(s.WorkDir, "plan.yaml"), []byte(yamlPlan), 0o644); err != nil {
		t.Fatal(err)
	}
	if text, isErr := callTool(t, s, "plan.validate", map[string]any{"file": "plan.yaml"}); isErr {
		t.Errorf("expected valid, got %q", text)
	}
	if _, isErr := callTool(t, s, "plan.validate", map[string]any{"file": "missing.yaml"}); !isErr {
		t.Error("expected error for missing file")
	}
}

func TestPreviewTool(t *testing.T) {
	text, isErr := callTool(t, newServer(t), "plan.preview", map[string]any{"plan": echoPlan, "shell": "powershell"})
	if isErr {
		t.Fatalf("preview failed: %s", text)
	}
	for _, want := range []string{"Plan: say hello", "Shell: PowerShell", "provides ${id}", "needs ${id}"} {
		if !strings.Contains(text, want) {
			t.Errorf("preview missing %q:\n%s", want, text)
		}
	}

	if _, isErr := callTool(t, newServer(t), "plan.preview", map[string]any{"plan": echoPlan, "shell": "fish"}); !isErr {
		t.Error("expected error for unknown shell")
	}
}

func TestDryRunTool(t *testing.T) {
	text, isErr := callTool(t, newServer(t), "plan.dry_run", map[string]any{"plan": echoPlan})
	if isErr {
		t.Fatalf("dry run failed: %s", text)
	}
	var invs []struct {
		Step    int      `json:"step"`
		Command string   `json:"command"`
		Argv    []string `json:"argv"`
	}
	if err := json.Unmarshal([]byte(text), &invs); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, text)
	}
	if len(invs) != 2 || invs[1].Command != "echo got ${id}" || invs[0].Argv[0] != "sh" {
		t.Errorf("unexpected invocations: %+v", invs)
	}
}

type runResult struct {
	Success   bool              `json:"success"`
	Status    string            `json:"status"`
	Completed int               `json:"completed"`
	Context   map[string]string `json:"context"`
	Steps     []struct {
		Stdout string `json:"stdout"`
	} `json:"steps"`
	Errors []struct {
		Type string `json:"type"`
	} `json:"errors"`
}

func TestRunTool(t *testing.T) {
	s := newServer(t)
	s.ArtifactsDir = filepath.Join(s.WorkDir, "runs")

	text, isErr := callTool(t, s, "plan.run", map[string]any{"plan": echoPlan})
	if isErr {
		t.Fatalf("run failed: %s", text)
	}
	var res runResult
	if err := json.Unmarshal([]byte(text), &res); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if !res.Success || res.Status != "complete" || res.Completed != 2 {
		t.Errorf("unexpected result: %+v", res)
	}
	if res.Context["id"] != "abc123" {
		t.Errorf("expected id=abc123, got %v", res.Context)
	}
	if got := strings.TrimSpace(res.Steps[1].Stdout); got != "got abc123" {
		t.Errorf("expected substituted output, got %q", got)
	}

	runs, err := os.ReadDir(s.ArtifactsDir)
	if err != nil || len(runs) != 1 {
		t.Fatalf("expected one run directory, got %v (%v)", runs, err)
	}
	if _, err := os.Stat(filepath.Join(s.ArtifactsDir, runs[0].Name(), "result.json")); err != nil {
		t.Errorf("result.json not written: %v", err)
	}
}

func TestRunToolNeedsApproval(t *testing.T) {
	s := newServer(t)
	target := filepath.Join(s.WorkDir, "keep")
	if err := os.Mkdir(target, 0o755); err != nil {
		t.Fatal(err)
	}
	dangerous := `{"version": "1.0", "steps": [{"command": "rm -rf keep", "explanation": "delete"}]}`

	text, isErr := callTool(t, s, "plan.run", map[string]any{"plan": dangerous})
	if !isErr {
		t.Fatalf("expected declined run to be an error: %s", text)
	}
	var res runResult
	_ = json.Unmarshal([]byte(text), &res)
	if res.Completed != 0 || len(res.Errors) != 1 || res.Errors[0].Type != "USER_DECLINED" {
		t.Errorf("unexpected result: %+v", res)
	}
	if _, err := os.Stat(target); err != nil {
		t.Fatal("declined step must not run")
	}

	if text, isErr := callTool(t, s, "plan.run", map[string]any{"plan": dangerous, "approve": true}); isErr {
		t.Fatalf("approved run failed: %s", text)
	}
	if _, err := os.Stat(target); !os.IsNotExist(err) {
		t.Error("approved step should have removed the directory")
	}
}

func TestGenerateTool(t *testing.T) {
	s := newServer(t)
	if _, isErr := callTool(t, s, "plan.generate", map[string]any{"query": "hi"}); !isErr {
		t.Error("expected error without a planner")
	}

	s.Planner = planner.New(provider.NewStatic("Sure:\n"+echoPlan), shell.Posix,
		planner.WithRetry(retry.Config{}))
	text, isErr := callTool(t, s, "plan.generate", map[string]any{"query": "say hello"})
	if isErr {
		t.Fatalf("generate failed: %s", text)
	}
	if !strings.Contains(text, `"provides": "id"`) {
		t.Errorf("unexpected plan: %s", text)
	}
}

func TestSchemaTool(t *testing.T) {
	text, _ := callTool(t, newServer(t), "plan.schema", nil)
	if !strings.Contains(text, "rollback_command") {
		t.Errorf("schema missing fields: %s", text)
	}
}

func TestServeStdio(t *testing.T) {
	in := strings.Join([]string{
		`{"jsonrpc":"2.0","id":1,"method":"initialize"}`,
		`{"jsonrpc":"2.0","method":"notifications/initialized"}`,
		`not json`,
		``,
		`{"jsonrpc":"2.0","id":2,"method":"ping"}`,
	}, "\n")
	var out bytes.Buffer
	if err := newServer(t).Serve(context.Background(), strings.NewReader(in), &out); err != nil {
		t.Fatal(err)
	}

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 responses, got %d:\n%s", len(lines), out.String())
	}
	var parseErr JSONRPCResponse
	if err := json.Unmarshal([]byte(lines[1]), &parseErr); err != nil {
		t.Fatal(err)
	}
	if parseErr.Error == nil || parseErr.Error.Code != codeParse {
		t.Errorf("expected parse error, got %s", lines[1])
	}
	var ping JSONRPCResponse
	if err := json.Unmarshal([]byte(lines[2]), &ping); err != nil {
		t.Fatal(err)
	}
	if ping.ID != float64(2) {
		t.Errorf("expected id 2, got %v", ping.ID)
	}
}

func TestEncodeUnencodableResult(t *testing.T) {
	s := newServer(t)
	data := s.encode(&JSONRPCResponse{JSONRPC: "2.0", ID: 7, Result: map[string]any{"ratio": math.NaN()}})

	var resp struct {
		ID    int       `json:"id"`
		Error *RPCError `json:"error"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		t.Fatalf("encoded response is not JSON: %v (%s)", err, data)
	}
	if resp.ID != 7 {
		t.Errorf("id = %d, want 7", resp.ID)
	}
	if resp.Error == nil || resp.Error.Code != codeInternal {
		t.Fatalf("error = %+v, want code %d", resp.Error, codeInternal)
	}
}

func TestStdioUnencodableResult(t *testing.T) {
	s := newServer(t)
	var out bytes.Buffer
	s.writeResponse(&out, &JSONRPCResponse{JSONRPC: "2.0", ID: 3, Result: math.Inf(1)})
	if !strings.HasSuffix(out.String(), "\n") {
		t.Errorf("response not newline terminated: %q", out.String())
	}
	if !strings.Contains(out.String(), `"code":-32603`) {
		t.Errorf("expected internal error, got %s", out.String())
	}
}
