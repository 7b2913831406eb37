package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/stevehiehn/spren/internal/artifact"
	"github.com/stevehiehn/spren/internal/chain"
	"github.com/stevehiehn/spren/internal/confirm"
	"github.com/stevehiehn/spren/internal/engine"
	"github.com/stevehiehn/spren/internal/plan"
	"github.com/stevehiehn/spren/internal/shell"
)

type toolDef struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	InputSchema any    `json:"inputSchema"`
}

func objectSchema(props map[string]any, required ...string) map[string]any {
	s := map[string]any{"type": "object", "properties": props}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

var (
	strProp  = map[string]any{"type": "string"}
	planProp = map[string]any{
		"type":        "string",
		"description": "Plan as JSON or YAML, or a model reply containing one",
	}
	fileProp  = map[string]any{"type": "string", "description": "Path to a plan file"}
	shellProp = map[string]any{"type": "string", "enum": []string{"posix", "cmd", "powershell"}}
)

var builtinTools = []toolDef{
	{Name: "plan.extract", Description: "Recover the JSON plan object from free-form model output",
		InputSchema: objectSchema(map[string]any{"text": strProp}, "text")},
	{Name: "plan.validate", Description: "Validate a plan",
		InputSchema: objectSchema(map[string]any{"plan": planProp, "file": fileProp})},
	{Name: "plan.preview", Description: "Describe each step of a plan without running it",
		InputSchema: objectSchema(map[string]any{"plan": planProp, "file": fileProp, "shell": shellProp})},
	{Name: "plan.dry_run", Description: "List the exact process each step would launch",
		InputSchema: objectSchema(map[string]any{"plan": planProp, "file": fileProp, "shell": shellProp})},
	{Name: "plan.run", Description: "Execute a plan. Steps needing confirmation run only when approve is true",
		InputSchema: objectSchema(map[string]any{
			"plan": planProp, "file": fileProp, "shell": shellProp,
			"approve": map[string]any{"type": "boolean"},
		})},
	{Name: "plan.generate", Description: "Ask the configured model for a plan; nothing is executed",
		InputSchema: objectSchema(map[string]any{"query": strProp, "shell": shellProp}, "query")},
	{Name: "plan.schema", Description: "Return the plan format",
		InputSchema: objectSchema(map[string]any{})},
}

func (s *Server) dispatch(ctx context.Context, req JSONRPCRequest) *JSONRPCResponse {
	switch req.Method {
	case "initialize":
		version := s.Version
		if version == "" {
			version = "dev"
		}
		return &JSONRPCResponse{Result: map[string]any{
			"protocolVersion": "2024-11-05",
			"capabilities":    map[string]any{"tools": map[string]any{}},
			"serverInfo":      map[string]any{"name": "spren", "version": version},
		}}
	case "tools/list":
		return &JSONRPCResponse{Result: map[string]any{"tools": builtinTools}}
	case "tools/call":
		return s.handleToolCall(ctx, req.Params)
	case "ping":
		return &JSONRPCResponse{Result: map[string]any{}}
	default:
		return &JSONRPCResponse{Error: &RPCError{Code: codeMethodNotFound, Message: "Method not found"}}
	}
}

type toolCallParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

type toolArgs struct {
	Text    string `json:"text"`
	Plan    string `json:"plan"`
	File    string `json:"file"`
	Query   string `json:"query"`
	Shell   string `json:"shell"`
	Approve bool   `json:"approve"`
}

func (s *Server) handleToolCall(ctx context.Context, params json.RawMessage) *JSONRPCResponse {
	var tc toolCallParams
	if err := json.Unmarshal(params, &tc); err != nil {
		return &JSONRPCResponse{Error: &RPCError{Code: codeInvalidParams, Message: "Invalid params"}}
	}
	var args toolArgs
	if len(tc.Arguments) > 0 {
		if err := json.Unmarshal(tc.Arguments, &args); err != nil {
			return &JSONRPCResponse{Error: &RPCError{Code: codeInvalidParams, Message: "Invalid arguments: " + err.Error()}}
		}
	}
	s.logger().Debug("tool call", zap.String("tool", tc.Name))

	switch tc.Name {
	case "plan.extract":
		obj, err := plan.Extract(args.Text)
		if err != nil {
			return toolError(err)
		}
		return &JSONRPCResponse{Result: toolContent(obj)}
	case "plan.validate":
		if _, err := s.loadPlan(args); err != nil {
			return toolError(err)
		}
		return &JSONRPCResponse{Result: toolContent("Plan is valid.")}
	case "plan.preview":
		c, profile, err := s.loadChain(args)
		if err != nil {
			return toolError(err)
		}
		return &JSONRPCResponse{Result: toolContent(engine.Preview(c, profile))}
	case "plan.dry_run":
		c, profile, err := s.loadChain(args)
		if err != nil {
			return toolError(err)
		}
		return toolJSON(engine.Invocations(c, profile), false)
	case "plan.run":
		return s.toolRun(ctx, args)
	case "plan.generate":
		return s.toolGenerate(ctx, args)
	case "plan.schema":
		return &JSONRPCResponse{Result: toolContent(schemaText)}
	}
	return &JSONRPCResponse{Error: &RPCError{Code: codeInvalidParams, Message: "Unknown tool: " + tc.Name}}
}

func (s *Server) toolRun(ctx context.Context, args toolArgs) *JSONRPCResponse {
	c, profile, err := s.loadChain(args)
	if err != nil {
		return toolError(err)
	}
	runID := uuid.NewString()
	opts := []engine.Option{
		engine.WithRunID(runID),
		engine.WithWorkDir(s.WorkDir),
		engine.WithConfirmer(confirm.Policy(args.Approve)),
		engine.WithDangerousPatterns(s.Patterns),
		engine.WithLogger(s.logger()),
	}
	var store *artifact.Store
	if s.ArtifactsDir != "" {
		if store, err = artifact.New(s.ArtifactsDir, runID); err != nil {
			return toolError(err)
		}
		opts = append(opts, engine.WithArtifacts(store))
	}
	ex := engine.New(c, profile, opts...)

	_, runErr := ex.ExecuteAll(ctx)
	result := ex.Result(runErr)
	if store != nil {
		if err := store.WriteResult(result); err != nil {
			s.logger().Warn("writing result artifact", zap.Error(err))
		}
	}
	return toolJSON(result, !result.Success)
}

func (s *Server) toolGenerate(ctx context.Context, args toolArgs) *JSONRPCResponse {
	if s.Planner == nil {
		return toolError(errors.New("no model configured; set an API key to enable plan.generate"))
	}
	if args.Query == "" {
		return toolError(errors.New("query is required"))
	}
	p, err := s.Planner.Generate(ctx, args.Query)
	if err != nil {
		return toolError(err)
	}
	return toolJSON(p, false)
}

// loadPlan reads the plan from args.Plan or args.File and validates it.
func (s *Server) loadPlan(args toolArgs) (*plan.Plan, error) {
	var (
		p   *plan.Plan
		err error
	)
	switch {
	case args.Plan != "":
		p, err = plan.Load([]byte(args.Plan))
	case args.File != "":
		p, err = plan.LoadFile(resolvePath(args.File, s.WorkDir))
	default:
		return nil, errors.New("either plan or file is required")
	}
	if err != nil {
		return nil, err
	}
	if err := plan.Validate(p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Server) loadChain(args toolArgs) (*chain.CommandChain, shell.Profile, error) {
	profile := s.Profile
	if args.Shell != "" {
		var err error
		if profile, err = shell.Parse(args.Shell); err != nil {
			return nil, profile, err
		}
	}
	p, err := s.loadPlan(args)
	if err != nil {
		return nil, profile, err
	}
	c, err := chain.Interpret(p, profile, chain.Options{DangerousPatterns: s.Patterns})
	return c, profile, err
}

func toolContent(text string) map[string]any {
	return map[string]any{"content": []map[string]any{{"type": "text", "text": text}}}
}

func toolError(err error) *JSONRPCResponse {
	res := toolContent(err.Error())
	res["isError"] = true
	return &JSONRPCResponse{Result: res}
}

func toolJSON(v any, isError bool) *JSONRPCResponse {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return toolError(err)
	}
	res := toolContent(string(data))
	if isError {
		res["isError"] = true
	}
	return &JSONRPCResponse{Result: res}
}

func resolvePath(file, workDir string) string {
	if filepath.IsAbs(file) || workDir == "" {
		return file
	}
	return filepath.Join(workDir, file)
}

const schemaText = `Plan format (JSON or YAML):
  version: "1.0" (required)
  explanation: string
  steps: (at least one)
    - command: string (required)
      explanation: string (required)
      is_dangerous: bool
      requires_confirmation: bool
      dependent_on: variable name read as ${name}
      provides: variable name set from this step's output
      validate_output: regular expression the output must match
      estimated_impact:
        cpu_percentage: 0-100
        memory_mb, disk_mb, network_mb, duration_seconds: non-negative
      rollback_command: string
  A model reply may wrap the plan in prose or in {"intent": ..., "details": {...}}.`
