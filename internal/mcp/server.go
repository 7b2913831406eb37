// Package mcp exposes plan extraction, validation, preview and execution as
// MCP tools over stdio or SSE.
package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/stevehiehn/spren/internal/planner"
	"github.com/stevehiehn/spren/internal/shell"
)

// JSONRPCRequest is a JSON-RPC 2.0 request.
type JSONRPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// JSONRPCResponse is a JSON-RPC 2.0 response.
type JSONRPCResponse struct {
	JSONRPC string    `json:"jsonrpc"`
	ID      any       `json:"id"`
	Result  any       `json:"result,omitempty"`
	Error   *RPCError `json:"error,omitempty"`
}

// RPCError is a JSON-RPC error object.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

const (
	codeParse          = -32700
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeInternal       = -32603
)

// Server holds what tool calls need. Planner may be nil, in which case
// plan.generate reports that no model is configured.
type Server struct {
	WorkDir      string
	Profile      shell.Profile
	Patterns     []string
	ArtifactsDir string // empty disables run artifacts
	Planner      *planner.Planner
	Logger       *zap.Logger
	Version      string
}

func (s *Server) logger() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}

// Serve reads one request per line from in and writes one response per line
// to out until in is exhausted or ctx is cancelled. Notifications get no
// response.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 1024*1024), 4*1024*1024)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := scanner.Bytes()
		if len(strings.TrimSpace(string(line))) == 0 {
			continue
		}
		var req JSONRPCRequest
		if err := json.Unmarshal(line, &req); err != nil {
			s.writeResponse(out, &JSONRPCResponse{
				JSONRPC: "2.0",
				Error:   &RPCError{Code: codeParse, Message: "Parse error"},
			})
			continue
		}
		if strings.HasPrefix(req.Method, "notifications/") {
			continue
		}

		s.writeResponse(out, s.handle(ctx, req))
	}
	return scanner.Err()
}

func (s *Server) handle(ctx context.Context, req JSONRPCRequest) *JSONRPCResponse {
	resp := s.dispatch(ctx, req)
	resp.JSONRPC = "2.0"
	resp.ID = req.ID
	return resp
}

func (s *Server) writeResponse(w io.Writer, resp *JSONRPCResponse) {
	fmt.Fprintf(w, "%s\n", s.encode(resp))
}

// encode marshals resp. A result that cannot be encoded is replaced by an
// internal error carrying the request ID.
func (s *Server) encode(resp *JSONRPCResponse) []byte {
	data, err := json.Marshal(resp)
	if err == nil {
		return data
	}
	s.logger().Error("encoding response", zap.Any("id", resp.ID), zap.Error(err))
	data, err = json.Marshal(&JSONRPCResponse{
		JSONRPC: "2.0",
		ID:      resp.ID,
		Error:   &RPCError{Code: codeInternal, Message: "Internal error: " + err.Error()},
	})
	if err != nil {
		// Only the ID can fail here; it came from a decoded request.
		return []byte(`{"jsonrpc":"2.0","id":null,"error":{"code":-32603,"message":"Internal error"}}`)
	}
	return data
}
