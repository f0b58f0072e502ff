// Package mcp serves a tools.Registry as an MCP server over stdio.
//
// Protocol handling (initialize, ping, tools/list, tools/call and JSON-RPC
// framing) comes from mcp-go. This package maps each registered tool onto
// an MCP tool whose handler dispatches back through the registry, so
// argument validation and audit logging stay in one place.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"asyncshell/internal/logging"
	"asyncshell/internal/tools"

	protocol "github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"
)

// DefaultWorkers is the number of tool calls served concurrently.
const DefaultWorkers = 8

// ServerInfo identifies this server in the initialize response.
type ServerInfo struct {
	Name    string
	Version string
}

// Option configures a Server.
type Option func(*Server)

// WithWorkers sets how many tool calls run at once. Other requests, such as
// ping, are answered by the reader and never wait on a tool call.
func WithWorkers(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.workers = n
		}
	}
}

// Server exposes a tool registry over MCP.
type Server struct {
	registry *tools.Registry
	mcp      *server.MCPServer
	workers  int
}

// NewServer creates a server publishing every tool currently in registry.
func NewServer(registry *tools.Registry, info ServerInfo, opts ...Option) (*Server, error) {
	s := &Server{
		registry: registry,
		workers:  DefaultWorkers,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.mcp = server.NewMCPServer(info.Name, info.Version,
		server.WithToolCapabilities(false),
		server.WithToolHandlerMiddleware(logCalls),
		server.WithRecovery(),
	)

	for _, tool := range registry.All() {
		schema, err := json.Marshal(tool.Schema.InputSchema())
		if err != nil {
			return nil, fmt.Errorf("failed to encode schema for %s: %w", tool.Name, err)
		}
		s.mcp.AddTool(protocol.NewToolWithRawSchema(tool.Name, tool.Description, schema), s.handler(tool.Name))
	}

	return s, nil
}

// handler runs the named tool through the registry. Tool failures,
// including rejected arguments, are returned as error results rather than
// protocol errors so the caller sees the message.
func (s *Server) handler(name string) server.ToolHandlerFunc {
	return func(ctx context.Context, req protocol.CallToolRequest) (*protocol.CallToolResult, error) {
		result, err := s.registry.Execute(ctx, name, req.GetArguments())
		if result == nil {
			return nil, err
		}
		if !result.IsSuccess() {
			return protocol.NewToolResultError(result.Error.Error()), nil
		}
		return protocol.NewToolResultText(result.Result), nil
	}
}

func logCalls(next server.ToolHandlerFunc) server.ToolHandlerFunc {
	return func(ctx context.Context, req protocol.CallToolRequest) (*protocol.CallToolResult, error) {
		start := time.Now()
		result, err := next(ctx, req)
		logging.TransportDebug("tools/call %s handled in %v (error=%v)",
			req.Params.Name, time.Since(start), err != nil || (result != nil && result.IsError))
		return result, err
	}
}

// Serve answers requests read from in until in reaches EOF or ctx ends.
// On EOF, queued tool calls are answered before Serve returns.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	listenCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	stdio := server.NewStdioServer(s.mcp)
	stdio.SetErrorLogger(zap.NewStdLog(logging.Zap().Named(string(logging.CategoryTransport))))
	server.WithWorkerPoolSize(s.workers)(stdio)

	logging.Transport("serving %d tool(s) on stdio: %v", s.registry.Count(), s.registry.Names())
	err := stdio.Listen(listenCtx, in, out)
	if err != nil && ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		err = nil
	}
	if err != nil {
		logging.TransportWarn("stdio server stopped: %v", err)
		return fmt.Errorf("stdio server: %w", err)
	}

	logging.Transport("stdio server stopped")
	return nil
}
