// Package mcp serves the markdown tools over the Model Context Protocol.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/samsaffron/md-tools/internal/tools"
)

// ToolSource lists the tools a server exposes.
type ToolSource interface {
	Tools() []tools.Tool
}

// StaticTools is a fixed ToolSource.
type StaticTools []tools.Tool

// Tools implements ToolSource.
func (s StaticTools) Tools() []tools.Tool { return s }

// Server exposes a tool set as MCP tools.
type Server struct {
	server *mcp.Server
	names  []string
}

// NewServer creates an MCP server with one MCP tool per tool in source.
func NewServer(source ToolSource, version string) (*Server, error) {
	s := &Server{
		server: mcp.NewServer(&mcp.Implementation{
			Name:    "md-tools",
			Version: version,
		}, nil),
	}

	for _, tool := range source.Tools() {
		spec := tool.Spec()
		if spec.Schema == nil || spec.Schema["type"] != "object" {
			return nil, fmt.Errorf("tool %s: input schema must be an object", spec.Name)
		}
		s.server.AddTool(&mcp.Tool{
			Name:        spec.Name,
			Description: spec.Description,
			InputSchema: spec.Schema,
			Annotations: annotations(spec.Name),
		}, handler(tool))
		s.names = append(s.names, spec.Name)
	}

	return s, nil
}

// ToolNames returns the names of the registered tools.
func (s *Server) ToolNames() []string {
	return s.names
}

// annotations describes the side effects of a tool to clients.
func annotations(name string) *mcp.ToolAnnotations {
	closed := false
	switch tools.GetToolKind(name) {
	case tools.KindRead, tools.KindSearch:
		return &mcp.ToolAnnotations{ReadOnlyHint: true, IdempotentHint: true, OpenWorldHint: &closed}
	case tools.KindEdit:
		destructive := true
		return &mcp.ToolAnnotations{DestructiveHint: &destructive, OpenWorldHint: &closed}
	}
	return nil
}

// handler adapts a tool to an MCP tool handler. Tool failures are reported
// as error results so the calling agent can read the payload.
func handler(tool tools.Tool) mcp.ToolHandler {
	name := tool.Spec().Name
	return func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := json.RawMessage(req.Params.Arguments)
		start := time.Now()

		out, err := tool.Execute(ctx, args)
		if err != nil {
			slog.Error("tool call failed", "tool", name, "error", err)
			out = tools.ErrorOutput(fmt.Sprintf("Error [%s]: %v", tools.ErrExecutionFailed, err))
		}

		slog.Debug("tool call",
			"tool", name,
			"target", tool.Preview(args),
			"is_error", out.IsError,
			"bytes", len(out.Content),
			"duration", time.Since(start))

		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: out.Content}},
			IsError: out.IsError,
		}, nil
	}
}

// Connect serves a single session over transport.
func (s *Server) Connect(ctx context.Context, transport mcp.Transport) (*mcp.ServerSession, error) {
	return s.server.Connect(ctx, transport, nil)
}

// Run starts the MCP server over stdio.
// It blocks until the context is cancelled or the client disconnects.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// Handler returns a streamable HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return mcp.NewStreamableHTTPHandler(func(_ *http.Request) *mcp.Server {
		return s.server
	}, nil)
}

// RunHTTP starts the MCP server over HTTP on the specified address.
// It blocks until the context is cancelled or an error occurs.
func (s *Server) RunHTTP(ctx context.Context, addr string) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown when context is cancelled
	go func() {
		<-ctx.Done()
		httpServer.Shutdown(context.Background()) //nolint:errcheck
	}()

	slog.Info("mcp server listening", "addr", addr)
	err := httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}
