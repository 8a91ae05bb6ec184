// Package mcpserver exposes the gateway as a Model Context Protocol tool server.
package mcpserver

import (
	"context"
	"io"
	"log"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/nnnkkk7/snowflake-gateway/pkg/config"
	"github.com/nnnkkk7/snowflake-gateway/pkg/gateway"
	"github.com/sirupsen/logrus"
)

// Version is reported to MCP clients during initialization.
const Version = "0.1.0"

// QueryService runs one statement and renders the outcome.
type QueryService interface {
	ExecuteQuery(ctx context.Context, sql string) gateway.Outcome
}

// Server is the MCP tool server.
type Server struct {
	svc    QueryService
	mcp    *server.MCPServer
	logger logrus.FieldLogger
}

// NewServer creates a server exposing the execute_query tool.
func NewServer(svc QueryService, logger logrus.FieldLogger) *Server {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	s := &Server{
		svc:    svc,
		mcp:    server.NewMCPServer(config.ServerName, Version, server.WithToolCapabilities(false)),
		logger: logger.WithField("component", "mcp"),
	}
	s.mcp.AddTool(ExecuteQueryTool(), s.handleExecuteQuery)
	return s
}

// ExecuteQueryTool describes the single tool.
func ExecuteQueryTool() mcp.Tool {
	return mcp.NewTool(config.ToolExecuteQuery,
		mcp.WithDescription(config.ToolExecuteQueryDescription),
		mcp.WithString(config.ToolQueryArgument,
			mcp.Required(),
			mcp.Description(config.ToolQueryArgumentDesc),
		),
	)
}

// handleExecuteQuery never returns a protocol error for a failed query; the
// failure is reported in the tool result instead.
func (s *Server) handleExecuteQuery(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sql, err := req.RequireString(config.ToolQueryArgument)
	if err != nil {
		return mcp.NewToolResultError("Error executing query: " + err.Error()), nil
	}

	out := s.svc.ExecuteQuery(ctx, sql)
	if out.IsError {
		return mcp.NewToolResultError(out.Text), nil
	}
	return mcp.NewToolResultText(out.Text), nil
}

// Serve speaks MCP over in and out until ctx is done or in is closed.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	stdio := server.NewStdioServer(s.mcp)
	stdio.SetErrorLogger(log.New(s.logger.WithField("stream", "stdio").WriterLevel(logrus.ErrorLevel), "", 0))

	s.logger.Info("Starting server")
	defer s.logger.Info("Server shutting down")
	return stdio.Listen(ctx, in, out)
}
