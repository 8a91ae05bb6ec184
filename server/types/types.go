// Package types provides the request and response bodies of the HTTP transport.
package types

import (
	"github.com/nnnkkk7/snowflake-gateway/pkg/query"
	"github.com/nnnkkk7/snowflake-gateway/server/apierror"
)

// SQL states reported with statement responses.
const (
	SQLState00000 = "00000" // Success
	SQLState02000 = "02000" // No data
	SQLState42000 = "42000" // Syntax error or access rule violation
)

// Response codes reported with statement responses.
const (
	ResponseCodeSuccess          = "090001" // Statement succeeded
	ResponseCodeStatementPending = "333334" // Statement still running
)

// Tool Types

// ToolsResponse is the body of GET /tools.
type ToolsResponse struct {
	Tools []Tool `json:"tools"`
}

// Tool describes one invocable capability.
type Tool struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	InputSchema InputSchema `json:"inputSchema"`
}

// InputSchema is the JSON schema of a tool's arguments.
type InputSchema struct {
	Type       string                    `json:"type"`
	Properties map[string]PropertySchema `json:"properties"`
	Required   []string                  `json:"required"`
}

// PropertySchema describes one argument.
type PropertySchema struct {
	Type        string `json:"type"`
	Description string `json:"description"`
}

// CallToolRequest is the body of POST /tools/call.
type CallToolRequest struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// CallToolResponse is the result of a tool call. Query failures are reported
// here with IsError set, never as an HTTP error status.
type CallToolResponse struct {
	Content         []TextContent           `json:"content"`
	IsError         bool                    `json:"isError"`
	StatementHandle string                  `json:"statementHandle,omitempty"`
	Error           *apierror.ErrorResponse `json:"error,omitempty"`
}

// TextContent is a text block of a tool result.
type TextContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// NewTextContent creates a text content block.
func NewTextContent(text string) TextContent {
	return TextContent{Type: "text", Text: text}
}

// Statement Types

// StatementResponse is the body of GET /api/v1/statements/{handle}.
type StatementResponse struct {
	StatementHandle string                  `json:"statementHandle"`
	Code            string                  `json:"code"`
	SQLState        string                  `json:"sqlState"`
	Status          string                  `json:"status"`
	Statement       string                  `json:"statement"`
	Role            string                  `json:"role,omitempty"`
	Warehouse       string                  `json:"warehouse,omitempty"`
	Database        string                  `json:"database,omitempty"`
	Schema          string                  `json:"schema,omitempty"`
	CreatedOn       int64                   `json:"createdOn"`
	CompletedOn     int64                   `json:"completedOn,omitempty"`
	DurationMillis  int64                   `json:"durationMillis,omitempty"`
	NumRows         int                     `json:"numRows"`
	Data            []query.Row             `json:"data,omitempty"`
	Error           *apierror.ErrorResponse `json:"error,omitempty"`
}

// Health Types

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status     string       `json:"status"`
	Connection string       `json:"connection"`
	Session    *SessionInfo `json:"session,omitempty"`
}

// SessionInfo is the verified session context.
type SessionInfo struct {
	Role      string `json:"role"`
	Warehouse string `json:"warehouse"`
	Database  string `json:"database"`
	Schema    string `json:"schema"`
}
