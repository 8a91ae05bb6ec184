// Package handlers provides HTTP handlers for the query gateway.
package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/nnnkkk7/snowflake-gateway/pkg/config"
	"github.com/nnnkkk7/snowflake-gateway/pkg/gateway"
	"github.com/nnnkkk7/snowflake-gateway/pkg/query"
	"github.com/nnnkkk7/snowflake-gateway/server/apierror"
	"github.com/nnnkkk7/snowflake-gateway/server/types"
)

// Gateway is the service surface the HTTP transport needs.
type Gateway interface {
	ExecuteQuery(ctx context.Context, sql string) gateway.Outcome
	Statement(handle string) (query.Statement, bool)
	Health() gateway.Health
}

// ToolsHandler serves tool discovery and invocation.
type ToolsHandler struct {
	gw Gateway
}

// NewToolsHandler creates a new tools handler.
func NewToolsHandler(gw Gateway) *ToolsHandler {
	return &ToolsHandler{gw: gw}
}

// executeQueryTool is the single tool the gateway exposes.
var executeQueryTool = types.Tool{
	Name:        config.ToolExecuteQuery,
	Description: config.ToolExecuteQueryDescription,
	InputSchema: types.InputSchema{
		Type: "object",
		Properties: map[string]types.PropertySchema{
			config.ToolQueryArgument: {Type: "string", Description: config.ToolQueryArgumentDesc},
		},
		Required: []string{config.ToolQueryArgument},
	},
}

// ListTools handles GET /tools.
func (h *ToolsHandler) ListTools(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, types.ToolsResponse{Tools: []types.Tool{executeQueryTool}})
}

// CallTool handles POST /tools/call. Only a malformed body is an HTTP error;
// every other failure is a tool result with isError set.
func (h *ToolsHandler) CallTool(w http.ResponseWriter, r *http.Request) {
	var req types.CallToolRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendError(w, http.StatusBadRequest, apierror.Wrap(apierror.KindInvalidRequest, "invalid request body", err))
		return
	}

	if req.Name != config.ToolExecuteQuery {
		writeJSON(w, http.StatusOK, toolError(fmt.Sprintf("Unknown tool: %s", req.Name), nil))
		return
	}

	sql, ok := req.Arguments[config.ToolQueryArgument].(string)
	if !ok {
		apiErr := apierror.New(apierror.KindInvalidRequest, fmt.Sprintf("argument %q must be a string", config.ToolQueryArgument))
		writeJSON(w, http.StatusOK, toolError("Error executing query: "+apiErr.Error(), apiErr))
		return
	}

	out := h.gw.ExecuteQuery(r.Context(), sql)
	resp := types.CallToolResponse{
		Content:         []types.TextContent{types.NewTextContent(out.Text)},
		IsError:         out.IsError,
		StatementHandle: out.Handle,
	}
	if out.Err != nil {
		resp.Error = out.Err.ToResponse()
	}
	writeJSON(w, http.StatusOK, resp)
}

func toolError(text string, apiErr *apierror.Error) types.CallToolResponse {
	resp := types.CallToolResponse{
		Content: []types.TextContent{types.NewTextContent(text)},
		IsError: true,
	}
	if apiErr != nil {
		resp.Error = apiErr.ToResponse()
	}
	return resp
}

// writeJSON writes v with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// sendError sends an error response.
func sendError(w http.ResponseWriter, status int, err *apierror.Error) {
	writeJSON(w, status, err.ToResponse())
}
