package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/nnnkkk7/snowflake-gateway/pkg/query"
	"github.com/nnnkkk7/snowflake-gateway/server/apierror"
	"github.com/nnnkkk7/snowflake-gateway/server/types"
)

// StatementHandler serves the statement history.
type StatementHandler struct {
	gw Gateway
}

// NewStatementHandler creates a new statement handler.
func NewStatementHandler(gw Gateway) *StatementHandler {
	return &StatementHandler{gw: gw}
}

// GetStatement handles GET /api/v1/statements/{handle}.
func (h *StatementHandler) GetStatement(w http.ResponseWriter, r *http.Request) {
	handle := chi.URLParam(r, "handle")

	stmt, ok := h.gw.Statement(handle)
	if !ok {
		sendError(w, http.StatusNotFound, apierror.New(apierror.KindInvalidRequest, "statement not found: "+handle))
		return
	}

	writeJSON(w, http.StatusOK, buildStatementResponse(stmt))
}

func buildStatementResponse(stmt query.Statement) types.StatementResponse {
	resp := types.StatementResponse{
		StatementHandle: stmt.Handle,
		Status:          string(stmt.Status),
		Statement:       stmt.SQLText,
		Role:            stmt.Role,
		Warehouse:       stmt.Warehouse,
		Database:        stmt.Database,
		Schema:          stmt.Schema,
		CreatedOn:       stmt.CreatedOn.Unix(),
	}
	if stmt.CompletedOn != nil {
		resp.CompletedOn = stmt.CompletedOn.Unix()
		resp.DurationMillis = stmt.Duration().Milliseconds()
	}

	switch stmt.Status {
	case query.StatementStatusRunning:
		resp.Code = types.ResponseCodeStatementPending
		resp.SQLState = types.SQLState00000
	case query.StatementStatusSuccess:
		resp.Code = types.ResponseCodeSuccess
		resp.SQLState = types.SQLState00000
		if stmt.Result != nil {
			resp.NumRows = len(stmt.Result.Rows)
			resp.Data = stmt.Result.Rows
		}
	case query.StatementStatusFailed:
		resp.SQLState = types.SQLState42000
		if stmt.Error != nil {
			resp.Code = stmt.Error.Code
			resp.Error = stmt.Error.ToResponse()
		}
	}
	return resp
}
