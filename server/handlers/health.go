package handlers

import (
	"net/http"

	"github.com/nnnkkk7/snowflake-gateway/server/types"
)

// HealthHandler reports process and connection health.
type HealthHandler struct {
	gw Gateway
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(gw Gateway) *HealthHandler {
	return &HealthHandler{gw: gw}
}

// Health handles GET /health. The process is healthy whether or not a
// connection is open; the connection is established on the next query.
func (h *HealthHandler) Health(w http.ResponseWriter, _ *http.Request) {
	health := h.gw.Health()

	resp := types.HealthResponse{
		Status:     "ok",
		Connection: string(health.State),
	}
	if health.Session != nil {
		resp.Session = &types.SessionInfo{
			Role:      health.Session.Role,
			Warehouse: health.Session.Warehouse,
			Database:  health.Session.Database,
			Schema:    health.Session.Schema,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}
