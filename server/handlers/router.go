package handlers

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
)

// NewRouter mounts every HTTP route of the gateway.
func NewRouter(gw Gateway, logger logrus.FieldLogger) *chi.Mux {
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	toolsHandler := NewToolsHandler(gw)
	statementHandler := NewStatementHandler(gw)
	healthHandler := NewHealthHandler(gw)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{
		Logger:  logger.WithField("component", "http"),
		NoColor: true,
	}))
	r.Use(middleware.Recoverer)

	r.Get("/tools", toolsHandler.ListTools)
	r.Post("/tools/call", toolsHandler.CallTool)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/statements/{handle}", statementHandler.GetStatement)
	})

	r.Get("/health", healthHandler.Health)

	return r
}
