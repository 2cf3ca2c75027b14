package api

import (
	"net/http"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/papercomputeco/recall/pkg/service"
)

// Server is the API server for the recall memory service.
type Server struct {
	config  Config
	service *service.Service
	logger  *zap.Logger
	app     *fiber.App
}

// NewServer creates a new API server. The service is injected to allow
// sharing with the MCP surface and the reconciler. A non-nil mcpHandler is
// mounted at /mcp.
func NewServer(config Config, svc *service.Service, mcpHandler http.Handler, logger *zap.Logger) *Server {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	s := &Server{
		config:  config,
		service: svc,
		logger:  logger,
		app:     app,
	}

	app.Get("/ping", s.handlePing)
	app.Get("/version", s.handleVersion)
	app.Get("/memory/stats", s.handleStats)
	app.Get("/memory/:user_id", s.handleGetMemory)
	app.Post("/memory/:user_id", s.handleCreateMemory)
	app.Patch("/memory/:user_id", s.handlePatchMemory)

	if mcpHandler != nil {
		app.All("/mcp", adaptor.HTTPHandler(mcpHandler))
	}

	return s
}

// Run starts the API server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting API server",
		zap.String("listen", s.config.ListenAddr),
	)
	return s.app.Listen(s.config.ListenAddr)
}

// Shutdown gracefully shuts down the API server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
