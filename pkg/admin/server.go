// Package admin exposes the HTTP+WS surface operators use to inspect and
// steer a running service: read and patch tuning settings, list and pause
// sessions, edit workflows in place, and watch a session's debug event
// stream live.
package admin

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"

	"github.com/voxdial/scheduler/internal/config"
	"github.com/voxdial/scheduler/pkg/workflow"
)

// Server is the admin HTTP+WS surface.
type Server struct {
	app  *fiber.App
	host string
	port int

	apiKey    string
	debugOpen bool

	runtime   *config.RuntimeSettings
	workflows *workflow.Registry
}

// New builds a Server bound to host:port, gating every route through the
// apiKey/debugOpen matrix, and backed by runtime (tuning settings) and
// workflows (the live workflow registry).
func New(host string, port int, apiKey string, debugOpen bool, runtime *config.RuntimeSettings, workflows *workflow.Registry) *Server {
	s := &Server{
		host:      host,
		port:      port,
		apiKey:    apiKey,
		debugOpen: debugOpen,
		runtime:   runtime,
		workflows: workflows,
	}

	app := fiber.New(fiber.Config{
		AppName:               "scheduler admin",
		DisableStartupMessage: true,
	})
	app.Use(cors.New())

	auth := requireAdminToken(s.apiKey, s.debugOpen)

	api := app.Group("/api", auth)
	api.Get("/config", s.handleGetConfig)
	api.Patch("/config", s.handlePatchConfig)

	api.Get("/sessions", s.handleListSessions)
	api.Get("/sessions/:id", s.handleGetSession)
	api.Post("/sessions/:id/pause", s.handlePauseSession)
	api.Post("/sessions/:id/resume", s.handleResumeSession)

	api.Get("/workflows", s.handleListWorkflows)
	api.Get("/workflows/:name", s.handleGetWorkflow)
	api.Put("/workflows/:name", s.handlePutWorkflow)
	api.Patch("/workflows/:name/states/:stateID", s.handlePatchWorkflowState)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/sessions/:id/debug", websocket.New(s.handleDebugWS))

	s.app = app
	return s
}

// Start runs the admin server, blocking until it stops or errors.
func (s *Server) Start() error {
	return s.app.Listen(fmt.Sprintf("%s:%d", s.host, s.port))
}

// StartAsync runs Start in a goroutine, logging any terminal error.
func (s *Server) StartAsync(onError func(error)) {
	go func() {
		if err := s.Start(); err != nil && onError != nil {
			onError(err)
		}
	}()
}

// Shutdown gracefully stops the admin server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
