package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/open-teleop/console/domain/connection"
	"github.com/open-teleop/console/domain/teleop"
	customlog "github.com/open-teleop/console/pkg/log"
	"github.com/open-teleop/console/pkg/scheduler"
	"github.com/open-teleop/console/services"
)

// ConsoleHandler holds dependencies for the console API endpoints.
type ConsoleHandler struct {
	console services.ConsoleService
	logger  customlog.Logger
}

// NewConsoleHandler creates a new handler for console endpoints.
func NewConsoleHandler(console services.ConsoleService, logger customlog.Logger) *ConsoleHandler {
	if console == nil {
		panic("ConsoleService cannot be nil in NewConsoleHandler")
	}
	if logger == nil {
		panic("Logger cannot be nil in NewConsoleHandler")
	}
	return &ConsoleHandler{
		console: console,
		logger:  logger,
	}
}

// RegisterConsoleRoutes registers the console API endpoints with the Fiber app.
func RegisterConsoleRoutes(app *fiber.App, console services.ConsoleService, logger customlog.Logger) {
	h := NewConsoleHandler(console, logger)

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "healthy"})
	})

	apiGroup := app.Group("/api/v1")
	apiGroup.Get("/status", h.handleStatus)
	apiGroup.Get("/log", h.handleLog)
	apiGroup.Get("/keymap", h.handleKeyMap)
	apiGroup.Get("/diagnostics", h.handleDiagnostics)

	apiGroup.Post("/connect", h.action("connect", console.Connect))
	apiGroup.Post("/disconnect", h.action("disconnect", console.Disconnect))
	apiGroup.Post("/estop", h.action("estop", console.EmergencyStop))
	apiGroup.Post("/ping", h.action("ping", console.Ping))
	apiGroup.Post("/speed/:level", h.handleSpeed)
	apiGroup.Post("/video/start", h.action("video start", console.StartVideo))
	apiGroup.Post("/video/stop", h.action("video stop", console.StopVideo))
	apiGroup.Post("/camera/reset", h.action("camera reset", console.ResetCamera))

	logger.Infof("Registered console API endpoints under /api/v1")
}

// statusFor maps console errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, connection.ErrNotConnected):
		return http.StatusConflict
	case errors.Is(err, teleop.ErrUnknownSpeedLevel), errors.Is(err, teleop.ErrUnknownDirection):
		return http.StatusBadRequest
	case errors.Is(err, scheduler.ErrLoopStopped):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func (h *ConsoleHandler) fail(c *fiber.Ctx, what string, err error) error {
	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		h.logger.Errorf("Console %s failed: %v", what, err)
	} else {
		h.logger.Debugf("Console %s rejected: %v", what, err)
	}
	return c.Status(code).JSON(fiber.Map{
		"error": err.Error(),
	})
}

func (h *ConsoleHandler) action(what string, fn func() error) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := fn(); err != nil {
			return h.fail(c, what, err)
		}
		return h.handleStatus(c)
	}
}

func (h *ConsoleHandler) handleStatus(c *fiber.Ctx) error {
	snapshot, err := h.console.Snapshot()
	if err != nil {
		return h.fail(c, "status", err)
	}
	return c.JSON(fiber.Map{
		"status": "success",
		"state":  snapshot,
	})
}

func (h *ConsoleHandler) handleLog(c *fiber.Ctx) error {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return c.Status(http.StatusBadRequest).JSON(fiber.Map{
				"error": "limit must be a non-negative integer",
			})
		}
		limit = n
	}
	entries, err := h.console.Log(limit)
	if err != nil {
		return h.fail(c, "log", err)
	}
	return c.JSON(fiber.Map{
		"status":  "success",
		"entries": entries,
	})
}

func (h *ConsoleHandler) handleKeyMap(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status": "success",
		"keys":   teleop.KeyMap(),
	})
}

func (h *ConsoleHandler) handleDiagnostics(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "success",
		"metrics": h.console.Diagnostics(),
	})
}

func (h *ConsoleHandler) handleSpeed(c *fiber.Ctx) error {
	level, err := teleop.ParseSpeedLevel(c.Params("level"))
	if err != nil {
		return h.fail(c, "speed", err)
	}
	if err := h.console.SetSpeedLevel(level); err != nil {
		return h.fail(c, "speed", err)
	}
	return h.handleStatus(c)
}
