package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/open-teleop/console/pkg/api"
	customlog "github.com/open-teleop/console/pkg/log"
)

// ServeCommand runs the console behind the HTTP API and the /ws/input socket.
type ServeCommand struct {
	Port      int  `long:"port" description:"Override server.http_port"`
	NoConnect bool `long:"no-connect" description:"Wait for an explicit connect instead of connecting on start"`
}

func (s *ServeCommand) Execute(args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if s.Port > 0 {
		cfg.Server.HTTPPort = s.Port
	}

	logger, err := customlog.NewLogrusLogger(cfg.Logging.Level, cfg.Logging.LogPath, customlog.FileOptions{
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger.Infof("Console starting (channel %s)", cfg.Channel.URL)

	consoleApp, err := newConsoleApp(cfg, logger)
	if err != nil {
		return err
	}
	defer consoleApp.Close()

	app := fiber.New(fiber.Config{
		AppName:               "Open-Teleop Console",
		ErrorHandler:          customErrorHandler,
		DisableStartupMessage: true,
	})
	app.Use(fiberlogger.New())
	app.Use(recover.New())

	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "online",
			"service": "open-teleop console",
		})
	})
	app.Get("/metrics", consoleApp.console.DiagnosticService().GetMetricsHandler)
	api.RegisterConsoleRoutes(app, consoleApp.console, logger)
	api.RegisterInputRoutes(app, consoleApp.console, logger)
	api.RegisterConfigRoutes(app, cfg, logger)

	if !s.NoConnect {
		if err := consoleApp.console.Connect(); err != nil {
			return err
		}
	}

	listenErr := make(chan error, 1)
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.HTTPPort)
		logger.Infof("Server starting on %s", addr)
		listenErr <- app.Listen(addr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-listenErr:
		return fmt.Errorf("failed to start server: %w", err)
	}
	logger.Infof("Shutting down server...")

	if err := consoleApp.console.EmergencyStop(); err != nil {
		logger.Warnf("Emergency stop on shutdown failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := app.ShutdownWithContext(ctx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
	}

	logger.Infof("Server exited properly")
	return nil
}

// customErrorHandler renders every error as JSON.
func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	}
	return c.Status(code).JSON(fiber.Map{
		"error": err.Error(),
	})
}
