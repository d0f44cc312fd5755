package api

import (
	"fmt"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/open-teleop/console/pkg/config"
	customlog "github.com/open-teleop/console/pkg/log"
	"gopkg.in/yaml.v3"
)

// RegisterConfigRoutes exposes the effective configuration read-only.
func RegisterConfigRoutes(app *fiber.App, cfg *config.Config, logger customlog.Logger) {
	app.Get("/api/v1/config", func(c *fiber.Ctx) error {
		yamlData, err := yaml.Marshal(cfg)
		if err != nil {
			logger.Errorf("Failed to marshal effective config: %v", err)
			return c.Status(http.StatusInternalServerError).JSON(fiber.Map{
				"error": fmt.Sprintf("Failed to retrieve configuration: %v", err),
			})
		}
		c.Set(fiber.HeaderContentType, "application/x-yaml")
		return c.Send(yamlData)
	})

	logger.Infof("Registered configuration endpoint /api/v1/config")
}
