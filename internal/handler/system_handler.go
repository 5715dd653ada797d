package handler

import (
	"github.com/gofiber/fiber/v2"

	"github.com/zhipi-dev/zhipi-go-api/internal/utils"
)

// SystemIP reports the server's LAN address so clients on the same
// network can construct reachable URLs.
func SystemIP() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return utils.SendSuccess(c, "ip resolved", fiber.Map{"ip": utils.LocalIP()})
	}
}
