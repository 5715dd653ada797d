package handler

import (
	"errors"
	"fmt"
	"net/url"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/zhipi-dev/zhipi-go-api/internal/config"
	"github.com/zhipi-dev/zhipi-go-api/internal/dto"
	"github.com/zhipi-dev/zhipi-go-api/internal/service"
	"github.com/zhipi-dev/zhipi-go-api/internal/utils"
)

// PlanHandler manages grading plan endpoints, including batch regrade
// and the QR code phones scan to reach the upload page.
type PlanHandler struct {
	plans    service.PlanService
	regrades service.RegradeService
	cfg      config.Config
	logger   zerolog.Logger
}

// NewPlanHandler builds a plan handler instance.
func NewPlanHandler(plans service.PlanService, regrades service.RegradeService, cfg config.Config, logger zerolog.Logger) *PlanHandler {
	return &PlanHandler{
		plans:    plans,
		regrades: regrades,
		cfg:      cfg,
		logger:   logger.With().Str("component", "plan_handler").Logger(),
	}
}

// Register attaches the routes to the provided router group.
func (h *PlanHandler) Register(router fiber.Router) {
	router.Post("", h.create)
	router.Get("", h.list)
	router.Get("/:name", h.get)
	router.Put("/:name/prompt", h.updatePrompt)
	router.Post("/:name/regrade", h.regrade)
	router.Get("/:name/qrcode", h.qrcode)
}

func (h *PlanHandler) create(c *fiber.Ctx) error {
	var payload dto.PlanCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	plan, err := h.plans.Create(c.Context(), payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendCreated(c, "plan created", plan)
}

func (h *PlanHandler) list(c *fiber.Ctx) error {
	plans, err := h.plans.List(c.Context())
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "plans retrieved", plans)
}

func (h *PlanHandler) get(c *fiber.Ctx) error {
	detail, err := h.plans.Get(c.Context(), c.Params("name"))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "plan retrieved", detail)
}

func (h *PlanHandler) updatePrompt(c *fiber.Ctx) error {
	var payload dto.PromptUpdateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	plan, err := h.plans.UpdatePrompt(c.Context(), c.Params("name"), payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "prompt updated", plan)
}

func (h *PlanHandler) regrade(c *fiber.Ctx) error {
	var payload dto.RegradeRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&payload); err != nil {
			return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
		}
	}

	affected, err := h.regrades.Regrade(c.Context(), c.Params("name"), payload.RecordIDs)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "regrade triggered", dto.RegradeResponse{AffectedCount: affected})
}

// qrcode renders a PNG pointing phones at the mobile upload page for the plan.
func (h *PlanHandler) qrcode(c *fiber.Ctx) error {
	name := c.Params("name")
	if _, err := h.plans.Get(c.Context(), name); err != nil {
		return h.handleError(c, err)
	}

	target := fmt.Sprintf("http://%s:%s/static/mobile.html?plan=%s",
		utils.LocalIP(), h.cfg.AppPort, url.QueryEscape(name))

	png, err := qrcode.Encode(target, qrcode.Medium, 256)
	if err != nil {
		h.logger.Error().Err(err).Str("plan", name).Msg("failed to encode qr code")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to generate qr code")
	}

	c.Set(fiber.HeaderContentType, "image/png")
	return c.Send(png)
}

func (h *PlanHandler) handleError(c *fiber.Ctx, err error) error {
	var validationErrors validator.ValidationErrors
	switch {
	case errors.Is(err, service.ErrPlanNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "plan not found")
	case errors.Is(err, service.ErrPlanExists):
		return utils.SendError(c, fiber.StatusConflict, "plan already exists")
	case errors.As(err, &validationErrors):
		return utils.SendError(c, fiber.StatusBadRequest, validationErrors.Error())
	default:
		h.logger.Error().Err(err).Msg("internal server error")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}
