package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/zhipi-dev/zhipi-go-api/internal/service"
	"github.com/zhipi-dev/zhipi-go-api/internal/utils"
)

// RecordHandler serves grading record views polled by the desktop client.
type RecordHandler struct {
	submissions service.SubmissionService
	logger      zerolog.Logger
}

// NewRecordHandler builds a record handler instance.
func NewRecordHandler(submissions service.SubmissionService, logger zerolog.Logger) *RecordHandler {
	return &RecordHandler{
		submissions: submissions,
		logger:      logger.With().Str("component", "record_handler").Logger(),
	}
}

// Register attaches the routes to the provided router group.
func (h *RecordHandler) Register(router fiber.Router) {
	router.Get("/:name", h.list)
	router.Get("/:name/:id", h.get)
	router.Delete("/:name/:id", h.delete)
}

func (h *RecordHandler) list(c *fiber.Ctx) error {
	records, err := h.submissions.List(c.Context(), c.Params("name"))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "records retrieved", records)
}

func (h *RecordHandler) get(c *fiber.Ctx) error {
	record, err := h.submissions.Get(c.Context(), c.Params("name"), c.Params("id"))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "record retrieved", record)
}

func (h *RecordHandler) delete(c *fiber.Ctx) error {
	if err := h.submissions.Delete(c.Context(), c.Params("name"), c.Params("id")); err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "record deleted", nil)
}

func (h *RecordHandler) handleError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrPlanNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "plan not found")
	case errors.Is(err, service.ErrRecordNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "record not found")
	default:
		h.logger.Error().Err(err).Msg("internal server error")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}
