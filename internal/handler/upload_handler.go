package handler

import (
	"errors"
	"io"
	"mime/multipart"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/zhipi-dev/zhipi-go-api/internal/service"
	"github.com/zhipi-dev/zhipi-go-api/internal/utils"
)

// UploadHandler receives homework image uploads from the phone client.
type UploadHandler struct {
	submissions service.SubmissionService
	logger      zerolog.Logger
}

// NewUploadHandler builds an upload handler instance.
func NewUploadHandler(submissions service.SubmissionService, logger zerolog.Logger) *UploadHandler {
	return &UploadHandler{
		submissions: submissions,
		logger:      logger.With().Str("component", "upload_handler").Logger(),
	}
}

// Register attaches the routes to the provided router group.
func (h *UploadHandler) Register(router fiber.Router) {
	router.Post("/:name", h.upload)
}

func (h *UploadHandler) upload(c *fiber.Ctx) error {
	form, err := c.MultipartForm()
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "multipart form is required")
	}

	student := c.FormValue("student")
	files := form.File["images"]

	images := make([]service.UploadedImage, 0, len(files))
	for _, file := range files {
		data, err := readFormFile(file)
		if err != nil {
			return utils.SendError(c, fiber.StatusBadRequest, "failed to read uploaded image")
		}
		images = append(images, service.UploadedImage{FileName: file.Filename, Data: data})
	}

	response, err := h.submissions.Create(c.Context(), c.Params("name"), student, images)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "homework uploaded", response)
}

func readFormFile(file *multipart.FileHeader) ([]byte, error) {
	reader, err := file.Open()
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	return io.ReadAll(reader)
}

func (h *UploadHandler) handleError(c *fiber.Ctx, err error) error {
	var validationErrors validator.ValidationErrors
	switch {
	case errors.Is(err, service.ErrPlanNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "plan not found")
	case errors.Is(err, service.ErrInvalidUpload):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	case errors.As(err, &validationErrors):
		return utils.SendError(c, fiber.StatusBadRequest, validationErrors.Error())
	default:
		h.logger.Error().Err(err).Msg("internal server error")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}
