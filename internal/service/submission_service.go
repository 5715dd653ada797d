package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/zhipi-dev/zhipi-go-api/internal/dto"
	"github.com/zhipi-dev/zhipi-go-api/internal/models"
	"github.com/zhipi-dev/zhipi-go-api/internal/repository"
)

// ErrRecordNotFound indicates a grading record could not be found.
var ErrRecordNotFound = errors.New("record not found")

// ErrInvalidUpload indicates the upload violates the image policy.
var ErrInvalidUpload = errors.New("invalid upload")

// GradingQueue accepts records for asynchronous grading. Implemented by
// GradingService; declared here so submission creation never blocks on
// the pipeline.
type GradingQueue interface {
	Enqueue(planName, recordID string)
}

// UploadedImage is one image received from a multipart upload.
type UploadedImage struct {
	FileName string
	Data     []byte
}

// UploadPolicy bounds what a single submission may contain.
type UploadPolicy struct {
	MaxImages     int
	MaxImageBytes int64
}

// SubmissionService orchestrates homework submission workflows.
type SubmissionService interface {
	Create(ctx context.Context, planName, student string, images []UploadedImage) (dto.UploadResponse, error)
	List(ctx context.Context, planName string) ([]dto.RecordListItem, error)
	Get(ctx context.Context, planName, id string) (dto.RecordResponse, error)
	Delete(ctx context.Context, planName, id string) error
}

type submissionService struct {
	plans     repository.PlanRepository
	records   repository.RecordRepository
	queue     GradingQueue
	validator *validator.Validate
	policy    UploadPolicy
	logger    zerolog.Logger
}

var allowedImageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
}

// NewSubmissionService constructs a SubmissionService instance.
func NewSubmissionService(planRepo repository.PlanRepository, recordRepo repository.RecordRepository, queue GradingQueue, validate *validator.Validate, policy UploadPolicy, logger zerolog.Logger) SubmissionService {
	if policy.MaxImages <= 0 {
		policy.MaxImages = 10
	}
	if policy.MaxImageBytes <= 0 {
		policy.MaxImageBytes = 10 * 1024 * 1024
	}

	return &submissionService{
		plans:     planRepo,
		records:   recordRepo,
		queue:     queue,
		validator: validate,
		policy:    policy,
		logger:    logger.With().Str("component", "submission_service").Logger(),
	}
}

// Create validates and stores an upload, persists the pending record and
// schedules grading. It returns as soon as the record exists; grading
// happens asynchronously.
func (s *submissionService) Create(ctx context.Context, planName, student string, images []UploadedImage) (dto.UploadResponse, error) {
	if _, err := s.plans.Get(ctx, planName); err != nil {
		if errors.Is(err, repository.ErrPlanNotFound) {
			return dto.UploadResponse{}, ErrPlanNotFound
		}
		return dto.UploadResponse{}, err
	}

	student = strings.TrimSpace(student)
	if student == "" {
		return dto.UploadResponse{}, fmt.Errorf("%w: student name is required", ErrInvalidUpload)
	}

	if len(images) == 0 {
		return dto.UploadResponse{}, fmt.Errorf("%w: at least one image is required", ErrInvalidUpload)
	}
	if len(images) > s.policy.MaxImages {
		return dto.UploadResponse{}, fmt.Errorf("%w: at most %d images per upload", ErrInvalidUpload, s.policy.MaxImages)
	}

	for _, image := range images {
		if err := s.validateImage(image); err != nil {
			return dto.UploadResponse{}, err
		}
	}

	record := models.Record{
		Student: student,
		Status:  models.RecordStatusPending,
	}
	if err := s.records.Create(ctx, planName, &record); err != nil {
		return dto.UploadResponse{}, err
	}

	saved := make([]string, 0, len(images))
	for idx, image := range images {
		ext := strings.ToLower(filepath.Ext(image.FileName))
		fileName := fmt.Sprintf("%s_%d%s", record.ID, idx+1, ext)
		rel, err := s.records.SaveImage(ctx, planName, fileName, image.Data)
		if err != nil {
			return dto.UploadResponse{}, err
		}
		saved = append(saved, rel)
	}

	// Images are immutable after this point.
	if _, err := s.records.Update(ctx, planName, record.ID, func(r *models.Record) error {
		r.Images = saved
		return nil
	}); err != nil {
		return dto.UploadResponse{}, err
	}

	s.queue.Enqueue(planName, record.ID)

	s.logger.Info().
		Str("plan", planName).
		Str("record", record.ID).
		Str("student", student).
		Int("images", len(saved)).
		Msg("submission created")

	return dto.UploadResponse{RecordID: record.ID, Status: models.RecordStatusPending}, nil
}

func (s *submissionService) validateImage(image UploadedImage) error {
	ext := strings.ToLower(filepath.Ext(image.FileName))
	if !allowedImageExtensions[ext] {
		return fmt.Errorf("%w: unsupported image format %q, allowed: jpg, jpeg, png, webp", ErrInvalidUpload, ext)
	}

	if int64(len(image.Data)) > s.policy.MaxImageBytes {
		return fmt.Errorf("%w: image %s exceeds the %dMB size limit", ErrInvalidUpload, image.FileName, s.policy.MaxImageBytes/(1024*1024))
	}

	mime := mimetype.Detect(image.Data)
	if !mime.Is("image/jpeg") && !mime.Is("image/png") && !mime.Is("image/webp") {
		return fmt.Errorf("%w: image %s has unsupported content type %s", ErrInvalidUpload, image.FileName, mime.String())
	}

	return nil
}

func (s *submissionService) List(ctx context.Context, planName string) ([]dto.RecordListItem, error) {
	records, err := s.records.List(ctx, planName)
	if err != nil {
		if errors.Is(err, repository.ErrPlanNotFound) {
			return nil, ErrPlanNotFound
		}
		return nil, err
	}

	return dto.NewRecordListItems(records), nil
}

func (s *submissionService) Get(ctx context.Context, planName, id string) (dto.RecordResponse, error) {
	record, err := s.records.Get(ctx, planName, id)
	if err != nil {
		if errors.Is(err, repository.ErrRecordNotFound) {
			return dto.RecordResponse{}, ErrRecordNotFound
		}
		return dto.RecordResponse{}, err
	}

	return dto.NewRecordResponse(record), nil
}

func (s *submissionService) Delete(ctx context.Context, planName, id string) error {
	if _, err := s.plans.Get(ctx, planName); err != nil {
		if errors.Is(err, repository.ErrPlanNotFound) {
			return ErrPlanNotFound
		}
		return err
	}

	if err := s.records.Delete(ctx, planName, id); err != nil {
		if errors.Is(err, repository.ErrRecordNotFound) {
			return ErrRecordNotFound
		}
		return err
	}

	s.logger.Info().Str("plan", planName).Str("record", id).Msg("record deleted")
	return nil
}
