package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/zhipi-dev/zhipi-go-api/internal/models"
	"github.com/zhipi-dev/zhipi-go-api/internal/repository"
	"github.com/zhipi-dev/zhipi-go-api/pkg/ai"
	"github.com/zhipi-dev/zhipi-go-api/pkg/ocr"
)

var (
	gradingTasks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "zhipi",
		Subsystem: "grading",
		Name:      "tasks_total",
		Help:      "Grading tasks processed by outcome",
	}, []string{"outcome"})

	gradingTaskDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "zhipi",
		Subsystem: "grading",
		Name:      "task_duration_seconds",
		Help:      "End-to-end duration of grading tasks",
		Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
	})
)

// errNotPending signals that a task found its record already claimed or
// finished and must abort without side effects.
var errNotPending = errors.New("record is not pending")

// ocrConcurrency bounds parallel recognition calls per record.
const ocrConcurrency = 4

type gradingTask struct {
	planName string
	recordID string
}

// GradingConfig tunes the asynchronous grading pipeline.
type GradingConfig struct {
	Workers   int
	QueueSize int
	// Timeout bounds one OCR-plus-grading round trip per record.
	Timeout time.Duration
}

// GradingService runs the asynchronous grading pipeline: a fixed worker
// pool drains a task queue and drives each record through
// pending -> processing -> done/failed. It implements GradingQueue.
type GradingService struct {
	plans      repository.PlanRepository
	records    repository.RecordRepository
	recognizer ocr.Recognizer
	grader     ai.Grader
	logger     zerolog.Logger
	cfg        GradingConfig

	tasks chan gradingTask
	wg    sync.WaitGroup
	once  sync.Once
}

// NewGradingService constructs the pipeline. The recognizer may be nil,
// in which case grading runs without text recognition.
func NewGradingService(planRepo repository.PlanRepository, recordRepo repository.RecordRepository, recognizer ocr.Recognizer, grader ai.Grader, logger zerolog.Logger, cfg GradingConfig) *GradingService {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}

	return &GradingService{
		plans:      planRepo,
		records:    recordRepo,
		recognizer: recognizer,
		grader:     grader,
		logger:     logger.With().Str("component", "grading_service").Logger(),
		cfg:        cfg,
		tasks:      make(chan gradingTask, cfg.QueueSize),
	}
}

// Start launches the worker pool.
func (s *GradingService) Start() {
	s.once.Do(func() {
		for i := 0; i < s.cfg.Workers; i++ {
			s.wg.Add(1)
			go s.worker()
		}
		s.logger.Info().Int("workers", s.cfg.Workers).Msg("grading pipeline started")
	})
}

// Stop closes the queue and waits for in-flight tasks to finish. Enqueue
// must not be called after Stop.
func (s *GradingService) Stop() {
	close(s.tasks)
	s.wg.Wait()
}

// Enqueue schedules a grading task for the record. It never blocks the
// caller: when the queue buffer is full the send is detached.
func (s *GradingService) Enqueue(planName, recordID string) {
	task := gradingTask{planName: planName, recordID: recordID}
	select {
	case s.tasks <- task:
	default:
		go func() { s.tasks <- task }()
	}
}

func (s *GradingService) worker() {
	defer s.wg.Done()
	for task := range s.tasks {
		s.process(task)
	}
}

func (s *GradingService) process(task gradingTask) {
	logger := s.logger.With().Str("plan", task.planName).Str("record", task.recordID).Logger()
	start := time.Now()
	defer func() {
		gradingTaskDuration.Observe(time.Since(start).Seconds())
	}()

	// Claim the record. Anything other than pending means the record was
	// already processed or concurrently regraded; abort without touching it.
	record, err := s.records.Update(context.Background(), task.planName, task.recordID, func(r *models.Record) error {
		if r.Status != models.RecordStatusPending {
			return errNotPending
		}
		r.Status = models.RecordStatusProcessing
		return nil
	})
	if err != nil {
		switch {
		case errors.Is(err, errNotPending), errors.Is(err, repository.ErrRecordNotFound):
			gradingTasks.WithLabelValues("skipped").Inc()
			logger.Debug().Err(err).Msg("grading task aborted")
		default:
			gradingTasks.WithLabelValues("storage_error").Inc()
			logger.Error().Err(err).Msg("failed to claim record for grading")
		}
		return
	}

	logger.Info().Msg("grading started")

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Timeout)
	defer cancel()

	result, ocrText, gradeErr := s.grade(ctx, task.planName, record)
	if gradeErr != nil {
		cause := gradeErr.Error()
		if errors.Is(gradeErr, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			cause = fmt.Sprintf("grading timed out after %s", s.cfg.Timeout)
		}

		// The failure write keeps any previously produced result intact.
		if _, err := s.records.Update(context.Background(), task.planName, task.recordID, func(r *models.Record) error {
			r.Status = models.RecordStatusFailed
			r.Error = &cause
			return nil
		}); err != nil {
			gradingTasks.WithLabelValues("storage_error").Inc()
			logger.Error().Err(err).Msg("failed to persist grading failure")
			return
		}

		gradingTasks.WithLabelValues("failed").Inc()
		logger.Warn().Str("cause", cause).Msg("grading failed")
		return
	}

	if _, err := s.records.Update(context.Background(), task.planName, task.recordID, func(r *models.Record) error {
		r.Status = models.RecordStatusDone
		r.Result = &result
		r.Error = nil
		r.OCRText = ocrText
		return nil
	}); err != nil {
		gradingTasks.WithLabelValues("storage_error").Inc()
		logger.Error().Err(err).Msg("failed to persist grading result")
		return
	}

	gradingTasks.WithLabelValues("done").Inc()
	logger.Info().Dur("elapsed", time.Since(start)).Msg("grading done")
}

// grade performs one OCR-plus-grading round trip. The prompt is read at
// execution time, so a regrade after a prompt edit grades under the new
// prompt.
func (s *GradingService) grade(ctx context.Context, planName string, record models.Record) (result, ocrText string, err error) {
	plan, err := s.plans.Get(ctx, planName)
	if err != nil {
		return "", "", fmt.Errorf("load plan: %w", err)
	}

	images := make([][]byte, len(record.Images))
	for i, rel := range record.Images {
		data, err := s.records.ReadImage(ctx, planName, rel)
		if err != nil {
			return "", "", fmt.Errorf("load image %d: %w", i+1, err)
		}
		images[i] = data
	}

	ocrText, err = s.recognize(ctx, images)
	if err != nil {
		return "", "", err
	}

	result, err = s.grader.Grade(ctx, ai.GradeInput{
		Student:        record.Student,
		Prompt:         plan.Prompt,
		RecognizedText: ocrText,
		Images:         images,
	})
	if err != nil {
		return "", "", err
	}

	return result, ocrText, nil
}

// recognize runs OCR over the record's images concurrently and merges
// the per-image text. Individual recognition failures degrade to a
// placeholder; the task only fails when no image yields any text.
func (s *GradingService) recognize(ctx context.Context, images [][]byte) (string, error) {
	if s.recognizer == nil {
		return "", nil
	}

	texts := make([]string, len(images))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(ocrConcurrency)

	for i, image := range images {
		i, image := i, image
		g.Go(func() error {
			text, err := s.recognizer.Recognize(gCtx, image)
			if err != nil {
				if errors.Is(err, context.DeadlineExceeded) || errors.Is(gCtx.Err(), context.DeadlineExceeded) {
					return err
				}
				s.logger.Warn().Err(err).Int("image", i+1).Msg("image recognition failed")
				texts[i] = fmt.Sprintf("(recognition failed: %v)", err)
				return nil
			}
			texts[i] = strings.TrimSpace(text)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return "", err
	}

	merged := make([]string, 0, len(texts))
	hasText := false
	for i, text := range texts {
		if text == "" {
			continue
		}
		if !strings.HasPrefix(text, "(recognition failed") {
			hasText = true
		}
		merged = append(merged, fmt.Sprintf("[Image %d]\n%s", i+1, text))
	}

	if !hasText {
		return "", errors.New("ocr produced no text for any image")
	}

	return strings.Join(merged, "\n\n"), nil
}
