package service

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/zhipi-dev/zhipi-go-api/internal/models"
	"github.com/zhipi-dev/zhipi-go-api/internal/repository"
)

// errNotTerminal signals a regrade target that has not finished its
// current grading attempt; such records are skipped, not reset.
var errNotTerminal = errors.New("record is not in a terminal state")

// RegradeService re-enters finished records into the grading pipeline
// while keeping the immediately preceding result.
type RegradeService interface {
	Regrade(ctx context.Context, planName string, recordIDs []string) (int, error)
}

type regradeService struct {
	plans   repository.PlanRepository
	records repository.RecordRepository
	queue   GradingQueue
	logger  zerolog.Logger
}

// NewRegradeService constructs a RegradeService instance.
func NewRegradeService(planRepo repository.PlanRepository, recordRepo repository.RecordRepository, queue GradingQueue, logger zerolog.Logger) RegradeService {
	return &regradeService{
		plans:   planRepo,
		records: recordRepo,
		queue:   queue,
		logger:  logger.With().Str("component", "regrade_service").Logger(),
	}
}

// Regrade resets the targeted done/failed records back to pending and
// re-enqueues them. With no explicit ids every record in the plan is
// targeted. Missing and non-terminal records are skipped; the returned
// count covers only records actually transitioned.
func (s *regradeService) Regrade(ctx context.Context, planName string, recordIDs []string) (int, error) {
	if _, err := s.plans.Get(ctx, planName); err != nil {
		if errors.Is(err, repository.ErrPlanNotFound) {
			return 0, ErrPlanNotFound
		}
		return 0, err
	}

	if len(recordIDs) == 0 {
		records, err := s.records.List(ctx, planName)
		if err != nil {
			return 0, err
		}
		for _, record := range records {
			recordIDs = append(recordIDs, record.ID)
		}
	}

	affected := 0
	for _, id := range recordIDs {
		_, err := s.records.Update(ctx, planName, id, func(r *models.Record) error {
			if !r.IsTerminal() {
				return errNotTerminal
			}
			// One-slot history: only the immediately preceding result is kept.
			if r.Result != nil && *r.Result != "" {
				previous := *r.Result
				r.PreviousResult = &previous
			}
			r.Error = nil
			r.RegradeCount++
			r.Status = models.RecordStatusPending
			return nil
		})
		if err != nil {
			switch {
			case errors.Is(err, errNotTerminal):
				s.logger.Debug().Str("plan", planName).Str("record", id).Msg("regrade skipped, record not terminal")
			case errors.Is(err, repository.ErrRecordNotFound):
				s.logger.Debug().Str("plan", planName).Str("record", id).Msg("regrade skipped, record missing")
			default:
				s.logger.Error().Err(err).Str("plan", planName).Str("record", id).Msg("regrade failed to reset record")
			}
			continue
		}

		s.queue.Enqueue(planName, id)
		affected++
	}

	s.logger.Info().Str("plan", planName).Int("affected", affected).Msg("regrade triggered")

	return affected, nil
}
