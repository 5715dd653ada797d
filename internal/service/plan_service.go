package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/zhipi-dev/zhipi-go-api/internal/dto"
	"github.com/zhipi-dev/zhipi-go-api/internal/models"
	"github.com/zhipi-dev/zhipi-go-api/internal/repository"
)

// ErrPlanNotFound indicates the named plan does not exist.
var ErrPlanNotFound = errors.New("plan not found")

// ErrPlanExists indicates a plan with the requested name already exists.
var ErrPlanExists = errors.New("plan already exists")

// PlanService exposes grading plan operations.
type PlanService interface {
	Create(ctx context.Context, payload dto.PlanCreateRequest) (dto.PlanResponse, error)
	Get(ctx context.Context, name string) (dto.PlanDetailResponse, error)
	List(ctx context.Context) ([]dto.PlanResponse, error)
	UpdatePrompt(ctx context.Context, name string, payload dto.PromptUpdateRequest) (dto.PlanResponse, error)
}

type planService struct {
	plans     repository.PlanRepository
	records   repository.RecordRepository
	validator *validator.Validate
	cache     *redis.Client
	cacheTTL  time.Duration
	logger    zerolog.Logger
}

// NewPlanService constructs a PlanService instance. The redis client is
// optional; without it statistics are computed from disk on every call.
func NewPlanService(planRepo repository.PlanRepository, recordRepo repository.RecordRepository, validate *validator.Validate, cache *redis.Client, cacheTTL time.Duration, logger zerolog.Logger) PlanService {
	return &planService{
		plans:     planRepo,
		records:   recordRepo,
		validator: validate,
		cache:     cache,
		cacheTTL:  cacheTTL,
		logger:    logger.With().Str("component", "plan_service").Logger(),
	}
}

func (s *planService) Create(ctx context.Context, payload dto.PlanCreateRequest) (dto.PlanResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.PlanResponse{}, err
	}

	plan := models.Plan{
		Name:        payload.PlanName,
		Description: payload.Description,
		Prompt:      payload.Prompt,
	}

	if err := s.plans.Create(ctx, &plan); err != nil {
		if errors.Is(err, repository.ErrPlanExists) {
			return dto.PlanResponse{}, ErrPlanExists
		}
		return dto.PlanResponse{}, err
	}

	s.logger.Info().Str("plan", plan.Name).Msg("plan created")

	return dto.NewPlanResponse(plan, 0), nil
}

func (s *planService) Get(ctx context.Context, name string) (dto.PlanDetailResponse, error) {
	plan, err := s.plans.Get(ctx, name)
	if err != nil {
		if errors.Is(err, repository.ErrPlanNotFound) {
			return dto.PlanDetailResponse{}, ErrPlanNotFound
		}
		return dto.PlanDetailResponse{}, err
	}

	stats, err := s.stats(ctx, name)
	if err != nil {
		return dto.PlanDetailResponse{}, err
	}

	return dto.PlanDetailResponse{
		Plan:  dto.NewPlanResponse(plan, stats.Total),
		Stats: stats,
	}, nil
}

func (s *planService) List(ctx context.Context) ([]dto.PlanResponse, error) {
	plans, err := s.plans.List(ctx)
	if err != nil {
		return nil, err
	}

	responses := make([]dto.PlanResponse, 0, len(plans))
	for _, plan := range plans {
		stats, err := s.stats(ctx, plan.Name)
		if err != nil {
			s.logger.Warn().Err(err).Str("plan", plan.Name).Msg("failed to compute plan stats")
		}
		responses = append(responses, dto.NewPlanResponse(plan, stats.Total))
	}

	return responses, nil
}

func (s *planService) UpdatePrompt(ctx context.Context, name string, payload dto.PromptUpdateRequest) (dto.PlanResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.PlanResponse{}, err
	}

	plan, err := s.plans.UpdatePrompt(ctx, name, payload.Prompt)
	if err != nil {
		if errors.Is(err, repository.ErrPlanNotFound) {
			return dto.PlanResponse{}, ErrPlanNotFound
		}
		return dto.PlanResponse{}, err
	}

	stats, err := s.stats(ctx, name)
	if err != nil {
		s.logger.Warn().Err(err).Str("plan", name).Msg("failed to compute plan stats")
	}

	s.logger.Info().Str("plan", name).Msg("plan prompt updated")

	return dto.NewPlanResponse(plan, stats.Total), nil
}

// stats returns per-status record counts, served from the redis cache
// when available. Stale cache entries expire by TTL; statistics are
// advisory so short staleness is acceptable.
func (s *planService) stats(ctx context.Context, name string) (models.PlanStats, error) {
	cacheKey := fmt.Sprintf("plan:stats:%s", name)

	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, cacheKey).Result(); err == nil {
			var stats models.PlanStats
			if unmarshalErr := json.Unmarshal([]byte(cached), &stats); unmarshalErr == nil {
				s.logger.Debug().Str("plan", name).Msg("plan stats cache hit")
				return stats, nil
			}
		} else if err != redis.Nil {
			s.logger.Warn().Err(err).Msg("failed to read plan stats cache")
		}
	}

	stats, err := s.records.Stats(ctx, name)
	if err != nil {
		if errors.Is(err, repository.ErrPlanNotFound) {
			return models.PlanStats{}, ErrPlanNotFound
		}
		return models.PlanStats{}, err
	}

	if s.cache != nil {
		if payload, err := json.Marshal(stats); err == nil {
			if err := s.cache.Set(ctx, cacheKey, payload, s.cacheTTL).Err(); err != nil {
				s.logger.Warn().Err(err).Msg("failed to store plan stats cache")
			}
		}
	}

	return stats, nil
}
