package repository

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/zhipi-dev/zhipi-go-api/internal/models"
)

// PlanRepository defines persistence operations for grading plans.
type PlanRepository interface {
	Create(ctx context.Context, plan *models.Plan) error
	Get(ctx context.Context, name string) (models.Plan, error)
	List(ctx context.Context) ([]models.Plan, error)
	UpdatePrompt(ctx context.Context, name, prompt string) (models.Plan, error)
}

type planRepository struct {
	layout Layout
	mu     sync.Mutex
	now    func() time.Time
}

// NewPlanRepository instantiates a file-backed plan repository rooted at dataDir.
func NewPlanRepository(dataDir string) PlanRepository {
	return &planRepository{
		layout: Layout{Root: dataDir},
		now:    time.Now,
	}
}

func (r *planRepository) Create(_ context.Context, plan *models.Plan) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	configPath := r.layout.ConfigPath(plan.Name)
	if _, err := os.Stat(configPath); err == nil {
		return ErrPlanExists
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("stat plan config: %w", err)
	}

	if err := os.MkdirAll(r.layout.ImagesDir(plan.Name), 0o755); err != nil {
		return fmt.Errorf("create images dir: %w", err)
	}
	if err := os.MkdirAll(r.layout.RecordsDir(plan.Name), 0o755); err != nil {
		return fmt.Errorf("create records dir: %w", err)
	}

	plan.CreatedAt = r.now()
	return writeJSON(configPath, plan)
}

func (r *planRepository) Get(_ context.Context, name string) (models.Plan, error) {
	var plan models.Plan
	if err := readJSON(r.layout.ConfigPath(name), &plan); err != nil {
		if os.IsNotExist(err) {
			return models.Plan{}, ErrPlanNotFound
		}
		return models.Plan{}, fmt.Errorf("read plan config: %w", err)
	}
	return plan, nil
}

func (r *planRepository) List(_ context.Context) ([]models.Plan, error) {
	entries, err := os.ReadDir(r.layout.Root)
	if err != nil {
		if os.IsNotExist(err) {
			return []models.Plan{}, nil
		}
		return nil, fmt.Errorf("read data dir: %w", err)
	}

	plans := make([]models.Plan, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		var plan models.Plan
		if err := readJSON(r.layout.ConfigPath(entry.Name()), &plan); err != nil {
			// Directories without a readable config are not plans.
			continue
		}
		plans = append(plans, plan)
	}

	sort.Slice(plans, func(i, j int) bool {
		return plans[i].CreatedAt.After(plans[j].CreatedAt)
	})

	return plans, nil
}

func (r *planRepository) UpdatePrompt(_ context.Context, name, prompt string) (models.Plan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var plan models.Plan
	configPath := r.layout.ConfigPath(name)
	if err := readJSON(configPath, &plan); err != nil {
		if os.IsNotExist(err) {
			return models.Plan{}, ErrPlanNotFound
		}
		return models.Plan{}, fmt.Errorf("read plan config: %w", err)
	}

	now := r.now()
	plan.Prompt = prompt
	plan.UpdatedAt = &now
	if err := writeJSON(configPath, &plan); err != nil {
		return models.Plan{}, err
	}

	return plan, nil
}
