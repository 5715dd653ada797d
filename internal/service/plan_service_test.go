package service

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/zhipi-dev/zhipi-go-api/internal/dto"
	"github.com/zhipi-dev/zhipi-go-api/internal/models"
	"github.com/zhipi-dev/zhipi-go-api/internal/repository"
)

func newPlanFixture(t *testing.T, cache *redis.Client) (repository.PlanRepository, repository.RecordRepository, PlanService) {
	t.Helper()

	dir := t.TempDir()
	plans := repository.NewPlanRepository(dir)
	records := repository.NewRecordRepository(dir)
	validate := validator.New(validator.WithRequiredStructEnabled())
	svc := NewPlanService(plans, records, validate, cache, time.Minute, testLogger())

	return plans, records, svc
}

func TestPlanServiceCreate(t *testing.T) {
	_, _, svc := newPlanFixture(t, nil)
	ctx := context.Background()

	resp, err := svc.Create(ctx, dto.PlanCreateRequest{
		PlanName:    "math-week1",
		Description: "algebra",
		Prompt:      "grade it",
	})
	require.NoError(t, err)
	require.Equal(t, "math-week1", resp.PlanName)
	require.Zero(t, resp.RecordCount)

	_, err = svc.Create(ctx, dto.PlanCreateRequest{PlanName: "math-week1", Prompt: "again"})
	require.ErrorIs(t, err, ErrPlanExists)
}

func TestPlanServiceCreateValidation(t *testing.T) {
	_, _, svc := newPlanFixture(t, nil)
	ctx := context.Background()

	cases := []dto.PlanCreateRequest{
		{PlanName: "", Prompt: "p"},
		{PlanName: "name", Prompt: ""},
		{PlanName: "a/b", Prompt: "p"},
		{PlanName: `a\b`, Prompt: "p"},
	}

	for _, payload := range cases {
		_, err := svc.Create(ctx, payload)
		var verrs validator.ValidationErrors
		require.ErrorAs(t, err, &verrs)
	}
}

func TestPlanServiceGetWithStats(t *testing.T) {
	_, records, svc := newPlanFixture(t, nil)
	ctx := context.Background()

	_, err := svc.Create(ctx, dto.PlanCreateRequest{PlanName: "plan1", Prompt: "p"})
	require.NoError(t, err)

	for _, status := range []string{models.RecordStatusPending, models.RecordStatusDone} {
		record := models.Record{Student: "s", Status: status}
		require.NoError(t, records.Create(ctx, "plan1", &record))
	}

	detail, err := svc.Get(ctx, "plan1")
	require.NoError(t, err)
	require.Equal(t, 2, detail.Plan.RecordCount)
	require.Equal(t, models.PlanStats{Total: 2, Pending: 1, Done: 1}, detail.Stats)

	_, err = svc.Get(ctx, "ghost")
	require.ErrorIs(t, err, ErrPlanNotFound)
}

func TestPlanServiceUpdatePrompt(t *testing.T) {
	plans, _, svc := newPlanFixture(t, nil)
	ctx := context.Background()

	_, err := svc.Create(ctx, dto.PlanCreateRequest{PlanName: "plan1", Prompt: "old"})
	require.NoError(t, err)

	resp, err := svc.UpdatePrompt(ctx, "plan1", dto.PromptUpdateRequest{Prompt: "new"})
	require.NoError(t, err)
	require.Equal(t, "new", resp.Prompt)
	require.NotNil(t, resp.UpdatedAt)

	plan, err := plans.Get(ctx, "plan1")
	require.NoError(t, err)
	require.Equal(t, "new", plan.Prompt)

	_, err = svc.UpdatePrompt(ctx, "ghost", dto.PromptUpdateRequest{Prompt: "x"})
	require.ErrorIs(t, err, ErrPlanNotFound)
}

func TestPlanServiceList(t *testing.T) {
	_, _, svc := newPlanFixture(t, nil)
	ctx := context.Background()

	for _, name := range []string{"plan-a", "plan-b"} {
		_, err := svc.Create(ctx, dto.PlanCreateRequest{PlanName: name, Prompt: "p"})
		require.NoError(t, err)
	}

	plans, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, plans, 2)
}

func TestPlanServiceStatsCache(t *testing.T) {
	mr := miniredis.RunT(t)
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { cache.Close() })

	_, records, svc := newPlanFixture(t, cache)
	ctx := context.Background()

	_, err := svc.Create(ctx, dto.PlanCreateRequest{PlanName: "plan1", Prompt: "p"})
	require.NoError(t, err)

	record := models.Record{Student: "s", Status: models.RecordStatusPending}
	require.NoError(t, records.Create(ctx, "plan1", &record))

	detail, err := svc.Get(ctx, "plan1")
	require.NoError(t, err)
	require.Equal(t, 1, detail.Stats.Total)
	require.True(t, mr.Exists("plan:stats:plan1"))

	// A second record lands, but the cached snapshot is still served.
	second := models.Record{Student: "s2", Status: models.RecordStatusPending}
	require.NoError(t, records.Create(ctx, "plan1", &second))

	detail, err = svc.Get(ctx, "plan1")
	require.NoError(t, err)
	require.Equal(t, 1, detail.Stats.Total)

	// Once the TTL passes the snapshot is rebuilt from disk.
	mr.FastForward(2 * time.Minute)

	detail, err = svc.Get(ctx, "plan1")
	require.NoError(t, err)
	require.Equal(t, 2, detail.Stats.Total)
}
