package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cadenza-hq/music-crm-api/internal/dto"
	"github.com/cadenza-hq/music-crm-api/internal/models"
	appErrors "github.com/cadenza-hq/music-crm-api/pkg/errors"
)

type coursePlanRepoStub struct {
	plans   map[string]*models.CoursePlan
	created *models.CoursePlan
	updated *models.CoursePlan
	deleted []string
}

func (s *coursePlanRepoStub) FindByID(_ context.Context, id string) (*models.CoursePlan, error) {
	plan, ok := s.plans[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return plan, nil
}

func (s *coursePlanRepoStub) List(_ context.Context, _ models.CoursePlanFilter) ([]models.CoursePlan, int, error) {
	var out []models.CoursePlan
	for _, plan := range s.plans {
		out = append(out, *plan)
	}
	return out, len(out), nil
}

func (s *coursePlanRepoStub) Create(_ context.Context, plan *models.CoursePlan) error {
	plan.ID = "plan-new"
	s.created = plan
	return nil
}

func (s *coursePlanRepoStub) Update(_ context.Context, plan *models.CoursePlan) error {
	s.updated = plan
	return nil
}

func (s *coursePlanRepoStub) SoftDelete(_ context.Context, id string) error {
	s.deleted = append(s.deleted, id)
	return nil
}

func newPlanServiceFixture() (*CoursePlanService, *coursePlanRepoStub) {
	repo := &coursePlanRepoStub{plans: map[string]*models.CoursePlan{
		"plan-1": {ID: "plan-1", Name: "Standard", DurationMonths: 3, ClassesPerWeek: 2, TotalClasses: 24, PriceCents: 120000, Active: true},
	}}
	return NewCoursePlanService(repo, nil, 0, nil, nil, nil), repo
}

func TestCoursePlanCreateDerivesTotalClasses(t *testing.T) {
	svc, repo := newPlanServiceFixture()

	plan, err := svc.Create(context.Background(), dto.CreateCoursePlanRequest{
		Name:           "Intensive",
		DurationMonths: 6,
		ClassesPerWeek: 3,
		PriceCents:     240000,
	})
	require.NoError(t, err)
	assert.Equal(t, 72, plan.TotalClasses)
	assert.True(t, plan.Active)
	assert.Equal(t, repo.created, plan)
}

func TestCoursePlanUpdateRederivesTotalClasses(t *testing.T) {
	svc, repo := newPlanServiceFixture()
	weekly := 3

	plan, err := svc.Update(context.Background(), "plan-1", dto.UpdateCoursePlanRequest{ClassesPerWeek: &weekly})
	require.NoError(t, err)
	assert.Equal(t, 36, plan.TotalClasses)
	assert.Equal(t, repo.updated, plan)
}

func TestCoursePlanGetNotFound(t *testing.T) {
	svc, _ := newPlanServiceFixture()

	_, err := svc.Get(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestCoursePlanDelete(t *testing.T) {
	svc, repo := newPlanServiceFixture()

	require.NoError(t, svc.Delete(context.Background(), "plan-1"))
	assert.Equal(t, []string{"plan-1"}, repo.deleted)
}

func TestCoursePlanCreateValidation(t *testing.T) {
	svc, _ := newPlanServiceFixture()

	_, err := svc.Create(context.Background(), dto.CreateCoursePlanRequest{Name: "X", DurationMonths: 0, ClassesPerWeek: 9})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}
