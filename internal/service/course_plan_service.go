package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/cadenza-hq/music-crm-api/internal/dto"
	"github.com/cadenza-hq/music-crm-api/internal/models"
	appErrors "github.com/cadenza-hq/music-crm-api/pkg/errors"
)

type coursePlanRepository interface {
	FindByID(ctx context.Context, id string) (*models.CoursePlan, error)
	List(ctx context.Context, filter models.CoursePlanFilter) ([]models.CoursePlan, int, error)
	Create(ctx context.Context, plan *models.CoursePlan) error
	Update(ctx context.Context, plan *models.CoursePlan) error
	SoftDelete(ctx context.Context, id string) error
}

type cacheMetrics interface {
	ObserveCacheHit(cache string)
	ObserveCacheMiss(cache string)
}

const planCacheName = "course_plans"

// CoursePlanService manages the plan catalog. Single-plan reads go through a
// Redis cache since the allocation path loads the plan on every admission.
type CoursePlanService struct {
	plans     coursePlanRepository
	cache     *redis.Client
	cacheTTL  time.Duration
	metrics   cacheMetrics
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCoursePlanService constructs CoursePlanService. A nil Redis client
// disables caching.
func NewCoursePlanService(plans coursePlanRepository, cache *redis.Client, cacheTTL time.Duration, metrics cacheMetrics, validate *validator.Validate, logger *zap.Logger) *CoursePlanService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheTTL <= 0 {
		cacheTTL = 10 * time.Minute
	}
	return &CoursePlanService{
		plans:     plans,
		cache:     cache,
		cacheTTL:  cacheTTL,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
	}
}

func planCacheKey(id string) string {
	return fmt.Sprintf("course_plan:%s", id)
}

// FindByID returns a plan, preferring the cache. Cache failures degrade to the
// database.
func (s *CoursePlanService) FindByID(ctx context.Context, id string) (*models.CoursePlan, error) {
	if s.cache != nil {
		raw, err := s.cache.Get(ctx, planCacheKey(id)).Bytes()
		if err == nil {
			var plan models.CoursePlan
			if jsonErr := json.Unmarshal(raw, &plan); jsonErr == nil {
				s.observeHit()
				return &plan, nil
			}
		} else if !errors.Is(err, redis.Nil) {
			s.logger.Warn("course plan cache read failed", zap.String("plan_id", id), zap.Error(err))
		}
		s.observeMiss()
	}

	plan, err := s.plans.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.storeInCache(ctx, plan)
	return plan, nil
}

// Get returns a plan mapped to domain errors for the HTTP surface.
func (s *CoursePlanService) Get(ctx context.Context, id string) (*models.CoursePlan, error) {
	plan, err := s.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course plan not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course plan")
	}
	return plan, nil
}

// List returns plans with pagination metadata.
func (s *CoursePlanService) List(ctx context.Context, filter models.CoursePlanFilter) ([]models.CoursePlan, *models.Pagination, error) {
	plans, total, err := s.plans.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list course plans")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return plans, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Create registers a plan with the derived total class count.
func (s *CoursePlanService) Create(ctx context.Context, req dto.CreateCoursePlanRequest) (*models.CoursePlan, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course plan payload")
	}
	active := true
	if req.Active != nil {
		active = *req.Active
	}
	plan := &models.CoursePlan{
		Name:           req.Name,
		DurationMonths: req.DurationMonths,
		ClassesPerWeek: req.ClassesPerWeek,
		TotalClasses:   models.DeriveTotalClasses(req.DurationMonths, req.ClassesPerWeek),
		PriceCents:     req.PriceCents,
		Active:         active,
	}
	if err := s.plans.Create(ctx, plan); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create course plan")
	}
	return plan, nil
}

// Update edits a plan, re-deriving total classes when cadence or duration
// changes. Existing admissions keep their committed class counts.
func (s *CoursePlanService) Update(ctx context.Context, id string, req dto.UpdateCoursePlanRequest) (*models.CoursePlan, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course plan payload")
	}
	plan, err := s.plans.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course plan not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course plan")
	}

	if req.Name != nil {
		plan.Name = *req.Name
	}
	if req.DurationMonths != nil {
		plan.DurationMonths = *req.DurationMonths
	}
	if req.ClassesPerWeek != nil {
		plan.ClassesPerWeek = *req.ClassesPerWeek
	}
	if req.PriceCents != nil {
		plan.PriceCents = *req.PriceCents
	}
	if req.Active != nil {
		plan.Active = *req.Active
	}
	plan.TotalClasses = models.DeriveTotalClasses(plan.DurationMonths, plan.ClassesPerWeek)

	if err := s.plans.Update(ctx, plan); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update course plan")
	}
	s.invalidateCache(ctx, id)
	return plan, nil
}

// Delete soft-deletes a plan and drops it from the cache.
func (s *CoursePlanService) Delete(ctx context.Context, id string) error {
	if _, err := s.plans.FindByID(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "course plan not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course plan")
	}
	if err := s.plans.SoftDelete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete course plan")
	}
	s.invalidateCache(ctx, id)
	return nil
}

func (s *CoursePlanService) storeInCache(ctx context.Context, plan *models.CoursePlan) {
	if s.cache == nil {
		return
	}
	raw, err := json.Marshal(plan)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, planCacheKey(plan.ID), raw, s.cacheTTL).Err(); err != nil {
		s.logger.Warn("course plan cache write failed", zap.String("plan_id", plan.ID), zap.Error(err))
	}
}

func (s *CoursePlanService) invalidateCache(ctx context.Context, id string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, planCacheKey(id)).Err(); err != nil {
		s.logger.Warn("course plan cache invalidation failed", zap.String("plan_id", id), zap.Error(err))
	}
}

func (s *CoursePlanService) observeHit() {
	if s.metrics != nil {
		s.metrics.ObserveCacheHit(planCacheName)
	}
}

func (s *CoursePlanService) observeMiss() {
	if s.metrics != nil {
		s.metrics.ObserveCacheMiss(planCacheName)
	}
}
