package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"project-board-sync/internal/domain"
	"project-board-sync/internal/repository"
	"project-board-sync/internal/response"
)

// WeeklyService manages weekly plan documents. Item placement goes
// through the sync engine; goal and reflection text are plain document
// fields owned here.
type WeeklyService interface {
	GetPlan(ctx context.Context, weekKey string) (*domain.WeeklyPlan, error)
	GetOrCreatePlan(ctx context.Context, weekKey string) (*domain.WeeklyPlan, error)
	ListPlans(ctx context.Context) ([]*domain.WeeklyPlan, error)
	SetGoal(ctx context.Context, weekKey, goal string) (*domain.WeeklyPlan, error)
	SetReflection(ctx context.Context, weekKey, reflection string) (*domain.WeeklyPlan, error)
	MoveItemToDay(ctx context.Context, weekKey, itemID, day string) (*domain.WeeklyPlan, error)
}

// weeklyServiceImpl is the implementation of WeeklyService
type weeklyServiceImpl struct {
	db     *gorm.DB
	engine SyncEngine
	logger *zap.Logger
}

// NewWeeklyService creates a new instance of WeeklyService
func NewWeeklyService(db *gorm.DB, engine SyncEngine, logger *zap.Logger) WeeklyService {
	return &weeklyServiceImpl{db: db, engine: engine, logger: logger}
}

// GetPlan retrieves a weekly plan by its week key
func (s *weeklyServiceImpl) GetPlan(ctx context.Context, weekKey string) (*domain.WeeklyPlan, error) {
	weeklyRepo := repository.NewWeeklyPlanRepository(s.db)
	plan, err := weeklyRepo.FindByKey(ctx, weekKey)
	if err != nil {
		return nil, notFoundOr(err, "Weekly plan not found")
	}
	return plan, nil
}

// GetOrCreatePlan retrieves a weekly plan, creating an empty one if the
// week has not been planned yet.
func (s *weeklyServiceImpl) GetOrCreatePlan(ctx context.Context, weekKey string) (*domain.WeeklyPlan, error) {
	if strings.TrimSpace(weekKey) == "" {
		return nil, response.NewAppError(response.ErrCodeValidation, "Week key is required", "")
	}

	var plan *domain.WeeklyPlan
	err := s.db.Transaction(func(tx *gorm.DB) error {
		weeklyRepo := repository.NewWeeklyPlanRepository(tx)

		found, err := weeklyRepo.FindByKey(ctx, weekKey)
		if err == nil {
			plan = found
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		plan = &domain.WeeklyPlan{WeekKey: weekKey}
		return weeklyRepo.Create(ctx, plan)
	})
	if err != nil {
		return nil, err
	}
	return plan, nil
}

// ListPlans returns every weekly plan ordered by week key
func (s *weeklyServiceImpl) ListPlans(ctx context.Context) ([]*domain.WeeklyPlan, error) {
	weeklyRepo := repository.NewWeeklyPlanRepository(s.db)
	return weeklyRepo.FindAll(ctx)
}

// SetGoal sets the plan's weekly goal text, creating the plan if needed.
func (s *weeklyServiceImpl) SetGoal(ctx context.Context, weekKey, goal string) (*domain.WeeklyPlan, error) {
	return s.updateColumn(ctx, weekKey, "goal", goal)
}

// SetReflection sets the plan's end-of-week reflection text.
func (s *weeklyServiceImpl) SetReflection(ctx context.Context, weekKey, reflection string) (*domain.WeeklyPlan, error) {
	return s.updateColumn(ctx, weekKey, "reflection", reflection)
}

// MoveItemToDay reassigns one wrapper item to a different day of its
// week through the engine, which owns every membership mutation.
func (s *weeklyServiceImpl) MoveItemToDay(ctx context.Context, weekKey, itemID, day string) (*domain.WeeklyPlan, error) {
	return s.engine.MoveWeekItemToDay(ctx, weekKey, itemID, day)
}

// updateColumn writes one document field of a plan, creating the plan
// lazily. Only the named column is written; the item list belongs to the
// engine and a concurrent placement must never be overwritten here.
func (s *weeklyServiceImpl) updateColumn(ctx context.Context, weekKey, column, value string) (*domain.WeeklyPlan, error) {
	if strings.TrimSpace(weekKey) == "" {
		return nil, response.NewAppError(response.ErrCodeValidation, "Week key is required", "")
	}

	var plan *domain.WeeklyPlan
	err := s.db.Transaction(func(tx *gorm.DB) error {
		weeklyRepo := repository.NewWeeklyPlanRepository(tx)

		if _, err := weeklyRepo.FindByKey(ctx, weekKey); err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
			if err := weeklyRepo.Create(ctx, &domain.WeeklyPlan{WeekKey: weekKey}); err != nil {
				return err
			}
		}
		if err := tx.WithContext(ctx).
			Model(&domain.WeeklyPlan{}).
			Where("week_key = ?", weekKey).
			Update(column, value).Error; err != nil {
			return err
		}

		found, err := weeklyRepo.FindByKey(ctx, weekKey)
		if err != nil {
			return err
		}
		plan = found
		return nil
	})
	if err != nil {
		return nil, err
	}
	return plan, nil
}
