package repository

import (
	"context"

	"gorm.io/gorm"

	"project-board-sync/internal/domain"
)

// WeeklyPlanRepository defines the interface for weekly-plan access
type WeeklyPlanRepository interface {
	Create(ctx context.Context, plan *domain.WeeklyPlan) error
	FindByKey(ctx context.Context, weekKey string) (*domain.WeeklyPlan, error)
	FindAll(ctx context.Context) ([]*domain.WeeklyPlan, error)
	Update(ctx context.Context, plan *domain.WeeklyPlan) error
	Delete(ctx context.Context, weekKey string) error
}

// weeklyPlanRepositoryImpl is the GORM implementation of WeeklyPlanRepository
type weeklyPlanRepositoryImpl struct {
	db *gorm.DB
}

// NewWeeklyPlanRepository creates a new instance of WeeklyPlanRepository
func NewWeeklyPlanRepository(db *gorm.DB) WeeklyPlanRepository {
	return &weeklyPlanRepositoryImpl{db: db}
}

// Create creates a new weekly plan
func (r *weeklyPlanRepositoryImpl) Create(ctx context.Context, plan *domain.WeeklyPlan) error {
	if err := r.db.WithContext(ctx).Create(plan).Error; err != nil {
		return err
	}
	return nil
}

// FindByKey finds a weekly plan by its week key
func (r *weeklyPlanRepositoryImpl) FindByKey(ctx context.Context, weekKey string) (*domain.WeeklyPlan, error) {
	var plan domain.WeeklyPlan
	if err := r.db.WithContext(ctx).First(&plan, "week_key = ?", weekKey).Error; err != nil {
		return nil, err
	}
	return &plan, nil
}

// FindAll returns every weekly plan
func (r *weeklyPlanRepositoryImpl) FindAll(ctx context.Context) ([]*domain.WeeklyPlan, error) {
	var plans []*domain.WeeklyPlan
	if err := r.db.WithContext(ctx).
		Order("week_key ASC").
		Find(&plans).Error; err != nil {
		return nil, err
	}
	return plans, nil
}

// Update saves a weekly plan, including its item cache
func (r *weeklyPlanRepositoryImpl) Update(ctx context.Context, plan *domain.WeeklyPlan) error {
	if err := r.db.WithContext(ctx).Save(plan).Error; err != nil {
		return err
	}
	return nil
}

// Delete removes a weekly plan
func (r *weeklyPlanRepositoryImpl) Delete(ctx context.Context, weekKey string) error {
	result := r.db.WithContext(ctx).Delete(&domain.WeeklyPlan{}, "week_key = ?", weekKey)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
