package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"project-board-sync/internal/domain"
)

// EntityRepository defines the interface for entity data access
type EntityRepository interface {
	Create(ctx context.Context, entity *domain.Entity) error
	FindByID(ctx context.Context, id string) (*domain.Entity, error)
	FindByIDs(ctx context.Context, ids []string) ([]*domain.Entity, error)
	FindByType(ctx context.Context, entityType domain.EntityType) ([]*domain.Entity, error)
	FindAll(ctx context.Context) ([]*domain.Entity, error)
	Update(ctx context.Context, entity *domain.Entity) error
	Delete(ctx context.Context, id string) error
	NextID(ctx context.Context, entityType domain.EntityType) (string, error)
}

// entityRepositoryImpl is the GORM implementation of EntityRepository
type entityRepositoryImpl struct {
	db *gorm.DB
}

// NewEntityRepository creates a new instance of EntityRepository
func NewEntityRepository(db *gorm.DB) EntityRepository {
	return &entityRepositoryImpl{db: db}
}

// Create creates a new entity record
func (r *entityRepositoryImpl) Create(ctx context.Context, entity *domain.Entity) error {
	if err := r.db.WithContext(ctx).Create(entity).Error; err != nil {
		return err
	}
	return nil
}

// FindByID finds an entity by its ID
func (r *entityRepositoryImpl) FindByID(ctx context.Context, id string) (*domain.Entity, error) {
	var entity domain.Entity
	if err := r.db.WithContext(ctx).First(&entity, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &entity, nil
}

// FindByIDs finds entities by their IDs
func (r *entityRepositoryImpl) FindByIDs(ctx context.Context, ids []string) ([]*domain.Entity, error) {
	if len(ids) == 0 {
		return []*domain.Entity{}, nil
	}

	var entities []*domain.Entity
	if err := r.db.WithContext(ctx).
		Where("id IN ?", ids).
		Find(&entities).Error; err != nil {
		return nil, err
	}
	return entities, nil
}

// FindByType finds all entities of the given type
func (r *entityRepositoryImpl) FindByType(ctx context.Context, entityType domain.EntityType) ([]*domain.Entity, error) {
	var entities []*domain.Entity
	if err := r.db.WithContext(ctx).
		Where("type = ?", entityType).
		Order("created_at ASC").
		Find(&entities).Error; err != nil {
		return nil, err
	}
	return entities, nil
}

// FindAll returns every entity record
func (r *entityRepositoryImpl) FindAll(ctx context.Context) ([]*domain.Entity, error) {
	var entities []*domain.Entity
	if err := r.db.WithContext(ctx).
		Order("created_at ASC").
		Find(&entities).Error; err != nil {
		return nil, err
	}
	return entities, nil
}

// Update saves the full entity record
func (r *entityRepositoryImpl) Update(ctx context.Context, entity *domain.Entity) error {
	if err := r.db.WithContext(ctx).Save(entity).Error; err != nil {
		return err
	}
	return nil
}

// Delete removes an entity record by ID
func (r *entityRepositoryImpl) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Delete(&domain.Entity{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// NextID advances the per-type counter and returns the next entity ID.
// Must run inside the same transaction as the entity insert so a failed
// create does not burn an ID silently out of sequence.
func (r *entityRepositoryImpl) NextID(ctx context.Context, entityType domain.EntityType) (string, error) {
	var counter domain.EntityCounter
	err := r.db.WithContext(ctx).
		First(&counter, "entity_type = ?", string(entityType)).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return "", err
		}
		counter = domain.EntityCounter{EntityType: string(entityType), Counter: 0}
		if err := r.db.WithContext(ctx).Create(&counter).Error; err != nil {
			return "", fmt.Errorf("failed to initialize counter for %s: %w", entityType, err)
		}
	}

	counter.Counter++
	if err := r.db.WithContext(ctx).Save(&counter).Error; err != nil {
		return "", fmt.Errorf("failed to advance counter for %s: %w", entityType, err)
	}

	return domain.FormatEntityID(entityType, counter.Counter), nil
}
