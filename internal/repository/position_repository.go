package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"project-board-sync/internal/domain"
)

// PositionRepository defines the interface for membership-record access.
// This table is the authoritative answer to "where does this entity
// live"; the board and weekly caches are derived from it.
type PositionRepository interface {
	Add(ctx context.Context, position *domain.EntityPosition) (created bool, err error)
	FindByEntity(ctx context.Context, entityID string) ([]*domain.EntityPosition, error)
	FindByEntityAndKind(ctx context.Context, entityID string, kind domain.ContextKind) ([]*domain.EntityPosition, error)
	FindByContext(ctx context.Context, kind domain.ContextKind, contextKey string) ([]*domain.EntityPosition, error)
	Remove(ctx context.Context, entityID string, kind domain.ContextKind, contextKey string, placement *domain.Placement) (int64, error)
	RemoveAllForEntity(ctx context.Context, entityID string) (int64, error)
	RemoveByContext(ctx context.Context, kind domain.ContextKind, contextKey string) (int64, error)
}

// positionRepositoryImpl is the GORM implementation of PositionRepository
type positionRepositoryImpl struct {
	db *gorm.DB
}

// NewPositionRepository creates a new instance of PositionRepository
func NewPositionRepository(db *gorm.DB) PositionRepository {
	return &positionRepositoryImpl{db: db}
}

// Add inserts a membership record unless an identical one already exists.
// Adding the same (entity, kind, key, placement) twice is idempotent and
// reports created=false the second time.
func (r *positionRepositoryImpl) Add(ctx context.Context, position *domain.EntityPosition) (bool, error) {
	var existing domain.EntityPosition
	err := r.db.WithContext(ctx).
		Where("entity_id = ? AND context_kind = ? AND context_key = ? AND row_id = ? AND column_key = ? AND day = ?",
			position.EntityID, position.ContextKind, position.ContextKey,
			position.RowID, position.ColumnKey, position.Day).
		First(&existing).Error
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return false, err
	}

	if err := r.db.WithContext(ctx).Create(position).Error; err != nil {
		return false, err
	}
	return true, nil
}

// FindByEntity returns every membership record of an entity
func (r *positionRepositoryImpl) FindByEntity(ctx context.Context, entityID string) ([]*domain.EntityPosition, error) {
	var positions []*domain.EntityPosition
	if err := r.db.WithContext(ctx).
		Where("entity_id = ?", entityID).
		Order("added_at ASC").
		Find(&positions).Error; err != nil {
		return nil, err
	}
	return positions, nil
}

// FindByEntityAndKind returns an entity's memberships of one kind
func (r *positionRepositoryImpl) FindByEntityAndKind(ctx context.Context, entityID string, kind domain.ContextKind) ([]*domain.EntityPosition, error) {
	var positions []*domain.EntityPosition
	if err := r.db.WithContext(ctx).
		Where("entity_id = ? AND context_kind = ?", entityID, kind).
		Order("added_at ASC").
		Find(&positions).Error; err != nil {
		return nil, err
	}
	return positions, nil
}

// FindByContext returns every membership record of one context instance
func (r *positionRepositoryImpl) FindByContext(ctx context.Context, kind domain.ContextKind, contextKey string) ([]*domain.EntityPosition, error) {
	var positions []*domain.EntityPosition
	if err := r.db.WithContext(ctx).
		Where("context_kind = ? AND context_key = ?", kind, contextKey).
		Order("added_at ASC").
		Find(&positions).Error; err != nil {
		return nil, err
	}
	return positions, nil
}

// Remove deletes membership records of an entity in one context instance.
// A nil placement removes all memberships of the entity in that instance;
// otherwise only records matching the placement fields are removed.
func (r *positionRepositoryImpl) Remove(ctx context.Context, entityID string, kind domain.ContextKind, contextKey string, placement *domain.Placement) (int64, error) {
	query := r.db.WithContext(ctx).
		Where("entity_id = ? AND context_kind = ? AND context_key = ?", entityID, kind, contextKey)
	if placement != nil {
		if placement.RowID != "" {
			query = query.Where("row_id = ?", placement.RowID)
		}
		if placement.ColumnKey != "" {
			query = query.Where("column_key = ?", placement.ColumnKey)
		}
		if placement.Day != "" {
			query = query.Where("day = ?", placement.Day)
		}
	}

	result := query.Delete(&domain.EntityPosition{})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// RemoveAllForEntity deletes every membership record of an entity
func (r *positionRepositoryImpl) RemoveAllForEntity(ctx context.Context, entityID string) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("entity_id = ?", entityID).
		Delete(&domain.EntityPosition{})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// RemoveByContext deletes every membership record of a context instance
func (r *positionRepositoryImpl) RemoveByContext(ctx context.Context, kind domain.ContextKind, contextKey string) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("context_kind = ? AND context_key = ?", kind, contextKey).
		Delete(&domain.EntityPosition{})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}
