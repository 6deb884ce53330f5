package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"project-board-sync/internal/domain"
)

// RelationshipRepository defines the interface for tag/collection/people
// relationship rows
type RelationshipRepository interface {
	Add(ctx context.Context, rel *domain.EntityRelationship) (created bool, err error)
	FindByEntity(ctx context.Context, entityID string) ([]*domain.EntityRelationship, error)
	FindByTypeAndKey(ctx context.Context, relType domain.RelationshipType, relatedKey string) ([]*domain.EntityRelationship, error)
	Remove(ctx context.Context, entityID string, relType domain.RelationshipType, relatedKey string) (int64, error)
	RemoveAllForEntity(ctx context.Context, entityID string) (int64, error)
}

// relationshipRepositoryImpl is the GORM implementation of RelationshipRepository
type relationshipRepositoryImpl struct {
	db *gorm.DB
}

// NewRelationshipRepository creates a new instance of RelationshipRepository
func NewRelationshipRepository(db *gorm.DB) RelationshipRepository {
	return &relationshipRepositoryImpl{db: db}
}

// Add inserts a relationship row unless an identical one exists
func (r *relationshipRepositoryImpl) Add(ctx context.Context, rel *domain.EntityRelationship) (bool, error) {
	var existing domain.EntityRelationship
	err := r.db.WithContext(ctx).
		Where("entity_id = ? AND relationship_type = ? AND related_key = ?",
			rel.EntityID, rel.RelationshipType, rel.RelatedKey).
		First(&existing).Error
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return false, err
	}

	if err := r.db.WithContext(ctx).Create(rel).Error; err != nil {
		return false, err
	}
	return true, nil
}

// FindByEntity returns every relationship row of an entity
func (r *relationshipRepositoryImpl) FindByEntity(ctx context.Context, entityID string) ([]*domain.EntityRelationship, error) {
	var rels []*domain.EntityRelationship
	if err := r.db.WithContext(ctx).
		Where("entity_id = ?", entityID).
		Order("created_at ASC").
		Find(&rels).Error; err != nil {
		return nil, err
	}
	return rels, nil
}

// FindByTypeAndKey returns the members of one tag/collection/timeline
func (r *relationshipRepositoryImpl) FindByTypeAndKey(ctx context.Context, relType domain.RelationshipType, relatedKey string) ([]*domain.EntityRelationship, error) {
	var rels []*domain.EntityRelationship
	if err := r.db.WithContext(ctx).
		Where("relationship_type = ? AND related_key = ?", relType, relatedKey).
		Order("created_at ASC").
		Find(&rels).Error; err != nil {
		return nil, err
	}
	return rels, nil
}

// Remove deletes the relationship rows matching the given key
func (r *relationshipRepositoryImpl) Remove(ctx context.Context, entityID string, relType domain.RelationshipType, relatedKey string) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("entity_id = ? AND relationship_type = ? AND related_key = ?", entityID, relType, relatedKey).
		Delete(&domain.EntityRelationship{})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// RemoveAllForEntity deletes every relationship row of an entity
func (r *relationshipRepositoryImpl) RemoveAllForEntity(ctx context.Context, entityID string) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("entity_id = ?", entityID).
		Delete(&domain.EntityRelationship{})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}
