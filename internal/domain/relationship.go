package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RelationshipType names the non-positional context kinds that are stored
// as relationship rows instead of board/weekly placements.
type RelationshipType string

const (
	RelationshipTag        RelationshipType = "tag"
	RelationshipCollection RelationshipType = "collection"
	RelationshipPeople     RelationshipType = "people"
)

// RelationshipTypeFor maps a context kind to its relationship type.
// Returns false for positional kinds (board, weekly).
func RelationshipTypeFor(kind ContextKind) (RelationshipType, bool) {
	switch kind {
	case ContextKindTag:
		return RelationshipTag, true
	case ContextKindCollection:
		return RelationshipCollection, true
	case ContextKindPeople:
		return RelationshipPeople, true
	}
	return "", false
}

// EntityRelationship links an entity to a tag, collection or person
// timeline. RelatedKey holds the tag name, collection ID or person
// entity ID depending on the relationship type.
type EntityRelationship struct {
	ID               uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	EntityID         string           `gorm:"type:varchar(64);not null;index:idx_relationships_entity;uniqueIndex:uq_relationships,priority:1" json:"entity_id"`
	RelatedKey       string           `gorm:"type:varchar(128);not null;index:idx_relationships_related;uniqueIndex:uq_relationships,priority:3" json:"related_key"`
	RelationshipType RelationshipType `gorm:"type:varchar(20);not null;uniqueIndex:uq_relationships,priority:2" json:"relationship_type"`
	CreatedAt        time.Time        `gorm:"type:timestamp;not null" json:"created_at"`
}

// TableName specifies the table name for EntityRelationship
func (EntityRelationship) TableName() string {
	return "entity_relationships"
}

// BeforeCreate assigns the row ID.
func (r *EntityRelationship) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
