package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ContextKind identifies the kind of place an entity can be organized in.
type ContextKind string

const (
	ContextKindBoard      ContextKind = "board"
	ContextKindWeekly     ContextKind = "weekly"
	ContextKindCollection ContextKind = "collection"
	ContextKindTag        ContextKind = "tag"
	ContextKindPeople     ContextKind = "people"
)

// Valid reports whether k is a known membership context kind.
func (k ContextKind) Valid() bool {
	switch k {
	case ContextKindBoard, ContextKindWeekly, ContextKindCollection, ContextKindTag, ContextKindPeople:
		return true
	}
	return false
}

// Placement narrows a membership to a spot inside a context instance:
// a row/column cell for boards, a day for weekly plans. Kinds without an
// inner position leave all fields empty.
type Placement struct {
	RowID     string `json:"row_id,omitempty"`
	ColumnKey string `json:"column_key,omitempty"`
	Day       string `json:"day,omitempty"`
}

// IsZero reports whether no placement fields are set.
func (p Placement) IsZero() bool {
	return p.RowID == "" && p.ColumnKey == "" && p.Day == ""
}

// EntityPosition is the authoritative membership record: the fact that an
// entity belongs to one context instance. An entity may hold any number
// of these per kind; the denormalized caches on boards and weekly plans
// are derived from this table and must never disagree with it.
type EntityPosition struct {
	ID          uuid.UUID   `gorm:"type:uuid;primaryKey" json:"id"`
	EntityID    string      `gorm:"type:varchar(64);not null;index:idx_positions_entity;uniqueIndex:uq_positions_placement,priority:1" json:"entity_id"`
	ContextKind ContextKind `gorm:"type:varchar(20);not null;index:idx_positions_context,priority:1;uniqueIndex:uq_positions_placement,priority:2" json:"context_kind"`
	ContextKey  string      `gorm:"type:varchar(128);not null;index:idx_positions_context,priority:2;uniqueIndex:uq_positions_placement,priority:3" json:"context_key"`
	RowID       string      `gorm:"type:varchar(64);uniqueIndex:uq_positions_placement,priority:4" json:"row_id,omitempty"`
	ColumnKey   string      `gorm:"type:varchar(64);uniqueIndex:uq_positions_placement,priority:5" json:"column_key,omitempty"`
	Day         string      `gorm:"type:varchar(16);uniqueIndex:uq_positions_placement,priority:6" json:"day,omitempty"`
	AddedAt     time.Time   `gorm:"type:timestamp;not null" json:"added_at"`
}

// TableName specifies the table name for EntityPosition
func (EntityPosition) TableName() string {
	return "entity_positions"
}

// BeforeCreate assigns the row ID and AddedAt stamp.
func (p *EntityPosition) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.AddedAt.IsZero() {
		p.AddedAt = time.Now().UTC()
	}
	return nil
}

// Placement returns the inner placement carried by the membership.
func (p *EntityPosition) Placement() Placement {
	return Placement{RowID: p.RowID, ColumnKey: p.ColumnKey, Day: p.Day}
}
