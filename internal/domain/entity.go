package domain

import (
	"fmt"
	"time"

	"gorm.io/datatypes"
)

// EntityType identifies the kind of content an entity holds.
// The type is fixed at creation time and never changes.
type EntityType string

const (
	EntityTypeTask      EntityType = "task"
	EntityTypeNote      EntityType = "note"
	EntityTypeChecklist EntityType = "checklist"
	EntityTypeProject   EntityType = "project"
	EntityTypePerson    EntityType = "person"
)

// AllEntityTypes lists every supported entity type.
var AllEntityTypes = []EntityType{
	EntityTypeTask,
	EntityTypeNote,
	EntityTypeChecklist,
	EntityTypeProject,
	EntityTypePerson,
}

// Valid reports whether t is a known entity type.
func (t EntityType) Valid() bool {
	switch t {
	case EntityTypeTask, EntityTypeNote, EntityTypeChecklist, EntityTypeProject, EntityTypePerson:
		return true
	}
	return false
}

// CanHaveSubtasks reports whether entities of this type may hold child
// tasks. This is an explicit allow-list, not inferred from field presence.
func (t EntityType) CanHaveSubtasks() bool {
	return t == EntityTypeTask || t == EntityTypeProject
}

// Priority levels for task-type entities.
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

// ValidPriority reports whether p is a known priority level.
func ValidPriority(p string) bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// ChecklistItem is a single line inside a checklist entity.
type ChecklistItem struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	Completed bool   `json:"completed"`
}

// Entity is the canonical content record. Placement in boards, weekly
// plans, tags, collections and person timelines is tracked separately in
// the position index; the entity itself carries no placement state.
type Entity struct {
	ID             string                              `gorm:"type:varchar(64);primaryKey" json:"id"`
	Type           EntityType                          `gorm:"type:varchar(20);not null;index:idx_entities_type" json:"type"`
	Title          string                              `gorm:"type:varchar(255);not null" json:"title"`
	Content        string                              `gorm:"type:text" json:"content"`
	Completed      bool                                `gorm:"not null;default:false" json:"completed"`
	Priority       string                              `gorm:"type:varchar(20)" json:"priority,omitempty"`
	DueDate        *time.Time                          `gorm:"type:timestamp;index:idx_entities_due_date" json:"due_date,omitempty"`
	Tags           datatypes.JSONSlice[string]         `json:"tags"`
	Items          datatypes.JSONSlice[ChecklistItem]  `json:"items"`
	ParentEntityID *string                             `gorm:"type:varchar(64);index:idx_entities_parent" json:"parent_entity_id,omitempty"`
	Subtasks       datatypes.JSONSlice[string]         `json:"subtasks"`
	People         datatypes.JSONSlice[string]         `json:"people"`
	CreatedAt      time.Time                           `gorm:"type:timestamp;not null" json:"created_at"`
	UpdatedAt      time.Time                           `gorm:"type:timestamp;not null" json:"updated_at"`
}

// TableName specifies the table name for Entity
func (Entity) TableName() string {
	return "entities"
}

// HasSubtask reports whether childID is listed in the entity's subtasks.
func (e *Entity) HasSubtask(childID string) bool {
	for _, id := range e.Subtasks {
		if id == childID {
			return true
		}
	}
	return false
}

// EntityCounter backs the per-type monotonically increasing ID sequence,
// so entity IDs stay human-legible ("task-3", "note-12").
type EntityCounter struct {
	EntityType string `gorm:"type:varchar(20);primaryKey" json:"entity_type"`
	Counter    int64  `gorm:"not null;default:0" json:"counter"`
}

// TableName specifies the table name for EntityCounter
func (EntityCounter) TableName() string {
	return "entity_counters"
}

// FormatEntityID builds the human-legible ID for the nth entity of a type.
func FormatEntityID(t EntityType, n int64) string {
	return fmt.Sprintf("%s-%d", t, n)
}
