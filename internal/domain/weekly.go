package domain

import (
	"time"

	"gorm.io/datatypes"
)

// WeekItem wraps one entity placement inside a weekly plan. The wrapper,
// not the entity, carries the per-placement identity, so duplicate
// placements of the same entity remain individually addressable.
type WeekItem struct {
	ItemID   string    `json:"item_id"`
	EntityID string    `json:"entity_id"`
	Day      string    `json:"day,omitempty"`
	AddedAt  time.Time `json:"added_at"`
}

// WeeklyPlan is the per-week planning document, keyed by an ISO week key
// such as "2024-W10". Items is the denormalized weekly placement cache.
type WeeklyPlan struct {
	WeekKey    string                         `gorm:"type:varchar(16);primaryKey" json:"week_key"`
	Goal       string                         `gorm:"type:text" json:"goal"`
	Reflection string                         `gorm:"type:text" json:"reflection"`
	Items      datatypes.JSONSlice[WeekItem]  `json:"items"`
	CreatedAt  time.Time                      `gorm:"type:timestamp;not null" json:"created_at"`
	UpdatedAt  time.Time                      `gorm:"type:timestamp;not null" json:"updated_at"`
}

// TableName specifies the table name for WeeklyPlan
func (WeeklyPlan) TableName() string {
	return "weekly_plans"
}

// ItemsFor returns the wrapper records referencing entityID.
func (w *WeeklyPlan) ItemsFor(entityID string) []WeekItem {
	var out []WeekItem
	for _, it := range w.Items {
		if it.EntityID == entityID {
			out = append(out, it)
		}
	}
	return out
}

// Days of a weekly plan. An empty day means the unscheduled backlog.
var WeekDays = []string{"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday"}

// ValidDay reports whether day names a weekday or the backlog (empty).
func ValidDay(day string) bool {
	if day == "" {
		return true
	}
	for _, d := range WeekDays {
		if d == day {
			return true
		}
	}
	return false
}
