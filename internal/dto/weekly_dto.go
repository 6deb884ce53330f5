package dto

import "time"

// WeekItemResponse is one wrapper record of a weekly plan.
type WeekItemResponse struct {
	ItemID   string    `json:"itemId"`
	EntityID string    `json:"entityId"`
	Day      string    `json:"day,omitempty"`
	AddedAt  time.Time `json:"addedAt"`
}

// WeeklyPlanResponse represents the weekly plan response
type WeeklyPlanResponse struct {
	WeekKey    string             `json:"weekKey"`
	Goal       string             `json:"goal"`
	Reflection string             `json:"reflection"`
	Items      []WeekItemResponse `json:"items"`
	CreatedAt  time.Time          `json:"createdAt"`
	UpdatedAt  time.Time          `json:"updatedAt"`
}
