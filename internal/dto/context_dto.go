package dto

import (
	"time"

	"project-board-sync/internal/domain"
)

// MembershipResponse is one membership record of an entity.
type MembershipResponse struct {
	ContextKind domain.ContextKind `json:"contextKind"`
	ContextKey  string             `json:"contextKey"`
	RowID       string             `json:"rowId,omitempty"`
	ColumnKey   string             `json:"columnKey,omitempty"`
	Day         string             `json:"day,omitempty"`
	AddedAt     time.Time          `json:"addedAt"`
}

// ContextSummary backs the cross-context indicator badge: how many other
// places an entity also lives in, broken down by kind.
type ContextSummary struct {
	EntityID        string `json:"entityId"`
	BoardCount      int    `json:"boardCount"`
	WeeklyCount     int    `json:"weeklyCount"`
	CollectionCount int    `json:"collectionCount"`
	TagCount        int    `json:"tagCount"`
	PeopleCount     int    `json:"peopleCount"`
	Total           int    `json:"total"`
}
