package dto

import (
	"time"

	"project-board-sync/internal/domain"
)

// ChecklistItemPayload is one checklist line in requests and responses.
type ChecklistItemPayload struct {
	ID        string `json:"id,omitempty"`
	Text      string `json:"text"`
	Completed bool   `json:"completed"`
}

// CreateEntityRequest represents the request to create a new entity.
// Type-specific fields are ignored for types that do not use them.
type CreateEntityRequest struct {
	Type     domain.EntityType      `json:"type"`
	Title    string                 `json:"title"`
	Content  string                 `json:"content,omitempty"`
	Priority string                 `json:"priority,omitempty"`
	DueDate  *time.Time             `json:"dueDate,omitempty"`
	Tags     []string               `json:"tags,omitempty"`
	Items    []ChecklistItemPayload `json:"items,omitempty"`
	People   []string               `json:"people,omitempty"`
}

// UpdateEntityRequest represents a partial entity update. All fields are
// optional; type and ID are immutable and not accepted here.
type UpdateEntityRequest struct {
	Title     *string                 `json:"title,omitempty"`
	Content   *string                 `json:"content,omitempty"`
	Completed *bool                   `json:"completed,omitempty"`
	Priority  *string                 `json:"priority,omitempty"`
	DueDate   *time.Time              `json:"dueDate,omitempty"`
	Tags      *[]string               `json:"tags,omitempty"`
	Items     *[]ChecklistItemPayload `json:"items,omitempty"`
	People    *[]string               `json:"people,omitempty"`
}

// EntityFilters narrows entity listing.
type EntityFilters struct {
	Type      *domain.EntityType `json:"type,omitempty"`
	Tag       *string            `json:"tag,omitempty"`
	Completed *bool              `json:"completed,omitempty"`
}

// EntityResponse represents the entity response
type EntityResponse struct {
	ID             string                 `json:"id"`
	Type           domain.EntityType      `json:"type"`
	Title          string                 `json:"title"`
	Content        string                 `json:"content"`
	Completed      bool                   `json:"completed"`
	Priority       string                 `json:"priority,omitempty"`
	DueDate        *time.Time             `json:"dueDate,omitempty"`
	Tags           []string               `json:"tags"`
	Items          []ChecklistItemPayload `json:"items,omitempty"`
	ParentEntityID *string                `json:"parentEntityId,omitempty"`
	Subtasks       []string               `json:"subtasks,omitempty"`
	People         []string               `json:"people,omitempty"`
	CreatedAt      time.Time              `json:"createdAt"`
	UpdatedAt      time.Time              `json:"updatedAt"`
}
