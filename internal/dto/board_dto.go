package dto

import (
	"time"

	"github.com/google/uuid"
)

// CreateBoardRequest represents the request to create a new board.
// Columns and Rows fall back to engine defaults when empty.
type CreateBoardRequest struct {
	Name    string   `json:"name"`
	Columns []string `json:"columns,omitempty"`
	Rows    []string `json:"rows,omitempty"`
}

// BoardRowResponse is one row of a board with its card cache.
type BoardRowResponse struct {
	ID       uuid.UUID           `json:"rowId"`
	Name     string              `json:"name"`
	Position int                 `json:"position"`
	Cards    map[string][]string `json:"cards"`
}

// BoardResponse represents the board response
type BoardResponse struct {
	ID        uuid.UUID          `json:"boardId"`
	Name      string             `json:"name"`
	Columns   []string           `json:"columns"`
	Rows      []BoardRowResponse `json:"rows"`
	CreatedAt time.Time          `json:"createdAt"`
	UpdatedAt time.Time          `json:"updatedAt"`
}
