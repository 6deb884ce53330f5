package domain

import (
	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Board is a kanban board document. Columns is the ordered list of column
// keys shared by every row of the board.
type Board struct {
	BaseModel
	Name    string                      `gorm:"type:varchar(255);not null" json:"name"`
	Columns datatypes.JSONSlice[string] `json:"columns"`
	Rows    []BoardRow                  `gorm:"foreignKey:BoardID;constraint:OnDelete:CASCADE" json:"rows,omitempty"`
}

// TableName specifies the table name for Board
func (Board) TableName() string {
	return "boards"
}

// HasColumn reports whether key is one of the board's column keys.
func (b *Board) HasColumn(key string) bool {
	for _, c := range b.Columns {
		if c == key {
			return true
		}
	}
	return false
}

// CardMap is the denormalized per-row placement cache: for each column
// key, the ordered list of entity IDs in that cell. Ordering here is the
// display order and is authoritative for drag-and-drop; context
// membership is authoritative in entity_positions. The two must always
// imply the same set of (row, column) occurrences per entity.
type CardMap map[string][]string

// BoardRow is one row of a board, carrying the card cache for its cells.
type BoardRow struct {
	BaseModel
	BoardID  uuid.UUID                     `gorm:"type:uuid;not null;index:idx_board_rows_board" json:"board_id"`
	Name     string                        `gorm:"type:varchar(255);not null" json:"name"`
	Position int                           `gorm:"not null;default:0" json:"position"`
	Cards    datatypes.JSONType[CardMap]   `json:"cards"`
}

// TableName specifies the table name for BoardRow
func (BoardRow) TableName() string {
	return "board_rows"
}

// CellIDs returns the ordered entity IDs in one cell of the row.
func (r *BoardRow) CellIDs(columnKey string) []string {
	return r.Cards.Data()[columnKey]
}

// SetCell replaces the ordered entity IDs of one cell.
func (r *BoardRow) SetCell(columnKey string, ids []string) {
	cards := r.Cards.Data()
	if cards == nil {
		cards = CardMap{}
	}
	cards[columnKey] = ids
	r.Cards = datatypes.NewJSONType(cards)
}
