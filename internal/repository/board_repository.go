package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"project-board-sync/internal/domain"
)

// BoardRepository defines the interface for board and board-row access
type BoardRepository interface {
	Create(ctx context.Context, board *domain.Board) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Board, error)
	FindAll(ctx context.Context) ([]*domain.Board, error)
	Update(ctx context.Context, board *domain.Board) error
	Delete(ctx context.Context, id uuid.UUID) error

	CreateRow(ctx context.Context, row *domain.BoardRow) error
	FindRowByID(ctx context.Context, rowID uuid.UUID) (*domain.BoardRow, error)
	FindRowsByBoard(ctx context.Context, boardID uuid.UUID) ([]*domain.BoardRow, error)
	UpdateRow(ctx context.Context, row *domain.BoardRow) error
	DeleteRow(ctx context.Context, rowID uuid.UUID) error
}

// boardRepositoryImpl is the GORM implementation of BoardRepository
type boardRepositoryImpl struct {
	db *gorm.DB
}

// NewBoardRepository creates a new instance of BoardRepository
func NewBoardRepository(db *gorm.DB) BoardRepository {
	return &boardRepositoryImpl{db: db}
}

// Create creates a new board
func (r *boardRepositoryImpl) Create(ctx context.Context, board *domain.Board) error {
	if err := r.db.WithContext(ctx).Create(board).Error; err != nil {
		return err
	}
	return nil
}

// FindByID finds a board by ID, preloading its rows in display order
func (r *boardRepositoryImpl) FindByID(ctx context.Context, id uuid.UUID) (*domain.Board, error) {
	var board domain.Board
	if err := r.db.WithContext(ctx).
		Preload("Rows", func(db *gorm.DB) *gorm.DB {
			return db.Order("board_rows.position ASC")
		}).
		First(&board, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &board, nil
}

// FindAll returns every board with its rows
func (r *boardRepositoryImpl) FindAll(ctx context.Context) ([]*domain.Board, error) {
	var boards []*domain.Board
	if err := r.db.WithContext(ctx).
		Preload("Rows", func(db *gorm.DB) *gorm.DB {
			return db.Order("board_rows.position ASC")
		}).
		Order("created_at ASC").
		Find(&boards).Error; err != nil {
		return nil, err
	}
	return boards, nil
}

// Update saves board attributes (not rows)
func (r *boardRepositoryImpl) Update(ctx context.Context, board *domain.Board) error {
	if err := r.db.WithContext(ctx).Omit("Rows").Save(board).Error; err != nil {
		return err
	}
	return nil
}

// Delete removes a board and its rows
func (r *boardRepositoryImpl) Delete(ctx context.Context, id uuid.UUID) error {
	if err := r.db.WithContext(ctx).
		Where("board_id = ?", id).
		Delete(&domain.BoardRow{}).Error; err != nil {
		return err
	}
	result := r.db.WithContext(ctx).Delete(&domain.Board{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// CreateRow creates a new board row
func (r *boardRepositoryImpl) CreateRow(ctx context.Context, row *domain.BoardRow) error {
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		return err
	}
	return nil
}

// FindRowByID finds a board row by ID
func (r *boardRepositoryImpl) FindRowByID(ctx context.Context, rowID uuid.UUID) (*domain.BoardRow, error) {
	var row domain.BoardRow
	if err := r.db.WithContext(ctx).First(&row, "id = ?", rowID).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// FindRowsByBoard returns a board's rows in display order
func (r *boardRepositoryImpl) FindRowsByBoard(ctx context.Context, boardID uuid.UUID) ([]*domain.BoardRow, error) {
	var rows []*domain.BoardRow
	if err := r.db.WithContext(ctx).
		Where("board_id = ?", boardID).
		Order("position ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// UpdateRow saves a board row, including its card cache
func (r *boardRepositoryImpl) UpdateRow(ctx context.Context, row *domain.BoardRow) error {
	if err := r.db.WithContext(ctx).Save(row).Error; err != nil {
		return err
	}
	return nil
}

// DeleteRow removes a board row
func (r *boardRepositoryImpl) DeleteRow(ctx context.Context, rowID uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&domain.BoardRow{}, "id = ?", rowID)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
