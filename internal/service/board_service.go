package service

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"project-board-sync/internal/domain"
	"project-board-sync/internal/dto"
	"project-board-sync/internal/repository"
	"project-board-sync/internal/response"
)

// BoardService manages board documents and their rows. Card placement
// inside rows goes through the sync engine; this service only creates
// and shapes the containers.
type BoardService interface {
	CreateBoard(ctx context.Context, req *dto.CreateBoardRequest) (*domain.Board, error)
	EnsureDefaultBoard(ctx context.Context) (*domain.Board, error)
	GetBoard(ctx context.Context, boardID uuid.UUID) (*domain.Board, error)
	ListBoards(ctx context.Context) ([]*domain.Board, error)
	RenameBoard(ctx context.Context, boardID uuid.UUID, name string) (*domain.Board, error)
	DeleteBoard(ctx context.Context, boardID uuid.UUID) error
	AddRow(ctx context.Context, boardID uuid.UUID, name string) (*domain.BoardRow, error)
	RenameRow(ctx context.Context, rowID uuid.UUID, name string) (*domain.BoardRow, error)
	DeleteRow(ctx context.Context, boardID, rowID uuid.UUID) error
}

// boardServiceImpl is the implementation of BoardService
type boardServiceImpl struct {
	db             *gorm.DB
	engine         SyncEngine
	defaultColumns []string
	logger         *zap.Logger
}

// NewBoardService creates a new instance of BoardService
func NewBoardService(db *gorm.DB, engine SyncEngine, defaultColumns []string, logger *zap.Logger) BoardService {
	if len(defaultColumns) == 0 {
		defaultColumns = []string{"todo", "doing", "done"}
	}
	return &boardServiceImpl{
		db:             db,
		engine:         engine,
		defaultColumns: defaultColumns,
		logger:         logger,
	}
}

// CreateBoard creates a board with its initial rows. Every row starts
// with an empty cell for each column so the cache shape is complete from
// the start.
func (s *boardServiceImpl) CreateBoard(ctx context.Context, req *dto.CreateBoardRequest) (*domain.Board, error) {
	if strings.TrimSpace(req.Name) == "" {
		return nil, response.NewAppError(response.ErrCodeValidation, "Board name is required", "")
	}
	columns := req.Columns
	if len(columns) == 0 {
		columns = s.defaultColumns
	}
	rowNames := req.Rows
	if len(rowNames) == 0 {
		rowNames = []string{"General"}
	}

	var board *domain.Board
	err := s.db.Transaction(func(tx *gorm.DB) error {
		boardRepo := repository.NewBoardRepository(tx)

		board = &domain.Board{
			Name:    req.Name,
			Columns: columns,
		}
		if err := boardRepo.Create(ctx, board); err != nil {
			return err
		}

		for i, name := range rowNames {
			row := &domain.BoardRow{
				BoardID:  board.ID,
				Name:     name,
				Position: i,
			}
			for _, col := range columns {
				row.SetCell(col, []string{})
			}
			if err := boardRepo.CreateRow(ctx, row); err != nil {
				return err
			}
			board.Rows = append(board.Rows, *row)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Board created",
		zap.String("board_id", board.ID.String()),
		zap.String("name", board.Name))
	return board, nil
}

// EnsureDefaultBoard creates the initial board when the store holds none,
// so a fresh installation starts with a usable board. Existing boards are
// left untouched.
func (s *boardServiceImpl) EnsureDefaultBoard(ctx context.Context) (*domain.Board, error) {
	boards, err := s.ListBoards(ctx)
	if err != nil {
		return nil, err
	}
	if len(boards) > 0 {
		return boards[0], nil
	}
	return s.CreateBoard(ctx, &dto.CreateBoardRequest{Name: "Personal"})
}

// GetBoard retrieves a board with its rows in display order
func (s *boardServiceImpl) GetBoard(ctx context.Context, boardID uuid.UUID) (*domain.Board, error) {
	boardRepo := repository.NewBoardRepository(s.db)
	board, err := boardRepo.FindByID(ctx, boardID)
	if err != nil {
		return nil, notFoundOr(err, "Board not found")
	}
	return board, nil
}

// ListBoards returns every board
func (s *boardServiceImpl) ListBoards(ctx context.Context) ([]*domain.Board, error) {
	boardRepo := repository.NewBoardRepository(s.db)
	return boardRepo.FindAll(ctx)
}

// RenameBoard changes a board's display name
func (s *boardServiceImpl) RenameBoard(ctx context.Context, boardID uuid.UUID, name string) (*domain.Board, error) {
	if strings.TrimSpace(name) == "" {
		return nil, response.NewAppError(response.ErrCodeValidation, "Board name is required", "")
	}

	var board *domain.Board
	err := s.db.Transaction(func(tx *gorm.DB) error {
		boardRepo := repository.NewBoardRepository(tx)

		found, err := boardRepo.FindByID(ctx, boardID)
		if err != nil {
			return notFoundOr(err, "Board not found")
		}
		found.Name = name
		if err := boardRepo.Update(ctx, found); err != nil {
			return err
		}
		board = found
		return nil
	})
	if err != nil {
		return nil, err
	}
	return board, nil
}

// DeleteBoard removes a board through the engine, which owns every
// membership mutation. Entities placed on the board survive; only their
// placements in this board disappear.
func (s *boardServiceImpl) DeleteBoard(ctx context.Context, boardID uuid.UUID) error {
	return s.engine.DeleteBoard(ctx, boardID)
}

// AddRow appends a row to a board with empty cells for every column.
func (s *boardServiceImpl) AddRow(ctx context.Context, boardID uuid.UUID, name string) (*domain.BoardRow, error) {
	if strings.TrimSpace(name) == "" {
		return nil, response.NewAppError(response.ErrCodeValidation, "Row name is required", "")
	}

	var row *domain.BoardRow
	err := s.db.Transaction(func(tx *gorm.DB) error {
		boardRepo := repository.NewBoardRepository(tx)

		board, err := boardRepo.FindByID(ctx, boardID)
		if err != nil {
			return notFoundOr(err, "Board not found")
		}

		row = &domain.BoardRow{
			BoardID:  board.ID,
			Name:     name,
			Position: len(board.Rows),
		}
		for _, col := range board.Columns {
			row.SetCell(col, []string{})
		}
		return boardRepo.CreateRow(ctx, row)
	})
	if err != nil {
		return nil, err
	}
	return row, nil
}

// RenameRow changes a row's display name
func (s *boardServiceImpl) RenameRow(ctx context.Context, rowID uuid.UUID, name string) (*domain.BoardRow, error) {
	if strings.TrimSpace(name) == "" {
		return nil, response.NewAppError(response.ErrCodeValidation, "Row name is required", "")
	}

	var row *domain.BoardRow
	err := s.db.Transaction(func(tx *gorm.DB) error {
		boardRepo := repository.NewBoardRepository(tx)

		found, err := boardRepo.FindRowByID(ctx, rowID)
		if err != nil {
			return notFoundOr(err, "Row not found")
		}
		found.Name = name
		if err := boardRepo.UpdateRow(ctx, found); err != nil {
			return err
		}
		row = found
		return nil
	})
	if err != nil {
		return nil, err
	}
	return row, nil
}

// DeleteRow removes a row through the engine, which owns every
// membership mutation.
func (s *boardServiceImpl) DeleteRow(ctx context.Context, boardID, rowID uuid.UUID) error {
	return s.engine.DeleteRow(ctx, boardID, rowID)
}
