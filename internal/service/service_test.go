package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"project-board-sync/internal/database"
	"project-board-sync/internal/domain"
	"project-board-sync/internal/dto"
	"project-board-sync/internal/repository"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	if err := database.AutoMigrate(db); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return db
}

type testEnv struct {
	db       *gorm.DB
	locks    *EntityLocks
	engine   SyncEngine
	entities EntityService
	subtasks SubtaskService
	boards   BoardService
	weekly   WeeklyService
	notifier *recordingNotifier
}

// recordingNotifier captures re-render notifications for assertions.
type recordingNotifier struct {
	changed []string
}

func (n *recordingNotifier) EntitiesChanged(entityIDs ...string) {
	n.changed = append(n.changed, entityIDs...)
}

func newTestEnv(t *testing.T) *testEnv {
	db := setupTestDB(t)
	logger := zap.NewNop()
	locks := NewEntityLocks()
	notifier := &recordingNotifier{}
	engine := NewSyncEngine(db, locks, notifier, nil, logger)
	return &testEnv{
		db:       db,
		locks:    locks,
		engine:   engine,
		entities: NewEntityService(db, engine, locks, nil, logger),
		subtasks: NewSubtaskService(db, engine, locks, logger),
		boards:   NewBoardService(db, engine, nil, logger),
		weekly:   NewWeeklyService(db, engine, logger),
		notifier: notifier,
	}
}

func (env *testEnv) createTask(t *testing.T, title string) *domain.Entity {
	t.Helper()
	entity, err := env.entities.CreateEntity(context.Background(), &dto.CreateEntityRequest{
		Type:  domain.EntityTypeTask,
		Title: title,
	})
	require.NoError(t, err)
	return entity
}

func (env *testEnv) createBoard(t *testing.T, name string, rows ...string) *domain.Board {
	t.Helper()
	if len(rows) == 0 {
		rows = []string{"General"}
	}
	board, err := env.boards.CreateBoard(context.Background(), &dto.CreateBoardRequest{
		Name: name,
		Rows: rows,
	})
	require.NoError(t, err)
	return board
}

// checkBoardConsistency asserts that for every board the set of cache
// occurrences equals the set of membership records.
func checkBoardConsistency(t *testing.T, db *gorm.DB) {
	t.Helper()
	ctx := context.Background()
	boardRepo := repository.NewBoardRepository(db)
	posRepo := repository.NewPositionRepository(db)

	boards, err := boardRepo.FindAll(ctx)
	require.NoError(t, err)

	type occurrence struct {
		entityID string
		rowID    string
		col      string
	}

	for _, board := range boards {
		positions, err := posRepo.FindByContext(ctx, domain.ContextKindBoard, board.ID.String())
		require.NoError(t, err)

		indexed := make(map[occurrence]bool)
		for _, pos := range positions {
			indexed[occurrence{pos.EntityID, pos.RowID, pos.ColumnKey}] = true
		}

		cached := make(map[occurrence]bool)
		for _, row := range board.Rows {
			for col, ids := range row.Cards.Data() {
				for _, id := range ids {
					cached[occurrence{id, row.ID.String(), col}] = true
				}
			}
		}

		require.Equal(t, indexed, cached,
			"board %s cache and position index disagree", board.Name)
	}
}
