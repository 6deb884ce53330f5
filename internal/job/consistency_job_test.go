package job

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"project-board-sync/internal/database"
	"project-board-sync/internal/domain"
	"project-board-sync/internal/repository"
	"project-board-sync/internal/service"
)

type fixture struct {
	db     *gorm.DB
	engine service.SyncEngine
	board  *domain.Board
	row    *domain.BoardRow
	task   *domain.Entity
}

func setupFixture(t *testing.T) *fixture {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	if err := database.AutoMigrate(db); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	ctx := context.Background()

	boardRepo := repository.NewBoardRepository(db)
	board := &domain.Board{Name: "Work", Columns: []string{"todo", "done"}}
	require.NoError(t, boardRepo.Create(ctx, board))
	row := &domain.BoardRow{BoardID: board.ID, Name: "Row"}
	row.SetCell("todo", []string{})
	row.SetCell("done", []string{})
	require.NoError(t, boardRepo.CreateRow(ctx, row))

	entityRepo := repository.NewEntityRepository(db)
	task := &domain.Entity{ID: "task-1", Type: domain.EntityTypeTask, Title: "Buy milk"}
	require.NoError(t, entityRepo.Create(ctx, task))

	engine := service.NewSyncEngine(db, service.NewEntityLocks(), nil, nil, zap.NewNop())
	require.NoError(t, engine.PlaceEntityInBoard(ctx, task.ID, board.ID, row.ID, "todo"))

	return &fixture{db: db, engine: engine, board: board, row: row, task: task}
}

func TestConsistencyJob_CleanStateNoDrift(t *testing.T) {
	f := setupFixture(t)
	job := NewConsistencyJob(f.db, f.engine, nil, zap.NewNop(), true)

	job.Run()

	// Repair must not disturb a consistent cache.
	boardRepo := repository.NewBoardRepository(f.db)
	row, err := boardRepo.FindRowByID(context.Background(), f.row.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{f.task.ID}, row.CellIDs("todo"))
}

func TestConsistencyJob_RepairsInjectedBoardDrift(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	// Inject drift both ways: a stray cache entry and a dropped one.
	boardRepo := repository.NewBoardRepository(f.db)
	row, err := boardRepo.FindRowByID(ctx, f.row.ID)
	require.NoError(t, err)
	row.SetCell("todo", []string{})
	row.SetCell("done", []string{"ghost-1"})
	require.NoError(t, boardRepo.UpdateRow(ctx, row))

	job := NewConsistencyJob(f.db, f.engine, nil, zap.NewNop(), true)
	job.Run()

	repaired, err := boardRepo.FindRowByID(ctx, f.row.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{f.task.ID}, repaired.CellIDs("todo"))
	assert.Empty(t, repaired.CellIDs("done"))
}

func TestConsistencyJob_DetectOnlyLeavesDrift(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	boardRepo := repository.NewBoardRepository(f.db)
	row, err := boardRepo.FindRowByID(ctx, f.row.ID)
	require.NoError(t, err)
	row.SetCell("done", []string{"ghost-1"})
	require.NoError(t, boardRepo.UpdateRow(ctx, row))

	job := NewConsistencyJob(f.db, f.engine, nil, zap.NewNop(), false)
	job.Run()

	// With repair disabled the drift is reported but left in place.
	after, err := boardRepo.FindRowByID(ctx, f.row.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"ghost-1"}, after.CellIDs("done"))
}

func TestConsistencyJob_RepairsWeeklyDrift(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	require.NoError(t, f.engine.PlaceEntityInWeek(ctx, f.task.ID, "2024-W10", "monday"))

	// Drop the cache item while the membership record stays.
	weeklyRepo := repository.NewWeeklyPlanRepository(f.db)
	plan, err := weeklyRepo.FindByKey(ctx, "2024-W10")
	require.NoError(t, err)
	plan.Items = nil
	require.NoError(t, weeklyRepo.Update(ctx, plan))

	job := NewConsistencyJob(f.db, f.engine, nil, zap.NewNop(), true)
	job.Run()

	repaired, err := weeklyRepo.FindByKey(ctx, "2024-W10")
	require.NoError(t, err)
	require.Len(t, repaired.Items, 1)
	assert.Equal(t, f.task.ID, repaired.Items[0].EntityID)
	assert.Equal(t, "monday", repaired.Items[0].Day)
	assert.NotEmpty(t, repaired.Items[0].ItemID)
}

func TestConsistencyJob_StrayWeeklyItemRemoved(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	weeklyRepo := repository.NewWeeklyPlanRepository(f.db)
	plan := &domain.WeeklyPlan{
		WeekKey: "2024-W11",
		Items: []domain.WeekItem{
			{ItemID: uuid.NewString(), EntityID: "ghost-9", Day: "monday"},
		},
	}
	require.NoError(t, weeklyRepo.Create(ctx, plan))

	job := NewConsistencyJob(f.db, f.engine, nil, zap.NewNop(), true)
	job.Run()

	repaired, err := weeklyRepo.FindByKey(ctx, "2024-W11")
	require.NoError(t, err)
	assert.Empty(t, repaired.Items)
}
