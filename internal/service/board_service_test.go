package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"project-board-sync/internal/dto"
	"project-board-sync/internal/repository"
	"project-board-sync/internal/response"
)

func TestCreateBoard_DefaultsAndCellShape(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	board, err := env.boards.CreateBoard(ctx, &dto.CreateBoardRequest{Name: "Work"})
	require.NoError(t, err)
	assert.Equal(t, []string{"todo", "doing", "done"}, []string(board.Columns))
	require.Len(t, board.Rows, 1)

	// Every cell exists from the start, even when empty.
	cards := board.Rows[0].Cards.Data()
	for _, col := range board.Columns {
		ids, ok := cards[col]
		assert.True(t, ok, "missing cell for column %s", col)
		assert.Empty(t, ids)
	}
}

func TestCreateBoard_CustomColumnsAndRows(t *testing.T) {
	env := newTestEnv(t)

	board, err := env.boards.CreateBoard(context.Background(), &dto.CreateBoardRequest{
		Name:    "Sprint",
		Columns: []string{"backlog", "active"},
		Rows:    []string{"Alpha", "Beta"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"backlog", "active"}, []string(board.Columns))
	require.Len(t, board.Rows, 2)
	assert.Equal(t, "Alpha", board.Rows[0].Name)
	assert.Equal(t, 0, board.Rows[0].Position)
	assert.Equal(t, 1, board.Rows[1].Position)
}

func TestCreateBoard_RequiresName(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.boards.CreateBoard(context.Background(), &dto.CreateBoardRequest{Name: "  "})
	assert.True(t, response.IsCode(err, response.ErrCodeValidation))
}

func TestDeleteBoard_RemovesMemberships(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	task := env.createTask(t, "Buy milk")
	board := env.createBoard(t, "Chores")
	require.NoError(t, env.engine.PlaceEntityInBoard(ctx, task.ID, board.ID, board.Rows[0].ID, "todo"))

	require.NoError(t, env.boards.DeleteBoard(ctx, board.ID))

	// The entity survives but its board memberships are gone.
	_, err := env.entities.GetEntity(ctx, task.ID)
	require.NoError(t, err)

	posRepo := repository.NewPositionRepository(env.db)
	positions, err := posRepo.FindByEntity(ctx, task.ID)
	require.NoError(t, err)
	assert.Empty(t, positions)

	assert.True(t, response.IsNotFound(env.boards.DeleteBoard(ctx, uuid.New())))
}

func TestAddRow_AppendsWithEmptyCells(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	board := env.createBoard(t, "Chores")
	row, err := env.boards.AddRow(ctx, board.ID, "Extra")
	require.NoError(t, err)
	assert.Equal(t, 1, row.Position)

	cards := row.Cards.Data()
	for _, col := range []string{"todo", "doing", "done"} {
		_, ok := cards[col]
		assert.True(t, ok)
	}
}

func TestDeleteRow_RemovesRowMemberships(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	task := env.createTask(t, "Buy milk")
	board := env.createBoard(t, "Chores", "Keep", "Drop")
	keep, drop := board.Rows[0], board.Rows[1]

	require.NoError(t, env.engine.PlaceEntityInBoard(ctx, task.ID, board.ID, keep.ID, "todo"))
	require.NoError(t, env.engine.PlaceEntityInBoard(ctx, task.ID, board.ID, drop.ID, "todo"))

	require.NoError(t, env.boards.DeleteRow(ctx, board.ID, drop.ID))

	posRepo := repository.NewPositionRepository(env.db)
	positions, err := posRepo.FindByEntity(ctx, task.ID)
	require.NoError(t, err)
	require.Len(t, positions, 1)
	assert.Equal(t, keep.ID.String(), positions[0].RowID)
	checkBoardConsistency(t, env.db)
}

func TestRenameBoardAndRow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	board := env.createBoard(t, "Old name")

	renamed, err := env.boards.RenameBoard(ctx, board.ID, "New name")
	require.NoError(t, err)
	assert.Equal(t, "New name", renamed.Name)

	row, err := env.boards.RenameRow(ctx, board.Rows[0].ID, "Renamed row")
	require.NoError(t, err)
	assert.Equal(t, "Renamed row", row.Name)

	_, err = env.boards.RenameBoard(ctx, board.ID, "")
	assert.True(t, response.IsCode(err, response.ErrCodeValidation))
}

func TestEnsureDefaultBoard(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	created, err := env.boards.EnsureDefaultBoard(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Personal", created.Name)
	assert.Equal(t, []string{"todo", "doing", "done"}, []string(created.Columns))

	// A second call returns the existing board instead of creating one.
	again, err := env.boards.EnsureDefaultBoard(ctx)
	require.NoError(t, err)
	assert.Equal(t, created.ID, again.ID)

	boards, err := env.boards.ListBoards(ctx)
	require.NoError(t, err)
	assert.Len(t, boards, 1)
}
