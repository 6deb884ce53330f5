package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"project-board-sync/internal/domain"
	"project-board-sync/internal/dto"
	"project-board-sync/internal/response"
)

// checkSubtaskSymmetry asserts that parent subtask lists and child
// parent pointers always agree in both directions.
func checkSubtaskSymmetry(t *testing.T, env *testEnv) {
	t.Helper()
	ctx := context.Background()

	all, err := env.entities.ListEntities(ctx, nil)
	require.NoError(t, err)

	byID := make(map[string]*domain.Entity, len(all))
	for _, entity := range all {
		byID[entity.ID] = entity
	}
	for _, entity := range all {
		for _, childID := range entity.Subtasks {
			child, ok := byID[childID]
			require.True(t, ok, "subtask %s of %s does not exist", childID, entity.ID)
			require.NotNil(t, child.ParentEntityID)
			assert.Equal(t, entity.ID, *child.ParentEntityID)
		}
		if entity.ParentEntityID != nil {
			parent, ok := byID[*entity.ParentEntityID]
			require.True(t, ok, "parent %s of %s does not exist", *entity.ParentEntityID, entity.ID)
			assert.True(t, parent.HasSubtask(entity.ID))
		}
	}
}

func TestAddSubtask_LinksBothSides(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	parent := env.createTask(t, "Parent")
	child := env.createTask(t, "Child")

	require.NoError(t, env.subtasks.AddSubtask(ctx, parent.ID, child.ID))

	foundParent, err := env.entities.GetEntity(ctx, parent.ID)
	require.NoError(t, err)
	assert.True(t, foundParent.HasSubtask(child.ID))

	foundChild, err := env.entities.GetEntity(ctx, child.ID)
	require.NoError(t, err)
	require.NotNil(t, foundChild.ParentEntityID)
	assert.Equal(t, parent.ID, *foundChild.ParentEntityID)

	checkSubtaskSymmetry(t, env)
}

func TestAddSubtask_Rules(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	parent := env.createTask(t, "Parent")
	child := env.createTask(t, "Child")
	other := env.createTask(t, "Other")

	note, err := env.entities.CreateEntity(ctx, &dto.CreateEntityRequest{
		Type:  domain.EntityTypeNote,
		Title: "Just a note",
	})
	require.NoError(t, err)

	// Only tasks and projects may hold subtasks.
	err = env.subtasks.AddSubtask(ctx, note.ID, child.ID)
	assert.True(t, response.IsCode(err, response.ErrCodeValidation))

	// Self-attachment is rejected.
	err = env.subtasks.AddSubtask(ctx, parent.ID, parent.ID)
	assert.True(t, response.IsCode(err, response.ErrCodeValidation))

	// A child has at most one parent.
	require.NoError(t, env.subtasks.AddSubtask(ctx, parent.ID, child.ID))
	err = env.subtasks.AddSubtask(ctx, other.ID, child.ID)
	assert.True(t, response.IsCode(err, response.ErrCodeAlreadyExists))

	// Re-adding under the same parent is a no-op.
	require.NoError(t, env.subtasks.AddSubtask(ctx, parent.ID, child.ID))
	foundParent, err := env.entities.GetEntity(ctx, parent.ID)
	require.NoError(t, err)
	assert.Len(t, foundParent.Subtasks, 1)
}

func TestRemoveSubtask_ChildSurvives(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	parent := env.createTask(t, "Parent")
	child := env.createTask(t, "Child")
	require.NoError(t, env.subtasks.AddSubtask(ctx, parent.ID, child.ID))

	require.NoError(t, env.subtasks.RemoveSubtask(ctx, parent.ID, child.ID))

	foundChild, err := env.entities.GetEntity(ctx, child.ID)
	require.NoError(t, err)
	assert.Nil(t, foundChild.ParentEntityID)

	foundParent, err := env.entities.GetEntity(ctx, parent.ID)
	require.NoError(t, err)
	assert.False(t, foundParent.HasSubtask(child.ID))

	// Detaching again reports the missing link.
	err = env.subtasks.RemoveSubtask(ctx, parent.ID, child.ID)
	assert.True(t, response.IsNotFound(err))
}

func TestMoveSubtask_Reattaches(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	from := env.createTask(t, "From")
	to := env.createTask(t, "To")
	child := env.createTask(t, "Child")
	require.NoError(t, env.subtasks.AddSubtask(ctx, from.ID, child.ID))

	require.NoError(t, env.subtasks.MoveSubtask(ctx, child.ID, from.ID, to.ID))

	foundChild, err := env.entities.GetEntity(ctx, child.ID)
	require.NoError(t, err)
	require.NotNil(t, foundChild.ParentEntityID)
	assert.Equal(t, to.ID, *foundChild.ParentEntityID)

	checkSubtaskSymmetry(t, env)
}

func TestDeleteSubtask_RemovesEntityAndPlacements(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	parent := env.createTask(t, "Parent")
	child := env.createTask(t, "Child")
	board := env.createBoard(t, "Chores")

	require.NoError(t, env.subtasks.AddSubtask(ctx, parent.ID, child.ID))
	require.NoError(t, env.engine.PlaceEntityInBoard(ctx, child.ID, board.ID, board.Rows[0].ID, "todo"))

	require.NoError(t, env.subtasks.DeleteSubtask(ctx, parent.ID, child.ID))

	_, err := env.entities.GetEntity(ctx, child.ID)
	assert.True(t, response.IsNotFound(err))

	foundParent, err := env.entities.GetEntity(ctx, parent.ID)
	require.NoError(t, err)
	assert.False(t, foundParent.HasSubtask(child.ID))
	checkBoardConsistency(t, env.db)
}

func TestCalculateTaskProgress_ChecklistItems(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	checklist, err := env.entities.CreateEntity(ctx, &dto.CreateEntityRequest{
		Type:  domain.EntityTypeChecklist,
		Title: "Groceries",
		Items: []dto.ChecklistItemPayload{
			{ID: "i1", Text: "Milk", Completed: true},
			{ID: "i2", Text: "Eggs"},
			{ID: "i3", Text: "Bread"},
		},
	})
	require.NoError(t, err)

	progress, err := env.subtasks.CalculateTaskProgress(ctx, checklist.ID)
	require.NoError(t, err)
	assert.Equal(t, 33, progress)

	// The manual toggle bulk-completes every item.
	_, err = env.engine.ToggleCompletion(ctx, checklist.ID)
	require.NoError(t, err)

	progress, err = env.subtasks.CalculateTaskProgress(ctx, checklist.ID)
	require.NoError(t, err)
	assert.Equal(t, 100, progress)
}

func TestCalculateTaskProgress_Subtasks(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	parent := env.createTask(t, "Parent")
	done := env.createTask(t, "Done")
	pending := env.createTask(t, "Pending")

	require.NoError(t, env.subtasks.AddSubtask(ctx, parent.ID, done.ID))
	require.NoError(t, env.subtasks.AddSubtask(ctx, parent.ID, pending.ID))
	_, err := env.engine.ToggleCompletion(ctx, done.ID)
	require.NoError(t, err)

	progress, err := env.subtasks.CalculateTaskProgress(ctx, parent.ID)
	require.NoError(t, err)
	assert.Equal(t, 50, progress)
}

func TestCalculateTaskProgress_NoChildren(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	task := env.createTask(t, "Standalone")

	progress, err := env.subtasks.CalculateTaskProgress(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, progress)

	_, err = env.engine.ToggleCompletion(ctx, task.ID)
	require.NoError(t, err)

	progress, err = env.subtasks.CalculateTaskProgress(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, 100, progress)
}
