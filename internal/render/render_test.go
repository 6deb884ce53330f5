package render

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"project-board-sync/internal/domain"
	"project-board-sync/internal/response"
)

func fixedClock() time.Time {
	return time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
}

func sampleEntity(entityType domain.EntityType) *domain.Entity {
	entity := &domain.Entity{
		ID:      "x-1",
		Type:    entityType,
		Title:   "Sample",
		Content: "First line\nSecond line\nThird line\nFourth line",
	}
	switch entityType {
	case domain.EntityTypeTask:
		entity.Priority = domain.PriorityHigh
		entity.Subtasks = []string{"task-2", "task-3"}
	case domain.EntityTypeChecklist:
		entity.Items = []domain.ChecklistItem{
			{ID: "i1", Text: "Milk", Completed: true},
			{ID: "i2", Text: "Eggs"},
			{ID: "i3", Text: "Bread"},
			{ID: "i4", Text: "Butter"},
		}
	case domain.EntityTypeProject:
		entity.People = []string{"person-1"}
	}
	return entity
}

// Every entity type renders on every surface without error.
func TestRender_MatrixExhaustive(t *testing.T) {
	renderer := NewRenderer(fixedClock)

	for _, entityType := range domain.AllEntityTypes {
		for _, kind := range AllContextKinds {
			desc, err := renderer.Render(sampleEntity(entityType), kind, ContextData{})
			require.NoError(t, err, "type %s in context %s", entityType, kind)
			require.NotNil(t, desc)
			assert.Equal(t, entityType, desc.EntityType)
			assert.Equal(t, kind, desc.ContextKind)
			assert.Equal(t, "Sample", desc.Title)
		}
	}
}

func TestRender_UnknownKindIsHardError(t *testing.T) {
	renderer := NewRenderer(fixedClock)

	_, err := renderer.Render(sampleEntity(domain.EntityTypeTask), ContextKind("sidebar"), ContextData{})
	assert.True(t, response.IsCode(err, response.ErrCodeUnsupportedContext))

	_, err = renderer.Render(nil, ContextBoard, ContextData{})
	assert.Error(t, err)
}

func TestRender_ChecklistBoardVsWeekly(t *testing.T) {
	renderer := NewRenderer(fixedClock)
	checklist := sampleEntity(domain.EntityTypeChecklist)

	board, err := renderer.Render(checklist, ContextBoard, ContextData{})
	require.NoError(t, err)
	require.NotNil(t, board.Progress)
	assert.Equal(t, 1, board.Progress.Done)
	assert.Equal(t, 4, board.Progress.Total)
	assert.Equal(t, 25, board.Progress.Percent)
	// Only the first three items preview on a board card.
	require.Len(t, board.PreviewLines, 3)
	assert.Equal(t, "[x] Milk", board.PreviewLines[0])
	assert.Equal(t, "[ ] Eggs", board.PreviewLines[1])

	weekly, err := renderer.Render(checklist, ContextWeekly, ContextData{})
	require.NoError(t, err)
	assert.Nil(t, weekly.Progress)
	assert.Empty(t, weekly.PreviewLines)
	assert.Equal(t, "1/4", weekly.Subtitle)
}

func TestRender_TaskDueLabels(t *testing.T) {
	renderer := NewRenderer(fixedClock)

	cases := []struct {
		name  string
		due   time.Time
		label string
	}{
		{"today", time.Date(2024, 3, 10, 23, 0, 0, 0, time.UTC), "today"},
		{"tomorrow", time.Date(2024, 3, 11, 1, 0, 0, 0, time.UTC), "tomorrow"},
		{"yesterday", time.Date(2024, 3, 9, 1, 0, 0, 0, time.UTC), "yesterday"},
		{"future", time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), "in 5 days"},
		{"overdue", time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC), "5 days overdue"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			task := sampleEntity(domain.EntityTypeTask)
			due := tc.due
			task.DueDate = &due

			desc, err := renderer.Render(task, ContextBoard, ContextData{})
			require.NoError(t, err)
			assert.Equal(t, tc.label, desc.DueLabel)
		})
	}
}

func TestRender_Deterministic(t *testing.T) {
	renderer := NewRenderer(fixedClock)
	task := sampleEntity(domain.EntityTypeTask)
	due := time.Date(2024, 3, 20, 0, 0, 0, 0, time.UTC)
	task.DueDate = &due

	first, err := renderer.Render(task, ContextBoard, ContextData{})
	require.NoError(t, err)
	second, err := renderer.Render(task, ContextBoard, ContextData{})
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestRender_TaskBadges(t *testing.T) {
	renderer := NewRenderer(fixedClock)

	task := sampleEntity(domain.EntityTypeTask)
	desc, err := renderer.Render(task, ContextBoard, ContextData{})
	require.NoError(t, err)
	assert.Contains(t, desc.Badges, domain.PriorityHigh)
	assert.Contains(t, desc.Badges, "2 subtasks")

	// Medium priority is the default and not worth a badge.
	task.Priority = domain.PriorityMedium
	desc, err = renderer.Render(task, ContextBoard, ContextData{})
	require.NoError(t, err)
	assert.NotContains(t, desc.Badges, domain.PriorityMedium)
}

func TestRender_WeeklyDaySubtitle(t *testing.T) {
	renderer := NewRenderer(fixedClock)
	task := sampleEntity(domain.EntityTypeTask)

	desc, err := renderer.Render(task, ContextWeekly, ContextData{Day: "monday"})
	require.NoError(t, err)
	assert.Equal(t, "monday", desc.Subtitle)
}
