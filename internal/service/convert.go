package service

import (
	"project-board-sync/internal/domain"
	"project-board-sync/internal/dto"
)

// ToEntityResponse converts an entity record to its response shape.
func ToEntityResponse(entity *domain.Entity) *dto.EntityResponse {
	items := make([]dto.ChecklistItemPayload, 0, len(entity.Items))
	for _, item := range entity.Items {
		items = append(items, dto.ChecklistItemPayload{
			ID:        item.ID,
			Text:      item.Text,
			Completed: item.Completed,
		})
	}
	return &dto.EntityResponse{
		ID:             entity.ID,
		Type:           entity.Type,
		Title:          entity.Title,
		Content:        entity.Content,
		Completed:      entity.Completed,
		Priority:       entity.Priority,
		DueDate:        entity.DueDate,
		Tags:           entity.Tags,
		Items:          items,
		ParentEntityID: entity.ParentEntityID,
		Subtasks:       entity.Subtasks,
		People:         entity.People,
		CreatedAt:      entity.CreatedAt,
		UpdatedAt:      entity.UpdatedAt,
	}
}

// ToBoardResponse converts a board with its rows to the response shape.
func ToBoardResponse(board *domain.Board) *dto.BoardResponse {
	rows := make([]dto.BoardRowResponse, 0, len(board.Rows))
	for _, row := range board.Rows {
		rows = append(rows, dto.BoardRowResponse{
			ID:       row.ID,
			Name:     row.Name,
			Position: row.Position,
			Cards:    row.Cards.Data(),
		})
	}
	return &dto.BoardResponse{
		ID:        board.ID,
		Name:      board.Name,
		Columns:   board.Columns,
		Rows:      rows,
		CreatedAt: board.CreatedAt,
		UpdatedAt: board.UpdatedAt,
	}
}

// ToWeeklyPlanResponse converts a weekly plan to the response shape.
func ToWeeklyPlanResponse(plan *domain.WeeklyPlan) *dto.WeeklyPlanResponse {
	items := make([]dto.WeekItemResponse, 0, len(plan.Items))
	for _, item := range plan.Items {
		items = append(items, dto.WeekItemResponse{
			ItemID:   item.ItemID,
			EntityID: item.EntityID,
			Day:      item.Day,
			AddedAt:  item.AddedAt,
		})
	}
	return &dto.WeeklyPlanResponse{
		WeekKey:    plan.WeekKey,
		Goal:       plan.Goal,
		Reflection: plan.Reflection,
		Items:      items,
		CreatedAt:  plan.CreatedAt,
		UpdatedAt:  plan.UpdatedAt,
	}
}
