package service

import (
	"context"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"project-board-sync/internal/domain"
	"project-board-sync/internal/repository"
	"project-board-sync/internal/response"
)

// SubtaskService manages parent/child links between entities and derives
// task progress. Attachment keeps a bidirectional invariant: the child's
// ParentEntityID and the parent's subtask list always agree.
type SubtaskService interface {
	AddSubtask(ctx context.Context, parentID, childID string) error
	RemoveSubtask(ctx context.Context, parentID, childID string) error
	MoveSubtask(ctx context.Context, childID, fromParentID, toParentID string) error
	DeleteSubtask(ctx context.Context, parentID, childID string) error
	CalculateTaskProgress(ctx context.Context, entityID string) (int, error)
}

// subtaskServiceImpl is the implementation of SubtaskService
type subtaskServiceImpl struct {
	db     *gorm.DB
	engine SyncEngine
	locks  *EntityLocks
	logger *zap.Logger
}

// NewSubtaskService creates a new instance of SubtaskService
func NewSubtaskService(db *gorm.DB, engine SyncEngine, locks *EntityLocks, logger *zap.Logger) SubtaskService {
	return &subtaskServiceImpl{
		db:     db,
		engine: engine,
		locks:  locks,
		logger: logger,
	}
}

// AddSubtask attaches childID under parentID. The parent must be of a
// type that may hold subtasks; a child can have at most one parent.
func (s *subtaskServiceImpl) AddSubtask(ctx context.Context, parentID, childID string) error {
	if parentID == childID {
		return response.NewAppError(response.ErrCodeValidation, "An entity cannot be its own subtask", parentID)
	}

	s.locks.Lock(parentID, childID)
	defer s.locks.Unlock(parentID, childID)

	return s.db.Transaction(func(tx *gorm.DB) error {
		entityRepo := repository.NewEntityRepository(tx)

		parent, err := entityRepo.FindByID(ctx, parentID)
		if err != nil {
			return notFoundOr(err, "Parent entity not found")
		}
		if !parent.Type.CanHaveSubtasks() {
			return response.NewAppError(response.ErrCodeValidation,
				"Entity type cannot hold subtasks", string(parent.Type))
		}
		child, err := entityRepo.FindByID(ctx, childID)
		if err != nil {
			return notFoundOr(err, "Child entity not found")
		}
		if child.ParentEntityID != nil {
			if *child.ParentEntityID == parentID {
				return nil
			}
			return response.NewAppError(response.ErrCodeAlreadyExists,
				"Entity already has a parent", *child.ParentEntityID)
		}

		child.ParentEntityID = &parent.ID
		if err := entityRepo.Update(ctx, child); err != nil {
			return err
		}
		if !parent.HasSubtask(childID) {
			parent.Subtasks = append(parent.Subtasks, childID)
			if err := entityRepo.Update(ctx, parent); err != nil {
				return err
			}
		}
		return nil
	})
}

// RemoveSubtask detaches childID from parentID. The child entity itself
// survives as a standalone entity with all its placements intact.
func (s *subtaskServiceImpl) RemoveSubtask(ctx context.Context, parentID, childID string) error {
	s.locks.Lock(parentID, childID)
	defer s.locks.Unlock(parentID, childID)

	return s.db.Transaction(func(tx *gorm.DB) error {
		return detachSubtaskTx(ctx, tx, parentID, childID)
	})
}

// MoveSubtask reattaches childID from one parent to another in a single
// transaction, so no observer sees the child orphaned in between.
func (s *subtaskServiceImpl) MoveSubtask(ctx context.Context, childID, fromParentID, toParentID string) error {
	if fromParentID == toParentID {
		return nil
	}

	s.locks.Lock(childID, fromParentID, toParentID)
	defer s.locks.Unlock(childID, fromParentID, toParentID)

	return s.db.Transaction(func(tx *gorm.DB) error {
		entityRepo := repository.NewEntityRepository(tx)

		target, err := entityRepo.FindByID(ctx, toParentID)
		if err != nil {
			return notFoundOr(err, "Target parent not found")
		}
		if !target.Type.CanHaveSubtasks() {
			return response.NewAppError(response.ErrCodeValidation,
				"Entity type cannot hold subtasks", string(target.Type))
		}

		if err := detachSubtaskTx(ctx, tx, fromParentID, childID); err != nil {
			return err
		}

		child, err := entityRepo.FindByID(ctx, childID)
		if err != nil {
			return notFoundOr(err, "Child entity not found")
		}
		child.ParentEntityID = &target.ID
		if err := entityRepo.Update(ctx, child); err != nil {
			return err
		}
		if !target.HasSubtask(childID) {
			target.Subtasks = append(target.Subtasks, childID)
			return entityRepo.Update(ctx, target)
		}
		return nil
	})
}

// DeleteSubtask detaches the child and then deletes it outright,
// including its placements in every context. Detach and delete run as
// separate steps so the engine's delete takes its own entity lock.
func (s *subtaskServiceImpl) DeleteSubtask(ctx context.Context, parentID, childID string) error {
	if err := s.RemoveSubtask(ctx, parentID, childID); err != nil {
		return err
	}
	return s.engine.DeleteEntity(ctx, childID)
}

// detachSubtaskTx clears the parent link on both ends inside an open
// transaction. Missing records are tolerated on the parent side only:
// the child must exist.
func detachSubtaskTx(ctx context.Context, tx *gorm.DB, parentID, childID string) error {
	entityRepo := repository.NewEntityRepository(tx)

	child, err := entityRepo.FindByID(ctx, childID)
	if err != nil {
		return notFoundOr(err, "Child entity not found")
	}
	if child.ParentEntityID == nil || *child.ParentEntityID != parentID {
		return response.NewAppError(response.ErrCodeNotFound,
			"Entity is not a subtask of the given parent", childID)
	}

	child.ParentEntityID = nil
	if err := entityRepo.Update(ctx, child); err != nil {
		return err
	}

	parent, err := entityRepo.FindByID(ctx, parentID)
	if err != nil {
		return notFoundOr(err, "Parent entity not found")
	}
	if at := indexOf(parent.Subtasks, childID); at >= 0 {
		parent.Subtasks = append(parent.Subtasks[:at], parent.Subtasks[at+1:]...)
		return entityRepo.Update(ctx, parent)
	}
	return nil
}

// CalculateTaskProgress derives a 0..100 completion percentage. A
// checklist with items reports the checked fraction; an entity with
// subtasks reports the completed fraction of those children; anything
// else reports 0 or 100 from its own completed flag. Percentages round
// half up.
func (s *subtaskServiceImpl) CalculateTaskProgress(ctx context.Context, entityID string) (int, error) {
	entityRepo := repository.NewEntityRepository(s.db)

	entity, err := entityRepo.FindByID(ctx, entityID)
	if err != nil {
		return 0, notFoundOr(err, "Entity not found")
	}

	if entity.Type == domain.EntityTypeChecklist && len(entity.Items) > 0 {
		done := 0
		for _, item := range entity.Items {
			if item.Completed {
				done++
			}
		}
		return roundPercent(done, len(entity.Items)), nil
	}

	if len(entity.Subtasks) > 0 {
		children, err := entityRepo.FindByIDs(ctx, entity.Subtasks)
		if err != nil {
			return 0, err
		}
		done := 0
		for _, child := range children {
			if child.Completed {
				done++
			}
		}
		return roundPercent(done, len(entity.Subtasks)), nil
	}

	if entity.Completed {
		return 100, nil
	}
	return 0, nil
}

func roundPercent(part, total int) int {
	if total == 0 {
		return 0
	}
	return (part*100 + total/2) / total
}
