package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"project-board-sync/internal/domain"
	"project-board-sync/internal/dto"
	"project-board-sync/internal/metrics"
	"project-board-sync/internal/repository"
	"project-board-sync/internal/response"
)

// SyncEngine is the single write authority over the position index and
// the denormalized placement caches. No other code path may mutate a
// board cell array, a weekly item list, or a membership record: every
// mutation routes through here so the caches and the index cannot drift
// apart.
type SyncEngine interface {
	PlaceEntityInBoard(ctx context.Context, entityID string, boardID, rowID uuid.UUID, columnKey string) error
	RemoveEntityFromBoard(ctx context.Context, entityID string, boardID uuid.UUID, rowID *uuid.UUID, columnKey *string) (bool, error)
	PlaceEntityInWeek(ctx context.Context, entityID, weekKey, day string) error
	RemoveEntityFromWeek(ctx context.Context, entityID, weekKey string) (bool, error)
	ReorderWithinCell(ctx context.Context, boardID, rowID uuid.UUID, columnKey, entityID string, newIndex int) error
	AddToContext(ctx context.Context, entityID string, kind domain.ContextKind, contextKey string) error
	RemoveFromContext(ctx context.Context, entityID string, kind domain.ContextKind, contextKey string) (bool, error)
	CascadingDelete(ctx context.Context, entityID string) error
	DeleteEntity(ctx context.Context, entityID string) error
	DeleteBoard(ctx context.Context, boardID uuid.UUID) error
	DeleteRow(ctx context.Context, boardID, rowID uuid.UUID) error
	MoveWeekItemToDay(ctx context.Context, weekKey, itemID, day string) (*domain.WeeklyPlan, error)
	ToggleCompletion(ctx context.Context, entityID string) (*domain.Entity, error)
	ListContextsFor(ctx context.Context, entityID string) ([]dto.MembershipResponse, error)
	ListMembers(ctx context.Context, kind domain.ContextKind, contextKey string) ([]string, error)
	ContextSummary(ctx context.Context, entityID string) (*dto.ContextSummary, error)
	RebuildBoardCaches(ctx context.Context, boardID uuid.UUID) (int, error)
}

// syncEngineImpl is the implementation of SyncEngine
type syncEngineImpl struct {
	db       *gorm.DB
	locks    *EntityLocks
	notifier Notifier
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

// NewSyncEngine creates a new instance of SyncEngine
func NewSyncEngine(db *gorm.DB, locks *EntityLocks, notifier Notifier, m *metrics.Metrics, logger *zap.Logger) SyncEngine {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &syncEngineImpl{
		db:       db,
		locks:    locks,
		notifier: notifier,
		metrics:  m,
		logger:   logger,
	}
}

// run wraps one engine operation with metrics recording.
func (e *syncEngineImpl) run(operation string, fn func() error) error {
	start := time.Now()
	err := fn()
	e.metrics.RecordSyncOp(operation, time.Since(start), err)
	return err
}

// maxLockAttempts bounds the member-set acquisition rounds of the
// container-scoped operations below.
const maxLockAttempts = 5

// errLockSetChanged aborts a transaction whose lock set turned out to be
// stale, forcing another acquisition round.
var errLockSetChanged = errors.New("lock set changed during acquisition")

// containerLockKey names the lock entry shared by every operation that
// rewrites one board or weekly cache. The keys live in the same lock
// table as entity IDs; entity IDs never contain a slash, so the two
// namespaces cannot collide.
func containerLockKey(kind domain.ContextKind, contextKey string) string {
	return string(kind) + "/" + contextKey
}

// containerKeys collects the container lock keys of the board and weekly
// memberships in a position list. Tag, collection and people contexts
// carry no denormalized cache and need no container lock.
func containerKeys(positions []*domain.EntityPosition) []string {
	var keys []string
	for _, pos := range positions {
		if pos.ContextKind == domain.ContextKindBoard || pos.ContextKind == domain.ContextKindWeekly {
			keys = append(keys, containerLockKey(pos.ContextKind, pos.ContextKey))
		}
	}
	return keys
}

func subsetOf(ids, of []string) bool {
	set := make(map[string]bool, len(of))
	for _, id := range of {
		set[id] = true
	}
	for _, id := range ids {
		if !set[id] {
			return false
		}
	}
	return true
}

// containerMembers returns the distinct entity IDs placed in one context
// instance, optionally narrowed to one row.
func containerMembers(ctx context.Context, posRepo repository.PositionRepository, kind domain.ContextKind, contextKey, rowID string) ([]string, error) {
	positions, err := posRepo.FindByContext(ctx, kind, contextKey)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(positions))
	var ids []string
	for _, pos := range positions {
		if rowID != "" && pos.RowID != rowID {
			continue
		}
		if !seen[pos.EntityID] {
			seen[pos.EntityID] = true
			ids = append(ids, pos.EntityID)
		}
	}
	return ids, nil
}

// withContainerMembers runs fn in one transaction while holding the
// container lock plus the entity locks of every member. The member set is
// read again under the locks; members that joined between the read and
// the acquisition force another round, which settles once the container
// lock blocks further placements.
func (e *syncEngineImpl) withContainerMembers(ctx context.Context, kind domain.ContextKind, contextKey, rowID string, fn func(tx *gorm.DB, members []string) error) error {
	for attempt := 0; attempt < maxLockAttempts; attempt++ {
		members, err := containerMembers(ctx, repository.NewPositionRepository(e.db), kind, contextKey, rowID)
		if err != nil {
			return err
		}
		keys := append(members, containerLockKey(kind, contextKey))
		e.locks.Lock(keys...)
		err = e.db.Transaction(func(tx *gorm.DB) error {
			current, err := containerMembers(ctx, repository.NewPositionRepository(tx), kind, contextKey, rowID)
			if err != nil {
				return err
			}
			if !subsetOf(current, members) {
				return errLockSetChanged
			}
			return fn(tx, current)
		})
		e.locks.Unlock(keys...)
		if errors.Is(err, errLockSetChanged) {
			continue
		}
		return err
	}
	return response.NewAppError(response.ErrCodeInternal,
		"Could not settle the member set", string(kind)+" "+contextKey)
}

// lockEntityAndContainers runs fn in one transaction while holding the
// entity's own lock and the container locks of every board and week the
// entity is placed in, so its cache rewrites never interleave with other
// writers of those containers.
func (e *syncEngineImpl) lockEntityAndContainers(ctx context.Context, entityID string, fn func(tx *gorm.DB) error) error {
	for attempt := 0; attempt < maxLockAttempts; attempt++ {
		positions, err := repository.NewPositionRepository(e.db).FindByEntity(ctx, entityID)
		if err != nil {
			return err
		}
		keys := append(containerKeys(positions), entityID)
		e.locks.Lock(keys...)
		err = e.db.Transaction(func(tx *gorm.DB) error {
			current, err := repository.NewPositionRepository(tx).FindByEntity(ctx, entityID)
			if err != nil {
				return err
			}
			if !subsetOf(containerKeys(current), keys) {
				return errLockSetChanged
			}
			return fn(tx)
		})
		e.locks.Unlock(keys...)
		if errors.Is(err, errLockSetChanged) {
			continue
		}
		return err
	}
	return response.NewAppError(response.ErrCodeInternal,
		"Could not settle the lock set", entityID)
}

// notFoundOr maps a missing record to a NOT_FOUND AppError and lets every
// other storage error propagate unchanged.
func notFoundOr(err error, message string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return response.NewAppError(response.ErrCodeNotFound, message, "")
	}
	return err
}

// PlaceEntityInBoard appends the entity to the end of the given board
// cell and records the matching membership. Insertion at a specific
// index is ReorderWithinCell's job, not this primitive's. Placing an
// entity in a cell it already occupies is a no-op.
func (e *syncEngineImpl) PlaceEntityInBoard(ctx context.Context, entityID string, boardID, rowID uuid.UUID, columnKey string) error {
	keys := []string{entityID, containerLockKey(domain.ContextKindBoard, boardID.String())}
	e.locks.Lock(keys...)
	defer e.locks.Unlock(keys...)

	return e.run("place_board", func() error {
		err := e.db.Transaction(func(tx *gorm.DB) error {
			entityRepo := repository.NewEntityRepository(tx)
			boardRepo := repository.NewBoardRepository(tx)
			posRepo := repository.NewPositionRepository(tx)

			// Existence is checked here, at execution time, so a target
			// deleted while this call was queued is rejected cleanly.
			if _, err := entityRepo.FindByID(ctx, entityID); err != nil {
				return notFoundOr(err, "Entity not found")
			}
			board, err := boardRepo.FindByID(ctx, boardID)
			if err != nil {
				return notFoundOr(err, "Board not found")
			}
			if !board.HasColumn(columnKey) {
				return response.NewAppError(response.ErrCodeNotFound, "Column not found on board", columnKey)
			}
			row, err := boardRepo.FindRowByID(ctx, rowID)
			if err != nil {
				return notFoundOr(err, "Row not found")
			}
			if row.BoardID != boardID {
				return response.NewAppError(response.ErrCodeNotFound, "Row does not belong to board", rowID.String())
			}

			position := &domain.EntityPosition{
				EntityID:    entityID,
				ContextKind: domain.ContextKindBoard,
				ContextKey:  boardID.String(),
				RowID:       rowID.String(),
				ColumnKey:   columnKey,
			}
			created, err := posRepo.Add(ctx, position)
			if err != nil {
				return err
			}
			if !created {
				// Membership already present; the cache already holds the
				// entity and must not receive a duplicate.
				return nil
			}

			row.SetCell(columnKey, append(row.CellIDs(columnKey), entityID))
			return boardRepo.UpdateRow(ctx, row)
		})
		if err == nil {
			e.notifier.EntitiesChanged(entityID)
		}
		return err
	})
}

// RemoveEntityFromBoard removes the entity from every cell of the board
// matching the optional row/column filters, along with the corresponding
// membership records. Returns whether anything was removed.
func (e *syncEngineImpl) RemoveEntityFromBoard(ctx context.Context, entityID string, boardID uuid.UUID, rowID *uuid.UUID, columnKey *string) (bool, error) {
	keys := []string{entityID, containerLockKey(domain.ContextKindBoard, boardID.String())}
	e.locks.Lock(keys...)
	defer e.locks.Unlock(keys...)

	var removed bool
	err := e.run("remove_board", func() error {
		err := e.db.Transaction(func(tx *gorm.DB) error {
			boardRepo := repository.NewBoardRepository(tx)
			posRepo := repository.NewPositionRepository(tx)

			if _, err := boardRepo.FindByID(ctx, boardID); err != nil {
				return notFoundOr(err, "Board not found")
			}

			rows, err := boardRepo.FindRowsByBoard(ctx, boardID)
			if err != nil {
				return err
			}
			for _, row := range rows {
				if rowID != nil && row.ID != *rowID {
					continue
				}
				changed := false
				for col, ids := range row.Cards.Data() {
					if columnKey != nil && col != *columnKey {
						continue
					}
					filtered := removeAll(ids, entityID)
					if len(filtered) != len(ids) {
						row.SetCell(col, filtered)
						changed = true
						removed = true
					}
				}
				if changed {
					if err := boardRepo.UpdateRow(ctx, row); err != nil {
						return err
					}
				}
			}

			placement := &domain.Placement{}
			if rowID != nil {
				placement.RowID = rowID.String()
			}
			if columnKey != nil {
				placement.ColumnKey = *columnKey
			}
			n, err := posRepo.Remove(ctx, entityID, domain.ContextKindBoard, boardID.String(), placement)
			if err != nil {
				return err
			}
			if n > 0 {
				removed = true
			}
			return nil
		})
		if err == nil && removed {
			e.notifier.EntitiesChanged(entityID)
		}
		return err
	})
	return removed, err
}

// PlaceEntityInWeek places the entity into a weekly plan, creating the
// plan lazily. The wrapper record carries its own identity so each
// placement stays individually addressable.
func (e *syncEngineImpl) PlaceEntityInWeek(ctx context.Context, entityID, weekKey, day string) error {
	keys := []string{entityID, containerLockKey(domain.ContextKindWeekly, weekKey)}
	e.locks.Lock(keys...)
	defer e.locks.Unlock(keys...)

	return e.run("place_week", func() error {
		if strings.TrimSpace(weekKey) == "" {
			return response.NewAppError(response.ErrCodeValidation, "Week key is required", "")
		}
		if !domain.ValidDay(day) {
			return response.NewAppError(response.ErrCodeValidation, "Unknown day", day)
		}

		err := e.db.Transaction(func(tx *gorm.DB) error {
			entityRepo := repository.NewEntityRepository(tx)
			weeklyRepo := repository.NewWeeklyPlanRepository(tx)
			posRepo := repository.NewPositionRepository(tx)

			if _, err := entityRepo.FindByID(ctx, entityID); err != nil {
				return notFoundOr(err, "Entity not found")
			}

			plan, err := weeklyRepo.FindByKey(ctx, weekKey)
			if err != nil {
				if !errors.Is(err, gorm.ErrRecordNotFound) {
					return err
				}
				plan = &domain.WeeklyPlan{WeekKey: weekKey, Goal: "", Reflection: ""}
				if err := weeklyRepo.Create(ctx, plan); err != nil {
					return err
				}
			}

			position := &domain.EntityPosition{
				EntityID:    entityID,
				ContextKind: domain.ContextKindWeekly,
				ContextKey:  weekKey,
				Day:         day,
			}
			created, err := posRepo.Add(ctx, position)
			if err != nil {
				return err
			}
			if !created {
				return nil
			}

			plan.Items = append(plan.Items, domain.WeekItem{
				ItemID:   uuid.NewString(),
				EntityID: entityID,
				Day:      day,
				AddedAt:  time.Now().UTC(),
			})
			return weeklyRepo.Update(ctx, plan)
		})
		if err == nil {
			e.notifier.EntitiesChanged(entityID)
		}
		return err
	})
}

// RemoveEntityFromWeek removes every wrapper record of the entity in the
// given week and the matching membership records.
func (e *syncEngineImpl) RemoveEntityFromWeek(ctx context.Context, entityID, weekKey string) (bool, error) {
	keys := []string{entityID, containerLockKey(domain.ContextKindWeekly, weekKey)}
	e.locks.Lock(keys...)
	defer e.locks.Unlock(keys...)

	var removed bool
	err := e.run("remove_week", func() error {
		err := e.db.Transaction(func(tx *gorm.DB) error {
			weeklyRepo := repository.NewWeeklyPlanRepository(tx)
			posRepo := repository.NewPositionRepository(tx)

			plan, err := weeklyRepo.FindByKey(ctx, weekKey)
			if err != nil {
				return notFoundOr(err, "Weekly plan not found")
			}

			kept := plan.Items[:0:0]
			for _, item := range plan.Items {
				if item.EntityID == entityID {
					removed = true
					continue
				}
				kept = append(kept, item)
			}
			if removed {
				plan.Items = kept
				if err := weeklyRepo.Update(ctx, plan); err != nil {
					return err
				}
			}

			n, err := posRepo.Remove(ctx, entityID, domain.ContextKindWeekly, weekKey, nil)
			if err != nil {
				return err
			}
			if n > 0 {
				removed = true
			}
			return nil
		})
		if err == nil && removed {
			e.notifier.EntitiesChanged(entityID)
		}
		return err
	})
	return removed, err
}

// ReorderWithinCell moves the entity to newIndex inside one board cell.
// The index is clamped to the cell bounds. Ordering lives only in the
// cache, so the position index is deliberately untouched here.
func (e *syncEngineImpl) ReorderWithinCell(ctx context.Context, boardID, rowID uuid.UUID, columnKey, entityID string, newIndex int) error {
	keys := []string{entityID, containerLockKey(domain.ContextKindBoard, boardID.String())}
	e.locks.Lock(keys...)
	defer e.locks.Unlock(keys...)

	return e.run("reorder_cell", func() error {
		err := e.db.Transaction(func(tx *gorm.DB) error {
			boardRepo := repository.NewBoardRepository(tx)

			row, err := boardRepo.FindRowByID(ctx, rowID)
			if err != nil {
				return notFoundOr(err, "Row not found")
			}
			if row.BoardID != boardID {
				return response.NewAppError(response.ErrCodeNotFound, "Row does not belong to board", rowID.String())
			}

			ids := row.CellIDs(columnKey)
			at := indexOf(ids, entityID)
			if at < 0 {
				return response.NewAppError(response.ErrCodeNotFound, "Entity not in cell", entityID)
			}

			ids = append(ids[:at], ids[at+1:]...)
			if newIndex < 0 {
				newIndex = 0
			}
			if newIndex > len(ids) {
				newIndex = len(ids)
			}
			ids = append(ids[:newIndex], append([]string{entityID}, ids[newIndex:]...)...)

			row.SetCell(columnKey, ids)
			return boardRepo.UpdateRow(ctx, row)
		})
		if err == nil {
			e.notifier.EntitiesChanged(entityID)
		}
		return err
	})
}

// AddToContext places the entity into a tag, collection or person
// timeline. Positional kinds must use the dedicated placement primitives.
func (e *syncEngineImpl) AddToContext(ctx context.Context, entityID string, kind domain.ContextKind, contextKey string) error {
	e.locks.Lock(entityID)
	defer e.locks.Unlock(entityID)

	return e.run("add_context", func() error {
		relType, ok := domain.RelationshipTypeFor(kind)
		if !ok {
			return response.NewAppError(response.ErrCodeValidation, "Context kind requires a placement operation", string(kind))
		}
		if strings.TrimSpace(contextKey) == "" {
			return response.NewAppError(response.ErrCodeValidation, "Context key is required", "")
		}

		err := e.db.Transaction(func(tx *gorm.DB) error {
			entityRepo := repository.NewEntityRepository(tx)
			relRepo := repository.NewRelationshipRepository(tx)
			posRepo := repository.NewPositionRepository(tx)

			entity, err := entityRepo.FindByID(ctx, entityID)
			if err != nil {
				return notFoundOr(err, "Entity not found")
			}
			if kind == domain.ContextKindPeople {
				person, err := entityRepo.FindByID(ctx, contextKey)
				if err != nil {
					return notFoundOr(err, "Person not found")
				}
				if person.Type != domain.EntityTypePerson {
					return response.NewAppError(response.ErrCodeValidation, "Timeline key must reference a person entity", contextKey)
				}
			}

			if _, err := relRepo.Add(ctx, &domain.EntityRelationship{
				EntityID:         entityID,
				RelatedKey:       contextKey,
				RelationshipType: relType,
			}); err != nil {
				return err
			}
			if _, err := posRepo.Add(ctx, &domain.EntityPosition{
				EntityID:    entityID,
				ContextKind: kind,
				ContextKey:  contextKey,
			}); err != nil {
				return err
			}

			// The tag set on the entity record mirrors tag contexts.
			if kind == domain.ContextKindTag && indexOf(entity.Tags, contextKey) < 0 {
				entity.Tags = append(entity.Tags, contextKey)
				return entityRepo.Update(ctx, entity)
			}
			return nil
		})
		if err == nil {
			e.notifier.EntitiesChanged(entityID)
		}
		return err
	})
}

// RemoveFromContext removes the entity from a tag, collection or person
// timeline. Returns whether anything was removed.
func (e *syncEngineImpl) RemoveFromContext(ctx context.Context, entityID string, kind domain.ContextKind, contextKey string) (bool, error) {
	e.locks.Lock(entityID)
	defer e.locks.Unlock(entityID)

	var removed bool
	err := e.run("remove_context", func() error {
		relType, ok := domain.RelationshipTypeFor(kind)
		if !ok {
			return response.NewAppError(response.ErrCodeValidation, "Context kind requires a placement operation", string(kind))
		}

		err := e.db.Transaction(func(tx *gorm.DB) error {
			entityRepo := repository.NewEntityRepository(tx)
			relRepo := repository.NewRelationshipRepository(tx)
			posRepo := repository.NewPositionRepository(tx)

			nRel, err := relRepo.Remove(ctx, entityID, relType, contextKey)
			if err != nil {
				return err
			}
			nPos, err := posRepo.Remove(ctx, entityID, kind, contextKey, nil)
			if err != nil {
				return err
			}
			removed = nRel > 0 || nPos > 0

			if kind == domain.ContextKindTag && removed {
				entity, err := entityRepo.FindByID(ctx, entityID)
				if err != nil {
					return notFoundOr(err, "Entity not found")
				}
				if at := indexOf(entity.Tags, contextKey); at >= 0 {
					entity.Tags = append(entity.Tags[:at], entity.Tags[at+1:]...)
					return entityRepo.Update(ctx, entity)
				}
			}
			return nil
		})
		if err == nil && removed {
			e.notifier.EntitiesChanged(entityID)
		}
		return err
	})
	return removed, err
}

// CascadingDelete removes the entity from every context it belongs to:
// board cells, weekly item lists, relationship rows and membership
// records. The entity record itself is left alone; a failure in any
// removal rolls the whole cascade back, so the caller must not delete
// the record either.
func (e *syncEngineImpl) CascadingDelete(ctx context.Context, entityID string) error {
	return e.run("cascading_delete", func() error {
		return e.lockEntityAndContainers(ctx, entityID, func(tx *gorm.DB) error {
			return e.cascadeTx(ctx, tx, entityID)
		})
	})
}

// DeleteEntity runs the cascading removal and, only once every placement
// is gone, deletes the entity record in the same transaction. On partial
// cascade failure the record survives; an orphaned placement pointing at
// a missing entity must never exist.
func (e *syncEngineImpl) DeleteEntity(ctx context.Context, entityID string) error {
	err := e.run("delete_entity", func() error {
		return e.lockEntityAndContainers(ctx, entityID, func(tx *gorm.DB) error {
			entityRepo := repository.NewEntityRepository(tx)

			if _, err := entityRepo.FindByID(ctx, entityID); err != nil {
				return notFoundOr(err, "Entity not found")
			}
			if err := e.cascadeTx(ctx, tx, entityID); err != nil {
				return err
			}
			return entityRepo.Delete(ctx, entityID)
		})
	})
	if err == nil {
		e.metrics.IncrementEntityDeleted()
		e.notifier.EntitiesChanged(entityID)
	}
	return err
}

// DeleteBoard removes a board, its rows and every membership record
// pointing at it. The container lock and the locks of all member
// entities are held for the duration, so a placement racing the delete
// either completes first and is cleaned up with the board, or finds the
// board gone. Entities on the board survive.
func (e *syncEngineImpl) DeleteBoard(ctx context.Context, boardID uuid.UUID) error {
	return e.run("delete_board", func() error {
		var affected []string
		err := e.withContainerMembers(ctx, domain.ContextKindBoard, boardID.String(), "", func(tx *gorm.DB, members []string) error {
			affected = members
			boardRepo := repository.NewBoardRepository(tx)
			posRepo := repository.NewPositionRepository(tx)

			if err := boardRepo.Delete(ctx, boardID); err != nil {
				return notFoundOr(err, "Board not found")
			}
			_, err := posRepo.RemoveByContext(ctx, domain.ContextKindBoard, boardID.String())
			return err
		})
		if err == nil && len(affected) > 0 {
			e.notifier.EntitiesChanged(affected...)
		}
		return err
	})
}

// DeleteRow removes one board row together with the membership records
// of the entities it held, under the same locking as DeleteBoard.
func (e *syncEngineImpl) DeleteRow(ctx context.Context, boardID, rowID uuid.UUID) error {
	return e.run("delete_row", func() error {
		var affected []string
		err := e.withContainerMembers(ctx, domain.ContextKindBoard, boardID.String(), rowID.String(), func(tx *gorm.DB, members []string) error {
			affected = members
			boardRepo := repository.NewBoardRepository(tx)

			row, err := boardRepo.FindRowByID(ctx, rowID)
			if err != nil {
				return notFoundOr(err, "Row not found")
			}
			if row.BoardID != boardID {
				return response.NewAppError(response.ErrCodeNotFound, "Row does not belong to board", rowID.String())
			}
			if err := boardRepo.DeleteRow(ctx, rowID); err != nil {
				return notFoundOr(err, "Row not found")
			}
			return tx.WithContext(ctx).
				Where("context_kind = ? AND context_key = ? AND row_id = ?",
					domain.ContextKindBoard, boardID.String(), rowID.String()).
				Delete(&domain.EntityPosition{}).Error
		})
		if err == nil && len(affected) > 0 {
			e.notifier.EntitiesChanged(affected...)
		}
		return err
	})
}

// MoveWeekItemToDay reassigns one wrapper item to a different day of its
// week. The matching membership record follows in the same transaction.
// The container lock serializes the move against placements and removals
// in the same week.
func (e *syncEngineImpl) MoveWeekItemToDay(ctx context.Context, weekKey, itemID, day string) (*domain.WeeklyPlan, error) {
	var (
		plan  *domain.WeeklyPlan
		moved string
	)
	err := e.run("move_week_item", func() error {
		if !domain.ValidDay(day) {
			return response.NewAppError(response.ErrCodeValidation, "Unknown day", day)
		}

		key := containerLockKey(domain.ContextKindWeekly, weekKey)
		e.locks.Lock(key)
		defer e.locks.Unlock(key)

		return e.db.Transaction(func(tx *gorm.DB) error {
			weeklyRepo := repository.NewWeeklyPlanRepository(tx)

			found, err := weeklyRepo.FindByKey(ctx, weekKey)
			if err != nil {
				return notFoundOr(err, "Weekly plan not found")
			}
			for i, item := range found.Items {
				if item.ItemID != itemID {
					continue
				}
				oldDay := item.Day
				found.Items[i].Day = day
				if err := tx.WithContext(ctx).
					Model(&domain.EntityPosition{}).
					Where("entity_id = ? AND context_kind = ? AND context_key = ? AND day = ?",
						item.EntityID, domain.ContextKindWeekly, weekKey, oldDay).
					Update("day", day).Error; err != nil {
					return err
				}
				if err := weeklyRepo.Update(ctx, found); err != nil {
					return err
				}
				plan = found
				moved = item.EntityID
				return nil
			}
			return response.NewAppError(response.ErrCodeNotFound, "Weekly item not found", itemID)
		})
	})
	if err != nil {
		return nil, err
	}
	e.notifier.EntitiesChanged(moved)
	return plan, nil
}

// cascadeTx performs the cascading removal inside an open transaction.
// Every failure is collected and surfaced as PARTIAL_CASCADE_FAILURE,
// which aborts the transaction: either every context is cleaned or none.
func (e *syncEngineImpl) cascadeTx(ctx context.Context, tx *gorm.DB, entityID string) error {
	entityRepo := repository.NewEntityRepository(tx)
	boardRepo := repository.NewBoardRepository(tx)
	weeklyRepo := repository.NewWeeklyPlanRepository(tx)
	relRepo := repository.NewRelationshipRepository(tx)
	posRepo := repository.NewPositionRepository(tx)

	positions, err := posRepo.FindByEntity(ctx, entityID)
	if err != nil {
		return err
	}

	var failed []string
	for _, pos := range positions {
		switch pos.ContextKind {
		case domain.ContextKindBoard:
			if err := e.removeBoardOccurrence(ctx, boardRepo, pos, entityID); err != nil {
				failed = append(failed, fmt.Sprintf("board %s: %v", pos.ContextKey, err))
			}
		case domain.ContextKindWeekly:
			if err := e.removeWeeklyOccurrence(ctx, weeklyRepo, pos.ContextKey, entityID); err != nil {
				failed = append(failed, fmt.Sprintf("week %s: %v", pos.ContextKey, err))
			}
		case domain.ContextKindTag, domain.ContextKindCollection, domain.ContextKindPeople:
			relType, _ := domain.RelationshipTypeFor(pos.ContextKind)
			if _, err := relRepo.Remove(ctx, entityID, relType, pos.ContextKey); err != nil {
				failed = append(failed, fmt.Sprintf("%s %s: %v", pos.ContextKind, pos.ContextKey, err))
			}
		default:
			failed = append(failed, fmt.Sprintf("unknown context kind %q", pos.ContextKind))
		}
	}
	if len(failed) > 0 {
		e.metrics.IncrementCascadeFailure()
		e.logger.Error("Cascading delete could not clean every context",
			zap.String("entity_id", entityID),
			zap.Strings("failed_contexts", failed))
		return response.NewAppError(response.ErrCodePartialCascade,
			"Failed to remove entity from all contexts", strings.Join(failed, "; "))
	}

	if _, err := posRepo.RemoveAllForEntity(ctx, entityID); err != nil {
		return err
	}
	// Rows where other entities reference this one as a person timeline.
	if _, err := posRepo.RemoveByContext(ctx, domain.ContextKindPeople, entityID); err != nil {
		return err
	}
	if _, err := relRepo.RemoveAllForEntity(ctx, entityID); err != nil {
		return err
	}
	if err := removeTimelineRows(ctx, tx, entityID); err != nil {
		return err
	}

	return e.detachFamily(ctx, entityRepo, entityID)
}

// removeTimelineRows drops relationship rows of other entities whose
// RelatedKey points at the entity being deleted (person timelines).
func removeTimelineRows(ctx context.Context, tx *gorm.DB, entityID string) error {
	return tx.WithContext(ctx).
		Where("related_key = ? AND relationship_type = ?", entityID, domain.RelationshipPeople).
		Delete(&domain.EntityRelationship{}).Error
}

// detachFamily maintains the subtask invariant across deletion: the
// entity disappears from its parent's subtask list, and its own children
// stop pointing at it.
func (e *syncEngineImpl) detachFamily(ctx context.Context, entityRepo repository.EntityRepository, entityID string) error {
	entity, err := entityRepo.FindByID(ctx, entityID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}

	if entity.ParentEntityID != nil {
		parent, err := entityRepo.FindByID(ctx, *entity.ParentEntityID)
		if err == nil {
			if at := indexOf(parent.Subtasks, entityID); at >= 0 {
				parent.Subtasks = append(parent.Subtasks[:at], parent.Subtasks[at+1:]...)
				if err := entityRepo.Update(ctx, parent); err != nil {
					return err
				}
			}
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
	}

	for _, childID := range entity.Subtasks {
		child, err := entityRepo.FindByID(ctx, childID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				continue
			}
			return err
		}
		if child.ParentEntityID != nil && *child.ParentEntityID == entityID {
			child.ParentEntityID = nil
			if err := entityRepo.Update(ctx, child); err != nil {
				return err
			}
		}
	}
	return nil
}

func (e *syncEngineImpl) removeBoardOccurrence(ctx context.Context, boardRepo repository.BoardRepository, pos *domain.EntityPosition, entityID string) error {
	rowID, err := uuid.Parse(pos.RowID)
	if err != nil {
		return fmt.Errorf("malformed row id %q: %w", pos.RowID, err)
	}
	row, err := boardRepo.FindRowByID(ctx, rowID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// Row already gone; the membership removal below suffices.
			return nil
		}
		return err
	}
	ids := row.CellIDs(pos.ColumnKey)
	filtered := removeAll(ids, entityID)
	if len(filtered) == len(ids) {
		return nil
	}
	row.SetCell(pos.ColumnKey, filtered)
	return boardRepo.UpdateRow(ctx, row)
}

func (e *syncEngineImpl) removeWeeklyOccurrence(ctx context.Context, weeklyRepo repository.WeeklyPlanRepository, weekKey, entityID string) error {
	plan, err := weeklyRepo.FindByKey(ctx, weekKey)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}
	kept := plan.Items[:0:0]
	changed := false
	for _, item := range plan.Items {
		if item.EntityID == entityID {
			changed = true
			continue
		}
		kept = append(kept, item)
	}
	if !changed {
		return nil
	}
	plan.Items = kept
	return weeklyRepo.Update(ctx, plan)
}

// ToggleCompletion flips the entity's completed flag. For checklists the
// toggle bulk-sets every item to the new value; the manual toggle
// overrides item-level state rather than inferring from it. Placement
// caches are untouched: completion is a content change, not a positional
// one.
func (e *syncEngineImpl) ToggleCompletion(ctx context.Context, entityID string) (*domain.Entity, error) {
	e.locks.Lock(entityID)
	defer e.locks.Unlock(entityID)

	var entity *domain.Entity
	err := e.run("toggle_completion", func() error {
		return e.db.Transaction(func(tx *gorm.DB) error {
			entityRepo := repository.NewEntityRepository(tx)

			found, err := entityRepo.FindByID(ctx, entityID)
			if err != nil {
				return notFoundOr(err, "Entity not found")
			}

			found.Completed = !found.Completed
			if found.Type == domain.EntityTypeChecklist {
				items := make([]domain.ChecklistItem, len(found.Items))
				for i, item := range found.Items {
					item.Completed = found.Completed
					items[i] = item
				}
				found.Items = items
			}
			if err := entityRepo.Update(ctx, found); err != nil {
				return err
			}
			entity = found
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	e.notifier.EntitiesChanged(entityID)
	return entity, nil
}

// ListContextsFor returns every membership of an entity.
func (e *syncEngineImpl) ListContextsFor(ctx context.Context, entityID string) ([]dto.MembershipResponse, error) {
	posRepo := repository.NewPositionRepository(e.db)
	positions, err := posRepo.FindByEntity(ctx, entityID)
	if err != nil {
		return nil, err
	}
	out := make([]dto.MembershipResponse, len(positions))
	for i, pos := range positions {
		out[i] = dto.MembershipResponse{
			ContextKind: pos.ContextKind,
			ContextKey:  pos.ContextKey,
			RowID:       pos.RowID,
			ColumnKey:   pos.ColumnKey,
			Day:         pos.Day,
			AddedAt:     pos.AddedAt,
		}
	}
	return out, nil
}

// ListMembers returns the IDs of the entities in one context instance,
// deduplicated, in membership order.
func (e *syncEngineImpl) ListMembers(ctx context.Context, kind domain.ContextKind, contextKey string) ([]string, error) {
	if !kind.Valid() {
		return nil, response.NewAppError(response.ErrCodeValidation, "Unknown context kind", string(kind))
	}
	posRepo := repository.NewPositionRepository(e.db)
	positions, err := posRepo.FindByContext(ctx, kind, contextKey)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(positions))
	var ids []string
	for _, pos := range positions {
		if seen[pos.EntityID] {
			continue
		}
		seen[pos.EntityID] = true
		ids = append(ids, pos.EntityID)
	}
	return ids, nil
}

// ContextSummary aggregates an entity's memberships for the
// cross-context indicator badge. Read-only; never cached.
func (e *syncEngineImpl) ContextSummary(ctx context.Context, entityID string) (*dto.ContextSummary, error) {
	posRepo := repository.NewPositionRepository(e.db)
	positions, err := posRepo.FindByEntity(ctx, entityID)
	if err != nil {
		return nil, err
	}

	summary := &dto.ContextSummary{EntityID: entityID}
	boards := make(map[string]bool)
	weeks := make(map[string]bool)
	for _, pos := range positions {
		switch pos.ContextKind {
		case domain.ContextKindBoard:
			boards[pos.ContextKey] = true
		case domain.ContextKindWeekly:
			weeks[pos.ContextKey] = true
		case domain.ContextKindCollection:
			summary.CollectionCount++
		case domain.ContextKindTag:
			summary.TagCount++
		case domain.ContextKindPeople:
			summary.PeopleCount++
		}
	}
	summary.BoardCount = len(boards)
	summary.WeeklyCount = len(weeks)
	summary.Total = summary.BoardCount + summary.WeeklyCount +
		summary.CollectionCount + summary.TagCount + summary.PeopleCount
	return summary, nil
}

// RebuildBoardCaches rebuilds every cell array of a board from the
// position index. Existing cache order is preserved for entities whose
// membership still stands; missing members are appended in membership
// order; entities without a membership are dropped. Returns the number
// of cell entries that changed.
func (e *syncEngineImpl) RebuildBoardCaches(ctx context.Context, boardID uuid.UUID) (int, error) {
	key := containerLockKey(domain.ContextKindBoard, boardID.String())
	e.locks.Lock(key)
	defer e.locks.Unlock(key)

	changed := 0
	err := e.run("rebuild_caches", func() error {
		return e.db.Transaction(func(tx *gorm.DB) error {
			boardRepo := repository.NewBoardRepository(tx)
			posRepo := repository.NewPositionRepository(tx)

			board, err := boardRepo.FindByID(ctx, boardID)
			if err != nil {
				return notFoundOr(err, "Board not found")
			}
			positions, err := posRepo.FindByContext(ctx, domain.ContextKindBoard, boardID.String())
			if err != nil {
				return err
			}

			// membership sets and append order per (row, column)
			type cellKey struct{ rowID, col string }
			members := make(map[cellKey][]string)
			memberSet := make(map[cellKey]map[string]bool)
			for _, pos := range positions {
				key := cellKey{pos.RowID, pos.ColumnKey}
				if memberSet[key] == nil {
					memberSet[key] = make(map[string]bool)
				}
				if !memberSet[key][pos.EntityID] {
					memberSet[key][pos.EntityID] = true
					members[key] = append(members[key], pos.EntityID)
				}
			}

			rows, err := boardRepo.FindRowsByBoard(ctx, boardID)
			if err != nil {
				return err
			}
			for _, row := range rows {
				rowChanged := false
				for _, col := range board.Columns {
					key := cellKey{row.ID.String(), col}
					want := memberSet[key]
					have := row.CellIDs(col)

					kept := have[:0:0]
					seen := make(map[string]bool)
					for _, id := range have {
						if want[id] && !seen[id] {
							kept = append(kept, id)
							seen[id] = true
						}
					}
					for _, id := range members[key] {
						if !seen[id] {
							kept = append(kept, id)
							seen[id] = true
						}
					}

					if !equalStrings(have, kept) {
						row.SetCell(col, kept)
						rowChanged = true
						changed += diffCount(have, kept)
					}
				}
				if rowChanged {
					if err := boardRepo.UpdateRow(ctx, row); err != nil {
						return err
					}
				}
			}
			return nil
		})
	})
	if err != nil {
		return 0, err
	}
	return changed, nil
}

func removeAll(ids []string, target string) []string {
	out := ids[:0:0]
	for _, id := range ids {
		if id != target {
			out = append(out, id)
		}
	}
	return out
}

func indexOf(ids []string, target string) int {
	for i, id := range ids {
		if id == target {
			return i
		}
	}
	return -1
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func diffCount(before, after []string) int {
	set := make(map[string]int)
	for _, id := range before {
		set[id]++
	}
	n := 0
	for _, id := range after {
		if set[id] > 0 {
			set[id]--
		} else {
			n++
		}
	}
	for _, rest := range set {
		n += rest
	}
	return n
}
