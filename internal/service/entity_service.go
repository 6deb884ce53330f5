package service

import (
	"context"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"project-board-sync/internal/domain"
	"project-board-sync/internal/dto"
	"project-board-sync/internal/metrics"
	"project-board-sync/internal/repository"
	"project-board-sync/internal/response"
)

// EntityService defines the interface for canonical entity operations
type EntityService interface {
	CreateEntity(ctx context.Context, req *dto.CreateEntityRequest) (*domain.Entity, error)
	GetEntity(ctx context.Context, entityID string) (*domain.Entity, error)
	ListEntities(ctx context.Context, filters *dto.EntityFilters) ([]*domain.Entity, error)
	UpdateEntity(ctx context.Context, entityID string, req *dto.UpdateEntityRequest) (*domain.Entity, error)
	DeleteEntity(ctx context.Context, entityID string) error
}

// entityServiceImpl is the implementation of EntityService
type entityServiceImpl struct {
	db      *gorm.DB
	engine  SyncEngine
	locks   *EntityLocks
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewEntityService creates a new instance of EntityService
func NewEntityService(db *gorm.DB, engine SyncEngine, locks *EntityLocks, m *metrics.Metrics, logger *zap.Logger) EntityService {
	return &entityServiceImpl{
		db:      db,
		engine:  engine,
		locks:   locks,
		metrics: m,
		logger:  logger,
	}
}

// CreateEntity creates a new entity with a sequential per-type ID. The
// counter increment and the insert share one transaction so an aborted
// create never burns an ID.
func (s *entityServiceImpl) CreateEntity(ctx context.Context, req *dto.CreateEntityRequest) (*domain.Entity, error) {
	entityType := req.Type
	if !entityType.Valid() {
		return nil, response.NewAppError(response.ErrCodeValidation, "Unknown entity type", string(req.Type))
	}
	if strings.TrimSpace(req.Title) == "" {
		return nil, response.NewAppError(response.ErrCodeValidation, "Title is required", "")
	}
	if req.Priority != "" && !domain.ValidPriority(req.Priority) {
		return nil, response.NewAppError(response.ErrCodeValidation, "Unknown priority", req.Priority)
	}

	var entity *domain.Entity
	err := s.db.Transaction(func(tx *gorm.DB) error {
		entityRepo := repository.NewEntityRepository(tx)

		id, err := entityRepo.NextID(ctx, entityType)
		if err != nil {
			return err
		}

		entity = &domain.Entity{
			ID:      id,
			Type:    entityType,
			Title:   req.Title,
			Content: req.Content,
			DueDate: req.DueDate,
		}
		applyTypeDefaults(entity, req)

		if err := entityRepo.Create(ctx, entity); err != nil {
			return err
		}
		if len(req.Tags) == 0 {
			return nil
		}
		// Requested tags become tag contexts right away.
		if err := syncTagContexts(ctx, tx, entity, req.Tags); err != nil {
			return err
		}
		entity.Tags = req.Tags
		return entityRepo.Update(ctx, entity)
	})
	if err != nil {
		s.logger.Error("Failed to create entity",
			zap.String("type", string(req.Type)),
			zap.Error(err))
		return nil, err
	}

	s.metrics.IncrementEntityCreated(string(entityType))
	s.logger.Info("Entity created",
		zap.String("entity_id", entity.ID),
		zap.String("type", string(entity.Type)))
	return entity, nil
}

// applyTypeDefaults fills the type-specific fields a create request left
// implicit. Tasks default to medium priority; checklists start with their
// requested items unchecked unless stated otherwise.
func applyTypeDefaults(entity *domain.Entity, req *dto.CreateEntityRequest) {
	switch entity.Type {
	case domain.EntityTypeTask:
		entity.Priority = req.Priority
		if entity.Priority == "" {
			entity.Priority = domain.PriorityMedium
		}
	case domain.EntityTypeChecklist:
		items := make([]domain.ChecklistItem, 0, len(req.Items))
		for _, item := range req.Items {
			items = append(items, domain.ChecklistItem{
				ID:        item.ID,
				Text:      item.Text,
				Completed: item.Completed,
			})
		}
		entity.Items = items
	case domain.EntityTypeProject:
		entity.People = req.People
	}
}

// GetEntity retrieves an entity by ID
func (s *entityServiceImpl) GetEntity(ctx context.Context, entityID string) (*domain.Entity, error) {
	entityRepo := repository.NewEntityRepository(s.db)
	entity, err := entityRepo.FindByID(ctx, entityID)
	if err != nil {
		return nil, notFoundOr(err, "Entity not found")
	}
	return entity, nil
}

// ListEntities retrieves entities matching the optional filters.
func (s *entityServiceImpl) ListEntities(ctx context.Context, filters *dto.EntityFilters) ([]*domain.Entity, error) {
	entityRepo := repository.NewEntityRepository(s.db)

	var (
		entities []*domain.Entity
		err      error
	)
	if filters != nil && filters.Type != nil {
		if !filters.Type.Valid() {
			return nil, response.NewAppError(response.ErrCodeValidation, "Unknown entity type", string(*filters.Type))
		}
		entities, err = entityRepo.FindByType(ctx, *filters.Type)
	} else {
		entities, err = entityRepo.FindAll(ctx)
	}
	if err != nil {
		return nil, err
	}
	if filters == nil {
		return entities, nil
	}

	filtered := entities[:0:0]
	for _, entity := range entities {
		if filters.Completed != nil && entity.Completed != *filters.Completed {
			continue
		}
		if filters.Tag != nil && indexOf(entity.Tags, *filters.Tag) < 0 {
			continue
		}
		filtered = append(filtered, entity)
	}
	return filtered, nil
}

// UpdateEntity applies a partial update. Type and ID are immutable;
// absent fields keep their stored values. A rewritten tag list is
// mirrored into the tag relationship rows and membership records in the
// same transaction, so the two tag representations cannot drift.
func (s *entityServiceImpl) UpdateEntity(ctx context.Context, entityID string, req *dto.UpdateEntityRequest) (*domain.Entity, error) {
	s.locks.Lock(entityID)
	defer s.locks.Unlock(entityID)

	if req.Priority != nil && *req.Priority != "" && !domain.ValidPriority(*req.Priority) {
		return nil, response.NewAppError(response.ErrCodeValidation, "Unknown priority", *req.Priority)
	}

	var entity *domain.Entity
	err := s.db.Transaction(func(tx *gorm.DB) error {
		entityRepo := repository.NewEntityRepository(tx)

		found, err := entityRepo.FindByID(ctx, entityID)
		if err != nil {
			return notFoundOr(err, "Entity not found")
		}

		if req.Title != nil {
			if strings.TrimSpace(*req.Title) == "" {
				return response.NewAppError(response.ErrCodeValidation, "Title cannot be empty", "")
			}
			found.Title = *req.Title
		}
		if req.Content != nil {
			found.Content = *req.Content
		}
		if req.Priority != nil {
			found.Priority = *req.Priority
		}
		if req.DueDate != nil {
			found.DueDate = req.DueDate
		}
		if req.Tags != nil {
			if err := syncTagContexts(ctx, tx, found, *req.Tags); err != nil {
				return err
			}
			found.Tags = *req.Tags
		}
		if req.Completed != nil {
			found.Completed = *req.Completed
		}
		if req.Items != nil {
			items := make([]domain.ChecklistItem, 0, len(*req.Items))
			for _, item := range *req.Items {
				items = append(items, domain.ChecklistItem{
					ID:        item.ID,
					Text:      item.Text,
					Completed: item.Completed,
				})
			}
			found.Items = items
		}
		if req.People != nil {
			found.People = *req.People
		}

		if err := entityRepo.Update(ctx, found); err != nil {
			return err
		}
		entity = found
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entity, nil
}

// syncTagContexts aligns the tag relationship rows and membership
// records with a rewritten tag list. Tags present in both sets are left
// alone; the adds are idempotent against memberships created through the
// engine.
func syncTagContexts(ctx context.Context, tx *gorm.DB, entity *domain.Entity, tags []string) error {
	relRepo := repository.NewRelationshipRepository(tx)
	posRepo := repository.NewPositionRepository(tx)

	want := make(map[string]bool, len(tags))
	for _, tag := range tags {
		if strings.TrimSpace(tag) == "" {
			return response.NewAppError(response.ErrCodeValidation, "Tag cannot be blank", "")
		}
		want[tag] = true
	}

	for _, tag := range entity.Tags {
		if want[tag] {
			continue
		}
		if _, err := relRepo.Remove(ctx, entity.ID, domain.RelationshipTag, tag); err != nil {
			return err
		}
		if _, err := posRepo.Remove(ctx, entity.ID, domain.ContextKindTag, tag, nil); err != nil {
			return err
		}
	}

	have := make(map[string]bool, len(entity.Tags))
	for _, tag := range entity.Tags {
		have[tag] = true
	}
	for _, tag := range tags {
		if have[tag] {
			continue
		}
		if _, err := relRepo.Add(ctx, &domain.EntityRelationship{
			EntityID:         entity.ID,
			RelatedKey:       tag,
			RelationshipType: domain.RelationshipTag,
		}); err != nil {
			return err
		}
		if _, err := posRepo.Add(ctx, &domain.EntityPosition{
			EntityID:    entity.ID,
			ContextKind: domain.ContextKindTag,
			ContextKey:  tag,
		}); err != nil {
			return err
		}
	}
	return nil
}

// DeleteEntity removes an entity and all of its placements.
func (s *entityServiceImpl) DeleteEntity(ctx context.Context, entityID string) error {
	return s.engine.DeleteEntity(ctx, entityID)
}
