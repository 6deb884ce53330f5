package job

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"project-board-sync/internal/domain"
	"project-board-sync/internal/metrics"
	"project-board-sync/internal/repository"
	"project-board-sync/internal/service"
)

// ConsistencyJob audits the placement caches against the position index
// and optionally repairs drift. The index is authoritative: a cache entry
// without a membership record is removed, a membership without a cache
// entry is re-appended.
type ConsistencyJob struct {
	db      *gorm.DB
	engine  service.SyncEngine
	metrics *metrics.Metrics
	logger  *zap.Logger
	repair  bool
}

// NewConsistencyJob creates a new ConsistencyJob instance
func NewConsistencyJob(db *gorm.DB, engine service.SyncEngine, m *metrics.Metrics, logger *zap.Logger, repair bool) *ConsistencyJob {
	return &ConsistencyJob{
		db:      db,
		engine:  engine,
		metrics: m,
		logger:  logger,
		repair:  repair,
	}
}

// Run executes one audit pass over every board and weekly plan.
// Implements cron.Job.
func (j *ConsistencyJob) Run() {
	ctx := context.Background()
	start := time.Now()

	j.logger.Info("Starting placement consistency audit")

	boardDrift, err := j.auditBoards(ctx)
	if err != nil {
		j.logger.Error("Board audit failed", zap.Error(err))
		return
	}
	weeklyDrift, repairedWeekly, err := j.auditWeeklyPlans(ctx)
	if err != nil {
		j.logger.Error("Weekly plan audit failed", zap.Error(err))
		return
	}

	drift := 0
	for _, d := range boardDrift {
		drift += d
	}
	drift += weeklyDrift

	repaired := repairedWeekly
	if j.repair && len(boardDrift) > 0 {
		for boardID := range boardDrift {
			n, err := j.engine.RebuildBoardCaches(ctx, boardID)
			if err != nil {
				j.logger.Error("Failed to rebuild board caches",
					zap.String("board_id", boardID.String()),
					zap.Error(err))
				continue
			}
			repaired += n
		}
	}

	j.metrics.RecordAudit(drift, repaired)

	if drift > 0 {
		j.logger.Warn("Placement consistency audit found drift",
			zap.Int("drifted_placements", drift),
			zap.Int("repaired", repaired),
			zap.Bool("repair_enabled", j.repair),
			zap.Duration("duration", time.Since(start)))
		return
	}
	j.logger.Info("Placement consistency audit completed",
		zap.Duration("duration", time.Since(start)))
}

// auditBoards compares each board's card cache against the position
// index and returns the drifted placement count per board.
func (j *ConsistencyJob) auditBoards(ctx context.Context) (map[uuid.UUID]int, error) {
	boardRepo := repository.NewBoardRepository(j.db)
	posRepo := repository.NewPositionRepository(j.db)

	boards, err := boardRepo.FindAll(ctx)
	if err != nil {
		return nil, err
	}

	type occurrence struct {
		entityID string
		rowID    string
		col      string
	}

	drift := make(map[uuid.UUID]int)
	for _, board := range boards {
		positions, err := posRepo.FindByContext(ctx, domain.ContextKindBoard, board.ID.String())
		if err != nil {
			return nil, err
		}

		indexed := make(map[occurrence]bool, len(positions))
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

		n := 0
		for occ := range cached {
			if !indexed[occ] {
				n++
				j.logger.Warn("Cache entry without membership record",
					zap.String("board_id", board.ID.String()),
					zap.String("entity_id", occ.entityID),
					zap.String("row_id", occ.rowID),
					zap.String("column", occ.col))
			}
		}
		for occ := range indexed {
			if !cached[occ] {
				n++
				j.logger.Warn("Membership record without cache entry",
					zap.String("board_id", board.ID.String()),
					zap.String("entity_id", occ.entityID),
					zap.String("row_id", occ.rowID),
					zap.String("column", occ.col))
			}
		}
		if n > 0 {
			drift[board.ID] = n
		}
	}
	return drift, nil
}

// auditWeeklyPlans compares weekly item caches against the index.
// Repairs, when enabled, follow the index: stale items are dropped and
// missing wrappers re-created.
func (j *ConsistencyJob) auditWeeklyPlans(ctx context.Context) (drift, repaired int, err error) {
	weeklyRepo := repository.NewWeeklyPlanRepository(j.db)
	posRepo := repository.NewPositionRepository(j.db)

	plans, err := weeklyRepo.FindAll(ctx)
	if err != nil {
		return 0, 0, err
	}

	for _, plan := range plans {
		positions, err := posRepo.FindByContext(ctx, domain.ContextKindWeekly, plan.WeekKey)
		if err != nil {
			return 0, 0, err
		}

		member := make(map[string]bool, len(positions))
		for _, pos := range positions {
			member[pos.EntityID] = true
		}
		inCache := make(map[string]bool, len(plan.Items))

		planDrift := 0
		kept := plan.Items[:0:0]
		for _, item := range plan.Items {
			inCache[item.EntityID] = true
			if !member[item.EntityID] {
				planDrift++
				j.logger.Warn("Weekly item without membership record",
					zap.String("week_key", plan.WeekKey),
					zap.String("entity_id", item.EntityID))
				continue
			}
			kept = append(kept, item)
		}
		for _, pos := range positions {
			if inCache[pos.EntityID] {
				continue
			}
			planDrift++
			j.logger.Warn("Weekly membership without cache item",
				zap.String("week_key", plan.WeekKey),
				zap.String("entity_id", pos.EntityID))
			if j.repair {
				kept = append(kept, domain.WeekItem{
					ItemID:   uuid.NewString(),
					EntityID: pos.EntityID,
					Day:      pos.Day,
					AddedAt:  pos.AddedAt,
				})
			}
		}
		drift += planDrift

		if j.repair && planDrift > 0 {
			plan.Items = kept
			if err := weeklyRepo.Update(ctx, plan); err != nil {
				j.logger.Error("Failed to repair weekly plan",
					zap.String("week_key", plan.WeekKey),
					zap.Error(err))
				continue
			}
			repaired += planDrift
		}
	}
	return drift, repaired, nil
}
