package migration

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"project-board-sync/internal/domain"
	"project-board-sync/internal/repository"
)

// legacyWeekItem is the raw shape of a weekly item before the entity
// system existed: free-standing cards embedded in the plan document
// instead of wrappers pointing at entity records.
type legacyWeekItem struct {
	ItemID   string    `json:"item_id"`
	EntityID string    `json:"entity_id"`
	Type     string    `json:"type"`
	Content  string    `json:"content"`
	Day      string    `json:"day"`
	AddedAt  time.Time `json:"added_at"`
}

// weeklyPlanRow reads the items column as raw JSON so legacy fields
// survive the scan.
type weeklyPlanRow struct {
	WeekKey string         `gorm:"column:week_key"`
	Items   datatypes.JSON `gorm:"column:items"`
}

// MigrateLegacyWeeklyCards converts legacy embedded card items into note
// entities with standard wrappers and membership records. Runs once at
// startup; the engine and renderer only ever see migrated plans. Returns
// the number of cards converted.
func MigrateLegacyWeeklyCards(ctx context.Context, db *gorm.DB, logger *zap.Logger) (int, error) {
	var rows []weeklyPlanRow
	if err := db.WithContext(ctx).
		Table(domain.WeeklyPlan{}.TableName()).
		Select("week_key", "items").
		Find(&rows).Error; err != nil {
		return 0, err
	}

	migrated := 0
	for _, row := range rows {
		if len(row.Items) == 0 {
			continue
		}
		var items []legacyWeekItem
		if err := json.Unmarshal(row.Items, &items); err != nil {
			return migrated, fmt.Errorf("week %s: malformed items payload: %w", row.WeekKey, err)
		}

		hasLegacy := false
		for _, item := range items {
			if item.EntityID == "" && item.Type == "card" {
				hasLegacy = true
				break
			}
		}
		if !hasLegacy {
			continue
		}

		n, err := migratePlan(ctx, db, row.WeekKey, items, logger)
		if err != nil {
			return migrated, err
		}
		migrated += n
	}

	if migrated > 0 {
		logger.Info("Migrated legacy weekly cards",
			zap.Int("converted", migrated))
	}
	return migrated, nil
}

// migratePlan rewrites one plan's items in a single transaction. Each
// legacy card becomes a note entity plus a standard wrapper plus a
// membership record; already-migrated wrappers pass through unchanged.
func migratePlan(ctx context.Context, db *gorm.DB, weekKey string, items []legacyWeekItem, logger *zap.Logger) (int, error) {
	migrated := 0
	err := db.Transaction(func(tx *gorm.DB) error {
		entityRepo := repository.NewEntityRepository(tx)
		posRepo := repository.NewPositionRepository(tx)

		out := make([]domain.WeekItem, 0, len(items))
		for _, item := range items {
			if item.EntityID != "" || item.Type != "card" {
				out = append(out, domain.WeekItem{
					ItemID:   item.ItemID,
					EntityID: item.EntityID,
					Day:      item.Day,
					AddedAt:  item.AddedAt,
				})
				continue
			}

			id, err := entityRepo.NextID(ctx, domain.EntityTypeNote)
			if err != nil {
				return err
			}
			note := &domain.Entity{
				ID:      id,
				Type:    domain.EntityTypeNote,
				Title:   cardTitle(item.Content),
				Content: item.Content,
			}
			if err := entityRepo.Create(ctx, note); err != nil {
				return err
			}

			if _, err := posRepo.Add(ctx, &domain.EntityPosition{
				EntityID:    id,
				ContextKind: domain.ContextKindWeekly,
				ContextKey:  weekKey,
				Day:         item.Day,
			}); err != nil {
				return err
			}

			itemID := item.ItemID
			if itemID == "" {
				itemID = uuid.NewString()
			}
			addedAt := item.AddedAt
			if addedAt.IsZero() {
				addedAt = time.Now().UTC()
			}
			out = append(out, domain.WeekItem{
				ItemID:   itemID,
				EntityID: id,
				Day:      item.Day,
				AddedAt:  addedAt,
			})
			migrated++

			logger.Debug("Converted legacy weekly card",
				zap.String("week_key", weekKey),
				zap.String("entity_id", id))
		}

		payload, err := json.Marshal(out)
		if err != nil {
			return err
		}
		return tx.WithContext(ctx).
			Table(domain.WeeklyPlan{}.TableName()).
			Where("week_key = ?", weekKey).
			Update("items", datatypes.JSON(payload)).Error
	})
	if err != nil {
		return 0, err
	}
	return migrated, nil
}

// cardTitle derives a note title from legacy card content: the first
// line, trimmed and capped.
func cardTitle(content string) string {
	title := content
	if i := strings.IndexByte(title, '\n'); i >= 0 {
		title = title[:i]
	}
	title = strings.TrimSpace(title)
	if title == "" {
		title = "Untitled card"
	}
	if len(title) > 80 {
		title = title[:80]
	}
	return title
}
