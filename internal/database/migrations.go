package database

import (
	"errors"
	"time"

	"github.com/MarcoPoloResearchLab/keyhub/internal/keycodes"
	"github.com/MarcoPoloResearchLab/keyhub/internal/loadout"
	"github.com/MarcoPoloResearchLab/keyhub/internal/remaps"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	migrationNormalizeBindingKeyCodes = "2026-01-12_normalize_binding_key_codes"
	migrationNormalizeRemapKeys       = "2026-01-12_normalize_remap_keys"
	migrationRetireDuplicateRemaps    = "2026-10-14_retire_duplicate_remaps"
)

type migrationRecord struct {
	Name             string `gorm:"column:name;primaryKey;size:190;not null"`
	AppliedAtSeconds int64  `gorm:"column:applied_at_s;not null"`
}

func (migrationRecord) TableName() string {
	return "db_migrations"
}

type migrationDefinition struct {
	name  string
	apply func(*gorm.DB) error
}

func applyMigrations(db *gorm.DB, logger *zap.Logger) error {
	migrations := []migrationDefinition{
		{name: migrationNormalizeBindingKeyCodes, apply: normalizeBindingKeyCodes},
		{name: migrationNormalizeRemapKeys, apply: normalizeRemapKeys},
		// Databases that ran the first remap normalization may still hold duplicate live sources.
		{name: migrationRetireDuplicateRemaps, apply: normalizeRemapKeys},
	}

	for _, migration := range migrations {
		var record migrationRecord
		err := db.Where("name = ?", migration.name).Take(&record).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		err = db.Transaction(func(tx *gorm.DB) error {
			if err := migration.apply(tx); err != nil {
				return err
			}
			appliedAt := time.Now().UTC().Unix()
			return tx.Create(&migrationRecord{Name: migration.name, AppliedAtSeconds: appliedAt}).Error
		})
		if err != nil {
			return err
		}
		if logger != nil {
			logger.Info("database migration applied", zap.String("migration", migration.name))
		}
	}
	return nil
}

// normalizeBindingKeyCodes rewrites legacy spellings and empty key codes to their stored form.
func normalizeBindingKeyCodes(db *gorm.DB) error {
	var rows []loadout.BindingRow
	if err := db.Find(&rows).Error; err != nil {
		return err
	}
	for _, row := range rows {
		stored := keycodes.ParseAssignment(row.KeyCode).StorageValue()
		if stored == row.KeyCode {
			continue
		}
		err := db.Model(&loadout.BindingRow{}).
			Where("user_id = ? AND action = ?", row.UserID, row.Action).
			Update("key_code", stored).Error
		if err != nil {
			return err
		}
	}
	return nil
}

// normalizeRemapKeys canonicalizes live remap sources and targets. When several live rows
// of one user spell the same source differently, the upsert winner keeps it and the rest
// are retired.
func normalizeRemapKeys(db *gorm.DB) error {
	var rows []loadout.RemapRow
	if err := db.Where("is_deleted = ?", false).Order("remap_id ASC").Find(&rows).Error; err != nil {
		return err
	}
	byUser := make(map[string][]loadout.RemapRow)
	users := make([]string, 0)
	for _, row := range rows {
		if _, seen := byUser[row.UserID]; !seen {
			users = append(users, row.UserID)
		}
		byUser[row.UserID] = append(byUser[row.UserID], row)
	}
	now := time.Now().UTC().Unix()
	for _, userID := range users {
		if err := normalizeUserRemaps(db, byUser[userID], now); err != nil {
			return err
		}
	}
	return nil
}

func normalizeUserRemaps(db *gorm.DB, rows []loadout.RemapRow, now int64) error {
	byID := make(map[int64]loadout.RemapRow, len(rows))
	candidates := make([]remaps.Candidate, 0, len(rows))
	for _, row := range rows {
		byID[row.RemapID] = row
		candidates = append(candidates, remaps.Candidate{ID: row.RemapID, Source: row.SourceKey, UpdatedAtSeconds: row.UpdatedAtSeconds})
	}
	settled := make(map[int64]bool, len(rows))
	for _, row := range rows {
		if settled[row.RemapID] {
			continue
		}
		primary, duplicates, ok := remaps.ResolveUpsert(unsettled(candidates, settled), row.SourceKey)
		if !ok {
			continue
		}
		settled[primary.ID] = true
		retired := make([]int64, 0, len(duplicates))
		for _, duplicate := range duplicates {
			settled[duplicate.ID] = true
			retired = append(retired, duplicate.ID)
		}
		if len(retired) > 0 {
			err := db.Model(&loadout.RemapRow{}).Where("remap_id IN ?", retired).
				Updates(map[string]any{"is_deleted": true, "updated_at_s": now}).Error
			if err != nil {
				return err
			}
		}
		if updates := remapKeyUpdates(byID[primary.ID]); len(updates) > 0 {
			if err := db.Model(&loadout.RemapRow{}).Where("remap_id = ?", primary.ID).Updates(updates).Error; err != nil {
				return err
			}
		}
	}
	return nil
}

func unsettled(candidates []remaps.Candidate, settled map[int64]bool) []remaps.Candidate {
	open := make([]remaps.Candidate, 0, len(candidates))
	for _, candidate := range candidates {
		if !settled[candidate.ID] {
			open = append(open, candidate)
		}
	}
	return open
}

// remapKeyUpdates returns the column changes that bring row to canonical spellings.
// A target that does not name a real key disables the source.
func remapKeyUpdates(row loadout.RemapRow) map[string]any {
	updates := map[string]any{}
	if source := keycodes.Normalize(row.SourceKey).String(); source != "" && source != row.SourceKey {
		updates["source_key"] = source
	}
	if row.TargetKey != nil {
		target := keycodes.Normalize(*row.TargetKey)
		switch {
		case target == "" || target == keycodes.Unbound:
			updates["target_key"] = nil
		case target.String() != *row.TargetKey:
			updates["target_key"] = target.String()
		}
	}
	return updates
}
