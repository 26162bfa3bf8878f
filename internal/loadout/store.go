// Package loadout persists a user's bindings, remaps, finger map, device config and
// inventory helpers, and loads them into an in-memory buffer for editing.
package loadout

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/keyhub/internal/bindings"
	"github.com/MarcoPoloResearchLab/keyhub/internal/devices"
	"github.com/MarcoPoloResearchLab/keyhub/internal/fingers"
	"github.com/MarcoPoloResearchLab/keyhub/internal/keycodes"
	"github.com/MarcoPoloResearchLab/keyhub/internal/remaps"
	"github.com/MarcoPoloResearchLab/keyhub/internal/serviceerr"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DefaultBatchSize bounds the rows written per INSERT statement.
const DefaultBatchSize = 100

var (
	errMissingDatabase = errors.New("database handle is required")
	errMissingUserID   = errors.New("user identifier is required")
	errMissingSource   = errors.New("remap source key is required")
	noOpLogger         = zap.NewNop()
)

const (
	opStoreNew        = "loadout.store.new"
	opLoad            = "loadout.load"
	opCommit          = "loadout.commit"
	opReplaceBindings = "loadout.replace_bindings"
	opReplaceCustom   = "loadout.replace_custom_keys"
	opReplaceRemaps   = "loadout.replace_remaps"
	opReplaceFingers  = "loadout.replace_fingers"
	opReplaceDevice   = "loadout.replace_device"
	opUpsertRemap     = "loadout.upsert_remap"
	opSeedDefaults    = "loadout.seed_defaults"
)

const (
	queryUser              = "user_id = ?"
	queryUserActiveRemaps  = "user_id = ? AND is_deleted = ?"
	queryUserCustomOnly    = "user_id = ? AND category = ?"
	queryUserNonCustomOnly = "user_id = ? AND category <> ?"
	queryRemapIDs          = "remap_id IN ?"
)

// StoreConfig wires the store dependencies.
type StoreConfig struct {
	Database  *gorm.DB
	Clock     func() time.Time
	Logger    *zap.Logger
	BatchSize int
}

// Store reads and writes loadouts.
type Store struct {
	db        *gorm.DB
	clock     func() time.Time
	logger    *zap.Logger
	batchSize int
}

// NewStore validates the configuration and builds a Store.
func NewStore(cfg StoreConfig) (*Store, error) {
	if cfg.Database == nil {
		return nil, serviceerr.New(opStoreNew, "missing_database", errMissingDatabase)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Store{db: cfg.Database, clock: clock, logger: logger, batchSize: batchSize}, nil
}

// Load reads every section of the user's loadout. A user without a device row gets a nil Device.
func (s *Store) Load(ctx context.Context, userID string) (Loadout, error) {
	if strings.TrimSpace(userID) == "" {
		return Loadout{}, serviceerr.New(opLoad, "missing_user_id", errMissingUserID)
	}
	db := s.db.WithContext(ctx)
	var result Loadout

	var bindingRows []BindingRow
	if err := db.Where(queryUser, userID).Order("category ASC, action ASC").Find(&bindingRows).Error; err != nil {
		s.logError(opLoad, "bindings_query_failed", err, zap.String("user_id", userID))
		return Loadout{}, serviceerr.New(opLoad, "bindings_query_failed", err)
	}
	result.Bindings = make([]bindings.Binding, 0, len(bindingRows))
	for _, row := range bindingRows {
		result.Bindings = append(result.Bindings, bindingFromRow(row))
	}

	var remapRows []RemapRow
	if err := db.Where(queryUserActiveRemaps, userID, false).Order("remap_id ASC").Find(&remapRows).Error; err != nil {
		s.logError(opLoad, "remaps_query_failed", err, zap.String("user_id", userID))
		return Loadout{}, serviceerr.New(opLoad, "remaps_query_failed", err)
	}
	result.Remaps = make([]remaps.Remap, 0, len(remapRows))
	for _, row := range remapRows {
		result.Remaps = append(result.Remaps, remapFromRow(row))
	}

	var fingerRows []FingerRow
	if err := db.Where(queryUser, userID).Order("key_code ASC").Find(&fingerRows).Error; err != nil {
		s.logError(opLoad, "fingers_query_failed", err, zap.String("user_id", userID))
		return Loadout{}, serviceerr.New(opLoad, "fingers_query_failed", err)
	}
	records := make([]fingers.Record, 0, len(fingerRows))
	for _, row := range fingerRows {
		records = append(records, fingers.Record{KeyCode: row.KeyCode, Fingers: row.Fingers})
	}
	result.Fingers = fingers.FromRecords(records)

	var device devices.Config
	err := db.Where(queryUser, userID).Take(&device).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
	case err != nil:
		s.logError(opLoad, "device_query_failed", err, zap.String("user_id", userID))
		return Loadout{}, serviceerr.New(opLoad, "device_query_failed", err)
	default:
		result.Device = &device
	}

	var layoutRows []ItemLayoutRow
	if err := db.Where(queryUser, userID).Order("position ASC, layout_id ASC").Find(&layoutRows).Error; err != nil {
		s.logError(opLoad, "item_layouts_query_failed", err, zap.String("user_id", userID))
		return Loadout{}, serviceerr.New(opLoad, "item_layouts_query_failed", err)
	}
	for _, row := range layoutRows {
		result.ItemLayouts = append(result.ItemLayouts, ItemLayout{Name: row.Name, Slots: row.Slots})
	}

	var craftRows []SearchCraftRow
	if err := db.Where(queryUser, userID).Order("position ASC, craft_id ASC").Find(&craftRows).Error; err != nil {
		s.logError(opLoad, "search_crafts_query_failed", err, zap.String("user_id", userID))
		return Loadout{}, serviceerr.New(opLoad, "search_crafts_query_failed", err)
	}
	for _, row := range craftRows {
		result.SearchCrafts = append(result.SearchCrafts, SearchCraft{Label: row.Label, Query: row.Query})
	}

	return result, nil
}

// Commit writes every section of the buffer back in one transaction.
func (s *Store) Commit(ctx context.Context, userID string, buffer Loadout) error {
	return s.CommitSections(ctx, userID, buffer, AllSections()...)
}

// CommitSections writes only the named sections of the buffer, in one transaction.
// Bindings are upserted per action, remaps follow the upsert rule per source and rows
// absent from the buffer are retired, while fingers and inventory helpers are replaced
// wholesale. Sections that are not named keep their stored rows.
func (s *Store) CommitSections(ctx context.Context, userID string, buffer Loadout, sections ...Section) error {
	if strings.TrimSpace(userID) == "" {
		return serviceerr.New(opCommit, "missing_user_id", errMissingUserID)
	}
	if len(sections) == 0 {
		return nil
	}
	selected := make(map[Section]bool, len(sections))
	for _, section := range sections {
		selected[section] = true
	}
	now := s.clock().UTC().Unix()
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if selected[SectionBindings] {
			if err := s.upsertBindings(tx, userID, buffer.Bindings, now); err != nil {
				s.logError(opCommit, "bindings_write_failed", err, zap.String("user_id", userID))
				return serviceerr.New(opCommit, "bindings_write_failed", err)
			}
		}
		if selected[SectionRemaps] {
			if err := s.mergeRemaps(tx, userID, remaps.NewLayer(buffer.Remaps).Remaps(), now); err != nil {
				s.logError(opCommit, "remaps_write_failed", err, zap.String("user_id", userID))
				return serviceerr.New(opCommit, "remaps_write_failed", err)
			}
		}
		if selected[SectionFingers] {
			if err := s.writeFingers(tx, userID, buffer.Fingers); err != nil {
				s.logError(opCommit, "fingers_write_failed", err, zap.String("user_id", userID))
				return serviceerr.New(opCommit, "fingers_write_failed", err)
			}
		}
		if selected[SectionDevice] && buffer.Device != nil {
			if err := s.writeDevice(tx, userID, *buffer.Device, now); err != nil {
				s.logError(opCommit, "device_write_failed", err, zap.String("user_id", userID))
				return serviceerr.New(opCommit, "device_write_failed", err)
			}
		}
		if selected[SectionItemLayouts] {
			if err := s.writeItemLayouts(tx, userID, buffer.ItemLayouts); err != nil {
				s.logError(opCommit, "item_layouts_write_failed", err, zap.String("user_id", userID))
				return serviceerr.New(opCommit, "item_layouts_write_failed", err)
			}
		}
		if selected[SectionSearchCrafts] {
			if err := s.writeSearchCrafts(tx, userID, buffer.SearchCrafts); err != nil {
				s.logError(opCommit, "search_crafts_write_failed", err, zap.String("user_id", userID))
				return serviceerr.New(opCommit, "search_crafts_write_failed", err)
			}
		}
		return nil
	})
}

// ReplaceBindings deletes the user's non-custom bindings and inserts rows in their place.
func (s *Store) ReplaceBindings(ctx context.Context, userID string, rows []bindings.Binding) error {
	return s.replaceBindings(ctx, opReplaceBindings, userID, queryUserNonCustomOnly, rows)
}

// ReplaceCustomKeys deletes the user's custom bindings and inserts rows in their place.
// Rows named after a vocabulary action are dropped so they cannot overwrite that binding.
func (s *Store) ReplaceCustomKeys(ctx context.Context, userID string, rows []bindings.Binding) error {
	custom := make([]bindings.Binding, 0, len(rows))
	for _, row := range rows {
		if bindings.IsKnown(row.Action) {
			continue
		}
		row.Category = bindings.CategoryCustom
		custom = append(custom, row)
	}
	return s.replaceBindings(ctx, opReplaceCustom, userID, queryUserCustomOnly, custom)
}

func (s *Store) replaceBindings(ctx context.Context, operation, userID, scope string, rows []bindings.Binding) error {
	if strings.TrimSpace(userID) == "" {
		return serviceerr.New(operation, "missing_user_id", errMissingUserID)
	}
	now := s.clock().UTC().Unix()
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where(scope, userID, string(bindings.CategoryCustom)).Delete(&BindingRow{}).Error; err != nil {
			s.logError(operation, "delete_failed", err, zap.String("user_id", userID))
			return serviceerr.New(operation, "delete_failed", err)
		}
		if err := s.upsertBindings(tx, userID, rows, now); err != nil {
			s.logError(operation, "insert_failed", err, zap.String("user_id", userID))
			return serviceerr.New(operation, "insert_failed", err)
		}
		return nil
	})
}

// ReplaceRemaps retires every active remap of the user and inserts the given set.
func (s *Store) ReplaceRemaps(ctx context.Context, userID string, set []remaps.Remap) error {
	if strings.TrimSpace(userID) == "" {
		return serviceerr.New(opReplaceRemaps, "missing_user_id", errMissingUserID)
	}
	now := s.clock().UTC().Unix()
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&RemapRow{}).
			Where(queryUserActiveRemaps, userID, false).
			Updates(map[string]any{"is_deleted": true, "updated_at_s": now}).Error; err != nil {
			s.logError(opReplaceRemaps, "retire_failed", err, zap.String("user_id", userID))
			return serviceerr.New(opReplaceRemaps, "retire_failed", err)
		}
		rows := make([]RemapRow, 0, len(set))
		for _, remap := range remaps.NewLayer(set).Remaps() {
			rows = append(rows, remapToRow(userID, remap, now))
		}
		if len(rows) == 0 {
			return nil
		}
		if err := tx.CreateInBatches(&rows, s.batchSize).Error; err != nil {
			s.logError(opReplaceRemaps, "insert_failed", err, zap.String("user_id", userID))
			return serviceerr.New(opReplaceRemaps, "insert_failed", err)
		}
		return nil
	})
}

// ReplaceFingers swaps the user's finger map for m.
func (s *Store) ReplaceFingers(ctx context.Context, userID string, m fingers.Map) error {
	if strings.TrimSpace(userID) == "" {
		return serviceerr.New(opReplaceFingers, "missing_user_id", errMissingUserID)
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.writeFingers(tx, userID, m); err != nil {
			s.logError(opReplaceFingers, "write_failed", err, zap.String("user_id", userID))
			return serviceerr.New(opReplaceFingers, "write_failed", err)
		}
		return nil
	})
}

// ReplaceDevice overwrites the user's device row.
func (s *Store) ReplaceDevice(ctx context.Context, userID string, config devices.Config) error {
	if strings.TrimSpace(userID) == "" {
		return serviceerr.New(opReplaceDevice, "missing_user_id", errMissingUserID)
	}
	now := s.clock().UTC().Unix()
	if err := s.writeDevice(s.db.WithContext(ctx), userID, config, now); err != nil {
		s.logError(opReplaceDevice, "write_failed", err, zap.String("user_id", userID))
		return serviceerr.New(opReplaceDevice, "write_failed", err)
	}
	return nil
}

// UpsertRemap stores remap under its normalized source. When older rows spell the same
// key differently, the preferred row is updated and the rest are retired.
func (s *Store) UpsertRemap(ctx context.Context, userID string, remap remaps.Remap) error {
	if strings.TrimSpace(userID) == "" {
		return serviceerr.New(opUpsertRemap, "missing_user_id", errMissingUserID)
	}
	rawSource := remap.Source.String()
	remap = remaps.Normalize(remap)
	if remap.Source == "" {
		return serviceerr.New(opUpsertRemap, "missing_source", errMissingSource)
	}
	now := s.clock().UTC().Unix()
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing []RemapRow
		if err := tx.Where(queryUserActiveRemaps, userID, false).Find(&existing).Error; err != nil {
			s.logError(opUpsertRemap, "select_failed", err, zap.String("user_id", userID))
			return serviceerr.New(opUpsertRemap, "select_failed", err)
		}
		if err := s.upsertOne(tx, userID, candidatesFrom(existing), rawSource, remap, now); err != nil {
			s.logError(opUpsertRemap, "write_failed", err,
				zap.String("user_id", userID),
				zap.String("source_key", remap.Source.String()))
			return serviceerr.New(opUpsertRemap, "write_failed", err)
		}
		return nil
	})
}

// SeedDefaults gives a user the default bindings and device config when they have none.
func (s *Store) SeedDefaults(ctx context.Context, userID string) error {
	if strings.TrimSpace(userID) == "" {
		return serviceerr.New(opSeedDefaults, "missing_user_id", errMissingUserID)
	}
	now := s.clock().UTC().Unix()
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var bindingCount int64
		if err := tx.Model(&BindingRow{}).Where(queryUser, userID).Count(&bindingCount).Error; err != nil {
			s.logError(opSeedDefaults, "count_failed", err, zap.String("user_id", userID))
			return serviceerr.New(opSeedDefaults, "count_failed", err)
		}
		if bindingCount == 0 {
			if err := s.upsertBindings(tx, userID, bindings.DefaultRows(), now); err != nil {
				s.logError(opSeedDefaults, "bindings_write_failed", err, zap.String("user_id", userID))
				return serviceerr.New(opSeedDefaults, "bindings_write_failed", err)
			}
		}
		var deviceCount int64
		if err := tx.Model(&devices.Config{}).Where(queryUser, userID).Count(&deviceCount).Error; err != nil {
			s.logError(opSeedDefaults, "count_failed", err, zap.String("user_id", userID))
			return serviceerr.New(opSeedDefaults, "count_failed", err)
		}
		if deviceCount == 0 {
			if err := s.writeDevice(tx, userID, devices.Default(userID), now); err != nil {
				s.logError(opSeedDefaults, "device_write_failed", err, zap.String("user_id", userID))
				return serviceerr.New(opSeedDefaults, "device_write_failed", err)
			}
		}
		return nil
	})
}

func (s *Store) upsertBindings(tx *gorm.DB, userID string, rows []bindings.Binding, now int64) error {
	if len(rows) == 0 {
		return nil
	}
	deduplicated := bindings.NewSet(rows, bindings.ModeKeyboardMouse).Rows()
	records := make([]BindingRow, 0, len(deduplicated))
	for _, row := range deduplicated {
		records = append(records, bindingToRow(userID, row, now))
	}
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "action"}},
		DoUpdates: clause.AssignmentColumns([]string{"category", "key_code", "updated_at_s"}),
	}).CreateInBatches(&records, s.batchSize).Error
}

func (s *Store) mergeRemaps(tx *gorm.DB, userID string, set []remaps.Remap, now int64) error {
	var existing []RemapRow
	if err := tx.Where(queryUserActiveRemaps, userID, false).Find(&existing).Error; err != nil {
		return err
	}
	candidates := candidatesFrom(existing)
	pending := make([]RemapRow, 0)
	for _, remap := range set {
		primary, duplicates, ok := remaps.ResolveUpsert(candidates, remap.Source.String())
		if !ok {
			pending = append(pending, remapToRow(userID, remap, now))
			continue
		}
		if err := s.updateRemap(tx, primary.ID, remap, now); err != nil {
			return err
		}
		if err := retireRemaps(tx, idsOf(duplicates), now); err != nil {
			return err
		}
		candidates = withoutCandidates(candidates, append(duplicates, primary))
	}
	if err := retireRemaps(tx, idsOf(candidates), now); err != nil {
		return err
	}
	if len(pending) == 0 {
		return nil
	}
	return tx.CreateInBatches(&pending, s.batchSize).Error
}

func (s *Store) upsertOne(tx *gorm.DB, userID string, candidates []remaps.Candidate, rawSource string, remap remaps.Remap, now int64) error {
	primary, duplicates, ok := remaps.ResolveUpsert(candidates, rawSource)
	if !ok {
		row := remapToRow(userID, remap, now)
		return tx.Create(&row).Error
	}
	if err := s.updateRemap(tx, primary.ID, remap, now); err != nil {
		return err
	}
	return retireRemaps(tx, idsOf(duplicates), now)
}

func (s *Store) updateRemap(tx *gorm.DB, remapID int64, remap remaps.Remap, now int64) error {
	row := remapToRow("", remap, now)
	return tx.Model(&RemapRow{}).Where("remap_id = ?", remapID).Updates(map[string]any{
		"source_key":   row.SourceKey,
		"target_key":   row.TargetKey,
		"software":     row.Software,
		"notes":        row.Notes,
		"updated_at_s": now,
	}).Error
}

func retireRemaps(tx *gorm.DB, ids []int64, now int64) error {
	if len(ids) == 0 {
		return nil
	}
	return tx.Model(&RemapRow{}).Where(queryRemapIDs, ids).
		Updates(map[string]any{"is_deleted": true, "updated_at_s": now}).Error
}

func (s *Store) writeFingers(tx *gorm.DB, userID string, m fingers.Map) error {
	if err := tx.Where(queryUser, userID).Delete(&FingerRow{}).Error; err != nil {
		return err
	}
	records := m.ToRecords()
	if len(records) == 0 {
		return nil
	}
	rows := make([]FingerRow, 0, len(records))
	for _, record := range records {
		rows = append(rows, FingerRow{UserID: userID, KeyCode: record.KeyCode, Fingers: record.Fingers})
	}
	return tx.CreateInBatches(&rows, s.batchSize).Error
}

func (s *Store) writeDevice(tx *gorm.DB, userID string, config devices.Config, now int64) error {
	config = config.Sanitize()
	config.UserID = userID
	config.UpdatedAtSeconds = now
	return tx.Save(&config).Error
}

func (s *Store) writeItemLayouts(tx *gorm.DB, userID string, layouts []ItemLayout) error {
	if err := tx.Where(queryUser, userID).Delete(&ItemLayoutRow{}).Error; err != nil {
		return err
	}
	if len(layouts) == 0 {
		return nil
	}
	rows := make([]ItemLayoutRow, 0, len(layouts))
	for position, layout := range layouts {
		slots := layout.Slots
		if slots == nil {
			slots = []string{}
		}
		rows = append(rows, ItemLayoutRow{UserID: userID, Position: position, Name: layout.Name, Slots: slots})
	}
	return tx.CreateInBatches(&rows, s.batchSize).Error
}

func (s *Store) writeSearchCrafts(tx *gorm.DB, userID string, crafts []SearchCraft) error {
	if err := tx.Where(queryUser, userID).Delete(&SearchCraftRow{}).Error; err != nil {
		return err
	}
	if len(crafts) == 0 {
		return nil
	}
	rows := make([]SearchCraftRow, 0, len(crafts))
	for position, craft := range crafts {
		rows = append(rows, SearchCraftRow{UserID: userID, Position: position, Label: craft.Label, Query: craft.Query})
	}
	return tx.CreateInBatches(&rows, s.batchSize).Error
}

func (s *Store) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.logger.Error("loadout store error", attrs...)
}

func bindingToRow(userID string, binding bindings.Binding, now int64) BindingRow {
	category := binding.Category
	if category == "" {
		category = bindings.CategoryCustom
	}
	return BindingRow{
		UserID:           userID,
		Action:           binding.Action.String(),
		Category:         string(category),
		KeyCode:          binding.Key.StorageValue(),
		UpdatedAtSeconds: now,
	}
}

func bindingFromRow(row BindingRow) bindings.Binding {
	return bindings.Binding{
		Action:   bindings.Action(row.Action),
		Category: bindings.Category(row.Category),
		Key:      keycodes.ParseAssignment(row.KeyCode),
	}
}

func remapToRow(userID string, remap remaps.Remap, now int64) RemapRow {
	row := RemapRow{
		UserID:           userID,
		SourceKey:        remap.Source.String(),
		Software:         remap.Software,
		Notes:            remap.Notes,
		UpdatedAtSeconds: now,
	}
	if !remap.Disabled {
		target := remap.Target.String()
		row.TargetKey = &target
	}
	return row
}

func remapFromRow(row RemapRow) remaps.Remap {
	remap := remaps.Remap{
		Source:   keycodes.KeyCode(row.SourceKey),
		Software: row.Software,
		Notes:    row.Notes,
		Disabled: row.TargetKey == nil,
	}
	if row.TargetKey != nil {
		remap.Target = keycodes.KeyCode(*row.TargetKey)
	}
	return remaps.Normalize(remap)
}

func candidatesFrom(rows []RemapRow) []remaps.Candidate {
	candidates := make([]remaps.Candidate, 0, len(rows))
	for _, row := range rows {
		candidates = append(candidates, remaps.Candidate{
			ID:               row.RemapID,
			Source:           row.SourceKey,
			UpdatedAtSeconds: row.UpdatedAtSeconds,
		})
	}
	return candidates
}

func idsOf(candidates []remaps.Candidate) []int64 {
	ids := make([]int64, 0, len(candidates))
	for _, candidate := range candidates {
		ids = append(ids, candidate.ID)
	}
	return ids
}

func withoutCandidates(candidates, claimed []remaps.Candidate) []remaps.Candidate {
	taken := make(map[int64]struct{}, len(claimed))
	for _, candidate := range claimed {
		taken[candidate.ID] = struct{}{}
	}
	remaining := candidates[:0:0]
	for _, candidate := range candidates {
		if _, ok := taken[candidate.ID]; !ok {
			remaining = append(remaining, candidate)
		}
	}
	return remaining
}
