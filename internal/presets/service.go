// Package presets stores named loadout snapshots, keeps exactly one of them active per
// user and records an audit history of creations and activations.
package presets

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/keyhub/internal/loadout"
	"github.com/MarcoPoloResearchLab/keyhub/internal/serviceerr"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	errMissingDatabase   = errors.New("database handle is required")
	errMissingIDProvider = errors.New("id provider is required")
	noOpLogger           = zap.NewNop()
)

const (
	opServiceNew = "presets.service.new"
	opCreate     = "presets.create"
	opActivate   = "presets.activate"
	opList       = "presets.list"
	opGet        = "presets.get"
	opActive     = "presets.active"
	opHistory    = "presets.history"
)

const (
	queryUser           = "user_id = ?"
	queryUserPreset     = "user_id = ? AND preset_id = ?"
	queryUserActive     = "user_id = ? AND is_active = ?"
	nameDateLayout      = "January 2, 2006"
	metricsEventUnknown = "unknown"
)

// Recorder observes preset events. The metrics package provides the production implementation.
type Recorder interface {
	RecordPresetEvent(event, source string)
}

// ServiceConfig wires the preset service dependencies.
type ServiceConfig struct {
	Database   *gorm.DB
	Clock      func() time.Time
	IDProvider IDProvider
	Logger     *zap.Logger
	Recorder   Recorder
}

// Service creates, activates and lists presets.
type Service struct {
	db         *gorm.DB
	clock      func() time.Time
	idProvider IDProvider
	logger     *zap.Logger
	recorder   Recorder
}

// NewService validates the configuration and builds a Service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, serviceerr.New(opServiceNew, "missing_database", errMissingDatabase)
	}
	if cfg.IDProvider == nil {
		return nil, serviceerr.New(opServiceNew, "missing_id_provider", errMissingIDProvider)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &Service{
		db:         cfg.Database,
		clock:      clock,
		idProvider: cfg.IDProvider,
		logger:     logger,
		recorder:   cfg.Recorder,
	}, nil
}

// CreateRequest describes a new preset.
type CreateRequest struct {
	UserID   string
	Name     string
	Loadout  loadout.Loadout
	Source   Source
	Activate bool
}

// Create snapshots the request loadout. When Activate is set, the previously active preset
// is deactivated in the same transaction. One history entry is appended.
func (s *Service) Create(ctx context.Context, request CreateRequest) (Preset, error) {
	userID := strings.TrimSpace(request.UserID)
	if userID == "" {
		s.logError(opCreate, "missing_user_id", ErrMissingUserID)
		return Preset{}, serviceerr.New(opCreate, "missing_user_id", ErrMissingUserID)
	}
	source, err := ParseSource(string(request.Source))
	if err != nil {
		return Preset{}, serviceerr.New(opCreate, "invalid_source", err)
	}
	name := strings.TrimSpace(request.Name)
	if name == "" {
		name = s.GenerateName(source)
	}

	fields, err := encodeLoadout(request.Loadout)
	if err != nil {
		s.logError(opCreate, "encode_failed", err, zap.String("user_id", userID))
		return Preset{}, serviceerr.New(opCreate, "encode_failed", err)
	}
	presetID, err := s.idProvider.NewID()
	if err != nil {
		s.logError(opCreate, "id_generation_failed", err, zap.String("user_id", userID))
		return Preset{}, serviceerr.New(opCreate, "id_generation_failed", err)
	}

	now := s.clock().UTC().Unix()
	preset := Preset{
		PresetID:              presetID,
		UserID:                userID,
		Name:                  name,
		IsActive:              request.Activate,
		Source:                string(source),
		KeybindingsData:       fields.keybindings,
		DeviceConfigData:      fields.deviceConfig,
		RemapsData:            fields.remaps,
		FingerAssignmentsData: fields.fingers,
		ItemLayoutsData:       fields.itemLayouts,
		SearchCraftsData:      fields.searchCrafts,
		CreatedAtSeconds:      now,
		UpdatedAtSeconds:      now,
	}

	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if preset.IsActive {
			if err := deactivateAll(tx, userID, now); err != nil {
				s.logError(opCreate, "deactivate_failed", err, zap.String("user_id", userID))
				return serviceerr.New(opCreate, "deactivate_failed", err)
			}
		}
		if err := tx.Create(&preset).Error; err != nil {
			s.logError(opCreate, "insert_failed", err, zap.String("user_id", userID))
			return serviceerr.New(opCreate, "insert_failed", err)
		}
		if err := s.appendHistory(tx, preset, EventCreated, describeCreated(source, name), now); err != nil {
			s.logError(opCreate, "history_insert_failed", err,
				zap.String("user_id", userID),
				zap.String("preset_id", presetID))
			return serviceerr.New(opCreate, "history_insert_failed", err)
		}
		return nil
	})
	if txErr != nil {
		return Preset{}, txErr
	}

	s.record(EventCreated, source)
	return preset, nil
}

// Activate marks presetID as the user's only active preset and audits the change.
func (s *Service) Activate(ctx context.Context, userID, presetID string) (Preset, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		s.logError(opActivate, "missing_user_id", ErrMissingUserID)
		return Preset{}, serviceerr.New(opActivate, "missing_user_id", ErrMissingUserID)
	}

	var preset Preset
	now := s.clock().UTC().Unix()
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where(queryUserPreset, userID, presetID).Take(&preset).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return serviceerr.New(opActivate, "not_found", ErrPresetNotFound)
		}
		if err != nil {
			s.logError(opActivate, "select_failed", err, zap.String("user_id", userID), zap.String("preset_id", presetID))
			return serviceerr.New(opActivate, "select_failed", err)
		}
		if err := deactivateAll(tx, userID, now); err != nil {
			s.logError(opActivate, "deactivate_failed", err, zap.String("user_id", userID))
			return serviceerr.New(opActivate, "deactivate_failed", err)
		}
		if err := tx.Model(&Preset{}).
			Where(queryUserPreset, userID, presetID).
			Updates(map[string]any{"is_active": true, "updated_at_s": now}).Error; err != nil {
			s.logError(opActivate, "update_failed", err, zap.String("user_id", userID), zap.String("preset_id", presetID))
			return serviceerr.New(opActivate, "update_failed", err)
		}
		preset.IsActive = true
		preset.UpdatedAtSeconds = now
		description := fmt.Sprintf("Activated preset %q", preset.Name)
		if err := s.appendHistory(tx, preset, EventActivated, description, now); err != nil {
			s.logError(opActivate, "history_insert_failed", err, zap.String("user_id", userID), zap.String("preset_id", presetID))
			return serviceerr.New(opActivate, "history_insert_failed", err)
		}
		return nil
	})
	if txErr != nil {
		return Preset{}, txErr
	}

	s.record(EventActivated, Source(preset.Source))
	return preset, nil
}

// List returns the user's presets, newest first.
func (s *Service) List(ctx context.Context, userID string) ([]Preset, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, serviceerr.New(opList, "missing_user_id", ErrMissingUserID)
	}
	var presets []Preset
	if err := s.db.WithContext(ctx).
		Where(queryUser, userID).
		Order("created_at_s DESC, preset_id DESC").
		Find(&presets).Error; err != nil {
		s.logError(opList, "query_failed", err, zap.String("user_id", userID))
		return nil, serviceerr.New(opList, "query_failed", err)
	}
	return presets, nil
}

// Get returns one preset of the user.
func (s *Service) Get(ctx context.Context, userID, presetID string) (Preset, error) {
	if strings.TrimSpace(userID) == "" {
		return Preset{}, serviceerr.New(opGet, "missing_user_id", ErrMissingUserID)
	}
	var preset Preset
	err := s.db.WithContext(ctx).Where(queryUserPreset, userID, presetID).Take(&preset).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Preset{}, serviceerr.New(opGet, "not_found", ErrPresetNotFound)
	}
	if err != nil {
		s.logError(opGet, "query_failed", err, zap.String("user_id", userID), zap.String("preset_id", presetID))
		return Preset{}, serviceerr.New(opGet, "query_failed", err)
	}
	return preset, nil
}

// Active returns the user's active preset. ok is false when none is active.
func (s *Service) Active(ctx context.Context, userID string) (preset Preset, ok bool, err error) {
	if strings.TrimSpace(userID) == "" {
		return Preset{}, false, serviceerr.New(opActive, "missing_user_id", ErrMissingUserID)
	}
	queryErr := s.db.WithContext(ctx).Where(queryUserActive, userID, true).Take(&preset).Error
	if errors.Is(queryErr, gorm.ErrRecordNotFound) {
		return Preset{}, false, nil
	}
	if queryErr != nil {
		s.logError(opActive, "query_failed", queryErr, zap.String("user_id", userID))
		return Preset{}, false, serviceerr.New(opActive, "query_failed", queryErr)
	}
	return preset, true, nil
}

// History returns the user's audit entries, newest first.
func (s *Service) History(ctx context.Context, userID string) ([]HistoryEntry, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, serviceerr.New(opHistory, "missing_user_id", ErrMissingUserID)
	}
	var entries []HistoryEntry
	if err := s.db.WithContext(ctx).
		Where(queryUser, userID).
		Order("recorded_at_s DESC, entry_id DESC").
		Find(&entries).Error; err != nil {
		s.logError(opHistory, "query_failed", err, zap.String("user_id", userID))
		return nil, serviceerr.New(opHistory, "query_failed", err)
	}
	return entries, nil
}

// GenerateName builds the default preset name for source from the service clock.
func (s *Service) GenerateName(source Source) string {
	date := s.clock().Format(nameDateLayout)
	switch source {
	case SourceImport:
		return fmt.Sprintf("Imported setup (%s)", date)
	case SourceOnboarding:
		return fmt.Sprintf("Starter setup (%s)", date)
	default:
		return fmt.Sprintf("Saved setup (%s)", date)
	}
}

func (s *Service) appendHistory(tx *gorm.DB, preset Preset, event HistoryEvent, description string, now int64) error {
	entryID, err := s.idProvider.NewID()
	if err != nil {
		return err
	}
	entry := HistoryEntry{
		EntryID:           entryID,
		UserID:            preset.UserID,
		PresetID:          preset.PresetID,
		Event:             string(event),
		Source:            preset.Source,
		Description:       description,
		RecordedAtSeconds: now,
	}
	return tx.Create(&entry).Error
}

func deactivateAll(tx *gorm.DB, userID string, now int64) error {
	return tx.Model(&Preset{}).
		Where(queryUserActive, userID, true).
		Updates(map[string]any{"is_active": false, "updated_at_s": now}).Error
}

func describeCreated(source Source, name string) string {
	switch source {
	case SourceImport:
		return fmt.Sprintf("Imported preset %q from a legacy profile", name)
	case SourceOnboarding:
		return fmt.Sprintf("Created starter preset %q", name)
	default:
		return fmt.Sprintf("Saved preset %q", name)
	}
}

func (s *Service) record(event HistoryEvent, source Source) {
	if s.recorder == nil {
		return
	}
	label := string(source)
	if label == "" {
		label = metricsEventUnknown
	}
	s.recorder.RecordPresetEvent(string(event), label)
}

func (s *Service) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.logger.Error("presets service error", attrs...)
}
