package presets

import (
	"errors"
	"strings"
)

// Source records which event produced a preset.
type Source string

const (
	// SourceManual marks presets saved explicitly by the user.
	SourceManual Source = "manual"
	// SourceImport marks presets produced by the legacy importer.
	SourceImport Source = "import"
	// SourceOnboarding marks starter presets created for new users.
	SourceOnboarding Source = "onboarding"
)

// ParseSource validates a source tag.
func ParseSource(raw string) (Source, error) {
	switch source := Source(strings.ToLower(strings.TrimSpace(raw))); source {
	case SourceManual, SourceImport, SourceOnboarding:
		return source, nil
	case "":
		return SourceManual, nil
	}
	return "", ErrInvalidSource
}

// Scope selects which preset fields CopyInto applies.
type Scope string

const (
	ScopeBindings Scope = "bindings"
	ScopeRemaps   Scope = "remaps"
	ScopeFingers  Scope = "fingers"
	ScopeAll      Scope = "all"
)

// ParseScope validates a copy scope.
func ParseScope(raw string) (Scope, error) {
	switch scope := Scope(strings.ToLower(strings.TrimSpace(raw))); scope {
	case ScopeBindings, ScopeRemaps, ScopeFingers, ScopeAll:
		return scope, nil
	}
	return "", ErrInvalidScope
}

// HistoryEvent names the preset mutations that are audited.
type HistoryEvent string

const (
	EventCreated   HistoryEvent = "created"
	EventActivated HistoryEvent = "activated"
)

var (
	// ErrMissingUserID indicates a call without a user identifier.
	ErrMissingUserID = errors.New("presets: user identifier is required")
	// ErrPresetNotFound indicates the preset does not exist for the user.
	ErrPresetNotFound = errors.New("presets: preset not found")
	// ErrInvalidSource indicates an unknown source tag.
	ErrInvalidSource = errors.New("presets: invalid source")
	// ErrInvalidScope indicates an unknown copy scope.
	ErrInvalidScope = errors.New("presets: invalid copy scope")
	// ErrMissingBuffer indicates CopyInto was called without a target buffer.
	ErrMissingBuffer = errors.New("presets: editing buffer is required")
)

// Preset is a serialized snapshot of a loadout. Nil data fields mean the collection was empty.
type Preset struct {
	PresetID              string  `gorm:"column:preset_id;primaryKey;size:190" json:"id"`
	UserID                string  `gorm:"column:user_id;size:190;not null;index:idx_presets_user_active,priority:1" json:"-"`
	Name                  string  `gorm:"column:name;size:190;not null" json:"name"`
	IsActive              bool    `gorm:"column:is_active;not null;default:false;index:idx_presets_user_active,priority:2" json:"isActive"`
	Source                string  `gorm:"column:source;size:32;not null" json:"source"`
	KeybindingsData       *string `gorm:"column:keybindings_data;type:text" json:"keybindingsData"`
	DeviceConfigData      *string `gorm:"column:device_config_data;type:text" json:"deviceConfigData"`
	RemapsData            *string `gorm:"column:remaps_data;type:text" json:"remapsData"`
	FingerAssignmentsData *string `gorm:"column:finger_assignments_data;type:text" json:"fingerAssignmentsData"`
	ItemLayoutsData       *string `gorm:"column:item_layouts_data;type:text" json:"itemLayoutsData"`
	SearchCraftsData      *string `gorm:"column:search_crafts_data;type:text" json:"searchCraftsData"`
	CreatedAtSeconds      int64   `gorm:"column:created_at_s;not null" json:"createdAt"`
	UpdatedAtSeconds      int64   `gorm:"column:updated_at_s;not null" json:"updatedAt"`
}

// TableName provides the explicit table binding for GORM.
func (Preset) TableName() string {
	return "presets"
}

// HistoryEntry is one audited preset mutation.
type HistoryEntry struct {
	EntryID           string `gorm:"column:entry_id;primaryKey;size:190" json:"id"`
	UserID            string `gorm:"column:user_id;size:190;not null;index" json:"-"`
	PresetID          string `gorm:"column:preset_id;size:190;not null" json:"presetId"`
	Event             string `gorm:"column:event;size:32;not null" json:"event"`
	Source            string `gorm:"column:source;size:32;not null" json:"source"`
	Description       string `gorm:"column:description;size:512;not null" json:"description"`
	RecordedAtSeconds int64  `gorm:"column:recorded_at_s;not null" json:"recordedAt"`
}

// TableName provides the explicit table binding for GORM.
func (HistoryEntry) TableName() string {
	return "preset_history"
}

// Models lists the tables owned by the preset store, for AutoMigrate.
func Models() []any {
	return []any{&Preset{}, &HistoryEntry{}}
}
