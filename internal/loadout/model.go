package loadout

import (
	"github.com/MarcoPoloResearchLab/keyhub/internal/bindings"
	"github.com/MarcoPoloResearchLab/keyhub/internal/devices"
	"github.com/MarcoPoloResearchLab/keyhub/internal/fingers"
	"github.com/MarcoPoloResearchLab/keyhub/internal/remaps"
)

// ItemLayout is a named arrangement of inventory slots.
type ItemLayout struct {
	Name  string   `json:"name"`
	Slots []string `json:"slots"`
}

// SearchCraft is a saved search string the player types in the crafting screen.
type SearchCraft struct {
	Label string `json:"label"`
	Query string `json:"query"`
}

// Section names one independently saved part of a loadout.
type Section string

const (
	SectionBindings     Section = "bindings"
	SectionDevice       Section = "device"
	SectionRemaps       Section = "remaps"
	SectionFingers      Section = "fingers"
	SectionItemLayouts  Section = "item_layouts"
	SectionSearchCrafts Section = "search_crafts"
)

// AllSections lists every section in commit order.
func AllSections() []Section {
	return []Section{
		SectionBindings,
		SectionDevice,
		SectionRemaps,
		SectionFingers,
		SectionItemLayouts,
		SectionSearchCrafts,
	}
}

// Loadout is a user's full control configuration. It doubles as the in-memory editing
// buffer: changes stay local until Store.Commit.
type Loadout struct {
	Bindings     []bindings.Binding
	Device       *devices.Config
	Remaps       []remaps.Remap
	Fingers      fingers.Map
	ItemLayouts  []ItemLayout
	SearchCrafts []SearchCraft
}

// Clone returns a deep copy so callers can edit without aliasing.
func (l Loadout) Clone() Loadout {
	cloned := Loadout{
		Bindings: append([]bindings.Binding(nil), l.Bindings...),
		Remaps:   append([]remaps.Remap(nil), l.Remaps...),
		Fingers:  l.Fingers.Clone(),
	}
	if l.Device != nil {
		device := *l.Device
		cloned.Device = &device
	}
	if l.ItemLayouts != nil {
		cloned.ItemLayouts = make([]ItemLayout, 0, len(l.ItemLayouts))
		for _, layout := range l.ItemLayouts {
			cloned.ItemLayouts = append(cloned.ItemLayouts, ItemLayout{
				Name:  layout.Name,
				Slots: append([]string(nil), layout.Slots...),
			})
		}
	}
	if l.SearchCrafts != nil {
		cloned.SearchCrafts = append([]SearchCraft(nil), l.SearchCrafts...)
	}
	return cloned
}

// Mode returns the input mode recorded on the device config.
func (l Loadout) Mode() bindings.Mode {
	if l.Device == nil {
		return bindings.ModeKeyboardMouse
	}
	return bindings.ParseMode(l.Device.InputMode)
}

// BindingSet exposes the bindings for the active input mode.
func (l Loadout) BindingSet() *bindings.Set {
	return bindings.NewSet(l.Bindings, l.Mode())
}

// RemapLayer exposes the remaps.
func (l Loadout) RemapLayer() *remaps.Layer {
	return remaps.NewLayer(l.Remaps)
}

// Layout returns the keyboard layout tag used for labels.
func (l Loadout) Layout() string {
	if l.Device == nil {
		return ""
	}
	return l.Device.KeyboardLayout
}

// BindingRow persists one binding. The composite key keeps one row per user and action.
type BindingRow struct {
	UserID           string `gorm:"column:user_id;primaryKey;size:190;not null"`
	Action           string `gorm:"column:action;primaryKey;size:190;not null"`
	Category         string `gorm:"column:category;size:32;not null;index"`
	KeyCode          string `gorm:"column:key_code;size:64;not null;default:'_UNBOUND'"`
	UpdatedAtSeconds int64  `gorm:"column:updated_at_s;not null;default:0"`
}

// TableName provides the explicit table binding for GORM.
func (BindingRow) TableName() string {
	return "key_bindings"
}

// RemapRow persists one remap. A nil TargetKey disables the source key.
type RemapRow struct {
	RemapID          int64   `gorm:"column:remap_id;primaryKey;autoIncrement"`
	UserID           string  `gorm:"column:user_id;size:190;not null;index:idx_key_remaps_user_source,priority:1"`
	SourceKey        string  `gorm:"column:source_key;size:64;not null;index:idx_key_remaps_user_source,priority:2"`
	TargetKey        *string `gorm:"column:target_key;size:64"`
	Software         string  `gorm:"column:software;size:190;not null;default:''"`
	Notes            string  `gorm:"column:notes;type:text;not null;default:''"`
	IsDeleted        bool    `gorm:"column:is_deleted;not null;default:false"`
	UpdatedAtSeconds int64   `gorm:"column:updated_at_s;not null;default:0"`
}

// TableName provides the explicit table binding for GORM.
func (RemapRow) TableName() string {
	return "key_remaps"
}

// FingerRow persists the fingers assigned to one key.
type FingerRow struct {
	UserID  string   `gorm:"column:user_id;primaryKey;size:190;not null"`
	KeyCode string   `gorm:"column:key_code;primaryKey;size:64;not null"`
	Fingers []string `gorm:"column:fingers;serializer:json;type:text;not null"`
}

// TableName provides the explicit table binding for GORM.
func (FingerRow) TableName() string {
	return "finger_assignments"
}

// ItemLayoutRow persists one item layout.
type ItemLayoutRow struct {
	LayoutID int64    `gorm:"column:layout_id;primaryKey;autoIncrement"`
	UserID   string   `gorm:"column:user_id;size:190;not null;index"`
	Position int      `gorm:"column:position;not null;default:0"`
	Name     string   `gorm:"column:name;size:190;not null"`
	Slots    []string `gorm:"column:slots;serializer:json;type:text;not null"`
}

// TableName provides the explicit table binding for GORM.
func (ItemLayoutRow) TableName() string {
	return "item_layouts"
}

// SearchCraftRow persists one saved search string.
type SearchCraftRow struct {
	CraftID  int64  `gorm:"column:craft_id;primaryKey;autoIncrement"`
	UserID   string `gorm:"column:user_id;size:190;not null;index"`
	Position int    `gorm:"column:position;not null;default:0"`
	Label    string `gorm:"column:label;size:190;not null"`
	Query    string `gorm:"column:query;size:512;not null"`
}

// TableName provides the explicit table binding for GORM.
func (SearchCraftRow) TableName() string {
	return "search_crafts"
}

// Models lists the tables owned by the loadout store, for AutoMigrate.
func Models() []any {
	return []any{&BindingRow{}, &RemapRow{}, &FingerRow{}, &devices.Config{}, &ItemLayoutRow{}, &SearchCraftRow{}}
}
