package presets

import (
	"encoding/json"
	"fmt"

	"github.com/MarcoPoloResearchLab/keyhub/internal/bindings"
	"github.com/MarcoPoloResearchLab/keyhub/internal/devices"
	"github.com/MarcoPoloResearchLab/keyhub/internal/fingers"
	"github.com/MarcoPoloResearchLab/keyhub/internal/loadout"
	"github.com/MarcoPoloResearchLab/keyhub/internal/remaps"
)

// Field names the serialized preset columns in reports.
type Field string

const (
	FieldBindings     Field = "keybindings"
	FieldDevice       Field = "deviceConfig"
	FieldRemaps       Field = "remaps"
	FieldFingers      Field = "fingerAssignments"
	FieldItemLayouts  Field = "itemLayouts"
	FieldSearchCrafts Field = "searchCrafts"
)

// FieldError reports a preset column that could not be decoded.
type FieldError struct {
	Field Field
	Err   error
}

func (e FieldError) Error() string {
	return fmt.Sprintf("presets: decode %s: %v", e.Field, e.Err)
}

func (e FieldError) Unwrap() error {
	return e.Err
}

type encodedFields struct {
	keybindings  *string
	deviceConfig *string
	remaps       *string
	fingers      *string
	itemLayouts  *string
	searchCrafts *string
}

func encodeLoadout(source loadout.Loadout) (encodedFields, error) {
	var fields encodedFields
	var err error
	if len(source.Bindings) > 0 {
		if fields.keybindings, err = encodeJSON(bindings.ToRecords(source.Bindings)); err != nil {
			return encodedFields{}, fmt.Errorf("encode %s: %w", FieldBindings, err)
		}
	}
	if source.Device != nil {
		if fields.deviceConfig, err = encodeJSON(source.Device.Sanitize()); err != nil {
			return encodedFields{}, fmt.Errorf("encode %s: %w", FieldDevice, err)
		}
	}
	if len(source.Remaps) > 0 {
		if fields.remaps, err = encodeJSON(remaps.ToRecords(source.Remaps)); err != nil {
			return encodedFields{}, fmt.Errorf("encode %s: %w", FieldRemaps, err)
		}
	}
	if len(source.Fingers) > 0 {
		if fields.fingers, err = encodeJSON(source.Fingers.ToRecords()); err != nil {
			return encodedFields{}, fmt.Errorf("encode %s: %w", FieldFingers, err)
		}
	}
	if len(source.ItemLayouts) > 0 {
		if fields.itemLayouts, err = encodeJSON(source.ItemLayouts); err != nil {
			return encodedFields{}, fmt.Errorf("encode %s: %w", FieldItemLayouts, err)
		}
	}
	if len(source.SearchCrafts) > 0 {
		if fields.searchCrafts, err = encodeJSON(source.SearchCrafts); err != nil {
			return encodedFields{}, fmt.Errorf("encode %s: %w", FieldSearchCrafts, err)
		}
	}
	return fields, nil
}

func encodeJSON(value any) (*string, error) {
	encoded, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	text := string(encoded)
	return &text, nil
}

// Decode rebuilds a loadout from the preset columns. Columns that fail to decode are
// left empty and reported; the rest of the loadout is still returned.
func Decode(preset Preset) (loadout.Loadout, []FieldError) {
	var result loadout.Loadout
	var failures []FieldError

	if rows, err := decodeBindings(preset); err != nil {
		failures = append(failures, FieldError{Field: FieldBindings, Err: err})
	} else {
		result.Bindings = rows
	}

	if preset.DeviceConfigData != nil {
		var device devices.Config
		if err := json.Unmarshal([]byte(*preset.DeviceConfigData), &device); err != nil {
			failures = append(failures, FieldError{Field: FieldDevice, Err: err})
		} else {
			device.UserID = preset.UserID
			sanitized := device.Sanitize()
			result.Device = &sanitized
		}
	}

	if set, err := decodeRemaps(preset); err != nil {
		failures = append(failures, FieldError{Field: FieldRemaps, Err: err})
	} else {
		result.Remaps = set
	}

	if m, err := decodeFingers(preset); err != nil {
		failures = append(failures, FieldError{Field: FieldFingers, Err: err})
	} else {
		result.Fingers = m
	}

	if preset.ItemLayoutsData != nil {
		var layouts []loadout.ItemLayout
		if err := json.Unmarshal([]byte(*preset.ItemLayoutsData), &layouts); err != nil {
			failures = append(failures, FieldError{Field: FieldItemLayouts, Err: err})
		} else {
			result.ItemLayouts = layouts
		}
	}

	if preset.SearchCraftsData != nil {
		var crafts []loadout.SearchCraft
		if err := json.Unmarshal([]byte(*preset.SearchCraftsData), &crafts); err != nil {
			failures = append(failures, FieldError{Field: FieldSearchCrafts, Err: err})
		} else {
			result.SearchCrafts = crafts
		}
	}

	return result, failures
}

func decodeBindings(preset Preset) ([]bindings.Binding, error) {
	if preset.KeybindingsData == nil {
		return nil, nil
	}
	var records []bindings.Record
	if err := json.Unmarshal([]byte(*preset.KeybindingsData), &records); err != nil {
		return nil, err
	}
	return bindings.FromRecords(records), nil
}

func decodeRemaps(preset Preset) ([]remaps.Remap, error) {
	if preset.RemapsData == nil {
		return nil, nil
	}
	var records []remaps.Record
	if err := json.Unmarshal([]byte(*preset.RemapsData), &records); err != nil {
		return nil, err
	}
	return remaps.FromRecords(records), nil
}

func decodeFingers(preset Preset) (fingers.Map, error) {
	if preset.FingerAssignmentsData == nil {
		return fingers.Map{}, nil
	}
	var records []fingers.Record
	if err := json.Unmarshal([]byte(*preset.FingerAssignmentsData), &records); err != nil {
		return nil, err
	}
	return fingers.FromRecords(records), nil
}
