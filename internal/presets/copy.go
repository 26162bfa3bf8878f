package presets

import (
	"github.com/MarcoPoloResearchLab/keyhub/internal/bindings"
	"github.com/MarcoPoloResearchLab/keyhub/internal/loadout"
)

// CopyReport lists the fields CopyInto applied and the ones it skipped as malformed.
type CopyReport struct {
	Copied  []Field      `json:"copied"`
	Skipped []FieldError `json:"-"`
}

// CopyInto applies the preset fields selected by scope to buffer. Bindings merge by
// action: only actions already in the buffer change, so the buffer keeps its action set.
// Remaps and fingers replace the buffer's collections. Storage is never touched.
func CopyInto(buffer *loadout.Loadout, preset Preset, scope Scope) (CopyReport, error) {
	if buffer == nil {
		return CopyReport{}, ErrMissingBuffer
	}
	if _, err := ParseScope(string(scope)); err != nil {
		return CopyReport{}, err
	}
	var report CopyReport

	if scope == ScopeBindings || scope == ScopeAll {
		if rows, err := decodeBindings(preset); err != nil {
			report.Skipped = append(report.Skipped, FieldError{Field: FieldBindings, Err: err})
		} else {
			buffer.Bindings = mergeBindings(buffer.Bindings, rows)
			report.Copied = append(report.Copied, FieldBindings)
		}
	}

	if scope == ScopeRemaps || scope == ScopeAll {
		if set, err := decodeRemaps(preset); err != nil {
			report.Skipped = append(report.Skipped, FieldError{Field: FieldRemaps, Err: err})
		} else {
			buffer.Remaps = set
			report.Copied = append(report.Copied, FieldRemaps)
		}
	}

	if scope == ScopeFingers || scope == ScopeAll {
		if m, err := decodeFingers(preset); err != nil {
			report.Skipped = append(report.Skipped, FieldError{Field: FieldFingers, Err: err})
		} else {
			buffer.Fingers = m
			report.Copied = append(report.Copied, FieldFingers)
		}
	}

	return report, nil
}

func mergeBindings(current, incoming []bindings.Binding) []bindings.Binding {
	byAction := make(map[bindings.Action]bindings.Binding, len(incoming))
	for _, row := range incoming {
		byAction[row.Action] = row
	}
	merged := make([]bindings.Binding, 0, len(current))
	for _, row := range current {
		if replacement, ok := byAction[row.Action]; ok {
			row.Key = replacement.Key
		}
		merged = append(merged, row)
	}
	return merged
}
