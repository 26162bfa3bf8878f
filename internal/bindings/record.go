package bindings

import "github.com/MarcoPoloResearchLab/keyhub/internal/keycodes"

// Record is the serialized shape of a binding inside presets and API payloads.
type Record struct {
	Action   string `json:"action"`
	KeyCode  string `json:"keyCode"`
	Category string `json:"category"`
}

// ToRecords converts bindings for serialization.
func ToRecords(rows []Binding) []Record {
	records := make([]Record, 0, len(rows))
	for _, row := range rows {
		records = append(records, Record{
			Action:   row.Action.String(),
			KeyCode:  row.Key.StorageValue(),
			Category: string(row.Category),
		})
	}
	return records
}

// FromRecords converts serialized records back into bindings, skipping records without an action.
func FromRecords(records []Record) []Binding {
	rows := make([]Binding, 0, len(records))
	for _, record := range records {
		if record.Action == "" {
			continue
		}
		category := Category(record.Category)
		if category == "" {
			if known, ok := CategoryOf(Action(record.Action)); ok {
				category = known
			} else {
				category = CategoryCustom
			}
		}
		rows = append(rows, Binding{
			Action:   Action(record.Action),
			Category: category,
			Key:      keycodes.ParseAssignment(record.KeyCode),
		})
	}
	return rows
}
