package remaps

import "github.com/MarcoPoloResearchLab/keyhub/internal/keycodes"

// Record is the serialized shape of a remap. A nil TargetKey means the source is disabled.
type Record struct {
	SourceKey string  `json:"sourceKey"`
	TargetKey *string `json:"targetKey"`
	Software  string  `json:"software"`
	Notes     string  `json:"notes"`
}

// ToRecords converts remaps for serialization.
func ToRecords(remaps []Remap) []Record {
	records := make([]Record, 0, len(remaps))
	for _, remap := range remaps {
		record := Record{
			SourceKey: remap.Source.String(),
			Software:  remap.Software,
			Notes:     remap.Notes,
		}
		if !remap.Disabled {
			target := remap.Target.String()
			record.TargetKey = &target
		}
		records = append(records, record)
	}
	return records
}

// FromRecords converts serialized records into normalized remaps, skipping records without a source.
func FromRecords(records []Record) []Remap {
	remaps := make([]Remap, 0, len(records))
	for _, record := range records {
		remap := Remap{
			Source:   keycodes.KeyCode(record.SourceKey),
			Software: record.Software,
			Notes:    record.Notes,
			Disabled: record.TargetKey == nil,
		}
		if record.TargetKey != nil {
			remap.Target = keycodes.KeyCode(*record.TargetKey)
		}
		remap = Normalize(remap)
		if remap.Source == "" {
			continue
		}
		remaps = append(remaps, remap)
	}
	return remaps
}
