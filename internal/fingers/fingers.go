// Package fingers stores which finger conventionally presses each key.
package fingers

import (
	"sort"
	"strings"

	"github.com/MarcoPoloResearchLab/keyhub/internal/keycodes"
)

// Finger names one of the ten fingers.
type Finger string

const (
	LeftPinky   Finger = "left_pinky"
	LeftRing    Finger = "left_ring"
	LeftMiddle  Finger = "left_middle"
	LeftIndex   Finger = "left_index"
	LeftThumb   Finger = "left_thumb"
	RightThumb  Finger = "right_thumb"
	RightIndex  Finger = "right_index"
	RightMiddle Finger = "right_middle"
	RightRing   Finger = "right_ring"
	RightPinky  Finger = "right_pinky"
)

var allFingers = []Finger{
	LeftPinky, LeftRing, LeftMiddle, LeftIndex, LeftThumb,
	RightThumb, RightIndex, RightMiddle, RightRing, RightPinky,
}

// All returns the fingers from left pinky to right pinky.
func All() []Finger {
	fingers := make([]Finger, len(allFingers))
	copy(fingers, allFingers)
	return fingers
}

// ParseFinger accepts the canonical tags case-insensitively, with dashes or spaces as separators.
func ParseFinger(raw string) (Finger, bool) {
	candidate := strings.ToLower(strings.TrimSpace(raw))
	candidate = strings.NewReplacer("-", "_", " ", "_").Replace(candidate)
	for _, finger := range allFingers {
		if string(finger) == candidate {
			return finger, true
		}
	}
	return "", false
}

// IsLeftHand reports whether the finger belongs to the left hand.
func (f Finger) IsLeftHand() bool {
	return strings.HasPrefix(string(f), "left_")
}

// Map assigns fingers to keys. Only the first finger of each list is displayed; the list
// leaves room for chorded assignments.
type Map map[keycodes.KeyCode][]Finger

// Primary returns the displayed finger for code.
func (m Map) Primary(code keycodes.KeyCode) (Finger, bool) {
	assigned := m[keycodes.Normalize(code.String())]
	if len(assigned) == 0 {
		return "", false
	}
	return assigned[0], true
}

// Assign sets finger as the only finger for code.
func (m Map) Assign(code keycodes.KeyCode, finger Finger) {
	m[keycodes.Normalize(code.String())] = []Finger{finger}
}

// Clear removes code from the map.
func (m Map) Clear(code keycodes.KeyCode) {
	delete(m, keycodes.Normalize(code.String()))
}

// Clone returns a deep copy.
func (m Map) Clone() Map {
	cloned := make(Map, len(m))
	for code, assigned := range m {
		cloned[code] = append([]Finger(nil), assigned...)
	}
	return cloned
}

// Keys returns the mapped keys in sorted order.
func (m Map) Keys() []keycodes.KeyCode {
	keys := make([]keycodes.KeyCode, 0, len(m))
	for code := range m {
		keys = append(keys, code)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// FromRaw builds a map from loosely typed input, normalizing keys and dropping unknown
// fingers and keys left without any finger.
func FromRaw(raw map[string][]string) Map {
	m := make(Map, len(raw))
	for rawKey, rawFingers := range raw {
		code := keycodes.Normalize(rawKey)
		if code == "" || code == keycodes.Unbound {
			continue
		}
		assigned := make([]Finger, 0, len(rawFingers))
		for _, rawFinger := range rawFingers {
			if finger, ok := ParseFinger(rawFinger); ok {
				assigned = append(assigned, finger)
			}
		}
		if len(assigned) > 0 {
			m[code] = assigned
		}
	}
	return m
}

// Record is the serialized shape of one finger assignment.
type Record struct {
	KeyCode string   `json:"keyCode"`
	Fingers []string `json:"fingers"`
}

// ToRecords converts the map into records ordered by key.
func (m Map) ToRecords() []Record {
	records := make([]Record, 0, len(m))
	for _, code := range m.Keys() {
		names := make([]string, 0, len(m[code]))
		for _, finger := range m[code] {
			names = append(names, string(finger))
		}
		records = append(records, Record{KeyCode: code.String(), Fingers: names})
	}
	return records
}

// FromRecords rebuilds a map from records.
func FromRecords(records []Record) Map {
	raw := make(map[string][]string, len(records))
	for _, record := range records {
		raw[record.KeyCode] = append(raw[record.KeyCode], record.Fingers...)
	}
	return FromRaw(raw)
}
