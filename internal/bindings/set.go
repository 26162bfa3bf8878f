// Package bindings models the action to key assignment table.
package bindings

import (
	"sort"

	"github.com/MarcoPoloResearchLab/keyhub/internal/keycodes"
)

// Binding assigns a key to an action.
type Binding struct {
	Action   Action
	Category Category
	Key      keycodes.Assignment
}

// Conflict lists the actions of the active mode that share one key.
type Conflict struct {
	Key     keycodes.KeyCode
	Actions []Action
}

// Set is an in-memory binding table for one user. Several actions may share a key;
// assigning a key never clears it from other actions.
type Set struct {
	mode  Mode
	rows  []Binding
	index map[Action]int
}

// NewSet builds a set from stored rows. A later row for the same action replaces an earlier one.
func NewSet(rows []Binding, mode Mode) *Set {
	set := &Set{
		mode:  mode,
		rows:  make([]Binding, 0, len(rows)),
		index: make(map[Action]int, len(rows)),
	}
	for _, row := range rows {
		set.put(row)
	}
	return set
}

// Mode returns the active vocabulary filter.
func (s *Set) Mode() Mode {
	return s.mode
}

// Get returns the binding for action.
func (s *Set) Get(action Action) (Binding, bool) {
	position, ok := s.index[action]
	if !ok {
		return Binding{}, false
	}
	return s.rows[position], true
}

// ForKey returns the bindings of the active mode currently assigned to code.
func (s *Set) ForKey(code keycodes.KeyCode) []Binding {
	normalized := keycodes.Normalize(code.String())
	matches := make([]Binding, 0, 2)
	for _, row := range s.rows {
		if ModeOf(row.Category) != s.mode {
			continue
		}
		if key, ok := row.Key.Key(); ok && key == normalized {
			matches = append(matches, row)
		}
	}
	return matches
}

// Set assigns code to action, creating the binding if the action has none yet.
func (s *Set) Set(action Action, code keycodes.KeyCode) Binding {
	return s.assign(action, keycodes.Bound(code))
}

// Unbind marks action as explicitly having no key.
func (s *Set) Unbind(action Action) Binding {
	return s.assign(action, keycodes.UnboundAssignment())
}

// Conflicts returns every key of the active mode bound to more than one action, ordered by key.
func (s *Set) Conflicts() []Conflict {
	byKey := make(map[keycodes.KeyCode][]Action)
	for _, row := range s.rows {
		if ModeOf(row.Category) != s.mode {
			continue
		}
		if key, ok := row.Key.Key(); ok {
			byKey[key] = append(byKey[key], row.Action)
		}
	}
	conflicts := make([]Conflict, 0)
	for key, actions := range byKey {
		if len(actions) > 1 {
			conflicts = append(conflicts, Conflict{Key: key, Actions: actions})
		}
	}
	sort.Slice(conflicts, func(i, j int) bool {
		return conflicts[i].Key < conflicts[j].Key
	})
	return conflicts
}

// Rows returns a copy of every binding regardless of mode.
func (s *Set) Rows() []Binding {
	rows := make([]Binding, len(s.rows))
	copy(rows, s.rows)
	return rows
}

func (s *Set) assign(action Action, assignment keycodes.Assignment) Binding {
	if position, ok := s.index[action]; ok {
		s.rows[position].Key = assignment
		return s.rows[position]
	}
	category, ok := CategoryOf(action)
	if !ok {
		category = CategoryCustom
	}
	row := Binding{Action: action, Category: category, Key: assignment}
	s.put(row)
	return row
}

func (s *Set) put(row Binding) {
	if row.Category == "" {
		if category, ok := CategoryOf(row.Action); ok {
			row.Category = category
		} else {
			row.Category = CategoryCustom
		}
	}
	if position, ok := s.index[row.Action]; ok {
		s.rows[position] = row
		return
	}
	s.index[row.Action] = len(s.rows)
	s.rows = append(s.rows, row)
}
