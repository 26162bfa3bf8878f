// Package remaps derives key behaviour from the hardware remaps a user configured outside the game.
package remaps

import (
	"unicode"

	"github.com/MarcoPoloResearchLab/keyhub/internal/keycodes"
)

// Remap substitutes Target for Source. A disabled remap silences Source entirely.
type Remap struct {
	Source   keycodes.KeyCode
	Target   keycodes.KeyCode
	Disabled bool
	Software string
	Notes    string
}

// State describes what a physical key does after remapping.
type State uint8

const (
	// NotRemapped means no remap exists for the key.
	NotRemapped State = iota
	// Remapped means the key produces another key.
	Remapped
	// Disabled means the key is switched off at the hardware level.
	Disabled
)

// PlanStep tells which physical key must be pressed to type one character.
type PlanStep struct {
	Char        string           `json:"char"`
	PhysicalKey keycodes.KeyCode `json:"physicalKey"`
	IsRemapped  bool             `json:"isRemapped"`
}

// Layer is an immutable view over one remap set. Build a new layer when the set changes.
type Layer struct {
	remaps  []Remap
	forward map[keycodes.KeyCode]int
	reverse map[rune]keycodes.KeyCode
}

// NewLayer normalizes remaps and indexes them in both directions. When two remaps
// share a source, the later one wins.
func NewLayer(remaps []Remap) *Layer {
	layer := &Layer{
		remaps:  make([]Remap, 0, len(remaps)),
		forward: make(map[keycodes.KeyCode]int, len(remaps)),
		reverse: make(map[rune]keycodes.KeyCode, len(remaps)),
	}
	for _, remap := range remaps {
		normalized := Normalize(remap)
		if normalized.Source == "" {
			continue
		}
		if position, ok := layer.forward[normalized.Source]; ok {
			layer.remaps[position] = normalized
			continue
		}
		layer.forward[normalized.Source] = len(layer.remaps)
		layer.remaps = append(layer.remaps, normalized)
	}
	for _, remap := range layer.remaps {
		if remap.Disabled {
			continue
		}
		if character, ok := keycodes.Char(remap.Target); ok {
			layer.reverse[unicode.ToLower(character)] = remap.Source
		}
	}
	return layer
}

// Normalize canonicalizes both ends of a remap. An empty or unbound target disables the source.
func Normalize(remap Remap) Remap {
	remap.Source = keycodes.Normalize(remap.Source.String())
	if remap.Disabled {
		remap.Target = ""
		return remap
	}
	remap.Target = keycodes.Normalize(remap.Target.String())
	if remap.Target == "" || remap.Target == keycodes.Unbound {
		remap.Target = ""
		remap.Disabled = true
	}
	return remap
}

// Remaps returns the normalized remaps in insertion order.
func (l *Layer) Remaps() []Remap {
	remaps := make([]Remap, len(l.remaps))
	copy(remaps, l.remaps)
	return remaps
}

// Forward returns what pressing source produces.
func (l *Layer) Forward(source keycodes.KeyCode) (keycodes.KeyCode, State) {
	position, ok := l.forward[keycodes.Normalize(source.String())]
	if !ok {
		return "", NotRemapped
	}
	remap := l.remaps[position]
	if remap.Disabled {
		return "", Disabled
	}
	return remap.Target, Remapped
}

// ReverseCharacterPlan lists, for every character of text, the physical key that
// produces it once remaps are applied.
func (l *Layer) ReverseCharacterPlan(text string) []PlanStep {
	steps := make([]PlanStep, 0, len(text))
	for _, character := range text {
		if source, ok := l.reverse[unicode.ToLower(character)]; ok {
			steps = append(steps, PlanStep{
				Char:        sourceChar(source),
				PhysicalKey: source,
				IsRemapped:  true,
			})
			continue
		}
		steps = append(steps, PlanStep{
			Char:        string(character),
			PhysicalKey: keycodes.FromChar(character),
			IsRemapped:  false,
		})
	}
	return steps
}

func sourceChar(source keycodes.KeyCode) string {
	if character, ok := keycodes.Char(source); ok {
		return string(character)
	}
	return source.String()
}
