package remaps

import (
	"testing"

	"github.com/MarcoPoloResearchLab/keyhub/internal/keycodes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReverseCharacterPlanFollowsRemap(t *testing.T) {
	layer := NewLayer([]Remap{{Source: "KeyX", Target: "KeyF"}})

	plan := layer.ReverseCharacterPlan("f")

	require.Len(t, plan, 1)
	assert.Equal(t, PlanStep{Char: "x", PhysicalKey: "KeyX", IsRemapped: true}, plan[0])
}

func TestReverseCharacterPlanMixedText(t *testing.T) {
	layer := NewLayer([]Remap{
		{Source: "key.keyboard.caps.lock", Target: "key.keyboard.e"},
		{Source: "KeyQ", Target: "Digit1"},
		{Source: "KeyZ", Disabled: true},
	})

	plan := layer.ReverseCharacterPlan("E1z?")

	require.Len(t, plan, 4)
	assert.Equal(t, PlanStep{Char: "CapsLock", PhysicalKey: "CapsLock", IsRemapped: true}, plan[0])
	assert.Equal(t, PlanStep{Char: "q", PhysicalKey: "KeyQ", IsRemapped: true}, plan[1])
	assert.Equal(t, PlanStep{Char: "z", PhysicalKey: "KeyZ", IsRemapped: false}, plan[2])
	assert.Equal(t, PlanStep{Char: "?", PhysicalKey: "?", IsRemapped: false}, plan[3])
}

func TestForwardStates(t *testing.T) {
	layer := NewLayer([]Remap{
		{Source: "CapsLock", Target: "ControlLeft"},
		{Source: "KeyZ", Disabled: true},
		{Source: "KeyK", Target: ""},
		{Source: "KeyL", Target: "key.keyboard.unknown"},
	})

	target, state := layer.Forward("key.keyboard.caps.lock")
	assert.Equal(t, Remapped, state)
	assert.Equal(t, keycodes.KeyCode("ControlLeft"), target)

	_, state = layer.Forward("KeyZ")
	assert.Equal(t, Disabled, state)

	_, state = layer.Forward("KeyK")
	assert.Equal(t, Disabled, state)

	target, state = layer.Forward("KeyL")
	assert.Equal(t, Disabled, state)
	assert.Empty(t, target)

	_, state = layer.Forward("KeyW")
	assert.Equal(t, NotRemapped, state)
}

func TestNewLayerKeepsLatestRemapPerSource(t *testing.T) {
	layer := NewLayer([]Remap{
		{Source: "keyx", Target: "KeyF"},
		{Source: "KeyX", Target: "KeyG"},
	})

	require.Len(t, layer.Remaps(), 1)
	target, _ := layer.Forward("KeyX")
	assert.Equal(t, keycodes.KeyCode("KeyG"), target)

	plan := layer.ReverseCharacterPlan("fg")
	assert.False(t, plan[0].IsRemapped)
	assert.True(t, plan[1].IsRemapped)
}

func TestResolveUpsertPrecedence(t *testing.T) {
	candidates := []Candidate{
		{ID: 1, Source: "keyx", UpdatedAtSeconds: 300},
		{ID: 2, Source: "KeyW", UpdatedAtSeconds: 100},
		{ID: 3, Source: "KeyX", UpdatedAtSeconds: 100},
		{ID: 4, Source: "KEYX", UpdatedAtSeconds: 500},
	}

	primary, duplicates, ok := ResolveUpsert(candidates, "key.keyboard.x")

	require.True(t, ok)
	assert.Equal(t, int64(3), primary.ID)
	require.Len(t, duplicates, 2)
	assert.Equal(t, int64(4), duplicates[0].ID)
	assert.Equal(t, int64(1), duplicates[1].ID)

	_, _, ok = ResolveUpsert(candidates, "KeyP")
	assert.False(t, ok)
}

func TestResolveUpsertMatchesLegacyCasing(t *testing.T) {
	candidates := []Candidate{{ID: 9, Source: "key.keyboard.Left.Shift", UpdatedAtSeconds: 1}}

	primary, duplicates, ok := ResolveUpsert(candidates, "KEY.KEYBOARD.LEFT.SHIFT")

	require.True(t, ok)
	assert.Equal(t, int64(9), primary.ID)
	assert.Empty(t, duplicates)
}

func TestRecordsEncodeDisabledAsNullTarget(t *testing.T) {
	records := ToRecords([]Remap{{Source: "KeyZ", Disabled: true}, {Source: "KeyX", Target: "KeyF", Software: "AutoHotkey"}})

	require.Len(t, records, 2)
	assert.Nil(t, records[0].TargetKey)
	require.NotNil(t, records[1].TargetKey)
	assert.Equal(t, "KeyF", *records[1].TargetKey)

	decoded := FromRecords(append(records, Record{SourceKey: ""}))
	require.Len(t, decoded, 2)
	assert.True(t, decoded[0].Disabled)
	assert.Equal(t, "AutoHotkey", decoded[1].Software)
}
