package fingers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromRawNormalizesAndFilters(t *testing.T) {
	m := FromRaw(map[string][]string{
		"key.keyboard.w": {"Left-Middle", "left_ring"},
		"KeyA":           {"pinky"},
		"key.mouse.left": {"RIGHT INDEX"},
		"":               {"left_thumb"},
		"_UNBOUND":       {"left_thumb"},
	})

	require.Len(t, m, 2)
	primary, ok := m.Primary("KeyW")
	require.True(t, ok)
	assert.Equal(t, LeftMiddle, primary)
	assert.Equal(t, []Finger{LeftMiddle, LeftRing}, m["KeyW"])

	_, ok = m.Primary("KeyA")
	assert.False(t, ok)

	mouse, ok := m.Primary("Mouse0")
	require.True(t, ok)
	assert.False(t, mouse.IsLeftHand())
}

func TestAssignReplacesList(t *testing.T) {
	m := Map{}
	m.Assign("key.keyboard.space", LeftThumb)
	m.Assign("Space", RightThumb)

	assert.Equal(t, []Finger{RightThumb}, m["Space"])
	m.Clear("space")
	assert.Empty(t, m)
}

func TestCloneIsDeep(t *testing.T) {
	original := Map{"KeyW": {LeftMiddle}}
	cloned := original.Clone()
	cloned["KeyW"][0] = RightPinky

	assert.Equal(t, LeftMiddle, original["KeyW"][0])
}

func TestRecordsRoundTrip(t *testing.T) {
	original := Map{"KeyW": {LeftMiddle}, "KeyA": {LeftRing, LeftPinky}}

	records := original.ToRecords()

	require.Len(t, records, 2)
	assert.Equal(t, "KeyA", records[0].KeyCode)
	assert.Equal(t, original, FromRecords(records))
	assert.Len(t, All(), 10)
}
