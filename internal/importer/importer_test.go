package importer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/MarcoPoloResearchLab/keyhub/internal/bindings"
	"github.com/MarcoPoloResearchLab/keyhub/internal/loadout"
	"github.com/MarcoPoloResearchLab/keyhub/internal/presets"
	"github.com/MarcoPoloResearchLab/keyhub/internal/remaps"
	sqlite "github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const partialPayload = `{
	"settings": {
		"move_forward": "key.keyboard.w",
		"jump": "key.keyboard.space",
		"attack": "key.mouse.left",
		"not_an_action": "key.keyboard.q",
		"dpi": 800,
		"sensitivity": 0.5,
		"rawInput": true,
		"keyboardLayout": "de",
		"fingerAssignments": {"key.keyboard.w": ["left_middle"], "key.keyboard.a": "left_ring"}
	},
	"customKeys": [
		{"keyCode": "key.keyboard.z", "keyName": "zoom"},
		{"keyCode": "", "keyName": "broken"},
		{"keyName": "missing"}
	],
	"remappings": "{not json"
}`

func TestImportToleratesMalformedSection(t *testing.T) {
	fixture := newFixture(t, mustPayload(t, partialPayload))

	result, err := fixture.importer.Import(context.Background(), "user-1")

	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 3, result.Counts[SectionBindings])
	assert.Equal(t, 1, result.Counts[SectionCustomKeys])
	assert.Equal(t, 2, result.Counts[SectionFingers])
	assert.Equal(t, 1, result.Counts[SectionDevice])
	assert.Zero(t, result.Counts[SectionRemappings])
	assert.Contains(t, result.SectionErrors, SectionRemappings)

	stored, err := fixture.store.Load(context.Background(), "user-1")
	require.NoError(t, err)
	require.NotNil(t, stored.Device)
	assert.Equal(t, "de", stored.Device.KeyboardLayout)
	assert.Equal(t, int64(800), stored.Device.DPI.Int64)
	zoom, ok := stored.BindingSet().Get("zoom")
	require.True(t, ok)
	assert.Equal(t, bindings.CategoryCustom, zoom.Category)
	moveForward, ok := stored.BindingSet().Get("move_forward")
	require.True(t, ok)
	key, _ := moveForward.Key.Key()
	assert.Equal(t, "KeyW", key.String())
}

func TestImportCustomKeyCannotOverwriteVocabularyBinding(t *testing.T) {
	fixture := newFixture(t, mustPayload(t, `{
		"settings": {"jump": "key.keyboard.space"},
		"customKeys": [
			{"keyCode": "key.keyboard.g", "keyName": "jump"},
			{"keyCode": "key.keyboard.z", "keyName": "zoom"}
		]
	}`))

	result, err := fixture.importer.Import(context.Background(), "user-1")

	require.NoError(t, err)
	assert.Equal(t, 1, result.Counts[SectionCustomKeys])
	stored, err := fixture.store.Load(context.Background(), "user-1")
	require.NoError(t, err)
	jump, ok := stored.BindingSet().Get("jump")
	require.True(t, ok)
	assert.Equal(t, bindings.CategoryMovement, jump.Category)
	key, _ := jump.Key.Key()
	assert.Equal(t, "Space", key.String())
}

func TestImportCreatesActiveOnboardingPresetFromStoredState(t *testing.T) {
	fixture := newFixture(t, mustPayload(t, partialPayload))

	result, err := fixture.importer.Import(context.Background(), "user-1")

	require.NoError(t, err)
	require.NotNil(t, result.Preset)
	assert.True(t, result.Preset.IsActive)
	assert.Equal(t, string(presets.SourceOnboarding), result.Preset.Source)
	assert.Equal(t, "Imported setup (November 14, 2023)", result.Preset.Name)

	decoded, failures := presets.Decode(*result.Preset)
	require.Empty(t, failures)
	assert.Len(t, decoded.Bindings, 4)
	assert.Len(t, decoded.Fingers, 2)
}

func TestImportMapsDisabledSentinelToDisabledRemap(t *testing.T) {
	fixture := newFixture(t, mustPayload(t, `{
		"remappings": {
			"key.keyboard.caps.lock": "key.keyboard.disabled",
			"key.keyboard.x": "key.keyboard.f",
			"key.keyboard.insert": null,
			"": "key.keyboard.a"
		}
	}`))

	result, err := fixture.importer.Import(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, 3, result.Counts[SectionRemappings])

	stored, err := fixture.store.Load(context.Background(), "user-1")
	require.NoError(t, err)
	layer := stored.RemapLayer()
	target, state := layer.Forward("CapsLock")
	assert.Equal(t, remaps.Disabled, state)
	assert.Empty(t, target)
	_, state = layer.Forward("Insert")
	assert.Equal(t, remaps.Disabled, state)
	plan := layer.ReverseCharacterPlan("f")
	require.Len(t, plan, 1)
	assert.Equal(t, "KeyX", plan[0].PhysicalKey.String())
}

func TestImportSchemaViolationIsIsolated(t *testing.T) {
	fixture := newFixture(t, mustPayload(t, `{
		"settings": {"jump": "key.keyboard.space", "dpi": "fast"},
		"customKeys": {"not": "an array"}
	}`))

	result, err := fixture.importer.Import(context.Background(), "user-1")

	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 1, result.Counts[SectionBindings])
	assert.Contains(t, result.SectionErrors, SectionCustomKeys)
	assert.Contains(t, result.SectionErrors, SectionDevice)
}

func TestImportFetchFailureHasNoSideEffects(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusBadGateway)
	}))
	defer server.Close()

	fixture := newFixtureWithSource(t, NewHTTPSource(server.URL, time.Second))

	result, err := fixture.importer.Import(context.Background(), "user-1")

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrFetchFailed))
	assert.False(t, result.Success)
	assert.NotEmpty(t, result.Error)

	var presetCount int64
	require.NoError(t, fixture.db.Model(&presets.Preset{}).Count(&presetCount).Error)
	assert.Zero(t, presetCount)
}

func TestHTTPSourceFetchesUserPayload(t *testing.T) {
	var requestedPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestedPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"settings": {"jump": "key.keyboard.space"}}`))
	}))
	defer server.Close()

	source := NewHTTPSource(server.URL+"/profiles/", time.Second)
	payload, err := source.Fetch(context.Background(), "user 1")

	require.NoError(t, err)
	assert.Equal(t, "/profiles/user 1", requestedPath)
	assert.JSONEq(t, `{"jump": "key.keyboard.space"}`, string(payload.Settings))
	assert.Nil(t, payload.Remappings)
}

func TestLoadFileReadsYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.yaml")
	document := "settings:\n  jump: key.keyboard.space\n  dpi: 1600\nremappings:\n  key.keyboard.caps.lock: key.keyboard.escape\n"
	require.NoError(t, os.WriteFile(path, []byte(document), 0o600))

	source, err := LoadFile(path)
	require.NoError(t, err)
	payload, err := source.Fetch(context.Background(), "anyone")
	require.NoError(t, err)

	var settings map[string]any
	require.NoError(t, json.Unmarshal(payload.Settings, &settings))
	assert.Equal(t, "key.keyboard.space", settings["jump"])
	assert.Equal(t, float64(1600), settings["dpi"])
	assert.JSONEq(t, `{"key.keyboard.caps.lock": "key.keyboard.escape"}`, string(payload.Remappings))
}

func TestLoadFileRejectsUnknownExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.toml")
	require.NoError(t, os.WriteFile(path, []byte("x = 1"), 0o600))

	_, err := LoadFile(path)
	assert.True(t, errors.Is(err, ErrUnsupportedFormat))
}

func TestImportRequiresUser(t *testing.T) {
	fixture := newFixture(t, Payload{})

	_, err := fixture.importer.Import(context.Background(), "")
	assert.True(t, errors.Is(err, ErrMissingUserID))
}

type fixture struct {
	importer *Importer
	store    *loadout.Store
	db       *gorm.DB
}

func mustPayload(t *testing.T, document string) Payload {
	t.Helper()
	payload, err := decodeJSONPayload([]byte(document))
	require.NoError(t, err)
	return payload
}

func newFixture(t *testing.T, payload Payload) fixture {
	return newFixtureWithSource(t, NewStaticSource(payload))
}

func newFixtureWithSource(t *testing.T, source PayloadSource) fixture {
	t.Helper()

	dsn := fmt.Sprintf("file:keyhub_importer_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(append(loadout.Models(), presets.Models()...)...))

	clock := func() time.Time { return time.Unix(1700000000, 0).UTC() }
	store, err := loadout.NewStore(loadout.StoreConfig{Database: db, Clock: clock, BatchSize: 2})
	require.NoError(t, err)
	presetService, err := presets.NewService(presets.ServiceConfig{
		Database:   db,
		Clock:      clock,
		IDProvider: presets.NewUUIDProvider(),
	})
	require.NoError(t, err)

	importer, err := New(Config{Source: source, Store: store, Presets: presetService})
	require.NoError(t, err)
	return fixture{importer: importer, store: store, db: db}
}
