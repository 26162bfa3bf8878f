package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/MarcoPoloResearchLab/keyhub/internal/auth"
	"github.com/MarcoPoloResearchLab/keyhub/internal/database"
	"github.com/MarcoPoloResearchLab/keyhub/internal/fingers"
	"github.com/MarcoPoloResearchLab/keyhub/internal/importer"
	"github.com/MarcoPoloResearchLab/keyhub/internal/keycodes"
	"github.com/MarcoPoloResearchLab/keyhub/internal/loadout"
	"github.com/MarcoPoloResearchLab/keyhub/internal/metrics"
	"github.com/MarcoPoloResearchLab/keyhub/internal/onboarding"
	"github.com/MarcoPoloResearchLab/keyhub/internal/presets"
	"github.com/MarcoPoloResearchLab/keyhub/internal/remaps"
	"github.com/MarcoPoloResearchLab/keyhub/internal/users"
	sqlite "github.com/glebarez/sqlite"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	testSigningSecret = "test-signing-secret"
	testCookieName    = "keyhub_session"
)

var testClock = func() time.Time {
	return time.Date(2024, time.March, 5, 12, 0, 0, 0, time.UTC)
}

type testServer struct {
	handler  http.Handler
	issuer   *auth.SessionIssuer
	store    *loadout.Store
	presets  *presets.Service
	registry *metrics.Registry
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:keyhub_server_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to access sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(database.Models()...); err != nil {
		t.Fatalf("failed to migrate schema: %v", err)
	}

	registry := metrics.New()
	store, err := loadout.NewStore(loadout.StoreConfig{Database: db, Clock: testClock})
	if err != nil {
		t.Fatalf("failed to build store: %v", err)
	}
	presetService, err := presets.NewService(presets.ServiceConfig{
		Database:   db,
		Clock:      testClock,
		IDProvider: presets.NewUUIDProvider(),
		Recorder:   registry,
	})
	if err != nil {
		t.Fatalf("failed to build preset service: %v", err)
	}
	onboarder, err := onboarding.New(store, presetService, zap.NewNop())
	if err != nil {
		t.Fatalf("failed to build onboarder: %v", err)
	}
	userService, err := users.NewService(users.ServiceConfig{
		Database:  db,
		Clock:     testClock,
		OnNewUser: onboarder.OnNewUser,
	})
	if err != nil {
		t.Fatalf("failed to build user service: %v", err)
	}
	source := importer.NewStaticSource(importer.Payload{
		Settings: json.RawMessage(`{"jump": "key.keyboard.f", "dpi": 1600, "sensitivity": 0.5}`),
	})
	legacyImporter, err := importer.New(importer.Config{
		Source:   source,
		Store:    store,
		Presets:  presetService,
		Recorder: registry,
	})
	if err != nil {
		t.Fatalf("failed to build importer: %v", err)
	}

	validator, err := auth.NewSessionValidator(auth.SessionValidatorConfig{
		SigningSecret: []byte(testSigningSecret),
		CookieName:    testCookieName,
		Clock:         testClock,
	})
	if err != nil {
		t.Fatalf("failed to build validator: %v", err)
	}
	issuer, err := auth.NewSessionIssuer(auth.SessionIssuerConfig{
		SigningSecret: []byte(testSigningSecret),
		Clock:         testClock,
	})
	if err != nil {
		t.Fatalf("failed to build issuer: %v", err)
	}

	handler, err := NewHTTPHandler(Dependencies{
		Sessions: validator,
		Users:    userService,
		Loadouts: store,
		Presets:  presetService,
		Importer: legacyImporter,
		Metrics:  registry,
	})
	if err != nil {
		t.Fatalf("failed to build handler: %v", err)
	}
	return &testServer{handler: handler, issuer: issuer, store: store, presets: presetService, registry: registry}
}

func (s *testServer) do(t *testing.T, method, path, userID string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body == nil {
		reader = bytes.NewReader(nil)
	} else {
		encoded, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("encode body: %v", err)
		}
		reader = bytes.NewReader(encoded)
	}
	request := httptest.NewRequest(method, path, reader)
	request.Header.Set("Content-Type", "application/json")
	if userID != "" {
		token, _, err := s.issuer.Issue(userID, userID+"@example.com", "Player")
		if err != nil {
			t.Fatalf("issue token: %v", err)
		}
		request.AddCookie(&http.Cookie{Name: testCookieName, Value: token})
	}
	recorder := httptest.NewRecorder()
	s.handler.ServeHTTP(recorder, request)
	return recorder
}

func decodeBody(t *testing.T, recorder *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("decode response %q: %v", recorder.Body.String(), err)
	}
}

func remapRecord(source string, target *string) remaps.Record {
	return remaps.Record{SourceKey: source, TargetKey: target}
}

func TestNewHTTPHandlerRequiresDependencies(t *testing.T) {
	if _, err := NewHTTPHandler(Dependencies{}); err != errMissingSessionValidator {
		t.Fatalf("expected missing validator error, got %v", err)
	}
}

func TestHealthAndMetricsArePublic(t *testing.T) {
	server := newTestServer(t)

	health := server.do(t, http.MethodGet, "/healthz", "", nil)
	if health.Code != http.StatusOK || health.Body.String() != `{"status":"ok"}` {
		t.Fatalf("unexpected health response %d %s", health.Code, health.Body.String())
	}

	server.do(t, http.MethodGet, "/api/loadout", "", nil)
	exposition := server.do(t, http.MethodGet, "/metrics", "", nil)
	if exposition.Code != http.StatusOK {
		t.Fatalf("expected metrics to be served, got %d", exposition.Code)
	}
	if !strings.Contains(exposition.Body.String(), `keyhub_http_requests_total{method="GET",route="/api/loadout",status="401"} 1`) {
		t.Fatalf("expected the unauthorized request to be counted, got:\n%s", exposition.Body.String())
	}
}

func TestAPIRequiresSession(t *testing.T) {
	server := newTestServer(t)
	recorder := server.do(t, http.MethodGet, "/api/presets", "", nil)
	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("expected unauthorized, got %d", recorder.Code)
	}
	if recorder.Body.String() != `{"error":"unauthorized"}` {
		t.Fatalf("unexpected body %s", recorder.Body.String())
	}
}

func TestFirstRequestOnboardsUser(t *testing.T) {
	server := newTestServer(t)

	recorder := server.do(t, http.MethodGet, "/api/loadout", "player-1", nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected ok, got %d: %s", recorder.Code, recorder.Body.String())
	}
	var response loadoutResponse
	decodeBody(t, recorder, &response)
	if len(response.Loadout.Bindings) == 0 {
		t.Fatalf("expected starter bindings")
	}
	if response.Loadout.Device == nil || response.Mode != "keyboard_mouse" {
		t.Fatalf("expected the default device, got %+v mode %q", response.Loadout.Device, response.Mode)
	}

	list := server.do(t, http.MethodGet, "/api/presets", "player-1", nil)
	var presetList struct {
		Presets []presets.Preset `json:"presets"`
	}
	decodeBody(t, list, &presetList)
	if len(presetList.Presets) != 1 || !presetList.Presets[0].IsActive {
		t.Fatalf("expected one active starter preset, got %+v", presetList.Presets)
	}
	if presetList.Presets[0].Name != "Starter setup (March 5, 2024)" {
		t.Fatalf("unexpected starter name %q", presetList.Presets[0].Name)
	}
}

func TestPutLoadoutCommitsBufferAndReportsConflicts(t *testing.T) {
	server := newTestServer(t)
	initial := server.do(t, http.MethodGet, "/api/loadout", "player-1", nil)
	var current loadoutResponse
	decodeBody(t, initial, &current)

	buffer := current.Loadout
	for index := range buffer.Bindings {
		if buffer.Bindings[index].Action == "sneak" {
			buffer.Bindings[index].KeyCode = "key.keyboard.space"
		}
	}
	recorder := server.do(t, http.MethodPut, "/api/loadout", "player-1", buffer)
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected ok, got %d: %s", recorder.Code, recorder.Body.String())
	}
	var updated loadoutResponse
	decodeBody(t, recorder, &updated)
	if len(updated.Conflicts) != 1 || updated.Conflicts[0].Key != "Space" {
		t.Fatalf("expected one Space conflict, got %+v", updated.Conflicts)
	}
	if len(updated.Conflicts[0].Actions) != 2 {
		t.Fatalf("expected jump and sneak to share Space, got %v", updated.Conflicts[0].Actions)
	}

	keyInfo := server.do(t, http.MethodGet, "/api/keys/key.keyboard.space", "player-1", nil)
	var info keyInfoResponse
	decodeBody(t, keyInfo, &info)
	if info.Code != "Space" || !info.Canonical || len(info.Bindings) != 2 || info.RemapState != "none" {
		t.Fatalf("unexpected key info %+v", info)
	}
}

func TestPutLoadoutKeepsSectionsMissingFromBody(t *testing.T) {
	server := newTestServer(t)
	ctx := context.Background()
	server.do(t, http.MethodGet, "/api/loadout", "player-1", nil)
	if err := server.store.UpsertRemap(ctx, "player-1", remaps.Remap{Source: "KeyX", Target: "KeyF"}); err != nil {
		t.Fatalf("upsert remap: %v", err)
	}
	if err := server.store.ReplaceFingers(ctx, "player-1", fingers.Map{"KeyW": {fingers.LeftMiddle}}); err != nil {
		t.Fatalf("replace fingers: %v", err)
	}

	body := map[string]any{"bindings": []map[string]string{{"action": "jump", "keyCode": "KeyJ"}}}
	recorder := server.do(t, http.MethodPut, "/api/loadout", "player-1", body)
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected ok, got %d: %s", recorder.Code, recorder.Body.String())
	}

	stored, err := server.store.Load(ctx, "player-1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if jump, _ := stored.BindingSet().Get("jump"); jump.Key != keycodes.Bound("KeyJ") {
		t.Fatalf("expected jump on KeyJ, got %+v", jump)
	}
	if len(stored.Remaps) != 1 || len(stored.Fingers) != 1 || stored.Device == nil {
		t.Fatalf("expected a bindings-only save to keep the other sections, got remaps=%d fingers=%d device=%v",
			len(stored.Remaps), len(stored.Fingers), stored.Device != nil)
	}

	cleared := server.do(t, http.MethodPut, "/api/loadout", "player-1", map[string]any{"remaps": []any{}})
	if cleared.Code != http.StatusOK {
		t.Fatalf("expected ok, got %d: %s", cleared.Code, cleared.Body.String())
	}
	stored, err = server.store.Load(ctx, "player-1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(stored.Remaps) != 0 || len(stored.Fingers) != 1 {
		t.Fatalf("expected an empty remaps list to clear only remaps, got remaps=%d fingers=%d",
			len(stored.Remaps), len(stored.Fingers))
	}
}

func TestPutLoadoutRejectsMalformedBody(t *testing.T) {
	server := newTestServer(t)
	request := httptest.NewRequest(http.MethodPut, "/api/loadout", strings.NewReader("{"))
	token, _, err := server.issuer.Issue("player-1", "", "")
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	request.Header.Set("Authorization", "Bearer "+token)
	recorder := httptest.NewRecorder()
	server.handler.ServeHTTP(recorder, request)
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected bad request, got %d", recorder.Code)
	}
}

func TestCharacterPlanFollowsRemaps(t *testing.T) {
	server := newTestServer(t)
	server.do(t, http.MethodGet, "/api/loadout", "player-1", nil)
	target := "KeyB"
	buffer, err := server.store.Load(context.Background(), "player-1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	payload := newLoadoutPayload(buffer)
	payload.Remaps = append(payload.Remaps, remapRecord("KeyA", &target))
	if recorder := server.do(t, http.MethodPut, "/api/loadout", "player-1", payload); recorder.Code != http.StatusOK {
		t.Fatalf("commit failed: %d %s", recorder.Code, recorder.Body.String())
	}

	recorder := server.do(t, http.MethodGet, "/api/loadout/plan?text=bc", "player-1", nil)
	var plan struct {
		Steps []planStepPayload `json:"steps"`
	}
	decodeBody(t, recorder, &plan)
	if len(plan.Steps) != 2 {
		t.Fatalf("expected two steps, got %+v", plan.Steps)
	}
	if plan.Steps[0].PhysicalKey != "KeyA" || !plan.Steps[0].IsRemapped || plan.Steps[0].Label != "A" {
		t.Fatalf("expected b to be typed on the remapped A key, got %+v", plan.Steps[0])
	}
	if plan.Steps[1].PhysicalKey != "KeyC" || plan.Steps[1].IsRemapped {
		t.Fatalf("expected c to stay on KeyC, got %+v", plan.Steps[1])
	}

	missing := server.do(t, http.MethodGet, "/api/loadout/plan", "player-1", nil)
	if missing.Code != http.StatusBadRequest {
		t.Fatalf("expected bad request without text, got %d", missing.Code)
	}
}

func TestSensitivityCalculator(t *testing.T) {
	server := newTestServer(t)

	recorder := server.do(t, http.MethodGet, "/api/sensitivity?dpi=800&sensitivity=0.5&targetCm=3.81", "player-1", nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected ok, got %d: %s", recorder.Code, recorder.Body.String())
	}
	var response sensitivityResponse
	decodeBody(t, recorder, &response)
	if !response.CM360.Valid || response.CM360.Float64 < 3.8099 || response.CM360.Float64 > 3.8101 {
		t.Fatalf("expected 3.81 cm/360, got %+v", response.CM360)
	}
	if response.Scale != "registry" || response.CursorSpeed.Int64 != 800 || response.SensitivityPercent.Int64 != 100 {
		t.Fatalf("unexpected calculator response %+v", response)
	}
	if !response.SensitivityForTarget.Valid || response.SensitivityForTarget.Float64 < 0.4999 || response.SensitivityForTarget.Float64 > 0.5001 {
		t.Fatalf("expected the inverse to recover 0.5, got %+v", response.SensitivityForTarget)
	}

	scaled := server.do(t, http.MethodGet, "/api/sensitivity?dpi=800&rawInput=false&pointerSpeed=20", "player-1", nil)
	decodeBody(t, scaled, &response)
	if response.CursorSpeed.Int64 != 2800 || response.CM360.Valid {
		t.Fatalf("expected registry speed 20 to scale 800 dpi to 2800 without cm/360, got %+v", response)
	}

	invalid := server.do(t, http.MethodGet, "/api/sensitivity?dpi=fast", "player-1", nil)
	if invalid.Code != http.StatusBadRequest || invalid.Body.String() != `{"error":"invalid_dpi"}` {
		t.Fatalf("unexpected invalid response %d %s", invalid.Code, invalid.Body.String())
	}
}

func TestPresetLifecycle(t *testing.T) {
	server := newTestServer(t)
	server.do(t, http.MethodGet, "/api/loadout", "player-1", nil)

	created := server.do(t, http.MethodPost, "/api/presets", "player-1", map[string]any{"name": "Bridge building", "activate": true})
	if created.Code != http.StatusCreated {
		t.Fatalf("expected created, got %d: %s", created.Code, created.Body.String())
	}
	var preset presets.Preset
	decodeBody(t, created, &preset)
	if !preset.IsActive || preset.Source != string(presets.SourceManual) {
		t.Fatalf("unexpected preset %+v", preset)
	}

	var list struct {
		Presets []presets.Preset `json:"presets"`
	}
	decodeBody(t, server.do(t, http.MethodGet, "/api/presets", "player-1", nil), &list)
	active := 0
	var starterID string
	for _, item := range list.Presets {
		if item.IsActive {
			active++
		}
		if item.PresetID != preset.PresetID {
			starterID = item.PresetID
		}
	}
	if len(list.Presets) != 2 || active != 1 {
		t.Fatalf("expected two presets with one active, got %+v", list.Presets)
	}

	activated := server.do(t, http.MethodPost, "/api/presets/"+starterID+"/activate", "player-1", nil)
	if activated.Code != http.StatusOK {
		t.Fatalf("expected ok, got %d: %s", activated.Code, activated.Body.String())
	}

	detail := server.do(t, http.MethodGet, "/api/presets/"+starterID, "player-1", nil)
	var detailResponse presetDetailResponse
	decodeBody(t, detail, &detailResponse)
	if !detailResponse.Preset.IsActive || len(detailResponse.Loadout.Bindings) == 0 || len(detailResponse.Skipped) != 0 {
		t.Fatalf("unexpected preset detail %+v", detailResponse)
	}

	var history struct {
		History []presets.HistoryEntry `json:"history"`
	}
	decodeBody(t, server.do(t, http.MethodGet, "/api/presets/history", "player-1", nil), &history)
	if len(history.History) != 3 {
		t.Fatalf("expected three history entries, got %+v", history.History)
	}

	missing := server.do(t, http.MethodPost, "/api/presets/missing/activate", "player-1", nil)
	if missing.Code != http.StatusNotFound {
		t.Fatalf("expected not found, got %d", missing.Code)
	}
	if missing.Body.String() != `{"code":"presets.activate.not_found","error":"not_found"}` {
		t.Fatalf("unexpected not found body %s", missing.Body.String())
	}

	otherUser := server.do(t, http.MethodGet, "/api/presets/"+starterID, "player-2", nil)
	if otherUser.Code != http.StatusNotFound {
		t.Fatalf("expected presets to be scoped per user, got %d", otherUser.Code)
	}
}

func TestCopyPresetReturnsBufferWithoutCommitting(t *testing.T) {
	server := newTestServer(t)
	server.do(t, http.MethodGet, "/api/loadout", "player-1", nil)

	starter, ok, err := server.presets.Active(context.Background(), "player-1")
	if err != nil || !ok {
		t.Fatalf("expected starter preset, ok=%v err=%v", ok, err)
	}

	live, err := server.store.Load(context.Background(), "player-1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	buffer := newLoadoutPayload(live)
	for index := range buffer.Bindings {
		if buffer.Bindings[index].Action == "jump" {
			buffer.Bindings[index].KeyCode = "KeyJ"
		}
	}

	recorder := server.do(t, http.MethodPost, "/api/presets/"+starter.PresetID+"/copy", "player-1", map[string]any{
		"scope":  "bindings",
		"buffer": buffer,
	})
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected ok, got %d: %s", recorder.Code, recorder.Body.String())
	}
	var response copyResponse
	decodeBody(t, recorder, &response)
	if len(response.Copied) != 1 || response.Copied[0] != presets.FieldBindings {
		t.Fatalf("expected only bindings to be copied, got %v", response.Copied)
	}
	for _, record := range response.Loadout.Bindings {
		if record.Action == "jump" && record.KeyCode != "Space" {
			t.Fatalf("expected jump to come back as Space from the starter preset, got %q", record.KeyCode)
		}
	}

	invalid := server.do(t, http.MethodPost, "/api/presets/"+starter.PresetID+"/copy", "player-1", map[string]any{"scope": "everything"})
	if invalid.Code != http.StatusBadRequest {
		t.Fatalf("expected bad scope to be rejected, got %d", invalid.Code)
	}
}

func TestImportEndpointReplacesSectionsAndActivatesSnapshot(t *testing.T) {
	server := newTestServer(t)
	server.do(t, http.MethodGet, "/api/loadout", "player-1", nil)

	recorder := server.do(t, http.MethodPost, "/api/import", "player-1", nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected ok, got %d: %s", recorder.Code, recorder.Body.String())
	}
	var result importer.Result
	decodeBody(t, recorder, &result)
	if !result.Success || result.Counts[importer.SectionBindings] != 1 || result.Preset == nil {
		t.Fatalf("unexpected import result %+v", result)
	}
	if result.Preset.Name != "Imported setup (March 5, 2024)" || !result.Preset.IsActive {
		t.Fatalf("unexpected import preset %+v", result.Preset)
	}

	stored, err := server.store.Load(context.Background(), "player-1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	jump, ok := stored.BindingSet().Get("jump")
	if !ok {
		t.Fatalf("expected jump binding after import")
	}
	if key, _ := jump.Key.Key(); key != "KeyF" {
		t.Fatalf("expected imported jump on KeyF, got %q", key)
	}
}
