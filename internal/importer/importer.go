// Package importer translates a legacy profile into the loadout tables and snapshots the
// result as the user's active preset.
package importer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/MarcoPoloResearchLab/keyhub/internal/bindings"
	"github.com/MarcoPoloResearchLab/keyhub/internal/devices"
	"github.com/MarcoPoloResearchLab/keyhub/internal/fingers"
	"github.com/MarcoPoloResearchLab/keyhub/internal/keycodes"
	"github.com/MarcoPoloResearchLab/keyhub/internal/loadout"
	"github.com/MarcoPoloResearchLab/keyhub/internal/presets"
	"github.com/MarcoPoloResearchLab/keyhub/internal/remaps"
	"github.com/MarcoPoloResearchLab/keyhub/internal/serviceerr"
	"github.com/guregu/null/v6"
	"go.uber.org/zap"
)

const (
	opImporterNew = "importer.new"
	opImport      = "importer.import"

	disabledSuffix   = "disabled"
	fingerSettingKey = "fingerAssignments"

	outcomeOK      = "ok"
	outcomeFailed  = "failed"
	outcomeSkipped = "skipped"
)

var (
	errMissingSource  = errors.New("payload source is required")
	errMissingStore   = errors.New("loadout store is required")
	errMissingPresets = errors.New("preset service is required")
	// ErrMissingUserID indicates an import without a user identifier.
	ErrMissingUserID = errors.New("importer: user identifier is required")
	noOpLogger       = zap.NewNop()
)

// LoadoutStore is the subset of the loadout store the importer writes through.
type LoadoutStore interface {
	Load(ctx context.Context, userID string) (loadout.Loadout, error)
	ReplaceBindings(ctx context.Context, userID string, rows []bindings.Binding) error
	ReplaceCustomKeys(ctx context.Context, userID string, rows []bindings.Binding) error
	ReplaceRemaps(ctx context.Context, userID string, set []remaps.Remap) error
	ReplaceFingers(ctx context.Context, userID string, m fingers.Map) error
	ReplaceDevice(ctx context.Context, userID string, config devices.Config) error
}

// PresetCreator is the subset of the preset service the importer needs.
type PresetCreator interface {
	Create(ctx context.Context, request presets.CreateRequest) (presets.Preset, error)
	GenerateName(source presets.Source) string
}

// Recorder observes import outcomes.
type Recorder interface {
	RecordImport(outcome string)
	RecordImportSection(section, outcome string, rows int)
}

// Config wires the importer dependencies.
type Config struct {
	Source   PayloadSource
	Store    LoadoutStore
	Presets  PresetCreator
	Logger   *zap.Logger
	Recorder Recorder
}

// Importer runs legacy imports.
type Importer struct {
	source   PayloadSource
	store    LoadoutStore
	presets  PresetCreator
	logger   *zap.Logger
	recorder Recorder
	schemas  schemaSet
}

// Result summarizes one import. Counts holds rows written per successful section and
// SectionErrors the reason each failed section was skipped.
type Result struct {
	Success       bool               `json:"success"`
	Counts        map[Section]int    `json:"counts"`
	SectionErrors map[Section]string `json:"sectionErrors,omitempty"`
	Error         string             `json:"error,omitempty"`
	Preset        *presets.Preset    `json:"preset,omitempty"`
}

// New validates the configuration and compiles the section schemas.
func New(cfg Config) (*Importer, error) {
	if cfg.Source == nil {
		return nil, serviceerr.New(opImporterNew, "missing_source", errMissingSource)
	}
	if cfg.Store == nil {
		return nil, serviceerr.New(opImporterNew, "missing_store", errMissingStore)
	}
	if cfg.Presets == nil {
		return nil, serviceerr.New(opImporterNew, "missing_presets", errMissingPresets)
	}
	schemas, err := compileSchemas()
	if err != nil {
		return nil, serviceerr.New(opImporterNew, "schema_compile_failed", err)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &Importer{
		source:   cfg.Source,
		store:    cfg.Store,
		presets:  cfg.Presets,
		logger:   logger,
		recorder: cfg.Recorder,
		schemas:  schemas,
	}, nil
}

// Import fetches the user's legacy payload and imports each section independently.
// A failed fetch aborts before anything is written. Otherwise the post-import loadout is
// always snapshotted into a new active preset. The returned error is non-nil exactly when
// Result.Success is false.
func (i *Importer) Import(ctx context.Context, userID string) (Result, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return Result{Error: ErrMissingUserID.Error()}, serviceerr.New(opImport, "missing_user_id", ErrMissingUserID)
	}

	payload, err := i.source.Fetch(ctx, userID)
	if err != nil {
		i.logError("fetch_failed", err, zap.String("user_id", userID))
		i.recordImport(outcomeFailed)
		return Result{Error: err.Error()}, serviceerr.New(opImport, "fetch_failed", err)
	}

	result := Result{
		Counts:        make(map[Section]int, len(Sections())),
		SectionErrors: make(map[Section]string),
	}
	sections := i.sectionRunners(userID, payload)
	for _, section := range Sections() {
		count, present, sectionErr := sections[section](ctx)
		switch {
		case sectionErr != nil:
			result.SectionErrors[section] = sectionErr.Error()
			i.logError("section_failed", sectionErr,
				zap.String("user_id", userID),
				zap.String("section", string(section)))
			i.recordSection(section, outcomeFailed, 0)
		case !present:
			i.recordSection(section, outcomeSkipped, 0)
		default:
			result.Counts[section] = count
			i.recordSection(section, outcomeOK, count)
		}
	}

	current, err := i.store.Load(ctx, userID)
	if err != nil {
		i.logError("reload_failed", err, zap.String("user_id", userID))
		i.recordImport(outcomeFailed)
		result.Error = err.Error()
		return result, serviceerr.New(opImport, "reload_failed", err)
	}
	preset, err := i.presets.Create(ctx, presets.CreateRequest{
		UserID:   userID,
		Name:     i.presets.GenerateName(presets.SourceImport),
		Loadout:  current,
		Source:   presets.SourceOnboarding,
		Activate: true,
	})
	if err != nil {
		i.logError("preset_create_failed", err, zap.String("user_id", userID))
		i.recordImport(outcomeFailed)
		result.Error = err.Error()
		return result, serviceerr.New(opImport, "preset_create_failed", err)
	}

	result.Success = true
	result.Preset = &preset
	i.recordImport(outcomeOK)
	i.logger.Info("legacy import finished",
		zap.String("user_id", userID),
		zap.Any("counts", result.Counts),
		zap.Int("failed_sections", len(result.SectionErrors)))
	return result, nil
}

type sectionRunner func(ctx context.Context) (count int, present bool, err error)

func (i *Importer) sectionRunners(userID string, payload Payload) map[Section]sectionRunner {
	settings, settingsErr := decodeSection(payload.Settings)
	settingsObject, _ := settings.(map[string]any)

	return map[Section]sectionRunner{
		SectionBindings: func(ctx context.Context) (int, bool, error) {
			if settingsErr != nil {
				return 0, true, settingsErr
			}
			if settings == nil {
				return 0, false, nil
			}
			if err := i.schemas.validate(SectionBindings, settings); err != nil {
				return 0, true, err
			}
			rows := extractBindings(settingsObject)
			if len(rows) == 0 {
				return 0, false, nil
			}
			if err := i.store.ReplaceBindings(ctx, userID, rows); err != nil {
				return 0, true, err
			}
			return len(rows), true, nil
		},
		SectionCustomKeys: func(ctx context.Context) (int, bool, error) {
			instance, err := decodeSection(payload.CustomKeys)
			if err != nil {
				return 0, true, err
			}
			if instance == nil {
				return 0, false, nil
			}
			if err := i.schemas.validate(SectionCustomKeys, instance); err != nil {
				return 0, true, err
			}
			rows := extractCustomKeys(instance.([]any))
			if err := i.store.ReplaceCustomKeys(ctx, userID, rows); err != nil {
				return 0, true, err
			}
			return len(rows), true, nil
		},
		SectionRemappings: func(ctx context.Context) (int, bool, error) {
			instance, err := decodeSection(payload.Remappings)
			if err != nil {
				return 0, true, err
			}
			if instance == nil {
				return 0, false, nil
			}
			if err := i.schemas.validate(SectionRemappings, instance); err != nil {
				return 0, true, err
			}
			set := extractRemaps(instance.(map[string]any))
			if err := i.store.ReplaceRemaps(ctx, userID, set); err != nil {
				return 0, true, err
			}
			return len(set), true, nil
		},
		SectionFingers: func(ctx context.Context) (int, bool, error) {
			if settingsErr != nil || settingsObject == nil {
				return 0, false, nil
			}
			raw, ok := settingsObject[fingerSettingKey]
			if !ok || raw == nil {
				return 0, false, nil
			}
			instance, err := unwrapEmbedded(raw)
			if err != nil {
				return 0, true, err
			}
			if err := i.schemas.validate(SectionFingers, instance); err != nil {
				return 0, true, err
			}
			m := extractFingers(instance.(map[string]any))
			if err := i.store.ReplaceFingers(ctx, userID, m); err != nil {
				return 0, true, err
			}
			return len(m), true, nil
		},
		SectionDevice: func(ctx context.Context) (int, bool, error) {
			if settingsErr != nil || settingsObject == nil {
				return 0, false, nil
			}
			if err := i.schemas.validate(SectionDevice, settingsObject); err != nil {
				return 0, true, err
			}
			config, present := extractDevice(userID, settingsObject)
			if !present {
				return 0, false, nil
			}
			if err := i.store.ReplaceDevice(ctx, userID, config); err != nil {
				return 0, true, err
			}
			return 1, true, nil
		},
	}
}

// decodeSection parses a raw section. Legacy exports sometimes store a section as JSON
// text inside a string; that text is parsed as well. A nil instance means the section is absent.
func decodeSection(raw json.RawMessage) (any, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return nil, nil
	}
	var instance any
	if err := json.Unmarshal(raw, &instance); err != nil {
		return nil, fmt.Errorf("decode section: %w", err)
	}
	return unwrapEmbedded(instance)
}

func unwrapEmbedded(instance any) (any, error) {
	text, ok := instance.(string)
	if !ok {
		return instance, nil
	}
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	var embedded any
	if err := json.Unmarshal([]byte(text), &embedded); err != nil {
		return nil, fmt.Errorf("decode embedded section: %w", err)
	}
	return embedded, nil
}

func extractBindings(settings map[string]any) []bindings.Binding {
	actions := make([]string, 0, len(settings))
	for key := range settings {
		actions = append(actions, key)
	}
	sort.Strings(actions)

	rows := make([]bindings.Binding, 0, len(actions))
	for _, key := range actions {
		action := bindings.Action(key)
		category, known := bindings.CategoryOf(action)
		if !known || category == bindings.CategoryCustom {
			continue
		}
		value, ok := settings[key].(string)
		if !ok || strings.TrimSpace(value) == "" {
			continue
		}
		rows = append(rows, bindings.Binding{
			Action:   action,
			Category: category,
			Key:      keycodes.ParseAssignment(value),
		})
	}
	return rows
}

// extractCustomKeys skips names from the action vocabulary, which belong to the settings section.
func extractCustomKeys(items []any) []bindings.Binding {
	rows := make([]bindings.Binding, 0, len(items))
	for _, item := range items {
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}
		keyCode, _ := entry["keyCode"].(string)
		keyName, _ := entry["keyName"].(string)
		keyCode = strings.TrimSpace(keyCode)
		keyName = strings.TrimSpace(keyName)
		if keyCode == "" || keyName == "" || bindings.IsKnown(bindings.Action(keyName)) {
			continue
		}
		rows = append(rows, bindings.Binding{
			Action:   bindings.Action(keyName),
			Category: bindings.CategoryCustom,
			Key:      keycodes.ParseAssignment(keyCode),
		})
	}
	return rows
}

func extractRemaps(entries map[string]any) []remaps.Remap {
	sources := make([]string, 0, len(entries))
	for source := range entries {
		sources = append(sources, source)
	}
	sort.Strings(sources)

	set := make([]remaps.Remap, 0, len(sources))
	for _, rawSource := range sources {
		source := keycodes.Normalize(rawSource)
		if source == "" || source == keycodes.Unbound {
			continue
		}
		remap := remaps.Remap{Source: source}
		switch target := entries[rawSource].(type) {
		case nil:
			remap.Disabled = true
		case string:
			trimmed := strings.TrimSpace(target)
			if trimmed == "" {
				continue
			}
			if strings.HasSuffix(strings.ToLower(trimmed), disabledSuffix) {
				remap.Disabled = true
			} else {
				remap.Target = keycodes.Normalize(trimmed)
			}
		default:
			continue
		}
		set = append(set, remap)
	}
	return set
}

func extractFingers(entries map[string]any) fingers.Map {
	raw := make(map[string][]string, len(entries))
	for key, value := range entries {
		switch typed := value.(type) {
		case string:
			raw[key] = []string{typed}
		case []any:
			names := make([]string, 0, len(typed))
			for _, item := range typed {
				if name, ok := item.(string); ok {
					names = append(names, name)
				}
			}
			raw[key] = names
		}
	}
	return fingers.FromRaw(raw)
}

func extractDevice(userID string, settings map[string]any) (devices.Config, bool) {
	config := devices.Default(userID)
	present := false

	if value, ok := numberField(settings, "dpi"); ok {
		config.DPI = null.IntFrom(int64(math.Round(value)))
		present = true
	}
	if value, ok := numberField(settings, "sensitivity"); ok {
		config.Sensitivity = null.FloatFrom(value)
		present = true
	}
	if value, ok := settings["rawInput"].(bool); ok {
		config.RawInput = value
		present = true
	}
	if value, ok := numberField(settings, "pointerSpeed"); ok {
		config.PointerSpeed = null.IntFrom(int64(value))
		present = true
	}
	if value, ok := numberField(settings, "customMultiplier"); ok {
		config.CustomMultiplier = null.FloatFrom(value)
		present = true
	}
	if value, ok := numberField(settings, "pollingRate"); ok {
		config.PollingRate = null.IntFrom(int64(value))
		present = true
	}
	if value, ok := numberField(settings, "monitorRefreshRate"); ok {
		config.MonitorRefreshRate = null.IntFrom(int64(value))
		present = true
	}
	stringFields := map[string]*string{
		"keyboardLayout": &config.KeyboardLayout,
		"mouseModel":     &config.MouseModel,
		"keyboardModel":  &config.KeyboardModel,
		"mousepadModel":  &config.MousepadModel,
		"headsetModel":   &config.HeadsetModel,
	}
	for key, target := range stringFields {
		if value, ok := settings[key].(string); ok && strings.TrimSpace(value) != "" {
			*target = strings.TrimSpace(value)
			present = true
		}
	}
	return config.Sanitize(), present
}

func numberField(settings map[string]any, key string) (float64, bool) {
	value, ok := settings[key].(float64)
	if !ok || math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, false
	}
	return value, true
}

func (i *Importer) recordImport(outcome string) {
	if i.recorder == nil {
		return
	}
	i.recorder.RecordImport(outcome)
}

func (i *Importer) recordSection(section Section, outcome string, rows int) {
	if i.recorder == nil {
		return
	}
	i.recorder.RecordImportSection(string(section), outcome, rows)
}

func (i *Importer) logError(reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", opImport),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	i.logger.Error("importer error", attrs...)
}
