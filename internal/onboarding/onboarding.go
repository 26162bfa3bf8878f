// Package onboarding gives new users a starter loadout and an active preset of it.
package onboarding

import (
	"context"
	"errors"
	"strings"

	"github.com/MarcoPoloResearchLab/keyhub/internal/loadout"
	"github.com/MarcoPoloResearchLab/keyhub/internal/presets"
	"github.com/MarcoPoloResearchLab/keyhub/internal/serviceerr"
	"go.uber.org/zap"
)

const (
	opNew     = "onboarding.new"
	opOnboard = "onboarding.onboard"
)

var (
	errMissingStore   = errors.New("loadout store is required")
	errMissingPresets = errors.New("preset service is required")
	errMissingUserID  = errors.New("user identifier is required")
)

// Store is the part of the loadout store onboarding uses.
type Store interface {
	SeedDefaults(ctx context.Context, userID string) error
	Load(ctx context.Context, userID string) (loadout.Loadout, error)
}

// PresetCreator is the part of the preset service onboarding uses.
type PresetCreator interface {
	Create(ctx context.Context, request presets.CreateRequest) (presets.Preset, error)
	GenerateName(source presets.Source) string
}

// Onboarder seeds starter data for new users.
type Onboarder struct {
	store   Store
	presets PresetCreator
	logger  *zap.Logger
}

// New builds an Onboarder.
func New(store Store, presetCreator PresetCreator, logger *zap.Logger) (*Onboarder, error) {
	if store == nil {
		return nil, serviceerr.New(opNew, "missing_store", errMissingStore)
	}
	if presetCreator == nil {
		return nil, serviceerr.New(opNew, "missing_presets", errMissingPresets)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Onboarder{store: store, presets: presetCreator, logger: logger}, nil
}

// Onboard seeds the default bindings and device config, then snapshots them as the
// user's active starter preset.
func (o *Onboarder) Onboard(ctx context.Context, userID string) (presets.Preset, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return presets.Preset{}, serviceerr.New(opOnboard, "missing_user_id", errMissingUserID)
	}
	if err := o.store.SeedDefaults(ctx, userID); err != nil {
		o.logger.Error("onboarding seed failed", zap.String("user_id", userID), zap.Error(err))
		return presets.Preset{}, serviceerr.New(opOnboard, "seed_failed", err)
	}
	starter, err := o.store.Load(ctx, userID)
	if err != nil {
		o.logger.Error("onboarding load failed", zap.String("user_id", userID), zap.Error(err))
		return presets.Preset{}, serviceerr.New(opOnboard, "load_failed", err)
	}
	preset, err := o.presets.Create(ctx, presets.CreateRequest{
		UserID:   userID,
		Name:     o.presets.GenerateName(presets.SourceOnboarding),
		Loadout:  starter,
		Source:   presets.SourceOnboarding,
		Activate: true,
	})
	if err != nil {
		o.logger.Error("onboarding preset failed", zap.String("user_id", userID), zap.Error(err))
		return presets.Preset{}, serviceerr.New(opOnboard, "preset_failed", err)
	}
	o.logger.Info("user onboarded", zap.String("user_id", userID), zap.String("preset_id", preset.PresetID))
	return preset, nil
}

// OnNewUser adapts Onboard to the users service new-user hook.
func (o *Onboarder) OnNewUser(ctx context.Context, userID string) error {
	_, err := o.Onboard(ctx, userID)
	return err
}
