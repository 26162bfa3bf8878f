// Package devices holds the per-user mouse and keyboard hardware settings.
package devices

import (
	"strings"

	"github.com/MarcoPoloResearchLab/keyhub/internal/keycodes"
	"github.com/MarcoPoloResearchLab/keyhub/internal/sensitivity"
	"github.com/guregu/null/v6"
)

const (
	minPointerSpeed = 1
	maxPointerSpeed = 11
)

// Config is the single device row of a user. JSON tags define the flat preset shape.
type Config struct {
	UserID             string     `gorm:"column:user_id;primaryKey;size:190;not null" json:"-"`
	DPI                null.Int   `gorm:"column:dpi" json:"dpi"`
	Sensitivity        null.Float `gorm:"column:sensitivity" json:"sensitivity"`
	RawInput           bool       `gorm:"column:raw_input;not null;default:true" json:"rawInput"`
	PointerSpeed       null.Int   `gorm:"column:pointer_speed" json:"pointerSpeed"`
	CustomMultiplier   null.Float `gorm:"column:custom_multiplier" json:"customMultiplier"`
	KeyboardLayout     string     `gorm:"column:keyboard_layout;size:16;not null;default:'us'" json:"keyboardLayout"`
	InputMode          string     `gorm:"column:input_mode;size:32;not null;default:'keyboard_mouse'" json:"inputMode"`
	MouseModel         string     `gorm:"column:mouse_model;size:190" json:"mouseModel"`
	KeyboardModel      string     `gorm:"column:keyboard_model;size:190" json:"keyboardModel"`
	MousepadModel      string     `gorm:"column:mousepad_model;size:190" json:"mousepadModel"`
	HeadsetModel       string     `gorm:"column:headset_model;size:190" json:"headsetModel"`
	PollingRate        null.Int   `gorm:"column:polling_rate" json:"pollingRate"`
	MonitorRefreshRate null.Int   `gorm:"column:monitor_refresh_rate" json:"monitorRefreshRate"`
	UpdatedAtSeconds   int64      `gorm:"column:updated_at_s;not null;default:0" json:"-"`
}

// TableName provides the explicit table binding for GORM.
func (Config) TableName() string {
	return "device_configs"
}

// Default returns the starter device configuration.
func Default(userID string) Config {
	return Config{
		UserID:         userID,
		RawInput:       true,
		KeyboardLayout: string(keycodes.LayoutUS),
		InputMode:      "keyboard_mouse",
	}
}

// Sanitize clamps fields into their domains. Out-of-range numbers become null so metrics
// degrade to "unknown" instead of producing nonsense.
func (c Config) Sanitize() Config {
	if c.DPI.Valid && c.DPI.Int64 <= 0 {
		c.DPI = null.Int{}
	}
	if c.Sensitivity.Valid && (c.Sensitivity.Float64 < 0 || c.Sensitivity.Float64 > 1) {
		c.Sensitivity = null.Float{}
	}
	if c.PointerSpeed.Valid && (c.PointerSpeed.Int64 < minPointerSpeed || c.PointerSpeed.Int64 > maxPointerSpeed) {
		c.PointerSpeed = null.Int{}
	}
	if c.CustomMultiplier.Valid && c.CustomMultiplier.Float64 <= 0 {
		c.CustomMultiplier = null.Float{}
	}
	if c.PollingRate.Valid && c.PollingRate.Int64 <= 0 {
		c.PollingRate = null.Int{}
	}
	if c.MonitorRefreshRate.Valid && c.MonitorRefreshRate.Int64 <= 0 {
		c.MonitorRefreshRate = null.Int{}
	}
	c.KeyboardLayout = string(keycodes.ParseLayout(c.KeyboardLayout))
	if strings.TrimSpace(c.InputMode) != "controller" {
		c.InputMode = "keyboard_mouse"
	}
	return c
}

// SensitivityInput exposes the config to the sensitivity math on the stored 11 notch scale.
func (c Config) SensitivityInput() sensitivity.Input {
	return sensitivity.Input{
		DPI:              c.DPI,
		Sensitivity:      c.Sensitivity,
		RawInput:         c.RawInput,
		PointerSpeed:     c.PointerSpeed,
		CustomMultiplier: c.CustomMultiplier,
		Scale:            sensitivity.WindowsSlider,
	}
}

// Metrics are the derived sensitivity figures shown next to a device config.
type Metrics struct {
	CM360              null.Float  `json:"cm360"`
	CM360Label         null.String `json:"cm360Label"`
	CursorSpeed        null.Int    `json:"cursorSpeed"`
	SensitivityPercent null.Int    `json:"sensitivityPercent"`
}

// Metrics derives the comparable sensitivity figures.
func (c Config) Metrics() Metrics {
	input := c.SensitivityInput()
	metrics := Metrics{}
	if distance, ok := sensitivity.DistancePer360(input); ok {
		metrics.CM360 = null.FloatFrom(distance)
		metrics.CM360Label = null.StringFrom(sensitivity.FormatCM360(distance))
	}
	if speed, ok := sensitivity.CursorSpeed(input); ok {
		metrics.CursorSpeed = null.IntFrom(speed)
	}
	if c.Sensitivity.Valid {
		metrics.SensitivityPercent = null.IntFrom(sensitivity.FractionToPercent(c.Sensitivity.Float64))
	}
	return metrics
}
