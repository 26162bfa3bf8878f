package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/MarcoPoloResearchLab/keyhub/internal/keycodes"
	"github.com/MarcoPoloResearchLab/keyhub/internal/loadout"
	"github.com/MarcoPoloResearchLab/keyhub/internal/remaps"
	"github.com/MarcoPoloResearchLab/keyhub/internal/sensitivity"
	"github.com/gin-gonic/gin"
	"github.com/guregu/null/v6"
)

const maxPlanTextLength = 256

func (h *httpHandler) handleGetLoadout(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	current, err := h.loadouts.Load(c.Request.Context(), userID)
	if err != nil {
		h.respondError(c, "load_failed", err)
		return
	}
	c.JSON(http.StatusOK, newLoadoutResponse(current))
}

// handlePutLoadout commits the sections present in the body and answers with the stored result.
func (h *httpHandler) handlePutLoadout(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var request loadoutRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	buffer, sections := request.applyTo(loadout.Loadout{}, userID)
	if err := h.loadouts.CommitSections(c.Request.Context(), userID, buffer, sections...); err != nil {
		h.respondError(c, "commit_failed", err)
		return
	}
	current, err := h.loadouts.Load(c.Request.Context(), userID)
	if err != nil {
		h.respondError(c, "load_failed", err)
		return
	}
	c.JSON(http.StatusOK, newLoadoutResponse(current))
}

type planStepPayload struct {
	remaps.PlanStep
	Label string `json:"label"`
}

func (h *httpHandler) handleCharacterPlan(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	text := c.Query("text")
	if text == "" || len(text) > maxPlanTextLength {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_text"})
		return
	}
	current, err := h.loadouts.Load(c.Request.Context(), userID)
	if err != nil {
		h.respondError(c, "load_failed", err)
		return
	}
	layout := current.Layout()
	steps := current.RemapLayer().ReverseCharacterPlan(text)
	response := make([]planStepPayload, 0, len(steps))
	for _, step := range steps {
		response = append(response, planStepPayload{PlanStep: step, Label: labelFor(step.PhysicalKey, layout)})
	}
	c.JSON(http.StatusOK, gin.H{"steps": response})
}

type keyBindingPayload struct {
	Action   string `json:"action"`
	Category string `json:"category"`
}

type keyInfoResponse struct {
	Code        string              `json:"code"`
	Canonical   bool                `json:"canonical"`
	Label       string              `json:"label"`
	Bindings    []keyBindingPayload `json:"bindings"`
	RemapState  string              `json:"remapState"`
	RemapTarget string              `json:"remapTarget,omitempty"`
}

// handleKeyInfo describes one physical key: what it is called, what it is bound to and
// what the hardware turns it into.
func (h *httpHandler) handleKeyInfo(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	code := keycodes.Normalize(c.Param("code"))
	if code == "" || code == keycodes.Unbound {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_key"})
		return
	}
	current, err := h.loadouts.Load(c.Request.Context(), userID)
	if err != nil {
		h.respondError(c, "load_failed", err)
		return
	}
	layout := c.DefaultQuery("layout", current.Layout())

	response := keyInfoResponse{
		Code:      code.String(),
		Canonical: keycodes.IsCanonical(code),
		Label:     labelFor(code, layout),
		Bindings:  []keyBindingPayload{},
	}
	for _, binding := range current.BindingSet().ForKey(code) {
		response.Bindings = append(response.Bindings, keyBindingPayload{
			Action:   binding.Action.String(),
			Category: string(binding.Category),
		})
	}
	target, state := current.RemapLayer().Forward(code)
	response.RemapState = remapStateName(state)
	if state == remaps.Remapped {
		response.RemapTarget = target.String()
	}
	c.JSON(http.StatusOK, response)
}

type sensitivityResponse struct {
	Scale                string      `json:"scale"`
	Multiplier           float64     `json:"multiplier"`
	CM360                null.Float  `json:"cm360"`
	CM360Label           null.String `json:"cm360Label"`
	CursorSpeed          null.Int    `json:"cursorSpeed"`
	SensitivityPercent   null.Int    `json:"sensitivityPercent"`
	SensitivityForTarget null.Float  `json:"sensitivityForTarget"`
}

// handleSensitivity is the stateless calculator. It defaults to the registry scale.
func (h *httpHandler) handleSensitivity(c *gin.Context) {
	input := sensitivity.Input{
		RawInput: true,
		Scale:    sensitivity.RegistrySpeed,
	}
	if c.Query("scale") == sensitivity.WindowsSlider.Name() {
		input.Scale = sensitivity.WindowsSlider
	}

	var err error
	if input.DPI, err = queryInt(c, "dpi"); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_dpi"})
		return
	}
	if input.PointerSpeed, err = queryInt(c, "pointerSpeed"); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_pointer_speed"})
		return
	}
	if input.CustomMultiplier, err = queryFloat(c, "customMultiplier"); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_custom_multiplier"})
		return
	}
	if input.Sensitivity, err = queryFloat(c, "sensitivity"); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_sensitivity"})
		return
	}
	if raw := c.Query("rawInput"); raw != "" {
		parsed, parseErr := strconv.ParseBool(raw)
		if parseErr != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_raw_input"})
			return
		}
		input.RawInput = parsed
	}
	targetCM, err := queryFloat(c, "targetCm")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_target"})
		return
	}

	response := sensitivityResponse{
		Scale:      input.Scale.Name(),
		Multiplier: 1.0,
	}
	if !input.RawInput {
		response.Multiplier = sensitivity.PointerMultiplier(input)
	}
	if distance, ok := sensitivity.DistancePer360(input); ok {
		response.CM360 = null.FloatFrom(distance)
		response.CM360Label = null.StringFrom(sensitivity.FormatCM360(distance))
	}
	if speed, ok := sensitivity.CursorSpeed(input); ok {
		response.CursorSpeed = null.IntFrom(speed)
	}
	if input.Sensitivity.Valid {
		response.SensitivityPercent = null.IntFrom(sensitivity.FractionToPercent(input.Sensitivity.Float64))
	}
	if targetCM.Valid {
		if fraction, ok := sensitivity.SensitivityForDistance(targetCM.Float64, input); ok {
			response.SensitivityForTarget = null.FloatFrom(fraction)
		}
	}
	c.JSON(http.StatusOK, response)
}

func queryInt(c *gin.Context, key string) (null.Int, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return null.Int{}, nil
	}
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return null.Int{}, err
	}
	return null.IntFrom(value), nil
}

func queryFloat(c *gin.Context, key string) (null.Float, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return null.Float{}, nil
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return null.Float{}, err
	}
	return null.FloatFrom(value), nil
}

func labelFor(code keycodes.KeyCode, layout string) string {
	return keycodes.Label(code, layout)
}

func remapStateName(state remaps.State) string {
	switch state {
	case remaps.Remapped:
		return "remapped"
	case remaps.Disabled:
		return "disabled"
	default:
		return "none"
	}
}
