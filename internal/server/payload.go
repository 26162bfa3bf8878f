package server

import (
	"github.com/MarcoPoloResearchLab/keyhub/internal/bindings"
	"github.com/MarcoPoloResearchLab/keyhub/internal/devices"
	"github.com/MarcoPoloResearchLab/keyhub/internal/fingers"
	"github.com/MarcoPoloResearchLab/keyhub/internal/loadout"
	"github.com/MarcoPoloResearchLab/keyhub/internal/presets"
	"github.com/MarcoPoloResearchLab/keyhub/internal/remaps"
)

// loadoutPayload is the outbound wire shape of a loadout.
type loadoutPayload struct {
	Bindings     []bindings.Record     `json:"bindings"`
	Device       *devices.Config       `json:"device"`
	Remaps       []remaps.Record       `json:"remaps"`
	Fingers      []fingers.Record      `json:"fingers"`
	ItemLayouts  []loadout.ItemLayout  `json:"itemLayouts"`
	SearchCrafts []loadout.SearchCraft `json:"searchCrafts"`
}

func newLoadoutPayload(source loadout.Loadout) loadoutPayload {
	payload := loadoutPayload{
		Bindings:     bindings.ToRecords(source.Bindings),
		Device:       source.Device,
		Remaps:       remaps.ToRecords(source.Remaps),
		Fingers:      source.Fingers.ToRecords(),
		ItemLayouts:  source.ItemLayouts,
		SearchCrafts: source.SearchCrafts,
	}
	if payload.ItemLayouts == nil {
		payload.ItemLayouts = []loadout.ItemLayout{}
	}
	if payload.SearchCrafts == nil {
		payload.SearchCrafts = []loadout.SearchCraft{}
	}
	return payload
}

// loadoutRequest is an inbound loadout. A section missing from the body, or sent as null,
// keeps its stored value; a section sent as an empty list clears it.
type loadoutRequest struct {
	Bindings     *[]bindings.Record     `json:"bindings"`
	Device       *devices.Config        `json:"device"`
	Remaps       *[]remaps.Record       `json:"remaps"`
	Fingers      *[]fingers.Record      `json:"fingers"`
	ItemLayouts  *[]loadout.ItemLayout  `json:"itemLayouts"`
	SearchCrafts *[]loadout.SearchCraft `json:"searchCrafts"`
}

// applyTo overlays the sections present in the request onto base and reports which
// sections it replaced.
func (r loadoutRequest) applyTo(base loadout.Loadout, userID string) (loadout.Loadout, []loadout.Section) {
	result := base.Clone()
	var sections []loadout.Section
	if r.Bindings != nil {
		result.Bindings = bindings.FromRecords(*r.Bindings)
		sections = append(sections, loadout.SectionBindings)
	}
	if r.Device != nil {
		device := r.Device.Sanitize()
		device.UserID = userID
		result.Device = &device
		sections = append(sections, loadout.SectionDevice)
	}
	if r.Remaps != nil {
		result.Remaps = remaps.FromRecords(*r.Remaps)
		sections = append(sections, loadout.SectionRemaps)
	}
	if r.Fingers != nil {
		result.Fingers = fingers.FromRecords(*r.Fingers)
		sections = append(sections, loadout.SectionFingers)
	}
	if r.ItemLayouts != nil {
		result.ItemLayouts = append([]loadout.ItemLayout{}, *r.ItemLayouts...)
		sections = append(sections, loadout.SectionItemLayouts)
	}
	if r.SearchCrafts != nil {
		result.SearchCrafts = append([]loadout.SearchCraft{}, *r.SearchCrafts...)
		sections = append(sections, loadout.SectionSearchCrafts)
	}
	return result, sections
}

type conflictPayload struct {
	Key     string   `json:"key"`
	Label   string   `json:"label"`
	Actions []string `json:"actions"`
}

type loadoutResponse struct {
	Loadout   loadoutPayload    `json:"loadout"`
	Mode      string            `json:"mode"`
	Metrics   *devices.Metrics  `json:"metrics"`
	Conflicts []conflictPayload `json:"conflicts"`
}

func newLoadoutResponse(current loadout.Loadout) loadoutResponse {
	response := loadoutResponse{
		Loadout:   newLoadoutPayload(current),
		Mode:      string(current.Mode()),
		Conflicts: []conflictPayload{},
	}
	if current.Device != nil {
		deviceMetrics := current.Device.Metrics()
		response.Metrics = &deviceMetrics
	}
	layout := current.Layout()
	for _, conflict := range current.BindingSet().Conflicts() {
		actions := make([]string, 0, len(conflict.Actions))
		for _, action := range conflict.Actions {
			actions = append(actions, action.String())
		}
		response.Conflicts = append(response.Conflicts, conflictPayload{
			Key:     conflict.Key.String(),
			Label:   labelFor(conflict.Key, layout),
			Actions: actions,
		})
	}
	return response
}

type fieldErrorPayload struct {
	Field string `json:"field"`
	Error string `json:"error"`
}

type copyResponse struct {
	Loadout loadoutPayload      `json:"loadout"`
	Copied  []presets.Field     `json:"copied"`
	Skipped []fieldErrorPayload `json:"skipped"`
}

func newCopyResponse(buffer loadout.Loadout, report presets.CopyReport) copyResponse {
	response := copyResponse{
		Loadout: newLoadoutPayload(buffer),
		Copied:  report.Copied,
		Skipped: make([]fieldErrorPayload, 0, len(report.Skipped)),
	}
	if response.Copied == nil {
		response.Copied = []presets.Field{}
	}
	for _, skipped := range report.Skipped {
		response.Skipped = append(response.Skipped, fieldErrorPayload{
			Field: string(skipped.Field),
			Error: skipped.Err.Error(),
		})
	}
	return response
}

type presetDetailResponse struct {
	Preset  presets.Preset      `json:"preset"`
	Loadout loadoutPayload      `json:"loadout"`
	Skipped []fieldErrorPayload `json:"skipped"`
}

func newPresetDetailResponse(preset presets.Preset) presetDetailResponse {
	decoded, fieldErrors := presets.Decode(preset)
	response := presetDetailResponse{
		Preset:  preset,
		Loadout: newLoadoutPayload(decoded),
		Skipped: make([]fieldErrorPayload, 0, len(fieldErrors)),
	}
	for _, fieldError := range fieldErrors {
		response.Skipped = append(response.Skipped, fieldErrorPayload{
			Field: string(fieldError.Field),
			Error: fieldError.Err.Error(),
		})
	}
	return response
}
