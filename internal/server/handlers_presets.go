package server

import (
	"net/http"

	"github.com/MarcoPoloResearchLab/keyhub/internal/presets"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func (h *httpHandler) handleListPresets(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	list, err := h.presets.List(c.Request.Context(), userID)
	if err != nil {
		h.respondError(c, "list_failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"presets": list})
}

type createPresetRequest struct {
	Name     string          `json:"name"`
	Source   string          `json:"source"`
	Activate bool            `json:"activate"`
	Loadout  *loadoutRequest `json:"loadout"`
}

// handleCreatePreset snapshots the live loadout with any sections supplied in the body
// laid over it.
func (h *httpHandler) handleCreatePreset(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var request createPresetRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	source, err := presets.ParseSource(request.Source)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_source"})
		return
	}

	snapshot, err := h.loadouts.Load(c.Request.Context(), userID)
	if err != nil {
		h.respondError(c, "load_failed", err)
		return
	}
	if request.Loadout != nil {
		snapshot, _ = request.Loadout.applyTo(snapshot, userID)
	}

	preset, err := h.presets.Create(c.Request.Context(), presets.CreateRequest{
		UserID:   userID,
		Name:     request.Name,
		Loadout:  snapshot,
		Source:   source,
		Activate: request.Activate,
	})
	if err != nil {
		h.respondError(c, "create_failed", err)
		return
	}
	c.JSON(http.StatusCreated, preset)
}

func (h *httpHandler) handleGetPreset(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	preset, err := h.presets.Get(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		h.respondError(c, "get_failed", err)
		return
	}
	c.JSON(http.StatusOK, newPresetDetailResponse(preset))
}

func (h *httpHandler) handleActivatePreset(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	preset, err := h.presets.Activate(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		h.respondError(c, "activate_failed", err)
		return
	}
	c.JSON(http.StatusOK, preset)
}

type copyPresetRequest struct {
	Scope  string          `json:"scope"`
	Buffer *loadoutRequest `json:"buffer"`
}

// handleCopyPreset merges a preset into the caller's buffer and returns the result
// without committing it. Sections missing from the buffer come from the live loadout.
func (h *httpHandler) handleCopyPreset(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var request copyPresetRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	scope, err := presets.ParseScope(request.Scope)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_scope"})
		return
	}
	preset, err := h.presets.Get(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		h.respondError(c, "get_failed", err)
		return
	}

	buffer, err := h.loadouts.Load(c.Request.Context(), userID)
	if err != nil {
		h.respondError(c, "load_failed", err)
		return
	}
	if request.Buffer != nil {
		buffer, _ = request.Buffer.applyTo(buffer, userID)
	}

	report, err := presets.CopyInto(&buffer, preset, scope)
	if err != nil {
		h.respondError(c, "copy_failed", err)
		return
	}
	for _, skipped := range report.Skipped {
		h.logger.Warn("preset field skipped during copy",
			zap.String("user_id", userID),
			zap.String("preset_id", preset.PresetID),
			zap.String("field", string(skipped.Field)),
			zap.Error(skipped.Err))
	}
	c.JSON(http.StatusOK, newCopyResponse(buffer, report))
}

func (h *httpHandler) handlePresetHistory(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	entries, err := h.presets.History(c.Request.Context(), userID)
	if err != nil {
		h.respondError(c, "history_failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"history": entries})
}

// handleImport runs the legacy import. Partial section failures still answer 200 with
// the per-section errors; only a failed fetch or snapshot is an error response.
func (h *httpHandler) handleImport(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	if h.importer == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "import_unavailable"})
		return
	}
	result, err := h.importer.Import(c.Request.Context(), userID)
	if err != nil {
		h.respondError(c, "import_failed", err)
		return
	}
	c.JSON(http.StatusOK, result)
}
