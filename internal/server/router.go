package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/MarcoPoloResearchLab/keyhub/internal/auth"
	"github.com/MarcoPoloResearchLab/keyhub/internal/importer"
	"github.com/MarcoPoloResearchLab/keyhub/internal/loadout"
	"github.com/MarcoPoloResearchLab/keyhub/internal/metrics"
	"github.com/MarcoPoloResearchLab/keyhub/internal/presets"
	"github.com/MarcoPoloResearchLab/keyhub/internal/serviceerr"
	"github.com/MarcoPoloResearchLab/keyhub/internal/users"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	userIDContextKey = "keyhub_user_id"
	unmatchedRoute   = "unmatched"
)

var (
	errMissingSessionValidator = errors.New("session validator dependency required")
	errMissingUserResolver     = errors.New("user resolver dependency required")
	errMissingLoadoutStore     = errors.New("loadout store dependency required")
	errMissingPresetService    = errors.New("preset service dependency required")
)

// SessionValidator authenticates incoming requests.
type SessionValidator interface {
	ValidateRequest(r *http.Request) (auth.SessionClaims, error)
}

// UserResolver maps session claims onto canonical user ids.
type UserResolver interface {
	ResolveCanonicalUserID(ctx context.Context, claims auth.SessionClaims) (string, error)
}

// LoadoutStore reads and commits live loadouts.
type LoadoutStore interface {
	Load(ctx context.Context, userID string) (loadout.Loadout, error)
	CommitSections(ctx context.Context, userID string, buffer loadout.Loadout, sections ...loadout.Section) error
}

// PresetService manages saved presets.
type PresetService interface {
	Create(ctx context.Context, request presets.CreateRequest) (presets.Preset, error)
	Activate(ctx context.Context, userID, presetID string) (presets.Preset, error)
	List(ctx context.Context, userID string) ([]presets.Preset, error)
	Get(ctx context.Context, userID, presetID string) (presets.Preset, error)
	History(ctx context.Context, userID string) ([]presets.HistoryEntry, error)
}

// LegacyImporter pulls a user's settings from the legacy profile service.
type LegacyImporter interface {
	Import(ctx context.Context, userID string) (importer.Result, error)
}

// Dependencies wires the HTTP handler. Importer and Metrics are optional.
type Dependencies struct {
	Sessions       SessionValidator
	Users          UserResolver
	Loadouts       LoadoutStore
	Presets        PresetService
	Importer       LegacyImporter
	Metrics        *metrics.Registry
	AllowedOrigins []string
	Logger         *zap.Logger
}

// NewHTTPHandler builds the gin router serving the KeyHub API.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.Sessions == nil {
		return nil, errMissingSessionValidator
	}
	if deps.Users == nil {
		return nil, errMissingUserResolver
	}
	if deps.Loadouts == nil {
		return nil, errMissingLoadoutStore
	}
	if deps.Presets == nil {
		return nil, errMissingPresetService
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	handler := &httpHandler{
		sessions: deps.Sessions,
		users:    deps.Users,
		loadouts: deps.Loadouts,
		presets:  deps.Presets,
		importer: deps.Importer,
		metrics:  deps.Metrics,
		logger:   logger,
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(handler.recordRequest)
	router.Use(corsMiddleware(deps.AllowedOrigins))

	router.GET("/healthz", handler.handleHealth)
	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}

	api := router.Group("/api")
	api.Use(handler.authorizeRequest)
	api.GET("/loadout", handler.handleGetLoadout)
	api.PUT("/loadout", handler.handlePutLoadout)
	api.GET("/loadout/plan", handler.handleCharacterPlan)
	api.GET("/keys/:code", handler.handleKeyInfo)
	api.GET("/sensitivity", handler.handleSensitivity)
	api.GET("/presets", handler.handleListPresets)
	api.POST("/presets", handler.handleCreatePreset)
	api.GET("/presets/history", handler.handlePresetHistory)
	api.GET("/presets/:id", handler.handleGetPreset)
	api.POST("/presets/:id/activate", handler.handleActivatePreset)
	api.POST("/presets/:id/copy", handler.handleCopyPreset)
	api.POST("/import", handler.handleImport)

	return router, nil
}

type httpHandler struct {
	sessions SessionValidator
	users    UserResolver
	loadouts LoadoutStore
	presets  PresetService
	importer LegacyImporter
	metrics  *metrics.Registry
	logger   *zap.Logger
}

// corsMiddleware allows credentialed requests from the configured origins. Without
// configured origins any origin may call the API, but cookies are not shared.
func corsMiddleware(allowedOrigins []string) gin.HandlerFunc {
	config := cors.Config{
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}
	if len(allowedOrigins) == 0 {
		config.AllowAllOrigins = true
	} else {
		config.AllowOrigins = allowedOrigins
		config.AllowCredentials = true
	}
	return cors.New(config)
}

func (h *httpHandler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *httpHandler) recordRequest(c *gin.Context) {
	c.Next()
	route := c.FullPath()
	if route == "" {
		route = unmatchedRoute
	}
	h.metrics.RecordHTTPRequest(c.Request.Method, route, c.Writer.Status())
}

func (h *httpHandler) authorizeRequest(c *gin.Context) {
	claims, err := h.sessions.ValidateRequest(c.Request)
	if err != nil {
		if errors.Is(err, auth.ErrExpiredSessionToken) || errors.Is(err, auth.ErrMissingSessionToken) {
			h.logger.Info("session validation failed", zap.Error(err))
		} else {
			h.logger.Warn("session validation failed", zap.Error(err))
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	userID, err := h.users.ResolveCanonicalUserID(c.Request.Context(), claims)
	if err != nil {
		if errors.Is(err, users.ErrInvalidIdentity) {
			h.logger.Warn("session identity rejected", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		h.logger.Error("failed to resolve user", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusInternalServerError, errorBody("identity_failed", err))
		return
	}
	c.Set(userIDContextKey, userID)
	c.Next()
}

// respondError maps service errors onto status codes. Server side failures are logged here.
func (h *httpHandler) respondError(c *gin.Context, fallback string, err error) {
	status := http.StatusInternalServerError
	reason := fallback
	switch {
	case errors.Is(err, presets.ErrPresetNotFound):
		status, reason = http.StatusNotFound, "not_found"
	case errors.Is(err, presets.ErrInvalidSource), errors.Is(err, presets.ErrInvalidScope):
		status, reason = http.StatusBadRequest, "invalid_request"
	case errors.Is(err, importer.ErrFetchFailed):
		status, reason = http.StatusBadGateway, "fetch_failed"
	}
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed",
			zap.String("route", c.FullPath()),
			zap.String("reason", reason),
			zap.Error(err))
	}
	c.JSON(status, errorBody(reason, err))
}

func errorBody(reason string, err error) gin.H {
	body := gin.H{"error": reason}
	if code, ok := serviceerr.CodeOf(err); ok {
		body["code"] = code
	}
	return body
}

func currentUserID(c *gin.Context) (string, bool) {
	userID := c.GetString(userIDContextKey)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return "", false
	}
	return userID, true
}
