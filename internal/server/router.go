package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/beemstream/user-config-service/internal/favourites"
	"github.com/beemstream/user-config-service/internal/platform"
	"github.com/beemstream/user-config-service/internal/presets"
)

const (
	tokenContextKey     = "stream_config_token"
	requestIDContextKey = "stream_config_request_id"
	requestIDHeader     = "X-Request-Id"
	tokenHeader         = "token"
	bearerPrefix        = "Bearer "
)

var (
	errMissingRegistry     = errors.New("favourite registry dependency required")
	errMissingStore        = errors.New("preset store dependency required")
	errMissingOrchestrator = errors.New("activation orchestrator dependency required")
	errMissingPlatform     = errors.New("platform client dependency required")
)

// PlatformAuth resolves caller identities with the auth service and the
// streaming platform.
type PlatformAuth interface {
	GetProfile(ctx context.Context, token string) (platform.Profile, error)
	ResolveIdentity(ctx context.Context, token string) (platform.Identity, error)
}

// FavouriteRegistry registers and lists favourited channels.
type FavouriteRegistry interface {
	Register(ctx context.Context, userID int, identifier string, source favourites.StreamSource) error
	List(ctx context.Context, userID int) ([]favourites.FavouriteStream, error)
}

// PresetStore saves and lists stream presets.
type PresetStore interface {
	Save(ctx context.Context, userID, title string, tags []presets.TagInput) (presets.Preset, error)
	List(ctx context.Context, userID string) ([]presets.Preset, error)
}

// Activator pushes a stored preset to the caller's live channel.
type Activator interface {
	Activate(ctx context.Context, token string, presetID int) error
}

// Dependencies bundles everything the HTTP handler needs.
type Dependencies struct {
	Registry     FavouriteRegistry
	Store        PresetStore
	Orchestrator Activator
	Platform     PlatformAuth
	Logger       *zap.Logger
}

// NewHTTPHandler builds the gin router serving the stream-config surface.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.Registry == nil {
		return nil, errMissingRegistry
	}
	if deps.Store == nil {
		return nil, errMissingStore
	}
	if deps.Orchestrator == nil {
		return nil, errMissingOrchestrator
	}
	if deps.Platform == nil {
		return nil, errMissingPlatform
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestIDMiddleware())
	router.Use(corsMiddleware())

	handler := &httpHandler{
		registry:     deps.Registry,
		store:        deps.Store,
		orchestrator: deps.Orchestrator,
		platform:     deps.Platform,
		logger:       logger,
	}

	protected := router.Group("/stream-config")
	protected.Use(handler.requireToken)
	protected.POST("/favourite-streams", handler.handleRegisterFavourite)
	protected.GET("/favourite-streams", handler.handleListFavourites)
	protected.POST("/stream-management", handler.handleSavePreset)
	protected.GET("/stream-management", handler.handleListPresets)
	protected.PUT("/stream-management/:preset_id/set", handler.handleActivatePreset)

	return router, nil
}

type httpHandler struct {
	registry     FavouriteRegistry
	store        PresetStore
	orchestrator Activator
	platform     PlatformAuth
	logger       *zap.Logger
}

func corsMiddleware() gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowHeaders: []string{tokenHeader, "Content-Type"},
		MaxAge:       12 * time.Hour,
	})
}

func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID, err := uuid.NewV7()
		if err != nil {
			requestID = uuid.New()
		}
		c.Set(requestIDContextKey, requestID.String())
		c.Header(requestIDHeader, requestID.String())
		c.Next()
	}
}

// requireToken admits requests whose token header literally starts with the
// Bearer scheme. The raw header value is kept as-is for the remote calls.
func (h *httpHandler) requireToken(c *gin.Context) {
	header := c.GetHeader(tokenHeader)
	if header == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing_token"})
		return
	}
	if !strings.HasPrefix(header, bearerPrefix) || strings.TrimSpace(strings.TrimPrefix(header, bearerPrefix)) == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid_token"})
		return
	}
	c.Set(tokenContextKey, header)
	c.Next()
}

type favouriteStreamPayload struct {
	Identifier string `json:"identifier"`
	Source     string `json:"source"`
}

func (h *httpHandler) handleRegisterFavourite(c *gin.Context) {
	token := c.GetString(tokenContextKey)

	var request favouriteStreamPayload
	if err := c.ShouldBindJSON(&request); err != nil || strings.TrimSpace(request.Identifier) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	source, err := favourites.ParseSource(request.Source)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	profile, err := h.platform.GetProfile(c.Request.Context(), token)
	if err != nil {
		h.respondError(c, err)
		return
	}

	if err := h.registry.Register(c.Request.Context(), profile.ID, request.Identifier, source); err != nil {
		h.respondError(c, err)
		return
	}

	c.Status(http.StatusCreated)
}

func (h *httpHandler) handleListFavourites(c *gin.Context) {
	token := c.GetString(tokenContextKey)

	profile, err := h.platform.GetProfile(c.Request.Context(), token)
	if err != nil {
		h.respondError(c, err)
		return
	}

	entries, err := h.registry.List(c.Request.Context(), profile.ID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	response := make([]favouriteStreamPayload, 0, len(entries))
	for _, entry := range entries {
		response = append(response, favouriteStreamPayload{
			Identifier: entry.Identifier,
			Source:     entry.Source,
		})
	}
	c.JSON(http.StatusOK, response)
}

type presetRequestPayload struct {
	Title presetTitlePayload `json:"title"`
	Tags  []presetTagPayload `json:"tags"`
}

type presetTitlePayload struct {
	Title string `json:"title"`
}

type presetTagPayload struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type presetResponsePayload struct {
	ID    int               `json:"id"`
	Title string            `json:"title"`
	Tags  []savedTagPayload `json:"tags"`
}

type savedTagPayload struct {
	ID       int    `json:"id"`
	SourceID string `json:"source_id"`
	Name     string `json:"name"`
}

func (h *httpHandler) handleSavePreset(c *gin.Context) {
	token := c.GetString(tokenContextKey)

	var request presetRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil || strings.TrimSpace(request.Title.Title) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	identity, err := h.platform.ResolveIdentity(c.Request.Context(), token)
	if err != nil {
		h.respondError(c, err)
		return
	}

	tags := make([]presets.TagInput, 0, len(request.Tags))
	for _, tag := range request.Tags {
		tags = append(tags, presets.TagInput{ID: tag.ID, Name: tag.Name})
	}

	if _, err := h.store.Save(c.Request.Context(), identity.UserID, request.Title.Title, tags); err != nil {
		h.respondError(c, err)
		return
	}

	c.Status(http.StatusOK)
}

func (h *httpHandler) handleListPresets(c *gin.Context) {
	token := c.GetString(tokenContextKey)

	identity, err := h.platform.ResolveIdentity(c.Request.Context(), token)
	if err != nil {
		h.respondError(c, err)
		return
	}

	bundles, err := h.store.List(c.Request.Context(), identity.UserID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	response := make([]presetResponsePayload, 0, len(bundles))
	for _, bundle := range bundles {
		tags := make([]savedTagPayload, 0, len(bundle.Tags))
		for _, tag := range bundle.Tags {
			tags = append(tags, savedTagPayload{ID: tag.ID, SourceID: tag.SourceID, Name: tag.Name})
		}
		response = append(response, presetResponsePayload{
			ID:    bundle.ID,
			Title: bundle.Title,
			Tags:  tags,
		})
	}
	c.JSON(http.StatusOK, response)
}

func (h *httpHandler) handleActivatePreset(c *gin.Context) {
	token := c.GetString(tokenContextKey)

	presetID, err := strconv.Atoi(c.Param("preset_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	if err := h.orchestrator.Activate(c.Request.Context(), token, presetID); err != nil {
		h.respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// respondError maps the failure taxonomy onto HTTP statuses. Bodies carry the
// kind only; callers cannot distinguish a partially applied remote update
// from one never attempted.
func (h *httpHandler) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, platform.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
	case errors.Is(err, favourites.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": "conflict"})
	case errors.Is(err, platform.ErrNotFound), errors.Is(err, presets.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
	default:
		h.logger.Error("request failed",
			zap.String("request_id", c.GetString(requestIDContextKey)),
			zap.String("path", c.FullPath()),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
	}
}
