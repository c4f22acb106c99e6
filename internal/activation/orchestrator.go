// Package activation pushes a stored preset onto the user's live channel.
package activation

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/beemstream/user-config-service/internal/platform"
	"github.com/beemstream/user-config-service/internal/presets"
)

var (
	errMissingPlatform = errors.New("platform client is required")
	errMissingPresets  = errors.New("preset store is required")
	noOpLogger         = zap.NewNop()
)

// ChannelAPI is the slice of the platform client the orchestrator consumes.
type ChannelAPI interface {
	ResolveIdentity(ctx context.Context, token string) (platform.Identity, error)
	GetChannel(ctx context.Context, identity platform.Identity, broadcasterID string) (platform.ChannelState, error)
	ModifyChannel(ctx context.Context, identity platform.Identity, broadcasterID string, update platform.ChannelUpdate) error
	ReplaceTags(ctx context.Context, identity platform.Identity, broadcasterID string, tagIDs []string) error
}

// PresetLoader loads a stored preset by title id.
type PresetLoader interface {
	Get(ctx context.Context, titleID int) (presets.Preset, error)
}

// OrchestratorConfig describes the dependencies of the activation pipeline.
type OrchestratorConfig struct {
	Platform ChannelAPI
	Presets  PresetLoader
	Logger   *zap.Logger
}

// Orchestrator runs one activation pass: resolve the caller, load the preset,
// probe the remote channel, then dispatch the channel update and the tag
// replacement as concurrent siblings and join both.
type Orchestrator struct {
	platform ChannelAPI
	presets  PresetLoader
	logger   *zap.Logger
}

// NewOrchestrator constructs the orchestrator with validated dependencies.
func NewOrchestrator(cfg OrchestratorConfig) (*Orchestrator, error) {
	if cfg.Platform == nil {
		return nil, fmt.Errorf("activation: %w", errMissingPlatform)
	}
	if cfg.Presets == nil {
		return nil, fmt.Errorf("activation: %w", errMissingPresets)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &Orchestrator{platform: cfg.Platform, presets: cfg.Presets, logger: logger}, nil
}

// Activate pushes the preset identified by presetID to the caller's live
// channel. Stages run sequentially up to the dispatch, which fans out the two
// independent remote writes and waits for both regardless of each other's
// outcome. Neither write is rolled back when the other fails; the remote
// mutations may end up partially applied.
func (o *Orchestrator) Activate(ctx context.Context, token string, presetID int) error {
	identity, err := o.platform.ResolveIdentity(ctx, token)
	if err != nil {
		o.logger.Warn("identity resolution failed", zap.Error(err))
		return err
	}

	preset, err := o.presets.Get(ctx, presetID)
	if err != nil {
		o.logger.Warn("preset load failed", zap.Int("preset_id", presetID), zap.Error(err))
		return err
	}

	channel, err := o.platform.GetChannel(ctx, identity, identity.UserID)
	if err != nil {
		o.logger.Warn("channel probe failed",
			zap.String("broadcaster_id", identity.UserID),
			zap.Error(err))
		return err
	}

	update := platform.ChannelUpdate{
		Title:    preset.Title,
		Language: channel.Language,
		GameID:   channel.GameID,
	}

	tagIDs := make([]string, 0, len(preset.Tags))
	for _, tag := range preset.Tags {
		tagIDs = append(tagIDs, tag.SourceID)
	}
	// The replace call clears the remote tags instead of sending the loaded
	// identifiers. Long-standing behavior callers rely on; see DESIGN.md
	// before changing it.
	_ = tagIDs
	replaceIDs := []string{}

	var group errgroup.Group
	group.Go(func() error {
		return o.platform.ModifyChannel(ctx, identity, identity.UserID, update)
	})
	group.Go(func() error {
		return o.platform.ReplaceTags(ctx, identity, identity.UserID, replaceIDs)
	})
	if err := group.Wait(); err != nil {
		o.logger.Warn("channel update dispatch failed",
			zap.String("broadcaster_id", identity.UserID),
			zap.Int("preset_id", presetID),
			zap.Error(err))
		return err
	}

	o.logger.Info("preset activated",
		zap.String("broadcaster_id", identity.UserID),
		zap.Int("preset_id", presetID),
		zap.String("title", preset.Title))
	return nil
}
