package presets

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

var (
	// ErrNotFound indicates no stored title matches the requested id.
	ErrNotFound = errors.New("presets: not found")

	errMissingDatabase = errors.New("database handle is required")
	noOpLogger         = zap.NewNop()
)

// StoreConfig describes the dependencies required by the preset store.
type StoreConfig struct {
	Database *gorm.DB
	Logger   *zap.Logger
}

// Store maps presets onto the stream_title and stream_tag tables.
type Store struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewStore constructs the store with validated configuration.
func NewStore(cfg StoreConfig) (*Store, error) {
	if cfg.Database == nil {
		return nil, fmt.Errorf("presets: %w", errMissingDatabase)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &Store{db: cfg.Database, logger: logger}, nil
}

// Save inserts the title row first, then dispatches every tag insert as a
// concurrent sibling and requires all of them to succeed. When a tag insert
// fails the title row stays persisted; there is no compensating rollback.
func (s *Store) Save(ctx context.Context, userID, title string, tags []TagInput) (Preset, error) {
	titleRow := StreamTitle{
		AssociatedUser: userID,
		Title:          title,
	}
	if err := s.db.WithContext(ctx).Create(&titleRow).Error; err != nil {
		s.logger.Error("title insert failed", zap.String("user_id", userID), zap.Error(err))
		return Preset{}, fmt.Errorf("presets: title insert failed: %w", err)
	}

	saved := make([]StreamTag, len(tags))
	var group errgroup.Group
	for index, tag := range tags {
		index := index
		row := StreamTag{
			AssociatedTitle: titleRow.ID,
			SourceID:        tag.ID,
			Name:            tag.Name,
		}
		group.Go(func() error {
			if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
				return err
			}
			saved[index] = row
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		s.logger.Error("tag insert failed",
			zap.String("user_id", userID),
			zap.Int("title_id", titleRow.ID),
			zap.Error(err))
		return Preset{}, fmt.Errorf("presets: tag insert failed: %w", err)
	}

	return Preset{ID: titleRow.ID, Title: titleRow.Title, Tags: saved}, nil
}

// List returns every preset saved by the user, tags included.
func (s *Store) List(ctx context.Context, userID string) ([]Preset, error) {
	var titles []StreamTitle
	err := s.db.WithContext(ctx).
		Where("associated_user = ?", userID).
		Find(&titles).Error
	if err != nil {
		s.logger.Error("title list failed", zap.String("user_id", userID), zap.Error(err))
		return nil, fmt.Errorf("presets: title list failed: %w", err)
	}

	bundles := make([]Preset, 0, len(titles))
	for _, titleRow := range titles {
		tags, err := s.loadTags(ctx, titleRow.ID)
		if err != nil {
			return nil, err
		}
		bundles = append(bundles, Preset{ID: titleRow.ID, Title: titleRow.Title, Tags: tags})
	}
	return bundles, nil
}

// Get joins the title row with all tags referencing it.
func (s *Store) Get(ctx context.Context, titleID int) (Preset, error) {
	var titleRow StreamTitle
	err := s.db.WithContext(ctx).
		Where("id = ?", titleID).
		Take(&titleRow).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Preset{}, ErrNotFound
	}
	if err != nil {
		s.logger.Error("title lookup failed", zap.Int("title_id", titleID), zap.Error(err))
		return Preset{}, fmt.Errorf("presets: title lookup failed: %w", err)
	}

	tags, err := s.loadTags(ctx, titleRow.ID)
	if err != nil {
		return Preset{}, err
	}
	return Preset{ID: titleRow.ID, Title: titleRow.Title, Tags: tags}, nil
}

func (s *Store) loadTags(ctx context.Context, titleID int) ([]StreamTag, error) {
	var tags []StreamTag
	err := s.db.WithContext(ctx).
		Where("associated_title = ?", titleID).
		Find(&tags).Error
	if err != nil {
		s.logger.Error("tag lookup failed", zap.Int("title_id", titleID), zap.Error(err))
		return nil, fmt.Errorf("presets: tag lookup failed: %w", err)
	}
	return tags, nil
}
