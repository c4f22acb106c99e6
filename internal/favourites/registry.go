package favourites

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	// ErrConflict indicates the user already favourited the channel on that source.
	ErrConflict = errors.New("favourites: already registered")

	errMissingDatabase   = errors.New("database handle is required")
	errMissingIdentifier = errors.New("channel identifier is required")
	noOpLogger           = zap.NewNop()
)

// RegistryConfig describes the dependencies required by the favourite registry.
type RegistryConfig struct {
	Database *gorm.DB
	Logger   *zap.Logger
}

// Registry enforces at-most-one favourite per (user, identifier, source) triple.
type Registry struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewRegistry constructs the registry with validated configuration.
func NewRegistry(cfg RegistryConfig) (*Registry, error) {
	if cfg.Database == nil {
		return nil, fmt.Errorf("favourites: %w", errMissingDatabase)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &Registry{db: cfg.Database, logger: logger}, nil
}

// Register saves a favourite unless the exact triple already exists.
// The existence check runs before the insert; the unique index backs it up
// so two concurrent registrations cannot both land.
func (r *Registry) Register(ctx context.Context, userID int, identifier string, source StreamSource) error {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return fmt.Errorf("favourites: %w", errMissingIdentifier)
	}

	var matching int64
	err := r.db.WithContext(ctx).
		Model(&FavouriteStream{}).
		Where("associated_user = ? AND identifier = ? AND source = ?", userID, identifier, source.String()).
		Count(&matching).Error
	if err != nil {
		r.logger.Error("favourite lookup failed",
			zap.Int("user_id", userID),
			zap.String("identifier", identifier),
			zap.Error(err))
		return fmt.Errorf("favourites: lookup failed: %w", err)
	}
	if matching > 0 {
		return ErrConflict
	}

	entry := FavouriteStream{
		AssociatedUser: userID,
		Identifier:     identifier,
		Source:         source.String(),
	}
	if err := r.db.WithContext(ctx).Create(&entry).Error; err != nil {
		if isDuplicateKey(err) {
			return ErrConflict
		}
		r.logger.Error("favourite insert failed",
			zap.Int("user_id", userID),
			zap.String("identifier", identifier),
			zap.Error(err))
		return fmt.Errorf("favourites: insert failed: %w", err)
	}

	return nil
}

// List returns every favourite saved by the user, in storage order.
func (r *Registry) List(ctx context.Context, userID int) ([]FavouriteStream, error) {
	var entries []FavouriteStream
	err := r.db.WithContext(ctx).
		Where("associated_user = ?", userID).
		Find(&entries).Error
	if err != nil {
		r.logger.Error("favourite list failed", zap.Int("user_id", userID), zap.Error(err))
		return nil, fmt.Errorf("favourites: list failed: %w", err)
	}
	return entries, nil
}

func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
