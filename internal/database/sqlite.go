package database

import (
	"fmt"

	sqlite "github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/beemstream/user-config-service/internal/favourites"
	"github.com/beemstream/user-config-service/internal/presets"
)

// OpenSQLite establishes a SQLite connection and performs schema migrations.
func OpenSQLite(path string, logger *zap.Logger) (*gorm.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	if err := dedupeFavouriteStreams(db); err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(
		&favourites.FavouriteStream{},
		&presets.StreamTitle{},
		&presets.StreamTag{},
		&migrationRecord{},
	); err != nil {
		return nil, err
	}

	if err := applyMigrations(db, logger); err != nil {
		return nil, err
	}

	if logger != nil {
		logger.Info("database initialized", zap.String("path", path))
	}

	return db, nil
}

// dedupeFavouriteStreams removes duplicate favourite triples left behind by
// the pre-constraint era so the unique index can be created. Runs before
// AutoMigrate and tolerates the table not existing yet.
func dedupeFavouriteStreams(db *gorm.DB) error {
	if !db.Migrator().HasTable(&favourites.FavouriteStream{}) {
		return nil
	}
	const removeDuplicates = `DELETE FROM favourite_streams WHERE id NOT IN (
		SELECT MIN(id) FROM favourite_streams GROUP BY associated_user, identifier, source
	);`
	return db.Exec(removeDuplicates).Error
}
