package database

import (
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/beemstream/user-config-service/internal/presets"
)

const migrationRemoveOrphanedStreamTags = "2026-08-12_remove_orphaned_stream_tags"

type migrationRecord struct {
	Name             string `gorm:"column:name;primaryKey;size:190;not null"`
	AppliedAtSeconds int64  `gorm:"column:applied_at_s;not null"`
}

func (migrationRecord) TableName() string {
	return "db_migrations"
}

type migrationDefinition struct {
	name  string
	apply func(*gorm.DB) error
}

func applyMigrations(db *gorm.DB, logger *zap.Logger) error {
	migrations := []migrationDefinition{
		{name: migrationRemoveOrphanedStreamTags, apply: removeOrphanedStreamTags},
	}

	for _, migration := range migrations {
		var record migrationRecord
		err := db.Where("name = ?", migration.name).Take(&record).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := migration.apply(db); err != nil {
			return err
		}
		appliedAt := time.Now().UTC().Unix()
		if err := db.Create(&migrationRecord{Name: migration.name, AppliedAtSeconds: appliedAt}).Error; err != nil {
			return err
		}
		if logger != nil {
			logger.Info("database migration applied", zap.String("migration", migration.name))
		}
	}
	return nil
}

// removeOrphanedStreamTags clears tag rows whose title row no longer exists.
// Title deletion never cascaded, so older databases can carry orphans.
func removeOrphanedStreamTags(db *gorm.DB) error {
	return db.
		Where("associated_title NOT IN (?)",
			db.Model(&presets.StreamTitle{}).Select("id")).
		Delete(&presets.StreamTag{}).Error
}
