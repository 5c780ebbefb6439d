package database

import (
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"ttemp-link/internal/domain"
)

// AutoMigrate creates or updates the schema for every domain model.
func AutoMigrate(db *gorm.DB, log *zap.Logger) error {
	log.Info("starting database auto-migration")

	// Order matters because of foreign keys.
	models := []interface{}{
		&domain.User{},
		&domain.Link{},
		&domain.DailyStat{},
		&domain.ClickEvent{},
		&domain.AnalyticsSettings{},
		&domain.GeoCountryDatabase{},
	}

	log.Info("migrating database models", zap.Int("total_models", len(models)))

	for i, model := range models {
		modelName := fmt.Sprintf("%T", model)
		log.Info("migrating model",
			zap.String("model", modelName),
			zap.Int("step", i+1),
			zap.Int("total", len(models)))

		if err := db.AutoMigrate(model); err != nil {
			log.Error("failed to migrate model",
				zap.String("model", modelName),
				zap.Error(err))
			return fmt.Errorf("failed to migrate model %s: %w", modelName, err)
		}
	}

	log.Info("database auto-migration completed successfully", zap.Int("migrated_models", len(models)))
	return nil
}

// SeedData inserts the default analytics settings row when it does not exist yet.
func SeedData(db *gorm.DB, log *zap.Logger) error {
	settings := domain.AnalyticsSettings{ID: domain.SingletonID}
	result := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&settings)
	if result.Error != nil {
		log.Error("failed to seed analytics settings", zap.Error(result.Error))
		return fmt.Errorf("failed to seed analytics settings: %w", result.Error)
	}

	if result.RowsAffected > 0 {
		log.Info("seeded default analytics settings")
	}
	return nil
}
