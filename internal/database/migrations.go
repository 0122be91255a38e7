package database

import (
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"shrimp/internal/domain"
)

// LinkModels are the shrimp tables. Order matters because of foreign keys.
func LinkModels() []interface{} {
	return []interface{}{
		&domain.Link{},
		&domain.Click{},
	}
}

// StatsModels are the tide-charts tables.
func StatsModels() []interface{} {
	return []interface{}{
		&domain.Activity{},
		&domain.Message{},
		&domain.ToolEvent{},
		&domain.Session{},
	}
}

// AutoMigrate creates or updates the tables for models.
func AutoMigrate(db *gorm.DB, log *zap.Logger, models ...interface{}) error {
	log.Info("starting database auto-migration", zap.Int("total_models", len(models)))

	for i, model := range models {
		modelName := fmt.Sprintf("%T", model)
		log.Debug("migrating model",
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
