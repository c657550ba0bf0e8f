package database

import (
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"skolu-backend/config"
	"skolu-backend/logger"
	"skolu-backend/models"

	"go.uber.org/zap"
)

func Connect() *gorm.DB {
	db, err := gorm.Open(postgres.Open(config.AppConfig.DatabaseURL), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		logger.Log.Fatal("failed to connect to database", zap.Error(err))
	}

	logger.Log.Info("database connected")

	err = db.AutoMigrate(
		&models.User{},
		&models.Group{},
		&models.GroupMember{},
		&models.Expense{},
		&models.ExpenseSplit{},
		&models.Settlement{},
		&models.Activity{},
		&models.Invitation{},
	)
	if err != nil {
		logger.Log.Fatal("failed to migrate database", zap.Error(err))
	}

	logger.Log.Info("database migrated")
	return db
}
