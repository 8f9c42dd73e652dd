package config

import (
	"fmt"
	"log"
	"time"

	"review-hub-backend/db/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// allModels defines all models that should be migrated.
// This is the only place you need to add new models
var allModels = []interface{}{
	&models.Integration{},
	&models.Review{},
	&models.ImportJob{},
	&models.ImportChunk{},
	&models.ImportError{},
	&models.EmailLog{},
}

// PostgresDSN builds the connection string from DB_* and POSTGRES_* variables.
func PostgresDSN() string {
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=%s",
		GetEnv("DB_HOST", "localhost"),
		GetEnv("POSTGRES_USER"),
		GetEnv("POSTGRES_PASSWORD"),
		GetEnv("POSTGRES_DB"),
		GetEnv("DB_PORT", "5432"),
		GetEnv("DB_SSLMODE", "disable"),
		GetEnv("DB_TIMEZONE", "UTC"),
	)
}

func ConfigureDatabase() *gorm.DB {
	db, err := gorm.Open(postgres.Open(PostgresDSN()), &gorm.Config{
		Logger:  gormlogger.Default.LogMode(gormlogger.Warn),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		log.Fatalf("[DB-CONNECT] Failed to connect to database: %v", err)
	}

	if err := Migrate(db); err != nil {
		log.Fatalf("failed to migrate tables: %v", err)
	}
	log.Println("Tables migrated successfully")

	sqlDB, err := db.DB()
	if err != nil {
		log.Fatalf("[DB-CONNECT] Failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(GetEnvInt("DB_MAX_OPEN_CONNS", 30))
	sqlDB.SetMaxIdleConns(GetEnvInt("DB_MAX_IDLE_CONNS", 10))
	sqlDB.SetConnMaxLifetime(time.Hour)

	return db
}

// Migrate creates or updates every table and the extra indexes.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(allModels...); err != nil {
		return err
	}
	return CreateActiveImportJobIndex(db)
}
