package database

import (
	"fmt"

	"proctor-go/internal/config"
	logging "proctor-go/internal/logging"
	"proctor-go/internal/models"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

func Init(log *zap.Logger) error {
	var err error
	dbConf := config.Conf.Database
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
		dbConf.Host, dbConf.User, dbConf.Password, dbConf.DBName, dbConf.Port)

	gormLogger := logging.NewGormZapLogger(log)
	gormLogger.LogLevel = logger.Warn

	DB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormLogger,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	log.Info("Database connection established successfully.")
	return runMigrations(log)
}

func runMigrations(log *zap.Logger) error {
	// GORM's AutoMigrate will create tables, columns, and foreign keys.
	// It will NOT create the composite ordering indexes, handled below.
	err := DB.AutoMigrate(
		&models.AssessmentSession{},
		&models.Answer{},
		&models.SecurityEvent{},
		&models.WebcamFrameRecord{},
		&models.PlagiarismCheck{},
		&models.TypingAnalysis{},
	)
	if err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}
	log.Info("Database migrations completed successfully.")

	// Ordering index matching the log-read path: timestamp first, row id as
	// the insertion-sequence tiebreak.
	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_security_events_order ON security_events (session_id, timestamp, id);`,
		`CREATE INDEX IF NOT EXISTS idx_frames_order ON webcam_frame_records (session_id, sequence_number);`,
		`CREATE INDEX IF NOT EXISTS idx_checks_order ON plagiarism_checks (session_id, created_at, id);`,
		`CREATE INDEX IF NOT EXISTS idx_typing_order ON typing_analyses (session_id, created_at, id);`,
	}
	for _, stmt := range indexes {
		if err := DB.Exec(stmt).Error; err != nil {
			return fmt.Errorf("failed to create custom index: %w", err)
		}
	}
	log.Info("Custom indexes ensured successfully.")
	return nil
}
