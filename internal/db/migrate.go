package db

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	migrate "github.com/golang-migrate/migrate/v4"
	// Blank imports register the postgres driver and file source for golang-migrate.
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/optisaas25/fiscal-engine/internal/models"
)

// ConnectAndMigrate opens the database from dsn and brings the schema up to
// date. With MIGRATIONS=1 the SQL migrations in ./migrations run via
// golang-migrate; otherwise GORM AutoMigrate is used (dev convenience).
func ConnectAndMigrate(dsn string) (*gorm.DB, error) {
	dsn = NormalizeDSN(dsn)
	if dsn == "" {
		return nil, fmt.Errorf("DATABASE_DSN est vide, vérifiez la configuration de l'environnement")
	}
	var db *gorm.DB
	var err error
	logLevel := logger.Silent
	if os.Getenv("DB_DEBUG") == "1" {
		logLevel = logger.Info
	}
	cfg := &gorm.Config{Logger: logger.Default.LogMode(logLevel)}
	for i := 0; i < 10; i++ {
		db, err = open(dsn, cfg)
		if err == nil {
			break
		}
		log.Warn().Err(err).Msg("retrying DB connection")
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect database after retries: %w", err)
	}

	if pingErr := db.Exec("SELECT 1").Error; pingErr != nil {
		return nil, fmt.Errorf("db ping failed: %w", pingErr)
	}

	log.Info().Str("dsn", MaskDSN(dsn)).Msg("database connected")

	if v := strings.ToLower(os.Getenv("MIGRATIONS")); v == "1" || v == "true" || v == "yes" {
		if err := runSQLMigrations(dsn); err != nil {
			return nil, fmt.Errorf("sql migrations failed: %w", err)
		}
	} else {
		if err := AutoMigrate(db); err != nil {
			return nil, err
		}
	}

	for _, table := range []string{"documents", "payments", "sequence_counters"} {
		if !db.Migrator().HasTable(table) {
			return nil, errors.New("missing table after migration: " + table)
		}
	}

	if err := NormalizeLegacyDraftNumbers(db); err != nil {
		return nil, fmt.Errorf("draft number normalization failed: %w", err)
	}
	return db, nil
}

func open(dsn string, cfg *gorm.Config) (*gorm.DB, error) {
	if IsSQLiteDSN(dsn) {
		return gorm.Open(sqlite.Open(dsn), cfg)
	}
	return gorm.Open(postgres.Open(dsn), cfg)
}

// AutoMigrate creates or updates the engine's tables.
func AutoMigrate(db *gorm.DB) error {
	modelsToMigrate := []interface{}{
		&models.Client{}, &models.Folder{}, &models.Document{}, &models.DocumentLine{},
		&models.Payment{}, &models.SequenceCounter{},
	}
	for _, m := range modelsToMigrate {
		if migErr := db.AutoMigrate(m); migErr != nil {
			return fmt.Errorf("automigrate %T: %w", m, migErr)
		}
	}
	return nil
}

// NormalizeLegacyDraftNumbers rewrites the two historical draft-number formats
// (BROUILLON-<n> and PROV-<n>) to the canonical DRAFT-<n> token. Status stays
// the only runtime draft signal; this is a one-time data concern.
func NormalizeLegacyDraftNumbers(db *gorm.DB) error {
	var drafts []models.Document
	if err := db.Where("status = ?", models.StatusDraft).Find(&drafts).Error; err != nil {
		return err
	}
	renamed := 0
	for _, d := range drafts {
		if models.IsDraftNumber(d.Number) || models.IsOfficialNumber(d.Number) {
			continue
		}
		number := d.Number
		for _, prefix := range []string{"BROUILLON-", "PROV-"} {
			if strings.HasPrefix(number, prefix) {
				number = "DRAFT-" + strings.TrimPrefix(number, prefix)
				break
			}
		}
		if !models.IsDraftNumber(number) {
			number = models.NewDraftNumber()
		}
		if err := db.Model(&models.Document{}).Where("id = ?", d.ID).
			Update("number", number).Error; err != nil {
			return err
		}
		renamed++
	}
	if renamed > 0 {
		log.Info().Int("count", renamed).Msg("normalized legacy draft numbers")
	}
	return nil
}

// runSQLMigrations executes migrations in ./migrations using the golang-migrate
// file source. Only supported against postgres DSNs.
func runSQLMigrations(dsn string) error {
	m, err := migrate.New("file://migrations", dsn)
	if err != nil {
		return err
	}
	if err = m.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}
	return nil
}
