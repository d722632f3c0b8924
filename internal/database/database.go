package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/globetrotter/globetrotter-api/internal/domain"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const sqlitePrefix = "sqlite:"

var ErrUnsupportedDSN = errors.New("unsupported database url")

// Open connects to postgres ("postgres://", "postgresql://" or key=value DSNs)
// or sqlite ("sqlite:<path>" or "sqlite:file::memory:?cache=shared").
func Open(ctx context.Context, dsn string) (*gorm.DB, error) {
	return OpenWithLogger(ctx, dsn, logger.Default.LogMode(logger.Warn))
}

func OpenWithLogger(ctx context.Context, dsn string, gormLogger logger.Interface) (*gorm.DB, error) {
	dsn = strings.TrimSpace(dsn)
	cfg := &gorm.Config{
		Logger:         gormLogger,
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	}

	var (
		db       *gorm.DB
		err      error
		isSQLite bool
	)
	switch {
	case strings.HasPrefix(dsn, sqlitePrefix):
		isSQLite = true
		db, err = gorm.Open(sqliteDialector(strings.TrimPrefix(dsn, sqlitePrefix)), cfg)
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"), strings.Contains(dsn, "host="):
		db, err = gorm.Open(postgres.Open(dsn), cfg)
	default:
		return nil, ErrUnsupportedDSN
	}
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if isSQLite {
		// One connection serialises writers and keeps shared in-memory databases alive.
		sqlDB.SetMaxOpenConns(1)
		sqlDB.SetConnMaxLifetime(0)
	} else {
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
		sqlDB.SetConnMaxIdleTime(5 * time.Minute)
		sqlDB.SetMaxOpenConns(25)
		sqlDB.SetMaxIdleConns(5)
	}

	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

func sqliteDialector(path string) gorm.Dialector {
	if !strings.Contains(path, "_foreign_keys") {
		sep := "?"
		if strings.Contains(path, "?") {
			sep = "&"
		}
		path += sep + "_foreign_keys=on"
	}
	return sqlite.Open(path)
}

func Models() []any {
	return []any{
		&domain.User{},
		&domain.Session{},
		&domain.RevokedAccessToken{},
		&domain.PasswordReset{},
	}
}

func AutoMigrate(ctx context.Context, db *gorm.DB) error {
	if err := db.WithContext(ctx).AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}

func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
