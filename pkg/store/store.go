// Package store persists sessions, tokens, burns, and the vanity address
// pool behind gorm. MySQL is the production backend; SQLite serves local
// development and tests.
package store

import (
	"fmt"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/clawpad/clawpad/pkg/config"
)

// Store wraps the database handle.
type Store struct {
	db *gorm.DB
	// MySQL supports FOR UPDATE SKIP LOCKED; SQLite serializes writers
	// instead and relies on the compare-and-swap reservation path.
	skipLocked bool
}

// Open connects to the configured backend and runs migrations.
func Open(cfg config.DatabaseConfig) (*Store, error) {
	var (
		dial gorm.Dialector
		skip bool
	)
	switch cfg.Driver {
	case "mysql":
		dial = mysql.Open(cfg.DSN)
		skip = true
	case "sqlite", "":
		dial = sqlite.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dial, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	s := &Store{db: db, skipLocked: skip}
	if err := s.Migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

// New wraps an existing gorm handle (used by tests).
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Migrate creates or updates the schema.
func (s *Store) Migrate() error {
	if err := s.db.AutoMigrate(
		&VanityAddress{},
		&Session{},
		&Token{},
		&Burn{},
		&FeeDistribution{},
	); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// DB exposes the underlying handle.
func (s *Store) DB() *gorm.DB {
	return s.db
}
