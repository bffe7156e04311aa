package database

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// Pool defaults. SQLite serializes writers anyway, so a handful of
// connections is enough.
const (
	defaultMaxOpenConns = 4
	defaultMaxIdleConns = 2
)

// Config carries the open parameters for one SQLite file.
type Config struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// dsn renders the connection string. WAL keeps readers unblocked during
// writes, busy_timeout makes concurrent writers queue instead of failing,
// and foreign keys are enforced per connection.
func (c Config) dsn() string {
	params := []string{
		"_journal_mode=WAL",
		"_busy_timeout=5000",
		"_foreign_keys=on",
	}
	return fmt.Sprintf("file:%s?%s", c.Path, strings.Join(params, "&"))
}

// DB is the open connection pool plus the logger migrations report to.
type DB struct {
	*sql.DB
	logger *zap.Logger
}

// New opens the SQLite database and verifies the connection. A zero
// ConnMaxLifetime keeps connections for the life of the process.
func New(cfg Config, logger *zap.Logger) (*DB, error) {
	sqlDB, err := sql.Open("sqlite3", cfg.dsn())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	open, idle := cfg.MaxOpenConns, cfg.MaxIdleConns
	if open <= 0 {
		open = defaultMaxOpenConns
	}
	if idle <= 0 {
		idle = defaultMaxIdleConns
	}
	sqlDB.SetMaxOpenConns(open)
	sqlDB.SetMaxIdleConns(idle)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	logger.Info("Opened database", zap.String("path", cfg.Path))
	return &DB{DB: sqlDB, logger: logger}, nil
}

func (db *DB) Close() error {
	db.logger.Info("Closing database")
	return db.DB.Close()
}
