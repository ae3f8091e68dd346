// Package storage provides persistent storage using SQLite.
package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Storage is the SQLite-backed swap ledger.
type Storage struct {
	db     *sql.DB
	dbPath string
	mu     sync.RWMutex
}

// Config holds storage configuration.
type Config struct {
	DataDir string `yaml:"data_dir"`
}

// New creates a new Storage instance.
func New(cfg *Config) (*Storage, error) {
	dataDir := expandPath(cfg.DataDir)

	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "bridgesync.db")

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// SQLite only supports one writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	s := &Storage{
		db:     db,
		dbPath: dbPath,
	}

	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Storage) Close() error {
	return s.db.Close()
}

// DB returns the underlying database connection.
func (s *Storage) DB() *sql.DB {
	return s.db
}

// initSchema creates all database tables.
func (s *Storage) initSchema() error {
	schema := `
	-- Bridge swap ledger. Rows are status-mutated, never deleted.
	CREATE TABLE IF NOT EXISTS bridge_swaps (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		type TEXT NOT NULL,
		status TEXT NOT NULL,

		asset_send TEXT NOT NULL,
		asset_receive TEXT NOT NULL,
		-- Amounts stored as decimal strings; they can exceed 64 bits on
		-- 18-decimal chains.
		send_amount TEXT,
		receive_amount TEXT,

		preimage TEXT,
		preimage_hash TEXT NOT NULL,
		preimage_seed TEXT,

		key_index INTEGER NOT NULL DEFAULT 0,
		refund_key_index INTEGER NOT NULL DEFAULT 0,

		claim_address TEXT,
		refund_address TEXT,
		lockup_address TEXT,

		claim_tx TEXT,
		refund_tx TEXT,
		lockup_tx TEXT,

		invoice TEXT,
		expected_amount TEXT,
		onchain_amount TEXT,
		timeout_block_height INTEGER NOT NULL DEFAULT 0,

		-- HTLC detail blobs, JSON
		claim_details TEXT,
		lockup_details TEXT,

		chain_id INTEGER NOT NULL DEFAULT 0,

		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_bridge_swaps_user ON bridge_swaps(user_id);
	CREATE INDEX IF NOT EXISTS idx_bridge_swaps_preimage_hash ON bridge_swaps(preimage_hash);
	CREATE INDEX IF NOT EXISTS idx_bridge_swaps_status ON bridge_swaps(status);

	-- Settings/config table
	CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT,
		updated_at INTEGER
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// expandPath expands ~ to home directory.
func expandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[1:])
	}
	return path
}
