package sqlite

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/companion/pkg/domain/interfaces"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned (wrapped) when a row does not exist
var ErrNotFound = interfaces.ErrNotFound

const schema = `
PRAGMA busy_timeout = 5000;
CREATE TABLE IF NOT EXISTS chat_history (
	owner_id      TEXT NOT NULL,
	character_id  TEXT NOT NULL,
	messages_json TEXT NOT NULL,
	updated_at    INTEGER NOT NULL,
	PRIMARY KEY (owner_id, character_id)
);
CREATE TABLE IF NOT EXISTS character_memory (
	owner_id     TEXT NOT NULL,
	character_id TEXT NOT NULL,
	content      TEXT NOT NULL,
	updated_at   INTEGER NOT NULL,
	PRIMARY KEY (owner_id, character_id)
);
CREATE TABLE IF NOT EXISTS fired_trigger (
	owner_id    TEXT NOT NULL,
	trigger_key TEXT NOT NULL,
	fired_at    INTEGER NOT NULL,
	PRIMARY KEY (owner_id, trigger_key)
);
CREATE INDEX IF NOT EXISTS idx_fired_trigger_owner_fired_at ON fired_trigger (owner_id, fired_at DESC);
`

// SQLite is a single-file repository backed by the pure-Go modernc driver
type SQLite struct {
	db              *sql.DB
	chatHistory     *chatHistoryRepository
	characterMemory *characterMemoryRepository
	firedTrigger    *firedTriggerRepository
}

var _ interfaces.Repository = &SQLite{}

// New opens (and creates when missing) the database at path and applies the schema.
// ":memory:" opens a private in-memory database.
func New(ctx context.Context, path string) (*SQLite, error) {
	dsn := path
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, goerr.Wrap(err, "failed to create database directory", goerr.V("path", path))
		}
		dsn = path + "?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open sqlite database", goerr.V("path", path))
	}

	// A single connection keeps ":memory:" databases shared and avoids SQLITE_BUSY on writes.
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, goerr.Wrap(err, "failed to ping sqlite database", goerr.V("path", path))
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, goerr.Wrap(err, "failed to initialize sqlite schema", goerr.V("path", path))
	}

	return &SQLite{
		db:              db,
		chatHistory:     &chatHistoryRepository{db: db},
		characterMemory: &characterMemoryRepository{db: db},
		firedTrigger:    &firedTriggerRepository{db: db},
	}, nil
}

func (s *SQLite) ChatHistory() interfaces.ChatHistoryRepository {
	return s.chatHistory
}

func (s *SQLite) CharacterMemory() interfaces.CharacterMemoryRepository {
	return s.characterMemory
}

func (s *SQLite) FiredTrigger() interfaces.FiredTriggerRepository {
	return s.firedTrigger
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
