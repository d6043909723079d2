package audit

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/kiliankoe/memebattles/internal/ai/decision"
)

// SQLiteStore keeps AI decision records in a local sqlite file.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dbPath = strings.TrimSpace(dbPath)
	if dbPath == "" {
		return nil, fmt.Errorf("empty sqlite database path")
	}
	if dbPath != ":memory:" {
		parent := filepath.Dir(dbPath)
		if parent != "" && parent != "." {
			if err := os.MkdirAll(parent, 0o755); err != nil {
				return nil, err
			}
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, pragma := range []string{`PRAGMA busy_timeout = 5000;`, `PRAGMA journal_mode = WAL;`} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := ensureSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

func ensureSchema(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS ai_decisions (
    id TEXT PRIMARY KEY,
    kind TEXT NOT NULL,
    lobby_code TEXT NOT NULL DEFAULT '',
    player_id TEXT NOT NULL DEFAULT '',
    personality_id TEXT NOT NULL DEFAULT '',
    round INTEGER NOT NULL DEFAULT 0,
    outcome TEXT NOT NULL,
    reason TEXT NOT NULL DEFAULT '',
    choice TEXT NOT NULL DEFAULT '',
    confidence REAL NOT NULL DEFAULT 0,
    duration_ms INTEGER NOT NULL DEFAULT 0,
    raw TEXT NOT NULL DEFAULT '',
    error TEXT NOT NULL DEFAULT '',
    at_ms INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_ai_decisions_at ON ai_decisions (at_ms DESC);
CREATE INDEX IF NOT EXISTS idx_ai_decisions_lobby ON ai_decisions (lobby_code, at_ms DESC);
`)
	if err != nil {
		return fmt.Errorf("create ai_decisions schema: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) Record(ctx context.Context, r decision.Record) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO ai_decisions (
    id, kind, lobby_code, player_id, personality_id, round, outcome, reason,
    choice, confidence, duration_ms, raw, error, at_ms
)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`, r.ID, string(r.Kind), r.LobbyCode, r.PlayerID, r.PersonalityID, r.Round, string(r.Outcome), r.Reason,
		r.Choice, r.Confidence, r.Duration.Milliseconds(), r.Raw, r.Error, r.At.UTC().UnixMilli())
	if err != nil {
		return fmt.Errorf("insert ai decision: %w", err)
	}
	return nil
}

// Recent returns up to limit records, newest first.
func (s *SQLiteStore) Recent(ctx context.Context, limit int) ([]decision.Record, error) {
	return s.query(ctx, `SELECT id, kind, lobby_code, player_id, personality_id, round, outcome, reason,
    choice, confidence, duration_ms, raw, error, at_ms
FROM ai_decisions ORDER BY at_ms DESC, rowid DESC LIMIT ?`, clampLimit(limit))
}

// ForLobby returns up to limit records of one lobby, newest first.
func (s *SQLiteStore) ForLobby(ctx context.Context, code string, limit int) ([]decision.Record, error) {
	return s.query(ctx, `SELECT id, kind, lobby_code, player_id, personality_id, round, outcome, reason,
    choice, confidence, duration_ms, raw, error, at_ms
FROM ai_decisions WHERE lobby_code = ? ORDER BY at_ms DESC, rowid DESC LIMIT ?`, code, clampLimit(limit))
}

// Prune deletes records older than cutoff and reports how many went.
func (s *SQLiteStore) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM ai_decisions WHERE at_ms < ?`, cutoff.UTC().UnixMilli())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *SQLiteStore) query(ctx context.Context, q string, args ...any) ([]decision.Record, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []decision.Record
	for rows.Next() {
		var (
			r           decision.Record
			kind, outc  string
			durMs, atMs int64
		)
		if err := rows.Scan(&r.ID, &kind, &r.LobbyCode, &r.PlayerID, &r.PersonalityID, &r.Round, &outc, &r.Reason,
			&r.Choice, &r.Confidence, &durMs, &r.Raw, &r.Error, &atMs); err != nil {
			return nil, err
		}
		r.Kind = decision.Kind(kind)
		r.Outcome = decision.Outcome(outc)
		r.Duration = time.Duration(durMs) * time.Millisecond
		r.At = time.UnixMilli(atMs).UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > 1000 {
		return 100
	}
	return limit
}
