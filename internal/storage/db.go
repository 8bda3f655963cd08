package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"
)

type Repository struct {
	db     *sql.DB
	logger *slog.Logger
}

func New(ctx context.Context, dbPath string, logger *slog.Logger) (*Repository, error) {
	// foreign_keys is per-connection; the DSN pragma applies it to every
	// connection the pool opens.
	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)")
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	repo := &Repository{db: db, logger: logger}
	if err := repo.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

func (r *Repository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

func (r *Repository) migrate(ctx context.Context) error {
	statements := []string{
		`PRAGMA journal_mode = WAL;`,
		`CREATE TABLE IF NOT EXISTS devices (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			yandex_type TEXT NOT NULL,
			adb_host TEXT,
			adb_port INTEGER,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS bindings (
			id TEXT PRIMARY KEY,
			device_id TEXT NOT NULL REFERENCES devices(id) ON DELETE CASCADE,
			capability TEXT NOT NULL,
			action_type TEXT NOT NULL,
			action_config_json TEXT NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS user_tokens (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			provider TEXT NOT NULL,
			access_token TEXT NOT NULL,
			access_token_hash TEXT,
			refresh_token TEXT,
			expires_at TEXT,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
	}

	for _, stmt := range statements {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate failed: %w", err)
		}
	}
	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_bindings_device ON bindings(device_id);`,
		`CREATE INDEX IF NOT EXISTS idx_user_tokens_hash ON user_tokens(provider, access_token_hash);`,
	}
	for _, stmt := range indexes {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// TokenOpener decrypts a sealed token; legacy rows may hold plaintext, which
// the opener passes through unchanged.
type TokenOpener interface {
	Decrypt(sealed string) string
}

// TokenHasher hashes a plaintext token to its lookup key.
type TokenHasher func(token string) string

// BackfillTokenHashes is the one-time migration for rows created before the
// access_token_hash column existed. It decrypts each such row and persists
// the hash so the bearer authentication path stays a pure hash lookup.
func (r *Repository) BackfillTokenHashes(ctx context.Context, opener TokenOpener, hash TokenHasher) error {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, access_token FROM user_tokens
		WHERE access_token_hash IS NULL OR access_token_hash = ''`)
	if err != nil {
		return err
	}
	defer rows.Close()

	type pending struct{ id, hash string }
	var updates []pending
	for rows.Next() {
		var id, sealed string
		if err := rows.Scan(&id, &sealed); err != nil {
			return err
		}
		updates = append(updates, pending{id: id, hash: hash(opener.Decrypt(sealed))})
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, u := range updates {
		if _, err := r.db.ExecContext(ctx,
			`UPDATE user_tokens SET access_token_hash = ?, updated_at = ? WHERE id = ?`,
			u.hash, now(), u.id); err != nil {
			return err
		}
	}
	if len(updates) > 0 && r.logger != nil {
		r.logger.Info("backfilled token hashes", "rows", len(updates))
	}
	return nil
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

func toTimePtr(v sql.NullString) *time.Time {
	if !v.Valid || v.String == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, v.String)
	if err != nil {
		return nil
	}
	u := t.UTC()
	return &u
}

func fromTimePtr(v *time.Time) any {
	if v == nil {
		return nil
	}
	return v.UTC().Format(time.RFC3339Nano)
}

func fromStringPtr(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}

func strPtr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func intPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int64)
	return &n
}

func fromIntPtr(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func parseTime(v string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}
