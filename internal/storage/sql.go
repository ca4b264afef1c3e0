package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Dialect selects the SQL flavour and the database/sql driver
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

const (
	kindSet  = "set"
	kindMap  = "map"
	kindText = "text"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS store_keys (
		store_key TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		updated_at BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS id_set_members (
		store_key TEXT NOT NULL,
		member BIGINT NOT NULL,
		PRIMARY KEY (store_key, member)
	)`,
	`CREATE TABLE IF NOT EXISTS id_map_entries (
		store_key TEXT NOT NULL,
		entry_id BIGINT NOT NULL,
		entry_value BIGINT NOT NULL,
		PRIMARY KEY (store_key, entry_id)
	)`,
	`CREATE TABLE IF NOT EXISTS text_values (
		store_key TEXT PRIMARY KEY,
		body TEXT NOT NULL
	)`,
}

// SQLBackend stores keys in a small relational schema shared by SQLite and PostgreSQL.
// store_keys records which shape was last written under each key, so an empty set
// is distinguishable from a missing one.
type SQLBackend struct {
	db      *sql.DB
	dialect Dialect
}

// NewSQLBackend opens the database, checks the connection and creates the schema
func NewSQLBackend(ctx context.Context, dialect Dialect, dsn string) (*SQLBackend, error) {
	if dsn == "" {
		return nil, fmt.Errorf("%s dsn is empty", dialect)
	}
	switch dialect {
	case DialectSQLite:
		if dir := filepath.Dir(dsn); dir != "" && !strings.HasPrefix(dsn, "file:") {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create db directory: %w", err)
			}
		}
	case DialectPostgres:
	default:
		return nil, fmt.Errorf("unsupported sql dialect %q", dialect)
	}

	db, err := sql.Open(string(dialect), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dialect == DialectSQLite {
		// A single connection keeps write transactions serialized.
		db.SetMaxOpenConns(1)
	}

	b := &SQLBackend{db: db, dialect: dialect}
	if err := b.Ping(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := b.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return b, nil
}

func (b *SQLBackend) migrate(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := b.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}

// rebind rewrites ? placeholders into $n for PostgreSQL
func (b *SQLBackend) rebind(query string) string {
	if b.dialect != DialectPostgres {
		return query
	}
	return rebindDollar(query)
}

func rebindDollar(query string) string {
	var sb strings.Builder
	sb.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			sb.WriteByte('$')
			sb.WriteString(strconv.Itoa(n))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

func (b *SQLBackend) kindOf(ctx context.Context, key string) (string, error) {
	var kind string
	err := b.db.QueryRowContext(ctx, b.rebind(`SELECT kind FROM store_keys WHERE store_key = ?`), key).Scan(&kind)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read key %s: %w", key, err)
	}
	return kind, nil
}

func (b *SQLBackend) expectKind(ctx context.Context, key, want string) error {
	kind, err := b.kindOf(ctx, key)
	if err != nil {
		return err
	}
	if kind != want {
		return fmt.Errorf("%w: %s holds a %s, not a %s", ErrMalformed, key, kind, want)
	}
	return nil
}

// ReadIDSet returns the members stored under key
func (b *SQLBackend) ReadIDSet(ctx context.Context, key string) ([]int64, error) {
	if err := b.expectKind(ctx, key, kindSet); err != nil {
		return nil, err
	}
	rows, err := b.db.QueryContext(ctx, b.rebind(`SELECT member FROM id_set_members WHERE store_key = ? ORDER BY member`), key)
	if err != nil {
		return nil, fmt.Errorf("failed to query set %s: %w", key, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan set member: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating set %s: %w", key, err)
	}
	return ids, nil
}

// WriteIDSet replaces the set stored under key
func (b *SQLBackend) WriteIDSet(ctx context.Context, key string, ids []int64) error {
	return b.inTx(ctx, key, kindSet, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, b.rebind(`INSERT INTO id_set_members (store_key, member) VALUES (?, ?)`))
		if err != nil {
			return fmt.Errorf("failed to prepare insert: %w", err)
		}
		defer func() {
			_ = stmt.Close()
		}()
		for _, id := range normalizeIDs(ids) {
			if _, err := stmt.ExecContext(ctx, key, id); err != nil {
				return fmt.Errorf("failed to insert set member: %w", err)
			}
		}
		return nil
	})
}

// ReadIDMap returns the entries stored under key
func (b *SQLBackend) ReadIDMap(ctx context.Context, key string) (map[int64]int64, error) {
	if err := b.expectKind(ctx, key, kindMap); err != nil {
		return nil, err
	}
	rows, err := b.db.QueryContext(ctx, b.rebind(`SELECT entry_id, entry_value FROM id_map_entries WHERE store_key = ?`), key)
	if err != nil {
		return nil, fmt.Errorf("failed to query map %s: %w", key, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	values := make(map[int64]int64)
	for rows.Next() {
		var id, value int64
		if err := rows.Scan(&id, &value); err != nil {
			return nil, fmt.Errorf("failed to scan map entry: %w", err)
		}
		values[id] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating map %s: %w", key, err)
	}
	return values, nil
}

// WriteIDMap replaces the map stored under key
func (b *SQLBackend) WriteIDMap(ctx context.Context, key string, values map[int64]int64) error {
	return b.inTx(ctx, key, kindMap, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, b.rebind(`INSERT INTO id_map_entries (store_key, entry_id, entry_value) VALUES (?, ?, ?)`))
		if err != nil {
			return fmt.Errorf("failed to prepare insert: %w", err)
		}
		defer func() {
			_ = stmt.Close()
		}()
		for _, id := range sortedMapKeys(values) {
			if _, err := stmt.ExecContext(ctx, key, id, values[id]); err != nil {
				return fmt.Errorf("failed to insert map entry: %w", err)
			}
		}
		return nil
	})
}

// ReadLines returns the stored text split into lines
func (b *SQLBackend) ReadLines(ctx context.Context, key string) ([]string, error) {
	if err := b.expectKind(ctx, key, kindText); err != nil {
		return nil, err
	}
	var body string
	err := b.db.QueryRowContext(ctx, b.rebind(`SELECT body FROM text_values WHERE store_key = ?`), key).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read text %s: %w", key, err)
	}
	return splitLines(body), nil
}

// WriteDefaultText stores text under key
func (b *SQLBackend) WriteDefaultText(ctx context.Context, key string, text string) error {
	return b.inTx(ctx, key, kindText, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, b.rebind(`INSERT INTO text_values (store_key, body) VALUES (?, ?)`), key, text); err != nil {
			return fmt.Errorf("failed to insert text: %w", err)
		}
		return nil
	})
}

// inTx clears every value under key, runs fill and records the new kind atomically
func (b *SQLBackend) inTx(ctx context.Context, key, kind string, fill func(tx *sql.Tx) error) error {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, table := range []string{"id_set_members", "id_map_entries", "text_values"} {
		if _, err := tx.ExecContext(ctx, b.rebind(`DELETE FROM `+table+` WHERE store_key = ?`), key); err != nil {
			return fmt.Errorf("failed to clear %s for %s: %w", table, key, err)
		}
	}
	if err := fill(tx); err != nil {
		return err
	}

	upsert := `
		INSERT INTO store_keys (store_key, kind, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT (store_key) DO UPDATE
		SET kind = excluded.kind,
		    updated_at = excluded.updated_at
	`
	if _, err := tx.ExecContext(ctx, b.rebind(upsert), key, kind, time.Now().Unix()); err != nil {
		return fmt.Errorf("failed to record key %s: %w", key, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit %s: %w", key, err)
	}
	return nil
}

// Ping checks the database connection
func (b *SQLBackend) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return b.db.PingContext(ctx)
}

// Close closes the database
func (b *SQLBackend) Close() error {
	return b.db.Close()
}
