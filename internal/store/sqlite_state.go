package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"contentsort/internal/model"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

func (s Store) openSQLite(ctx context.Context) (*sql.DB, error) {
	if err := s.Ensure(); err != nil {
		return nil, err
	}
	// modernc.org/sqlite driver name is "sqlite".
	db, err := sql.Open("sqlite", s.sqlitePath())
	if err != nil {
		return nil, err
	}
	// WAL enables one writer + many readers; busy_timeout helps avoid "database is locked" flakiness.
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	if err := migrateSQLiteState(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// LoadSQLite loads the content tree from the store's SQLite file, creating the schema
// on first use.
func (s Store) LoadSQLite(ctx context.Context) (*DB, error) {
	db, err := s.openSQLite(ctx)
	if err != nil {
		return nil, err
	}
	defer db.Close()
	return loadStateFromSQLite(ctx, db)
}

// SaveSQLite replaces the persisted state with st and appends st's pending events.
func (s Store) SaveSQLite(ctx context.Context, st *DB) error {
	if st == nil {
		return errors.New("nil db")
	}
	db, err := s.openSQLite(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	tx, err := db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `INSERT OR REPLACE INTO state_meta(k, v) VALUES(?, ?)`, "version", strconv.Itoa(st.Version)); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `INSERT OR REPLACE INTO state_meta(k, v) VALUES(?, ?)`, "current_actor_id", strings.TrimSpace(st.CurrentActorID)); err != nil {
		return err
	}

	// Replace-all strategy; content trees edited through this tool are small.
	for _, t := range []string{"actors", "items"} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+t); err != nil {
			return err
		}
	}

	nowMs := time.Now().UTC().UnixMilli()

	for _, a := range st.Actors {
		raw, _ := json.Marshal(a)
		if _, err := tx.ExecContext(ctx, `INSERT INTO actors(id, json, updated_at_unixms) VALUES(?, ?, ?)`, a.ID, string(raw), nowMs); err != nil {
			return err
		}
	}
	for i := range st.Items {
		it := &st.Items[i]
		raw, _ := json.Marshal(it)
		parent := ""
		if it.ParentID != nil {
			parent = NormalizeID(*it.ParentID)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO items(
			id, parent_id, name, path, template_name, language, sort_order,
			locked, read_only, owner_actor_id,
			json, updated_at_unixms
		) VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			NormalizeID(it.ID), parent, it.Name, strings.ToLower(st.PathOf(it)), strings.ToLower(strings.TrimSpace(it.TemplateName)), it.Language, it.SortOrder,
			boolToInt(it.Locked), boolToInt(it.ReadOnly), strings.TrimSpace(it.OwnerActorID),
			string(raw), nowMs,
		); err != nil {
			return err
		}
	}
	for _, ev := range st.pending {
		if err := insertEvent(ctx, tx, ev); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	st.pending = nil
	return nil
}

func migrateSQLiteState(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS state_meta (
			k TEXT PRIMARY KEY,
			v TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS actors (
			id TEXT PRIMARY KEY,
			json TEXT NOT NULL,
			updated_at_unixms INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS items (
			id TEXT PRIMARY KEY,
			parent_id TEXT NOT NULL,
			name TEXT NOT NULL,
			path TEXT NOT NULL,
			template_name TEXT NOT NULL,
			language TEXT NOT NULL,
			sort_order INTEGER NOT NULL,
			locked INTEGER NOT NULL,
			read_only INTEGER NOT NULL,
			owner_actor_id TEXT NOT NULL,
			json TEXT NOT NULL,
			updated_at_unixms INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_items_parent ON items(parent_id, sort_order);`,
		`CREATE INDEX IF NOT EXISTS idx_items_name ON items(name);`,
		`CREATE INDEX IF NOT EXISTS idx_items_path ON items(path);`,
		`CREATE INDEX IF NOT EXISTS idx_items_template ON items(template_name);`,
		`CREATE TABLE IF NOT EXISTS events (
			event_id TEXT PRIMARY KEY,
			ts_unixms INTEGER NOT NULL,
			actor_id TEXT NOT NULL,
			type TEXT NOT NULL,
			entity_id TEXT NOT NULL,
			payload_json TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_events_entity ON events(entity_id, ts_unixms);`,
	}
	for _, st := range stmts {
		if _, err := db.ExecContext(ctx, st); err != nil {
			return err
		}
	}
	return nil
}

func loadStateFromSQLite(ctx context.Context, db *sql.DB) (*DB, error) {
	out := &DB{Version: 1}

	readMeta := func(k string) string {
		var v string
		_ = db.QueryRowContext(ctx, `SELECT v FROM state_meta WHERE k = ?`, k).Scan(&v)
		return strings.TrimSpace(v)
	}
	if v := readMeta("version"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			out.Version = n
		}
	}
	out.CurrentActorID = readMeta("current_actor_id")

	actors, err := readJSONRows[model.Actor](ctx, db, `SELECT json FROM actors ORDER BY id`)
	if err != nil {
		return nil, err
	}
	out.Actors = actors

	items, err := readJSONRows[model.Item](ctx, db, `SELECT json FROM items ORDER BY parent_id, sort_order, name`)
	if err != nil {
		return nil, err
	}
	out.Items = items

	// Ensure nil slices are empty for stable callers.
	if out.Actors == nil {
		out.Actors = []model.Actor{}
	}
	if out.Items == nil {
		out.Items = []model.Item{}
	}
	return out, nil
}

func readJSONRows[T any](ctx context.Context, db *sql.DB, query string, args ...any) ([]T, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []T
	for rows.Next() {
		var js string
		if err := rows.Scan(&js); err != nil {
			return nil, err
		}
		var v T
		if err := json.Unmarshal([]byte(js), &v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func insertEvent(ctx context.Context, tx *sql.Tx, ev model.Event) error {
	if strings.TrimSpace(ev.ID) == "" {
		ev.ID = "evt-" + uuid.NewString()
	}
	if ev.TS.IsZero() {
		ev.TS = time.Now().UTC()
	}
	payload, err := json.Marshal(ev.Payload)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO events(event_id, ts_unixms, actor_id, type, entity_id, payload_json) VALUES(?, ?, ?, ?, ?, ?)`,
		ev.ID, ev.TS.UTC().UnixMilli(), ev.ActorID, ev.Type, ev.EntityID, string(payload))
	return err
}

// ReadEvents returns the newest events first. entityID filters when non-empty.
func (s Store) ReadEvents(ctx context.Context, entityID string, limit int) ([]model.Event, error) {
	db, err := s.openSQLite(ctx)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	if limit <= 0 {
		limit = 100
	}
	q := `SELECT event_id, ts_unixms, actor_id, type, entity_id, payload_json FROM events`
	args := []any{}
	if id := strings.TrimSpace(entityID); id != "" {
		q += ` WHERE entity_id = ?`
		args = append(args, NormalizeID(id))
	}
	q += ` ORDER BY ts_unixms DESC, event_id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Event
	for rows.Next() {
		var ev model.Event
		var ts int64
		var payload string
		if err := rows.Scan(&ev.ID, &ts, &ev.ActorID, &ev.Type, &ev.EntityID, &payload); err != nil {
			return nil, err
		}
		ev.TS = time.UnixMilli(ts).UTC()
		if payload != "" && payload != "null" {
			var p any
			if err := json.Unmarshal([]byte(payload), &p); err == nil {
				ev.Payload = p
			}
		}
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if out == nil {
		out = []model.Event{}
	}
	return out, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
