package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"IceStock/internal/model"
)

// SQLiteRepository persists stores and suggestions to a SQLite database.
type SQLiteRepository struct {
	db  *sql.DB
	mu  sync.Mutex
	now func() time.Time
	log zerolog.Logger
}

// NewSQLiteRepository opens (or creates) the database and creates missing tables.
func NewSQLiteRepository(dbPath string, log zerolog.Logger) (*SQLiteRepository, error) {
	if dir := filepath.Dir(dbPath); dbPath != ":memory:" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// A single connection keeps writes serialized and ":memory:" databases shared.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRepository{db: db, now: time.Now, log: log.With().Str("component", "storage").Logger()}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	r.log.Info().Str("path", dbPath).Msg("sqlite repository opened")
	return r, nil
}

func (r *SQLiteRepository) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS stores (
			id               INTEGER PRIMARY KEY AUTOINCREMENT,
			name             TEXT,
			lat              REAL,
			lon              REAL,
			city             TEXT,
			country          TEXT,
			base_demand_json TEXT,
			created_at       TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS suggestions (
			id              INTEGER PRIMARY KEY AUTOINCREMENT,
			store_id        INTEGER,
			week_start      TEXT,
			strategy        TEXT,
			suggestion_json TEXT,
			explanation     TEXT,
			created_at      TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_suggestions_created ON suggestions(created_at)`,
	}
	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

func (r *SQLiteRepository) CreateStore(ctx context.Context, s *model.Store) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	base, err := json.Marshal(s.BaseDemand)
	if err != nil {
		return 0, fmt.Errorf("encode base demand: %w", err)
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = r.now().UTC()
	}
	res, err := r.db.ExecContext(ctx, `INSERT INTO stores
		(name, lat, lon, city, country, base_demand_json, created_at)
		VALUES (?,?,?,?,?,?,?)`,
		s.Name, nullFloat(s.Lat), nullFloat(s.Lon), s.City, s.Country, string(base), formatTime(s.CreatedAt),
	)
	if err != nil {
		return 0, fmt.Errorf("insert store: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("store id: %w", err)
	}
	s.ID = id
	return id, nil
}

func (r *SQLiteRepository) GetStore(ctx context.Context, id int64) (*model.Store, error) {
	row := r.db.QueryRowContext(ctx, `SELECT id, name, lat, lon, city, country, base_demand_json, created_at
		FROM stores WHERE id = ?`, id)
	s, err := scanStore(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("store %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (r *SQLiteRepository) ListStores(ctx context.Context) ([]model.Store, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, lat, lon, city, country, base_demand_json, created_at
		FROM stores ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list stores: %w", err)
	}
	defer rows.Close()

	out := make([]model.Store, 0)
	for rows.Next() {
		s, err := scanStore(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) SaveSuggestion(ctx context.Context, rec *model.SuggestionRecord) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	payload, err := json.Marshal(rec.Suggestion)
	if err != nil {
		return 0, fmt.Errorf("encode suggestion: %w", err)
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = r.now().UTC()
	}
	res, err := r.db.ExecContext(ctx, `INSERT INTO suggestions
		(store_id, week_start, strategy, suggestion_json, explanation, created_at)
		VALUES (?,?,?,?,?,?)`,
		rec.StoreID, rec.Suggestion.WeekStart.String(), string(rec.Suggestion.Strategy),
		string(payload), rec.Explanation, formatTime(rec.CreatedAt),
	)
	if err != nil {
		return 0, fmt.Errorf("insert suggestion: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("suggestion id: %w", err)
	}
	rec.ID = id
	return id, nil
}

func (r *SQLiteRepository) ListSuggestions(ctx context.Context) ([]model.SuggestionRecord, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT s.id, s.store_id, st.name, s.suggestion_json, s.explanation, s.created_at
		FROM suggestions s JOIN stores st ON s.store_id = st.id
		ORDER BY s.created_at DESC, s.id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list suggestions: %w", err)
	}
	defer rows.Close()

	out := make([]model.SuggestionRecord, 0)
	for rows.Next() {
		var (
			rec       model.SuggestionRecord
			payload   string
			createdAt string
		)
		if err := rows.Scan(&rec.ID, &rec.StoreID, &rec.StoreName, &payload, &rec.Explanation, &createdAt); err != nil {
			return nil, fmt.Errorf("scan suggestion: %w", err)
		}
		if err := json.Unmarshal([]byte(payload), &rec.Suggestion); err != nil {
			return nil, fmt.Errorf("decode suggestion %d: %w", rec.ID, err)
		}
		if rec.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("suggestion %d: %w", rec.ID, err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) Close() error {
	r.log.Info().Msg("closing sqlite repository")
	return r.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanStore(sc scanner) (*model.Store, error) {
	var (
		s         model.Store
		lat, lon  sql.NullFloat64
		base      string
		createdAt string
	)
	if err := sc.Scan(&s.ID, &s.Name, &lat, &lon, &s.City, &s.Country, &base, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan store: %w", err)
	}
	if lat.Valid {
		s.Lat = &lat.Float64
	}
	if lon.Valid {
		s.Lon = &lon.Float64
	}
	if err := json.Unmarshal([]byte(base), &s.BaseDemand); err != nil {
		return nil, fmt.Errorf("decode base demand of store %d: %w", s.ID, err)
	}
	var err error
	if s.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("store %d: %w", s.ID, err)
	}
	return &s, nil
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

// timeLayout is fixed width so created_at sorts as text in time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t.UTC(), nil
}
