package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

var sqliteSchema = []string{`
CREATE TABLE IF NOT EXISTS cameras (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL UNIQUE,
	url        TEXT NOT NULL DEFAULT '',
	polygon    TEXT,
	line       TEXT,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
)`, `
CREATE TABLE IF NOT EXISTS operators (
	id           TEXT PRIMARY KEY,
	username     TEXT NOT NULL UNIQUE,
	password     TEXT NOT NULL,
	display_name TEXT NOT NULL,
	created_at   TEXT NOT NULL
)`,
}

// SQLite is the embedded single-file backend.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database file at path.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite dir: %w", err)
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", filepath.ToSlash(path))
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	for _, ddl := range sqliteSchema {
		if _, err := db.ExecContext(ctx, ddl); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply schema: %w", err)
		}
	}
	slog.Info("sqlite store ready", "path", path)
	return &SQLite{db: db}, nil
}

func now() string { return time.Now().UTC().Format(time.RFC3339Nano) }

type scanner interface {
	Scan(dest ...any) error
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func scanLiteCamera(row scanner) (Camera, error) {
	var (
		c                Camera
		polygon, line    sql.NullString
		created, updated string
	)
	if err := row.Scan(&c.ID, &c.Name, &c.URL, &polygon, &line, &created, &updated); err != nil {
		return Camera{}, liteErr(err)
	}
	if polygon.Valid {
		c.Polygon = &polygon.String
	}
	if line.Valid {
		c.Line = &line.String
	}
	c.CreatedAt, c.UpdatedAt = parseTime(created), parseTime(updated)
	return c, nil
}

func (s *SQLite) CreateCamera(ctx context.Context, arg CreateCameraParams) (Camera, error) {
	ts := now()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO cameras (id, name, url, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		arg.ID, arg.Name, arg.URL, ts, ts)
	if err != nil {
		return Camera{}, liteErr(err)
	}
	return s.GetCamera(ctx, arg.ID)
}

func (s *SQLite) GetCamera(ctx context.Context, id string) (Camera, error) {
	return scanLiteCamera(s.db.QueryRowContext(ctx, `SELECT `+cameraColumns+` FROM cameras WHERE id = ?`, id))
}

func (s *SQLite) ListCameras(ctx context.Context) ([]Camera, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+cameraColumns+` FROM cameras ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Camera
	for rows.Next() {
		c, err := scanLiteCamera(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *SQLite) DeleteCamera(ctx context.Context, id string) error {
	return s.execOne(ctx, `DELETE FROM cameras WHERE id = ?`, id)
}

func (s *SQLite) UpdateCameraPolygon(ctx context.Context, id, polygon string) error {
	return s.execOne(ctx, `UPDATE cameras SET polygon = ?, updated_at = ? WHERE id = ?`, polygon, now(), id)
}

func (s *SQLite) UpdateCameraLine(ctx context.Context, id, line string) error {
	return s.execOne(ctx, `UPDATE cameras SET line = ?, updated_at = ? WHERE id = ?`, line, now(), id)
}

func scanLiteOperator(row scanner) (Operator, error) {
	var (
		o       Operator
		created string
	)
	if err := row.Scan(&o.ID, &o.Username, &o.Password, &o.DisplayName, &created); err != nil {
		return Operator{}, liteErr(err)
	}
	o.CreatedAt = parseTime(created)
	return o, nil
}

func (s *SQLite) CreateOperator(ctx context.Context, arg CreateOperatorParams) (Operator, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO operators (id, username, password, display_name, created_at) VALUES (?, ?, ?, ?, ?)`,
		arg.ID, arg.Username, arg.Password, arg.DisplayName, now())
	if err != nil {
		return Operator{}, liteErr(err)
	}
	return s.GetOperatorByID(ctx, arg.ID)
}

func (s *SQLite) GetOperatorByID(ctx context.Context, id string) (Operator, error) {
	return scanLiteOperator(s.db.QueryRowContext(ctx, `SELECT `+operatorColumns+` FROM operators WHERE id = ?`, id))
}

func (s *SQLite) GetOperatorByUsername(ctx context.Context, username string) (Operator, error) {
	return scanLiteOperator(s.db.QueryRowContext(ctx, `SELECT `+operatorColumns+` FROM operators WHERE username = ?`, username))
}

func (s *SQLite) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *SQLite) Close() {
	if err := s.db.Close(); err != nil {
		slog.Warn("sqlite close", "error", err)
	}
}

func (s *SQLite) execOne(ctx context.Context, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return liteErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNoRows
	}
	return nil
}

// liteErr maps driver errors onto the package sentinels.
func liteErr(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNoRows
	}
	var se *sqlite.Error
	if errors.As(err, &se) && se.Code()&0xff == sqlite3.SQLITE_CONSTRAINT && strings.Contains(se.Error(), "UNIQUE") {
		return fmt.Errorf("%w: %s", ErrDuplicate, se.Error())
	}
	return err
}
