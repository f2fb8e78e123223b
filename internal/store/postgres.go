package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS cameras (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL UNIQUE,
	url        TEXT NOT NULL DEFAULT '',
	polygon    TEXT,
	line       TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS operators (
	id           TEXT PRIMARY KEY,
	username     TEXT NOT NULL UNIQUE,
	password     TEXT NOT NULL,
	display_name TEXT NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);`

type Postgres struct {
	pool *pgxpool.Pool
}

// OpenPostgres connects a pgx pool, verifies it and ensures the schema.
func OpenPostgres(ctx context.Context, databaseURL string) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	slog.Info("postgres store ready", "host", cfg.ConnConfig.Host, "database", cfg.ConnConfig.Database)
	return &Postgres{pool: pool}, nil
}

const cameraColumns = `id, name, url, polygon, line, created_at, updated_at`

func scanPgCamera(row pgx.Row) (Camera, error) {
	var c Camera
	err := row.Scan(&c.ID, &c.Name, &c.URL, &c.Polygon, &c.Line, &c.CreatedAt, &c.UpdatedAt)
	return c, pgErr(err)
}

func (p *Postgres) CreateCamera(ctx context.Context, arg CreateCameraParams) (Camera, error) {
	row := p.pool.QueryRow(ctx,
		`INSERT INTO cameras (id, name, url) VALUES ($1, $2, $3) RETURNING `+cameraColumns,
		arg.ID, arg.Name, arg.URL)
	return scanPgCamera(row)
}

func (p *Postgres) GetCamera(ctx context.Context, id string) (Camera, error) {
	return scanPgCamera(p.pool.QueryRow(ctx, `SELECT `+cameraColumns+` FROM cameras WHERE id = $1`, id))
}

func (p *Postgres) ListCameras(ctx context.Context) ([]Camera, error) {
	rows, err := p.pool.Query(ctx, `SELECT `+cameraColumns+` FROM cameras ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Camera
	for rows.Next() {
		c, err := scanPgCamera(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (p *Postgres) DeleteCamera(ctx context.Context, id string) error {
	tag, err := p.pool.Exec(ctx, `DELETE FROM cameras WHERE id = $1`, id)
	return affected(tag, err)
}

func (p *Postgres) UpdateCameraPolygon(ctx context.Context, id, polygon string) error {
	tag, err := p.pool.Exec(ctx, `UPDATE cameras SET polygon = $2, updated_at = now() WHERE id = $1`, id, polygon)
	return affected(tag, err)
}

func (p *Postgres) UpdateCameraLine(ctx context.Context, id, line string) error {
	tag, err := p.pool.Exec(ctx, `UPDATE cameras SET line = $2, updated_at = now() WHERE id = $1`, id, line)
	return affected(tag, err)
}

const operatorColumns = `id, username, password, display_name, created_at`

func scanPgOperator(row pgx.Row) (Operator, error) {
	var o Operator
	err := row.Scan(&o.ID, &o.Username, &o.Password, &o.DisplayName, &o.CreatedAt)
	return o, pgErr(err)
}

func (p *Postgres) CreateOperator(ctx context.Context, arg CreateOperatorParams) (Operator, error) {
	row := p.pool.QueryRow(ctx,
		`INSERT INTO operators (id, username, password, display_name) VALUES ($1, $2, $3, $4) RETURNING `+operatorColumns,
		arg.ID, arg.Username, arg.Password, arg.DisplayName)
	return scanPgOperator(row)
}

func (p *Postgres) GetOperatorByID(ctx context.Context, id string) (Operator, error) {
	return scanPgOperator(p.pool.QueryRow(ctx, `SELECT `+operatorColumns+` FROM operators WHERE id = $1`, id))
}

func (p *Postgres) GetOperatorByUsername(ctx context.Context, username string) (Operator, error) {
	return scanPgOperator(p.pool.QueryRow(ctx, `SELECT `+operatorColumns+` FROM operators WHERE username = $1`, username))
}

func (p *Postgres) Ping(ctx context.Context) error { return p.pool.Ping(ctx) }

func (p *Postgres) Close() { p.pool.Close() }

func affected(tag pgconn.CommandTag, err error) error {
	if err != nil {
		return pgErr(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNoRows
	}
	return nil
}

// pgErr maps driver errors onto the package sentinels.
func pgErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNoRows
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" { // unique_violation
		return fmt.Errorf("%w: %s", ErrDuplicate, pgErr.ConstraintName)
	}
	return err
}
