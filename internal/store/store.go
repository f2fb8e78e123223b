// Package store persists cameras and operators. Postgres (pgx) and SQLite
// (modernc) back the same Querier interface; services translate ErrNoRows
// and ErrDuplicate into their own errors.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	ErrNoRows    = errors.New("no rows in result set")
	ErrDuplicate = errors.New("duplicate key")
)

type Camera struct {
	ID        string
	Name      string
	URL       string
	Polygon   *string
	Line      *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type CreateCameraParams struct {
	ID   string
	Name string
	URL  string
}

type Operator struct {
	ID          string
	Username    string
	Password    string
	DisplayName string
	CreatedAt   time.Time
}

type CreateOperatorParams struct {
	ID          string
	Username    string
	Password    string
	DisplayName string
}

type Querier interface {
	CreateCamera(ctx context.Context, arg CreateCameraParams) (Camera, error)
	GetCamera(ctx context.Context, id string) (Camera, error)
	ListCameras(ctx context.Context) ([]Camera, error)
	DeleteCamera(ctx context.Context, id string) error
	UpdateCameraPolygon(ctx context.Context, id, polygon string) error
	UpdateCameraLine(ctx context.Context, id, line string) error

	CreateOperator(ctx context.Context, arg CreateOperatorParams) (Operator, error)
	GetOperatorByID(ctx context.Context, id string) (Operator, error)
	GetOperatorByUsername(ctx context.Context, username string) (Operator, error)

	Ping(ctx context.Context) error
	Close()
}

// Open connects to the configured backend and applies its schema.
func Open(ctx context.Context, driver, databaseURL, sqlitePath string) (Querier, error) {
	switch driver {
	case "postgres":
		pg, err := OpenPostgres(ctx, databaseURL)
		if err != nil {
			return nil, err
		}
		return pg, nil
	case "sqlite":
		lite, err := OpenSQLite(ctx, sqlitePath)
		if err != nil {
			return nil, err
		}
		return lite, nil
	}
	return nil, fmt.Errorf("unknown store driver %q", driver)
}
