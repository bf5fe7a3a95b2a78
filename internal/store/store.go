// Package store holds the Postgres queries behind the HTTP handlers. Every
// function takes a Querier so it runs the same against the pool or inside a
// transaction.
package store

import (
	"context"
	"database/sql"

	sq "github.com/Masterminds/squirrel"
)

type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

var (
	_ Querier = (*sql.DB)(nil)
	_ Querier = (*sql.Tx)(nil)
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

type scanner interface {
	Scan(dest ...any) error
}
