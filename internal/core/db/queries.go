package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"path"

	"github.com/jmoiron/sqlx"
	"github.com/qustavo/dotsql"
)

//go:embed queries/*.sql
var queriesFS embed.FS

// Queries runs the named statements in queries/*.sql. Each file holds
// "-- name: <query>" blocks; names are unique across files.
type Queries struct {
	dot *dotsql.DotSql
	db  *sqlx.DB
}

// LoadQueries parses every embedded query file for db.
func LoadQueries(db *sqlx.DB) (*Queries, error) {
	names, err := fs.Glob(queriesFS, "queries/*.sql")
	if err != nil {
		return nil, err
	}

	parsed := make([]*dotsql.DotSql, 0, len(names))
	for _, name := range names {
		body, err := queriesFS.ReadFile(name)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		dot, err := dotsql.LoadFromString(string(body))
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", path.Base(name), err)
		}
		parsed = append(parsed, dot)
	}

	return &Queries{dot: dotsql.Merge(parsed...), db: db}, nil
}

// raw returns the named query rebound for the driver.
func (q *Queries) raw(name string) (string, error) {
	query, err := q.dot.Raw(name)
	if err != nil {
		return "", fmt.Errorf("query not found: %s", name)
	}
	return q.db.Rebind(query), nil
}

// Exec executes a named query with placeholder conversion for database compatibility.
func (q *Queries) Exec(ctx context.Context, name string, args ...any) (sql.Result, error) {
	query, err := q.raw(name)
	if err != nil {
		return nil, err
	}
	return q.db.ExecContext(ctx, query, args...)
}

// Get retrieves a single row into dest struct using named query.
func (q *Queries) Get(ctx context.Context, name string, dest any, args ...any) error {
	query, err := q.raw(name)
	if err != nil {
		return err
	}
	return q.db.GetContext(ctx, dest, query, args...)
}

// Select retrieves multiple rows into dest slice using named query.
func (q *Queries) Select(ctx context.Context, name string, dest any, args ...any) error {
	query, err := q.raw(name)
	if err != nil {
		return err
	}
	return q.db.SelectContext(ctx, dest, query, args...)
}

// SelectIn is Select for queries with an IN (?) clause; slice arguments are
// expanded with sqlx.In before rebinding.
func (q *Queries) SelectIn(ctx context.Context, name string, dest any, args ...any) error {
	query, err := q.dot.Raw(name)
	if err != nil {
		return fmt.Errorf("query not found: %s", name)
	}
	expanded, expandedArgs, err := sqlx.In(query, args...)
	if err != nil {
		return fmt.Errorf("expand %s: %w", name, err)
	}
	return q.db.SelectContext(ctx, dest, q.db.Rebind(expanded), expandedArgs...)
}
