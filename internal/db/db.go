package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// DB is the blog's persistence layer. Every exported operation runs as a
// single statement, so each one commits on its own.
type DB struct {
	x       *sqlx.DB
	dialect Dialect
	sb      sq.StatementBuilderType
	now     func() time.Time
}

// Open connects using driver "sqlite" (modernc) or "pgx" and pings the server.
func Open(ctx context.Context, driver, dsn string) (*DB, error) {
	dialect, err := dialectFor(driver)
	if err != nil {
		return nil, err
	}
	if driver == "sqlite" {
		dsn = sqliteDSN(dsn)
	}

	x, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if driver == "sqlite" {
		// SQLite serialises writers anyway; one connection also keeps
		// in-memory databases alive for the life of the pool.
		x.SetMaxOpenConns(1)
		x.SetConnMaxLifetime(0)
	} else {
		x.SetMaxOpenConns(25)
		x.SetMaxIdleConns(5)
		x.SetConnMaxLifetime(5 * time.Minute)
	}

	if err := x.PingContext(ctx); err != nil {
		x.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return newDB(x, dialect), nil
}

func newDB(x *sqlx.DB, dialect Dialect) *DB {
	return &DB{
		x:       x,
		dialect: dialect,
		sb:      sq.StatementBuilder.PlaceholderFormat(dialect.Placeholder()),
		now:     time.Now,
	}
}

// sqliteDSN turns on foreign keys and a sortable time format for every
// connection the pool opens.
func sqliteDSN(dsn string) string {
	var params []string
	if !strings.Contains(dsn, "foreign_keys") {
		params = append(params, "_pragma=foreign_keys(1)")
	}
	if !strings.Contains(dsn, "_time_format") {
		params = append(params, "_time_format=sqlite")
	}
	if len(params) == 0 {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + strings.Join(params, "&")
}

func (d *DB) Close() error {
	return d.x.Close()
}

// SetClock replaces the time source used to stamp new users.
func (d *DB) SetClock(now func() time.Time) {
	d.now = now
}

// Timestamp normalises t to what the store can round-trip: UTC, microseconds.
func Timestamp(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

// Migrate creates the schema if absent. It is safe to call on every startup.
func (d *DB) Migrate(ctx context.Context) error {
	for _, s := range d.dialect.Schema() {
		if _, err := d.x.ExecContext(ctx, s); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

func (d *DB) get(ctx context.Context, dest any, b sq.Sqlizer) error {
	query, args, err := b.ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	return d.x.GetContext(ctx, dest, query, args...)
}

func (d *DB) selectAll(ctx context.Context, dest any, b sq.Sqlizer) error {
	query, args, err := b.ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	return d.x.SelectContext(ctx, dest, query, args...)
}

func (d *DB) exec(ctx context.Context, b sq.Sqlizer) (sql.Result, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	return d.x.ExecContext(ctx, query, args...)
}

// mustAffect maps a zero-row write to ErrNotFound.
func mustAffect(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
