package db

import (
	"fmt"

	sq "github.com/Masterminds/squirrel"
)

// Dialect holds what differs between the supported engines.
type Dialect interface {
	Name() string
	Placeholder() sq.PlaceholderFormat
	Schema() []string
}

func dialectFor(driver string) (Dialect, error) {
	switch driver {
	case "sqlite":
		return SQLite{}, nil
	case "pgx":
		return Postgres{}, nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}

type SQLite struct{}

func (SQLite) Name() string                      { return "sqlite" }
func (SQLite) Placeholder() sq.PlaceholderFormat { return sq.Question }

func (SQLite) Schema() []string {
	return []string{
		`PRAGMA foreign_keys = ON;`,
		`CREATE TABLE IF NOT EXISTS users(
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			username TEXT UNIQUE NOT NULL,
			email TEXT UNIQUE NOT NULL,
			password_hash TEXT NOT NULL,
			created_at DATETIME NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS posts(
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			title TEXT NOT NULL,
			content TEXT NOT NULL,
			date_posted DATETIME NOT NULL,
			author_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE
		);`,
		`CREATE INDEX IF NOT EXISTS idx_posts_date_posted ON posts(date_posted);`,
		`CREATE INDEX IF NOT EXISTS idx_posts_author_id ON posts(author_id);`,
	}
}

type Postgres struct{}

func (Postgres) Name() string                      { return "pgx" }
func (Postgres) Placeholder() sq.PlaceholderFormat { return sq.Dollar }

func (Postgres) Schema() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS users(
			id BIGSERIAL PRIMARY KEY,
			username VARCHAR(150) UNIQUE NOT NULL,
			email VARCHAR(150) UNIQUE NOT NULL,
			password_hash VARCHAR(255) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS posts(
			id BIGSERIAL PRIMARY KEY,
			title VARCHAR(200) NOT NULL,
			content TEXT NOT NULL,
			date_posted TIMESTAMPTZ NOT NULL,
			author_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE
		);`,
		`CREATE INDEX IF NOT EXISTS idx_posts_date_posted ON posts(date_posted);`,
		`CREATE INDEX IF NOT EXISTS idx_posts_author_id ON posts(author_id);`,
	}
}
