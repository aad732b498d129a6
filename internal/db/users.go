package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"blog/internal/models"
)

var userColumns = []string{"id", "username", "email", "password_hash", "created_at"}

// FindUserByEmail returns the user or (nil, nil) if none has that email.
func (d *DB) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return d.findUser(ctx, sq.Eq{"email": email})
}

// FindUserByUsername returns the user or (nil, nil) if none has that username.
func (d *DB) FindUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return d.findUser(ctx, sq.Eq{"username": username})
}

// FindUserByID returns the user or (nil, nil) if the id is unknown.
func (d *DB) FindUserByID(ctx context.Context, id int64) (*models.User, error) {
	return d.findUser(ctx, sq.Eq{"id": id})
}

func (d *DB) findUser(ctx context.Context, where sq.Eq) (*models.User, error) {
	var u models.User
	err := d.get(ctx, &u, d.sb.Select(userColumns...).From("users").Where(where))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	return &u, nil
}

func (d *DB) insertUserQuery(u *models.User) sq.InsertBuilder {
	return d.sb.Insert("users").
		Columns("username", "email", "password_hash", "created_at").
		Values(u.Username, u.Email, u.PasswordHash, u.CreatedAt).
		Suffix("RETURNING id")
}

// InsertUser stores a new user. passwordHash must already be hashed.
// It returns ErrUniqueViolation when the username or email is taken.
func (d *DB) InsertUser(ctx context.Context, username, email, passwordHash string) (*models.User, error) {
	u := models.User{
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    Timestamp(d.now()),
	}
	if err := d.get(ctx, &u.ID, d.insertUserQuery(&u)); err != nil {
		if isUniqueViolation(err) {
			return nil, ErrUniqueViolation
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return &u, nil
}
