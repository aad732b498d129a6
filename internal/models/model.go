package models

import "time"

type User struct {
	ID           int64     `db:"id"`
	Username     string    `db:"username"`
	Email        string    `db:"email"`
	PasswordHash string    `db:"password_hash"`
	CreatedAt    time.Time `db:"created_at"`
}

// Post is a blog entry. Author is filled from the users table on reads.
type Post struct {
	ID         int64     `db:"id"`
	Title      string    `db:"title"`
	Content    string    `db:"content"`
	DatePosted time.Time `db:"date_posted"`
	AuthorID   int64     `db:"author_id"`
	Author     string    `db:"author"`
}

// IsAuthoredBy reports whether userID may mutate the post.
func (p *Post) IsAuthoredBy(userID int64, ok bool) bool {
	return ok && p.AuthorID == userID
}
