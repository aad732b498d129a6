package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"blog/internal/models"
)

func (d *DB) selectPosts() sq.SelectBuilder {
	return d.sb.Select(
		"p.id AS id",
		"p.title AS title",
		"p.content AS content",
		"p.date_posted AS date_posted",
		"p.author_id AS author_id",
		"u.username AS author",
	).From("posts p").Join("users u ON u.id = p.author_id")
}

func (d *DB) insertPostQuery(p *models.Post) sq.InsertBuilder {
	return d.sb.Insert("posts").
		Columns("title", "content", "date_posted", "author_id").
		Values(p.Title, p.Content, p.DatePosted, p.AuthorID).
		Suffix("RETURNING id")
}

// InsertPost stores a post stamped with now.
func (d *DB) InsertPost(ctx context.Context, title, content string, authorID int64, now time.Time) (*models.Post, error) {
	p := models.Post{
		Title:      title,
		Content:    content,
		DatePosted: Timestamp(now),
		AuthorID:   authorID,
	}
	if err := d.get(ctx, &p.ID, d.insertPostQuery(&p)); err != nil {
		return nil, fmt.Errorf("insert post: %w", err)
	}
	return &p, nil
}

// ListPostsByDateDesc returns every post, newest first.
func (d *DB) ListPostsByDateDesc(ctx context.Context) ([]models.Post, error) {
	posts := []models.Post{}
	q := d.selectPosts().OrderBy("p.date_posted DESC", "p.id DESC")
	if err := d.selectAll(ctx, &posts, q); err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	return posts, nil
}

// ListPostsByAuthor returns the posts of one author, newest first.
func (d *DB) ListPostsByAuthor(ctx context.Context, authorID int64) ([]models.Post, error) {
	posts := []models.Post{}
	q := d.selectPosts().
		Where(sq.Eq{"p.author_id": authorID}).
		OrderBy("p.date_posted DESC", "p.id DESC")
	if err := d.selectAll(ctx, &posts, q); err != nil {
		return nil, fmt.Errorf("list posts by author: %w", err)
	}
	return posts, nil
}

// GetPostByID returns the post or (nil, nil) if it does not exist.
func (d *DB) GetPostByID(ctx context.Context, id int64) (*models.Post, error) {
	var p models.Post
	err := d.get(ctx, &p, d.selectPosts().Where(sq.Eq{"p.id": id}))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get post: %w", err)
	}
	return &p, nil
}

func (d *DB) updatePostQuery(id int64, title, content string, now time.Time) sq.UpdateBuilder {
	return d.sb.Update("posts").
		Set("title", title).
		Set("content", content).
		Set("date_posted", now).
		Where(sq.Eq{"id": id})
}

// UpdatePost rewrites title and content and moves date_posted to now.
// post is updated in place on success.
func (d *DB) UpdatePost(ctx context.Context, post *models.Post, title, content string, now time.Time) error {
	now = Timestamp(now)
	res, err := d.exec(ctx, d.updatePostQuery(post.ID, title, content, now))
	if err != nil {
		return fmt.Errorf("update post: %w", err)
	}
	if err := mustAffect(res); err != nil {
		return err
	}
	post.Title = title
	post.Content = content
	post.DatePosted = now
	return nil
}

func (d *DB) DeletePost(ctx context.Context, post *models.Post) error {
	res, err := d.exec(ctx, d.sb.Delete("posts").Where(sq.Eq{"id": post.ID}))
	if err != nil {
		return fmt.Errorf("delete post: %w", err)
	}
	return mustAffect(res)
}
