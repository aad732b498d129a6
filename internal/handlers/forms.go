package handlers

import (
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"
)

// Column limits shared with the Postgres schema.
const (
	maxNameLen  = 150
	maxTitleLen = 200
)

// ValidationError lists the form fields that were missing or invalid.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return "invalid form fields: " + strings.Join(e.Fields, ", ")
}

// Message is the text shown to the user.
func (e *ValidationError) Message() string {
	return fmt.Sprintf("Please check the following fields: %s.", strings.Join(e.Fields, ", "))
}

type formReader struct {
	r      *http.Request
	fields []string
}

func newFormReader(r *http.Request) (*formReader, error) {
	if err := r.ParseForm(); err != nil {
		return nil, err
	}
	return &formReader{r: r}, nil
}

// text reads a required field. trim is false for secrets.
func (f *formReader) text(name string, maxLen int, trim bool) string {
	v := f.r.PostForm.Get(name)
	if trim {
		v = strings.TrimSpace(v)
	}
	if v == "" || (maxLen > 0 && utf8.RuneCountInString(v) > maxLen) {
		f.fields = append(f.fields, name)
	}
	return v
}

func (f *formReader) err() error {
	if len(f.fields) == 0 {
		return nil
	}
	return &ValidationError{Fields: f.fields}
}

type loginForm struct {
	Email    string
	Password string
}

func parseLoginForm(r *http.Request) (loginForm, error) {
	f, err := newFormReader(r)
	if err != nil {
		return loginForm{}, err
	}
	form := loginForm{
		Email:    f.text("email", maxNameLen, true),
		Password: f.text("password", 0, false),
	}
	return form, f.err()
}

type registerForm struct {
	Username string
	Email    string
	Password string
}

func parseRegisterForm(r *http.Request) (registerForm, error) {
	f, err := newFormReader(r)
	if err != nil {
		return registerForm{}, err
	}
	form := registerForm{
		Username: f.text("username", maxNameLen, true),
		Email:    f.text("email", maxNameLen, true),
		Password: f.text("password", 0, false),
	}
	return form, f.err()
}

type postForm struct {
	Title   string
	Content string
}

func parsePostForm(r *http.Request) (postForm, error) {
	f, err := newFormReader(r)
	if err != nil {
		return postForm{}, err
	}
	form := postForm{
		Title:   f.text("title", maxTitleLen, true),
		Content: f.text("content", 0, true),
	}
	return form, f.err()
}
