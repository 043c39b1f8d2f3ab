package api

import (
	"fmt"
	"strings"
)

// Category groups posts.
type Category struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Post is a post as the API lists it. The server reports the category by
// name only; CategoryID is set when the server includes it.
type Post struct {
	ID           int64  `json:"id"`
	Title        string `json:"title"`
	Content      string `json:"content"`
	CategoryID   int64  `json:"categoryId,omitempty"`
	CategoryName string `json:"categoryName"`
}

// Draft is the body of a create or update request.
type Draft struct {
	Title      string `json:"title"`
	Content    string `json:"content"`
	CategoryID int64  `json:"categoryId"`
}

// ValidationError lists the required draft fields that are empty.
type ValidationError struct {
	Missing []string
}

func (e *ValidationError) Error() string {
	return "missing required fields: " + strings.Join(e.Missing, ", ")
}

// Validate checks that every field is set.
func (d Draft) Validate() error {
	var missing []string
	if d.CategoryID == 0 {
		missing = append(missing, "category")
	}
	if strings.TrimSpace(d.Title) == "" {
		missing = append(missing, "title")
	}
	if strings.TrimSpace(d.Content) == "" {
		missing = append(missing, "content")
	}
	if len(missing) > 0 {
		return &ValidationError{Missing: missing}
	}
	return nil
}

// StatusError is returned when the API answers with a non-2xx status.
type StatusError struct {
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("request failed with status %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("request failed with status %d", e.Status)
}

// ResolveCategoryID finds the id of the category called name.
func ResolveCategoryID(categories []Category, name string) (int64, bool) {
	if name == "" {
		return 0, false
	}
	for _, c := range categories {
		if c.Name == name {
			return c.ID, true
		}
	}
	return 0, false
}

// FilterByCategory keeps the posts in the named category, case-insensitively.
// An empty name keeps everything.
func FilterByCategory(posts []Post, name string) []Post {
	if name == "" {
		return posts
	}
	out := make([]Post, 0, len(posts))
	for _, p := range posts {
		if strings.EqualFold(p.CategoryName, name) {
			out = append(out, p)
		}
	}
	return out
}
