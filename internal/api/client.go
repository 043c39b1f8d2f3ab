// Package api is the content client for categories and posts. It reads the
// bearer token from the session on every call, so a login or logout takes
// effect on the next request without rebuilding the client.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"golang.org/x/sync/errgroup"

	"postdesk/internal/logging"
	"postdesk/internal/transport"
)

// API endpoints.
const (
	CategoriesPath = "/api/v1/categories"
	PostsPath      = "/api/v1/posts"
)

// TokenSource supplies the current bearer token, or "" when logged out.
// *session.Manager satisfies it.
type TokenSource interface {
	Token() string
}

// Client talks to the content endpoints.
type Client struct {
	http    *transport.Client
	session TokenSource
}

// New returns a Client. session may be nil for anonymous access.
func New(httpClient *transport.Client, session TokenSource) *Client {
	return &Client{http: httpClient, session: session}
}

func (c *Client) token() string {
	if c.session == nil {
		return ""
	}
	return c.session.Token()
}

// call sends a request and decodes a 2xx JSON answer into out (when non-nil).
func (c *Client) call(ctx context.Context, method, path string, payload, out interface{}) error {
	resp, err := c.http.Do(ctx, method, path, payload, c.token())
	if err != nil {
		return err
	}
	if !resp.OK() {
		logging.API("%s %s failed with status %d", method, path, resp.Status)
		return &StatusError{Status: resp.Status, Message: transport.ErrorMessage(resp.Body, "")}
	}
	if out == nil || resp.Body == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(resp.Body), out); err != nil {
		return fmt.Errorf("failed to decode %s %s response: %w", method, path, err)
	}
	return nil
}

func postPath(id int64) string {
	return PostsPath + "/" + strconv.FormatInt(id, 10)
}

// ListCategories returns every category.
func (c *Client) ListCategories(ctx context.Context) ([]Category, error) {
	var out []Category
	if err := c.call(ctx, http.MethodGet, CategoriesPath, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListPosts returns the posts, restricted to one category when category is set.
func (c *Client) ListPosts(ctx context.Context, category string) ([]Post, error) {
	var out []Post
	if err := c.call(ctx, http.MethodGet, PostsPath, nil, &out); err != nil {
		return nil, err
	}
	return FilterByCategory(out, category), nil
}

// GetPost returns one post.
func (c *Client) GetPost(ctx context.Context, id int64) (*Post, error) {
	var out Post
	if err := c.call(ctx, http.MethodGet, postPath(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreatePost validates and submits a new post. The created post is returned
// when the server echoes it, otherwise nil.
func (c *Client) CreatePost(ctx context.Context, d Draft) (*Post, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	var out Post
	if err := c.call(ctx, http.MethodPost, PostsPath, d, &out); err != nil {
		return nil, err
	}
	logging.API("created post %q", d.Title)
	if out.ID == 0 {
		return nil, nil
	}
	return &out, nil
}

// UpdatePost validates and replaces post id.
func (c *Client) UpdatePost(ctx context.Context, id int64, d Draft) error {
	if err := d.Validate(); err != nil {
		return err
	}
	if err := c.call(ctx, http.MethodPut, postPath(id), d, nil); err != nil {
		return err
	}
	logging.API("updated post %d", id)
	return nil
}

// DeletePost removes post id.
func (c *Client) DeletePost(ctx context.Context, id int64) error {
	if err := c.call(ctx, http.MethodDelete, postPath(id), nil, nil); err != nil {
		return err
	}
	logging.API("deleted post %d", id)
	return nil
}

// EditDraft loads post id and the category list concurrently and returns the
// post as a Draft, with its category resolved from the post's category name.
// CategoryID stays zero when no category matches.
func (c *Client) EditDraft(ctx context.Context, id int64) (Draft, []Category, error) {
	var (
		post       *Post
		categories []Category
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		categories, err = c.ListCategories(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		post, err = c.GetPost(gctx, id)
		return err
	})
	if err := g.Wait(); err != nil {
		return Draft{}, nil, err
	}

	d := Draft{Title: post.Title, Content: post.Content, CategoryID: post.CategoryID}
	if cid, ok := ResolveCategoryID(categories, post.CategoryName); ok {
		d.CategoryID = cid
	} else {
		logging.APIDebug("post %d: category %q not found", id, post.CategoryName)
	}
	return d, categories, nil
}
