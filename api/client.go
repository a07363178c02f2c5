package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/trackwise/authsession/gateway"
	"github.com/trackwise/authsession/internal/httpx"
)

// ErrInvalidPaging is returned for negative Skip or Limit outside 0..100.
var ErrInvalidPaging = errors.New("skip must be >= 0 and limit within 1..100")

// Client is safe for concurrent use.
type Client struct {
	http *httpx.Client
}

// New builds a Client rooted at baseURL.
func New(baseURL string, httpClient *http.Client, logger *slog.Logger) (*Client, error) {
	c, err := httpx.New(baseURL, httpClient, logger)
	if err != nil {
		return nil, err
	}
	return &Client{http: c}, nil
}

// Me returns the profile the current token belongs to.
func (c *Client) Me(ctx context.Context) (*gateway.Identity, error) {
	var out gateway.Identity
	if err := c.http.Do(ctx, httpx.Request{Method: http.MethodGet, Path: "/users/me"}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListRoutes returns one page of the caller's active saved routes.
func (c *Client) ListRoutes(ctx context.Context, opts ListRoutesOptions) (*RouteList, error) {
	if opts.Skip < 0 || opts.Limit < 0 || opts.Limit > 100 {
		return nil, ErrInvalidPaging
	}
	q := url.Values{}
	if opts.Skip > 0 {
		q.Set("skip", strconv.Itoa(opts.Skip))
	}
	if opts.Limit > 0 {
		q.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.FavoritesOnly {
		q.Set("favorites_only", "true")
	}

	var out RouteList
	if err := c.http.Do(ctx, httpx.Request{Method: http.MethodGet, Path: "/saved-routes/", Query: q}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateRoute stores a new route.
func (c *Client) CreateRoute(ctx context.Context, in NewRoute) (*SavedRoute, error) {
	var out SavedRoute
	err := c.http.Do(ctx, httpx.Request{
		Method: http.MethodPost,
		Path:   "/saved-routes/",
		JSON:   in,
		Expect: http.StatusCreated,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// GetRoute fetches one route owned by the caller.
func (c *Client) GetRoute(ctx context.Context, id int64) (*SavedRoute, error) {
	var out SavedRoute
	if err := c.http.Do(ctx, httpx.Request{Method: http.MethodGet, Path: routePath(id)}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateRoute applies a partial update.
func (c *Client) UpdateRoute(ctx context.Context, id int64, in RouteUpdate) (*SavedRoute, error) {
	var out SavedRoute
	if err := c.http.Do(ctx, httpx.Request{Method: http.MethodPut, Path: routePath(id), JSON: in}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteRoute removes a route. Only 204 counts as success.
func (c *Client) DeleteRoute(ctx context.Context, id int64) error {
	return c.http.Do(ctx, httpx.Request{
		Method: http.MethodDelete,
		Path:   routePath(id),
		Expect: http.StatusNoContent,
	}, nil)
}

func routePath(id int64) string {
	return "/saved-routes/" + strconv.FormatInt(id, 10)
}
