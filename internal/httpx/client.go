// Package httpx executes JSON and form requests against the trackwise API and
// turns every failure into a classified *apierror.Error.
package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/trackwise/authsession/apierror"
)

// MaxBodyBytes caps how much of a response body is read.
const MaxBodyBytes = 1 << 20

// ErrBaseURL is returned by New for a missing or non-HTTP base URL.
var ErrBaseURL = errors.New("base URL must be an absolute http(s) URL")

// Request describes one API call. At most one of JSON and Form is set.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	JSON   any
	Form   url.Values
	// Expect is the success status; zero accepts any 2xx.
	Expect int
}

// Client is safe for concurrent use.
type Client struct {
	base   string
	http   *http.Client
	logger *slog.Logger
}

// New validates baseURL. A nil client uses a client with a 30 second timeout.
func New(baseURL string, client *http.Client, logger *slog.Logger) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	u, err := url.Parse(base)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrBaseURL, baseURL)
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{base: base, http: client, logger: logger}, nil
}

// BaseURL returns the normalized base URL.
func (c *Client) BaseURL() string { return c.base }

// Do sends req and decodes a successful body into out when out is non-nil.
// Every returned error is an *apierror.Error.
func (c *Client) Do(ctx context.Context, req Request, out any) error {
	httpReq, err := c.build(ctx, req)
	if err != nil {
		return apierror.Ensure(err)
	}

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		classified := apierror.Classify(err)
		c.logger.Warn("api request failed",
			"method", req.Method,
			"path", req.Path,
			"kind", classified.Kind.String(),
			"duration_ms", time.Since(start).Milliseconds())
		return classified
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxBodyBytes))
	if err != nil {
		classified := apierror.Classify(err)
		classified.Status = resp.StatusCode
		return classified
	}

	if !success(resp.StatusCode, req.Expect) {
		classified := apierror.FromResponse(resp.StatusCode, body)
		c.logger.Warn("api request rejected",
			"method", req.Method,
			"path", req.Path,
			"status_code", resp.StatusCode,
			"kind", classified.Kind.String(),
			"error_type", classified.ErrorType)
		return classified
	}

	c.logger.Debug("api request ok",
		"method", req.Method,
		"path", req.Path,
		"status_code", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds())

	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		if out != nil {
			return &apierror.Error{Kind: apierror.KindUnknown, Status: resp.StatusCode, Message: "empty response body"}
		}
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &apierror.Error{
			Kind:    apierror.KindUnknown,
			Status:  resp.StatusCode,
			Message: "malformed response body",
			Body:    body,
			Err:     err,
		}
	}
	return nil
}

func (c *Client) build(ctx context.Context, req Request) (*http.Request, error) {
	target := c.base + req.Path
	if len(req.Query) > 0 {
		target += "?" + req.Query.Encode()
	}

	var (
		body        io.Reader
		contentType string
	)
	switch {
	case req.JSON != nil:
		raw, err := json.Marshal(req.JSON)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(raw)
		contentType = "application/json"
	case req.Form != nil:
		body = strings.NewReader(req.Form.Encode())
		contentType = "application/x-www-form-urlencoded"
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	return httpReq, nil
}

func success(status, expect int) bool {
	if expect != 0 {
		return status == expect
	}
	return status >= 200 && status < 300
}
