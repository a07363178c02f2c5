package gateway

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/trackwise/authsession/apierror"
	"github.com/trackwise/authsession/internal/httpx"
)

const (
	registerPath = "/auth/register"
	loginPath    = "/auth/login"
)

// Gateway talks to the identity endpoints.
type Gateway struct {
	client *httpx.Client
	logger *slog.Logger
}

// New builds a Gateway rooted at baseURL, e.g. "https://host/api/v1".
// httpClient carries timeout and transport stages; nil gets a client with a
// 30 second timeout.
func New(baseURL string, httpClient *http.Client, logger *slog.Logger) (*Gateway, error) {
	if logger == nil {
		logger = slog.Default()
	}
	c, err := httpx.New(baseURL, httpClient, logger)
	if err != nil {
		return nil, err
	}
	return &Gateway{client: c, logger: logger}, nil
}

// Register creates an account. Only 201 counts as success.
func (g *Gateway) Register(ctx context.Context, req RegisterRequest) (*Identity, error) {
	req.Email = strings.TrimSpace(req.Email)

	var out Identity
	err := g.client.Do(ctx, httpx.Request{
		Method: http.MethodPost,
		Path:   registerPath,
		JSON:   req,
		Expect: http.StatusCreated,
	}, &out)
	if err != nil {
		return nil, err
	}
	g.logger.Info("account registered", "user_id", out.ID)
	return &out, nil
}

// Login exchanges credentials for a token. Only 200 with a non-empty
// access_token counts as success.
func (g *Gateway) Login(ctx context.Context, email, password string) (*Token, error) {
	form := url.Values{
		"username": {strings.TrimSpace(email)},
		"password": {password},
	}

	var out Token
	err := g.client.Do(ctx, httpx.Request{
		Method: http.MethodPost,
		Path:   loginPath,
		Form:   form,
		Expect: http.StatusOK,
	}, &out)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(out.AccessToken) == "" {
		return nil, &apierror.Error{
			Kind:    apierror.KindUnknown,
			Status:  http.StatusOK,
			Message: "login response carried no access token",
		}
	}
	if out.TokenType == "" {
		out.TokenType = "bearer"
	}
	g.logger.Debug("login accepted", "token_type", out.TokenType, "token_length", len(out.AccessToken))
	return &out, nil
}
