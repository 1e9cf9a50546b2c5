// Package spotify talks to the Spotify accounts and Web API services on
// behalf of the single dashboard owner.
package spotify

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"

	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	apperrors "github.com/alexjbarnes/dashboard-bff/internal/errors"
	"github.com/alexjbarnes/dashboard-bff/internal/models"
)

// DefaultScopes are requested at login when none are configured.
var DefaultScopes = []string{
	spotifyauth.ScopeUserReadPrivate,
	spotifyauth.ScopeUserReadEmail,
	spotifyauth.ScopeUserReadCurrentlyPlaying,
	spotifyauth.ScopeUserReadRecentlyPlayed,
	spotifyauth.ScopeUserTopRead,
	spotifyauth.ScopePlaylistReadPrivate,
	spotifyauth.ScopePlaylistReadCollaborative,
}

// AuthConfig configures an AuthClient. Empty URLs default to the Spotify
// production accounts service.
type AuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	AuthURL      string
	TokenURL     string

	// HTTPClient is used for token endpoint calls. Nil uses a client with
	// a 30 second timeout.
	HTTPClient *http.Client
}

// AuthClient runs the three OAuth grants against the Spotify token
// endpoint. Every call authenticates with HTTP Basic client credentials.
type AuthClient struct {
	oauth      *oauth2.Config
	app        *clientcredentials.Config
	httpClient *http.Client
	now        func() time.Time
}

// NewAuthClient creates an AuthClient from cfg.
func NewAuthClient(cfg AuthConfig) *AuthClient {
	authURL := cfg.AuthURL
	if authURL == "" {
		authURL = spotifyauth.AuthURL
	}

	tokenURL := cfg.TokenURL
	if tokenURL == "" {
		tokenURL = spotifyauth.TokenURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: httpClientTimeout}
	}

	return &AuthClient{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint: oauth2.Endpoint{
				AuthURL:   authURL,
				TokenURL:  tokenURL,
				AuthStyle: oauth2.AuthStyleInHeader,
			},
		},
		app: &clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     tokenURL,
			AuthStyle:    oauth2.AuthStyleInHeader,
		},
		httpClient: httpClient,
		now:        time.Now,
	}
}

// AuthorizationURL builds the consent URL the owner is redirected to. The
// dialog is always shown so switching accounts is possible.
func (c *AuthClient) AuthorizationURL(scopes []string, state string) string {
	cfg := *c.oauth
	cfg.Scopes = scopes

	return cfg.AuthCodeURL(state, oauth2.SetAuthURLParam("show_dialog", "true"))
}

// ExchangeAuthorizationCode trades a callback code for a user token.
func (c *AuthClient) ExchangeAuthorizationCode(ctx context.Context, code string) (models.TokenRecord, error) {
	tok, err := c.oauth.Exchange(c.withClient(ctx), code)
	if err != nil {
		return models.TokenRecord{}, upstreamError("authorization_code", err)
	}

	return c.record(tok), nil
}

// Refresh redeems a refresh token. The upstream may omit a rotated
// refresh token, in which case the result carries the one sent.
func (c *AuthClient) Refresh(ctx context.Context, refreshToken string) (models.TokenRecord, error) {
	if refreshToken == "" {
		return models.TokenRecord{}, apperrors.ErrNoRefreshToken
	}

	src := c.oauth.TokenSource(c.withClient(ctx), &oauth2.Token{RefreshToken: refreshToken})

	tok, err := src.Token()
	if err != nil {
		return models.TokenRecord{}, upstreamError("refresh_token", err)
	}

	return c.record(tok), nil
}

// ClientCredentialsToken obtains an application token with no user
// context. It never carries a refresh token.
func (c *AuthClient) ClientCredentialsToken(ctx context.Context) (models.TokenRecord, error) {
	tok, err := c.app.Token(c.withClient(ctx))
	if err != nil {
		return models.TokenRecord{}, upstreamError("client_credentials", err)
	}

	rec := c.record(tok)
	rec.RefreshToken = ""

	return rec, nil
}

func (c *AuthClient) withClient(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
}

// record converts an oauth2 token. expires_at is left for the store to
// compute.
func (c *AuthClient) record(tok *oauth2.Token) models.TokenRecord {
	expiresIn := tok.ExpiresIn
	if expiresIn == 0 && !tok.Expiry.IsZero() {
		expiresIn = int64(math.Round(tok.Expiry.Sub(c.now()).Seconds()))
	}

	tokenType := tok.TokenType
	if tokenType == "" {
		tokenType = "Bearer"
	}

	scope, _ := tok.Extra("scope").(string)

	return models.TokenRecord{
		AccessToken:  tok.AccessToken,
		TokenType:    tokenType,
		ExpiresIn:    expiresIn,
		RefreshToken: tok.RefreshToken,
		Scope:        scope,
	}
}

// upstreamError turns an oauth2 failure into an UpstreamAuthError when
// the token endpoint answered, or a wrapped transport error otherwise.
func upstreamError(grant string, err error) error {
	var re *oauth2.RetrieveError
	if !errors.As(err, &re) {
		return fmt.Errorf("spotify %s grant: %w", grant, err)
	}

	status := 0
	if re.Response != nil {
		status = re.Response.StatusCode
	}

	return &UpstreamAuthError{
		Grant:       grant,
		StatusCode:  status,
		Code:        errorCode(re),
		Description: re.ErrorDescription,
		Body:        sanitizeResponseBody(re.Body),
		Err:         re,
	}
}
