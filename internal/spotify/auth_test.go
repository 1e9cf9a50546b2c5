package spotify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/alexjbarnes/dashboard-bff/internal/errors"
	"github.com/alexjbarnes/dashboard-bff/internal/models"
	"github.com/alexjbarnes/dashboard-bff/internal/tokenstore"
)

const (
	testClientID     = "client-id"
	testClientSecret = "client-secret"
	testRedirectURL  = "http://localhost:3000/spotify/auth/callback"
)

// tokenServer fakes the accounts token endpoint. handle receives the
// parsed form after client authentication has been checked.
func tokenServer(t *testing.T, handle func(w http.ResponseWriter, form url.Values)) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/token", r.URL.Path)

		id, secret, ok := r.BasicAuth()
		assert.True(t, ok, "client credentials must use HTTP Basic")
		assert.Equal(t, testClientID, id)
		assert.Equal(t, testClientSecret, secret)

		assert.NoError(t, r.ParseForm())
		handle(w, r.PostForm)
	}))
	t.Cleanup(srv.Close)

	return srv
}

func writeTokenJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func newTestAuthClient(tokenURL string) *AuthClient {
	return NewAuthClient(AuthConfig{
		ClientID:     testClientID,
		ClientSecret: testClientSecret,
		RedirectURL:  testRedirectURL,
		AuthURL:      "https://accounts.example.test/authorize",
		TokenURL:     tokenURL + "/api/token",
	})
}

func TestNewAuthClient_Defaults(t *testing.T) {
	c := NewAuthClient(AuthConfig{ClientID: "id", ClientSecret: "secret"})
	assert.Equal(t, "https://accounts.spotify.com/authorize", c.oauth.Endpoint.AuthURL)
	assert.Equal(t, "https://accounts.spotify.com/api/token", c.oauth.Endpoint.TokenURL)
	assert.Equal(t, "https://accounts.spotify.com/api/token", c.app.TokenURL)
	assert.Equal(t, httpClientTimeout, c.httpClient.Timeout)
}

func TestAuthorizationURL(t *testing.T) {
	c := newTestAuthClient("http://unused")

	raw := c.AuthorizationURL([]string{"user-read-private", "user-top-read"}, "state-abc")

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "accounts.example.test", u.Host)
	assert.Equal(t, "/authorize", u.Path)

	q := u.Query()
	assert.Equal(t, "code", q.Get("response_type"))
	assert.Equal(t, testClientID, q.Get("client_id"))
	assert.Equal(t, testRedirectURL, q.Get("redirect_uri"))
	assert.Equal(t, "user-read-private user-top-read", q.Get("scope"))
	assert.Equal(t, "state-abc", q.Get("state"))
	assert.Equal(t, "true", q.Get("show_dialog"))
}

func TestAuthorizationURL_DoesNotMutateConfig(t *testing.T) {
	c := newTestAuthClient("http://unused")
	_ = c.AuthorizationURL(DefaultScopes, "s")
	assert.Empty(t, c.oauth.Scopes)
}

// An empty store is populated from a code exchange.
func TestExchangeAuthorizationCode_PopulatesStore(t *testing.T) {
	srv := tokenServer(t, func(w http.ResponseWriter, form url.Values) {
		assert.Equal(t, "authorization_code", form.Get("grant_type"))
		assert.Equal(t, "code123", form.Get("code"))
		assert.Equal(t, testRedirectURL, form.Get("redirect_uri"))

		writeTokenJSON(w, http.StatusOK, map[string]any{
			"access_token":  "AT1",
			"token_type":    "Bearer",
			"expires_in":    3600,
			"refresh_token": "RT1",
			"scope":         "user-read-private",
		})
	})

	c := newTestAuthClient(srv.URL)
	store := tokenstore.NewMemory()

	before, err := store.Get()
	require.NoError(t, err)
	require.Nil(t, before)

	rec, err := c.ExchangeAuthorizationCode(context.Background(), "code123")
	require.NoError(t, err)
	assert.Equal(t, models.TokenRecord{
		AccessToken:  "AT1",
		TokenType:    "Bearer",
		ExpiresIn:    3600,
		RefreshToken: "RT1",
		Scope:        "user-read-private",
	}, rec)

	start := time.Now()
	_, err = store.Put(rec)
	require.NoError(t, err)

	got, err := store.Get()
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, int64(3600), got.ExpiresIn)
	assert.InDelta(t, float64(start.UnixMilli()+3600*1000), float64(got.ExpiresAt), 1000)
	assert.False(t, got.Expired(time.Now()))
}

func TestExchangeAuthorizationCode_UpstreamError(t *testing.T) {
	srv := tokenServer(t, func(w http.ResponseWriter, _ url.Values) {
		writeTokenJSON(w, http.StatusBadRequest, map[string]string{
			"error":             "invalid_grant",
			"error_description": "Invalid authorization code",
		})
	})

	c := newTestAuthClient(srv.URL)

	_, err := c.ExchangeAuthorizationCode(context.Background(), "stale")
	require.Error(t, err)

	var uae *UpstreamAuthError
	require.ErrorAs(t, err, &uae)
	assert.Equal(t, "authorization_code", uae.Grant)
	assert.Equal(t, http.StatusBadRequest, uae.StatusCode)
	assert.Equal(t, "invalid_grant", uae.Code)
	assert.Contains(t, uae.Body, "Invalid authorization code")
	assert.ErrorIs(t, err, apperrors.ErrUpstreamAuth)
}

func TestRefresh(t *testing.T) {
	srv := tokenServer(t, func(w http.ResponseWriter, form url.Values) {
		assert.Equal(t, "refresh_token", form.Get("grant_type"))
		assert.Equal(t, "RT1", form.Get("refresh_token"))

		writeTokenJSON(w, http.StatusOK, map[string]any{
			"access_token":  "AT2",
			"token_type":    "Bearer",
			"expires_in":    3600,
			"refresh_token": "RT2",
		})
	})

	c := newTestAuthClient(srv.URL)

	rec, err := c.Refresh(context.Background(), "RT1")
	require.NoError(t, err)
	assert.Equal(t, "AT2", rec.AccessToken)
	assert.Equal(t, "RT2", rec.RefreshToken)
	assert.Equal(t, int64(3600), rec.ExpiresIn)
}

func TestRefresh_OmittedRefreshTokenKeepsStoredOne(t *testing.T) {
	srv := tokenServer(t, func(w http.ResponseWriter, _ url.Values) {
		writeTokenJSON(w, http.StatusOK, map[string]any{
			"access_token": "AT2",
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	})

	c := newTestAuthClient(srv.URL)
	store := tokenstore.NewMemory()
	_, err := store.Put(models.TokenRecord{AccessToken: "AT1", TokenType: "Bearer", ExpiresIn: 3600, RefreshToken: "RT1"})
	require.NoError(t, err)

	rec, err := c.Refresh(context.Background(), "RT1")
	require.NoError(t, err)

	merged, err := store.Update(models.PatchFrom(rec))
	require.NoError(t, err)
	assert.Equal(t, "AT2", merged.AccessToken)
	assert.Equal(t, "RT1", merged.RefreshToken)
}

func TestRefresh_InvalidGrant(t *testing.T) {
	srv := tokenServer(t, func(w http.ResponseWriter, _ url.Values) {
		writeTokenJSON(w, http.StatusBadRequest, map[string]string{
			"error":             "invalid_grant",
			"error_description": "Refresh token revoked",
		})
	})

	c := newTestAuthClient(srv.URL)

	_, err := c.Refresh(context.Background(), "RT1")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrInvalidGrant)
	assert.ErrorIs(t, err, apperrors.ErrUpstreamAuth)
	assert.True(t, IsInvalidGrant(err))
}

func TestRefresh_ServerErrorIsNotInvalidGrant(t *testing.T) {
	srv := tokenServer(t, func(w http.ResponseWriter, _ url.Values) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream \x00 down"))
	})

	c := newTestAuthClient(srv.URL)

	_, err := c.Refresh(context.Background(), "RT1")
	require.Error(t, err)

	var uae *UpstreamAuthError
	require.ErrorAs(t, err, &uae)
	assert.Equal(t, http.StatusBadGateway, uae.StatusCode)
	assert.Equal(t, "upstream ? down", uae.Body)
	assert.False(t, IsInvalidGrant(err))
}

func TestRefresh_WithoutToken(t *testing.T) {
	c := newTestAuthClient("http://unused")

	_, err := c.Refresh(context.Background(), "")
	assert.ErrorIs(t, err, apperrors.ErrNoRefreshToken)
}

func TestRefresh_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	c := newTestAuthClient(srv.URL)

	_, err := c.Refresh(context.Background(), "RT1")
	require.Error(t, err)

	var uae *UpstreamAuthError
	assert.False(t, errors.As(err, &uae))
	assert.False(t, IsInvalidGrant(err))
}

func TestClientCredentialsToken(t *testing.T) {
	srv := tokenServer(t, func(w http.ResponseWriter, form url.Values) {
		assert.Equal(t, "client_credentials", form.Get("grant_type"))

		writeTokenJSON(w, http.StatusOK, map[string]any{
			"access_token": "APP1",
			"token_type":   "bearer",
			"expires_in":   3600,
		})
	})

	c := newTestAuthClient(srv.URL)

	rec, err := c.ClientCredentialsToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "APP1", rec.AccessToken)
	assert.Equal(t, int64(3600), rec.ExpiresIn)
	assert.False(t, rec.HasRefreshToken())
}

func TestClientCredentialsToken_Failure(t *testing.T) {
	srv := tokenServer(t, func(w http.ResponseWriter, _ url.Values) {
		writeTokenJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid_client"})
	})

	c := newTestAuthClient(srv.URL)

	_, err := c.ClientCredentialsToken(context.Background())

	var uae *UpstreamAuthError
	require.ErrorAs(t, err, &uae)
	assert.Equal(t, "client_credentials", uae.Grant)
	assert.Equal(t, "invalid_client", uae.Code)
	assert.False(t, IsInvalidGrant(err))
}

func TestSanitizeResponseBody(t *testing.T) {
	long := make([]byte, 300)
	for i := range long {
		long[i] = 'a'
	}

	assert.Len(t, sanitizeResponseBody(long), 256)
	assert.Equal(t, "a?b", sanitizeResponseBody([]byte("a\x1bb")))
	assert.Equal(t, "line\nnext", sanitizeResponseBody([]byte("line\nnext")))
	assert.Equal(t, "bad?", sanitizeResponseBody([]byte{'b', 'a', 'd', 0xff}))
}
