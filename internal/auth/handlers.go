package auth

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"net/url"

	apperrors "github.com/alexjbarnes/dashboard-bff/internal/errors"
	"github.com/alexjbarnes/dashboard-bff/internal/models"
	"github.com/alexjbarnes/dashboard-bff/internal/tokenstore"
)

// Callback error codes passed to the frontend as auth_error.
const (
	ErrCodeStateMismatch = "state_mismatch"
	ErrCodeMissingCode   = "missing_code"
	ErrCodeServerError   = "server_error"
)

// Authorizer is the part of the Spotify accounts client the login flow
// uses.
type Authorizer interface {
	AuthorizationURL(scopes []string, state string) string
	ExchangeAuthorizationCode(ctx context.Context, code string) (models.TokenRecord, error)
}

// Installer stores the token obtained at login.
type Installer interface {
	Install(rec models.TokenRecord) (models.TokenRecord, error)
}

// Clearer removes the stored token on logout.
type Clearer interface {
	Clear() error
}

// Refresher performs an on-demand refresh of the stored user token.
type Refresher interface {
	RefreshNow(ctx context.Context) (models.TokenRecord, error)
}

// Status is the body of the status endpoint.
type Status struct {
	Authenticated bool  `json:"authenticated"`
	ExpiresIn     int64 `json:"expires_in"`
	ExpiresAt     int64 `json:"expires_at"`
}

// remoteIP extracts the client IP from the request's RemoteAddr,
// stripping the port.
func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}

	return host
}

// HandleLogin redirects the owner to the Spotify consent page.
func HandleLogin(authz Authorizer, scopes []string, cookie StateCookie, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state := cookie.Issue(w)

		logger.Info("starting spotify login", slog.String("ip", remoteIP(r)))
		http.Redirect(w, r, authz.AuthorizationURL(scopes, state), http.StatusFound)
	}
}

// HandleCallback completes the login. Every outcome redirects to the
// frontend with either auth_success=true or auth_error=<code>.
func HandleCallback(authz Authorizer, installer Installer, cookie StateCookie, frontendURL string, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		ip := remoteIP(r)

		if upstream := q.Get("error"); upstream != "" {
			logger.Warn("spotify authorization denied",
				slog.String("ip", ip),
				slog.String("error", upstream),
			)
			cookie.Consume(w, r, "")
			redirectFrontend(w, r, frontendURL, "auth_error", upstream)

			return
		}

		if !cookie.Consume(w, r, q.Get("state")) {
			logger.Warn("state mismatch in spotify callback", slog.String("ip", ip))
			redirectFrontend(w, r, frontendURL, "auth_error", ErrCodeStateMismatch)

			return
		}

		code := q.Get("code")
		if code == "" {
			redirectFrontend(w, r, frontendURL, "auth_error", ErrCodeMissingCode)
			return
		}

		rec, err := authz.ExchangeAuthorizationCode(r.Context(), code)
		if err != nil {
			logger.Error("exchanging authorization code", slog.String("error", err.Error()))
			redirectFrontend(w, r, frontendURL, "auth_error", ErrCodeServerError)

			return
		}

		stored, err := installer.Install(rec)
		if err != nil {
			logger.Error("storing token after login", slog.String("error", err.Error()))
			redirectFrontend(w, r, frontendURL, "auth_error", ErrCodeServerError)

			return
		}

		logger.Info("spotify login complete",
			slog.String("ip", ip),
			slog.Int64("expires_in", stored.ExpiresIn),
			slog.String("scope", stored.Scope),
		)
		redirectFrontend(w, r, frontendURL, "auth_success", "true")
	}
}

// HandleRefresh refreshes the stored user token on demand.
func HandleRefresh(refresher Refresher, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec, err := refresher.RefreshNow(r.Context())

		switch {
		case err == nil:
			writeJSON(w, http.StatusOK, map[string]any{
				"success":    true,
				"expires_in": rec.ExpiresIn,
			})
		case errors.Is(err, apperrors.ErrNoRefreshToken):
			writeJSONError(w, http.StatusUnauthorized, "No refresh token available")
		case errors.Is(err, apperrors.ErrRefreshInProgress):
			writeJSONError(w, http.StatusConflict, "Token refresh already in progress")
		default:
			logger.Error("manual token refresh failed", slog.String("error", err.Error()))
			writeJSONError(w, http.StatusInternalServerError, "Failed to refresh token")
		}
	}
}

// HandleStatus reports whether a token is stored. Store failures read
// as unauthenticated.
func HandleStatus(store tokenstore.Store, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, CurrentStatus(store, logger))
	}
}

// CurrentStatus computes the status body from the store.
func CurrentStatus(store tokenstore.Store, logger *slog.Logger) Status {
	rec, err := store.Get()
	if err != nil {
		logger.Warn("reading token store for status", slog.String("error", err.Error()))
		return Status{}
	}

	if rec == nil || rec.AccessToken == "" {
		return Status{}
	}

	return Status{
		Authenticated: true,
		ExpiresIn:     rec.ExpiresIn,
		ExpiresAt:     rec.ExpiresAt,
	}
}

// HandleLogout clears the stored token.
func HandleLogout(clearer Clearer, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := clearer.Clear(); err != nil {
			logger.Error("clearing token store", slog.String("error", err.Error()))
			writeJSONError(w, http.StatusInternalServerError, "Failed to log out")

			return
		}

		logger.Info("spotify logout", slog.String("ip", remoteIP(r)))
		writeJSON(w, http.StatusOK, map[string]bool{"success": true})
	}
}

// redirectFrontend sends the browser to frontendURL with key=value added
// to its query.
func redirectFrontend(w http.ResponseWriter, r *http.Request, frontendURL, key, value string) {
	target := frontendURL

	if u, err := url.Parse(frontendURL); err == nil {
		q := u.Query()
		q.Set(key, value)
		u.RawQuery = q.Encode()
		target = u.String()
	}

	http.Redirect(w, r, target, http.StatusFound)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
