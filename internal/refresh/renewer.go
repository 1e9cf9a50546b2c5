// Package refresh keeps the stored Spotify token usable: a Renewer
// performs one renewal, and a Coordinator decides when to run it.
package refresh

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	apperrors "github.com/alexjbarnes/dashboard-bff/internal/errors"
	"github.com/alexjbarnes/dashboard-bff/internal/models"
	"github.com/alexjbarnes/dashboard-bff/internal/tokenstore"
)

// Authenticator is the subset of the Spotify accounts client renewals
// need.
type Authenticator interface {
	Refresh(ctx context.Context, refreshToken string) (models.TokenRecord, error)
	ClientCredentialsToken(ctx context.Context) (models.TokenRecord, error)
}

// Renewer replaces the stored token with a fresh one. A user token is
// refreshed and merged; anything else is replaced by a client-credentials
// token.
//
// Every store write of the token lifecycle (login, renewal, logout) goes
// through the Renewer and is serialized by writeMu. Renewals re-read the
// store under writeMu after the upstream call, so a login or logout that
// lands while a grant is in flight is never overwritten.
type Renewer struct {
	store  tokenstore.Store
	auth   Authenticator
	logger *slog.Logger
	now    func() time.Time

	writeMu sync.Mutex

	mu   sync.Mutex
	last time.Time
}

// NewRenewer creates a Renewer. The renewal clock starts now so the
// ceiling is measured from process start until the first renewal.
func NewRenewer(store tokenstore.Store, auth Authenticator, logger *slog.Logger) *Renewer {
	return &Renewer{
		store:  store,
		auth:   auth,
		logger: logger,
		now:    time.Now,
		last:   time.Now(),
	}
}

// LastRenewal is when a token was last obtained successfully.
func (r *Renewer) LastRenewal() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.last
}

// Install stores a token obtained elsewhere, such as the login callback,
// and restarts the renewal clock.
func (r *Renewer) Install(rec models.TokenRecord) (models.TokenRecord, error) {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	stored, err := r.store.Put(rec)
	if err != nil {
		return models.TokenRecord{}, fmt.Errorf("storing token: %w", err)
	}

	r.markRenewed()

	return stored, nil
}

// Clear removes the stored token, as on logout.
func (r *Renewer) Clear() error {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	if err := r.store.Clear(); err != nil {
		return fmt.Errorf("clearing token: %w", err)
	}

	return nil
}

// Renew renews whatever token is currently stored.
func (r *Renewer) Renew(ctx context.Context) (models.TokenRecord, error) {
	return r.renew(ctx, r.current())
}

// current reads the store, treating read failures as no record.
func (r *Renewer) current() *models.TokenRecord {
	rec, err := r.store.Get()
	if err != nil {
		r.logger.Warn("reading token store", slog.String("error", err.Error()))
		return nil
	}

	return rec
}

func (r *Renewer) renew(ctx context.Context, rec *models.TokenRecord) (models.TokenRecord, error) {
	if !rec.HasRefreshToken() {
		return r.clientCredentials(ctx)
	}

	return r.refresh(ctx, rec.RefreshToken)
}

func (r *Renewer) clientCredentials(ctx context.Context) (models.TokenRecord, error) {
	tok, err := r.auth.ClientCredentialsToken(ctx)
	if err != nil {
		r.logger.Warn("client credentials grant failed", slog.String("error", err.Error()))
		return models.TokenRecord{}, err
	}

	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	// A login completed while the grant was in flight.
	if cur := r.current(); cur.HasRefreshToken() {
		r.logger.Info("user token stored during client credentials grant, discarding app token")
		return *cur, nil
	}

	stored, err := r.store.Put(tok)
	if err != nil {
		return models.TokenRecord{}, fmt.Errorf("storing client credentials token: %w", err)
	}

	r.markRenewed()
	r.logger.Info("client credentials token obtained",
		slog.Int64("expires_in", stored.ExpiresIn),
	)

	return stored, nil
}

func (r *Renewer) refresh(ctx context.Context, refreshToken string) (models.TokenRecord, error) {
	tok, err := r.auth.Refresh(ctx, refreshToken)

	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	cur := r.current()

	switch {
	case cur == nil:
		r.logger.Info("token store cleared during refresh, discarding result")
		return models.TokenRecord{}, fmt.Errorf("token store cleared during refresh: %w", apperrors.ErrNoRefreshToken)
	case cur.RefreshToken != refreshToken:
		// A new login or a concurrent rotation replaced the token.
		r.logger.Info("stored token replaced during refresh, discarding result")
		return *cur, nil
	}

	if errors.Is(err, apperrors.ErrInvalidGrant) {
		r.logger.Warn("refresh token rejected, clearing stored token", slog.String("error", err.Error()))

		if clearErr := r.store.Clear(); clearErr != nil {
			r.logger.Error("clearing token store", slog.String("error", clearErr.Error()))
		}

		return models.TokenRecord{}, err
	}

	if err != nil {
		r.logger.Warn("token refresh failed, keeping stored token", slog.String("error", err.Error()))
		return models.TokenRecord{}, err
	}

	merged, err := r.store.Update(models.PatchFrom(tok))
	if err != nil {
		return models.TokenRecord{}, fmt.Errorf("storing refreshed token: %w", err)
	}

	r.markRenewed()
	r.logger.Info("token refreshed",
		slog.Int64("expires_in", merged.ExpiresIn),
		slog.Bool("rotated", tok.RefreshToken != "" && tok.RefreshToken != refreshToken),
	)

	return merged, nil
}

func (r *Renewer) markRenewed() {
	r.mu.Lock()
	r.last = r.now()
	r.mu.Unlock()
}
