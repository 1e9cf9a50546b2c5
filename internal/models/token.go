// Package models defines types shared across internal packages.
package models

import (
	"time"

	apperrors "github.com/alexjbarnes/dashboard-bff/internal/errors"
)

// TokenRecord is the single live OAuth credential held by the process.
// ExpiresAt is epoch milliseconds and is always derived from ExpiresIn at
// write time, never taken from upstream.
type TokenRecord struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	ExpiresAt    int64  `json:"expires_at"`
	RefreshToken string `json:"refresh_token,omitempty"`
	Scope        string `json:"scope,omitempty"`
}

// HasRefreshToken reports whether the record came from a user-delegated
// grant and can be refreshed.
func (r *TokenRecord) HasRefreshToken() bool {
	return r != nil && r.RefreshToken != ""
}

// Expired reports whether the access token is past its expiry at now.
func (r *TokenRecord) Expired(now time.Time) bool {
	return now.UnixMilli() >= r.ExpiresAt
}

// Remaining returns the time left before expiry. Negative once expired.
func (r *TokenRecord) Remaining(now time.Time) time.Duration {
	return time.Duration(r.ExpiresAt-now.UnixMilli()) * time.Millisecond
}

// Stamp returns a copy of r with ExpiresAt recomputed relative to now.
func (r TokenRecord) Stamp(now time.Time) TokenRecord {
	r.ExpiresAt = now.UnixMilli() + r.ExpiresIn*1000
	return r
}

// TokenPatch is a partial update. Nil fields keep their previous value.
type TokenPatch struct {
	AccessToken  *string
	TokenType    *string
	ExpiresIn    *int64
	RefreshToken *string
	Scope        *string
}

// PatchFrom converts a freshly issued record into a patch. Empty optional
// fields are left unset so a refresh response without a new refresh token
// keeps the stored one.
func PatchFrom(r TokenRecord) TokenPatch {
	p := TokenPatch{
		AccessToken: &r.AccessToken,
		ExpiresIn:   &r.ExpiresIn,
	}

	if r.TokenType != "" {
		p.TokenType = &r.TokenType
	}

	if r.RefreshToken != "" {
		p.RefreshToken = &r.RefreshToken
	}

	if r.Scope != "" {
		p.Scope = &r.Scope
	}

	return p
}

// Merge applies patch on top of base and restamps the expiry at now. A nil
// base is only accepted when the patch carries both an access token and
// an expiry window; otherwise ErrNoRecord is returned.
func Merge(base *TokenRecord, patch TokenPatch, now time.Time) (TokenRecord, error) {
	var out TokenRecord

	if base == nil {
		if patch.AccessToken == nil || *patch.AccessToken == "" || patch.ExpiresIn == nil {
			return TokenRecord{}, apperrors.ErrNoRecord
		}
	} else {
		out = *base
	}

	if patch.AccessToken != nil {
		out.AccessToken = *patch.AccessToken
	}

	if patch.TokenType != nil {
		out.TokenType = *patch.TokenType
	}

	if patch.ExpiresIn != nil {
		out.ExpiresIn = *patch.ExpiresIn
	}

	if patch.RefreshToken != nil {
		out.RefreshToken = *patch.RefreshToken
	}

	if patch.Scope != nil {
		out.Scope = *patch.Scope
	}

	if out.TokenType == "" {
		out.TokenType = "Bearer"
	}

	return out.Stamp(now), nil
}
