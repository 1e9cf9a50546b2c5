package errors

import "errors"

// Token store errors.
var (
	ErrNoRecord   = errors.New("no existing token record")
	ErrNoToken    = errors.New("no access token available")
	ErrStoreRead  = errors.New("token store read failed")
	ErrStoreWrite = errors.New("token store write failed")
)

// Token lifecycle errors.
var (
	ErrInvalidGrant      = errors.New("refresh token rejected")
	ErrNoRefreshToken    = errors.New("no refresh token available")
	ErrRefreshInProgress = errors.New("token refresh already in progress")
	ErrUpstreamAuth      = errors.New("token endpoint request failed")
)
