package spotify

import (
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/tidwall/gjson"
	"golang.org/x/oauth2"

	apperrors "github.com/alexjbarnes/dashboard-bff/internal/errors"
)

// codeInvalidGrant is the OAuth error code Spotify returns for a revoked
// or unknown refresh token.
const codeInvalidGrant = "invalid_grant"

// UpstreamAuthError is a non-2xx answer from the token endpoint.
type UpstreamAuthError struct {
	Grant       string
	StatusCode  int
	Code        string
	Description string
	Body        string
	Err         error
}

func (e *UpstreamAuthError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("spotify %s grant: status %d: %s", e.Grant, e.StatusCode, e.Code)
	}

	return fmt.Sprintf("spotify %s grant: status %d: %s", e.Grant, e.StatusCode, e.Body)
}

func (e *UpstreamAuthError) Unwrap() []error {
	if e.Err == nil {
		return []error{apperrors.ErrUpstreamAuth}
	}

	return []error{apperrors.ErrUpstreamAuth, e.Err}
}

// Is reports invalid grants as ErrInvalidGrant so callers can tell a dead
// refresh token from a transient failure.
func (e *UpstreamAuthError) Is(target error) bool {
	return target == apperrors.ErrInvalidGrant && e.Code == codeInvalidGrant
}

// IsInvalidGrant reports whether err means the refresh token will never
// work again.
func IsInvalidGrant(err error) bool {
	return errors.Is(err, apperrors.ErrInvalidGrant)
}

// errorCode prefers the code oauth2 parsed and falls back to reading the
// body, which covers non-standard content types.
func errorCode(re *oauth2.RetrieveError) string {
	if re.ErrorCode != "" {
		return re.ErrorCode
	}

	if r := gjson.GetBytes(re.Body, "error"); r.Type == gjson.String {
		return r.String()
	}

	return ""
}

// sanitizeResponseBody truncates and sanitizes a response body for
// inclusion in errors and logs. Limits to 256 bytes and replaces
// non-printable characters to prevent log injection.
func sanitizeResponseBody(body []byte) string {
	const maxLen = 256
	if len(body) > maxLen {
		body = body[:maxLen]
	}

	var clean []byte

	for len(body) > 0 {
		r, size := utf8.DecodeRune(body)
		if r == utf8.RuneError && size <= 1 {
			clean = append(clean, '?')
			body = body[1:]

			continue
		}

		if r < 0x20 && r != '\n' && r != '\r' && r != '\t' {
			clean = append(clean, '?')
		} else {
			clean = append(clean, body[:size]...)
		}

		body = body[size:]
	}

	return string(clean)
}
