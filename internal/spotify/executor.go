package spotify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/sync/singleflight"

	apperrors "github.com/alexjbarnes/dashboard-bff/internal/errors"
	"github.com/alexjbarnes/dashboard-bff/internal/models"
	"github.com/alexjbarnes/dashboard-bff/internal/tokenstore"
)

// APIURL is the Spotify Web API base.
const APIURL = "https://api.spotify.com/v1"

const (
	// httpClientTimeout bounds every outbound call when no client is
	// supplied.
	httpClientTimeout = 30 * time.Second

	// maxAPIResponseBytes caps response body reads to prevent a
	// misbehaving server from consuming unbounded memory.
	maxAPIResponseBytes = 4 * 1024 * 1024
)

// Outcome classifies an executed request.
type Outcome int

const (
	// OutcomeOK means a 2xx response with a body.
	OutcomeOK Outcome = iota
	// OutcomeNoContent means the upstream answered 204.
	OutcomeNoContent
	// OutcomeNoToken means no usable access token was available.
	OutcomeNoToken
	// OutcomeUnauthorized means the token was rejected even after one
	// renewal.
	OutcomeUnauthorized
	// OutcomeUpstreamError covers transport failures and non-auth
	// error statuses.
	OutcomeUpstreamError
)

func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeNoContent:
		return "no_content"
	case OutcomeNoToken:
		return "no_token"
	case OutcomeUnauthorized:
		return "unauthorized"
	default:
		return "upstream_error"
	}
}

// Result is what an executed request produced. Body is only set for
// OutcomeOK.
type Result struct {
	Outcome Outcome
	Status  int
	Body    []byte
}

// OK reports whether Body holds upstream data.
func (r Result) OK() bool {
	return r.Outcome == OutcomeOK
}

// Err describes why a result carries no data. It is nil for OutcomeOK
// and OutcomeNoContent.
func (r Result) Err() error {
	switch r.Outcome {
	case OutcomeOK, OutcomeNoContent:
		return nil
	case OutcomeNoToken:
		return apperrors.ErrNoToken
	case OutcomeUnauthorized:
		return fmt.Errorf("spotify api: access token rejected (status %d)", r.Status)
	default:
		if r.Status == 0 {
			return errors.New("spotify api: request failed")
		}

		return fmt.Errorf("spotify api: status %d", r.Status)
	}
}

// Renewer obtains a fresh token and stores it.
type Renewer interface {
	Renew(ctx context.Context) (models.TokenRecord, error)
}

// ExecutorConfig configures an Executor.
type ExecutorConfig struct {
	Store   tokenstore.Store
	Renewer Renewer
	BaseURL string

	// HTTPClient is used for resource calls. Nil uses a client with a 30
	// second timeout.
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Executor issues bearer-authenticated GETs against the Web API. It never
// returns an error: failures are folded into the Result outcome so the
// caller can render a neutral payload.
type Executor struct {
	store      tokenstore.Store
	renewer    Renewer
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
	now        func() time.Time

	// renewals coalesces reactive renewals from concurrent requests.
	renewals singleflight.Group
}

// NewExecutor creates an Executor from cfg.
func NewExecutor(cfg ExecutorConfig) *Executor {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = APIURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: httpClientTimeout}
	}

	return &Executor{
		store:      cfg.Store,
		renewer:    cfg.Renewer,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		logger:     cfg.Logger,
		now:        time.Now,
	}
}

// Do performs GET path?query with the stored access token. An expired
// token is renewed first. A 401 triggers exactly one renewal and retry.
func (e *Executor) Do(ctx context.Context, path string, query url.Values) Result {
	rec, err := e.store.Get()
	if err != nil {
		e.logger.Warn("reading token store", slog.String("error", err.Error()))
		return Result{Outcome: OutcomeNoToken}
	}

	if rec == nil || rec.AccessToken == "" {
		return Result{Outcome: OutcomeNoToken}
	}

	renewed := false

	if rec.Expired(e.now()) {
		fresh, err := e.renew(ctx, path)
		if err != nil {
			return Result{Outcome: OutcomeNoToken}
		}

		rec = &fresh
		renewed = true
	}

	res := e.call(ctx, rec.AccessToken, path, query)
	if res.Status != http.StatusUnauthorized || renewed {
		return res
	}

	fresh, err := e.renew(ctx, path)
	if err != nil {
		return res
	}

	return e.call(ctx, fresh.AccessToken, path, query)
}

func (e *Executor) renew(ctx context.Context, path string) (models.TokenRecord, error) {
	// The renewal is shared by every coalesced caller, so one caller
	// going away must not cancel it for the rest.
	shared := context.WithoutCancel(ctx)

	v, err, joined := e.renewals.Do("renew", func() (any, error) {
		return e.renewer.Renew(shared)
	})
	if err != nil {
		e.logger.Warn("token renewal before resource call failed",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)

		return models.TokenRecord{}, err
	}

	e.logger.Debug("token renewed for resource call",
		slog.String("path", path),
		slog.Bool("shared", joined),
	)

	return v.(models.TokenRecord), nil
}

func (e *Executor) call(ctx context.Context, token, path string, query url.Values) Result {
	target := e.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		e.logger.Error("building resource request", slog.String("path", path), slog.String("error", err.Error()))
		return Result{Outcome: OutcomeUpstreamError}
	}

	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		e.logger.Warn("resource request failed", slog.String("path", path), slog.String("error", err.Error()))
		return Result{Outcome: OutcomeUpstreamError}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxAPIResponseBytes))
	if err != nil {
		e.logger.Warn("reading resource response", slog.String("path", path), slog.String("error", err.Error()))
		return Result{Outcome: OutcomeUpstreamError, Status: resp.StatusCode}
	}

	switch {
	case resp.StatusCode == http.StatusNoContent:
		return Result{Outcome: OutcomeNoContent, Status: resp.StatusCode}
	case resp.StatusCode == http.StatusUnauthorized:
		e.logger.Info("resource call unauthorized",
			slog.String("path", path),
			slog.String("message", upstreamMessage(body)),
		)

		return Result{Outcome: OutcomeUnauthorized, Status: resp.StatusCode}
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return Result{Outcome: OutcomeOK, Status: resp.StatusCode, Body: body}
	default:
		e.logger.Warn("resource call returned error status",
			slog.String("path", path),
			slog.Int("status", resp.StatusCode),
			slog.String("message", upstreamMessage(body)),
		)

		return Result{Outcome: OutcomeUpstreamError, Status: resp.StatusCode}
	}
}

// upstreamMessage extracts the Web API error message, falling back to a
// sanitized body excerpt.
func upstreamMessage(body []byte) string {
	if msg := gjson.GetBytes(body, "error.message"); msg.Exists() {
		return sanitizeResponseBody([]byte(msg.String()))
	}

	return sanitizeResponseBody(body)
}
