package refresh

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	apperrors "github.com/alexjbarnes/dashboard-bff/internal/errors"
	"github.com/alexjbarnes/dashboard-bff/internal/models"
	"github.com/alexjbarnes/dashboard-bff/internal/tokenstore"
)

const (
	// DefaultInterval is how often the coordinator checks the token.
	DefaultInterval = 60 * time.Second

	// DefaultThreshold refreshes a token this close to expiry.
	DefaultThreshold = 30 * time.Minute

	// DefaultCeiling forces a refresh this long after the last one even
	// when the stored expiry says there is time left.
	DefaultCeiling = 50 * time.Minute
)

// TickResult says what one coordinator tick did.
type TickResult int

const (
	// TickBusy means a refresh was already in flight.
	TickBusy TickResult = iota
	// TickNotDue means the stored token needs nothing yet.
	TickNotDue
	// TickRenewed means a new token was stored.
	TickRenewed
	// TickFailed means a renewal was attempted and failed.
	TickFailed
)

func (t TickResult) String() string {
	switch t {
	case TickBusy:
		return "busy"
	case TickNotDue:
		return "not_due"
	case TickRenewed:
		return "renewed"
	default:
		return "failed"
	}
}

// Config tunes the coordinator. Zero values take the defaults.
type Config struct {
	Interval  time.Duration
	Threshold time.Duration
	Ceiling   time.Duration
}

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}

	if c.Threshold <= 0 {
		c.Threshold = DefaultThreshold
	}

	if c.Ceiling <= 0 {
		c.Ceiling = DefaultCeiling
	}

	return c
}

// Coordinator renews the stored token in the background. At most one
// renewal it starts is in flight at any time.
type Coordinator struct {
	store   tokenstore.Store
	renewer *Renewer
	cfg     Config
	logger  *slog.Logger
	now     func() time.Time

	refreshing atomic.Bool
}

// NewCoordinator creates a Coordinator around renewer.
func NewCoordinator(store tokenstore.Store, renewer *Renewer, cfg Config, logger *slog.Logger) *Coordinator {
	return &Coordinator{
		store:   store,
		renewer: renewer,
		cfg:     cfg.withDefaults(),
		logger:  logger,
		now:     time.Now,
	}
}

// Run ticks once immediately and then every interval until ctx is done.
func (c *Coordinator) Run(ctx context.Context) error {
	c.logger.Info("token refresh coordinator started",
		slog.Duration("interval", c.cfg.Interval),
		slog.Duration("threshold", c.cfg.Threshold),
		slog.Duration("ceiling", c.cfg.Ceiling),
	)

	c.Tick(ctx)

	ticker := time.NewTicker(c.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("token refresh coordinator stopped")
			return nil
		case <-ticker.C:
			c.Tick(ctx)
		}
	}
}

// Tick inspects the stored token and renews it when due.
func (c *Coordinator) Tick(ctx context.Context) TickResult {
	if !c.refreshing.CompareAndSwap(false, true) {
		c.logger.Debug("refresh already in flight, skipping tick")
		return TickBusy
	}
	defer c.refreshing.Store(false)

	rec := c.renewer.current()

	// Absent records and app tokens are replaced on every tick.
	if !rec.HasRefreshToken() {
		return c.result(c.renewer.clientCredentials(ctx))
	}

	if !c.due(rec) {
		return TickNotDue
	}

	return c.result(c.renewer.refresh(ctx, rec.RefreshToken))
}

// RefreshNow refreshes the stored user token regardless of expiry. It
// shares the tick lock, so it fails with ErrRefreshInProgress instead of
// overlapping a running refresh.
func (c *Coordinator) RefreshNow(ctx context.Context) (models.TokenRecord, error) {
	if !c.refreshing.CompareAndSwap(false, true) {
		return models.TokenRecord{}, apperrors.ErrRefreshInProgress
	}
	defer c.refreshing.Store(false)

	rec := c.renewer.current()
	if !rec.HasRefreshToken() {
		return models.TokenRecord{}, apperrors.ErrNoRefreshToken
	}

	return c.renewer.refresh(ctx, rec.RefreshToken)
}

// due applies the proactive threshold and the hard ceiling.
func (c *Coordinator) due(rec *models.TokenRecord) bool {
	now := c.now()

	remaining := rec.Remaining(now)
	if remaining <= c.cfg.Threshold {
		c.logger.Debug("token refresh due",
			slog.String("reason", "threshold"),
			slog.Duration("remaining", remaining),
		)

		return true
	}

	since := now.Sub(c.renewer.LastRenewal())
	if since > c.cfg.Ceiling {
		c.logger.Debug("token refresh due",
			slog.String("reason", "ceiling"),
			slog.Duration("since_last", since),
		)

		return true
	}

	return false
}

func (c *Coordinator) result(_ models.TokenRecord, err error) TickResult {
	if err != nil {
		return TickFailed
	}

	return TickRenewed
}
