// Package coordinator owns the periodic login/discover/publish cycle for one
// Mobile Link account. Accounts are fully independent: each coordinator has
// its own client, session state, and goroutine, and serializes access to its
// session as the client requires.
package coordinator

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kmansel/mobilelink/internal/mobilelink"
)

// DefaultInterval matches the dashboard's own refresh cadence.
const DefaultInterval = 5 * time.Minute

// API is the slice of the mobilelink client the coordinator drives.
type API interface {
	Login(ctx context.Context, email, password string) error
	LoginWithCookie(ctx context.Context, cookieHeader string) error
	DiscoverTanks(ctx context.Context) (map[int64]mobilelink.PropaneTank, error)
}

// Publisher receives the normalized tank set after every successful refresh.
type Publisher interface {
	PublishTanks(ctx context.Context, account string, tanks map[int64]mobilelink.PropaneTank) error
}

// Credentials selects the login mode: CookieHeader, when set, wins over
// email/password.
type Credentials struct {
	Email        string
	Password     string
	CookieHeader string
}

type Coordinator struct {
	account    string
	api        API
	creds      Credentials
	selected   map[int64]bool
	interval   time.Duration
	log        *zap.Logger
	publishers []Publisher

	mu            sync.RWMutex
	tanks         map[int64]mobilelink.PropaneTank
	lastErr       error
	lastRefresh   time.Time
	authenticated bool
}

// New builds a coordinator. account is a stable label (normally the email),
// selected limits discovery results to the given apparatus ids (empty means
// all), interval <= 0 means DefaultInterval.
func New(account string, api API, creds Credentials, selected []int64, interval time.Duration, log *zap.Logger, publishers ...Publisher) *Coordinator {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if log == nil {
		log = zap.NewNop()
	}

	var selectedSet map[int64]bool
	if len(selected) > 0 {
		selectedSet = make(map[int64]bool, len(selected))
		for _, id := range selected {
			selectedSet[id] = true
		}
	}

	return &Coordinator{
		account:    account,
		api:        api,
		creds:      creds,
		selected:   selectedSet,
		interval:   interval,
		log:        log.With(zap.String("account", account)),
		publishers: publishers,
	}
}

// AddPublisher attaches another publisher. Must be called before Run.
func (c *Coordinator) AddPublisher(p Publisher) {
	c.publishers = append(c.publishers, p)
}

// Run refreshes immediately and then on every tick until ctx is cancelled.
// Refresh errors are recorded and retried on the next tick; the host owns
// any further retry policy.
func (c *Coordinator) Run(ctx context.Context) {
	c.refreshAndLog(ctx)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.refreshAndLog(ctx)
		}
	}
}

func (c *Coordinator) refreshAndLog(ctx context.Context) {
	if err := c.Refresh(ctx); err != nil {
		var authError *mobilelink.AuthError
		if errors.As(err, &authError) {
			c.log.Warn("refresh failed, re-authenticating on next cycle",
				zap.String("code", authError.Code),
				zap.String("step", authError.Step))
			return
		}
		c.log.Warn("refresh failed", zap.Error(err))
	}
}

// Refresh performs one poll cycle: login if the session is not established,
// discover tanks, publish. An auth failure during discovery invalidates the
// session so the next cycle re-authenticates.
func (c *Coordinator) Refresh(ctx context.Context) error {
	if !c.isAuthenticated() {
		if err := c.login(ctx); err != nil {
			c.recordError(err)
			return err
		}
		c.setAuthenticated(true)
		c.log.Info("session established")
	}

	tanks, err := c.api.DiscoverTanks(ctx)
	if err != nil {
		var authError *mobilelink.AuthError
		if errors.As(err, &authError) {
			c.setAuthenticated(false)
		}
		c.recordError(err)
		return err
	}

	tanks = c.filterSelected(tanks)
	c.recordTanks(tanks)
	c.log.Debug("refresh complete", zap.Int("tanks", len(tanks)))

	for _, publisher := range c.publishers {
		if err := publisher.PublishTanks(ctx, c.account, tanks); err != nil {
			c.log.Warn("publish failed", zap.Error(err))
		}
	}
	return nil
}

func (c *Coordinator) login(ctx context.Context) error {
	if c.creds.CookieHeader != "" {
		return c.api.LoginWithCookie(ctx, c.creds.CookieHeader)
	}
	return c.api.Login(ctx, c.creds.Email, c.creds.Password)
}

func (c *Coordinator) filterSelected(tanks map[int64]mobilelink.PropaneTank) map[int64]mobilelink.PropaneTank {
	if c.selected == nil {
		return tanks
	}
	filtered := make(map[int64]mobilelink.PropaneTank, len(c.selected))
	for id, tank := range tanks {
		if c.selected[id] {
			filtered[id] = tank
		}
	}
	return filtered
}

// Account returns the coordinator's account label.
func (c *Coordinator) Account() string {
	return c.account
}

// Tanks returns a copy of the last successful discovery result.
func (c *Coordinator) Tanks() map[int64]mobilelink.PropaneTank {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[int64]mobilelink.PropaneTank, len(c.tanks))
	for id, tank := range c.tanks {
		out[id] = tank
	}
	return out
}

// LastRefresh reports when the last successful refresh finished and the
// error from the most recent cycle, nil when it succeeded.
func (c *Coordinator) LastRefresh() (time.Time, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastRefresh, c.lastErr
}

func (c *Coordinator) isAuthenticated() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.authenticated
}

func (c *Coordinator) setAuthenticated(v bool) {
	c.mu.Lock()
	c.authenticated = v
	c.mu.Unlock()
}

func (c *Coordinator) recordError(err error) {
	c.mu.Lock()
	c.lastErr = err
	c.mu.Unlock()
}

func (c *Coordinator) recordTanks(tanks map[int64]mobilelink.PropaneTank) {
	c.mu.Lock()
	c.tanks = tanks
	c.lastErr = nil
	c.lastRefresh = time.Now()
	c.mu.Unlock()
}
