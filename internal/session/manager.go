package session

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/pechorka/lostfound/internal/api"
	"github.com/pechorka/lostfound/internal/tokenstore"
	"github.com/pechorka/lostfound/internal/transport"
)

// Session is the client-side record of who is logged in. The zero value
// means "unauthenticated".
type Session struct {
	User *api.User
}

func (s Session) Active() bool {
	return s.User != nil
}

type Config struct {
	Store   *tokenstore.Store
	BaseURL string
	Base    http.RoundTripper // defaults to http.DefaultTransport
	Timeout time.Duration
	Logf    func(format string, args ...any)
}

// Manager owns the session state: it is the only component that gives
// tokens their meaning. Raw backend calls for the token lifecycle go
// through a plain client; everything else goes through the authenticated
// pipeline the manager builds around itself.
type Manager struct {
	store  *tokenstore.Store
	raw    *api.Client
	authed *api.Client
	httpc  *http.Client

	mu      sync.RWMutex
	current Session
	subs    map[int]chan Session
	nextSub int
}

func NewManager(cfg Config) *Manager {
	if cfg.Base == nil {
		cfg.Base = http.DefaultTransport
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	m := &Manager{
		store: cfg.Store,
		subs:  make(map[int]chan Session),
	}
	m.raw = api.NewClient(cfg.BaseURL, &http.Client{
		Transport: cfg.Base,
		Timeout:   cfg.Timeout,
	})
	pipeline := transport.New(transport.Config{
		Base:    cfg.Base,
		Session: m,
		Logf:    cfg.Logf,
	})
	m.httpc = &http.Client{
		Transport: pipeline,
		Timeout:   cfg.Timeout,
	}
	m.authed = api.NewClient(cfg.BaseURL, m.httpc)
	return m
}

// Client returns the authenticated http client for anything outside this
// package that wants to talk to the backend directly.
func (m *Manager) Client() *http.Client {
	return m.httpc
}

// API returns the api client wired through the authenticated pipeline.
func (m *Manager) API() *api.Client {
	return m.authed
}

// Login exchanges credentials for a token pair, stores it and publishes
// the new session. Nothing is mutated on failure.
func (m *Manager) Login(ctx context.Context, username, password string) (*api.User, error) {
	resp, err := m.raw.Token(ctx, username, password)
	if err != nil {
		return nil, err
	}
	err = m.store.Set(tokenstore.TokenPair{Access: resp.Access, Refresh: resp.Refresh})
	if err != nil {
		return nil, errors.Wrap(err, "storing token pair")
	}
	user, err := m.authed.Me(ctx)
	if err != nil {
		// The pair is valid even if the profile fetch hiccuped; fall
		// back to the identity the login response already carries.
		user = &api.User{
			ID:        resp.UserID,
			Username:  resp.Username,
			FirstName: resp.Name,
		}
	}
	m.publish(Session{User: user})
	return user, nil
}

// Register creates an account. Anonymous: no session state is touched.
func (m *Manager) Register(ctx context.Context, params api.RegisterParams) (*api.User, error) {
	return m.raw.Register(ctx, params)
}

// Logout tells the backend to blacklist the refresh token (best effort,
// a dead backend never blocks local teardown), clears the store and
// publishes the unauthenticated session. Safe to call twice.
func (m *Manager) Logout(ctx context.Context) error {
	pair, err := m.store.Get()
	if err == nil && pair != nil {
		// Server-side invalidation failing must not block teardown.
		_ = m.raw.Logout(ctx, pair.Refresh, pair.Access)
	}
	if err := m.store.Clear(); err != nil {
		return errors.Wrap(err, "clearing token store")
	}
	m.publish(Session{})
	return nil
}

// Expire is the pipeline's forced-logout hook.
func (m *Manager) Expire(ctx context.Context) error {
	return m.Logout(ctx)
}

// Refresh trades the stored refresh token for a new access token and
// persists it. It never logs out on its own: the pipeline owns that
// decision.
func (m *Manager) Refresh(ctx context.Context) (string, error) {
	pair, err := m.store.Get()
	if err != nil {
		// Fail closed: an unreadable store means no usable token.
		return "", errors.Wrap(err, "reading token store")
	}
	if pair == nil {
		return "", api.ErrNothingToRefresh
	}
	access, err := m.raw.TokenRefresh(ctx, pair.Refresh)
	if err != nil {
		return "", err
	}
	if err := m.store.SetAccess(access); err != nil {
		return "", errors.Wrap(err, "storing refreshed access token")
	}
	return access, nil
}

// AccessToken returns the stored access token without validating it.
func (m *Manager) AccessToken() (string, error) {
	pair, err := m.store.Get()
	if err != nil {
		return "", errors.Wrap(err, "reading token store")
	}
	if pair == nil {
		return "", nil
	}
	return pair.Access, nil
}

// Bootstrap validates a pre-existing pair on process start by fetching
// the profile through the pipeline (so an expired access token gets
// refreshed on the way). Any failure clears the inconsistent state.
func (m *Manager) Bootstrap(ctx context.Context) error {
	pair, err := m.store.Get()
	if err != nil {
		_ = m.store.Clear()
		m.publish(Session{})
		return errors.Wrap(err, "reading token store")
	}
	if pair == nil {
		m.publish(Session{})
		return nil
	}
	user, err := m.authed.Me(ctx)
	if err != nil {
		if lerr := m.Logout(ctx); lerr != nil {
			return lerr
		}
		return errors.Wrap(err, "validating stored session")
	}
	m.publish(Session{User: user})
	return nil
}

// Current returns the latest published session.
func (m *Manager) Current() Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Subscribe returns a channel that immediately yields the current
// session and then every change. Slow subscribers only ever see the
// latest value; intermediate ones may be dropped. The cancel func stops
// the subscription and closes the channel.
func (m *Manager) Subscribe() (<-chan Session, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch := make(chan Session, 1)
	ch <- m.current
	id := m.nextSub
	m.nextSub++
	m.subs[id] = ch
	cancel := func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if sub, ok := m.subs[id]; ok {
			delete(m.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

func (m *Manager) publish(s Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = s
	for _, ch := range m.subs {
		// Replace-latest: drop a stale undelivered value, never block.
		select {
		case <-ch:
		default:
		}
		ch <- s
	}
}
