package transport

import (
	"context"
	"io"
	"net/http"
	"strings"

	"golang.org/x/sync/singleflight"

	"github.com/pechorka/lostfound/internal/api"
)

// Session is the slice of the session manager the pipeline needs: read
// the current access token, obtain a fresh one, and tear the session
// down when refresh is hopeless.
type Session interface {
	AccessToken() (string, error)
	Refresh(ctx context.Context) (string, error)
	Expire(ctx context.Context) error
}

// SkipRule marks an endpoint that must never carry a bearer header and
// never enters the refresh flow. Paths are matched by suffix so the rule
// holds whatever prefix the backend is mounted under.
type SkipRule struct {
	Method string
	Path   string
}

// DefaultSkipRules covers credential issuance, anonymous registration
// (the users collection only, not its subroutes) and public reference
// data.
var DefaultSkipRules = []SkipRule{
	{http.MethodPost, "/token/"},
	{http.MethodPost, "/token/refresh/"},
	{http.MethodPost, "/users/"},
	{http.MethodGet, "/categorias/"},
	{http.MethodGet, "/blocos/"},
}

// Pipeline is an http.RoundTripper that authenticates every outgoing
// request. On a 401 it coordinates a single refresh across all in-flight
// requests and retries each of them at most once with the new token.
type Pipeline struct {
	base    http.RoundTripper
	session Session
	skip    []SkipRule
	logf    func(format string, args ...any)

	refresh singleflight.Group
}

type Config struct {
	Base    http.RoundTripper // defaults to http.DefaultTransport
	Session Session
	Skip    []SkipRule // defaults to DefaultSkipRules
	Logf    func(format string, args ...any)
}

func New(cfg Config) *Pipeline {
	if cfg.Base == nil {
		cfg.Base = http.DefaultTransport
	}
	if cfg.Skip == nil {
		cfg.Skip = DefaultSkipRules
	}
	if cfg.Logf == nil {
		cfg.Logf = func(string, ...any) {}
	}
	return &Pipeline{
		base:    cfg.Base,
		session: cfg.Session,
		skip:    cfg.Skip,
		logf:    cfg.Logf,
	}
}

func (p *Pipeline) RoundTrip(req *http.Request) (*http.Response, error) {
	if p.skipped(req) {
		return p.base.RoundTrip(req)
	}

	token, err := p.session.AccessToken()
	if err != nil {
		// Fail closed: send without a token and let the 401 path decide.
		p.logf("pipeline: reading access token: %v", err)
		token = ""
	}
	resp, err := p.base.RoundTrip(withBearer(req, token))
	if err != nil || resp.StatusCode != http.StatusUnauthorized {
		return resp, err
	}

	p.logf("pipeline: got 401 for %s %s, refreshing", req.Method, req.URL.Path)
	newToken, refreshErr := p.refreshToken(req.Context())
	if refreshErr != nil {
		drain(resp)
		return nil, api.ErrSessionExpired
	}

	if req.Body != nil && req.GetBody == nil {
		// Body already consumed and not replayable; hand the 401 back.
		return resp, nil
	}
	drain(resp)

	retry := req.Clone(req.Context())
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, err
		}
		retry.Body = body
	}
	// A second 401 is returned as is: one refresh-triggered retry per
	// request, never more.
	return p.base.RoundTrip(withBearer(retry, newToken))
}

// refreshToken funnels every concurrent 401 into a single backend
// refresh call; all callers observe the same outcome. The losing session
// is torn down exactly once, by the call that performed the refresh.
func (p *Pipeline) refreshToken(ctx context.Context) (string, error) {
	v, err, _ := p.refresh.Do("refresh", func() (any, error) {
		token, err := p.session.Refresh(ctx)
		if err != nil {
			p.logf("pipeline: refresh failed, expiring session: %v", err)
			if expireErr := p.session.Expire(ctx); expireErr != nil {
				p.logf("pipeline: expiring session: %v", expireErr)
			}
			return "", err
		}
		return token, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (p *Pipeline) skipped(req *http.Request) bool {
	for _, rule := range p.skip {
		if req.Method == rule.Method && strings.HasSuffix(req.URL.Path, rule.Path) {
			return true
		}
	}
	return false
}

// withBearer attaches the token to a copy of the request. The caller's
// request is never mutated.
func withBearer(req *http.Request, token string) *http.Request {
	if token == "" {
		return req
	}
	r := req.Clone(req.Context())
	r.Header.Set("Authorization", "Bearer "+token)
	return r
}

func drain(resp *http.Response) {
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}
