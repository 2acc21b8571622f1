package transport

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/pechorka/lostfound/internal/api"
)

type stubSession struct {
	mu         sync.Mutex
	token      string
	refreshTo  string
	refreshErr error
	gate       <-chan struct{} // when set, Refresh blocks until closed

	refreshes int32
	expires   int32
}

func (s *stubSession) AccessToken() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token, nil
}

func (s *stubSession) Refresh(ctx context.Context) (string, error) {
	if s.gate != nil {
		<-s.gate
		// Hold the refresh open a little longer so every rejected
		// request has joined the in-flight call before it resolves.
		time.Sleep(50 * time.Millisecond)
	}
	atomic.AddInt32(&s.refreshes, 1)
	if s.refreshErr != nil {
		return "", s.refreshErr
	}
	s.mu.Lock()
	s.token = s.refreshTo
	s.mu.Unlock()
	return s.refreshTo, nil
}

func (s *stubSession) Expire(ctx context.Context) error {
	atomic.AddInt32(&s.expires, 1)
	return nil
}

func TestConcurrentRequestsRefreshOnce(t *testing.T) {
	const n = 8

	// The refresh is held back until every request got its 401, so all of
	// them pile into the same refresh window.
	allRejected := make(chan struct{})
	var rejected int32
	r := chi.NewRouter()
	r.Get("/itens/", func(w http.ResponseWriter, req *http.Request) {
		if req.Header.Get("Authorization") != "Bearer fresh" {
			if atomic.AddInt32(&rejected, 1) == n {
				close(allRejected)
			}
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`{}`))
	})
	srv := httptest.NewServer(r)
	defer srv.Close()

	sess := &stubSession{token: "stale", refreshTo: "fresh", gate: allRejected}
	client := &http.Client{Transport: New(Config{Session: sess})}

	var g errgroup.Group
	for i := 0; i < n; i++ {
		g.Go(func() error {
			resp, err := client.Get(srv.URL + "/itens/")
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("unexpected status %d", resp.StatusCode)
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, int32(1), atomic.LoadInt32(&sess.refreshes))
	assert.Equal(t, int32(0), atomic.LoadInt32(&sess.expires))
}

func TestFailedRefreshExpiresSession(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/itens/", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	srv := httptest.NewServer(r)
	defer srv.Close()

	sess := &stubSession{token: "stale", refreshErr: errors.New("refresh rejected")}
	client := &http.Client{Transport: New(Config{Session: sess})}

	resp, err := client.Get(srv.URL + "/itens/")
	require.Error(t, err)
	assert.ErrorIs(t, err, api.ErrSessionExpired)
	assert.Nil(t, resp)
	assert.Equal(t, int32(1), atomic.LoadInt32(&sess.refreshes))
	assert.Equal(t, int32(1), atomic.LoadInt32(&sess.expires))
}

func TestSkippedEndpointsBypassAuth(t *testing.T) {
	var sawAuth atomic.Value
	sawAuth.Store("")
	r := chi.NewRouter()
	r.Post("/token/", func(w http.ResponseWriter, req *http.Request) {
		sawAuth.Store(req.Header.Get("Authorization"))
		// Bad credentials on a skipped endpoint must come back verbatim,
		// not trigger a refresh.
		w.WriteHeader(http.StatusUnauthorized)
	})
	srv := httptest.NewServer(r)
	defer srv.Close()

	sess := &stubSession{token: "stale", refreshErr: errors.New("must not be called")}
	client := &http.Client{Transport: New(Config{Session: sess})}

	resp, err := client.Post(srv.URL+"/token/", "application/json", strings.NewReader(`{}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "", sawAuth.Load())
	assert.Equal(t, int32(0), atomic.LoadInt32(&sess.refreshes))
}

func TestRetriesOnlyOnce(t *testing.T) {
	var hits int32
	r := chi.NewRouter()
	r.Get("/itens/", func(w http.ResponseWriter, req *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusUnauthorized)
	})
	srv := httptest.NewServer(r)
	defer srv.Close()

	sess := &stubSession{token: "stale", refreshTo: "fresh"}
	client := &http.Client{Transport: New(Config{Session: sess})}

	resp, err := client.Get(srv.URL + "/itens/")
	require.NoError(t, err)
	defer resp.Body.Close()

	// Second 401 is the caller's problem.
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
	assert.Equal(t, int32(1), atomic.LoadInt32(&sess.refreshes))
}

func TestRetryReplaysBody(t *testing.T) {
	var mu sync.Mutex
	var bodies []string
	r := chi.NewRouter()
	r.Post("/comentarios/", func(w http.ResponseWriter, req *http.Request) {
		body, _ := io.ReadAll(req.Body)
		mu.Lock()
		bodies = append(bodies, string(body))
		mu.Unlock()
		if req.Header.Get("Authorization") != "Bearer fresh" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`{}`))
	})
	srv := httptest.NewServer(r)
	defer srv.Close()

	sess := &stubSession{token: "stale", refreshTo: "fresh"}
	client := &http.Client{Transport: New(Config{Session: sess})}

	resp, err := client.Post(srv.URL+"/comentarios/", "application/json", strings.NewReader(`{"texto":"oi"}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, bodies, 2)
	assert.Equal(t, `{"texto":"oi"}`, bodies[0])
	assert.Equal(t, `{"texto":"oi"}`, bodies[1])
}

// plainReader hides the concrete reader type so http.NewRequest cannot
// derive GetBody and the request becomes non-replayable.
type plainReader struct{ r io.Reader }

func (p plainReader) Read(b []byte) (int, error) { return p.r.Read(b) }

func TestNonReplayableBodyReturns401(t *testing.T) {
	var hits int32
	r := chi.NewRouter()
	r.Post("/comentarios/", func(w http.ResponseWriter, req *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusUnauthorized)
	})
	srv := httptest.NewServer(r)
	defer srv.Close()

	sess := &stubSession{token: "stale", refreshTo: "fresh"}
	client := &http.Client{Transport: New(Config{Session: sess})}

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/comentarios/", plainReader{strings.NewReader(`{"texto":"oi"}`)})
	require.NoError(t, err)

	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
	assert.Equal(t, int32(1), atomic.LoadInt32(&sess.refreshes))
}

func TestCallerRequestNotMutated(t *testing.T) {
	var sawAuth atomic.Value
	sawAuth.Store("")
	r := chi.NewRouter()
	r.Get("/itens/", func(w http.ResponseWriter, req *http.Request) {
		sawAuth.Store(req.Header.Get("Authorization"))
		w.Write([]byte(`{}`))
	})
	srv := httptest.NewServer(r)
	defer srv.Close()

	p := New(Config{Session: &stubSession{token: "tok"}})
	req, err := http.NewRequest(http.MethodGet, srv.URL+"/itens/", nil)
	require.NoError(t, err)

	resp, err := p.RoundTrip(req)
	require.NoError(t, err)
	drain(resp)

	assert.Equal(t, "Bearer tok", sawAuth.Load())
	assert.Empty(t, req.Header.Get("Authorization"))
}

func TestSkipMatching(t *testing.T) {
	p := New(Config{Session: &stubSession{}})

	cases := []struct {
		method string
		path   string
		want   bool
	}{
		{http.MethodPost, "/api/token/", true},
		{http.MethodPost, "/api/token/refresh/", true},
		{http.MethodPost, "/api/users/", true},
		{http.MethodGet, "/api/users/me/", false},
		{http.MethodGet, "/api/categorias/", true},
		{http.MethodGet, "/api/blocos/", true},
		{http.MethodGet, "/api/token/", false},
		{http.MethodPost, "/api/itens/", false},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(tc.method, tc.path, nil)
		assert.Equal(t, tc.want, p.skipped(req), "%s %s", tc.method, tc.path)
	}
}
