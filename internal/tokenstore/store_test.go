package tokenstore_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pechorka/lostfound/internal/tokenstore"
	"github.com/pechorka/lostfound/pkg/encryptor"
)

func newTestStore(t *testing.T) *tokenstore.Store {
	t.Helper()
	s, err := tokenstore.NewTempStore(encryptor.New("test-secret"))
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, s.Close())
	})
	return s
}

func TestSetGet(t *testing.T) {
	s := newTestStore(t)

	pair, err := s.Get()
	require.NoError(t, err)
	assert.Nil(t, pair)

	err = s.Set(tokenstore.TokenPair{Access: "A1", Refresh: "R1"})
	require.NoError(t, err)

	pair, err = s.Get()
	require.NoError(t, err)
	require.NotNil(t, pair)
	assert.Equal(t, "A1", pair.Access)
	assert.Equal(t, "R1", pair.Refresh)
}

func TestSetRejectsPartialPair(t *testing.T) {
	s := newTestStore(t)

	err := s.Set(tokenstore.TokenPair{Access: "A1"})
	assert.ErrorIs(t, err, tokenstore.ErrPartialPair)

	err = s.Set(tokenstore.TokenPair{Refresh: "R1"})
	assert.ErrorIs(t, err, tokenstore.ErrPartialPair)

	pair, err := s.Get()
	require.NoError(t, err)
	assert.Nil(t, pair)
}

func TestSetAccessPreservesRefresh(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.Set(tokenstore.TokenPair{Access: "A1", Refresh: "R1"}))
	require.NoError(t, s.SetAccess("A2"))

	pair, err := s.Get()
	require.NoError(t, err)
	require.NotNil(t, pair)
	assert.Equal(t, "A2", pair.Access)
	assert.Equal(t, "R1", pair.Refresh)
}

func TestSetAccessWithoutPair(t *testing.T) {
	s := newTestStore(t)

	err := s.SetAccess("A2")
	assert.ErrorIs(t, err, tokenstore.ErrNotFound)
}

func TestClearIsIdempotent(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.Clear()) // nothing stored yet

	require.NoError(t, s.Set(tokenstore.TokenPair{Access: "A1", Refresh: "R1"}))
	require.NoError(t, s.Clear())
	require.NoError(t, s.Clear())

	pair, err := s.Get()
	require.NoError(t, err)
	assert.Nil(t, pair)
}

func TestPairSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokens.db")
	enc := encryptor.New("test-secret")

	s, err := tokenstore.NewStore(path, enc)
	require.NoError(t, err)
	require.NoError(t, s.Set(tokenstore.TokenPair{Access: "A1", Refresh: "R1"}))
	require.NoError(t, s.Close())

	s, err = tokenstore.NewStore(path, enc)
	require.NoError(t, err)
	defer s.Close()

	pair, err := s.Get()
	require.NoError(t, err)
	require.NotNil(t, pair)
	assert.Equal(t, "A1", pair.Access)
	assert.Equal(t, "R1", pair.Refresh)
}

func TestWrongSecretFailsClosed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokens.db")

	s, err := tokenstore.NewStore(path, encryptor.New("secret-one"))
	require.NoError(t, err)
	require.NoError(t, s.Set(tokenstore.TokenPair{Access: "A1", Refresh: "R1"}))
	require.NoError(t, s.Close())

	s, err = tokenstore.NewStore(path, encryptor.New("secret-two"))
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Get()
	assert.Error(t, err)
}

func TestTempStoreRemovesFile(t *testing.T) {
	s, err := tokenstore.NewTempStore(encryptor.New("test-secret"))
	require.NoError(t, err)
	require.NoError(t, s.Set(tokenstore.TokenPair{Access: "A1", Refresh: "R1"}))
	require.NoError(t, s.Close())

	matches, err := filepath.Glob(filepath.Join(os.TempDir(), "lostfound-*.db"))
	require.NoError(t, err)
	assert.Empty(t, matches)
}
