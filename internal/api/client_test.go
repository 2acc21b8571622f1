package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenInvalidCredentials(t *testing.T) {
	r := chi.NewRouter()
	r.Post("/token/", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	srv := httptest.NewServer(r)
	defer srv.Close()

	client := NewClient(srv.URL, nil)
	_, err := client.Token(context.Background(), "bob", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestTokenRejectsIncompletePair(t *testing.T) {
	r := chi.NewRouter()
	r.Post("/token/", func(w http.ResponseWriter, req *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"access": "A1"})
	})
	srv := httptest.NewServer(r)
	defer srv.Close()

	client := NewClient(srv.URL, nil)
	_, err := client.Token(context.Background(), "bob", "secret")
	assert.Error(t, err)
}

func TestTokenRefresh(t *testing.T) {
	var gotBody string
	r := chi.NewRouter()
	r.Post("/token/refresh/", func(w http.ResponseWriter, req *http.Request) {
		body, _ := io.ReadAll(req.Body)
		gotBody = strings.TrimSpace(string(body))
		json.NewEncoder(w).Encode(map[string]string{"access": "A2"})
	})
	srv := httptest.NewServer(r)
	defer srv.Close()

	client := NewClient(srv.URL, nil)
	access, err := client.TokenRefresh(context.Background(), "R1")
	require.NoError(t, err)
	assert.Equal(t, "A2", access)
	assert.Equal(t, `{"refresh":"R1"}`, gotBody)
}

func TestLogoutSendsBearerAndRefresh(t *testing.T) {
	var gotAuth, gotBody string
	r := chi.NewRouter()
	r.Post("/logout/", func(w http.ResponseWriter, req *http.Request) {
		gotAuth = req.Header.Get("Authorization")
		body, _ := io.ReadAll(req.Body)
		gotBody = strings.TrimSpace(string(body))
		w.WriteHeader(http.StatusResetContent)
	})
	srv := httptest.NewServer(r)
	defer srv.Close()

	client := NewClient(srv.URL, nil)
	err := client.Logout(context.Background(), "R1", "A1")
	require.NoError(t, err)
	assert.Equal(t, "Bearer A1", gotAuth)
	assert.Equal(t, `{"refresh":"R1"}`, gotBody)
}

func TestStatusErrorCarriesBody(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/itens/{id}/", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"detail":"não encontrado"}`))
	})
	srv := httptest.NewServer(r)
	defer srv.Close()

	client := NewClient(srv.URL, nil)
	_, err := client.Item(context.Background(), 99)
	require.Error(t, err)
	assert.True(t, IsStatus(err, http.StatusNotFound))
	assert.False(t, IsStatus(err, http.StatusUnauthorized))
	assert.Contains(t, err.Error(), "não encontrado")
}

func TestBaseURLTrailingSlash(t *testing.T) {
	var gotPath string
	r := chi.NewRouter()
	r.Get("/categorias/", func(w http.ResponseWriter, req *http.Request) {
		gotPath = req.URL.Path
		json.NewEncoder(w).Encode([]Choice{{ID: "eletronicos", Name: "Eletrônicos"}})
	})
	srv := httptest.NewServer(r)
	defer srv.Close()

	client := NewClient(srv.URL+"/", nil)
	choices, err := client.Categories(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "/categorias/", gotPath)
	require.Len(t, choices, 1)
	assert.Equal(t, "eletronicos", choices[0].ID)
}
