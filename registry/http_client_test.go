package registry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPClient_FetchKey_Found(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/keys/agent-1", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"key_id":"agent-1","algorithm":"ed25519","is_active":"true","public_key":"abc"}`))
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, time.Second)
	rec, err := c.FetchKey(context.Background(), "agent-1")
	require.NoError(t, err)
	assert.Equal(t, "agent-1", rec.KeyID)
	assert.True(t, rec.Active())
}

func TestHTTPClient_FetchKey_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, time.Second)
	_, err := c.FetchKey(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrKeyNotFound)
}

func TestHTTPClient_FetchKey_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, time.Second)
	_, err := c.FetchKey(context.Background(), "agent-1")
	assert.ErrorIs(t, err, ErrKeyNotFound)
}

func TestHTTPClient_FetchKey_TransportError(t *testing.T) {
	c := NewHTTPClient("http://127.0.0.1:0", 50*time.Millisecond)
	_, err := c.FetchKey(context.Background(), "agent-1")
	require.Error(t, err)
	var unavailable *ErrRegistryUnavailable
	assert.ErrorAs(t, err, &unavailable)
}
