package gateway

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sage-x-project/agent-gateway/config"
	"github.com/sage-x-project/agent-gateway/registry"
)

// fakeRegistry implements registry.Client over an in-memory map, standing
// in for a real HTTP or Ethereum backend in these tests.
type fakeRegistry struct {
	records map[string]*registry.KeyRecord
}

func (f *fakeRegistry) FetchKey(ctx context.Context, keyID string) (*registry.KeyRecord, error) {
	rec, ok := f.records[keyID]
	if !ok {
		return nil, registry.ErrKeyNotFound
	}
	return rec, nil
}

func (f *fakeRegistry) Backend() string { return "fake" }

func newTestGateway(t *testing.T, reg registry.Client, upstream *httptest.Server) *Gateway {
	t.Helper()

	gw, err := New(config.GatewayConfig{
		APIUpstreamURL: upstream.URL,
		AppUpstreamURL: upstream.URL,
		NonceTTL:       time.Hour,
		ClockSkew:      5 * time.Second,
	}, reg, nil)
	require.NoError(t, err)
	return gw
}

func signedRequest(t *testing.T, method, path string, priv ed25519.PrivateKey, keyID, alg string, created, expires int64, nonce string) *http.Request {
	t.Helper()

	params := fmt.Sprintf(`("@path");keyid="%s";alg="%s";created=%d;expires=%d;nonce="%s"`, keyID, alg, created, expires, nonce)
	base := fmt.Sprintf("\"@path\": %s\n\"@signature-params\": %s", path, params)

	sig := ed25519.Sign(priv, []byte(base))

	req := httptest.NewRequest(method, path, nil)
	req.Header.Set("Signature-Input", fmt.Sprintf("sig1=%s", params))
	req.Header.Set("Signature", fmt.Sprintf("sig1=:%s:", base64.StdEncoding.EncodeToString(sig)))
	return req
}

func TestServeHTTP_UngatedPathPassesThrough(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer upstream.Close()

	gw := newTestGateway(t, &fakeRegistry{}, upstream)

	req := httptest.NewRequest(http.MethodGet, "/anything", nil)
	rec := httptest.NewRecorder()
	gw.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServeHTTP_GatedPathMissingSignatureRejected(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("upstream should not be reached")
	}))
	defer upstream.Close()

	gw := newTestGateway(t, &fakeRegistry{}, upstream)

	req := httptest.NewRequest(http.MethodGet, "/product/42", nil)
	rec := httptest.NewRecorder()
	gw.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestServeHTTP_GatedPathEd25519HappyPath(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer upstream.Close()

	reg := &fakeRegistry{records: map[string]*registry.KeyRecord{
		"agent-1": {KeyID: "agent-1", Algorithm: "ed25519", IsActive: "true", PublicKey: base64.StdEncoding.EncodeToString(pub)},
	}}
	gw := newTestGateway(t, reg, upstream)

	now := time.Now().Unix()
	req := signedRequest(t, http.MethodGet, "/product/42", priv, "agent-1", "ed25519", now-5, now+300, "nonce-happy")
	rec := httptest.NewRecorder()
	gw.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServeHTTP_ReplayRejectedOnSecondUse(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer upstream.Close()

	reg := &fakeRegistry{records: map[string]*registry.KeyRecord{
		"agent-1": {KeyID: "agent-1", Algorithm: "ed25519", IsActive: "true", PublicKey: base64.StdEncoding.EncodeToString(pub)},
	}}
	gw := newTestGateway(t, reg, upstream)

	now := time.Now().Unix()
	req1 := signedRequest(t, http.MethodGet, "/product/42", priv, "agent-1", "ed25519", now-5, now+300, "nonce-replay")
	rec1 := httptest.NewRecorder()
	gw.ServeHTTP(rec1, req1)
	require.Equal(t, http.StatusOK, rec1.Code)

	req2 := signedRequest(t, http.MethodGet, "/product/42", priv, "agent-1", "ed25519", now-5, now+300, "nonce-replay")
	rec2 := httptest.NewRecorder()
	gw.ServeHTTP(rec2, req2)
	assert.Equal(t, http.StatusForbidden, rec2.Code)
}

func TestServeHTTP_ExpiredSignatureRejected(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("upstream should not be reached")
	}))
	defer upstream.Close()

	reg := &fakeRegistry{records: map[string]*registry.KeyRecord{
		"agent-1": {KeyID: "agent-1", Algorithm: "ed25519", IsActive: "true", PublicKey: base64.StdEncoding.EncodeToString(pub)},
	}}
	gw := newTestGateway(t, reg, upstream)

	now := time.Now().Unix()
	req := signedRequest(t, http.MethodGet, "/product/42", priv, "agent-1", "ed25519", now-600, now-300, "nonce-expired")
	rec := httptest.NewRecorder()
	gw.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestServeHTTP_InactiveKeyRejected(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("upstream should not be reached")
	}))
	defer upstream.Close()

	reg := &fakeRegistry{records: map[string]*registry.KeyRecord{
		"agent-1": {KeyID: "agent-1", Algorithm: "ed25519", IsActive: "false", PublicKey: base64.StdEncoding.EncodeToString(pub)},
	}}
	gw := newTestGateway(t, reg, upstream)

	now := time.Now().Unix()
	req := signedRequest(t, http.MethodGet, "/product/42", priv, "agent-1", "ed25519", now-5, now+300, "nonce-inactive")
	rec := httptest.NewRecorder()
	gw.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.NotContains(t, rec.Body.String(), "KEY_INACTIVE")
	assert.Contains(t, rec.Body.String(), "The request could not be authenticated.")
}

func TestServeHTTP_UnknownKeyRejected(t *testing.T) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("upstream should not be reached")
	}))
	defer upstream.Close()

	gw := newTestGateway(t, &fakeRegistry{records: map[string]*registry.KeyRecord{}}, upstream)

	now := time.Now().Unix()
	req := signedRequest(t, http.MethodGet, "/product/42", priv, "no-such-key", "ed25519", now-5, now+300, "nonce-unknown")
	rec := httptest.NewRecorder()
	gw.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)

	// The page must not distinguish a missing key from any other
	// authentication failure, or a client could enumerate registered keys.
	assert.NotContains(t, rec.Body.String(), "KEY_NOT_FOUND")
	assert.Contains(t, rec.Body.String(), "The request could not be authenticated.")
}

func TestServeHTTP_UnsupportedAlgorithmRejected(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	upstreamReached := false
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		upstreamReached = true
		w.WriteHeader(http.StatusOK)
	}))
	defer upstream.Close()

	reg := &fakeRegistry{records: map[string]*registry.KeyRecord{
		"agent-1": {KeyID: "agent-1", Algorithm: "ed25519", IsActive: "true", PublicKey: base64.StdEncoding.EncodeToString(pub)},
	}}
	gw := newTestGateway(t, reg, upstream)

	now := time.Now().Unix()
	req := signedRequest(t, http.MethodGet, "/product/42", priv, "agent-1", "hmac-sha256", now-5, now+300, "nonce-unsupported")
	rec := httptest.NewRecorder()
	gw.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, upstreamReached)

	// The bad algorithm must not have spent the nonce: the same nonce on a
	// well-formed request still verifies.
	req2 := signedRequest(t, http.MethodGet, "/product/42", priv, "agent-1", "ed25519", now-5, now+300, "nonce-unsupported")
	rec2 := httptest.NewRecorder()
	gw.ServeHTTP(rec2, req2)
	assert.Equal(t, http.StatusOK, rec2.Code)
}

func TestServeHTTP_SecurityHeadersAlwaysSet(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer upstream.Close()

	gw := newTestGateway(t, &fakeRegistry{}, upstream)

	req := httptest.NewRequest(http.MethodGet, "/product/42", nil)
	rec := httptest.NewRecorder()
	gw.ServeHTTP(rec, req)

	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
}

func TestNewUpstreams_RoutesAPIAndAppSeparately(t *testing.T) {
	apiCalled, appCalled := false, false
	apiSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		apiCalled = true
	}))
	defer apiSrv.Close()
	appSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		appCalled = true
	}))
	defer appSrv.Close()

	ups, err := newUpstreams(apiSrv.URL, appSrv.URL, nil)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/widgets", nil)
	ups.forward(httptest.NewRecorder(), req)
	assert.True(t, apiCalled)
	assert.False(t, appCalled)
}

