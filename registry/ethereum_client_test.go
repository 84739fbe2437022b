package registry

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRPCServer answers every eth_call with the given ABI-encoded result.
func fakeRPCServer(t *testing.T, result []byte) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     json.RawMessage `json:"id"`
			Method string          `json:"method"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "eth_call", req.Method)

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"jsonrpc":"2.0","id":%s,"result":"0x%s"}`, req.ID, hex.EncodeToString(result))
	}))
}

func packGetKeyResult(t *testing.T, algorithm string, isActive bool, publicKey string) []byte {
	t.Helper()
	parsed, err := abi.JSON(strings.NewReader(keyRegistryABI))
	require.NoError(t, err)
	out, err := parsed.Methods["getKey"].Outputs.Pack(algorithm, isActive, publicKey)
	require.NoError(t, err)
	return out
}

func TestEthereumClient_FetchKey_MapsContractResult(t *testing.T) {
	srv := fakeRPCServer(t, packGetKeyResult(t, "Ed25519", true, "a2V5"))
	defer srv.Close()

	c, err := NewEthereumClient(srv.URL, "0x0000000000000000000000000000000000000001")
	require.NoError(t, err)

	rec, err := c.FetchKey(context.Background(), "agent-1")
	require.NoError(t, err)
	assert.Equal(t, "agent-1", rec.KeyID)
	assert.Equal(t, "ed25519", rec.Algorithm)
	assert.True(t, rec.Active())
	assert.Equal(t, "a2V5", rec.PublicKey)
}

func TestEthereumClient_FetchKey_InactiveKey(t *testing.T) {
	srv := fakeRPCServer(t, packGetKeyResult(t, "ed25519", false, "a2V5"))
	defer srv.Close()

	c, err := NewEthereumClient(srv.URL, "0x0000000000000000000000000000000000000001")
	require.NoError(t, err)

	rec, err := c.FetchKey(context.Background(), "agent-1")
	require.NoError(t, err)
	assert.Equal(t, "false", rec.IsActive)
	assert.False(t, rec.Active())
}

func TestEthereumClient_FetchKey_EmptyKeyNotFound(t *testing.T) {
	srv := fakeRPCServer(t, packGetKeyResult(t, "", false, ""))
	defer srv.Close()

	c, err := NewEthereumClient(srv.URL, "0x0000000000000000000000000000000000000001")
	require.NoError(t, err)

	_, err = c.FetchKey(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrKeyNotFound)
}

func TestEthereumClient_FetchKey_RPCUnreachable(t *testing.T) {
	c, err := NewEthereumClient("http://127.0.0.1:0", "0x0000000000000000000000000000000000000001")
	require.NoError(t, err)

	_, err = c.FetchKey(context.Background(), "agent-1")
	require.Error(t, err)
	var unavailable *ErrRegistryUnavailable
	assert.ErrorAs(t, err, &unavailable)
}

func TestEthereumClient_Backend(t *testing.T) {
	srv := fakeRPCServer(t, nil)
	defer srv.Close()

	c, err := NewEthereumClient(srv.URL, "0x0000000000000000000000000000000000000001")
	require.NoError(t, err)
	assert.Equal(t, "ethereum", c.Backend())
}
