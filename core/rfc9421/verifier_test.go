package rfc9421

import (
	"crypto"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerify_Ed25519HappyPath(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	base := []byte("\"@path\": /product/42\n\"@signature-params\": (\"@path\")")
	sig := ed25519.Sign(priv, base)

	v := NewVerifier()
	err = v.Verify(string(AlgorithmEd25519), base64.StdEncoding.EncodeToString(pub), base, sig)
	assert.NoError(t, err)
}

func TestVerify_Ed25519WrongSignature(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	v := NewVerifier()
	err = v.Verify(string(AlgorithmEd25519), base64.StdEncoding.EncodeToString(pub), []byte("base"), make([]byte, ed25519.SignatureSize))
	assert.ErrorIs(t, err, ErrSignatureInvalid)
}

func TestVerify_Ed25519BadKeyLength(t *testing.T) {
	v := NewVerifier()
	err := v.Verify(string(AlgorithmEd25519), base64.StdEncoding.EncodeToString([]byte("short")), []byte("base"), make([]byte, ed25519.SignatureSize))
	assert.Error(t, err)
}

func TestVerify_RSAPSSHappyPath(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	base := []byte("\"@path\": /product/42\n\"@signature-params\": (\"@path\")")
	digest := sha256.Sum256(base)

	saltLen := maxPSSSaltLength(&key.PublicKey, crypto.SHA256)
	sig, err := rsa.SignPSS(rand.Reader, key, crypto.SHA256, digest[:], &rsa.PSSOptions{SaltLength: saltLen, Hash: crypto.SHA256})
	require.NoError(t, err)

	spki, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	pubPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: spki})

	v := NewVerifier()
	err = v.Verify(string(AlgorithmRSAPSSSHA256), string(pubPEM), base, sig)
	assert.NoError(t, err)
}

func TestVerify_UnsupportedAlgorithm(t *testing.T) {
	v := NewVerifier()
	err := v.Verify("hmac-sha256", "", []byte("base"), []byte("sig"))
	assert.ErrorIs(t, err, ErrUnsupportedAlgorithm)
}
