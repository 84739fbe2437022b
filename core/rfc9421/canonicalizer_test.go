package rfc9421

import (
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRequest(t *testing.T, rawURL string, headers map[string]string) *http.Request {
	u, err := url.Parse(rawURL)
	require.NoError(t, err)

	req := &http.Request{
		Method: http.MethodGet,
		URL:    u,
		Host:   u.Host,
		Header: http.Header{},
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return req
}

func TestBuildSignatureBase_BasicComponents(t *testing.T) {
	req := newTestRequest(t, "http://merchant.example/product/42?ref=x", nil)
	params := &SignatureInputParams{
		CoveredComponents: []string{`"@authority"`, `"@path"`},
		RawParams:         `("@authority" "@path");keyId="k1";alg="ed25519";nonce="n1"`,
	}

	c := NewCanonicalizer()
	base, err := c.BuildSignatureBase(req, "sig2", params)
	require.NoError(t, err)

	expected := "\"@authority\": merchant.example\n" +
		"\"@path\": /product/42?ref=x\n" +
		`"@signature-params": ("@authority" "@path");keyId="k1";alg="ed25519";nonce="n1"`
	assert.Equal(t, expected, base)
}

func TestBuildSignatureBase_AbsentComponentOmittedSilently(t *testing.T) {
	req := newTestRequest(t, "http://merchant.example/product/42", nil)
	params := &SignatureInputParams{
		CoveredComponents: []string{`"@path"`, `"x-missing"`},
		RawParams:         `("@path" "x-missing");keyId="k1";alg="ed25519";nonce="n1"`,
	}

	c := NewCanonicalizer()
	base, err := c.BuildSignatureBase(req, "sig2", params)
	require.NoError(t, err)

	expected := "\"@path\": /product/42\n" +
		`"@signature-params": ("@path" "x-missing");keyId="k1";alg="ed25519";nonce="n1"`
	assert.Equal(t, expected, base)
}

func TestBuildSignatureBase_ContentTypeDefaultsWhenAbsent(t *testing.T) {
	req := newTestRequest(t, "http://merchant.example/product/42", nil)
	params := &SignatureInputParams{
		CoveredComponents: []string{`"content-type"`},
		RawParams:         `("content-type");keyId="k1";alg="ed25519";nonce="n1"`,
	}

	c := NewCanonicalizer()
	base, err := c.BuildSignatureBase(req, "sig2", params)
	require.NoError(t, err)
	assert.Contains(t, base, `"content-type": application/json`)
}

func TestBuildSignatureBase_ContentTypeUsesActualHeaderWhenPresent(t *testing.T) {
	req := newTestRequest(t, "http://merchant.example/product/42", map[string]string{
		"Content-Type": "application/xml",
	})
	params := &SignatureInputParams{
		CoveredComponents: []string{`"content-type"`},
		RawParams:         `("content-type");keyId="k1";alg="ed25519";nonce="n1"`,
	}

	c := NewCanonicalizer()
	base, err := c.BuildSignatureBase(req, "sig2", params)
	require.NoError(t, err)
	assert.Contains(t, base, `"content-type": application/xml`)
}

func TestBuildSignatureBase_RoundTripDeterministic(t *testing.T) {
	req := newTestRequest(t, "http://merchant.example/product/42?a=1", map[string]string{
		"X-Custom": "value",
	})
	params := &SignatureInputParams{
		CoveredComponents: []string{`"@authority"`, `"@path"`, `"x-custom"`},
		RawParams:         `("@authority" "@path" "x-custom");keyId="k1";alg="ed25519";nonce="n1"`,
	}

	c := NewCanonicalizer()
	first, err := c.BuildSignatureBase(req, "sig2", params)
	require.NoError(t, err)
	second, err := c.BuildSignatureBase(req, "sig2", params)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestBuildSignatureBase_HostMatchesAuthority(t *testing.T) {
	req := newTestRequest(t, "http://merchant.example:8443/x", nil)
	params := &SignatureInputParams{
		CoveredComponents: []string{`"@authority"`, `"host"`},
		RawParams:         `("@authority" "host");keyId="k1";alg="ed25519";nonce="n1"`,
	}

	c := NewCanonicalizer()
	base, err := c.BuildSignatureBase(req, "sig2", params)
	require.NoError(t, err)
	assert.Contains(t, base, `"@authority": merchant.example:8443`)
	assert.Contains(t, base, `"host": merchant.example:8443`)
}
