// SAGE - Secure Agent Guarantee Engine
// Copyright (C) 2025 SAGE-X-project
//
// This file is part of SAGE.
//
// SAGE is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// SAGE is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with SAGE. If not, see <https://www.gnu.org/licenses/>.

package rfc9421

import (
	"fmt"
	"net/http"
	"strings"
)

// defaultContentType is substituted for an absent content-type component,
// matching the observed signer convention rather than RFC 9421 strictness.
const defaultContentType = "application/json"

// Canonicalizer builds signature base strings from a live request and a
// parsed covered-component list.
type Canonicalizer struct{}

// NewCanonicalizer creates a new Canonicalizer.
func NewCanonicalizer() *Canonicalizer {
	return &Canonicalizer{}
}

// BuildSignatureBase reconstructs the exact byte sequence the signer
// covered: one line per covered component, followed by the verbatim
// "@signature-params" trailer. Components absent from the request are
// silently omitted rather than failing the build, matching the observed
// signer convention.
func (c *Canonicalizer) BuildSignatureBase(req *http.Request, label string, params *SignatureInputParams) (string, error) {
	var lines []string

	for _, component := range params.CoveredComponents {
		line, ok := c.canonicalizeComponent(req, component)
		if ok {
			lines = append(lines, line)
		}
	}

	lines = append(lines, c.signatureParamsLine(params))

	return strings.Join(lines, "\n"), nil
}

func (c *Canonicalizer) canonicalizeComponent(req *http.Request, component string) (string, bool) {
	component = strings.TrimSpace(component)

	if strings.Contains(component, "@query-param") {
		return c.canonicalizeQueryParam(req, component)
	}

	lookup := strings.Trim(component, `"`)

	if strings.HasPrefix(lookup, "@") {
		return c.canonicalizeHTTPComponent(req, lookup)
	}

	return c.canonicalizeHeader(req, lookup)
}

func (c *Canonicalizer) canonicalizeHTTPComponent(req *http.Request, component string) (string, bool) {
	var value string

	switch component {
	case "@authority":
		value = req.Host
		if value == "" {
			value = req.URL.Host
		}
	case "@path":
		value = req.URL.Path
		if req.URL.RawQuery != "" {
			value += "?" + req.URL.RawQuery
		}
		if value == "" {
			value = "/"
		}
	case "@method":
		value = req.Method
	case "@target-uri":
		scheme := req.URL.Scheme
		if scheme == "" {
			if req.TLS != nil {
				scheme = "https"
			} else {
				scheme = "http"
			}
		}
		host := req.Host
		if host == "" {
			host = req.URL.Host
		}
		value = fmt.Sprintf("%s://%s%s", scheme, host, req.URL.RequestURI())
	case "@scheme":
		value = req.URL.Scheme
		if value == "" {
			if req.TLS != nil {
				value = "https"
			} else {
				value = "http"
			}
		}
	case "@request-target":
		target := req.URL.Path
		if target == "" {
			target = "/"
		}
		if req.URL.RawQuery != "" {
			target += "?" + req.URL.RawQuery
		}
		value = fmt.Sprintf("%s %s", req.Method, target)
	case "@query":
		if req.URL.RawQuery != "" {
			value = "?" + req.URL.RawQuery
		} else {
			value = "?"
		}
	default:
		return "", false
	}

	return fmt.Sprintf(`"%s": %s`, component, value), true
}

func (c *Canonicalizer) canonicalizeHeader(req *http.Request, headerName string) (string, bool) {
	lowered := strings.ToLower(headerName)

	if lowered == "host" {
		value := req.Host
		if value == "" {
			value = req.URL.Host
		}
		return fmt.Sprintf(`"host": %s`, value), true
	}

	values := req.Header[http.CanonicalHeaderKey(headerName)]
	if len(values) == 0 {
		if lowered == "content-type" {
			return fmt.Sprintf(`"content-type": %s`, defaultContentType), true
		}
		return "", false
	}

	value := strings.TrimSpace(strings.Join(values, ", "))
	return fmt.Sprintf(`"%s": %s`, lowered, value), true
}

func (c *Canonicalizer) canonicalizeQueryParam(req *http.Request, component string) (string, bool) {
	paramName, err := parseQueryParam(component)
	if err != nil {
		return "", false
	}

	values, exists := req.URL.Query()[paramName]
	if !exists || len(values) == 0 {
		return "", false
	}

	return fmt.Sprintf(`%s: %s`, component, values[0]), true
}

// signatureParamsLine reproduces the "@signature-params" trailer using the
// parser's verbatim capture of the original parameter text, guaranteeing
// byte-identical round-trip regardless of the signer's own formatting.
func (c *Canonicalizer) signatureParamsLine(params *SignatureInputParams) string {
	return fmt.Sprintf(`"@signature-params": %s`, params.RawParams)
}
