// Copyright (C) 2025 sage-x-project
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

// SPDX-License-Identifier: LGPL-3.0-or-later

package rfc9421

import (
	"encoding/base64"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ErrMultipleSignatures is returned when a signature header carries more
// than one comma-separated entry. Multi-signature envelopes are unsupported.
var ErrMultipleSignatures = errors.New("rfc9421: multiple signatures in one header are not supported")

// ErrInvalidKeyID is returned when a parsed key_id fails the charset/length
// rule, distinct from the broader structural parse failures so callers can
// report a malformed key identifier rather than a malformed envelope.
var ErrInvalidKeyID = errors.New("rfc9421: key_id fails charset rule")

var keyIDPattern = regexp.MustCompile(`^[A-Za-z0-9._-]{1,100}$`)

// ValidKeyID reports whether id satisfies the key_id charset/length rule.
func ValidKeyID(id string) bool {
	return keyIDPattern.MatchString(id)
}

// ParseEnvelope parses a signature-input header value and its companion
// signature header value into a single SignatureEnvelope. Both headers
// must carry exactly one, matching label.
func ParseEnvelope(sigInputHeader, sigHeader string) (*SignatureEnvelope, error) {
	inputs, err := parseSignatureInputEntries(sigInputHeader)
	if err != nil {
		return nil, err
	}
	if len(inputs) != 1 {
		return nil, ErrMultipleSignatures
	}

	sigs, err := parseSignatureEntries(sigHeader)
	if err != nil {
		return nil, err
	}
	if len(sigs) != 1 {
		return nil, ErrMultipleSignatures
	}

	var label string
	var params *SignatureInputParams
	for l, p := range inputs {
		label, params = l, p
	}

	sigBytes, ok := sigs[label]
	if !ok {
		return nil, fmt.Errorf("rfc9421: signature label %q has no matching signature-input entry", label)
	}

	return &SignatureEnvelope{Label: label, Params: params, Sig: sigBytes}, nil
}

// parseSignatureInputEntries parses a Signature-Input header value,
// returning one SignatureInputParams per label.
func parseSignatureInputEntries(input string) (map[string]*SignatureInputParams, error) {
	result := make(map[string]*SignatureInputParams)

	for _, entry := range splitTopLevel(input) {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		label, value, err := splitLabel(entry)
		if err != nil {
			return nil, err
		}

		params, err := parseSignatureInputValue(value)
		if err != nil {
			return nil, fmt.Errorf("rfc9421: failed to parse signature-input %q: %w", label, err)
		}

		result[label] = params
	}

	return result, nil
}

// parseSignatureEntries parses a Signature header value of the form
// LABEL=:BASE64:, returning the decoded bytes per label.
func parseSignatureEntries(input string) (map[string][]byte, error) {
	result := make(map[string][]byte)

	for _, entry := range splitTopLevel(input) {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		label, value, err := splitLabel(entry)
		if err != nil {
			return nil, err
		}

		if !strings.HasPrefix(value, ":") || !strings.HasSuffix(value, ":") || len(value) < 2 {
			return nil, fmt.Errorf("rfc9421: signature %q is not in :BASE64: form", label)
		}

		decoded, err := base64.StdEncoding.DecodeString(value[1 : len(value)-1])
		if err != nil {
			return nil, fmt.Errorf("rfc9421: failed to decode signature %q: %w", label, err)
		}

		result[label] = decoded
	}

	return result, nil
}

func splitLabel(entry string) (label, value string, err error) {
	idx := strings.Index(entry, "=")
	if idx < 0 {
		return "", "", fmt.Errorf("rfc9421: malformed entry %q", entry)
	}
	return strings.TrimSpace(entry[:idx]), strings.TrimSpace(entry[idx+1:]), nil
}

// parseSignatureInputValue parses the `(...)...` value following LABEL=.
func parseSignatureInputValue(value string) (*SignatureInputParams, error) {
	if !strings.HasPrefix(value, "(") {
		return nil, errors.New("rfc9421: component list must start with '('")
	}

	compEnd := matchingParen(value)
	if compEnd < 0 {
		return nil, errors.New("rfc9421: unterminated component list")
	}

	components, err := parseComponents(value[1:compEnd])
	if err != nil {
		return nil, fmt.Errorf("rfc9421: failed to parse components: %w", err)
	}

	params := &SignatureInputParams{
		CoveredComponents: components,
		RawParams:         value,
	}

	if compEnd+1 < len(value) {
		if err := parseParameters(value[compEnd+1:], params); err != nil {
			return nil, fmt.Errorf("rfc9421: failed to parse parameters: %w", err)
		}
	}

	if params.KeyID != "" && !ValidKeyID(params.KeyID) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidKeyID, params.KeyID)
	}

	return params, nil
}

// matchingParen returns the index of the ')' matching the '(' at index 0.
func matchingParen(s string) int {
	depth := 0
	inQuote := false
	for i, ch := range s {
		switch ch {
		case '"':
			inQuote = !inQuote
		case '(':
			if !inQuote {
				depth++
			}
		case ')':
			if !inQuote {
				depth--
				if depth == 0 {
					return i
				}
			}
		}
	}
	return -1
}

// parseComponents tokenises a whitespace-separated list of quoted component
// identifiers, allowing structured suffixes like `"@query-param";name="id"`.
func parseComponents(componentStr string) ([]string, error) {
	var components []string
	current := ""
	inQuote := false

	for _, ch := range componentStr {
		switch ch {
		case '"':
			inQuote = !inQuote
			current += string(ch)
		case ';':
			current += string(ch)
		case ' ', '\t':
			if inQuote {
				current += string(ch)
			} else if current != "" {
				components = append(components, current)
				current = ""
			}
		default:
			current += string(ch)
		}
	}
	if current != "" {
		components = append(components, current)
	}
	if inQuote {
		return nil, errors.New("unclosed quote in component list")
	}

	for _, comp := range components {
		if !strings.HasPrefix(comp, `"`) {
			return nil, fmt.Errorf("invalid component format: %s", comp)
		}
	}

	return components, nil
}

// parseParameters parses the `;key=value;...` parameter tail.
func parseParameters(paramStr string, params *SignatureInputParams) error {
	for _, part := range strings.Split(paramStr, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			continue
		}

		key := strings.ToLower(strings.TrimSpace(kv[0]))
		value := strings.TrimSpace(kv[1])
		if strings.HasPrefix(value, `"`) && strings.HasSuffix(value, `"`) && len(value) >= 2 {
			value = value[1 : len(value)-1]
		}

		switch key {
		case "keyid":
			params.KeyID = value
		case "alg":
			params.Algorithm = strings.ToLower(value)
		case "created":
			created, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid created timestamp: %w", err)
			}
			params.Created = created
		case "expires":
			expires, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid expires timestamp: %w", err)
			}
			params.Expires = expires
		case "nonce":
			params.Nonce = value
		case "tag":
			params.Tag = value
		}
	}

	return nil
}

// splitTopLevel splits on commas that are not inside quotes or parens.
func splitTopLevel(input string) []string {
	var parts []string
	current := ""
	depth := 0
	inQuote := false

	for _, ch := range input {
		switch ch {
		case '"':
			inQuote = !inQuote
			current += string(ch)
		case '(':
			if !inQuote {
				depth++
			}
			current += string(ch)
		case ')':
			if !inQuote {
				depth--
			}
			current += string(ch)
		case ',':
			if !inQuote && depth == 0 {
				parts = append(parts, current)
				current = ""
			} else {
				current += string(ch)
			}
		default:
			current += string(ch)
		}
	}
	if current != "" {
		parts = append(parts, current)
	}
	return parts
}

// parseQueryParam extracts the parameter name from a @query-param component.
func parseQueryParam(component string) (string, error) {
	component = strings.TrimSpace(component)
	if !strings.Contains(component, "@query-param") {
		return "", errors.New("not a query-param component")
	}

	re := regexp.MustCompile(`name\s*=\s*"([^"]+)"`)
	matches := re.FindStringSubmatch(component)
	if len(matches) < 2 {
		return "", errors.New("missing name parameter in @query-param")
	}

	return matches[1], nil
}
