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

// SignatureAlgorithm represents a signature algorithm accepted on the wire.
type SignatureAlgorithm string

const (
	AlgorithmEd25519      SignatureAlgorithm = "ed25519"
	AlgorithmRSAPSSSHA256 SignatureAlgorithm = "rsa-pss-sha256"
)

// SupportedAlgorithm reports whether alg names an algorithm the verifier
// implements. Algorithm names are stored lowercase by the parser.
func SupportedAlgorithm(alg string) bool {
	switch SignatureAlgorithm(alg) {
	case AlgorithmEd25519, AlgorithmRSAPSSSHA256:
		return true
	}
	return false
}

// SignatureInputParams holds the parsed parameters of a single labeled
// entry from a Signature-Input header.
type SignatureInputParams struct {
	CoveredComponents []string
	KeyID             string
	Algorithm         string
	Created           int64
	Expires           int64
	Nonce             string

	// Tag describes the operation class (e.g. "browse" vs "pay"). It is
	// carried through for logging only and never interpreted.
	Tag string

	// RawParams is the verbatim substring of the Signature-Input value
	// starting at the opening "(" of the component list through the end
	// of the parameter list, exactly as the signer wrote it. It is used
	// to reproduce the "@signature-params" trailer line byte-for-byte so
	// that BuildSignatureBase round-trips deterministically regardless of
	// the signer's parameter ordering or spacing.
	RawParams string
}

// SignatureEnvelope is the fully parsed pair of Signature-Input and
// Signature header entries for a single signature label on one request.
type SignatureEnvelope struct {
	Label  string
	Params *SignatureInputParams
	Sig    []byte
}
