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
	"crypto"
	"crypto/ed25519"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
)

// ErrUnsupportedAlgorithm is returned when the envelope names an algorithm
// the verifier does not implement.
var ErrUnsupportedAlgorithm = errors.New("rfc9421: unsupported signature algorithm")

// ErrSignatureInvalid is returned when cryptographic verification fails.
var ErrSignatureInvalid = errors.New("rfc9421: signature verification failed")

// Verifier performs algorithm-dispatched cryptographic verification of a
// base string against key material encoded the way the registry serves it.
type Verifier struct{}

// NewVerifier creates a new Verifier.
func NewVerifier() *Verifier {
	return &Verifier{}
}

// Verify checks signature over baseString using the named algorithm and the
// registry's encoding of publicKey (base64 raw bytes for ed25519, PEM SPKI
// for rsa-pss-sha256). It returns ErrUnsupportedAlgorithm for any other
// algorithm name and ErrSignatureInvalid when the check fails.
func (v *Verifier) Verify(algorithm, publicKey string, baseString []byte, signature []byte) error {
	switch algorithm {
	case string(AlgorithmEd25519):
		return verifyEd25519(publicKey, baseString, signature)
	case string(AlgorithmRSAPSSSHA256):
		return verifyRSAPSS(publicKey, baseString, signature)
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, algorithm)
	}
}

func verifyEd25519(publicKeyB64 string, baseString, signature []byte) error {
	keyBytes, err := base64.StdEncoding.DecodeString(publicKeyB64)
	if err != nil {
		return fmt.Errorf("rfc9421: invalid ed25519 public key encoding: %w", err)
	}
	if len(keyBytes) != ed25519.PublicKeySize {
		return fmt.Errorf("rfc9421: ed25519 public key must be %d bytes, got %d", ed25519.PublicKeySize, len(keyBytes))
	}
	if len(signature) != ed25519.SignatureSize {
		return fmt.Errorf("%w: ed25519 signature must be %d bytes, got %d", ErrSignatureInvalid, ed25519.SignatureSize, len(signature))
	}

	if !ed25519.Verify(ed25519.PublicKey(keyBytes), baseString, signature) {
		return ErrSignatureInvalid
	}
	return nil
}

func verifyRSAPSS(publicKeyPEM string, baseString, signature []byte) error {
	block, _ := pem.Decode([]byte(publicKeyPEM))
	if block == nil {
		return errors.New("rfc9421: invalid RSA public key: not PEM encoded")
	}

	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return fmt.Errorf("rfc9421: invalid RSA SPKI public key: %w", err)
	}

	rsaPub, ok := pub.(*rsa.PublicKey)
	if !ok {
		return errors.New("rfc9421: public key is not an RSA key")
	}

	digest := sha256.Sum256(baseString)

	saltLen := maxPSSSaltLength(rsaPub, crypto.SHA256)
	opts := &rsa.PSSOptions{SaltLength: saltLen, Hash: crypto.SHA256}

	if err := rsa.VerifyPSS(rsaPub, crypto.SHA256, digest[:], signature, opts); err != nil {
		return fmt.Errorf("%w: %v", ErrSignatureInvalid, err)
	}
	return nil
}

// maxPSSSaltLength computes ceil((keybits-1)/8) - hLen - 2, the maximum
// salt length permitted for the modulus, matching common signer defaults.
func maxPSSSaltLength(pub *rsa.PublicKey, hash crypto.Hash) int {
	emBits := pub.N.BitLen() - 1
	emLen := (emBits + 7) / 8
	return emLen - hash.Size() - 2
}
