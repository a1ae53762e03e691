/*
Copyright Gen Digital Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package common

import (
	"crypto"
	"encoding/base64"
	"fmt"
	"strings"

	// registers the sha3-* hash functions used by _sd_alg.
	_ "golang.org/x/crypto/sha3"
)

// Hasher computes the hash of data using the hash algorithm named alg.
// Implementations may block; every caller in this module waits for the result.
type Hasher func(data []byte, alg string) ([]byte, error)

// HasherAndAlgorithm pairs a Hasher with the _sd_alg identifier it implements.
type HasherAndAlgorithm struct {
	Hasher    Hasher
	Algorithm string
}

// nolint:gochecknoglobals
var sdAlgorithms = map[crypto.Hash]string{
	crypto.SHA256:   "sha-256",
	crypto.SHA384:   "sha-384",
	crypto.SHA512:   "sha-512",
	crypto.SHA3_256: "sha3-256",
	crypto.SHA3_384: "sha3-384",
	crypto.SHA3_512: "sha3-512",
}

// NewCryptoHasher creates HasherAndAlgorithm backed by Go crypto.Hash.
func NewCryptoHasher(hash crypto.Hash) (*HasherAndAlgorithm, error) {
	alg, ok := sdAlgorithms[hash]
	if !ok {
		return nil, fmt.Errorf("hash function '%s' is not supported for %s", hash, SDAlgorithmKey)
	}

	if !hash.Available() {
		return nil, fmt.Errorf("hash function not available for: %d", hash)
	}

	return &HasherAndAlgorithm{
		Algorithm: alg,
		Hasher: func(data []byte, requested string) ([]byte, error) {
			if !strings.EqualFold(requested, alg) {
				return nil, fmt.Errorf("hasher for '%s' called with algorithm '%s'", alg, requested)
			}

			h := hash.New()

			if _, err := h.Write(data); err != nil {
				return nil, err
			}

			return h.Sum(nil), nil
		},
	}, nil
}

// NewHasherFromAlgorithm creates HasherAndAlgorithm for _sd_alg identifier.
func NewHasherFromAlgorithm(sdAlg string) (*HasherAndAlgorithm, error) {
	hash, err := GetCryptoHash(sdAlg)
	if err != nil {
		return nil, err
	}

	return NewCryptoHasher(hash)
}

// Digest computes base64url digest of the disclosure encoded form.
func Digest(d *Disclosure, ha *HasherAndAlgorithm) (string, error) {
	if ha == nil || ha.Hasher == nil {
		return "", fmt.Errorf("hasher is not defined")
	}

	hashed, err := ha.Hasher([]byte(d.Encoded()), ha.Algorithm)
	if err != nil {
		return "", fmt.Errorf("hash disclosure: %w", err)
	}

	return base64.RawURLEncoding.EncodeToString(hashed), nil
}

// GetHash calculates hash of data using hash function identified by hash.
func GetHash(hash crypto.Hash, value string) (string, error) {
	if !hash.Available() {
		return "", fmt.Errorf("hash function not available for: %d", hash)
	}

	h := hash.New()

	if _, hashErr := h.Write([]byte(value)); hashErr != nil {
		return "", hashErr
	}

	result := h.Sum(nil)

	return base64.RawURLEncoding.EncodeToString(result), nil
}

// GetCryptoHash returns crypto hash from SD algorithm.
func GetCryptoHash(sdAlg string) (crypto.Hash, error) {
	// The hash algorithms MD2, MD4, MD5, RIPEMD-160, and SHA-1 revealed fundamental weaknesses
	// and they MUST NOT be used.
	for hash, alg := range sdAlgorithms {
		if strings.EqualFold(alg, sdAlg) {
			return hash, nil
		}
	}

	return 0, fmt.Errorf("%s '%s' not supported", SDAlgorithmKey, sdAlg)
}
