/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package common

import (
	"crypto"
	"fmt"
	"reflect"
	"strings"
)

// Reserved SD-JWT payload keys and the combined format separator.
const (
	CombinedFormatSeparator = "~"

	SDAlgorithmKey        = "_sd_alg"
	SDKey                 = "_sd"
	CNFKey                = "cnf"
	ArrayElementDigestKey = "..."

	// DefaultSDAlgorithm is used when the SD-JWT carries no _sd_alg claim.
	DefaultSDAlgorithm = "sha-256"

	jwtSegmentSeparators = 2
)

// CombinedFormatForIssuance holds SD-JWT and disclosures.
type CombinedFormatForIssuance struct {
	SDJWT       string
	Disclosures []string
}

// Serialize will assemble combined format for issuance: <jwt>~<d1>~...~<dn>~.
func (cf *CombinedFormatForIssuance) Serialize() string {
	return serializeCombinedFormat(cf.SDJWT, cf.Disclosures, "")
}

// CombinedFormatForPresentation holds SD-JWT, disclosures and optional key binding JWT.
type CombinedFormatForPresentation struct {
	SDJWT       string
	Disclosures []string

	// Key Binding JWT, empty when the presentation is not bound to the holder key.
	KeyBinding string
}

// Serialize will assemble combined format for presentation: <jwt>~<d1>~...~<dn>~<kb-jwt>.
// Presentation without disclosures and key binding is <jwt>~.
func (cf *CombinedFormatForPresentation) Serialize() string {
	return serializeCombinedFormat(cf.SDJWT, cf.Disclosures, cf.KeyBinding)
}

func serializeCombinedFormat(sdJWT string, disclosures []string, keyBinding string) string {
	var sb strings.Builder

	sb.WriteString(sdJWT)
	sb.WriteString(CombinedFormatSeparator)

	for _, disclosure := range disclosures {
		sb.WriteString(disclosure)
		sb.WriteString(CombinedFormatSeparator)
	}

	sb.WriteString(keyBinding)

	return sb.String()
}

// IsSDJWT reports whether the compact string is an SD-JWT rather than a plain JWT.
func IsSDJWT(combinedFormat string) bool {
	return strings.Contains(combinedFormat, CombinedFormatSeparator)
}

// ParseCombinedFormatForIssuance parses combined format for issuance into CombinedFormatForIssuance parts.
func ParseCombinedFormatForIssuance(combinedFormatForIssuance string) *CombinedFormatForIssuance {
	sdJWT, disclosures, _ := splitCombinedFormat(combinedFormatForIssuance)

	return &CombinedFormatForIssuance{SDJWT: sdJWT, Disclosures: disclosures}
}

// ParseCombinedFormatForPresentation parses combined format for presentation into CombinedFormatForPresentation parts.
// A final segment that is a compact JWT is the key binding JWT; any other final segment is a disclosure.
func ParseCombinedFormatForPresentation(combinedFormatForPresentation string) *CombinedFormatForPresentation {
	sdJWT, disclosures, keyBinding := splitCombinedFormat(combinedFormatForPresentation)

	return &CombinedFormatForPresentation{SDJWT: sdJWT, Disclosures: disclosures, KeyBinding: keyBinding}
}

func splitCombinedFormat(combinedFormat string) (string, []string, string) {
	parts := strings.Split(combinedFormat, CombinedFormatSeparator)

	sdJWT := parts[0]
	rest := parts[1:]

	var keyBinding string

	if n := len(rest); n > 0 && strings.Count(rest[n-1], ".") == jwtSegmentSeparators {
		keyBinding = rest[n-1]
		rest = rest[:n-1]
	}

	var disclosures []string

	for _, d := range rest {
		if d != "" {
			disclosures = append(disclosures, d)
		}
	}

	return sdJWT, disclosures, keyBinding
}

// GetCryptoHashFromClaims returns crypto hash from claims.
func GetCryptoHashFromClaims(claims map[string]interface{}) (crypto.Hash, error) {
	var cryptoHash crypto.Hash

	// check that the _sd_alg claim is present
	sdAlg, err := GetSDAlg(claims)
	if err != nil {
		return cryptoHash, err
	}

	// check that _sd_alg value is understood and the hash algorithm is deemed secure.
	return GetCryptoHash(sdAlg)
}

// GetSDAlg returns SD algorithm from claims.
func GetSDAlg(claims map[string]interface{}) (string, error) {
	obj, ok := claims[SDAlgorithmKey]
	if !ok {
		return "", fmt.Errorf("%s must be present in SD-JWT", SDAlgorithmKey)
	}

	alg, ok := obj.(string)
	if !ok {
		return "", fmt.Errorf("%s must be a string", SDAlgorithmKey)
	}

	return alg, nil
}

// GetHasherFromClaims returns hasher for _sd_alg of claims, sha-256 when the claim is absent.
func GetHasherFromClaims(claims map[string]interface{}) (*HasherAndAlgorithm, error) {
	sdAlg := DefaultSDAlgorithm

	if _, ok := claims[SDAlgorithmKey]; ok {
		var err error

		sdAlg, err = GetSDAlg(claims)
		if err != nil {
			return nil, err
		}
	}

	return NewHasherFromAlgorithm(sdAlg)
}

// GetCNF returns confirmation claim 'cnf'.
func GetCNF(claims map[string]interface{}) (map[string]interface{}, error) {
	obj, ok := claims[CNFKey]
	if !ok {
		return nil, fmt.Errorf("%s must be present in SD-JWT", CNFKey)
	}

	cnf, ok := obj.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("%s must be an object", CNFKey)
	}

	return cnf, nil
}

// GetDisclosureDigests returns digests referenced anywhere in claims: _sd arrays and array element placeholders.
func GetDisclosureDigests(claims map[string]interface{}) (map[string]bool, error) {
	digests := make(map[string]bool)

	if err := collectDigests(claims, digests); err != nil {
		return nil, err
	}

	return digests, nil
}

func collectDigests(value interface{}, digests map[string]bool) error {
	switch v := value.(type) {
	case map[string]interface{}:
		if digest, ok := ArrayElementDigest(v); ok {
			digests[digest] = true

			return nil
		}

		for key, child := range v {
			if key != SDKey {
				if err := collectDigests(child, digests); err != nil {
					return err
				}

				continue
			}

			sd, err := stringArray(child)
			if err != nil {
				return fmt.Errorf("get disclosure digests: %w", err)
			}

			for _, digest := range sd {
				digests[digest] = true
			}
		}
	case []interface{}:
		for _, child := range v {
			if err := collectDigests(child, digests); err != nil {
				return err
			}
		}
	}

	return nil
}

// ArrayElementDigest returns digest of {"...": digest} array element placeholder.
func ArrayElementDigest(m map[string]interface{}) (string, bool) {
	if len(m) != 1 {
		return "", false
	}

	digest, ok := m[ArrayElementDigestKey].(string)

	return digest, ok
}

// KeyExistsInMap checks if key exists in map, nested maps or maps inside arrays.
func KeyExistsInMap(key string, m map[string]interface{}) bool {
	for k, v := range m {
		if k == key {
			return true
		}

		if valueHasKey(key, v) {
			return true
		}
	}

	return false
}

func valueHasKey(key string, v interface{}) bool {
	switch tv := v.(type) {
	case map[string]interface{}:
		return KeyExistsInMap(key, tv)
	case []interface{}:
		for _, e := range tv {
			if valueHasKey(key, e) {
				return true
			}
		}
	}

	return false
}

func stringArray(entry interface{}) ([]string, error) {
	if entry == nil {
		return nil, nil
	}

	sliceValue := reflect.ValueOf(entry)
	if sliceValue.Kind() != reflect.Slice {
		return nil, fmt.Errorf("entry type[%T] is not an array", entry)
	}

	// Iterate over the slice and convert each element to a string
	stringSlice := make([]string, sliceValue.Len())

	for i := 0; i < sliceValue.Len(); i++ {
		sliceVal := sliceValue.Index(i).Interface()
		val, ok := sliceVal.(string)

		if !ok {
			return nil, fmt.Errorf("entry item type[%T] is not a string", sliceVal)
		}

		stringSlice[i] = val
	}

	return stringSlice, nil
}
