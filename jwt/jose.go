/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package jwt

import (
	"errors"

	"github.com/go-jose/go-jose/v3"
)

// IANA registered JOSE headers (https://tools.ietf.org/html/rfc7515#section-4.1)
const (
	// HeaderAlgorithm identifies the cryptographic algorithm used to secure the JWS.
	HeaderAlgorithm = "alg"

	// HeaderKeyID is a hint indicating which key was used.
	HeaderKeyID = "kid"

	// HeaderType is used to declare the media type of the JWS.
	HeaderType = "typ"

	// HeaderContentType is used to declare the media type of the secured content (the payload).
	HeaderContentType = "cty"
)

// Headers represents JOSE headers.
type Headers map[string]interface{}

// Algorithm gets Algorithm from JOSE headers.
func (h Headers) Algorithm() (string, bool) {
	return h.stringValue(HeaderAlgorithm)
}

// KeyID gets Key ID from JOSE headers.
func (h Headers) KeyID() (string, bool) {
	return h.stringValue(HeaderKeyID)
}

// Type gets Type from JOSE headers.
func (h Headers) Type() (string, bool) {
	return h.stringValue(HeaderType)
}

// ContentType gets Content Type from JOSE headers.
func (h Headers) ContentType() (string, bool) {
	return h.stringValue(HeaderContentType)
}

func (h Headers) stringValue(key string) (string, bool) {
	raw, ok := h[key]
	if !ok {
		return "", false
	}

	str, ok := raw.(string)

	return str, ok
}

// Signer defines JWS Signer interface. It makes signing of data and provides custom JWS headers relevant to the signer.
type Signer interface {
	// Sign signs.
	Sign(data []byte) ([]byte, error)

	// Headers provides JWS headers. "alg" header must be provided (see https://tools.ietf.org/html/rfc7515#section-4.1)
	Headers() Headers
}

// SignatureVerifier makes verification of JSON Web Signature.
type SignatureVerifier interface {
	// Verify verifies JWS based on the signing input.
	Verify(joseHeaders Headers, payload, signingInput, signature []byte) error
}

// opaqueSigner bridges Signer to go-jose, which produces the JWS signing input and compact serialization.
type opaqueSigner struct {
	signer Signer
	alg    jose.SignatureAlgorithm
}

func (s *opaqueSigner) Public() *jose.JSONWebKey {
	return nil
}

func (s *opaqueSigner) Algs() []jose.SignatureAlgorithm {
	return []jose.SignatureAlgorithm{s.alg}
}

func (s *opaqueSigner) SignPayload(payload []byte, alg jose.SignatureAlgorithm) ([]byte, error) {
	if alg != s.alg {
		return nil, errors.New("unexpected signature algorithm")
	}

	return s.signer.Sign(payload)
}

// opaqueVerifier bridges SignatureVerifier to go-jose signature validation.
type opaqueVerifier struct {
	verifier SignatureVerifier
	headers  Headers
	payload  []byte
}

func (v *opaqueVerifier) VerifyPayload(signingInput, signature []byte, _ jose.SignatureAlgorithm) error {
	return v.verifier.Verify(v.headers, v.payload, signingInput, signature)
}

func headersFromJOSE(h jose.Header) Headers {
	headers := make(Headers, len(h.ExtraHeaders)+2) //nolint:gomnd

	for k, v := range h.ExtraHeaders {
		headers[string(k)] = v
	}

	if h.Algorithm != "" {
		headers[HeaderAlgorithm] = h.Algorithm
	}

	if h.KeyID != "" {
		headers[HeaderKeyID] = h.KeyID
	}

	return headers
}
