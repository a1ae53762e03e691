/*
Copyright SecureKey Technologies Inc. All Rights Reserved.
Copyright Gen Digital Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package jwt

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"fmt"
	"math/big"

	"github.com/go-jose/go-jose/v3"
)

const (
	signatureEdDSA = "EdDSA"
	signatureRS256 = "RS256"
	signatureES256 = "ES256"

	es256CoordSize = 32
)

// JoseED25519Signer is a Jose compliant signer.
type JoseED25519Signer struct {
	privKey []byte
	headers map[string]interface{}
}

// Sign data.
func (s JoseED25519Signer) Sign(data []byte) ([]byte, error) {
	return ed25519.Sign(s.privKey, data), nil
}

// Headers returns the signer's headers map.
func (s JoseED25519Signer) Headers() Headers {
	return s.headers
}

// NewEd25519Signer returns a Jose compliant signer that can be passed as a signer to jwt.NewSigned().
func NewEd25519Signer(privKey []byte) *JoseED25519Signer {
	return &JoseED25519Signer{
		privKey: privKey,
		headers: prepareJWSHeaders(nil, signatureEdDSA),
	}
}

// JoseEd25519Verifier is a Jose compliant verifier.
type JoseEd25519Verifier struct {
	pubKey []byte
}

// Verify signingInput against signature. it validates that joseHeaders contains EdDSA alg for this implementation.
func (v JoseEd25519Verifier) Verify(joseHeaders Headers, _, signingInput, signature []byte) error {
	if err := checkAlgorithm(joseHeaders, signatureEdDSA); err != nil {
		return err
	}

	if ok := ed25519.Verify(v.pubKey, signingInput, signature); !ok {
		return errors.New("signature doesn't match")
	}

	return nil
}

// NewEd25519Verifier returns a Jose compliant verifier that can be passed as a verifier option to jwt.Parse().
func NewEd25519Verifier(pubKey []byte) (*JoseEd25519Verifier, error) {
	if l := len(pubKey); l != ed25519.PublicKeySize {
		return nil, errors.New("bad ed25519 public key length")
	}

	return &JoseEd25519Verifier{pubKey: pubKey}, nil
}

// RS256Signer is a Jose complient signer.
type RS256Signer struct {
	privKey *rsa.PrivateKey
	headers map[string]interface{}
}

// NewRS256Signer returns a Jose compliant signer that can be passed as a signer to jwt.NewSigned().
func NewRS256Signer(privKey *rsa.PrivateKey, headers map[string]interface{}) *RS256Signer {
	return &RS256Signer{
		privKey: privKey,
		headers: prepareJWSHeaders(headers, signatureRS256),
	}
}

// Sign data.
func (s RS256Signer) Sign(data []byte) ([]byte, error) {
	hashed := sha256Sum(data)

	return rsa.SignPKCS1v15(rand.Reader, s.privKey, crypto.SHA256, hashed)
}

// Headers returns the signer's headers map.
func (s RS256Signer) Headers() Headers {
	return s.headers
}

// RS256Verifier is a Jose compliant verifier.
type RS256Verifier struct {
	pubKey *rsa.PublicKey
}

// NewRS256Verifier returns a Jose compliant verifier that can be passed as a verifier option to jwt.Parse().
func NewRS256Verifier(pubKey *rsa.PublicKey) *RS256Verifier {
	return &RS256Verifier{pubKey: pubKey}
}

// Verify signingInput against the signature. It also validates that joseHeaders includes the right alg.
func (v RS256Verifier) Verify(joseHeaders Headers, _, signingInput, signature []byte) error {
	if err := checkAlgorithm(joseHeaders, signatureRS256); err != nil {
		return err
	}

	return rsa.VerifyPKCS1v15(v.pubKey, crypto.SHA256, sha256Sum(signingInput), signature)
}

// ES256Signer signs with ECDSA P-256. Signatures are the fixed size r||s form of RFC 7518.
type ES256Signer struct {
	privKey *ecdsa.PrivateKey
	headers map[string]interface{}
}

// NewES256Signer returns a Jose compliant signer that can be passed as a signer to jwt.NewSigned().
func NewES256Signer(privKey *ecdsa.PrivateKey, headers map[string]interface{}) *ES256Signer {
	return &ES256Signer{
		privKey: privKey,
		headers: prepareJWSHeaders(headers, signatureES256),
	}
}

// Sign data.
func (s ES256Signer) Sign(data []byte) ([]byte, error) {
	r, ss, err := ecdsa.Sign(rand.Reader, s.privKey, sha256Sum(data))
	if err != nil {
		return nil, err
	}

	sig := make([]byte, 2*es256CoordSize)
	r.FillBytes(sig[:es256CoordSize])
	ss.FillBytes(sig[es256CoordSize:])

	return sig, nil
}

// Headers returns the signer's headers map.
func (s ES256Signer) Headers() Headers {
	return s.headers
}

// ES256Verifier verifies ECDSA P-256 signatures.
type ES256Verifier struct {
	pubKey *ecdsa.PublicKey
}

// NewES256Verifier returns a Jose compliant verifier that can be passed as a verifier option to jwt.Parse().
func NewES256Verifier(pubKey *ecdsa.PublicKey) (*ES256Verifier, error) {
	if pubKey.Curve != elliptic.P256() {
		return nil, errors.New("ES256 requires P-256 public key")
	}

	return &ES256Verifier{pubKey: pubKey}, nil
}

// Verify signingInput against the signature.
func (v ES256Verifier) Verify(joseHeaders Headers, _, signingInput, signature []byte) error {
	if err := checkAlgorithm(joseHeaders, signatureES256); err != nil {
		return err
	}

	if len(signature) != 2*es256CoordSize {
		return errors.New("invalid ES256 signature length")
	}

	r := new(big.Int).SetBytes(signature[:es256CoordSize])
	s := new(big.Int).SetBytes(signature[es256CoordSize:])

	if !ecdsa.Verify(v.pubKey, sha256Sum(signingInput), r, s) {
		return errors.New("signature doesn't match")
	}

	return nil
}

// GetVerifier returns a SignatureVerifier for the public key of the given JWK.
// It is used to verify key binding JWTs against the holder key from the "cnf" claim.
func GetVerifier(jwk *jose.JSONWebKey) (SignatureVerifier, error) {
	if jwk == nil || jwk.Key == nil {
		return nil, errors.New("public key is not defined")
	}

	switch key := jwk.Key.(type) {
	case ed25519.PublicKey:
		return NewEd25519Verifier(key)
	case *rsa.PublicKey:
		return NewRS256Verifier(key), nil
	case *ecdsa.PublicKey:
		return NewES256Verifier(key)
	default:
		return nil, fmt.Errorf("unsupported public key type %T", jwk.Key)
	}
}

func checkAlgorithm(joseHeaders Headers, expected string) error {
	alg, ok := joseHeaders.Algorithm()
	if !ok {
		return errors.New("alg is not defined")
	}

	if alg != expected {
		return fmt.Errorf("alg is not %s", expected)
	}

	return nil
}

func sha256Sum(data []byte) []byte {
	h := crypto.SHA256.New()
	h.Write(data) //nolint:errcheck

	return h.Sum(nil)
}

func prepareJWSHeaders(headers map[string]interface{}, alg string) map[string]interface{} {
	newHeaders := make(map[string]interface{})

	for k, v := range headers {
		newHeaders[k] = v
	}

	newHeaders[HeaderAlgorithm] = alg

	return newHeaders
}
