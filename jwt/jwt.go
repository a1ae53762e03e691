/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package jwt implements compact JSON Web Tokens secured with a caller supplied Signer and SignatureVerifier.
package jwt

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-jose/go-jose/v3"

	jsonutil "github.com/hyperledger/aries-sdjwt-go/util/json"
)

const (
	// TypeJWT defines JWT type.
	TypeJWT = "JWT"
	// TypeSDJWT defines SD-JWT type v5+.
	TypeSDJWT = "SD-JWT"

	// AlgorithmNone used to indicate unsecured JWT.
	AlgorithmNone = "none"
)

// parseOpts holds options for the JWT parsing.
type parseOpts struct {
	detachedPayload []byte
	sigVerifier     SignatureVerifier
}

// ParseOpt is the JWT Parser option.
type ParseOpt func(opts *parseOpts)

// WithJWTDetachedPayload option is for definition of JWT detached payload.
func WithJWTDetachedPayload(payload []byte) ParseOpt {
	return func(opts *parseOpts) {
		opts.detachedPayload = payload
	}
}

// WithSignatureVerifier option is for definition of JWT signature verifier.
func WithSignatureVerifier(signatureVerifier SignatureVerifier) ParseOpt {
	return func(opts *parseOpts) {
		opts.sigVerifier = signatureVerifier
	}
}

// JSONWebToken defines JSON Web Token (https://tools.ietf.org/html/rfc7519)
type JSONWebToken struct {
	Headers Headers

	Payload map[string]interface{}

	jws *jose.JSONWebSignature
}

// Parse parses input JWT in compact serialized form into JSON Web Token and verifies its signature.
func Parse(jwtSerialized string, opts ...ParseOpt) (*JSONWebToken, []byte, error) {
	pOpts := &parseOpts{}

	for _, opt := range opts {
		opt(pOpts)
	}

	if pOpts.sigVerifier == nil {
		return nil, nil, errors.New("signature verifier is not defined")
	}

	var (
		jws *jose.JSONWebSignature
		err error
	)

	if pOpts.detachedPayload != nil {
		jws, err = jose.ParseDetached(jwtSerialized, pOpts.detachedPayload)
	} else {
		if !IsJWS(jwtSerialized) {
			return nil, nil, errors.New("JWT of compacted JWS form is supported only")
		}

		jws, err = jose.ParseSigned(jwtSerialized)
	}

	if err != nil {
		return nil, nil, fmt.Errorf("parse JWT from compact JWS: %w", err)
	}

	if len(jws.Signatures) != 1 {
		return nil, nil, errors.New("JWT must have exactly one signature")
	}

	headers := headersFromJOSE(jws.Signatures[0].Protected)

	if err = checkHeaders(headers); err != nil {
		return nil, nil, fmt.Errorf("check JWT headers: %w", err)
	}

	payload := jws.UnsafePayloadWithoutVerification()

	_, err = jws.Verify(&opaqueVerifier{verifier: pOpts.sigVerifier, headers: headers, payload: payload})
	if err != nil {
		return nil, nil, fmt.Errorf("parse JWT from compact JWS: %w", err)
	}

	claims, err := PayloadToMap(payload)
	if err != nil {
		return nil, nil, fmt.Errorf("read JWT claims from JWS payload: %w", err)
	}

	return &JSONWebToken{Headers: headers, Payload: claims, jws: jws}, payload, nil
}

// DecodeClaims fills input c with claims of a token.
func (j *JSONWebToken) DecodeClaims(c interface{}) error {
	pBytes, err := json.Marshal(j.Payload)
	if err != nil {
		return err
	}

	return json.Unmarshal(pBytes, c)
}

// LookupStringHeader makes look up of particular header with string value.
func (j *JSONWebToken) LookupStringHeader(name string) string {
	if headerValue, ok := j.Headers[name]; ok {
		if headerStrValue, ok := headerValue.(string); ok {
			return headerStrValue
		}
	}

	return ""
}

// Serialize makes (compact) serialization of token.
func (j *JSONWebToken) Serialize(detached bool) (string, error) {
	if j.jws == nil {
		return "", errors.New("JWS serialization is supported only")
	}

	if detached {
		return j.jws.DetachedCompactSerialize()
	}

	return j.jws.CompactSerialize()
}

// NewSigned creates new signed JSON Web Token based on input claims.
// Signer headers are used as JWS protected headers; headers passed explicitly take precedence.
func NewSigned(claims interface{}, headers Headers, signer Signer) (*JSONWebToken, error) {
	if signer == nil {
		return nil, errors.New("signer is not defined")
	}

	payloadMap, err := PayloadToMap(claims)
	if err != nil {
		return nil, fmt.Errorf("unmarshallable claims: %w", err)
	}

	payloadBytes, err := jsonutil.MarshalCompact(payloadMap)
	if err != nil {
		return nil, fmt.Errorf("marshal JWT claims: %w", err)
	}

	alg, ok := signer.Headers().Algorithm()
	if !ok {
		return nil, errors.New("alg header is not defined by signer")
	}

	signerOpts := &jose.SignerOptions{}
	protected := Headers{HeaderAlgorithm: alg}

	for _, h := range []Headers{signer.Headers(), headers} {
		for k, v := range h {
			if k == HeaderAlgorithm {
				continue
			}

			signerOpts.WithHeader(jose.HeaderKey(k), v)
			protected[k] = v
		}
	}

	joseAlg := jose.SignatureAlgorithm(alg)

	joseSigner, err := jose.NewSigner(jose.SigningKey{
		Algorithm: joseAlg,
		Key:       &opaqueSigner{signer: signer, alg: joseAlg},
	}, signerOpts)
	if err != nil {
		return nil, fmt.Errorf("create JWS signer: %w", err)
	}

	jws, err := joseSigner.Sign(payloadBytes)
	if err != nil {
		return nil, fmt.Errorf("create JWS: %w", err)
	}

	return &JSONWebToken{
		Headers: protected,
		Payload: payloadMap,
		jws:     jws,
	}, nil
}

// IsJWS checks if JWT is a JWS of valid structure.
func IsJWS(s string) bool {
	parts := strings.Split(s, ".")

	return len(parts) == 3 &&
		isValidJSON(parts[0]) &&
		isValidJSON(parts[1]) &&
		parts[2] != ""
}

func isValidJSON(s string) bool {
	b, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return false
	}

	var j map[string]interface{}
	err = json.Unmarshal(b, &j)

	return err == nil
}

func checkHeaders(headers Headers) error {
	if _, ok := headers[HeaderAlgorithm]; !ok {
		return errors.New("alg header is not defined")
	}

	typ, ok := headers[HeaderType]
	if ok {
		if err := checkTypHeader(typ); err != nil {
			return err
		}
	}

	cty, ok := headers[HeaderContentType]
	if ok && cty == TypeJWT { // https://tools.ietf.org/html/rfc7519#section-5.2
		return errors.New("nested JWT is not supported")
	}

	return nil
}

func checkTypHeader(typ interface{}) error {
	typStr, ok := typ.(string)
	if !ok {
		return errors.New("invalid typ header format")
	}

	chunks := strings.Split(typStr, "+")
	if len(chunks) > 1 {
		ending := strings.ToUpper(chunks[len(chunks)-1])
		// Explicit typing.
		// https://www.rfc-editor.org/rfc/rfc8725.html#name-use-explicit-typing
		if ending != TypeJWT && ending != TypeSDJWT {
			return errors.New("invalid typ header")
		}

		return nil
	}

	if !strings.EqualFold(typStr, TypeJWT) && !strings.EqualFold(typStr, TypeSDJWT) {
		// https://www.rfc-editor.org/rfc/rfc7519#section-5.1
		return errors.New("typ is not JWT")
	}

	return nil
}

// PayloadToMap transforms interface to map. Numbers are decoded as json.Number.
func PayloadToMap(i interface{}) (map[string]interface{}, error) {
	if m, ok := i.(map[string]interface{}); ok {
		return m, nil
	}

	m, err := jsonutil.ToMap(i)
	if err != nil {
		return nil, fmt.Errorf("convert to map: %w", err)
	}

	return m, nil
}
