/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package holder enables the Holder: an entity that receives SD-JWTs from the Issuer and has control over them.
package holder

import (
	"fmt"
	"time"

	josejwt "github.com/go-jose/go-jose/v3/jwt"
	"github.com/hyperledger/aries-framework-go/component/log"

	"github.com/hyperledger/aries-sdjwt-go/common"
	"github.com/hyperledger/aries-sdjwt-go/jwt"
)

// KeyBindingJWTType is the typ header of the Key Binding JWT.
const KeyBindingJWTType = "kb+jwt"

var logger = log.New("aries-framework/sdjwt/holder") // nolint:gochecknoglobals

// Claim defines claim.
type Claim struct {
	Disclosure string
	Digest     string
	Name       string
	Value      interface{}
}

// parseOpts holds options for the SD-JWT parsing.
type parseOpts struct {
	detachedPayload []byte
	sigVerifier     jwt.SignatureVerifier

	issuerSigningAlgorithms []string
	expectedTyp             string

	leewayForClaimsValidation time.Duration
	validateTimes             bool
}

// ParseOpt is the SD-JWT Parser option.
type ParseOpt func(opts *parseOpts)

// WithJWTDetachedPayload option is for definition of JWT detached payload.
func WithJWTDetachedPayload(payload []byte) ParseOpt {
	return func(opts *parseOpts) {
		opts.detachedPayload = payload
	}
}

// WithSignatureVerifier option is for definition of signature verifier.
func WithSignatureVerifier(signatureVerifier jwt.SignatureVerifier) ParseOpt {
	return func(opts *parseOpts) {
		opts.sigVerifier = signatureVerifier
	}
}

// WithIssuerSigningAlgorithms option is for defining secure signing algorithms (for issuer signature).
func WithIssuerSigningAlgorithms(algorithms []string) ParseOpt {
	return func(opts *parseOpts) {
		opts.issuerSigningAlgorithms = algorithms
	}
}

// WithLeewayForClaimsValidation enables exp, nbf and iat validation with the given leeway.
func WithLeewayForClaimsValidation(duration time.Duration) ParseOpt {
	return func(opts *parseOpts) {
		opts.leewayForClaimsValidation = duration
		opts.validateTimes = true
	}
}

// WithExpectedTypHeader is an option for JWT typ header validation.
func WithExpectedTypHeader(typ string) ParseOpt {
	return func(opts *parseOpts) {
		opts.expectedTyp = typ
	}
}

// Parse parses issuer SD-JWT and returns claims that can be selected.
// The Holder MUST perform the following (or equivalent) steps when receiving a Combined Format for Issuance:
//
//   - Separate the SD-JWT and the Disclosures in the Combined Format for Issuance.
//
//   - Hash all the Disclosures separately.
//
//   - Find the places in the SD-JWT where the digests of the Disclosures are included.
//
//   - If any of the digests cannot be found in the SD-JWT, the Holder MUST reject the SD-JWT.
//
//   - Decode Disclosures and obtain plaintext of the claim values.
//
// Without WithSignatureVerifier the signature is not checked.
func Parse(combinedFormatForIssuance string, opts ...ParseOpt) ([]*Claim, error) {
	pOpts := &parseOpts{sigVerifier: &NoopSignatureVerifier{}}

	for _, opt := range opts {
		opt(pOpts)
	}

	cfi := common.ParseCombinedFormatForIssuance(combinedFormatForIssuance)

	signedJWT, err := parseSignedJWT(cfi.SDJWT, pOpts)
	if err != nil {
		return nil, err
	}

	disclosures, err := parseDisclosures(signedJWT, cfi.Disclosures)
	if err != nil {
		return nil, err
	}

	// every disclosure must be referenced exactly once by the SD-JWT or by another disclosure
	if _, err = common.SwapClaims(signedJWT.Payload, disclosures, common.WithStrictDecoding()); err != nil {
		return nil, fmt.Errorf("run disclosure validation: %w", err)
	}

	claims := make([]*Claim, 0, len(disclosures))

	for _, d := range disclosures {
		name, _ := d.Key()

		claims = append(claims, &Claim{
			Disclosure: d.Encoded(),
			Digest:     d.Digest,
			Name:       name,
			Value:      d.Value(),
		})
	}

	return claims, nil
}

func parseSignedJWT(sdJWT string, pOpts *parseOpts) (*jwt.JSONWebToken, error) {
	jwtOpts := []jwt.ParseOpt{jwt.WithSignatureVerifier(pOpts.sigVerifier)}
	if pOpts.detachedPayload != nil {
		jwtOpts = append(jwtOpts, jwt.WithJWTDetachedPayload(pOpts.detachedPayload))
	}

	signedJWT, _, err := jwt.Parse(sdJWT, jwtOpts...)
	if err != nil {
		return nil, err
	}

	if len(pOpts.issuerSigningAlgorithms) > 0 {
		if err = common.VerifySigningAlg(signedJWT.Headers, pOpts.issuerSigningAlgorithms); err != nil {
			return nil, fmt.Errorf("failed to verify issuer signing algorithm: %w", err)
		}
	}

	if pOpts.expectedTyp != "" {
		if err = common.VerifyTyp(signedJWT.Headers, pOpts.expectedTyp); err != nil {
			return nil, fmt.Errorf("verify typ header: %w", err)
		}
	}

	if pOpts.validateTimes {
		if err = common.VerifyJWT(signedJWT, pOpts.leewayForClaimsValidation); err != nil {
			return nil, err
		}
	}

	return signedJWT, nil
}

func parseDisclosures(signedJWT *jwt.JSONWebToken, encoded []string) ([]*common.DisclosureWithDigest, error) {
	hasher, err := common.GetHasherFromClaims(signedJWT.Payload)
	if err != nil {
		return nil, err
	}

	return common.ParseDisclosures(encoded, hasher)
}

// BindingPayload represents Key Binding JWT payload.
type BindingPayload struct {
	Nonce    string               `json:"nonce,omitempty"`
	Audience string               `json:"aud,omitempty"`
	IssuedAt *josejwt.NumericDate `json:"iat,omitempty"`
}

// BindingInfo defines Key Binding JWT payload and signer.
type BindingInfo struct {
	Payload BindingPayload
	Signer  jwt.Signer
	Headers jwt.Headers
}

// options holds options for holder.
type options struct {
	keyBindingInfo *BindingInfo
}

// Option is a holder option.
type Option func(opts *options)

// WithKeyBinding option to set optional Key Binding JWT.
func WithKeyBinding(info *BindingInfo) Option {
	return func(opts *options) {
		opts.keyBindingInfo = info
	}
}

// CreatePresentation assembles combined format for presentation with the disclosures required by
// the presentation frame (see GetDisclosuresForPresentationFrame) and optional Key Binding JWT.
// This call assumes that combinedFormatForIssuance has already been parsed and verified using Parse() function.
//
// For presentation to a Verifier, the Holder MUST perform the following (or equivalent) steps:
//   - Decide which Disclosures to release to the Verifier, obtaining proper End-User consent if necessary.
//   - If Key Binding is required, create a Key Binding JWT.
//   - Create the Combined Format for Presentation from selected Disclosures and Key Binding JWT(if applicable).
//   - Send the Presentation to the Verifier.
func CreatePresentation(combinedFormatForIssuance string, frame *common.Object, opts ...Option) (string, error) {
	hOpts := &options{}

	for _, opt := range opts {
		opt(hOpts)
	}

	cfi := common.ParseCombinedFormatForIssuance(combinedFormatForIssuance)

	signedJWT, err := parseSignedJWT(cfi.SDJWT, &parseOpts{sigVerifier: &NoopSignatureVerifier{}})
	if err != nil {
		return "", err
	}

	disclosures, err := parseDisclosures(signedJWT, cfi.Disclosures)
	if err != nil {
		return "", err
	}

	prettyPayload, err := common.SwapClaims(signedJWT.Payload, disclosures)
	if err != nil {
		return "", err
	}

	selected, err := GetDisclosuresForPresentationFrame(signedJWT.Payload, frame, prettyPayload, disclosures)
	if err != nil {
		return "", fmt.Errorf("select disclosures for presentation frame: %w", err)
	}

	var keyBinding string

	if hOpts.keyBindingInfo != nil {
		keyBinding, err = CreateKeyBinding(hOpts.keyBindingInfo)
		if err != nil {
			return "", fmt.Errorf("create key binding: %w", err)
		}
	}

	cf := common.CombinedFormatForPresentation{
		SDJWT:       cfi.SDJWT,
		Disclosures: common.EncodedDisclosures(selected),
		KeyBinding:  keyBinding,
	}

	return cf.Serialize(), nil
}

// CreateKeyBinding will create Key Binding JWT from binding info.
func CreateKeyBinding(info *BindingInfo) (string, error) {
	if info.Signer == nil {
		return "", fmt.Errorf("key binding signer is not defined")
	}

	headers := jwt.Headers{}
	for k, v := range info.Headers {
		headers[k] = v
	}

	headers[jwt.HeaderType] = KeyBindingJWTType

	kbJWT, err := jwt.NewSigned(info.Payload, headers, info.Signer)
	if err != nil {
		return "", err
	}

	return kbJWT.Serialize(false)
}

// NoopSignatureVerifier is no-op signature verifier (signature will not get checked).
type NoopSignatureVerifier struct{}

// Verify implements signature verification.
func (sv *NoopSignatureVerifier) Verify(joseHeaders jwt.Headers, payload, signingInput, signature []byte) error {
	return nil
}
