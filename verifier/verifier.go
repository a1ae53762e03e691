/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

/*
Package verifier enables the Verifier: An entity that requests, checks and
extracts the claims from an SD-JWT and respective Disclosures.
*/
package verifier

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-jose/go-jose/v3"
	josejwt "github.com/go-jose/go-jose/v3/jwt"
	"github.com/hyperledger/aries-framework-go/component/log"

	"github.com/hyperledger/aries-sdjwt-go/common"
	"github.com/hyperledger/aries-sdjwt-go/holder"
	"github.com/hyperledger/aries-sdjwt-go/jwt"
	"github.com/hyperledger/aries-sdjwt-go/util/maphelpers"
)

var logger = log.New("aries-framework/sdjwt/verifier") // nolint:gochecknoglobals

// parseOpts holds options for the SD-JWT verification.
type parseOpts struct {
	detachedPayload []byte
	sigVerifier     jwt.SignatureVerifier

	issuerSigningAlgorithms []string
	holderSigningAlgorithms []string
	expectedTyp             string

	keyBindingRequired bool
	expectedAudience   string
	expectedNonce      string

	leewayForClaimsValidation time.Duration
}

// ParseOpt is the SD-JWT verifier option.
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

// WithIssuerSigningAlgorithms option is for defining secure signing algorithms (for issuer).
func WithIssuerSigningAlgorithms(algorithms []string) ParseOpt {
	return func(opts *parseOpts) {
		opts.issuerSigningAlgorithms = algorithms
	}
}

// WithHolderSigningAlgorithms option is for defining secure signing algorithms (for holder).
func WithHolderSigningAlgorithms(algorithms []string) ParseOpt {
	return func(opts *parseOpts) {
		opts.holderSigningAlgorithms = algorithms
	}
}

// WithExpectedTypHeader is an option for JWT typ header validation.
func WithExpectedTypHeader(typ string) ParseOpt {
	return func(opts *parseOpts) {
		opts.expectedTyp = typ
	}
}

// WithKeyBindingRequired option is for enforcing key binding.
func WithKeyBindingRequired(flag bool) ParseOpt {
	return func(opts *parseOpts) {
		opts.keyBindingRequired = flag
	}
}

// WithExpectedAudienceForKeyBinding option is to pass expected audience for key binding.
func WithExpectedAudienceForKeyBinding(audience string) ParseOpt {
	return func(opts *parseOpts) {
		opts.expectedAudience = audience
	}
}

// WithExpectedNonceForKeyBinding option is to pass nonce value for key binding.
func WithExpectedNonceForKeyBinding(nonce string) ParseOpt {
	return func(opts *parseOpts) {
		opts.expectedNonce = nonce
	}
}

// WithLeewayForClaimsValidation is an option for claims time(s) validation.
func WithLeewayForClaimsValidation(duration time.Duration) ParseOpt {
	return func(opts *parseOpts) {
		opts.leewayForClaimsValidation = duration
	}
}

// Parse parses combined format for presentation and returns verified claims.
// The Verifier has to verify that all disclosed claim values were part of the original, Issuer-signed SD-JWT.
//
// At a high level, the Verifier:
//   - receives the Combined Format for Presentation from the Holder and verifies the signature of the SD-JWT using the
//     Issuer's public key,
//   - verifies the Key Binding JWT, if Key Binding is required by the Verifier's policy,
//     using the public key included in the SD-JWT,
//   - calculates the digests over the Holder-Selected Disclosures and verifies that each digest
//     is contained in the SD-JWT.
//
// The Verifier will not, however, learn any claim values not disclosed in the Disclosures.
func Parse(combinedFormatForPresentation string, opts ...ParseOpt) (map[string]interface{}, error) {
	defaultSigningAlgorithms := []string{"EdDSA", "RS256"}
	pOpts := &parseOpts{
		issuerSigningAlgorithms:   defaultSigningAlgorithms,
		holderSigningAlgorithms:   defaultSigningAlgorithms,
		leewayForClaimsValidation: josejwt.DefaultLeeway,
	}

	for _, opt := range opts {
		opt(pOpts)
	}

	// Separate the Presentation into the SD-JWT, the Disclosures (if any), and the Key Binding JWT (if provided).
	cfp := common.ParseCombinedFormatForPresentation(combinedFormatForPresentation)

	signedJWT, err := validateIssuerSignedSDJWT(cfp.SDJWT, pOpts)
	if err != nil {
		return nil, err
	}

	if err = checkForDuplicates(cfp.Disclosures); err != nil {
		return nil, fmt.Errorf("check disclosures: %w", err)
	}

	if err = verifyKeyBinding(signedJWT, cfp.KeyBinding, pOpts); err != nil {
		return nil, fmt.Errorf("failed to verify key binding: %w", err)
	}

	// Check that the _sd_alg claim is present and its value is understood and the hash algorithm is deemed secure.
	hasher, err := common.GetHasherFromClaims(signedJWT.Payload)
	if err != nil {
		return nil, err
	}

	disclosures, err := common.ParseDisclosures(cfp.Disclosures, hasher)
	if err != nil {
		return nil, fmt.Errorf("failed to get verified payload: %w", err)
	}

	disclosedClaims, err := common.SwapClaims(maphelpers.CopyMap(signedJWT.Payload), disclosures,
		common.WithStrictDecoding())
	if err != nil {
		return nil, fmt.Errorf("failed to get disclosed claims: %w", err)
	}

	logger.Debugf("verified SD-JWT presentation with %d disclosures", len(disclosures))

	return disclosedClaims, nil
}

func validateIssuerSignedSDJWT(sdJWT string, pOpts *parseOpts) (*jwt.JSONWebToken, error) {
	if pOpts.sigVerifier == nil {
		return nil, errors.New("signature verifier is required")
	}

	jwtOpts := []jwt.ParseOpt{jwt.WithSignatureVerifier(pOpts.sigVerifier)}
	if pOpts.detachedPayload != nil {
		jwtOpts = append(jwtOpts, jwt.WithJWTDetachedPayload(pOpts.detachedPayload))
	}

	// Validate the signature over the SD-JWT.
	signedJWT, _, err := jwt.Parse(sdJWT, jwtOpts...)
	if err != nil {
		return nil, err
	}

	// Ensure that a signing algorithm was used that was deemed secure for the application.
	// The none algorithm MUST NOT be accepted.
	if err = common.VerifySigningAlg(signedJWT.Headers, pOpts.issuerSigningAlgorithms); err != nil {
		return nil, fmt.Errorf("failed to verify issuer signing algorithm: %w", err)
	}

	if pOpts.expectedTyp != "" {
		if err = common.VerifyTyp(signedJWT.Headers, pOpts.expectedTyp); err != nil {
			return nil, fmt.Errorf("failed to verify typ header: %w", err)
		}
	}

	// Check that the SD-JWT is valid using nbf, iat, and exp claims,
	// if provided in the SD-JWT, and not selectively disclosed.
	if err = common.VerifyJWT(signedJWT, pOpts.leewayForClaimsValidation); err != nil {
		return nil, err
	}

	return signedJWT, nil
}

func checkForDuplicates(values []string) error {
	var duplicates []string

	valuesMap := make(map[string]bool)

	for _, val := range values {
		if _, ok := valuesMap[val]; !ok {
			valuesMap[val] = true
		} else {
			duplicates = append(duplicates, val)
		}
	}

	if len(duplicates) > 0 {
		return fmt.Errorf("duplicate values found %v", duplicates)
	}

	return nil
}

func verifyKeyBinding(sdJWT *jwt.JSONWebToken, keyBinding string, pOpts *parseOpts) error {
	if pOpts.keyBindingRequired && keyBinding == "" {
		return fmt.Errorf("key binding is required")
	}

	if keyBinding == "" {
		// not required and not present - nothing to do
		return nil
	}

	signatureVerifier, err := getSignatureVerifier(maphelpers.CopyMap(sdJWT.Payload))
	if err != nil {
		return fmt.Errorf("failed to get signature verifier from presentation claims: %w", err)
	}

	// Validate the signature over the Key Binding JWT.
	keyBindingJWT, _, err := jwt.Parse(keyBinding, jwt.WithSignatureVerifier(signatureVerifier))
	if err != nil {
		return fmt.Errorf("failed to parse key binding: %w", err)
	}

	if err = verifyKeyBindingJWT(keyBindingJWT, pOpts); err != nil {
		return fmt.Errorf("key binding JWT is not valid for usage with key binding: %w", err)
	}

	return nil
}

func verifyKeyBindingJWT(keyBindingJWT *jwt.JSONWebToken, pOpts *parseOpts) error {
	err := common.VerifySigningAlg(keyBindingJWT.Headers, pOpts.holderSigningAlgorithms)
	if err != nil {
		return fmt.Errorf("failed to verify holder signing algorithm: %w", err)
	}

	// Check that the typ of the Key Binding JWT is kb+jwt.
	if err = common.VerifyTyp(keyBindingJWT.Headers, holder.KeyBindingJWTType); err != nil {
		return fmt.Errorf("failed to verify typ header: %w", err)
	}

	if err = common.VerifyJWT(keyBindingJWT, pOpts.leewayForClaimsValidation); err != nil {
		return err
	}

	var bindingPayload holder.BindingPayload

	if err = maphelpers.DecodeJSONMap(keyBindingJWT.Payload, &bindingPayload); err != nil {
		return err
	}

	if pOpts.expectedNonce != "" && pOpts.expectedNonce != bindingPayload.Nonce {
		return fmt.Errorf("nonce value '%s' does not match expected nonce value '%s'",
			bindingPayload.Nonce, pOpts.expectedNonce)
	}

	if pOpts.expectedAudience != "" && pOpts.expectedAudience != bindingPayload.Audience {
		return fmt.Errorf("audience value '%s' does not match expected audience value '%s'",
			bindingPayload.Audience, pOpts.expectedAudience)
	}

	return nil
}

func getSignatureVerifier(claims map[string]interface{}) (jwt.SignatureVerifier, error) {
	cnf, err := common.GetCNF(claims)
	if err != nil {
		return nil, err
	}

	return getSignatureVerifierFromCNF(cnf)
}

// getSignatureVerifierFromCNF supports the "jwk" confirmation method only.
func getSignatureVerifierFromCNF(cnf map[string]interface{}) (jwt.SignatureVerifier, error) {
	jwkObj, ok := cnf["jwk"]
	if !ok {
		return nil, fmt.Errorf("jwk must be present in cnf")
	}

	jwkObjBytes, err := json.Marshal(jwkObj)
	if err != nil {
		return nil, fmt.Errorf("marshal jwk: %w", err)
	}

	j := jose.JSONWebKey{}

	if err = j.UnmarshalJSON(jwkObjBytes); err != nil {
		return nil, fmt.Errorf("unmarshal jwk: %w", err)
	}

	signatureVerifier, err := jwt.GetVerifier(&j)
	if err != nil {
		return nil, fmt.Errorf("get verifier from jwk: %w", err)
	}

	return signatureVerifier, nil
}
