/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package holder

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"strings"
	"testing"
	"time"

	josejwt "github.com/go-jose/go-jose/v3/jwt"
	"github.com/stretchr/testify/require"

	"github.com/hyperledger/aries-sdjwt-go/common"
	"github.com/hyperledger/aries-sdjwt-go/issuer"
	"github.com/hyperledger/aries-sdjwt-go/jwt"
)

const (
	testIssuer   = "https://example.com/issuer"
	testAudience = "https://test.com/verifier"
	testNonce    = "nonce"
)

func issue(t *testing.T, signer jwt.Signer, headers jwt.Headers, opts ...issuer.NewOpt) string {
	t.Helper()

	token, err := issuer.New(testIssuer, map[string]interface{}{
		"given_name": "Albert",
		"last_name":  "Smith",
		"address":    map[string]interface{}{"country": "US", "locality": "Anytown"},
	}, headers, signer, opts...)
	require.NoError(t, err)

	combinedFormatForIssuance, err := token.Serialize(false)
	require.NoError(t, err)

	return combinedFormatForIssuance
}

func TestParse(t *testing.T) {
	r := require.New(t)

	pubKey, privKey, err := ed25519.GenerateKey(rand.Reader)
	r.NoError(err)

	signer := jwt.NewEd25519Signer(privKey)

	verifier, err := jwt.NewEd25519Verifier(pubKey)
	r.NoError(err)

	combinedFormatForIssuance := issue(t, signer, jwt.Headers{jwt.HeaderType: "vc+sd-jwt"})

	t.Run("success", func(t *testing.T) {
		claims, err := Parse(combinedFormatForIssuance,
			WithSignatureVerifier(verifier),
			WithIssuerSigningAlgorithms([]string{"EdDSA"}),
			WithExpectedTypHeader("vc+sd-jwt"),
			WithLeewayForClaimsValidation(time.Minute))
		require.NoError(t, err)
		require.Len(t, claims, 3)

		byName := make(map[string]*Claim)
		for _, c := range claims {
			require.NotEmpty(t, c.Digest)
			require.NotEmpty(t, c.Disclosure)

			byName[c.Name] = c
		}

		require.Equal(t, "Albert", byName["given_name"].Value)
		require.Equal(t, "Smith", byName["last_name"].Value)
		require.Equal(t, map[string]interface{}{"country": "US", "locality": "Anytown"}, byName["address"].Value)
	})

	t.Run("success - signature is not checked by default", func(t *testing.T) {
		otherPub, otherPriv, err := ed25519.GenerateKey(rand.Reader)
		require.NoError(t, err)
		require.NotEqual(t, pubKey, otherPub)

		claims, err := Parse(issue(t, jwt.NewEd25519Signer(otherPriv), nil))
		require.NoError(t, err)
		require.Len(t, claims, 3)
	})

	t.Run("success - detached payload", func(t *testing.T) {
		token, err := issuer.New(testIssuer, map[string]interface{}{"given_name": "Albert"}, nil, signer)
		require.NoError(t, err)

		detached, err := token.Serialize(true)
		require.NoError(t, err)

		payload, err := token.SignedJWT.Serialize(false)
		require.NoError(t, err)

		parts := strings.Split(payload, ".")
		require.Len(t, parts, 3)

		payloadBytes, err := base64.RawURLEncoding.DecodeString(parts[1])
		require.NoError(t, err)

		claims, err := Parse(detached, WithSignatureVerifier(verifier), WithJWTDetachedPayload(payloadBytes))
		require.NoError(t, err)
		require.Len(t, claims, 1)
	})

	t.Run("error - invalid signature", func(t *testing.T) {
		otherPub, _, err := ed25519.GenerateKey(rand.Reader)
		require.NoError(t, err)

		otherVerifier, err := jwt.NewEd25519Verifier(otherPub)
		require.NoError(t, err)

		claims, err := Parse(combinedFormatForIssuance, WithSignatureVerifier(otherVerifier))
		require.Error(t, err)
		require.Nil(t, claims)
	})

	t.Run("error - signing algorithm is not allowed", func(t *testing.T) {
		_, err := Parse(combinedFormatForIssuance, WithIssuerSigningAlgorithms([]string{"RS256"}))
		require.Error(t, err)
		require.Contains(t, err.Error(), "failed to verify issuer signing algorithm: alg 'EdDSA' is not in the allowed list")
	})

	t.Run("error - unexpected typ", func(t *testing.T) {
		_, err := Parse(combinedFormatForIssuance, WithExpectedTypHeader("dc+sd-jwt"))
		require.Error(t, err)
		require.Contains(t, err.Error(), `unexpected typ "vc+sd-jwt"`)
	})

	t.Run("error - expired", func(t *testing.T) {
		expired := issue(t, signer, nil, issuer.WithExpiry(josejwt.NewNumericDate(time.Now().Add(-time.Hour))))

		_, err := Parse(expired, WithLeewayForClaimsValidation(time.Second))
		require.Error(t, err)
		require.Contains(t, err.Error(), "invalid JWT time values")
	})

	t.Run("error - disclosure is not referenced", func(t *testing.T) {
		d, err := common.NewDisclosure("salt", "Mustermann", common.WithKey("family_name"))
		require.NoError(t, err)

		_, err = Parse(combinedFormatForIssuance + d.Encoded() + common.CombinedFormatSeparator)
		require.ErrorIs(t, err, common.ErrInvalidDisclosure)
	})

	t.Run("error - invalid disclosure", func(t *testing.T) {
		_, err := Parse(combinedFormatForIssuance + "!!!" + common.CombinedFormatSeparator)
		require.Error(t, err)
	})

	t.Run("error - not a JWT", func(t *testing.T) {
		_, err := Parse("not a JWT~")
		require.Error(t, err)
	})
}

func TestCreatePresentation(t *testing.T) {
	r := require.New(t)

	_, privKey, err := ed25519.GenerateKey(rand.Reader)
	r.NoError(err)

	holderPub, holderPriv, err := ed25519.GenerateKey(rand.Reader)
	r.NoError(err)

	combinedFormatForIssuance := issue(t, jwt.NewEd25519Signer(privKey), nil)
	cfi := common.ParseCombinedFormatForIssuance(combinedFormatForIssuance)
	r.Len(cfi.Disclosures, 3)

	t.Run("empty frame discloses nothing", func(t *testing.T) {
		frame, err := common.ParsePresentationFrame([]byte(`{}`))
		require.NoError(t, err)

		presentation, err := CreatePresentation(combinedFormatForIssuance, frame)
		require.NoError(t, err)
		require.Equal(t, cfi.SDJWT+common.CombinedFormatSeparator, presentation)

		presentation, err = CreatePresentation(combinedFormatForIssuance, nil)
		require.NoError(t, err)
		require.Equal(t, cfi.SDJWT+common.CombinedFormatSeparator, presentation)
	})

	t.Run("selected claims", func(t *testing.T) {
		frame, err := common.ParsePresentationFrame([]byte(`{"given_name": true, "address": {"country": true}}`))
		require.NoError(t, err)

		presentation, err := CreatePresentation(combinedFormatForIssuance, frame)
		require.NoError(t, err)
		require.True(t, strings.HasSuffix(presentation, common.CombinedFormatSeparator))

		cfp := common.ParseCombinedFormatForPresentation(presentation)
		require.Equal(t, cfi.SDJWT, cfp.SDJWT)
		require.Empty(t, cfp.KeyBinding)
		require.Len(t, cfp.Disclosures, 2)

		names := make([]string, 0, len(cfp.Disclosures))

		for _, encoded := range cfp.Disclosures {
			require.Contains(t, cfi.Disclosures, encoded)

			d, err := common.DisclosureFromString(encoded)
			require.NoError(t, err)

			name, _ := d.Key()
			names = append(names, name)
		}

		require.ElementsMatch(t, []string{"given_name", "address"}, names)
	})

	t.Run("with key binding", func(t *testing.T) {
		frame := common.NewObject(common.FrameEntry{Key: "given_name", Frame: common.Reveal(true)})

		presentation, err := CreatePresentation(combinedFormatForIssuance, frame,
			WithKeyBinding(&BindingInfo{
				Payload: BindingPayload{
					Nonce:    testNonce,
					Audience: testAudience,
					IssuedAt: josejwt.NewNumericDate(time.Now()),
				},
				Signer:  jwt.NewEd25519Signer(holderPriv),
				Headers: jwt.Headers{jwt.HeaderKeyID: "holder-key"},
			}))
		require.NoError(t, err)

		cfp := common.ParseCombinedFormatForPresentation(presentation)
		require.Len(t, cfp.Disclosures, 1)
		require.NotEmpty(t, cfp.KeyBinding)

		holderVerifier, err := jwt.NewEd25519Verifier(holderPub)
		require.NoError(t, err)

		kb, _, err := jwt.Parse(cfp.KeyBinding, jwt.WithSignatureVerifier(holderVerifier))
		require.NoError(t, err)
		require.Equal(t, KeyBindingJWTType, kb.LookupStringHeader(jwt.HeaderType))
		require.Equal(t, "holder-key", kb.LookupStringHeader(jwt.HeaderKeyID))

		var payload BindingPayload
		require.NoError(t, kb.DecodeClaims(&payload))
		require.Equal(t, testNonce, payload.Nonce)
		require.Equal(t, testAudience, payload.Audience)
	})

	t.Run("error - path not found", func(t *testing.T) {
		_, err := CreatePresentation(combinedFormatForIssuance,
			common.NewObject(common.FrameEntry{Key: "middle_name", Frame: common.Reveal(true)}))
		require.ErrorIs(t, err, common.ErrPathNotFound)
	})

	t.Run("error - key binding signer is missing", func(t *testing.T) {
		_, err := CreatePresentation(combinedFormatForIssuance, nil, WithKeyBinding(&BindingInfo{}))
		require.EqualError(t, err, "create key binding: key binding signer is not defined")
	})

	t.Run("error - not a JWT", func(t *testing.T) {
		_, err := CreatePresentation("not a JWT~", nil)
		require.Error(t, err)
	})

	t.Run("error - invalid disclosure", func(t *testing.T) {
		_, err := CreatePresentation(cfi.SDJWT+"~!!!~", nil)
		require.Error(t, err)
	})
}
