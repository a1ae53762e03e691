/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

/*
Package issuer enables the Issuer: An entity that creates SD-JWTs.

An SD-JWT is a digitally signed document containing digests over the claims
(per claim: a random salt, the claim name and the claim value).
It MAY further contain clear-text claims that are always disclosed to the Verifier.
It MUST be digitally signed using the Issuer's private key.

	SD-JWT-DOC = (METADATA, SD-CLAIMS, NON-SD-CLAIMS)
	SD-JWT = SD-JWT-DOC | SIG(SD-JWT-DOC, ISSUER-PRIV-KEY)

SD-CLAIMS is an array of digest values that ensure the integrity of
and map to the respective Disclosures. Which claims become SD-CLAIMS is
described by a disclosure frame (see ApplyDisclosureFrame). Digest values are
calculated over the Disclosures, each of which contains the claim name (CLAIM-NAME),
the claim value (CLAIM-VALUE), and a random salt (SALT):

SD-CLAIMS = (
HASH(SALT, CLAIM-NAME, CLAIM-VALUE)
)*

Array elements are disclosed without a claim name and are referenced in place by {"...": DIGEST}.

The SD-JWT and the Disclosures are sent to the Holder by the Issuer:

COMBINED-ISSUANCE = SD-JWT | DISCLOSURES
*/
package issuer

import (
	"crypto"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	mathrand "math/rand"
	"time"

	"github.com/go-jose/go-jose/v3"
	josejwt "github.com/go-jose/go-jose/v3/jwt"
	"github.com/hyperledger/aries-framework-go/component/log"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/hyperledger/aries-sdjwt-go/common"
	"github.com/hyperledger/aries-sdjwt-go/jwt"
	jsonutil "github.com/hyperledger/aries-sdjwt-go/util/json"
)

const (
	defaultHash = crypto.SHA256

	saltSize = 16

	decoyMinElements = 1
	decoyMaxElements = 4
)

var (
	logger = log.New("aries-framework/sdjwt/issuer") // nolint:gochecknoglobals

	mr = mathrand.New(mathrand.NewSource(time.Now().Unix())) // nolint:gochecknoglobals
)

// newOpts holds options for creating new SD-JWT.
type newOpts struct {
	Subject  string
	Audience string
	JTI      string
	ID       string

	Expiry    *josejwt.NumericDate
	NotBefore *josejwt.NumericDate
	IssuedAt  *josejwt.NumericDate

	HolderPublicKey *jose.JSONWebKey

	HashAlg crypto.Hash
	hasher  *common.HasherAndAlgorithm

	jsonMarshal common.Marshaller
	getSalt     func() (string, error)

	frame           *common.Object
	addDecoyDigests bool
}

func defaultNewOpts() *newOpts {
	return &newOpts{
		HashAlg:     defaultHash,
		jsonMarshal: jsonutil.Marshal,
		getSalt:     GenerateSalt,
	}
}

func (o *newOpts) hasherAndAlgorithm() (*common.HasherAndAlgorithm, error) {
	if o.hasher != nil {
		return o.hasher, nil
	}

	return common.NewCryptoHasher(o.HashAlg)
}

// NewOpt is the SD-JWT New option.
type NewOpt func(opts *newOpts)

// WithDisclosureFrame sets the frame selecting selectively disclosable claims.
// Without a frame every top-level claim is selectively disclosable.
func WithDisclosureFrame(frame *common.Object) NewOpt {
	return func(opts *newOpts) {
		opts.frame = frame
	}
}

// WithJSONMarshaller is option is for marshalling disclosure.
func WithJSONMarshaller(jsonMarshal func(v interface{}) ([]byte, error)) NewOpt {
	return func(opts *newOpts) {
		opts.jsonMarshal = jsonMarshal
	}
}

// WithSaltFnc is an option for generating salt. Mostly used for testing.
// A new salt MUST be chosen for each claim independently of other claims.
func WithSaltFnc(fnc func() (string, error)) NewOpt {
	return func(opts *newOpts) {
		opts.getSalt = fnc
	}
}

// WithIssuedAt is an option for SD-JWT payload.
func WithIssuedAt(issuedAt *josejwt.NumericDate) NewOpt {
	return func(opts *newOpts) {
		opts.IssuedAt = issuedAt
	}
}

// WithAudience is an option for SD-JWT payload.
func WithAudience(audience string) NewOpt {
	return func(opts *newOpts) {
		opts.Audience = audience
	}
}

// WithExpiry is an option for SD-JWT payload.
func WithExpiry(expiry *josejwt.NumericDate) NewOpt {
	return func(opts *newOpts) {
		opts.Expiry = expiry
	}
}

// WithNotBefore is an option for SD-JWT payload.
func WithNotBefore(notBefore *josejwt.NumericDate) NewOpt {
	return func(opts *newOpts) {
		opts.NotBefore = notBefore
	}
}

// WithSubject is an option for SD-JWT payload.
func WithSubject(subject string) NewOpt {
	return func(opts *newOpts) {
		opts.Subject = subject
	}
}

// WithJTI is an option for SD-JWT payload.
func WithJTI(jti string) NewOpt {
	return func(opts *newOpts) {
		opts.JTI = jti
	}
}

// WithID is an option for SD-JWT payload. This is a custom claim that is used for claims based holder binding.
func WithID(id string) NewOpt {
	return func(opts *newOpts) {
		opts.ID = id
	}
}

// WithHolderPublicKey is an option for SD-JWT payload.
// The Holder can prove legitimate possession of an SD-JWT by proving control over the same private key
// during the issuance and presentation. An SD-JWT with Key Binding contains a public key,
// or a reference to a public key, that matches to the private key controlled by the Holder.
func WithHolderPublicKey(jwk *jose.JSONWebKey) NewOpt {
	return func(opts *newOpts) {
		opts.HolderPublicKey = jwk
	}
}

// WithHashAlgorithm is SD-JWT hash algorithm.
func WithHashAlgorithm(alg crypto.Hash) NewOpt {
	return func(opts *newOpts) {
		opts.HashAlg = alg
	}
}

// WithHasher sets custom hasher and its _sd_alg identifier. It takes precedence over WithHashAlgorithm.
func WithHasher(hasher *common.HasherAndAlgorithm) NewOpt {
	return func(opts *newOpts) {
		opts.hasher = hasher
	}
}

// WithDecoyDigests is an option for adding 1 to 4 random decoy digests to every framed object level.
func WithDecoyDigests(flag bool) NewOpt {
	return func(opts *newOpts) {
		opts.addDecoyDigests = flag
	}
}

// New creates new signed Selective Disclosure JWT based on input claims.
// The Issuer MUST create a Disclosure for each selectively disclosable claim as follows:
// Create an array of three elements in this order:
//
//	A salt value. Generated by the system, the salt value MUST be unique for each claim that is to be selectively
//	disclosed.
//	The claim name, or key, as it would be used in a regular JWT body. This MUST be a string.
//	The claim's value, as it would be used in a regular JWT body. The value MAY be of any type that is allowed in JSON,
//	including numbers, strings, booleans, arrays, and objects.
//
// Then JSON-encode the array such that an UTF-8 string is produced.
// Then base64url-encode the byte representation of the UTF-8 string to create the Disclosure.
func New(issuer string, claims interface{}, headers jwt.Headers,
	signer jwt.Signer, opts ...NewOpt) (*SelectiveDisclosureJWT, error) {
	nOpts := defaultNewOpts()

	for _, opt := range opts {
		opt(nOpts)
	}

	claimsMap, err := jwt.PayloadToMap(claims)
	if err != nil {
		return nil, fmt.Errorf("convert payload to map: %w", err)
	}

	// check for the presence of the _sd claim in claims map
	found := common.KeyExistsInMap(common.SDKey, claimsMap)
	if found {
		return nil, fmt.Errorf("key '%s' cannot be present in the claims", common.SDKey)
	}

	frame := nOpts.frame
	if frame == nil {
		frame = allClaimsFrame(claimsMap)
	}

	framed, disclosures, err := ApplyDisclosureFrame(claimsMap, frame, opts...)
	if err != nil {
		return nil, fmt.Errorf("apply disclosure frame: %w", err)
	}

	hasher, err := nOpts.hasherAndAlgorithm()
	if err != nil {
		return nil, err
	}

	sdAlg := ""
	if len(disclosures) > 0 || common.KeyExistsInMap(common.SDKey, framed) {
		sdAlg = hasher.Algorithm
	}

	payload, err := jsonutil.MergeCustomFields(createPayload(issuer, sdAlg, nOpts), framed)
	if err != nil {
		return nil, fmt.Errorf("failed to merge payload and digests: %w", err)
	}

	signedJWT, err := jwt.NewSigned(payload, headers, signer)
	if err != nil {
		return nil, fmt.Errorf("failed to create SD-JWT from payload[%+v]: %w", payload, err)
	}

	logger.Debugf("created SD-JWT for issuer '%s' with %d disclosures", issuer, len(disclosures))

	return &SelectiveDisclosureJWT{Disclosures: common.EncodedDisclosures(disclosures), SignedJWT: signedJWT}, nil
}

// allClaimsFrame makes every top-level claim selectively disclosable, in claim name order.
func allClaimsFrame(claims map[string]interface{}) *common.Object {
	keys := maps.Keys(claims)
	slices.Sort(keys)

	frame := &common.Object{}
	for _, k := range keys {
		frame.Entries = append(frame.Entries, common.FrameEntry{Key: k, Frame: common.Reveal(true)})
	}

	return frame
}

func createPayload(issuer, sdAlg string, nOpts *newOpts) *payload {
	var cnf map[string]interface{}
	if nOpts.HolderPublicKey != nil {
		cnf = make(map[string]interface{})
		cnf["jwk"] = nOpts.HolderPublicKey
	}

	payload := &payload{
		Issuer:    issuer,
		JTI:       nOpts.JTI,
		ID:        nOpts.ID,
		Subject:   nOpts.Subject,
		Audience:  nOpts.Audience,
		IssuedAt:  nOpts.IssuedAt,
		Expiry:    nOpts.Expiry,
		NotBefore: nOpts.NotBefore,
		CNF:       cnf,
		SDAlg:     sdAlg,
	}

	return payload
}

// SelectiveDisclosureJWT defines Selective Disclosure JSON Web Token (https://tools.ietf.org/html/rfc7519)
type SelectiveDisclosureJWT struct {
	SignedJWT   *jwt.JSONWebToken
	Disclosures []string
}

// DecodeClaims fills input c with claims of a token.
func (j *SelectiveDisclosureJWT) DecodeClaims(c interface{}) error {
	return j.SignedJWT.DecodeClaims(c)
}

// LookupStringHeader makes look up of particular header with string value.
func (j *SelectiveDisclosureJWT) LookupStringHeader(name string) string {
	return j.SignedJWT.LookupStringHeader(name)
}

// Serialize makes (compact) serialization of token.
func (j *SelectiveDisclosureJWT) Serialize(detached bool) (string, error) {
	if j.SignedJWT == nil {
		return "", errors.New("JWS serialization is supported only")
	}

	signedJWT, err := j.SignedJWT.Serialize(detached)
	if err != nil {
		return "", err
	}

	cf := common.CombinedFormatForIssuance{
		SDJWT:       signedJWT,
		Disclosures: j.Disclosures,
	}

	return cf.Serialize(), nil
}

// GenerateSalt generates 128-bit base64url encoded salt.
func GenerateSalt() (string, error) {
	return generateSalt(saltSize)
}

func generateSalt(sizeBytes int) (string, error) {
	salt := make([]byte, sizeBytes)

	_, err := rand.Read(salt)
	if err != nil {
		return "", err
	}

	// it is RECOMMENDED to base64url-encode the salt value, producing a string.
	return base64.RawURLEncoding.EncodeToString(salt), nil
}

// payload represents SD-JWT payload.
type payload struct {
	// registered claim names
	Issuer    string               `json:"iss,omitempty"`
	Subject   string               `json:"sub,omitempty"`
	Audience  string               `json:"aud,omitempty"`
	JTI       string               `json:"jti,omitempty"`
	Expiry    *josejwt.NumericDate `json:"exp,omitempty"`
	NotBefore *josejwt.NumericDate `json:"nbf,omitempty"`
	IssuedAt  *josejwt.NumericDate `json:"iat,omitempty"`

	// non-registered name that can be used for claims based holder binding
	ID string `json:"id,omitempty"`

	// SD-JWT specific
	CNF   map[string]interface{} `json:"cnf,omitempty"`
	SDAlg string                 `json:"_sd_alg,omitempty"`
}
