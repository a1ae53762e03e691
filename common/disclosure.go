/*
Copyright Gen Digital Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package common

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"

	"github.com/pkg/errors"

	jsonutil "github.com/hyperledger/aries-sdjwt-go/util/json"
)

const (
	disclosureArrayElementLen = 2
	disclosureKeyedLen        = 3
)

// Marshaller serializes the disclosure array before base64url encoding.
type Marshaller func(v interface{}) ([]byte, error)

// Disclosure is a salted claim that can be revealed to prove a committed digest.
// A disclosure with a key reveals an object member, a disclosure without a key reveals an array element.
// Disclosure is immutable; its encoded form is fixed at creation.
type Disclosure struct {
	salt   string
	key    string
	hasKey bool
	value  interface{}

	encoded string
}

// DisclosureWithDigest is a Disclosure whose digest is known.
type DisclosureWithDigest struct {
	*Disclosure

	Digest string
}

type disclosureOpts struct {
	key        *string
	marshaller Marshaller
}

// DisclosureOpt is the NewDisclosure option.
type DisclosureOpt func(opts *disclosureOpts)

// WithKey makes disclosure an object member disclosure for the given claim name.
func WithKey(key string) DisclosureOpt {
	return func(opts *disclosureOpts) {
		opts.key = &key
	}
}

// WithMarshaller sets the JSON marshaller of the disclosure array.
// The default one puts a space after each separator, as SD-JWT test vectors do.
func WithMarshaller(marshaller Marshaller) DisclosureOpt {
	return func(opts *disclosureOpts) {
		opts.marshaller = marshaller
	}
}

// NewDisclosure creates disclosure for the given salt and value.
func NewDisclosure(salt string, value interface{}, opts ...DisclosureOpt) (*Disclosure, error) {
	dOpts := &disclosureOpts{marshaller: jsonutil.Marshal}

	for _, opt := range opts {
		opt(dOpts)
	}

	if err := checkFinite(value); err != nil {
		return nil, err
	}

	d := &Disclosure{salt: salt, value: value}

	if dOpts.key != nil {
		d.key = *dOpts.key
		d.hasKey = true
	}

	encoded, err := dOpts.marshaller(d.Array())
	if err != nil {
		return nil, errors.Wrapf(ErrInvalidValue, "marshal disclosure: %s", err.Error())
	}

	d.encoded = base64.RawURLEncoding.EncodeToString(encoded)

	return d, nil
}

// DisclosureFromArray creates disclosure from decoded [salt, key, value] or [salt, value] array.
func DisclosureFromArray(item []interface{}, opts ...DisclosureOpt) (*Disclosure, error) {
	if len(item) != disclosureArrayElementLen && len(item) != disclosureKeyedLen {
		return nil, errors.Wrapf(ErrInvalidDisclosure, "disclosure array must have 2 or 3 elements, got %d", len(item))
	}

	salt, ok := item[0].(string)
	if !ok {
		return nil, errors.Wrapf(ErrInvalidDisclosure, "disclosure salt type[%T] must be string", item[0])
	}

	if len(item) == disclosureArrayElementLen {
		return NewDisclosure(salt, item[1], opts...)
	}

	key, ok := item[1].(string)
	if !ok {
		return nil, errors.Wrapf(ErrInvalidDisclosure, "disclosure name type[%T] must be string", item[1])
	}

	return NewDisclosure(salt, item[2], append(opts, WithKey(key))...)
}

// DisclosureFromString decodes base64url encoded disclosure.
// The returned disclosure keeps encoded as its encoded form.
func DisclosureFromString(encoded string) (*Disclosure, error) {
	decoded, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, errors.Wrapf(ErrInvalidDisclosure, "decode disclosure: %s", err.Error())
	}

	var item []interface{}

	dec := json.NewDecoder(bytes.NewReader(decoded))
	dec.UseNumber()

	if err = dec.Decode(&item); err != nil {
		return nil, errors.Wrapf(ErrInvalidDisclosure, "unmarshal disclosure array: %s", err.Error())
	}

	d, err := DisclosureFromArray(item)
	if err != nil {
		return nil, err
	}

	d.encoded = encoded

	return d, nil
}

// Salt returns disclosure salt.
func (d *Disclosure) Salt() string {
	return d.salt
}

// Key returns claim name of object member disclosure.
func (d *Disclosure) Key() (string, bool) {
	return d.key, d.hasKey
}

// HasKey reports whether disclosure reveals an object member.
func (d *Disclosure) HasKey() bool {
	return d.hasKey
}

// Value returns disclosed value.
func (d *Disclosure) Value() interface{} {
	return d.value
}

// Encoded returns base64url encoded disclosure array.
func (d *Disclosure) Encoded() string {
	return d.encoded
}

// Array returns disclosure array form.
func (d *Disclosure) Array() []interface{} {
	if d.hasKey {
		return []interface{}{d.salt, d.key, d.value}
	}

	return []interface{}{d.salt, d.value}
}

// WithDigest assigns digest without verifying it.
func (d *Disclosure) WithDigest(digest string) *DisclosureWithDigest {
	return &DisclosureWithDigest{Disclosure: d, Digest: digest}
}

// WithCalculateDigest computes disclosure digest.
func (d *Disclosure) WithCalculateDigest(ha *HasherAndAlgorithm, _ bool) (*DisclosureWithDigest, error) {
	digest, err := Digest(d, ha)
	if err != nil {
		return nil, err
	}

	return d.WithDigest(digest), nil
}

// WithCalculateDigest returns d unless recalculate is set, in which case the digest is computed again.
func (d *DisclosureWithDigest) WithCalculateDigest(ha *HasherAndAlgorithm,
	recalculate bool) (*DisclosureWithDigest, error) {
	if d.Digest != "" && !recalculate {
		return d, nil
	}

	return d.Disclosure.WithCalculateDigest(ha, recalculate)
}

// String returns encoded disclosure.
func (d *Disclosure) String() string {
	return d.encoded
}

// ParseDisclosures decodes encoded disclosures and computes their digests.
func ParseDisclosures(disclosures []string, ha *HasherAndAlgorithm) ([]*DisclosureWithDigest, error) {
	parsed := make([]*DisclosureWithDigest, 0, len(disclosures))

	for _, encoded := range disclosures {
		d, err := DisclosureFromString(encoded)
		if err != nil {
			return nil, fmt.Errorf("parse disclosure '%s': %w", encoded, err)
		}

		dwd, err := d.WithCalculateDigest(ha, false)
		if err != nil {
			return nil, err
		}

		parsed = append(parsed, dwd)
	}

	return parsed, nil
}

// EncodedDisclosures returns encoded forms of disclosures.
func EncodedDisclosures(disclosures []*DisclosureWithDigest) []string {
	encoded := make([]string, 0, len(disclosures))

	for _, d := range disclosures {
		encoded = append(encoded, d.Encoded())
	}

	return encoded
}

func checkFinite(value interface{}) error {
	switch v := value.(type) {
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return errors.Wrapf(ErrInvalidValue, "value %v is not a finite number", v)
		}
	case float32:
		return checkFinite(float64(v))
	case map[string]interface{}:
		for _, e := range v {
			if err := checkFinite(e); err != nil {
				return err
			}
		}
	case []interface{}:
		for _, e := range v {
			if err := checkFinite(e); err != nil {
				return err
			}
		}
	}

	return nil
}
