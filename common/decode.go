/*
Copyright Gen Digital Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package common

import (
	"github.com/pkg/errors"

	"github.com/hyperledger/aries-sdjwt-go/util/maphelpers"
)

type decodeOpts struct {
	strict bool
}

// DecodeOpt is the SwapClaims option.
type DecodeOpt func(opts *decodeOpts)

// WithStrictDecoding enables the checks a verifier must apply to a presentation: a digest referenced
// more than once, a disclosed claim name that already exists at its level, a disclosure placed in a slot
// of the other kind and a disclosure not referenced by the payload are errors. Array element placeholders
// without a disclosure are removed from the output.
func WithStrictDecoding() DecodeOpt {
	return func(opts *decodeOpts) {
		opts.strict = true
	}
}

type swapper struct {
	strict      bool
	disclosures map[string]*DisclosureWithDigest
	used        map[string]bool
}

// IndexDisclosures maps disclosures by digest.
func IndexDisclosures(disclosures []*DisclosureWithDigest) (map[string]*DisclosureWithDigest, error) {
	index := make(map[string]*DisclosureWithDigest, len(disclosures))

	for _, d := range disclosures {
		existing, ok := index[d.Digest]
		if ok && existing.Encoded() != d.Encoded() {
			return nil, errors.Wrapf(ErrAmbiguousDigest, "digest '%s' matches more than one disclosure", d.Digest)
		}

		index[d.Digest] = d
	}

	return index, nil
}

// SwapClaims replaces digest references in the framed payload with the disclosed claims.
// Digests without a matching disclosure are skipped; _sd_alg is dropped. The framed payload is not modified.
func SwapClaims(
	framed map[string]interface{},
	disclosures []*DisclosureWithDigest,
	opts ...DecodeOpt,
) (map[string]interface{}, error) {
	dOpts := &decodeOpts{}

	for _, opt := range opts {
		opt(dOpts)
	}

	index, err := IndexDisclosures(disclosures)
	if err != nil {
		return nil, err
	}

	s := &swapper{
		strict:      dOpts.strict,
		disclosures: index,
		used:        make(map[string]bool, len(index)),
	}

	out, err := s.swapObject(framed)
	if err != nil {
		return nil, err
	}

	if s.strict {
		for _, d := range disclosures {
			if !s.used[d.Digest] {
				// If the digest cannot be found in the SD-JWT payload, the Verifier MUST reject the Presentation.
				return nil, errors.Wrapf(ErrInvalidDisclosure,
					"disclosure digest '%s' not found in SD-JWT disclosure digests", d.Digest)
			}
		}
	}

	return out, nil
}

// DecodeDisclosuresInPayload computes disclosure digests with ha and swaps them into the framed payload.
func DecodeDisclosuresInPayload(
	framed map[string]interface{},
	disclosures []*Disclosure,
	ha *HasherAndAlgorithm,
	opts ...DecodeOpt,
) (map[string]interface{}, error) {
	withDigests := make([]*DisclosureWithDigest, 0, len(disclosures))

	for _, d := range disclosures {
		dwd, err := d.WithCalculateDigest(ha, false)
		if err != nil {
			return nil, err
		}

		withDigests = append(withDigests, dwd)
	}

	return SwapClaims(framed, withDigests, opts...)
}

func (s *swapper) swapObject(obj map[string]interface{}) (map[string]interface{}, error) {
	out := make(map[string]interface{}, len(obj))

	for key, value := range obj {
		if key == SDKey || key == SDAlgorithmKey {
			continue
		}

		swapped, err := s.swapValue(value)
		if err != nil {
			return nil, err
		}

		out[key] = swapped
	}

	sdValue, ok := obj[SDKey]
	if !ok {
		return out, nil
	}

	digests, err := stringArray(sdValue)
	if err != nil {
		return nil, errors.Wrapf(ErrInvalidValue, "%s: %s", SDKey, err.Error())
	}

	for _, digest := range digests {
		d, ok := s.disclosures[digest]
		if !ok {
			continue
		}

		if err = s.markUsed(digest); err != nil {
			return nil, err
		}

		key, hasKey := d.Key()
		if !hasKey {
			if s.strict {
				return nil, errors.Wrapf(ErrInvalidDisclosure,
					"array element disclosure '%s' is referenced from %s", digest, SDKey)
			}

			continue
		}

		if _, exists := out[key]; exists {
			if s.strict {
				// If the claim name already exists at the same level, the Verifier MUST reject the Presentation.
				return nil, errors.Wrapf(ErrInvalidDisclosure, "claim name '%s' already exists at the same level", key)
			}

			continue
		}

		if s.strict && (key == SDKey || key == ArrayElementDigestKey) {
			return nil, errors.Wrapf(ErrInvalidDisclosure, "disclosure uses reserved claim name '%s'", key)
		}

		value, err := s.swapValue(d.Value())
		if err != nil {
			return nil, err
		}

		out[key] = value
	}

	return out, nil
}

func (s *swapper) swapArray(arr []interface{}) ([]interface{}, error) {
	out := make([]interface{}, 0, len(arr))

	for _, element := range arr {
		m, isMap := element.(map[string]interface{})
		digest, isPlaceholder := "", false

		if isMap {
			digest, isPlaceholder = ArrayElementDigest(m)
		}

		if !isPlaceholder {
			swapped, err := s.swapValue(element)
			if err != nil {
				return nil, err
			}

			out = append(out, swapped)

			continue
		}

		d, ok := s.disclosures[digest]
		if !ok {
			if !s.strict {
				out = append(out, maphelpers.CopyMap(m))
			}

			continue
		}

		if d.HasKey() {
			if s.strict {
				return nil, errors.Wrapf(ErrInvalidDisclosure,
					"object member disclosure '%s' is referenced from array element", digest)
			}

			out = append(out, maphelpers.CopyMap(m))

			continue
		}

		if err := s.markUsed(digest); err != nil {
			return nil, err
		}

		swapped, err := s.swapValue(d.Value())
		if err != nil {
			return nil, err
		}

		out = append(out, swapped)
	}

	return out, nil
}

func (s *swapper) swapValue(value interface{}) (interface{}, error) {
	switch v := value.(type) {
	case map[string]interface{}:
		return s.swapObject(v)
	case []interface{}:
		return s.swapArray(v)
	default:
		return maphelpers.CopyValue(v), nil
	}
}

func (s *swapper) markUsed(digest string) error {
	if s.used[digest] && s.strict {
		// If there is more than one place where the digest is included, the Verifier MUST reject the Presentation.
		return errors.Wrapf(ErrInvalidDisclosure, "digest '%s' has been included in more than one place", digest)
	}

	s.used[digest] = true

	return nil
}
