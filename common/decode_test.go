/*
Copyright Gen Digital Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package common

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type testDisclosures struct {
	t  *testing.T
	ha *HasherAndAlgorithm
}

func (td *testDisclosures) keyed(salt, key string, value interface{}) *DisclosureWithDigest {
	d, err := NewDisclosure(salt, value, WithKey(key))
	require.NoError(td.t, err)

	dwd, err := d.WithCalculateDigest(td.ha, false)
	require.NoError(td.t, err)

	return dwd
}

func (td *testDisclosures) element(salt string, value interface{}) *DisclosureWithDigest {
	d, err := NewDisclosure(salt, value)
	require.NoError(td.t, err)

	dwd, err := d.WithCalculateDigest(td.ha, false)
	require.NoError(td.t, err)

	return dwd
}

func TestSwapClaims(t *testing.T) {
	td := &testDisclosures{t: t, ha: sha256Hasher(t)}

	givenName := td.keyed("s1", "given_name", "John")
	country := td.keyed("s2", "country", "DE")
	nationality := td.element("s3", "US")
	address := td.keyed("s4", "address", map[string]interface{}{
		"locality": "Berlin",
		SDKey:      []interface{}{country.Digest},
	})

	framed := map[string]interface{}{
		"iss":          "https://example.com/issuer",
		SDAlgorithmKey: "sha-256",
		SDKey:          []interface{}{givenName.Digest, address.Digest, "decoy"},
		"nationalities": []interface{}{
			"DE",
			map[string]interface{}{ArrayElementDigestKey: nationality.Digest},
			map[string]interface{}{ArrayElementDigestKey: "undisclosed"},
		},
	}

	all := []*DisclosureWithDigest{givenName, country, nationality, address}

	t.Run("all disclosures", func(t *testing.T) {
		pretty, err := SwapClaims(framed, all)
		require.NoError(t, err)
		require.Equal(t, map[string]interface{}{
			"iss":        "https://example.com/issuer",
			"given_name": "John",
			"address": map[string]interface{}{
				"locality": "Berlin",
				"country":  "DE",
			},
			"nationalities": []interface{}{
				"DE",
				"US",
				map[string]interface{}{ArrayElementDigestKey: "undisclosed"},
			},
		}, pretty)

		// input is not modified
		require.Contains(t, framed, SDKey)
		require.Contains(t, framed, SDAlgorithmKey)
	})

	t.Run("no disclosures", func(t *testing.T) {
		pretty, err := SwapClaims(framed, nil)
		require.NoError(t, err)
		require.Equal(t, map[string]interface{}{
			"iss": "https://example.com/issuer",
			"nationalities": []interface{}{
				"DE",
				map[string]interface{}{ArrayElementDigestKey: nationality.Digest},
				map[string]interface{}{ArrayElementDigestKey: "undisclosed"},
			},
		}, pretty)
	})

	t.Run("child disclosure without parent is not reachable", func(t *testing.T) {
		pretty, err := SwapClaims(framed, []*DisclosureWithDigest{country})
		require.NoError(t, err)
		require.NotContains(t, pretty, "address")
	})

	t.Run("disclosure kind must match slot", func(t *testing.T) {
		misplacedKeyed := td.keyed("s5", "nationality", "FR")
		misplacedElement := td.element("s6", "Jane")

		payload := map[string]interface{}{
			SDKey:           []interface{}{misplacedElement.Digest},
			"nationalities": []interface{}{map[string]interface{}{ArrayElementDigestKey: misplacedKeyed.Digest}},
		}

		pretty, err := SwapClaims(payload, []*DisclosureWithDigest{misplacedKeyed, misplacedElement})
		require.NoError(t, err)
		require.Equal(t, map[string]interface{}{
			"nationalities": []interface{}{map[string]interface{}{ArrayElementDigestKey: misplacedKeyed.Digest}},
		}, pretty)

		_, err = SwapClaims(payload, []*DisclosureWithDigest{misplacedElement}, WithStrictDecoding())
		require.ErrorIs(t, err, ErrInvalidDisclosure)

		_, err = SwapClaims(payload, []*DisclosureWithDigest{misplacedKeyed}, WithStrictDecoding())
		require.ErrorIs(t, err, ErrInvalidDisclosure)
	})

	t.Run("strict decoding", func(t *testing.T) {
		pretty, err := SwapClaims(framed, all, WithStrictDecoding())
		require.NoError(t, err)
		require.Equal(t, []interface{}{"DE", "US"}, pretty["nationalities"])

		unreferenced := td.keyed("s7", "family_name", "Doe")

		_, err = SwapClaims(framed, append([]*DisclosureWithDigest{unreferenced}, all...), WithStrictDecoding())
		require.ErrorIs(t, err, ErrInvalidDisclosure)
		require.Contains(t, err.Error(), "not found in SD-JWT disclosure digests")

		twice := map[string]interface{}{
			SDKey:   []interface{}{givenName.Digest},
			"inner": map[string]interface{}{SDKey: []interface{}{givenName.Digest}},
		}

		_, err = SwapClaims(twice, []*DisclosureWithDigest{givenName}, WithStrictDecoding())
		require.ErrorIs(t, err, ErrInvalidDisclosure)
		require.Contains(t, err.Error(), "included in more than one place")

		collision := map[string]interface{}{
			"given_name": "Jane",
			SDKey:        []interface{}{givenName.Digest},
		}

		_, err = SwapClaims(collision, []*DisclosureWithDigest{givenName}, WithStrictDecoding())
		require.ErrorIs(t, err, ErrInvalidDisclosure)
		require.Contains(t, err.Error(), "already exists at the same level")

		pretty, err = SwapClaims(collision, []*DisclosureWithDigest{givenName})
		require.NoError(t, err)
		require.Equal(t, "Jane", pretty["given_name"])
	})

	t.Run("error - ambiguous digest", func(t *testing.T) {
		conflicting := td.keyed("other", "given_name", "Jane").Disclosure.WithDigest(givenName.Digest)

		_, err := SwapClaims(framed, []*DisclosureWithDigest{givenName, conflicting})
		require.ErrorIs(t, err, ErrAmbiguousDigest)

		_, err = SwapClaims(framed, []*DisclosureWithDigest{givenName, givenName})
		require.NoError(t, err)
	})

	t.Run("error - invalid _sd", func(t *testing.T) {
		_, err := SwapClaims(map[string]interface{}{SDKey: "digest"}, nil)
		require.ErrorIs(t, err, ErrInvalidValue)
	})

	t.Run("DecodeDisclosuresInPayload", func(t *testing.T) {
		pretty, err := DecodeDisclosuresInPayload(framed,
			[]*Disclosure{givenName.Disclosure, address.Disclosure, country.Disclosure}, td.ha)
		require.NoError(t, err)
		require.Equal(t, "John", pretty["given_name"])
		require.Equal(t, "DE", pretty["address"].(map[string]interface{})["country"])
	})
}
