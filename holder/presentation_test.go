/*
Copyright Gen Digital Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package holder

import (
	"testing"

	"github.com/hyperledger/aries-framework-go/component/log"
	spilog "github.com/hyperledger/aries-framework-go/spi/log"
	"github.com/stretchr/testify/require"

	"github.com/hyperledger/aries-sdjwt-go/common"
	"github.com/hyperledger/aries-sdjwt-go/issuer"
)

type framedClaims struct {
	signed      map[string]interface{}
	pretty      map[string]interface{}
	disclosures []*common.DisclosureWithDigest
}

func newFramedClaims(t *testing.T) *framedClaims {
	t.Helper()

	frame, err := common.ParseDisclosureFrame([]byte(`{
		"given_name": true,
		"address": {"country": true, "__recursive": true},
		"nationalities": [true, true]
	}`))
	require.NoError(t, err)

	signed, disclosures, err := issuer.ApplyDisclosureFrame(map[string]interface{}{
		"given_name":    "John",
		"family_name":   "Doe",
		"address":       map[string]interface{}{"country": "US", "locality": "Anytown"},
		"nationalities": []interface{}{"US", "DE", "FR"},
	}, frame)
	require.NoError(t, err)
	require.Len(t, disclosures, 5)

	pretty, err := common.SwapClaims(signed, disclosures)
	require.NoError(t, err)

	return &framedClaims{signed: signed, pretty: pretty, disclosures: disclosures}
}

func (c *framedClaims) resolve(t *testing.T, presentationFrame string) ([]*common.DisclosureWithDigest, error) {
	t.Helper()

	frame, err := common.ParsePresentationFrame([]byte(presentationFrame))
	require.NoError(t, err)

	return GetDisclosuresForPresentationFrame(c.signed, frame, c.pretty, c.disclosures)
}

func TestGetDisclosuresForPresentationFrame(t *testing.T) {
	log.SetLevel("aries-framework/sdjwt/holder", spilog.DEBUG)

	c := newFramedClaims(t)

	// disclosures are created in frame order
	givenName, country, address, nationalityUS, nationalityDE :=
		c.disclosures[0], c.disclosures[1], c.disclosures[2], c.disclosures[3], c.disclosures[4]

	t.Run("empty frame selects nothing", func(t *testing.T) {
		selected, err := c.resolve(t, `{}`)
		require.NoError(t, err)
		require.Empty(t, selected)

		selected, err = GetDisclosuresForPresentationFrame(c.signed, nil, c.pretty, c.disclosures)
		require.NoError(t, err)
		require.Empty(t, selected)
	})

	t.Run("top-level claim", func(t *testing.T) {
		selected, err := c.resolve(t, `{"given_name": true}`)
		require.NoError(t, err)
		require.Equal(t, []*common.DisclosureWithDigest{givenName}, selected)
	})

	t.Run("false leaves select nothing", func(t *testing.T) {
		selected, err := c.resolve(t, `{"given_name": false, "nationalities": [false, false]}`)
		require.NoError(t, err)
		require.Empty(t, selected)
	})

	t.Run("nested claim brings its enclosing disclosure", func(t *testing.T) {
		selected, err := c.resolve(t, `{"address": {"country": true}}`)
		require.NoError(t, err)
		require.Equal(t, []*common.DisclosureWithDigest{country, address}, selected)
	})

	t.Run("cleartext member of disclosed object needs only the enclosing disclosure", func(t *testing.T) {
		selected, err := c.resolve(t, `{"address": {"locality": true}}`)
		require.NoError(t, err)
		require.Equal(t, []*common.DisclosureWithDigest{address}, selected)
	})

	t.Run("whole object brings everything nested", func(t *testing.T) {
		selected, err := c.resolve(t, `{"address": true}`)
		require.NoError(t, err)
		require.Equal(t, []*common.DisclosureWithDigest{country, address}, selected)
	})

	t.Run("array elements", func(t *testing.T) {
		selected, err := c.resolve(t, `{"nationalities": [false, true]}`)
		require.NoError(t, err)
		require.Equal(t, []*common.DisclosureWithDigest{nationalityDE}, selected)

		selected, err = c.resolve(t, `{"nationalities": true}`)
		require.NoError(t, err)
		require.Equal(t, []*common.DisclosureWithDigest{nationalityUS, nationalityDE}, selected)
	})

	t.Run("cleartext claim needs no disclosures", func(t *testing.T) {
		selected, err := c.resolve(t, `{"family_name": true, "nationalities": [false, false, true]}`)
		require.NoError(t, err)
		require.Empty(t, selected)
	})

	t.Run("result keeps disclosure order", func(t *testing.T) {
		selected, err := c.resolve(t, `{"nationalities": [true], "address": {"country": true}, "given_name": true}`)
		require.NoError(t, err)
		require.Equal(t, []*common.DisclosureWithDigest{givenName, country, address, nationalityUS}, selected)
	})

	t.Run("duplicate disclosures are emitted once", func(t *testing.T) {
		withDuplicate := append([]*common.DisclosureWithDigest{givenName}, c.disclosures...)

		selected, err := GetDisclosuresForPresentationFrame(c.signed,
			common.NewObject(common.FrameEntry{Key: "given_name", Frame: common.Reveal(true)}), c.pretty, withDuplicate)
		require.NoError(t, err)
		require.Equal(t, []*common.DisclosureWithDigest{givenName}, selected)
	})

	t.Run("error - path not found", func(t *testing.T) {
		for _, frame := range []string{
			`{"middle_name": true}`,
			`{"address": {"region": true}}`,
			`{"nationalities": [false, false, false, true]}`,
			`{"given_name": {"first": true}}`,
		} {
			_, err := c.resolve(t, frame)
			require.ErrorIs(t, err, common.ErrPathNotFound, frame)
		}

		_, err := c.resolve(t, `{"address": {"region": true}}`)
		require.Contains(t, err.Error(), "address.region")
	})

	t.Run("error - disclosures are not referenced", func(t *testing.T) {
		_, err := GetDisclosuresForPresentationFrame(map[string]interface{}{"iss": "issuer"}, common.NewObject(),
			map[string]interface{}{"iss": "issuer"}, c.disclosures)
		require.ErrorIs(t, err, common.ErrInconsistentState)
	})

	t.Run("digests do not match supplied disclosures", func(t *testing.T) {
		signed := map[string]interface{}{
			"iss":         "issuer",
			common.SDKey: []interface{}{"unknown"},
		}

		selected, err := GetDisclosuresForPresentationFrame(signed, common.NewObject(),
			map[string]interface{}{"iss": "issuer"}, c.disclosures)
		require.NoError(t, err)
		require.Empty(t, selected)
	})

	t.Run("no disclosures", func(t *testing.T) {
		selected, err := GetDisclosuresForPresentationFrame(map[string]interface{}{"iss": "issuer"},
			common.NewObject(common.FrameEntry{Key: "iss", Frame: common.Reveal(true)}),
			map[string]interface{}{"iss": "issuer"}, nil)
		require.NoError(t, err)
		require.Empty(t, selected)
	})

	t.Run("error - ambiguous digest", func(t *testing.T) {
		first, err := common.NewDisclosure("salt", "John", common.WithKey("given_name"))
		require.NoError(t, err)

		second, err := common.NewDisclosure("salt", "Jane", common.WithKey("given_name"))
		require.NoError(t, err)

		_, err = GetDisclosuresForPresentationFrame(c.signed, common.NewObject(), c.pretty,
			[]*common.DisclosureWithDigest{first.WithDigest("digest"), second.WithDigest("digest")})
		require.ErrorIs(t, err, common.ErrAmbiguousDigest)
	})

	t.Run("error - disclosure references itself", func(t *testing.T) {
		d, err := common.NewDisclosure("salt", map[string]interface{}{common.SDKey: []interface{}{"loop"}},
			common.WithKey("address"))
		require.NoError(t, err)

		_, err = GetDisclosuresForPresentationFrame(
			map[string]interface{}{common.SDKey: []interface{}{"loop"}}, common.NewObject(),
			map[string]interface{}{}, []*common.DisclosureWithDigest{d.WithDigest("loop")})
		require.ErrorIs(t, err, common.ErrInconsistentState)
	})

	t.Run("error - invalid _sd", func(t *testing.T) {
		_, err := GetDisclosuresForPresentationFrame(
			map[string]interface{}{common.SDKey: "digest"}, common.NewObject(),
			map[string]interface{}{}, c.disclosures)
		require.ErrorIs(t, err, common.ErrInvalidValue)

		_, err = GetDisclosuresForPresentationFrame(
			map[string]interface{}{common.SDKey: []interface{}{1}}, common.NewObject(),
			map[string]interface{}{}, c.disclosures)
		require.ErrorIs(t, err, common.ErrInvalidValue)
	})
}

func TestParsePresentationFrameLeaves(t *testing.T) {
	_, err := common.ParsePresentationFrame([]byte(`{"given_name": "yes"}`))
	require.ErrorIs(t, err, common.ErrInvalidFrameLeaf)

	frame, err := common.ParsePresentationFrame([]byte(`{"address": {"country": true}, "nationalities": [false, true]}`))
	require.NoError(t, err)
	require.Equal(t, [][]string{{"address", "country"}, {"nationalities", "1"}}, frameLeaves(frame, nil))
}
