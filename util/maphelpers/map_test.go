/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package maphelpers

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/go-jose/go-jose/v3/jwt"
	"github.com/stretchr/testify/require"
)

func TestCopyMap(t *testing.T) {
	original := map[string]interface{}{
		"given_name": "John",
		"address": map[string]interface{}{
			"country": "DE",
		},
		"nationalities": []interface{}{"DE", map[string]interface{}{"...": "digest"}},
		"_sd":           []string{"a", "b"},
	}

	cm := CopyMap(original)
	require.Equal(t, original, cm)

	cm["address"].(map[string]interface{})["country"] = "FR"
	cm["nationalities"].([]interface{})[0] = "FR"
	cm["nationalities"].([]interface{})[1].(map[string]interface{})["..."] = "other"
	cm["_sd"].([]string)[0] = "z"

	require.Equal(t, "DE", original["address"].(map[string]interface{})["country"])
	require.Equal(t, "DE", original["nationalities"].([]interface{})[0])
	require.Equal(t, "digest", original["nationalities"].([]interface{})[1].(map[string]interface{})["..."])
	require.Equal(t, "a", original["_sd"].([]string)[0])

	require.Nil(t, CopyMap(nil))
}

func TestDecodeJSONMap(t *testing.T) {
	type payload struct {
		Nonce    string           `json:"nonce,omitempty"`
		IssuedAt *jwt.NumericDate `json:"iat,omitempty"`
		Expiry   jwt.NumericDate  `json:"exp,omitempty"`
	}

	t.Run("json.Number dates", func(t *testing.T) {
		var p payload

		err := DecodeJSONMap(map[string]interface{}{
			"nonce": "abc",
			"iat":   json.Number("1683000000"),
			"exp":   json.Number("1883000000"),
		}, &p)
		require.NoError(t, err)
		require.Equal(t, "abc", p.Nonce)
		require.Equal(t, time.Unix(1683000000, 0).Unix(), p.IssuedAt.Time().Unix())
		require.Equal(t, int64(1883000000), int64(p.Expiry))
	})

	t.Run("float64 dates", func(t *testing.T) {
		var p payload

		err := DecodeJSONMap(map[string]interface{}{"iat": float64(1683000000)}, &p)
		require.NoError(t, err)
		require.Equal(t, int64(1683000000), p.IssuedAt.Time().Unix())
	})

	t.Run("error - invalid date", func(t *testing.T) {
		var p payload

		err := DecodeJSONMap(map[string]interface{}{"iat": true}, &p)
		require.Error(t, err)
		require.Contains(t, err.Error(), "mapstruct decode")
	})
}
