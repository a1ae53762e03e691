/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package maphelpers

import (
	"encoding/json"
	"fmt"
	"reflect"
	"time"

	"github.com/go-jose/go-jose/v3/jwt"
	"github.com/mitchellh/mapstructure"
)

// nolint:gochecknoglobals
var numericDateType = reflect.TypeOf(jwt.NumericDate(0))

// JSONNumberToJwtNumericDate hook for mapstructure library to decode json.Number
// (or any other JSON number representation) to jwt.NumericDate.
func JSONNumberToJwtNumericDate() mapstructure.DecodeHookFuncType {
	return func(
		f reflect.Type,
		t reflect.Type,
		data interface{},
	) (interface{}, error) {
		if t != numericDateType && t != reflect.PtrTo(numericDateType) {
			return data, nil
		}

		seconds, err := toSeconds(data)
		if err != nil {
			return nil, fmt.Errorf("decode %s into numeric date: %w", f, err)
		}

		date := jwt.NewNumericDate(time.Unix(seconds, 0))

		if t == numericDateType {
			return *date, nil
		}

		return date, nil
	}
}

func toSeconds(data interface{}) (int64, error) {
	switch v := data.(type) {
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0, err
		}

		return int64(f), nil
	case float64:
		return int64(v), nil
	case float32:
		return int64(v), nil
	case int:
		return int64(v), nil
	case int64:
		return v, nil
	default:
		return 0, fmt.Errorf("unsupported numeric date type %T", data)
	}
}

// DecodeJSONMap decodes JSON-like map into struct out, honoring "json" tags.
func DecodeJSONMap(m map[string]interface{}, out interface{}) error {
	d, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		TagName:          "json",
		Squash:           true,
		WeaklyTypedInput: true,
		DecodeHook:       JSONNumberToJwtNumericDate(),
	})
	if err != nil {
		return fmt.Errorf("mapstruct new decoder: %w", err)
	}

	if err = d.Decode(m); err != nil {
		return fmt.Errorf("mapstruct decode: %w", err)
	}

	return nil
}
