/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package maphelpers contains helpers for JSON-like claim trees.
package maphelpers

// CopyMap performs deep copy of map, nested maps and nested slices.
// Scalar values are shared.
func CopyMap(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return nil
	}

	cm := make(map[string]interface{}, len(m))

	for k, v := range m {
		cm[k] = CopyValue(v)
	}

	return cm
}

// CopyValue performs deep copy of JSON-like value.
func CopyValue(v interface{}) interface{} {
	switch tv := v.(type) {
	case map[string]interface{}:
		return CopyMap(tv)
	case []interface{}:
		cs := make([]interface{}, len(tv))

		for i, e := range tv {
			cs[i] = CopyValue(e)
		}

		return cs
	case []string:
		cs := make([]string, len(tv))
		copy(cs, tv)

		return cs
	default:
		return v
	}
}
