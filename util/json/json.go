/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package json contains JSON helpers shared by the SD-JWT packages.
package json

import (
	"bytes"
	"encoding/json"
)

// Marshal encodes v into JSON with a single space after every ',' and ':' separator,
// the layout of the SD-JWT reference test vectors (e.g. ["salt", "given_name", "John"]).
// Object keys are sorted and HTML characters are not escaped.
func Marshal(v interface{}) ([]byte, error) {
	var buf bytes.Buffer

	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	if err := enc.Encode(v); err != nil {
		return nil, err
	}

	return spaceSeparators(bytes.TrimRight(buf.Bytes(), "\n")), nil
}

// MarshalCompact encodes v into JSON without any insignificant whitespace and without HTML escaping.
func MarshalCompact(v interface{}) ([]byte, error) {
	var buf bytes.Buffer

	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	if err := enc.Encode(v); err != nil {
		return nil, err
	}

	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func spaceSeparators(compact []byte) []byte {
	out := make([]byte, 0, len(compact)+len(compact)/8) //nolint:gomnd

	inString, escaped := false, false

	for _, c := range compact {
		out = append(out, c)

		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}

			continue
		}

		switch c {
		case '"':
			inString = true
		case ',', ':':
			out = append(out, ' ')
		}
	}

	return out
}

// MergeCustomFields converts value to the JSON-like map and merges it with custom fields map cf.
// Custom fields win over value fields.
func MergeCustomFields(v interface{}, cf map[string]interface{}) (map[string]interface{}, error) {
	kf, err := ToMap(v)
	if err != nil {
		return nil, err
	}

	for k, v := range cf {
		kf[k] = v
	}

	return kf, nil
}

// ToMap converts value to the JSON-like map. Numbers are kept as json.Number.
func ToMap(v interface{}) (map[string]interface{}, error) {
	var (
		b   []byte
		err error
	)

	switch cv := v.(type) {
	case []byte:
		b = cv
	case string:
		b = []byte(cv)
	default:
		b, err = json.Marshal(v)
		if err != nil {
			return nil, err
		}
	}

	var m map[string]interface{}

	d := json.NewDecoder(bytes.NewReader(b))
	d.UseNumber()

	if err = d.Decode(&m); err != nil {
		return nil, err
	}

	return m, nil
}
