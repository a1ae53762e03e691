/*
Copyright Gen Digital Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package common

import (
	"math"

	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
)

const (
	// DecoyCountKey is the frame key holding the number of decoy digests for an object level.
	DecoyCountKey = "__decoyCount"

	// RecursiveKey is the frame key asking to disclose the framed object itself.
	RecursiveKey = "__recursive"

	// MaxDecoyCount bounds the number of decoy digests of one object level.
	MaxDecoyCount = 10000
)

// Frame is a node of a disclosure or presentation frame: Reveal, Sequence or *Object.
type Frame interface {
	isFrame()
}

// Reveal marks a claim: true makes it selectively disclosable (or disclosed in a presentation).
type Reveal bool

// Sequence marks array elements by position. Missing trailing positions are false.
type Sequence []bool

// FrameEntry is a named child of an Object frame.
type FrameEntry struct {
	Key   string
	Frame Frame
}

// Object frames the members of a JSON object. Entries are processed in order.
type Object struct {
	Entries []FrameEntry

	// DecoyCount is the number of decoy digests added to the object level _sd array.
	DecoyCount int

	// Recursive makes the framed object itself selectively disclosable.
	Recursive bool
}

func (Reveal) isFrame()   {}
func (Sequence) isFrame() {}
func (*Object) isFrame()  {}

// NewObject creates Object frame from entries.
func NewObject(entries ...FrameEntry) *Object {
	return &Object{Entries: entries}
}

// Get returns child frame by key.
func (o *Object) Get(key string) (Frame, bool) {
	for _, e := range o.Entries {
		if e.Key == key {
			return e.Frame, true
		}
	}

	return nil, false
}

// ParseDisclosureFrame parses JSON disclosure frame, e.g. {"address": {"country": true}, "nationalities": [true], "__decoyCount": 2}.
func ParseDisclosureFrame(data []byte) (*Object, error) {
	root, err := parseFrameRoot(data, ErrInvalidFrameShape)
	if err != nil {
		return nil, err
	}

	return parseDisclosureObject(root, "")
}

// ParsePresentationFrame parses JSON presentation frame. Leaves must be booleans; reserved keys are ignored.
func ParsePresentationFrame(data []byte) (*Object, error) {
	root, err := parseFrameRoot(data, ErrInvalidFrameLeaf)
	if err != nil {
		return nil, err
	}

	return parsePresentationObject(root, "")
}

func parseFrameRoot(data []byte, shapeErr error) (gjson.Result, error) {
	if !gjson.ValidBytes(data) {
		return gjson.Result{}, errors.Wrap(shapeErr, "frame is not valid JSON")
	}

	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return gjson.Result{}, errors.Wrap(shapeErr, "frame must be a JSON object")
	}

	return root, nil
}

func parseDisclosureObject(node gjson.Result, path string) (*Object, error) {
	obj := &Object{}

	var err error

	node.ForEach(func(key, value gjson.Result) bool {
		childPath := joinPath(path, key.String())

		switch key.String() {
		case DecoyCountKey:
			obj.DecoyCount, err = parseDecoyCount(value, childPath)
		case RecursiveKey:
			if !value.IsBool() {
				err = errors.Wrapf(ErrInvalidFrameShape, "'%s' must be a boolean", childPath)

				break
			}

			obj.Recursive = value.Bool()
		default:
			var child Frame

			child, err = parseDisclosureNode(value, childPath)
			if err == nil {
				obj.Entries = append(obj.Entries, FrameEntry{Key: key.String(), Frame: child})
			}
		}

		return err == nil
	})

	if err != nil {
		return nil, err
	}

	return obj, nil
}

func parseDisclosureNode(value gjson.Result, path string) (Frame, error) {
	switch {
	case value.IsBool():
		return Reveal(value.Bool()), nil
	case value.IsObject():
		return parseDisclosureObject(value, path)
	case value.IsArray():
		return parseSequence(value, path, ErrInvalidFrameShape)
	default:
		return nil, errors.Wrapf(ErrInvalidFrameShape,
			"'%s' must be a boolean, an object or an array of booleans, got %s", path, value.Raw)
	}
}

func parsePresentationObject(node gjson.Result, path string) (*Object, error) {
	obj := &Object{}

	var err error

	node.ForEach(func(key, value gjson.Result) bool {
		if key.String() == DecoyCountKey || key.String() == RecursiveKey {
			return true
		}

		childPath := joinPath(path, key.String())

		var child Frame

		switch {
		case value.IsBool():
			child = Reveal(value.Bool())
		case value.IsObject():
			child, err = parsePresentationObject(value, childPath)
		case value.IsArray():
			child, err = parseSequence(value, childPath, ErrInvalidFrameLeaf)
		default:
			err = errors.Wrapf(ErrInvalidFrameLeaf, "'%s' must be a boolean, got %s", childPath, value.Raw)
		}

		if err == nil {
			obj.Entries = append(obj.Entries, FrameEntry{Key: key.String(), Frame: child})
		}

		return err == nil
	})

	if err != nil {
		return nil, err
	}

	return obj, nil
}

func parseSequence(value gjson.Result, path string, shapeErr error) (Sequence, error) {
	elements := value.Array()
	seq := make(Sequence, 0, len(elements))

	for i, e := range elements {
		if !e.IsBool() {
			return nil, errors.Wrapf(shapeErr, "'%s[%d]' must be a boolean, got %s", path, i, e.Raw)
		}

		seq = append(seq, e.Bool())
	}

	return seq, nil
}

func parseDecoyCount(value gjson.Result, path string) (int, error) {
	if value.Type != gjson.Number {
		return 0, errors.Wrapf(ErrInvalidCount, "'%s' must be a number, got %s", path, value.Raw)
	}

	n := value.Num
	if math.IsNaN(n) || math.IsInf(n, 0) || n < 0 || n != math.Trunc(n) {
		return 0, errors.Wrapf(ErrInvalidCount, "'%s' must be a non-negative integer, got %s", path, value.Raw)
	}

	if n > MaxDecoyCount {
		return 0, errors.Wrapf(ErrInvalidCount, "'%s' must not exceed %d, got %s", path, MaxDecoyCount, value.Raw)
	}

	return int(n), nil
}

func joinPath(path, key string) string {
	if path == "" {
		return key
	}

	return path + "." + key
}
