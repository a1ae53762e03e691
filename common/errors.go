/*
Copyright Gen Digital Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package common

import "github.com/pkg/errors"

// Errors returned by the disclosure engine. Callers match them with errors.Is;
// every returned error wraps exactly one of them with the failing claim or path.
var (
	// ErrInvalidValue is returned when a disclosure value is not a finite JSON value.
	ErrInvalidValue = errors.New("invalid disclosure value")

	// ErrMissingClaim is returned when a disclosure frame names a claim absent from the payload.
	ErrMissingClaim = errors.New("claim is missing in payload")

	// ErrTypeMismatch is returned when a frame node does not match the payload value type.
	ErrTypeMismatch = errors.New("frame does not match payload type")

	// ErrFrameLengthMismatch is returned when a sequence frame is longer than the payload array.
	ErrFrameLengthMismatch = errors.New("frame array is longer than payload array")

	// ErrInvalidFrameShape is returned for disclosure frame nodes that are not a boolean, object or boolean array.
	ErrInvalidFrameShape = errors.New("invalid disclosure frame shape")

	// ErrInvalidFrameLeaf is returned for presentation frame leaves that are not booleans.
	ErrInvalidFrameLeaf = errors.New("invalid presentation frame leaf")

	// ErrPathNotFound is returned when a presentation frame path is absent from the disclosed payload.
	ErrPathNotFound = errors.New("path not found in payload")

	// ErrInconsistentState is returned for disclosures supplied with a payload that references none.
	ErrInconsistentState = errors.New("inconsistent state")

	// ErrInvalidCount is returned for a negative or non-finite decoy count.
	ErrInvalidCount = errors.New("invalid decoy count")

	// ErrAmbiguousDigest is returned when one digest maps to different disclosures.
	ErrAmbiguousDigest = errors.New("ambiguous digest")

	// ErrInvalidDisclosure is returned for malformed or misplaced disclosures.
	ErrInvalidDisclosure = errors.New("invalid disclosure")
)
