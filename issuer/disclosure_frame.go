/*
Copyright Gen Digital Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package issuer

import (
	"fmt"
	"strconv"

	"github.com/pkg/errors"
	"golang.org/x/exp/slices"

	"github.com/hyperledger/aries-sdjwt-go/common"
	jsonutil "github.com/hyperledger/aries-sdjwt-go/util/json"
	"github.com/hyperledger/aries-sdjwt-go/util/maphelpers"
)

// frameApplier threads the disclosure list through the depth-first frame traversal.
type frameApplier struct {
	opts        *newOpts
	hasher      *common.HasherAndAlgorithm
	disclosures []*common.DisclosureWithDigest
}

/*
ApplyDisclosureFrame makes the claims selected by frame selectively disclosable.

It returns a new payload where every selected object member is replaced by its digest in the
sorted _sd array of its level and every selected array element is replaced by {"...": digest},
together with the disclosures in depth-first frame order. The input payload is not modified.

	payload: {"given_name": "John", "nationalities": ["DE", "US"]}
	frame:   {"given_name": true, "nationalities": [false, true], "__decoyCount": 1}
	result:  {"_sd": ["<digest>", "<decoy>"], "nationalities": ["DE", {"...": "<digest>"}]}
*/
func ApplyDisclosureFrame(
	payload map[string]interface{},
	frame *common.Object,
	opts ...NewOpt,
) (map[string]interface{}, []*common.DisclosureWithDigest, error) {
	nOpts := defaultNewOpts()

	for _, opt := range opts {
		opt(nOpts)
	}

	hasher, err := nOpts.hasherAndAlgorithm()
	if err != nil {
		return nil, nil, err
	}

	if common.KeyExistsInMap(common.SDKey, payload) || common.KeyExistsInMap(common.ArrayElementDigestKey, payload) {
		return nil, nil, errors.Wrapf(common.ErrInvalidValue,
			"keys '%s' and '%s' cannot be present in the claims", common.SDKey, common.ArrayElementDigestKey)
	}

	if frame == nil {
		frame = &common.Object{}
	}

	a := &frameApplier{opts: nOpts, hasher: hasher}

	framed, err := a.applyObject(payload, frame, "")
	if err != nil {
		return nil, nil, err
	}

	logger.Debugf("applied disclosure frame: %d disclosures created", len(a.disclosures))

	return framed, a.disclosures, nil
}

// CreateDecoys creates count decoy digests. A decoy is the digest of [salt, null] for a fresh salt,
// so it has the same length and alphabet as the digest of a real disclosure.
func CreateDecoys(count int, saltFnc func() (string, error), ha *common.HasherAndAlgorithm) ([]string, error) {
	if count < 0 {
		return nil, errors.Wrapf(common.ErrInvalidCount, "decoy count %d is negative", count)
	}

	if count > common.MaxDecoyCount {
		return nil, errors.Wrapf(common.ErrInvalidCount, "decoy count %d exceeds %d", count, common.MaxDecoyCount)
	}

	if count > 0 && saltFnc == nil {
		return nil, errors.New("salt function is not defined")
	}

	decoys := make([]string, 0, count)

	for i := 0; i < count; i++ {
		salt, err := saltFnc()
		if err != nil {
			return nil, fmt.Errorf("generate decoy salt: %w", err)
		}

		d, err := common.NewDisclosure(salt, nil)
		if err != nil {
			return nil, err
		}

		digest, err := common.Digest(d, ha)
		if err != nil {
			return nil, fmt.Errorf("hash decoy: %w", err)
		}

		decoys = append(decoys, digest)
	}

	return decoys, nil
}

func (a *frameApplier) applyObject(
	payload map[string]interface{},
	frame *common.Object,
	path string,
) (map[string]interface{}, error) {
	framed := maphelpers.CopyMap(payload)
	if framed == nil {
		framed = map[string]interface{}{}
	}

	var sd []string

	for _, entry := range frame.Entries {
		entryPath := joinPath(path, entry.Key)

		switch f := entry.Frame.(type) {
		case common.Reveal:
			if !f {
				continue
			}

			value, ok := framed[entry.Key]
			if !ok {
				return nil, missingClaimErr(entryPath, payload)
			}

			digest, err := a.disclose(value, entry.Key, true)
			if err != nil {
				return nil, err
			}

			sd = insertSorted(sd, digest)

			delete(framed, entry.Key)
		case *common.Object:
			value, ok := framed[entry.Key]
			if !ok {
				return nil, missingClaimErr(entryPath, payload)
			}

			obj, ok := value.(map[string]interface{})
			if !ok {
				return nil, errors.Wrapf(common.ErrTypeMismatch, "'%s' must be an object, got %T", entryPath, value)
			}

			subFramed, err := a.applyObject(obj, f, entryPath)
			if err != nil {
				return nil, err
			}

			if !f.Recursive {
				framed[entry.Key] = subFramed

				continue
			}

			digest, err := a.disclose(subFramed, entry.Key, true)
			if err != nil {
				return nil, err
			}

			sd = insertSorted(sd, digest)

			delete(framed, entry.Key)
		case common.Sequence:
			value, ok := framed[entry.Key]
			if !ok {
				return nil, missingClaimErr(entryPath, payload)
			}

			arr, ok := value.([]interface{})
			if !ok {
				return nil, errors.Wrapf(common.ErrTypeMismatch, "'%s' must be an array, got %T", entryPath, value)
			}

			subFramed, err := a.applySequence(arr, f, entryPath)
			if err != nil {
				return nil, err
			}

			framed[entry.Key] = subFramed
		default:
			return nil, errors.Wrapf(common.ErrInvalidFrameShape, "'%s' has unsupported frame type %T", entryPath, f)
		}
	}

	decoys, err := CreateDecoys(a.decoyCount(frame), a.opts.getSalt, a.hasher)
	if err != nil {
		return nil, err
	}

	for _, decoy := range decoys {
		sd = insertSorted(sd, decoy)
	}

	if len(sd) > 0 {
		framed[common.SDKey] = sd
	}

	return framed, nil
}

func (a *frameApplier) applySequence(arr []interface{}, frame common.Sequence, path string) ([]interface{}, error) {
	if len(frame) > len(arr) {
		return nil, errors.Wrapf(common.ErrFrameLengthMismatch,
			"'%s' frame has %d elements, payload has %d", path, len(frame), len(arr))
	}

	framed := make([]interface{}, len(arr))

	for i, element := range arr {
		if i >= len(frame) || !frame[i] {
			framed[i] = maphelpers.CopyValue(element)

			continue
		}

		digest, err := a.disclose(element, "", false)
		if err != nil {
			return nil, errors.WithMessagef(err, "'%s'", joinPath(path, strconv.Itoa(i)))
		}

		framed[i] = map[string]interface{}{common.ArrayElementDigestKey: digest}
	}

	return framed, nil
}

// disclose creates disclosure for value and returns its digest. Array elements are not keyed.
func (a *frameApplier) disclose(value interface{}, key string, keyed bool) (string, error) {
	salt, err := a.opts.getSalt()
	if err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	dOpts := []common.DisclosureOpt{common.WithMarshaller(a.opts.jsonMarshal)}
	if keyed {
		dOpts = append(dOpts, common.WithKey(key))
	}

	d, err := common.NewDisclosure(salt, value, dOpts...)
	if err != nil {
		return "", err
	}

	dwd, err := d.WithCalculateDigest(a.hasher, false)
	if err != nil {
		return "", err
	}

	a.disclosures = append(a.disclosures, dwd)

	return dwd.Digest, nil
}

func (a *frameApplier) decoyCount(frame *common.Object) int {
	if !a.opts.addDecoyDigests {
		return frame.DecoyCount
	}

	count := frame.DecoyCount + mr.Intn(decoyMaxElements-decoyMinElements+1) + decoyMinElements
	if frame.DecoyCount <= common.MaxDecoyCount && count > common.MaxDecoyCount {
		count = common.MaxDecoyCount
	}

	return count
}

func insertSorted(sd []string, digest string) []string {
	i, _ := slices.BinarySearch(sd, digest)

	return slices.Insert(sd, i, digest)
}

func missingClaimErr(path string, payload map[string]interface{}) error {
	payloadJSON, err := jsonutil.MarshalCompact(payload)
	if err != nil {
		payloadJSON = []byte(fmt.Sprintf("%v", payload))
	}

	return errors.Wrapf(common.ErrMissingClaim, "claim '%s' not found in payload %s", path, payloadJSON)
}

func joinPath(path, key string) string {
	if path == "" {
		return key
	}

	return path + "." + key
}
