/*
Copyright Gen Digital Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package holder

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/PaesslerAG/jsonpath"
	"github.com/pkg/errors"

	"github.com/hyperledger/aries-sdjwt-go/common"
)

// digestRef is a digest referenced from the signed payload (or from a disclosed value) that matches a disclosure.
type digestRef struct {
	digest string
	// path of the disclosed claim in the disclosed (pretty) payload.
	path []string
	// parent is the digest of the disclosure whose value holds this reference, empty at the SD-JWT level.
	parent string
}

// dependencyGraph links every disclosed claim path to its disclosure and every disclosure to its parent.
type dependencyGraph struct {
	index  map[string]*common.DisclosureWithDigest
	refs   []digestRef
	parent map[string]string
}

/*
GetDisclosuresForPresentationFrame returns the disclosures a presentation must carry
to disclose the claims selected by frame.

The frame is applied to prettyPayload, the claims disclosed from signedPayload with all disclosures.
For every selected claim the result contains the disclosures of the claim and of everything nested in it,
plus the disclosure of its closest selectively disclosable ancestor. Disclosures of enclosing
disclosed values are then added transitively, so the verifier can reach each selected claim.
Selected claims that are not selectively disclosable need nothing.

The result keeps the order of disclosures.
*/
func GetDisclosuresForPresentationFrame(
	signedPayload map[string]interface{},
	frame *common.Object,
	prettyPayload map[string]interface{},
	disclosures []*common.DisclosureWithDigest,
) ([]*common.DisclosureWithDigest, error) {
	index, err := common.IndexDisclosures(disclosures)
	if err != nil {
		return nil, err
	}

	g := &dependencyGraph{index: index, parent: make(map[string]string)}

	if err = g.walkObject(signedPayload, nil, "", make(map[string]bool)); err != nil {
		return nil, err
	}

	if len(g.refs) == 0 {
		digests, err := common.GetDisclosureDigests(signedPayload)
		if err != nil {
			return nil, err
		}

		if len(digests) == 0 && len(disclosures) > 0 {
			return nil, errors.Wrapf(common.ErrInconsistentState,
				"%d disclosures supplied but the SD-JWT has no digests", len(disclosures))
		}

		// nothing is selectively disclosable through the supplied disclosures
		return nil, nil
	}

	if frame == nil {
		return nil, nil
	}

	required := make(map[string]bool)

	for _, leaf := range frameLeaves(frame, nil) {
		if !pathExists(prettyPayload, leaf) {
			return nil, errors.Wrapf(common.ErrPathNotFound, "'%s'", strings.Join(leaf, "."))
		}

		for _, digest := range g.digestsFor(leaf) {
			required[digest] = true
		}
	}

	g.closeOverParents(required)

	var selected []*common.DisclosureWithDigest

	for _, d := range disclosures {
		if required[d.Digest] {
			selected = append(selected, d)

			// duplicates of one disclosure are emitted once
			delete(required, d.Digest)
		}
	}

	logger.Debugf("presentation frame selected %d of %d disclosures", len(selected), len(disclosures))

	return selected, nil
}

func (g *dependencyGraph) walkObject(obj map[string]interface{}, path []string, parent string,
	visiting map[string]bool) error {
	for key, value := range obj {
		switch key {
		case common.SDAlgorithmKey:
			continue
		case common.SDKey:
			sd, ok := value.([]interface{})
			if !ok {
				sdStrings, isStrings := value.([]string)
				if !isStrings {
					return errors.Wrapf(common.ErrInvalidValue, "'%s' must be an array of digests", common.SDKey)
				}

				for _, s := range sdStrings {
					sd = append(sd, s)
				}
			}

			for _, entry := range sd {
				digest, ok := entry.(string)
				if !ok {
					return errors.Wrapf(common.ErrInvalidValue, "'%s' entry type[%T] is not a string", common.SDKey, entry)
				}

				d, found := g.index[digest]
				if !found || !d.HasKey() {
					continue
				}

				name, _ := d.Key()

				if err := g.addRef(d, appendPath(path, name), parent, visiting); err != nil {
					return err
				}
			}
		default:
			if err := g.walkValue(value, appendPath(path, key), parent, visiting); err != nil {
				return err
			}
		}
	}

	return nil
}

func (g *dependencyGraph) walkValue(value interface{}, path []string, parent string, visiting map[string]bool) error {
	switch v := value.(type) {
	case map[string]interface{}:
		return g.walkObject(v, path, parent, visiting)
	case []interface{}:
		for i, element := range v {
			elementPath := appendPath(path, strconv.Itoa(i))

			m, isMap := element.(map[string]interface{})
			if !isMap {
				if err := g.walkValue(element, elementPath, parent, visiting); err != nil {
					return err
				}

				continue
			}

			digest, isPlaceholder := common.ArrayElementDigest(m)
			if !isPlaceholder {
				if err := g.walkObject(m, elementPath, parent, visiting); err != nil {
					return err
				}

				continue
			}

			d, found := g.index[digest]
			if !found || d.HasKey() {
				continue
			}

			if err := g.addRef(d, elementPath, parent, visiting); err != nil {
				return err
			}
		}
	}

	return nil
}

func (g *dependencyGraph) addRef(d *common.DisclosureWithDigest, path []string, parent string,
	visiting map[string]bool) error {
	if visiting[d.Digest] {
		return errors.Wrapf(common.ErrInconsistentState, "disclosure '%s' references itself", d.Digest)
	}

	g.refs = append(g.refs, digestRef{digest: d.Digest, path: path, parent: parent})

	if parent != "" {
		g.parent[d.Digest] = parent
	}

	visiting[d.Digest] = true
	defer delete(visiting, d.Digest)

	return g.walkValue(d.Value(), path, d.Digest, visiting)
}

// digestsFor returns digests of disclosures at or below leaf and of the closest disclosed ancestor of leaf.
func (g *dependencyGraph) digestsFor(leaf []string) []string {
	var (
		digests     []string
		closest     string
		closestSize int
	)

	for _, ref := range g.refs {
		if hasPathPrefix(ref.path, leaf) {
			digests = append(digests, ref.digest)

			continue
		}

		if hasPathPrefix(leaf, ref.path) && len(ref.path) > closestSize {
			closest, closestSize = ref.digest, len(ref.path)
		}
	}

	if closest != "" {
		digests = append(digests, closest)
	}

	return digests
}

func (g *dependencyGraph) closeOverParents(required map[string]bool) {
	queue := make([]string, 0, len(required))
	for digest := range required {
		queue = append(queue, digest)
	}

	for len(queue) > 0 {
		digest := queue[0]
		queue = queue[1:]

		parent, ok := g.parent[digest]
		if !ok || required[parent] {
			continue
		}

		required[parent] = true
		queue = append(queue, parent)
	}
}

// frameLeaves returns paths of the true leaves of the frame.
func frameLeaves(frame *common.Object, path []string) [][]string {
	var leaves [][]string

	for _, entry := range frame.Entries {
		entryPath := appendPath(path, entry.Key)

		switch f := entry.Frame.(type) {
		case common.Reveal:
			if f {
				leaves = append(leaves, entryPath)
			}
		case *common.Object:
			leaves = append(leaves, frameLeaves(f, entryPath)...)
		case common.Sequence:
			for i, selected := range f {
				if selected {
					leaves = append(leaves, appendPath(entryPath, strconv.Itoa(i)))
				}
			}
		}
	}

	return leaves
}

func pathExists(payload map[string]interface{}, path []string) bool {
	_, err := jsonpath.Get(toJSONPath(path), payload)

	return err == nil
}

// toJSONPath builds a bracket-notation JSONPath; canonical decimal segments select array elements.
func toJSONPath(path []string) string {
	var sb strings.Builder

	sb.WriteString("$")

	for _, segment := range path {
		if i, err := strconv.Atoi(segment); err == nil && i >= 0 && strconv.Itoa(i) == segment {
			fmt.Fprintf(&sb, "[%d]", i)

			continue
		}

		fmt.Fprintf(&sb, "[%s]", strconv.Quote(segment))
	}

	return sb.String()
}

func hasPathPrefix(path, prefix []string) bool {
	if len(prefix) > len(path) {
		return false
	}

	for i := range prefix {
		if path[i] != prefix[i] {
			return false
		}
	}

	return true
}

func appendPath(path []string, segment string) []string {
	p := make([]string, len(path), len(path)+1)
	copy(p, path)

	return append(p, segment)
}
