// Copyright 2026 The cms Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package content

import (
	"fmt"

	"github.com/vidyalaya/cms/internal/errors"
)

// MergeDepth selects how a partial section update is folded into the
// existing section.
type MergeDepth string

const (
	// Shallow replaces the section's top-level keys wholesale; nested
	// objects supplied in the update replace the stored ones.
	Shallow MergeDepth = "shallow"
	// Deep recurses into nested objects present on both sides.
	Deep MergeDepth = "deep"
)

// ParseMergeDepth accepts "", "shallow" and "deep". The empty string is
// returned as is so callers can fall back to a per-key default.
func ParseMergeDepth(s string) (MergeDepth, error) {
	switch d := MergeDepth(s); d {
	case "", Shallow, Deep:
		return d, nil
	default:
		return "", errors.InvalidField("merge", s, fmt.Sprintf("must be %q or %q", Shallow, Deep))
	}
}

// MergeSection returns a copy of doc whose named section has data merged
// into it. A missing or non-object section starts out empty. doc is not
// modified.
func MergeSection(doc Document, section string, data map[string]interface{}, depth MergeDepth) (Document, error) {
	if section == "" {
		return nil, errors.MissingField("section")
	}
	if data == nil {
		return nil, errors.MissingField("data")
	}

	out := doc.Clone()
	if out == nil {
		out = Document{}
	}

	current, _ := out[section].(map[string]interface{})
	if current == nil {
		current = map[string]interface{}{}
	}

	switch depth {
	case Deep:
		out[section] = deepMerge(current, data)
	case Shallow, "":
		for k, v := range data {
			current[k] = cloneValue(v)
		}
		out[section] = current
	default:
		return nil, errors.InvalidField("merge", string(depth), "unknown merge depth")
	}
	return out, nil
}

// deepMerge merges src into dst recursively and returns dst. Arrays and
// scalars in src replace the value in dst.
func deepMerge(dst, src map[string]interface{}) map[string]interface{} {
	for k, v := range src {
		sv, srcIsMap := v.(map[string]interface{})
		dv, dstIsMap := dst[k].(map[string]interface{})
		if srcIsMap && dstIsMap {
			dst[k] = deepMerge(dv, sv)
			continue
		}
		dst[k] = cloneValue(v)
	}
	return dst
}
