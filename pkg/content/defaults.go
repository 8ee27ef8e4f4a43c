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
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"path"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var builtinDefaults []byte

// DefaultEntry describes the default document for one key or key pattern.
type DefaultEntry struct {
	Key     string                 `yaml:"key,omitempty"`
	Pattern string                 `yaml:"pattern,omitempty"`
	Merge   MergeDepth             `yaml:"merge,omitempty"`
	Content map[string]interface{} `yaml:"content"`
}

type defaultsFile struct {
	Defaults []DefaultEntry `yaml:"defaults"`
}

// Defaults maps keys to the documents served before anything was stored.
type Defaults struct {
	exact    map[string]DefaultEntry
	patterns []DefaultEntry
}

// BuiltinDefaults returns the defaults compiled into the binary.
func BuiltinDefaults() *Defaults {
	d, err := LoadDefaults(bytes.NewReader(builtinDefaults))
	if err != nil {
		panic(fmt.Errorf("builtin defaults are invalid: %w", err))
	}
	return d
}

// LoadDefaults reads a defaults YAML file.
func LoadDefaults(r io.Reader) (*Defaults, error) {
	var f defaultsFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && err != io.EOF {
		return nil, fmt.Errorf("cannot parse defaults: %w", err)
	}

	d := &Defaults{exact: map[string]DefaultEntry{}}
	for i, e := range f.Defaults {
		if (e.Key == "") == (e.Pattern == "") {
			return nil, fmt.Errorf("defaults entry %d: exactly one of key or pattern is required", i)
		}
		if _, err := ParseMergeDepth(string(e.Merge)); err != nil {
			return nil, fmt.Errorf("defaults entry %d: %w", i, err)
		}
		if e.Pattern != "" {
			if _, err := path.Match(e.Pattern, ""); err != nil {
				return nil, fmt.Errorf("defaults entry %d: bad pattern %q: %w", i, e.Pattern, err)
			}
		}
		content, err := normalize(e.Content)
		if err != nil {
			return nil, fmt.Errorf("defaults entry %d: %w", i, err)
		}
		e.Content = content
		if e.Key != "" {
			d.exact[e.Key] = e
		} else {
			d.patterns = append(d.patterns, e)
		}
	}
	return d, nil
}

// Overlay returns defaults where entries of o take precedence over d.
func (d *Defaults) Overlay(o *Defaults) *Defaults {
	out := &Defaults{exact: map[string]DefaultEntry{}}
	for k, e := range d.exact {
		out.exact[k] = e
	}
	for k, e := range o.exact {
		out.exact[k] = e
	}
	out.patterns = append(out.patterns, o.patterns...)
	out.patterns = append(out.patterns, d.patterns...)
	return out
}

func (d *Defaults) lookup(key Key) (DefaultEntry, bool) {
	if e, ok := d.exact[string(key)]; ok {
		return e, true
	}
	if e, ok := d.exact[key.FileName()]; ok {
		return e, true
	}
	for _, e := range d.patterns {
		if ok, _ := path.Match(e.Pattern, string(key)); ok {
			return e, true
		}
		if ok, _ := path.Match(e.Pattern, key.FileName()); ok {
			return e, true
		}
	}
	return DefaultEntry{}, false
}

// Document returns a fresh copy of the default document for key; keys
// without a registered default get an empty object.
func (d *Defaults) Document(key Key) Document {
	e, ok := d.lookup(key)
	if !ok || e.Content == nil {
		return Document{}
	}
	return Document(cloneMap(e.Content))
}

// MergeDepth returns the merge depth registered for key, Shallow if none.
func (d *Defaults) MergeDepth(key Key) MergeDepth {
	if e, ok := d.lookup(key); ok && e.Merge != "" {
		return e.Merge
	}
	return Shallow
}

// normalize round-trips YAML-decoded content through JSON so numbers and
// nested maps have the same types a decoded document would have.
func normalize(m map[string]interface{}) (map[string]interface{}, error) {
	if m == nil {
		return map[string]interface{}{}, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("default content is not JSON compatible: %w", err)
	}
	var out map[string]interface{}
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}
