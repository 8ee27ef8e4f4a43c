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
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/vidyalaya/cms/internal/errors"
)

// Document is an arbitrary JSON object. No schema is enforced beyond it
// being an object.
type Document map[string]interface{}

// Revision is an opaque token identifying one stored version of a document.
// The empty revision means "not stored yet" when read and "unconditional"
// when written.
type Revision string

// Encode returns the persisted form: UTF-8 JSON, 2-space indent, trailing
// newline.
func Encode(doc Document) ([]byte, error) {
	if doc == nil {
		doc = Document{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("cannot encode document: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode parses a persisted document. Anything other than a JSON object is
// reported as ContentCorrupt; callers never repair it.
func Decode(data []byte) (Document, error) {
	const op errors.Op = "content.decode"
	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, errors.E(op, errors.ContentCorrupt, err)
	}
	m, ok := v.(map[string]interface{})
	if !ok {
		return nil, errors.E(op, errors.ContentCorrupt, fmt.Sprintf("expected a JSON object, found %T", v))
	}
	return Document(m), nil
}

// FromValue converts a decoded JSON value into a Document, reporting a
// ValidationError for the named field if it is not an object.
func FromValue(field string, v interface{}) (Document, error) {
	if v == nil {
		return nil, errors.MissingField(field)
	}
	m, ok := v.(map[string]interface{})
	if !ok {
		return nil, errors.InvalidField(field, fmt.Sprintf("%T", v), "must be a JSON object")
	}
	return Document(m), nil
}

// RevisionOf returns the revision token of an encoded document.
func RevisionOf(data []byte) Revision {
	sum := sha256.Sum256(data)
	return Revision(hex.EncodeToString(sum[:]))
}

// Revision encodes the document and returns its revision token.
func (d Document) Revision() (Revision, error) {
	b, err := Encode(d)
	if err != nil {
		return "", err
	}
	return RevisionOf(b), nil
}

// Clone returns a deep copy of the document.
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	return Document(cloneMap(d))
}

func cloneMap(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		return cloneMap(t)
	case Document:
		return cloneMap(t)
	case []interface{}:
		out := make([]interface{}, len(t))
		for i := range t {
			out[i] = cloneValue(t[i])
		}
		return out
	default:
		return v
	}
}
