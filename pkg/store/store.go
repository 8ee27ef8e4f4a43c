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

// Package store persists Content Documents keyed by content.Key.
//
// Every implementation returns the revision of the stored encoding and
// honors the expected revision on writes: an empty expectation writes
// unconditionally, any other value must match the stored revision or the
// write fails with a Conflict error. A document that was never stored has
// the empty revision.
package store

import (
	"context"

	"github.com/vidyalaya/cms/internal/errors"
	"github.com/vidyalaya/cms/pkg/content"
)

// Store is a keyed collection of Content Documents.
type Store interface {
	// Get returns the document and its revision, or a NotFound error.
	Get(ctx context.Context, key content.Key) (content.Document, content.Revision, error)

	// Put stores doc if the current revision matches expected and returns
	// the new revision.
	Put(ctx context.Context, key content.Key, doc content.Document, expected content.Revision) (content.Revision, error)

	// Create stores doc only if no document exists for key. An existing
	// document fails the write with a Conflict error.
	Create(ctx context.Context, key content.Key, doc content.Document) (content.Revision, error)

	// Delete removes the document. Deleting a missing document is not an
	// error.
	Delete(ctx context.Context, key content.Key) error

	// List returns the keys of all stored documents, sorted.
	List(ctx context.Context) ([]content.Key, error)
}

func notFound(op errors.Op, key content.Key) error {
	return errors.E(op, errors.Key(key), errors.NotFound, "document does not exist")
}

func exists(op errors.Op, key content.Key) error {
	return errors.E(op, errors.Key(key), errors.Conflict, "document already exists")
}

func conflict(op errors.Op, key content.Key, expected, current content.Revision) error {
	if current == "" {
		return errors.E(op, errors.Key(key), errors.Conflict, "document has not been stored yet")
	}
	return errors.E(op, errors.Key(key), errors.Conflict,
		"stale revision "+string(expected)+", current revision is "+string(current))
}

// decode parses stored bytes, returning the document and the revision of
// the stored form.
func decode(op errors.Op, key content.Key, data []byte) (content.Document, content.Revision, error) {
	doc, err := content.Decode(data)
	if err != nil {
		return nil, "", errors.E(op, errors.Key(key), err)
	}
	return doc, content.RevisionOf(data), nil
}

func encode(op errors.Op, key content.Key, doc content.Document) ([]byte, content.Revision, error) {
	data, err := content.Encode(doc)
	if err != nil {
		return nil, "", errors.E(op, errors.Key(key), errors.Validation, err)
	}
	return data, content.RevisionOf(data), nil
}
