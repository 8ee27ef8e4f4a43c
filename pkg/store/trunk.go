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

package store

import (
	"context"
	"fmt"
	"sort"

	"github.com/vidyalaya/cms/internal/errors"
	"github.com/vidyalaya/cms/pkg/content"
	"github.com/vidyalaya/cms/pkg/repository"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"k8s.io/klog/v2"
)

var tracer = otel.Tracer("store")

// maxTrunkAttempts bounds retries of unconditional writes racing with other
// trunk updates.
const maxTrunkAttempts = 3

// TrunkStore reads and writes published documents on the host's trunk.
// Writes commit straight onto the trunk and move it with a
// compare-and-swap update.
type TrunkStore struct {
	host  repository.Host
	trunk string
	dir   string
}

var _ Store = &TrunkStore{}

func NewTrunkStore(host repository.Host, trunk, dir string) *TrunkStore {
	return &TrunkStore{host: host, trunk: trunk, dir: dir}
}

// Dir is the repository directory holding the documents.
func (s *TrunkStore) Dir() string {
	return s.dir
}

func hostError(op errors.Op, key content.Key, err error) error {
	return errors.E(op, errors.Key(key), errors.StorageUnavailable, err)
}

// read returns the stored bytes at rev, nil if the document is absent.
func (s *TrunkStore) read(ctx context.Context, op errors.Op, rev string, key content.Key) ([]byte, error) {
	data, err := s.host.ReadFile(ctx, rev, key.Path(s.dir))
	if err != nil {
		if errors.IsError(err, repository.ErrFileNotFound) {
			return nil, nil
		}
		return nil, hostError(op, key, err)
	}
	return data, nil
}

func (s *TrunkStore) Get(ctx context.Context, key content.Key) (content.Document, content.Revision, error) {
	const op errors.Op = "store.trunk.get"
	ctx, span := tracer.Start(ctx, "TrunkStore::Get", trace.WithAttributes(attribute.String("key", string(key))))
	defer span.End()

	if err := key.Validate(); err != nil {
		return nil, "", errors.E(op, err)
	}
	data, err := s.read(ctx, op, s.trunk, key)
	if err != nil {
		return nil, "", err
	}
	if data == nil {
		return nil, "", notFound(op, key)
	}
	return decode(op, key, data)
}

func (s *TrunkStore) Put(ctx context.Context, key content.Key, doc content.Document, expected content.Revision) (content.Revision, error) {
	const op errors.Op = "store.trunk.put"
	ctx, span := tracer.Start(ctx, "TrunkStore::Put", trace.WithAttributes(attribute.String("key", string(key))))
	defer span.End()

	if err := key.Validate(); err != nil {
		return "", errors.E(op, err)
	}
	data, rev, err := encode(op, key, doc)
	if err != nil {
		return "", err
	}
	message := fmt.Sprintf("Update %s", key.FileName())
	if err := s.commit(ctx, op, key, writeCond{expected: expected}, repository.CommitRequest{
		Path:     key.Path(s.dir),
		Contents: data,
		Message:  message,
	}); err != nil {
		return "", err
	}
	return rev, nil
}

// Create commits doc onto the trunk unless the trunk tip already holds a
// document for key. The check is repeated if the trunk moves.
func (s *TrunkStore) Create(ctx context.Context, key content.Key, doc content.Document) (content.Revision, error) {
	const op errors.Op = "store.trunk.create"
	ctx, span := tracer.Start(ctx, "TrunkStore::Create", trace.WithAttributes(attribute.String("key", string(key))))
	defer span.End()

	if err := key.Validate(); err != nil {
		return "", errors.E(op, err)
	}
	data, rev, err := encode(op, key, doc)
	if err != nil {
		return "", err
	}
	if err := s.commit(ctx, op, key, writeCond{absent: true}, repository.CommitRequest{
		Path:     key.Path(s.dir),
		Contents: data,
		Message:  fmt.Sprintf("Create %s", key.FileName()),
	}); err != nil {
		return "", err
	}
	return rev, nil
}

func (s *TrunkStore) Delete(ctx context.Context, key content.Key) error {
	const op errors.Op = "store.trunk.delete"
	ctx, span := tracer.Start(ctx, "TrunkStore::Delete", trace.WithAttributes(attribute.String("key", string(key))))
	defer span.End()

	if err := key.Validate(); err != nil {
		return errors.E(op, err)
	}
	tip, err := s.host.ResolveBranch(ctx, s.trunk)
	if err != nil {
		return hostError(op, key, err)
	}
	data, err := s.read(ctx, op, tip.Commit, key)
	if err != nil || data == nil {
		return err
	}
	return s.commit(ctx, op, key, writeCond{}, repository.CommitRequest{
		Path:    key.Path(s.dir),
		Remove:  true,
		Message: fmt.Sprintf("Delete %s", key.FileName()),
	})
}

// writeCond is what a write requires of the document at the trunk tip.
type writeCond struct {
	// expected must match the current revision when set.
	expected content.Revision
	// absent requires that no document exists.
	absent bool
}

// commit applies req on the trunk tip. A write with an expected revision
// fails with Conflict if the document or the trunk moved. Other writes are
// retried on a moved trunk, re-checking cond each time.
func (s *TrunkStore) commit(ctx context.Context, op errors.Op, key content.Key, cond writeCond, req repository.CommitRequest) error {
	for attempt := 1; ; attempt++ {
		tip, err := s.host.ResolveBranch(ctx, s.trunk)
		if err != nil {
			return hostError(op, key, err)
		}
		if cond.expected != "" || cond.absent {
			current, err := s.read(ctx, op, tip.Commit, key)
			if err != nil {
				return err
			}
			if cond.absent && current != nil {
				return exists(op, key)
			}
			var currentRev content.Revision
			if current != nil {
				currentRev = content.RevisionOf(current)
			}
			if cond.expected != "" && currentRev != cond.expected {
				return conflict(op, key, cond.expected, currentRev)
			}
		}

		req.Parent = tip.Commit
		commit, err := s.host.CommitFile(ctx, req)
		if err != nil {
			return hostError(op, key, err)
		}
		err = s.host.UpdateBranch(ctx, s.trunk, commit, tip.Commit)
		switch {
		case err == nil:
			klog.Infof("committed %s to %s at %s", req.Path, s.trunk, commit)
			return nil
		case !errors.IsError(err, repository.ErrStaleReference):
			return hostError(op, key, err)
		case cond.expected != "":
			return errors.E(op, errors.Key(key), errors.Conflict, err)
		case attempt >= maxTrunkAttempts:
			return hostError(op, key, err)
		}
		klog.Warningf("trunk %s moved while writing %s, retrying (attempt %d)", s.trunk, key, attempt)
	}
}

func (s *TrunkStore) List(ctx context.Context) ([]content.Key, error) {
	const op errors.Op = "store.trunk.list"
	ctx, span := tracer.Start(ctx, "TrunkStore::List")
	defer span.End()

	files, err := s.host.ListFiles(ctx, s.trunk, s.dir)
	if err != nil {
		return nil, errors.E(op, errors.StorageUnavailable, err)
	}
	var keys []content.Key
	for _, f := range files {
		if k, ok := content.KeyFromPath(s.dir, f); ok {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys, nil
}
