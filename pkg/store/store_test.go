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
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vidyalaya/cms/internal/errors"
	"github.com/vidyalaya/cms/pkg/content"
	"github.com/vidyalaya/cms/pkg/git"
	"github.com/vidyalaya/cms/pkg/repository"
)

func newTrunkStore(t *testing.T) (*TrunkStore, *git.Host) {
	t.Helper()
	h, err := git.Open(context.Background(), "", git.Options{MainBranchStrategy: git.CreateIfMissing})
	require.NoError(t, err)
	return NewTrunkStore(h, h.Trunk(), "content"), h
}

func newSQLStore(t *testing.T, path string) *SQLStore {
	t.Helper()
	s, err := OpenSQLStore(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func stores(t *testing.T) map[string]Store {
	trunk, _ := newTrunkStore(t)
	disk, err := NewFileStore(filepath.Join(t.TempDir(), "drafts"))
	require.NoError(t, err)
	return map[string]Store{
		"memory":     NewFileStoreFs(nil),
		"file":       disk,
		"sql-memory": newSQLStore(t, ":memory:"),
		"sql-file":   newSQLStore(t, filepath.Join(t.TempDir(), "drafts.db")),
		"trunk":      trunk,
	}
}

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			_, _, err := s.Get(ctx, "home-content.json")
			assert.True(t, errors.Is(err, errors.NotFound), "got %v", err)

			doc := content.Document{"hero": map[string]interface{}{"title": "Hello"}}
			rev, err := s.Put(ctx, "home-content.json", doc, "")
			require.NoError(t, err)
			wantRev, err := doc.Revision()
			require.NoError(t, err)
			assert.Equal(t, wantRev, rev)

			got, gotRev, err := s.Get(ctx, "home-content.json")
			require.NoError(t, err)
			assert.Equal(t, rev, gotRev)
			if diff := cmp.Diff(doc, got); diff != "" {
				t.Errorf("Get() mismatch (-want +got):\n%s", diff)
			}

			// Keys with and without the extension name the same document.
			_, aliasRev, err := s.Get(ctx, "home-content")
			require.NoError(t, err)
			assert.Equal(t, rev, aliasRev)
		})
	}
}

func TestStoreOptimisticConcurrency(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.Put(ctx, "k", content.Document{"a": 1.0}, "not-stored")
			assert.True(t, errors.Is(err, errors.Conflict), "put with revision of missing doc: got %v", err)

			first, err := s.Put(ctx, "k", content.Document{"a": 1.0}, "")
			require.NoError(t, err)
			second, err := s.Put(ctx, "k", content.Document{"a": 2.0}, first)
			require.NoError(t, err)
			assert.NotEqual(t, first, second)

			_, err = s.Put(ctx, "k", content.Document{"a": 3.0}, first)
			assert.True(t, errors.Is(err, errors.Conflict), "stale put: got %v", err)

			got, _, err := s.Get(ctx, "k")
			require.NoError(t, err)
			assert.Equal(t, 2.0, got["a"])
		})
	}
}

func TestStoreCreate(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			first := content.Document{"title": "first"}
			rev, err := s.Create(ctx, "k", first)
			require.NoError(t, err)
			wantRev, err := first.Revision()
			require.NoError(t, err)
			assert.Equal(t, wantRev, rev)

			_, err = s.Create(ctx, "k", content.Document{"title": "second"})
			assert.True(t, errors.Is(err, errors.Conflict), "got %v", err)

			got, gotRev, err := s.Get(ctx, "k")
			require.NoError(t, err)
			assert.Equal(t, rev, gotRev)
			if diff := cmp.Diff(first, got); diff != "" {
				t.Errorf("Get() after a rejected Create mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestStoreDeleteAndList(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			for _, k := range []content.Key{"b", "a.json", "c"} {
				_, err := s.Put(ctx, k, content.Document{}, "")
				require.NoError(t, err)
			}
			keys, err := s.List(ctx)
			require.NoError(t, err)
			assert.Equal(t, []content.Key{"a.json", "b.json", "c.json"}, keys)

			require.NoError(t, s.Delete(ctx, "b"))
			require.NoError(t, s.Delete(ctx, "b"), "deleting twice")
			keys, err = s.List(ctx)
			require.NoError(t, err)
			assert.Equal(t, []content.Key{"a.json", "c.json"}, keys)

			_, _, err = s.Get(ctx, "b")
			assert.True(t, errors.Is(err, errors.NotFound), "got %v", err)
		})
	}
}

func TestStoreRejectsInvalidKeys(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.Put(ctx, "../escape", content.Document{}, "")
			assert.Equal(t, errors.Validation, errors.KindOf(err), "got %v", err)
			_, _, err = s.Get(ctx, "")
			assert.Equal(t, errors.Validation, errors.KindOf(err), "got %v", err)
		})
	}
}

func TestFileStoreCorrupt(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "k.json", []byte("[1, 2]"), 0o644))
	s := NewFileStoreFs(fs)
	_, _, err := s.Get(context.Background(), "k")
	assert.True(t, errors.Is(err, errors.ContentCorrupt), "got %v", err)
}

func TestSQLStoreCorrupt(t *testing.T) {
	s := newSQLStore(t, ":memory:")
	_, err := s.db.Exec(`INSERT INTO documents (key, body, revision, updated_at) VALUES ('k.json', '{', 'x', CURRENT_TIMESTAMP)`)
	require.NoError(t, err)
	_, _, err = s.Get(context.Background(), "k")
	assert.True(t, errors.Is(err, errors.ContentCorrupt), "got %v", err)
}

func TestTrunkStoreCommitsOnTrunk(t *testing.T) {
	ctx := context.Background()
	s, h := newTrunkStore(t)

	before, err := h.ResolveBranch(ctx, "main")
	require.NoError(t, err)
	_, err = s.Put(ctx, "home-content.json", content.Document{"x": "y"}, "")
	require.NoError(t, err)
	after, err := h.ResolveBranch(ctx, "main")
	require.NoError(t, err)
	assert.NotEqual(t, before.Commit, after.Commit)

	data, err := h.ReadFile(ctx, "main", "content/home-content.json")
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"x\": \"y\"\n}\n", string(data))

	// Only the document changes; other trunk files survive.
	_, err = h.ReadFile(ctx, "main", "README.md")
	assert.NoError(t, err)
}

func TestTrunkStoreCorrupt(t *testing.T) {
	ctx := context.Background()
	s, h := newTrunkStore(t)
	tip, err := h.ResolveBranch(ctx, "main")
	require.NoError(t, err)
	commit, err := h.CommitFile(ctx, repository.CommitRequest{Parent: tip.Commit, Path: "content/k.json", Contents: []byte("\"text\""), Message: "corrupt"})
	require.NoError(t, err)
	require.NoError(t, h.UpdateBranch(ctx, "main", commit, tip.Commit))

	_, _, err = s.Get(ctx, "k")
	assert.True(t, errors.Is(err, errors.ContentCorrupt), "got %v", err)
}

type unavailableHost struct {
	repository.Host
}

func (unavailableHost) ResolveBranch(ctx context.Context, name string) (repository.Ref, error) {
	return repository.Ref{}, errors.New("connection refused")
}

func (unavailableHost) ReadFile(ctx context.Context, rev, path string) ([]byte, error) {
	return nil, errors.New("connection refused")
}

func TestTrunkStoreUnavailable(t *testing.T) {
	ctx := context.Background()
	s := NewTrunkStore(unavailableHost{}, "main", "content")
	_, _, err := s.Get(ctx, "k")
	assert.True(t, errors.Is(err, errors.StorageUnavailable), "got %v", err)
	_, err = s.Put(ctx, "k", content.Document{}, "")
	assert.True(t, errors.Is(err, errors.StorageUnavailable), "got %v", err)
}
