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

package cms

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vidyalaya/cms/internal/errors"
	"github.com/vidyalaya/cms/pkg/content"
	"github.com/vidyalaya/cms/pkg/git"
	"github.com/vidyalaya/cms/pkg/repository"
	"github.com/vidyalaya/cms/pkg/store"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time { return c.t }

func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

type testEnv struct {
	svc   *Service
	host  *git.Host
	clock *fakeClock
}

func newTestEnv(t *testing.T, mutate ...func(*Options)) *testEnv {
	t.Helper()
	h, err := git.Open(context.Background(), "", git.Options{MainBranchStrategy: git.CreateIfMissing})
	require.NoError(t, err)
	clock := &fakeClock{t: time.UnixMilli(1700000000000)}
	opts := Options{Host: h, Now: clock.Now}
	for _, m := range mutate {
		m(&opts)
	}
	svc, err := NewService(opts)
	require.NoError(t, err)
	return &testEnv{svc: svc, host: h, clock: clock}
}

func (e *testEnv) branchExists(t *testing.T, name string) bool {
	t.Helper()
	_, err := e.host.ResolveBranch(context.Background(), name)
	if err != nil {
		require.ErrorIs(t, err, repository.ErrBranchNotFound)
		return false
	}
	return true
}

func (e *testEnv) stagingBranches(t *testing.T) []string {
	t.Helper()
	refs, err := e.host.ListBranches(context.Background(), BranchPrefix)
	require.NoError(t, err)
	var names []string
	for _, r := range refs {
		names = append(names, r.Name)
	}
	return names
}

func TestBranchName(t *testing.T) {
	at := time.UnixMilli(1700000000123)
	name := BranchName("guna-profiler-content.json", at)
	assert.Equal(t, "cms/update-guna-profiler-content-json-1700000000123", name)

	key, created, ok := ParseBranchName(name)
	assert.True(t, ok)
	assert.Equal(t, "guna-profiler-content-json", key)
	assert.True(t, created.Equal(at))

	for _, n := range []string{"main", "cms/other", "cms/update-k-abc", "cms/update-1"} {
		_, _, ok := ParseBranchName(n)
		assert.False(t, ok, n)
	}
	assert.True(t, IsStagingBranch("cms/x"))
	assert.False(t, IsStagingBranch("cms/"))
	assert.False(t, IsStagingBranch("feature/x"))
}

// Saving P, publishing, and reading back yields P.
func TestRoundTrip(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	payload := content.Document{
		"hero":    map[string]interface{}{"title": "Namaste", "subtitle": "Learn"},
		"faq":     []interface{}{map[string]interface{}{"q": "Why?", "a": "Because"}},
		"version": 3.0,
	}
	saved, err := env.svc.Save(ctx, SaveRequest{Key: "home-content.json", Content: payload, CommitMessage: "update home"})
	require.NoError(t, err)
	_, err = env.svc.Publish(ctx, saved.Branch)
	require.NoError(t, err)

	got, err := env.svc.Read(ctx, "home-content.json")
	require.NoError(t, err)
	assert.False(t, got.Default)
	assert.Equal(t, saved.Revision, got.Revision)
	if diff := cmp.Diff(payload, got.Document); diff != "" {
		t.Errorf("Read() after publish mismatch (-want +got):\n%s", diff)
	}
}

// Never-written keys read as their default, which is valid Save input.
func TestDefaulting(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	got, err := env.svc.Read(ctx, "course-sanskrit-101.json")
	require.NoError(t, err)
	assert.True(t, got.Default)
	assert.Empty(t, got.Revision)
	assert.Equal(t, []interface{}{}, got.Document["syllabus"])
	assert.Equal(t, []interface{}{}, got.Document["testimonials"])

	_, err = env.svc.Save(ctx, SaveRequest{Key: "course-sanskrit-101.json", Content: got.Document, CommitMessage: "materialize"})
	assert.NoError(t, err)

	unknown, err := env.svc.Read(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, content.Document{}, unknown.Document)
}

func TestReadMaterializesDefaults(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, func(o *Options) { o.MaterializeDefaults = true })

	first, err := env.svc.Read(ctx, "guna-profiler-content.json")
	require.NoError(t, err)
	assert.False(t, first.Default)
	assert.NotEmpty(t, first.Revision)

	data, err := env.host.ReadFile(ctx, "main", "content/guna-profiler-content.json")
	require.NoError(t, err)
	assert.Equal(t, first.Revision, content.RevisionOf(data))
}

// editAfterMiss reports the first lookup as missing and then stores edit,
// as if another editor saved between the read and the materializing write.
type editAfterMiss struct {
	store.Store
	edit content.Document
	done bool
}

func (s *editAfterMiss) Get(ctx context.Context, key content.Key) (content.Document, content.Revision, error) {
	doc, rev, err := s.Store.Get(ctx, key)
	if s.done || !errors.Is(err, errors.NotFound) {
		return doc, rev, err
	}
	s.done = true
	if _, err := s.Store.Put(ctx, key, s.edit, ""); err != nil {
		return nil, "", err
	}
	return doc, rev, err
}

func TestReadMaterializeKeepsConcurrentEdit(t *testing.T) {
	ctx := context.Background()
	edit := content.Document{"title": "edited"}
	var published *editAfterMiss
	env := newTestEnv(t, func(o *Options) {
		o.MaterializeDefaults = true
		published = &editAfterMiss{Store: store.NewTrunkStore(o.Host, "main", DefaultContentDir), edit: edit}
		o.Published = published
	})

	got, err := env.svc.Read(ctx, "k")
	require.NoError(t, err)
	assert.True(t, published.done)
	assert.False(t, got.Default)
	if diff := cmp.Diff(edit, got.Document); diff != "" {
		t.Errorf("Read() mismatch (-want +got):\n%s", diff)
	}

	data, err := env.host.ReadFile(ctx, "main", "content/k.json")
	require.NoError(t, err)
	stored, err := content.Decode(data)
	require.NoError(t, err)
	if diff := cmp.Diff(edit, stored); diff != "" {
		t.Errorf("stored document was overwritten (-want +got):\n%s", diff)
	}
}

func TestReadCorrupt(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	tip, err := env.host.ResolveBranch(ctx, "main")
	require.NoError(t, err)
	commit, err := env.host.CommitFile(ctx, repository.CommitRequest{Parent: tip.Commit, Path: "content/k.json", Contents: []byte("{broken"), Message: "corrupt"})
	require.NoError(t, err)
	require.NoError(t, env.host.UpdateBranch(ctx, "main", commit, tip.Commit))

	_, err = env.svc.Read(ctx, "k")
	assert.Equal(t, errors.ContentCorrupt, errors.KindOf(err), "got %v", err)
}

// Section updates are shallow by default: siblings survive, nested
// objects are replaced wholesale.
func TestUpdateSectionShallow(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	_, err := env.svc.published.Put(ctx, "page", content.Document{
		"hero": map[string]interface{}{"title": "A", "subtitle": "B"},
	}, "")
	require.NoError(t, err)
	got, err := env.svc.UpdateSection(ctx, SectionUpdate{Key: "page", Section: "hero", Data: map[string]interface{}{"title": "C"}})
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"title": "C", "subtitle": "B"}, got.Document["hero"])

	_, err = env.svc.published.Put(ctx, "page", content.Document{
		"hero": map[string]interface{}{"nested": map[string]interface{}{"x": 1.0, "y": 2.0}},
	}, "")
	require.NoError(t, err)
	got, err = env.svc.UpdateSection(ctx, SectionUpdate{Key: "page", Section: "hero", Data: map[string]interface{}{
		"nested": map[string]interface{}{"x": 9.0},
	}})
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"nested": map[string]interface{}{"x": 9.0}}, got.Document["hero"])

	read, err := env.svc.Read(ctx, "page")
	require.NoError(t, err)
	assert.Equal(t, got.Document, read.Document)
	assert.Equal(t, got.Revision, read.Revision)
}

func TestUpdateSectionDeep(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	_, err := env.svc.published.Put(ctx, "page", content.Document{
		"hero": map[string]interface{}{"nested": map[string]interface{}{"x": 1.0, "y": 2.0}},
	}, "")
	require.NoError(t, err)
	got, err := env.svc.UpdateSection(ctx, SectionUpdate{Key: "page", Section: "hero", Merge: content.Deep, Data: map[string]interface{}{
		"nested": map[string]interface{}{"x": 9.0},
	}})
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"nested": map[string]interface{}{"x": 9.0, "y": 2.0}}, got.Document["hero"])

	// home-content.json is registered as deep.
	got, err = env.svc.UpdateSection(ctx, SectionUpdate{Key: "home-content.json", Section: "hero", Data: map[string]interface{}{"subtitle": "New"}})
	require.NoError(t, err)
	hero := got.Document["hero"].(map[string]interface{})
	assert.Equal(t, "New", hero["subtitle"])
	assert.Equal(t, "Learn Sanskrit and Indian Philosophy", hero["title"])
}

func TestUpdateSectionValidation(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	_, err := env.svc.UpdateSection(ctx, SectionUpdate{Key: "page"})
	require.Error(t, err)
	assert.Equal(t, errors.Validation, errors.KindOf(err))
	assert.Equal(t, `validation failed for fields "section" and "data"`, errors.Cause(err).Error())

	_, err = env.svc.UpdateSection(ctx, SectionUpdate{Key: "page", Section: "hero", Data: map[string]interface{}{}, Merge: "sideways"})
	assert.Equal(t, errors.Validation, errors.KindOf(err))
}

func TestUpdateSectionRevision(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	first, err := env.svc.UpdateSection(ctx, SectionUpdate{Key: "page", Section: "hero", Data: map[string]interface{}{"title": "A"}})
	require.NoError(t, err)
	second, err := env.svc.UpdateSection(ctx, SectionUpdate{Key: "page", Section: "hero", Data: map[string]interface{}{"title": "B"}, Revision: first.Revision})
	require.NoError(t, err)

	// A second editor still holding the first revision loses.
	_, err = env.svc.UpdateSection(ctx, SectionUpdate{Key: "page", Section: "hero", Data: map[string]interface{}{"title": "C"}, Revision: first.Revision})
	assert.Equal(t, errors.Conflict, errors.KindOf(err), "got %v", err)

	read, err := env.svc.Read(ctx, "page")
	require.NoError(t, err)
	assert.Equal(t, second.Revision, read.Revision)
}

func TestRequireRevision(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, func(o *Options) { o.RequireRevision = true })

	// Nothing stored yet: there is no revision to supply.
	first, err := env.svc.UpdateSection(ctx, SectionUpdate{Key: "page", Section: "hero", Data: map[string]interface{}{"title": "A"}})
	require.NoError(t, err)

	_, err = env.svc.UpdateSection(ctx, SectionUpdate{Key: "page", Section: "hero", Data: map[string]interface{}{"title": "B"}})
	assert.Equal(t, errors.Validation, errors.KindOf(err), "got %v", err)

	_, err = env.svc.Save(ctx, SaveRequest{Key: "page", Content: content.Document{}, CommitMessage: "m"})
	assert.Equal(t, errors.Validation, errors.KindOf(err), "got %v", err)
	assert.Empty(t, env.stagingBranches(t))

	_, err = env.svc.Reset(ctx, "page", "")
	assert.Equal(t, errors.Validation, errors.KindOf(err), "got %v", err)
	_, err = env.svc.Reset(ctx, "page", first.Revision)
	assert.NoError(t, err)
}

func TestReset(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	_, err := env.svc.UpdateSection(ctx, SectionUpdate{Key: "guna-profiler-content.json", Section: "hero", Data: map[string]interface{}{"title": "Changed"}})
	require.NoError(t, err)
	reset, err := env.svc.Reset(ctx, "guna-profiler-content.json", "")
	require.NoError(t, err)

	got, err := env.svc.Read(ctx, "guna-profiler-content.json")
	require.NoError(t, err)
	assert.False(t, got.Default)
	assert.Equal(t, reset.Revision, got.Revision)
	if diff := cmp.Diff(content.BuiltinDefaults().Document("guna-profiler-content.json"), got.Document); diff != "" {
		t.Errorf("document after reset (-want +got):\n%s", diff)
	}
}

// Saves at different milliseconds get distinct branches; saves within the
// same millisecond collide and the second one fails.
func TestBranchNamingUniqueness(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	req := SaveRequest{Key: "k", Content: content.Document{"title": "x"}, CommitMessage: "m"}

	first, err := env.svc.Save(ctx, req)
	require.NoError(t, err)
	env.clock.Advance(time.Millisecond)
	second, err := env.svc.Save(ctx, req)
	require.NoError(t, err)
	assert.NotEqual(t, first.Branch, second.Branch)

	_, err = env.svc.Save(ctx, req)
	require.Error(t, err)
	assert.Equal(t, errors.SaveFailed, errors.KindOf(err))
	assert.ErrorIs(t, err, repository.ErrBranchExists)

	// The colliding save must not remove the branch it collided with.
	assert.True(t, env.branchExists(t, second.Branch))
	assert.Len(t, env.stagingBranches(t), 2)
}

func TestSaveDoesNotTouchTrunk(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	before, err := env.host.ResolveBranch(ctx, "main")
	require.NoError(t, err)

	saved, err := env.svc.Save(ctx, SaveRequest{Key: "k", Content: content.Document{"a": "b"}, CommitMessage: "m"})
	require.NoError(t, err)
	assert.Equal(t, "cms/update-k-1700000000000", saved.Branch)

	after, err := env.host.ResolveBranch(ctx, "main")
	require.NoError(t, err)
	assert.Equal(t, before.Commit, after.Commit)

	data, err := env.host.ReadFile(ctx, saved.Branch, "content/k.json")
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"a\": \"b\"\n}\n", string(data))
}

func TestSaveValidation(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	for name, tc := range map[string]struct {
		req  SaveRequest
		want string
	}{
		"missing commit message": {
			req:  SaveRequest{Key: "k", Content: content.Document{}},
			want: `missing "commitMessage"`,
		},
		"missing file": {
			req:  SaveRequest{Content: content.Document{}, CommitMessage: "m"},
			want: `missing "file"`,
		},
		"missing everything": {
			want: `validation failed for fields "file", "content" and "commitMessage"`,
		},
		"escaping key": {
			req:  SaveRequest{Key: "../etc/passwd", Content: content.Document{}, CommitMessage: "m"},
			want: `invalid "file"`,
		},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := env.svc.Save(ctx, tc.req)
			require.Error(t, err)
			assert.Equal(t, errors.Validation, errors.KindOf(err))
			assert.True(t, strings.HasPrefix(errors.Cause(err).Error(), tc.want), "got %q", errors.Cause(err).Error())
		})
	}
	assert.Empty(t, env.stagingBranches(t), "validation failures must not create branches")
}

func TestSaveStaleRevision(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	first, err := env.svc.UpdateSection(ctx, SectionUpdate{Key: "k", Section: "s", Data: map[string]interface{}{"a": "1"}})
	require.NoError(t, err)
	_, err = env.svc.UpdateSection(ctx, SectionUpdate{Key: "k", Section: "s", Data: map[string]interface{}{"a": "2"}})
	require.NoError(t, err)

	_, err = env.svc.Save(ctx, SaveRequest{Key: "k", Content: content.Document{}, CommitMessage: "m", Revision: first.Revision})
	assert.Equal(t, errors.Conflict, errors.KindOf(err), "got %v", err)
	assert.Empty(t, env.stagingBranches(t))
}

// failingHost fails the named step after delegating the rest to a real
// host.
type failingHost struct {
	*git.Host
	failCommit bool
	failUpdate bool
	failMerge  bool
}

func (h *failingHost) CommitFile(ctx context.Context, req repository.CommitRequest) (string, error) {
	if h.failCommit {
		return "", fmt.Errorf("permission denied")
	}
	return h.Host.CommitFile(ctx, req)
}

func (h *failingHost) UpdateBranch(ctx context.Context, name, commit, expected string) error {
	if h.failUpdate {
		return fmt.Errorf("network unreachable")
	}
	return h.Host.UpdateBranch(ctx, name, commit, expected)
}

func (h *failingHost) Merge(ctx context.Context, mr *repository.MergeRequest) error {
	if h.failMerge {
		return fmt.Errorf("%w: simulated", repository.ErrMergeConflict)
	}
	return h.Host.Merge(ctx, mr)
}

func TestSaveCompensation(t *testing.T) {
	ctx := context.Background()
	for name, fh := range map[string]*failingHost{
		"commit fails": {failCommit: true},
		"update fails": {failUpdate: true},
	} {
		t.Run(name, func(t *testing.T) {
			env := newTestEnv(t)
			fh.Host = env.host
			svc, err := NewService(Options{Host: fh, Now: env.clock.Now})
			require.NoError(t, err)

			_, err = svc.Save(ctx, SaveRequest{Key: "k", Content: content.Document{}, CommitMessage: "m"})
			require.Error(t, err)
			assert.Equal(t, errors.SaveFailed, errors.KindOf(err))
			assert.Empty(t, env.stagingBranches(t), "partially created branch must be removed")
		})
	}
}

func TestPublishTwice(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	saved, err := env.svc.Save(ctx, SaveRequest{Key: "k", Content: content.Document{"a": "b"}, CommitMessage: "m"})
	require.NoError(t, err)

	result, err := env.svc.Publish(ctx, saved.Branch)
	require.NoError(t, err)
	assert.True(t, result.BranchDeleted)
	assert.Equal(t, repository.MergeMerged, result.MergeRequest.State)
	assert.False(t, env.branchExists(t, saved.Branch))

	_, err = env.svc.Publish(ctx, saved.Branch)
	require.Error(t, err)
	assert.Equal(t, errors.InvalidBranch, errors.KindOf(err))
}

func TestPublishInvalidBranch(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	for _, b := range []string{"main", "feature/x", "cms/"} {
		_, err := env.svc.Publish(ctx, b)
		assert.Equal(t, errors.InvalidBranch, errors.KindOf(err), "publish %q: %v", b, err)
	}
	_, err := env.svc.Publish(ctx, "")
	assert.Equal(t, errors.Validation, errors.KindOf(err))
}

func TestPublishFailureKeepsBranch(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	saved, err := env.svc.Save(ctx, SaveRequest{Key: "k", Content: content.Document{}, CommitMessage: "m"})
	require.NoError(t, err)

	svc, err := NewService(Options{Host: &failingHost{Host: env.host, failMerge: true}})
	require.NoError(t, err)
	_, err = svc.Publish(ctx, saved.Branch)
	require.Error(t, err)
	assert.Equal(t, errors.PublishFailed, errors.KindOf(err))
	assert.True(t, env.branchExists(t, saved.Branch))
}

// Two editors stage the same key from the same trunk: the second publish
// conflicts with the first and surfaces as PublishFailed.
func TestPublishConflict(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	a, err := env.svc.Save(ctx, SaveRequest{Key: "k", Content: content.Document{"v": "a"}, CommitMessage: "a"})
	require.NoError(t, err)
	env.clock.Advance(time.Second)
	b, err := env.svc.Save(ctx, SaveRequest{Key: "k", Content: content.Document{"v": "b"}, CommitMessage: "b"})
	require.NoError(t, err)

	_, err = env.svc.Publish(ctx, a.Branch)
	require.NoError(t, err)
	_, err = env.svc.Publish(ctx, b.Branch)
	require.Error(t, err)
	assert.Equal(t, errors.PublishFailed, errors.KindOf(err))
	assert.ErrorIs(t, err, repository.ErrMergeConflict)
	assert.True(t, env.branchExists(t, b.Branch))

	got, err := env.svc.Read(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "a", got.Document["v"])
}

func TestDiscard(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	saved, err := env.svc.Save(ctx, SaveRequest{Key: "k", Content: content.Document{}, CommitMessage: "m"})
	require.NoError(t, err)

	require.NoError(t, env.svc.Discard(ctx, saved.Branch))
	assert.False(t, env.branchExists(t, saved.Branch))
	assert.Equal(t, errors.InvalidBranch, errors.KindOf(env.svc.Discard(ctx, saved.Branch)))
	assert.Equal(t, errors.InvalidBranch, errors.KindOf(env.svc.Discard(ctx, "main")))
}

func TestBranchesAndPrune(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	old, err := env.svc.Save(ctx, SaveRequest{Key: "old.json", Content: content.Document{}, CommitMessage: "m"})
	require.NoError(t, err)
	env.clock.Advance(48 * time.Hour)
	fresh, err := env.svc.Save(ctx, SaveRequest{Key: "fresh.json", Content: content.Document{}, CommitMessage: "m"})
	require.NoError(t, err)

	branches, err := env.svc.Branches(ctx)
	require.NoError(t, err)
	require.Len(t, branches, 2)
	byName := map[string]Branch{}
	for _, b := range branches {
		byName[b.Name] = b
	}
	assert.Equal(t, "old-json", byName[old.Branch].Key)
	assert.Equal(t, 48*time.Hour, byName[old.Branch].Age(env.clock.Now()))

	_, err = env.svc.Prune(ctx, 0)
	assert.Equal(t, errors.Validation, errors.KindOf(err))

	pruned, err := env.svc.Prune(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, []string{old.Branch}, pruned)
	assert.False(t, env.branchExists(t, old.Branch))
	assert.True(t, env.branchExists(t, fresh.Branch))
}

func TestDrafts(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	_, err := env.svc.GetDraft(ctx, "k")
	assert.Equal(t, errors.NotFound, errors.KindOf(err))

	_, err = env.svc.UpdateSection(ctx, SectionUpdate{Key: "k", Section: "hero", Data: map[string]interface{}{"title": "Published"}})
	require.NoError(t, err)

	// A first section edit starts from the published document.
	draft, err := env.svc.UpdateDraftSection(ctx, SectionUpdate{Key: "k", Section: "hero", Data: map[string]interface{}{"subtitle": "Draft"}})
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"title": "Published", "subtitle": "Draft"}, draft.Document["hero"])

	got, err := env.svc.GetDraft(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, draft.Revision, got.Revision)

	_, err = env.svc.PutDraft(ctx, "k", content.Document{"x": "y"}, "stale")
	assert.Equal(t, errors.Conflict, errors.KindOf(err))
	replaced, err := env.svc.PutDraft(ctx, "k", content.Document{"x": "y"}, got.Revision)
	require.NoError(t, err)
	assert.NotEqual(t, got.Revision, replaced.Revision)

	keys, err := env.svc.ListDrafts(ctx)
	require.NoError(t, err)
	assert.Equal(t, []content.Key{"k.json"}, keys)

	// Drafts never reach the trunk.
	published, err := env.svc.Read(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"title": "Published"}, published.Document["hero"])

	require.NoError(t, env.svc.DeleteDraft(ctx, "k"))
	_, err = env.svc.GetDraft(ctx, "k")
	assert.Equal(t, errors.NotFound, errors.KindOf(err))
}

func TestMetrics(t *testing.T) {
	ctx := context.Background()
	reg := prometheus.NewRegistry()
	env := newTestEnv(t, func(o *Options) { o.Metrics = NewMetrics(reg) })

	_, err := env.svc.Read(ctx, "k")
	require.NoError(t, err)
	_, err = env.svc.Save(ctx, SaveRequest{Key: "k"})
	require.Error(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(env.svc.metrics.operations.WithLabelValues("read", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(env.svc.metrics.operations.WithLabelValues("save", "ValidationError")))
	assert.Equal(t, 2, testutil.CollectAndCount(env.svc.metrics.duration))
}

// Read the default, save it with a new title, publish, read it back.
func TestEndToEnd(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	for _, key := range []content.Key{"k", "course-vedanta"} {
		t.Run(string(key), func(t *testing.T) {
			def, err := env.svc.Read(ctx, key)
			require.NoError(t, err)
			require.True(t, def.Default)

			updated := def.Document.Clone()
			updated["title"] = "New"
			saved, err := env.svc.Save(ctx, SaveRequest{Key: key, Content: updated, CommitMessage: "update title"})
			require.NoError(t, err)
			assert.True(t, strings.HasPrefix(saved.Branch, "cms/update-"+key.Sanitized()+"-"), saved.Branch)

			_, err = env.svc.Publish(ctx, saved.Branch)
			require.NoError(t, err)

			got, err := env.svc.Read(ctx, key)
			require.NoError(t, err)
			if diff := cmp.Diff(updated, got.Document); diff != "" {
				t.Errorf("published document mismatch (-want +got):\n%s", diff)
			}
			env.clock.Advance(time.Millisecond)
		})
	}
}

// The in-memory host is shared by concurrent requests. Run with -race.
func TestConcurrentSaveAndRead(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	const editors = 8
	var wg sync.WaitGroup
	errs := make(chan error, 3*editors)
	for i := 0; i < editors; i++ {
		key := content.Key(fmt.Sprintf("page-%d.json", i))
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := env.svc.Save(ctx, SaveRequest{
				Key:           key,
				Content:       content.Document{"title": string(key)},
				CommitMessage: "update " + string(key),
			})
			if err != nil {
				errs <- err
			}
		}()
		go func() {
			defer wg.Done()
			if _, err := env.svc.Read(ctx, "k"); err != nil {
				errs <- err
			}
			if _, err := env.svc.Branches(ctx); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Len(t, env.stagingBranches(t), editors)
}
