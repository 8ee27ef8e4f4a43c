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

package git

import (
	"context"
	"testing"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/vidyalaya/cms/pkg/repository"
)

func newMemoryRepository(t *testing.T) *git.Repository {
	t.Helper()
	repo, err := openRepository("")
	if err != nil {
		t.Fatalf("openRepository(%q) failed: %v", "", err)
	}
	return repo
}

func getCommitObject(t *testing.T, repo *git.Repository, hash plumbing.Hash) *object.Commit {
	t.Helper()
	c, err := repo.CommitObject(hash)
	if err != nil {
		t.Fatalf("CommitObject(%s) failed: %v", hash, err)
	}
	return c
}

func readFile(t *testing.T, repo *git.Repository, commit plumbing.Hash, path string) string {
	t.Helper()
	root, err := getCommitObject(t, repo, commit).Tree()
	if err != nil {
		t.Fatalf("Tree() of %s failed: %v", commit, err)
	}
	f, err := root.File(path)
	if err != nil {
		t.Fatalf("File(%q) failed: %v", path, err)
	}
	contents, err := f.Contents()
	if err != nil {
		t.Fatalf("Contents(%q) failed: %v", path, err)
	}
	return contents
}

func TestCommitEmptyRepo(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryRepository(t)

	tb, err := newTreeBuilder(repo, plumbing.ZeroHash)
	if err != nil {
		t.Fatalf("newTreeBuilder failed: %v", err)
	}
	if err := tb.put("content/home-content.json", []byte("{}\n")); err != nil {
		t.Fatalf("put failed: %v", err)
	}
	commit, err := tb.commit(ctx, "first", &repository.UserInfo{Name: "Editor", Email: "editor@example.com"})
	if err != nil {
		t.Fatalf("commit failed: %v", err)
	}

	c := getCommitObject(t, repo, commit)
	if got, want := len(c.ParentHashes), 0; got != want {
		t.Errorf("parents: got %d, want %d", got, want)
	}
	if got, want := c.Author.Email, "editor@example.com"; got != want {
		t.Errorf("author: got %q, want %q", got, want)
	}
	if got, want := c.Committer.Email, publisherEmail; got != want {
		t.Errorf("committer: got %q, want %q", got, want)
	}
	if got, want := readFile(t, repo, commit, "content/home-content.json"), "{}\n"; got != want {
		t.Errorf("contents: got %q, want %q", got, want)
	}
}

func TestCommitPreservesSiblings(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryRepository(t)

	tb, err := newTreeBuilder(repo, plumbing.ZeroHash)
	if err != nil {
		t.Fatalf("newTreeBuilder failed: %v", err)
	}
	for _, p := range []string{"README.md", "content/a.json", "content/nested/b.json"} {
		if err := tb.put(p, []byte(p)); err != nil {
			t.Fatalf("put(%q) failed: %v", p, err)
		}
	}
	first, err := tb.commit(ctx, "first", nil)
	if err != nil {
		t.Fatalf("commit failed: %v", err)
	}

	tb, err = newTreeBuilder(repo, first)
	if err != nil {
		t.Fatalf("newTreeBuilder failed: %v", err)
	}
	if err := tb.put("content/c.json", []byte("c")); err != nil {
		t.Fatalf("put failed: %v", err)
	}
	second, err := tb.commit(ctx, "second", nil)
	if err != nil {
		t.Fatalf("commit failed: %v", err)
	}

	c := getCommitObject(t, repo, second)
	if len(c.ParentHashes) != 1 || c.ParentHashes[0] != first {
		t.Errorf("parents: got %v, want [%s]", c.ParentHashes, first)
	}
	for p, want := range map[string]string{
		"README.md":             "README.md",
		"content/a.json":        "content/a.json",
		"content/nested/b.json": "content/nested/b.json",
		"content/c.json":        "c",
	} {
		if got := readFile(t, repo, second, p); got != want {
			t.Errorf("%s: got %q, want %q", p, got, want)
		}
	}
}

func TestCommitRemoveDropsEmptyTrees(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryRepository(t)

	tb, _ := newTreeBuilder(repo, plumbing.ZeroHash)
	if err := tb.put("README.md", []byte("r")); err != nil {
		t.Fatal(err)
	}
	if err := tb.put("content/only.json", []byte("o")); err != nil {
		t.Fatal(err)
	}
	first, err := tb.commit(ctx, "first", nil)
	if err != nil {
		t.Fatal(err)
	}

	tb, _ = newTreeBuilder(repo, first)
	if err := tb.remove("content/only.json"); err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	second, err := tb.commit(ctx, "second", nil)
	if err != nil {
		t.Fatal(err)
	}
	root, err := getCommitObject(t, repo, second).Tree()
	if err != nil {
		t.Fatal(err)
	}
	if got, want := len(root.Entries), 1; got != want {
		t.Fatalf("root entries: got %d, want %d (%v)", got, want, root.Entries)
	}
	if got, want := root.Entries[0].Name, "README.md"; got != want {
		t.Errorf("root entry: got %q, want %q", got, want)
	}
}

func TestCommitFileOverDirectory(t *testing.T) {
	repo := newMemoryRepository(t)
	tb, _ := newTreeBuilder(repo, plumbing.ZeroHash)
	if err := tb.put("content/a.json", []byte("a")); err != nil {
		t.Fatal(err)
	}
	if err := tb.put("content", []byte("x")); err == nil {
		t.Errorf("put over a directory succeeded, want error")
	}
	if err := tb.put("content/a.json/b", []byte("x")); err == nil {
		t.Errorf("put below a file succeeded, want error")
	}
}

func TestGitSortName(t *testing.T) {
	dir := object.TreeEntry{Name: "a", Mode: filemode.Dir}
	file := object.TreeEntry{Name: "a.json"}
	// "a/" sorts after "a.json" because '.' < '/'.
	if !(gitSortName(&file) < gitSortName(&dir)) {
		t.Errorf("expected %q to sort before %q", gitSortName(&file), gitSortName(&dir))
	}
}
