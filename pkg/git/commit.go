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
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/vidyalaya/cms/pkg/repository"
)

const (
	publisherName  = "Content Publisher"
	publisherEmail = "cms@vidyalaya.dev"
)

// dirNode is an editable view of one git tree. Subdirectories are read
// from the object store only when an edit reaches them.
type dirNode struct {
	hash   plumbing.Hash
	loaded bool
	dirty  bool
	files  map[string]object.TreeEntry
	dirs   map[string]*dirNode
}

func (d *dirNode) load(repo *git.Repository) error {
	if d.loaded {
		return nil
	}
	d.loaded = true
	d.files = map[string]object.TreeEntry{}
	d.dirs = map[string]*dirNode{}
	if d.hash.IsZero() {
		return nil
	}
	t, err := repo.TreeObject(d.hash)
	if err != nil {
		return fmt.Errorf("reading tree %s: %w", d.hash, err)
	}
	for _, e := range t.Entries {
		if e.Mode == filemode.Dir {
			d.dirs[e.Name] = &dirNode{hash: e.Hash}
		} else {
			d.files[e.Name] = e
		}
	}
	return nil
}

// treeBuilder stages file edits on top of a parent commit and writes them
// out as a single new commit.
type treeBuilder struct {
	repo   *git.Repository
	root   *dirNode
	parent plumbing.Hash
}

func newTreeBuilder(repo *git.Repository, parent plumbing.Hash) (*treeBuilder, error) {
	root := &dirNode{}
	if !parent.IsZero() {
		c, err := repo.CommitObject(parent)
		if err != nil {
			return nil, fmt.Errorf("resolving parent commit %s: %w", parent, err)
		}
		root.hash = c.TreeHash
	}
	if err := root.load(repo); err != nil {
		return nil, err
	}
	return &treeBuilder{repo: repo, root: root, parent: parent}, nil
}

// walk returns the directory holding name, creating missing directories
// when create is set. Every directory on the way is marked dirty.
func (b *treeBuilder) walk(filePath string, create bool) (*dirNode, string, error) {
	parts := strings.Split(filePath, "/")
	name := parts[len(parts)-1]
	if name == "" {
		return nil, "", fmt.Errorf("invalid path %q: no file name", filePath)
	}
	cur := b.root
	cur.dirty = true
	for i, part := range parts[:len(parts)-1] {
		if _, isFile := cur.files[part]; isFile {
			return nil, "", fmt.Errorf("%q is a file, not a directory", strings.Join(parts[:i+1], "/"))
		}
		next, ok := cur.dirs[part]
		if !ok {
			if !create {
				return nil, name, nil
			}
			next = &dirNode{}
			cur.dirs[part] = next
		}
		if err := next.load(b.repo); err != nil {
			return nil, "", err
		}
		next.dirty = true
		cur = next
	}
	return cur, name, nil
}

// put stores contents as a regular file at filePath.
func (b *treeBuilder) put(filePath string, contents []byte) error {
	hash, err := writeBlob(b.repo, contents)
	if err != nil {
		return err
	}
	return b.putHash(filePath, hash, filemode.Regular)
}

// putHash points filePath at an existing blob.
func (b *treeBuilder) putHash(filePath string, hash plumbing.Hash, mode filemode.FileMode) error {
	dir, name, err := b.walk(filePath, true)
	if err != nil {
		return err
	}
	if _, isDir := dir.dirs[name]; isDir {
		return fmt.Errorf("cannot write file %q over a directory", filePath)
	}
	dir.files[name] = object.TreeEntry{Name: name, Mode: mode, Hash: hash}
	return nil
}

// remove deletes filePath. Removing a missing file is not an error.
func (b *treeBuilder) remove(filePath string) error {
	dir, name, err := b.walk(filePath, false)
	if err != nil || dir == nil {
		return err
	}
	delete(dir.files, name)
	return nil
}

// commit writes the staged trees and a commit on top of the parent plus
// any extra parents. The builder then continues from the new commit.
func (b *treeBuilder) commit(ctx context.Context, message string, author *repository.UserInfo, extraParents ...plumbing.Hash) (plumbing.Hash, error) {
	tree, err := b.writeDir(b.root)
	if err != nil {
		return plumbing.ZeroHash, err
	}
	if tree.IsZero() {
		// An empty repository still needs a root tree object.
		if tree, err = encodeObject(b.repo, &object.Tree{}); err != nil {
			return plumbing.ZeroHash, err
		}
	}

	var parents []plumbing.Hash
	if !b.parent.IsZero() {
		parents = append(parents, b.parent)
	}
	parents = append(parents, extraParents...)

	now := time.Now()
	sig := object.Signature{Name: publisherName, Email: publisherEmail, When: now}
	c := &object.Commit{
		Author:       sig,
		Committer:    sig,
		Message:      message,
		TreeHash:     tree,
		ParentHashes: parents,
	}
	if author != nil {
		c.Author.Name, c.Author.Email = author.Name, author.Email
	}
	hash, err := encodeObject(b.repo, c)
	if err != nil {
		return plumbing.ZeroHash, err
	}
	b.parent = hash
	return hash, nil
}

// writeDir encodes d and its dirty children. An empty directory yields
// ZeroHash so its parent drops it.
func (b *treeBuilder) writeDir(d *dirNode) (plumbing.Hash, error) {
	if !d.dirty {
		return d.hash, nil
	}
	entries := make([]object.TreeEntry, 0, len(d.files)+len(d.dirs))
	for _, e := range d.files {
		entries = append(entries, e)
	}
	for name, child := range d.dirs {
		h, err := b.writeDir(child)
		if err != nil {
			return plumbing.ZeroHash, err
		}
		if h.IsZero() {
			continue
		}
		entries = append(entries, object.TreeEntry{Name: name, Mode: filemode.Dir, Hash: h})
	}
	if len(entries) == 0 && d != b.root {
		return plumbing.ZeroHash, nil
	}
	sort.Slice(entries, func(i, j int) bool {
		return gitSortName(&entries[i]) < gitSortName(&entries[j])
	})
	h, err := encodeObject(b.repo, &object.Tree{Entries: entries})
	if err != nil {
		return plumbing.ZeroHash, err
	}
	d.hash, d.dirty = h, false
	return h, nil
}

// Git orders tree entries as if directory names ended in '/'.
func gitSortName(e *object.TreeEntry) string {
	if e.Mode == filemode.Dir {
		return e.Name + "/"
	}
	return e.Name
}

type encoder interface {
	Encode(plumbing.EncodedObject) error
}

func encodeObject(repo *git.Repository, obj encoder) (plumbing.Hash, error) {
	eo := repo.Storer.NewEncodedObject()
	if err := obj.Encode(eo); err != nil {
		return plumbing.ZeroHash, err
	}
	return repo.Storer.SetEncodedObject(eo)
}

func writeBlob(repo *git.Repository, data []byte) (plumbing.Hash, error) {
	eo := repo.Storer.NewEncodedObject()
	eo.SetType(plumbing.BlobObject)
	eo.SetSize(int64(len(data)))
	w, err := eo.Writer()
	if err != nil {
		return plumbing.ZeroHash, err
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		return plumbing.ZeroHash, err
	}
	if err := w.Close(); err != nil {
		return plumbing.ZeroHash, err
	}
	return repo.Storer.SetEncodedObject(eo)
}
