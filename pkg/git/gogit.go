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
	"errors"
	"io/fs"
	"os"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/cache"
	"github.com/go-git/go-git/v5/storage"
	"github.com/go-git/go-git/v5/storage/filesystem"
	"github.com/go-git/go-git/v5/storage/memory"
)

// openRepository returns the bare repository stored at dir. A missing
// directory is initialized; an empty dir means an in-memory repository.
// Object and reference access is serialized through a lockedStorer.
func openRepository(dir string) (*git.Repository, error) {
	if dir == "" {
		return newBareRepository(newLockedStorer(memory.NewStorage()))
	}
	s := newLockedStorer(filesystem.NewStorage(osfs.New(dir), cache.NewObjectLRUDefault()))
	_, err := os.Stat(dir)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return newBareRepository(s)
	case err != nil:
		return nil, err
	}
	return git.Open(s, nil)
}

// newBareRepository initializes s with HEAD pointing at DefaultTrunk
// instead of go-git's master.
func newBareRepository(s storage.Storer) (*git.Repository, error) {
	repo, err := git.Init(s, nil)
	if err != nil {
		return nil, err
	}
	if err := s.RemoveReference(plumbing.Master); err != nil {
		return nil, err
	}
	head := plumbing.NewSymbolicReference(plumbing.HEAD, DefaultTrunk.Ref())
	if err := s.SetReference(head); err != nil {
		return nil, err
	}
	return repo, nil
}
