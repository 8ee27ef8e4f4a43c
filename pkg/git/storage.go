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
	"sync"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/storer"
	"github.com/go-git/go-git/v5/storage"
)

// lockedStorer serializes access to the object and reference stores of a
// storage.Storer. memory.Storage keeps both in plain maps, and a Host is
// shared by concurrent HTTP requests.
type lockedStorer struct {
	storage.Storer
	mu sync.RWMutex
}

var (
	_ storage.Storer     = &lockedStorer{}
	_ storer.Initializer = &lockedStorer{}
)

func newLockedStorer(s storage.Storer) *lockedStorer {
	return &lockedStorer{Storer: s}
}

func (s *lockedStorer) SetEncodedObject(obj plumbing.EncodedObject) (plumbing.Hash, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Storer.SetEncodedObject(obj)
}

func (s *lockedStorer) EncodedObject(t plumbing.ObjectType, h plumbing.Hash) (plumbing.EncodedObject, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Storer.EncodedObject(t, h)
}

func (s *lockedStorer) IterEncodedObjects(t plumbing.ObjectType) (storer.EncodedObjectIter, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Storer.IterEncodedObjects(t)
}

func (s *lockedStorer) HasEncodedObject(h plumbing.Hash) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Storer.HasEncodedObject(h)
}

func (s *lockedStorer) EncodedObjectSize(h plumbing.Hash) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Storer.EncodedObjectSize(h)
}

func (s *lockedStorer) SetReference(ref *plumbing.Reference) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Storer.SetReference(ref)
}

func (s *lockedStorer) CheckAndSetReference(ref, old *plumbing.Reference) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Storer.CheckAndSetReference(ref, old)
}

func (s *lockedStorer) Reference(n plumbing.ReferenceName) (*plumbing.Reference, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Storer.Reference(n)
}

func (s *lockedStorer) IterReferences() (storer.ReferenceIter, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Storer.IterReferences()
}

func (s *lockedStorer) RemoveReference(n plumbing.ReferenceName) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Storer.RemoveReference(n)
}

func (s *lockedStorer) CountLooseRefs() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Storer.CountLooseRefs()
}

func (s *lockedStorer) PackRefs() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Storer.PackRefs()
}

// Init forwards to the wrapped storer so git.Init can lay out an on-disk
// repository.
func (s *lockedStorer) Init() error {
	if i, ok := s.Storer.(storer.Initializer); ok {
		return i.Init()
	}
	return nil
}
