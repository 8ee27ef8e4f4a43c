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
	"os"
	"path"
	"sort"
	"sync"

	"github.com/spf13/afero"
	"github.com/vidyalaya/cms/internal/errors"
	"github.com/vidyalaya/cms/pkg/content"
	"k8s.io/klog/v2"
)

// FileStore keeps one JSON file per key in an afero filesystem.
type FileStore struct {
	fs afero.Fs
	// mu makes compare-and-write atomic within the process.
	mu sync.Mutex
}

var _ Store = &FileStore{}

// NewFileStore returns a store rooted at dir of the OS filesystem.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.E(errors.Op("store.open"), errors.StorageUnavailable, err)
	}
	return NewFileStoreFs(afero.NewBasePathFs(afero.NewOsFs(), dir)), nil
}

// NewFileStoreFs returns a store over fs. A nil fs is an in-memory
// filesystem.
func NewFileStoreFs(fs afero.Fs) *FileStore {
	if fs == nil {
		fs = afero.NewMemMapFs()
	}
	return &FileStore{fs: fs}
}

func (s *FileStore) read(op errors.Op, key content.Key) ([]byte, error) {
	data, err := afero.ReadFile(s.fs, key.FileName())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, notFound(op, key)
		}
		return nil, errors.E(op, errors.Key(key), errors.StorageUnavailable, err)
	}
	return data, nil
}

func (s *FileStore) Get(ctx context.Context, key content.Key) (content.Document, content.Revision, error) {
	const op errors.Op = "store.get"
	if err := key.Validate(); err != nil {
		return nil, "", errors.E(op, err)
	}
	data, err := s.read(op, key)
	if err != nil {
		return nil, "", err
	}
	return decode(op, key, data)
}

func (s *FileStore) Put(ctx context.Context, key content.Key, doc content.Document, expected content.Revision) (content.Revision, error) {
	const op errors.Op = "store.put"
	if err := key.Validate(); err != nil {
		return "", errors.E(op, err)
	}
	data, rev, err := encode(op, key, doc)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if expected != "" {
		var current content.Revision
		existing, err := s.read(op, key)
		switch {
		case err == nil:
			current = content.RevisionOf(existing)
		case !errors.Is(err, errors.NotFound):
			return "", err
		}
		if current != expected {
			return "", conflict(op, key, expected, current)
		}
	}

	if err := s.write(key.FileName(), data); err != nil {
		return "", errors.E(op, errors.Key(key), errors.StorageUnavailable, err)
	}
	klog.V(2).Infof("stored %s at revision %s", key, rev)
	return rev, nil
}

func (s *FileStore) Create(ctx context.Context, key content.Key, doc content.Document) (content.Revision, error) {
	const op errors.Op = "store.create"
	if err := key.Validate(); err != nil {
		return "", errors.E(op, err)
	}
	data, rev, err := encode(op, key, doc)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch _, err := s.read(op, key); {
	case err == nil:
		return "", exists(op, key)
	case !errors.Is(err, errors.NotFound):
		return "", err
	}
	if err := s.write(key.FileName(), data); err != nil {
		return "", errors.E(op, errors.Key(key), errors.StorageUnavailable, err)
	}
	return rev, nil
}

// write replaces name through a temporary file so readers never observe a
// partial document.
func (s *FileStore) write(name string, data []byte) error {
	f, err := afero.TempFile(s.fs, path.Dir(name), ".tmp-"+path.Base(name))
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		_ = s.fs.Remove(f.Name())
		return err
	}
	if err := f.Close(); err != nil {
		_ = s.fs.Remove(f.Name())
		return err
	}
	return s.fs.Rename(f.Name(), name)
}

func (s *FileStore) Delete(ctx context.Context, key content.Key) error {
	const op errors.Op = "store.delete"
	if err := key.Validate(); err != nil {
		return errors.E(op, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fs.Remove(key.FileName()); err != nil && !os.IsNotExist(err) {
		return errors.E(op, errors.Key(key), errors.StorageUnavailable, err)
	}
	return nil
}

func (s *FileStore) List(ctx context.Context) ([]content.Key, error) {
	const op errors.Op = "store.list"
	infos, err := afero.ReadDir(s.fs, ".")
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.E(op, errors.StorageUnavailable, err)
	}
	var keys []content.Key
	for _, fi := range infos {
		if fi.IsDir() {
			continue
		}
		if k, ok := content.KeyFromPath("", fi.Name()); ok {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys, nil
}
