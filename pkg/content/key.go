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

// Package content defines the Content Document model: logical keys, the
// persisted JSON form, revision tokens, section merging and per-key defaults.
package content

import (
	"path"
	"regexp"
	"strings"

	"github.com/vidyalaya/cms/internal/errors"
)

// FileExtension is appended to keys that do not already carry it.
const FileExtension = ".json"

var keyPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// Key is the logical identifier of a Content Document, for example
// "guna-profiler-content.json".
type Key string

// ParseKey validates s and returns it as a Key.
func ParseKey(s string) (Key, error) {
	k := Key(s)
	if err := k.Validate(); err != nil {
		return "", err
	}
	return k, nil
}

// Validate returns a ValidationError if the key is empty or would escape
// the content directory.
func (k Key) Validate() error {
	s := string(k)
	if s == "" {
		return errors.MissingField("file")
	}
	if !keyPattern.MatchString(s) || strings.Contains(s, "..") {
		return errors.InvalidField("file", s, "must match "+keyPattern.String())
	}
	return nil
}

// FileName is the base name of the persisted document.
func (k Key) FileName() string {
	s := string(k)
	if strings.HasSuffix(s, FileExtension) {
		return s
	}
	return s + FileExtension
}

// Path is the slash separated location of the document below dir.
func (k Key) Path(dir string) string {
	return path.Join(strings.Trim(dir, "/"), k.FileName())
}

// Sanitized replaces every rune outside [A-Za-z0-9-] with '-', producing a
// fragment usable in branch names.
func (k Key) Sanitized() string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-':
			return r
		}
		return '-'
	}, string(k))
}

// KeyFromPath is the inverse of Key.Path for documents directly inside dir.
func KeyFromPath(dir, p string) (Key, bool) {
	dir = strings.Trim(dir, "/")
	d, name := path.Split(p)
	if strings.Trim(d, "/") != dir || !strings.HasSuffix(name, FileExtension) {
		return "", false
	}
	k := Key(name)
	if k.Validate() != nil {
		return "", false
	}
	return k, true
}
