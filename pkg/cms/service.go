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

// Package cms implements the staged content publishing workflow.
//
// Published documents live on the trunk of a repository.Host. Editors read
// them (falling back to per-key defaults), keep work in progress in a draft
// store, stage a full replacement as a single-commit branch named
// cms/update-<key>-<epoch-ms>, and publish the branch by opening and
// immediately merging a merge request into the trunk.
//
// Writes accept the revision token returned by reads. A supplied revision
// that no longer matches the stored document fails with a Conflict error.
package cms

import (
	"fmt"
	"time"

	"github.com/vidyalaya/cms/pkg/content"
	"github.com/vidyalaya/cms/pkg/repository"
	"github.com/vidyalaya/cms/pkg/store"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("cms")

// DefaultContentDir is the repository directory holding documents.
const DefaultContentDir = "content"

type Options struct {
	Host repository.Host
	// Trunk is the published branch. Defaults to main.
	Trunk string
	// ContentDir is the repository directory documents are stored in.
	ContentDir string
	// Published defaults to a TrunkStore over Host.
	Published store.Store
	// Drafts defaults to an in-memory store.
	Drafts   store.Store
	Defaults *content.Defaults
	// RequireRevision rejects writes that do not carry a revision token.
	RequireRevision bool
	// MaterializeDefaults stores the default document on its first read.
	MaterializeDefaults bool
	// Now defaults to time.Now.
	Now     func() time.Time
	Metrics *Metrics
}

// Service runs the workflow operations. It holds no per-request state and
// is safe for concurrent use.
type Service struct {
	host            repository.Host
	trunk           string
	dir             string
	published       store.Store
	drafts          store.Store
	defaults        *content.Defaults
	requireRevision bool
	materialize     bool
	now             func() time.Time
	metrics         *Metrics
}

func NewService(opts Options) (*Service, error) {
	if opts.Host == nil {
		return nil, fmt.Errorf("a repository host is required")
	}
	s := &Service{
		host:            opts.Host,
		trunk:           opts.Trunk,
		dir:             opts.ContentDir,
		published:       opts.Published,
		drafts:          opts.Drafts,
		defaults:        opts.Defaults,
		requireRevision: opts.RequireRevision,
		materialize:     opts.MaterializeDefaults,
		now:             opts.Now,
		metrics:         opts.Metrics,
	}
	if s.trunk == "" {
		s.trunk = "main"
	}
	if s.dir == "" {
		s.dir = DefaultContentDir
	}
	if s.published == nil {
		s.published = store.NewTrunkStore(s.host, s.trunk, s.dir)
	}
	if s.drafts == nil {
		s.drafts = store.NewFileStoreFs(nil)
	}
	if s.defaults == nil {
		s.defaults = content.BuiltinDefaults()
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.metrics == nil {
		s.metrics = NewMetrics(nil)
	}
	return s, nil
}

// Trunk returns the name of the published branch.
func (s *Service) Trunk() string {
	return s.trunk
}

// Snapshot is one version of a document as returned to callers.
type Snapshot struct {
	Key      content.Key
	Document content.Document
	// Revision is empty when the document has not been stored.
	Revision content.Revision
	// Default reports that Document is the key's default.
	Default bool
}
