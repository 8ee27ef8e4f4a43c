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
	"time"

	"github.com/vidyalaya/cms/internal/errors"
	"github.com/vidyalaya/cms/pkg/content"
	"github.com/vidyalaya/cms/pkg/store"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"k8s.io/klog/v2"
)

// Read returns the published document for key, or the key's default when
// nothing is stored. Stored content that does not parse is reported as
// ContentCorrupt and never replaced.
func (s *Service) Read(ctx context.Context, key content.Key) (snap *Snapshot, err error) {
	const op errors.Op = "cms.read"
	defer func(start time.Time) { s.metrics.observe("read", start, err) }(time.Now())
	ctx, span := tracer.Start(ctx, "Service::Read", trace.WithAttributes(attribute.String("key", string(key))))
	defer span.End()

	if err := key.Validate(); err != nil {
		return nil, errors.E(op, err)
	}
	snap, err = readOrDefault(ctx, s.published, s.defaults, key)
	if err != nil {
		return nil, errors.E(op, err)
	}
	if snap.Default && s.materialize {
		rev, err := s.published.Create(ctx, key, snap.Document)
		switch {
		case err == nil:
			snap.Revision = rev
			snap.Default = false
		case errors.Is(err, errors.Conflict):
			// Written since the read; serve what is stored now.
			if snap, err = readOrDefault(ctx, s.published, s.defaults, key); err != nil {
				return nil, errors.E(op, err)
			}
		default:
			klog.Warningf("cannot materialize default document %s: %v", key, err)
		}
	}
	return snap, nil
}

func readOrDefault(ctx context.Context, st store.Store, defaults *content.Defaults, key content.Key) (*Snapshot, error) {
	doc, rev, err := st.Get(ctx, key)
	switch {
	case err == nil:
		return &Snapshot{Key: key, Document: doc, Revision: rev}, nil
	case errors.Is(err, errors.NotFound):
		return &Snapshot{Key: key, Document: defaults.Document(key), Default: true}, nil
	default:
		return nil, err
	}
}

// SectionUpdate replaces part of one section of a document.
type SectionUpdate struct {
	Key     content.Key
	Section string
	Data    map[string]interface{}
	// Merge defaults to the depth registered for the key.
	Merge    content.MergeDepth
	Revision content.Revision
}

func (s *Service) validateSectionUpdate(u SectionUpdate) error {
	var violations errors.Violations
	if err := u.Key.Validate(); err != nil {
		violations = append(violations, validationViolations(err)...)
	}
	if u.Section == "" {
		violations = append(violations, errors.Violation{Field: "section", Type: errors.Missing})
	}
	if u.Data == nil {
		violations = append(violations, errors.Violation{Field: "data", Type: errors.Missing})
	}
	if _, err := content.ParseMergeDepth(string(u.Merge)); err != nil {
		violations = append(violations, validationViolations(err)...)
	}
	if len(violations) > 0 {
		return &errors.ValidationError{Violations: violations}
	}
	return nil
}

func validationViolations(err error) errors.Violations {
	var v *errors.ValidationError
	if errors.As(err, &v) {
		return v.Violations
	}
	return errors.Violations{{Type: errors.Invalid, Reason: err.Error()}}
}

// checkRevision compares the revision supplied by a writer with the
// current one. Stored documents need a revision when RequireRevision is set;
// documents that were never stored have none to supply.
func (s *Service) checkRevision(supplied, current content.Revision) error {
	if supplied == "" {
		if s.requireRevision && current != "" {
			return errors.MissingField("revision")
		}
		return nil
	}
	if supplied != current {
		return errors.E(errors.Conflict, "stale revision "+string(supplied)+", document has changed")
	}
	return nil
}

// UpdateSection merges u.Data into one section of the published document
// and commits the result onto the trunk.
func (s *Service) UpdateSection(ctx context.Context, u SectionUpdate) (snap *Snapshot, err error) {
	const op errors.Op = "cms.updateSection"
	defer func(start time.Time) { s.metrics.observe("update_section", start, err) }(time.Now())
	ctx, span := tracer.Start(ctx, "Service::UpdateSection", trace.WithAttributes(attribute.String("key", string(u.Key))))
	defer span.End()

	if err := s.validateSectionUpdate(u); err != nil {
		return nil, errors.E(op, errors.Key(u.Key), err)
	}
	return s.updateSection(ctx, op, s.published, nil, u)
}

// updateSection merges into the document of st. A document missing from st
// starts from fallback's document when fallback is set, else the default.
func (s *Service) updateSection(ctx context.Context, op errors.Op, st, fallback store.Store, u SectionUpdate) (*Snapshot, error) {
	current, err := readOrDefault(ctx, st, s.defaults, u.Key)
	if err != nil {
		return nil, errors.E(op, err)
	}
	if current.Default && fallback != nil {
		base, err := readOrDefault(ctx, fallback, s.defaults, u.Key)
		if err != nil {
			return nil, errors.E(op, err)
		}
		current.Document = base.Document
	}
	if err := s.checkRevision(u.Revision, current.Revision); err != nil {
		return nil, errors.E(op, errors.Key(u.Key), err)
	}

	depth := u.Merge
	if depth == "" {
		depth = s.defaults.MergeDepth(u.Key)
	}
	merged, err := content.MergeSection(current.Document, u.Section, u.Data, depth)
	if err != nil {
		return nil, errors.E(op, errors.Key(u.Key), err)
	}
	rev, err := st.Put(ctx, u.Key, merged, u.Revision)
	if err != nil {
		return nil, errors.E(op, err)
	}
	klog.Infof("updated section %q of %s (%s merge)", u.Section, u.Key, depth)
	return &Snapshot{Key: u.Key, Document: merged, Revision: rev}, nil
}

// Reset rewrites the published document to the key's default.
func (s *Service) Reset(ctx context.Context, key content.Key, revision content.Revision) (snap *Snapshot, err error) {
	const op errors.Op = "cms.reset"
	defer func(start time.Time) { s.metrics.observe("reset", start, err) }(time.Now())
	ctx, span := tracer.Start(ctx, "Service::Reset", trace.WithAttributes(attribute.String("key", string(key))))
	defer span.End()

	if err := key.Validate(); err != nil {
		return nil, errors.E(op, err)
	}
	if s.requireRevision {
		current, err := readOrDefault(ctx, s.published, s.defaults, key)
		if err != nil {
			return nil, errors.E(op, err)
		}
		if err := s.checkRevision(revision, current.Revision); err != nil {
			return nil, errors.E(op, errors.Key(key), err)
		}
	}
	doc := s.defaults.Document(key)
	rev, err := s.published.Put(ctx, key, doc, revision)
	if err != nil {
		return nil, errors.E(op, err)
	}
	klog.Infof("reset %s to defaults", key)
	return &Snapshot{Key: key, Document: doc, Revision: rev}, nil
}
