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
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// GetDraft returns the editor's draft of key, or a NotFound error.
func (s *Service) GetDraft(ctx context.Context, key content.Key) (snap *Snapshot, err error) {
	const op errors.Op = "cms.getDraft"
	defer func(start time.Time) { s.metrics.observe("get_draft", start, err) }(time.Now())
	ctx, span := tracer.Start(ctx, "Service::GetDraft", trace.WithAttributes(attribute.String("key", string(key))))
	defer span.End()

	if err := key.Validate(); err != nil {
		return nil, errors.E(op, err)
	}
	doc, rev, err := s.drafts.Get(ctx, key)
	if err != nil {
		return nil, errors.E(op, err)
	}
	return &Snapshot{Key: key, Document: doc, Revision: rev}, nil
}

// PutDraft replaces the draft of key.
func (s *Service) PutDraft(ctx context.Context, key content.Key, doc content.Document, revision content.Revision) (snap *Snapshot, err error) {
	const op errors.Op = "cms.putDraft"
	defer func(start time.Time) { s.metrics.observe("put_draft", start, err) }(time.Now())
	ctx, span := tracer.Start(ctx, "Service::PutDraft", trace.WithAttributes(attribute.String("key", string(key))))
	defer span.End()

	if err := key.Validate(); err != nil {
		return nil, errors.E(op, err)
	}
	if doc == nil {
		return nil, errors.E(op, errors.Key(key), errors.MissingField("content"))
	}
	rev, err := s.drafts.Put(ctx, key, doc, revision)
	if err != nil {
		return nil, errors.E(op, err)
	}
	return &Snapshot{Key: key, Document: doc, Revision: rev}, nil
}

// UpdateDraftSection merges into one section of the draft. A key without
// a draft starts from its published document.
func (s *Service) UpdateDraftSection(ctx context.Context, u SectionUpdate) (snap *Snapshot, err error) {
	const op errors.Op = "cms.updateDraftSection"
	defer func(start time.Time) { s.metrics.observe("update_draft_section", start, err) }(time.Now())
	ctx, span := tracer.Start(ctx, "Service::UpdateDraftSection", trace.WithAttributes(attribute.String("key", string(u.Key))))
	defer span.End()

	if err := s.validateSectionUpdate(u); err != nil {
		return nil, errors.E(op, errors.Key(u.Key), err)
	}
	return s.updateSection(ctx, op, s.drafts, s.published, u)
}

// DeleteDraft drops the draft of key.
func (s *Service) DeleteDraft(ctx context.Context, key content.Key) (err error) {
	const op errors.Op = "cms.deleteDraft"
	defer func(start time.Time) { s.metrics.observe("delete_draft", start, err) }(time.Now())
	ctx, span := tracer.Start(ctx, "Service::DeleteDraft", trace.WithAttributes(attribute.String("key", string(key))))
	defer span.End()

	if err := key.Validate(); err != nil {
		return errors.E(op, err)
	}
	if err := s.drafts.Delete(ctx, key); err != nil {
		return errors.E(op, err)
	}
	return nil
}

// ListDrafts returns the keys that have a draft.
func (s *Service) ListDrafts(ctx context.Context) (keys []content.Key, err error) {
	const op errors.Op = "cms.listDrafts"
	defer func(start time.Time) { s.metrics.observe("list_drafts", start, err) }(time.Now())

	keys, err = s.drafts.List(ctx)
	if err != nil {
		return nil, errors.E(op, err)
	}
	return keys, nil
}
