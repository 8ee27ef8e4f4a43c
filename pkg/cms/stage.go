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
	"strconv"
	"strings"
	"time"

	"github.com/vidyalaya/cms/internal/errors"
	"github.com/vidyalaya/cms/pkg/content"
	"github.com/vidyalaya/cms/pkg/repository"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"k8s.io/klog/v2"
)

const (
	// BranchPrefix starts the name of every staging branch.
	BranchPrefix = "cms/"

	updatePrefix = BranchPrefix + "update-"
)

// BranchName derives the staging branch for a save of key at t. Two saves
// of one key within the same millisecond derive the same name; the second
// fails to create its branch.
func BranchName(key content.Key, t time.Time) string {
	return fmt.Sprintf("%s%s-%d", updatePrefix, key.Sanitized(), t.UnixMilli())
}

// IsStagingBranch reports whether name follows the staging branch naming.
func IsStagingBranch(name string) bool {
	return strings.HasPrefix(name, BranchPrefix) && len(name) > len(BranchPrefix)
}

// ParseBranchName splits a name produced by BranchName into the sanitized
// key and the creation time.
func ParseBranchName(name string) (string, time.Time, bool) {
	rest, ok := strings.CutPrefix(name, updatePrefix)
	if !ok {
		return "", time.Time{}, false
	}
	i := strings.LastIndex(rest, "-")
	if i <= 0 {
		return "", time.Time{}, false
	}
	ms, err := strconv.ParseInt(rest[i+1:], 10, 64)
	if err != nil {
		return "", time.Time{}, false
	}
	return rest[:i], time.UnixMilli(ms), true
}

// SaveRequest stages a full replacement of one document.
type SaveRequest struct {
	Key           content.Key
	Content       content.Document
	CommitMessage string
	// Revision, when set, must match the published document the branch
	// forks from.
	Revision content.Revision
}

func (r SaveRequest) validate() error {
	var violations errors.Violations
	if r.Key == "" {
		violations = append(violations, errors.Violation{Field: "file", Type: errors.Missing})
	} else if err := r.Key.Validate(); err != nil {
		violations = append(violations, validationViolations(err)...)
	}
	if r.Content == nil {
		violations = append(violations, errors.Violation{Field: "content", Type: errors.Missing})
	}
	if strings.TrimSpace(r.CommitMessage) == "" {
		violations = append(violations, errors.Violation{Field: "commitMessage", Type: errors.Missing})
	}
	if len(violations) > 0 {
		return &errors.ValidationError{Violations: violations}
	}
	return nil
}

// SaveResult identifies the staged change.
type SaveResult struct {
	Branch string
	Commit string
	// Revision is the revision the document will have once published.
	Revision content.Revision
}

// undoStack holds compensating actions of a multi-step operation.
type undoStack []undoAction

type undoAction struct {
	name string
	fn   func(ctx context.Context) error
}

func (u *undoStack) push(name string, fn func(ctx context.Context) error) {
	*u = append(*u, undoAction{name: name, fn: fn})
}

// run executes the actions in reverse order. Failures are logged and do
// not stop the remaining actions.
func (u undoStack) run(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)
	for i := len(u) - 1; i >= 0; i-- {
		if err := u[i].fn(ctx); err != nil {
			klog.Warningf("compensation %q failed: %v", u[i].name, err)
		} else {
			klog.V(2).Infof("compensation %q done", u[i].name)
		}
	}
}

// Save stages req as a new branch forked from the trunk tip holding one
// commit that writes the document. On failure every step already taken is
// undone and the error is a SaveFailed error wrapping the cause.
func (s *Service) Save(ctx context.Context, req SaveRequest) (result *SaveResult, err error) {
	const op errors.Op = "cms.save"
	defer func(start time.Time) { s.metrics.observe("save", start, err) }(time.Now())
	ctx, span := tracer.Start(ctx, "Service::Save", trace.WithAttributes(attribute.String("key", string(req.Key))))
	defer span.End()

	if err := req.validate(); err != nil {
		return nil, errors.E(op, errors.Key(req.Key), err)
	}
	data, err := content.Encode(req.Content)
	if err != nil {
		return nil, errors.E(op, errors.Key(req.Key), errors.Validation, err)
	}
	path := req.Key.Path(s.dir)

	tip, err := s.host.ResolveBranch(ctx, s.trunk)
	if err != nil {
		return nil, errors.E(op, errors.Key(req.Key), errors.SaveFailed, err)
	}
	if req.Revision != "" || s.requireRevision {
		current, err := s.host.ReadFile(ctx, tip.Commit, path)
		var currentRev content.Revision
		switch {
		case err == nil:
			currentRev = content.RevisionOf(current)
		case !errors.IsError(err, repository.ErrFileNotFound):
			return nil, errors.E(op, errors.Key(req.Key), errors.SaveFailed, err)
		}
		if err := s.checkRevision(req.Revision, currentRev); err != nil {
			return nil, errors.E(op, errors.Key(req.Key), err)
		}
	}

	branch := BranchName(req.Key, s.now())
	var undo undoStack
	defer func() {
		if err != nil {
			undo.run(ctx)
		}
	}()

	if err := s.host.CreateBranch(ctx, branch, tip.Commit); err != nil {
		return nil, errors.E(op, errors.Key(branch), errors.SaveFailed, err)
	}
	undo.push("delete branch "+branch, func(ctx context.Context) error {
		return s.host.DeleteBranch(ctx, branch)
	})

	commit, err := s.host.CommitFile(ctx, repository.CommitRequest{
		Parent:   tip.Commit,
		Path:     path,
		Contents: data,
		Message:  req.CommitMessage,
	})
	if err != nil {
		return nil, errors.E(op, errors.Key(branch), errors.SaveFailed, err)
	}
	if err := s.host.UpdateBranch(ctx, branch, commit, tip.Commit); err != nil {
		return nil, errors.E(op, errors.Key(branch), errors.SaveFailed, err)
	}

	klog.Infof("staged %s on %s at %s", req.Key, branch, commit)
	return &SaveResult{Branch: branch, Commit: commit, Revision: content.RevisionOf(data)}, nil
}
