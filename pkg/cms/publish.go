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
	"time"

	"github.com/vidyalaya/cms/internal/errors"
	"github.com/vidyalaya/cms/pkg/repository"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"k8s.io/klog/v2"
)

// PublishResult describes a merged staging branch.
type PublishResult struct {
	Branch       string
	MergeRequest *repository.MergeRequest
	// BranchDeleted is false when the merge succeeded but removing the
	// branch did not; Prune removes it later.
	BranchDeleted bool
	Message       string
}

// checkStagingBranch returns an InvalidBranch error unless branch is an
// existing staging branch.
func (s *Service) checkStagingBranch(ctx context.Context, op errors.Op, branch string) error {
	if branch == "" {
		return errors.E(op, errors.MissingField("branch"))
	}
	if !IsStagingBranch(branch) {
		return errors.E(op, errors.Key(branch), errors.InvalidBranch,
			fmt.Sprintf("branch %q is not a staging branch (must start with %q)", branch, BranchPrefix))
	}
	if _, err := s.host.ResolveBranch(ctx, branch); err != nil {
		if errors.IsError(err, repository.ErrBranchNotFound) {
			return errors.E(op, errors.Key(branch), errors.InvalidBranch, fmt.Sprintf("branch %q does not exist", branch))
		}
		return errors.E(op, errors.Key(branch), errors.StorageUnavailable, err)
	}
	return nil
}

// Publish merges a staging branch into the trunk and deletes the branch.
// A merge failure leaves the branch in place.
func (s *Service) Publish(ctx context.Context, branch string) (result *PublishResult, err error) {
	const op errors.Op = "cms.publish"
	defer func(start time.Time) { s.metrics.observe("publish", start, err) }(time.Now())
	ctx, span := tracer.Start(ctx, "Service::Publish", trace.WithAttributes(attribute.String("branch", branch)))
	defer span.End()

	if err := s.checkStagingBranch(ctx, op, branch); err != nil {
		return nil, err
	}

	mr, err := s.host.OpenMergeRequest(ctx, branch, s.trunk, fmt.Sprintf("Publish %s", branch))
	if err != nil {
		return nil, errors.E(op, errors.Key(branch), errors.PublishFailed, err)
	}
	if err := s.host.Merge(ctx, mr); err != nil {
		return nil, errors.E(op, errors.Key(branch), errors.PublishFailed, err)
	}

	result = &PublishResult{
		Branch:        branch,
		MergeRequest:  mr,
		BranchDeleted: true,
		Message:       fmt.Sprintf("Published %s to %s", branch, s.trunk),
	}
	if err := s.host.DeleteBranch(ctx, branch); err != nil {
		klog.Warningf("merged %s but could not delete it: %v", branch, err)
		result.BranchDeleted = false
	}
	klog.Infof("published %s (#%d) at %s", branch, mr.Number, mr.Commit)
	return result, nil
}

// Discard deletes an unpublished staging branch.
func (s *Service) Discard(ctx context.Context, branch string) (err error) {
	const op errors.Op = "cms.discard"
	defer func(start time.Time) { s.metrics.observe("discard", start, err) }(time.Now())
	ctx, span := tracer.Start(ctx, "Service::Discard", trace.WithAttributes(attribute.String("branch", branch)))
	defer span.End()

	if err := s.checkStagingBranch(ctx, op, branch); err != nil {
		return err
	}
	if err := s.host.DeleteBranch(ctx, branch); err != nil {
		if errors.IsError(err, repository.ErrBranchNotFound) {
			return errors.E(op, errors.Key(branch), errors.InvalidBranch, err)
		}
		return errors.E(op, errors.Key(branch), errors.StorageUnavailable, err)
	}
	klog.Infof("discarded %s", branch)
	return nil
}

// Branch is a staging branch waiting to be published.
type Branch struct {
	Name   string
	Commit string
	// Key is the sanitized content key the branch was named after.
	Key string
	// Created comes from the branch name; Updated is the tip commit time.
	Created time.Time
	Updated time.Time
}

// Age is the time since the branch was created, or last updated when the
// name carries no timestamp.
func (b Branch) Age(now time.Time) time.Duration {
	if !b.Created.IsZero() {
		return now.Sub(b.Created)
	}
	return now.Sub(b.Updated)
}

// Branches lists the staging branches.
func (s *Service) Branches(ctx context.Context) (branches []Branch, err error) {
	const op errors.Op = "cms.branches"
	defer func(start time.Time) { s.metrics.observe("branches", start, err) }(time.Now())
	ctx, span := tracer.Start(ctx, "Service::Branches")
	defer span.End()

	refs, err := s.host.ListBranches(ctx, BranchPrefix)
	if err != nil {
		return nil, errors.E(op, errors.StorageUnavailable, err)
	}
	for _, ref := range refs {
		b := Branch{Name: ref.Name, Commit: ref.Commit, Updated: ref.Updated}
		if key, created, ok := ParseBranchName(ref.Name); ok {
			b.Key = key
			b.Created = created
		}
		branches = append(branches, b)
	}
	return branches, nil
}

// Prune deletes staging branches older than olderThan and returns their
// names. Branches left behind by abandoned edits or failed publishes are
// removed this way.
func (s *Service) Prune(ctx context.Context, olderThan time.Duration) (pruned []string, err error) {
	const op errors.Op = "cms.prune"
	defer func(start time.Time) { s.metrics.observe("prune", start, err) }(time.Now())
	ctx, span := tracer.Start(ctx, "Service::Prune")
	defer span.End()

	if olderThan <= 0 {
		return nil, errors.E(op, errors.InvalidField("olderThan", olderThan.String(), "must be positive"))
	}
	branches, err := s.Branches(ctx)
	if err != nil {
		return nil, errors.E(op, err)
	}
	now := s.now()
	for _, b := range branches {
		if b.Age(now) < olderThan {
			continue
		}
		if err := s.host.DeleteBranch(ctx, b.Name); err != nil {
			if errors.IsError(err, repository.ErrBranchNotFound) {
				continue
			}
			return pruned, errors.E(op, errors.Key(b.Name), errors.StorageUnavailable, err)
		}
		klog.Infof("pruned %s (age %s)", b.Name, b.Age(now).Round(time.Second))
		pruned = append(pruned, b.Name)
	}
	return pruned, nil
}
