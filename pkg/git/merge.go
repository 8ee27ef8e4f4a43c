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

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/utils/merkletrie"
	"github.com/vidyalaya/cms/pkg/repository"
	"go.opentelemetry.io/otel/trace"
)

// mergeCommits creates a merge commit with parents [base, head]. Files
// changed on head since the merge base are applied on top of base; a file
// that base changed differently in the meantime is a conflict.
func (h *Host) mergeCommits(ctx context.Context, base, head plumbing.Hash, message string) (plumbing.Hash, error) {
	ctx, span := tracer.Start(ctx, "Host::mergeCommits", trace.WithAttributes())
	defer span.End()

	baseCommit, err := h.repo.CommitObject(base)
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("cannot resolve commit %s: %w", base, err)
	}
	headCommit, err := h.repo.CommitObject(head)
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("cannot resolve commit %s: %w", head, err)
	}

	var ancestorTree *object.Tree
	ancestors, err := headCommit.MergeBase(baseCommit)
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("cannot compute merge base of %s and %s: %w", base, head, err)
	}
	if len(ancestors) > 0 {
		if ancestorTree, err = ancestors[0].Tree(); err != nil {
			return plumbing.ZeroHash, err
		}
	}
	baseTree, err := baseCommit.Tree()
	if err != nil {
		return plumbing.ZeroHash, err
	}
	headTree, err := headCommit.Tree()
	if err != nil {
		return plumbing.ZeroHash, err
	}

	changes, err := object.DiffTree(ancestorTree, headTree)
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("cannot diff %s: %w", head, err)
	}

	tb, err := newTreeBuilder(h.repo, base)
	if err != nil {
		return plumbing.ZeroHash, err
	}
	var conflicts []string
	for _, change := range changes {
		action, err := change.Action()
		if err != nil {
			return plumbing.ZeroHash, err
		}
		name := change.To.Name
		if action == merkletrie.Delete {
			name = change.From.Name
		}

		ours := entryAt(baseTree, name)
		ancestor := entryAt(ancestorTree, name)
		var theirs *object.TreeEntry
		if action != merkletrie.Delete {
			theirs = &change.To.TreeEntry
		}

		switch {
		case sameEntry(ours, theirs):
			// Already applied on base.
		case sameEntry(ours, ancestor):
			if theirs == nil {
				err = tb.remove(name)
			} else {
				err = tb.putHash(name, theirs.Hash, theirs.Mode)
			}
			if err != nil {
				return plumbing.ZeroHash, err
			}
		default:
			conflicts = append(conflicts, name)
		}
	}
	if len(conflicts) > 0 {
		return plumbing.ZeroHash, fmt.Errorf("%w: %v changed on both sides", repository.ErrMergeConflict, conflicts)
	}

	return tb.commit(ctx, message, nil, head)
}

func entryAt(tree *object.Tree, name string) *object.TreeEntry {
	if tree == nil {
		return nil
	}
	e, err := tree.FindEntry(name)
	if err != nil {
		return nil
	}
	return e
}

func sameEntry(a, b *object.TreeEntry) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Hash == b.Hash && a.Mode == b.Mode
}
