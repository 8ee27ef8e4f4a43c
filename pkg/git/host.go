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
	"encoding/hex"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/storage"
	"github.com/google/uuid"
	"github.com/vidyalaya/cms/pkg/repository"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"k8s.io/klog/v2"
)

var tracer = otel.Tracer("git")

type MainBranchStrategy int

const (
	ErrorIfMissing   MainBranchStrategy = iota // ErrorIfMissing
	CreateIfMissing                            // CreateIfMissing
	SkipVerification                           // SkipVerification
)

func (s MainBranchStrategy) String() string {
	switch s {
	case ErrorIfMissing:
		return "ErrorIfMissing"
	case CreateIfMissing:
		return "CreateIfMissing"
	case SkipVerification:
		return "SkipVerification"
	default:
		return fmt.Sprintf("MainBranchStrategy(%d)", int(s))
	}
}

type Options struct {
	// Trunk is the branch published content lives on. Defaults to main.
	Trunk              BranchName
	UserInfoProvider   repository.UserInfoProvider
	MainBranchStrategy MainBranchStrategy
}

// Host is a repository.Host backed by a local bare repository.
type Host struct {
	name             string
	trunk            BranchName
	repo             *git.Repository
	userInfoProvider repository.UserInfoProvider

	// mutex makes check-then-set reference updates atomic and guards the
	// merge request table. Storer access is serialized by lockedStorer.
	mutex sync.Mutex

	mergeRequests map[string]*repository.MergeRequest
	nextNumber    int
}

var _ repository.Host = &Host{}

// Open opens (or creates) the bare repository at path. An empty path
// creates an in-memory repository.
func Open(ctx context.Context, path string, opts Options) (*Host, error) {
	ctx, span := tracer.Start(ctx, "OpenRepository", trace.WithAttributes(attribute.String("path", path)))
	defer span.End()

	repo, err := openRepository(path)
	if err != nil {
		return nil, fmt.Errorf("cannot open git repository %q: %w", path, err)
	}

	trunk := opts.Trunk
	if trunk == "" {
		trunk = DefaultTrunk
	}
	name := path
	if name == "" {
		name = "memory"
	}
	h := &Host{
		name:             name,
		trunk:            trunk,
		repo:             repo,
		userInfoProvider: opts.UserInfoProvider,
		mergeRequests:    map[string]*repository.MergeRequest{},
	}
	if err := h.verifyRepository(ctx, opts); err != nil {
		return nil, err
	}
	return h, nil
}

// Trunk returns the name of the branch merges target.
func (h *Host) Trunk() string {
	return string(h.trunk)
}

func (h *Host) verifyRepository(ctx context.Context, opts Options) error {
	if opts.MainBranchStrategy == SkipVerification {
		return nil
	}

	if _, err := h.repo.Reference(h.trunk.Ref(), false); err != nil {
		switch opts.MainBranchStrategy {
		case ErrorIfMissing:
			return fmt.Errorf("branch %q doesn't exist: %v", h.trunk, err)
		case CreateIfMissing:
			klog.Infof("Creating branch %s in repository %s", h.trunk, h.name)
			if err := h.createTrunk(ctx); err != nil {
				return fmt.Errorf("error creating main branch %q: %v", h.trunk, err)
			}
		default:
			return fmt.Errorf("unknown main branch strategy %q", opts.MainBranchStrategy.String())
		}
	}
	return nil
}

const (
	readmeContent       = "Published site content.\n"
	readmeName          = "README.md"
	initialCommitMessge = "Initial commit for trunk branch"
)

// createTrunk creates the trunk with a commit containing a README.md on the
// root of the repository.
func (h *Host) createTrunk(ctx context.Context) error {
	tb, err := newTreeBuilder(h.repo, plumbing.ZeroHash)
	if err != nil {
		return err
	}
	if err := tb.put(readmeName, []byte(readmeContent)); err != nil {
		return err
	}
	commit, err := tb.commit(ctx, initialCommitMessge, nil)
	if err != nil {
		return err
	}
	return h.CreateBranch(ctx, string(h.trunk), commit.String())
}

func (h *Host) ResolveBranch(ctx context.Context, name string) (repository.Ref, error) {
	_, span := tracer.Start(ctx, "Host::ResolveBranch", trace.WithAttributes(attribute.String("branch", name)))
	defer span.End()

	ref, err := h.reference(BranchName(name))
	if err != nil {
		return repository.Ref{}, err
	}
	return h.toRef(name, ref.Hash())
}

func (h *Host) reference(branch BranchName) (*plumbing.Reference, error) {
	ref, err := h.repo.Reference(branch.Ref(), true)
	switch {
	case err == nil:
		return ref, nil
	case errors.Is(err, plumbing.ErrReferenceNotFound):
		return nil, fmt.Errorf("%w: %s", repository.ErrBranchNotFound, branch)
	default:
		return nil, fmt.Errorf("cannot resolve branch %q: %w", branch, err)
	}
}

func (h *Host) toRef(name string, hash plumbing.Hash) (repository.Ref, error) {
	commit, err := h.repo.CommitObject(hash)
	if err != nil {
		return repository.Ref{}, fmt.Errorf("cannot resolve commit %s of branch %q: %w", hash, name, err)
	}
	return repository.Ref{
		Name:    name,
		Commit:  hash.String(),
		Updated: commit.Committer.When,
	}, nil
}

func (h *Host) ListBranches(ctx context.Context, prefix string) ([]repository.Ref, error) {
	_, span := tracer.Start(ctx, "Host::ListBranches", trace.WithAttributes(attribute.String("prefix", prefix)))
	defer span.End()

	refs, err := h.repo.References()
	if err != nil {
		return nil, fmt.Errorf("cannot list references: %w", err)
	}
	var result []repository.Ref
	if err := refs.ForEach(func(ref *plumbing.Reference) error {
		branch, ok := branchOf(ref.Name())
		if !ok || ref.Type() != plumbing.HashReference {
			return nil
		}
		if !strings.HasPrefix(string(branch), prefix) {
			return nil
		}
		r, err := h.toRef(string(branch), ref.Hash())
		if err != nil {
			klog.Warningf("Skipping branch %q: %v", branch, err)
			return nil
		}
		result = append(result, r)
		return nil
	}); err != nil {
		return nil, err
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

func (h *Host) CreateBranch(ctx context.Context, name, commit string) error {
	_, span := tracer.Start(ctx, "Host::CreateBranch", trace.WithAttributes(attribute.String("branch", name)))
	defer span.End()

	hash, err := h.resolveCommit(commit)
	if err != nil {
		return err
	}

	h.mutex.Lock()
	defer h.mutex.Unlock()

	refName := BranchName(name).Ref()
	if _, err := h.repo.Reference(refName, false); err == nil {
		return fmt.Errorf("%w: %s", repository.ErrBranchExists, name)
	} else if !errors.Is(err, plumbing.ErrReferenceNotFound) {
		return err
	}
	if err := h.repo.Storer.CheckAndSetReference(plumbing.NewHashReference(refName, hash), nil); err != nil {
		return fmt.Errorf("cannot create branch %q: %w", name, err)
	}
	klog.V(2).Infof("created branch %s at %s", name, hash)
	return nil
}

func (h *Host) UpdateBranch(ctx context.Context, name, commit, expected string) error {
	_, span := tracer.Start(ctx, "Host::UpdateBranch", trace.WithAttributes(attribute.String("branch", name)))
	defer span.End()

	hash, err := h.resolveCommit(commit)
	if err != nil {
		return err
	}

	h.mutex.Lock()
	defer h.mutex.Unlock()
	return h.updateBranchLocked(name, hash, expected)
}

func (h *Host) updateBranchLocked(name string, hash plumbing.Hash, expected string) error {
	current, err := h.reference(BranchName(name))
	if err != nil {
		return err
	}
	var old *plumbing.Reference
	if expected != "" {
		if current.Hash().String() != expected {
			return fmt.Errorf("%w: branch %q is at %s, expected %s", repository.ErrStaleReference, name, current.Hash(), expected)
		}
		old = current
	}
	ref := plumbing.NewHashReference(current.Name(), hash)
	if err := h.repo.Storer.CheckAndSetReference(ref, old); err != nil {
		if errors.Is(err, storage.ErrReferenceHasChanged) {
			return fmt.Errorf("%w: branch %q", repository.ErrStaleReference, name)
		}
		return fmt.Errorf("cannot update branch %q: %w", name, err)
	}
	return nil
}

func (h *Host) DeleteBranch(ctx context.Context, name string) error {
	_, span := tracer.Start(ctx, "Host::DeleteBranch", trace.WithAttributes(attribute.String("branch", name)))
	defer span.End()

	if BranchName(name) == h.trunk {
		return fmt.Errorf("cannot delete trunk branch %q", name)
	}

	h.mutex.Lock()
	defer h.mutex.Unlock()

	ref, err := h.reference(BranchName(name))
	if err != nil {
		return err
	}
	if err := h.repo.Storer.RemoveReference(ref.Name()); err != nil {
		return fmt.Errorf("cannot delete branch %q: %w", name, err)
	}
	for id, mr := range h.mergeRequests {
		if mr.Head == name {
			delete(h.mergeRequests, id)
		}
	}
	klog.V(2).Infof("deleted branch %s", name)
	return nil
}

func (h *Host) CommitFile(ctx context.Context, req repository.CommitRequest) (string, error) {
	ctx, span := tracer.Start(ctx, "Host::CommitFile", trace.WithAttributes(attribute.String("path", req.Path)))
	defer span.End()

	parent, err := h.resolveCommit(req.Parent)
	if err != nil {
		return "", err
	}
	tb, err := newTreeBuilder(h.repo, parent)
	if err != nil {
		return "", err
	}
	filePath := strings.Trim(req.Path, "/")
	if req.Remove {
		err = tb.remove(filePath)
	} else {
		err = tb.put(filePath, req.Contents)
	}
	if err != nil {
		return "", err
	}
	author := req.Author
	if author == nil && h.userInfoProvider != nil {
		author = h.userInfoProvider.GetUserInfo(ctx)
	}
	commit, err := tb.commit(ctx, req.Message, author)
	if err != nil {
		return "", fmt.Errorf("cannot commit %q: %w", req.Path, err)
	}
	return commit.String(), nil
}

func (h *Host) ReadFile(ctx context.Context, rev, filePath string) ([]byte, error) {
	_, span := tracer.Start(ctx, "Host::ReadFile", trace.WithAttributes(attribute.String("path", filePath)))
	defer span.End()

	tree, err := h.treeAt(rev)
	if err != nil {
		return nil, err
	}
	file, err := tree.File(strings.Trim(filePath, "/"))
	if err != nil {
		if errors.Is(err, object.ErrFileNotFound) || errors.Is(err, object.ErrDirectoryNotFound) || errors.Is(err, object.ErrEntryNotFound) {
			return nil, fmt.Errorf("%w: %s", repository.ErrFileNotFound, filePath)
		}
		return nil, fmt.Errorf("cannot read %q: %w", filePath, err)
	}
	contents, err := file.Contents()
	if err != nil {
		return nil, fmt.Errorf("cannot read %q: %w", filePath, err)
	}
	return []byte(contents), nil
}

func (h *Host) ListFiles(ctx context.Context, rev, dir string) ([]string, error) {
	_, span := tracer.Start(ctx, "Host::ListFiles", trace.WithAttributes(attribute.String("dir", dir)))
	defer span.End()

	tree, err := h.treeAt(rev)
	if err != nil {
		return nil, err
	}
	dir = strings.Trim(dir, "/")
	if dir != "" {
		tree, err = tree.Tree(dir)
		if errors.Is(err, object.ErrDirectoryNotFound) {
			return nil, nil
		} else if err != nil {
			return nil, fmt.Errorf("cannot read directory %q: %w", dir, err)
		}
	}
	var files []string
	for _, e := range tree.Entries {
		if e.Mode.IsFile() {
			files = append(files, path.Join(dir, e.Name))
		}
	}
	return files, nil
}

// resolveCommit accepts a branch name or a full commit hash.
func (h *Host) resolveCommit(rev string) (plumbing.Hash, error) {
	if isCommitHash(rev) {
		hash := plumbing.NewHash(rev)
		if _, err := h.repo.CommitObject(hash); err != nil {
			return plumbing.ZeroHash, fmt.Errorf("cannot resolve commit %s: %w", rev, err)
		}
		return hash, nil
	}
	ref, err := h.reference(BranchName(rev))
	if err != nil {
		return plumbing.ZeroHash, err
	}
	return ref.Hash(), nil
}

func (h *Host) treeAt(rev string) (*object.Tree, error) {
	hash, err := h.resolveCommit(rev)
	if err != nil {
		return nil, err
	}
	commit, err := h.repo.CommitObject(hash)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve commit %s: %w", hash, err)
	}
	return commit.Tree()
}

func isCommitHash(s string) bool {
	if len(s) != 40 {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}

func (h *Host) OpenMergeRequest(ctx context.Context, head, base, title string) (*repository.MergeRequest, error) {
	_, span := tracer.Start(ctx, "Host::OpenMergeRequest", trace.WithAttributes(attribute.String("head", head), attribute.String("base", base)))
	defer span.End()

	for _, b := range []string{head, base} {
		if _, err := h.reference(BranchName(b)); err != nil {
			return nil, err
		}
	}

	h.mutex.Lock()
	defer h.mutex.Unlock()

	for _, mr := range h.mergeRequests {
		if mr.State == repository.MergeOpen && mr.Head == head && mr.Base == base {
			klog.Infof("reusing open merge request #%d (%s -> %s)", mr.Number, head, base)
			copied := *mr
			return &copied, nil
		}
	}

	h.nextNumber++
	mr := &repository.MergeRequest{
		ID:     uuid.NewString(),
		Number: h.nextNumber,
		Head:   head,
		Base:   base,
		Title:  title,
		URL:    fmt.Sprintf("git://%s/merge-requests/%d", h.name, h.nextNumber),
		State:  repository.MergeOpen,
	}
	h.mergeRequests[mr.ID] = mr
	klog.Infof("opened merge request #%d (%s -> %s)", mr.Number, head, base)
	copied := *mr
	return &copied, nil
}

func (h *Host) Merge(ctx context.Context, mr *repository.MergeRequest) error {
	ctx, span := tracer.Start(ctx, "Host::Merge", trace.WithAttributes(attribute.Int("number", mr.Number)))
	defer span.End()

	h.mutex.Lock()
	defer h.mutex.Unlock()

	tracked, ok := h.mergeRequests[mr.ID]
	if !ok {
		return fmt.Errorf("merge request %q not found", mr.ID)
	}
	if tracked.State != repository.MergeOpen {
		return fmt.Errorf("merge request #%d is %s", tracked.Number, tracked.State)
	}

	base, err := h.reference(BranchName(tracked.Base))
	if err != nil {
		return err
	}
	head, err := h.reference(BranchName(tracked.Head))
	if err != nil {
		return err
	}

	message := fmt.Sprintf("Merge #%d from %s\n\n%s", tracked.Number, tracked.Head, tracked.Title)
	commit, err := h.mergeCommits(ctx, base.Hash(), head.Hash(), message)
	if err != nil {
		return err
	}
	if err := h.updateBranchLocked(tracked.Base, commit, base.Hash().String()); err != nil {
		return err
	}

	tracked.State = repository.MergeMerged
	tracked.Commit = commit.String()
	*mr = *tracked
	klog.Infof("merged #%d into %s at %s", tracked.Number, tracked.Base, commit)
	return nil
}
