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

// Package github implements repository.Host on top of the GitHub REST API.
//
// Staging uses the Git data API (refs, trees, commits) so no clone is
// needed; merge requests are pull requests merged with the "merge" method.
package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/google/go-github/v48/github"
	"github.com/vidyalaya/cms/pkg/repository"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/oauth2"
	"k8s.io/klog/v2"
)

var tracer = otel.Tracer("github")

const (
	// DefaultTrunk is used when Options.Trunk is empty.
	DefaultTrunk = "main"

	blobMode    = "100644"
	mergeMethod = "merge"
)

type Options struct {
	Owner string
	Repo  string
	// Token is a personal access or installation token. Requests are
	// anonymous when empty.
	Token string
	// BaseURL overrides https://api.github.com/ (GitHub Enterprise, tests).
	BaseURL          string
	Trunk            string
	UserInfoProvider repository.UserInfoProvider
	// HTTPClient is used instead of an oauth2 client when set.
	HTTPClient *http.Client
}

// Host is a repository.Host backed by a GitHub repository.
type Host struct {
	client           *github.Client
	owner            string
	repo             string
	trunk            string
	userInfoProvider repository.UserInfoProvider
}

var _ repository.Host = &Host{}

func NewHost(ctx context.Context, opts Options) (*Host, error) {
	if opts.Owner == "" || opts.Repo == "" {
		return nil, fmt.Errorf("github owner and repository are required")
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
		if opts.Token != "" {
			ts := oauth2.StaticTokenSource(
				&oauth2.Token{AccessToken: opts.Token},
			)
			httpClient = oauth2.NewClient(ctx, ts)
		}
	}

	client := github.NewClient(httpClient)
	if opts.BaseURL != "" {
		base := opts.BaseURL
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		u, err := url.Parse(base)
		if err != nil {
			return nil, fmt.Errorf("invalid github base URL %q: %w", opts.BaseURL, err)
		}
		client.BaseURL = u
	}

	trunk := opts.Trunk
	if trunk == "" {
		trunk = DefaultTrunk
	}
	return &Host{
		client:           client,
		owner:            opts.Owner,
		repo:             opts.Repo,
		trunk:            trunk,
		userInfoProvider: opts.UserInfoProvider,
	}, nil
}

func (h *Host) Trunk() string {
	return h.trunk
}

func statusCode(err error) int {
	var errResp *github.ErrorResponse
	if errors.As(err, &errResp) && errResp.Response != nil {
		return errResp.Response.StatusCode
	}
	return 0
}

func headRef(branch string) string {
	return "heads/" + branch
}

func (h *Host) ResolveBranch(ctx context.Context, name string) (repository.Ref, error) {
	ctx, span := tracer.Start(ctx, "Host::ResolveBranch", trace.WithAttributes(attribute.String("branch", name)))
	defer span.End()

	sha, err := h.branchSHA(ctx, name)
	if err != nil {
		return repository.Ref{}, err
	}
	return h.toRef(ctx, name, sha)
}

func (h *Host) branchSHA(ctx context.Context, name string) (string, error) {
	ref, _, err := h.client.Git.GetRef(ctx, h.owner, h.repo, headRef(name))
	if err != nil {
		if statusCode(err) == http.StatusNotFound {
			return "", fmt.Errorf("%w: %s", repository.ErrBranchNotFound, name)
		}
		return "", fmt.Errorf("cannot resolve branch %q: %w", name, err)
	}
	return ref.GetObject().GetSHA(), nil
}

func (h *Host) toRef(ctx context.Context, name, sha string) (repository.Ref, error) {
	commit, _, err := h.client.Git.GetCommit(ctx, h.owner, h.repo, sha)
	if err != nil {
		return repository.Ref{}, fmt.Errorf("cannot get commit %s of branch %q: %w", sha, name, err)
	}
	return repository.Ref{
		Name:    name,
		Commit:  sha,
		Updated: commit.GetCommitter().GetDate(),
	}, nil
}

func (h *Host) ListBranches(ctx context.Context, prefix string) ([]repository.Ref, error) {
	ctx, span := tracer.Start(ctx, "Host::ListBranches", trace.WithAttributes(attribute.String("prefix", prefix)))
	defer span.End()

	opts := &github.ReferenceListOptions{
		Ref:         headRef(prefix),
		ListOptions: github.ListOptions{PerPage: 100},
	}
	var result []repository.Ref
	for {
		refs, resp, err := h.client.Git.ListMatchingRefs(ctx, h.owner, h.repo, opts)
		if err != nil {
			return nil, fmt.Errorf("cannot list branches: %w", err)
		}
		for _, ref := range refs {
			name := strings.TrimPrefix(ref.GetRef(), "refs/heads/")
			if !strings.HasPrefix(name, prefix) {
				continue
			}
			r, err := h.toRef(ctx, name, ref.GetObject().GetSHA())
			if err != nil {
				klog.Warningf("Skipping branch %q: %v", name, err)
				continue
			}
			result = append(result, r)
		}
		if resp == nil || resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

func (h *Host) CreateBranch(ctx context.Context, name, commit string) error {
	ctx, span := tracer.Start(ctx, "Host::CreateBranch", trace.WithAttributes(attribute.String("branch", name)))
	defer span.End()

	ref := &github.Reference{
		Ref:    github.String("refs/heads/" + name),
		Object: &github.GitObject{SHA: github.String(commit)},
	}
	if _, _, err := h.client.Git.CreateRef(ctx, h.owner, h.repo, ref); err != nil {
		if statusCode(err) == http.StatusUnprocessableEntity && strings.Contains(err.Error(), "already exists") {
			return fmt.Errorf("%w: %s", repository.ErrBranchExists, name)
		}
		return fmt.Errorf("cannot create branch %q: %w", name, err)
	}
	klog.V(2).Infof("created branch %s at %s", name, commit)
	return nil
}

// UpdateBranch checks the expected tip and then moves the branch with a
// non-forced update, so GitHub rejects anything but a fast-forward.
func (h *Host) UpdateBranch(ctx context.Context, name, commit, expected string) error {
	ctx, span := tracer.Start(ctx, "Host::UpdateBranch", trace.WithAttributes(attribute.String("branch", name)))
	defer span.End()

	current, err := h.branchSHA(ctx, name)
	if err != nil {
		return err
	}
	if expected != "" && current != expected {
		return fmt.Errorf("%w: branch %q is at %s, expected %s", repository.ErrStaleReference, name, current, expected)
	}
	ref := &github.Reference{
		Ref:    github.String("refs/heads/" + name),
		Object: &github.GitObject{SHA: github.String(commit)},
	}
	if _, _, err := h.client.Git.UpdateRef(ctx, h.owner, h.repo, ref, expected == ""); err != nil {
		if statusCode(err) == http.StatusUnprocessableEntity {
			return fmt.Errorf("%w: branch %q: %v", repository.ErrStaleReference, name, err)
		}
		return fmt.Errorf("cannot update branch %q: %w", name, err)
	}
	return nil
}

func (h *Host) DeleteBranch(ctx context.Context, name string) error {
	ctx, span := tracer.Start(ctx, "Host::DeleteBranch", trace.WithAttributes(attribute.String("branch", name)))
	defer span.End()

	if name == h.trunk {
		return fmt.Errorf("cannot delete trunk branch %q", name)
	}
	if _, err := h.client.Git.DeleteRef(ctx, h.owner, h.repo, headRef(name)); err != nil {
		switch statusCode(err) {
		case http.StatusNotFound, http.StatusUnprocessableEntity:
			return fmt.Errorf("%w: %s", repository.ErrBranchNotFound, name)
		}
		return fmt.Errorf("cannot delete branch %q: %w", name, err)
	}
	klog.V(2).Infof("deleted branch %s", name)
	return nil
}

func (h *Host) resolveCommit(ctx context.Context, rev string) (string, error) {
	if isCommitHash(rev) {
		return rev, nil
	}
	return h.branchSHA(ctx, rev)
}

func isCommitHash(s string) bool {
	if len(s) != 40 {
		return false
	}
	for _, r := range s {
		if !strings.ContainsRune("0123456789abcdef", r) {
			return false
		}
	}
	return true
}

func (h *Host) CommitFile(ctx context.Context, req repository.CommitRequest) (string, error) {
	ctx, span := tracer.Start(ctx, "Host::CommitFile", trace.WithAttributes(attribute.String("path", req.Path)))
	defer span.End()

	parentSHA, err := h.resolveCommit(ctx, req.Parent)
	if err != nil {
		return "", err
	}
	parent, _, err := h.client.Git.GetCommit(ctx, h.owner, h.repo, parentSHA)
	if err != nil {
		return "", fmt.Errorf("cannot get parent commit %s: %w", parentSHA, err)
	}

	entry := &github.TreeEntry{
		Path: github.String(strings.Trim(req.Path, "/")),
		Mode: github.String(blobMode),
		Type: github.String("blob"),
	}
	// An entry without SHA and content deletes the path.
	if !req.Remove {
		entry.Content = github.String(string(req.Contents))
	}
	tree, _, err := h.client.Git.CreateTree(ctx, h.owner, h.repo, parent.GetTree().GetSHA(), []*github.TreeEntry{entry})
	if err != nil {
		return "", fmt.Errorf("cannot create tree for %q: %w", req.Path, err)
	}

	commit := &github.Commit{
		Message: github.String(req.Message),
		Tree:    &github.Tree{SHA: tree.SHA},
		Parents: []*github.Commit{{SHA: github.String(parentSHA)}},
	}
	author := req.Author
	if author == nil && h.userInfoProvider != nil {
		author = h.userInfoProvider.GetUserInfo(ctx)
	}
	if author != nil {
		commit.Author = &github.CommitAuthor{
			Name:  github.String(author.Name),
			Email: github.String(author.Email),
		}
	}
	created, _, err := h.client.Git.CreateCommit(ctx, h.owner, h.repo, commit)
	if err != nil {
		return "", fmt.Errorf("cannot commit %q: %w", req.Path, err)
	}
	return created.GetSHA(), nil
}

func (h *Host) ReadFile(ctx context.Context, rev, path string) ([]byte, error) {
	ctx, span := tracer.Start(ctx, "Host::ReadFile", trace.WithAttributes(attribute.String("path", path)))
	defer span.End()

	file, _, _, err := h.client.Repositories.GetContents(ctx, h.owner, h.repo, strings.Trim(path, "/"), &github.RepositoryContentGetOptions{Ref: rev})
	if err != nil {
		if statusCode(err) == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %s", repository.ErrFileNotFound, path)
		}
		return nil, fmt.Errorf("cannot read %q at %s: %w", path, rev, err)
	}
	if file == nil {
		return nil, fmt.Errorf("%w: %s is a directory", repository.ErrFileNotFound, path)
	}
	contents, err := file.GetContent()
	if err != nil {
		return nil, fmt.Errorf("cannot decode %q: %w", path, err)
	}
	return []byte(contents), nil
}

func (h *Host) ListFiles(ctx context.Context, rev, dir string) ([]string, error) {
	ctx, span := tracer.Start(ctx, "Host::ListFiles", trace.WithAttributes(attribute.String("dir", dir)))
	defer span.End()

	_, entries, _, err := h.client.Repositories.GetContents(ctx, h.owner, h.repo, strings.Trim(dir, "/"), &github.RepositoryContentGetOptions{Ref: rev})
	if err != nil {
		if statusCode(err) == http.StatusNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("cannot list %q at %s: %w", dir, rev, err)
	}
	var files []string
	for _, e := range entries {
		if e.GetType() == "file" {
			files = append(files, e.GetPath())
		}
	}
	return files, nil
}

// OpenMergeRequest opens a pull request from head into base. An open pull
// request for the same branches, left behind by a failed merge, is reused.
func (h *Host) OpenMergeRequest(ctx context.Context, head, base, title string) (*repository.MergeRequest, error) {
	ctx, span := tracer.Start(ctx, "Host::OpenMergeRequest", trace.WithAttributes(attribute.String("head", head), attribute.String("base", base)))
	defer span.End()

	open, _, err := h.client.PullRequests.List(ctx, h.owner, h.repo, &github.PullRequestListOptions{
		State: "open",
		Head:  h.owner + ":" + head,
		Base:  base,
	})
	if err != nil {
		return nil, fmt.Errorf("cannot list pull requests for %s: %w", head, err)
	}
	if len(open) > 0 {
		pr := open[0]
		klog.Infof("reusing open pull request #%d (%s -> %s)", pr.GetNumber(), head, base)
		return toMergeRequest(pr, head, base, pr.GetTitle()), nil
	}

	pr, _, err := h.client.PullRequests.Create(ctx, h.owner, h.repo, &github.NewPullRequest{
		Title: github.String(title),
		Head:  github.String(head),
		Base:  github.String(base),
	})
	if err != nil {
		return nil, fmt.Errorf("cannot open pull request %s -> %s: %w", head, base, err)
	}
	klog.Infof("opened pull request #%d (%s -> %s)", pr.GetNumber(), head, base)
	return toMergeRequest(pr, head, base, title), nil
}

func toMergeRequest(pr *github.PullRequest, head, base, title string) *repository.MergeRequest {
	return &repository.MergeRequest{
		ID:     strconv.FormatInt(pr.GetID(), 10),
		Number: pr.GetNumber(),
		Head:   head,
		Base:   base,
		Title:  title,
		URL:    pr.GetHTMLURL(),
		State:  repository.MergeOpen,
	}
}

func (h *Host) Merge(ctx context.Context, mr *repository.MergeRequest) error {
	ctx, span := tracer.Start(ctx, "Host::Merge", trace.WithAttributes(attribute.Int("number", mr.Number)))
	defer span.End()

	result, _, err := h.client.PullRequests.Merge(ctx, h.owner, h.repo, mr.Number, mr.Title, &github.PullRequestOptions{
		MergeMethod: mergeMethod,
	})
	if err != nil {
		switch statusCode(err) {
		case http.StatusMethodNotAllowed, http.StatusConflict:
			return fmt.Errorf("%w: pull request #%d: %v", repository.ErrMergeConflict, mr.Number, err)
		}
		return fmt.Errorf("cannot merge pull request #%d: %w", mr.Number, err)
	}
	if !result.GetMerged() {
		return fmt.Errorf("%w: pull request #%d: %s", repository.ErrMergeConflict, mr.Number, result.GetMessage())
	}
	mr.State = repository.MergeMerged
	mr.Commit = result.GetSHA()
	klog.Infof("merged pull request #%d into %s at %s", mr.Number, mr.Base, mr.Commit)
	return nil
}
