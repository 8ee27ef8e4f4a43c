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

// Package repository defines the contract between the publish workflow and
// the version-control host that stores published content.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	ErrBranchNotFound = errors.New("branch not found")
	ErrBranchExists   = errors.New("branch already exists")
	ErrFileNotFound   = errors.New("file not found")
	ErrMergeConflict  = errors.New("merge conflict")
	// ErrStaleReference is returned by compare-and-swap reference updates
	// when the reference moved since it was read.
	ErrStaleReference = errors.New("reference changed concurrently")
)

// Ref is a named pointer into the history of the host.
type Ref struct {
	Name    string
	Commit  string
	Updated time.Time
}

func (r Ref) String() string {
	return fmt.Sprintf("%s@%s", r.Name, r.Commit)
}

// CommitRequest describes a commit changing exactly one file.
type CommitRequest struct {
	// Parent is the commit the new commit is created on top of.
	Parent string
	// Path is the slash separated file path inside the repository.
	Path     string
	Contents []byte
	// Remove deletes the file instead of writing Contents.
	Remove  bool
	Message string
	Author  *UserInfo
}

// MergeState is the lifecycle of a merge request on the host.
type MergeState string

const (
	MergeOpen   MergeState = "open"
	MergeMerged MergeState = "merged"
)

// MergeRequest is the host's record of intent to fold Head into Base.
type MergeRequest struct {
	ID     string
	Number int
	Head   string
	Base   string
	Title  string
	URL    string
	State  MergeState
	// Commit is the resulting commit on Base once merged.
	Commit string
}

// Host is a version-control host holding a trunk and staging branches.
// Branch names are relative ("main", "cms/update-k-1700000000000").
type Host interface {
	// ResolveBranch returns the tip of the named branch or ErrBranchNotFound.
	ResolveBranch(ctx context.Context, name string) (Ref, error)

	// ListBranches returns branches whose names start with prefix.
	ListBranches(ctx context.Context, prefix string) ([]Ref, error)

	// CreateBranch creates name pointing at commit, or fails with
	// ErrBranchExists.
	CreateBranch(ctx context.Context, name, commit string) error

	// UpdateBranch moves name from expected to commit. An empty expected
	// value forces the update.
	UpdateBranch(ctx context.Context, name, commit, expected string) error

	// DeleteBranch removes the branch or returns ErrBranchNotFound.
	DeleteBranch(ctx context.Context, name string) error

	// CommitFile writes a commit object without moving any branch.
	CommitFile(ctx context.Context, req CommitRequest) (string, error)

	// ReadFile returns the file at path in the given commit or branch, or
	// ErrFileNotFound.
	ReadFile(ctx context.Context, rev, path string) ([]byte, error)

	// ListFiles returns the paths of the files directly inside dir.
	ListFiles(ctx context.Context, rev, dir string) ([]string, error)

	// OpenMergeRequest opens a request to merge head into base.
	OpenMergeRequest(ctx context.Context, head, base, title string) (*MergeRequest, error)

	// Merge merges an open merge request, returning ErrMergeConflict when
	// the head cannot be merged cleanly.
	Merge(ctx context.Context, mr *MergeRequest) error
}

// UserInfo is the author recorded on commits.
type UserInfo struct {
	Name  string
	Email string
}

// UserInfoProvider extracts the acting user from a request context.
type UserInfoProvider interface {
	GetUserInfo(ctx context.Context) *UserInfo
}

type userInfoKey struct{}

// WithUserInfo returns a context carrying the acting user.
func WithUserInfo(ctx context.Context, ui *UserInfo) context.Context {
	return context.WithValue(ctx, userInfoKey{}, ui)
}

// ContextUserInfo is a UserInfoProvider reading the user stored by
// WithUserInfo.
type ContextUserInfo struct{}

func (ContextUserInfo) GetUserInfo(ctx context.Context) *UserInfo {
	ui, _ := ctx.Value(userInfoKey{}).(*UserInfo)
	return ui
}
