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

// Embedded Git Host
//
// This package implements repository.Host on top of a bare git repository
// managed in-process with go-git, either on disk or in memory. It is the
// host used when no external service is configured, and the reference
// implementation the GitHub host is tested against.
//
// # Branching Strategy
//
// The repository has a single trunk (main by default) that every staging
// branch forks from and every merge targets. All references live under
// refs/heads/; there is no remote and no tracking branches, the repository
// itself is the upstream.
//
// Commits are written directly as objects (blob, trees, commit) without a
// worktree. References are only moved with compare-and-swap updates so two
// concurrent writers can never silently overwrite each other's branch tips.
//
// Merge requests are kept in memory. Merging creates a merge commit with the
// trunk tip as first parent and the staging branch tip as second parent; a
// file changed on both sides since their merge base is a conflict.
package git
