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
	"strings"

	"github.com/go-git/go-git/v5/plumbing"
)

// DefaultTrunk is used when no trunk branch is configured.
const DefaultTrunk BranchName = "main"

// BranchName is a short branch name such as "main" or
// "cms/update-k-1700000000000".
type BranchName string

// Ref returns the full reference name, refs/heads/<name>.
func (b BranchName) Ref() plumbing.ReferenceName {
	return plumbing.NewBranchReferenceName(string(b))
}

// branchOf reports the branch a reference points at, or false for tags,
// remotes and symbolic names.
func branchOf(n plumbing.ReferenceName) (BranchName, bool) {
	if !n.IsBranch() {
		return "", false
	}
	return BranchName(strings.TrimPrefix(n.String(), "refs/heads/")), true
}
