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

package commands

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/vidyalaya/cms/commands/util"
	"github.com/vidyalaya/cms/internal/cmdbranchdiscard"
	"github.com/vidyalaya/cms/internal/cmdbranchlist"
	"github.com/vidyalaya/cms/internal/cmdbranchprune"
	"github.com/vidyalaya/cms/internal/cmdbranchpublish"
	"github.com/vidyalaya/cms/internal/cmdbranchsave"
)

func GetBranchCommand(ctx context.Context, f *util.Factory) *cobra.Command {
	c := &cobra.Command{
		Use:     "branch",
		Aliases: []string{"branches"},
		Short:   "Stages, publishes and cleans up staging branches",
		Long: `Stages, publishes and cleans up staging branches.

A staging branch holds one edit of one document. Publishing merges it into
the trunk.`,
		RunE: usageRunE,
	}
	c.AddCommand(
		cmdbranchsave.NewCommand(ctx, f),
		cmdbranchpublish.NewCommand(ctx, f),
		cmdbranchdiscard.NewCommand(ctx, f),
		cmdbranchlist.NewCommand(ctx, f),
		cmdbranchprune.NewCommand(ctx, f),
	)
	return c
}
