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
	"github.com/vidyalaya/cms/internal/cmdcontentget"
	"github.com/vidyalaya/cms/internal/cmdcontentreset"
	"github.com/vidyalaya/cms/internal/cmdcontentset"
)

func GetContentCommand(ctx context.Context, f *util.Factory) *cobra.Command {
	c := &cobra.Command{
		Use:   "content",
		Short: "Reads and edits published content documents",
		Long: `Reads and edits published content documents.

Edits made here are committed straight to the trunk. Use cms branch to stage
an edit for review first.`,
		RunE: usageRunE,
	}
	c.AddCommand(
		cmdcontentget.NewCommand(ctx, f),
		cmdcontentreset.NewCommand(ctx, f),
		cmdcontentset.NewCommand(ctx, f),
	)
	return c
}
