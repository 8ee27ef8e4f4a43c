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
	"strings"

	"github.com/spf13/cobra"
	"github.com/vidyalaya/cms/commands/util"
	"github.com/vidyalaya/cms/internal/cmdserve"
)

// NormalizeCommand will modify commands to be consistent, e.g. silencing errors
func NormalizeCommand(c ...*cobra.Command) {
	for i := range c {
		cmd := c[i]
		cmd.Short = strings.TrimSuffix(cmd.Short, ".")
		cmd.SilenceUsage = true
		NormalizeCommand(cmd.Commands()...)
	}
}

// GetCmsCommands returns the set of cms commands to be registered
func GetCmsCommands(ctx context.Context, f *util.Factory) []*cobra.Command {
	c := []*cobra.Command{
		cmdserve.NewCommand(ctx, f),
		GetContentCommand(ctx, f),
		GetBranchCommand(ctx, f),
	}

	// apply cross-cutting issues to commands
	NormalizeCommand(c...)
	return c
}

func usageRunE(cmd *cobra.Command, _ []string) error {
	h, err := cmd.Flags().GetBool("help")
	if err != nil {
		return err
	}
	if h {
		return cmd.Help()
	}
	return cmd.Usage()
}
