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

package cmdbranchpublish

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/vidyalaya/cms/commands/util"
	"github.com/vidyalaya/cms/internal/errors"
	"github.com/vidyalaya/cms/internal/util/runner"
	"github.com/vidyalaya/cms/pkg/cms"
)

const (
	command = "cmdbranchpublish"
	longMsg = `
cms branch publish BRANCH

Merges a staging branch into the trunk and deletes it.

Args:

BRANCH:
  Name of the staging branch, as printed by cms branch save.
`
)

func NewRunner(ctx context.Context, f *util.Factory) *Runner {
	r := &Runner{
		ctx:     ctx,
		factory: f,
	}
	c := &cobra.Command{
		Use:     "publish BRANCH",
		Short:   "Publishes a staging branch.",
		Long:    longMsg,
		Example: "cms branch publish cms/update-home-content-json-1700000000000",
		Args:    cobra.ExactArgs(1),
		PreRunE: r.preRunE,
		RunE:    r.runE,
	}
	r.Command = c
	return r
}

func NewCommand(ctx context.Context, f *util.Factory) *cobra.Command {
	return NewRunner(ctx, f).Command
}

type Runner struct {
	ctx     context.Context
	factory *util.Factory
	svc     *cms.Service
	Command *cobra.Command
}

func (r *Runner) preRunE(c *cobra.Command, _ []string) error {
	const op errors.Op = command + ".preRunE"
	svc, closeDrafts, err := r.factory.Service(r.ctx, nil)
	if err != nil {
		return runner.HandleError(c, runner.Wrap(errors.E(op, err)))
	}
	// Branch commands never touch drafts.
	_ = closeDrafts()
	r.svc = svc
	return nil
}

func (r *Runner) runE(c *cobra.Command, args []string) error {
	const op errors.Op = command + ".runE"
	result, err := r.svc.Publish(r.ctx, args[0])
	if err != nil {
		return runner.HandleError(c, runner.Wrap(errors.E(op, err)))
	}
	fmt.Fprintln(c.OutOrStdout(), result.Message)
	if !result.BranchDeleted {
		fmt.Fprintf(c.ErrOrStderr(), "warning: %s was merged but not deleted; cms branch prune removes it later\n", result.Branch)
	}
	return nil
}
