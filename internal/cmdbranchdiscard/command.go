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

package cmdbranchdiscard

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/vidyalaya/cms/commands/util"
	"github.com/vidyalaya/cms/internal/errors"
	"github.com/vidyalaya/cms/internal/util/runner"
	"github.com/vidyalaya/cms/pkg/cms"
)

const (
	command = "cmdbranchdiscard"
	longMsg = `
cms branch discard BRANCH ...

Deletes unpublished staging branches.

Args:

BRANCH:
  Name of a staging branch.
`
)

func NewRunner(ctx context.Context, f *util.Factory) *Runner {
	r := &Runner{
		ctx:     ctx,
		factory: f,
	}
	c := &cobra.Command{
		Use:     "discard BRANCH ...",
		Aliases: []string{"rm"},
		Short:   "Discards staging branches without publishing them.",
		Long:    longMsg,
		Example: "cms branch discard cms/update-home-content-json-1700000000000",
		Args:    cobra.MinimumNArgs(1),
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
	var messages []string
	for _, branch := range args {
		switch err := r.svc.Discard(r.ctx, branch); err {
		case nil:
			fmt.Fprintf(c.OutOrStdout(), "%s discarded\n", branch)
		default:
			messages = append(messages, errors.Cause(err).Error())
			fmt.Fprintf(c.ErrOrStderr(), "%s failed (%s)\n", branch, errors.Cause(err))
		}
	}
	if len(messages) > 0 {
		return runner.HandleError(c, runner.Wrap(errors.E(op, fmt.Errorf("errors:\n  %s", strings.Join(messages, "\n  ")))))
	}
	return nil
}
