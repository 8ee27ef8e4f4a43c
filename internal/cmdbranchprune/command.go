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

package cmdbranchprune

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/vidyalaya/cms/commands/util"
	"github.com/vidyalaya/cms/internal/errors"
	"github.com/vidyalaya/cms/internal/util/runner"
	"github.com/vidyalaya/cms/pkg/cms"
)

const (
	command = "cmdbranchprune"
	longMsg = `
cms branch prune [flags]

Deletes staging branches older than --older-than. Use it to clean up
branches abandoned by editors or left behind by failed saves.
`
)

func NewRunner(ctx context.Context, f *util.Factory) *Runner {
	r := &Runner{
		ctx:     ctx,
		factory: f,
	}
	c := &cobra.Command{
		Use:     "prune",
		Short:   "Deletes stale staging branches.",
		Long:    longMsg,
		Example: "cms branch prune --older-than 72h",
		Args:    cobra.NoArgs,
		PreRunE: r.preRunE,
		RunE:    r.runE,
	}
	c.Flags().DurationVar(&r.olderThan, "older-than", 24*time.Hour, "minimum age of the branches to delete")
	r.Command = c
	return r
}

func NewCommand(ctx context.Context, f *util.Factory) *cobra.Command {
	return NewRunner(ctx, f).Command
}

type Runner struct {
	ctx       context.Context
	factory   *util.Factory
	svc       *cms.Service
	olderThan time.Duration
	Command   *cobra.Command
}

func (r *Runner) preRunE(c *cobra.Command, _ []string) error {
	const op errors.Op = command + ".preRunE"
	svc, closeDrafts, err := r.factory.Service(r.ctx, nil)
	if err != nil {
		return runner.HandleError(c, runner.Wrap(errors.E(op, err)))
	}
	_ = closeDrafts()
	r.svc = svc
	return nil
}

func (r *Runner) runE(c *cobra.Command, _ []string) error {
	const op errors.Op = command + ".runE"
	pruned, err := r.svc.Prune(r.ctx, r.olderThan)
	for _, b := range pruned {
		fmt.Fprintf(c.OutOrStdout(), "%s deleted\n", b)
	}
	if err != nil {
		return runner.HandleError(c, runner.Wrap(errors.E(op, err)))
	}
	if len(pruned) == 0 {
		fmt.Fprintf(c.ErrOrStderr(), "no staging branches older than %s\n", r.olderThan)
	}
	return nil
}
