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

package cmdbranchlist

import (
	"context"
	"sort"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/vidyalaya/cms/commands/util"
	"github.com/vidyalaya/cms/internal/errors"
	"github.com/vidyalaya/cms/internal/util/runner"
	"github.com/vidyalaya/cms/pkg/cms"
)

const (
	command = "cmdbranchlist"
	longMsg = `
cms branch list

Lists staging branches that have not been published or discarded.
`
)

func NewRunner(ctx context.Context, f *util.Factory) *Runner {
	r := &Runner{
		ctx:     ctx,
		factory: f,
		now:     time.Now,
	}
	c := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "Lists staging branches.",
		Long:    longMsg,
		Example: "cms branch list",
		Args:    cobra.NoArgs,
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
	now     func() time.Time
	Command *cobra.Command
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
	branches, err := r.svc.Branches(r.ctx)
	if err != nil {
		return runner.HandleError(c, runner.Wrap(errors.E(op, err)))
	}
	sort.Slice(branches, func(i, j int) bool { return branches[i].Name < branches[j].Name })
	renderBranchesAsTable(c, branches, r.now())
	return nil
}

func renderBranchesAsTable(c *cobra.Command, branches []cms.Branch, now time.Time) {
	t := table.NewWriter()
	t.SetOutputMirror(c.OutOrStdout())
	t.AppendHeader(table.Row{"BRANCH", "KEY", "AGE", "COMMIT"})
	for _, b := range branches {
		commit := b.Commit
		if len(commit) > 12 {
			commit = commit[:12]
		}
		t.AppendRow([]interface{}{
			b.Name,
			b.Key,
			b.Age(now).Round(time.Second).String(),
			commit,
		})
	}
	t.AppendSeparator()
	t.Render()
}
