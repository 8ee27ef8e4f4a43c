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

package cmdcontentget

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/vidyalaya/cms/commands/util"
	"github.com/vidyalaya/cms/internal/errors"
	"github.com/vidyalaya/cms/internal/util/runner"
	"github.com/vidyalaya/cms/pkg/cms"
	"github.com/vidyalaya/cms/pkg/content"
)

const (
	command = "cmdcontentget"
	longMsg = `
cms content get KEY

Args:

KEY:
  Content key, e.g. guna-profiler-content.json. Keys that were never
  written print their default document.
`
)

func NewRunner(ctx context.Context, f *util.Factory) *Runner {
	r := &Runner{
		ctx:     ctx,
		factory: f,
	}
	c := &cobra.Command{
		Use:     "get KEY",
		Short:   "Prints the published document of a key.",
		Long:    longMsg,
		Example: "cms content get home-content.json",
		Args:    cobra.ExactArgs(1),
		PreRunE: r.preRunE,
		RunE:    r.runE,
	}
	c.Flags().BoolVar(&r.showRevision, "revision", false, "print the revision to stderr")
	r.Command = c
	return r
}

func NewCommand(ctx context.Context, f *util.Factory) *cobra.Command {
	return NewRunner(ctx, f).Command
}

type Runner struct {
	ctx          context.Context
	factory      *util.Factory
	svc          *cms.Service
	showRevision bool
	Command      *cobra.Command
}

func (r *Runner) preRunE(c *cobra.Command, _ []string) error {
	const op errors.Op = command + ".preRunE"
	svc, closeDrafts, err := r.factory.Service(r.ctx, nil)
	if err != nil {
		return runner.HandleError(c, runner.Wrap(errors.E(op, err)))
	}
	// Only the published store is read.
	_ = closeDrafts()
	r.svc = svc
	return nil
}

func (r *Runner) runE(c *cobra.Command, args []string) error {
	const op errors.Op = command + ".runE"
	snap, err := r.svc.Read(r.ctx, content.Key(args[0]))
	if err != nil {
		return runner.HandleError(c, runner.Wrap(errors.E(op, err)))
	}
	data, err := content.Encode(snap.Document)
	if err != nil {
		return runner.HandleError(c, runner.Wrap(errors.E(op, err)))
	}
	if r.showRevision {
		rev := string(snap.Revision)
		if snap.Default {
			rev = "(default)"
		}
		fmt.Fprintf(c.ErrOrStderr(), "revision: %s\n", rev)
	}
	_, err = c.OutOrStdout().Write(data)
	return err
}
