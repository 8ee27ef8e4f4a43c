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

package cmdcontentset

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/vidyalaya/cms/commands/util"
	"github.com/vidyalaya/cms/internal/errors"
	"github.com/vidyalaya/cms/internal/util/runner"
	"github.com/vidyalaya/cms/pkg/cms"
	"github.com/vidyalaya/cms/pkg/content"
)

const (
	command = "cmdcontentset"
	longMsg = `
cms content set-section KEY SECTION FILE [flags]

Merges the JSON object in FILE into SECTION of the published document and
prints the result.

Args:

KEY:
  Content key to update.

SECTION:
  Top-level field of the document, e.g. hero.

FILE:
  JSON object to merge into the section. Use - to read standard input.
`
)

func NewRunner(ctx context.Context, f *util.Factory) *Runner {
	r := &Runner{
		ctx:     ctx,
		factory: f,
	}
	c := &cobra.Command{
		Use:     "set-section KEY SECTION FILE",
		Short:   "Updates one section of a published document.",
		Long:    longMsg,
		Example: `echo '{"title":"Namaste"}' | cms content set-section home-content.json hero -`,
		Args:    cobra.ExactArgs(3),
		PreRunE: r.preRunE,
		RunE:    r.runE,
	}
	c.Flags().StringVar(&r.merge, "merge", "", `merge depth, "shallow" or "deep" (default: the key's registered depth)`)
	c.Flags().StringVar(&r.revision, "revision", "", "revision the document must currently have")
	c.Flags().BoolVar(&r.draft, "draft", false, "update the draft instead of the published document")
	r.Command = c
	return r
}

func NewCommand(ctx context.Context, f *util.Factory) *cobra.Command {
	return NewRunner(ctx, f).Command
}

type Runner struct {
	ctx         context.Context
	factory     *util.Factory
	svc         *cms.Service
	closeDrafts func() error
	merge       string
	revision    string
	draft       bool
	Command     *cobra.Command
}

func (r *Runner) preRunE(c *cobra.Command, _ []string) error {
	const op errors.Op = command + ".preRunE"
	svc, closeDrafts, err := r.factory.Service(r.ctx, nil)
	if err != nil {
		return runner.HandleError(c, runner.Wrap(errors.E(op, err)))
	}
	r.svc = svc
	r.closeDrafts = closeDrafts
	return nil
}

func (r *Runner) runE(c *cobra.Command, args []string) error {
	const op errors.Op = command + ".runE"
	defer func() { _ = r.closeDrafts() }()

	data, err := util.ReadDocument(c, args[2])
	if err != nil {
		return runner.HandleError(c, runner.Wrap(errors.E(op, err)))
	}
	u := cms.SectionUpdate{
		Key:      content.Key(args[0]),
		Section:  args[1],
		Data:     data,
		Merge:    content.MergeDepth(r.merge),
		Revision: content.Revision(r.revision),
	}
	update := r.svc.UpdateSection
	if r.draft {
		update = r.svc.UpdateDraftSection
	}
	snap, err := update(r.ctx, u)
	if err != nil {
		return runner.HandleError(c, runner.Wrap(errors.E(op, err)))
	}
	out, err := content.Encode(snap.Document)
	if err != nil {
		return runner.HandleError(c, runner.Wrap(errors.E(op, err)))
	}
	_, err = c.OutOrStdout().Write(out)
	return err
}
