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

package cmdbranchsave

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
	command = "cmdbranchsave"
	longMsg = `
cms branch save KEY FILE -m MESSAGE [flags]

Stages the JSON document in FILE as the new content of KEY on a fresh
staging branch and prints the branch name. The trunk is not changed until
the branch is published.

Args:

KEY:
  Content key to stage.

FILE:
  The full JSON document. Use - to read standard input.
`
)

func NewRunner(ctx context.Context, f *util.Factory) *Runner {
	r := &Runner{
		ctx:     ctx,
		factory: f,
	}
	c := &cobra.Command{
		Use:     "save KEY FILE",
		Short:   "Stages a document on a new staging branch.",
		Long:    longMsg,
		Example: "cms branch save home-content.json home.json -m 'Update hero'",
		Args:    cobra.ExactArgs(2),
		PreRunE: r.preRunE,
		RunE:    r.runE,
	}
	c.Flags().StringVarP(&r.message, "message", "m", "", "commit message")
	c.Flags().StringVar(&r.revision, "revision", "", "published revision the edit was based on")
	r.Command = c
	return r
}

func NewCommand(ctx context.Context, f *util.Factory) *cobra.Command {
	return NewRunner(ctx, f).Command
}

type Runner struct {
	ctx      context.Context
	factory  *util.Factory
	svc      *cms.Service
	message  string
	revision string
	Command  *cobra.Command
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
	doc, err := util.ReadDocument(c, args[1])
	if err != nil {
		return runner.HandleError(c, runner.Wrap(errors.E(op, err)))
	}
	result, err := r.svc.Save(r.ctx, cms.SaveRequest{
		Key:           content.Key(args[0]),
		Content:       doc,
		CommitMessage: r.message,
		Revision:      content.Revision(r.revision),
	})
	if err != nil {
		return runner.HandleError(c, runner.Wrap(errors.E(op, err)))
	}
	fmt.Fprintln(c.OutOrStdout(), result.Branch)
	return nil
}
