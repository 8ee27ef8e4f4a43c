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

package cmdserve

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/vidyalaya/cms/commands/util"
	"github.com/vidyalaya/cms/internal/errors"
	"github.com/vidyalaya/cms/internal/util/runner"
	"github.com/vidyalaya/cms/pkg/server"
	"k8s.io/klog/v2"
)

const (
	command = "cmdserve"
	longMsg = `
cms serve [flags]

Serves the content API until interrupted. On SIGINT or SIGTERM the server
stops accepting connections and waits up to server.shutdownGrace for
in-flight requests.
`
)

func NewRunner(ctx context.Context, f *util.Factory) *Runner {
	r := &Runner{
		ctx:     ctx,
		factory: f,
	}
	c := &cobra.Command{
		Use:     "serve",
		Short:   "Serves the content API.",
		Long:    longMsg,
		Example: "cms serve --config cms.yaml --listen :8080",
		Args:    cobra.NoArgs,
		RunE:    r.runE,
	}
	c.Flags().String("listen", "", "address to listen on, overriding server.listen")
	f.BindFlag("server.listen", c.Flags().Lookup("listen"))
	r.Command = c
	return r
}

func NewCommand(ctx context.Context, f *util.Factory) *cobra.Command {
	return NewRunner(ctx, f).Command
}

type Runner struct {
	ctx     context.Context
	factory *util.Factory
	Command *cobra.Command
}

func (r *Runner) runE(c *cobra.Command, _ []string) error {
	const op errors.Op = command + ".runE"
	cfg, err := r.factory.Config()
	if err != nil {
		return runner.HandleError(c, runner.Wrap(errors.E(op, err)))
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	svc, closeDrafts, err := r.factory.Service(r.ctx, reg)
	if err != nil {
		return runner.HandleError(c, runner.Wrap(errors.E(op, err)))
	}
	defer func() {
		if err := closeDrafts(); err != nil {
			klog.Warningf("cannot close draft store: %v", err)
		}
	}()

	ctx, stop := signal.NotifyContext(r.ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := server.New(server.Options{
		Service:  svc,
		Limiter:  cfg.NewLimiter(),
		Gatherer: reg,
	})
	if err := srv.ListenAndServe(ctx, cfg.Server.Listen, cfg.Server.ShutdownGrace); err != nil {
		return runner.HandleError(c, runner.Wrap(errors.E(op, err)))
	}
	return nil
}
