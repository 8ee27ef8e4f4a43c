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

package util

import (
	"context"
	"flag"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/vidyalaya/cms/pkg/cms"
	"github.com/vidyalaya/cms/pkg/config"
	"k8s.io/klog/v2"
)

// Factory builds the configuration and the workflow service for commands.
type Factory struct {
	ConfigFile string

	bindings []config.FlagBinding
	cfg      *config.Config
}

// NewFactory registers --config and the klog flags on cmd.
func NewFactory(cmd *cobra.Command) *Factory {
	f := &Factory{}
	cmd.PersistentFlags().StringVar(&f.ConfigFile, "config", "",
		"path to the configuration file (default ./cms.yaml if present)")
	fs := flag.NewFlagSet("klog", flag.ContinueOnError)
	klog.InitFlags(fs)
	cmd.PersistentFlags().AddGoFlagSet(fs)
	return f
}

// BindFlag makes flag override the configuration key when it is set.
// Bindings must be made before the first call to Config.
func (f *Factory) BindFlag(key string, flag *pflag.Flag) {
	f.bindings = append(f.bindings, config.FlagBinding{Key: key, Flag: flag})
}

// Config loads the configuration once.
func (f *Factory) Config() (*config.Config, error) {
	if f.cfg != nil {
		return f.cfg, nil
	}
	cfg, err := config.Load(f.ConfigFile, f.bindings...)
	if err != nil {
		return nil, err
	}
	f.cfg = cfg
	return cfg, nil
}

// Service builds the workflow service the same way for every command.
// Metrics are registered with reg when it is non-nil. The returned close
// function releases the draft store.
func (f *Factory) Service(ctx context.Context, reg prometheus.Registerer) (*cms.Service, func() error, error) {
	cfg, err := f.Config()
	if err != nil {
		return nil, nil, err
	}
	host, err := cfg.NewHost(ctx)
	if err != nil {
		return nil, nil, err
	}
	defaults, err := cfg.NewDefaults()
	if err != nil {
		return nil, nil, err
	}
	drafts, closeDrafts, err := cfg.NewDrafts()
	if err != nil {
		return nil, nil, err
	}
	svc, err := cms.NewService(cms.Options{
		Host:                host,
		Trunk:               cfg.Content.Trunk,
		ContentDir:          cfg.Content.Dir,
		Drafts:              drafts,
		Defaults:            defaults,
		RequireRevision:     cfg.Content.RequireRevision,
		MaterializeDefaults: cfg.Content.MaterializeDefaults,
		Metrics:             cms.NewMetrics(reg),
	})
	if err != nil {
		_ = closeDrafts()
		return nil, nil, err
	}
	return svc, closeDrafts, nil
}
