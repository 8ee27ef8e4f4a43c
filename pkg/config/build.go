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

package config

import (
	"context"
	"os"

	"github.com/vidyalaya/cms/internal/errors"
	"github.com/vidyalaya/cms/pkg/content"
	"github.com/vidyalaya/cms/pkg/git"
	"github.com/vidyalaya/cms/pkg/github"
	"github.com/vidyalaya/cms/pkg/ratelimit"
	"github.com/vidyalaya/cms/pkg/repository"
	"github.com/vidyalaya/cms/pkg/store"
	"k8s.io/klog/v2"
)

// NewHost connects to the configured repository host.
func (c *Config) NewHost(ctx context.Context) (repository.Host, error) {
	const op errors.Op = "config.newHost"
	users := repository.ContextUserInfo{}
	switch c.Host.Kind {
	case HostGitHub:
		h, err := github.NewHost(ctx, github.Options{
			Owner:            c.GitHub.Owner,
			Repo:             c.GitHub.Repo,
			Token:            c.GitHub.Token,
			BaseURL:          c.GitHub.BaseURL,
			Trunk:            c.Content.Trunk,
			UserInfoProvider: users,
		})
		if err != nil {
			return nil, errors.E(op, errors.StorageUnavailable, err)
		}
		klog.Infof("using github repository %s/%s", c.GitHub.Owner, c.GitHub.Repo)
		return h, nil
	default:
		h, err := git.Open(ctx, c.Git.Path, git.Options{
			Trunk:              git.BranchName(c.Content.Trunk),
			UserInfoProvider:   users,
			MainBranchStrategy: git.CreateIfMissing,
		})
		if err != nil {
			return nil, errors.E(op, errors.StorageUnavailable, err)
		}
		if c.Git.Path == "" {
			klog.Warning("git.path is empty: published content is kept in memory and lost on exit")
		}
		return h, nil
	}
}

// NewDrafts opens the configured draft store. The returned close function
// is never nil.
func (c *Config) NewDrafts() (store.Store, func() error, error) {
	const op errors.Op = "config.newDrafts"
	noop := func() error { return nil }
	switch c.Drafts.Backend {
	case DraftsFile:
		s, err := store.NewFileStore(c.Drafts.Path)
		if err != nil {
			return nil, noop, errors.E(op, err)
		}
		return s, noop, nil
	case DraftsSQLite:
		s, err := store.OpenSQLStore(c.Drafts.Path)
		if err != nil {
			return nil, noop, errors.E(op, err)
		}
		return s, s.Close, nil
	default:
		return store.NewFileStoreFs(nil), noop, nil
	}
}

// NewDefaults returns the built-in defaults overlaid with the configured
// defaults file, if any.
func (c *Config) NewDefaults() (*content.Defaults, error) {
	const op errors.Op = "config.newDefaults"
	builtin := content.BuiltinDefaults()
	if c.Content.Defaults == "" {
		return builtin, nil
	}
	f, err := os.Open(c.Content.Defaults)
	if err != nil {
		return nil, errors.E(op, err)
	}
	defer f.Close()
	d, err := content.LoadDefaults(f)
	if err != nil {
		return nil, errors.E(op, errors.Validation, err)
	}
	return builtin.Overlay(d), nil
}

func (c *Config) NewLimiter() ratelimit.Limiter {
	return ratelimit.New(c.RateLimit.RPS, c.RateLimit.Burst)
}
