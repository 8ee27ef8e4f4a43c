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

// Package config loads the service configuration from a YAML file and
// CMS_ prefixed environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/vidyalaya/cms/internal/errors"
)

const (
	// EnvPrefix prefixes every environment override, e.g. CMS_GITHUB_TOKEN.
	EnvPrefix = "CMS"
	// DefaultName is the config file looked up in the working directory
	// when no file is given.
	DefaultName = "cms"
)

type HostKind string

const (
	HostGit    HostKind = "git"
	HostGitHub HostKind = "github"
)

type DraftBackend string

const (
	DraftsMemory DraftBackend = "memory"
	DraftsFile   DraftBackend = "file"
	DraftsSQLite DraftBackend = "sqlite"
)

type Config struct {
	Server    Server    `mapstructure:"server"`
	Host      Host      `mapstructure:"host"`
	Git       Git       `mapstructure:"git"`
	GitHub    GitHub    `mapstructure:"github"`
	Content   Content   `mapstructure:"content"`
	Drafts    Drafts    `mapstructure:"drafts"`
	RateLimit RateLimit `mapstructure:"rateLimit"`
}

type Server struct {
	Listen string `mapstructure:"listen"`
	// ShutdownGrace bounds how long in-flight requests may take to finish
	// after a termination signal.
	ShutdownGrace time.Duration `mapstructure:"shutdownGrace"`
}

type Host struct {
	Kind HostKind `mapstructure:"kind"`
}

type Git struct {
	// Path of the bare repository. Empty keeps the repository in memory.
	Path string `mapstructure:"path"`
}

type GitHub struct {
	Owner   string `mapstructure:"owner"`
	Repo    string `mapstructure:"repo"`
	Token   string `mapstructure:"token"`
	BaseURL string `mapstructure:"baseURL"`
}

type Content struct {
	Trunk string `mapstructure:"trunk"`
	Dir   string `mapstructure:"dir"`
	// Defaults is a YAML file overlaid on the built-in default documents.
	Defaults            string `mapstructure:"defaults"`
	RequireRevision     bool   `mapstructure:"requireRevision"`
	MaterializeDefaults bool   `mapstructure:"materializeDefaults"`
}

type Drafts struct {
	Backend DraftBackend `mapstructure:"backend"`
	Path    string       `mapstructure:"path"`
}

type RateLimit struct {
	// RPS is the sustained per-client request rate; zero disables limiting.
	RPS   float64 `mapstructure:"rps"`
	Burst int     `mapstructure:"burst"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.listen", ":8080")
	v.SetDefault("server.shutdownGrace", 10*time.Second)
	v.SetDefault("host.kind", string(HostGit))
	v.SetDefault("git.path", "")
	v.SetDefault("github.owner", "")
	v.SetDefault("github.repo", "")
	v.SetDefault("github.token", "")
	v.SetDefault("github.baseURL", "")
	v.SetDefault("content.trunk", "main")
	v.SetDefault("content.dir", "content")
	v.SetDefault("content.defaults", "")
	v.SetDefault("content.requireRevision", false)
	v.SetDefault("content.materializeDefaults", false)
	v.SetDefault("drafts.backend", string(DraftsMemory))
	v.SetDefault("drafts.path", "")
	v.SetDefault("rateLimit.rps", 10.0)
	v.SetDefault("rateLimit.burst", 20)
}

// New returns a viper instance with defaults and environment overrides
// registered.
func New() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// FlagBinding lets a command line flag override a configuration key when
// the flag is set.
type FlagBinding struct {
	Key  string
	Flag *pflag.Flag
}

// Load reads file, or cms.yaml from the working directory when file is
// empty, and returns the validated configuration. A missing cms.yaml is
// not an error; a missing explicit file is.
func Load(file string, flags ...FlagBinding) (*Config, error) {
	const op errors.Op = "config.load"
	v := New()
	for _, b := range flags {
		if b.Flag == nil {
			continue
		}
		if err := v.BindPFlag(b.Key, b.Flag); err != nil {
			return nil, errors.E(op, err)
		}
	}
	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName(DefaultName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, errors.E(op, fmt.Errorf("cannot read config: %w", err))
		}
	}
	return FromViper(v)
}

// FromViper decodes and validates the configuration held by v.
func FromViper(v *viper.Viper) (*Config, error) {
	const op errors.Op = "config.decode"
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, errors.E(op, err)
	}
	if err := c.Validate(); err != nil {
		return nil, errors.E(op, err)
	}
	return &c, nil
}

func (c *Config) Validate() error {
	var violations errors.Violations
	invalid := func(field, value, reason string) {
		violations = append(violations, errors.Violation{Field: field, Value: value, Type: errors.Invalid, Reason: reason})
	}
	missing := func(field string) {
		violations = append(violations, errors.Violation{Field: field, Type: errors.Missing})
	}

	switch c.Host.Kind {
	case HostGit:
	case HostGitHub:
		if c.GitHub.Owner == "" {
			missing("github.owner")
		}
		if c.GitHub.Repo == "" {
			missing("github.repo")
		}
	default:
		invalid("host.kind", string(c.Host.Kind), fmt.Sprintf("must be %q or %q", HostGit, HostGitHub))
	}

	switch c.Drafts.Backend {
	case DraftsMemory:
	case DraftsFile, DraftsSQLite:
		if c.Drafts.Path == "" {
			missing("drafts.path")
		}
	default:
		invalid("drafts.backend", string(c.Drafts.Backend),
			fmt.Sprintf("must be one of %q, %q or %q", DraftsMemory, DraftsFile, DraftsSQLite))
	}

	if c.Content.Trunk == "" {
		missing("content.trunk")
	}
	if c.RateLimit.RPS < 0 {
		invalid("rateLimit.rps", fmt.Sprint(c.RateLimit.RPS), "must not be negative")
	}
	if c.RateLimit.RPS > 0 && c.RateLimit.Burst < 1 {
		invalid("rateLimit.burst", fmt.Sprint(c.RateLimit.Burst), "must be at least 1 when rate limiting")
	}
	if c.Server.ShutdownGrace < 0 {
		invalid("server.shutdownGrace", c.Server.ShutdownGrace.String(), "must not be negative")
	}

	if len(violations) > 0 {
		return &errors.ValidationError{Violations: violations}
	}
	return nil
}
