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

package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"
	"github.com/vidyalaya/cms/commands"
	"github.com/vidyalaya/cms/commands/util"
	"github.com/vidyalaya/cms/internal/util/runner"
	"k8s.io/klog/v2"
)

func main() {
	cmd := &cobra.Command{
		Use:   "cms",
		Short: "Staged publishing for website content",
		Long: `cms keeps website content documents in a git repository.

Edits are staged on short-lived branches and published by merging them
into the trunk.`,
		Example: `  # serve the API
  $ cms serve --config cms.yaml

  # stage and publish an edit
  $ cms branch save home-content.json home.json -m "Update hero"
  cms/update-home-content-json-1700000000000
  $ cms branch publish cms/update-home-content-json-1700000000000
  Published cms/update-home-content-json-1700000000000 to main
`,
		SilenceErrors: true,
	}
	f := util.NewFactory(cmd)

	// enable stack traces
	cmd.PersistentFlags().BoolVar(&runner.StackOnError, "stack-trace", false,
		"print a stack-trace on failure")

	cmd.AddCommand(commands.GetCmsCommands(context.Background(), f)...)

	// exit on an error
	runner.ExitOnError = true

	err := cmd.Execute()
	klog.Flush()
	if err != nil {
		// Argument and flag errors never reach a command's HandleError.
		cmd.PrintErrln("Error:", err)
		os.Exit(1)
	}
}
