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
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/vidyalaya/cms/internal/errors"
	"github.com/vidyalaya/cms/pkg/content"
)

// ReadDocument reads a JSON object from file, or from the command's input
// when file is "-".
func ReadDocument(c *cobra.Command, file string) (content.Document, error) {
	const op errors.Op = "util.readDocument"
	var (
		data []byte
		err  error
	)
	if file == "-" {
		data, err = io.ReadAll(c.InOrStdin())
	} else {
		data, err = os.ReadFile(file)
	}
	if err != nil {
		return nil, errors.E(op, err)
	}
	doc, err := content.Decode(data)
	if err != nil {
		// Bad input is the caller's to fix, not corrupt storage.
		return nil, errors.E(op, errors.Validation, errors.Cause(err))
	}
	return doc, nil
}
