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

package errors

import (
	"fmt"
	"strings"
)

// ValidationError is an error type used when validation fails.
type ValidationError struct {
	Violations Violations
}

func (e *ValidationError) Error() string {
	if len(e.Violations) == 1 {
		v := e.Violations[0]
		if v.Reason != "" {
			return fmt.Sprintf("%s %q: %s", v.Type, v.Field, v.Reason)
		}
		return fmt.Sprintf("%s %q", v.Type, v.Field)
	}
	return fmt.Sprintf("validation failed for fields %s",
		joinStringsWithQuotes(e.Violations.Fields()))
}

type ViolationType string

const (
	Missing ViolationType = "missing"
	Invalid ViolationType = "invalid"
)

type Violations []Violation

func (v Violations) Fields() []string {
	var fields []string
	for _, v := range v {
		fields = append(fields, v.Field)
	}
	return fields
}

type Violation struct {
	Field  string
	Value  string
	Type   ViolationType
	Reason string
}

// MissingField returns a ValidationError for a single required field.
func MissingField(field string) *ValidationError {
	return &ValidationError{Violations: Violations{{Field: field, Type: Missing}}}
}

// InvalidField returns a ValidationError for a single malformed field.
func InvalidField(field, value, reason string) *ValidationError {
	return &ValidationError{Violations: Violations{{
		Field:  field,
		Value:  value,
		Type:   Invalid,
		Reason: reason,
	}}}
}

func joinStringsWithQuotes(strs []string) string {
	b := new(strings.Builder)
	for i, s := range strs {
		b.WriteString(fmt.Sprintf("%q", s))
		if i < len(strs)-2 {
			b.WriteString(", ")
		} else if i == len(strs)-2 {
			b.WriteString(" and ")
		}
	}
	return b.String()
}
