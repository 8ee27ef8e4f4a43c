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

// Package errors defines the error handling used by the cms codebase.
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// Error is an implementation of the error interface used in the cms
// codebase.
// It is based on the design in https://commandcenter.blogspot.com/2017/12/error-handling-in-upspin.html
type Error struct {
	// Key is the logical content key or branch involved in the operation.
	Key string

	// Op is the operation being performed, for ex. cms.save, git.merge
	Op Op

	// Kind refers to class of errors
	Kind Kind

	// Err refers to wrapped error (if any)
	Err error
}

func (e *Error) Error() string {
	b := new(strings.Builder)

	if e.Op != "" {
		pad(b, ": ")
		b.WriteString(string(e.Op))
	}

	if e.Key != "" {
		pad(b, ": ")
		b.WriteString(e.Key)
	}

	if e.Kind != 0 {
		pad(b, ": ")
		b.WriteString(e.Kind.String())
	}

	if e.Err != nil {
		if wrappedErr, ok := e.Err.(*Error); ok {
			if !wrappedErr.Zero() {
				pad(b, ":\n\t")
				b.WriteString(wrappedErr.Error())
			}
		} else {
			pad(b, ": ")
			b.WriteString(e.Err.Error())
		}
	}
	if b.Len() == 0 {
		return "no error"
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// pad appends given str to the string buffer.
func pad(b *strings.Builder, str string) {
	if b.Len() == 0 {
		return
	}
	b.WriteString(str)
}

func (e *Error) Zero() bool {
	return e.Op == "" && e.Key == "" && e.Kind == 0 && e.Err == nil
}

// Op describes the operation being performed.
type Op string

// Kind describes the class of errors encountered.
type Kind int

const (
	Other              Kind = iota // Unclassified. Will not be printed.
	Validation                     // Required value is missing or has the wrong type.
	InvalidBranch                  // Branch is not a staging branch or does not exist.
	SaveFailed                     // Staging a change on the host failed.
	PublishFailed                  // Merging a staging branch failed.
	ContentCorrupt                 // Stored document is not a JSON object.
	StorageUnavailable             // Backing storage could not be reached.
	Conflict                       // Supplied revision does not match the stored one.
	RateLimited                    // Client exceeded its request budget.
	Internal                       // Internal error.
	NotFound                       // Document does not exist.
)

func (k Kind) String() string {
	switch k {
	case Other:
		return "other error"
	case Validation:
		return "validation error"
	case InvalidBranch:
		return "invalid branch"
	case SaveFailed:
		return "save failed"
	case PublishFailed:
		return "publish failed"
	case ContentCorrupt:
		return "content corrupt"
	case StorageUnavailable:
		return "storage unavailable"
	case Conflict:
		return "revision conflict"
	case RateLimited:
		return "rate limited"
	case Internal:
		return "internal error"
	case NotFound:
		return "not found"
	}
	return "unknown kind"
}

// Name is the identifier used for the kind in API error envelopes.
func (k Kind) Name() string {
	switch k {
	case Validation:
		return "ValidationError"
	case InvalidBranch:
		return "InvalidBranchError"
	case SaveFailed:
		return "SaveFailedError"
	case PublishFailed:
		return "PublishFailedError"
	case ContentCorrupt:
		return "ContentCorruptError"
	case StorageUnavailable:
		return "StorageUnavailableError"
	case Conflict:
		return "ConflictError"
	case RateLimited:
		return "RateLimitedError"
	case NotFound:
		return "NotFoundError"
	}
	return "InternalError"
}

// Key marks a string argument to E as the content key or branch name.
type Key string

func E(args ...interface{}) error {
	if len(args) == 0 {
		panic("errors.E must have at least one argument")
	}

	e := &Error{}
	for _, arg := range args {
		switch a := arg.(type) {
		case Key:
			e.Key = string(a)
		case Op:
			e.Op = a
		case Kind:
			e.Kind = a
		case *Error:
			cp := *a
			e.Err = &cp
		case error:
			e.Err = a
		case string:
			e.Err = stderrors.New(a)
		default:
			panic(fmt.Errorf("unknown type %T for value %v in call to error.E", a, a))
		}
	}

	wrappedErr, ok := e.Err.(*Error)
	if !ok {
		return e
	}

	if e.Key == wrappedErr.Key {
		wrappedErr.Key = ""
	}

	if e.Op == wrappedErr.Op {
		wrappedErr.Op = ""
	}

	if e.Kind == wrappedErr.Kind {
		wrappedErr.Kind = 0
	}

	return e
}

// KindOf returns the first non-zero Kind found walking the error chain,
// or Other if there is none.
func KindOf(err error) Kind {
	for err != nil {
		var e *Error
		if !stderrors.As(err, &e) {
			break
		}
		if e.Kind != Other {
			return e.Kind
		}
		err = e.Err
	}
	var v *ValidationError
	if stderrors.As(err, &v) {
		return Validation
	}
	return Other
}

// Is reports whether err or any error in its chain is of the given kind.
func Is(err error, kind Kind) bool {
	for err != nil {
		var e *Error
		if !stderrors.As(err, &e) {
			return false
		}
		if e.Kind == kind {
			return true
		}
		err = e.Err
	}
	return false
}

// Cause returns the innermost error of the chain. Its message is what the
// API passes through to callers.
func Cause(err error) error {
	for {
		e, ok := err.(*Error)
		if !ok || e.Err == nil {
			return err
		}
		err = e.Err
	}
}

// New is a shortcut to the standard library errors.New, for sentinels.
func New(text string) error {
	return stderrors.New(text)
}

// IsError is a shortcut to the standard library errors.Is.
func IsError(err, target error) bool {
	return stderrors.Is(err, target)
}

// As is a shortcut to the standard library errors.As.
func As(err error, target interface{}) bool {
	return stderrors.As(err, target)
}
