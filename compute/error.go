/*
 *	Copyright 2024 Jan Pfeifer
 *
 *	Licensed under the Apache License, Version 2.0 (the "License");
 *	you may not use this file except in compliance with the License.
 *	You may obtain a copy of the License at
 *
 *	http://www.apache.org/licenses/LICENSE-2.0
 *
 *	Unless required by applicable law or agreed to in writing, software
 *	distributed under the License is distributed on an "AS IS" BASIS,
 *	WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 *	See the License for the specific language governing permissions and
 *	limitations under the License.
 */

package compute

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// ErrorKind classifies the failures of the dispatcher and of the object model. Each step of the dispatch
// procedure maps to exactly one kind.
//
// ErrorKind implements the error interface, so it can be used as the target of errors.Is:
//
//	if errors.Is(err, compute.NoDeviceError) { ... }
type ErrorKind uint8

//go:generate go tool enumer -type=ErrorKind -output=errorkind_enumer.go error.go

const (
	UnknownError ErrorKind = iota

	// NoPlatformError is returned when the runtime reports zero platforms, or the platform index is out of range.
	NoPlatformError

	// NoDeviceError is returned when the selected platform has no device of the requested class, or the device
	// index is out of range.
	NoDeviceError

	ContextCreationError
	QueueCreationError
	AllocationError

	// BuildError is returned when the kernel source fails to compile. The compiler log is in Error.BuildLog.
	BuildError

	// EntryPointNotFoundError is returned when the built program has no kernel with the requested name.
	EntryPointNotFoundError

	ArgumentBindError
	LaunchError
	ReadBackError

	// InvalidInputError is returned before touching the runtime, e.g. when the input arrays have different lengths.
	InvalidInputError

	// CancelledError is returned when the context.Context passed to the dispatcher is done between steps.
	CancelledError

	// ReleaseError is returned by Destroy methods, when the native release fails or when the object still has
	// live dependents.
	ReleaseError
)

// Error implements the error interface, so an ErrorKind can be used with errors.Is.
func (i ErrorKind) Error() string {
	return i.String()
}

// Error returned by the package. It holds the kind of the failure, the operation that failed, and for BuildError
// the compiler log.
type Error struct {
	Kind ErrorKind

	// Op is the operation that failed, e.g.: "CreateBuffer(b)".
	Op string

	// BuildLog is the compiler output, only set for BuildError.
	BuildLog string

	// Cause is the underlying error (usually from the native runtime), if any.
	Cause error
}

// Error implements the error interface.
func (e *Error) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Kind.String())
	if e.Op != "" {
		fmt.Fprintf(&sb, " in %s", e.Op)
	}
	if e.Cause != nil {
		fmt.Fprintf(&sb, ": %v", e.Cause)
	}
	if e.BuildLog != "" {
		fmt.Fprintf(&sb, "\nbuild log:\n%s", e.BuildLog)
	}
	return sb.String()
}

// Unwrap returns the cause of the error.
func (e *Error) Unwrap() error { return e.Cause }

// Is reports whether the target is the ErrorKind of this error.
func (e *Error) Is(target error) bool {
	kind, ok := target.(ErrorKind)
	return ok && kind == e.Kind
}

// KindOf returns the ErrorKind of err, or UnknownError if err is not (and does not wrap) an *Error.
func KindOf(err error) ErrorKind {
	var cErr *Error
	if errors.As(err, &cErr) {
		return cErr.Kind
	}
	return UnknownError
}

// newError creates an *Error with a stack trace attached to the cause.
func newError(kind ErrorKind, op string, cause error) *Error {
	if cause != nil {
		cause = errors.WithStack(cause)
	}
	return &Error{Kind: kind, Op: op, Cause: cause}
}

// newErrorf creates an *Error with a formatted cause.
func newErrorf(kind ErrorKind, op string, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Cause: errors.Errorf(format, args...)}
}
