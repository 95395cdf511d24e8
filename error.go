// Copyright 2021-2024 The Connect Authors
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

package sessionwire

import (
	"errors"
	"fmt"
)

// An Error captures two pieces of information: a Code and an underlying Go
// error. The engine and every serializer in this package return errors that
// can be cast to an *Error (using the standard library's errors.As), so
// callers can tell corrupt input apart from a misconfigured registry.
//
// Serializers written outside this package should return *Error values too.
// Errors that can't be cast to an *Error are reported by CodeOf as
// CodeUnknown.
type Error struct {
	code Code
	err  error
}

// NewError annotates any Go error with a code.
func NewError(c Code, underlying error) *Error {
	return &Error{code: c, err: underlying}
}

func (e *Error) Error() string {
	if e.err == nil {
		return e.code.String()
	}
	text := e.err.Error()
	if text == "" {
		return e.code.String()
	}
	return e.code.String() + ": " + text
}

// Unwrap implements errors.Wrapper, which allows errors.Is and errors.As
// access to the underlying error.
func (e *Error) Unwrap() error {
	return e.err
}

// Code returns the error's code.
func (e *Error) Code() Code {
	return e.code
}

// CodeOf returns the error's code if it is or wraps an *Error and
// CodeUnknown otherwise.
func CodeOf(err error) Code {
	if wireErr, ok := asError(err); ok {
		return wireErr.Code()
	}
	return CodeUnknown
}

// errorf calls fmt.Errorf with the supplied template and arguments, then wraps
// the resulting error.
func errorf(c Code, template string, args ...any) *Error {
	return NewError(c, fmt.Errorf(template, args...))
}

// asError uses errors.As to unwrap any error and look for an *Error.
func asError(err error) (*Error, bool) {
	var wireErr *Error
	ok := errors.As(err, &wireErr)
	return wireErr, ok
}

// wrapIfUncoded leaves coded errors unchanged and wraps everything else with
// the supplied code. Serializers registered by users may return plain errors;
// the engine passes them through this before handing them back.
func wrapIfUncoded(c Code, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := asError(err); ok {
		return err
	}
	return NewError(c, err)
}
