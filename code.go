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
	"fmt"
	"strconv"
	"strings"
)

// A Code is one of the failure categories reported by the engine and its
// serializers. Every error returned by this package can be inspected with
// CodeOf.
//
// Codes are stable: they're meant to be switched on by callers that decide
// whether a stored blob should be discarded or whether the process is
// misconfigured.
type Code uint32

const (
	// There's no zero code: a nil error is success.

	// CodeUnknown indicates that the error didn't originate in this package or
	// carries no more specific code.
	CodeUnknown Code = 1

	// CodeCorruptData indicates that the input ended early, or that a length
	// prefix, varint or nested payload was malformed.
	CodeCorruptData Code = 2

	// CodeTypeMismatch indicates that a decoded value doesn't have the
	// capability its position in the layout requires, for example an
	// authority slot holding something that isn't an Authority.
	CodeTypeMismatch Code = 3

	// CodeUnregisteredType indicates that a value's type, or a type tag read
	// from the wire, has no serializer registered with the engine.
	CodeUnregisteredType Code = 4

	// CodeInvalidArgument indicates that the caller passed something the
	// engine can't work with: a nil serializer, a conflicting tag, or a value
	// of the wrong type for a serializer.
	CodeInvalidArgument Code = 5

	minCode = CodeUnknown
	maxCode = CodeInvalidArgument
)

func (c Code) String() string {
	switch c {
	case CodeUnknown:
		return "unknown"
	case CodeCorruptData:
		return "corrupt_data"
	case CodeTypeMismatch:
		return "type_mismatch"
	case CodeUnregisteredType:
		return "unregistered_type"
	case CodeInvalidArgument:
		return "invalid_argument"
	}
	return fmt.Sprintf("code_%d", c)
}

// MarshalText implements encoding.TextMarshaler.
func (c Code) MarshalText() ([]byte, error) {
	if c < minCode || c > maxCode {
		return nil, fmt.Errorf("invalid code %d", c)
	}
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. It accepts the names
// produced by String and the decimal form of valid codes.
func (c *Code) UnmarshalText(data []byte) error {
	text := strings.TrimSpace(string(data))
	for code := minCode; code <= maxCode; code++ {
		if code.String() == text {
			*c = code
			return nil
		}
	}
	// Ensure that the code is valid. If it is, accept it.
	ui64, err := strconv.ParseUint(text, 10 /* base */, 32 /* bitsize */)
	if err != nil {
		return fmt.Errorf("invalid code %q", text)
	}
	if code := Code(ui64); code >= minCode && code <= maxCode {
		*c = code
		return nil
	}
	return fmt.Errorf("invalid code %q", text)
}
