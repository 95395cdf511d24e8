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
	"io"
	"testing"

	"github.com/sessionwire/sessionwire/internal/assert"
)

func TestErrorNilUnderlying(t *testing.T) {
	t.Parallel()
	err := NewError(CodeCorruptData, nil)
	assert.NotNil(t, err)
	assert.Equal(t, err.Error(), CodeCorruptData.String())
	assert.Equal(t, err.Code(), CodeCorruptData)
	assert.Nil(t, err.Unwrap())
}

func TestErrorFormatting(t *testing.T) {
	t.Parallel()
	assert.Equal(
		t,
		NewError(CodeTypeMismatch, errors.New("")).Error(),
		CodeTypeMismatch.String(),
	)
	got := NewError(CodeCorruptData, io.ErrUnexpectedEOF).Error()
	assert.Equal(t, got, "corrupt_data: unexpected EOF")
}

func TestErrorCode(t *testing.T) {
	t.Parallel()
	err := fmt.Errorf(
		"another: %w",
		NewError(CodeUnregisteredType, errors.New("foo")),
	)
	wireErr, ok := asError(err)
	assert.True(t, ok)
	assert.Equal(t, wireErr.Code(), CodeUnregisteredType)
	assert.Equal(t, CodeOf(err), CodeUnregisteredType)
	assert.Equal(t, CodeOf(errors.New("plain")), CodeUnknown)
}

func TestErrorIs(t *testing.T) {
	t.Parallel()
	// errors.New and fmt.Errorf return *errors.errorString. errors.Is
	// considers two *errors.errorStrings equal iff they have the same address.
	err := errors.New("oh no")
	assert.False(t, errors.Is(err, errors.New("oh no")))
	assert.True(t, errors.Is(err, err))
	// Our errors should have the same semantics.
	wireErr := NewError(CodeCorruptData, err)
	assert.False(t, errors.Is(wireErr, NewError(CodeCorruptData, err)))
	assert.True(t, errors.Is(wireErr, wireErr))
	assert.True(t, errors.Is(wireErr, err))
}

func TestWrapIfUncoded(t *testing.T) {
	t.Parallel()
	assert.Nil(t, wrapIfUncoded(CodeCorruptData, nil))
	plain := errors.New("plain")
	wrapped := wrapIfUncoded(CodeCorruptData, plain)
	assert.Equal(t, CodeOf(wrapped), CodeCorruptData)
	assert.ErrorIs(t, wrapped, plain)
	coded := NewError(CodeTypeMismatch, plain)
	assert.Equal(t, CodeOf(wrapIfUncoded(CodeCorruptData, coded)), CodeTypeMismatch)
}
