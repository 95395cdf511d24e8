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
	"reflect"
)

// A Serializer writes and reads the payload of one registered Go type. The
// engine writes the type tag; a Serializer only ever sees its own payload.
//
// Serializers must be safe for concurrent use. A serializer that needs to
// write nested values of unknown concrete type should hold onto the engine and
// call its WriteAny and ReadAny methods.
type Serializer interface {
	Write(buf *Buffer, value any) error
	Read(buf *Buffer) (any, error)
}

// Tags of the built-in primitive serializers. Tag 0 is reserved for nil.
const (
	tagNil    uint32 = 0
	tagString uint32 = 1
	tagInt64  uint32 = 2
	tagBool   uint32 = 3
	tagBytes  uint32 = 4

	// firstUserTag is the first tag handed out to registrations that don't ask
	// for a specific one. Tags below it are reserved for primitives.
	firstUserTag uint32 = 16
)

type builtin struct {
	tag        uint32
	typ        reflect.Type
	serializer Serializer
}

func builtins() []builtin {
	return []builtin{
		{tagString, reflect.TypeOf(""), stringSerializer{}},
		{tagInt64, reflect.TypeOf(int64(0)), int64Serializer{}},
		{tagBool, reflect.TypeOf(false), boolSerializer{}},
		{tagBytes, reflect.TypeOf([]byte(nil)), bytesSerializer{}},
	}
}

type stringSerializer struct{}

var _ Serializer = stringSerializer{}

func (stringSerializer) Write(buf *Buffer, value any) error {
	s, ok := value.(string)
	if !ok {
		return errWrongType(value, "string")
	}
	buf.WriteString(s)
	return nil
}

func (stringSerializer) Read(buf *Buffer) (any, error) {
	return buf.ReadString()
}

type int64Serializer struct{}

var _ Serializer = int64Serializer{}

func (int64Serializer) Write(buf *Buffer, value any) error {
	n, ok := value.(int64)
	if !ok {
		return errWrongType(value, "int64")
	}
	buf.WriteSignedVarint(n)
	return nil
}

func (int64Serializer) Read(buf *Buffer) (any, error) {
	return buf.ReadSignedVarint()
}

type boolSerializer struct{}

var _ Serializer = boolSerializer{}

func (boolSerializer) Write(buf *Buffer, value any) error {
	v, ok := value.(bool)
	if !ok {
		return errWrongType(value, "bool")
	}
	buf.WriteBool(v)
	return nil
}

func (boolSerializer) Read(buf *Buffer) (any, error) {
	return buf.ReadBool()
}

type bytesSerializer struct{}

var _ Serializer = bytesSerializer{}

func (bytesSerializer) Write(buf *Buffer, value any) error {
	p, ok := value.([]byte)
	if !ok {
		return errWrongType(value, "[]byte")
	}
	buf.WriteBytes(p)
	return nil
}

func (bytesSerializer) Read(buf *Buffer) (any, error) {
	return buf.ReadBytes()
}

func errWrongType(value any, want string) *Error {
	return errorf(CodeInvalidArgument, "%T isn't a %s", value, want)
}
