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
	"math"
	"reflect"
)

// anyReadWriter is the part of the Engine that serializers of container
// types use to delegate elements whose concrete type they don't know.
type anyReadWriter interface {
	WriteAny(*Buffer, any) error
	ReadAny(*Buffer) (any, error)
}

var principalType = reflect.TypeOf((*Principal)(nil))

// PrincipalCodec serializes *Principal values. Its layout is fixed and
// unversioned:
//
//	password                string, length-prefixed
//	username                string, length-prefixed
//	len(authorities)        unsigned varint
//	authorities             tag + payload each, written by the engine
//	accountNonExpired       1 byte
//	accountNonLocked        1 byte
//	credentialsNonExpired   1 byte
//	enabled                 1 byte
//
// Authorities are read back into a slice in wire order. They're never put in
// a sorted structure, so Authority implementations don't need to be ordered.
//
// A PrincipalCodec keeps no per-call state and is safe for concurrent use.
type PrincipalCodec struct {
	engine anyReadWriter
}

var _ Serializer = (*PrincipalCodec)(nil)

// NewPrincipalCodec returns a codec that delegates authorities to engine.
func NewPrincipalCodec(engine *Engine) *PrincipalCodec {
	return &PrincipalCodec{engine: engine}
}

// RegisterPrincipal registers a PrincipalCodec for *Principal with engine. It
// must run before the engine encodes or decodes any Principal. Authority
// types have to be registered separately; see AuthorityRegistration.
func RegisterPrincipal(engine *Engine) error {
	_, err := engine.Register(principalType, NewPrincipalCodec(engine))
	return err
}

// PrincipalRegistration is RegisterPrincipal packaged for WithCustomizations.
var PrincipalRegistration Customization = CustomizationFunc(RegisterPrincipal)

// Write encodes a *Principal.
func (c *PrincipalCodec) Write(buf *Buffer, value any) error {
	principal, ok := value.(*Principal)
	if !ok || principal == nil {
		return errorf(CodeInvalidArgument, "principal codec: can't write %T", value)
	}
	buf.WriteString(principal.Password)
	buf.WriteString(principal.Username)
	buf.WriteVarint(uint64(len(principal.Authorities)))
	for i, authority := range principal.Authorities {
		if authority == nil {
			return errorf(CodeInvalidArgument, "principal codec: authority %d is nil", i)
		}
		if err := c.engine.WriteAny(buf, authority); err != nil {
			return err
		}
	}
	buf.WriteBool(principal.AccountNonExpired)
	buf.WriteBool(principal.AccountNonLocked)
	buf.WriteBool(principal.CredentialsNonExpired)
	buf.WriteBool(principal.Enabled)
	return nil
}

// Read decodes a *Principal. Each flag byte is true only when it equals 1;
// any other value reads as false rather than failing.
func (c *PrincipalCodec) Read(buf *Buffer) (any, error) {
	password, err := buf.ReadString()
	if err != nil {
		return nil, err
	}
	username, err := buf.ReadString()
	if err != nil {
		return nil, err
	}
	count, err := buf.ReadVarint()
	if err != nil {
		return nil, err
	}
	if count > math.MaxInt {
		return nil, errorf(CodeCorruptData, "principal codec: authority count %d out of range", count)
	}
	// Every authority costs at least one tag byte, so the remaining length
	// bounds what's worth preallocating.
	capacity := int(count)
	if remaining := buf.Len(); capacity > remaining {
		capacity = remaining
	}
	authorities := make([]Authority, 0, capacity)
	for i := uint64(0); i < count; i++ {
		item, err := c.engine.ReadAny(buf)
		if err != nil {
			return nil, err
		}
		authority, ok := item.(Authority)
		if !ok {
			return nil, errorf(CodeTypeMismatch, "principal codec: authority %d is %T, not an Authority", i, item)
		}
		authorities = append(authorities, authority)
	}
	var flags [4]bool
	for i := range flags {
		if flags[i], err = buf.ReadBool(); err != nil {
			return nil, err
		}
	}
	return &Principal{
		Username:              username,
		Password:              password,
		Authorities:           authorities,
		AccountNonExpired:     flags[0],
		AccountNonLocked:      flags[1],
		CredentialsNonExpired: flags[2],
		Enabled:               flags[3],
	}, nil
}
