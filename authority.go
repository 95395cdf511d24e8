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

	"github.com/fxamacker/cbor/v2"
)

// SimpleAuthority is an authority that's nothing but its name, such as
// "ROLE_USER".
type SimpleAuthority string

// Authority implements Authority.
func (a SimpleAuthority) Authority() string { return string(a) }

// AttributeAuthority is a role carrying extra attributes, for example the
// tenant it's scoped to. It holds a map, so it isn't comparable with ==.
type AttributeAuthority struct {
	Role       string            `cbor:"role"`
	Attributes map[string]string `cbor:"attributes,omitempty"`
}

// Authority implements Authority.
func (a *AttributeAuthority) Authority() string { return a.Role }

// Attribute returns the named attribute and whether it was set.
func (a *AttributeAuthority) Attribute(key string) (string, bool) {
	v, ok := a.Attributes[key]
	return v, ok
}

var (
	simpleAuthorityType    = reflect.TypeOf(SimpleAuthority(""))
	attributeAuthorityType = reflect.TypeOf((*AttributeAuthority)(nil))
)

// RegisterAuthorities registers serializers for SimpleAuthority and
// *AttributeAuthority, in that order.
func RegisterAuthorities(engine *Engine) error {
	if _, err := engine.Register(simpleAuthorityType, simpleAuthoritySerializer{}); err != nil {
		return err
	}
	_, err := engine.Register(attributeAuthorityType, newAttributeAuthoritySerializer())
	return err
}

// AuthorityRegistration is RegisterAuthorities packaged for
// WithCustomizations. List it before PrincipalRegistration so tags are
// assigned in a stable order.
var AuthorityRegistration Customization = CustomizationFunc(RegisterAuthorities)

type simpleAuthoritySerializer struct{}

var _ Serializer = simpleAuthoritySerializer{}

func (simpleAuthoritySerializer) Write(buf *Buffer, value any) error {
	authority, ok := value.(SimpleAuthority)
	if !ok {
		return errWrongType(value, "SimpleAuthority")
	}
	buf.WriteString(string(authority))
	return nil
}

func (simpleAuthoritySerializer) Read(buf *Buffer) (any, error) {
	name, err := buf.ReadString()
	if err != nil {
		return nil, err
	}
	return SimpleAuthority(name), nil
}

// attributeAuthoritySerializer stores the authority as a length-prefixed CBOR
// document in Core Deterministic Encoding: map keys are sorted, so equal
// authorities always produce equal bytes.
type attributeAuthoritySerializer struct {
	enc cbor.EncMode
	dec cbor.DecMode
}

var _ Serializer = (*attributeAuthoritySerializer)(nil)

func newAttributeAuthoritySerializer() *attributeAuthoritySerializer {
	enc, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("sessionwire: CBOR encoder initialization failed: " + err.Error())
	}
	dec, err := cbor.DecOptions{
		DupMapKey: cbor.DupMapKeyEnforcedAPF,
	}.DecMode()
	if err != nil {
		panic("sessionwire: CBOR decoder initialization failed: " + err.Error())
	}
	return &attributeAuthoritySerializer{enc: enc, dec: dec}
}

func (s *attributeAuthoritySerializer) Write(buf *Buffer, value any) error {
	authority, ok := value.(*AttributeAuthority)
	if !ok || authority == nil {
		return errWrongType(value, "*AttributeAuthority")
	}
	data, err := s.enc.Marshal(authority)
	if err != nil {
		return errorf(CodeInvalidArgument, "attribute authority: %w", err)
	}
	buf.WriteBytes(data)
	return nil
}

func (s *attributeAuthoritySerializer) Read(buf *Buffer) (any, error) {
	data, err := buf.ReadBytes()
	if err != nil {
		return nil, err
	}
	var authority AttributeAuthority
	if err := s.dec.Unmarshal(data, &authority); err != nil {
		return nil, errorf(CodeCorruptData, "attribute authority: %w", err)
	}
	return &authority, nil
}
