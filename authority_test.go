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


package sessionwire_test

import (
	"reflect"
	"testing"

	"github.com/sessionwire/sessionwire"
	"github.com/sessionwire/sessionwire/internal/assert"
)

func TestAttributeAuthorityDeterministic(t *testing.T) {
	t.Parallel()
	engine := newPrincipalEngine(t)
	attrs := map[string]string{}
	for _, key := range []string{"zone", "tenant", "region", "a", "bb"} {
		attrs[key] = key + "-value"
	}
	first, err := engine.Marshal(&sessionwire.AttributeAuthority{Role: "ROLE_OPS", Attributes: attrs})
	assert.Nil(t, err)
	for i := 0; i < 20; i++ {
		copied := make(map[string]string, len(attrs))
		for k, v := range attrs {
			copied[k] = v
		}
		again, err := engine.Marshal(&sessionwire.AttributeAuthority{Role: "ROLE_OPS", Attributes: copied})
		assert.Nil(t, err)
		assert.Equal(t, again, first)
	}

	other, err := engine.Marshal(&sessionwire.AttributeAuthority{Role: "ROLE_OPS", Attributes: map[string]string{"zone": "b"}})
	assert.Nil(t, err)
	assert.NotEqual(t, other, first)

	got, err := engine.Unmarshal(first)
	assert.Nil(t, err)
	authority, ok := got.(*sessionwire.AttributeAuthority)
	assert.True(t, ok)
	assert.Equal(t, authority.Authority(), "ROLE_OPS")
	tenant, ok := authority.Attribute("tenant")
	assert.True(t, ok)
	assert.Equal(t, tenant, "tenant-value")
	_, ok = authority.Attribute("missing")
	assert.False(t, ok)
}

func TestAttributeAuthorityCorrupt(t *testing.T) {
	t.Parallel()
	engine := newPrincipalEngine(t)
	reg, ok := engine.Lookup(reflect.TypeOf(&sessionwire.AttributeAuthority{}))
	assert.True(t, ok)

	// A CBOR array where a map is expected.
	buf := sessionwire.NewBuffer(nil)
	buf.WriteVarint(uint64(reg.Tag))
	buf.WriteBytes([]byte{0x82, 0x01, 0x02})
	_, err := engine.Unmarshal(buf.Bytes())
	assert.Equal(t, sessionwire.CodeOf(err), sessionwire.CodeCorruptData)

	// A map with a duplicated key.
	buf = sessionwire.NewBuffer(nil)
	buf.WriteVarint(uint64(reg.Tag))
	buf.WriteBytes([]byte{
		0xa2,
		0x64, 'r', 'o', 'l', 'e', 0x61, 'a',
		0x64, 'r', 'o', 'l', 'e', 0x61, 'b',
	})
	_, err = engine.Unmarshal(buf.Bytes())
	assert.Equal(t, sessionwire.CodeOf(err), sessionwire.CodeCorruptData)
}

func TestSimpleAuthority(t *testing.T) {
	t.Parallel()
	engine := newPrincipalEngine(t)
	data, err := engine.Marshal(sessionwire.SimpleAuthority("ROLE_USER"))
	assert.Nil(t, err)
	assert.Equal(t, data, []byte{16, 9, 'R', 'O', 'L', 'E', '_', 'U', 'S', 'E', 'R'})
	got, err := engine.Unmarshal(data)
	assert.Nil(t, err)
	assert.Equal(t, got, any(sessionwire.SimpleAuthority("ROLE_USER")))

	_, err = engine.Marshal((*sessionwire.AttributeAuthority)(nil))
	assert.Equal(t, sessionwire.CodeOf(err), sessionwire.CodeInvalidArgument)
}
