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
	"sort"
	"strings"
)

// An Authority is a permission granted to a Principal. Implementations only
// need to name the permission; they don't have to be comparable or ordered,
// and Principals never sort them.
type Authority interface {
	Authority() string
}

// A Principal is an authenticated user as stored in a session.
//
// Authorities are a set in meaning, but a Principal keeps them as a plain
// slice in insertion order. Decoding never reorders or deduplicates them.
type Principal struct {
	Username              string
	Password              string
	Authorities           []Authority
	Enabled               bool
	AccountNonExpired     bool
	AccountNonLocked      bool
	CredentialsNonExpired bool
}

// A PrincipalOption adjusts a Principal built by NewPrincipal.
type PrincipalOption func(*Principal)

// WithDisabled marks the principal as disabled.
func WithDisabled() PrincipalOption {
	return func(p *Principal) { p.Enabled = false }
}

// WithAccountExpired marks the account as expired.
func WithAccountExpired() PrincipalOption {
	return func(p *Principal) { p.AccountNonExpired = false }
}

// WithAccountLocked marks the account as locked.
func WithAccountLocked() PrincipalOption {
	return func(p *Principal) { p.AccountNonLocked = false }
}

// WithCredentialsExpired marks the credentials as expired.
func WithCredentialsExpired() PrincipalOption {
	return func(p *Principal) { p.CredentialsNonExpired = false }
}

var (
	errEmptyUsername = errors.New("username is empty")
	errNilAuthority  = errors.New("nil authority")
)

// NewPrincipal validates and builds an enabled, unexpired, unlocked
// principal. The username must be non-empty and no authority may be nil.
// Authorities with the same name are collapsed; the first one wins.
func NewPrincipal(username, password string, authorities []Authority, options ...PrincipalOption) (*Principal, error) {
	if username == "" {
		return nil, NewError(CodeInvalidArgument, errEmptyUsername)
	}
	seen := make(map[string]struct{}, len(authorities))
	unique := make([]Authority, 0, len(authorities))
	for i, authority := range authorities {
		if authority == nil {
			return nil, errorf(CodeInvalidArgument, "authority %d: %w", i, errNilAuthority)
		}
		name := authority.Authority()
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		unique = append(unique, authority)
	}
	principal := &Principal{
		Username:              username,
		Password:              password,
		Authorities:           unique,
		Enabled:               true,
		AccountNonExpired:     true,
		AccountNonLocked:      true,
		CredentialsNonExpired: true,
	}
	for _, opt := range options {
		opt(principal)
	}
	return principal, nil
}

// HasAuthority reports whether the principal holds an authority with the
// given name.
func (p *Principal) HasAuthority(name string) bool {
	for _, authority := range p.Authorities {
		if authority != nil && authority.Authority() == name {
			return true
		}
	}
	return false
}

// AuthorityNames returns the names of the principal's authorities, sorted.
// The returned slice is a copy, so it's safe for callers to modify.
func (p *Principal) AuthorityNames() []string {
	names := make([]string, 0, len(p.Authorities))
	for _, authority := range p.Authorities {
		if authority != nil {
			names = append(names, authority.Authority())
		}
	}
	sort.Strings(names)
	return names
}

// String describes the principal without revealing the password.
func (p *Principal) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Username: %s; ", p.Username)
	b.WriteString("Password: [PROTECTED]; ")
	fmt.Fprintf(&b, "Enabled: %t; ", p.Enabled)
	fmt.Fprintf(&b, "AccountNonExpired: %t; ", p.AccountNonExpired)
	fmt.Fprintf(&b, "CredentialsNonExpired: %t; ", p.CredentialsNonExpired)
	fmt.Fprintf(&b, "AccountNonLocked: %t; ", p.AccountNonLocked)
	if len(p.Authorities) == 0 {
		b.WriteString("Not granted any authorities")
		return b.String()
	}
	fmt.Fprintf(&b, "Granted Authorities: %s", strings.Join(p.AuthorityNames(), ","))
	return b.String()
}
