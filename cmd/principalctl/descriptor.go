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

package main

import (
	"errors"
	"fmt"

	"github.com/sessionwire/sessionwire"
	"gopkg.in/yaml.v3"
)

// principalDescriptor is the YAML form of a principal. Flags left out of the
// document default to true.
type principalDescriptor struct {
	Username              string                `yaml:"username"`
	Password              string                `yaml:"password,omitempty"`
	Enabled               *bool                 `yaml:"enabled,omitempty"`
	AccountNonExpired     *bool                 `yaml:"account_non_expired,omitempty"`
	AccountNonLocked      *bool                 `yaml:"account_non_locked,omitempty"`
	CredentialsNonExpired *bool                 `yaml:"credentials_non_expired,omitempty"`
	Authorities           []authorityDescriptor `yaml:"authorities,omitempty"`
}

// authorityDescriptor is either a bare role name or a mapping with a role and
// attributes:
//
//	authorities:
//	  - ROLE_USER
//	  - role: ROLE_ADMIN
//	    attributes: {tenant: acme}
type authorityDescriptor struct {
	Role       string            `yaml:"role"`
	Attributes map[string]string `yaml:"attributes,omitempty"`
}

func (a *authorityDescriptor) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		a.Role = node.Value
		return nil
	}
	type plain authorityDescriptor
	var decoded plain
	if err := node.Decode(&decoded); err != nil {
		return err
	}
	*a = authorityDescriptor(decoded)
	return nil
}

func (a authorityDescriptor) MarshalYAML() (any, error) {
	if len(a.Attributes) == 0 {
		return a.Role, nil
	}
	type plain authorityDescriptor
	return plain(a), nil
}

func parseDescriptor(data []byte) (*sessionwire.Principal, error) {
	var desc principalDescriptor
	if err := yaml.Unmarshal(data, &desc); err != nil {
		return nil, fmt.Errorf("parse principal: %w", err)
	}
	return desc.principal()
}

func (d *principalDescriptor) principal() (*sessionwire.Principal, error) {
	authorities := make([]sessionwire.Authority, 0, len(d.Authorities))
	for i, a := range d.Authorities {
		if a.Role == "" {
			return nil, fmt.Errorf("authority %d: %w", i, errors.New("missing role"))
		}
		if len(a.Attributes) == 0 {
			authorities = append(authorities, sessionwire.SimpleAuthority(a.Role))
			continue
		}
		authorities = append(authorities, &sessionwire.AttributeAuthority{Role: a.Role, Attributes: a.Attributes})
	}
	var options []sessionwire.PrincipalOption
	if isFalse(d.Enabled) {
		options = append(options, sessionwire.WithDisabled())
	}
	if isFalse(d.AccountNonExpired) {
		options = append(options, sessionwire.WithAccountExpired())
	}
	if isFalse(d.AccountNonLocked) {
		options = append(options, sessionwire.WithAccountLocked())
	}
	if isFalse(d.CredentialsNonExpired) {
		options = append(options, sessionwire.WithCredentialsExpired())
	}
	return sessionwire.NewPrincipal(d.Username, d.Password, authorities, options...)
}

// describe converts a decoded principal back to its YAML form. The password
// is masked unless showPassword is set.
func describe(p *sessionwire.Principal, showPassword bool) principalDescriptor {
	desc := principalDescriptor{
		Username:              p.Username,
		Password:              "[PROTECTED]",
		Enabled:               boolPtr(p.Enabled),
		AccountNonExpired:     boolPtr(p.AccountNonExpired),
		AccountNonLocked:      boolPtr(p.AccountNonLocked),
		CredentialsNonExpired: boolPtr(p.CredentialsNonExpired),
	}
	if showPassword {
		desc.Password = p.Password
	}
	for _, authority := range p.Authorities {
		entry := authorityDescriptor{Role: authority.Authority()}
		if attr, ok := authority.(*sessionwire.AttributeAuthority); ok {
			entry.Attributes = attr.Attributes
		}
		desc.Authorities = append(desc.Authorities, entry)
	}
	return desc
}

func isFalse(b *bool) bool {
	return b != nil && !*b
}

func boolPtr(b bool) *bool {
	return &b
}
