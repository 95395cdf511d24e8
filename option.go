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

// An EngineOption configures an Engine.
type EngineOption interface {
	applyToEngine(*engineConfig)
}

type engineConfig struct {
	Warn           func(error)
	Customizations []Customization
}

// A RegisterOption configures a single call to Engine.Register.
type RegisterOption interface {
	applyToRegister(*registerConfig)
}

type registerConfig struct {
	Tag    uint32
	HasTag bool
}

type customizationsOption struct {
	customizations []Customization
}

// WithCustomizations runs the supplied customizations, in order, while the
// engine is constructed. This is the place to register every type the
// process will encode: the engine is fully configured before NewEngine
// returns, and registration never races with encoding.
//
// Passing WithCustomizations more than once appends to the list.
func WithCustomizations(customizations ...Customization) EngineOption {
	return &customizationsOption{customizations}
}

func (o *customizationsOption) applyToEngine(config *engineConfig) {
	config.Customizations = append(config.Customizations, o.customizations...)
}

type warnOption struct {
	warn func(error)
}

// WithWarn replaces the function used to report non-fatal problems, such as a
// type being registered twice. By default, warnings go to the standard
// library's log package. Passing nil discards warnings.
func WithWarn(warn func(error)) EngineOption {
	return &warnOption{warn}
}

func (o *warnOption) applyToEngine(config *engineConfig) {
	if o.warn == nil {
		config.Warn = func(error) {}
		return
	}
	config.Warn = o.warn
}

type tagOption struct {
	tag uint32
}

// WithTag pins a registration to a specific tag instead of the next free one.
// Tags below 16 are reserved for built-in types. Pinning tags lets processes
// that register types in different orders still share blobs.
func WithTag(tag uint32) RegisterOption {
	return &tagOption{tag}
}

func (o *tagOption) applyToRegister(config *registerConfig) {
	config.Tag = o.tag
	config.HasTag = true
}
