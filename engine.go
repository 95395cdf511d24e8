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
	"math"
	"reflect"
	"sort"
	"sync"
)

// A Registration associates a Go type with its wire tag.
type Registration struct {
	Tag  uint32
	Type reflect.Type
}

func (r Registration) String() string {
	return fmt.Sprintf("%d=%v", r.Tag, r.Type)
}

type registration struct {
	Registration
	serializer Serializer
}

// An Engine maps Go types to serializers and dispatches on type tags. Only
// types that were registered (plus string, int64, bool and []byte) can be
// written or read; everything else fails with CodeUnregisteredType.
//
// Registrations normally happen once, during startup, through
// WithCustomizations or direct calls to Register. The registry is guarded by
// a lock, so an Engine is safe for concurrent use.
type Engine struct {
	warnIfError func(error)

	mu      sync.RWMutex
	byType  map[reflect.Type]*registration
	byTag   map[uint32]*registration
	nextTag uint32
}

// NewEngine constructs an Engine with the primitive serializers registered,
// then applies any customizations in order. The first customization to fail
// aborts construction.
func NewEngine(options ...EngineOption) (*Engine, error) {
	config := engineConfig{
		Warn: defaultWarn,
	}
	for _, opt := range options {
		opt.applyToEngine(&config)
	}
	engine := &Engine{
		warnIfError: newWarnIfError(config.Warn),
		byType:      make(map[reflect.Type]*registration),
		byTag:       make(map[uint32]*registration),
		nextTag:     firstUserTag,
	}
	for _, b := range builtins() {
		engine.insert(&registration{
			Registration: Registration{Tag: b.tag, Type: b.typ},
			serializer:   b.serializer,
		})
	}
	for _, customization := range config.Customizations {
		if customization == nil {
			return nil, NewError(CodeInvalidArgument, errNilCustomization)
		}
		if err := customization.Customize(engine); err != nil {
			return nil, wrapIfUncoded(CodeInvalidArgument, err)
		}
	}
	return engine, nil
}

// Register associates typ with a serializer and returns the resulting
// registration. Unless WithTag is supplied, the next free tag at or above 16
// is used, so two processes that share blobs must register the same types in
// the same order.
//
// Registering a type again keeps its tag and replaces the serializer. Asking
// for a tag that another type already holds is an error.
func (e *Engine) Register(typ reflect.Type, serializer Serializer, options ...RegisterOption) (Registration, error) {
	if typ == nil {
		return Registration{}, errorf(CodeInvalidArgument, "register: nil type")
	}
	if serializer == nil {
		return Registration{}, errorf(CodeInvalidArgument, "register %v: nil serializer", typ)
	}
	var config registerConfig
	for _, opt := range options {
		opt.applyToRegister(&config)
	}
	if config.HasTag && config.Tag < firstUserTag {
		return Registration{}, errorf(CodeInvalidArgument, "register %v: tag %d is reserved", typ, config.Tag)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if existing, ok := e.byType[typ]; ok {
		if config.HasTag && config.Tag != existing.Tag {
			return Registration{}, errorf(
				CodeInvalidArgument, "register %v: already registered with tag %d, not %d",
				typ, existing.Tag, config.Tag,
			)
		}
		if existing.Tag < firstUserTag {
			return Registration{}, errorf(CodeInvalidArgument, "register %v: built-in type", typ)
		}
		// Swap in a fresh registration; readers may still hold the old one.
		replacement := &registration{Registration: existing.Registration, serializer: serializer}
		e.insert(replacement)
		e.warnIfError(fmt.Errorf("sessionwire: replaced serializer for %v (tag %d)", typ, existing.Tag))
		return replacement.Registration, nil
	}
	tag := config.Tag
	if !config.HasTag {
		for {
			if e.nextTag == math.MaxUint32 {
				return Registration{}, errorf(CodeInvalidArgument, "register %v: out of tags", typ)
			}
			if _, taken := e.byTag[e.nextTag]; !taken {
				break
			}
			e.nextTag++
		}
		tag = e.nextTag
		e.nextTag++
	} else if holder, taken := e.byTag[tag]; taken {
		return Registration{}, errorf(
			CodeInvalidArgument, "register %v: tag %d already belongs to %v",
			typ, tag, holder.Type,
		)
	}
	reg := &registration{
		Registration: Registration{Tag: tag, Type: typ},
		serializer:   serializer,
	}
	e.insert(reg)
	return reg.Registration, nil
}

// Lookup reports the registration for typ, if any.
func (e *Engine) Lookup(typ reflect.Type) (Registration, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	reg, ok := e.byType[typ]
	if !ok {
		return Registration{}, false
	}
	return reg.Registration, true
}

// Registrations returns every registration, built-ins included, ordered by
// tag. The returned slice is a copy, so it's safe for callers to modify.
func (e *Engine) Registrations() []Registration {
	e.mu.RLock()
	regs := make([]Registration, 0, len(e.byTag))
	for _, reg := range e.byTag {
		regs = append(regs, reg.Registration)
	}
	e.mu.RUnlock()
	sort.Slice(regs, func(i, j int) bool { return regs[i].Tag < regs[j].Tag })
	return regs
}

// WriteAny writes value's type tag followed by its payload. A nil value is
// written as the reserved tag 0 with no payload. Values may nest at most
// MaxDepth levels deep.
func (e *Engine) WriteAny(buf *Buffer, value any) error {
	if value == nil {
		buf.WriteVarint(uint64(tagNil))
		return nil
	}
	typ := reflect.TypeOf(value)
	e.mu.RLock()
	reg, ok := e.byType[typ]
	e.mu.RUnlock()
	if !ok {
		return errorf(CodeUnregisteredType, "write: no serializer registered for %v", typ)
	}
	if err := buf.enter(CodeInvalidArgument); err != nil {
		return err
	}
	defer buf.leave()
	buf.WriteVarint(uint64(reg.Tag))
	if err := reg.serializer.Write(buf, value); err != nil {
		return wrapIfUncoded(CodeUnknown, err)
	}
	return nil
}

// ReadAny reads a type tag and then the payload of the registered type. Tag 0
// yields a nil value. Input nested more than MaxDepth levels deep is
// reported as CodeCorruptData.
func (e *Engine) ReadAny(buf *Buffer) (any, error) {
	raw, err := buf.ReadVarint()
	if err != nil {
		return nil, err
	}
	if raw > math.MaxUint32 {
		return nil, errorf(CodeCorruptData, "read: type tag %d out of range", raw)
	}
	tag := uint32(raw)
	if tag == tagNil {
		return nil, nil //nolint:nilnil
	}
	e.mu.RLock()
	reg, ok := e.byTag[tag]
	e.mu.RUnlock()
	if !ok {
		return nil, errorf(CodeUnregisteredType, "read: no serializer registered for tag %d", tag)
	}
	if err := buf.enter(CodeCorruptData); err != nil {
		return nil, err
	}
	defer buf.leave()
	value, err := reg.serializer.Read(buf)
	if err != nil {
		return nil, wrapIfUncoded(CodeCorruptData, err)
	}
	return value, nil
}

// Marshal encodes value, tag included, into a new byte slice.
func (e *Engine) Marshal(value any) ([]byte, error) {
	buf := getBuffer()
	defer putBuffer(buf)
	if err := e.WriteAny(buf, value); err != nil {
		return nil, err
	}
	out := make([]byte, buf.Len())
	copy(out, buf.Bytes())
	return out, nil
}

// Unmarshal decodes a single value produced by Marshal. Bytes left over after
// the value are treated as corruption.
func (e *Engine) Unmarshal(data []byte) (any, error) {
	buf := NewBuffer(data)
	value, err := e.ReadAny(buf)
	if err != nil {
		return nil, err
	}
	if buf.Len() != 0 {
		return nil, errorf(CodeCorruptData, "unmarshal: %d trailing bytes", buf.Len())
	}
	return value, nil
}

// insert must be called with mu held, or before the engine is shared.
func (e *Engine) insert(reg *registration) {
	e.byType[reg.Type] = reg
	e.byTag[reg.Tag] = reg
}

// A Customization registers types with an engine. Customizations run while
// the engine is being constructed, before it's shared with other goroutines.
type Customization interface {
	Customize(*Engine) error
}

// CustomizationFunc adapts a plain function to the Customization interface.
type CustomizationFunc func(*Engine) error

// Customize implements Customization.
func (f CustomizationFunc) Customize(e *Engine) error {
	return f(e)
}

// errNilCustomization is returned when WithCustomizations receives nil.
var errNilCustomization = errors.New("nil customization")
