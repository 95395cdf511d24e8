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

// Package transcoder turns a session's attributes into a single blob for a
// session store and back, using a sessionwire.Engine for the values.
//
// A blob is one compression byte followed by the (possibly compressed) body.
// The body is the attribute count as a varint, then each attribute in sorted
// key order: the key as a length-prefixed string and the value as written by
// Engine.WriteAny.
package transcoder

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/sessionwire/sessionwire"
	"github.com/sessionwire/sessionwire/compress"
	"github.com/sessionwire/sessionwire/compress/gzip"
	"github.com/sessionwire/sessionwire/compress/lz4"
	"github.com/sessionwire/sessionwire/compress/zstd"
)

// Compression tags stored in the first byte of every blob. These are format
// constants; changing them breaks existing blobs.
const (
	tagNone byte = 0
	tagGzip byte = 1
	tagZstd byte = 2
	tagLZ4  byte = 3
)

const defaultMaxDecodedBytes = 64 << 20

var errEmptyBlob = errors.New("empty blob")

// A Transcoder encodes and decodes session attribute maps. It's safe for
// concurrent use.
type Transcoder struct {
	engine          *sessionwire.Engine
	compression     byte
	compressors     map[byte]compress.Compressor
	maxDecodedBytes int64
}

// An Option configures a Transcoder.
type Option func(*config) error

type config struct {
	compression     string
	maxDecodedBytes int64
}

// WithCompression selects the compressor used by Encode: "none", "gzip",
// "zstd" or "lz4". Decode accepts every algorithm regardless. The default is
// "none".
func WithCompression(name string) Option {
	return func(c *config) error {
		if _, err := tagForName(name); err != nil {
			return err
		}
		c.compression = name
		return nil
	}
}

// WithMaxDecodedBytes bounds how large a decompressed body may grow. The
// default is 64MiB. Non-positive values remove the bound.
func WithMaxDecodedBytes(n int64) Option {
	return func(c *config) error {
		c.maxDecodedBytes = n
		return nil
	}
}

// New constructs a Transcoder. The engine must already have every type that
// will appear in a session registered.
func New(engine *sessionwire.Engine, options ...Option) (*Transcoder, error) {
	if engine == nil {
		return nil, sessionwire.NewError(sessionwire.CodeInvalidArgument, errors.New("transcoder: nil engine"))
	}
	cfg := config{
		compression:     compress.NameNone,
		maxDecodedBytes: defaultMaxDecodedBytes,
	}
	for _, opt := range options {
		if err := opt(&cfg); err != nil {
			return nil, sessionwire.NewError(sessionwire.CodeInvalidArgument, err)
		}
	}
	tag, err := tagForName(cfg.compression)
	if err != nil {
		return nil, sessionwire.NewError(sessionwire.CodeInvalidArgument, err)
	}
	return &Transcoder{
		engine:      engine,
		compression: tag,
		compressors: map[byte]compress.Compressor{
			tagGzip: gzip.New(),
			tagZstd: zstd.New(zstd.WithMaxMemory(maxMemory(cfg.maxDecodedBytes))),
			tagLZ4:  lz4.New(),
		},
		maxDecodedBytes: cfg.maxDecodedBytes,
	}, nil
}

// Compression returns the name of the compressor Encode uses.
func (t *Transcoder) Compression() string {
	return nameForTag(t.compression)
}

// Encode serializes attrs. Values must be nil or of a type registered with
// the engine.
func (t *Transcoder) Encode(attrs map[string]any) ([]byte, error) {
	keys := make([]string, 0, len(attrs))
	for key := range attrs {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	body := sessionwire.NewBuffer(nil)
	body.WriteVarint(uint64(len(keys)))
	for _, key := range keys {
		body.WriteString(key)
		if err := t.engine.WriteAny(body, attrs[key]); err != nil {
			return nil, fmt.Errorf("attribute %q: %w", key, err)
		}
	}
	raw := body.Bytes()

	tag := t.compression
	compressor, ok := t.compressors[tag]
	if !ok || !compressor.ShouldCompress(raw) {
		return append([]byte{tagNone}, raw...), nil
	}
	compressed, err := compress.Compress(compressor, raw)
	if err != nil {
		return nil, sessionwire.NewError(sessionwire.CodeUnknown, fmt.Errorf("%s: %w", nameForTag(tag), err))
	}
	return append([]byte{tag}, compressed...), nil
}

// Decode reverses Encode.
func (t *Transcoder) Decode(blob []byte) (map[string]any, error) {
	if len(blob) == 0 {
		return nil, sessionwire.NewError(sessionwire.CodeCorruptData, errEmptyBlob)
	}
	tag, payload := blob[0], blob[1:]
	if tag != tagNone {
		compressor, ok := t.compressors[tag]
		if !ok {
			return nil, sessionwire.NewError(
				sessionwire.CodeCorruptData, fmt.Errorf("unknown compression tag %d", tag),
			)
		}
		raw, err := compress.Decompress(compressor, payload, t.maxDecodedBytes)
		if err != nil {
			return nil, sessionwire.NewError(
				sessionwire.CodeCorruptData, fmt.Errorf("%s: %w", nameForTag(tag), err),
			)
		}
		payload = raw
	} else if t.maxDecodedBytes > 0 && int64(len(payload)) > t.maxDecodedBytes {
		return nil, sessionwire.NewError(
			sessionwire.CodeCorruptData, fmt.Errorf("%w: more than %d bytes", compress.ErrTooLarge, t.maxDecodedBytes),
		)
	}

	body := sessionwire.NewBuffer(payload)
	count, err := body.ReadVarint()
	if err != nil {
		return nil, err
	}
	if count > math.MaxInt32 || int(count) > body.Len() {
		return nil, sessionwire.NewError(sessionwire.CodeCorruptData, fmt.Errorf("attribute count %d out of range", count))
	}
	attrs := make(map[string]any, int(count))
	for i := uint64(0); i < count; i++ {
		key, err := body.ReadString()
		if err != nil {
			return nil, err
		}
		if _, dup := attrs[key]; dup {
			return nil, sessionwire.NewError(sessionwire.CodeCorruptData, fmt.Errorf("duplicate attribute %q", key))
		}
		value, err := t.engine.ReadAny(body)
		if err != nil {
			return nil, fmt.Errorf("attribute %q: %w", key, err)
		}
		attrs[key] = value
	}
	if body.Len() != 0 {
		return nil, sessionwire.NewError(sessionwire.CodeCorruptData, fmt.Errorf("%d trailing bytes", body.Len()))
	}
	return attrs, nil
}

// maxMemory converts the decode limit to a zstd memory cap; zero means no cap.
func maxMemory(maxDecodedBytes int64) uint64 {
	if maxDecodedBytes <= 0 {
		return 0
	}
	return uint64(maxDecodedBytes)
}

func tagForName(name string) (byte, error) {
	switch name {
	case compress.NameNone, "":
		return tagNone, nil
	case compress.NameGzip:
		return tagGzip, nil
	case compress.NameZstd:
		return tagZstd, nil
	case compress.NameLZ4:
		return tagLZ4, nil
	default:
		return 0, fmt.Errorf("unknown compression %q", name)
	}
}

func nameForTag(tag byte) string {
	switch tag {
	case tagNone:
		return compress.NameNone
	case tagGzip:
		return compress.NameGzip
	case tagZstd:
		return compress.NameZstd
	case tagLZ4:
		return compress.NameLZ4
	default:
		return fmt.Sprintf("unknown(%d)", tag)
	}
}
