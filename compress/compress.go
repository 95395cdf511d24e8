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

// Package compress defines the abstraction for pluggable compression of
// encoded session blobs, plus helpers that run whole byte slices through a
// Compressor.
package compress

import (
	"bytes"
	"errors"
	"fmt"
	"io"
)

// Names of the bundled compressors.
const (
	NameNone = "none"
	NameGzip = "gzip"
	NameZstd = "zstd"
	NameLZ4  = "lz4"
)

// ErrTooLarge is returned by Decompress when the output would exceed the
// caller's limit.
var ErrTooLarge = errors.New("decompressed data exceeds limit")

// A Compressor provides compressing readers and writers. The interface is
// designed to let implementations use a sync.Pool.
//
// Additionally, Compressors contain logic to decide whether it's worth
// compressing a given payload. Often, it's not worth burning CPU cycles
// compressing small payloads.
type Compressor interface {
	GetReader(io.Reader) (io.ReadCloser, error)
	PutReader(io.ReadCloser)

	ShouldCompress([]byte) bool
	GetWriter(io.Writer) io.WriteCloser
	PutWriter(io.WriteCloser)
}

// Compress runs data through compressor and returns the compressed bytes.
func Compress(compressor Compressor, data []byte) ([]byte, error) {
	var out bytes.Buffer
	writer := compressor.GetWriter(&out)
	defer compressor.PutWriter(writer)
	if _, err := writer.Write(data); err != nil {
		return nil, err
	}
	// Close flushes the final frame; the close in PutWriter is then a no-op.
	if err := writer.Close(); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// Decompress reverses Compress. If maxBytes is positive and the output would
// be larger, it stops early and returns an error wrapping ErrTooLarge.
func Decompress(compressor Compressor, data []byte, maxBytes int64) ([]byte, error) {
	reader, err := compressor.GetReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer compressor.PutReader(reader)
	var source io.Reader = reader
	if maxBytes > 0 {
		// Read one byte past the limit to tell "exactly max" from "too big".
		source = io.LimitReader(reader, maxBytes+1)
	}
	var out bytes.Buffer
	n, err := out.ReadFrom(source)
	if err != nil {
		return nil, err
	}
	if maxBytes > 0 && n > maxBytes {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrTooLarge, maxBytes)
	}
	return out.Bytes(), nil
}
