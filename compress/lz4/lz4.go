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

// Package lz4 implements compress.Compressor with the LZ4 frame format.
package lz4

import (
	"io"
	"sync"

	"github.com/pierrec/lz4/v4"
	"github.com/sessionwire/sessionwire/compress"
)

const oneKiB = 1024

// Compressor implements compress.Compressor with LZ4. LZ4 trades ratio for
// speed, which suits blobs read on every request.
type Compressor struct {
	min     int
	readers sync.Pool
	writers sync.Pool
}

var _ compress.Compressor = (*Compressor)(nil)

// New creates a new Compressor. It doesn't compress payloads smaller than
// 1KiB.
func New() *Compressor {
	return &Compressor{
		min: oneKiB,
		readers: sync.Pool{
			New: func() any {
				return &reader{Reader: lz4.NewReader(nil)}
			},
		},
		writers: sync.Pool{
			New: func() any {
				return lz4.NewWriter(io.Discard)
			},
		},
	}
}

func (c *Compressor) ShouldCompress(bs []byte) bool {
	return len(bs) > c.min
}

func (c *Compressor) GetReader(r io.Reader) (io.ReadCloser, error) {
	lz4Reader, ok := c.readers.Get().(*reader)
	if !ok {
		lz4Reader = &reader{Reader: lz4.NewReader(nil)}
	}
	lz4Reader.Reset(r)
	return lz4Reader, nil
}

func (c *Compressor) PutReader(r io.ReadCloser) {
	lz4Reader, ok := r.(*reader)
	if !ok {
		return
	}
	lz4Reader.Reset(nil) // don't keep references
	c.readers.Put(lz4Reader)
}

func (c *Compressor) GetWriter(w io.Writer) io.WriteCloser {
	lz4Writer, ok := c.writers.Get().(*lz4.Writer)
	if !ok {
		return lz4.NewWriter(w)
	}
	lz4Writer.Reset(w)
	return lz4Writer
}

func (c *Compressor) PutWriter(w io.WriteCloser) {
	lz4Writer, ok := w.(*lz4.Writer)
	if !ok {
		return
	}
	if err := lz4Writer.Close(); err != nil { // close if we haven't already
		return
	}
	lz4Writer.Reset(io.Discard) // don't keep references
	c.writers.Put(lz4Writer)
}

// reader gives lz4.Reader the Close method the Compressor interface needs.
type reader struct {
	*lz4.Reader
}

func (r *reader) Close() error { return nil }
