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

// Package gzip implements compress.Compressor with klauspost/compress's
// drop-in gzip package.
package gzip

import (
	"io"
	"sync"

	"github.com/klauspost/compress/gzip"
	"github.com/sessionwire/sessionwire/compress"
)

const oneKiB = 1024

// Compressor implements compress.Compressor with gzip.
type Compressor struct {
	min     int
	readers sync.Pool
	writers sync.Pool
}

var _ compress.Compressor = (*Compressor)(nil)

// New creates a new Compressor. The compressor uses the default compression
// level, and it doesn't compress payloads smaller than 1KiB.
func New() *Compressor {
	return &Compressor{
		min: oneKiB,
		readers: sync.Pool{
			New: func() any {
				// We don't want to use gzip.NewReader, because it requires a source of
				// valid gzipped bytes.
				return &gzip.Reader{}
			},
		},
		writers: sync.Pool{
			New: func() any {
				return gzip.NewWriter(io.Discard)
			},
		},
	}
}

func (c *Compressor) ShouldCompress(bs []byte) bool {
	return len(bs) > c.min
}

func (c *Compressor) GetReader(r io.Reader) (io.ReadCloser, error) {
	gzipReader, ok := c.readers.Get().(*gzip.Reader)
	if !ok {
		return gzip.NewReader(r)
	}
	if err := gzipReader.Reset(r); err != nil {
		return nil, err
	}
	return gzipReader, nil
}

func (c *Compressor) PutReader(r io.ReadCloser) {
	gzipReader, ok := r.(*gzip.Reader)
	if !ok {
		return
	}
	if err := gzipReader.Close(); err != nil { // close if we haven't already
		return
	}
	c.readers.Put(gzipReader)
}

func (c *Compressor) GetWriter(w io.Writer) io.WriteCloser {
	gzipWriter, ok := c.writers.Get().(*gzip.Writer)
	if !ok {
		return gzip.NewWriter(w)
	}
	gzipWriter.Reset(w)
	return gzipWriter
}

func (c *Compressor) PutWriter(w io.WriteCloser) {
	gzipWriter, ok := w.(*gzip.Writer)
	if !ok {
		return
	}
	if err := gzipWriter.Close(); err != nil { // close if we haven't already
		return
	}
	gzipWriter.Reset(io.Discard) // don't keep references
	c.writers.Put(gzipWriter)
}
