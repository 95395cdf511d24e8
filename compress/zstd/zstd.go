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

// Package zstd implements compress.Compressor with klauspost/compress's
// zstd package.
package zstd

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/sessionwire/sessionwire/compress"
)

const (
	oneKiB        = 1024
	defaultWindow = 8 << 20
)

// Compressor implements compress.Compressor with zstd. Encoders are pooled.
// Decoders aren't: a closed zstd.Decoder can't be reused, and the blobs this
// package sees are small enough that a single-goroutine decoder is cheap.
type Compressor struct {
	min       int
	level     zstd.EncoderLevel
	maxMemory uint64
	writers   sync.Pool
}

// An Option configures a Compressor.
type Option func(*Compressor)

// WithMaxMemory caps the window a frame may declare, and so the memory a
// decoder allocates. Frames asking for more fail with an error wrapping
// compress.ErrTooLarge. Zero keeps the library default.
func WithMaxMemory(n uint64) Option {
	return func(c *Compressor) {
		c.maxMemory = n
	}
}

var _ compress.Compressor = (*Compressor)(nil)

// New creates a new Compressor at zstd's default speed. It doesn't compress
// payloads smaller than 1KiB.
func New(options ...Option) *Compressor {
	c := &Compressor{
		min:   oneKiB,
		level: zstd.SpeedDefault,
	}
	for _, opt := range options {
		opt(c)
	}
	c.writers.New = func() any {
		encoder, err := zstd.NewWriter(nil, c.encoderOptions()...)
		if err != nil {
			return nil
		}
		return encoder
	}
	return c
}

func (c *Compressor) ShouldCompress(bs []byte) bool {
	return len(bs) > c.min
}

func (c *Compressor) GetReader(r io.Reader) (io.ReadCloser, error) {
	options := []zstd.DOption{zstd.WithDecoderConcurrency(1)}
	if c.maxMemory > 0 {
		options = append(options, zstd.WithDecoderMaxMemory(c.maxMemory))
	}
	decoder, err := zstd.NewReader(r, options...)
	if err != nil {
		return nil, err
	}
	return &reader{ReadCloser: decoder.IOReadCloser()}, nil
}

func (c *Compressor) PutReader(r io.ReadCloser) {
	_ = r.Close()
}

func (c *Compressor) GetWriter(w io.Writer) io.WriteCloser {
	if encoder, ok := c.writers.Get().(*zstd.Encoder); ok {
		encoder.Reset(w)
		return encoder
	}
	encoder, err := zstd.NewWriter(w, c.encoderOptions()...)
	if err != nil {
		return &failedWriter{err: err}
	}
	return encoder
}

func (c *Compressor) PutWriter(w io.WriteCloser) {
	encoder, ok := w.(*zstd.Encoder)
	if !ok {
		return
	}
	if err := encoder.Close(); err != nil { // close if we haven't already
		return
	}
	encoder.Reset(io.Discard) // don't keep references
	c.writers.Put(encoder)
}

// encoderOptions keeps the encoder's window within maxMemory, so frames this
// Compressor writes are always readable by a decoder with the same limit.
func (c *Compressor) encoderOptions() []zstd.EOption {
	options := []zstd.EOption{
		zstd.WithEncoderLevel(c.level),
		zstd.WithEncoderConcurrency(1),
	}
	if c.maxMemory == 0 {
		return options
	}
	window := uint64(defaultWindow)
	for window > c.maxMemory && window > zstd.MinWindowSize {
		window >>= 1
	}
	return append(options, zstd.WithWindowSize(int(window)))
}

// failedWriter reports an encoder construction error on first use.
type failedWriter struct {
	err error
}

func (w *failedWriter) Write([]byte) (int, error) { return 0, w.err }
func (w *failedWriter) Close() error              { return w.err }

// reader reports oversized frames as compress.ErrTooLarge.
type reader struct {
	io.ReadCloser
}

func (r *reader) Read(p []byte) (int, error) {
	n, err := r.ReadCloser.Read(p)
	if errors.Is(err, zstd.ErrDecoderSizeExceeded) || errors.Is(err, zstd.ErrWindowSizeExceeded) {
		err = fmt.Errorf("%w: %w", compress.ErrTooLarge, err)
	}
	return n, err
}
