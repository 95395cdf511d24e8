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
	"io"
	"sync"

	"google.golang.org/protobuf/encoding/protowire"
)

// A Buffer is the byte area serializers write to and read from. Writes always
// append; reads consume from an independent cursor, so a Buffer that was just
// written can be read back from the start.
//
// Strings, byte slices and integers use protobuf's varint wire primitives.
// Every read that runs out of bytes, or meets a malformed varint or length
// prefix, returns an *Error with CodeCorruptData.
//
// A Buffer isn't safe for concurrent use.
type Buffer struct {
	data  []byte
	off   int
	depth int
}

// MaxDepth bounds how deeply values written or read through an Engine may
// nest inside one another.
const MaxDepth = 64

// NewBuffer returns a Buffer positioned at the start of data. The Buffer takes
// ownership of data; callers shouldn't modify it afterwards.
func NewBuffer(data []byte) *Buffer {
	return &Buffer{data: data}
}

// Bytes returns the unread portion of the buffer. The slice aliases the
// buffer's storage and is only valid until the next write.
func (b *Buffer) Bytes() []byte {
	return b.data[b.off:]
}

// Len returns the number of unread bytes.
func (b *Buffer) Len() int {
	return len(b.data) - b.off
}

// Reset empties the buffer but keeps its storage.
func (b *Buffer) Reset() {
	b.data = b.data[:0]
	b.off = 0
	b.depth = 0
}

// WriteByte appends a single byte. It never fails; the error is there to
// satisfy io.ByteWriter.
func (b *Buffer) WriteByte(c byte) error {
	b.data = append(b.data, c)
	return nil
}

// ReadByte consumes a single byte.
func (b *Buffer) ReadByte() (byte, error) {
	if b.off >= len(b.data) {
		return 0, NewError(CodeCorruptData, io.ErrUnexpectedEOF)
	}
	c := b.data[b.off]
	b.off++
	return c, nil
}

// WriteBool appends 1 for true and 0 for false.
func (b *Buffer) WriteBool(v bool) {
	if v {
		b.data = append(b.data, 1)
		return
	}
	b.data = append(b.data, 0)
}

// ReadBool consumes one byte. Only the value 1 decodes to true; every other
// value, not just 0, decodes to false.
func (b *Buffer) ReadBool() (bool, error) {
	c, err := b.ReadByte()
	if err != nil {
		return false, err
	}
	return c == 1, nil
}

// WriteVarint appends v as an unsigned LEB128 varint. Small values take a
// single byte.
func (b *Buffer) WriteVarint(v uint64) {
	b.data = protowire.AppendVarint(b.data, v)
}

// ReadVarint consumes an unsigned varint.
func (b *Buffer) ReadVarint() (uint64, error) {
	v, n := protowire.ConsumeVarint(b.data[b.off:])
	if n < 0 {
		return 0, corruptf(n, "varint")
	}
	b.off += n
	return v, nil
}

// WriteSignedVarint appends v zig-zag encoded, so small negative numbers stay
// short.
func (b *Buffer) WriteSignedVarint(v int64) {
	b.WriteVarint(protowire.EncodeZigZag(v))
}

// ReadSignedVarint consumes a zig-zag encoded varint.
func (b *Buffer) ReadSignedVarint() (int64, error) {
	v, err := b.ReadVarint()
	if err != nil {
		return 0, err
	}
	return protowire.DecodeZigZag(v), nil
}

// WriteString appends s prefixed with its length in bytes.
func (b *Buffer) WriteString(s string) {
	b.data = protowire.AppendString(b.data, s)
}

// ReadString consumes a length-prefixed string.
func (b *Buffer) ReadString() (string, error) {
	v, n := protowire.ConsumeString(b.data[b.off:])
	if n < 0 {
		return "", corruptf(n, "string")
	}
	b.off += n
	return v, nil
}

// WriteBytes appends p prefixed with its length.
func (b *Buffer) WriteBytes(p []byte) {
	b.data = protowire.AppendBytes(b.data, p)
}

// ReadBytes consumes a length-prefixed byte slice. The result is a copy.
func (b *Buffer) ReadBytes() ([]byte, error) {
	v, n := protowire.ConsumeBytes(b.data[b.off:])
	if n < 0 {
		return nil, corruptf(n, "bytes")
	}
	b.off += n
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

// Write appends p verbatim, with no length prefix. It implements io.Writer.
func (b *Buffer) Write(p []byte) (int, error) {
	b.data = append(b.data, p...)
	return len(p), nil
}

// enter records one more level of nesting, failing with code past MaxDepth.
// Every successful enter must be paired with a leave.
func (b *Buffer) enter(code Code) error {
	if b.depth >= MaxDepth {
		return errorf(code, "nesting deeper than %d", MaxDepth)
	}
	b.depth++
	return nil
}

func (b *Buffer) leave() {
	b.depth--
}

func corruptf(n int, what string) *Error {
	err := protowire.ParseError(n)
	if err == io.ErrUnexpectedEOF {
		return NewError(CodeCorruptData, err)
	}
	return errorf(CodeCorruptData, "malformed %s: %w", what, err)
}

var bufferPool = sync.Pool{
	New: func() any {
		return &Buffer{data: make([]byte, 0, 512)}
	},
}

func getBuffer() *Buffer {
	return bufferPool.Get().(*Buffer) //nolint:forcetypeassert
}

func putBuffer(buf *Buffer) {
	const maxRetained = 1024 * 1024 // if >1 MiB, don't hold onto it
	if cap(buf.data) > maxRetained {
		return
	}
	buf.Reset()
	bufferPool.Put(buf)
}
