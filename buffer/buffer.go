// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package buffer implements MessageBuffer and its Cursor: a contiguous byte
// region plus bounded read/write access, the sole path by which a Codec
// mutates a message.
//
// Invariant carried throughout this package: 0 <= P <= U <= C, where C is
// capacity, U is the "used" high-water mark, and P is the cursor position.
package buffer

import "code.hybscloud.com/erpc"

// MessageBuffer owns a byte region plus a "used" high-water mark. It is
// exclusively owned by whoever holds it: a Transport or Codec borrows it
// for the duration of one send/receive or one message, never across
// goroutines concurrently.
type MessageBuffer struct {
	data []byte
	used int
}

// New allocates a MessageBuffer with the given capacity from the heap. Use
// a Factory (DynamicFactory or StaticPool) when the allocation policy
// itself needs to be selectable, e.g. to satisfy a no-heap-after-init
// build.
func New(capacity int) *MessageBuffer {
	return &MessageBuffer{data: make([]byte, capacity)}
}

// Data returns the full backing region, capacity C. Callers that need only
// the logical payload should use Used and slice accordingly.
func (b *MessageBuffer) Data() []byte { return b.data }

// Capacity returns C.
func (b *MessageBuffer) Capacity() int { return len(b.data) }

// Used returns U, the high-water mark established by writes or by the
// transport at message reception.
func (b *MessageBuffer) Used() int { return b.used }

// SetUsed sets U directly. A Transport calls this after Receive fills the
// buffer so a Codec's reads are bounded by the logical payload length
// rather than the full capacity. Fails with StatusBufferOverrun if n > C.
func (b *MessageBuffer) SetUsed(n int) erpc.Status {
	if n < 0 || n > len(b.data) {
		return erpc.StatusBufferOverrun
	}
	b.used = n
	return erpc.StatusSuccess
}

// Reset clears U back to zero, preparing the buffer for reuse by a
// factory. It does not zero the backing array.
func (b *MessageBuffer) Reset() { b.used = 0 }

// Cursor returns a new Cursor over b, positioned at offset. A Transport's
// HeaderReserveSize() bytes are skipped this way before a Codec begins
// writing its message header, leaving room for any transport framing that
// gets filled in after the payload is known.
func (b *MessageBuffer) Cursor(offset int) *Cursor {
	return &Cursor{buf: b, pos: offset}
}

// Cursor is the only path by which (de)serialization code may read or
// write a MessageBuffer's bytes. Write advances and raises U; Read is
// bounded by the buffer's logical payload length (U), not the raw
// capacity, so trailing garbage past a received message can never leak
// into a decode.
type Cursor struct {
	buf *MessageBuffer
	pos int
}

// Position returns the cursor's current offset P.
func (c *Cursor) Position() int { return c.pos }

// Remaining returns the number of bytes left before the buffer's capacity
// C is exhausted — the bound that governs writes.
func (c *Cursor) Remaining() int { return len(c.buf.data) - c.pos }

// RemainingUsed returns the number of bytes left before the buffer's
// logical payload length U is exhausted — the bound that governs reads.
func (c *Cursor) RemainingUsed() int { return c.buf.used - c.pos }

// Write copies n bytes from src into the buffer at the cursor and advances
// P, extending U if the write reached past the previous high-water mark.
// Fails with StatusBufferOverrun if P+n would exceed C; in that case no
// bytes are copied and P is unchanged.
func (c *Cursor) Write(src []byte) erpc.Status {
	n := len(src)
	if c.pos+n > len(c.buf.data) {
		return erpc.StatusBufferOverrun
	}
	copy(c.buf.data[c.pos:c.pos+n], src)
	c.pos += n
	if c.pos > c.buf.used {
		c.buf.used = c.pos
	}
	return erpc.StatusSuccess
}

// Read copies n bytes from the cursor into dst and advances P. Fails with
// StatusFail if P+n exceeds the buffer's logical payload length U (the
// length established when the message was received), or with
// StatusBufferOverrun if P+n exceeds the raw capacity C — the latter can
// only happen if a caller manually inflated U past C, which New/SetUsed
// never allow, so in practice this is a defense-in-depth branch rather
// than one reachable through normal use.
func (c *Cursor) Read(dst []byte) erpc.Status {
	n := len(dst)
	if c.pos+n > c.buf.used {
		return erpc.StatusFail
	}
	if c.pos+n > len(c.buf.data) {
		return erpc.StatusBufferOverrun
	}
	copy(dst, c.buf.data[c.pos:c.pos+n])
	c.pos += n
	return erpc.StatusSuccess
}

// Peek returns a zero-copy slice of the next n bytes without advancing P,
// for the codec's zero-copy binary/string reads: rather than copying out a
// binary blob or string payload, the codec can hand back a slice aliasing
// the buffer directly. The caller's use of the returned slice must not
// outlive the MessageBuffer.
func (c *Cursor) Peek(n int) ([]byte, erpc.Status) {
	if c.pos+n > c.buf.used {
		return nil, erpc.StatusFail
	}
	if c.pos+n > len(c.buf.data) {
		return nil, erpc.StatusBufferOverrun
	}
	return c.buf.data[c.pos : c.pos+n], erpc.StatusSuccess
}

// Skip advances P by n bytes without copying, used after a zero-copy Peek.
// Bounds-checked the same way Read is.
func (c *Cursor) Skip(n int) erpc.Status {
	if c.pos+n > c.buf.used {
		return erpc.StatusFail
	}
	if c.pos+n > len(c.buf.data) {
		return erpc.StatusBufferOverrun
	}
	c.pos += n
	return erpc.StatusSuccess
}
