// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package codec implements the canonical eRPC wire format: the
// serialize/deserialize rules for IDL primitives, strings, binary blobs,
// lists, unions, nullable references, shared-memory pointers, and message
// headers.
//
// A Codec is stateless except for the MessageBuffer cursor it borrows and a
// sticky status word: once any operation fails, every subsequent operation
// on the same Codec is a no-op that preserves the first failure. This lets
// generated stubs write (or read) a whole message optimistically and check
// status exactly once at the end, rather than after every field.
package codec

import (
	"encoding/binary"
	"math"
	"unsafe"

	"code.hybscloud.com/erpc"
	"code.hybscloud.com/erpc/buffer"
	"code.hybscloud.com/erpc/internal/bo"
)

// ptrWidth is this build's uintptr width in bytes: the sending side's
// sizeof(uintptr_t), which a pointer's wire format records alongside its
// raw bytes so a differently-sized receiver can detect the mismatch.
const ptrWidth = unsafe.Sizeof(uintptr(0))

// Codec drives one message's worth of (de)serialization over a borrowed
// buffer.Cursor. Construct one per message, not one per connection: a
// Codec has no knowledge of the transport or of message boundaries beyond
// what StartWriteMessage/StartReadMessage establish.
type Codec struct {
	cursor *buffer.Cursor
	bo     binary.ByteOrder
	status erpc.Status
}

// New returns a Codec writing/reading through cursor using eRPC's default
// wire byte order (little-endian).
func New(cursor *buffer.Cursor) *Codec {
	return &Codec{cursor: cursor, bo: erpc.WireByteOrder}
}

// NewWithByteOrder returns a Codec using an explicitly agreed byte order,
// for deployments whose two peers have compiled in something other than
// the little-endian default.
func NewWithByteOrder(cursor *buffer.Cursor, order binary.ByteOrder) *Codec {
	return &Codec{cursor: cursor, bo: order}
}

// NewNative returns a Codec using this build's native byte order rather
// than the wire default. Some deployments skip the little-endian default
// and instead agree to use whatever byte order both ends compile with —
// sound only when both peers are known to share an architecture family,
// e.g. two cores of the same MCU talking over the inter-thread transport.
func NewNative(cursor *buffer.Cursor) *Codec {
	return &Codec{cursor: cursor, bo: bo.Native()}
}

// Status returns the sticky status: StatusSuccess until the first failed
// operation, and that failure's code from then on.
func (c *Codec) Status() erpc.Status { return c.status }

// Reset clears the sticky status and rebinds the codec to a new cursor,
// letting one Codec value be reused across messages without reallocating.
func (c *Codec) Reset(cursor *buffer.Cursor) {
	c.cursor = cursor
	c.status = erpc.StatusSuccess
}

func (c *Codec) ok() bool { return c.status == erpc.StatusSuccess }

// fail records s as the sticky status if no earlier operation already
// failed. The first failure wins; later calls never overwrite it.
func (c *Codec) fail(s erpc.Status) {
	if c.status == erpc.StatusSuccess {
		c.status = s
	}
}

// writeRaw copies b into the buffer at the cursor if the codec is not
// already poisoned, recording any cursor failure as the sticky status.
func (c *Codec) writeRaw(b []byte) {
	if !c.ok() {
		return
	}
	if st := c.cursor.Write(b); !st.Ok() {
		c.fail(st)
	}
}

// readRaw copies len(dst) bytes from the cursor into dst if the codec is
// not already poisoned.
func (c *Codec) readRaw(dst []byte) {
	if !c.ok() {
		return
	}
	if st := c.cursor.Read(dst); !st.Ok() {
		c.fail(st)
	}
}

// StartWriteMessage writes the packed 32-bit header word followed by the
// 32-bit sequence number, the fixed 8-byte preamble every message begins
// with.
func (c *Codec) StartWriteMessage(typ erpc.MessageType, service, request uint8, sequence uint32) {
	hdr := erpc.Header{Type: typ, Service: service, Request: request, Sequence: sequence}
	c.WriteUint32(hdr.Pack())
	c.WriteUint32(sequence)
}

// StartReadMessage reads the 8-byte preamble and returns the decoded
// header plus sequence. If the wire version byte does not equal
// erpc.Version, the codec fails with StatusInvalidMessageVersion and the
// returned Header/sequence are zero.
func (c *Codec) StartReadMessage() (hdr erpc.Header, sequence uint32) {
	word := c.ReadUint32()
	if !c.ok() {
		return erpc.Header{}, 0
	}
	version := hdr.Unpack(word)
	if version != erpc.Version {
		c.fail(erpc.StatusInvalidMessageVersion)
		return erpc.Header{}, 0
	}
	sequence = c.ReadUint32()
	if !c.ok() {
		return erpc.Header{}, 0
	}
	return hdr, sequence
}

// WriteBool writes a single byte, 0 or 1.
func (c *Codec) WriteBool(v bool) {
	var b byte
	if v {
		b = 1
	}
	c.writeRaw([]byte{b})
}

// WriteInt8 writes one byte.
func (c *Codec) WriteInt8(v int8) { c.writeRaw([]byte{byte(v)}) }

// WriteUint8 writes one byte.
func (c *Codec) WriteUint8(v uint8) { c.writeRaw([]byte{v}) }

// WriteInt16 writes two bytes in the codec's byte order.
func (c *Codec) WriteInt16(v int16) { c.WriteUint16(uint16(v)) }

// WriteUint16 writes two bytes in the codec's byte order.
func (c *Codec) WriteUint16(v uint16) {
	if !c.ok() {
		return
	}
	var b [2]byte
	c.bo.PutUint16(b[:], v)
	c.writeRaw(b[:])
}

// WriteInt32 writes four bytes in the codec's byte order.
func (c *Codec) WriteInt32(v int32) { c.WriteUint32(uint32(v)) }

// WriteUint32 writes four bytes in the codec's byte order.
func (c *Codec) WriteUint32(v uint32) {
	if !c.ok() {
		return
	}
	var b [4]byte
	c.bo.PutUint32(b[:], v)
	c.writeRaw(b[:])
}

// WriteInt64 writes eight bytes in the codec's byte order.
func (c *Codec) WriteInt64(v int64) { c.WriteUint64(uint64(v)) }

// WriteUint64 writes eight bytes in the codec's byte order.
func (c *Codec) WriteUint64(v uint64) {
	if !c.ok() {
		return
	}
	var b [8]byte
	c.bo.PutUint64(b[:], v)
	c.writeRaw(b[:])
}

// WriteFloat32 writes the IEEE-754 bit pattern of v, four bytes.
func (c *Codec) WriteFloat32(v float32) { c.WriteUint32(math.Float32bits(v)) }

// WriteFloat64 writes the IEEE-754 bit pattern of v, eight bytes.
func (c *Codec) WriteFloat64(v float64) { c.WriteUint64(math.Float64bits(v)) }

// WritePointer writes a shared-memory pointer as {u8 width, width bytes},
// where width is this build's sizeof(uintptr_t).
func (c *Codec) WritePointer(v uintptr) {
	c.WriteUint8(uint8(ptrWidth))
	if !c.ok() {
		return
	}
	var b [8]byte
	c.bo.PutUint64(b[:], uint64(v))
	if c.bo == binary.BigEndian {
		c.writeRaw(b[8-ptrWidth:])
		return
	}
	c.writeRaw(b[:ptrWidth])
}

// WriteString writes a string as a u32 length followed by its raw bytes,
// no terminator. Strings are treated as binary on the wire.
func (c *Codec) WriteString(s string) {
	c.WriteBinary([]byte(s))
}

// WriteBinary writes a u32 length followed by data's bytes.
func (c *Codec) WriteBinary(data []byte) {
	c.WriteUint32(uint32(len(data)))
	c.writeRaw(data)
}

// StartWriteList writes a list's u32 element count. The caller then writes
// count elements using whatever Write* method matches the element type.
func (c *Codec) StartWriteList(length uint32) { c.WriteUint32(length) }

// StartWriteUnion writes a union's i32 discriminator. The caller then
// writes exactly the fields the generated schema associates with that arm.
func (c *Codec) StartWriteUnion(discriminator int32) { c.WriteInt32(discriminator) }

// WriteNullFlag writes the one-byte null flag that precedes any nullable
// reference value. If isNull, the caller must not write the referenced
// value's bytes afterward.
func (c *Codec) WriteNullFlag(isNull bool) {
	var flag uint8
	if isNull {
		flag = 1
	}
	c.WriteUint8(flag)
}

// ReadBool reads a single byte and reports it as a boolean.
func (c *Codec) ReadBool() bool {
	return c.ReadUint8() != 0
}

// ReadInt8 reads one byte.
func (c *Codec) ReadInt8() int8 { return int8(c.ReadUint8()) }

// ReadUint8 reads one byte.
func (c *Codec) ReadUint8() uint8 {
	var b [1]byte
	c.readRaw(b[:])
	return b[0]
}

// ReadInt16 reads two bytes in the codec's byte order.
func (c *Codec) ReadInt16() int16 { return int16(c.ReadUint16()) }

// ReadUint16 reads two bytes in the codec's byte order.
func (c *Codec) ReadUint16() uint16 {
	var b [2]byte
	c.readRaw(b[:])
	if !c.ok() {
		return 0
	}
	return c.bo.Uint16(b[:])
}

// ReadInt32 reads four bytes in the codec's byte order.
func (c *Codec) ReadInt32() int32 { return int32(c.ReadUint32()) }

// ReadUint32 reads four bytes in the codec's byte order.
func (c *Codec) ReadUint32() uint32 {
	var b [4]byte
	c.readRaw(b[:])
	if !c.ok() {
		return 0
	}
	return c.bo.Uint32(b[:])
}

// ReadInt64 reads eight bytes in the codec's byte order.
func (c *Codec) ReadInt64() int64 { return int64(c.ReadUint64()) }

// ReadUint64 reads eight bytes in the codec's byte order.
func (c *Codec) ReadUint64() uint64 {
	var b [8]byte
	c.readRaw(b[:])
	if !c.ok() {
		return 0
	}
	return c.bo.Uint64(b[:])
}

// ReadFloat32 reads four bytes as an IEEE-754 bit pattern.
func (c *Codec) ReadFloat32() float32 { return math.Float32frombits(c.ReadUint32()) }

// ReadFloat64 reads eight bytes as an IEEE-754 bit pattern.
func (c *Codec) ReadFloat64() float64 { return math.Float64frombits(c.ReadUint64()) }

// ReadPointer reads a {u8 width, width bytes} shared-memory pointer. If the
// wire width exceeds this build's uintptr width, the receiver cannot hold
// the value and the codec fails with StatusBadAddressScale. If the wire
// width is narrower, the value is zero-extended — a sending peer with a
// smaller address space can always be represented on a receiver with a
// larger one.
func (c *Codec) ReadPointer() uintptr {
	width := c.ReadUint8()
	if !c.ok() {
		return 0
	}
	if uintptr(width) > ptrWidth {
		c.fail(erpc.StatusBadAddressScale)
		return 0
	}
	var b [8]byte
	if c.bo == binary.BigEndian {
		c.readRaw(b[8-int(width):])
	} else {
		c.readRaw(b[:width])
	}
	if !c.ok() {
		return 0
	}
	return uintptr(c.bo.Uint64(b[:]))
}

// ReadString reads a u32 length followed by that many bytes and returns
// them as a string. The bytes are copied (strings must not alias a buffer
// that may be reused), unlike ReadBinary's zero-copy slice.
func (c *Codec) ReadString() string {
	return string(c.ReadBinary())
}

// ReadBinary reads a u32 length followed by that many bytes. It returns a
// slice into the underlying MessageBuffer (zero-copy): the caller's use of
// the returned slice must not outlive the buffer. A length greater than the
// buffer's remaining capacity fails with StatusBufferOverrun; a length
// within capacity but greater than the buffer's remaining logical payload
// fails with StatusFail — a length prefix read off the wire is never
// trusted blindly.
func (c *Codec) ReadBinary() []byte {
	length := c.ReadUint32()
	if !c.ok() {
		return nil
	}
	if length == 0 {
		return nil
	}
	if uint32(c.cursor.Remaining()) < length {
		c.fail(erpc.StatusBufferOverrun)
		return nil
	}
	if uint32(c.cursor.RemainingUsed()) < length {
		c.fail(erpc.StatusFail)
		return nil
	}
	data, st := c.cursor.Peek(int(length))
	if !st.Ok() {
		c.fail(st)
		return nil
	}
	c.fail(c.cursor.Skip(int(length)))
	if !c.ok() {
		return nil
	}
	return data
}

// StartReadList reads a list's u32 element count. On failure, length is 0.
func (c *Codec) StartReadList() (length uint32) {
	length = c.ReadUint32()
	if !c.ok() {
		return 0
	}
	return length
}

// StartReadUnion reads a union's i32 discriminator. The caller dispatches
// on it and reads exactly the fields the generated schema associates with
// that arm; an unknown discriminator is the generated stub's concern to
// detect, not something this codec recovers from on its own.
func (c *Codec) StartReadUnion() (discriminator int32) {
	return c.ReadInt32()
}

// ReadNullFlag reads the one-byte null flag preceding a nullable
// reference value.
func (c *Codec) ReadNullFlag() (isNull bool) {
	return c.ReadUint8() != 0
}
