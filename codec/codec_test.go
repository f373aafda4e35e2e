// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package codec_test

import (
	"bytes"
	"testing"

	"code.hybscloud.com/erpc"
	"code.hybscloud.com/erpc/buffer"
	"code.hybscloud.com/erpc/codec"
)

// TestPrimitiveRoundTripWireBytes reproduces spec §8 scenario 1 exactly:
// encoding {type=Invocation, service=1, request=2, sequence=7,
// args=(i32 -3, u32 7, string "hi")} must produce these bytes.
func TestPrimitiveRoundTripWireBytes(t *testing.T) {
	t.Parallel()

	buf := buffer.New(64)
	w := codec.New(buf.Cursor(0))
	w.StartWriteMessage(erpc.Invocation, 1, 2, 7)
	w.WriteInt32(-3)
	w.WriteUint32(7)
	w.WriteString("hi")
	if !w.Status().Ok() {
		t.Fatalf("write status: %v", w.Status())
	}

	want := []byte{
		0x00, 0x02, 0x01, 0x01, // packed header word (version<<24|service<<16|request<<8|type), little-endian
		0x07, 0x00, 0x00, 0x00, // sequence=7
		0xFD, 0xFF, 0xFF, 0xFF, // i32 -3
		0x07, 0x00, 0x00, 0x00, // u32 7
		0x02, 0x00, 0x00, 0x00, // string length=2
		0x68, 0x69, // "hi"
	}
	got := buf.Data()[:buf.Used()]
	if !bytes.Equal(got, want) {
		t.Fatalf("wire bytes mismatch:\n got=% x\nwant=% x", got, want)
	}

	r := codec.New(buf.Cursor(0))
	hdr, seq := r.StartReadMessage()
	if hdr.Type != erpc.Invocation || hdr.Service != 1 || hdr.Request != 2 || seq != 7 {
		t.Fatalf("header mismatch: %+v seq=%d", hdr, seq)
	}
	if v := r.ReadInt32(); v != -3 {
		t.Fatalf("i32=%d want=-3", v)
	}
	if v := r.ReadUint32(); v != 7 {
		t.Fatalf("u32=%d want=7", v)
	}
	if v := r.ReadString(); v != "hi" {
		t.Fatalf("string=%q want=hi", v)
	}
	if !r.Status().Ok() {
		t.Fatalf("read status: %v", r.Status())
	}
}

func TestNullableListEncoding(t *testing.T) {
	t.Parallel()

	// Null list<u8>: encoded bytes = 01 (only the null flag), spec §8 scenario 4.
	buf := buffer.New(8)
	w := codec.New(buf.Cursor(0))
	w.WriteNullFlag(true)
	if got, want := buf.Data()[:buf.Used()], []byte{0x01}; !bytes.Equal(got, want) {
		t.Fatalf("null-flag bytes=% x want=% x", got, want)
	}

	// Not-null, empty: 00 00 00 00 00 (flag + u32 length 0).
	buf2 := buffer.New(8)
	w2 := codec.New(buf2.Cursor(0))
	w2.WriteNullFlag(false)
	w2.StartWriteList(0)
	if got, want := buf2.Data()[:buf2.Used()], []byte{0x00, 0x00, 0x00, 0x00, 0x00}; !bytes.Equal(got, want) {
		t.Fatalf("empty-list bytes=% x want=% x", got, want)
	}
}

func TestUnionDispatchEncoding(t *testing.T) {
	t.Parallel()

	// discriminator i32, arm values {apple=0, orange=1, banana=2}; encoding an
	// orange arm carrying list<i32>{1,2,3} (spec §8 scenario 5).
	const orange = 1
	buf := buffer.New(32)
	w := codec.New(buf.Cursor(0))
	w.StartWriteUnion(orange)
	w.StartWriteList(3)
	w.WriteInt32(1)
	w.WriteInt32(2)
	w.WriteInt32(3)

	want := []byte{
		0x01, 0x00, 0x00, 0x00, // discriminator = 1 (orange)
		0x03, 0x00, 0x00, 0x00, // list length = 3
		0x01, 0x00, 0x00, 0x00,
		0x02, 0x00, 0x00, 0x00,
		0x03, 0x00, 0x00, 0x00,
	}
	if got := buf.Data()[:buf.Used()]; !bytes.Equal(got, want) {
		t.Fatalf("union bytes=% x want=% x", got, want)
	}

	r := codec.New(buf.Cursor(0))
	disc := r.StartReadUnion()
	if disc != orange {
		t.Fatalf("discriminator=%d want=%d", disc, orange)
	}
	n := r.StartReadList()
	got := make([]int32, n)
	for i := range got {
		got[i] = r.ReadInt32()
	}
	if !r.Status().Ok() {
		t.Fatalf("read status: %v", r.Status())
	}
	if got[0] != 1 || got[1] != 2 || got[2] != 3 {
		t.Fatalf("list=%v want=[1 2 3]", got)
	}
}

func TestBinaryLengthNeverTrustedBlindly(t *testing.T) {
	t.Parallel()

	// A length greater than remaining_used() yields Fail: set Used to
	// smaller than the length prefix claims.
	buf := buffer.New(32)
	w := codec.New(buf.Cursor(0))
	w.WriteUint32(20) // claims 20 bytes follow
	_ = buf.SetUsed(buf.Used() - 1)

	r := codec.New(buf.Cursor(0))
	r.ReadBinary()
	if r.Status() != erpc.StatusFail {
		t.Fatalf("status=%v want=%v", r.Status(), erpc.StatusFail)
	}
}

func TestBinaryLengthOverCapacityIsBufferOverrun(t *testing.T) {
	t.Parallel()

	buf := buffer.New(8)
	w := codec.New(buf.Cursor(0))
	w.WriteUint32(1000) // length prefix exceeds capacity outright
	_ = buf.SetUsed(buf.Capacity())

	r := codec.New(buf.Cursor(0))
	r.ReadBinary()
	if r.Status() != erpc.StatusBufferOverrun {
		t.Fatalf("status=%v want=%v", r.Status(), erpc.StatusBufferOverrun)
	}
}

func TestStickyStatusPoisonsSubsequentOps(t *testing.T) {
	t.Parallel()

	buf := buffer.New(2)
	w := codec.New(buf.Cursor(0))
	w.WriteUint32(1) // overruns a 2-byte buffer
	if w.Status() != erpc.StatusBufferOverrun {
		t.Fatalf("status=%v want=%v", w.Status(), erpc.StatusBufferOverrun)
	}
	before := buf.Used()
	w.WriteUint8(9) // must be a no-op: codec already poisoned
	if buf.Used() != before {
		t.Fatalf("poisoned codec must not write further bytes")
	}
	if w.Status() != erpc.StatusBufferOverrun {
		t.Fatalf("sticky status changed: %v", w.Status())
	}
}

func TestStartReadMessageRejectsBadVersion(t *testing.T) {
	t.Parallel()

	buf := buffer.New(16)
	w := codec.New(buf.Cursor(0))
	// Hand-craft a header with version byte 2 instead of 1.
	w.WriteUint32(uint32(2)<<24 | uint32(erpc.Invocation))
	w.WriteUint32(0)

	r := codec.New(buf.Cursor(0))
	r.StartReadMessage()
	if r.Status() != erpc.StatusInvalidMessageVersion {
		t.Fatalf("status=%v want=%v", r.Status(), erpc.StatusInvalidMessageVersion)
	}
}

func TestPointerZeroExtendsOnNarrowerWireWidth(t *testing.T) {
	t.Parallel()

	buf := buffer.New(16)
	w := codec.New(buf.Cursor(0))
	w.WriteUint8(4) // sender's uintptr was 4 bytes wide
	w.WriteUint32(0xdeadbeef)
	_ = buf.SetUsed(buf.Used())

	r := codec.New(buf.Cursor(0))
	got := r.ReadPointer()
	if !r.Status().Ok() {
		t.Fatalf("status: %v", r.Status())
	}
	if got != 0xdeadbeef {
		t.Fatalf("pointer=%#x want=0xdeadbeef", got)
	}
}

func TestEncodingIsDeterministic(t *testing.T) {
	t.Parallel()

	encodeOnce := func() []byte {
		buf := buffer.New(64)
		w := codec.New(buf.Cursor(0))
		w.StartWriteMessage(erpc.Reply, 3, 4, 99)
		w.WriteString("deterministic")
		w.StartWriteList(2)
		w.WriteFloat64(3.5)
		w.WriteFloat64(-2.25)
		out := make([]byte, buf.Used())
		copy(out, buf.Data()[:buf.Used()])
		return out
	}

	a, b := encodeOnce(), encodeOnce()
	if !bytes.Equal(a, b) {
		t.Fatalf("encoding not deterministic:\n%x\n%x", a, b)
	}
}
