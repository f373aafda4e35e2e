// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package transport

import (
	"io"

	"code.hybscloud.com/erpc"
	"code.hybscloud.com/erpc/buffer"
	"code.hybscloud.com/erpc/crc16"
)

// frameHeaderLen is the fixed frame header size: u16 payload_length + u16
// payload_crc16.
const frameHeaderLen = 4

// framePayloadMaxLen is the largest payload length the u16 length field can
// carry.
const framePayloadMaxLen = 1<<16 - 1

// FramedTransport wraps any byte-oriented underlying link (blocking reads
// and writes of exactly n bytes, modulo the would-block retry policy in
// Options) with eRPC's 4-byte {u16 length, u16 crc16} frame header.
//
// Wire layout:
//
//	offset 0: u16 payload_length       (configured byte order)
//	offset 2: u16 payload_crc16
//	offset 4: payload (codec-written bytes, length = payload_length)
//
// HeaderReserveSize is 4: a RequestContext positions its Codec's cursor at
// that offset before writing a message, so Send can fill the frame header
// in place without a second buffer or a copy.
type FramedTransport struct {
	rd io.Reader
	wr io.Writer
	r  retrier
	o  Options
	crc *crc16.CRC
}

// NewFramedTransport returns a FramedTransport reading from rd and writing
// to wr. Either may be nil if the transport is receive-only or send-only.
func NewFramedTransport(rd io.Reader, wr io.Writer, opts ...Option) *FramedTransport {
	o := defaultOptions
	for _, fn := range opts {
		fn(&o)
	}
	return &FramedTransport{
		rd:  rd,
		wr:  wr,
		r:   retrier{retryDelay: o.RetryDelay},
		o:   o,
		crc: crc16.NewSeeded(o.CRCSeed),
	}
}

// HeaderReserveSize implements Transport: 4 bytes for the frame header.
func (t *FramedTransport) HeaderReserveSize() int { return frameHeaderLen }

// Send fills the frame header in place (bytes 0..3 of buf) over the
// payload the codec already wrote starting at offset 4, then writes the
// whole frame to the underlying link in one atomic transmission.
func (t *FramedTransport) Send(buf *buffer.MessageBuffer) erpc.Status {
	if t.wr == nil {
		return erpc.StatusInvalidArgument
	}
	if buf.Used() < frameHeaderLen {
		return erpc.StatusInvalidArgument
	}
	payloadLen := buf.Used() - frameHeaderLen
	if payloadLen > framePayloadMaxLen {
		return erpc.StatusBufferOverrun
	}
	payload := buf.Data()[frameHeaderLen : frameHeaderLen+payloadLen]
	crc := t.crc.Compute(payload)

	hdr := buf.Data()[0:frameHeaderLen]
	t.o.ByteOrder.PutUint16(hdr[0:2], uint16(payloadLen))
	t.o.ByteOrder.PutUint16(hdr[2:4], crc)

	return t.r.writeFull(t.wr, buf.Data()[:buf.Used()])
}

// Receive reads one frame: the 4-byte header, then exactly payload_length
// bytes, verifying the CRC. On success buf holds only the payload
// (starting at offset 0 — the frame header is consumed by the transport
// and never occupies codec-visible space on the receive path) and
// buf.Used() equals payload_length.
//
// A CRC mismatch fails with StatusCrcCheckFailed and leaves the transport
// ready for the next frame: Receive never retains partial state across
// calls on failure.
func (t *FramedTransport) Receive(buf *buffer.MessageBuffer) erpc.Status {
	if t.rd == nil {
		return erpc.StatusInvalidArgument
	}
	var hdr [frameHeaderLen]byte
	if st := t.r.readFull(t.rd, hdr[:]); !st.Ok() {
		return st
	}
	payloadLen := int(t.o.ByteOrder.Uint16(hdr[0:2]))
	wantCRC := t.o.ByteOrder.Uint16(hdr[2:4])

	if t.o.ReadLimit > 0 && payloadLen > t.o.ReadLimit {
		return erpc.StatusBufferOverrun
	}
	if payloadLen > buf.Capacity() {
		return erpc.StatusBufferOverrun
	}

	if payloadLen > 0 {
		if st := t.r.readFull(t.rd, buf.Data()[:payloadLen]); !st.Ok() {
			return st
		}
	}

	gotCRC := t.crc.Compute(buf.Data()[:payloadLen])
	if gotCRC != wantCRC {
		return erpc.StatusCrcCheckFailed
	}
	return buf.SetUsed(payloadLen)
}

// HasMessageAvailable implements Poller when the underlying reader exposes
// a buffered-byte count (e.g. *bufio.Reader's Buffered method); otherwise
// it conservatively reports false.
func (t *FramedTransport) HasMessageAvailable() bool {
	type buffered interface{ Buffered() int }
	if b, ok := t.rd.(buffered); ok {
		return b.Buffered() >= frameHeaderLen
	}
	return false
}
