// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package transport implements the abstract Transport contract and its
// concrete flavors: FramedTransport (length+CRC framing over any byte
// stream), PacketTransport (message-preserving links), ReadyMarkerTransport
// (the SPI-style "slave can't initiate" ready marker protocol), and an
// inter-thread transport for tests and arbitrated-client composition.
//
// Every concrete type here satisfies the same minimal capability
// interface — send/receive/header-reserve — rather than an inheritance
// hierarchy.
package transport

import (
	"io"
	"time"

	"code.hybscloud.com/erpc"
	"code.hybscloud.com/erpc/buffer"
	"code.hybscloud.com/iox"
)

// Transport moves a buffer.MessageBuffer between peers. Every transport
// implements this, nothing else.
type Transport interface {
	// Send transmits buf.Used() bytes atomically.
	Send(buf *buffer.MessageBuffer) erpc.Status
	// Receive fills buf with exactly one message and sets buf.Used() to
	// that message's length.
	Receive(buf *buffer.MessageBuffer) erpc.Status
	// HeaderReserveSize returns the bytes the codec must leave at the
	// front of its payload for this transport's own framing. The codec's
	// message header writes start at that offset.
	HeaderReserveSize() int
}

// Poller is an optional capability: transports that can report whether a
// message is already available without blocking implement it, for a
// cooperative single-threaded scheduling mode that polls rather than
// blocks in Receive.
type Poller interface {
	HasMessageAvailable() bool
}

// retrier centralizes the would-block retry policy shared by every
// stream-based transport in this package, needed because the abstract
// Transport contract assumes send/receive complete synchronously while the
// underlying link may still be a non-blocking descriptor that reports
// iox.ErrWouldBlock.
type retrier struct {
	retryDelay time.Duration
}

// wait reports whether the caller should retry after seeing
// iox.ErrWouldBlock. A negative RetryDelay means "don't wait, surface a
// failure now" (cooperative nonblocking mode); zero means yield once and
// retry; positive means sleep that long and retry.
func (r retrier) wait() bool {
	if r.retryDelay < 0 {
		return false
	}
	if r.retryDelay == 0 {
		yield()
		return true
	}
	time.Sleep(r.retryDelay)
	return true
}

// readFull reads exactly len(dst) bytes from rd into dst, retrying on
// iox.ErrWouldBlock per the retrier's policy. classifyIOErr turns any
// terminal error (a real failure, a nonblock-mode bailout, or an EOF) into
// the matching Status.
func (r retrier) readFull(rd io.Reader, dst []byte) erpc.Status {
	off := 0
	for off < len(dst) {
		n, err := rd.Read(dst[off:])
		if n > 0 {
			off += n
			continue
		}
		if err == nil {
			// A conforming io.Reader never returns (0, nil) on a
			// non-empty buffer; guard against one that does anyway.
			return erpc.StatusReceiveFailed
		}
		if err == iox.ErrWouldBlock {
			if r.wait() {
				continue
			}
			return erpc.StatusTimeout
		}
		if err == io.EOF {
			if off == 0 {
				return erpc.StatusConnectionClosed
			}
			return erpc.StatusConnectionFailure
		}
		return erpc.StatusReceiveFailed
	}
	return erpc.StatusSuccess
}

// writeFull writes exactly len(src) bytes to wr, retrying on
// iox.ErrWouldBlock per the retrier's policy.
func (r retrier) writeFull(wr io.Writer, src []byte) erpc.Status {
	off := 0
	for off < len(src) {
		n, err := wr.Write(src[off:])
		if n > 0 {
			off += n
			continue
		}
		if err == nil {
			return erpc.StatusSendFailed
		}
		if err == iox.ErrWouldBlock {
			if r.wait() {
				continue
			}
			return erpc.StatusTimeout
		}
		if err == io.ErrClosedPipe {
			return erpc.StatusConnectionClosed
		}
		return erpc.StatusSendFailed
	}
	return erpc.StatusSuccess
}
