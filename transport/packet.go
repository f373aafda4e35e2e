// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package transport

import (
	"io"

	"code.hybscloud.com/erpc"
	"code.hybscloud.com/erpc/buffer"
	"code.hybscloud.com/iox"
)

// PacketTransport wraps a message-preserving underlying link (RPMsg,
// message queues, mailbox IPC) where one Read/Write call already carries
// exactly one message. No framing is added: HeaderReserveSize is 0.
type PacketTransport struct {
	rd io.Reader
	wr io.Writer
	r  retrier
	o  Options
}

// NewPacketTransport returns a PacketTransport over an already
// message-preserving rd/wr pair.
func NewPacketTransport(rd io.Reader, wr io.Writer, opts ...Option) *PacketTransport {
	o := defaultOptions
	for _, fn := range opts {
		fn(&o)
	}
	return &PacketTransport{rd: rd, wr: wr, r: retrier{retryDelay: o.RetryDelay}, o: o}
}

// HeaderReserveSize implements Transport: packet transports add no framing.
func (t *PacketTransport) HeaderReserveSize() int { return 0 }

// Send writes buf.Used() bytes as a single message.
func (t *PacketTransport) Send(buf *buffer.MessageBuffer) erpc.Status {
	if t.wr == nil {
		return erpc.StatusInvalidArgument
	}
	p := buf.Data()[:buf.Used()]
	for {
		n, err := t.wr.Write(p)
		if err == nil {
			if n != len(p) {
				return erpc.StatusSendFailed
			}
			return erpc.StatusSuccess
		}
		if err == iox.ErrWouldBlock {
			if t.r.wait() {
				continue
			}
			return erpc.StatusTimeout
		}
		return erpc.StatusSendFailed
	}
}

// Receive reads exactly one message into buf, setting buf.Used() to the
// message's length.
func (t *PacketTransport) Receive(buf *buffer.MessageBuffer) erpc.Status {
	if t.rd == nil {
		return erpc.StatusInvalidArgument
	}
	limit := buf.Capacity()
	if t.o.ReadLimit > 0 && t.o.ReadLimit < limit {
		limit = t.o.ReadLimit
	}
	for {
		n, err := t.rd.Read(buf.Data()[:limit])
		if err == nil || err == io.EOF {
			if n > limit {
				return erpc.StatusBufferOverrun
			}
			if st := buf.SetUsed(n); !st.Ok() {
				return st
			}
			if err == io.EOF && n == 0 {
				return erpc.StatusConnectionClosed
			}
			return erpc.StatusSuccess
		}
		if err == iox.ErrWouldBlock {
			if t.r.wait() {
				continue
			}
			return erpc.StatusTimeout
		}
		return erpc.StatusReceiveFailed
	}
}
