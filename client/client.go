// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package client implements the non-arbitrated client side of a single RPC
// call: RequestContext and Manager. A generated stub drives one call
// through a Manager's StartRequest/Finish pair; everything else — sequence
// allocation, header framing, reply validation — happens here so generated
// code stays a thin marshal/unmarshal layer.
package client

import (
	"sync/atomic"

	"code.hybscloud.com/erpc"
	"code.hybscloud.com/erpc/buffer"
	"code.hybscloud.com/erpc/codec"
	"code.hybscloud.com/erpc/transport"
)

// Manager owns a transport and buffer factory and allocates the sequence
// counter: sequence numbers are scoped to the Manager, not to an individual
// method, so replies for different methods in flight at once never collide.
type Manager struct {
	transport transport.Transport
	factory   buffer.Factory
	seq       uint32
}

// Option configures a Manager at construction time.
type Option func(*Manager)

// WithFactory overrides the default DynamicFactory(1024) buffer source.
func WithFactory(f buffer.Factory) Option {
	return func(m *Manager) { m.factory = f }
}

// NewManager returns a Manager driving calls over tr.
func NewManager(tr transport.Transport, opts ...Option) *Manager {
	m := &Manager{transport: tr, factory: buffer.NewDynamicFactory(1024)}
	for _, fn := range opts {
		fn(m)
	}
	return m
}

// RequestContext drives one call from StartRequest through Finish. It is
// not safe for concurrent use and must not outlive the call it represents.
type RequestContext struct {
	mgr       *Manager
	outBuf    *buffer.MessageBuffer
	inBuf     *buffer.MessageBuffer
	cd        *codec.Codec
	serviceID uint8
	methodID  uint8
	oneway    bool
	seq       uint32
}

// StartRequest acquires an outbound buffer, binds a codec past the
// transport's header reservation, allocates the next sequence number, and
// writes the message header. The returned RequestContext's Codec is ready
// for the stub to write arguments.
func (m *Manager) StartRequest(serviceID, methodID uint8, oneway bool) (*RequestContext, erpc.Status) {
	buf, st := m.factory.Create()
	if !st.Ok() {
		return nil, st
	}
	seq := atomic.AddUint32(&m.seq, 1)
	cd := codec.New(buf.Cursor(m.transport.HeaderReserveSize()))
	typ := erpc.Invocation
	if oneway {
		typ = erpc.Oneway
	}
	cd.StartWriteMessage(typ, serviceID, methodID, seq)
	return &RequestContext{
		mgr:       m,
		outBuf:    buf,
		cd:        cd,
		serviceID: serviceID,
		methodID:  methodID,
		oneway:    oneway,
		seq:       seq,
	}, erpc.StatusSuccess
}

// Codec returns the codec the stub writes arguments through.
func (rc *RequestContext) Codec() *codec.Codec { return rc.cd }

// Finish checks the sticky write status, sends the request, and — unless
// this is a oneway call — receives and
// validate the reply. On success for a two-way call it returns a codec
// bound to the reply payload, ready for the stub to read out-parameters and
// the return value. The reply buffer is held open for as long as the
// codec's zero-copy ReadBinary/ReadString slices may still be read from it;
// the caller must call Release once it is done, which returns the buffer to
// the Manager's factory.
func (rc *RequestContext) Finish() (*codec.Codec, erpc.Status) {
	defer rc.mgr.factory.Dispose(rc.outBuf)

	if st := rc.cd.Status(); !st.Ok() {
		return nil, st
	}
	if st := rc.mgr.transport.Send(rc.outBuf); !st.Ok() {
		return nil, st
	}
	if rc.oneway {
		return nil, erpc.StatusSuccess
	}

	inBuf, st := rc.mgr.factory.Create()
	if !st.Ok() {
		return nil, st
	}
	if st := rc.mgr.transport.Receive(inBuf); !st.Ok() {
		rc.mgr.factory.Dispose(inBuf)
		return nil, st
	}

	replyCodec := codec.New(inBuf.Cursor(0))
	hdr, seq := replyCodec.StartReadMessage()
	if st := replyCodec.Status(); !st.Ok() {
		rc.mgr.factory.Dispose(inBuf)
		return nil, st
	}
	if hdr.Type != erpc.Reply || hdr.Service != rc.serviceID || hdr.Request != rc.methodID || seq != rc.seq {
		rc.mgr.factory.Dispose(inBuf)
		return nil, erpc.StatusExpectedReply
	}
	// inBuf is not disposed here: replyCodec's zero-copy ReadBinary/
	// ReadString slices alias it, and they must stay valid until the stub
	// calls Release.
	rc.inBuf = inBuf
	return replyCodec, erpc.StatusSuccess
}

// Release returns the reply buffer Finish obtained back to the Manager's
// factory. Call it once, after the stub is done reading out-parameters
// through the codec Finish returned. A no-op if Finish never produced a
// reply buffer (oneway calls, or any non-success status) or Release was
// already called.
func (rc *RequestContext) Release() {
	if rc.inBuf == nil {
		return
	}
	rc.mgr.factory.Dispose(rc.inBuf)
	rc.inBuf = nil
}
