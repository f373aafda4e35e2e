// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package arbitrator implements ArbitratedClient: a single dedicated reader
// demultiplexing a shared transport between outbound call replies and
// inbound invocations, so one transport can carry both a client and a
// server concurrently.
package arbitrator

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"code.hybscloud.com/erpc"
	"code.hybscloud.com/erpc/buffer"
	"code.hybscloud.com/erpc/codec"
	"code.hybscloud.com/erpc/server"
	"code.hybscloud.com/erpc/transport"
)

// pendingReply is one outstanding call's rendezvous point: ready starts
// with zero permits and the arbitrator releases one when a matching Reply
// arrives (or when Stop drains the table), waking exactly the one caller
// blocked in Acquire.
type pendingReply struct {
	ready *semaphore.Weighted
	buf   *buffer.MessageBuffer
	// status carries a delivery outcome that isn't "a reply buffer arrived":
	// Stop sets StatusConnectionClosed on every entry still pending. A
	// caller whose ctx ends removes its own entry and returns StatusTimeout
	// without going through status. If the reader loop exits on its own,
	// entries stay pending until Stop or the caller's ctx ends them.
	status erpc.Status
}

// Client is an ArbitratedClient: it shares one transport with a local
// server, issuing its own outbound calls while a single background reader
// routes inbound Reply messages back to the waiting caller and everything
// else to the server for dispatch.
type Client struct {
	transport transport.Transport
	factory   buffer.Factory
	server    *server.Server

	seq uint32

	mu      sync.Mutex
	pending map[uint32]*pendingReply

	g      *errgroup.Group
	cancel context.CancelFunc
}

// Option configures a Client at construction time.
type Option func(*Client)

// WithFactory overrides the default DynamicFactory(1024) buffer source.
func WithFactory(f buffer.Factory) Option {
	return func(c *Client) { c.factory = f }
}

// New returns a Client sharing tr with srv. srv must be constructed over
// the same transport tr, since its Dispatch still sends replies through
// it directly (only Receive is arbitrated away from srv). Dispatch replies
// are sent from the single reader goroutine while Request sends from the
// calling goroutines, and Client adds no lock around tr.Send. srv may be nil if this peer only ever issues calls
// and never receives invocations; inbound Invocation/Oneway/Notification
// messages are then silently dropped.
func New(tr transport.Transport, srv *server.Server, opts ...Option) *Client {
	c := &Client{
		transport: tr,
		factory:   buffer.NewDynamicFactory(1024),
		server:    srv,
		pending:   make(map[uint32]*pendingReply),
	}
	for _, fn := range opts {
		fn(c)
	}
	return c
}

// Start launches the arbitrator's reader loop in the background. Stop (or
// cancelling the context passed to Start) ends it; a cancelled context is
// noticed once the current Receive returns. Start must be called at most
// once per Client.
func (c *Client) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	g, ctx := errgroup.WithContext(ctx)
	c.g = g
	g.Go(func() error { return c.readLoop(ctx) })
}

// closer is the optional capability a transport implements when its
// Receive can be unblocked from another goroutine (InterThreadTransport's
// Close). Stream-based transports instead unblock naturally once the peer
// closes the underlying connection.
type closer interface {
	Close()
}

// Stop cancels the reader loop and wakes every still-pending caller with
// StatusConnectionClosed, then waits for the reader goroutine to exit. If
// the shared transport supports it, Stop also closes it so a reader
// blocked inside Receive unblocks immediately instead of waiting for the
// next message.
func (c *Client) Stop() error {
	if c.cancel != nil {
		c.cancel()
	}
	if cl, ok := c.transport.(closer); ok {
		cl.Close()
	}
	err := c.g.Wait()
	c.mu.Lock()
	for seq, p := range c.pending {
		p.status = erpc.StatusConnectionClosed
		p.ready.Release(1)
		delete(c.pending, seq)
	}
	c.mu.Unlock()
	return err
}

// readLoop is the arbitrator: the sole goroutine that ever calls
// transport.Receive on the shared transport. Client goroutines never call
// it directly, which is what lets one transport multiplex an arbitrary
// number of concurrent callers against a single reader.
func (c *Client) readLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		inBuf, st := c.factory.Create()
		if !st.Ok() {
			continue
		}
		st = c.transport.Receive(inBuf)
		if st == erpc.StatusConnectionClosed {
			c.factory.Dispose(inBuf)
			return nil
		}
		if !st.Ok() {
			c.factory.Dispose(inBuf)
			continue
		}
		c.route(inBuf)
	}
}

// route decodes just the header and demultiplexes by message type: Reply
// goes to the pending-reply table; everything else goes to the local
// server.
func (c *Client) route(inBuf *buffer.MessageBuffer) {
	cd := codec.New(inBuf.Cursor(0))
	hdr, seq := cd.StartReadMessage()
	if !cd.Status().Ok() {
		c.factory.Dispose(inBuf)
		return
	}

	if hdr.Type != erpc.Reply {
		if c.server != nil {
			// Dispatch synchronously: the spec's "N client threads plus one
			// server dispatcher" only requires the reader and server
			// dispatch to be logically distinct roles, not necessarily
			// distinct goroutines, and serializing dispatch here keeps
			// Dispatch's non-reentrant nested-call guard meaningful.
			_ = c.server.Dispatch(inBuf)
		}
		c.factory.Dispose(inBuf)
		return
	}

	c.mu.Lock()
	p, ok := c.pending[seq]
	if ok {
		delete(c.pending, seq)
	}
	c.mu.Unlock()

	if !ok {
		// No caller is waiting on this sequence: either it already timed
		// out/was cancelled, or this is a duplicate reply. Both are silent
		// drops.
		c.factory.Dispose(inBuf)
		return
	}
	p.buf = inBuf
	p.status = erpc.StatusSuccess
	p.ready.Release(1)
}

// Request issues one call over the shared transport and blocks until the
// matching Reply arrives, ctx is done, or Stop is called. oneway calls
// return as soon as the send completes, mirroring client.RequestContext's
// non-arbitrated behavior. On a successful two-way call, the returned
// release func must be called once the caller is done reading the reply
// codec's zero-copy out-parameters; it returns the reply buffer to the
// Client's factory. release is nil whenever no reply buffer was produced
// (oneway calls, or any non-success status).
func (c *Client) Request(ctx context.Context, serviceID, methodID uint8, oneway bool, writeArgs func(*codec.Codec)) (replyCd *codec.Codec, release func(), st erpc.Status) {
	outBuf, st := c.factory.Create()
	if !st.Ok() {
		return nil, nil, st
	}
	defer c.factory.Dispose(outBuf)

	seq := c.nextSeq()
	cd := codec.New(outBuf.Cursor(c.transport.HeaderReserveSize()))
	typ := erpc.Invocation
	if oneway {
		typ = erpc.Oneway
	}
	cd.StartWriteMessage(typ, serviceID, methodID, seq)
	writeArgs(cd)
	if st := cd.Status(); !st.Ok() {
		return nil, nil, st
	}

	var entry *pendingReply
	if !oneway {
		entry = &pendingReply{ready: semaphore.NewWeighted(1)}
		_ = entry.ready.Acquire(context.Background(), 1)
		c.mu.Lock()
		c.pending[seq] = entry
		c.mu.Unlock()
	}

	if st := c.transport.Send(outBuf); !st.Ok() {
		if entry != nil {
			c.mu.Lock()
			delete(c.pending, seq)
			c.mu.Unlock()
		}
		return nil, nil, st
	}
	if oneway {
		return nil, nil, erpc.StatusSuccess
	}

	if err := entry.ready.Acquire(ctx, 1); err != nil {
		// Cancelled or timed out: remove the entry so a late reply is
		// dropped instead of delivered to a caller that already left. The
		// sequence number stays retired — never reused — until this point,
		// so a reply arriving after the caller gave up can still be told
		// apart from one for a future call.
		c.mu.Lock()
		delete(c.pending, seq)
		c.mu.Unlock()
		return nil, nil, erpc.StatusTimeout
	}

	if !entry.status.Ok() {
		return nil, nil, entry.status
	}
	replyCd = codec.New(entry.buf.Cursor(0))
	rhdr, rseq := replyCd.StartReadMessage()
	if st := replyCd.Status(); !st.Ok() {
		c.factory.Dispose(entry.buf)
		return nil, nil, st
	}
	if rhdr.Type != erpc.Reply || rhdr.Service != serviceID || rhdr.Request != methodID || rseq != seq {
		c.factory.Dispose(entry.buf)
		return nil, nil, erpc.StatusExpectedReply
	}
	buf := entry.buf
	release = func() { c.factory.Dispose(buf) }
	return replyCd, release, erpc.StatusSuccess
}

func (c *Client) nextSeq() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	return c.seq
}
