// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package client_test

import (
	"testing"

	"code.hybscloud.com/erpc"
	"code.hybscloud.com/erpc/buffer"
	"code.hybscloud.com/erpc/client"
	"code.hybscloud.com/erpc/codec"
	"code.hybscloud.com/erpc/transport"
)

// echoServer answers every Invocation it receives on tr with a Reply
// carrying a single uint32 equal to the request's sole uint32 argument plus
// one, and silently drops any Oneway.
func echoServer(t *testing.T, tr transport.Transport, factory buffer.Factory) {
	t.Helper()
	inBuf, st := factory.Create()
	if !st.Ok() {
		t.Errorf("server Create: %v", st)
		return
	}
	defer factory.Dispose(inBuf)
	if st := tr.Receive(inBuf); !st.Ok() {
		t.Errorf("server Receive: %v", st)
		return
	}
	cd := codec.New(inBuf.Cursor(0))
	hdr, seq := cd.StartReadMessage()
	arg := cd.ReadUint32()
	if !cd.Status().Ok() {
		t.Errorf("server decode: %v", cd.Status())
		return
	}
	if hdr.Type == erpc.Oneway {
		return
	}

	outBuf, st := factory.Create()
	if !st.Ok() {
		t.Errorf("server Create reply: %v", st)
		return
	}
	defer factory.Dispose(outBuf)
	rcd := codec.New(outBuf.Cursor(tr.HeaderReserveSize()))
	rcd.StartWriteMessage(erpc.Reply, hdr.Service, hdr.Request, seq)
	rcd.WriteUint32(arg + 1)
	if !rcd.Status().Ok() {
		t.Errorf("server encode: %v", rcd.Status())
		return
	}
	if st := tr.Send(outBuf); !st.Ok() {
		t.Errorf("server Send: %v", st)
	}
}

func TestClientRequestReplyRoundTrip(t *testing.T) {
	a, b := transport.NewInterThreadPair()
	defer a.Close()
	defer b.Close()
	factory := buffer.NewDynamicFactory(256)

	done := make(chan struct{})
	go func() {
		defer close(done)
		echoServer(t, b, factory)
	}()

	mgr := client.NewManager(a, client.WithFactory(factory))
	rc, st := mgr.StartRequest(3, 7, false)
	if !st.Ok() {
		t.Fatalf("StartRequest: %v", st)
	}
	rc.Codec().WriteUint32(41)

	replyCodec, st := rc.Finish()
	if !st.Ok() {
		t.Fatalf("Finish: %v", st)
	}
	got := replyCodec.ReadUint32()
	if !replyCodec.Status().Ok() {
		t.Fatalf("read reply: %v", replyCodec.Status())
	}
	if got != 42 {
		t.Fatalf("reply=%d want=42", got)
	}
	rc.Release()
	<-done
}

func TestClientOnewayReturnsOkWithoutWaitingForReply(t *testing.T) {
	a, b := transport.NewInterThreadPair()
	defer a.Close()
	defer b.Close()
	factory := buffer.NewDynamicFactory(256)

	done := make(chan struct{})
	go func() {
		defer close(done)
		echoServer(t, b, factory)
	}()

	mgr := client.NewManager(a, client.WithFactory(factory))
	rc, st := mgr.StartRequest(3, 7, true)
	if !st.Ok() {
		t.Fatalf("StartRequest: %v", st)
	}
	rc.Codec().WriteUint32(41)
	if _, st := rc.Finish(); !st.Ok() {
		t.Fatalf("Finish: %v", st)
	}
	<-done
}

// TestClientRequestReplyRoundTripOverStaticPool drives more successful
// two-way calls than the pool has slots, releasing each reply buffer
// before the next call starts. Without Release returning the inbound
// buffer to the pool, the second call would fail with StatusMemoryError
// once the first reply's slot was never freed.
func TestClientRequestReplyRoundTripOverStaticPool(t *testing.T) {
	a, b := transport.NewInterThreadPair()
	defer a.Close()
	defer b.Close()

	// Four slots: at the busiest moment of one call, the echo server is
	// holding both its inbound request buffer and its outbound reply
	// buffer at once while the client holds its outbound request buffer
	// (Finish returns it only on exit) and its reply-receiving buffer.
	// Five iterations over four slots proves each round trip gives its
	// buffers back rather than exhausting the pool.
	factory := buffer.NewStaticPool(4, 256)
	mgr := client.NewManager(a, client.WithFactory(factory))

	for i := 0; i < 5; i++ {
		done := make(chan struct{})
		go func() {
			defer close(done)
			echoServer(t, b, factory)
		}()

		rc, st := mgr.StartRequest(3, 7, false)
		if !st.Ok() {
			t.Fatalf("iteration %d: StartRequest: %v", i, st)
		}
		rc.Codec().WriteUint32(uint32(i))

		replyCodec, st := rc.Finish()
		if !st.Ok() {
			t.Fatalf("iteration %d: Finish: %v", i, st)
		}
		got := replyCodec.ReadUint32()
		if !replyCodec.Status().Ok() {
			t.Fatalf("iteration %d: read reply: %v", i, replyCodec.Status())
		}
		if want := uint32(i) + 1; got != want {
			t.Fatalf("iteration %d: reply=%d want=%d", i, got, want)
		}
		rc.Release()
		<-done
	}
}

func TestClientMismatchedReplyFailsWithExpectedReply(t *testing.T) {
	a, b := transport.NewInterThreadPair()
	defer a.Close()
	defer b.Close()
	factory := buffer.NewDynamicFactory(256)

	go func() {
		inBuf, _ := factory.Create()
		_ = b.Receive(inBuf)
		outBuf, _ := factory.Create()
		// Reply on the wrong service id.
		rcd := codec.New(outBuf.Cursor(b.HeaderReserveSize()))
		rcd.StartWriteMessage(erpc.Reply, 99, 7, 1)
		rcd.WriteUint32(0)
		_ = b.Send(outBuf)
	}()

	mgr := client.NewManager(a, client.WithFactory(factory))
	rc, st := mgr.StartRequest(3, 7, false)
	if !st.Ok() {
		t.Fatalf("StartRequest: %v", st)
	}
	rc.Codec().WriteUint32(1)
	if _, st := rc.Finish(); st != erpc.StatusExpectedReply {
		t.Fatalf("status=%v want=%v", st, erpc.StatusExpectedReply)
	}
}
