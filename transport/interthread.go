// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package transport

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"

	"code.hybscloud.com/erpc"
	"code.hybscloud.com/erpc/buffer"
)

// interThreadChannel is a one-directional, single-slot mailbox: at most
// one message may be in flight at a time.
//
// slotFree starts with one permit available ("the slot is empty"); msgReady
// starts with none ("nothing has been deposited yet"). Send acquires
// slotFree (waiting out a previous, not-yet-consumed message), deposits
// under mu, then releases msgReady. Receive mirrors this: acquire msgReady,
// copy out under mu, release slotFree — a lock plus a pair of signal
// permits, built on golang.org/x/sync/semaphore's weighted semaphore.
type interThreadChannel struct {
	mu       sync.Mutex
	payload  []byte
	slotFree *semaphore.Weighted
	msgReady *semaphore.Weighted

	closeOnce sync.Once
	closed    chan struct{}
}

func newInterThreadChannel() *interThreadChannel {
	c := &interThreadChannel{
		slotFree: semaphore.NewWeighted(1),
		msgReady: semaphore.NewWeighted(1),
		closed:   make(chan struct{}),
	}
	// Start msgReady at zero permits: nothing has been sent yet.
	_ = c.msgReady.Acquire(context.Background(), 1)
	return c
}

func (c *interThreadChannel) close() {
	c.closeOnce.Do(func() { close(c.closed) })
}

// ctx returns a context cancelled when the channel is closed, so blocked
// Acquire calls unblock with ConnectionClosed rather than hanging forever.
func (c *interThreadChannel) ctx() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		select {
		case <-c.closed:
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

func (c *interThreadChannel) send(data []byte) erpc.Status {
	ctx, cancel := c.ctx()
	defer cancel()
	if err := c.slotFree.Acquire(ctx, 1); err != nil {
		return erpc.StatusConnectionClosed
	}
	c.mu.Lock()
	c.payload = append(c.payload[:0], data...)
	c.mu.Unlock()
	c.msgReady.Release(1)
	return erpc.StatusSuccess
}

func (c *interThreadChannel) receive(buf *buffer.MessageBuffer) erpc.Status {
	ctx, cancel := c.ctx()
	defer cancel()
	if err := c.msgReady.Acquire(ctx, 1); err != nil {
		return erpc.StatusConnectionClosed
	}
	c.mu.Lock()
	n := copy(buf.Data(), c.payload)
	overflow := len(c.payload) > len(buf.Data())
	c.mu.Unlock()
	c.slotFree.Release(1)
	if overflow {
		return erpc.StatusBufferOverrun
	}
	return buf.SetUsed(n)
}

// InterThreadTransport is an in-process transport for tests and arbitrated-
// client setups: two peers each own a pair of interThreadChannel mailboxes,
// one per direction, sharing nothing else.
type InterThreadTransport struct {
	out *interThreadChannel
	in  *interThreadChannel
}

// NewInterThreadPair returns two endpoints of a bidirectional inter-thread
// transport: messages sent on a are received on b and vice versa.
func NewInterThreadPair() (a, b *InterThreadTransport) {
	aToB := newInterThreadChannel()
	bToA := newInterThreadChannel()
	a = &InterThreadTransport{out: aToB, in: bToA}
	b = &InterThreadTransport{out: bToA, in: aToB}
	return a, b
}

// HeaderReserveSize implements Transport: message-preserving, no framing.
func (t *InterThreadTransport) HeaderReserveSize() int { return 0 }

// Send implements Transport.
func (t *InterThreadTransport) Send(buf *buffer.MessageBuffer) erpc.Status {
	return t.out.send(buf.Data()[:buf.Used()])
}

// Receive implements Transport.
func (t *InterThreadTransport) Receive(buf *buffer.MessageBuffer) erpc.Status {
	return t.in.receive(buf)
}

// Close unblocks any goroutine currently waiting in Send or Receive on
// either direction this endpoint participates in, reporting
// StatusConnectionClosed to them.
func (t *InterThreadTransport) Close() {
	t.out.close()
	t.in.close()
}
