// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package buffer

import (
	"sync"

	"code.hybscloud.com/erpc"
)

// Factory produces and reclaims MessageBuffers for a Transport or
// RequestContext. Two implementations are provided, selectable at
// construction time: DynamicFactory (heap) and StaticPool (a
// fixed-capacity pool, for no-heap-after-init deployments).
type Factory interface {
	// Create returns a MessageBuffer of the factory's configured size, or
	// fails with StatusMemoryError if none is available (StaticPool only —
	// DynamicFactory never fails this way).
	Create() (*MessageBuffer, erpc.Status)
	// Dispose returns buf to the factory. Dynamic factories drop it for the
	// garbage collector; StaticPool clears its slot's used bit.
	Dispose(buf *MessageBuffer)
}

// DynamicFactory allocates a new MessageBuffer from the heap on every
// Create call. This is the default, unconstrained allocation policy.
type DynamicFactory struct {
	Size int
}

// NewDynamicFactory returns a Factory that heap-allocates buffers of size
// bytes.
func NewDynamicFactory(size int) *DynamicFactory {
	return &DynamicFactory{Size: size}
}

// Create implements Factory.
func (f *DynamicFactory) Create() (*MessageBuffer, erpc.Status) {
	return New(f.Size), erpc.StatusSuccess
}

// Dispose implements Factory. Dynamic buffers are left for the garbage
// collector; Dispose is a no-op beyond documenting the hand-back.
func (f *DynamicFactory) Dispose(*MessageBuffer) {}

// StaticPool is a fixed-capacity object pool of pre-placed MessageBuffers,
// the allocation policy for builds that forbid heap use after init: the
// pool pre-places every buffer's backing storage once at construction and
// hands out slots by a used bitmap from then on, never touching the
// allocator again.
//
// All buffers share one fixed size; Create returns StatusMemoryError once
// every slot is checked out, which propagates up through the codec/
// transport/client layers exactly like any other sticky status.
type StaticPool struct {
	mu      sync.Mutex
	bufs    []MessageBuffer
	inUse   []bool
	slotFor map[*MessageBuffer]int
}

// NewStaticPool preallocates count buffers of the given size. The pool
// itself is the only allocation; Create/Dispose afterward never touch the
// heap.
func NewStaticPool(count, size int) *StaticPool {
	p := &StaticPool{
		bufs:    make([]MessageBuffer, count),
		inUse:   make([]bool, count),
		slotFor: make(map[*MessageBuffer]int, count),
	}
	for i := range p.bufs {
		p.bufs[i].data = make([]byte, size)
		p.slotFor[&p.bufs[i]] = i
	}
	return p
}

// Create returns the first free slot, marking it in-use, or
// StatusMemoryError if the pool is exhausted.
func (p *StaticPool) Create() (*MessageBuffer, erpc.Status) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, used := range p.inUse {
		if !used {
			p.inUse[i] = true
			p.bufs[i].Reset()
			return &p.bufs[i], erpc.StatusSuccess
		}
	}
	return nil, erpc.StatusMemoryError
}

// Dispose clears buf's used bit, making its slot available again. Disposing
// a buffer not owned by this pool is a no-op.
func (p *StaticPool) Dispose(buf *MessageBuffer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if i, ok := p.slotFor[buf]; ok {
		p.inUse[i] = false
	}
}
