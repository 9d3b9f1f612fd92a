package engine

import "sync"

// Block is one fixed-size chunk of interleaved multi-channel samples.
// Ownership moves along the pipeline; a block is never shared mutably
// across goroutines.
type Block struct {
	Samples  []float32
	Frames   int
	Channels int
	Seq      uint64
}

// Bus is the shared playback buffer between the monitor forwarder and the
// amplifier worker: an unbounded FIFO with blocking pop. Order of
// published blocks is preserved.
type Bus struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queue  []Block
	closed bool
}

func NewBus() *Bus {
	b := &Bus{}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// Publish appends a block. Publishing to a closed bus is a no-op.
func (b *Bus) Publish(blk Block) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.queue = append(b.queue, blk)
	b.cond.Signal()
}

// Pop blocks until a block is available or the bus is closed. The second
// return value is false once the bus is closed and drained.
func (b *Bus) Pop() (Block, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for len(b.queue) == 0 && !b.closed {
		b.cond.Wait()
	}
	if len(b.queue) == 0 {
		return Block{}, false
	}
	blk := b.queue[0]
	b.queue = b.queue[1:]
	return blk, true
}

// Len returns the number of queued blocks.
func (b *Bus) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queue)
}

// Close wakes all blocked consumers. Queued blocks remain poppable.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.cond.Broadcast()
}
