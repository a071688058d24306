// Package chunkpipe hands audio chunks from the decoding producer to
// the output consumer.
package chunkpipe

import (
	"sync/atomic"

	"github.com/drgolem/audiopipe/pkg/audiochunk"
	"github.com/drgolem/audiopipe/pkg/types"
)

// Re-export the shared flow-control errors.
var (
	ErrInsufficientSpace = types.ErrInsufficientSpace
	ErrInsufficientData  = types.ErrInsufficientData
)

// Pipe is a lock-free single-producer single-consumer ring of chunk
// pointers. Chunks cross the pipe by reference; ownership transfers
// with them, so a pushed chunk must not be touched by the producer
// again until the consumer returns it to the pool.
//
// Thread safety:
//   - Push() must only be called by the producer goroutine
//   - Pop() must only be called by the consumer goroutine
//
// Capacity is rounded up to the next power of 2 for efficient modulo
// operations using bitwise AND.
type Pipe struct {
	slots    []*audiochunk.Chunk
	size     uint64 // must be power of 2
	mask     uint64 // size - 1, for efficient modulo
	writePos atomic.Uint64
	readPos  atomic.Uint64
}

// New creates a pipe holding up to capacity chunks in flight.
// Capacity is rounded up to the next power of 2.
func New(capacity uint64) *Pipe {
	capacity = nextPowerOf2(capacity)

	return &Pipe{
		slots: make([]*audiochunk.Chunk, capacity),
		size:  capacity,
		mask:  capacity - 1,
	}
}

// Push hands a chunk to the consumer. Returns ErrInsufficientSpace if
// the pipe is full; the producer keeps ownership in that case.
//
// This method must only be called by the producer goroutine.
func (p *Pipe) Push(c *audiochunk.Chunk) error {
	if p.AvailableWrite() == 0 {
		return ErrInsufficientSpace
	}

	writePos := p.writePos.Load()
	p.slots[writePos&p.mask] = c
	p.writePos.Store(writePos + 1)

	return nil
}

// Pop takes the oldest chunk from the pipe. Returns
// ErrInsufficientData if the pipe is empty.
//
// This method must only be called by the consumer goroutine.
func (p *Pipe) Pop() (*audiochunk.Chunk, error) {
	if p.AvailableRead() == 0 {
		return nil, ErrInsufficientData
	}

	readPos := p.readPos.Load()
	c := p.slots[readPos&p.mask]
	p.slots[readPos&p.mask] = nil
	p.readPos.Store(readPos + 1)

	return c, nil
}

// AvailableWrite returns the number of free slots.
func (p *Pipe) AvailableWrite() uint64 {
	return p.size - p.AvailableRead()
}

// AvailableRead returns the number of chunks waiting in the pipe.
func (p *Pipe) AvailableRead() uint64 {
	return p.writePos.Load() - p.readPos.Load()
}

// Size returns the pipe capacity (power of 2).
func (p *Pipe) Size() uint64 {
	return p.size
}

// Reset empties the pipe, dropping references to any queued chunks.
// Only safe when neither producer nor consumer is running.
func (p *Pipe) Reset() {
	clear(p.slots)
	p.writePos.Store(0)
	p.readPos.Store(0)
}

// nextPowerOf2 rounds up to the next power of 2
func nextPowerOf2(n uint64) uint64 {
	if n == 0 {
		return 1
	}
	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n |= n >> 32
	return n + 1
}
