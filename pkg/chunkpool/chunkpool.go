// Package chunkpool recycles audio chunks between playback passes so
// the decode loop allocates nothing in steady state.
package chunkpool

import (
	"sync"

	"github.com/drgolem/audiopipe/pkg/audiochunk"
)

// Pool hands out empty chunks and takes back consumed ones. Chunks
// are reset on both paths, so a chunk obtained from the pool never
// carries stale data or a leftover tag.
type Pool struct {
	pool sync.Pool
}

// New creates an empty pool. Chunks are allocated on demand.
func New() *Pool {
	return &Pool{
		pool: sync.Pool{
			New: func() any {
				return audiochunk.New()
			},
		},
	}
}

// Get returns an empty chunk ready for Reserve/Commit.
func (p *Pool) Get() *audiochunk.Chunk {
	c := p.pool.Get().(*audiochunk.Chunk)
	c.Reset()
	return c
}

// Put returns a consumed chunk to the pool. The chunk must not be
// used by the caller afterwards.
func (p *Pool) Put(c *audiochunk.Chunk) {
	if c == nil {
		return
	}
	c.Reset()
	p.pool.Put(c)
}
