// Package pcmbuffer provides a growable scratch buffer that PCM
// converters reuse across calls, so the steady state of a running
// stream allocates nothing.
package pcmbuffer

// Buffer owns a resizable byte region. It grows to satisfy the largest
// request seen and never shrinks. The zero value is ready to use.
//
// A Buffer belongs to exactly one converter call site; concurrent
// streams need one Buffer each, since every Get hands out the same
// underlying storage.
type Buffer struct {
	data []byte
}

// Get returns a view of exactly size bytes backed by the buffer's
// storage, growing the storage first if needed. Contents are not
// preserved across a growth and are never zero-initialized; callers
// must overwrite the whole view before reading from it.
//
// The view stays valid until the next Get.
func (b *Buffer) Get(size int) []byte {
	if size > cap(b.data) {
		b.data = make([]byte, nextPowerOf2(uint64(size)))
	}
	return b.data[:size:size]
}

// Cap returns the current storage capacity in bytes.
func (b *Buffer) Cap() int {
	return cap(b.data)
}

// nextPowerOf2 rounds n up to the next power of 2, amortizing the cost
// of repeated growth.
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
