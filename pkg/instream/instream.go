// Package instream wraps raw input sources for the decoders: reads of
// an exact byte count with short-read detection, absolute seeking when
// the source supports it, and size/offset queries that may report
// unknown for non-seekable streams.
package instream

import (
	"errors"
	"fmt"
	"io"
)

// SizeUnknown is returned by Size for sources whose length cannot be
// determined, such as network streams.
const SizeUnknown int64 = -1

var (
	// ErrShortRead indicates the source delivered fewer bytes than
	// requested. Decoders must treat this as a hard failure of the
	// decode pass, never pad the difference.
	ErrShortRead = errors.New("instream: short read")

	// ErrNotSeekable indicates a Seek on a source without seek support.
	ErrNotSeekable = errors.New("instream: stream is not seekable")
)

// Stream wraps an io.Reader. If the reader also implements io.Seeker,
// the stream supports Seek and reports its total size.
type Stream struct {
	r      io.Reader
	s      io.Seeker // nil for non-seekable sources
	size   int64
	offset int64
}

// New wraps r. Seekability and size are probed once at construction;
// the read position is left where it was.
func New(r io.Reader) *Stream {
	st := &Stream{r: r, size: SizeUnknown}

	s, ok := r.(io.Seeker)
	if !ok {
		return st
	}

	cur, err := s.Seek(0, io.SeekCurrent)
	if err != nil {
		return st
	}
	end, err := s.Seek(0, io.SeekEnd)
	if err != nil {
		return st
	}
	if _, err := s.Seek(cur, io.SeekStart); err != nil {
		return st
	}

	st.s = s
	st.size = end
	st.offset = cur
	return st
}

// ReadFull reads exactly len(p) bytes. Anything less, including a
// clean end of stream, fails with ErrShortRead.
func (st *Stream) ReadFull(p []byte) error {
	n, err := io.ReadFull(st.r, p)
	st.offset += int64(n)
	if err != nil {
		return fmt.Errorf("%w: %d of %d bytes: %v", ErrShortRead, n, len(p), err)
	}
	return nil
}

// Seek repositions the stream using io.Seek* whence semantics and
// returns the new absolute offset.
func (st *Stream) Seek(offset int64, whence int) (int64, error) {
	if st.s == nil {
		return st.offset, ErrNotSeekable
	}

	pos, err := st.s.Seek(offset, whence)
	if err != nil {
		return st.offset, fmt.Errorf("instream: seek failed: %w", err)
	}
	st.offset = pos
	return pos, nil
}

// Skip advances the stream by n bytes, reading and discarding when the
// source cannot seek.
func (st *Stream) Skip(n int64) error {
	if n == 0 {
		return nil
	}
	if st.s != nil {
		_, err := st.Seek(n, io.SeekCurrent)
		return err
	}

	discarded, err := io.CopyN(io.Discard, st.r, n)
	st.offset += discarded
	if err != nil {
		return fmt.Errorf("%w: skipped %d of %d bytes: %v", ErrShortRead, discarded, n, err)
	}
	return nil
}

// Seekable reports whether Seek is supported.
func (st *Stream) Seekable() bool {
	return st.s != nil
}

// Size returns the total stream length in bytes, or SizeUnknown.
func (st *Stream) Size() int64 {
	return st.size
}

// Offset returns the current read position.
func (st *Stream) Offset() int64 {
	return st.offset
}
