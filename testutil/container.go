// Package testutil provides small in-memory container fixtures for package
// fatvol's tests: a resizable byte-slice-backed container so mkfs tests
// can exercise Truncate.
package testutil

import (
	"bytes"
	"io"
)

// MemContainer is a resizable in-memory Container: it implements
// io.ReadWriteSeeker plus Truncate, which github.com/xaionaro-go/bytesextra's
// fixed-size ReadWriteSeeker does not, so mkfs tests (which must grow a
// container from nothing) use this instead of bytesextra directly.
type MemContainer struct {
	buf []byte
	pos int64
}

// NewMemContainer wraps an existing byte slice (copied) as a container.
func NewMemContainer(data []byte) *MemContainer {
	buf := make([]byte, len(data))
	copy(buf, data)
	return &MemContainer{buf: buf}
}

// NewBlankMemContainer returns an empty container, grown on first Truncate.
func NewBlankMemContainer() *MemContainer {
	return &MemContainer{}
}

func (m *MemContainer) Read(p []byte) (int, error) {
	if m.pos >= int64(len(m.buf)) {
		return 0, io.EOF
	}
	n := copy(p, m.buf[m.pos:])
	m.pos += int64(n)
	return n, nil
}

func (m *MemContainer) Write(p []byte) (int, error) {
	end := m.pos + int64(len(p))
	if end > int64(len(m.buf)) {
		grown := make([]byte, end)
		copy(grown, m.buf)
		m.buf = grown
	}
	n := copy(m.buf[m.pos:end], p)
	m.pos = end
	return n, nil
}

func (m *MemContainer) Seek(offset int64, whence int) (int64, error) {
	var base int64
	switch whence {
	case io.SeekStart:
		base = 0
	case io.SeekCurrent:
		base = m.pos
	case io.SeekEnd:
		base = int64(len(m.buf))
	}
	m.pos = base + offset
	return m.pos, nil
}

// Truncate resizes the container, zero-extending on growth.
func (m *MemContainer) Truncate(size int64) error {
	if size <= int64(len(m.buf)) {
		m.buf = m.buf[:size]
		return nil
	}
	grown := make([]byte, size)
	copy(grown, m.buf)
	m.buf = grown
	return nil
}

// Bytes returns the container's current content without copying.
func (m *MemContainer) Bytes() []byte {
	return m.buf
}

// Equal reports whether two containers hold identical bytes, a convenience
// for round-trip assertions.
func Equal(a, b *MemContainer) bool {
	return bytes.Equal(a.buf, b.buf)
}
