package fatvol

import (
	"io"

	ferrors "github.com/mxvoid/fatvol/errors"
)

// Container is the seekable, randomly-addressable byte store a Volume
// operates on: a file, a block device image, or an in-memory buffer. It may
// sit at a non-zero base offset inside a larger stream (see containerView's
// baseOffset, set from OpenOptions.Offset), so all reads/writes issued against it are container-relative,
// not volume-relative.
type Container = io.ReadWriteSeeker

// Truncator is implemented by containers that support resizing. mkfs
// requires it to size a fresh image; Volume operations never shrink an
// already-open container.
type Truncator interface {
	Truncate(size int64) error
}

// Closer is implemented by containers that own an external resource (an
// *os.File, typically). Close calls it if present; an in-memory container
// need not implement it.
type Closer = io.Closer

// containerView adapts a Container plus a base byte offset into the
// absolute-address read/write primitives the rest of this package uses,
// so no other component has to carry the offset around by hand.
type containerView struct {
	stream     Container
	baseOffset int64
	readOnly   bool
}

func newContainerView(stream Container, baseOffset int64, readOnly bool) *containerView {
	return &containerView{stream: stream, baseOffset: baseOffset, readOnly: readOnly}
}

// readAt reads len(buf) bytes starting at the volume-relative offset off.
func (c *containerView) readAt(off int64, buf []byte) error {
	if _, err := c.stream.Seek(c.baseOffset+off, io.SeekStart); err != nil {
		return ferrors.NewIOError(err)
	}
	if _, err := io.ReadFull(c.stream, buf); err != nil {
		return ferrors.NewIOError(err)
	}
	return nil
}

// writeAt writes buf verbatim starting at the volume-relative offset off.
// Callers are trusted to have validated bounds; this does not re-check them
// against volume geometry, matching the core's "write_bytes_at" contract.
func (c *containerView) writeAt(off int64, buf []byte) error {
	if c.readOnly {
		return ferrors.New(ferrors.ErrReadOnly, "write attempted on read-only volume")
	}
	if _, err := c.stream.Seek(c.baseOffset+off, io.SeekStart); err != nil {
		return ferrors.NewIOError(err)
	}
	if _, err := c.stream.Write(buf); err != nil {
		return ferrors.NewIOError(err)
	}
	return nil
}

// truncate resizes the underlying container to size bytes, measured from the
// start of the container (not volume-relative, since mkfs is what sizes the
// container in the first place and the volume doesn't exist until it does).
func (c *containerView) truncate(size int64) error {
	t, ok := c.stream.(Truncator)
	if !ok {
		return ferrors.New(ferrors.ErrNotWritable, "container does not support Truncate")
	}
	if err := t.Truncate(size); err != nil {
		return ferrors.NewIOError(err)
	}
	return nil
}

// probeWritable determines whether the container accepts writes by
// attempting a zero-length write at the current position; containers that
// are fundamentally read-only (e.g. opened O_RDONLY) return an error here,
// which the Volume treats the same as an explicit read_only request.
func probeWritable(stream Container) bool {
	pos, err := stream.Seek(0, io.SeekCurrent)
	if err != nil {
		return false
	}
	_, err = stream.Write(nil)
	stream.Seek(pos, io.SeekStart)
	return err == nil
}
