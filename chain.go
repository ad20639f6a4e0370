package fatvol

import (
	"github.com/boljen/go-bitmap"

	ferrors "github.com/mxvoid/fatvol/errors"
)

// ChainIterator yields cluster indices one at a time, restartable by
// calling Volume.NewChainIterator with the same head ("Generator
// yielding cluster indices").
type ChainIterator struct {
	v      *Volume
	next   uint32
	done   bool
	failed error
}

// NewChainIterator begins (or restarts) traversal of the chain starting at
// head.
func (v *Volume) NewChainIterator(head uint32) *ChainIterator {
	return &ChainIterator{v: v, next: head}
}

// Next returns the next cluster in the chain. ok is false once the chain is
// exhausted (terminated by EOC) or a CorruptChainError occurred, in which
// case err carries that error.
func (it *ChainIterator) Next() (cluster uint32, ok bool, err error) {
	if it.done {
		return 0, false, it.failed
	}

	c := it.next
	if c < 2 {
		// Cells 0 and 1 are reserved and never part of a chain.
		it.done = true
		it.failed = ferrors.NewCorruptChainError(ferrors.ReasonInvalidValue, c, it.v.fat.Get(c))
		return 0, false, it.failed
	}
	class := it.v.fatType.Classify(it.v.fat.Get(c))
	switch class {
	case CellData:
		it.next = it.v.fat.Get(c)
		return c, true, nil
	case CellEOC, CellSpecialEOC:
		it.done = true
		return c, true, nil
	case CellBad:
		it.done = true
		it.failed = ferrors.NewCorruptChainError(ferrors.ReasonBadCluster, c, it.v.fat.Get(c))
		return 0, false, it.failed
	case CellFree:
		it.done = true
		it.failed = ferrors.NewCorruptChainError(ferrors.ReasonFreeInChain, c, it.v.fat.Get(c))
		return 0, false, it.failed
	default:
		it.done = true
		it.failed = ferrors.NewCorruptChainError(ferrors.ReasonInvalidValue, c, it.v.fat.Get(c))
		return 0, false, it.failed
	}
}

// GetClusterChain collects the full chain starting at head. It is a
// convenience wrapper around ChainIterator for callers that don't need to
// stream it cluster by cluster.
func (v *Volume) GetClusterChain(head uint32) ([]uint32, error) {
	it := v.NewChainIterator(head)
	var out []uint32
	for {
		c, ok, err := it.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			return out, nil
		}
		out = append(out, c)
	}
}

// rebuildFreeBitmap derives the free-cluster bitmap accelerator from the
// current FAT contents. It mirrors FREE/non-FREE status per cluster index;
// the FAT remains the authoritative on-disk allocation record, this is a
// derived, in-memory-only scan accelerator.
func (v *Volume) rebuildFreeBitmap() {
	n := v.fat.NumCells()
	v.freeBitmap = bitmap.New(n)
	for c := 2; c < n; c++ {
		if v.fatType.Classify(v.fat.Get(uint32(c))) != CellFree {
			v.freeBitmap.Set(c, true)
		}
	}
}

// scanFreeClusters returns the first n free cluster indices at or after
// start, honoring the skip rules (outside [MIN_DATA,
// MAX_DATA], BAD, and FAT12's SPECIAL_EOC are never candidates, but those
// values never classify as CellFree in the first place so the bitmap
// already excludes them).
func (v *Volume) scanFreeClusters(start uint32, n int) []uint32 {
	var found []uint32
	total := v.fat.NumCells()
	for c := int(start); c < total && len(found) < n; c++ {
		if !v.freeBitmap.Get(c) {
			found = append(found, uint32(c))
		}
	}
	return found
}

// AllocateBytes allocates a new cluster chain of the given size.
func (v *Volume) AllocateBytes(size int64, erase bool) ([]uint32, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.allocateBytesLocked(size, erase)
}

func (v *Volume) allocateBytesLocked(size int64, erase bool) ([]uint32, error) {
	if v.readOnly {
		return nil, ferrors.New(ferrors.ErrReadOnly, "cannot allocate on a read-only volume")
	}
	if size == 0 {
		return nil, nil
	}

	bpc := int64(v.bytesPerCluster)
	n := int((size + bpc - 1) / bpc)

	found := v.scanFreeClusters(v.firstFreeCluster, n)
	if len(found) < n {
		return nil, ferrors.NewNoSpaceError(v.freeBytesLocked())
	}

	shadow := v.fat.Clone()
	for i := 0; i < len(found)-1; i++ {
		shadow.Set(found[i], found[i+1])
	}
	shadow.Set(found[len(found)-1], v.fatType.EOCValue())

	if erase {
		for _, c := range found {
			if err := v.zeroCluster(c); err != nil {
				return nil, err
			}
		}
	}

	v.fat = shadow
	for _, c := range found {
		v.freeBitmap.Set(int(c), true)
	}
	v.firstFreeCluster = found[len(found)-1] + 1
	v.dirty = true

	return found, nil
}

// FreeClusterChain walks the chain starting at chain_head, sets
// every cell FREE, and lower first_free_cluster to the minimum freed index.
func (v *Volume) FreeClusterChain(head uint32) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.freeClusterChainLocked(head)
}

func (v *Volume) freeClusterChainLocked(head uint32) error {
	if v.readOnly {
		return ferrors.New(ferrors.ErrReadOnly, "cannot free clusters on a read-only volume")
	}
	if head == 0 {
		return nil
	}

	chain, err := v.GetClusterChain(head)
	if err != nil {
		return err
	}

	shadow := v.fat.Clone()
	minFreed := chain[0]
	for _, c := range chain {
		shadow.Set(c, 0)
		if c < minFreed {
			minFreed = c
		}
	}

	v.fat = shadow
	for _, c := range chain {
		v.freeBitmap.Set(int(c), false)
	}
	if minFreed < v.firstFreeCluster {
		v.firstFreeCluster = minFreed
	}
	v.dirty = true
	return nil
}

// WriteDataToCluster implements extend-on-write: it walks the
// existing chain counting capacity, allocates the deficit if extend is
// true and the data doesn't fit, splices the new clusters onto the tail of
// the existing chain, and writes the (optionally zero-padded) payload in
// cluster-sized pieces. It returns the chain head, which is head itself
// unless head was 0 (no chain yet), in which case a fresh chain is
// allocated and its head returned.
func (v *Volume) WriteDataToCluster(data []byte, head uint32, extend bool, erase bool) (uint32, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.readOnly {
		return 0, ferrors.New(ferrors.ErrReadOnly, "cannot write on a read-only volume")
	}
	return v.writeDataToClusterLocked(data, head, extend, erase)
}

// freeBytesLocked returns an estimate of free space in bytes, for NoSpace
// error reporting. Callers must hold v.mu.
func (v *Volume) freeBytesLocked() int64 {
	free := 0
	n := v.fat.NumCells()
	for c := 2; c < n; c++ {
		if !v.freeBitmap.Get(c) {
			free++
		}
	}
	return int64(free) * int64(v.bytesPerCluster)
}
