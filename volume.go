package fatvol

import (
	"bytes"
	"log/slog"
	"sync"

	"github.com/boljen/go-bitmap"
	"github.com/hashicorp/go-multierror"

	ferrors "github.com/mxvoid/fatvol/errors"
)

// Volume is the top-level owned entity: an open FAT12/16/32 filesystem
// image. It is safe for concurrent use; every operation that touches the
// container or the FAT acquires the volume's mutex for the duration of one
// logical atomic step.
type Volume struct {
	mu        sync.Mutex
	container *containerView
	closer    Closer // non-nil if the container also implements io.Closer

	bpb     *BPB
	fat     *FatTable
	fatType FatType

	readOnly         bool
	firstFreeCluster uint32
	initialized      bool
	encoding         string
	log              *slog.Logger

	bytesPerCluster  uint32
	firstDataSector  uint32
	rootDirSector    uint32
	rootDirSectors   uint32
	rootDirBytes     int64
	fatSzSectors     uint32
	numFATs          uint32
	totalClusters    uint32
	rootCluster      uint32 // FAT32 only
	freeBitmap       bitmap.Bitmap
	dirty            bool

	fsInfoValid     bool
	fsInfoSector    uint32
	fsInfoFreeCount uint32
}

// OpenOptions configures Open.
type OpenOptions struct {
	ReadOnly bool
	Offset   int64
	Encoding string
	Logger   *slog.Logger
}

// Open validates, parses, and mounts a FAT volume from container.
func Open(container Container, opts OpenOptions) (*Volume, error) {
	writable := probeWritable(container)
	readOnly := opts.ReadOnly || !writable

	encoding := opts.Encoding
	if encoding == "" {
		encoding = "ibm437"
	}
	logger := opts.Logger
	if logger == nil {
		logger = discardLogger()
	}

	v := &Volume{
		container: newContainerView(container, opts.Offset, readOnly),
		readOnly:  readOnly,
		encoding:  encoding,
		log:       logger,
	}
	if c, ok := container.(Closer); ok {
		v.closer = c
	}

	if err := v.mount(); err != nil {
		return nil, err
	}
	return v, nil
}

// WithVolume opens container, passes the mounted volume to fn, and closes it
// on every exit path from fn, including a panic propagating through it. The
// return value is fn's error, unless Close itself fails and fn didn't
// already report one, in which case the Close error is returned instead.
func WithVolume(container Container, opts OpenOptions, fn func(*Volume) error) (err error) {
	v, err := Open(container, opts)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := v.Close(); err == nil {
			err = closeErr
		}
	}()

	err = fn(v)
	return err
}

func (v *Volume) mount() error {
	var diags *multierror.Error

	sectorBuf := make([]byte, bootSectorSize)
	if err := v.container.readAt(0, sectorBuf); err != nil {
		return err
	}
	bpb, err := ParseBPB(bytes.NewReader(sectorBuf))
	if err != nil {
		return err
	}
	v.bpb = bpb

	v.bytesPerCluster = uint32(bpb.Common.BytesPerSector) * uint32(bpb.Common.SectorsPerCluster)
	if v.bytesPerCluster > 32768 {
		diags = multierror.Append(diags, ferrors.New(ferrors.ErrBadSecPerClus, "bytes-per-cluster exceeds 32768, accepted nonetheless"))
	}

	v.numFATs = uint32(bpb.Common.NumFATs)
	v.fatSzSectors = bpb.FATSz()
	v.rootDirSectors = bpb.RootDirSectors()
	v.rootDirBytes = int64(v.rootDirSectors) * int64(bpb.Common.BytesPerSector)

	reservedSectors := uint32(bpb.Common.ReservedSectors)
	v.firstDataSector = reservedSectors + v.numFATs*v.fatSzSectors + v.rootDirSectors
	v.rootDirSector = reservedSectors + v.numFATs*v.fatSzSectors

	dataSectors, totalClusters := dataSectorsAndClusters(bpb.TotalSectors(), reservedSectors, v.numFATs, v.fatSzSectors, v.rootDirSectors, uint32(bpb.Common.SectorsPerCluster))
	_ = dataSectors
	v.totalClusters = totalClusters

	chosen, agreed := classifyFatType(totalClusters, bpb.IsFAT32)
	if !agreed {
		diags = multierror.Append(diags, ferrors.New(ferrors.ErrUnsupportedFatType, "FAT-type classification conventions disagree; using the presence-based convention"))
	}
	v.fatType = chosen

	if bpb.IsFAT32 {
		v.rootCluster = bpb.Fat32.RootCluster
	}

	if err := v.decodeFatCopies(diags); err != nil {
		return err
	}

	if v.isDirtyLocked() {
		v.diagnostic("volume was dirty on last close", "fat_type", v.fatType.String())
	}

	v.rebuildFreeBitmap()
	v.firstFreeCluster = 2

	if v.fatType == FAT32 {
		v.loadFSInfo()
	}

	if !v.readOnly {
		if err := v.markDirtyLocked(); err != nil {
			return err
		}
	}

	v.initialized = true
	v.trace("volume mounted", "fat_type", v.fatType.String(), "total_clusters", v.totalClusters)

	if diags != nil {
		v.diagnostic("diagnostics during mount", "detail", diags.Error())
	}
	return nil
}

// decodeFatCopies reads every FAT copy, keeps the first as authoritative,
// and logs a "FAT copies differ" diagnostic directly for each copy that
// diverges from the first. The diags argument is not read or appended to.
func (v *Volume) decodeFatCopies(diags *multierror.Error) error {
	fatSzBytes := int64(v.fatSzSectors) * int64(v.bpb.Common.BytesPerSector)
	reservedBytes := int64(v.bpb.Common.ReservedSectors) * int64(v.bpb.Common.BytesPerSector)

	numCells := int(v.totalClusters) + 2

	copies := make([][]byte, v.numFATs)
	for i := uint32(0); i < v.numFATs; i++ {
		buf := make([]byte, fatSzBytes)
		if err := v.container.readAt(reservedBytes+int64(i)*fatSzBytes, buf); err != nil {
			return err
		}
		copies[i] = buf
	}

	for i := 1; i < len(copies); i++ {
		if !bytes.Equal(copies[0], copies[i]) {
			v.diagnostic("FAT copies differ", "copy_index", i)
		}
	}

	v.fat = DecodeFatTable(v.fatType, copies[0], numCells)
	return nil
}

// Dirty-bit protocol: two independent indicators must agree.
const (
	dosCleanBitFAT16 = 0x8000
	dosCleanBitFAT32 = 0x08000000
	ntDirtyBit       = 0x01
)

func (v *Volume) isDirtyLocked() bool {
	dosDirty := false
	switch v.fatType {
	case FAT16:
		dosDirty = v.fat.Get(1)&dosCleanBitFAT16 == 0
	case FAT32:
		dosDirty = v.fat.Get(1)&dosCleanBitFAT32 == 0
	}

	ntDirty := v.tailReserved1()&ntDirtyBit != 0
	return dosDirty || ntDirty
}

// IsDirty reports whether the volume's on-disk dirty indicators currently
// say dirty.
func (v *Volume) IsDirty() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.isDirtyLocked()
}

func (v *Volume) tailReserved1() uint8 {
	if v.bpb.IsFAT32 {
		return v.bpb.Fat32.Reserved1
	}
	return v.bpb.Fat1x.Reserved1
}

func (v *Volume) setTailReserved1(value uint8) {
	if v.bpb.IsFAT32 {
		v.bpb.Fat32.Reserved1 = value
	} else {
		v.bpb.Fat1x.Reserved1 = value
	}
}

func (v *Volume) markDirtyLocked() error {
	switch v.fatType {
	case FAT16:
		v.fat.Set(1, v.fat.Get(1) & ^uint32(dosCleanBitFAT16))
	case FAT32:
		v.fat.Set(1, v.fat.Get(1) & ^uint32(dosCleanBitFAT32))
	}
	v.setTailReserved1(v.tailReserved1() | ntDirtyBit)
	v.dirty = true
	return v.flushDirtyBitLocked()
}

func (v *Volume) markCleanLocked() error {
	switch v.fatType {
	case FAT16:
		v.fat.Set(1, v.fat.Get(1)|dosCleanBitFAT16)
	case FAT32:
		v.fat.Set(1, v.fat.Get(1)|dosCleanBitFAT32)
	}
	v.setTailReserved1(v.tailReserved1() &^ ntDirtyBit)
	v.dirty = false
	return nil
}

// flushDirtyBitLocked puts both dirty indicators on disk before any user
// mutation: it rewrites the whole boot sector and every FAT copy, so any
// other pending in-memory FAT change is written out along with FAT[1].
func (v *Volume) flushDirtyBitLocked() error {
	if v.readOnly {
		return nil
	}
	sector, err := v.bpb.Serialize()
	if err != nil {
		return err
	}
	if err := v.writeBytesAt(0, sector); err != nil {
		return err
	}
	return v.flushFatLocked()
}

// flushFatLocked writes the in-memory FAT to every FAT copy identically.
func (v *Volume) flushFatLocked() error {
	if v.readOnly {
		return ferrors.New(ferrors.ErrReadOnly, "cannot flush FAT on a read-only volume")
	}
	fatSzBytes := int64(v.fatSzSectors) * int64(v.bpb.Common.BytesPerSector)
	reservedBytes := int64(v.bpb.Common.ReservedSectors) * int64(v.bpb.Common.BytesPerSector)
	encoded := v.fat.Encode(int(fatSzBytes))

	for i := uint32(0); i < v.numFATs; i++ {
		if err := v.writeBytesAt(reservedBytes+int64(i)*fatSzBytes, encoded); err != nil {
			return err
		}
	}
	return nil
}

// FlushFat writes the in-memory FAT to disk.
func (v *Volume) FlushFat() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.flushFatLocked()
}

// loadFSInfo reads the FAT32 FSInfo sector and seeds first_free_cluster /
// an advisory free-cluster count if the signatures validate
// supplement). An invalid or absent FSInfo sector is silently ignored; the
// bitmap-backed linear scan remains correct either way.
const (
	fsiLeadSig   = 0x41615252
	fsiStrucSig  = 0x61417272
	fsiTrailSig  = 0xAA550000
	fsiSectorSz  = 512
)

func (v *Volume) loadFSInfo() {
	sector := uint32(1)
	if v.bpb.IsFAT32 && v.bpb.Fat32.FSInfoSector != 0 {
		sector = uint32(v.bpb.Fat32.FSInfoSector)
	}
	buf := make([]byte, fsiSectorSz)
	addr := int64(sector) * int64(v.bpb.Common.BytesPerSector)
	if err := v.container.readAt(addr, buf); err != nil {
		return
	}
	lead := leU32(buf[0:4])
	struc := leU32(buf[484:488])
	if lead != fsiLeadSig || struc != fsiStrucSig {
		return
	}
	v.fsInfoValid = true
	v.fsInfoSector = sector
	v.fsInfoFreeCount = leU32(buf[488:492])
	nextFree := leU32(buf[492:496])
	if nextFree != 0xFFFFFFFF && nextFree >= 2 {
		v.firstFreeCluster = nextFree
	}
}

func leU32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

func putLeU32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}

// flushFSInfoLocked rewrites the FSInfo sector's free-count/next-free
// hints; a no-op on FAT12/16 or when no valid FSInfo sector was found.
func (v *Volume) flushFSInfoLocked() error {
	if v.fatType != FAT32 || !v.fsInfoValid || v.readOnly {
		return nil
	}
	buf := make([]byte, fsiSectorSz)
	putLeU32(buf[0:4], fsiLeadSig)
	putLeU32(buf[484:488], fsiStrucSig)
	putLeU32(buf[488:492], v.freeClusterCountLocked())
	putLeU32(buf[492:496], v.firstFreeCluster)
	putLeU32(buf[508:512], fsiTrailSig)
	addr := int64(v.fsInfoSector) * int64(v.bpb.Common.BytesPerSector)
	return v.writeBytesAt(addr, buf)
}

func (v *Volume) freeClusterCountLocked() uint32 {
	free := uint32(0)
	n := v.fat.NumCells()
	for c := 2; c < n; c++ {
		if !v.freeBitmap.Get(c) {
			free++
		}
	}
	return free
}

// Root returns the root directory's entries, scanning the fixed region on
// FAT12/16 or the root cluster chain on FAT32.
func (v *Volume) Root() ([]*DirectoryEntry, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.fatType == FAT32 {
		return v.scanChain(v.rootCluster)
	}
	addr := int64(v.rootDirSector) * int64(v.bpb.Common.BytesPerSector)
	return v.scanFixedRegion(addr, v.rootDirBytes)
}

// VolumeStat is a read-only snapshot of volume state.
type VolumeStat struct {
	FatType         FatType
	TotalClusters   uint32
	FreeClusters    uint32
	BytesPerCluster uint32
	Dirty           bool
	ReadOnly        bool
}

// Stat returns a snapshot of volume statistics.
func (v *Volume) Stat() VolumeStat {
	v.mu.Lock()
	defer v.mu.Unlock()
	return VolumeStat{
		FatType:         v.fatType,
		TotalClusters:   v.totalClusters,
		FreeClusters:    v.freeClusterCountLocked(),
		BytesPerCluster: v.bytesPerCluster,
		Dirty:           v.dirty,
		ReadOnly:        v.readOnly,
	}
}

// Close flushes state and marks the volume clean if writable, then closes
// the underlying container if it supports io.Closer.
func (v *Volume) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if !v.initialized {
		return ferrors.New(ferrors.ErrNotOpen, "volume is not open")
	}

	if !v.readOnly {
		if err := v.markCleanLocked(); err != nil {
			return err
		}
		if err := v.flushFatLocked(); err != nil {
			return err
		}
		if err := v.flushFSInfoLocked(); err != nil {
			return err
		}
		sector, err := v.bpb.Serialize()
		if err != nil {
			return err
		}
		if err := v.writeBytesAt(0, sector); err != nil {
			return err
		}
		if v.bpb.IsFAT32 && v.bpb.Fat32.BackupBootSector != 0 {
			if err := v.writeBytesAt(v.bpb.BackupSectorOffset(), sector); err != nil {
				return err
			}
		}
	}

	v.initialized = false
	if v.closer != nil {
		if err := v.closer.Close(); err != nil {
			return ferrors.NewIOError(err)
		}
	}
	v.trace("volume closed")
	return nil
}

// UpdateDirectoryEntry serializes entries to bytes and writes them back.
// isFixedRegionRoot selects the FAT12/16 fixed root region; otherwise the
// entries are written along the cluster chain at head.
func (v *Volume) UpdateDirectoryEntry(head uint32, isFixedRegionRoot bool, entries []*DirectoryEntry) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.readOnly {
		return ferrors.New(ferrors.ErrReadOnly, "cannot update a directory on a read-only volume")
	}

	payload := serializeDirentRun(entries)

	if isFixedRegionRoot {
		if int64(len(payload)) > v.rootDirBytes {
			return ferrors.NewNoSpaceError(0)
		}
		padded := make([]byte, v.rootDirBytes)
		copy(padded, payload)
		addr := int64(v.rootDirSector) * int64(v.bpb.Common.BytesPerSector)
		return v.writeBytesAt(addr, padded)
	}

	_, err := v.writeDataToClusterLocked(payload, head, true, true)
	return err
}

// writeDataToClusterLocked is WriteDataToCluster's body, callable while
// already holding v.mu (UpdateDirectoryEntry needs this to keep the whole
// step atomic under a single lock acquisition).
func (v *Volume) writeDataToClusterLocked(data []byte, head uint32, extend, erase bool) (uint32, error) {
	bpc := int64(v.bytesPerCluster)
	needed := int((int64(len(data)) + bpc - 1) / bpc)
	if needed == 0 {
		needed = 1
	}

	var existing []uint32
	if head != 0 {
		chain, err := v.GetClusterChain(head)
		if err != nil {
			return 0, err
		}
		existing = chain
	}

	deficit := needed - len(existing)
	if deficit > 0 {
		if !extend {
			return 0, ferrors.NewNoSpaceError(v.freeBytesLocked())
		}
		added, err := v.allocateBytesLocked(int64(deficit)*bpc, erase)
		if err != nil {
			return 0, err
		}
		if len(existing) == 0 {
			head = added[0]
			existing = added
		} else {
			shadow := v.fat.Clone()
			shadow.Set(existing[len(existing)-1], added[0])
			v.fat = shadow
			existing = append(existing, added...)
		}
	}

	payload := data
	if erase {
		padded := make([]byte, int64(len(existing))*bpc)
		copy(padded, data)
		payload = padded
	}

	for i, c := range existing {
		start := int64(i) * bpc
		if start >= int64(len(payload)) {
			break
		}
		end := start + bpc
		if end > int64(len(payload)) {
			end = int64(len(payload))
		}
		if err := v.writeCluster(c, payload[start:end]); err != nil {
			return 0, err
		}
	}

	v.dirty = true
	return head, nil
}

func serializeDirentRun(entries []*DirectoryEntry) []byte {
	buf := make([]byte, 0, len(entries)*direntSize)
	for _, e := range entries {
		raw := e.toRawDirent()
		record := make([]byte, direntSize)
		copy(record[0:11], raw.Name[:])
		record[11] = raw.Attr
		record[12] = raw.NTReserved
		record[13] = raw.CreateTimeTenths
		putLe16(record[14:16], raw.CreateTime)
		putLe16(record[16:18], raw.CreateDate)
		putLe16(record[18:20], raw.LastAccessDate)
		putLe16(record[20:22], raw.FirstClusterHigh)
		putLe16(record[22:24], raw.WriteTime)
		putLe16(record[24:26], raw.WriteDate)
		putLe16(record[26:28], raw.FirstClusterLow)
		putLeU32(record[28:32], raw.FileSize)
		buf = append(buf, record...)
	}
	buf = append(buf, make([]byte, direntSize)...) // last-entry marker (0x00 byte already zero)
	return buf
}

func putLe16(b []byte, v uint16) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
}
