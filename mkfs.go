package fatvol

import (
	"log/slog"
	"time"

	"github.com/mxvoid/fatvol/internal/mkfstables"

	ferrors "github.com/mxvoid/fatvol/errors"
)

// MkfsOptions configures Mkfs.
type MkfsOptions struct {
	FatType    FatType
	Size       int64 // bytes; 0 means "use the container's current length"
	SectorSize uint16
	NumFATs    uint8
	Label      string
	VolumeID   uint32 // 0 means "generate one from the current local time"
	Media      uint8
	Logger     *slog.Logger
}

// bootStub is a short, benign real-mode routine: print a message and halt.
// It is cosmetic; any sequence with this effect is
// acceptable as long as BPB field alignment is untouched.
//
//	cld
//	mov si, msg
//	print: lodsb
//	       test al, al
//	       je halt
//	       mov ah, 0x0e
//	       int 0x10
//	       jmp print
//	halt:  cli
//	       hlt
//	       jmp halt
//	msg:   db "This is not a bootable disk.", 13, 10, 0
var bootStub = []byte{
	0xFC, 0xBE, 0x1D, 0x7C, 0xAC, 0x84, 0xC0, 0x74, 0x06, 0xB4, 0x0E, 0xCD, 0x10, 0xEB, 0xF5, 0xFA,
	0xF4, 0xEB, 0xFD,
	'T', 'h', 'i', 's', ' ', 'i', 's', ' ', 'n', 'o', 't', ' ', 'a', ' ', 'b', 'o', 'o', 't', 'a',
	'b', 'l', 'e', ' ', 'd', 'i', 's', 'k', '.', 13, 10, 0,
}

// Mkfs constructs a fresh FAT12/16/32 volume on container and opens it.
func Mkfs(container Container, opts MkfsOptions) (*Volume, error) {
	cv := newContainerView(container, 0, false)

	sectorSize := opts.SectorSize
	if sectorSize == 0 {
		sectorSize = 512
	}
	if sectorSize < 512 || sectorSize&(sectorSize-1) != 0 {
		return nil, ferrors.New(ferrors.ErrBadBytsPerSec, "sector_size must be a power of two >= 512")
	}

	size := opts.Size
	if size == 0 {
		end, err := container.Seek(0, 2)
		if err != nil {
			return nil, ferrors.NewIOError(err)
		}
		size = end
	}
	if err := cv.truncate(size); err != nil {
		return nil, err
	}

	totalSectors := uint32(size / int64(sectorSize))

	numFATs := opts.NumFATs
	if numFATs == 0 {
		numFATs = 2
	}
	media := opts.Media
	if media == 0 {
		media = 0xF8
	}

	typeName := map[FatType]string{FAT12: "FAT12", FAT16: "FAT16", FAT32: "FAT32"}[opts.FatType]
	if typeName == "" {
		return nil, ferrors.New(ferrors.ErrUnsupportedFatType, "fat_type must be FAT12, FAT16, or FAT32")
	}
	secPerClus, ok := mkfstables.SecPerClus(typeName, uint64(totalSectors))
	if !ok || secPerClus == 0 {
		return nil, ferrors.New(ferrors.ErrBadSecPerClus, "size is invalid for "+typeName+" per the SecPerClus table")
	}

	var rsvdSecCnt uint16
	var rootEntCnt uint16
	switch opts.FatType {
	case FAT32:
		rsvdSecCnt = 32
		rootEntCnt = 0
	case FAT16:
		rsvdSecCnt = 1
		rootEntCnt = 512
	case FAT12:
		rsvdSecCnt = 1
		rootEntCnt = 224
	}
	rootDirSectors := uint32(rootEntCnt) * 32 / uint32(sectorSize)

	tmp1 := uint64(totalSectors) - uint64(rsvdSecCnt) - uint64(rootDirSectors)
	tmp2 := uint64(256*secPerClus) + uint64(numFATs)
	if opts.FatType == FAT32 {
		tmp2 /= 2
	}
	fatSz := (tmp1 + tmp2 - 1) / tmp2
	if fatSz == 0 {
		return nil, ferrors.New(ferrors.ErrBadFATSz, "computed FAT size is zero")
	}

	volumeID := opts.VolumeID
	if volumeID == 0 {
		now := time.Now()
		packedDate := uint32(now.Year()-1980)<<9 | uint32(now.Month())<<5 | uint32(now.Day())
		packedTime := uint32(now.Hour())<<11 | uint32(now.Minute())<<5 | uint32(now.Second()/2)
		volumeID = packedDate<<16 | packedTime
	}

	bpb := buildBPB(opts.FatType, sectorSize, uint8(secPerClus), rsvdSecCnt, rootEntCnt, totalSectors, uint32(fatSz), uint8(numFATs), media, volumeID, opts.Label, bootStub)

	logger := opts.Logger
	if logger == nil {
		logger = discardLogger()
	}

	v := &Volume{
		container:       cv,
		bpb:             bpb,
		fatType:         opts.FatType,
		readOnly:        false,
		encoding:        "ibm437",
		log:             logger,
		bytesPerCluster: uint32(sectorSize) * uint32(secPerClus),
		numFATs:         uint32(numFATs),
		fatSzSectors:    uint32(fatSz),
		rootDirSectors:  rootDirSectors,
		rootDirBytes:    int64(rootDirSectors) * int64(sectorSize),
	}
	v.rootDirSector = uint32(rsvdSecCnt) + v.numFATs*v.fatSzSectors
	v.firstDataSector = v.rootDirSector + v.rootDirSectors
	if c, ok := container.(Closer); ok {
		v.closer = c
	}

	_, totalClusters := dataSectorsAndClusters(totalSectors, uint32(rsvdSecCnt), v.numFATs, v.fatSzSectors, v.rootDirSectors, uint32(secPerClus))
	v.totalClusters = totalClusters
	numCells := int(totalClusters) + 2

	cells := make([]uint32, numCells)
	cells[0] = opts.FatType.MediaCell0(media)
	cells[1] = opts.FatType.ReservedCell1()
	v.fat = &FatTable{Type: opts.FatType, Cells: cells}

	if opts.FatType == FAT32 {
		bpb.Fat32.RootCluster = 2
		bpb.Fat32.FSInfoSector = 1
		bpb.Fat32.BackupBootSector = 6
		v.rootCluster = 2
		cells[2] = opts.FatType.EOCValue()
	}

	v.rebuildFreeBitmap()
	v.firstFreeCluster = 2

	if err := v.flushFatLocked(); err != nil {
		return nil, err
	}

	sector, err := bpb.Serialize()
	if err != nil {
		return nil, err
	}
	if err := v.writeBytesAt(0, sector); err != nil {
		return nil, err
	}

	if opts.FatType == FAT32 {
		if err := v.writeBytesAt(bpb.BackupSectorOffset(), sector); err != nil {
			return nil, err
		}
		v.fsInfoValid = true
		v.fsInfoSector = 1
		if err := v.flushFSInfoLocked(); err != nil {
			return nil, err
		}
	}

	v.initialized = true

	label := makeVolumeLabelEntry(opts.Label)
	var head uint32
	isFixedRoot := opts.FatType != FAT32
	if opts.FatType == FAT32 {
		head = v.rootCluster
	}
	if err := v.UpdateDirectoryEntry(head, isFixedRoot, []*DirectoryEntry{label}); err != nil {
		return nil, err
	}

	if err := v.markDirtyLocked(); err != nil {
		return nil, err
	}

	return v, nil
}

// WithMkfs formats container, passes the fresh volume to fn, and closes it
// on every exit path from fn, mirroring WithVolume's guaranteed-close
// contract for the construction side.
func WithMkfs(container Container, opts MkfsOptions, fn func(*Volume) error) (err error) {
	v, err := Mkfs(container, opts)
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

func buildBPB(fatType FatType, sectorSize uint16, secPerClus uint8, rsvdSecCnt uint16, rootEntCnt uint16, totalSectors uint32, fatSz uint32, numFATs uint8, media uint8, volumeID uint32, label string, bootCode []byte) *BPB {
	bpb := &BPB{IsFAT32: fatType == FAT32}
	bpb.Common = commonBPB{
		JmpBoot:           [3]byte{0xEB, 0x00, 0x90},
		BytesPerSector:    sectorSize,
		SectorsPerCluster: secPerClus,
		ReservedSectors:   rsvdSecCnt,
		NumFATs:           numFATs,
		RootEntryCount:    rootEntCnt,
		Media:             media,
		SectorsPerTrack:   63,
		NumHeads:          255,
	}
	copy(bpb.Common.OEMName[:], "FATVOL  ")

	if totalSectors <= 0xFFFF {
		bpb.Common.TotalSectors16 = uint16(totalSectors)
	} else {
		bpb.Common.TotalSectors32 = totalSectors
	}

	volLabel := [11]byte{' ', ' ', ' ', ' ', ' ', ' ', ' ', ' ', ' ', ' ', ' '}
	copy(volLabel[:], padLabel(label))

	if bpb.IsFAT32 {
		bpb.Fat32 = fat32Tail{
			FATSz32:       fatSz,
			DriveNumber:   0x80,
			BootSignature: 0x29,
			VolumeID:      volumeID,
			VolumeLabel:   volLabel,
		}
		copy(bpb.Fat32.FileSystemType[:], "FAT32   ")
	} else {
		bpb.Common.FATSz16 = uint16(fatSz)
		bpb.Fat1x = fat1xTail{
			DriveNumber:   0x00,
			BootSignature: 0x29,
			VolumeID:      volumeID,
			VolumeLabel:   volLabel,
		}
		name := "FAT16   "
		if fatType == FAT12 {
			name = "FAT12   "
		}
		copy(bpb.Fat1x.FileSystemType[:], name)
	}

	bpb.bootCode = append([]byte(nil), bootCode...)
	return bpb
}

func padLabel(label string) []byte {
	b := make([]byte, 11)
	for i := range b {
		b[i] = ' '
	}
	copy(b, []byte(label))
	for i, c := range b {
		if c >= 'a' && c <= 'z' {
			b[i] = c - 32
		}
	}
	return b
}

func makeVolumeLabelEntry(label string) *DirectoryEntry {
	var name EightDotThree
	copy(name[:], padLabel(label))
	now := time.Now()
	return &DirectoryEntry{
		ShortName:  name,
		Attr:       AttrVolumeID,
		CreateTime: now,
		WriteTime:  now,
	}
}

