package fatvol

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/noxer/bytewriter"

	ferrors "github.com/mxvoid/fatvol/errors"
)

// bootSectorSize is the fixed size of the boot sector this codec reads and
// writes; BPB_BytsPerSec may differ (the reserved region can use a larger
// logical sector), but the boot sector itself always occupies the first 512
// bytes of the volume.
const bootSectorSize = 512

const bootSignatureOffset = 510
const bootSignatureValue = 0xAA55

// commonBPB holds the 36-byte prefix shared by the FAT12/16 and FAT32 boot
// sector forms.
type commonBPB struct {
	JmpBoot           [3]byte
	OEMName           [8]byte
	BytesPerSector    uint16
	SectorsPerCluster uint8
	ReservedSectors   uint16
	NumFATs           uint8
	RootEntryCount    uint16
	TotalSectors16    uint16
	Media             uint8
	FATSz16           uint16
	SectorsPerTrack   uint16
	NumHeads          uint16
	HiddenSectors     uint32
	TotalSectors32    uint32
}

// fat1xTail is the BS_* tail used by the FAT12/16 boot sector form.
type fat1xTail struct {
	DriveNumber    uint8
	Reserved1      uint8
	BootSignature  uint8
	VolumeID       uint32
	VolumeLabel    [11]byte
	FileSystemType [8]byte
}

// fat32Tail is the extended block inserted before the BS_* tail on FAT32,
// plus the tail itself.
type fat32Tail struct {
	FATSz32          uint32
	ExtFlags         uint16
	FSVersion        uint16
	RootCluster      uint32
	FSInfoSector     uint16
	BackupBootSector uint16
	Reserved         [12]byte
	DriveNumber      uint8
	Reserved1        uint8
	BootSignature    uint8
	VolumeID         uint32
	VolumeLabel      [11]byte
	FileSystemType   [8]byte
}

// BPB is the parsed BIOS Parameter Block, in either of its two on-disk
// forms. Exactly one of Fat1x/Fat32 is meaningful, selected by IsFAT32.
type BPB struct {
	Common  commonBPB
	IsFAT32 bool
	Fat1x   fat1xTail
	Fat32   fat32Tail

	// bootCode holds the untouched boot-code-area bytes read from disk, so
	// re-serializing a parsed-but-unmodified BPB round-trips byte for byte.
	bootCode []byte
}

// FATSz returns BPB_FATSz16 if nonzero, else BPB_FATSz32 (FAT32 only).
func (b *BPB) FATSz() uint32 {
	if b.Common.FATSz16 != 0 {
		return uint32(b.Common.FATSz16)
	}
	return b.Fat32.FATSz32
}

// TotalSectors returns BPB_TotSec16 if nonzero, else BPB_TotSec32.
func (b *BPB) TotalSectors() uint32 {
	if b.Common.TotalSectors16 != 0 {
		return uint32(b.Common.TotalSectors16)
	}
	return b.Common.TotalSectors32
}

// RootDirSectors is the number of sectors occupied by a fixed-region root
// directory; zero on FAT32.
func (b *BPB) RootDirSectors() uint32 {
	bps := uint32(b.Common.BytesPerSector)
	return (uint32(b.Common.RootEntryCount)*32 + bps - 1) / bps
}

// ParseBPB reads and validates the first 512 bytes of a container per the
// BPB Codec component.
func ParseBPB(r io.Reader) (*BPB, error) {
	raw := make([]byte, bootSectorSize)
	if _, err := io.ReadFull(r, raw); err != nil {
		return nil, ferrors.NewIOError(err)
	}

	if binary.LittleEndian.Uint16(raw[bootSignatureOffset:]) != bootSignatureValue {
		return nil, ferrors.New(ferrors.ErrBadSignature, "missing 0x55AA boot signature")
	}

	bpb := &BPB{}
	cr := bytes.NewReader(raw)
	if err := binary.Read(cr, binary.LittleEndian, &bpb.Common); err != nil {
		return nil, ferrors.NewIOError(err)
	}

	if err := validateJmpBoot(bpb.Common.JmpBoot); err != nil {
		return nil, err
	}
	if err := validateBytesPerSector(bpb.Common.BytesPerSector); err != nil {
		return nil, err
	}
	if err := validateSectorsPerCluster(bpb.Common.SectorsPerCluster); err != nil {
		return nil, err
	}
	if bpb.Common.ReservedSectors < 1 {
		return nil, ferrors.New(ferrors.ErrBadFATSz, "BPB_RsvdSecCnt must be >= 1")
	}
	if bpb.Common.NumFATs < 1 {
		return nil, ferrors.New(ferrors.ErrBadFATSz, "BPB_NumFATs must be >= 1")
	}
	if err := validateMedia(bpb.Common.Media); err != nil {
		return nil, err
	}
	if bpb.Common.RootEntryCount != 0 {
		if (uint32(bpb.Common.RootEntryCount)*32)%uint32(bpb.Common.BytesPerSector) != 0 {
			return nil, ferrors.New(ferrors.ErrBadRootEntAlign, "BPB_RootEntCnt does not align to a sector")
		}
	}
	if bpb.Common.TotalSectors16 == 0 && bpb.Common.TotalSectors32 == 0 {
		return nil, ferrors.New(ferrors.ErrBadTotalSectors, "both BPB_TotSec16 and BPB_TotSec32 are zero")
	}

	// FAT12/16 has no BPB_FATSz32; its presence (FATSz16 == 0) selects the
	// FAT32 tail.
	bpb.IsFAT32 = bpb.Common.FATSz16 == 0
	if bpb.IsFAT32 {
		if err := binary.Read(cr, binary.LittleEndian, &bpb.Fat32); err != nil {
			return nil, ferrors.NewIOError(err)
		}
		if bpb.Common.RootEntryCount != 0 {
			return nil, ferrors.New(ferrors.ErrBadRootEntAlign, "BPB_RootEntCnt must be 0 on FAT32")
		}
	} else {
		if err := binary.Read(cr, binary.LittleEndian, &bpb.Fat1x); err != nil {
			return nil, ferrors.NewIOError(err)
		}
	}

	// Boot code area spans from wherever the tail ended to the signature.
	tailEnd := bootSectorSize - cr.Len()
	bpb.bootCode = append([]byte(nil), raw[tailEnd:bootSignatureOffset]...)

	return bpb, nil
}

func validateJmpBoot(jmp [3]byte) error {
	switch jmp[0] {
	case 0xEB:
		if jmp[2] != 0x90 {
			return ferrors.New(ferrors.ErrBadJmpBoot, "0xEB opcode requires 0x90 in BS_jmpBoot[2]")
		}
	case 0xE9:
		// any following bytes accepted
	default:
		return ferrors.New(ferrors.ErrBadJmpBoot, "BS_jmpBoot[0] must be 0xEB or 0xE9")
	}
	return nil
}

func validateBytesPerSector(v uint16) error {
	switch v {
	case 512, 1024, 2048, 4096:
		return nil
	default:
		return ferrors.New(ferrors.ErrBadBytsPerSec, "BPB_BytsPerSec must be 512, 1024, 2048, or 4096")
	}
}

func validateSectorsPerCluster(v uint8) error {
	switch v {
	case 1, 2, 4, 8, 16, 32, 64, 128:
		return nil
	default:
		return ferrors.New(ferrors.ErrBadSecPerClus, "BPB_SecPerClus must be a power of two in 1..128")
	}
}

func validateMedia(v uint8) error {
	if v == 0xF0 || v >= 0xF8 {
		return nil
	}
	return ferrors.New(ferrors.ErrBadMedia, "BPB_Media must be 0xF0 or in 0xF8..0xFF")
}

// Serialize returns the BPB as the full 512-byte boot sector, including the
// boot-code area and the signature. It writes nothing itself; callers write
// the result at offset 0 and, on FAT32, at BackupSectorOffset.
func (b *BPB) Serialize() ([]byte, error) {
	buf := make([]byte, bootSectorSize)
	w := bytewriter.New(buf)

	if err := binary.Write(w, binary.LittleEndian, &b.Common); err != nil {
		return nil, ferrors.NewIOError(err)
	}
	if b.IsFAT32 {
		if err := binary.Write(w, binary.LittleEndian, &b.Fat32); err != nil {
			return nil, ferrors.NewIOError(err)
		}
	} else {
		if err := binary.Write(w, binary.LittleEndian, &b.Fat1x); err != nil {
			return nil, ferrors.NewIOError(err)
		}
	}

	tailEnd := binary.Size(b.Common)
	if b.IsFAT32 {
		tailEnd += binary.Size(b.Fat32)
	} else {
		tailEnd += binary.Size(b.Fat1x)
	}
	if len(b.bootCode) > 0 && tailEnd < bootSignatureOffset {
		n := copy(buf[tailEnd:bootSignatureOffset], b.bootCode)
		_ = n
	}

	binary.LittleEndian.PutUint16(buf[bootSignatureOffset:], bootSignatureValue)
	return buf, nil
}

// BackupSectorOffset returns the byte offset of the backup boot sector,
// valid only when IsFAT32 is true.
func (b *BPB) BackupSectorOffset() int64 {
	return int64(b.Fat32.BackupBootSector) * int64(b.Common.BytesPerSector)
}
