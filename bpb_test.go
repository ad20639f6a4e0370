package fatvol

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func buildFAT16BootSector(t *testing.T) []byte {
	t.Helper()
	bpb := &BPB{}
	bpb.Common = commonBPB{
		JmpBoot:           [3]byte{0xEB, 0x3C, 0x90},
		BytesPerSector:    512,
		SectorsPerCluster: 4,
		ReservedSectors:   1,
		NumFATs:           2,
		RootEntryCount:    512,
		TotalSectors16:    20000,
		Media:             0xF8,
		FATSz16:           20,
		SectorsPerTrack:   63,
		NumHeads:          255,
	}
	copy(bpb.Common.OEMName[:], "MSWIN4.1")
	bpb.Fat1x = fat1xTail{
		DriveNumber:   0x80,
		BootSignature: 0x29,
		VolumeID:      0x12345678,
	}
	copy(bpb.Fat1x.VolumeLabel[:], "NO NAME    ")
	copy(bpb.Fat1x.FileSystemType[:], "FAT16   ")
	bpb.bootCode = nil

	buf, err := bpb.Serialize()
	require.NoError(t, err)
	return buf
}

func TestParseBPBRoundTripFAT16(t *testing.T) {
	raw := buildFAT16BootSector(t)
	parsed, err := ParseBPB(bytes.NewReader(raw))
	require.NoError(t, err)

	require.False(t, parsed.IsFAT32)
	require.Equal(t, uint16(512), parsed.Common.BytesPerSector)
	require.Equal(t, uint8(4), parsed.Common.SectorsPerCluster)
	require.Equal(t, uint32(20), parsed.FATSz())
	require.Equal(t, uint32(20000), parsed.TotalSectors())
	require.Equal(t, uint32(32), parsed.RootDirSectors())
}

func TestParseBPBRejectsMissingSignature(t *testing.T) {
	raw := buildFAT16BootSector(t)
	raw[bootSignatureOffset] = 0x00
	_, err := ParseBPB(bytes.NewReader(raw))
	require.Error(t, err)
}

func TestParseBPBRejectsBadJmpBoot(t *testing.T) {
	raw := buildFAT16BootSector(t)
	raw[0] = 0x12
	_, err := ParseBPB(bytes.NewReader(raw))
	require.Error(t, err)
}

func TestSerializeThenParsePreservesBootCode(t *testing.T) {
	raw := buildFAT16BootSector(t)
	parsed, err := ParseBPB(bytes.NewReader(raw))
	require.NoError(t, err)

	reSerialized, err := parsed.Serialize()
	require.NoError(t, err)
	require.Equal(t, raw, reSerialized)
}
