package fatvol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFAT12RoundTrip(t *testing.T) {
	cells := []uint32{0x0FF8, 0x0FFF, 0x0002, 0x0FF7, 0x0000, 0x0ABC, 0x0FFF}
	buf := encodeFAT12(cells, 16)
	got := decodeFAT12(buf, len(cells))
	require.Equal(t, cells, got)
}

func TestFAT12OddEvenPacking(t *testing.T) {
	// Two adjacent cells packed into 3 bytes: cell 0 low 12 bits, cell 1 high
	// 12 bits, little-endian.
	cells := []uint32{0x123, 0x456}
	buf := encodeFAT12(cells, 3)
	assert.Equal(t, byte(0x23), buf[0])
	assert.Equal(t, byte(0x61), buf[1])
	assert.Equal(t, byte(0x45), buf[2])

	got := decodeFAT12(buf, 2)
	assert.Equal(t, cells, got)
}

func TestFAT12TrailingHalfCellDropped(t *testing.T) {
	// 3 cells need 4.5 bytes; only 3 bytes supplied, so cell 2's byte
	// position falls past the end of data and decodeFAT12 stops rather than
	// reading out of bounds.
	data := []byte{0x23, 0x61, 0x45}
	got := decodeFAT12(data, 3)
	assert.Equal(t, uint32(0), got[2])
}

func TestFAT16RoundTrip(t *testing.T) {
	cells := []uint32{0xFFF8, 0x0002, 0x0000, 0xFFF7, 0x1234}
	buf := encodeFAT16(cells, 10)
	got := decodeFAT16(buf, len(cells))
	require.Equal(t, cells, got)
}

func TestFAT32RoundTripMasksReservedBits(t *testing.T) {
	cells := []uint32{0xFFFFFFF8, 0x0FFFFFF7, 0x00000002}
	buf := encodeFAT32(cells, 12)
	got := decodeFAT32(buf, len(cells))
	for i := range cells {
		assert.Equal(t, cells[i]&fat32Mask, got[i])
	}
}

func TestDecodeEncodeFatTableRoundTrip(t *testing.T) {
	for _, ft := range []FatType{FAT12, FAT16, FAT32} {
		cells := []uint32{0, 0xFFF, 2, 3, 4}
		table := &FatTable{Type: ft, Cells: cells}
		sizeBytes := 64
		encoded := table.Encode(sizeBytes)
		decoded := DecodeFatTable(ft, encoded, len(cells))
		for i := range cells {
			assert.Equal(t, table.Get(uint32(i)), decoded.Get(uint32(i)), "fat type %s cell %d", ft, i)
		}
	}
}
