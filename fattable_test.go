package fatvol

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyFAT12Boundaries(t *testing.T) {
	assert.Equal(t, CellFree, FAT12.Classify(0x000))
	assert.Equal(t, CellData, FAT12.Classify(0x002))
	assert.Equal(t, CellData, FAT12.Classify(0xFEF))
	assert.Equal(t, CellSpecialEOC, FAT12.Classify(0xFF0))
	assert.Equal(t, CellBad, FAT12.Classify(0xFF7))
	assert.Equal(t, CellEOC, FAT12.Classify(0xFF8))
	assert.Equal(t, CellEOC, FAT12.Classify(0xFFF))
}

func TestClassifyFAT16Boundaries(t *testing.T) {
	assert.Equal(t, CellFree, FAT16.Classify(0x0000))
	assert.Equal(t, CellData, FAT16.Classify(0xFFEF))
	assert.Equal(t, CellBad, FAT16.Classify(0xFFF7))
	assert.Equal(t, CellEOC, FAT16.Classify(0xFFF8))
}

func TestClassifyFAT32MasksReservedBits(t *testing.T) {
	// The top 4 bits are reserved and must not affect classification.
	assert.Equal(t, CellEOC, FAT32.Classify(0xFFFFFFFF))
	assert.Equal(t, CellFree, FAT32.Classify(0xF0000000))
}

func TestFatTableCloneIsIndependent(t *testing.T) {
	original := &FatTable{Type: FAT16, Cells: []uint32{0, 0xFFFF, 2, 3}}
	clone := original.Clone()
	clone.Set(2, 99)
	assert.Equal(t, uint32(2), original.Get(2))
	assert.Equal(t, uint32(99), clone.Get(2))
}

func TestFatTableSetMasksFAT32(t *testing.T) {
	table := &FatTable{Type: FAT32, Cells: make([]uint32, 4)}
	table.Set(2, 0xFFFFFFFF)
	assert.Equal(t, uint32(fat32Mask), table.Get(2))
}

func TestMediaCell0AndReservedCell1(t *testing.T) {
	assert.Equal(t, uint32(0x0FF8), FAT12.MediaCell0(0xF8))
	assert.Equal(t, uint32(0xFFF8), FAT16.MediaCell0(0xF8))
	assert.Equal(t, uint32(0x0FFFFFF8), FAT32.MediaCell0(0xF8))

	assert.Equal(t, uint32(fat12SpecialEOC), FAT12.ReservedCell1())
	assert.Equal(t, uint32(fat16EOCHigh), FAT16.ReservedCell1())
	assert.Equal(t, uint32(fat32EOCHigh), FAT32.ReservedCell1())
}
