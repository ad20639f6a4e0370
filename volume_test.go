package fatvol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarkDirtyThenCleanRoundTrip(t *testing.T) {
	v := newTestVolume(t, FAT16, 4)
	v.bpb.Fat1x.BootSignature = 0x29 // irrelevant to the bit protocol, just realism

	require.NoError(t, v.markDirtyLocked())
	assert.True(t, v.isDirtyLocked())

	require.NoError(t, v.markCleanLocked())
	assert.False(t, v.isDirtyLocked())
}

func TestDirtyBitUsesBothConventions(t *testing.T) {
	v := newTestVolume(t, FAT32, 4)
	require.NoError(t, v.markCleanLocked())
	assert.False(t, v.isDirtyLocked())

	// Flip only the NT bit; the DOS bit alone being clean must not mask it.
	v.setTailReserved1(v.tailReserved1() | ntDirtyBit)
	assert.True(t, v.isDirtyLocked())
}

func TestUpdateDirectoryEntryRejectsReadOnly(t *testing.T) {
	v := newTestVolume(t, FAT16, 4)
	v.readOnly = true
	err := v.UpdateDirectoryEntry(0, true, nil)
	require.Error(t, err)
}

func TestStatReportsFreeClusters(t *testing.T) {
	v := newTestVolume(t, FAT16, 6)
	_, err := v.AllocateBytes(2*512, false)
	require.NoError(t, err)

	stat := v.Stat()
	assert.Equal(t, uint32(4), stat.FreeClusters)
	assert.Equal(t, uint32(6), stat.TotalClusters)
}
