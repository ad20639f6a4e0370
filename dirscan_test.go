package fatvol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScanRangeStopsAtLastEntryMarker(t *testing.T) {
	entries := []*DirectoryEntry{
		{ShortName: shortName("A       TXT"), Attr: AttrArchive, Size: 10},
		{ShortName: shortName("B       TXT"), Attr: AttrArchive, Size: 20},
	}
	data := serializeDirentRun(entries)
	// Append a trailing garbage record after the last-entry marker, which
	// scanRange must never reach.
	data = append(data, make([]byte, direntSize)...)
	data[len(data)-direntSize] = 'X'

	got, carry := scanRange(data, nil)
	require.Len(t, got, 2)
	assert.Nil(t, carry)
	assert.Equal(t, "A.TXT", got[0].Name())
	assert.Equal(t, "B.TXT", got[1].Name())
}

func TestScanRangeSkipsFreeSlotsAndClearsCarry(t *testing.T) {
	data := make([]byte, direntSize*3)
	data[0] = direntFreeMarker
	copy(data[direntSize:], mustDirentRecord(t, shortName("C       TXT"), AttrArchive))
	data[direntSize*2] = direntLastMarker

	got, carry := scanRange(data, nil)
	require.Len(t, got, 1)
	assert.Nil(t, carry)
	assert.Equal(t, "C.TXT", got[0].Name())
}

func TestScanRangeCarriesPendingLFNAcrossCall(t *testing.T) {
	// An LFN record with no short-name follower in this call must be handed
	// back as carry, not silently dropped.
	record := make([]byte, direntSize)
	record[11] = AttrLongName
	record[0] = lfnLastFlag | 1

	got, carry := scanRange(record, nil)
	assert.Nil(t, got)
	require.Len(t, carry, 1)
}

func shortName(s string) EightDotThree {
	var n EightDotThree
	copy(n[:], s)
	return n
}

func mustDirentRecord(t *testing.T, name EightDotThree, attr uint8) []byte {
	t.Helper()
	e := &DirectoryEntry{ShortName: name, Attr: attr}
	full := serializeDirentRun([]*DirectoryEntry{e})
	return full[:direntSize]
}

func TestListDirectoryScansClusterChain(t *testing.T) {
	v := newTestVolume(t, FAT16, 4)
	entries := []*DirectoryEntry{
		{ShortName: shortName("ONE     TXT"), Attr: AttrArchive},
		{ShortName: shortName("TWO     TXT"), Attr: AttrArchive},
	}
	head, err := v.WriteDataToCluster(serializeDirentRun(entries), 0, true, true)
	require.NoError(t, err)

	dir := &DirectoryEntry{FirstCluster: head, Attr: AttrDirectory}
	got, err := v.ListDirectory(dir)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "ONE.TXT", got[0].Name())
	assert.Equal(t, "TWO.TXT", got[1].Name())
}
