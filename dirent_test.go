package fatvol

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEightDotThreeString(t *testing.T) {
	var name EightDotThree
	copy(name[:], "README  TXT")
	assert.Equal(t, "README.TXT", name.String())
}

func TestEightDotThreeStringNoExtension(t *testing.T) {
	var name EightDotThree
	copy(name[:], "FOLDER     ")
	assert.Equal(t, "FOLDER", name.String())
}

func TestFatTimestampRoundTrip(t *testing.T) {
	want := time.Date(2024, time.March, 15, 10, 30, 42, 0, time.Local)
	date, timePart, tenths := packFatTimestamp(want)
	got := fatTimestamp(date, timePart, tenths)
	assert.True(t, got.Equal(want))
}

func TestFatTimestampZeroDateYieldsZeroTime(t *testing.T) {
	got := fatTimestamp(0, 0, 0)
	assert.True(t, got.IsZero())
}

func TestSetCreatedAtRejectsPreEpoch(t *testing.T) {
	d := &DirectoryEntry{}
	err := d.SetCreatedAt(time.Date(1979, time.December, 31, 0, 0, 0, 0, time.Local))
	require.Error(t, err)
}

func TestSetCreatedAtAcceptsEpoch(t *testing.T) {
	d := &DirectoryEntry{}
	err := d.SetCreatedAt(fatEpoch)
	require.NoError(t, err)
	assert.True(t, d.CreateTime.Equal(fatEpoch))
}

func TestShortNameChecksumStable(t *testing.T) {
	var name EightDotThree
	copy(name[:], "README  TXT")
	c1 := shortNameChecksum(name)
	c2 := shortNameChecksum(name)
	assert.Equal(t, c1, c2)
}

func TestFoldLFNRunRejectsChecksumMismatch(t *testing.T) {
	var shortName EightDotThree
	copy(shortName[:], "README  TXT")
	wantSum := shortNameChecksum(shortName)

	run := []rawLongDirent{{
		Ord:      lfnLastFlag | 1,
		Checksum: wantSum + 1, // deliberately wrong
	}}
	got := foldLFNRun(run, wantSum)
	assert.Equal(t, "", got)
}

func TestFoldLFNRunDecodesSingleEntry(t *testing.T) {
	var shortName EightDotThree
	copy(shortName[:], "TEST~1  TXT")
	sum := shortNameChecksum(shortName)

	entry := rawLongDirent{Ord: lfnLastFlag | 1, Checksum: sum}
	putUnits(entry.Name1[:], []uint16{'t', 'e', 's', 't', '.'})
	putUnits(entry.Name2[:], []uint16{'t', 'x', 't', 0, 0xFFFF})
	putUnits(entry.Name3[:], []uint16{0xFFFF})

	got := foldLFNRun([]rawLongDirent{entry}, sum)
	assert.Equal(t, "test.txt", got)
}

func putUnits(dst []byte, units []uint16) {
	for i, u := range units {
		if i*2+1 >= len(dst) {
			break
		}
		dst[i*2] = byte(u)
		dst[i*2+1] = byte(u >> 8)
	}
}
