package fatvol

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyFatTypeAgreement(t *testing.T) {
	chosen, agreed := classifyFatType(1000, false)
	assert.Equal(t, FAT12, chosen)
	assert.True(t, agreed)

	chosen, agreed = classifyFatType(10000, false)
	assert.Equal(t, FAT16, chosen)
	assert.True(t, agreed)

	chosen, agreed = classifyFatType(70000, true)
	assert.Equal(t, FAT32, chosen)
	assert.True(t, agreed)
}

func TestClassifyFatTypeDisagreement(t *testing.T) {
	// A FAT16-sized cluster count but a FAT32-shaped BPB: the two conventions
	// disagree, and the presence-based convention is what mount() actually
	// trusts.
	chosen, agreed := classifyFatType(10000, true)
	assert.Equal(t, FAT32, chosen)
	assert.False(t, agreed)
}

func TestDataSectorsAndClusters(t *testing.T) {
	dataSectors, totalClusters := dataSectorsAndClusters(
		/* totalSectors */ 20000,
		/* reservedSectors */ 1,
		/* numFATs */ 2,
		/* fatSzSectors */ 20,
		/* rootDirSectors */ 32,
		/* secPerClus */ 4,
	)
	wantDataSectors := uint32(20000 - (1 + 2*20 + 32))
	assert.Equal(t, wantDataSectors, dataSectors)
	assert.Equal(t, wantDataSectors/4, totalClusters)
}

func TestDataSectorsAndClustersUndersized(t *testing.T) {
	dataSectors, totalClusters := dataSectorsAndClusters(10, 1, 2, 20, 32, 4)
	assert.Equal(t, uint32(0), dataSectors)
	assert.Equal(t, uint32(0), totalClusters)
}
