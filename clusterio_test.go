package fatvol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadClusterContentsRoundTrip(t *testing.T) {
	v := newTestVolume(t, FAT16, 4)
	payload := make([]byte, v.bytesPerCluster)
	for i := range payload {
		payload[i] = byte(i)
	}
	require.NoError(t, v.writeCluster(2, payload))

	got, err := v.ReadClusterContents(2)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestReadClusterContentsRejectsOutOfRange(t *testing.T) {
	v := newTestVolume(t, FAT16, 4)

	_, err := v.ReadClusterContents(1)
	assert.Error(t, err)

	_, err = v.ReadClusterContents(v.totalClusters + 2)
	assert.Error(t, err)
}
