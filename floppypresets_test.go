package fatvol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFloppyGeometryBySlugKnown(t *testing.T) {
	g, err := FloppyGeometryBySlug("1.44m")
	require.NoError(t, err)
	assert.Equal(t, int64(1474560), g.TotalSizeBytes())
}

func TestFloppyGeometryBySlugUnknown(t *testing.T) {
	_, err := FloppyGeometryBySlug("does-not-exist")
	require.Error(t, err)
}
