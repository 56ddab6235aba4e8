package volume

import (
	"testing"

	"github.com/deploymenttheory/go-ntfsdefrag/internal/hostio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegionsFromBitmap(t *testing.T) {
	total := uint64(100)
	dev := hostio.NewMockDevice(make([]byte, 0), 1024, hostio.VolumeInfo{TotalClusters: total})
	dev.MarkUsed(0, 5)
	dev.MarkUsed(20, 10)

	regions, err := RegionsFromBitmap(dev, total)
	require.NoError(t, err)

	// Expect free runs: [5,20) and [30,100).
	require.Len(t, regions, 2)
	assert.Equal(t, FreeRegion{LCN: 5, Length: 15}, regions[0])
	assert.Equal(t, FreeRegion{LCN: 30, Length: 70}, regions[1])
}
