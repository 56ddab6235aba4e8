package volume

import "github.com/deploymenttheory/go-ntfsdefrag/internal/hostio"

// RegionsFromBitmap reads the volume's cluster bitmap in chunks via the
// host's bitmap-query primitive and derives the maximal zero-run free
// regions from it (spec.md §4.2 Bitmap: "the in-memory representation is
// the packed bit array plus a region list derived by scanning for maximal
// zero-runs"). A set bit means the cluster is allocated; a clear bit means
// free.
func RegionsFromBitmap(device hostio.BlockDevice, totalClusters uint64) ([]FreeRegion, error) {
	var regions []FreeRegion
	var runStart uint64
	inRun := false
	var seen uint64

	startLCN := uint64(0)
	for seen < totalClusters {
		chunk, next, ok, err := device.ReadBitmapChunk(startLCN)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}

		for byteIdx, b := range chunk {
			for bit := 0; bit < 8; bit++ {
				lcn := startLCN + uint64(byteIdx)*8 + uint64(bit)
				if lcn >= totalClusters {
					break
				}
				free := b&(1<<uint(bit)) == 0
				if free && !inRun {
					runStart = lcn
					inRun = true
				} else if !free && inRun {
					regions = append(regions, FreeRegion{LCN: runStart, Length: lcn - runStart})
					inRun = false
				}
				seen++
			}
		}

		if next <= startLCN {
			break
		}
		startLCN = next
	}

	if inRun {
		regions = append(regions, FreeRegion{LCN: runStart, Length: totalClusters - runStart})
	}

	return regions, nil
}
