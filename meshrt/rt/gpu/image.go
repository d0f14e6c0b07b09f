package gpu

// CopyRegion places one mip level of tightly packed pixel data into an image.
type CopyRegion struct {
	MipLevel uint32
	Width    uint32
	Height   uint32
	Offset   uint64
}

// MipExtent is the size of level for a base dimension, never below 1.
func MipExtent(base, level uint32) uint32 {
	if level >= 32 {
		return 1
	}
	return max(1, base>>level)
}

// MipLevelCount is the length of a full mip chain for a width x height image.
func MipLevelCount(width, height uint32) uint32 {
	dim := max(width, height)
	levels := uint32(0)
	for dim > 0 {
		levels++
		dim >>= 1
	}
	return max(levels, 1)
}

// MipRegions lays out a full chain of tightly packed levels back to back and
// returns the regions with the total byte size.
func MipRegions(width, height, levels, bytesPerPixel uint32) ([]CopyRegion, uint64) {
	regions := make([]CopyRegion, 0, levels)
	var offset uint64
	for i := uint32(0); i < levels; i++ {
		r := CopyRegion{
			MipLevel: i,
			Width:    MipExtent(width, i),
			Height:   MipExtent(height, i),
			Offset:   offset,
		}
		regions = append(regions, r)
		offset += uint64(r.Width) * uint64(r.Height) * uint64(bytesPerPixel)
	}
	return regions, offset
}
