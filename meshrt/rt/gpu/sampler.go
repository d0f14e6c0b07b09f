package gpu

type Filter uint8

const (
	FilterNearest Filter = iota
	FilterLinear
)

type MipmapMode uint8

const (
	MipmapNearest MipmapMode = iota
	MipmapLinear
)

type SamplerDesc struct {
	Label     string
	MagFilter Filter
	MinFilter Filter
	Mipmap    MipmapMode
}

// SourceFilter is the filter enumeration used by scene files (glTF numbering).
type SourceFilter uint16

const (
	SourceNearest              SourceFilter = 9728
	SourceLinear               SourceFilter = 9729
	SourceNearestMipMapNearest SourceFilter = 9984
	SourceLinearMipMapNearest  SourceFilter = 9985
	SourceNearestMipMapLinear  SourceFilter = 9986
	SourceLinearMipMapLinear   SourceFilter = 9987
)

func ConvertFilter(f SourceFilter) Filter {
	switch f {
	case SourceNearest, SourceNearestMipMapNearest, SourceNearestMipMapLinear:
		return FilterNearest
	default:
		return FilterLinear
	}
}

func ConvertMipmapMode(f SourceFilter) MipmapMode {
	switch f {
	case SourceNearestMipMapNearest, SourceLinearMipMapNearest:
		return MipmapNearest
	default:
		return MipmapLinear
	}
}

// SamplerFromSource builds a sampler descriptor from scene-file filters. A zero
// filter means "unspecified" and falls back to nearest.
func SamplerFromSource(label string, mag, minf SourceFilter) SamplerDesc {
	if mag == 0 {
		mag = SourceNearest
	}
	if minf == 0 {
		minf = SourceNearest
	}
	return SamplerDesc{
		Label:     label,
		MagFilter: ConvertFilter(mag),
		MinFilter: ConvertFilter(minf),
		Mipmap:    ConvertMipmapMode(minf),
	}
}
