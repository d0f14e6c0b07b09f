package assets

import (
	"context"
	"errors"
	"fmt"

	"github.com/gekko3d/scenert/meshrt/rt/core"
	"github.com/gekko3d/scenert/meshrt/rt/gpu"
	"github.com/gekko3d/scenert/meshrt/rt/handle"

	"github.com/go-gl/mathgl/mgl32"
)

// ErrAssetLoad wraps every failure of a scene load. The previously loaded scene
// is untouched when it is returned.
var ErrAssetLoad = errors.New("asset load failed")

// Importer produces the flat arrays of one scene.
type Importer interface {
	Import(ctx context.Context) (*Batch, error)
}

// None marks an absent reference in batch index fields.
const None = -1

type SurfaceData struct {
	FirstIndex uint32
	IndexCount uint32
	// Bounds are in mesh space.
	Bounds   core.AABB
	Material int
}

type MeshData struct {
	Name     string
	Surfaces []SurfaceData
}

// MaterialData references textures by batch index, None when absent.
type MaterialData struct {
	Name             string
	BaseColorFactor  mgl32.Vec4
	MetalnessFactor  float32
	RoughnessFactor  float32
	EmissiveStrength float32

	BaseColor  int
	MetalRough int
	Normal     int
	Occlusion  int
	Emissive   int
}

func (m *MaterialData) textures() []int {
	return []int{m.BaseColor, m.MetalRough, m.Normal, m.Occlusion, m.Emissive}
}

// TextureData is an RGBA mip chain packed level after level as Regions describe.
type TextureData struct {
	Label   string
	Width   uint32
	Height  uint32
	Format  gpu.Format
	Pixels  []byte
	Regions []gpu.CopyRegion
}

type NodeData struct {
	Name   string
	Local  mgl32.Mat4
	Parent int
	Mesh   int
	Light  int
}

// Batch is everything one scene load uploads. Meshes index into the shared
// Vertices/Indices arrays.
type Batch struct {
	Name      string
	Vertices  []gpu.Vertex
	Indices   []uint32
	Meshes    []MeshData
	Materials []MaterialData
	Lights    []core.Light
	Samplers  []gpu.SamplerDesc
	Textures  []TextureData
	Nodes     []NodeData
}

func inRange(i, n int) bool { return i >= 0 && i < n }

func optional(i, n int) bool { return i == None || inRange(i, n) }

// Validate checks every cross reference of the batch so that building the scene
// cannot fail half way on bad input.
func (b *Batch) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	for name, n := range map[string]int{
		"nodes": len(b.Nodes), "meshes": len(b.Meshes), "materials": len(b.Materials),
		"lights": len(b.Lights), "samplers": len(b.Samplers), "textures": len(b.Textures),
	} {
		if n > handle.MaxEntries {
			add("%d %s exceed the handle index space", n, name)
		}
	}

	for i, idx := range b.Indices {
		if int(idx) >= len(b.Vertices) {
			add("index %d references vertex %d of %d", i, idx, len(b.Vertices))
			break
		}
	}
	for mi, m := range b.Meshes {
		for si, s := range m.Surfaces {
			if uint64(s.FirstIndex)+uint64(s.IndexCount) > uint64(len(b.Indices)) {
				add("mesh %d surface %d: index range %d+%d exceeds %d indices", mi, si, s.FirstIndex, s.IndexCount, len(b.Indices))
			}
			if !inRange(s.Material, len(b.Materials)) {
				add("mesh %d surface %d: material %d of %d", mi, si, s.Material, len(b.Materials))
			}
		}
	}
	for mi, m := range b.Materials {
		for _, t := range m.textures() {
			if !optional(t, len(b.Textures)) {
				add("material %d: texture %d of %d", mi, t, len(b.Textures))
			}
		}
	}
	for ti, t := range b.Textures {
		if t.Width == 0 || t.Height == 0 || len(t.Regions) == 0 {
			add("texture %d (%s): empty image", ti, t.Label)
			continue
		}
		bpp := uint64(t.Format.BytesPerPixel())
		for _, r := range t.Regions {
			if end := r.Offset + uint64(r.Width)*uint64(r.Height)*bpp; end > uint64(len(t.Pixels)) {
				add("texture %d (%s): mip %d ends at %d past %d bytes", ti, t.Label, r.MipLevel, end, len(t.Pixels))
			}
		}
	}
	for ni, n := range b.Nodes {
		if !optional(n.Parent, len(b.Nodes)) || n.Parent == ni {
			add("node %d (%s): parent %d", ni, n.Name, n.Parent)
		}
		if !optional(n.Mesh, len(b.Meshes)) {
			add("node %d (%s): mesh %d of %d", ni, n.Name, n.Mesh, len(b.Meshes))
		}
		if !optional(n.Light, len(b.Lights)) {
			add("node %d (%s): light %d of %d", ni, n.Name, n.Light, len(b.Lights))
		}
	}
	if len(errs) == 0 {
		if cyc := b.parentCycle(); cyc != None {
			add("node %d (%s): %w", cyc, b.Nodes[cyc].Name, core.ErrCycle)
		}
	}
	return errors.Join(errs...)
}

// parentCycle returns a node on a parent cycle, or None.
func (b *Batch) parentCycle() int {
	const (
		unvisited = iota
		visiting
		done
	)
	state := make([]uint8, len(b.Nodes))
	for start := range b.Nodes {
		var path []int
		i := start
		for i != None && state[i] == unvisited {
			state[i] = visiting
			path = append(path, i)
			i = b.Nodes[i].Parent
		}
		if i != None && state[i] == visiting {
			return i
		}
		for _, p := range path {
			state[p] = done
		}
	}
	return None
}
