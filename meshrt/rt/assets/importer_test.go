package assets

import (
	"testing"

	"github.com/gekko3d/scenert/meshrt/rt/core"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cubeBatch() *Batch {
	b := &Batch{Name: "cubes"}
	g := Cube(2, mgl32.Vec4{1, 1, 1, 1})
	first, count := b.Append(g)
	b.Materials = []MaterialData{{
		Name: "white", BaseColorFactor: mgl32.Vec4{1, 1, 1, 1}, RoughnessFactor: 1,
		BaseColor: None, MetalRough: None, Normal: None, Occlusion: None, Emissive: None,
	}}
	b.Meshes = []MeshData{{Name: "cube", Surfaces: []SurfaceData{{FirstIndex: first, IndexCount: count, Bounds: g.Bounds()}}}}
	b.Nodes = []NodeData{{Name: "root", Local: mgl32.Ident4(), Parent: None, Mesh: 0, Light: None}}
	return b
}

func TestBatchValidate(t *testing.T) {
	require.NoError(t, cubeBatch().Validate())

	tests := []struct {
		name   string
		mutate func(b *Batch)
		want   string
	}{
		{"index past vertices", func(b *Batch) { b.Indices[3] = 999 }, "references vertex 999"},
		{"surface range", func(b *Batch) { b.Meshes[0].Surfaces[0].IndexCount = 100 }, "exceeds 36 indices"},
		{"surface material", func(b *Batch) { b.Meshes[0].Surfaces[0].Material = 4 }, "material 4 of 1"},
		{"material texture", func(b *Batch) { b.Materials[0].Normal = 0 }, "texture 0 of 0"},
		{"node mesh", func(b *Batch) { b.Nodes[0].Mesh = 2 }, "mesh 2 of 1"},
		{"node light", func(b *Batch) { b.Nodes[0].Light = 0 }, "light 0 of 0"},
		{"self parent", func(b *Batch) { b.Nodes[0].Parent = 0 }, "parent 0"},
		{"short pixels", func(b *Batch) {
			b.Textures = []TextureData{FromRGBA("t", solid(4, 4), true)}
			b.Textures[0].Pixels = b.Textures[0].Pixels[:10]
		}, "past 10 bytes"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := cubeBatch()
			tt.mutate(b)
			err := b.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestBatchValidateParentCycle(t *testing.T) {
	b := cubeBatch()
	b.Nodes = []NodeData{
		{Name: "a", Local: mgl32.Ident4(), Parent: 1, Mesh: None, Light: None},
		{Name: "b", Local: mgl32.Ident4(), Parent: 0, Mesh: None, Light: None},
		{Name: "c", Local: mgl32.Ident4(), Parent: None, Mesh: 0, Light: None},
	}
	assert.ErrorIs(t, b.Validate(), core.ErrCycle)

	b.Nodes[1].Parent = 2
	assert.NoError(t, b.Validate())
}
