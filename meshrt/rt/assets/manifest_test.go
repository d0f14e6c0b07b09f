package assets

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/gekko3d/scenert/meshrt/rt/core"
	"github.com/gekko3d/scenert/meshrt/rt/gpu"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testManifest = `
name: courtyard
samplers:
  - mag: nearest
    min: linear_mipmap_linear
textures:
  - path: textures/brick.png
materials:
  - name: brick
    base_color_texture: 0
  - name: glass
    base_color: [0.6, 0.8, 1.0, 0.4]
    roughness: 0.1
meshes:
  - name: ground
    surfaces:
      - primitive: plane
        size: 20
        material: 0
  - name: window
    surfaces:
      - primitive: cube
        size: 1
        material: 1
lights:
  - type: point
    position: [0, 4, 0]
    color: [1, 0.9, 0.8]
    intensity: 3
    range: 12
nodes:
  - name: ground
    mesh: 0
  - name: window
    parent: 0
    mesh: 1
    translation: [0, 1, -2]
    rotation: [0, 90, 0]
  - name: lamp
    light: 0
`

func TestManifestBatch(t *testing.T) {
	m, err := ParseManifest([]byte(testManifest))
	require.NoError(t, err)
	b, err := m.Batch()
	require.NoError(t, err)

	assert.Equal(t, "courtyard", b.Name)
	require.Len(t, b.Samplers, 1)
	assert.Equal(t, gpu.FilterNearest, b.Samplers[0].MagFilter)
	assert.Equal(t, gpu.FilterLinear, b.Samplers[0].MinFilter)
	assert.Equal(t, gpu.MipmapLinear, b.Samplers[0].Mipmap)

	require.Len(t, b.Materials, 2)
	assert.Equal(t, mgl32.Vec4{1, 1, 1, 1}, b.Materials[0].BaseColorFactor, "missing color defaults to white")
	assert.Equal(t, float32(1), b.Materials[0].RoughnessFactor)
	assert.Equal(t, 0, b.Materials[0].BaseColor)
	assert.Equal(t, None, b.Materials[0].Normal)
	assert.Equal(t, float32(0.4), b.Materials[1].BaseColorFactor.W())

	require.Len(t, b.Meshes, 2)
	assert.Equal(t, uint32(6), b.Meshes[1].Surfaces[0].FirstIndex, "cube follows the plane in the shared index array")
	assert.Len(t, b.Indices, 6+36)

	require.Len(t, b.Lights, 1)
	assert.Equal(t, core.LightPoint, b.Lights[0].Type)

	require.Len(t, b.Nodes, 3)
	assert.Equal(t, None, b.Nodes[0].Parent)
	assert.Equal(t, 0, b.Nodes[1].Parent)
	assert.Equal(t, None, b.Nodes[2].Mesh)
	assert.Equal(t, 0, b.Nodes[2].Light)

	p := b.Nodes[1].Local.Mul4x1(mgl32.Vec4{1, 0, 0, 1})
	assert.InDelta(t, 0, p.X(), 1e-5)
	assert.InDelta(t, 1, p.Y(), 1e-5)
	assert.InDelta(t, -3, p.Z(), 1e-5, "a 90 degree yaw turns +X into -Z")
}

func TestManifestBatchRejectsUnknownNames(t *testing.T) {
	m := &Manifest{
		Samplers: []ManifestSampler{{Mag: "cubic"}},
		Meshes:   []ManifestMesh{{Surfaces: []ManifestSurface{{Primitive: "teapot"}}}},
		Lights:   []ManifestLight{{Type: "area"}},
	}
	_, err := m.Batch()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown filter "cubic"`)
	assert.Contains(t, err.Error(), `unknown primitive "teapot"`)
	assert.Contains(t, err.Error(), `unknown type "area"`)
}

func TestParseManifestRejectsBadYAML(t *testing.T) {
	_, err := ParseManifest([]byte("nodes: [this is: broken"))
	assert.Error(t, err)
}

func writeManifest(t *testing.T, dir, body string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "textures"), 0o755))
	writePNG(t, filepath.Join(dir, "textures", "brick.png"), 4, 4)
	path := filepath.Join(dir, "courtyard.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestManifestImporterResolvesTextures(t *testing.T) {
	path := writeManifest(t, t.TempDir(), testManifest)

	for _, dec := range []*TextureDecoder{nil, NewTextureDecoder(2, nil)} {
		imp := &ManifestImporter{Path: path, Decoder: dec}
		b, err := imp.Import(context.Background())
		require.NoError(t, err)
		require.Len(t, b.Textures, 1)
		assert.Equal(t, "brick.png", b.Textures[0].Label)
		assert.Len(t, b.Textures[0].Regions, 3)
		assert.NoError(t, b.Validate())
		if dec != nil {
			dec.Close()
		}
	}
}

func TestManifestImporterMissingTexture(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scene.yaml")
	require.NoError(t, os.WriteFile(path, []byte("textures:\n  - path: nowhere.png\n"), 0o644))

	_, err := (&ManifestImporter{Path: path}).Import(context.Background())
	assert.ErrorIs(t, err, os.ErrNotExist)
}
