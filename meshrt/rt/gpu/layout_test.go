package gpu

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func f32At(buf []byte, off int) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(buf[off:]))
}

func TestPackVerticesLayout(t *testing.T) {
	buf := PackVertices([]Vertex{
		{},
		{
			Position: mgl32.Vec3{1, 2, 3},
			UVX:      0.25,
			Normal:   mgl32.Vec3{0, 1, 0},
			UVY:      0.75,
			Color:    mgl32.Vec4{0.1, 0.2, 0.3, 0.4},
		},
	})
	require.Len(t, buf, 2*VertexSize)

	o := VertexSize
	assert.Equal(t, float32(1), f32At(buf, o))
	assert.Equal(t, float32(3), f32At(buf, o+8))
	assert.Equal(t, float32(0.25), f32At(buf, o+12), "uv x packs into the position tail")
	assert.Equal(t, float32(1), f32At(buf, o+20))
	assert.Equal(t, float32(0.75), f32At(buf, o+28), "uv y packs into the normal tail")
	assert.Equal(t, float32(0.4), f32At(buf, o+44))
}

func TestPackMaterialsUsesRawTextureIndices(t *testing.T) {
	buf := PackMaterials([]MaterialData{{
		BaseColorFactor:  mgl32.Vec4{1, 0.5, 0.25, 0.5},
		MetalnessFactor:  0.1,
		RoughnessFactor:  0.9,
		EmissiveStrength: 2,
		BaseColorTexture: 4,
		MRTexture:        NoTexture,
		NormalTexture:    7,
		OcclusionTexture: NoTexture,
		EmissiveTexture:  1,
	}})
	require.Len(t, buf, MaterialSize)
	assert.Equal(t, float32(0.5), f32At(buf, 12))
	assert.Equal(t, float32(0.9), f32At(buf, 20))
	assert.Equal(t, uint32(4), binary.LittleEndian.Uint32(buf[28:]))
	assert.Equal(t, uint32(NoTexture), binary.LittleEndian.Uint32(buf[32:]))
	assert.Equal(t, uint32(7), binary.LittleEndian.Uint32(buf[36:]))
	assert.Equal(t, uint32(1), binary.LittleEndian.Uint32(buf[44:]))
}

func TestPackLightsAndSceneData(t *testing.T) {
	lb := PackLights([]LightData{{
		Position:   mgl32.Vec3{1, 2, 3},
		Range:      10,
		Color:      mgl32.Vec3{1, 1, 0},
		Intensity:  5,
		InnerAngle: 0.2,
		OuterAngle: 0.4,
		Type:       2,
	}})
	require.Len(t, lb, LightSize)
	assert.Equal(t, float32(10), f32At(lb, 12))
	assert.Equal(t, float32(5), f32At(lb, 28))
	assert.Equal(t, float32(0.4), f32At(lb, 36))
	assert.Equal(t, uint32(2), binary.LittleEndian.Uint32(lb[40:]))

	vp := mgl32.Translate3D(4, 5, 6)
	sb := PackSceneData(SceneData{
		View:      mgl32.Ident4(),
		ViewProj:  vp,
		CameraPos: mgl32.Vec3{7, 8, 9},
		NumLights: 3,
	})
	require.Len(t, sb, SceneDataSize)
	assert.Equal(t, float32(4), f32At(sb, 128+12*4), "translation lives in column 3")
	assert.Equal(t, float32(9), f32At(sb, 200))
	assert.Equal(t, uint32(3), binary.LittleEndian.Uint32(sb[224:]))
}

func TestPackDrawDataAppends(t *testing.T) {
	var buf []byte
	buf = PackDrawData(buf, DrawConstants{RenderMatrix: mgl32.Ident4(), MaterialIndex: 2, NumLights: 1, BaseColorTexture: NoTexture})
	buf = PackDrawData(buf, DrawConstants{RenderMatrix: mgl32.Scale3D(2, 2, 2), MaterialIndex: 5})
	require.Len(t, buf, 2*DrawDataSize)
	assert.Equal(t, uint32(2), binary.LittleEndian.Uint32(buf[64:]))
	assert.Equal(t, uint32(NoTexture), binary.LittleEndian.Uint32(buf[72:]))
	assert.Equal(t, float32(2), f32At(buf, DrawDataSize))
	assert.Equal(t, uint32(5), binary.LittleEndian.Uint32(buf[DrawDataSize+64:]))
}

func TestPackIndices(t *testing.T) {
	buf := PackIndices([]uint32{0, 1, 70000})
	require.Len(t, buf, 12)
	assert.Equal(t, uint32(70000), binary.LittleEndian.Uint32(buf[8:]))
}
