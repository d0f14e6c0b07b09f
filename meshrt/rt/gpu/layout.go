package gpu

import (
	"encoding/binary"
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// LayoutVersion must be bumped whenever one of the packed structs below changes;
// the WGSL in meshrt/rt/shaders mirrors them.
const LayoutVersion = 1

const (
	VertexSize    = 48
	MaterialSize  = 48
	LightSize     = 48
	SceneDataSize = 256
	DrawDataSize  = 80
)

// NoTexture marks an absent texture slot in MaterialData and DrawConstants.
const NoTexture = math.MaxUint32

type Vertex struct {
	Position mgl32.Vec3
	UVX      float32
	Normal   mgl32.Vec3
	UVY      float32
	Color    mgl32.Vec4
}

// MaterialData is the shader view of a material: texture references are raw
// texture indices instead of handles.
type MaterialData struct {
	BaseColorFactor  mgl32.Vec4
	MetalnessFactor  float32
	RoughnessFactor  float32
	EmissiveStrength float32
	BaseColorTexture uint32
	MRTexture        uint32
	NormalTexture    uint32
	OcclusionTexture uint32
	EmissiveTexture  uint32
}

type LightData struct {
	Position   mgl32.Vec3
	Range      float32
	Color      mgl32.Vec3
	Intensity  float32
	InnerAngle float32
	OuterAngle float32
	Type       uint32
}

type SceneData struct {
	View         mgl32.Mat4
	Proj         mgl32.Mat4
	ViewProj     mgl32.Mat4
	CameraPos    mgl32.Vec3
	AmbientColor mgl32.Vec3
	NumLights    uint32
}

// DrawConstants are the per-draw values a command buffer hands to the shaders.
type DrawConstants struct {
	RenderMatrix     mgl32.Mat4
	VertexBuffer     Buffer
	MaterialBuffer   Buffer
	LightBuffer      Buffer
	MaterialIndex    uint32
	NumLights        uint32
	BaseColorTexture uint32
}

func putF32(buf []byte, off int, v float32) {
	binary.LittleEndian.PutUint32(buf[off:], math.Float32bits(v))
}

func putU32(buf []byte, off int, v uint32) {
	binary.LittleEndian.PutUint32(buf[off:], v)
}

func putVec3(buf []byte, off int, v mgl32.Vec3) {
	for i := 0; i < 3; i++ {
		putF32(buf, off+i*4, v[i])
	}
}

func putVec4(buf []byte, off int, v mgl32.Vec4) {
	for i := 0; i < 4; i++ {
		putF32(buf, off+i*4, v[i])
	}
}

// putMat4 writes m column-major, matching mgl32 and WGSL.
func putMat4(buf []byte, off int, m mgl32.Mat4) {
	for i, v := range m {
		putF32(buf, off+i*4, v)
	}
}

func PackVertices(vs []Vertex) []byte {
	buf := make([]byte, len(vs)*VertexSize)
	for i, v := range vs {
		o := i * VertexSize
		putVec3(buf, o, v.Position)
		putF32(buf, o+12, v.UVX)
		putVec3(buf, o+16, v.Normal)
		putF32(buf, o+28, v.UVY)
		putVec4(buf, o+32, v.Color)
	}
	return buf
}

func PackIndices(indices []uint32) []byte {
	buf := make([]byte, len(indices)*4)
	for i, idx := range indices {
		putU32(buf, i*4, idx)
	}
	return buf
}

func PackMaterials(ms []MaterialData) []byte {
	buf := make([]byte, len(ms)*MaterialSize)
	for i, m := range ms {
		o := i * MaterialSize
		putVec4(buf, o, m.BaseColorFactor)
		putF32(buf, o+16, m.MetalnessFactor)
		putF32(buf, o+20, m.RoughnessFactor)
		putF32(buf, o+24, m.EmissiveStrength)
		putU32(buf, o+28, m.BaseColorTexture)
		putU32(buf, o+32, m.MRTexture)
		putU32(buf, o+36, m.NormalTexture)
		putU32(buf, o+40, m.OcclusionTexture)
		putU32(buf, o+44, m.EmissiveTexture)
	}
	return buf
}

func PackLights(ls []LightData) []byte {
	buf := make([]byte, len(ls)*LightSize)
	for i, l := range ls {
		o := i * LightSize
		putVec3(buf, o, l.Position)
		putF32(buf, o+12, l.Range)
		putVec3(buf, o+16, l.Color)
		putF32(buf, o+28, l.Intensity)
		putF32(buf, o+32, l.InnerAngle)
		putF32(buf, o+36, l.OuterAngle)
		putU32(buf, o+40, l.Type)
	}
	return buf
}

func PackSceneData(s SceneData) []byte {
	// view 0, proj 64, view_proj 128, cam_pos 192, ambient 208, num_lights 224
	buf := make([]byte, SceneDataSize)
	putMat4(buf, 0, s.View)
	putMat4(buf, 64, s.Proj)
	putMat4(buf, 128, s.ViewProj)
	putVec3(buf, 192, s.CameraPos)
	putVec3(buf, 208, s.AmbientColor)
	putU32(buf, 224, s.NumLights)
	return buf
}

// PackDrawData appends one draw record (model matrix, material index, light count,
// base color texture) to dst.
func PackDrawData(dst []byte, c DrawConstants) []byte {
	var rec [DrawDataSize]byte
	putMat4(rec[:], 0, c.RenderMatrix)
	putU32(rec[:], 64, c.MaterialIndex)
	putU32(rec[:], 68, c.NumLights)
	putU32(rec[:], 72, c.BaseColorTexture)
	return append(dst, rec[:]...)
}
