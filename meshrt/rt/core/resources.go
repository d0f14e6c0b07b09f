package core

import (
	"github.com/gekko3d/scenert/meshrt/rt/gpu"
	"github.com/gekko3d/scenert/meshrt/rt/handle"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
)

type (
	NodeHandle     = handle.Handle[Node]
	MeshHandle     = handle.Handle[Mesh]
	MaterialHandle = handle.Handle[Material]
	LightHandle    = handle.Handle[Light]
	SamplerHandle  = handle.Handle[Sampler]
	TextureHandle  = handle.Handle[Texture]
	SceneHandle    = handle.Handle[Scene]
)

type AABB struct {
	Min mgl32.Vec3
	Max mgl32.Vec3
}

// Surface is a drawable range of the scene index buffer sharing one material.
// Bounds are in mesh space.
type Surface struct {
	FirstIndex uint32
	IndexCount uint32
	Bounds     AABB
	Material   MaterialHandle
}

type Mesh struct {
	Name     string
	Surfaces []Surface
}

type Material struct {
	Name             string
	BaseColorFactor  mgl32.Vec4
	MetalnessFactor  float32
	RoughnessFactor  float32
	EmissiveStrength float32

	BaseColor  TextureHandle
	MetalRough TextureHandle
	Normal     TextureHandle
	Occlusion  TextureHandle
	Emissive   TextureHandle
}

func textureIndex(h TextureHandle) uint32 {
	if h.IsNil() {
		return gpu.NoTexture
	}
	return uint32(h.Index())
}

// GPU converts m to its shader layout, replacing texture handles by raw indices.
func (m *Material) GPU() gpu.MaterialData {
	return gpu.MaterialData{
		BaseColorFactor:  m.BaseColorFactor,
		MetalnessFactor:  m.MetalnessFactor,
		RoughnessFactor:  m.RoughnessFactor,
		EmissiveStrength: m.EmissiveStrength,
		BaseColorTexture: textureIndex(m.BaseColor),
		MRTexture:        textureIndex(m.MetalRough),
		NormalTexture:    textureIndex(m.Normal),
		OcclusionTexture: textureIndex(m.Occlusion),
		EmissiveTexture:  textureIndex(m.Emissive),
	}
}

func (m *Material) Transparent() bool {
	return m.BaseColorFactor.W() < 1.0
}

type LightType uint32

const (
	LightDirectional LightType = iota
	LightPoint
	LightSpot
)

type Light struct {
	Type       LightType
	Position   mgl32.Vec3
	Color      mgl32.Vec3
	Intensity  float32
	Range      float32
	InnerAngle float32
	OuterAngle float32
}

func (l *Light) GPU() gpu.LightData {
	return gpu.LightData{
		Position:   l.Position,
		Range:      l.Range,
		Color:      l.Color,
		Intensity:  l.Intensity,
		InnerAngle: l.InnerAngle,
		OuterAngle: l.OuterAngle,
		Type:       uint32(l.Type),
	}
}

type Sampler struct {
	Desc    gpu.SamplerDesc
	Sampler gpu.Sampler
}

type Texture struct {
	Label string
	Image gpu.Image
}

type Node struct {
	Name   string
	Local  mgl32.Mat4
	World  mgl32.Mat4
	Parent NodeHandle
	Mesh   MeshHandle
	Light  LightHandle
	// Transparent is decided once when the scene is built: true when any surface
	// material has alpha below 1. Later material edits do not reclassify the node.
	Transparent bool
	Children    []NodeHandle
}

func NewNode(name string, local mgl32.Mat4) Node {
	return Node{Name: name, Local: local, World: local}
}

// Scene lists the entities one load produced. Node lists are in creation order.
type Scene struct {
	ID   uuid.UUID
	Name string

	Nodes       []NodeHandle
	Roots       []NodeHandle
	Renderable  []NodeHandle
	Opaque      []NodeHandle
	Transparent []NodeHandle
	LightNodes  []NodeHandle

	Meshes    []MeshHandle
	Materials []MaterialHandle
	Samplers  []SamplerHandle
	Textures  []TextureHandle
	Lights    []LightHandle

	// LightNames holds each light's index as a string, for pickers.
	LightNames []string
}
