package assets

import (
	"fmt"

	"github.com/gekko3d/scenert/meshrt/rt/core"
	"github.com/gekko3d/scenert/meshrt/rt/gpu"

	"github.com/go-gl/mathgl/mgl32"
)

// Geometry is an indexed triangle list with indices relative to Vertices.
type Geometry struct {
	Vertices []gpu.Vertex
	Indices  []uint32
}

func (g *Geometry) vertex(p, n mgl32.Vec3, u, v float32, color mgl32.Vec4) uint32 {
	g.Vertices = append(g.Vertices, gpu.Vertex{Position: p, Normal: n, UVX: u, UVY: v, Color: color})
	return uint32(len(g.Vertices) - 1)
}

// quad appends a, b, c, d in counter-clockwise order seen from the normal side.
func (g *Geometry) quad(a, b, c, d, n mgl32.Vec3, color mgl32.Vec4) {
	i0 := g.vertex(a, n, 0, 1, color)
	i1 := g.vertex(b, n, 1, 1, color)
	i2 := g.vertex(c, n, 1, 0, color)
	i3 := g.vertex(d, n, 0, 0, color)
	g.Indices = append(g.Indices, i0, i1, i2, i2, i3, i0)
}

func (g *Geometry) tri(a, b, c mgl32.Vec3, color mgl32.Vec4) {
	n := b.Sub(a).Cross(c.Sub(a)).Normalize()
	i0 := g.vertex(a, n, 0, 1, color)
	i1 := g.vertex(b, n, 1, 1, color)
	i2 := g.vertex(c, n, 0.5, 0, color)
	g.Indices = append(g.Indices, i0, i1, i2)
}

// Bounds is the mesh-space box around every vertex.
func (g *Geometry) Bounds() core.AABB {
	if len(g.Vertices) == 0 {
		return core.AABB{}
	}
	box := core.AABB{Min: g.Vertices[0].Position, Max: g.Vertices[0].Position}
	for _, v := range g.Vertices[1:] {
		for i := 0; i < 3; i++ {
			box.Min[i] = min(box.Min[i], v.Position[i])
			box.Max[i] = max(box.Max[i], v.Position[i])
		}
	}
	return box
}

// Cube is an axis-aligned cube of edge size centred on the origin, 4 vertices per
// face so normals stay flat.
func Cube(size float32, color mgl32.Vec4) Geometry {
	h := size / 2
	var g Geometry
	g.quad(mgl32.Vec3{-h, -h, h}, mgl32.Vec3{h, -h, h}, mgl32.Vec3{h, h, h}, mgl32.Vec3{-h, h, h}, mgl32.Vec3{0, 0, 1}, color)
	g.quad(mgl32.Vec3{h, -h, -h}, mgl32.Vec3{-h, -h, -h}, mgl32.Vec3{-h, h, -h}, mgl32.Vec3{h, h, -h}, mgl32.Vec3{0, 0, -1}, color)
	g.quad(mgl32.Vec3{h, -h, h}, mgl32.Vec3{h, -h, -h}, mgl32.Vec3{h, h, -h}, mgl32.Vec3{h, h, h}, mgl32.Vec3{1, 0, 0}, color)
	g.quad(mgl32.Vec3{-h, -h, -h}, mgl32.Vec3{-h, -h, h}, mgl32.Vec3{-h, h, h}, mgl32.Vec3{-h, h, -h}, mgl32.Vec3{-1, 0, 0}, color)
	g.quad(mgl32.Vec3{-h, h, h}, mgl32.Vec3{h, h, h}, mgl32.Vec3{h, h, -h}, mgl32.Vec3{-h, h, -h}, mgl32.Vec3{0, 1, 0}, color)
	g.quad(mgl32.Vec3{-h, -h, -h}, mgl32.Vec3{h, -h, -h}, mgl32.Vec3{h, -h, h}, mgl32.Vec3{-h, -h, h}, mgl32.Vec3{0, -1, 0}, color)
	return g
}

// Plane is a size x size square in the XZ plane facing +Y.
func Plane(size float32, color mgl32.Vec4) Geometry {
	h := size / 2
	var g Geometry
	g.quad(mgl32.Vec3{-h, 0, h}, mgl32.Vec3{h, 0, h}, mgl32.Vec3{h, 0, -h}, mgl32.Vec3{-h, 0, -h}, mgl32.Vec3{0, 1, 0}, color)
	return g
}

// Pyramid has a size x size base on y=0 and its apex at y=height.
func Pyramid(size, height float32, color mgl32.Vec4) Geometry {
	h := size / 2
	var g Geometry
	g.quad(mgl32.Vec3{-h, 0, -h}, mgl32.Vec3{h, 0, -h}, mgl32.Vec3{h, 0, h}, mgl32.Vec3{-h, 0, h}, mgl32.Vec3{0, -1, 0}, color)

	apex := mgl32.Vec3{0, height, 0}
	base := [4]mgl32.Vec3{{-h, 0, h}, {h, 0, h}, {h, 0, -h}, {-h, 0, -h}}
	for i := range base {
		g.tri(base[i], base[(i+1)%4], apex, color)
	}
	return g
}

// Primitive builds a named procedural shape.
func Primitive(kind string, size, height float32, color mgl32.Vec4) (Geometry, error) {
	if size <= 0 {
		size = 1
	}
	if height <= 0 {
		height = size
	}
	switch kind {
	case "cube":
		return Cube(size, color), nil
	case "plane":
		return Plane(size, color), nil
	case "pyramid":
		return Pyramid(size, height, color), nil
	}
	return Geometry{}, fmt.Errorf("unknown primitive %q", kind)
}

// Append adds g to the batch's shared arrays and returns the index range it
// occupies.
func (b *Batch) Append(g Geometry) (firstIndex, indexCount uint32) {
	base := uint32(len(b.Vertices))
	firstIndex = uint32(len(b.Indices))
	b.Vertices = append(b.Vertices, g.Vertices...)
	for _, i := range g.Indices {
		b.Indices = append(b.Indices, base+i)
	}
	return firstIndex, uint32(len(g.Indices))
}
