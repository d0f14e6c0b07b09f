package core

import (
	"github.com/go-gl/mathgl/mgl32"
)

// Frustum holds the left, right, bottom, top and near planes of a view-projection
// matrix, Ax + By + Cz + D = 0 with the normal pointing inside. There is no far
// plane. Planes are not normalized; only the sign of a distance is used.
type Frustum [5]mgl32.Vec4

func row(vp mgl32.Mat4, r int) mgl32.Vec4 {
	return mgl32.Vec4{vp.At(r, 0), vp.At(r, 1), vp.At(r, 2), vp.At(r, 3)}
}

func ComputeFrustum(vp mgl32.Mat4) Frustum {
	r0, r1, r2, r3 := row(vp, 0), row(vp, 1), row(vp, 2), row(vp, 3)
	return Frustum{
		r3.Add(r0), // left
		r3.Sub(r0), // right
		r3.Add(r1), // bottom
		r3.Sub(r1), // top
		r3.Add(r2), // near
	}
}

func (b AABB) Corners() [8]mgl32.Vec3 {
	lo, hi := b.Min, b.Max
	return [8]mgl32.Vec3{
		{lo[0], lo[1], lo[2]},
		{hi[0], lo[1], lo[2]},
		{lo[0], hi[1], lo[2]},
		{hi[0], hi[1], lo[2]},
		{lo[0], lo[1], hi[2]},
		{hi[0], lo[1], hi[2]},
		{lo[0], hi[1], hi[2]},
		{hi[0], hi[1], hi[2]},
	}
}

// Transform returns the axis-aligned box enclosing the 8 transformed corners.
func (b AABB) Transform(m mgl32.Mat4) AABB {
	corners := b.Corners()
	first := m.Mul4x1(corners[0].Vec4(1)).Vec3()
	out := AABB{Min: first, Max: first}
	for _, c := range corners[1:] {
		p := m.Mul4x1(c.Vec4(1)).Vec3()
		for i := 0; i < 3; i++ {
			out.Min[i] = min(out.Min[i], p[i])
			out.Max[i] = max(out.Max[i], p[i])
		}
	}
	return out
}

// Culls reports whether every corner of box lies strictly outside one plane.
// A corner exactly on a plane counts as inside, and boxes straddling several
// planes without being fully behind any single one are kept.
func (f *Frustum) Culls(box AABB) bool {
	corners := box.Corners()
	for _, p := range f {
		outside := 0
		for _, c := range corners {
			if p.Dot(c.Vec4(1)) < 0 {
				outside++
			}
		}
		if outside == len(corners) {
			return true
		}
	}
	return false
}
