package core

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
)

// Cull appends every visible surface of the scene's renderable nodes to out, in
// node order then surface order. World matrices must be current (see Refresh).
func (r *Registry) Cull(scene *Scene, vp mgl32.Mat4, out *Collector) error {
	frustum := ComputeFrustum(vp)
	for _, nh := range scene.Renderable {
		node, err := r.Node(nh)
		if err != nil {
			return err
		}
		mesh, err := r.Mesh(node.Mesh)
		if err != nil {
			return fmt.Errorf("mesh of node %q: %w", node.Name, err)
		}
		for _, s := range mesh.Surfaces {
			if frustum.Culls(s.Bounds.Transform(node.World)) {
				continue
			}
			if _, err := r.Material(s.Material); err != nil {
				return fmt.Errorf("material of mesh %q: %w", mesh.Name, err)
			}
			out.Append(Renderable{
				Node:          nh,
				Surface:       s,
				World:         node.World,
				MaterialIndex: uint32(s.Material.Index()),
				Transparent:   node.Transparent,
			})
		}
	}
	return nil
}
