package core

import (
	"errors"
	"fmt"

	"github.com/gekko3d/scenert/meshrt/rt/gpu"
	"github.com/gekko3d/scenert/meshrt/rt/handle"
)

// Registry owns one pool per entity kind. It is not safe for concurrent use:
// mutate between frames, read during culling and recording.
type Registry struct {
	Scenes    *handle.Pool[Scene]
	Nodes     *handle.Pool[Node]
	Meshes    *handle.Pool[Mesh]
	Materials *handle.Pool[Material]
	Lights    *handle.Pool[Light]
	Samplers  *handle.Pool[Sampler]
	Textures  *handle.Pool[Texture]
}

func NewRegistry() *Registry {
	return &Registry{
		Scenes:    handle.NewPool[Scene](1),
		Nodes:     handle.NewPool[Node](64),
		Meshes:    handle.NewPool[Mesh](32),
		Materials: handle.NewPool[Material](32),
		Lights:    handle.NewPool[Light](8),
		Samplers:  handle.NewPool[Sampler](4),
		Textures:  handle.NewPool[Texture](32),
	}
}

func (r *Registry) Scene(h SceneHandle) (*Scene, error)          { return r.Scenes.Get(h) }
func (r *Registry) Node(h NodeHandle) (*Node, error)             { return r.Nodes.Get(h) }
func (r *Registry) Mesh(h MeshHandle) (*Mesh, error)             { return r.Meshes.Get(h) }
func (r *Registry) Material(h MaterialHandle) (*Material, error) { return r.Materials.Get(h) }
func (r *Registry) Light(h LightHandle) (*Light, error)          { return r.Lights.Get(h) }
func (r *Registry) Sampler(h SamplerHandle) (*Sampler, error)    { return r.Samplers.Get(h) }
func (r *Registry) Texture(h TextureHandle) (*Texture, error)    { return r.Textures.Get(h) }

// MeshTransparent reports whether any surface of the mesh uses a material with
// alpha below 1.
func (r *Registry) MeshTransparent(h MeshHandle) (bool, error) {
	mesh, err := r.Mesh(h)
	if err != nil {
		return false, err
	}
	for _, s := range mesh.Surfaces {
		mat, err := r.Material(s.Material)
		if err != nil {
			return false, fmt.Errorf("surface material: %w", err)
		}
		if mat.Transparent() {
			return true, nil
		}
	}
	return false, nil
}

// MaterialData packs the listed materials at their handle indices, so a surface's
// material index addresses the GPU array directly. Other slots are zeroed.
func (r *Registry) MaterialData(hs []MaterialHandle) []gpu.MaterialData {
	out := make([]gpu.MaterialData, r.Materials.Len())
	for _, h := range hs {
		if m, err := r.Material(h); err == nil {
			out[h.Index()] = m.GPU()
		}
	}
	return out
}

// LightData packs the listed lights at their handle indices. Other slots are
// zero-intensity and contribute nothing.
func (r *Registry) LightData(hs []LightHandle) []gpu.LightData {
	out := make([]gpu.LightData, r.Lights.Len())
	for _, h := range hs {
		if l, err := r.Light(h); err == nil {
			out[h.Index()] = l.GPU()
		}
	}
	return out
}

// RemoveScene frees the scene and every entity it references. Removed textures
// and samplers release their GPU objects, so the device must be idle.
func (r *Registry) RemoveScene(h SceneHandle) error {
	scene, err := r.Scene(h)
	if err != nil {
		return err
	}
	return errors.Join(r.RemoveEntities(scene), r.Scenes.Remove(h))
}

// RemoveEntities frees every entity listed by scene, which need not be registered
// itself. Stale entries are reported but do not stop the sweep.
func (r *Registry) RemoveEntities(scene *Scene) error {
	var errs []error
	for _, n := range scene.Nodes {
		errs = append(errs, r.Nodes.Remove(n))
	}
	for _, m := range scene.Meshes {
		errs = append(errs, r.Meshes.Remove(m))
	}
	for _, m := range scene.Materials {
		errs = append(errs, r.Materials.Remove(m))
	}
	for _, l := range scene.Lights {
		errs = append(errs, r.Lights.Remove(l))
	}
	for _, s := range scene.Samplers {
		if smp, err := r.Sampler(s); err == nil && smp.Sampler != nil {
			smp.Sampler.Release()
		}
		errs = append(errs, r.Samplers.Remove(s))
	}
	for _, t := range scene.Textures {
		if tex, err := r.Texture(t); err == nil && tex.Image != nil {
			tex.Image.Release()
		}
		errs = append(errs, r.Textures.Remove(t))
	}
	return errors.Join(errs...)
}
