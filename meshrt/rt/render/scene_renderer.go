package render

import (
	"errors"
	"fmt"

	"github.com/gekko3d/scenert"
	"github.com/gekko3d/scenert/meshrt/rt/core"
	"github.com/gekko3d/scenert/meshrt/rt/gpu"

	"github.com/go-gl/mathgl/mgl32"
)

var ErrNoResources = errors.New("scene has no uploaded GPU resources")

// SceneRenderer records the draws of one loaded scene. Resources must be the
// aggregate buffers built for Scene.
type SceneRenderer struct {
	Registry  *core.Registry
	Scene     core.SceneHandle
	Resources *gpu.ResourceData
	Collector *core.Collector

	log   scenert.Logger
	stats Stats
}

// Stats describes the last DrawScene call.
type Stats struct {
	Candidates int
	Drawn      int
	Culled     int
	Indices    uint64
}

func NewSceneRenderer(reg *core.Registry, scene core.SceneHandle, res *gpu.ResourceData, logger scenert.Logger) *SceneRenderer {
	return &SceneRenderer{
		Registry:  reg,
		Scene:     scene,
		Resources: res,
		Collector: core.NewCollector(256),
		log:       scenert.Sub(logger, "render"),
	}
}

func (r *SceneRenderer) Stats() Stats { return r.stats }

// Bind switches the renderer to a newly loaded scene.
func (r *SceneRenderer) Bind(scene core.SceneHandle, res *gpu.ResourceData) {
	r.Scene = scene
	r.Resources = res
	r.Collector.Reset()
}

// UpdateNodes recomputes the world matrices of the scene's node tree.
func (r *SceneRenderer) UpdateNodes(root mgl32.Mat4, h core.SceneHandle) error {
	scene, err := r.Registry.Scene(h)
	if err != nil {
		return err
	}
	return r.Registry.Refresh(root, scene)
}

// DrawScene culls the scene against vp and records one indexed draw per visible
// surface, in cull order. The collector is empty afterwards.
func (r *SceneRenderer) DrawScene(cmd gpu.CommandBuffer, h core.SceneHandle, vp mgl32.Mat4) error {
	if r.Resources == nil || r.Resources.IndexBuffer == nil {
		return ErrNoResources
	}
	scene, err := r.Registry.Scene(h)
	if err != nil {
		return err
	}

	dc := gpu.DrawConstants{
		VertexBuffer:   r.Resources.VertexBuffer,
		MaterialBuffer: r.Resources.MaterialBuffer,
		LightBuffer:    r.Resources.LightBuffer,
		NumLights:      uint32(r.Resources.LightCount),
	}
	cmd.BindIndexBuffer(r.Resources.IndexBuffer)

	if err := r.Registry.Cull(scene, vp, r.Collector); err != nil {
		r.Collector.Reset()
		return fmt.Errorf("cull scene %q: %w", scene.Name, err)
	}

	stats := Stats{Candidates: r.candidates(scene), Drawn: r.Collector.Len()}
	err = r.Collector.Drain(func(item *core.Renderable) error {
		mat, err := r.Registry.Material(item.Surface.Material)
		if err != nil {
			return err
		}
		dc.RenderMatrix = item.World
		dc.MaterialIndex = item.MaterialIndex
		dc.BaseColorTexture = mat.GPU().BaseColorTexture
		cmd.SetDrawConstants(dc)
		cmd.DrawIndexed(item.Surface.IndexCount, item.Surface.FirstIndex)
		stats.Indices += uint64(item.Surface.IndexCount)
		return nil
	})
	stats.Culled = stats.Candidates - stats.Drawn
	r.stats = stats
	return err
}

func (r *SceneRenderer) candidates(scene *core.Scene) int {
	n := 0
	for _, h := range scene.Renderable {
		node, err := r.Registry.Node(h)
		if err != nil {
			continue
		}
		if mesh, err := r.Registry.Mesh(node.Mesh); err == nil {
			n += len(mesh.Surfaces)
		}
	}
	return n
}

// UpdateLightBuffer re-packs the bound scene's lights and rewrites the light
// buffer. Call it between frames after editing lights.
func (r *SceneRenderer) UpdateLightBuffer() error {
	if r.Resources == nil {
		return ErrNoResources
	}
	scene, err := r.Registry.Scene(r.Scene)
	if err != nil {
		return err
	}
	if len(scene.Lights) == 0 {
		return nil
	}
	lights := r.Registry.LightData(scene.Lights)
	if err := r.Resources.UploadLights(lights); err != nil {
		return fmt.Errorf("update lights: %w", err)
	}
	r.log.Debugf("light buffer updated (%d lights)", len(lights))
	return nil
}

// WriteTextures binds each scene texture at its handle index, all with the scene's
// first sampler.
func (r *SceneRenderer) WriteTextures(b gpu.Binder, h core.SceneHandle) error {
	scene, err := r.Registry.Scene(h)
	if err != nil {
		return err
	}
	if len(scene.Textures) == 0 {
		return nil
	}
	if len(scene.Samplers) == 0 {
		return fmt.Errorf("scene %q has textures but no sampler", scene.Name)
	}
	smp, err := r.Registry.Sampler(scene.Samplers[0])
	if err != nil {
		return fmt.Errorf("sampler 0: %w", err)
	}
	for _, th := range scene.Textures {
		tex, err := r.Registry.Texture(th)
		if err != nil {
			return err
		}
		if err := b.WriteImage(uint32(th.Index()), tex.Image, smp.Sampler); err != nil {
			return fmt.Errorf("bind texture %q: %w", tex.Label, err)
		}
	}
	return nil
}

// Release frees the bound scene's aggregate buffers, textures and samplers. The
// device must be idle.
func (r *SceneRenderer) Release() error {
	var err error
	if !r.Scene.IsNil() {
		err = r.Registry.RemoveScene(r.Scene)
	}
	if r.Resources != nil {
		r.Resources.Release()
	}
	r.Scene = core.SceneHandle{}
	return err
}
