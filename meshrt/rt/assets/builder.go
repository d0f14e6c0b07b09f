package assets

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/gekko3d/scenert"
	"github.com/gekko3d/scenert/meshrt/rt/core"
	"github.com/gekko3d/scenert/meshrt/rt/gpu"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
)

// Builder turns importer batches into registry entities and GPU resources. It
// keeps the most recently loaded scene and swaps it out only once a replacement
// is fully built.
type Builder struct {
	reg *core.Registry
	dev gpu.Device
	log scenert.Logger

	current   core.SceneHandle
	resources *gpu.ResourceData
}

func NewBuilder(reg *core.Registry, dev gpu.Device, logger scenert.Logger) *Builder {
	return &Builder{reg: reg, dev: dev, log: scenert.Sub(logger, "assets")}
}

// Current returns the loaded scene and its aggregate buffers, or a nil handle
// before the first successful Load.
func (b *Builder) Current() (core.SceneHandle, *gpu.ResourceData) {
	return b.current, b.resources
}

func loadErr(step string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrAssetLoad, step, err)
}

// Load imports, validates and uploads a scene. On success the previous scene's
// entities are removed (stale handles to them stop resolving) and its GPU
// resources released after the device goes idle. Any failure returns
// ErrAssetLoad and leaves the previous scene as it was.
func (b *Builder) Load(ctx context.Context, imp Importer) (core.SceneHandle, error) {
	start := time.Now()
	batch, err := imp.Import(ctx)
	if err != nil {
		return core.SceneHandle{}, loadErr("import", err)
	}
	if err := batch.Validate(); err != nil {
		return core.SceneHandle{}, loadErr("validate", err)
	}

	scene := &core.Scene{ID: uuid.New(), Name: batch.Name}
	if scene.Name == "" {
		scene.Name = "scene-" + scene.ID.String()[:8]
	}
	res := gpu.NewResourceData(b.dev, scene.Name)

	h, err := b.build(batch, scene, res)
	if err != nil {
		res.Release()
		if rmErr := b.reg.RemoveEntities(scene); rmErr != nil {
			b.log.Warnf("rollback of %q: %v", scene.Name, rmErr)
		}
		return core.SceneHandle{}, loadErr(scene.Name, err)
	}

	if !b.current.IsNil() {
		if err := b.dev.WaitIdle(); err != nil {
			b.log.Errorf("wait idle before releasing previous scene: %v", err)
		}
		if err := b.reg.RemoveScene(b.current); err != nil {
			b.log.Warnf("remove previous scene: %v", err)
		}
		b.resources.Release()
	}
	b.current, b.resources = h, res

	b.log.Infof("loaded %q: %d nodes (%d opaque, %d transparent), %d meshes, %d materials, %d textures, %d lights in %v",
		scene.Name, len(scene.Nodes), len(scene.Opaque), len(scene.Transparent), len(scene.Meshes),
		len(scene.Materials), len(scene.Textures), len(scene.Lights), time.Since(start))
	return h, nil
}

// build registers every batch entity, recording each handle in scene as soon as
// it exists so a failure can be rolled back with RemoveEntities.
func (b *Builder) build(batch *Batch, scene *core.Scene, res *gpu.ResourceData) (core.SceneHandle, error) {
	if err := b.createSamplers(batch, scene); err != nil {
		return core.SceneHandle{}, err
	}
	if err := b.createTextures(batch, scene); err != nil {
		return core.SceneHandle{}, err
	}

	for _, m := range batch.Materials {
		tex := func(i int) core.TextureHandle {
			if i == None {
				return core.TextureHandle{}
			}
			return scene.Textures[i]
		}
		h, err := b.reg.Materials.Add(core.Material{
			Name:             m.Name,
			BaseColorFactor:  m.BaseColorFactor,
			MetalnessFactor:  m.MetalnessFactor,
			RoughnessFactor:  m.RoughnessFactor,
			EmissiveStrength: m.EmissiveStrength,
			BaseColor:        tex(m.BaseColor),
			MetalRough:       tex(m.MetalRough),
			Normal:           tex(m.Normal),
			Occlusion:        tex(m.Occlusion),
			Emissive:         tex(m.Emissive),
		})
		if err != nil {
			return core.SceneHandle{}, fmt.Errorf("material %q: %w", m.Name, err)
		}
		scene.Materials = append(scene.Materials, h)
	}

	for i, l := range batch.Lights {
		h, err := b.reg.Lights.Add(l)
		if err != nil {
			return core.SceneHandle{}, fmt.Errorf("light %d: %w", i, err)
		}
		scene.Lights = append(scene.Lights, h)
		scene.LightNames = append(scene.LightNames, strconv.Itoa(i))
	}

	for _, m := range batch.Meshes {
		mesh := core.Mesh{Name: m.Name}
		for _, s := range m.Surfaces {
			mesh.Surfaces = append(mesh.Surfaces, core.Surface{
				FirstIndex: s.FirstIndex,
				IndexCount: s.IndexCount,
				Bounds:     s.Bounds,
				Material:   scene.Materials[s.Material],
			})
		}
		h, err := b.reg.Meshes.Add(mesh)
		if err != nil {
			return core.SceneHandle{}, fmt.Errorf("mesh %q: %w", m.Name, err)
		}
		scene.Meshes = append(scene.Meshes, h)
	}

	if err := b.createNodes(batch, scene); err != nil {
		return core.SceneHandle{}, err
	}
	if err := b.reg.Refresh(mgl32.Ident4(), scene); err != nil {
		return core.SceneHandle{}, fmt.Errorf("refresh: %w", err)
	}

	if err := res.UploadGeometry(batch.Vertices, batch.Indices); err != nil {
		return core.SceneHandle{}, err
	}
	if err := res.UploadMaterials(b.reg.MaterialData(scene.Materials)); err != nil {
		return core.SceneHandle{}, err
	}
	if err := res.UploadLights(b.reg.LightData(scene.Lights)); err != nil {
		return core.SceneHandle{}, err
	}
	if err := b.dev.SubmitUpload(); err != nil {
		return core.SceneHandle{}, fmt.Errorf("upload: %w", err)
	}

	h, err := b.reg.Scenes.Add(*scene)
	if err != nil {
		return core.SceneHandle{}, fmt.Errorf("scene: %w", err)
	}
	return h, nil
}

// defaultSampler backs texture bindings when the batch declares no sampler.
var defaultSampler = gpu.SamplerDesc{Label: "default", MagFilter: gpu.FilterLinear, MinFilter: gpu.FilterLinear, Mipmap: gpu.MipmapLinear}

func (b *Builder) createSamplers(batch *Batch, scene *core.Scene) error {
	descs := batch.Samplers
	if len(descs) == 0 {
		descs = []gpu.SamplerDesc{defaultSampler}
	}
	for _, d := range descs {
		s, err := b.dev.CreateSampler(d)
		if err != nil {
			return fmt.Errorf("sampler %q: %w", d.Label, err)
		}
		h, err := b.reg.Samplers.Add(core.Sampler{Desc: d, Sampler: s})
		if err != nil {
			s.Release()
			return fmt.Errorf("sampler %q: %w", d.Label, err)
		}
		scene.Samplers = append(scene.Samplers, h)
	}
	return nil
}

func (b *Builder) createTextures(batch *Batch, scene *core.Scene) error {
	for _, t := range batch.Textures {
		img, err := b.dev.CreateImage(gpu.ImageDesc{
			Label:     t.Label,
			Width:     t.Width,
			Height:    t.Height,
			Format:    t.Format,
			Usage:     gpu.ImageUsageSampled | gpu.ImageUsageCopyDst,
			MipLevels: uint32(len(t.Regions)),
		})
		if err != nil {
			return fmt.Errorf("texture %q: %w", t.Label, err)
		}
		h, err := b.reg.Textures.Add(core.Texture{Label: t.Label, Image: img})
		if err != nil {
			img.Release()
			return fmt.Errorf("texture %q: %w", t.Label, err)
		}
		scene.Textures = append(scene.Textures, h)

		bpp := uint64(t.Format.BytesPerPixel())
		for _, r := range t.Regions {
			end := r.Offset + uint64(r.Width)*uint64(r.Height)*bpp
			if err := b.dev.WriteImage(img, r, t.Pixels[r.Offset:end]); err != nil {
				return fmt.Errorf("texture %q mip %d: %w", t.Label, r.MipLevel, err)
			}
		}
	}
	return nil
}

// createNodes adds every node, then links parents and children and classifies
// mesh nodes as opaque or transparent. Classification is not revisited when a
// material changes later.
func (b *Builder) createNodes(batch *Batch, scene *core.Scene) error {
	for _, n := range batch.Nodes {
		node := core.NewNode(n.Name, n.Local)
		if n.Mesh != None {
			node.Mesh = scene.Meshes[n.Mesh]
		}
		if n.Light != None {
			node.Light = scene.Lights[n.Light]
		}
		h, err := b.reg.Nodes.Add(node)
		if err != nil {
			return fmt.Errorf("node %q: %w", n.Name, err)
		}
		scene.Nodes = append(scene.Nodes, h)
	}

	for i, n := range batch.Nodes {
		h := scene.Nodes[i]
		if n.Parent == None {
			scene.Roots = append(scene.Roots, h)
		} else if err := b.reg.AttachChild(scene.Nodes[n.Parent], h); err != nil {
			return fmt.Errorf("node %q: %w", n.Name, err)
		}

		if n.Light != None {
			scene.LightNodes = append(scene.LightNodes, h)
		}
		if n.Mesh == None {
			continue
		}
		transparent, err := b.reg.MeshTransparent(scene.Meshes[n.Mesh])
		if err != nil {
			return fmt.Errorf("node %q: %w", n.Name, err)
		}
		node, err := b.reg.Node(h)
		if err != nil {
			return err
		}
		node.Transparent = transparent
		scene.Renderable = append(scene.Renderable, h)
		if transparent {
			scene.Transparent = append(scene.Transparent, h)
		} else {
			scene.Opaque = append(scene.Opaque, h)
		}
	}
	return nil
}

// Close waits for the device and releases the current scene.
func (b *Builder) Close() error {
	if b.current.IsNil() {
		return nil
	}
	errs := []error{b.dev.WaitIdle(), b.reg.RemoveScene(b.current)}
	b.resources.Release()
	b.current, b.resources = core.SceneHandle{}, nil
	return errors.Join(errs...)
}
