package webgpu

import (
	"fmt"

	"github.com/gekko3d/scenert/meshrt/rt/gpu"

	"github.com/cogentcore/webgpu/wgpu"
)

// MaxDraws bounds the per-frame draw records; draws past it are dropped.
const MaxDraws = 16384

// MeshPipeline is the single forward pipeline: vertices are pulled from a storage
// buffer, each draw reads its record through instance_index.
//
//	group 0: scene uniform, vertices, materials, lights, draw records
//	group 1: base color texture, sampler
type MeshPipeline struct {
	dev *Device

	Pipeline      *wgpu.RenderPipeline
	sceneLayout   *wgpu.BindGroupLayout
	textureLayout *wgpu.BindGroupLayout

	white        *Image
	whiteSampler *Sampler
	fallback     *wgpu.BindGroup
	textures     map[uint32]*wgpu.BindGroup
}

var _ gpu.Binder = (*MeshPipeline)(nil)

func storageEntry(binding uint32) wgpu.BindGroupLayoutEntry {
	return wgpu.BindGroupLayoutEntry{
		Binding:    binding,
		Visibility: wgpu.ShaderStageVertex | wgpu.ShaderStageFragment,
		Buffer:     wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeReadOnlyStorage},
	}
}

// NewMeshPipeline compiles shader and builds the pipeline for color targets of
// colorFormat with a Depth32Float depth attachment.
func NewMeshPipeline(dev *Device, shader string, colorFormat gpu.Format) (*MeshPipeline, error) {
	p := &MeshPipeline{dev: dev, textures: map[uint32]*wgpu.BindGroup{}}
	d := dev.Device

	module, err := d.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          "mesh",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: shader},
	})
	if err != nil {
		return nil, fmt.Errorf("mesh shader: %w", err)
	}
	defer module.Release()

	p.sceneLayout, err = d.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label: "mesh/scene",
		Entries: []wgpu.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: wgpu.ShaderStageVertex | wgpu.ShaderStageFragment,
				Buffer:     wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeUniform},
			},
			storageEntry(1),
			storageEntry(2),
			storageEntry(3),
			storageEntry(4),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("scene layout: %w", err)
	}
	p.textureLayout, err = d.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label: "mesh/texture",
		Entries: []wgpu.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: wgpu.ShaderStageFragment,
				Texture: wgpu.TextureBindingLayout{
					SampleType:    wgpu.TextureSampleTypeFloat,
					ViewDimension: wgpu.TextureViewDimension2D,
				},
			},
			{
				Binding:    1,
				Visibility: wgpu.ShaderStageFragment,
				Sampler:    wgpu.SamplerBindingLayout{Type: wgpu.SamplerBindingTypeFiltering},
			},
		},
	})
	if err != nil {
		p.Release()
		return nil, fmt.Errorf("texture layout: %w", err)
	}

	layout, err := d.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            "mesh",
		BindGroupLayouts: []*wgpu.BindGroupLayout{p.sceneLayout, p.textureLayout},
	})
	if err != nil {
		p.Release()
		return nil, fmt.Errorf("pipeline layout: %w", err)
	}
	defer layout.Release()

	p.Pipeline, err = d.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  "mesh",
		Layout: layout,
		Vertex: wgpu.VertexState{
			Module:     module,
			EntryPoint: "vs_main",
		},
		Fragment: &wgpu.FragmentState{
			Module:     module,
			EntryPoint: "fs_main",
			Targets: []wgpu.ColorTargetState{{
				Format: textureFormat(colorFormat),
				Blend: &wgpu.BlendState{
					Color: wgpu.BlendComponent{
						SrcFactor: wgpu.BlendFactorSrcAlpha,
						DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
						Operation: wgpu.BlendOperationAdd,
					},
					Alpha: wgpu.BlendComponent{
						SrcFactor: wgpu.BlendFactorOne,
						DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
						Operation: wgpu.BlendOperationAdd,
					},
				},
				WriteMask: wgpu.ColorWriteMaskAll,
			}},
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  wgpu.PrimitiveTopologyTriangleList,
			FrontFace: wgpu.FrontFaceCCW,
			CullMode:  wgpu.CullModeBack,
		},
		DepthStencil: &wgpu.DepthStencilState{
			Format:            wgpu.TextureFormatDepth32Float,
			DepthWriteEnabled: true,
			DepthCompare:      wgpu.CompareFunctionLess,
			StencilFront:      wgpu.StencilFaceState{Compare: wgpu.CompareFunctionAlways},
			StencilBack:       wgpu.StencilFaceState{Compare: wgpu.CompareFunctionAlways},
		},
		Multisample: wgpu.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		p.Release()
		return nil, fmt.Errorf("render pipeline: %w", err)
	}

	if err := p.createFallback(); err != nil {
		p.Release()
		return nil, err
	}
	return p, nil
}

// createFallback binds a 1x1 white texture for draws without a base color texture.
func (p *MeshPipeline) createFallback() error {
	img, err := p.dev.CreateImage(gpu.ImageDesc{
		Label:     "white",
		Width:     1,
		Height:    1,
		Format:    gpu.FormatRGBA8Unorm,
		Usage:     gpu.ImageUsageSampled | gpu.ImageUsageCopyDst,
		MipLevels: 1,
	})
	if err != nil {
		return err
	}
	p.white = img.(*Image)
	if err := p.dev.WriteImage(img, gpu.CopyRegion{Width: 1, Height: 1}, []byte{255, 255, 255, 255}); err != nil {
		return err
	}
	smp, err := p.dev.CreateSampler(gpu.SamplerDesc{Label: "white"})
	if err != nil {
		return err
	}
	p.whiteSampler = smp.(*Sampler)
	p.fallback, err = p.textureGroup(p.white, p.whiteSampler)
	return err
}

func (p *MeshPipeline) textureGroup(img *Image, smp *Sampler) (*wgpu.BindGroup, error) {
	return p.dev.Device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  img.desc.Label,
		Layout: p.textureLayout,
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, TextureView: img.view},
			{Binding: 1, Sampler: smp.s},
		},
	})
}

// WriteImage binds img and sampler at slot, replacing any earlier binding.
func (p *MeshPipeline) WriteImage(slot uint32, img gpu.Image, sampler gpu.Sampler) error {
	i, ok := img.(*Image)
	if !ok || i.view == nil {
		return errForeignImage
	}
	s, ok := sampler.(*Sampler)
	if !ok || s.s == nil {
		return fmt.Errorf("sampler for slot %d was not created by this device", slot)
	}
	bg, err := p.textureGroup(i, s)
	if err != nil {
		return fmt.Errorf("texture slot %d: %w", slot, err)
	}
	if old, ok := p.textures[slot]; ok {
		old.Release()
	}
	p.textures[slot] = bg
	return nil
}

// ClearTextures drops every slot binding, e.g. before a new scene binds its own.
// The device must be idle.
func (p *MeshPipeline) ClearTextures() {
	for slot, bg := range p.textures {
		bg.Release()
		delete(p.textures, slot)
	}
}

func (p *MeshPipeline) texture(slot uint32) *wgpu.BindGroup {
	if bg, ok := p.textures[slot]; ok && slot != gpu.NoTexture {
		return bg
	}
	return p.fallback
}

func bufferEntry(binding uint32, b gpu.Buffer) (wgpu.BindGroupEntry, error) {
	buf, ok := b.(*Buffer)
	if !ok || buf.buf == nil {
		return wgpu.BindGroupEntry{}, fmt.Errorf("binding %d: %w", binding, errForeignBuffer)
	}
	return wgpu.BindGroupEntry{Binding: binding, Buffer: buf.buf, Size: wgpu.WholeSize}, nil
}

func (p *MeshPipeline) sceneGroup(label string, bufs ...gpu.Buffer) (*wgpu.BindGroup, error) {
	entries := make([]wgpu.BindGroupEntry, 0, len(bufs))
	for i, b := range bufs {
		e, err := bufferEntry(uint32(i), b)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return p.dev.Device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   label,
		Layout:  p.sceneLayout,
		Entries: entries,
	})
}

func (p *MeshPipeline) Release() {
	p.ClearTextures()
	if p.fallback != nil {
		p.fallback.Release()
		p.fallback = nil
	}
	if p.white != nil {
		p.white.Release()
		p.white = nil
	}
	if p.whiteSampler != nil {
		p.whiteSampler.Release()
		p.whiteSampler = nil
	}
	if p.Pipeline != nil {
		p.Pipeline.Release()
		p.Pipeline = nil
	}
	if p.textureLayout != nil {
		p.textureLayout.Release()
		p.textureLayout = nil
	}
	if p.sceneLayout != nil {
		p.sceneLayout.Release()
		p.sceneLayout = nil
	}
}
