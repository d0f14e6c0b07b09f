// Package webgpu implements the gpu device contracts on top of wgpu-native.
package webgpu

import (
	"errors"
	"fmt"
	"time"

	"github.com/gekko3d/scenert"
	"github.com/gekko3d/scenert/meshrt/rt/gpu"

	"github.com/cogentcore/webgpu/wgpu"
)

var (
	errForeignBuffer = errors.New("buffer was not created by this device")
	errForeignImage  = errors.New("image was not created by this device")
)

func bufferUsage(u gpu.BufferUsage) wgpu.BufferUsage {
	var out wgpu.BufferUsage
	if u&gpu.BufferUsageVertex != 0 {
		out |= wgpu.BufferUsageVertex
	}
	if u&gpu.BufferUsageIndex != 0 {
		out |= wgpu.BufferUsageIndex
	}
	if u&gpu.BufferUsageStorage != 0 {
		out |= wgpu.BufferUsageStorage
	}
	if u&gpu.BufferUsageUniform != 0 {
		out |= wgpu.BufferUsageUniform
	}
	if u&gpu.BufferUsageCopyDst != 0 {
		out |= wgpu.BufferUsageCopyDst
	}
	return out
}

func textureFormat(f gpu.Format) wgpu.TextureFormat {
	switch f {
	case gpu.FormatRGBA8Unorm:
		return wgpu.TextureFormatRGBA8Unorm
	case gpu.FormatRGBA8UnormSRGB:
		return wgpu.TextureFormatRGBA8UnormSrgb
	case gpu.FormatBGRA8Unorm:
		return wgpu.TextureFormatBGRA8Unorm
	case gpu.FormatBGRA8UnormSRGB:
		return wgpu.TextureFormatBGRA8UnormSrgb
	case gpu.FormatDepth32Float:
		return wgpu.TextureFormatDepth32Float
	}
	return wgpu.TextureFormatUndefined
}

func surfaceFormat(f wgpu.TextureFormat) gpu.Format {
	switch f {
	case wgpu.TextureFormatBGRA8UnormSrgb:
		return gpu.FormatBGRA8UnormSRGB
	case wgpu.TextureFormatRGBA8Unorm:
		return gpu.FormatRGBA8Unorm
	case wgpu.TextureFormatRGBA8UnormSrgb:
		return gpu.FormatRGBA8UnormSRGB
	}
	return gpu.FormatBGRA8Unorm
}

func imageUsage(u gpu.ImageUsage) wgpu.TextureUsage {
	var out wgpu.TextureUsage
	if u&gpu.ImageUsageSampled != 0 {
		out |= wgpu.TextureUsageTextureBinding
	}
	if u&gpu.ImageUsageCopyDst != 0 {
		out |= wgpu.TextureUsageCopyDst
	}
	if u&gpu.ImageUsageCopySrc != 0 {
		out |= wgpu.TextureUsageCopySrc
	}
	if u&gpu.ImageUsageRenderAttachment != 0 {
		out |= wgpu.TextureUsageRenderAttachment
	}
	return out
}

type Buffer struct {
	buf   *wgpu.Buffer
	label string
	size  uint64
}

func (b *Buffer) Label() string { return b.label }
func (b *Buffer) Size() uint64  { return b.size }

func (b *Buffer) Release() {
	if b.buf != nil {
		b.buf.Release()
		b.buf = nil
	}
}

type Image struct {
	tex  *wgpu.Texture
	view *wgpu.TextureView
	desc gpu.ImageDesc
	// owned is false for swapchain images, whose texture the surface recycles.
	owned bool
}

func (i *Image) Width() uint32      { return i.desc.Width }
func (i *Image) Height() uint32     { return i.desc.Height }
func (i *Image) MipLevels() uint32  { return i.desc.MipLevels }
func (i *Image) Format() gpu.Format { return i.desc.Format }

func (i *Image) Release() {
	if !i.owned {
		return
	}
	i.release()
}

func (i *Image) release() {
	if i.view != nil {
		i.view.Release()
		i.view = nil
	}
	if i.tex != nil {
		i.tex.Release()
		i.tex = nil
	}
}

type Sampler struct {
	s    *wgpu.Sampler
	desc gpu.SamplerDesc
}

func (s *Sampler) Desc() gpu.SamplerDesc { return s.desc }

func (s *Sampler) Release() {
	if s.s != nil {
		s.s.Release()
		s.s = nil
	}
}

// Semaphore is a no-op: a wgpu queue orders acquire, submit and present itself.
type Semaphore struct{}

func (Semaphore) Release() {}

// Fence tracks the queue submission that will signal it. Waiting polls the device
// for that submission on a separate goroutine so the wait can be bounded.
type Fence struct {
	dev     *Device
	index   wgpu.SubmissionIndex
	pending bool
	// inflight is non-nil while a poll started by a timed-out Wait is still running.
	inflight chan struct{}
}

func (f *Fence) Wait(timeout time.Duration) (bool, error) {
	if !f.pending {
		return true, nil
	}
	if f.inflight == nil {
		done := make(chan struct{})
		idx := f.index
		go func() {
			defer close(done)
			f.dev.Device.Poll(true, &wgpu.WrappedSubmissionIndex{Queue: f.dev.Queue, SubmissionIndex: idx})
		}()
		f.inflight = done
	}
	select {
	case <-f.inflight:
		f.inflight = nil
		f.pending = false
		return true, nil
	case <-time.After(timeout):
		return false, nil
	}
}

// Reset forgets the last submission. A fence that was reset and never submitted
// reads as signalled.
func (f *Fence) Reset() error {
	if f.inflight != nil {
		return errors.New("reset of a fence whose wait is still in progress")
	}
	f.pending = false
	return nil
}

func (f *Fence) Release() {}

// Device adapts a wgpu device and its queue.
type Device struct {
	Device *wgpu.Device
	Queue  *wgpu.Queue

	pipeline *MeshPipeline
	log      scenert.Logger
}

var _ gpu.Device = (*Device)(nil)

func NewDevice(dev *wgpu.Device, logger scenert.Logger) *Device {
	return &Device{Device: dev, Queue: dev.GetQueue(), log: scenert.Sub(logger, "wgpu")}
}

// SetPipeline selects the pipeline command buffers record with. It must be set
// before the first CreateCommandBuffer.
func (d *Device) SetPipeline(p *MeshPipeline) { d.pipeline = p }

func (d *Device) CreateBuffer(label string, size uint64, usage gpu.BufferUsage) (gpu.Buffer, error) {
	buf, err := d.Device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: label,
		Size:  size,
		Usage: bufferUsage(usage),
	})
	if err != nil {
		return nil, fmt.Errorf("create buffer %q: %w", label, err)
	}
	return &Buffer{buf: buf, label: label, size: size}, nil
}

func (d *Device) WriteBuffer(buf gpu.Buffer, offset uint64, data []byte) error {
	b, ok := buf.(*Buffer)
	if !ok || b.buf == nil {
		return errForeignBuffer
	}
	return d.Queue.WriteBuffer(b.buf, offset, data)
}

func (d *Device) CreateImage(desc gpu.ImageDesc) (gpu.Image, error) {
	mips := max(desc.MipLevels, 1)
	tex, err := d.Device.CreateTexture(&wgpu.TextureDescriptor{
		Label:         desc.Label,
		Size:          wgpu.Extent3D{Width: desc.Width, Height: desc.Height, DepthOrArrayLayers: 1},
		MipLevelCount: mips,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension2D,
		Format:        textureFormat(desc.Format),
		Usage:         imageUsage(desc.Usage),
	})
	if err != nil {
		return nil, fmt.Errorf("create image %q: %w", desc.Label, err)
	}
	view, err := tex.CreateView(nil)
	if err != nil {
		tex.Release()
		return nil, fmt.Errorf("create view of %q: %w", desc.Label, err)
	}
	desc.MipLevels = mips
	return &Image{tex: tex, view: view, desc: desc, owned: true}, nil
}

func (d *Device) WriteImage(img gpu.Image, region gpu.CopyRegion, data []byte) error {
	i, ok := img.(*Image)
	if !ok || i.tex == nil {
		return errForeignImage
	}
	bpp := i.desc.Format.BytesPerPixel()
	d.Queue.WriteTexture(
		&wgpu.ImageCopyTexture{
			Texture:  i.tex,
			MipLevel: region.MipLevel,
			Aspect:   wgpu.TextureAspectAll,
		},
		data,
		&wgpu.TextureDataLayout{
			BytesPerRow:  region.Width * bpp,
			RowsPerImage: region.Height,
		},
		&wgpu.Extent3D{Width: region.Width, Height: region.Height, DepthOrArrayLayers: 1},
	)
	return nil
}

func filterMode(f gpu.Filter) wgpu.FilterMode {
	if f == gpu.FilterNearest {
		return wgpu.FilterModeNearest
	}
	return wgpu.FilterModeLinear
}

func (d *Device) CreateSampler(desc gpu.SamplerDesc) (gpu.Sampler, error) {
	mip := wgpu.MipmapFilterModeLinear
	if desc.Mipmap == gpu.MipmapNearest {
		mip = wgpu.MipmapFilterModeNearest
	}
	s, err := d.Device.CreateSampler(&wgpu.SamplerDescriptor{
		Label:         desc.Label,
		AddressModeU:  wgpu.AddressModeRepeat,
		AddressModeV:  wgpu.AddressModeRepeat,
		AddressModeW:  wgpu.AddressModeRepeat,
		MagFilter:     filterMode(desc.MagFilter),
		MinFilter:     filterMode(desc.MinFilter),
		MipmapFilter:  mip,
		LodMinClamp:   0,
		LodMaxClamp:   32,
		MaxAnisotropy: 1,
	})
	if err != nil {
		return nil, fmt.Errorf("create sampler %q: %w", desc.Label, err)
	}
	return &Sampler{s: s, desc: desc}, nil
}

func (d *Device) CreateFence(signaled bool) (gpu.Fence, error) {
	return &Fence{dev: d}, nil
}

func (d *Device) CreateSemaphore() (gpu.Semaphore, error) {
	return Semaphore{}, nil
}

func (d *Device) CreateCommandBuffer(label string) (gpu.CommandBuffer, error) {
	if d.pipeline == nil {
		return nil, errors.New("no pipeline set")
	}
	return newCommandBuffer(d, label), nil
}

func (d *Device) Submit(cmd gpu.CommandBuffer, wait, signal gpu.Semaphore, fence gpu.Fence) error {
	c, ok := cmd.(*CommandBuffer)
	if !ok {
		return errors.New("command buffer was not created by this device")
	}
	if c.finished == nil {
		return fmt.Errorf("command buffer %q was not ended", c.label)
	}
	idx := d.Queue.Submit(c.finished)
	c.finished.Release()
	c.finished = nil
	if f, ok := fence.(*Fence); ok {
		f.index = idx
		f.pending = true
	}
	return nil
}

// SubmitUpload flushes queued writes and waits for them. wgpu stages WriteBuffer
// and WriteTexture data until the next submission, so an empty one is enough.
func (d *Device) SubmitUpload() error {
	enc, err := d.Device.CreateCommandEncoder(&wgpu.CommandEncoderDescriptor{Label: "upload"})
	if err != nil {
		return err
	}
	defer enc.Release()
	cmd, err := enc.Finish(nil)
	if err != nil {
		return err
	}
	defer cmd.Release()
	idx := d.Queue.Submit(cmd)
	d.Device.Poll(true, &wgpu.WrappedSubmissionIndex{Queue: d.Queue, SubmissionIndex: idx})
	return nil
}

func (d *Device) WaitIdle() error {
	d.Device.Poll(true, nil)
	return nil
}
