// Package gputest provides an in-memory gpu.Device and gpu.Swapchain that record
// every call and can be scripted to fail, for tests of code above the device layer.
package gputest

import (
	"errors"
	"fmt"
	"time"

	"github.com/gekko3d/scenert/meshrt/rt/gpu"
)

type Buffer struct {
	label    string
	size     uint64
	Usage    gpu.BufferUsage
	Data     []byte
	Writes   int
	Released bool
}

func (b *Buffer) Label() string { return b.label }
func (b *Buffer) Size() uint64  { return b.size }
func (b *Buffer) Release()      { b.Released = true }

type Image struct {
	Desc     gpu.ImageDesc
	Regions  []gpu.CopyRegion
	Released bool
}

func (i *Image) Width() uint32      { return i.Desc.Width }
func (i *Image) Height() uint32     { return i.Desc.Height }
func (i *Image) MipLevels() uint32  { return i.Desc.MipLevels }
func (i *Image) Format() gpu.Format { return i.Desc.Format }
func (i *Image) Release()           { i.Released = true }

type Sampler struct {
	desc     gpu.SamplerDesc
	Released bool
}

func (s *Sampler) Desc() gpu.SamplerDesc { return s.desc }
func (s *Sampler) Release()              { s.Released = true }

type Semaphore struct {
	Released bool
}

func (s *Semaphore) Release() { s.Released = true }

type Fence struct {
	dev      *Device
	Signaled bool
	Resets   int
	Waits    int
	Released bool
}

func (f *Fence) Wait(timeout time.Duration) (bool, error) {
	f.Waits++
	f.dev.record("wait")
	if f.dev.WaitErr != nil {
		return false, f.dev.WaitErr
	}
	return f.Signaled, nil
}

func (f *Fence) Reset() error {
	f.Resets++
	f.Signaled = false
	f.dev.record("reset")
	return nil
}

func (f *Fence) Release() { f.Released = true }

type Draw struct {
	Constants  gpu.DrawConstants
	IndexCount uint32
	FirstIndex uint32
}

type CommandBuffer struct {
	dev        *Device
	Label      string
	Ops        []string
	Draws      []Draw
	Passes     []gpu.RenderPass
	IndexBound gpu.Buffer
	constants  gpu.DrawConstants
	Released   bool
}

func (c *CommandBuffer) Begin() error {
	c.Ops = c.Ops[:0]
	c.Draws = c.Draws[:0]
	c.Passes = c.Passes[:0]
	c.Ops = append(c.Ops, "begin")
	return nil
}

func (c *CommandBuffer) BeginRenderPass(pass gpu.RenderPass) error {
	c.Passes = append(c.Passes, pass)
	c.Ops = append(c.Ops, "begin-pass")
	return nil
}

func (c *CommandBuffer) BindIndexBuffer(buf gpu.Buffer) {
	c.IndexBound = buf
	c.Ops = append(c.Ops, "bind-index")
}

func (c *CommandBuffer) SetDrawConstants(dc gpu.DrawConstants) {
	c.constants = dc
	c.Ops = append(c.Ops, "constants")
}

func (c *CommandBuffer) DrawIndexed(indexCount, firstIndex uint32) {
	c.Draws = append(c.Draws, Draw{Constants: c.constants, IndexCount: indexCount, FirstIndex: firstIndex})
	c.Ops = append(c.Ops, fmt.Sprintf("draw %d@%d", indexCount, firstIndex))
}

func (c *CommandBuffer) EndRenderPass() error {
	c.Ops = append(c.Ops, "end-pass")
	return nil
}

func (c *CommandBuffer) End() error {
	c.Ops = append(c.Ops, "end")
	return nil
}

func (c *CommandBuffer) Release() { c.Released = true }

// Device is a scriptable gpu.Device. Fences are signalled immediately on Submit
// unless HangFences is set.
type Device struct {
	Buffers        []*Buffer
	Images         []*Image
	Samplers       []*Sampler
	Fences         []*Fence
	Semaphores     []*Semaphore
	CommandBuffers []*CommandBuffer

	Submits   int
	Uploads   int
	WaitIdles int
	Calls     []string

	HangFences bool
	WaitErr    error

	FailCreateBuffer error
	FailCreateImage  error
	FailUpload       error
	FailSubmit       error
	// FailImageAfter makes CreateImage fail once this many images exist.
	FailImageAfter int
}

var _ gpu.Device = (*Device)(nil)

func NewDevice() *Device {
	return &Device{FailImageAfter: -1}
}

func (d *Device) record(op string) { d.Calls = append(d.Calls, op) }

func (d *Device) CreateBuffer(label string, size uint64, usage gpu.BufferUsage) (gpu.Buffer, error) {
	if d.FailCreateBuffer != nil {
		return nil, d.FailCreateBuffer
	}
	b := &Buffer{label: label, size: size, Usage: usage, Data: make([]byte, size)}
	d.Buffers = append(d.Buffers, b)
	return b, nil
}

func (d *Device) WriteBuffer(buf gpu.Buffer, offset uint64, data []byte) error {
	b, ok := buf.(*Buffer)
	if !ok {
		return errors.New("gputest: foreign buffer")
	}
	if b.Released {
		return fmt.Errorf("gputest: write to released buffer %q", b.label)
	}
	if offset+uint64(len(data)) > b.size {
		return fmt.Errorf("gputest: write of %d bytes at %d overflows %q (%d bytes)", len(data), offset, b.label, b.size)
	}
	copy(b.Data[offset:], data)
	b.Writes++
	return nil
}

func (d *Device) CreateImage(desc gpu.ImageDesc) (gpu.Image, error) {
	if d.FailCreateImage != nil {
		return nil, d.FailCreateImage
	}
	if d.FailImageAfter >= 0 && len(d.Images) >= d.FailImageAfter {
		return nil, errors.New("gputest: out of image memory")
	}
	img := &Image{Desc: desc}
	d.Images = append(d.Images, img)
	return img, nil
}

func (d *Device) WriteImage(img gpu.Image, region gpu.CopyRegion, data []byte) error {
	i, ok := img.(*Image)
	if !ok {
		return errors.New("gputest: foreign image")
	}
	want := uint64(region.Width) * uint64(region.Height) * uint64(i.Desc.Format.BytesPerPixel())
	if uint64(len(data)) < want {
		return fmt.Errorf("gputest: mip %d needs %d bytes, got %d", region.MipLevel, want, len(data))
	}
	i.Regions = append(i.Regions, region)
	return nil
}

func (d *Device) CreateSampler(desc gpu.SamplerDesc) (gpu.Sampler, error) {
	s := &Sampler{desc: desc}
	d.Samplers = append(d.Samplers, s)
	return s, nil
}

func (d *Device) CreateFence(signaled bool) (gpu.Fence, error) {
	f := &Fence{dev: d, Signaled: signaled}
	d.Fences = append(d.Fences, f)
	return f, nil
}

func (d *Device) CreateSemaphore() (gpu.Semaphore, error) {
	s := &Semaphore{}
	d.Semaphores = append(d.Semaphores, s)
	return s, nil
}

func (d *Device) CreateCommandBuffer(label string) (gpu.CommandBuffer, error) {
	c := &CommandBuffer{dev: d, Label: label}
	d.CommandBuffers = append(d.CommandBuffers, c)
	return c, nil
}

func (d *Device) Submit(cmd gpu.CommandBuffer, wait, signal gpu.Semaphore, fence gpu.Fence) error {
	d.record("submit")
	if d.FailSubmit != nil {
		return d.FailSubmit
	}
	d.Submits++
	if f, ok := fence.(*Fence); ok && !d.HangFences {
		f.Signaled = true
	}
	return nil
}

func (d *Device) SubmitUpload() error {
	d.record("upload")
	if d.FailUpload != nil {
		return d.FailUpload
	}
	d.Uploads++
	return nil
}

func (d *Device) WaitIdle() error {
	d.record("wait-idle")
	d.WaitIdles++
	return nil
}

// LiveBuffers counts buffers not yet released.
func (d *Device) LiveBuffers() int {
	n := 0
	for _, b := range d.Buffers {
		if !b.Released {
			n++
		}
	}
	return n
}

// LiveImages counts images not yet released.
func (d *Device) LiveImages() int {
	n := 0
	for _, i := range d.Images {
		if !i.Released {
			n++
		}
	}
	return n
}

// Binder records texture bindings by slot.
type Binder struct {
	Images   map[uint32]gpu.Image
	Samplers map[uint32]gpu.Sampler
}

func NewBinder() *Binder {
	return &Binder{Images: map[uint32]gpu.Image{}, Samplers: map[uint32]gpu.Sampler{}}
}

func (b *Binder) WriteImage(slot uint32, img gpu.Image, sampler gpu.Sampler) error {
	b.Images[slot] = img
	b.Samplers[slot] = sampler
	return nil
}
