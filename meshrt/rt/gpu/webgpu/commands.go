package webgpu

import (
	"errors"
	"fmt"

	"github.com/gekko3d/scenert/meshrt/rt/gpu"

	"github.com/cogentcore/webgpu/wgpu"
)

// CommandBuffer records into a fresh wgpu encoder each frame. Draw records are
// staged on the CPU and written to this buffer's own storage buffer at End, so
// two command buffers in flight never share one.
type CommandBuffer struct {
	dev   *Device
	label string

	enc      *wgpu.CommandEncoder
	pass     *wgpu.RenderPassEncoder
	finished *wgpu.CommandBuffer

	draws     gpu.Buffer
	staging   []byte
	constants gpu.DrawConstants
	sceneData gpu.Buffer

	group    *wgpu.BindGroup
	groupKey [5]gpu.Buffer
	texture  *wgpu.BindGroup

	errs    []error
	dropped int
}

var _ gpu.CommandBuffer = (*CommandBuffer)(nil)

func newCommandBuffer(dev *Device, label string) *CommandBuffer {
	return &CommandBuffer{dev: dev, label: label}
}

func (c *CommandBuffer) Begin() error {
	c.discard()
	if c.draws == nil {
		b, err := c.dev.CreateBuffer(c.label+"/draws", MaxDraws*gpu.DrawDataSize, gpu.BufferUsageStorage|gpu.BufferUsageCopyDst)
		if err != nil {
			return err
		}
		c.draws = b
	}
	enc, err := c.dev.Device.CreateCommandEncoder(&wgpu.CommandEncoderDescriptor{Label: c.label})
	if err != nil {
		return fmt.Errorf("command encoder %q: %w", c.label, err)
	}
	c.enc = enc
	c.staging = c.staging[:0]
	c.errs = c.errs[:0]
	c.dropped = 0
	return nil
}

func viewOf(img gpu.Image) (*wgpu.TextureView, error) {
	i, ok := img.(*Image)
	if !ok || i.view == nil {
		return nil, errForeignImage
	}
	return i.view, nil
}

func (c *CommandBuffer) BeginRenderPass(pass gpu.RenderPass) error {
	if c.enc == nil {
		return errors.New("render pass outside Begin/End")
	}
	color, err := viewOf(pass.Color)
	if err != nil {
		return fmt.Errorf("color attachment: %w", err)
	}
	desc := &wgpu.RenderPassDescriptor{
		Label: c.label,
		ColorAttachments: []wgpu.RenderPassColorAttachment{{
			View:    color,
			LoadOp:  wgpu.LoadOpClear,
			StoreOp: wgpu.StoreOpStore,
			ClearValue: wgpu.Color{
				R: float64(pass.ClearColor[0]),
				G: float64(pass.ClearColor[1]),
				B: float64(pass.ClearColor[2]),
				A: float64(pass.ClearColor[3]),
			},
		}},
	}
	if pass.Depth != nil {
		depth, err := viewOf(pass.Depth)
		if err != nil {
			return fmt.Errorf("depth attachment: %w", err)
		}
		desc.DepthStencilAttachment = &wgpu.RenderPassDepthStencilAttachment{
			View:            depth,
			DepthLoadOp:     wgpu.LoadOpClear,
			DepthStoreOp:    wgpu.StoreOpDiscard,
			DepthClearValue: pass.ClearDepth,
		}
	}
	c.pass = c.enc.BeginRenderPass(desc)
	c.pass.SetPipeline(c.dev.pipeline.Pipeline)
	c.sceneData = pass.SceneData
	c.texture = nil
	return nil
}

func (c *CommandBuffer) BindIndexBuffer(buf gpu.Buffer) {
	b, ok := buf.(*Buffer)
	if c.pass == nil || !ok || b.buf == nil {
		c.errs = append(c.errs, fmt.Errorf("index buffer: %w", errForeignBuffer))
		return
	}
	c.pass.SetIndexBuffer(b.buf, wgpu.IndexFormatUint32, 0, wgpu.WholeSize)
}

func (c *CommandBuffer) SetDrawConstants(dc gpu.DrawConstants) { c.constants = dc }

// bindScene rebuilds the group 0 bind group when any of its buffers changed.
func (c *CommandBuffer) bindScene() bool {
	key := [5]gpu.Buffer{c.sceneData, c.constants.VertexBuffer, c.constants.MaterialBuffer, c.constants.LightBuffer, c.draws}
	if c.group == nil || key != c.groupKey {
		bg, err := c.dev.pipeline.sceneGroup(c.label, key[:]...)
		if err != nil {
			c.errs = append(c.errs, fmt.Errorf("scene bind group: %w", err))
			return false
		}
		if c.group != nil {
			c.group.Release()
		}
		c.group, c.groupKey = bg, key
		c.pass.SetBindGroup(0, c.group, nil)
	} else if len(c.staging) == 0 {
		c.pass.SetBindGroup(0, c.group, nil)
	}
	return true
}

// DrawIndexed passes the draw's record index as first instance.
func (c *CommandBuffer) DrawIndexed(indexCount, firstIndex uint32) {
	if c.pass == nil {
		c.errs = append(c.errs, errors.New("draw outside a render pass"))
		return
	}
	n := len(c.staging) / gpu.DrawDataSize
	if n >= MaxDraws {
		c.dropped++
		return
	}
	if !c.bindScene() {
		return
	}
	if tg := c.dev.pipeline.texture(c.constants.BaseColorTexture); tg != c.texture {
		c.pass.SetBindGroup(1, tg, nil)
		c.texture = tg
	}
	c.staging = gpu.PackDrawData(c.staging, c.constants)
	c.pass.DrawIndexed(indexCount, 1, firstIndex, 0, uint32(n))
}

func (c *CommandBuffer) EndRenderPass() error {
	if c.pass == nil {
		return errors.New("no render pass to end")
	}
	err := c.pass.End()
	c.pass.Release()
	c.pass = nil
	return errors.Join(append(c.errs, err)...)
}

func (c *CommandBuffer) End() error {
	if c.enc == nil {
		return errors.New("end without begin")
	}
	if c.dropped > 0 {
		c.dev.log.Warnf("%s: %d draws past the %d draw limit were dropped", c.label, c.dropped, MaxDraws)
	}
	if len(c.staging) > 0 {
		if err := c.dev.WriteBuffer(c.draws, 0, c.staging); err != nil {
			return fmt.Errorf("draw records: %w", err)
		}
	}
	cmd, err := c.enc.Finish(nil)
	c.enc.Release()
	c.enc = nil
	if err != nil {
		return fmt.Errorf("finish %q: %w", c.label, err)
	}
	c.finished = cmd
	return nil
}

// discard drops a recording that was never submitted.
func (c *CommandBuffer) discard() {
	if c.pass != nil {
		c.pass.Release()
		c.pass = nil
	}
	if c.enc != nil {
		c.enc.Release()
		c.enc = nil
	}
	if c.finished != nil {
		c.finished.Release()
		c.finished = nil
	}
}

func (c *CommandBuffer) Release() {
	c.discard()
	if c.group != nil {
		c.group.Release()
		c.group = nil
	}
	if c.draws != nil {
		c.draws.Release()
		c.draws = nil
	}
}
