package webgpu

import (
	"github.com/gekko3d/scenert/meshrt/rt/gpu"
)

// Targets holds the depth attachment. Color goes straight to the swapchain image,
// so Color returns nil.
type Targets struct {
	dev   *Device
	depth gpu.Image
}

func NewTargets(dev *Device, width, height uint32) (*Targets, error) {
	t := &Targets{dev: dev}
	if err := t.Recreate(width, height); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Targets) Color() gpu.Image { return nil }
func (t *Targets) Depth() gpu.Image { return t.depth }

func (t *Targets) Recreate(width, height uint32) error {
	depth, err := t.dev.CreateImage(gpu.ImageDesc{
		Label:     "depth",
		Width:     width,
		Height:    height,
		Format:    gpu.FormatDepth32Float,
		Usage:     gpu.ImageUsageRenderAttachment,
		MipLevels: 1,
	})
	if err != nil {
		return err
	}
	t.Release()
	t.depth = depth
	return nil
}

func (t *Targets) Release() {
	if t.depth != nil {
		t.depth.Release()
		t.depth = nil
	}
}
