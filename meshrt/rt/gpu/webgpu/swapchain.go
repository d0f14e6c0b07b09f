package webgpu

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gekko3d/scenert/meshrt/rt/gpu"

	"github.com/cogentcore/webgpu/wgpu"
)

// imageCount is the number of images the surface is configured to rotate through.
// wgpu does not report the real count, so acquires are numbered modulo it.
const imageCount = 3

// Swapchain presents to a configured wgpu surface.
type Swapchain struct {
	Surface *wgpu.Surface
	Adapter *wgpu.Adapter
	Config  *wgpu.SurfaceConfiguration

	dev     *Device
	format  gpu.Format
	next    uint32
	current *Image
}

var _ gpu.Swapchain = (*Swapchain)(nil)

// NewSwapchain configures surface for the adapter's preferred format. VSync picks
// FIFO presentation; otherwise immediate is used when the surface supports it.
func NewSwapchain(dev *Device, surface *wgpu.Surface, adapter *wgpu.Adapter, width, height uint32, vsync bool) *Swapchain {
	caps := surface.GetCapabilities(adapter)
	format := caps.Formats[0]
	mode := wgpu.PresentModeFifo
	if !vsync {
		for _, m := range caps.PresentModes {
			if m == wgpu.PresentModeImmediate {
				mode = m
			}
		}
	}
	cfg := &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      format,
		Width:       width,
		Height:      height,
		PresentMode: mode,
		AlphaMode:   caps.AlphaModes[0],
	}
	surface.Configure(adapter, dev.Device, cfg)
	return &Swapchain{
		Surface: surface,
		Adapter: adapter,
		Config:  cfg,
		dev:     dev,
		format:  surfaceFormat(format),
	}
}

func (s *Swapchain) Format() gpu.Format { return s.format }

// surfaceError maps surface status errors. Outdated, lost and suboptimal surfaces
// are recoverable by reconfiguring; anything else is not.
func surfaceError(op string, err error) error {
	msg := strings.ToLower(err.Error())
	for _, s := range []string{"outdated", "lost", "suboptimal"} {
		if strings.Contains(msg, s) {
			return fmt.Errorf("%w: %s: %w", gpu.ErrSwapchainOutOfDate, op, err)
		}
	}
	return fmt.Errorf("%w: %s: %w", gpu.ErrDeviceLost, op, err)
}

// Acquire ignores timeout: wgpu blocks inside GetCurrentTexture according to the
// present mode and reports a timeout as a surface status.
func (s *Swapchain) Acquire(signal gpu.Semaphore, timeout time.Duration) (gpu.SwapchainImage, error) {
	if s.current != nil {
		// A frame whose recording failed never presented its image.
		s.current.release()
		s.current = nil
	}
	tex, err := s.Surface.GetCurrentTexture()
	if err != nil {
		return gpu.SwapchainImage{}, surfaceError("acquire", err)
	}
	view, err := tex.CreateView(nil)
	if err != nil {
		tex.Release()
		return gpu.SwapchainImage{}, fmt.Errorf("swapchain view: %w", err)
	}
	s.current = &Image{
		tex:  tex,
		view: view,
		desc: gpu.ImageDesc{
			Label:     "swapchain",
			Width:     s.Config.Width,
			Height:    s.Config.Height,
			Format:    s.format,
			Usage:     gpu.ImageUsageRenderAttachment,
			MipLevels: 1,
		},
	}
	idx := s.next
	s.next = (s.next + 1) % imageCount
	return gpu.SwapchainImage{Index: idx, Image: s.current}, nil
}

func (s *Swapchain) Present(img gpu.SwapchainImage, wait gpu.Semaphore) error {
	if s.current == nil {
		return errors.New("present without an acquired image")
	}
	s.Surface.Present()
	s.current.release()
	s.current = nil
	return nil
}

func (s *Swapchain) Recreate(width, height uint32) error {
	if s.current != nil {
		s.current.release()
		s.current = nil
	}
	s.Config.Width, s.Config.Height = width, height
	s.Surface.Configure(s.Adapter, s.dev.Device, s.Config)
	s.next = 0
	return nil
}

func (s *Swapchain) Extent() (uint32, uint32) { return s.Config.Width, s.Config.Height }

func (s *Swapchain) ImageCount() int { return imageCount }

// Release drops any image still held. The surface belongs to the caller.
func (s *Swapchain) Release() {
	if s.current != nil {
		s.current.release()
		s.current = nil
	}
}
