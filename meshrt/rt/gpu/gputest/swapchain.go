package gputest

import (
	"time"

	"github.com/gekko3d/scenert/meshrt/rt/gpu"
)

// Swapchain cycles through a fixed set of images. AcquireErrs and PresentErrs are
// consumed one per call; a nil entry (or an empty queue) means success.
type Swapchain struct {
	dev    *Device
	images []*Image
	next   uint32
	width  uint32
	height uint32

	AcquireErrs []error
	PresentErrs []error

	Acquires  int
	Presents  int
	Recreates int
}

var _ gpu.Swapchain = (*Swapchain)(nil)

func NewSwapchain(dev *Device, count int, width, height uint32) *Swapchain {
	s := &Swapchain{dev: dev, width: width, height: height}
	s.build(count)
	return s
}

func (s *Swapchain) build(count int) {
	s.images = make([]*Image, count)
	for i := range s.images {
		s.images[i] = &Image{Desc: gpu.ImageDesc{
			Label:     "swapchain",
			Width:     s.width,
			Height:    s.height,
			Format:    gpu.FormatBGRA8Unorm,
			Usage:     gpu.ImageUsageRenderAttachment,
			MipLevels: 1,
		}}
	}
	s.next = 0
}

func pop(q *[]error) error {
	if len(*q) == 0 {
		return nil
	}
	err := (*q)[0]
	*q = (*q)[1:]
	return err
}

func (s *Swapchain) Acquire(signal gpu.Semaphore, timeout time.Duration) (gpu.SwapchainImage, error) {
	s.dev.record("acquire")
	s.Acquires++
	if err := pop(&s.AcquireErrs); err != nil {
		return gpu.SwapchainImage{}, err
	}
	idx := s.next
	s.next = (s.next + 1) % uint32(len(s.images))
	return gpu.SwapchainImage{Index: idx, Image: s.images[idx]}, nil
}

func (s *Swapchain) Present(img gpu.SwapchainImage, wait gpu.Semaphore) error {
	s.dev.record("present")
	s.Presents++
	return pop(&s.PresentErrs)
}

func (s *Swapchain) Recreate(width, height uint32) error {
	s.dev.record("recreate")
	s.Recreates++
	s.width, s.height = width, height
	s.build(len(s.images))
	return nil
}

func (s *Swapchain) Extent() (uint32, uint32) { return s.width, s.height }
func (s *Swapchain) ImageCount() int          { return len(s.images) }
