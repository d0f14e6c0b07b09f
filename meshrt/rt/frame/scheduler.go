package frame

import (
	"errors"
	"fmt"
	"time"

	"github.com/gekko3d/scenert"
	"github.com/gekko3d/scenert/meshrt/rt/gpu"
)

// ErrDeviceSyncTimeout is returned when a slot's fence does not signal within
// Options.FenceTimeout. The GPU is presumed hung; the caller decides whether to
// retry or abort.
var ErrDeviceSyncTimeout = errors.New("device sync timeout")

// ErrClosed is returned by Submit and Recreate after Close.
var ErrClosed = errors.New("frame scheduler closed")

// FramesInFlight is the only supported number of frame slots.
const FramesInFlight = 2

type State int

const (
	Idle State = iota
	FenceWait
	Acquired
	Recording
	Submitted
	Presented
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case FenceWait:
		return "fence-wait"
	case Acquired:
		return "acquired"
	case Recording:
		return "recording"
	case Submitted:
		return "submitted"
	case Presented:
		return "presented"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// RenderTargets owns the offscreen attachments sized to the swapchain.
type RenderTargets interface {
	Color() gpu.Image
	Depth() gpu.Image
	Recreate(width, height uint32) error
	Release()
}

type Options struct {
	FramesInFlight int
	FenceTimeout   time.Duration
	AcquireTimeout time.Duration
	Logger         scenert.Logger
}

// Slot is the per-frame state reused every FramesInFlight frames.
type Slot struct {
	Cmd           gpu.CommandBuffer
	Fence         gpu.Fence
	ImageAcquired gpu.Semaphore
	SceneData     gpu.Buffer
	// ResizeRequested is raised when the swapchain reported out-of-date or
	// suboptimal for this slot and cleared by Scheduler.Recreate.
	ResizeRequested bool
}

func (s *Slot) release() {
	if s.Cmd != nil {
		s.Cmd.Release()
	}
	if s.Fence != nil {
		s.Fence.Release()
	}
	if s.ImageAcquired != nil {
		s.ImageAcquired.Release()
	}
	if s.SceneData != nil {
		s.SceneData.Release()
	}
}

// Frame is handed to the record callback of Submit.
type Frame struct {
	Slot        int
	FrameNumber uint64
	Cmd         gpu.CommandBuffer
	Image       gpu.SwapchainImage
	SceneData   gpu.Buffer
	Targets     RenderTargets
	Width       uint32
	Height      uint32
}

func (f *Frame) Aspect() float32 {
	if f.Height == 0 {
		return 1
	}
	return float32(f.Width) / float32(f.Height)
}

// Scheduler paces the CPU against the GPU with a fence per frame slot and hands
// out swapchain images. It is driven from a single goroutine.
type Scheduler struct {
	dev       gpu.Device
	swapchain gpu.Swapchain
	targets   RenderTargets
	opts      Options
	log       scenert.Logger

	slots     []*Slot
	renderEnd []gpu.Semaphore

	frameNumber uint64
	state       State
}

func NewScheduler(dev gpu.Device, sc gpu.Swapchain, targets RenderTargets, opts Options) (*Scheduler, error) {
	if opts.FramesInFlight == 0 {
		opts.FramesInFlight = FramesInFlight
	}
	if opts.FramesInFlight != FramesInFlight {
		return nil, fmt.Errorf("frames in flight must be %d, got %d", FramesInFlight, opts.FramesInFlight)
	}
	if opts.FenceTimeout <= 0 {
		opts.FenceTimeout = 2 * time.Second
	}
	if opts.AcquireTimeout <= 0 {
		opts.AcquireTimeout = time.Second
	}

	s := &Scheduler{
		dev:       dev,
		swapchain: sc,
		targets:   targets,
		opts:      opts,
		log:       scenert.Sub(opts.Logger, "frame"),
	}
	for i := 0; i < opts.FramesInFlight; i++ {
		slot, err := s.newSlot(i)
		if err != nil {
			s.releaseAll()
			return nil, err
		}
		s.slots = append(s.slots, slot)
	}
	if err := s.buildRenderEnd(); err != nil {
		s.releaseAll()
		return nil, err
	}
	return s, nil
}

func (s *Scheduler) newSlot(i int) (*Slot, error) {
	slot := &Slot{}
	var err error
	if slot.Cmd, err = s.dev.CreateCommandBuffer(fmt.Sprintf("frame%d", i)); err != nil {
		return nil, fmt.Errorf("slot %d command buffer: %w", i, err)
	}
	// Signalled so the first wait on each slot returns at once.
	if slot.Fence, err = s.dev.CreateFence(true); err != nil {
		slot.release()
		return nil, fmt.Errorf("slot %d fence: %w", i, err)
	}
	if slot.ImageAcquired, err = s.dev.CreateSemaphore(); err != nil {
		slot.release()
		return nil, fmt.Errorf("slot %d semaphore: %w", i, err)
	}
	slot.SceneData, err = s.dev.CreateBuffer(fmt.Sprintf("frame%d/scene", i), gpu.SceneDataSize, gpu.BufferUsageUniform|gpu.BufferUsageCopyDst)
	if err != nil {
		slot.release()
		return nil, fmt.Errorf("slot %d scene data: %w", i, err)
	}
	return slot, nil
}

// buildRenderEnd creates one render-finished semaphore per swapchain image. A
// slot-indexed semaphore could still be in use by the presentation engine when
// the slot comes round again.
func (s *Scheduler) buildRenderEnd() error {
	for _, sem := range s.renderEnd {
		sem.Release()
	}
	s.renderEnd = s.renderEnd[:0]
	for i := 0; i < s.swapchain.ImageCount(); i++ {
		sem, err := s.dev.CreateSemaphore()
		if err != nil {
			return fmt.Errorf("render-end semaphore %d: %w", i, err)
		}
		s.renderEnd = append(s.renderEnd, sem)
	}
	return nil
}

// Submit runs one frame: wait for the current slot's fence, acquire an image,
// record, submit and present. An out-of-date swapchain at acquire or present
// raises the slot's resize flag and returns nil without advancing the frame.
//
// If record, Begin or End fails after a successful acquire, the image is neither
// submitted nor presented and the slot's ImageAcquired semaphore stays signalled
// with no waiter. Backends that cannot reacquire in that state must treat the
// error as fatal or recreate the swapchain before the next Submit. The wgpu
// backend drops the unpresented image on its next Acquire.
func (s *Scheduler) Submit(record func(*Frame) error) error {
	if len(s.slots) == 0 {
		return ErrClosed
	}
	idx := s.CurrentSlot()
	slot := s.slots[idx]

	s.state = FenceWait
	signalled, err := slot.Fence.Wait(s.opts.FenceTimeout)
	if err != nil {
		return fmt.Errorf("%w: slot %d fence wait: %w", gpu.ErrDeviceLost, idx, err)
	}
	if !signalled {
		return fmt.Errorf("%w: slot %d fence not signalled after %v", ErrDeviceSyncTimeout, idx, s.opts.FenceTimeout)
	}

	img, err := s.swapchain.Acquire(slot.ImageAcquired, s.opts.AcquireTimeout)
	if errors.Is(err, gpu.ErrSwapchainOutOfDate) {
		s.log.Debugf("acquire on slot %d: %v", idx, err)
		slot.ResizeRequested = true
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: acquire: %w", gpu.ErrDeviceLost, err)
	}
	if int(img.Index) >= len(s.renderEnd) {
		return fmt.Errorf("%w: swapchain image %d of %d", gpu.ErrDeviceLost, img.Index, len(s.renderEnd))
	}
	s.state = Acquired

	w, h := s.swapchain.Extent()
	f := &Frame{
		Slot:        idx,
		FrameNumber: s.frameNumber,
		Cmd:         slot.Cmd,
		Image:       img,
		SceneData:   slot.SceneData,
		Targets:     s.targets,
		Width:       w,
		Height:      h,
	}

	s.state = Recording
	if err := slot.Cmd.Begin(); err != nil {
		return fmt.Errorf("begin frame %d: %w", s.frameNumber, err)
	}
	if err := record(f); err != nil {
		return fmt.Errorf("record frame %d: %w", s.frameNumber, err)
	}
	if err := slot.Cmd.End(); err != nil {
		return fmt.Errorf("end frame %d: %w", s.frameNumber, err)
	}

	// Reset only once the submit is certain to happen: a fence reset without a
	// matching submit would never signal again.
	if err := slot.Fence.Reset(); err != nil {
		return fmt.Errorf("%w: slot %d fence reset: %w", gpu.ErrDeviceLost, idx, err)
	}
	if err := s.dev.Submit(slot.Cmd, slot.ImageAcquired, s.renderEnd[img.Index], slot.Fence); err != nil {
		return fmt.Errorf("%w: submit frame %d: %w", gpu.ErrDeviceLost, s.frameNumber, err)
	}
	s.state = Submitted

	err = s.swapchain.Present(img, s.renderEnd[img.Index])
	if errors.Is(err, gpu.ErrSwapchainOutOfDate) {
		s.log.Debugf("present on slot %d: %v", idx, err)
		slot.ResizeRequested = true
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: present: %w", gpu.ErrDeviceLost, err)
	}
	s.state = Presented

	s.frameNumber++
	return nil
}

// ResizeRequested reports whether any slot saw an out-of-date swapchain since the
// last Recreate.
func (s *Scheduler) ResizeRequested() bool {
	for _, slot := range s.slots {
		if slot.ResizeRequested {
			return true
		}
	}
	return false
}

// Recreate rebuilds the swapchain and render targets at the new extent. A zero
// extent (minimized window) is skipped and reported as false so the caller can
// try again later.
func (s *Scheduler) Recreate(width, height uint32) (bool, error) {
	if len(s.slots) == 0 {
		return false, ErrClosed
	}
	if width == 0 || height == 0 {
		return false, nil
	}
	if err := s.dev.WaitIdle(); err != nil {
		return false, fmt.Errorf("%w: wait idle: %w", gpu.ErrDeviceLost, err)
	}
	if err := s.swapchain.Recreate(width, height); err != nil {
		return false, fmt.Errorf("recreate swapchain %dx%d: %w", width, height, err)
	}
	if s.targets != nil {
		if err := s.targets.Recreate(width, height); err != nil {
			return false, fmt.Errorf("recreate render targets %dx%d: %w", width, height, err)
		}
	}
	if err := s.buildRenderEnd(); err != nil {
		return false, err
	}
	for _, slot := range s.slots {
		slot.ResizeRequested = false
	}
	s.log.Infof("swapchain recreated at %dx%d", width, height)
	return true, nil
}

func (s *Scheduler) FrameNumber() uint64 { return s.frameNumber }

// CurrentSlot is the slot the next Submit uses, or 0 once closed.
func (s *Scheduler) CurrentSlot() int {
	if len(s.slots) == 0 {
		return 0
	}
	return int(s.frameNumber % uint64(len(s.slots)))
}

// Slot exposes a slot for inspection.
func (s *Scheduler) Slot(i int) *Slot { return s.slots[i] }

// State is the last stage the most recent Submit reached.
func (s *Scheduler) State() State { return s.state }

// Close waits for the device to go idle and releases every slot resource. The
// swapchain and render targets belong to the caller.
func (s *Scheduler) Close() error {
	err := s.dev.WaitIdle()
	s.releaseAll()
	s.state = Idle
	return err
}

func (s *Scheduler) releaseAll() {
	for _, slot := range s.slots {
		slot.release()
	}
	s.slots = nil
	for _, sem := range s.renderEnd {
		sem.Release()
	}
	s.renderEnd = nil
}
