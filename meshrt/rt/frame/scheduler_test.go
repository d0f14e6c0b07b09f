package frame

import (
	"errors"
	"testing"
	"time"

	"github.com/gekko3d/scenert/meshrt/rt/gpu"
	"github.com/gekko3d/scenert/meshrt/rt/gpu/gputest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTargets struct {
	width, height uint32
	recreates     int
	err           error
}

func (t *fakeTargets) Color() gpu.Image { return &gputest.Image{} }
func (t *fakeTargets) Depth() gpu.Image { return &gputest.Image{} }
func (t *fakeTargets) Release()         {}
func (t *fakeTargets) Recreate(w, h uint32) error {
	if t.err != nil {
		return t.err
	}
	t.width, t.height = w, h
	t.recreates++
	return nil
}

type harness struct {
	dev     *gputest.Device
	sc      *gputest.Swapchain
	targets *fakeTargets
	s       *Scheduler
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{dev: gputest.NewDevice(), targets: &fakeTargets{}}
	h.sc = gputest.NewSwapchain(h.dev, 3, 800, 600)
	var err error
	h.s, err = NewScheduler(h.dev, h.sc, h.targets, Options{FenceTimeout: 10 * time.Millisecond})
	require.NoError(t, err)
	return h
}

func noop(*Frame) error { return nil }

func TestSubmitAdvancesFrames(t *testing.T) {
	h := newHarness(t)

	var slots []int
	for i := 0; i < 4; i++ {
		require.NoError(t, h.s.Submit(func(f *Frame) error {
			slots = append(slots, f.Slot)
			assert.Equal(t, uint64(i), f.FrameNumber)
			assert.Same(t, h.s.Slot(f.Slot).SceneData, f.SceneData)
			assert.Equal(t, uint32(800), f.Width)
			return nil
		}))
		assert.Equal(t, Presented, h.s.State())
	}
	assert.Equal(t, []int{0, 1, 0, 1}, slots)
	assert.Equal(t, uint64(4), h.s.FrameNumber())
	assert.Equal(t, 4, h.dev.Submits)
	assert.Equal(t, 4, h.sc.Presents)
}

func TestSubmitOrdersFenceAroundSubmit(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.s.Submit(noop))
	assert.Equal(t, []string{"wait", "acquire", "reset", "submit", "present"}, h.dev.Calls)
}

func TestSubmitFenceTimeout(t *testing.T) {
	h := newHarness(t)
	h.dev.HangFences = true

	require.NoError(t, h.s.Submit(noop)) // slot 0 now pending forever
	require.NoError(t, h.s.Submit(noop)) // slot 1 too

	err := h.s.Submit(noop)
	require.ErrorIs(t, err, ErrDeviceSyncTimeout)
	assert.False(t, errors.Is(err, gpu.ErrDeviceLost))
	assert.Equal(t, FenceWait, h.s.State())
	assert.Equal(t, uint64(2), h.s.FrameNumber())
}

func TestSubmitFenceWaitFailureIsDeviceLost(t *testing.T) {
	h := newHarness(t)
	h.dev.WaitErr = errors.New("vk lost")
	assert.ErrorIs(t, h.s.Submit(noop), gpu.ErrDeviceLost)
}

func TestSubmitOutOfDateAtAcquire(t *testing.T) {
	h := newHarness(t)
	h.sc.AcquireErrs = []error{gpu.ErrSwapchainOutOfDate}

	called := false
	require.NoError(t, h.s.Submit(func(*Frame) error { called = true; return nil }))

	assert.False(t, called)
	assert.True(t, h.s.Slot(0).ResizeRequested)
	assert.True(t, h.s.ResizeRequested())
	assert.Equal(t, uint64(0), h.s.FrameNumber())
	assert.Zero(t, h.dev.Submits)
}

func TestSubmitOutOfDateAtPresent(t *testing.T) {
	h := newHarness(t)
	h.sc.PresentErrs = []error{gpu.ErrSwapchainOutOfDate}

	require.NoError(t, h.s.Submit(noop))
	assert.True(t, h.s.ResizeRequested())
	assert.Equal(t, uint64(0), h.s.FrameNumber())
	assert.Equal(t, Submitted, h.s.State())

	// The fence still signals for the work that was submitted.
	require.NoError(t, h.s.Submit(noop))
	assert.Equal(t, uint64(1), h.s.FrameNumber())
}

func TestSubmitLostAtPresent(t *testing.T) {
	h := newHarness(t)
	h.sc.PresentErrs = []error{errors.New("surface gone")}
	assert.ErrorIs(t, h.s.Submit(noop), gpu.ErrDeviceLost)
}

func TestSubmitAcquireFailureIsDeviceLost(t *testing.T) {
	h := newHarness(t)
	h.sc.AcquireErrs = []error{errors.New("boom")}
	assert.ErrorIs(t, h.s.Submit(noop), gpu.ErrDeviceLost)
}

func TestSubmitRecordErrorKeepsSlotUsable(t *testing.T) {
	h := newHarness(t)
	boom := errors.New("record failed")

	require.ErrorIs(t, h.s.Submit(func(*Frame) error { return boom }), boom)
	assert.Equal(t, uint64(0), h.s.FrameNumber())
	assert.Zero(t, h.dev.Submits)
	assert.Equal(t, Recording, h.s.State())
	assert.Equal(t, 1, h.sc.Acquires)
	assert.Zero(t, h.sc.Presents, "the acquired image is dropped, not presented")

	require.NoError(t, h.s.Submit(noop), "fence was not reset, so the slot is immediately reusable")
	assert.Equal(t, uint64(1), h.s.FrameNumber())
	assert.Equal(t, 2, h.sc.Acquires, "the retry acquires a fresh image")
	assert.Equal(t, 1, h.sc.Presents)
}

func TestRecreate(t *testing.T) {
	h := newHarness(t)
	h.sc.AcquireErrs = []error{gpu.ErrSwapchainOutOfDate}
	require.NoError(t, h.s.Submit(noop))
	require.True(t, h.s.ResizeRequested())
	before := len(h.dev.Semaphores)

	ok, err := h.s.Recreate(0, 600)
	require.NoError(t, err)
	assert.False(t, ok, "minimized window is skipped")
	assert.True(t, h.s.ResizeRequested())
	assert.Zero(t, h.sc.Recreates)

	ok, err = h.s.Recreate(1024, 768)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.False(t, h.s.ResizeRequested())
	assert.Equal(t, 1, h.dev.WaitIdles)
	assert.Equal(t, 1, h.sc.Recreates)
	assert.Equal(t, uint32(1024), h.targets.width)
	assert.Equal(t, before+h.sc.ImageCount(), len(h.dev.Semaphores), "render-end semaphores rebuilt")
	for _, s := range h.dev.Semaphores[before-h.sc.ImageCount() : before] {
		assert.True(t, s.Released)
	}
}

func TestRecreateTargetFailure(t *testing.T) {
	h := newHarness(t)
	h.targets.err = errors.New("oom")
	_, err := h.s.Recreate(10, 10)
	assert.ErrorContains(t, err, "recreate render targets 10x10")
}

func TestNewSchedulerRejectsOtherSlotCounts(t *testing.T) {
	dev := gputest.NewDevice()
	_, err := NewScheduler(dev, gputest.NewSwapchain(dev, 2, 1, 1), nil, Options{FramesInFlight: 3})
	assert.ErrorContains(t, err, "frames in flight must be 2")
}

func TestClose(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.s.Close())
	for _, f := range h.dev.Fences {
		assert.True(t, f.Released)
	}
	for _, c := range h.dev.CommandBuffers {
		assert.True(t, c.Released)
	}
	assert.Zero(t, h.dev.LiveBuffers())
}

func TestUseAfterClose(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.s.Submit(noop))
	require.NoError(t, h.s.Close())

	assert.ErrorIs(t, h.s.Submit(noop), ErrClosed)
	_, err := h.s.Recreate(640, 480)
	assert.ErrorIs(t, err, ErrClosed)
	assert.Equal(t, 0, h.s.CurrentSlot())
	assert.Zero(t, h.sc.Recreates)
}
