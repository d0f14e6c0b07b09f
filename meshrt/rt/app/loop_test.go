package app

import (
	"context"
	"encoding/binary"
	"errors"
	"image"
	"image/color"
	"testing"
	"time"

	"github.com/gekko3d/scenert/meshrt/rt/assets"
	"github.com/gekko3d/scenert/meshrt/rt/core"
	"github.com/gekko3d/scenert/meshrt/rt/frame"
	"github.com/gekko3d/scenert/meshrt/rt/gpu"
	"github.com/gekko3d/scenert/meshrt/rt/gpu/gputest"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clearingBinder struct {
	*gputest.Binder
	clears int
	fail   error
}

func (b *clearingBinder) WriteImage(slot uint32, img gpu.Image, sampler gpu.Sampler) error {
	if b.fail != nil {
		return b.fail
	}
	return b.Binder.WriteImage(slot, img, sampler)
}

func (b *clearingBinder) ClearTextures() {
	b.clears++
	b.Images = map[uint32]gpu.Image{}
	b.Samplers = map[uint32]gpu.Sampler{}
}

type stubImporter struct {
	batch func() *assets.Batch
	err   error
}

func (s *stubImporter) Import(context.Context) (*assets.Batch, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.batch(), nil
}

func checker() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.RGBA{255, 255, 255, 255})
	img.Set(1, 1, color.RGBA{255, 255, 255, 255})
	return img
}

// yardBatch puts one cube in front of the default camera and one behind it.
func yardBatch() *assets.Batch {
	b := &assets.Batch{Name: "yard"}
	cube := assets.Cube(1, mgl32.Vec4{1, 1, 1, 1})
	first, count := b.Append(cube)
	b.Textures = []assets.TextureData{assets.FromRGBA("checker", checker(), false)}
	b.Materials = []assets.MaterialData{{
		Name:            "checker",
		BaseColorFactor: mgl32.Vec4{1, 1, 1, 1},
		BaseColor:       0,
		MetalRough:      assets.None,
		Normal:          assets.None,
		Occlusion:       assets.None,
		Emissive:        assets.None,
	}}
	b.Meshes = []assets.MeshData{{Name: "cube", Surfaces: []assets.SurfaceData{
		{FirstIndex: first, IndexCount: count, Bounds: cube.Bounds(), Material: 0},
	}}}
	b.Lights = []core.Light{{Type: core.LightPoint, Color: mgl32.Vec3{1, 1, 1}, Intensity: 1, Range: 20}}
	b.Nodes = []assets.NodeData{
		{Name: "front", Local: mgl32.Ident4(), Parent: assets.None, Mesh: 0, Light: assets.None},
		{Name: "behind", Local: mgl32.Translate3D(0, 0, 20), Parent: assets.None, Mesh: 0, Light: assets.None},
		{Name: "lamp", Local: mgl32.Translate3D(0, 3, 0), Parent: assets.None, Mesh: assets.None, Light: 0},
	}
	return b
}

type loopFixture struct {
	dev     *gputest.Device
	sc      *gputest.Swapchain
	binder  *clearingBinder
	imp     *stubImporter
	reloads chan struct{}
	loop    *Loop
}

func newLoopFixture(t *testing.T) *loopFixture {
	t.Helper()
	fx := &loopFixture{
		dev:     gputest.NewDevice(),
		binder:  &clearingBinder{Binder: gputest.NewBinder()},
		imp:     &stubImporter{batch: yardBatch},
		reloads: make(chan struct{}, 1),
	}
	fx.sc = gputest.NewSwapchain(fx.dev, 3, 800, 600)
	sched, err := frame.NewScheduler(fx.dev, fx.sc, nil, frame.Options{FenceTimeout: 10 * time.Millisecond})
	require.NoError(t, err)
	fx.loop = NewLoop(LoopOptions{
		Device:    fx.dev,
		Scheduler: sched,
		Registry:  core.NewRegistry(),
		Binder:    fx.binder,
		Importer:  fx.imp,
		Reloads:   fx.reloads,
		Extent:    func() (uint32, uint32) { return 1024, 768 },
		Ambient:   mgl32.Vec3{0.1, 0.1, 0.1},
	})
	return fx
}

func (fx *loopFixture) cmd(slot int) *gputest.CommandBuffer {
	return fx.loop.Scheduler.Slot(slot).Cmd.(*gputest.CommandBuffer)
}

func TestLoopFrameWithoutScene(t *testing.T) {
	fx := newLoopFixture(t)

	require.NoError(t, fx.loop.Frame(context.Background(), 0.016))

	cmd := fx.cmd(0)
	assert.Equal(t, []string{"begin", "begin-pass", "end-pass", "end"}, cmd.Ops)
	require.Len(t, cmd.Passes, 1)
	assert.NotNil(t, cmd.Passes[0].Color)
	assert.Nil(t, cmd.Passes[0].Depth)
	assert.Equal(t, uint64(1), fx.loop.Scheduler.FrameNumber())
}

func TestLoopFrameDrawsVisibleNodes(t *testing.T) {
	fx := newLoopFixture(t)
	require.NoError(t, fx.loop.Load(context.Background()))
	require.NotNil(t, fx.loop.Scene())
	assert.Equal(t, 1, fx.binder.clears)
	assert.Len(t, fx.binder.Images, 1)

	require.NoError(t, fx.loop.Frame(context.Background(), 0.016))

	cmd := fx.cmd(0)
	require.Len(t, cmd.Draws, 1)
	assert.Equal(t, uint32(36), cmd.Draws[0].IndexCount)
	assert.Equal(t, uint32(1), cmd.Draws[0].Constants.NumLights)

	stats := fx.loop.Renderer.Stats()
	assert.Equal(t, 1, stats.Drawn)
	assert.Equal(t, 1, stats.Culled)
	assert.Equal(t, 1, fx.loop.Profiler.Counts["drawn"])

	data := fx.loop.Scheduler.Slot(0).SceneData.(*gputest.Buffer).Data
	assert.Equal(t, uint32(1), binary.LittleEndian.Uint32(data[224:]))
}

func TestLoopReload(t *testing.T) {
	fx := newLoopFixture(t)
	ctx := context.Background()
	require.NoError(t, fx.loop.Load(ctx))
	first := fx.loop.Renderer.Scene

	t.Run("failure keeps the scene", func(t *testing.T) {
		fx.imp.err = errors.New("manifest truncated")
		fx.reloads <- struct{}{}

		require.NoError(t, fx.loop.Frame(ctx, 0.016))
		assert.Equal(t, first, fx.loop.Renderer.Scene)
		assert.Len(t, fx.cmd(0).Draws, 1)
		assert.Equal(t, 1, fx.binder.clears)
	})

	t.Run("success swaps the scene", func(t *testing.T) {
		fx.imp.err = nil
		fx.reloads <- struct{}{}

		require.NoError(t, fx.loop.Frame(ctx, 0.016))
		assert.NotEqual(t, first, fx.loop.Renderer.Scene)
		_, err := fx.loop.Registry.Scene(first)
		assert.Error(t, err)
		assert.Equal(t, 2, fx.binder.clears)
		assert.Len(t, fx.cmd(1).Draws, 1)
	})
}

func TestLoopLightEditsReupload(t *testing.T) {
	fx := newLoopFixture(t)
	ctx := context.Background()
	require.NoError(t, fx.loop.Load(ctx))
	lights := fx.loop.Renderer.Resources.LightBuffer.(*gputest.Buffer)
	writes := lights.Writes

	require.NoError(t, fx.loop.Overlay.ScaleLight(fx.loop.Registry, fx.loop.Scene(), 2))
	assert.True(t, fx.loop.Overlay.LightsChanged)

	require.NoError(t, fx.loop.Frame(ctx, 0.016))
	assert.False(t, fx.loop.Overlay.LightsChanged)
	assert.Equal(t, writes+1, lights.Writes)
}

func TestLoopRecreatesOutOfDateSwapchain(t *testing.T) {
	fx := newLoopFixture(t)
	ctx := context.Background()
	fx.sc.AcquireErrs = []error{gpu.ErrSwapchainOutOfDate}

	require.NoError(t, fx.loop.Frame(ctx, 0.016))
	assert.True(t, fx.loop.Scheduler.ResizeRequested())
	assert.Equal(t, uint64(0), fx.loop.Scheduler.FrameNumber())

	require.NoError(t, fx.loop.Frame(ctx, 0.016))
	assert.Equal(t, 1, fx.sc.Recreates)
	w, h := fx.sc.Extent()
	assert.Equal(t, [2]uint32{1024, 768}, [2]uint32{w, h})
	assert.False(t, fx.loop.Scheduler.ResizeRequested())
	assert.Equal(t, uint64(1), fx.loop.Scheduler.FrameNumber())
}

func TestLoopSurfacesFenceTimeout(t *testing.T) {
	fx := newLoopFixture(t)
	ctx := context.Background()
	fx.dev.HangFences = true

	require.NoError(t, fx.loop.Frame(ctx, 0.016))
	require.NoError(t, fx.loop.Frame(ctx, 0.016))
	err := fx.loop.Frame(ctx, 0.016)
	assert.ErrorIs(t, err, frame.ErrDeviceSyncTimeout)
}

func TestLoopClose(t *testing.T) {
	fx := newLoopFixture(t)
	require.NoError(t, fx.loop.Load(context.Background()))
	require.NoError(t, fx.loop.Frame(context.Background(), 0.016))

	require.NoError(t, fx.loop.Close())
	assert.Zero(t, fx.dev.LiveBuffers())
	assert.Zero(t, fx.dev.LiveImages())
}

func TestLoopReloadWithUnboundTextures(t *testing.T) {
	fx := newLoopFixture(t)
	ctx := context.Background()
	require.NoError(t, fx.loop.Load(ctx))
	first := fx.loop.Renderer.Scene

	fx.binder.fail = errors.New("bind group rejected")
	err := fx.loop.Load(ctx)
	require.ErrorIs(t, err, ErrTextureBind)
	assert.NotErrorIs(t, err, assets.ErrAssetLoad)

	// The new scene replaced the old one and renders with no texture slots.
	assert.NotEqual(t, first, fx.loop.Renderer.Scene)
	_, err = fx.loop.Registry.Scene(first)
	assert.Error(t, err)
	assert.Empty(t, fx.binder.Images)

	require.NoError(t, fx.loop.Frame(ctx, 0.016))
	assert.Len(t, fx.cmd(0).Draws, 1)
}
