package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/gekko3d/scenert"
	"github.com/gekko3d/scenert/meshrt/rt/assets"
	"github.com/gekko3d/scenert/meshrt/rt/core"
	"github.com/gekko3d/scenert/meshrt/rt/frame"
	"github.com/gekko3d/scenert/meshrt/rt/gpu"
	"github.com/gekko3d/scenert/meshrt/rt/render"

	"github.com/go-gl/mathgl/mgl32"
)

// TextureBinder is the pipeline side of texture binding. ClearTextures drops the
// previous scene's slots before a new scene writes its own.
type TextureBinder interface {
	gpu.Binder
	ClearTextures()
}

// Loop drives one frame at a time on top of any gpu.Device. App builds it over
// wgpu; tests build it over gputest.
type Loop struct {
	Device    gpu.Device
	Scheduler *frame.Scheduler
	Registry  *core.Registry
	Builder   *assets.Builder
	Renderer  *render.SceneRenderer
	Binder    TextureBinder
	Importer  assets.Importer

	Camera   *core.CameraState
	Input    *InputState
	Overlay  *Overlay
	Profiler *Profiler

	// Reloads requests a scene reload between frames. Nil disables reloading.
	Reloads <-chan struct{}
	// Extent reports the drawable size used when the swapchain is rebuilt.
	Extent func() (uint32, uint32)

	Ambient    mgl32.Vec3
	ClearColor [4]float32

	log scenert.Logger
}

type LoopOptions struct {
	Device    gpu.Device
	Scheduler *frame.Scheduler
	Registry  *core.Registry
	Binder    TextureBinder
	Importer  assets.Importer
	Camera    *core.CameraState
	Reloads   <-chan struct{}
	Extent    func() (uint32, uint32)
	Ambient   mgl32.Vec3
	Logger    scenert.Logger
}

func NewLoop(opts LoopOptions) *Loop {
	prof := NewProfiler()
	cam := opts.Camera
	if cam == nil {
		cam = core.NewCameraState()
	}
	return &Loop{
		Device:     opts.Device,
		Scheduler:  opts.Scheduler,
		Registry:   opts.Registry,
		Builder:    assets.NewBuilder(opts.Registry, opts.Device, opts.Logger),
		Renderer:   render.NewSceneRenderer(opts.Registry, core.SceneHandle{}, nil, opts.Logger),
		Binder:     opts.Binder,
		Importer:   opts.Importer,
		Camera:     cam,
		Input:      NewInputState(),
		Overlay:    NewOverlay(prof),
		Profiler:   prof,
		Reloads:    opts.Reloads,
		Extent:     opts.Extent,
		Ambient:    opts.Ambient,
		ClearColor: [4]float32{0.1, 0.1, 0.12, 1},
		log:        scenert.Sub(opts.Logger, "app"),
	}
}

// ErrTextureBind reports a scene that loaded and replaced the previous one but
// whose textures could not be bound. Its draws sample the fallback texture.
var ErrTextureBind = errors.New("scene textures not bound")

// Load imports the scene and binds it. An error wrapping assets.ErrAssetLoad
// leaves the previous scene bound. ErrTextureBind means the new scene is bound
// with every texture slot cleared.
func (l *Loop) Load(ctx context.Context) error {
	defer l.Profiler.Scope("load")()
	h, err := l.Builder.Load(ctx, l.Importer)
	if err != nil {
		return err
	}
	_, res := l.Builder.Current()
	if l.Binder != nil {
		l.Binder.ClearTextures()
	}
	l.Renderer.Bind(h, res)
	if l.Binder != nil {
		if err := l.Renderer.WriteTextures(l.Binder, h); err != nil {
			l.Binder.ClearTextures()
			return fmt.Errorf("%w: %w", ErrTextureBind, err)
		}
	}
	l.Overlay.SelectedLight = 0
	l.Overlay.LightsChanged = false
	return nil
}

// Scene returns the bound scene, or nil before the first successful load.
func (l *Loop) Scene() *core.Scene {
	if l.Renderer.Scene.IsNil() {
		return nil
	}
	scene, err := l.Registry.Scene(l.Renderer.Scene)
	if err != nil {
		return nil
	}
	return scene
}

func (l *Loop) pendingReload() bool {
	if l.Reloads == nil {
		return false
	}
	select {
	case <-l.Reloads:
		return true
	default:
		return false
	}
}

// Frame advances the camera by dt seconds, applies pending edits and renders one
// frame. Reload failures are logged: a failed import keeps the old scene, a
// failed texture bind keeps the new scene with fallback textures. Every other
// error comes from the scene update or the scheduler and is returned as is.
func (l *Loop) Frame(ctx context.Context, dt float32) error {
	l.Profiler.Reset()

	if l.pendingReload() {
		if err := l.Load(ctx); errors.Is(err, assets.ErrAssetLoad) {
			l.log.Errorf("reload failed, keeping the current scene: %v", err)
		} else if err != nil {
			l.log.Errorf("scene reloaded without textures: %v", err)
		} else {
			l.log.Infof("scene reloaded")
		}
	}

	l.Input.Apply(l.Camera, dt)

	if l.Overlay.LightsChanged {
		if err := l.Renderer.UpdateLightBuffer(); err != nil && !errors.Is(err, render.ErrNoResources) {
			return err
		}
		l.Overlay.LightsChanged = false
	}

	if !l.Renderer.Scene.IsNil() {
		end := l.Profiler.Scope("update")
		err := l.Renderer.UpdateNodes(mgl32.Ident4(), l.Renderer.Scene)
		end()
		if err != nil {
			return err
		}
	}

	if l.Scheduler.ResizeRequested() && l.Extent != nil {
		w, h := l.Extent()
		if _, err := l.Scheduler.Recreate(w, h); err != nil {
			return err
		}
	}

	end := l.Profiler.Scope("frame")
	err := l.Scheduler.Submit(l.record)
	end()
	if err != nil {
		return err
	}

	stats := l.Renderer.Stats()
	l.Profiler.SetCount("drawn", stats.Drawn)
	l.Profiler.SetCount("culled", stats.Culled)
	l.Profiler.SetCount("indices", int(stats.Indices))
	return nil
}

func (l *Loop) record(f *frame.Frame) error {
	defer l.Profiler.Scope("record")()

	aspect := f.Aspect()
	view := l.Camera.View()
	proj := l.Camera.Projection(aspect)
	vp := proj.Mul4(view)

	var numLights uint32
	if l.Renderer.Resources != nil {
		numLights = uint32(l.Renderer.Resources.LightCount)
	}
	data := gpu.PackSceneData(gpu.SceneData{
		View:         view,
		Proj:         proj,
		ViewProj:     vp,
		CameraPos:    l.Camera.Position,
		AmbientColor: l.Ambient,
		NumLights:    numLights,
	})
	if err := l.Device.WriteBuffer(f.SceneData, 0, data); err != nil {
		return fmt.Errorf("scene data: %w", err)
	}

	pass := gpu.RenderPass{
		Color:      f.Image.Image,
		SceneData:  f.SceneData,
		ClearColor: l.ClearColor,
		ClearDepth: 1,
	}
	if f.Targets != nil {
		if c := f.Targets.Color(); c != nil {
			pass.Color = c
		}
		pass.Depth = f.Targets.Depth()
	}
	if err := f.Cmd.BeginRenderPass(pass); err != nil {
		return err
	}
	var drawErr error
	if !l.Renderer.Scene.IsNil() {
		drawErr = l.Renderer.DrawScene(f.Cmd, l.Renderer.Scene, vp)
	}
	return errors.Join(drawErr, f.Cmd.EndRenderPass())
}

// Close waits for the device and releases the frame slots and the bound scene.
func (l *Loop) Close() error {
	return errors.Join(l.Scheduler.Close(), l.Builder.Close())
}
