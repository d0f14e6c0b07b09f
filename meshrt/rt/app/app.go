package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gekko3d/scenert"
	"github.com/gekko3d/scenert/meshrt/rt/assets"
	"github.com/gekko3d/scenert/meshrt/rt/core"
	"github.com/gekko3d/scenert/meshrt/rt/frame"
	"github.com/gekko3d/scenert/meshrt/rt/gpu/webgpu"
	"github.com/gekko3d/scenert/meshrt/rt/shaders"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/cogentcore/webgpu/wgpuglfw"
	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/go-gl/mathgl/mgl32"
)

// reloadDebounce coalesces the bursts of events editors produce on save.
const reloadDebounce = 200 * time.Millisecond

type App struct {
	Window   *glfw.Window
	Instance *wgpu.Instance
	Adapter  *wgpu.Adapter
	Surface  *wgpu.Surface

	Device    *webgpu.Device
	Swapchain *webgpu.Swapchain
	Pipeline  *webgpu.MeshPipeline
	Targets   *webgpu.Targets

	Registry *core.Registry
	Loop     *Loop
	Decoder  *assets.TextureDecoder
	Watcher  *assets.Watcher

	Config    scenert.Config
	DebugMode bool
	LastTime  float64

	resized bool
	log     scenert.Logger
}

func NewApp(window *glfw.Window, cfg scenert.Config, logger scenert.Logger) *App {
	return &App{
		Window:    window,
		Config:    cfg,
		DebugMode: cfg.Debug,
		Registry:  core.NewRegistry(),
		log:       scenert.Sub(logger, "app"),
	}
}

func GetSurfaceDescriptor(w *glfw.Window) *wgpu.SurfaceDescriptor {
	return wgpuglfw.GetSurfaceDescriptor(w)
}

func (a *App) Init(ctx context.Context) error {
	a.Instance = wgpu.CreateInstance(nil)
	a.Surface = a.Instance.CreateSurface(GetSurfaceDescriptor(a.Window))

	adapter, err := a.Instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		CompatibleSurface: a.Surface,
		PowerPreference:   wgpu.PowerPreferenceHighPerformance,
	})
	if err != nil {
		return fmt.Errorf("request adapter: %w", err)
	}
	a.Adapter = adapter

	device, err := adapter.RequestDevice(nil)
	if err != nil {
		return fmt.Errorf("request device: %w", err)
	}
	a.Device = webgpu.NewDevice(device, a.log)

	width, height := a.framebufferSize()
	a.Swapchain = webgpu.NewSwapchain(a.Device, a.Surface, adapter, width, height, a.Config.Render.VSync)

	a.Pipeline, err = webgpu.NewMeshPipeline(a.Device, shaders.MeshWGSL, a.Swapchain.Format())
	if err != nil {
		return err
	}
	a.Device.SetPipeline(a.Pipeline)

	a.Targets, err = webgpu.NewTargets(a.Device, width, height)
	if err != nil {
		return err
	}

	sched, err := frame.NewScheduler(a.Device, a.Swapchain, a.Targets, frame.Options{
		FramesInFlight: a.Config.Render.FramesInFlight,
		FenceTimeout:   a.Config.Render.FenceTimeout,
		AcquireTimeout: a.Config.Render.AcquireTimeout,
		Logger:         a.log,
	})
	if err != nil {
		return err
	}

	a.Decoder = assets.NewTextureDecoder(a.Config.Scene.DecodeWorkers, a.log)
	var reloads <-chan struct{}
	if a.Config.Scene.Watch && a.Config.Scene.Manifest != "" {
		a.Watcher, err = assets.NewWatcher(a.Config.Scene.Manifest, reloadDebounce, a.log)
		if err != nil {
			// Rendering works without hot reload.
			a.log.Warnf("scene watch disabled: %v", err)
		} else {
			reloads = a.Watcher.Reloads()
		}
	}

	a.Loop = NewLoop(LoopOptions{
		Device:    a.Device,
		Scheduler: sched,
		Registry:  a.Registry,
		Binder:    a.Pipeline,
		Importer:  &assets.ManifestImporter{Path: a.Config.Scene.Manifest, Decoder: a.Decoder},
		Camera:    cameraFromConfig(a.Config.Camera),
		Reloads:   reloads,
		Extent:    a.framebufferSize,
		Ambient:   mgl32.Vec3(a.Config.Scene.AmbientColor),
		Logger:    a.log,
	})

	if a.Config.Scene.Manifest != "" {
		if err := a.Loop.Load(ctx); errors.Is(err, ErrTextureBind) {
			a.log.Warnf("%v", err)
		} else if err != nil {
			return err
		}
	}
	a.LastTime = glfw.GetTime()
	return nil
}

func cameraFromConfig(cfg scenert.CameraConfig) *core.CameraState {
	cam := core.NewCameraState()
	cam.Position = mgl32.Vec3(cfg.Position)
	cam.Yaw = cfg.Yaw
	cam.Pitch = cfg.Pitch
	cam.Speed = cfg.Speed
	cam.Sensitivity = cfg.Sensitivity
	cam.Zoom = cfg.Zoom
	cam.Near = cfg.Near
	cam.UpdateVectors()
	return cam
}

func (a *App) framebufferSize() (uint32, uint32) {
	w, h := a.Window.GetFramebufferSize()
	return uint32(max(w, 0)), uint32(max(h, 0))
}

// InstallCallbacks routes window events into the loop's input state.
func (a *App) InstallCallbacks() {
	in := a.Loop.Input

	a.Window.SetFramebufferSizeCallback(func(w *glfw.Window, width, height int) {
		a.resized = true
	})
	a.Window.SetCursorPosCallback(func(w *glfw.Window, x, y float64) {
		in.OnCursor(x, y)
	})
	a.Window.SetScrollCallback(func(w *glfw.Window, xoff, yoff float64) {
		in.OnScroll(yoff)
	})
	a.Window.SetKeyCallback(func(w *glfw.Window, key glfw.Key, scancode int, action glfw.Action, mods glfw.ModifierKey) {
		captured := in.MouseCaptured
		in.OnKey(key, action)
		if in.MouseCaptured != captured {
			if in.MouseCaptured {
				w.SetInputMode(glfw.CursorMode, glfw.CursorDisabled)
			} else {
				w.SetInputMode(glfw.CursorMode, glfw.CursorNormal)
			}
		}
		if key == glfw.KeyEscape && action == glfw.Press {
			w.SetShouldClose(true)
		}
		if action == glfw.Press || action == glfw.Repeat {
			a.editLight(key)
		}
	})
}

func (a *App) editLight(key glfw.Key) {
	scene := a.Loop.Scene()
	if scene == nil || len(scene.Lights) == 0 {
		return
	}
	o := a.Loop.Overlay
	var err error
	switch key {
	case glfw.KeyL:
		o.SelectNextLight(scene)
	case glfw.KeyEqual, glfw.KeyKPAdd:
		err = o.ScaleLight(a.Registry, scene, 1.1)
	case glfw.KeyMinus, glfw.KeyKPSubtract:
		err = o.ScaleLight(a.Registry, scene, 0.909)
	case glfw.KeyR:
		err = o.TintLight(a.Registry, scene, mgl32.Vec3{1, 0.3, 0.3})
	case glfw.KeyN:
		err = o.TintLight(a.Registry, scene, mgl32.Vec3{1, 1, 1})
	}
	if err != nil {
		a.log.Warnf("light edit: %v", err)
	}
}

// Update runs one frame. Returned errors are fatal: device loss or a GPU that
// stopped signalling.
func (a *App) Update(ctx context.Context) error {
	now := glfw.GetTime()
	dt := float32(now - a.LastTime)
	a.LastTime = now

	if a.resized {
		w, h := a.framebufferSize()
		ok, err := a.Loop.Scheduler.Recreate(w, h)
		if err != nil {
			return err
		}
		// A minimized window keeps the flag until it has a size again.
		a.resized = !ok
		if a.resized {
			return nil
		}
	}

	if err := a.Loop.Frame(ctx, dt); err != nil {
		return err
	}

	if a.Loop.Overlay.Tick(now) {
		summary := a.Loop.Overlay.Summary(a.Loop.Scene(), a.Loop.Renderer.Stats())
		a.Window.SetTitle(a.Config.Window.Title + " | " + summary)
		if a.DebugMode {
			a.log.Debugf("frame %d\n%s", a.Loop.Scheduler.FrameNumber(), a.Loop.Profiler.Report())
		}
	}
	return nil
}

// Close releases everything Init created, in reverse order.
func (a *App) Close() error {
	var errs []error
	if a.Watcher != nil {
		errs = append(errs, a.Watcher.Close())
	}
	if a.Loop != nil {
		errs = append(errs, a.Loop.Close())
	}
	if a.Decoder != nil {
		a.Decoder.Close()
	}
	if a.Targets != nil {
		a.Targets.Release()
	}
	if a.Pipeline != nil {
		a.Pipeline.Release()
	}
	if a.Swapchain != nil {
		a.Swapchain.Release()
	}
	if a.Device != nil {
		a.Device.Device.Release()
	}
	if a.Surface != nil {
		a.Surface.Release()
	}
	if a.Adapter != nil {
		a.Adapter.Release()
	}
	if a.Instance != nil {
		a.Instance.Release()
	}
	return errors.Join(errs...)
}
