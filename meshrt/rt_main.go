package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"runtime"

	"github.com/gekko3d/scenert"
	"github.com/gekko3d/scenert/meshrt/rt/app"
	"github.com/gekko3d/scenert/meshrt/rt/frame"
	"github.com/gekko3d/scenert/meshrt/rt/gpu"
	"github.com/gekko3d/scenert/meshrt/rt/handle"

	"github.com/go-gl/glfw/v3.3/glfw"
)

func init() {
	runtime.LockOSThread()
}

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "YAML config file")
	scene := flag.String("scene", "", "Scene manifest, overrides the config file")
	watch := flag.Bool("watch", false, "Reload the scene when the manifest changes")
	debug := flag.Bool("debug", false, "Enable debug logging and per-second profiler output")
	flag.Parse()

	cfg := scenert.DefaultConfig()
	if *configPath != "" {
		var err error
		if cfg, err = scenert.LoadConfig(*configPath); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 2
		}
	}
	if *scene != "" {
		cfg.Scene.Manifest = *scene
	}
	if *watch {
		cfg.Scene.Watch = true
	}
	if *debug {
		cfg.Debug = true
	}

	logger := scenert.NewDefaultLogger("meshrt", cfg.Debug)

	if err := glfw.Init(); err != nil {
		logger.Errorf("glfw init: %v", err)
		return 1
	}
	defer glfw.Terminate()

	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	window, err := glfw.CreateWindow(cfg.Window.Width, cfg.Window.Height, cfg.Window.Title, nil, nil)
	if err != nil {
		logger.Errorf("create window: %v", err)
		return 1
	}
	defer window.Destroy()

	ctx := context.Background()
	application := app.NewApp(window, cfg, logger)
	defer func() {
		if err := application.Close(); err != nil {
			logger.Warnf("shutdown: %v", err)
		}
	}()
	if err := application.Init(ctx); err != nil {
		logger.Errorf("init: %v", err)
		return 1
	}
	application.InstallCallbacks()

	for !window.ShouldClose() {
		glfw.PollEvents()
		if err := application.Update(ctx); err != nil {
			logger.Errorf("%s: %v", diagnose(err), err)
			return 1
		}
	}
	return 0
}

func diagnose(err error) string {
	switch {
	case errors.Is(err, frame.ErrDeviceSyncTimeout):
		return "GPU stopped responding"
	case errors.Is(err, gpu.ErrDeviceLost):
		return "device lost"
	case errors.Is(err, handle.ErrInvalidHandle):
		return "stale resource handle"
	}
	return "frame failed"
}
