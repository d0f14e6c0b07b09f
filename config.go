package scenert

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type WindowConfig struct {
	Title  string `yaml:"title"`
	Width  int    `yaml:"width"`
	Height int    `yaml:"height"`
}

type CameraConfig struct {
	Position    [3]float32 `yaml:"position"`
	Yaw         float32    `yaml:"yaw"`
	Pitch       float32    `yaml:"pitch"`
	Speed       float32    `yaml:"speed"`
	Sensitivity float32    `yaml:"sensitivity"`
	Zoom        float32    `yaml:"zoom"`
	Near        float32    `yaml:"near"`
}

type RenderConfig struct {
	FramesInFlight int           `yaml:"frames_in_flight"`
	FenceTimeout   time.Duration `yaml:"fence_timeout"`
	AcquireTimeout time.Duration `yaml:"acquire_timeout"`
	VSync          bool          `yaml:"vsync"`
}

type SceneConfig struct {
	Manifest      string     `yaml:"manifest"`
	Watch         bool       `yaml:"watch"`
	DecodeWorkers int        `yaml:"decode_workers"`
	AmbientColor  [3]float32 `yaml:"ambient"`
}

type Config struct {
	Debug  bool         `yaml:"debug"`
	Window WindowConfig `yaml:"window"`
	Render RenderConfig `yaml:"render"`
	Scene  SceneConfig  `yaml:"scene"`
	Camera CameraConfig `yaml:"camera"`
}

func DefaultConfig() Config {
	return Config{
		Window: WindowConfig{Title: "MeshRT Go", Width: 1280, Height: 720},
		Render: RenderConfig{
			FramesInFlight: 2,
			FenceTimeout:   2 * time.Second,
			AcquireTimeout: time.Second,
			VSync:          true,
		},
		Scene: SceneConfig{
			DecodeWorkers: 4,
			AmbientColor:  [3]float32{0.05, 0.05, 0.08},
		},
		Camera: CameraConfig{
			Position:    [3]float32{0, 1, 5},
			Yaw:         -90,
			Speed:       2.5,
			Sensitivity: 0.1,
			Zoom:        45,
			Near:        0.1,
		},
	}
}

// LoadConfig reads a YAML file on top of DefaultConfig. Keys missing from the file
// keep their default values.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %q: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %q: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config %q: %w", path, err)
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	if c.Window.Width <= 0 || c.Window.Height <= 0 {
		errs = append(errs, fmt.Errorf("window size must be positive, got %dx%d", c.Window.Width, c.Window.Height))
	}
	if c.Render.FramesInFlight != 2 {
		errs = append(errs, fmt.Errorf("frames_in_flight must be 2, got %d", c.Render.FramesInFlight))
	}
	if c.Render.FenceTimeout <= 0 {
		errs = append(errs, errors.New("fence_timeout must be positive"))
	}
	if c.Render.AcquireTimeout <= 0 {
		errs = append(errs, errors.New("acquire_timeout must be positive"))
	}
	if c.Scene.DecodeWorkers < 1 {
		errs = append(errs, fmt.Errorf("decode_workers must be at least 1, got %d", c.Scene.DecodeWorkers))
	}
	if c.Camera.Zoom < 1 || c.Camera.Zoom > 45 {
		errs = append(errs, fmt.Errorf("camera zoom must be within [1, 45], got %v", c.Camera.Zoom))
	}
	if c.Camera.Near <= 0 {
		errs = append(errs, errors.New("camera near must be positive"))
	}
	return errors.Join(errs...)
}
