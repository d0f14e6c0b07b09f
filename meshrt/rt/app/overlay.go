package app

import (
	"fmt"

	"github.com/gekko3d/scenert/meshrt/rt/core"
	"github.com/gekko3d/scenert/meshrt/rt/render"

	"github.com/go-gl/mathgl/mgl32"
)

// Overlay is the text HUD and light editor. App shows its summary in the window
// title and prints the profiler report in debug mode.
type Overlay struct {
	Profiler *Profiler

	// LightsChanged is raised by light edits. The loop re-uploads the light
	// buffer between frames and clears it.
	LightsChanged bool
	SelectedLight int

	FrameCount int
	FPS        float64
	FPSTime    float64
}

func NewOverlay(p *Profiler) *Overlay {
	return &Overlay{Profiler: p}
}

// Tick counts a frame at time now (seconds) and reports whether the FPS figure
// was refreshed, which happens once a second.
func (o *Overlay) Tick(now float64) bool {
	if o.FPSTime == 0 {
		o.FPSTime = now
		return false
	}
	o.FrameCount++
	if elapsed := now - o.FPSTime; elapsed >= 1 {
		o.FPS = float64(o.FrameCount) / elapsed
		o.FrameCount = 0
		o.FPSTime = now
		return true
	}
	return false
}

// SelectNextLight cycles the edited light through the scene's lights.
func (o *Overlay) SelectNextLight(scene *core.Scene) {
	if len(scene.Lights) == 0 {
		o.SelectedLight = 0
		return
	}
	o.SelectedLight = (o.SelectedLight + 1) % len(scene.Lights)
}

func (o *Overlay) selected(reg *core.Registry, scene *core.Scene) (*core.Light, error) {
	if o.SelectedLight >= len(scene.Lights) {
		return nil, fmt.Errorf("light %d of %d", o.SelectedLight, len(scene.Lights))
	}
	return reg.Light(scene.Lights[o.SelectedLight])
}

// ScaleLight multiplies the selected light's intensity by factor.
func (o *Overlay) ScaleLight(reg *core.Registry, scene *core.Scene, factor float32) error {
	l, err := o.selected(reg, scene)
	if err != nil {
		return err
	}
	l.Intensity *= factor
	o.LightsChanged = true
	return nil
}

// TintLight replaces the selected light's color.
func (o *Overlay) TintLight(reg *core.Registry, scene *core.Scene, color mgl32.Vec3) error {
	l, err := o.selected(reg, scene)
	if err != nil {
		return err
	}
	l.Color = color
	o.LightsChanged = true
	return nil
}

// Summary is the one-line status shown in the window title.
func (o *Overlay) Summary(scene *core.Scene, stats render.Stats) string {
	s := fmt.Sprintf("%.0f fps | %d/%d drawn | %d culled", o.FPS, stats.Drawn, stats.Candidates, stats.Culled)
	if scene != nil && o.SelectedLight < len(scene.LightNames) {
		s += " | light " + scene.LightNames[o.SelectedLight]
	}
	return s
}
