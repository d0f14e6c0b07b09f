package app

import (
	"github.com/gekko3d/scenert/meshrt/rt/core"

	"github.com/go-gl/glfw/v3.3/glfw"
)

// InputState collects window input between frames. The glfw callbacks installed
// by App write into it; Loop.Frame drains it into the camera once per frame.
type InputState struct {
	Keys map[glfw.Key]bool

	// MouseCaptured enables mouse look. Tab toggles it.
	MouseCaptured bool
	MouseX        float64
	MouseY        float64

	dx, dy     float64
	scroll     float64
	firstMouse bool
}

func NewInputState() *InputState {
	return &InputState{Keys: map[glfw.Key]bool{}, firstMouse: true}
}

var moveKeys = map[glfw.Key]core.Direction{
	glfw.KeyW:         core.Forward,
	glfw.KeyS:         core.Backward,
	glfw.KeyA:         core.Left,
	glfw.KeyD:         core.Right,
	glfw.KeySpace:     core.Up,
	glfw.KeyLeftShift: core.Down,
}

func (in *InputState) OnKey(key glfw.Key, action glfw.Action) {
	switch action {
	case glfw.Press:
		in.Keys[key] = true
		if key == glfw.KeyTab {
			in.SetCaptured(!in.MouseCaptured)
		}
	case glfw.Release:
		delete(in.Keys, key)
	}
}

// SetCaptured switches mouse look. The next cursor event only records the
// position so the camera does not jump.
func (in *InputState) SetCaptured(captured bool) {
	in.MouseCaptured = captured
	in.firstMouse = true
	in.dx, in.dy = 0, 0
}

func (in *InputState) OnCursor(x, y float64) {
	if in.firstMouse {
		in.firstMouse = false
	} else if in.MouseCaptured {
		in.dx += x - in.MouseX
		in.dy += y - in.MouseY
	}
	in.MouseX, in.MouseY = x, y
}

func (in *InputState) OnScroll(dy float64) { in.scroll += dy }

// Apply moves cam by the held keys and the accumulated mouse and scroll deltas,
// then clears the deltas.
func (in *InputState) Apply(cam *core.CameraState, dt float32) {
	for key, dir := range moveKeys {
		if in.Keys[key] {
			cam.ProcessKeyboard(dir, dt)
		}
	}
	if in.dx != 0 || in.dy != 0 {
		// Screen y grows downwards.
		cam.ProcessMouse(float32(in.dx), float32(-in.dy))
	}
	if in.scroll != 0 {
		cam.ProcessScroll(float32(in.scroll))
	}
	in.dx, in.dy, in.scroll = 0, 0, 0
}
