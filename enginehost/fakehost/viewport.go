package fakehost

import (
	"sync"

	"github.com/Godeaux/Godot-AI-Bridge/enginehost"
)

// Viewport is an in-memory enginehost.Viewport. CaptureRGBA reports no
// frame until SetFrame installs one; tests use SetFrame to exercise
// annotation/resize/encode paths against known pixels.
type Viewport struct {
	mu sync.RWMutex

	w, h     int
	mouseX   float64
	mouseY   float64
	pixels   []byte
	hasFrame bool

	project func(x, y, z float64) (sx, sy float64, behind bool)
}

// NewViewport creates a viewport of the given size with no captured frame.
func NewViewport(w, h int) *Viewport {
	return &Viewport{w: w, h: h}
}

func (v *Viewport) Size() (w, h int) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.w, v.h
}

// Resize changes the logical viewport size.
func (v *Viewport) Resize(w, h int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.w, v.h = w, h
}

func (v *Viewport) MousePosition() (x, y float64) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.mouseX, v.mouseY
}

// SetMousePosition updates the tracked mouse position.
func (v *Viewport) SetMousePosition(x, y float64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.mouseX, v.mouseY = x, y
}

// SetFrame installs explicit RGBA pixels to be returned by CaptureRGBA.
func (v *Viewport) SetFrame(pixels []byte, w, h int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.pixels = pixels
	v.w, v.h = w, h
	v.hasFrame = true
}

// ClearFrame makes CaptureRGBA report no frame available, simulating a
// viewport texture that has not rendered yet (spec.md §7's "resource
// unavailable" case).
func (v *Viewport) ClearFrame() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.hasFrame = false
}

func (v *Viewport) CaptureRGBA() (pixels []byte, w, h int, ok bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if !v.hasFrame {
		return nil, 0, 0, false
	}
	out := make([]byte, len(v.pixels))
	copy(out, v.pixels)
	return out, v.w, v.h, true
}

// SetActiveCamera3D installs a projection function used by
// ActiveCamera3D, simulating an active 3D camera.
func (v *Viewport) SetActiveCamera3D(project func(x, y, z float64) (sx, sy float64, behind bool)) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.project = project
}

func (v *Viewport) ActiveCamera3D() (project func(x, y, z float64) (sx, sy float64, behind bool), ok bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.project == nil {
		return nil, false
	}
	return v.project, true
}

var _ enginehost.Viewport = (*Viewport)(nil)
