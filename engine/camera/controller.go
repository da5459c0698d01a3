package camera

import (
	"math"
	"sync"
)

// Controller owns the camera's positional state. The camera reads position
// and target from it on every Update.
type Controller interface {
	// Position returns the camera's world-space position.
	Position() (x, y, z float32)

	// Target returns the look-at point.
	Target() (x, y, z float32)

	// SetTarget moves the pivot point and recomputes the position.
	//
	// Parameters:
	//   - x, y, z: world-space coordinates
	SetTarget(x, y, z float32)

	// Orbit rotates the camera around the target. Elevation is clamped to the
	// controller's bounds.
	//
	// Parameters:
	//   - dAzimuth: horizontal rotation in radians
	//   - dElevation: vertical rotation in radians
	Orbit(dAzimuth, dElevation float32)

	// Zoom moves the camera towards the target by delta scaled by the zoom speed.
	// Positive delta zooms in. The radius is clamped to the controller's bounds.
	Zoom(delta float32)

	// Radius returns the distance from the target.
	Radius() float32

	// Azimuth returns the horizontal angle around the Y axis in radians.
	Azimuth() float32

	// Elevation returns the vertical angle above the horizontal plane in radians.
	Elevation() float32
}

type orbitController struct {
	mu *sync.Mutex

	position [3]float32
	target   [3]float32

	radius    float32
	azimuth   float32
	elevation float32

	minRadius    float32
	maxRadius    float32
	minElevation float32
	maxElevation float32

	zoomSpeed float32
}

var _ Controller = &orbitController{}

// NewOrbitController creates a Controller that orbits a target using
// spherical coordinates.
//
// Parameters:
//   - options: functional options to configure the controller
//
// Returns:
//   - Controller: the new controller
func NewOrbitController(options ...ControllerBuilderOption) Controller {
	oc := &orbitController{
		mu:           &sync.Mutex{},
		radius:       10,
		elevation:    float32(math.Pi / 6),
		minRadius:    1,
		maxRadius:    1000,
		minElevation: -float32(math.Pi/2 - 0.1),
		maxElevation: float32(math.Pi/2 - 0.1),
		zoomSpeed:    1,
	}
	for _, option := range options {
		option(oc)
	}
	oc.clamp()
	oc.updatePosition()
	return oc
}

// updatePosition recomputes the position from spherical coordinates.
// Caller must hold the mutex.
func (oc *orbitController) updatePosition() {
	cosElev := float32(math.Cos(float64(oc.elevation)))
	sinElev := float32(math.Sin(float64(oc.elevation)))
	cosAzim := float32(math.Cos(float64(oc.azimuth)))
	sinAzim := float32(math.Sin(float64(oc.azimuth)))

	oc.position[0] = oc.target[0] + oc.radius*cosElev*sinAzim
	oc.position[1] = oc.target[1] + oc.radius*sinElev
	oc.position[2] = oc.target[2] + oc.radius*cosElev*cosAzim
}

func (oc *orbitController) clamp() {
	oc.radius = min(max(oc.radius, oc.minRadius), oc.maxRadius)
	oc.elevation = min(max(oc.elevation, oc.minElevation), oc.maxElevation)
}

func (oc *orbitController) Position() (x, y, z float32) {
	oc.mu.Lock()
	defer oc.mu.Unlock()
	return oc.position[0], oc.position[1], oc.position[2]
}

func (oc *orbitController) Target() (x, y, z float32) {
	oc.mu.Lock()
	defer oc.mu.Unlock()
	return oc.target[0], oc.target[1], oc.target[2]
}

func (oc *orbitController) SetTarget(x, y, z float32) {
	oc.mu.Lock()
	defer oc.mu.Unlock()
	oc.target = [3]float32{x, y, z}
	oc.updatePosition()
}

func (oc *orbitController) Orbit(dAzimuth, dElevation float32) {
	oc.mu.Lock()
	defer oc.mu.Unlock()
	oc.azimuth += dAzimuth
	oc.elevation += dElevation
	oc.clamp()
	oc.updatePosition()
}

func (oc *orbitController) Zoom(delta float32) {
	oc.mu.Lock()
	defer oc.mu.Unlock()
	oc.radius -= delta * oc.zoomSpeed
	oc.clamp()
	oc.updatePosition()
}

func (oc *orbitController) Radius() float32 {
	oc.mu.Lock()
	defer oc.mu.Unlock()
	return oc.radius
}

func (oc *orbitController) Azimuth() float32 {
	oc.mu.Lock()
	defer oc.mu.Unlock()
	return oc.azimuth
}

func (oc *orbitController) Elevation() float32 {
	oc.mu.Lock()
	defer oc.mu.Unlock()
	return oc.elevation
}
