package camera

// ControllerBuilderOption configures an orbit controller.
type ControllerBuilderOption func(*orbitController)

// WithRadius sets the initial distance from the target.
//
// Parameters:
//   - radius: the orbit radius
//
// Returns:
//   - ControllerBuilderOption: a function that sets the radius
func WithRadius(radius float32) ControllerBuilderOption {
	return func(oc *orbitController) {
		oc.radius = radius
	}
}

// WithAzimuth sets the initial horizontal angle in radians.
func WithAzimuth(azimuth float32) ControllerBuilderOption {
	return func(oc *orbitController) {
		oc.azimuth = azimuth
	}
}

// WithElevation sets the initial vertical angle in radians.
func WithElevation(elevation float32) ControllerBuilderOption {
	return func(oc *orbitController) {
		oc.elevation = elevation
	}
}

// WithTarget sets the initial pivot point.
//
// Parameters:
//   - x, y, z: world-space coordinates
//
// Returns:
//   - ControllerBuilderOption: a function that sets the target
func WithTarget(x, y, z float32) ControllerBuilderOption {
	return func(oc *orbitController) {
		oc.target = [3]float32{x, y, z}
	}
}

// WithRadiusBounds limits how close and how far the camera may zoom.
//
// Parameters:
//   - minRadius: the smallest allowed radius
//   - maxRadius: the largest allowed radius
//
// Returns:
//   - ControllerBuilderOption: a function that sets the radius bounds
func WithRadiusBounds(minRadius, maxRadius float32) ControllerBuilderOption {
	return func(oc *orbitController) {
		oc.minRadius = minRadius
		oc.maxRadius = maxRadius
	}
}

// WithZoomSpeed scales Zoom deltas.
func WithZoomSpeed(speed float32) ControllerBuilderOption {
	return func(oc *orbitController) {
		oc.zoomSpeed = speed
	}
}
