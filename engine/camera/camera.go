// Package camera provides a perspective camera whose uniform lives in a
// multibuffered camera buffer. Update writes the uniform only when it changed,
// so an idle camera never wakes the scheduler.
package camera

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/Carmen-Shannon/oxy-sync/common"
	"github.com/Carmen-Shannon/oxy-sync/engine/bind_target"
	"github.com/Carmen-Shannon/oxy-sync/engine/dirty"
	"github.com/Carmen-Shannon/oxy-sync/engine/logging"
	"github.com/Carmen-Shannon/oxy-sync/engine/multibuffer"
	"github.com/Carmen-Shannon/oxy-sync/engine/resource"
)

// ErrBufferSize is returned when the camera buffer cannot hold the uniform.
var ErrBufferSize = errors.New("camera: buffer smaller than the camera uniform")

type cameraImpl struct {
	buf *resource.Buffer

	mu      *sync.Mutex
	writeMu *sync.Mutex

	up     [3]float32
	fov    float32
	aspect float32
	near   float32
	far    float32

	viewMatrix           [16]float32
	projectionMatrix     [16]float32
	viewProjectionMatrix [16]float32

	controller Controller

	written bool
	last    Uniform
}

// Camera defines the interface for the camera system.
// A Camera is the bind target of its uniform buffer: binding it to a scheduler
// makes every uniform change trigger a frame.
type Camera interface {
	bind_target.BindTarget

	// Up returns the camera's up vector.
	//
	// Returns:
	//   - x, y, z: up vector components
	Up() (x, y, z float32)

	// Fov returns the field of view in radians.
	Fov() float32

	// Aspect returns the aspect ratio (width / height).
	Aspect() float32

	// Clip returns the near and far clipping plane distances.
	Clip() (near, far float32)

	// ViewMatrix returns the view matrix computed by the last Update (column-major).
	ViewMatrix() [16]float32

	// ProjectionMatrix returns the projection matrix computed by the last Update (column-major).
	ProjectionMatrix() [16]float32

	// ViewProjectionMatrix returns the combined matrix computed by the last Update (column-major).
	ViewProjectionMatrix() [16]float32

	// Controller returns the attached controller.
	Controller() Controller

	// Buffer returns the multibuffered uniform buffer.
	Buffer() *resource.Buffer

	// SetUp sets the camera's up vector. Takes effect on the next Update.
	SetUp(x, y, z float32)

	// SetFov sets the field of view in radians. Takes effect on the next Update.
	SetFov(fov float32)

	// SetAspect sets the aspect ratio. Takes effect on the next Update.
	SetAspect(aspect float32)

	// Update recomputes the matrices from the controller and writes the uniform
	// into the buffer when it differs from the last one written.
	//
	// Parameters:
	//   - ctx: bounds the wait for a free staging instance
	//
	// Returns:
	//   - error: a context or pool error; the uniform is retried on the next Update
	Update(ctx context.Context) error
}

var _ Camera = &cameraImpl{}

// NewCamera creates a Camera writing into buf with default perspective settings.
//
// Parameters:
//   - buf: the uniform buffer, at least UniformSize bytes; usually a camera buffer
//   - options: functional options to configure the camera
//
// Returns:
//   - Camera: the new camera
//   - error: ErrBufferSize if buf is too small
func NewCamera(buf *resource.Buffer, options ...CameraBuilderOption) (Camera, error) {
	if buf == nil || buf.ByteLength() < UniformSize {
		return nil, ErrBufferSize
	}
	c := &cameraImpl{
		buf:     buf,
		mu:      &sync.Mutex{},
		writeMu: &sync.Mutex{},
		up:      [3]float32{0, 1, 0},
		fov:     45.0 * (math.Pi / 180.0),
		aspect:  1.0,
		near:    0.1,
		far:     100.0,
	}
	for _, option := range options {
		option(c)
	}
	if c.controller == nil {
		c.controller = NewOrbitController()
	}
	common.Identity(c.viewMatrix[:])
	common.Identity(c.projectionMatrix[:])
	common.Identity(c.viewProjectionMatrix[:])
	return c, nil
}

func (c *cameraImpl) Up() (x, y, z float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.up[0], c.up[1], c.up[2]
}

func (c *cameraImpl) Fov() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fov
}

func (c *cameraImpl) Aspect() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.aspect
}

func (c *cameraImpl) Clip() (near, far float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.near, c.far
}

func (c *cameraImpl) ViewMatrix() [16]float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewMatrix
}

func (c *cameraImpl) ProjectionMatrix() [16]float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.projectionMatrix
}

func (c *cameraImpl) ViewProjectionMatrix() [16]float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewProjectionMatrix
}

func (c *cameraImpl) Controller() Controller {
	return c.controller
}

func (c *cameraImpl) Buffer() *resource.Buffer {
	return c.buf
}

func (c *cameraImpl) Kind() bind_target.Kind { return bind_target.KindCamera }
func (c *cameraImpl) Label() string          { return c.buf.Label() }

func (c *cameraImpl) DirtyReceiver() (dirty.Receiver, bool) {
	return c.buf.DirtyReceiver()
}

func (c *cameraImpl) AcquireGPU(ctx context.Context, cc multibuffer.CopyContext) (bind_target.Ticket, error) {
	return c.buf.AcquireGPU(ctx, cc)
}

func (c *cameraImpl) SetUp(x, y, z float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.up = [3]float32{x, y, z}
}

func (c *cameraImpl) SetFov(fov float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fov = fov
}

func (c *cameraImpl) SetAspect(aspect float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.aspect = aspect
}

func (c *cameraImpl) Update(ctx context.Context) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	u := c.updateMatrices()
	if c.written && u == c.last {
		return nil
	}
	if err := c.buf.Write(ctx, 0, u.Marshal()); err != nil {
		return fmt.Errorf("camera %s: %w", c.Label(), err)
	}
	c.last = u
	c.written = true
	logging.Logger().Debug("camera: uniform written", "label", c.Label())
	return nil
}

// updateMatrices recalculates the view, projection and view-projection matrices
// from the controller and returns the resulting uniform.
func (c *cameraImpl) updateMatrices() Uniform {
	px, py, pz := c.controller.Position()
	tx, ty, tz := c.controller.Target()

	c.mu.Lock()
	defer c.mu.Unlock()

	common.LookAt(c.viewMatrix[:],
		px, py, pz,
		tx, ty, tz,
		c.up[0], c.up[1], c.up[2],
	)
	common.Perspective(c.projectionMatrix[:], c.fov, c.aspect, c.near, c.far)
	common.Mul4(c.viewProjectionMatrix[:], c.projectionMatrix[:], c.viewMatrix[:])

	return Uniform{
		ViewProj:       c.viewProjectionMatrix,
		CameraPosition: [3]float32{px, py, pz},
	}
}
