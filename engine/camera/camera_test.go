package camera

import (
	"bytes"
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-sync/engine/bind_target"
	"github.com/Carmen-Shannon/oxy-sync/engine/multibuffer"
	"github.com/Carmen-Shannon/oxy-sync/engine/renderer/headless"
	"github.com/Carmen-Shannon/oxy-sync/engine/resource"
)

func testCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func newCameraBuffer(t *testing.T, size int) (*resource.Buffer, *headless.Device) {
	t.Helper()
	gpu := headless.NewDevice("camera", size)
	cpu := []multibuffer.Mappable{headless.NewMemory(size), headless.NewMemory(size)}
	buf, err := resource.NewCameraBuffer(cpu, gpu, multibuffer.WithLabel("camera"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(buf.Close)
	return buf, gpu
}

func isDirty(t *testing.T, c Camera) bool {
	t.Helper()
	r, ok := c.DirtyReceiver()
	if !ok {
		t.Fatal("camera should contribute a receiver")
	}
	return r.IsDirty()
}

func TestNewCameraRejectsSmallBuffer(t *testing.T) {
	buf, _ := newCameraBuffer(t, UniformSize-4)
	if _, err := NewCamera(buf); !errors.Is(err, ErrBufferSize) {
		t.Fatalf("NewCamera() error = %v, want ErrBufferSize", err)
	}
	if _, err := NewCamera(nil); !errors.Is(err, ErrBufferSize) {
		t.Fatalf("NewCamera(nil) error = %v, want ErrBufferSize", err)
	}
}

func TestCameraUpdateWritesOnlyOnChange(t *testing.T) {
	buf, gpu := newCameraBuffer(t, UniformSize)
	ctrl := NewOrbitController(WithRadius(5))
	cam, err := NewCamera(buf, WithController(ctrl), WithAspect(16.0/9.0))
	if err != nil {
		t.Fatal(err)
	}
	if cam.Kind() != bind_target.KindCamera || cam.Label() != "camera" {
		t.Fatalf("Kind() = %v, Label() = %q", cam.Kind(), cam.Label())
	}
	if isDirty(t, cam) {
		t.Fatal("camera dirty before its first Update")
	}

	ctx := testCtx(t)
	if err := cam.Update(ctx); err != nil {
		t.Fatal(err)
	}
	if !isDirty(t, cam) {
		t.Fatal("first Update should raise the dirty flag")
	}
	ticket, err := cam.AcquireGPU(ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	ticket.Release()
	if isDirty(t, cam) {
		t.Fatal("camera still dirty after upload")
	}

	vp := cam.ViewProjectionMatrix()
	want := (&Uniform{ViewProj: vp, CameraPosition: func() [3]float32 {
		x, y, z := ctrl.Position()
		return [3]float32{x, y, z}
	}()}).Marshal()
	if !bytes.Equal(gpu.Bytes(), want) {
		t.Fatal("GPU uniform does not match the camera state")
	}

	if err := cam.Update(ctx); err != nil {
		t.Fatal(err)
	}
	if isDirty(t, cam) {
		t.Fatal("unchanged camera should not raise the dirty flag")
	}

	ctrl.Orbit(0.1, 0)
	if err := cam.Update(ctx); err != nil {
		t.Fatal(err)
	}
	if !isDirty(t, cam) {
		t.Fatal("orbiting should raise the dirty flag")
	}

	cam.SetFov(1)
	if cam.Fov() != 1 {
		t.Fatalf("Fov() = %v", cam.Fov())
	}
}

func TestCameraUpdateCancelled(t *testing.T) {
	buf, _ := newCameraBuffer(t, UniformSize)
	cam, err := NewCamera(buf)
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// Hold every staging instance so the write has to wait.
	g1, err := buf.Pool().AccessWrite(testCtx(t))
	if err != nil {
		t.Fatal(err)
	}
	g2, err := buf.Pool().AccessWrite(testCtx(t))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		g1.Release()
		g2.Release()
	})

	if err := cam.Update(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Update() error = %v, want context.Canceled", err)
	}
}

func TestOrbitControllerClamps(t *testing.T) {
	ctrl := NewOrbitController(
		WithRadius(10),
		WithRadiusBounds(2, 20),
		WithZoomSpeed(1),
		WithElevation(0),
		WithTarget(1, 2, 3),
	)

	x, y, z := ctrl.Position()
	if x != 1 || y != 2 || z != 13 {
		t.Fatalf("Position() = (%v, %v, %v), want (1, 2, 13)", x, y, z)
	}

	ctrl.Zoom(100)
	if r := ctrl.Radius(); r != 2 {
		t.Fatalf("Radius() after zoom in = %v, want 2", r)
	}
	ctrl.Zoom(-100)
	if r := ctrl.Radius(); r != 20 {
		t.Fatalf("Radius() after zoom out = %v, want 20", r)
	}

	ctrl.Orbit(0, 10)
	if e := ctrl.Elevation(); e >= math.Pi/2 {
		t.Fatalf("Elevation() = %v, want clamped below pi/2", e)
	}

	ctrl.SetTarget(0, 0, 0)
	tx, ty, tz := ctrl.Target()
	if tx != 0 || ty != 0 || tz != 0 {
		t.Fatalf("Target() = (%v, %v, %v)", tx, ty, tz)
	}
}
