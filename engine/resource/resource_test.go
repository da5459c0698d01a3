package resource

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-sync/common"
	"github.com/Carmen-Shannon/oxy-sync/engine/bind_target"
	"github.com/Carmen-Shannon/oxy-sync/engine/multibuffer"
	"github.com/Carmen-Shannon/oxy-sync/engine/renderer/headless"
)

func testCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func staging(n, size int) []multibuffer.Mappable {
	out := make([]multibuffer.Mappable, n)
	for i := range out {
		out[i] = headless.NewMemory(size)
	}
	return out
}

func newTestBuffer(t *testing.T, size int) (*Buffer, *headless.Device) {
	t.Helper()
	gpu := headless.NewDevice("buf", size)
	b, err := NewBuffer(staging(3, size), gpu, multibuffer.WithLabel("buf"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(b.Close)
	return b, gpu
}

func uploadGPU(t *testing.T, target bind_target.BindTarget) {
	t.Helper()
	ticket, err := target.AcquireGPU(testCtx(t), nil)
	if err != nil {
		t.Fatalf("AcquireGPU: %v", err)
	}
	ticket.Release()
}

func TestBufferWriteUploads(t *testing.T) {
	b, gpu := newTestBuffer(t, 4)
	if b.Kind() != bind_target.KindBuffer || b.Label() != "buf" {
		t.Errorf("Kind() = %v, Label() = %q", b.Kind(), b.Label())
	}
	r, ok := b.DirtyReceiver()
	if !ok || r.IsDirty() {
		t.Fatal("buffer should contribute a clean receiver")
	}

	if err := b.Write(testCtx(t), 0, []byte{1, 2, 3, 4}); err != nil {
		t.Fatal(err)
	}
	if !r.IsDirty() {
		t.Fatal("write should raise the dirty flag")
	}
	uploadGPU(t, b)
	if !bytes.Equal(gpu.Bytes(), []byte{1, 2, 3, 4}) || r.IsDirty() {
		t.Errorf("gpu = %v, dirty = %v", gpu.Bytes(), r.IsDirty())
	}
}

func TestBufferPartialWritesCarryForward(t *testing.T) {
	b, gpu := newTestBuffer(t, 4)
	ctx := testCtx(t)
	if err := b.Write(ctx, 0, []byte{1, 2, 3, 4}); err != nil {
		t.Fatal(err)
	}
	if err := b.Write(ctx, 1, []byte{9}); err != nil {
		t.Fatal(err)
	}
	if err := b.Write(ctx, 3, []byte{8}); err != nil {
		t.Fatal(err)
	}

	got, err := b.Read(ctx)
	if err != nil {
		t.Fatal(err)
	}
	want := []byte{1, 9, 3, 8}
	if !bytes.Equal(got, want) {
		t.Errorf("Read() = %v, want %v", got, want)
	}
	uploadGPU(t, b)
	if !bytes.Equal(gpu.Bytes(), want) {
		t.Errorf("gpu = %v, want %v", gpu.Bytes(), want)
	}
}

func TestBufferWriteOutOfRange(t *testing.T) {
	b, _ := newTestBuffer(t, 4)
	tests := []struct {
		name   string
		offset int
		data   []byte
	}{
		{"negative offset", -1, []byte{1}},
		{"past end", 3, []byte{1, 2}},
		{"too long", 0, make([]byte, 5)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := b.Write(testCtx(t), tt.offset, tt.data); !errors.Is(err, ErrOutOfRange) {
				t.Errorf("Write() error = %v, want ErrOutOfRange", err)
			}
		})
	}
}

func TestFailedWriteKeepsNewestContents(t *testing.T) {
	b, gpu := newTestBuffer(t, 4)
	if err := b.Write(testCtx(t), 0, []byte{1, 2, 3, 4}); err != nil {
		t.Fatal(err)
	}
	uploadGPU(t, b)

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	if err := b.Write(cancelled, 0, []byte{5, 6, 7, 8}); !errors.Is(err, context.Canceled) {
		t.Fatalf("Write() error = %v, want context.Canceled", err)
	}
	if err := b.Write(cancelled, 2, []byte{9}); !errors.Is(err, context.Canceled) {
		t.Fatalf("partial Write() error = %v, want context.Canceled", err)
	}
	r, _ := b.DirtyReceiver()
	if r.IsDirty() {
		t.Fatal("a failed write should not raise the dirty flag")
	}
	uploadGPU(t, b)
	if !bytes.Equal(gpu.Bytes(), []byte{1, 2, 3, 4}) {
		t.Errorf("gpu = %v, want the last successful write", gpu.Bytes())
	}
	got, err := b.Read(testCtx(t))
	if err != nil || !bytes.Equal(got, []byte{1, 2, 3, 4}) {
		t.Errorf("Read() = %v, %v", got, err)
	}
}

func TestBufferReadWaitsForNewest(t *testing.T) {
	b, _ := newTestBuffer(t, 4)
	ctx := testCtx(t)
	for _, fill := range []byte{0xA, 0xB} {
		if err := b.Write(ctx, 0, bytes.Repeat([]byte{fill}, 4)); err != nil {
			t.Fatal(err)
		}
	}
	held, err := b.pool.AccessRead(ctx)
	if err != nil {
		t.Fatal(err)
	}

	got := make(chan []byte, 1)
	go func() {
		data, _ := b.Read(ctx)
		got <- data
	}()
	select {
	case data := <-got:
		t.Fatalf("Read returned %v while the newest instance was held", data)
	case <-time.After(50 * time.Millisecond):
	}
	held.Release()
	select {
	case data := <-got:
		if !bytes.Equal(data, []byte{0xB, 0xB, 0xB, 0xB}) {
			t.Errorf("Read() = %v, want the newest write", data)
		}
	case <-time.After(time.Second):
		t.Fatal("Read was not woken")
	}
}

func TestCameraBufferKind(t *testing.T) {
	b, err := NewCameraBuffer(staging(2, 8), headless.NewDevice("cam", 8))
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()
	if b.Kind() != bind_target.KindCamera {
		t.Errorf("Kind() = %v, want Camera", b.Kind())
	}
}

func TestTexture(t *testing.T) {
	const w, h = 2, 2
	size := w * h * common.BytesPerPixel
	gpu := headless.NewDevice("tex", size)
	tex, err := NewTexture(w, h, staging(2, size), gpu)
	if err != nil {
		t.Fatal(err)
	}
	defer tex.Close()

	pixels := bytes.Repeat([]byte{10, 20, 30, 255}, w*h)
	if err := tex.WritePixels(testCtx(t), common.TextureStagingData{Pixels: pixels, Width: w, Height: h}); err != nil {
		t.Fatal(err)
	}
	row := bytes.Repeat([]byte{1, 1, 1, 1}, w)
	if err := tex.WriteRow(testCtx(t), 1, row); err != nil {
		t.Fatal(err)
	}
	uploadGPU(t, tex)

	want := append(bytes.Repeat([]byte{10, 20, 30, 255}, w), row...)
	if !bytes.Equal(gpu.Bytes(), want) {
		t.Errorf("gpu = %v, want %v", gpu.Bytes(), want)
	}

	bad := common.TextureStagingData{Pixels: make([]byte, 4), Width: 1, Height: 1}
	if err := tex.WritePixels(testCtx(t), bad); !errors.Is(err, common.ErrTextureSize) {
		t.Errorf("WritePixels() mismatched error = %v, want ErrTextureSize", err)
	}
	if err := tex.WriteRow(testCtx(t), h, row); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("WriteRow() past end error = %v, want ErrOutOfRange", err)
	}
}

func TestNewTextureSizeMismatch(t *testing.T) {
	_, err := NewTexture(4, 4, staging(1, 16), headless.NewDevice("tex", 16))
	if !errors.Is(err, common.ErrTextureSize) {
		t.Errorf("NewTexture() error = %v, want ErrTextureSize", err)
	}
	_, err = NewTexture(0, 4, staging(1, 16), headless.NewDevice("tex", 16))
	if !errors.Is(err, multibuffer.ErrZeroSized) {
		t.Errorf("NewTexture() zero width error = %v, want ErrZeroSized", err)
	}
}

func TestStaticIsExclusiveAndClean(t *testing.T) {
	s := NewStatic("mesh", []byte{1})
	if _, ok := s.DirtyReceiver(); ok {
		t.Fatal("static resources contribute no receiver")
	}
	ctx := testCtx(t)
	first, err := s.AcquireGPU(ctx, nil)
	if err != nil {
		t.Fatal(err)
	}

	got := make(chan error, 1)
	go func() {
		tk, err := s.AcquireGPU(ctx, nil)
		if err == nil {
			tk.Release()
		}
		got <- err
	}()
	select {
	case <-got:
		t.Fatal("second acquisition should wait for the first ticket")
	case <-time.After(30 * time.Millisecond):
	}
	first.Release()
	if err := <-got; err != nil {
		t.Errorf("second acquisition: %v", err)
	}
}

func TestSampler(t *testing.T) {
	s := NewSampler("", common.SamplerStagingData{MaxAnisotropy: 4}, nil)
	if s.Kind() != bind_target.KindSampler || s.Label() == "" {
		t.Errorf("Kind() = %v, Label() = %q", s.Kind(), s.Label())
	}
	if _, ok := s.DirtyReceiver(); ok {
		t.Error("samplers contribute no receiver")
	}
	tk, err := s.AcquireGPU(testCtx(t), nil)
	if err != nil || tk != bind_target.NopTicket {
		t.Errorf("AcquireGPU() = %v, %v", tk, err)
	}
	if s.Config().MaxAnisotropy != 4 {
		t.Errorf("Config() = %+v", s.Config())
	}
}
