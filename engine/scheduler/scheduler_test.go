package scheduler

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-sync/engine/bind_target"
	"github.com/Carmen-Shannon/oxy-sync/engine/dirty"
	"github.com/Carmen-Shannon/oxy-sync/engine/multibuffer"
	"github.com/Carmen-Shannon/oxy-sync/engine/ownership"
	"github.com/Carmen-Shannon/oxy-sync/engine/renderer/headless"
	"github.com/Carmen-Shannon/oxy-sync/engine/resource"
)

func testCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func newBuffer(t *testing.T, label string, size int) (*resource.Buffer, *headless.Device) {
	t.Helper()
	gpu := headless.NewDevice(label, size)
	cpu := []multibuffer.Mappable{headless.NewMemory(size), headless.NewMemory(size)}
	b, err := resource.NewBuffer(cpu, gpu, multibuffer.WithLabel(label))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(b.Close)
	return b, gpu
}

type frameRecord struct {
	mu      sync.Mutex
	begun   int
	submits []bool
}

func (f *frameRecord) BeginFrame(context.Context) (multibuffer.CopyContext, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.begun++
	return headless.NewFrame(uint64(f.begun)), nil
}

func (f *frameRecord) EndFrame(_ multibuffer.CopyContext, submit bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submits = append(f.submits, submit)
	return nil
}

// failingTarget is a dynamic binding whose acquisition always fails.
type failingTarget struct {
	sender *dirty.Sender
	err    error
}

func (f *failingTarget) Kind() bind_target.Kind { return bind_target.KindBuffer }
func (f *failingTarget) Label() string          { return "failing" }
func (f *failingTarget) DirtyReceiver() (dirty.Receiver, bool) {
	return f.sender.Receiver(), true
}
func (f *failingTarget) AcquireGPU(context.Context, multibuffer.CopyContext) (bind_target.Ticket, error) {
	return nil, f.err
}

// countingRender reports every rendered frame index on a channel.
func countingRender() (RenderFunc, <-chan uint64) {
	ch := make(chan uint64, 64)
	return func(_ context.Context, f *Frame) error {
		ch <- f.Index
		return nil
	}, ch
}

func expectFrame(t *testing.T, frames <-chan uint64, want uint64) {
	t.Helper()
	select {
	case got := <-frames:
		if got != want {
			t.Fatalf("frame index = %d, want %d", got, want)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("frame %d was not rendered", want)
	}
}

func expectNoFrame(t *testing.T, frames <-chan uint64) {
	t.Helper()
	select {
	case got := <-frames:
		t.Fatalf("unexpected frame %d", got)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestStateString(t *testing.T) {
	for s, want := range map[State]string{StateIdle: "Idle", StateRendering: "Rendering", State(9): "State(9)"} {
		if got := s.String(); got != want {
			t.Errorf("String() = %q, want %q", got, want)
		}
	}
}

func TestForceRenderUploadsAndReleases(t *testing.T) {
	buf, gpu := newBuffer(t, "uniforms", 4)
	static := resource.NewStatic("mesh", 42)
	fs := &frameRecord{}
	ctx := testCtx(t)
	if err := buf.Write(ctx, 0, []byte{5, 6, 7, 8}); err != nil {
		t.Fatal(err)
	}

	var seen []byte
	render := func(_ context.Context, f *Frame) error {
		tk, ok := f.Ticket(buf)
		if !ok {
			return errors.New("buffer ticket missing")
		}
		g := tk.(*ownership.GPUGuard[multibuffer.GPUable])
		seen = g.Resource().(*headless.Device).Bytes()
		if _, ok := f.Ticket(static); !ok {
			return errors.New("static ticket missing")
		}
		return nil
	}
	s := NewScheduler([]bind_target.BindTarget{buf, static, buf}, render, WithFrameSource(fs), WithLabel("main"))
	defer s.Close()

	if got := len(s.Bindings()); got != 2 {
		t.Fatalf("Bindings() has %d entries, want 2", got)
	}
	if err := s.ForceRender(ctx); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(seen, []byte{5, 6, 7, 8}) || gpu.Copies() != 1 {
		t.Errorf("render saw %v after %d copies", seen, gpu.Copies())
	}
	if s.Frames() != 1 || s.State() != StateIdle {
		t.Errorf("Frames() = %d, State() = %v", s.Frames(), s.State())
	}
	if len(fs.submits) != 1 || !fs.submits[0] {
		t.Errorf("frame submits = %v", fs.submits)
	}

	// Tickets were released: they can be taken again at once.
	for _, b := range s.Bindings() {
		tk, err := b.AcquireGPU(ctx, nil)
		if err != nil {
			t.Fatalf("re-acquire %s: %v", b.Label(), err)
		}
		tk.Release()
	}
}

func TestForceRenderRecordsCopiesInFrame(t *testing.T) {
	buf, _ := newBuffer(t, "lights", 2)
	ctx := testCtx(t)
	if err := buf.Write(ctx, 0, []byte{1, 2}); err != nil {
		t.Fatal(err)
	}
	var copies []headless.Copy
	render := func(_ context.Context, f *Frame) error {
		copies = f.CopyContext.(*headless.Frame).Copies()
		return nil
	}
	s := NewScheduler([]bind_target.BindTarget{buf}, render, WithFrameSource(&frameRecord{}))
	defer s.Close()
	if err := s.ForceRender(ctx); err != nil {
		t.Fatal(err)
	}
	if len(copies) != 1 || copies[0].Label != "lights" {
		t.Errorf("copies = %+v", copies)
	}
}

func TestForceRenderFailsClosed(t *testing.T) {
	buf, _ := newBuffer(t, "ok", 4)
	boom := errors.New("device lost")
	bad := &failingTarget{sender: dirty.NewSender(false, "failing"), err: boom}
	fs := &frameRecord{}
	rendered := false
	s := NewScheduler([]bind_target.BindTarget{buf, bad}, func(context.Context, *Frame) error {
		rendered = true
		return nil
	}, WithFrameSource(fs))
	defer s.Close()

	ctx := testCtx(t)
	if err := s.ForceRender(ctx); !errors.Is(err, boom) {
		t.Fatalf("ForceRender() error = %v, want %v", err, boom)
	}
	if rendered || s.Frames() != 0 {
		t.Error("a failed acquisition must not render or count a frame")
	}
	if len(fs.submits) != 1 || fs.submits[0] {
		t.Errorf("frame should be discarded, submits = %v", fs.submits)
	}
	tk, err := buf.AcquireGPU(ctx, nil)
	if err != nil {
		t.Fatalf("ticket leaked by failed frame: %v", err)
	}
	tk.Release()
}

func TestForceRenderPropagatesRenderError(t *testing.T) {
	boom := errors.New("encode failed")
	s := NewScheduler(nil, func(context.Context, *Frame) error { return boom })
	defer s.Close()
	if err := s.ForceRender(testCtx(t)); !errors.Is(err, boom) {
		t.Errorf("ForceRender() error = %v, want %v", err, boom)
	}
}

func TestStartRendersOnlyOnChange(t *testing.T) {
	buf, gpu := newBuffer(t, "camera", 4)
	render, frames := countingRender()
	s := NewScheduler([]bind_target.BindTarget{buf}, render)
	defer s.Close()

	ctx, cancel := context.WithCancel(testCtx(t))
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	expectFrame(t, frames, 1)
	expectNoFrame(t, frames)

	if err := buf.Write(ctx, 0, []byte{1, 1, 1, 1}); err != nil {
		t.Fatal(err)
	}
	expectFrame(t, frames, 2)
	if !bytes.Equal(gpu.Bytes(), []byte{1, 1, 1, 1}) {
		t.Errorf("gpu = %v after the triggered frame", gpu.Bytes())
	}
	expectNoFrame(t, frames)

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Start() after cancel = %v, want nil", err)
	}
}

func TestStartTriggersAndRedraw(t *testing.T) {
	resize := dirty.NewSender(false, "resize")
	render, frames := countingRender()
	s := NewScheduler(nil, render, WithTriggers(resize))
	defer s.Close()

	ctx, cancel := context.WithCancel(testCtx(t))
	defer cancel()
	go func() { _ = s.Start(ctx) }()
	expectFrame(t, frames, 1)

	resize.Mark(true)
	expectFrame(t, frames, 2)
	if resize.IsDirty() {
		t.Error("trigger should be cleared by the frame it caused")
	}
	expectNoFrame(t, frames)

	s.RequestRedraw()
	expectFrame(t, frames, 3)
	expectNoFrame(t, frames)
}

func TestStartIgnoresSpuriousWakeup(t *testing.T) {
	buf, _ := newBuffer(t, "tex", 4)
	gone := dirty.NewSender(false, "gone")
	render, frames := countingRender()
	s := NewScheduler([]bind_target.BindTarget{buf}, render, WithTriggers(gone))
	defer s.Close()

	ctx, cancel := context.WithCancel(testCtx(t))
	defer cancel()
	go func() { _ = s.Start(ctx) }()
	expectFrame(t, frames, 1)

	// Closing a sender fires the pending slot without marking anything dirty.
	gone.Close()
	expectNoFrame(t, frames)

	if err := buf.Write(ctx, 0, []byte{2, 2, 2, 2}); err != nil {
		t.Fatal(err)
	}
	expectFrame(t, frames, 2)
}

func TestStartStopsOnFrameFailure(t *testing.T) {
	boom := errors.New("copy failed")
	bad := &failingTarget{sender: dirty.NewSender(false, "failing"), err: boom}
	s := NewScheduler([]bind_target.BindTarget{bad}, nil)
	defer s.Close()
	if err := s.Start(testCtx(t)); !errors.Is(err, boom) {
		t.Errorf("Start() error = %v, want %v", err, boom)
	}
}

func TestStartTwice(t *testing.T) {
	render, frames := countingRender()
	s := NewScheduler(nil, render)
	defer s.Close()
	ctx, cancel := context.WithCancel(testCtx(t))
	defer cancel()
	go func() { _ = s.Start(ctx) }()
	expectFrame(t, frames, 1)
	if err := s.Start(ctx); !errors.Is(err, ErrRunning) {
		t.Errorf("second Start() = %v, want ErrRunning", err)
	}
}

func TestReceiversListsBindingsAndTriggers(t *testing.T) {
	buf, _ := newBuffer(t, "uniforms", 4)
	trigger := dirty.NewSender(false, "resize")
	s := NewScheduler([]bind_target.BindTarget{buf, buf}, nil, WithTriggers(trigger))
	defer s.Close()

	r, _ := buf.DirtyReceiver()
	got := s.Receivers()
	if len(got) != 2 || got[0] != r || got[1] != trigger.Receiver() {
		t.Fatalf("Receivers() = %v, want [uniforms resize]", got)
	}
}

func TestFrameLimitCoalescesChanges(t *testing.T) {
	buf, _ := newBuffer(t, "particles", 1)
	render, frames := countingRender()
	s := NewScheduler([]bind_target.BindTarget{buf}, render, WithFrameLimit(10))
	defer s.Close()

	ctx, cancel := context.WithCancel(testCtx(t))
	defer cancel()
	go func() { _ = s.Start(ctx) }()
	expectFrame(t, frames, 1)

	for i := range 5 {
		if err := buf.Write(ctx, 0, []byte{byte(i)}); err != nil {
			t.Fatal(err)
		}
	}
	expectFrame(t, frames, 2)
	expectNoFrame(t, frames)
}
