package dirty

import (
	"context"
	"runtime"
	"slices"
	"testing"
	"time"
)

// registeredSlot returns the slot currently installed on a receiver.
func registeredSlot(r Receiver) *OneShot {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	return r.st.slot
}

func waitCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestOneShotFiresOnce(t *testing.T) {
	o := NewOneShot()
	if o.Fired() {
		t.Fatal("new slot should not be fired")
	}
	if !o.Fire() {
		t.Fatal("first Fire should report true")
	}
	if o.Fire() || o.Drop() {
		t.Fatal("subsequent Fire/Drop should report false")
	}
	if err := o.Wait(waitCtx(t)); err != nil {
		t.Fatalf("Wait on fired slot: %v", err)
	}
}

func TestOneShotWaitCancelled(t *testing.T) {
	o := NewOneShot()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := o.Wait(ctx); err != context.Canceled {
		t.Fatalf("Wait = %v, want context.Canceled", err)
	}
}

func TestDirtyRoundTrip(t *testing.T) {
	s := NewSender(false, "buffer")
	r := NewReceiver(s)

	tests := []struct {
		mark bool
		want bool
	}{
		{true, true},
		{true, true},
		{false, false},
		{false, false},
		{true, true},
	}
	for _, tt := range tests {
		s.Mark(tt.mark)
		if got := r.IsDirty(); got != tt.want {
			t.Errorf("after Mark(%v) IsDirty() = %v, want %v", tt.mark, got, tt.want)
		}
		if got := s.IsDirty(); got != tt.want {
			t.Errorf("after Mark(%v) Sender.IsDirty() = %v, want %v", tt.mark, got, tt.want)
		}
	}
	if r.DebugLabel() != "buffer" {
		t.Errorf("DebugLabel() = %q, want %q", r.DebugLabel(), "buffer")
	}
}

func TestReceiverIdentity(t *testing.T) {
	a := NewSender(false, "a")
	b := NewSender(false, "a")

	if NewReceiver(a) != a.Receiver() {
		t.Error("receivers of the same sender should be equal")
	}
	if NewReceiver(a) == NewReceiver(b) {
		t.Error("receivers of different senders should differ even with equal labels")
	}
	set := map[Receiver]int{NewReceiver(a): 1}
	set[a.Receiver()]++
	if len(set) != 1 || set[a.Receiver()] != 2 {
		t.Errorf("receiver map = %v, want a single entry counted twice", set)
	}
	var zero Receiver
	if zero.Valid() {
		t.Error("zero receiver should not be valid")
	}
}

func TestMarkFiresRegisteredSlot(t *testing.T) {
	s := NewSender(false, "texture")
	slot := NewOneShot()
	if s.Receiver().Register(slot) {
		t.Fatal("Register on clean signal should not report dirty")
	}
	s.Mark(false)
	if slot.Fired() {
		t.Fatal("Mark(false) must not fire the slot")
	}
	s.Mark(true)
	if !slot.Fired() {
		t.Fatal("Mark(true) should fire the registered slot")
	}
	if registeredSlot(s.Receiver()) != nil {
		t.Fatal("Mark(true) should consume the slot")
	}
}

func TestRegisterReplacementDropsPrevious(t *testing.T) {
	s := NewSender(false, "camera")
	first, second := NewOneShot(), NewOneShot()

	s.Receiver().Register(first)
	s.Receiver().Register(second)

	if !first.Fired() {
		t.Error("replaced slot should be fired rather than lost")
	}
	if second.Fired() {
		t.Error("current slot should still be pending")
	}
	if registeredSlot(s.Receiver()) != second {
		t.Error("last registration should win")
	}
}

func TestAggregatorNoMissedWakeup(t *testing.T) {
	s1, s2, s3 := NewSender(false, "r1"), NewSender(false, "r2"), NewSender(false, "r3")
	agg := NewAggregator([]Receiver{s1.Receiver(), s2.Receiver(), s3.Receiver()})

	s2.Mark(true)

	done := make(chan error, 1)
	go func() { done <- agg.WaitForDirty(context.Background()) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("WaitForDirty: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("WaitForDirty suspended although r2 was already dirty")
	}
	if registeredSlot(s3.Receiver()) != nil {
		t.Error("scan should stop at the first dirty receiver")
	}
}

func TestAggregatorSingleFireMultiSource(t *testing.T) {
	s1, s2, s3 := NewSender(false, "r1"), NewSender(false, "r2"), NewSender(false, "r3")
	receivers := []Receiver{s1.Receiver(), s2.Receiver(), s3.Receiver()}
	agg := NewAggregator(receivers)

	ctx := waitCtx(t)
	done := make(chan error, 1)
	go func() { done <- agg.WaitForDirty(ctx) }()

	// Wait until the scan has installed one shared slot on every receiver.
	var shared *OneShot
	deadline := time.Now().Add(time.Second)
	for {
		shared = registeredSlot(receivers[2])
		if shared != nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("aggregator never registered its slot")
		}
		time.Sleep(time.Millisecond)
	}
	if registeredSlot(receivers[0]) != shared || registeredSlot(receivers[1]) != shared {
		t.Fatal("all receivers should share the same slot")
	}

	s1.Mark(true)
	s3.Mark(true)

	if err := <-done; err != nil {
		t.Fatalf("WaitForDirty: %v", err)
	}
	if shared.Fire() {
		t.Error("shared slot should have fired exactly once already")
	}
	if got, want := agg.WhoIsDirty(), []string{"r1", "r3"}; !slices.Equal(got, want) {
		t.Errorf("WhoIsDirty() = %v, want %v", got, want)
	}
	if !agg.IsDirty() {
		t.Error("IsDirty() should be true")
	}
}

func TestAggregatorWhoIsDirtyDeduplicates(t *testing.T) {
	s := NewSender(true, "dup")
	agg := NewAggregator([]Receiver{s.Receiver(), s.Receiver(), {}})
	if agg.Len() != 2 {
		t.Fatalf("Len() = %d, want 2 (zero receiver skipped)", agg.Len())
	}
	if got := agg.WhoIsDirty(); !slices.Equal(got, []string{"dup"}) {
		t.Errorf("WhoIsDirty() = %v, want [dup]", got)
	}
}

func TestAggregatorCancelled(t *testing.T) {
	s := NewSender(false, "idle")
	agg := NewAggregator([]Receiver{s.Receiver()})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := agg.WaitForDirty(ctx); err != context.DeadlineExceeded {
		t.Fatalf("WaitForDirty = %v, want DeadlineExceeded", err)
	}
}

func TestAggregatorCancelDropsSlot(t *testing.T) {
	s1, s2 := NewSender(false, "a"), NewSender(false, "b")
	agg := NewAggregator([]Receiver{s1.Receiver(), s2.Receiver()})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := agg.WaitForDirty(ctx); err != context.Canceled {
		t.Fatalf("WaitForDirty = %v, want Canceled", err)
	}
	for _, r := range []Receiver{s1.Receiver(), s2.Receiver()} {
		slot := registeredSlot(r)
		if slot == nil || !slot.Fired() {
			t.Errorf("%s: slot left live after cancellation", r.DebugLabel())
		}
	}
	// Marking consumes the dead registration without waking anyone.
	s1.Mark(true)
	if !s1.Receiver().IsDirty() {
		t.Error("mark after cancellation was lost")
	}
	if registeredSlot(s1.Receiver()) != nil {
		t.Error("mark should clear the stale registration")
	}
}

func TestSenderCloseReleasesWaiter(t *testing.T) {
	s := NewSender(false, "closed")
	agg := NewAggregator([]Receiver{s.Receiver()})

	ctx := waitCtx(t)
	done := make(chan error, 1)
	go func() { done <- agg.WaitForDirty(ctx) }()

	deadline := time.Now().Add(time.Second)
	for registeredSlot(s.Receiver()) == nil {
		if time.Now().After(deadline) {
			t.Fatal("aggregator never registered its slot")
		}
		time.Sleep(time.Millisecond)
	}
	s.Close()

	if err := <-done; err != nil {
		t.Fatalf("WaitForDirty after Close: %v", err)
	}
	if s.Receiver().IsDirty() {
		t.Error("Close must not mark the signal dirty")
	}
}

func TestCollectedSenderReleasesWaiter(t *testing.T) {
	slot := NewOneShot()
	func() {
		s := NewSender(false, "collected")
		s.Receiver().Register(slot)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for !slot.Fired() {
		if time.Now().After(deadline) {
			t.Fatal("pending slot was not fired after its sender was collected")
		}
		runtime.GC()
		time.Sleep(5 * time.Millisecond)
	}
}
