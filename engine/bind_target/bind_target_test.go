package bind_target

import (
	"context"
	"testing"

	"github.com/Carmen-Shannon/oxy-sync/engine/dirty"
	"github.com/Carmen-Shannon/oxy-sync/engine/multibuffer"
)

type fakeTarget struct {
	kind   Kind
	sender *dirty.Sender
}

func (f fakeTarget) Kind() Kind     { return f.kind }
func (f fakeTarget) Label() string { return f.kind.String() }
func (f fakeTarget) DirtyReceiver() (dirty.Receiver, bool) {
	if f.sender == nil {
		return dirty.Receiver{}, false
	}
	return f.sender.Receiver(), true
}
func (f fakeTarget) AcquireGPU(context.Context, multibuffer.CopyContext) (Ticket, error) {
	return NopTicket, nil
}

func TestKindString(t *testing.T) {
	tests := []struct {
		kind    Kind
		want    string
		dynamic bool
	}{
		{KindBuffer, "Buffer", true},
		{KindTexture, "Texture", true},
		{KindCamera, "Camera", true},
		{KindStatic, "Static", false},
		{KindSampler, "Sampler", false},
		{Kind(42), "Kind(42)", false},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.kind.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
			if got := tt.kind.Dynamic(); got != tt.dynamic {
				t.Errorf("Dynamic() = %v, want %v", got, tt.dynamic)
			}
		})
	}
}

func TestReceiversSkipsStatic(t *testing.T) {
	buf := dirty.NewSender(false, "buf")
	cam := dirty.NewSender(false, "cam")
	targets := []BindTarget{
		fakeTarget{kind: KindBuffer, sender: buf},
		fakeTarget{kind: KindStatic},
		fakeTarget{kind: KindCamera, sender: cam},
		fakeTarget{kind: KindSampler},
	}
	got := Receivers(targets)
	if len(got) != 2 || got[0] != buf.Receiver() || got[1] != cam.Receiver() {
		t.Fatalf("Receivers() = %v", got)
	}
}
