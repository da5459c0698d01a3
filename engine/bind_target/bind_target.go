package bind_target

import (
	"context"
	"fmt"

	"github.com/Carmen-Shannon/oxy-sync/engine/dirty"
	"github.com/Carmen-Shannon/oxy-sync/engine/multibuffer"
)

// Kind identifies what sort of resource a BindTarget binds to a render pass.
type Kind int

const (
	// KindBuffer is a multibuffered uniform or storage buffer.
	KindBuffer Kind = iota
	// KindTexture is a multibuffered sampled texture.
	KindTexture
	// KindCamera is a camera uniform, multibuffered like a buffer.
	KindCamera
	// KindStatic is a GPU-only resource written once at creation.
	KindStatic
	// KindSampler is a sampler; it has no contents to keep in sync.
	KindSampler
)

// String returns the name of the kind.
func (k Kind) String() string {
	switch k {
	case KindBuffer:
		return "Buffer"
	case KindTexture:
		return "Texture"
	case KindCamera:
		return "Camera"
	case KindStatic:
		return "Static"
	case KindSampler:
		return "Sampler"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Dynamic reports whether resources of this kind change after creation and
// therefore contribute a dirty receiver.
func (k Kind) Dynamic() bool {
	return k == KindBuffer || k == KindTexture || k == KindCamera
}

// Ticket is a held GPU-side acquisition. It must stay held until the backend
// work that consumes the resource has been submitted, then be released once.
type Ticket interface {
	Release()
}

// BindTarget is a resource bound to a render pass. The frame scheduler uses it
// to discover which resources it must wait on and to acquire every bound
// resource for the GPU before a frame is encoded.
type BindTarget interface {
	// Kind returns what sort of resource this is.
	Kind() Kind

	// Label returns the debug label.
	Label() string

	// DirtyReceiver returns the resource's change signal. ok is false for
	// resources that never change (static resources and samplers).
	DirtyReceiver() (r dirty.Receiver, ok bool)

	// AcquireGPU takes the resource's GPU ticket, bringing the GPU side up to
	// date first when the resource is multibuffered.
	//
	// Parameters:
	//   - ctx: the context bounding the acquisition
	//   - cc: backend frame state forwarded to staging copies
	//
	// Returns:
	//   - Ticket: the held ticket
	//   - error: a copy failure or the context's error
	AcquireGPU(ctx context.Context, cc multibuffer.CopyContext) (Ticket, error)
}

// NopTicket is a Ticket whose Release does nothing, for resources with no
// GPU-side state to guard.
var NopTicket Ticket = nopTicket{}

type nopTicket struct{}

func (nopTicket) Release() {}

// Receivers collects the dirty receivers of the given targets, skipping those
// that do not contribute one.
//
// Parameters:
//   - targets: the bound resources
//
// Returns:
//   - []dirty.Receiver: one receiver per dynamic target, in order
func Receivers(targets []BindTarget) []dirty.Receiver {
	out := make([]dirty.Receiver, 0, len(targets))
	for _, t := range targets {
		if r, ok := t.DirtyReceiver(); ok {
			out = append(out, r)
		}
	}
	return out
}
