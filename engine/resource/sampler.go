package resource

import (
	"context"

	"github.com/Carmen-Shannon/oxy-sync/common"
	"github.com/Carmen-Shannon/oxy-sync/engine/bind_target"
	"github.com/Carmen-Shannon/oxy-sync/engine/dirty"
	"github.com/Carmen-Shannon/oxy-sync/engine/multibuffer"
)

// Sampler is an immutable sampler binding. It holds the backend handle, if
// any, next to the configuration it was created from.
type Sampler struct {
	label  string
	config common.SamplerStagingData
	handle any
}

var _ bind_target.BindTarget = &Sampler{}

// NewSampler creates a sampler binding.
//
// Parameters:
//   - label: the debug label; a unique one is generated when empty
//   - config: the sampler configuration
//   - handle: the backend sampler object, or nil for headless use
//
// Returns:
//   - *Sampler: the new sampler
func NewSampler(label string, config common.SamplerStagingData, handle any) *Sampler {
	return &Sampler{label: common.LabelOr(label, "sampler"), config: config, handle: handle}
}

func (s *Sampler) Kind() bind_target.Kind { return bind_target.KindSampler }
func (s *Sampler) Label() string          { return s.label }

func (s *Sampler) DirtyReceiver() (dirty.Receiver, bool) {
	return dirty.Receiver{}, false
}

// AcquireGPU returns a no-op ticket; samplers are shared freely.
func (s *Sampler) AcquireGPU(context.Context, multibuffer.CopyContext) (bind_target.Ticket, error) {
	return bind_target.NopTicket, nil
}

// Config returns the sampler configuration.
func (s *Sampler) Config() common.SamplerStagingData {
	return s.config
}

// Handle returns the backend sampler object.
func (s *Sampler) Handle() any {
	return s.handle
}
