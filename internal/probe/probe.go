package probe

import (
	"context"

	"github.com/hamed0406/apihealth/internal/domain"
)

// Prober performs a single check of one endpoint.
//
// Implementations never return an error: every failure mode (timeout, refused connection,
// DNS, unexpected status) is reported as a DOWN outcome.
type Prober interface {
	Probe(ctx context.Context, spec domain.EndpointSpec) domain.ProbeOutcome
}

// ProberFunc adapts a function to Prober.
type ProberFunc func(ctx context.Context, spec domain.EndpointSpec) domain.ProbeOutcome

func (f ProberFunc) Probe(ctx context.Context, spec domain.EndpointSpec) domain.ProbeOutcome {
	return f(ctx, spec)
}
