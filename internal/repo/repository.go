package repo

import (
	"context"

	"github.com/hamed0406/apihealth/internal/domain"
)

// Ports (interfaces). Each backend in a sub-package implements one or both.

// EndpointSource returns the full configuration snapshot on every call.
type EndpointSource interface {
	ListEndpoints(ctx context.Context) ([]domain.EndpointSpec, error)
}

// StateStore keeps the last known HealthRecord per endpoint id.
type StateStore interface {
	// Get returns nil, nil if there's no record yet.
	Get(ctx context.Context, endpointID string) (*domain.HealthRecord, error)
	// Put upserts the record at rec.EndpointID. A record is always written whole.
	Put(ctx context.Context, rec *domain.HealthRecord) error
}
