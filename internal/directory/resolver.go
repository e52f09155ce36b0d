// Package directory resolves provider and service-instance references owned
// by the profile subsystem. The default resolver reads the local catalog
// mirror fed by directory.service.upserted.v1 events; a gRPC client against
// the directory service itself is available behind the protogen build tag.
package directory

import (
	"context"
	"errors"

	"github.com/yordan-p/slotledger/internal/model"
)

var (
	ErrProviderNotFound = errors.New("provider not found")
	ErrServiceNotFound  = errors.New("service not found")
)

// ServiceInstance is a resolved bookable service: the provider it belongs to
// and the canonical duration a reservation of it occupies.
type ServiceInstance struct {
	Provider        model.Provider
	ServiceName     string
	DurationMinutes int
}

type Resolver interface {
	ResolveProvider(ctx context.Context, ref model.ProviderRef) (model.Provider, error)
	ResolveServiceInstance(ctx context.Context, ref model.ServiceRef) (ServiceInstance, error)
}
