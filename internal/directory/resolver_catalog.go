package directory

import (
	"context"

	"github.com/yordan-p/slotledger/internal/model"
	"github.com/yordan-p/slotledger/internal/storage"
)

// CatalogStore is what the catalog resolver needs from storage.
type CatalogStore interface {
	Get(ctx context.Context, ref model.ServiceRef) (storage.CatalogEntry, error)
	GetProvider(ctx context.Context, ref model.ProviderRef) (model.Provider, error)
}

type catalogResolver struct {
	store CatalogStore
}

func NewCatalogResolver(store CatalogStore) Resolver {
	return &catalogResolver{store: store}
}

func (r *catalogResolver) ResolveProvider(ctx context.Context, ref model.ProviderRef) (model.Provider, error) {
	if !ref.Kind.Valid() || ref.ID == "" {
		return model.Provider{}, ErrProviderNotFound
	}
	p, err := r.store.GetProvider(ctx, ref)
	if err != nil {
		if storage.IsNotFound(err) {
			return model.Provider{}, ErrProviderNotFound
		}
		return model.Provider{}, err
	}
	return p, nil
}

func (r *catalogResolver) ResolveServiceInstance(ctx context.Context, ref model.ServiceRef) (ServiceInstance, error) {
	if !ref.Kind.Valid() || ref.ID == "" {
		return ServiceInstance{}, ErrServiceNotFound
	}
	e, err := r.store.Get(ctx, ref)
	if err != nil {
		if storage.IsNotFound(err) {
			return ServiceInstance{}, ErrServiceNotFound
		}
		return ServiceInstance{}, err
	}
	if !e.Active || e.DurationMinutes <= 0 {
		return ServiceInstance{}, ErrServiceNotFound
	}
	return ServiceInstance{
		Provider: model.Provider{
			Ref:         e.Provider,
			OwnerUserID: e.ProviderOwnerID,
			Active:      true,
		},
		ServiceName:     e.ServiceName,
		DurationMinutes: e.DurationMinutes,
	}, nil
}
