package directory

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/yordan-p/slotledger/internal/model"
	"github.com/yordan-p/slotledger/internal/storage"
)

type fakeCatalog struct {
	entries   map[model.ServiceRef]storage.CatalogEntry
	providers map[model.ProviderRef]model.Provider
}

func (f *fakeCatalog) Get(ctx context.Context, ref model.ServiceRef) (storage.CatalogEntry, error) {
	e, ok := f.entries[ref]
	if !ok {
		return storage.CatalogEntry{}, pgx.ErrNoRows
	}
	return e, nil
}

func (f *fakeCatalog) GetProvider(ctx context.Context, ref model.ProviderRef) (model.Provider, error) {
	p, ok := f.providers[ref]
	if !ok {
		return model.Provider{}, pgx.ErrNoRows
	}
	return p, nil
}

func TestCatalogResolver(t *testing.T) {
	provider := model.ProviderRef{Kind: model.ProviderPlace, ID: "salon-1"}
	store := &fakeCatalog{
		entries: map[model.ServiceRef]storage.CatalogEntry{
			{Kind: model.ServicePlaceOffered, ID: "svc-1"}: {
				Kind: model.ServicePlaceOffered, ID: "svc-1",
				Provider: provider, ProviderOwnerID: "owner-1",
				ServiceName: "Haircut", DurationMinutes: 45, Active: true,
			},
			{Kind: model.ServicePlaceOffered, ID: "svc-retired"}: {
				Kind: model.ServicePlaceOffered, ID: "svc-retired",
				Provider: provider, ServiceName: "Perm", DurationMinutes: 90, Active: false,
			},
			{Kind: model.ServicePlaceOffered, ID: "svc-nodur"}: {
				Kind: model.ServicePlaceOffered, ID: "svc-nodur",
				Provider: provider, ServiceName: "Walk-in", DurationMinutes: 0, Active: true,
			},
		},
		providers: map[model.ProviderRef]model.Provider{
			provider: {Ref: provider, OwnerUserID: "owner-1", Active: true},
		},
	}
	r := NewCatalogResolver(store)
	ctx := context.Background()

	inst, err := r.ResolveServiceInstance(ctx, model.ServiceRef{Kind: model.ServicePlaceOffered, ID: "svc-1"})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if inst.ServiceName != "Haircut" || inst.DurationMinutes != 45 || inst.Provider.Ref != provider {
		t.Errorf("instance = %+v", inst)
	}
	if inst.Provider.OwnerUserID != "owner-1" {
		t.Errorf("owner = %q", inst.Provider.OwnerUserID)
	}

	for _, id := range []string{"svc-missing", "svc-retired", "svc-nodur"} {
		_, err := r.ResolveServiceInstance(ctx, model.ServiceRef{Kind: model.ServicePlaceOffered, ID: id})
		if !errors.Is(err, ErrServiceNotFound) {
			t.Errorf("%s: expected ErrServiceNotFound, got %v", id, err)
		}
	}
	if _, err := r.ResolveServiceInstance(ctx, model.ServiceRef{Kind: "bogus", ID: "svc-1"}); !errors.Is(err, ErrServiceNotFound) {
		t.Errorf("invalid kind: %v", err)
	}

	p, err := r.ResolveProvider(ctx, provider)
	if err != nil {
		t.Fatalf("resolve provider: %v", err)
	}
	if p.OwnerUserID != "owner-1" || !p.Active {
		t.Errorf("provider = %+v", p)
	}
	if _, err := r.ResolveProvider(ctx, model.ProviderRef{Kind: model.ProviderPlace, ID: "nope"}); !errors.Is(err, ErrProviderNotFound) {
		t.Errorf("missing provider: %v", err)
	}
}
