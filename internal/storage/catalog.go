package storage

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/yordan-p/slotledger/internal/model"
	"github.com/yordan-p/slotledger/libs/db"
)

// CatalogEntry is the local read model of a directory service instance:
// enough to resolve a booking request into (provider, service, duration)
// without a synchronous directory call.
type CatalogEntry struct {
	Kind            model.ServiceKind
	ID              string
	Provider        model.ProviderRef
	ProviderOwnerID string
	ServiceName     string
	DurationMinutes int
	Active          bool
}

// CatalogRepository holds directory data mirrored from
// directory.service.upserted.v1 events.
type CatalogRepository struct {
	pool *db.Pool
}

func NewCatalogRepository(pool *db.Pool) *CatalogRepository {
	return &CatalogRepository{pool: pool}
}

func (r *CatalogRepository) Upsert(ctx context.Context, e CatalogEntry) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO service_catalog
			(kind, id, provider_kind, provider_id, provider_owner_id, service_name, duration_minutes, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (kind, id) DO UPDATE
		SET provider_kind = EXCLUDED.provider_kind,
			provider_id = EXCLUDED.provider_id,
			provider_owner_id = EXCLUDED.provider_owner_id,
			service_name = EXCLUDED.service_name,
			duration_minutes = EXCLUDED.duration_minutes,
			active = EXCLUDED.active,
			updated_at = now()
	`, e.Kind, e.ID, e.Provider.Kind, e.Provider.ID, e.ProviderOwnerID, e.ServiceName, e.DurationMinutes, e.Active)
	return err
}

func (r *CatalogRepository) Get(ctx context.Context, ref model.ServiceRef) (CatalogEntry, error) {
	var e CatalogEntry
	err := r.pool.QueryRow(ctx, `
		SELECT kind, id, provider_kind, provider_id, provider_owner_id, service_name, duration_minutes, active
		FROM service_catalog
		WHERE kind = $1 AND id = $2
	`, ref.Kind, ref.ID).Scan(
		&e.Kind, &e.ID, &e.Provider.Kind, &e.Provider.ID, &e.ProviderOwnerID,
		&e.ServiceName, &e.DurationMinutes, &e.Active,
	)
	return e, err
}

// GetProvider returns the directory's provider view from any catalog row
// carrying that provider.
func (r *CatalogRepository) GetProvider(ctx context.Context, ref model.ProviderRef) (model.Provider, error) {
	var p model.Provider
	p.Ref = ref
	err := r.pool.QueryRow(ctx, `
		SELECT provider_owner_id, BOOL_OR(active)
		FROM service_catalog
		WHERE provider_kind = $1 AND provider_id = $2
		GROUP BY provider_owner_id
		LIMIT 1
	`, ref.Kind, ref.ID).Scan(&p.OwnerUserID, &p.Active)
	if err == pgx.ErrNoRows {
		return model.Provider{}, pgx.ErrNoRows
	}
	return p, err
}
