//go:build protogen

package directory

import (
	"context"
	"log/slog"
	"time"

	directoryv1 "github.com/yordan-p/slotledger/protos/gen/directory/v1"
	"github.com/yordan-p/slotledger/internal/model"
	"github.com/yordan-p/slotledger/libs/grpcx"
)

type grpcResolver struct {
	client   directoryv1.DirectoryServiceClient
	fallback Resolver
	logger   *slog.Logger
}

// NewResolver dials the directory service and falls back to the catalog
// mirror when it is unreachable.
func NewResolver(logger *slog.Logger, store CatalogStore, addr string) (Resolver, error) {
	fallback := NewCatalogResolver(store)
	if addr == "" {
		return fallback, nil
	}
	conn, err := grpcx.Dial(context.Background(), addr, grpcx.DialOptions{Timeout: 3 * time.Second})
	if err != nil {
		return nil, err
	}
	return &grpcResolver{
		client:   directoryv1.NewDirectoryServiceClient(conn),
		fallback: fallback,
		logger:   logger,
	}, nil
}

func (r *grpcResolver) ResolveProvider(ctx context.Context, ref model.ProviderRef) (model.Provider, error) {
	resp, err := r.client.GetProvider(ctx, &directoryv1.ProviderRequest{
		Kind: string(ref.Kind),
		Id:   ref.ID,
	})
	if err != nil {
		r.logger.Warn("directory grpc resolve failed; using catalog mirror", "err", err)
		return r.fallback.ResolveProvider(ctx, ref)
	}
	if !resp.GetFound() {
		return model.Provider{}, ErrProviderNotFound
	}
	return model.Provider{
		Ref:         ref,
		DisplayName: resp.GetDisplayName(),
		OwnerUserID: resp.GetOwnerUserId(),
		Active:      resp.GetActive(),
	}, nil
}

func (r *grpcResolver) ResolveServiceInstance(ctx context.Context, ref model.ServiceRef) (ServiceInstance, error) {
	resp, err := r.client.GetServiceInstance(ctx, &directoryv1.ServiceInstanceRequest{
		Kind: string(ref.Kind),
		Id:   ref.ID,
	})
	if err != nil {
		r.logger.Warn("directory grpc resolve failed; using catalog mirror", "err", err)
		return r.fallback.ResolveServiceInstance(ctx, ref)
	}
	if !resp.GetFound() {
		return ServiceInstance{}, ErrServiceNotFound
	}
	return ServiceInstance{
		Provider: model.Provider{
			Ref:         model.ProviderRef{Kind: model.ProviderKind(resp.GetProviderKind()), ID: resp.GetProviderId()},
			OwnerUserID: resp.GetProviderOwnerUserId(),
			Active:      true,
		},
		ServiceName:     resp.GetServiceName(),
		DurationMinutes: int(resp.GetDurationMinutes()),
	}, nil
}
