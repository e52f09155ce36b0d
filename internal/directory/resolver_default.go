//go:build !protogen

package directory

import "log/slog"

// NewResolver ignores the gRPC address in builds without generated directory
// stubs; the catalog mirror serves all resolution.
func NewResolver(logger *slog.Logger, store CatalogStore, addr string) (Resolver, error) {
	if addr != "" {
		logger.Info("directory grpc address set but grpc resolver not built; using catalog mirror")
	}
	return NewCatalogResolver(store), nil
}
