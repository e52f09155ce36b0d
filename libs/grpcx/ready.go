package grpcx

import (
	"context"
	"errors"
	"fmt"
	"time"

	"google.golang.org/grpc/health/grpc_health_v1"
)

// ReadyCheck probes a gRPC dependency via the standard health service.
func ReadyCheck(addr string) func(context.Context) error {
	return func(ctx context.Context) error {
		if addr == "" {
			return errors.New("grpc address not configured")
		}
		conn, err := Dial(ctx, addr, DialOptions{Timeout: 2 * time.Second})
		if err != nil {
			return err
		}
		defer conn.Close()

		resp, err := grpc_health_v1.NewHealthClient(conn).Check(ctx, &grpc_health_v1.HealthCheckRequest{})
		if err != nil {
			return err
		}
		if resp.GetStatus() != grpc_health_v1.HealthCheckResponse_SERVING {
			return fmt.Errorf("health status %s", resp.GetStatus())
		}
		return nil
	}
}
