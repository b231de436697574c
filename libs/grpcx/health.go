package grpcx

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// WaitServing polls the standard health service until service reports SERVING
// or ctx ends.
func WaitServing(ctx context.Context, conn *grpc.ClientConn, service string, every time.Duration) error {
	if every <= 0 {
		every = 250 * time.Millisecond
	}
	client := healthpb.NewHealthClient(conn)
	var last string
	for {
		resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: service})
		if err == nil && resp.GetStatus() == healthpb.HealthCheckResponse_SERVING {
			return nil
		}
		if err != nil {
			last = err.Error()
		} else {
			last = resp.GetStatus().String()
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%s not serving: %s", service, last)
		case <-time.After(every):
		}
	}
}
