package grpc

import (
	"context"
	"net"
	"time"

	"github.com/fjod/go_cart/storefront/domain"
	"go.uber.org/zap"
	gogrpc "google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// ServiceName is the service name health checks ask for.
const ServiceName = "storefront"

type productSource interface {
	ListProducts(ctx context.Context) ([]domain.Product, error)
}

// HealthServer reports NOT_SERVING until the product source answered once.
type HealthServer struct {
	server *gogrpc.Server
	health *health.Server
	logger *zap.Logger
}

func NewHealthServer(logger *zap.Logger) *HealthServer {
	s := &HealthServer{
		server: gogrpc.NewServer(),
		health: health.NewServer(),
		logger: logger,
	}
	healthpb.RegisterHealthServer(s.server, s.health)

	// Enable reflection for grpcurl/grpcui
	reflection.Register(s.server)

	s.SetServing(false)
	return s
}

func (s *HealthServer) SetServing(ok bool) {
	st := healthpb.HealthCheckResponse_NOT_SERVING
	if ok {
		st = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", st)
	s.health.SetServingStatus(ServiceName, st)
}

// WarmUp polls the product source until it answers, then flips to SERVING.
// It gives up when ctx is done.
func (s *HealthServer) WarmUp(ctx context.Context, src productSource, retry time.Duration) error {
	ticker := time.NewTicker(retry)
	defer ticker.Stop()
	for {
		products, err := src.ListProducts(ctx)
		if err == nil {
			s.logger.Info("product source warmed up", zap.Int("products", len(products)))
			s.SetServing(true)
			return nil
		}
		s.logger.Warn("product source not ready", zap.Error(err))

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (s *HealthServer) Serve(lis net.Listener) error {
	return s.server.Serve(lis)
}

func (s *HealthServer) GracefulStop() {
	s.health.Shutdown()
	s.server.GracefulStop()
}
