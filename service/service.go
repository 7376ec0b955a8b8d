package service

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"

	"github.com/ethereum-optimism/infra/fix-acceptor/metrics"
	"github.com/ethereum-optimism/optimism/op-service/httputil"
	opmetrics "github.com/ethereum-optimism/optimism/op-service/metrics"
	"github.com/ethereum/go-ethereum/log"
)

// Config selects which auxiliary servers run
type Config struct {
	HealthzEnabled bool
	HealthzAddr    string
	HealthzPort    int
	Metrics        opmetrics.CLIConfig
}

// Service runs the healthz and metrics servers next to the test runs
type Service struct {
	log     log.Logger
	status  StatusFunc
	healthz *httputil.HTTPServer
	metrics *httputil.HTTPServer
}

func New(logger log.Logger, status StatusFunc) *Service {
	return &Service{
		log:    logger,
		status: status,
	}
}

// Start starts the enabled servers. On error the servers already started are stopped.
func (s *Service) Start(ctx context.Context, cfg Config) error {
	s.log.Info("service starting")

	if cfg.HealthzEnabled {
		addr := net.JoinHostPort(cfg.HealthzAddr, strconv.Itoa(cfg.HealthzPort))
		srv, err := httputil.StartHTTPServer(addr, NewHealthzHandler(s.log, s.status))
		if err != nil {
			metrics.RecordErrorDetails("error starting healthz server", err)
			return fmt.Errorf("failed to start healthz server: %w", err)
		}
		s.log.Info("Started healthz server", "endpoint", srv.Addr())
		s.healthz = srv
	}

	if cfg.Metrics.Enabled {
		srv, err := opmetrics.StartServer(metrics.Registry, cfg.Metrics.ListenAddr, cfg.Metrics.ListenPort)
		if err != nil {
			metrics.RecordErrorDetails("error starting metrics server", err)
			return errors.Join(fmt.Errorf("failed to start metrics server: %w", err), s.Stop(ctx))
		}
		s.log.Info("Started metrics server", "endpoint", srv.Addr())
		s.metrics = srv
	}

	s.log.Info("service started")
	return nil
}

// HealthzAddr returns the healthz listening address, nil when it is not running
func (s *Service) HealthzAddr() net.Addr {
	if s.healthz == nil {
		return nil
	}
	return s.healthz.Addr()
}

// MetricsAddr returns the metrics listening address, nil when it is not running
func (s *Service) MetricsAddr() net.Addr {
	if s.metrics == nil {
		return nil
	}
	return s.metrics.Addr()
}

// Stop shuts down every running server
func (s *Service) Stop(ctx context.Context) error {
	s.log.Info("service shutting down")

	var result error
	if s.healthz != nil {
		if err := s.healthz.Stop(ctx); err != nil {
			result = errors.Join(result, fmt.Errorf("failed to stop healthz server: %w", err))
		}
		s.healthz = nil
		s.log.Info("healthz stopped")
	}
	if s.metrics != nil {
		if err := s.metrics.Stop(ctx); err != nil {
			result = errors.Join(result, fmt.Errorf("failed to stop metrics server: %w", err))
		}
		s.metrics = nil
		s.log.Info("metrics stopped")
	}
	return result
}
