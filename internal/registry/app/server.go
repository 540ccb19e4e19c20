// Package app wires the registry runtime: store, role authority, workflow
// engine, the read-only query API, and the gRPC health endpoint.
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"strings"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/deedflow/deedflow/internal/registry/api/web"
	"github.com/deedflow/deedflow/internal/registry/domain/authority"
	"github.com/deedflow/deedflow/internal/registry/storage"
	"github.com/deedflow/deedflow/internal/registry/storage/memory"
	"github.com/deedflow/deedflow/internal/registry/storage/sqlite"
	"github.com/deedflow/deedflow/internal/registry/workflow"
)

// Config defines the inputs for the registry runtime.
type Config struct {
	// HTTPAddr is the listen address for the query API.
	HTTPAddr string
	// HealthAddr is the listen address for the gRPC health endpoint.
	HealthAddr string
	// DBPath is the SQLite database path. Empty selects the in-memory store.
	DBPath string
	// Admin is the identity seeded with the admin capability.
	Admin string
	// Notaries are identities granted the notary capability at startup.
	Notaries []string
	// Governments are identities granted the government capability at startup.
	Governments []string
}

// Runtime holds the constructed registry components.
type Runtime struct {
	Store     storage.Store
	Authority *authority.Authority
	Engine    *workflow.Engine
}

// NewRuntime constructs the store, authority, and engine from config and
// performs the initial capability grants.
func NewRuntime(cfg Config) (*Runtime, error) {
	var store storage.Store
	if strings.TrimSpace(cfg.DBPath) != "" {
		sqliteStore, err := sqlite.Open(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		store = sqliteStore
	} else {
		store = memory.New()
	}

	auth, err := authority.New(cfg.Admin)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	for _, identity := range cfg.Notaries {
		if err := auth.Grant(cfg.Admin, authority.CapabilityNotary, identity); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("grant notary capability: %w", err)
		}
	}
	for _, identity := range cfg.Governments {
		if err := auth.Grant(cfg.Admin, authority.CapabilityGovernment, identity); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("grant government capability: %w", err)
		}
	}

	engine, err := workflow.New(store, auth)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	return &Runtime{
		Store:     store,
		Authority: auth,
		Engine:    engine,
	}, nil
}

// Close releases runtime resources.
func (r *Runtime) Close() error {
	if r == nil || r.Store == nil {
		return nil
	}
	return r.Store.Close()
}

// Run builds the runtime and serves the query API and health endpoint until
// the context ends.
func Run(ctx context.Context, cfg Config) error {
	runtime, err := NewRuntime(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := runtime.Close(); err != nil {
			log.Printf("close registry store: %v", err)
		}
	}()

	queryServer, err := web.NewServer(web.Config{HTTPAddr: cfg.HTTPAddr}, runtime.Engine)
	if err != nil {
		return err
	}

	healthErr := make(chan error, 1)
	stopHealth, err := serveHealth(ctx, cfg.HealthAddr, healthErr)
	if err != nil {
		return err
	}
	defer stopHealth()

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- queryServer.ListenAndServe(ctx)
	}()

	select {
	case err := <-serveErr:
		return err
	case err := <-healthErr:
		return fmt.Errorf("serve health: %w", err)
	case <-ctx.Done():
		return <-serveErr
	}
}

// serveHealth starts the gRPC health endpoint. An empty address disables it.
func serveHealth(ctx context.Context, addr string, serveErr chan<- error) (func(), error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return func() {}, nil
	}

	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen health: %w", err)
	}

	grpcServer := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("registry", grpc_health_v1.HealthCheckResponse_SERVING)

	log.Printf("health endpoint listening on %s", addr)
	go func() {
		if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			serveErr <- err
		}
	}()
	go func() {
		<-ctx.Done()
		grpcServer.GracefulStop()
	}()

	return grpcServer.Stop, nil
}
