// Package server wires the VaultKeeper server together: configuration,
// logging, the PostgreSQL pool and migrations, the decision engines, and
// the gRPC and HTTP listeners with graceful shutdown.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/vaultkeeper/internal/logging"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/blobstore"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/config"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/httpapi"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/metrics"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/services"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/shared/db"

	gs "github.com/dmitrijs2005/vaultkeeper/internal/server/grpc"
)

const dbStatsInterval = 15 * time.Second

type App struct {
	config *config.Config
	logger logging.Logger
	db     *sql.DB
	grpc   *gs.GRPCServer
	http   *httpapi.Server
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {

	logger := logging.New(os.Stdout, c.LogLevel, c.LogFormat)

	conn, err := db.Open(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	app, err := newApp(ctx, c, logger, conn)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	return app, nil
}

func newApp(ctx context.Context, c *config.Config, logger logging.Logger, conn *sql.DB) (*App, error) {
	m := repomanager.NewPostgresRepositoryManager()
	if err := m.RunMigrations(ctx, conn); err != nil {
		return nil, fmt.Errorf("migration error: %w", err)
	}

	var blobs blobstore.Deleter = blobstore.Nop{}
	if c.S3Bucket != "" {
		s3, err := blobstore.NewS3Deleter(ctx, c)
		if err != nil {
			return nil, fmt.Errorf("blob store init error: %w", err)
		}
		blobs = s3
	}

	opts := []services.Option{
		services.WithLogger(logger.With("module", "engines")),
		services.WithBlobStore(blobs),
	}

	svc, threats, err := buildServices(conn, m, c, opts)
	if err != nil {
		return nil, err
	}

	grpcServer, err := gs.NewGRPCServer(c.EndpointAddrGRPC, logger, svc, c.SecretKey)
	if err != nil {
		return nil, err
	}

	httpServer, err := httpapi.NewServer(c.EndpointAddrHTTP, logger, threats, conn, c.SecretKey)
	if err != nil {
		return nil, err
	}

	return &App{config: c, logger: logger, db: conn, grpc: grpcServer, http: httpServer}, nil
}

func buildServices(conn *sql.DB, m repomanager.RepositoryManager, c *config.Config, opts []services.Option) (gs.Services, *services.ThreatEngine, error) {
	var svc gs.Services

	threats, err := services.NewThreatEngine(conn, m, c, opts...)
	if err != nil {
		return svc, nil, fmt.Errorf("threat engine: %w", err)
	}
	auth, err := services.NewAuthService(conn, m, c, opts...)
	if err != nil {
		return svc, nil, fmt.Errorf("auth service: %w", err)
	}
	dualKey, err := services.NewDualKeyEngine(conn, m, c, opts...)
	if err != nil {
		return svc, nil, fmt.Errorf("dual-key engine: %w", err)
	}
	transfers, err := services.NewTransferEngine(conn, m, c, opts...)
	if err != nil {
		return svc, nil, fmt.Errorf("transfer engine: %w", err)
	}
	emergency, err := services.NewEmergencyEngine(conn, m, c, opts...)
	if err != nil {
		return svc, nil, fmt.Errorf("emergency engine: %w", err)
	}
	nominees, err := services.NewNomineeService(conn, m, c, opts...)
	if err != nil {
		return svc, nil, fmt.Errorf("nominee service: %w", err)
	}
	deletion, err := services.NewDeletionEngine(conn, m, c, opts...)
	if err != nil {
		return svc, nil, fmt.Errorf("deletion engine: %w", err)
	}

	svc = gs.Services{
		Auth:      auth,
		Threats:   threats,
		DualKey:   dualKey,
		Transfers: transfers,
		Emergency: emergency,
		Nominees:  nominees,
		Deletion:  deletion,
	}
	return svc, threats, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// Run serves gRPC and HTTP until a termination signal arrives, ctx is done,
// or one of the listeners fails. The database pool is closed on return.
func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(3)
	go func() {
		defer wg.Done()
		if err := app.grpc.Run(ctx); err != nil {
			app.logger.Error(ctx, "grpc server failed", "error", err.Error())
			cancelFunc()
		}
	}()
	go func() {
		defer wg.Done()
		if err := app.http.Run(ctx); err != nil {
			app.logger.Error(ctx, "http server failed", "error", err.Error())
			cancelFunc()
		}
	}()
	go func() {
		defer wg.Done()
		metrics.StartDBStatsCollector(ctx, app.db, dbStatsInterval)
	}()

	wg.Wait()

	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, "db close failed", "error", err.Error())
	}
	app.logger.Info(ctx, "App stopped")
}
