package main

import (
	"context"
	"flag"
	"net"
	"os"
	"os/signal"
	"syscall"

	grpclib "google.golang.org/grpc"
	"google.golang.org/grpc/reflection"

	grpcadapter "github.com/simaogato/navfolio-backend/internal/adapter/grpc"
	"github.com/simaogato/navfolio-backend/internal/app"
	"github.com/simaogato/navfolio-backend/internal/config"
	"github.com/simaogato/navfolio-backend/internal/logging"
)

func main() {
	configPath := flag.String("config", "navfolio.toml", "path to the TOML config file")
	flag.Parse()

	// 1. Configuration and logging
	cfg, err := config.LoadConfig(*configPath, os.Getenv("NAVFOLIO_CONFIG"))
	if err != nil {
		logging.New("error").Fatal().Err(err).Msg("Failed to load configuration")
	}
	logger := app.NewLogger(cfg.Logging)

	// 2. Repositories and services
	ctx := context.Background()
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialise application")
	}
	defer a.Close()

	// 3. Seed default tax rates
	created, err := a.TaxRateSeeder.Seed(ctx)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to seed tax rates")
	}
	logger.Info().Ints("created_years", created).Msg("Tax rates seeded")

	// 4. Start gRPC Server
	grpcServer := grpclib.NewServer(
		grpclib.ChainUnaryInterceptor(
			grpcadapter.LoggingInterceptor(logger),
			grpcadapter.AuthInterceptor(cfg.Server.APIToken),
		),
	)

	grpcadapter.RegisterPortfolioServer(grpcServer, grpcadapter.NewServer(
		a.PortfolioService,
		a.CapitalGainsService,
		a.SimulatorService,
		a.LedgerService,
	))

	reflection.Register(grpcServer)

	addr := cfg.Server.Address()
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		logger.Fatal().Err(err).Str("address", addr).Msg("Failed to listen")
	}

	go func() {
		logger.Info().Str("address", addr).Bool("cache", a.Cache != nil).Msg("gRPC server listening")
		if err := grpcServer.Serve(lis); err != nil {
			logger.Fatal().Err(err).Msg("Failed to serve gRPC server")
		}
	}()

	// Graceful shutdown
	waitForShutdown(grpcServer, logger)
}

// waitForShutdown waits for SIGTERM or SIGINT and gracefully shuts down the server
func waitForShutdown(grpcServer *grpclib.Server, logger *logging.Logger) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

	sig := <-sigChan
	logger.Info().Str("signal", sig.String()).Msg("Shutting down gracefully")

	grpcServer.GracefulStop()
	logger.Info().Msg("gRPC server stopped")
}
