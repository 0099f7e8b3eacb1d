package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/solatis/condfields/internal/core/api"
	"github.com/solatis/condfields/internal/core/auth"
	"github.com/solatis/condfields/internal/core/config"
	"github.com/solatis/condfields/internal/core/metrics"
	"github.com/solatis/condfields/internal/core/server"
	"github.com/solatis/condfields/internal/rules"
)

const Version = "0.1.0"

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start gRPC form states service",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("host", "0.0.0.0", "gRPC server host")
	serveCmd.Flags().Int("port", 50051, "gRPC server port")
	serveCmd.Flags().Int("metrics-port", 9090, "Prometheus metrics port (0 disables)")
	serveCmd.Flags().String("language", "und", "language substituted for %lang in selectors")
	serveCmd.Flags().Bool("reject-cycles", false, "fail requests for bundles with cyclic rules")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)

	database, store, cfg, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer database.Close()

	engine, err := newEngine(store, cfg.Engine)
	if err != nil {
		return fmt.Errorf("failed to create engine: %w", err)
	}
	admin, err := rules.NewAdmin(store)
	if err != nil {
		return fmt.Errorf("failed to create admin: %w", err)
	}

	secrets, err := config.AdminSecrets()
	if err != nil {
		return fmt.Errorf("failed to load admin secrets: %w", err)
	}
	var authenticator *auth.Authenticator
	if len(secrets) > 0 {
		authenticator, err = auth.NewAuthenticator(secrets, store.Queries())
		if err != nil {
			return fmt.Errorf("failed to create authenticator: %w", err)
		}
	} else {
		logrus.Warn("no admin secrets configured (set CF_ADMIN_SECRET); rule changes over gRPC are disabled")
	}

	service, err := api.NewFormStatesService(engine, admin)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}
	grpcServer, err := server.NewGRPCServer(cfg.Server, service, authenticator)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	errChan := make(chan error, 2)

	var metricsServer *metrics.Server
	if cfg.Server.MetricsPort > 0 {
		metricsServer = metrics.NewServer(cfg.Server.Host, cfg.Server.MetricsPort)
		go func() {
			errChan <- metricsServer.Start()
		}()
	}

	logrus.WithFields(logrus.Fields{
		"version":      Version,
		"host":         cfg.Server.Host,
		"port":         cfg.Server.Port,
		"metrics_port": cfg.Server.MetricsPort,
	}).Info("starting condfields form states service")
	go func() {
		errChan <- grpcServer.Start(ctx)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case runErr = <-errChan:
	case <-sigChan:
		logrus.Info("shutting down gracefully")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logrus.WithError(err).Warn("failed to stop metrics server")
		}
	}
	if err := grpcServer.Shutdown(shutdownCtx); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}
