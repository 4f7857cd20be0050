// Document catalog gRPC server
// Serves collection metadata, constrained documents and completions over gRPC
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"

	"github.com/nainya/doccatalog/internal/config"
	"github.com/nainya/doccatalog/internal/server"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "doccatalog",
		Short:         "Document collection catalog server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ./doccatalog.yaml)")

	load := func() (*config.Config, error) {
		return config.Load(configPath)
	}
	root.AddCommand(newServeCommand(load), newReconcileCommand(load))
	return root
}

func newServeCommand(load func() (*config.Config, error)) *cobra.Command {
	var port, metricsPort int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the gRPC catalog service and the observability endpoints",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = port
			}
			if cmd.Flags().Changed("metrics-port") {
				cfg.Server.MetricsPort = metricsPort
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
	cmd.Flags().IntVar(&port, "port", 0, "gRPC port (overrides server.port)")
	cmd.Flags().IntVar(&metricsPort, "metrics-port", 0, "observability port, 0 disables (overrides server.metrics_port)")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config) error {
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	a.log.LogServerStart(cfg.Server.Port, cfg.Store.Backend)

	if removed, err := a.catalog.Reconcile(ctx); err != nil {
		a.log.Warn("startup reconcile failed").Err(err).Send()
	} else if len(removed) > 0 {
		a.log.Info("removed orphaned collection metadata").Strs("collections", removed).Send()
	}

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Server.Port))
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	grpcServer := grpc.NewServer(
		grpc.UnaryInterceptor(server.GrpcMetricsInterceptor(a.metrics, a.log.GrpcLogger("CatalogService"))),
		grpc.MaxRecvMsgSize(16*1024*1024),
		grpc.MaxSendMsgSize(16*1024*1024),
	)
	server.RegisterCatalogServiceServer(grpcServer, server.NewServer(a.catalog, a.docs, a.suggest, a.log))

	var obs *server.ObservabilityServer
	if cfg.Server.MetricsPort > 0 {
		obs = server.NewObservabilityServer(cfg.Server.MetricsPort, a.registry, a.ready, a.log)
		go func() {
			if err := obs.Start(); err != nil {
				a.log.Error("observability server stopped").Err(err).Send()
			}
		}()
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- grpcServer.Serve(lis)
	}()
	a.log.LogServerReady(cfg.Server.Port)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("failed to serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	a.log.LogServerShutdown()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if obs != nil {
		if err := obs.Shutdown(shutdownCtx); err != nil {
			a.log.Warn("observability shutdown failed").Err(err).Send()
		}
	}
	grpcServer.GracefulStop()
	return nil
}

func newReconcileCommand(load func() (*config.Config, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Remove collection metadata whose data container no longer exists",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			removed, err := a.catalog.Reconcile(cmd.Context())
			if err != nil {
				return err
			}
			for _, name := range removed {
				fmt.Fprintln(cmd.OutOrStdout(), "removed", name)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d orphaned collection(s) removed\n", len(removed))
			return nil
		},
	}
}
