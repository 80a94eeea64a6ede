package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/KaramelBytes/dataprofiler/internal/httpserver"
	"github.com/KaramelBytes/dataprofiler/internal/profile"
	"github.com/KaramelBytes/dataprofiler/internal/report"
	"github.com/KaramelBytes/dataprofiler/internal/service"
	"github.com/KaramelBytes/dataprofiler/internal/storage"
	"github.com/KaramelBytes/dataprofiler/internal/telemetry"
)

const shutdownTimeout = 5 * time.Second

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the upload and report API over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		c := effectiveConfig()
		logger, err := newLogger()
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		svc := service.New(report.NewMemoryStore(), profile.NewHTMLRenderer())
		svc.Logger = logger
		svc.MaxRows = maxRowsSetting()

		var provider *telemetry.Provider
		if c.OTelEnabled {
			provider, err = telemetry.Init(ctx, "dataprofiler", Version)
			if err != nil {
				return fmt.Errorf("init telemetry: %w", err)
			}
			svc.Tracer = provider.Tracer()
			svc.Metrics = telemetry.NewInstruments()
			logger.Info("telemetry enabled")
		}
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := provider.Shutdown(sctx); err != nil {
				logger.Warn("telemetry shutdown", zap.Error(err))
			}
		}()

		if c.MinioEndpoint != "" {
			art, err := storage.NewMinio(ctx, storage.Config{
				Endpoint:  c.MinioEndpoint,
				Region:    c.MinioRegion,
				Bucket:    c.MinioBucket,
				AccessKey: c.MinioAccessKey,
				SecretKey: c.MinioSecretKey,
				UseSSL:    c.MinioUseSSL,
			})
			if err != nil {
				return fmt.Errorf("init artifact storage: %w", err)
			}
			svc.Artifacts = art
			logger.Info("artifact storage enabled", zap.String("endpoint", c.MinioEndpoint), zap.String("bucket", c.MinioBucket))
		}

		addr := c.ListenAddr
		if cmd.Flags().Changed("addr") || addr == "" {
			addr = serveAddr
		}
		handler := httpserver.NewRouter(svc, httpserver.Options{
			AllowedOrigins: c.AllowedOrigins,
			MaxUploadBytes: int64(c.MaxUploadMB) << 20,
			Version:        Version,
			Logger:         logger,
		})
		srv := &http.Server{
			Addr:         addr,
			Handler:      handler,
			ReadTimeout:  seconds(c.ReadTimeoutSec, 15),
			WriteTimeout: seconds(c.WriteTimeoutSec, 120),
			IdleTimeout:  60 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			logger.Info("listening", zap.String("addr", addr), zap.String("version", Version))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		}()

		select {
		case err := <-errCh:
			if err != nil {
				return fmt.Errorf("listen: %w", err)
			}
			return nil
		case <-ctx.Done():
		}

		logger.Info("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		logger.Info("server stopped")
		return nil
	},
}

func seconds(n, fallback int) time.Duration {
	if n <= 0 {
		n = fallback
	}
	return time.Duration(n) * time.Second
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8000", "listen address (overrides listen_addr)")
}
