package cli

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nucleus/provision-core/internal/api"
	"github.com/nucleus/provision-core/internal/config"
	"github.com/nucleus/provision-core/internal/connector/minio"
	"github.com/nucleus/provision-core/internal/endpoint"
	"github.com/nucleus/provision-core/internal/persistence"
	"github.com/nucleus/provision-core/internal/verify"
)

func NewServeCommand() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := current.cfg
			if addr != "" {
				cfg.Server.Addr = addr
			}
			return serve(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
	return cmd
}

func serve(parent context.Context, cfg *config.Config) error {
	logger := current.logger
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, cleanup, err := buildService(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	records, closeRecords, err := openRecords(ctx, svc, cfg, logger)
	if err != nil {
		return err
	}
	defer closeRecords()

	images, err := openImages(svc, cfg)
	if err != nil {
		return err
	}

	handler := api.NewHandler(svc, records, images, logger)
	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           api.NewRouter(handler, config.Duration(cfg.Server.RequestTimeout, 30*time.Second)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.Duration(cfg.Server.ShutdownTimeout, 10*time.Second))
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// openRecords saves records to the configured gateway or hosted backend,
// falling back to the local SQLite store.
func openRecords(ctx context.Context, svc *verify.Service, cfg *config.Config, logger *slog.Logger) (*verify.Records, func(), error) {
	saved, err := svc.LoadState()
	switch {
	case err == nil:
		saver, closeFn, serr := verify.SaverFor(svc.Registry(), saved, logger)
		if serr == nil {
			logger.Info("records saved to backend", "kind", saved.Kind)
			return verify.NewRecords(saver, nil, logger), func() { _ = closeFn() }, nil
		}
		if !errors.Is(serr, verify.ErrNoRecordBackend) {
			logger.Warn("backend record store unavailable", "kind", saved.Kind, "error", serr)
		}
	case !errors.Is(err, verify.ErrNoState):
		logger.Warn("could not load saved configuration", "error", err)
	}

	local, err := persistence.OpenLocalRecords(cfg.LocalStorePath(), logger)
	if err != nil {
		return nil, nil, err
	}
	records := verify.NewRecords(local, nil, logger)
	for _, name := range svc.Catalog().Names() {
		stored, err := local.Load(ctx, name)
		if err != nil {
			_ = local.Close()
			return nil, nil, err
		}
		records.Collection(name).Load(stored...)
	}
	logger.Info("records saved locally", "path", cfg.LocalStorePath())
	return records, func() { _ = local.Close() }, nil
}

// openImages uses the saved object store, or a directory next to the local
// record store.
func openImages(svc *verify.Service, cfg *config.Config) (*persistence.Images, error) {
	saved, err := svc.LoadState()
	if err == nil && saved.Kind == endpoint.KindObjectStore {
		return verify.ImagesFor(svc.Registry(), saved)
	}
	store := minio.NewLocalStore(filepath.Join(filepath.Dir(cfg.LocalStorePath()), "objects"))
	return persistence.NewImages(store, "images"), nil
}
