package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"library-backend/internal/platform/config"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API and the overdue scheduler",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(ctx context.Context) error {
	a, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.Migrate(ctx); err != nil {
		return err
	}

	if a.Config.Overdue.Enabled {
		sched := a.Scheduler()
		sched.Start()
		defer sched.Stop()
	}

	srv := &http.Server{
		Addr:              a.Config.Server.Addr,
		Handler:           a.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		var err error
		if a.Config.Server.Cert != "" {
			certFile, keyFile := tlsFiles(a.Config)
			a.Log.Infof("listening on https://%s", a.Config.Server.Addr)
			err = srv.ListenAndServeTLS(certFile, keyFile)
		} else {
			a.Log.Infof("listening on http://%s", a.Config.Server.Addr)
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Graceful shutdown
	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	select {
	case err := <-errCh:
		return err
	case <-sigCtx.Done():
	}

	a.Log.Info("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// tlsFiles は config/tls/<mode>/ 配下の証明書と鍵。
func tlsFiles(cfg *config.Config) (certFile, keyFile string) {
	dir := filepath.Join("config", "tls", cfg.Mode)
	return filepath.Join(dir, cfg.Server.Cert), filepath.Join(dir, cfg.Server.Key)
}
