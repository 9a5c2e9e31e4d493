package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/fakeyudi/oculist/internal/devbackend"
)

var (
	devAddr string
	devSeed bool
)

var devBackendCmd = &cobra.Command{
	Use:   "dev-backend",
	Short: "Run an in-memory practice backend for local use",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		srv := devbackend.New(nil)
		if devSeed {
			srv.Seed(devbackend.DemoVisits(time.Now())...)
		}

		httpSrv := &http.Server{
			Addr:              devAddr,
			Handler:           srv.Router(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		g, ctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			slog.Info("dev backend listening", "addr", devAddr)
			if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("dev backend: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return httpSrv.Shutdown(shutdownCtx)
		})

		fmt.Fprintf(cmd.OutOrStdout(), "Dev backend on %s… press Ctrl-C to stop\n", devAddr)
		return g.Wait()
	},
}

func init() {
	devBackendCmd.Flags().StringVar(&devAddr, "addr", ":8000", "listen address")
	devBackendCmd.Flags().BoolVar(&devSeed, "seed", true, "load a demo schedule")
	rootCmd.AddCommand(devBackendCmd)
}
