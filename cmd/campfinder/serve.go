package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/abelbrown/campfinder/internal/coord"
	"github.com/abelbrown/campfinder/internal/logging"
	transporthttp "github.com/abelbrown/campfinder/internal/transport/http"
)

func (c *cli) newServeCmd() *cobra.Command {
	var (
		addr   string
		noSync bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the JSON API and sync from the backend in the background",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				addr = c.cfg.Server.Addr
			}

			st, err := c.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			var coordinator *coord.Coordinator
			if sources := c.backendSources(); !noSync && len(sources) > 0 {
				coordinator = coord.NewCoordinator(st, sources, c.cfg.SyncInterval(), c.events)
				coordinator.Start(ctx, nil)
			} else if !noSync {
				logging.Warn("serve: backend not configured, serving local listings only")
			}

			server := transporthttp.NewServer(st, c.newBuilder(st), transporthttp.Options{
				DefaultLimit: c.cfg.Ranking.DefaultLimit,
				Logger:       c.events,
				AccessLog:    os.Stdout,
			})

			httpServer := &http.Server{
				Addr:         addr,
				Handler:      server.Routes(),
				ReadTimeout:  5 * time.Second,
				WriteTimeout: 15 * time.Second,
				IdleTimeout:  60 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				fmt.Fprintf(cmd.OutOrStdout(), "campfinder API listening on %s\n", addr)
				if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case err := <-errCh:
				stop()
				if coordinator != nil {
					coordinator.Wait()
				}
				return fmt.Errorf("listen %s: %w", addr, err)
			case <-ctx.Done():
			}

			logging.Info("serve: shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			err = httpServer.Shutdown(shutdownCtx)

			if coordinator != nil {
				coordinator.Wait()
			}
			return err
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from config, :8080)")
	cmd.Flags().BoolVar(&noSync, "no-sync", false, "Do not pull from the backend")
	return cmd
}
