package cli

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tatianab/spyfall-agents/internal/server"
)

const shutdownTimeout = 10 * time.Second

func (a *app) serveCmd() *cobra.Command {
	var (
		addr          string
		exposePrompts bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and event streams",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("addr") {
				a.cfg.Addr = addr
			}
			return a.serve(cmd.Context(), exposePrompts)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from config, :8080)")
	cmd.Flags().BoolVar(&exposePrompts, "inspect", false, "Stream prompts and agent system prompts (reveals secrets)")
	return cmd
}

func (a *app) serve(ctx context.Context, exposePrompts bool) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	catalog, err := a.catalog()
	if err != nil {
		return err
	}
	if a.cfg.LocationsDir != "" {
		if err := catalog.Watch(ctx, a.cfg.LocationsDir); err != nil {
			a.logger.Warn("not watching location packs", zap.Error(err))
		}
	}

	recorder, closeRecorder, err := a.recorder(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeRecorder(); err != nil {
			a.logger.Warn("closing analytics", zap.Error(err))
		}
	}()

	s := server.New(server.Options{
		Catalog:       catalog,
		Recorder:      recorder,
		Settings:      a.cfg.LLM,
		CheckKeys:     a.cfg.CheckKeys,
		ExposePrompts: exposePrompts,
		Logger:        a.logger,
	})
	defer s.Close()

	srv := &http.Server{
		Addr:              a.cfg.Addr,
		Handler:           s.RegisterRoutes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("listening", zap.String("addr", a.cfg.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	a.logger.Info("shutting down")
	// Streams stay open until their games end, so stop the games first.
	s.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
