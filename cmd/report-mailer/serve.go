package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sungwon/report-mailer/internal/delivery"
	"github.com/sungwon/report-mailer/internal/httpapi"
	"github.com/sungwon/report-mailer/internal/storage"
)

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the admin API without consuming the queue",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), *configPath)
		},
	}
}

func runServe(parent context.Context, configPath string) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := loadApp(configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.openDB(ctx); err != nil {
		return err
	}
	if err := a.openQueue(ctx); err != nil {
		return err
	}
	reports := storage.NewReportStore(a.db)

	srv := newHTTPServer(a, httpapi.Deps{
		Reports:    reports,
		Dispatcher: delivery.NewDispatcher(reports, a.backend.Enqueuer, a.log),
		DLQ:        a.backend.DLQ,
		Ready:      a.readiness(),
		AdminToken: a.cfg.HTTP.AdminToken,
		Log:        a.log,
	})

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.Queue.ShutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	a.log.Info().Str("addr", a.cfg.HTTP.Addr).Msg("admin API listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	a.log.Info().Msg("admin API stopped")
	return nil
}
