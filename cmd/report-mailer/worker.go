package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sungwon/report-mailer/internal/attachment"
	"github.com/sungwon/report-mailer/internal/company"
	"github.com/sungwon/report-mailer/internal/compose"
	"github.com/sungwon/report-mailer/internal/delivery"
	"github.com/sungwon/report-mailer/internal/httpapi"
	"github.com/sungwon/report-mailer/internal/lock"
	"github.com/sungwon/report-mailer/internal/mailer"
	"github.com/sungwon/report-mailer/internal/provider"
	"github.com/sungwon/report-mailer/internal/queue"
	"github.com/sungwon/report-mailer/internal/storage"
)

func newWorkerCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Consume delivery payloads and email the reports",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWorker(cmd.Context(), *configPath)
		},
	}
}

func runWorker(parent context.Context, configPath string) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := loadApp(configPath)
	if err != nil {
		return err
	}
	defer a.Close()
	log := a.log
	log.Info().Msg("starting report mailer worker")

	if err := a.openDB(ctx); err != nil {
		return err
	}
	if err := a.openRedis(ctx); err != nil {
		return err
	}
	if err := a.openQueue(ctx); err != nil {
		return err
	}
	reports := storage.NewReportStore(a.db)

	archives, err := attachment.New(ctx, a.cfg.Attachments, log)
	if err != nil {
		return fmt.Errorf("failed to open attachment store: %w", err)
	}

	var envFiles []string
	if a.cfg.CompanyEnvFile != "" {
		envFiles = append(envFiles, a.cfg.CompanyEnvFile)
	}
	info, err := company.Load(envFiles...)
	if err != nil {
		return fmt.Errorf("failed to load company profile: %w", err)
	}

	loc, err := a.cfg.Mail.Location()
	if err != nil {
		return fmt.Errorf("failed to load mail time zone: %w", err)
	}

	transport, err := provider.NewProvider(a.cfg.Mail.Provider, nil)
	if err != nil {
		return err
	}
	sender, err := mailer.New(
		archives,
		compose.New(info.Context(), compose.WithLocation(loc)),
		transport,
		a.cfg.Mail.Sender.WithSender(info.Name, info.Email),
		log,
	)
	if err != nil {
		return fmt.Errorf("failed to build mailer: %w", err)
	}

	var locker lock.Locker = lock.NopLocker{}
	if a.cfg.Lock.Enabled {
		locker = lock.NewRedisLocker(a.redis, a.cfg.Lock.Prefix)
	}

	policy := a.cfg.Delivery.Policy()
	job := delivery.NewJob(reports, sender, locker, log,
		delivery.WithPolicy(policy),
		delivery.WithLockMargin(a.cfg.Delivery.LockMargin),
	)
	exec := queue.NewExecutor(job, job, policy, log)
	dequeuer := a.backend.Dequeuer(exec)

	if err := dequeuer.Start(ctx); err != nil {
		return fmt.Errorf("failed to start dequeuer: %w", err)
	}
	log.Info().
		Str("queue", a.cfg.Queue.Type).
		Int("workers", a.cfg.Queue.WorkerCount).
		Str("provider", transport.GetName()).
		Int("max_attempts", policy.MaxAttempts).
		Dur("attempt_timeout", policy.AttemptTimeout).
		Msg("report mailer worker started")

	ready := a.readiness()
	ready["provider"] = httpapi.PingFunc(transport.HealthCheck)

	srv := newHTTPServer(a, httpapi.Deps{
		Reports:    reports,
		Dispatcher: delivery.NewDispatcher(reports, a.backend.Enqueuer, log),
		DLQ:        a.backend.DLQ,
		Ready:      ready,
		AdminToken: a.cfg.HTTP.AdminToken,
		Log:        log,
	})
	serveErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		log.Error().Err(err).Msg("admin server failed")
	}

	log.Info().Msg("shutting down report mailer worker")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.Queue.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("admin server shutdown incomplete")
	}
	if err := dequeuer.Stop(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("dequeuer shutdown incomplete")
	}

	log.Info().Msg("report mailer worker stopped")
	return nil
}

func newHTTPServer(a *app, deps httpapi.Deps) *http.Server {
	return &http.Server{
		Addr:         a.cfg.HTTP.Addr,
		Handler:      httpapi.NewRouter(deps),
		ReadTimeout:  a.cfg.HTTP.ReadTimeout,
		WriteTimeout: a.cfg.HTTP.WriteTimeout,
	}
}
