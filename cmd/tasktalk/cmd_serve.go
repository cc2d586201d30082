package main

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

	"github.com/user/tasktalk/internal/api"
	"github.com/user/tasktalk/internal/auth"
	"github.com/user/tasktalk/internal/delivery"
	"github.com/user/tasktalk/internal/gateway"
	"github.com/user/tasktalk/internal/notify"
	"github.com/user/tasktalk/internal/scheduler"
	"github.com/user/tasktalk/internal/telegram"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the tasktalk daemon",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	setupLogging(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, err := openStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.close()

	pid := pidFileIn(cfg.DataDir)
	if err := pid.write(); err != nil {
		return err
	}
	defer pid.remove()

	registry, err := newRegistry(ctx, cfg, st.tasks)
	if err != nil {
		return err
	}

	deliveryReg := delivery.NewRegistry()
	deliveryReg.Register("log:", delivery.LogHandler)

	notifier, err := notify.New(cfg.Notify.Routes, deliveryReg)
	if err != nil {
		return err
	}
	registry.Observe(notifier.Observe)
	defer notifier.Wait()

	ag, err := newAgent(cfg, registry)
	if err != nil {
		return err
	}

	gw := gateway.New(st.conversations, ag, int64(cfg.MaxConcurrent))
	gw.Start(ctx)
	defer gw.Stop()

	slog.Info("tasktalk started",
		"data_dir", cfg.DataDir,
		"log_level", cfg.LogLevel,
		"storage", cfg.Storage.Driver,
		"strategy", ag.Strategy(),
		"max_concurrent", cfg.MaxConcurrent,
		"llm_model", cfg.LLM.Model,
		"pid_file", string(pid),
	)

	if cfg.Telegram.Token != "" {
		adapter, err := telegram.New(cfg.Telegram.Token, gw, st.tasks)
		if err != nil {
			return fmt.Errorf("create telegram adapter: %w", err)
		}
		go adapter.Start(ctx)
		deliveryReg.Register("telegram:", adapter.DeliveryHandler())
		slog.Info("telegram adapter started")
	} else {
		slog.Warn("telegram adapter disabled (no token)")
	}

	sched := scheduler.New(routineStore(cfg), gw, deliveryReg)
	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	defer sched.Stop()
	slog.Info("scheduler started", "routines", sched.Entries())

	verifier, err := auth.NewVerifier(cfg.Auth.JWTSecret)
	if err != nil {
		slog.Warn("api authentication disabled, every /api request will be rejected", "error", err)
	}

	httpServer := &http.Server{
		Addr: cfg.HTTP.Addr,
		Handler: api.New(api.Config{
			Gateway:  gw,
			Registry: registry,
			Tasks:    st.tasks,
			Routines: sched,
			Verifier: verifier,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		slog.Info("http server started", "addr", cfg.HTTP.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server error", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Warn("http shutdown", "error", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	for {
		sig := <-sigChan
		if sig == syscall.SIGHUP {
			slog.Info("received SIGHUP, restarting")
			execPath, err := os.Executable()
			if err != nil {
				slog.Error("failed to get executable path", "error", err)
				continue
			}
			pid.remove()
			if err := syscall.Exec(execPath, os.Args, os.Environ()); err != nil {
				slog.Error("failed to re-exec", "error", err)
				if writeErr := pid.write(); writeErr != nil {
					slog.Error("failed to re-write PID file", "error", writeErr)
				}
				continue
			}
		}
		slog.Info("shutting down", "signal", sig)
		return nil
	}
}
