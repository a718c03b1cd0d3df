package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"untiscal/internal/config"
	appLog "untiscal/internal/log"
	"untiscal/internal/notify"
	syncer "untiscal/internal/sync"
	"untiscal/internal/untis"
	"untiscal/internal/web"
)

type flagConfig struct {
	configPath  string
	sessionPath string
	weeks       int
	once        bool
}

func main() {
	appLog.Info("untiscal starting", "version", "0.1.0-dev")

	flags := parseFlags()

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}
	appLog.SetLevel(appLog.ParseLevel(conf.LogLevel))

	// CLI overrides.
	if flags.sessionPath != "" {
		conf.SessionPath = flags.sessionPath
	}
	if flags.weeks > 0 {
		conf.WeeksAhead = flags.weeks
	}

	appLog.Info("effective config",
		"server", conf.Server,
		"timezone", conf.Timezone,
		"weeks_ahead", conf.WeeksAhead,
		"calendar_path", conf.CalendarPath,
		"exam_calendar_path", conf.ExamCalendarPath,
		"webhook_configured", conf.WebhookURL != "",
		"refresh", conf.RefreshCron,
		"listen", conf.Listen,
		"once", flags.once,
	)

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		appLog.Info("signal received, shutting down", "signal", sig.String())
		cancel()
	}()

	client := untis.NewClient(conf.Server)

	var notifier syncer.Notifier
	if conf.WebhookURL != "" {
		notifier = notify.NewWebhook(conf.WebhookURL)
	}

	runner, err := syncer.NewRunner(conf, client, notifier)
	if err != nil {
		appLog.Error("failed to initialize sync runner", err)
		os.Exit(1)
	}

	if flags.once {
		if _, err := runner.Run(ctx); err != nil {
			appLog.Error("sync run failed", err)
			logout(ctx, client, conf)
			os.Exit(1)
		}
		logout(ctx, client, conf)
		appLog.Info("untiscal exiting")
		return
	}

	if conf.Listen != "" {
		srv := web.NewServer(conf, runner)
		go func() {
			appLog.Info("starting HTTP server", "listen", "http://"+conf.Listen)
			if err := http.ListenAndServe(conf.Listen, srv.Handler()); err != nil {
				appLog.Error("HTTP server stopped", err)
				cancel()
			}
		}()
	}

	// Scheduled mode. Runs never overlap: a tick arriving while a run is
	// in flight is skipped.
	var running atomic.Bool
	runOnce := func() {
		if !running.CompareAndSwap(false, true) {
			appLog.Warn("previous sync still running, skipping tick")
			return
		}
		defer running.Store(false)
		if _, err := runner.Run(ctx); err != nil {
			appLog.Error("sync run failed", err)
		}
	}

	c := cron.New()
	if _, err := c.AddFunc(conf.RefreshCron, runOnce); err != nil {
		appLog.Error("invalid refresh cron expression", err, "refresh", conf.RefreshCron)
		os.Exit(1)
	}
	c.Start()

	// Kick off an immediate first sync instead of waiting for the first tick.
	go runOnce()

	<-ctx.Done()

	stopCtx := c.Stop()
	select {
	case <-stopCtx.Done():
	case <-time.After(5 * time.Second):
		appLog.Warn("timed out waiting for running jobs")
	}
	appLog.Info("untiscal exiting")
}

// logout ends the server-side session, matching the original flow's
// best-effort logout after a one-shot sync. Scheduled mode keeps the
// session alive for the next run.
func logout(ctx context.Context, client *untis.Client, conf *config.Config) {
	if conf.School == "" {
		return
	}
	cred, err := untis.LoadSession(conf.SessionPath, conf.Server)
	if err != nil {
		if !errors.Is(err, untis.ErrNoSession) {
			appLog.Warn("logout skipped", "err", err)
		}
		return
	}
	if err := client.Logout(ctx, cred, conf.School); err != nil {
		appLog.Warn("logout failed", "err", err)
	}
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "untiscal.yaml", "Path to config file")
	flag.StringVar(&cfg.sessionPath, "session", "", "Session bundle path (overrides config if set)")
	flag.IntVar(&cfg.weeks, "weeks", 0, "Look-ahead window in weeks (overrides config if set)")
	flag.BoolVar(&cfg.once, "once", false, "Run one sync cycle and exit")

	flag.Parse()

	return cfg
}
