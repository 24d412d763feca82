package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"mapleland-bot/internal/alarm"
	"mapleland-bot/internal/bot"
	"mapleland-bot/internal/config"
	"mapleland-bot/internal/status"
	"mapleland-bot/internal/tray"
)

var headless bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the bot",
	Long: `Start the bot. With the tray UI the bot waits for Start in the tray menu;
with --headless it starts immediately and runs until interrupted or until a
hazard stops it.`,
	RunE: runBot,
}

func init() {
	runCmd.Flags().BoolVar(&headless, "headless", false, "run without the tray UI and start immediately")
}

func runBot(cmd *cobra.Command, _ []string) error {
	cfg, fromFile, err := loadConfig()
	if err != nil {
		return err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()
	log.Info("=== Maple Bot Started ===", zap.Bool("config_file", fromFile), zap.String("driver", cfg.Platform.Driver))

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	driver, err := openDriver(cfg, log)
	if err != nil {
		return err
	}
	defer func() { _ = driver.Close() }()

	matcher, ocr, err := openVision(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = matcher.Close() }()
	defer func() { _ = ocr.Close() }()

	store := config.NewStore(cfg)
	if fromFile {
		err := store.Watch(configPath,
			func(*config.Config) { log.Info("configuration reloaded") },
			func(err error) { log.Warn("configuration reload rejected", zap.Error(err)) })
		if err != nil {
			log.Warn("configuration watch unavailable", zap.Error(err))
		}
	}

	board := status.NewBoard(nil)
	notifiers := alarm.Multi{alarm.LogNotifier{Log: log}}
	var app *tray.App
	if !headless {
		app = tray.New(nil, store, log)
		notifiers = append(notifiers, app)
		board.Watch(app.SnapshotChanged)
	}

	shared := bot.NewShared(store, alarm.NewLatches(notifiers))
	b := bot.New(shared, bot.Options{
		Driver:   driver,
		Matcher:  matcher,
		Reader:   ocr,
		Notifier: notifiers,
		Board:    board,
		Log:      log,
	})

	if headless {
		return runHeadless(ctx, b, log)
	}
	app.SetController(b)
	app.Run(ctx, func() { log.Info("=== Maple Bot Shutdown ===") })
	return nil
}

func runHeadless(ctx context.Context, b *bot.Bot, log *zap.Logger) error {
	if err := b.Start(ctx); err != nil {
		return err
	}
	select {
	case <-ctx.Done():
		log.Info("signal received, stopping")
	case <-b.Done():
	}
	err := b.Stop()
	log.Info("=== Maple Bot Shutdown ===", zap.Stringer("state", b.State()))
	return err
}
