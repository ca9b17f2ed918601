package main

import (
	"database/sql"
	"flag"
	"log/slog"
	"time"

	"cdrwatch-backend/lib/configutil"
	"cdrwatch-backend/lib/serviceutil"
	"cdrwatch-backend/lib/sqliteutil"
	"cdrwatch-backend/lib/telegram"
	"cdrwatch-backend/services/cdrmonitor"
	"cdrwatch-backend/services/cdrmonitor/db"
)

func main() {
	verbose := flag.Bool("v", false, "Enable verbose logging/instrumentation.")
	flag.Parse()

	ctx := serviceutil.SignalContext()

	InitTelemetry(ctx, *verbose)

	cfg, err := configutil.ReadConfig[Config]("config.json5")
	if err != nil {
		serviceutil.Fatal("read config", err)
	}
	err = cfg.validate()
	if err != nil {
		serviceutil.Fatal("validate config", err)
	}

	var database *sql.DB
	if cfg.SeenDatabase != "" {
		database, err = sqliteutil.OpenDB(db.Schema, cfg.SeenDatabase)
		if err != nil {
			serviceutil.Fatal("open seen database", err)
		}
	}
	store, err := cdrmonitor.NewSeenStore(ctx, database)
	if err != nil {
		serviceutil.Fatal("load seen records", err)
	}

	bot := telegram.NewClient(telegram.ClientOptions{
		Token: cfg.BotToken,
	})
	me, err := bot.GetMe(ctx)
	if err != nil {
		serviceutil.Fatal("validate bot token", err)
	}
	slog.Info("bot authorized", "username", me.Username)

	service := cdrmonitor.NewService(cdrmonitor.Config{
		PortalBaseUrl:     cfg.PortalBaseUrl,
		Accounts:          cfg.Accounts,
		ChatId:            cfg.ChatId,
		OwnerChatId:       cfg.OwnerChatId,
		PollInterval:      time.Duration(cfg.PollIntervalSeconds) * time.Second,
		HeartbeatInterval: time.Duration(cfg.HeartbeatIntervalSeconds) * time.Second,
	}, bot, store)

	slog.Info(
		"starting poll loop",
		"accounts", len(cfg.Accounts),
		"interval_seconds", cfg.PollIntervalSeconds,
	)
	service.Start(ctx)
	if cfg.ListenForCommands {
		service.StartCommandListener(ctx)
	}

	<-ctx.Done()
}
