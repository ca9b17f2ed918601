package main

import (
	"context"
	"log/slog"

	"cdrwatch-backend/lib/restyutil"
	"cdrwatch-backend/lib/scrapers/orange"
	"cdrwatch-backend/lib/serviceutil"
	"cdrwatch-backend/lib/telegram"
	"cdrwatch-backend/lib/telemetry"
)

func InitTelemetry(ctx context.Context, verbose bool) {
	telemetry.InitSlog(verbose)

	if verbose {
		slog.DebugContext(ctx, "verbose logging enabled")
	}

	err := telemetry.SetupFromEnv(ctx, "cdrwatch")
	if err != nil {
		serviceutil.Fatal("setup telemetry", err)
	}
	go func() {
		<-ctx.Done()
		telemetry.Shutdown(context.Background())
	}()
	telemetry.InstrumentPerfStats(ctx)

	if !verbose {
		return
	}

	orange.SetRestyInstrumentOutput(
		restyutil.NewFilesystemOutput(".dev/resty/orange"),
	)
	telegram.SetRestyInstrumentOutput(
		restyutil.NewFilesystemOutput(".dev/resty/telegram"),
	)
}
