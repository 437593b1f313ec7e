package main

import (
	"context"
	"log/slog"
	"pricescout-backend/lib/restyutil"
	"pricescout-backend/lib/serviceutil"
	"pricescout-backend/lib/telemetry"
	"pricescout-backend/services/amazon"
	"pricescout-backend/services/costco"
)

func InitTelemetry(ctx context.Context, verbose bool) {
	telemetry.InitSlog(verbose)

	if verbose {
		slog.DebugContext(ctx, "verbose logging enabled")
	}

	instance, err := telemetry.SetupFromEnv(ctx, "pricescoutd")
	if err != nil {
		serviceutil.Fatal("setup telemetry", err)
	}
	go func() {
		<-ctx.Done()
		instance.Shutdown(context.Background())
	}()
	telemetry.InstrumentPerfStats(ctx)

	if !verbose {
		return
	}

	amazon.SetRestyInstrumentOutput(
		restyutil.NewFilesystemOutput(".dev/resty/amazon"),
	)
	costco.SetRestyInstrumentOutput(
		restyutil.NewFilesystemOutput(".dev/resty/costco"),
	)
}
