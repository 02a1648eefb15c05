package main

import (
	"context"
	"os"

	"amazonorders/cmd/amazon-orders/commands"
	"amazonorders/lib/serviceutil"
	"amazonorders/lib/telemetry"
)

func main() {
	ctx := serviceutil.SignalContext()

	tel, err := telemetry.SetupFromEnv(ctx, "amazon-orders")
	if err != nil && !os.IsNotExist(err) {
		serviceutil.Fatal("failed to set up telemetry", err)
	}
	defer tel.Shutdown(context.Background())
	telemetry.InstrumentPerfStats(ctx)

	commands.ExecuteContext(ctx)
}
