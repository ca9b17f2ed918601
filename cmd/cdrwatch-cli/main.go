package main

import (
	"context"

	"cdrwatch-backend/cmd/cdrwatch-cli/commands"
	"cdrwatch-backend/lib/telemetry"
)

func main() {
	telemetry.SetupFromEnv(context.Background(), "cdrwatch-cli")
	telemetry.InitSlog(true)
	commands.ExecuteContext(context.Background())
}
