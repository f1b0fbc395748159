package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	harmonizercmd "github.com/eysenfalk/factorio-harmonizer/internal/cmd/harmonizer"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	code := harmonizercmd.Execute(ctx)
	stop()
	os.Exit(code)
}
