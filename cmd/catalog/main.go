// cmd/catalog/main.go
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/law-makers/catalog/internal/cli"
)

func main() {
	// Cancelled on Ctrl+C so the server can drain and the scrape can stop
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cli.Execute(ctx)
}
