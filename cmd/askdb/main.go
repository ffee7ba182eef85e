package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/askdb/askdb/internal/cli/askdb"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	code := askdb.Execute(ctx, os.Args[1:], os.Stdout, os.Stderr, askdb.Options{})
	stop()
	os.Exit(code)
}
