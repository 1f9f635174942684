package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	c := newCLI()
	err := c.execute(ctx, os.Args[1:])
	if err != nil {
		os.Exit(1)
	}
}
