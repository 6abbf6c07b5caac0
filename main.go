package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/xctools/xctools/cli"
)

// Version information, set by goreleaser via ldflags
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	c := cli.New()
	c.SetVersion(version, commit, date)
	err := c.Run(ctx, os.Args)
	stop()
	if err != nil {
		log.Fatal(err)
	}
}
