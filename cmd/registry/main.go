package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	registrycmd "github.com/deedflow/deedflow/internal/cmd/registry"
)

func main() {
	cfg, err := registrycmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.Fatalf("parse flags: %v", err)
	}
	log.SetPrefix("[REGISTRY] ")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := registrycmd.Run(ctx, cfg); err != nil {
		log.Fatalf("failed to serve: %v", err)
	}
}
