// Package main starts the chat widget session and handles termination.
//
// The process is a rendering adapter around one conversation's realtime
// lifecycle: resolve, load history, stay connected, perform composer
// actions on behalf of the host surface.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	widgetcmd "github.com/goamet/chat-widget/internal/cmd/widget"
)

func main() {
	cfg, err := widgetcmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.Fatalf("parse flags: %v", err)
	}
	log.SetPrefix("[WIDGET] ")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := widgetcmd.Run(ctx, cfg); err != nil {
		log.Fatalf("failed to run: %v", err)
	}
}
