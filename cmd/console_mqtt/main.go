package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/motion_computer/internal/app"
	"github.com/relabs-tech/motion_computer/internal/config"
)

func main() {
	path := flag.String("config", "", "YAML configuration file")
	flag.Parse()

	log.Println("starting motion console (MQTT subscriber)")

	cfg, err := config.Load(*path)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.RunConsoleMQTT(ctx, cfg.MQTT, os.Stdout, log.NewEntry(log.StandardLogger())); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
