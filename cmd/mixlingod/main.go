package main

import (
	"context"
	"errors"
	"flag"
	"log"

	"mixlingo/internal/config"
	"mixlingo/internal/serverrun"
)

func main() {
	configPath := flag.String("config", "", "Configuration file path")
	logLevel := flag.String("log-level", "", "Override the configured log level")
	flag.Parse()

	cfg, _, _, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	if err := serverrun.Run(context.Background(), cfg, serverrun.Options{LogLevel: *logLevel}); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("mixlingod: %v", err)
	}
}
