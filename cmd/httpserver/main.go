package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nhdewitt/reflect-server/internal/config"
	"github.com/nhdewitt/reflect-server/internal/routes"
	"github.com/nhdewitt/reflect-server/internal/server"
)

func main() {
	cfg, err := config.Load(os.Args[0], os.Args[1:], os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "httpserver: %v\n", err)
		os.Exit(2)
	}
	logger := cfg.Logger(os.Stderr)

	table, err := routes.Table(cfg.Mode)
	if err != nil {
		logger.Fatal().Err(err).Msg("building route table")
	}

	srv, err := server.Serve(cfg.Port, table.Handle,
		server.WithLogger(logger),
		server.WithHeaderTimeout(cfg.HeaderTimeout),
		server.WithBodyTimeout(cfg.BodyTimeout),
		server.WithMaxBodySize(cfg.MaxBodySize),
	)
	if err != nil {
		logger.Fatal().Err(err).Msg("error starting server")
	}
	defer srv.Close()
	logger.Info().Int("port", cfg.Port).Str("mode", string(cfg.Mode)).Msg("server started")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	logger.Info().Msg("server gracefully stopped")
}
