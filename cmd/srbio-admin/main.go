package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/dmitrijs2005/srbio/internal/adminctl"
	"github.com/dmitrijs2005/srbio/internal/config"
	"github.com/dmitrijs2005/srbio/internal/logging"
	"github.com/dmitrijs2005/srbio/internal/repositories/repomanager"
	"github.com/dmitrijs2005/srbio/internal/services"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()
	words, rest := adminctl.Command(os.Args[1:])

	cfg, err := config.LoadConfig(rest)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	logger, err := logging.New(io.Discard, logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})
	if err != nil {
		return err
	}

	repos, err := repomanager.Open(ctx, cfg.DatabaseDriver, cfg.DatabaseDSN, logger)
	if err != nil {
		return fmt.Errorf("db init error: %w", err)
	}
	defer repos.Close()

	accts := services.NewAuthService(repos, cfg.SecretKey, cfg.AccessTokenValidity)
	return adminctl.Run(ctx, accts, words, bufio.NewReader(os.Stdin), os.Stdout)
}
