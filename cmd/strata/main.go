package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/strataui/strata/internal/config"
	"github.com/strataui/strata/internal/core/modules"
	"github.com/strataui/strata/internal/core/observability/log"
	"github.com/strataui/strata/internal/core/storage"
	"github.com/strataui/strata/internal/injector"
	"github.com/strataui/strata/internal/server"
)

func main() {
	configPath := flag.String("config", "", "path to a yaml config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, "strata:", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := log.New(log.ParseLevel(cfg.LogLevel))

	var store storage.Store
	if cfg.StatePath != "" {
		store, err = storage.OpenFileStore(cfg.StatePath, logger)
		if err != nil {
			return err
		}
	} else {
		store = storage.NewMemoryStore()
	}

	provider := modules.NewManifestProvider()
	eng := injector.ProvideEngine(cfg, logger, store, provider)
	feed := server.NewRouteFeed(cfg.ListenAddr, eng, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return eng.Run(ctx)
	})
	group.Go(func() error {
		return feed.Start()
	})
	group.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return feed.Stop(shutdownCtx)
	})

	return group.Wait()
}
