package main

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/cuemby/pixelforge/pkg/api"
	"github.com/cuemby/pixelforge/pkg/config"
	"github.com/cuemby/pixelforge/pkg/events"
	"github.com/cuemby/pixelforge/pkg/log"
	"github.com/cuemby/pixelforge/pkg/manager"
	"github.com/cuemby/pixelforge/pkg/metrics"
	"github.com/cuemby/pixelforge/pkg/provider"
	"github.com/cuemby/pixelforge/pkg/reconciler"
	"github.com/cuemby/pixelforge/pkg/storage"
	"github.com/cuemby/pixelforge/pkg/templates"
	"github.com/cuemby/pixelforge/pkg/worker"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the PixelForge API server",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().String("workdir", ".", "working directory for storage and config")
	serveCmd.Flags().String("config", "", "path to pixelforge.yaml (defaults to <workdir>/pixelforge.yaml)")
	serveCmd.Flags().Bool("parent-monitor", false, "exit when standard input reaches EOF (for supervising a parent process)")
}

func runServe(cmd *cobra.Command, args []string) error {
	workdir, _ := cmd.Flags().GetString("workdir")
	configPath, _ := cmd.Flags().GetString("config")
	parentMonitor, _ := cmd.Flags().GetBool("parent-monitor")

	if configPath == "" {
		configPath = filepath.Join(workdir, "pixelforge.yaml")
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if !filepath.IsAbs(cfg.Storage.DataDir) {
		cfg.Storage.DataDir = filepath.Join(workdir, cfg.Storage.DataDir)
	}

	metrics.SetVersion(Version)

	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer store.Close()
	metrics.RegisterComponent("storage", true, "")

	for i := range cfg.Providers {
		if _, err := store.GetProviderConfig(cfg.Providers[i].Name); err == nil {
			continue
		}
		if err := store.UpsertProviderConfig(&cfg.Providers[i]); err != nil {
			return fmt.Errorf("failed to seed provider config %s: %w", cfg.Providers[i].Name, err)
		}
	}

	registry := provider.NewRegistry(store)
	registry.Register("gemini", provider.NewGeminiAdapter)
	registry.Register("openai", provider.NewOpenAIAdapter)
	if err := registry.Reload(); err != nil {
		return fmt.Errorf("failed to load provider configs: %w", err)
	}
	metrics.RegisterComponent("registry", true, "")

	rec := reconciler.New(store)
	if err := rec.Run(); err != nil {
		log.Logger.Error().Err(err).Msg("startup reconciliation failed")
	}

	bus := events.NewBus(30_000_000_000) // 30s grace window
	mgr := manager.New(store, registry, bus)
	pool := worker.NewPool(worker.Config{Workers: cfg.Worker.Count, QueueCapacity: cfg.Worker.QueueCapacity}, registry, mgr)
	mgr.SetPool(pool)
	pool.Start()

	catalog := templates.New(filepath.Join(cfg.Storage.DataDir, "templates.json"))
	if err := catalog.Refresh(); err != nil {
		log.Logger.Warn().Err(err).Msg("template catalog override not loaded")
	}

	srv := api.New(cfg, mgr, store.Blobs, catalog)
	metrics.RegisterComponent("api", true, "")

	ln, boundAddr, err := scanPortRange(cfg.Server.BindHost, cfg.Server.PortRange)
	if err != nil {
		return fmt.Errorf("failed to bind an address in %s:%d-%d: %w",
			cfg.Server.BindHost, cfg.Server.PortRange[0], cfg.Server.PortRange[1], err)
	}
	log.Logger.Info().Str("addr", boundAddr).Msg("pixelforge listening")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return srv.Serve(groupCtx, ln)
	})
	if parentMonitor {
		group.Go(func() error {
			watchParentStdin()
			stop()
			return nil
		})
	}

	if err := group.Wait(); err != nil && groupCtx.Err() == nil {
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10_000_000_000)
	defer cancel()
	return pool.Shutdown(shutdownCtx)
}

// watchParentStdin blocks until standard input reaches EOF, the
// signal a supervising parent process uses to tell this one to exit
// even if the normal signal-based shutdown path is unavailable.
func watchParentStdin() {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
	}
}

// scanPortRange tries every port in [lo, hi] in order and returns the
// first one this process can bind, or an error once the whole range is
// exhausted.
func scanPortRange(host string, portRange [2]int) (net.Listener, string, error) {
	lo, hi := portRange[0], portRange[1]
	var lastErr error
	for port := lo; port <= hi; port++ {
		addr := fmt.Sprintf("%s:%d", host, port)
		ln, err := net.Listen("tcp", addr)
		if err == nil {
			return ln, addr, nil
		}
		lastErr = err
	}
	return nil, "", fmt.Errorf("no port available in range %d-%d: %w", lo, hi, lastErr)
}
