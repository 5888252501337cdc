package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"nutriplan/internal/app"
	"nutriplan/internal/catalog"
	"nutriplan/internal/config"
	"nutriplan/internal/httpapi"
	"nutriplan/pkg/logger"
)

func main() {
	log := logger.New("nutriplan")
	defer log.Sync()

	cfg, err := config.NewFromEnv()
	if err != nil {
		log.Fatalw("failed to load configuration", "error", err)
	}

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	ctx := context.Background()

	application, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatalw("failed to initialize application", "error", err)
	}
	defer application.Close()

	switch os.Args[1] {
	case "serve":
		runServer(application, log)
	case "ingest-seeds":
		importer := catalog.NewImporter(application.Catalog, log)
		if err := importer.ImportDir(ctx, cfg.SeedsPath); err != nil {
			log.Fatalw("seed import failed", "path", cfg.SeedsPath, "error", err)
		}
	case "sync-usda":
		syncCmd := flag.NewFlagSet("sync-usda", flag.ExitOnError)
		limit := syncCmd.Int("limit", 0, "Import at most N foods (0 = all)")
		syncCmd.Parse(os.Args[2:])

		importer := catalog.NewUSDAImporter(application.Catalog, log, cfg.USDASourceURL)
		imported, err := importer.Run(ctx, *limit)
		if err != nil {
			log.Fatalw("usda sync failed", "error", err)
		}
		fmt.Printf("Imported %d items from the USDA dataset.\n", imported)
	case "metrics-cleanup":
		cleanupCmd := flag.NewFlagSet("metrics-cleanup", flag.ExitOnError)
		days := cleanupCmd.Int("days", 30, "Keep records for the last N days")
		cleanupCmd.Parse(os.Args[2:])

		affected, err := application.Metrics.Cleanup(ctx, *days)
		if err != nil {
			log.Fatalw("metrics cleanup failed", "error", err)
		}
		fmt.Printf("Removed %d old metric records.\n", affected)
	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func runServer(application *app.App, log *logger.Logger) {
	server := &http.Server{
		Addr:         ":" + application.Config.HTTPPort,
		Handler:      httpapi.NewServer(application, log),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	go func() {
		log.Infow("http api listening", "port", application.Config.HTTPPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalw("http server failed", "error", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Infow("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorw("graceful shutdown failed", "error", err)
	}
}

func printUsage() {
	fmt.Println("Usage: nutriplan <command> [arguments]")
	fmt.Println("\nCommands:")
	fmt.Println("  serve              Run the HTTP API server")
	fmt.Println("  ingest-seeds       Load vendors and menu items from seed files")
	fmt.Println("  sync-usda          Import foods from the USDA dataset")
	fmt.Println("  metrics-cleanup    Remove old metric records")
}
