package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/docvault/internal/scheduler"
	"github.com/ziadkadry99/docvault/internal/server"
)

const shutdownTimeout = 30 * time.Second

var serverPort int

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the docvault REST API and background processing",
	Long: `Starts the HTTP API, recovers documents whose processing was interrupted,
watches the staging folder and runs the periodic maintenance jobs.`,
	RunE: runServer,
}

func init() {
	serverCmd.Flags().IntVar(&serverPort, "port", 0, "port to listen on (overrides config)")
	rootCmd.AddCommand(serverCmd)
}

func runServer(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	cfg := a.cfg
	if serverPort > 0 {
		cfg.Server.Port = serverPort
	}

	failed, requeued, err := a.pipeline.Recover(ctx)
	if err != nil {
		a.logger.Error("startup recovery", "error", err)
	} else {
		a.logger.Info("startup recovery finished", "failed", failed, "requeued", requeued)
	}

	if cfg.Pipeline.WatchStaging {
		go func() {
			if err := a.staging.Watch(ctx); err != nil && !errors.Is(err, context.Canceled) {
				a.logger.Error("staging watcher stopped", "folder", a.staging.Folder(), "error", err)
			}
		}()
	}

	sched := scheduler.New(a.logger)
	err = sched.Register(cfg.Scheduler, scheduler.Jobs{
		Staging: a.staging,
		Verify: func(ctx context.Context) error {
			_, err := a.pipeline.VerifyIndex(ctx, a.indexer, true)
			return err
		},
		Logs: a.logs,
	})
	if err != nil {
		return fmt.Errorf("scheduling maintenance jobs: %w", err)
	}
	sched.Start()
	defer sched.Stop()

	srv := server.New(server.Config{
		Port:     cfg.Server.Port,
		AllowAll: cfg.Server.AllowAllOrigins,
	}, a.db, server.Services{
		Documents:        a.docs,
		Logs:             a.logs,
		Files:            a.files,
		Pipeline:         a.pipeline,
		Index:            a.indexer,
		Staging:          a.staging,
		Search:           a.search,
		RAG:              a.rag,
		Relations:        a.relations,
		SimilarThreshold: cfg.Search.SimilarThreshold,
	}, a.logger)

	// Graceful shutdown.
	go func() {
		<-ctx.Done()
		a.logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.logger.Warn("server shutdown", "error", err)
		}
	}()

	fmt.Fprintf(os.Stderr, "docvault server v%s starting on port %d\n", Version, cfg.Server.Port)
	fmt.Fprintf(os.Stderr, "  Database: %s\n", cfg.DatabasePath)
	fmt.Fprintf(os.Stderr, "  Staging:  %s\n", cfg.Storage.StagingFolder)
	if st, err := a.indexer.Stats(ctx); err == nil {
		fmt.Fprintf(os.Stderr, "  Indexed:  %d documents (%d chunks)\n", st.Documents, st.Chunks)
	}

	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
