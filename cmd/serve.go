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

	"basinhop/internal/server"
	"basinhop/internal/store"

	"github.com/spf13/cobra"
)

var (
	serveAddr    string
	serveDataDir string
	serveDBPath  string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the basin hopping job server",
	Long: `Starts an HTTP server that runs basin hopping jobs in the background.
Jobs are created and inspected through a JSON API, with progress streamed
over SSE or websockets. Running jobs checkpoint to the data directory and
can persist their minima to a SQLite database.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "Listen address")
	serveCmd.Flags().StringVar(&serveDataDir, "data-dir", "./data", "Base directory for job checkpoints")
	serveCmd.Flags().StringVar(&serveDBPath, "db", "", "SQLite database for job minima (optional)")

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	fsStore, err := store.NewFSStore(serveDataDir)
	if err != nil {
		return fmt.Errorf("failed to create checkpoint store: %w", err)
	}

	var minimaDB *store.SQLiteStore
	if serveDBPath != "" {
		minimaDB = store.NewSQLiteStore(serveDBPath)
		if err := minimaDB.Init(cmd.Context()); err != nil {
			return fmt.Errorf("failed to open minima database: %w", err)
		}
		defer minimaDB.Close()
	}

	srv := server.NewServer(serveAddr, fsStore, minimaDB)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
