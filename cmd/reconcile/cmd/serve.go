package cmd

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/pigeonworks-llc/beancount-reconcile/internal/api"
	"github.com/pigeonworks-llc/beancount-reconcile/pkg/config"
	"github.com/pigeonworks-llc/beancount-reconcile/pkg/db"
	"github.com/pigeonworks-llc/beancount-reconcile/pkg/rewrite"
	"github.com/pigeonworks-llc/beancount-reconcile/pkg/service"
)

// serveCmd represents the serve command.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the reconciliation API over HTTP",
	Long: `Serve the transaction listing and save API over HTTP.

The server reads the ledger file fresh on every request and rewrites it
in place when edits are saved, so the file stays the single source of
truth. Saved batches are recorded in a SQLite history database next to
the ledger.

Example:
  reconcile serve
  reconcile serve --config /etc/reconcile/.env`,
	Run: runServe,
}

func runServe(cmd *cobra.Command, args []string) {
	// Load configuration
	cfg, err := config.Load(getConfigFile())
	exitOnError(err, "failed to load configuration")

	if err := cfg.Validate(
		[]string{"ledger", "file"},
		[]string{"server", "host"},
		[]string{"server", "port"},
	); err != nil {
		exitOnError(err, "invalid configuration")
	}

	// Server mode logs structured JSON
	logLevel := slog.LevelInfo
	if debug || cfg.Debug {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	pathResolver := newResolver(cfg)

	rules, err := loadRules(pathResolver)
	exitOnError(err, "failed to load classification rules")

	// Open save history database
	conn, err := db.Open(pathResolver.GetHistoryDBPath())
	exitOnError(err, "failed to open history database")
	defer conn.Close()
	history := db.NewHistory(conn)

	// Remember which ledger this history database belongs to.
	if err := history.SetMetadata(db.MetaLedgerFile, pathResolver.GetLedgerFile()); err != nil {
		slog.Warn("failed to record ledger file in history database", "error", err)
	}

	svc := service.New(pathResolver.GetLedgerFile(), rules, logger)
	svc.Recorder = func(edits []rewrite.Edit) error {
		batchID, err := history.RecordBatch(edits)
		if err != nil {
			return err
		}
		slog.Debug("recorded save batch", "batch_id", batchID, "edits", len(edits))
		return nil
	}

	addr := cfg.Addr()
	slog.Info("starting reconciliation server",
		"addr", addr,
		"ledger", pathResolver.GetLedgerFile(),
		"history_db", pathResolver.GetHistoryDBPath(),
	)

	server := &http.Server{
		Addr:         addr,
		Handler:      api.NewRouter(svc),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown: let in-flight saves finish before exiting.
	go func() {
		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, os.Interrupt, syscall.SIGTERM)
		<-sigint

		slog.Info("shutting down server")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("server stopped")
}
