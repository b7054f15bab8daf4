package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rendis/attackchain/internal/autosave"
	"github.com/rendis/attackchain/internal/logging"
	"github.com/rendis/attackchain/internal/metrics"
	"github.com/rendis/attackchain/internal/streaming"
	"github.com/rendis/attackchain/pkg/mcp"
	"github.com/rendis/attackchain/pkg/schema"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the chain editor over MCP on stdio",
	Long: "Serve exposes catalog search and chain editing as MCP tools on stdin/stdout.\n" +
		"Open chains are saved on the autosave schedule and once more on shutdown.\n" +
		"SIGHUP reloads the configuration file.",
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cat, err := loadCatalog()
	if err != nil {
		return err
	}
	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	hub := streaming.NewMemoryHub()
	reg := metrics.DefaultRegistry()
	saver, err := autosave.New(st, hub, app.cfg.AutosaveSpec,
		autosave.WithLogger(app.logger),
		autosave.WithMetrics(reg),
	)
	if err != nil {
		return err
	}
	if err := saver.Start(ctx); err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := saver.Stop(shutdownCtx); err != nil {
			app.logger.Error("final autosave failed", slog.String("error", err.Error()))
		}
	}()

	srv, err := mcp.NewChainServer(mcp.ChainServerDeps{
		Catalog:  cat,
		Store:    st,
		Hub:      hub,
		Metrics:  reg,
		Autosave: saver,
		Logger:   app.logger,
		ViewSize: schema.Size{Width: app.cfg.ViewportWidth, Height: app.cfg.ViewportHeight},
	})
	if err != nil {
		return err
	}

	go watchReload(ctx)

	app.logger.Info("chainedit serving on stdio",
		slog.String("version", version),
		slog.String("db", app.cfg.DBPath),
		slog.String("autosave", app.cfg.AutosaveSpec),
		slog.Time("next_autosave", saver.NextRun(time.Now())),
	)
	return srv.Serve(ctx)
}

// watchReload re-reads the configuration on SIGHUP. Only the log level
// applies live; other changes are reported as needing a restart.
func watchReload(ctx context.Context) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			next, err := loadConfig()
			if err != nil {
				app.logger.Error("config reload failed", slog.String("error", err.Error()))
				continue
			}
			applyReload(next)
		}
	}
}

func applyReload(next Config) {
	d := diffConfigs(app.cfg, next)
	if d.LogLevelChanged {
		if level, err := logging.ParseLevel(next.LogLevel); err == nil {
			app.level.Set(level)
			app.cfg.LogLevel = next.LogLevel
			app.logger.Info("log level changed", slog.String("level", next.LogLevel))
		}
	}
	if len(d.RestartNeeded) > 0 {
		app.logger.Warn("config changes need a restart", slog.Any("fields", d.RestartNeeded))
	}
}
