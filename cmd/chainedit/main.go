package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/rendis/attackchain/internal/catalog"
	"github.com/rendis/attackchain/internal/document"
	"github.com/rendis/attackchain/internal/editor"
	"github.com/rendis/attackchain/internal/logging"
	"github.com/rendis/attackchain/internal/store"
	"github.com/rendis/attackchain/pkg/schema"
)

var rootFlags struct {
	logLevel string
	dbPath   string
}

// app is the state shared by every subcommand, set up before each run.
var app struct {
	cfg    Config
	level  slog.LevelVar
	logger *slog.Logger
}

var rootCmd = &cobra.Command{
	Use:   "chainedit",
	Short: "Build, inspect and export attack chains",
	Long: "chainedit assembles attack techniques from a catalog into a directed chain,\n" +
		"reports duration, risk and validity, and exports the result.",
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func init() {
	f := rootCmd.PersistentFlags()
	f.StringVar(&rootFlags.logLevel, "log-level", "", "log level: debug, info, warn, error")
	f.StringVar(&rootFlags.dbPath, "db", "", "chain database path (default: ~/.chainedit/chains.db)")

	rootCmd.AddCommand(catalogCmd)
	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(toolsCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.Version = version
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func setup(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if rootFlags.logLevel != "" {
		cfg.LogLevel = rootFlags.logLevel
	}
	if rootFlags.dbPath != "" {
		cfg.DBPath = rootFlags.dbPath
	}
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}

	app.cfg = cfg
	app.level.Set(level)
	app.logger = slog.New(logging.NewCorrelationHandler(
		slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: &app.level}),
	))
	return nil
}

// loadCatalog returns the configured catalog file or the built-in one.
func loadCatalog() (*catalog.Catalog, error) {
	if app.cfg.CatalogPath == "" {
		return catalog.Default(), nil
	}
	dir, name := filepath.Split(app.cfg.CatalogPath)
	if dir == "" {
		dir = "."
	}
	return catalog.Load(os.DirFS(dir), name)
}

// openStore opens and migrates the chain database.
func openStore(ctx context.Context) (*store.LibSQLStore, error) {
	if err := os.MkdirAll(filepath.Dir(app.cfg.DBPath), 0o700); err != nil {
		return nil, fmt.Errorf("create %s: %w", filepath.Dir(app.cfg.DBPath), err)
	}
	st, err := store.NewLibSQLStore(app.cfg.DBPath)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, err
	}
	return st, nil
}

func editorOptions() []editor.Option {
	return []editor.Option{
		editor.WithLogger(app.logger),
		editor.WithViewSize(schema.Size{Width: app.cfg.ViewportWidth, Height: app.cfg.ViewportHeight}),
	}
}

// openSource loads a chain from a document file when src names one,
// otherwise from the store by chain id.
func openSource(ctx context.Context, src string) (*editor.Editor, error) {
	if info, err := os.Stat(src); err == nil && !info.IsDir() {
		data, err := os.ReadFile(src)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", src, err)
		}
		codec, err := document.NewCodec()
		if err != nil {
			return nil, err
		}
		doc, err := codec.Decode(data)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", src, err)
		}
		ed, err := editor.New(editorOptions()...)
		if err != nil {
			return nil, err
		}
		for _, e := range ed.LoadDocument(doc) {
			app.logger.Warn("edge skipped", slog.String("edge_id", e.ID), slog.String("from", e.From), slog.String("to", e.To))
		}
		return ed, nil
	}

	st, err := openStore(ctx)
	if err != nil {
		return nil, err
	}
	defer st.Close()
	return editor.Open(ctx, st, src, editorOptions()...)
}

// openRevision loads one saved revision of a stored chain.
func openRevision(ctx context.Context, chainID string, seq int64) (*editor.Editor, error) {
	st, err := openStore(ctx)
	if err != nil {
		return nil, err
	}
	defer st.Close()

	rev, err := st.GetRevision(ctx, chainID, seq)
	if err != nil {
		return nil, err
	}
	ed, err := editor.New(editorOptions()...)
	if err != nil {
		return nil, err
	}
	ed.LoadDocument(rev.Document)
	return ed, nil
}
