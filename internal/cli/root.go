package cli

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/flowgrid/internal/catalog"
	"github.com/roach88/flowgrid/internal/config"
	"github.com/roach88/flowgrid/internal/engine"
	"github.com/roach88/flowgrid/internal/store"
)

// RootOptions holds global flags for all commands and the configuration
// they resolve to.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigPath string
	Database   string // overrides the config file

	// Config is loaded before any subcommand runs.
	Config config.Config

	// Logger writes diagnostics to the command's stderr.
	Logger *slog.Logger
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the flowgrid CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "flowgrid",
		Short: "flowgrid - deterministic factory planner",
		Long: `Build factories on a grid and ask what they will have produced.

Every save lives in a SQLite database together with the journal of edits
made to it. Inventory at any future time is computed, never simulated.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.setup(cmd)
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", config.DefaultPath, "path to config file")
	cmd.PersistentFlags().StringVar(&opts.Database, "db", "", "path to SQLite database (overrides config)")

	cmd.AddCommand(NewNewCommand(opts))
	cmd.AddCommand(NewSavesCommand(opts))
	for _, c := range NewEditCommands(opts) {
		cmd.AddCommand(c)
	}
	cmd.AddCommand(NewInventoryCommand(opts))
	cmd.AddCommand(NewShowCommand(opts))
	cmd.AddCommand(NewCatalogCommand(opts))
	cmd.AddCommand(NewExportCommand(opts))
	cmd.AddCommand(NewImportCommand(opts))
	cmd.AddCommand(NewReplayCommand(opts))
	cmd.AddCommand(NewJournalCommand(opts))
	cmd.AddCommand(NewScenarioCommand(opts))
	cmd.AddCommand(NewServeCommand(opts))

	return cmd
}

// setup validates global flags, loads the config file and builds the
// logger.
func (o *RootOptions) setup(cmd *cobra.Command) error {
	if !slices.Contains(ValidFormats, o.Format) {
		return NewExitError(ExitCommandError,
			fmt.Sprintf("invalid format %q: must be one of %v", o.Format, ValidFormats))
	}

	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if o.Database != "" {
		cfg.Database = o.Database
	}
	o.Config = cfg

	level, err := cfg.SlogLevel()
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid config", err)
	}
	if o.Verbose {
		level = slog.LevelDebug
	}
	o.Logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
	return nil
}

// formatter returns an output formatter writing to the command's streams.
func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}

// openStore opens the configured database.
func (o *RootOptions) openStore() (*store.Store, error) {
	o.Logger.Debug("opening database", "path", o.Config.Database)
	st, err := store.Open(o.Config.Database)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return st, nil
}

// catalog loads the configured preset catalog.
func (o *RootOptions) catalog() (*catalog.Catalog, error) {
	c, err := o.Config.LoadCatalog()
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load catalog", err)
	}
	return c, nil
}

// engineOptions configures sessions opened by commands.
func (o *RootOptions) engineOptions() ([]engine.Option, error) {
	gameOpts, err := o.Config.GameOptions()
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid config", err)
	}
	return []engine.Option{
		engine.WithLogger(o.Logger),
		engine.WithAutosaveEvery(o.Config.AutosaveEvery),
		engine.WithGameOptions(gameOpts...),
	}, nil
}

// session is an open store, catalog and loaded save.
type session struct {
	store   *store.Store
	catalog *catalog.Catalog
	engine  *engine.Engine
}

func (s *session) Close() error {
	return s.store.Close()
}

// openSession loads the save named idOrName, replaying unsaved journal
// entries.
func (o *RootOptions) openSession(cmd *cobra.Command, idOrName string) (*session, error) {
	st, err := o.openStore()
	if err != nil {
		return nil, err
	}
	c, err := o.catalog()
	if err != nil {
		st.Close()
		return nil, err
	}
	opts, err := o.engineOptions()
	if err != nil {
		st.Close()
		return nil, err
	}
	e, err := engine.Load(cmd.Context(), st, c, idOrName, opts...)
	if err != nil {
		st.Close()
		return nil, loadError(idOrName, err)
	}
	return &session{store: st, catalog: c, engine: e}, nil
}

func loadError(idOrName string, err error) error {
	if engine.IsReplayError(err) {
		return WrapExitError(ExitFailure, fmt.Sprintf("save %q does not replay", idOrName), err)
	}
	return WrapExitError(ExitCommandError, fmt.Sprintf("failed to load save %q", idOrName), err)
}
