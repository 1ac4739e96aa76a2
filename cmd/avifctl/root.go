package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"avif-everywhere/internal/batch"
	"avif-everywhere/internal/database"
	"avif-everywhere/internal/logging"
	"avif-everywhere/internal/memory"
	"avif-everywhere/internal/startup"
	"avif-everywhere/internal/variant"
	"avif-everywhere/internal/workers"

	"github.com/spf13/cobra"
)

// app holds the engine for the lifetime of one command.
type app struct {
	config *startup.Config
	db     *database.Database
	engine *startup.Engine
}

func openApp(ctx context.Context) (*app, error) {
	config, err := startup.ReadConfig()
	if err != nil {
		return nil, err
	}
	db, err := database.New(ctx, config.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database at %s: %w", config.DatabasePath, err)
	}
	db.SetDefaults(config.Settings())
	return &app{
		config: config,
		db:     db,
		engine: startup.BuildEngine(config, db),
	}, nil
}

func (a *app) Close() {
	variant.ShutdownVips()
	if err := a.db.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to close database: %v\n", err)
	}
}

func newRootCmd() *cobra.Command {
	var (
		forceJSON bool
		verbose   bool
	)

	root := &cobra.Command{
		Use:           "avifctl",
		Short:         "Manage AVIF and WebP variants",
		Version:       startup.Version,
		SilenceUsage:  true,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			switch {
			case verbose:
				logging.SetLevel(logging.LevelDebug)
			case logging.GetLevel() == logging.LevelInfo:
				logging.SetLevel(logging.LevelWarn)
			}
		},
	}
	root.PersistentFlags().BoolVar(&forceJSON, "json", false, "Always print JSON")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log engine decisions to stderr")

	out := func() *printer { return newPrinter(os.Stdout, forceJSON) }

	root.AddCommand(
		newProbeCmd(out),
		newScanCmd(out),
		newGenerateCmd(out),
		newConvertCmd(out),
		newPurgeCmd(out),
	)
	return root
}

// withApp runs fn with an interrupt-aware context and an open app.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

func newProbeCmd(out func() *printer) *cobra.Command {
	return &cobra.Command{
		Use:   "probe",
		Short: "Show which encoders are usable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(_ context.Context, a *app) error {
				return out().Capabilities(a.engine.Caps, a.engine.VipsVersion)
			})
		},
	}
}

func newScanCmd(out func() *printer) *cobra.Command {
	return &cobra.Command{
		Use:   "scan",
		Short: "List assets missing an AVIF or WebP variant",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				missing, err := a.db.ListMissing(ctx)
				if err != nil {
					return err
				}
				return out().Missing(missing)
			})
		},
	}
}

func newGenerateCmd(out func() *printer) *cobra.Command {
	cfg := batch.DefaultConfig()
	cfg.Workers = 0

	cmd := &cobra.Command{
		Use:   "generate [id...]",
		Short: "Generate variants for the given assets, or every asset missing one",
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app) error {
				if len(ids) == 0 {
					missing, err := a.db.ListMissing(ctx)
					if err != nil {
						return err
					}
					for _, m := range missing {
						ids = append(ids, m.ID)
					}
				}
				if len(ids) == 0 {
					return out().Summary(&batch.Summary{})
				}

				monitor := memory.NewMonitor(memory.DefaultConfig())
				monitor.Start()
				defer monitor.Stop()

				if cfg.Workers <= 0 {
					cfg.Workers = workers.ForCPU(cfg.Size)
				}
				runner := batch.NewRunner(a.engine.Service, a.db, monitor, cfg)
				summary, err := runner.Run(ctx, ids)
				if summary != nil {
					if perr := out().Summary(summary); perr != nil {
						return perr
					}
				}
				return err
			})
		},
	}
	cmd.Flags().IntVar(&cfg.Size, "chunk", cfg.Size, "Assets per chunk")
	cmd.Flags().DurationVar(&cfg.Pause, "pause", cfg.Pause, "Pause between chunks")
	cmd.Flags().IntVar(&cfg.Workers, "workers", 0, "Concurrent conversions per chunk (default: one per CPU, or "+workers.EnvOverride+")")
	return cmd
}

func newConvertCmd(out func() *printer) *cobra.Command {
	var skipBaseline bool

	cmd := &cobra.Command{
		Use:   "convert <id>",
		Short: "Convert one asset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			mode := variant.ModeCompare
			if skipBaseline {
				mode = variant.ModeSkip
			}
			return withApp(cmd, func(ctx context.Context, a *app) error {
				report, err := a.engine.Service.Convert(variant.NewSession(ctx), ids[0], mode)
				if err != nil {
					return err
				}
				return out().Report(report)
			})
		},
	}
	cmd.Flags().BoolVar(&skipBaseline, "skip-baseline", false, "Accept any encoded file, as for fresh uploads")
	return cmd
}

func newPurgeCmd(out func() *printer) *cobra.Command {
	return &cobra.Command{
		Use:   "purge <id>",
		Short: "Delete an asset's variant files and records",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app) error {
				removed, err := a.engine.Service.Purge(variant.NewSession(ctx), ids[0])
				if err != nil {
					return err
				}
				return out().Purged(ids[0], removed)
			})
		},
	}
}

func parseIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, arg := range args {
		id, err := strconv.ParseInt(arg, 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid asset id %q", arg)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
