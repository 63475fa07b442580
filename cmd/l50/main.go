package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"gol50/adapters/api"
	"gol50/adapters/excel"
	"gol50/adapters/memory"
	"gol50/adapters/models"
	"gol50/adapters/models/additive"
	"gol50/adapters/postgres"
	"gol50/adapters/report"
	"gol50/adapters/rng"
	"gol50/app"
	"gol50/domain/threshold"
	"gol50/internal"
	"gol50/internal/config"
	"gol50/internal/migration"
	"gol50/ports"

	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd := &cobra.Command{
		Use:           "l50",
		Short:         "Threshold (L50) estimation with Gaussian and bootstrap intervals",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		newRunCmd(),
		newServeCmd(),
		newMigrateCmd(),
	)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, *internal.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	level, _ := internal.ParseLogLevel(cfg.Log.Level)
	logger := internal.NewLoggerTo(os.Stderr, level, cfg.Log.NoColor)
	internal.DefaultLogger = logger
	return cfg, logger, nil
}

type runOptions struct {
	grid        []string
	sheet       string
	mode        string
	model       string
	probability float64
	seed        uint64
	xlsxOut     string
	htmlOut     string
	mdOut       string
	save        bool
}

func newRunCmd() *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run [data-file]",
		Short: "Fit a model to a spreadsheet and solve the threshold for each grid row",
		Long: `Fit a GLM, GAM or GLMM to an .xlsx or .csv file and solve the target value
at which the fitted link crosses the threshold, once per --grid row.

Analysis defaults come from the config file named by L50_CONFIG_FILE and the
L50_* environment variables; the flags below override them.

Example:
  l50 run survey.xlsx --model glm --grid sex=0 --grid sex=1 --mode bootstrap --xlsx l50.xlsx`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			applyRunFlags(cmd, &cfg.Analysis, opts)
			return runAnalysis(cmd.Context(), cfg, logger, args[0], opts)
		},
	}

	cmd.Flags().StringArrayVar(&opts.grid, "grid", nil, "Auxiliary covariate row as name=value[,name=value] (repeatable)")
	cmd.Flags().StringVar(&opts.sheet, "sheet", "", "Worksheet to read (xlsx only; default Sheet1)")
	cmd.Flags().StringVar(&opts.mode, "mode", "", "Uncertainty mode: point_only|gaussian|bootstrap")
	cmd.Flags().StringVar(&opts.model, "model", "", "Model kind: glm|gam|glmm")
	cmd.Flags().Float64Var(&opts.probability, "probability", 0, "Target probability; overrides the link-scale threshold")
	cmd.Flags().Uint64Var(&opts.seed, "seed", 0, "Random seed for deterministic replicates")
	cmd.Flags().StringVar(&opts.xlsxOut, "xlsx", "", "Write the result table to this .xlsx file")
	cmd.Flags().StringVar(&opts.htmlOut, "html", "", "Write an HTML report to this file")
	cmd.Flags().StringVar(&opts.mdOut, "md", "", "Write a markdown report to this file")
	cmd.Flags().BoolVar(&opts.save, "save", false, "Persist the result table to DATABASE_URL")

	return cmd
}

func applyRunFlags(cmd *cobra.Command, a *config.AnalysisConfig, opts runOptions) {
	if opts.mode != "" {
		a.Mode = opts.mode
	}
	if opts.model != "" {
		a.Model = opts.model
	}
	if cmd.Flags().Changed("seed") {
		a.Seed = opts.seed
	}
}

func runAnalysis(ctx context.Context, cfg *config.Config, logger *internal.Logger, path string, opts runOptions) error {
	a := cfg.Analysis

	grid, err := parseGrid(opts.grid)
	if err != nil {
		return err
	}
	if len(grid) == 0 {
		grid = []threshold.CovariateRow{{}}
	}

	readerCfg := excel.DefaultReaderConfig()
	if opts.sheet != "" {
		readerCfg.Sheet = opts.sheet
	}
	ds, err := excel.NewDataReader(path, readerCfg).ReadDataset(excel.DatasetSpec{
		Response:   a.Response,
		Covariates: append([]string{a.Target}, a.Auxiliary...),
		Group:      a.Group,
	})
	if err != nil {
		return err
	}
	logger.Info("loaded %d observations from %s", ds.Len(), path)

	kind, err := models.ParseKind(a.Model)
	if err != nil {
		return err
	}
	model, err := models.Fit(ctx, kind, ds, additive.Spec{
		Target:    a.Target,
		Auxiliary: a.Auxiliary,
		Knots:     a.Knots,
		Lambda:    a.Lambda,
	})
	if err != nil {
		return err
	}

	mode, err := threshold.ParseMode(a.Mode)
	if err != nil {
		return err
	}
	runCfg, err := app.RunConfigFromAnalysis(a)
	if err != nil {
		return err
	}
	if opts.probability != 0 {
		if runCfg.Threshold, err = threshold.LogitThreshold(opts.probability); err != nil {
			return err
		}
	}

	table, err := app.NewOrchestrator(rng.NewStreamAdapter(a.Seed), logger).Run(ctx, model, grid, mode, runCfg)
	if err != nil {
		return err
	}

	os.Stdout.Write(report.Markdown(table))

	if opts.xlsxOut != "" {
		if err := excel.SaveResultTable(opts.xlsxOut, table); err != nil {
			return err
		}
		logger.Info("wrote %s", opts.xlsxOut)
	}
	if opts.htmlOut != "" {
		if err := os.WriteFile(opts.htmlOut, report.HTML(table), 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", opts.htmlOut, err)
		}
	}
	if opts.mdOut != "" {
		if err := os.WriteFile(opts.mdOut, report.Markdown(table), 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", opts.mdOut, err)
		}
	}
	if opts.save {
		db, err := postgres.Open(ctx, cfg.Database)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := postgres.NewResultRepository(db).Save(ctx, table); err != nil {
			return err
		}
		logger.Info("saved run %s", table.RunID)
	}
	return nil
}

func newServeCmd() *cobra.Command {
	var capacity int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the L50 HTTP API",
		Long: `Serve the HTTP API on PORT. Runs are persisted to PostgreSQL when
DATABASE_URL is set, otherwise to an in-memory store of --capacity runs.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}

			var results ports.ResultRepository
			if cfg.Database.URL != "" {
				db, err := postgres.Open(cmd.Context(), cfg.Database)
				if err != nil {
					return err
				}
				defer db.Close()
				results = postgres.NewResultRepository(db)
			} else {
				logger.Warn("DATABASE_URL not set; keeping the last %d runs in memory", capacity)
				results = memory.NewResultStore(capacity)
			}

			return api.NewServer(cfg, results, logger).Start(cmd.Context())
		},
	}

	cmd.Flags().IntVar(&capacity, "capacity", 100, "Runs kept by the in-memory store")
	return cmd
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the result tables in DATABASE_URL",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			db, err := postgres.Open(cmd.Context(), cfg.Database)
			if err != nil {
				return err
			}
			defer db.Close()
			logger.Info("schema at version %s (%d steps)", migration.NewRunner().Version(), len(migration.Steps()))
			return nil
		},
	}
}
