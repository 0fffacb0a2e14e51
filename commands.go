package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"sjsage522/communitysync/config"
	"sjsage522/communitysync/helpers"
	"sjsage522/communitysync/internal/crawler"
	"sjsage522/communitysync/internal/district"
	"sjsage522/communitysync/internal/notion"
	"sjsage522/communitysync/internal/sink"
	"sjsage522/communitysync/logger"
	"sjsage522/communitysync/pkg/errors"
	"sjsage522/communitysync/services/pipeline"
)

// app carries the state shared by every subcommand of one invocation
type app struct {
	cfg      *config.Config
	failures *helpers.FailureLog
	out      io.Writer
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "communitysync",
		Short:         "communitysync scrapes Taichung community associations into per-district CSV files and Notion databases.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			a.cfg = config.LoadConfig()
			if err := a.cfg.Validate(); err != nil {
				return err
			}
			a.failures = helpers.NewFailureLog(a.cfg.FailureLog)
			a.out = cmd.OutOrStdout()
			logger.ForPipeline().Info().Str("environment", a.cfg.Environment).Str("command", cmd.Name()).Msg("Starting")
			return nil
		},
	}

	root.AddCommand(a.scrapeCmd(), a.splitCmd(), a.uploadCmd(), a.exportCmd())
	return root
}

func (a *app) scrapeCmd() *cobra.Command {
	var (
		maxPages int
		outDir   string
		by       string
		publish  bool
	)

	cmd := &cobra.Command{
		Use:   "scrape [--max-pages N] [--out DIR] [--by address|name] [--publish]",
		Short: "Walks the listing pages and writes the combined and per-district CSV files.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if cmd.Flags().Changed("max-pages") {
				a.cfg.MaxPages = maxPages
			}
			if outDir == "" {
				outDir = a.cfg.OutputDir
			}
			classifier, err := newClassifier(by)
			if err != nil {
				return err
			}

			services, err := initializeServices(ctx, a.cfg, publish)
			if err != nil {
				return err
			}
			defer services.Cleanup()

			fetcher := newFetcher(a.cfg, services.Cache)
			walker := crawler.NewWalker(crawler.TaichungConfig(a.cfg), fetcher, a.failures)

			runner := pipeline.NewRunner(pipeline.Options{
				Source:      walker,
				Classifier:  classifier,
				Writer:      sink.NewCSVWriter(outDir),
				Publisher:   services.Publisher,
				Environment: a.cfg.Environment,
			})

			result, err := runner.Scrape(ctx)
			if err != nil {
				return err
			}

			pipeline.RenderScrape(a.out, result)
			helpers.RenderFailures(a.out, "Failed pages", a.failures.Failures())
			return nil
		},
	}

	cmd.Flags().IntVar(&maxPages, "max-pages", 0, "Maximum number of listing pages to walk (0 walks until an empty page).")
	cmd.Flags().StringVar(&outDir, "out", "", "Directory the CSV files are written to (default OUTPUT_DIR).")
	cmd.Flags().StringVar(&by, "by", string(district.ByAddress), "Classify records by their address or by their name.")
	cmd.Flags().BoolVar(&publish, "publish", false, "Publish every classified record to its district's Redis stream.")
	return cmd
}

func (a *app) splitCmd() *cobra.Command {
	var (
		outDir string
		by     string
	)

	cmd := &cobra.Command{
		Use:   "split <combined.csv> [--out DIR] [--by address|name]",
		Short: "Regroups a combined CSV file into one file per district.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if outDir == "" {
				outDir = a.cfg.OutputDir
			}
			classifier, err := newClassifier(by)
			if err != nil {
				return err
			}

			runner := pipeline.NewRunner(pipeline.Options{
				Classifier: classifier,
				Writer:     sink.NewCSVWriter(outDir),
			})
			paths, dropped, err := runner.Split(args[0])
			if err != nil {
				return err
			}

			for _, path := range paths {
				fmt.Fprintln(a.out, path)
			}
			if dropped > 0 {
				fmt.Fprintf(a.out, "%d rows matched no district\n", dropped)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&outDir, "out", "", "Directory the district files are written to (default OUTPUT_DIR).")
	cmd.Flags().StringVar(&by, "by", string(district.ByAddress), "Classify rows by their address or by their name.")
	return cmd
}

func (a *app) uploadCmd() *cobra.Command {
	var (
		databaseID  string
		districtArg string
		by          string
		progress    string
		willingness string
		delay       time.Duration
	)

	cmd := &cobra.Command{
		Use:   "upload <file.csv> [--database ID | --district NAME] [--by address|name] [--progress X] [--willingness Y] [--delay D]",
		Short: "Creates one Notion database row per CSV record.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.cfg.ValidateNotion(databaseID); err != nil {
				return err
			}
			classifier, err := newClassifier(by)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("delay") {
				delay = a.cfg.UploadDelay
			}
			if delay < 0 {
				return errors.NewConfiguration("--delay must not be negative", nil)
			}
			if progress == "" {
				progress = a.cfg.DefaultContactProgress
			}
			if willingness == "" {
				willingness = a.cfg.DefaultWillingnessLevel
			}

			uploader := notion.NewUploader(newNotionClient(a.cfg), notion.UploaderOptions{
				Delay:    delay,
				Defaults: notion.Defaults{
					ContactProgress:  progress,
					Willingness:      willingness,
					DistrictProperty: a.cfg.DistrictProperty,
				},
				Failures: a.failures,
			})
			runner := pipeline.NewRunner(pipeline.Options{
				Uploader:   uploader,
				Classifier: classifier,
				Resolve:    a.cfg.DatabaseFor,
			})

			summary, err := runner.Upload(cmd.Context(), args[0], pipeline.UploadTarget{
				DatabaseID: databaseID,
				District:   districtArg,
			})
			fmt.Fprintf(a.out, "Created %d rows, %d failed\n", summary.Created, len(summary.Failed))
			helpers.RenderFailures(a.out, "Failed rows", summary.Failed)
			return err
		},
	}

	cmd.Flags().StringVar(&databaseID, "database", "", "Database every row is created in, overriding district routing.")
	cmd.Flags().StringVar(&districtArg, "district", "", "District of every row in the file; selects its database from NOTION_DISTRICT_DATABASES.")
	cmd.Flags().StringVar(&by, "by", string(district.ByAddress), "Classify rows by their address or by their name when the file is not a district file.")
	cmd.Flags().StringVar(&progress, "progress", "", "Initial 聯絡進度 value (default DEFAULT_CONTACT_PROGRESS).")
	cmd.Flags().StringVar(&willingness, "willingness", "", "Initial 意願程度 value (default DEFAULT_WILLINGNESS).")
	cmd.Flags().DurationVar(&delay, "delay", notion.DefaultUploadDelay, "Pause between consecutive create calls.")
	cmd.MarkFlagsMutuallyExclusive("database", "district")
	return cmd
}

func (a *app) exportCmd() *cobra.Command {
	var databaseID string

	cmd := &cobra.Command{
		Use:   "export [--database ID]",
		Short: "Prints every row of a Notion database as a table.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.cfg.NotionToken == "" {
				return errors.NewConfiguration("INTERNAL_INTEGRATION_SECRET is required", nil)
			}
			if databaseID == "" {
				databaseID = a.cfg.NotionDatabaseID
			}
			if databaseID == "" {
				return errors.NewConfiguration("--database or DATABASE_ID is required", nil)
			}

			runner := pipeline.NewRunner(pipeline.Options{Reader: newNotionClient(a.cfg)})
			rows, err := runner.Export(cmd.Context(), databaseID)
			if err != nil {
				return err
			}
			pipeline.RenderExport(a.out, rows)
			return nil
		},
	}

	cmd.Flags().StringVar(&databaseID, "database", "", "Database to export (default DATABASE_ID).")
	return cmd
}

func newClassifier(by string) (*district.Classifier, error) {
	strategy, err := district.ParseStrategy(by)
	if err != nil {
		return nil, err
	}
	return district.NewClassifier(nil, strategy), nil
}
