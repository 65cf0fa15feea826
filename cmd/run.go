package cmd

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"mallard/internal/config"
	"mallard/internal/pipeline"
	"mallard/internal/sink"
	"mallard/internal/source"
	"mallard/internal/ui"
	"mallard/pkg/models"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full extraction pipeline",
	Long: "Fetch the configured collection, normalize the documents, and load " +
		"the raw, intermediate, and aggregated tables into the sink. Each table " +
		"is replaced atomically; a failed run leaves the previous contents intact.",
	RunE: runPipeline,
}

func init() {
	runCmd.Flags().String("database", "", "source database name")
	runCmd.Flags().String("collection", "", "source collection name")
	runCmd.Flags().Bool("strict", false, "abort on the first document that does not match the schema")
	runCmd.Flags().String("sink-path", "", "duckdb database file (overrides config)")

	viper.BindPFlag("pipeline.database", runCmd.Flags().Lookup("database"))
	viper.BindPFlag("pipeline.collection", runCmd.Flags().Lookup("collection"))
	viper.BindPFlag("pipeline.strict", runCmd.Flags().Lookup("strict"))
	viper.BindPFlag("sink.path", runCmd.Flags().Lookup("sink-path"))

	rootCmd.AddCommand(runCmd)
}

func runPipeline(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	applyOverrides(cfg)

	ui.ShowHeader("Pipeline Run")

	src := source.NewService(source.Config{
		URI:      cfg.Mongo.URI,
		Host:     cfg.Mongo.Host,
		Username: cfg.Mongo.Username,
		Password: cfg.Mongo.Password,
	})
	if err := src.Connect(); err != nil {
		ui.ShowError(err)
		return err
	}
	defer src.Close()
	ui.ShowInfo("Connected to document source")

	snk, err := sink.NewService(sink.Config{
		Driver:    cfg.Sink.Driver,
		Path:      cfg.Sink.Path,
		Account:   cfg.Sink.Account,
		Username:  cfg.Sink.Username,
		Password:  cfg.Sink.Password,
		Database:  cfg.Sink.Database,
		Schema:    cfg.Sink.Schema,
		Warehouse: cfg.Sink.Warehouse,
		Role:      cfg.Sink.Role,
	})
	if err != nil {
		return err
	}
	if err := snk.Connect(); err != nil {
		ui.ShowError(err)
		return err
	}
	defer snk.Close()
	ui.ShowInfo(fmt.Sprintf("Connected to %s sink", snk.Dialect().Name()))

	report, err := pipeline.NewService(src, snk, cfg.Pipeline).Run(cmd.Context())
	if err != nil {
		ui.ShowError(err)
		return err
	}

	printReport(report, cfg.Pipeline)
	return nil
}

func applyOverrides(cfg *models.Config) {
	if v := viper.GetString("pipeline.database"); v != "" {
		cfg.Pipeline.Database = v
	}
	if v := viper.GetString("pipeline.collection"); v != "" {
		cfg.Pipeline.Collection = v
	}
	if viper.GetBool("pipeline.strict") {
		cfg.Pipeline.Strict = true
	}
	if v := viper.GetString("sink.path"); v != "" {
		cfg.Sink.Path = v
	}
	cfg.Pipeline.ApplyDefaults()
}

func printReport(report *pipeline.Report, cfg models.Pipeline) {
	green := color.New(color.FgGreen).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()

	fmt.Println()
	fmt.Printf("Source: %s.%s\n", report.Database, report.Collection)
	fmt.Printf("Fetched %d documents in %s\n", report.Fetched, report.Duration.Round(time.Millisecond))
	if report.Skipped > 0 {
		fmt.Printf("%s %d documents did not match the schema and were skipped\n",
			yellow("!"), report.Skipped)
	}

	table := ui.NewTable()
	table.AddHeader("TABLE", "ROWS")
	table.AddRow(cfg.RawTable, fmt.Sprintf("%d", report.RawRows))
	table.AddRow(cfg.IntTable, fmt.Sprintf("%d", report.IntRows))
	table.AddRow(cfg.ExpCountsTable, fmt.Sprintf("%d", report.ExpGroups))
	table.AddRow(cfg.ExpScoresView, "(view)")
	table.Render()

	fmt.Printf("\n%s pipeline completed\n", green("OK"))
}
