package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/v2/bson"

	"mallard/internal/config"
	"mallard/internal/source"
	"mallard/internal/ui"
)

var exploreSample bool

var exploreCmd = &cobra.Command{
	Use:   "explore [database]",
	Short: "List databases and collections in the document source",
	Long: "Without arguments, lists the databases visible to the configured " +
		"client. With a database argument, lists its collections. The --sample " +
		"flag prints the first document of the configured collection as " +
		"extended JSON, which helps when a run reports schema mismatches.",
	Args: cobra.MaximumNArgs(1),
	RunE: runExplore,
}

func init() {
	exploreCmd.Flags().BoolVar(&exploreSample, "sample", false, "print the first document of the configured collection")
	rootCmd.AddCommand(exploreCmd)
}

func runExplore(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	cfg.Pipeline.ApplyDefaults()

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

	ctx := cmd.Context()

	if exploreSample {
		doc, err := src.SampleOne(ctx, cfg.Pipeline.Database, cfg.Pipeline.Collection)
		if err != nil {
			ui.ShowError(err)
			return err
		}
		out, err := bson.MarshalExtJSONIndent(doc, false, false, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to render sample document: %w", err)
		}
		fmt.Println(string(out))
		return nil
	}

	if len(args) == 1 {
		collections, err := src.ListCollections(ctx, args[0])
		if err != nil {
			ui.ShowError(err)
			return err
		}
		table := ui.NewTable()
		table.AddHeader("COLLECTION")
		for _, name := range collections {
			table.AddRow(name)
		}
		table.Render()
		return nil
	}

	databases, err := src.ListDatabases(ctx)
	if err != nil {
		ui.ShowError(err)
		return err
	}
	table := ui.NewTable()
	table.AddHeader("DATABASE")
	for _, name := range databases {
		table.AddRow(name)
	}
	table.Render()
	return nil
}
