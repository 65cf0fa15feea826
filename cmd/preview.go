package cmd

import (
	"fmt"
	"os"
	"sort"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"mallard/internal/config"
	"mallard/internal/sink"
	"mallard/internal/ui"
)

var previewLimit int

var previewCmd = &cobra.Command{
	Use:   "preview <table>",
	Short: "Show the first rows of a sink table or view",
	Args:  cobra.ExactArgs(1),
	RunE:  runPreview,
}

func init() {
	previewCmd.Flags().IntVarP(&previewLimit, "limit", "n", 10, "number of rows to show")
	rootCmd.AddCommand(previewCmd)
}

func runPreview(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

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

	rows, err := snk.Query(fmt.Sprintf("SELECT * FROM %s LIMIT %d", args[0], previewLimit))
	if err != nil {
		ui.ShowError(err)
		return err
	}
	if len(rows) == 0 {
		ui.ShowWarning(fmt.Sprintf("%s is empty", args[0]))
		return nil
	}

	columns := make([]string, 0, len(rows[0]))
	for col := range rows[0] {
		columns = append(columns, col)
	}
	sort.Strings(columns)

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader(columns)
	for _, row := range rows {
		cells := make([]string, len(columns))
		for i, col := range columns {
			cells[i] = fmt.Sprintf("%v", row[col])
		}
		table.Append(cells)
	}
	table.Render()
	return nil
}
