package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "mallard",
	Short: "Extract MongoDB collections into analytical tables",
	Long: "Mallard - A CLI tool that extracts a MongoDB collection and loads it " +
		"into layered analytical tables (raw, intermediate, and aggregated) in " +
		"DuckDB or Snowflake.",
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
}

func initConfig() {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")

	home, err := os.UserHomeDir()
	if err == nil {
		viper.AddConfigPath(home + "/.mallard")
	}

	viper.SetEnvPrefix("MALLARD")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		// Missing config file is fine; setup creates it later
	}
}
