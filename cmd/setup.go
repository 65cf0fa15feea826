package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"

	"mallard/internal/common"
	"mallard/internal/config"
	"mallard/internal/security"
	"mallard/internal/ui"
	"mallard/pkg/models"
)

var setupAccessFile string

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Initial configuration setup",
	Long: "Interactively configure the document source, the sink engine, and " +
		"the pipeline. Source credentials can also be loaded from a JSON access " +
		"file with --access-file instead of typing them in.",
	Run: runSetup,
}

// accessFile is the JSON shape of an exported credentials file, either flat
// or nested under a mongo_access key.
type accessFile struct {
	MongoAccess *accessEntry `json:"mongo_access"`
	accessEntry
}

type accessEntry struct {
	URI      string `json:"uri"`
	Host     string `json:"host"`
	Username string `json:"username"`
	Password string `json:"password"`
}

func init() {
	setupCmd.Flags().StringVar(&setupAccessFile, "access-file", "", "JSON file with document source credentials")
	rootCmd.AddCommand(setupCmd)
}

func runSetup(cmd *cobra.Command, args []string) {
	fmt.Println("Setting up mallard...")
	fmt.Println()

	if config.Exists() {
		var overwrite bool
		prompt := &survey.Confirm{
			Message: "Configuration already exists. Do you want to overwrite it?",
			Default: false,
		}
		survey.AskOne(prompt, &overwrite)
		if !overwrite {
			fmt.Println("Setup cancelled.")
			return
		}
	}

	cfg := &models.Config{}

	fmt.Println("Document Source")
	fmt.Println("---------------")
	if setupAccessFile != "" {
		if err := loadAccessFile(setupAccessFile, &cfg.Mongo); err != nil {
			ui.ShowError(err)
			os.Exit(1)
		}
		ui.ShowInfo(fmt.Sprintf("Loaded source credentials from %s", setupAccessFile))
	} else {
		mongoQs := []*survey.Question{
			{
				Name: "host",
				Prompt: &survey.Input{
					Message: "Cluster host (e.g., cluster0.abcde.mongodb.net):",
				},
				Validate: survey.Required,
			},
			{
				Name: "username",
				Prompt: &survey.Input{
					Message: "Username:",
				},
				Validate: survey.Required,
			},
			{
				Name: "password",
				Prompt: &survey.Password{
					Message: "Password:",
				},
				Validate: survey.Required,
			},
		}
		if err := survey.Ask(mongoQs, &cfg.Mongo); err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
	}

	fmt.Println()
	fmt.Println("Sink Engine")
	fmt.Println("-----------")

	var driver string
	survey.AskOne(&survey.Select{
		Message: "Sink driver:",
		Options: []string{"duckdb", "snowflake"},
		Default: "duckdb",
	}, &driver)
	cfg.Sink.Driver = driver

	if driver == "duckdb" {
		survey.AskOne(&survey.Input{
			Message: "Database file path:",
			Default: "mallard.db",
		}, &cfg.Sink.Path)
	} else {
		sinkQs := []*survey.Question{
			{
				Name: "account",
				Prompt: &survey.Input{
					Message: "Snowflake account (e.g., xy12345.us-east-1):",
				},
				Validate: survey.Required,
			},
			{
				Name:     "username",
				Prompt:   &survey.Input{Message: "Username:"},
				Validate: survey.Required,
			},
			{
				Name:     "password",
				Prompt:   &survey.Password{Message: "Password:"},
				Validate: survey.Required,
			},
			{
				Name:     "database",
				Prompt:   &survey.Input{Message: "Database:"},
				Validate: survey.Required,
			},
			{
				Name:   "schema",
				Prompt: &survey.Input{Message: "Schema:", Default: "PUBLIC"},
			},
			{
				Name:   "warehouse",
				Prompt: &survey.Input{Message: "Warehouse:", Default: "COMPUTE_WH"},
			},
			{
				Name:   "role",
				Prompt: &survey.Input{Message: "Role:", Default: "ACCOUNTADMIN"},
			},
		}
		if err := survey.Ask(sinkQs, &cfg.Sink); err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
	}

	fmt.Println()
	fmt.Println("Pipeline")
	fmt.Println("--------")
	survey.AskOne(&survey.Input{
		Message: "Source database:",
		Default: models.DefaultDatabase,
	}, &cfg.Pipeline.Database)
	survey.AskOne(&survey.Input{
		Message: "Source collection:",
		Default: models.DefaultCollection,
	}, &cfg.Pipeline.Collection)
	cfg.Pipeline.ApplyDefaults()

	storeInKeyring(cfg)

	if err := config.Save(cfg); err != nil {
		ui.ShowError(err)
		os.Exit(1)
	}

	fmt.Println()
	ui.ShowSuccess(fmt.Sprintf("Configuration saved to %s", config.GetConfigFile()))
	fmt.Println("Run 'mallard run' to execute the pipeline.")
}

func loadAccessFile(path string, mongo *models.Mongo) error {
	cleaned, err := common.CleanPath(path)
	if err != nil {
		return fmt.Errorf("invalid access file path: %w", err)
	}

	data, err := os.ReadFile(cleaned) // #nosec G304 - path is validated
	if err != nil {
		return fmt.Errorf("failed to read access file: %w", err)
	}

	var af accessFile
	if err := json.Unmarshal(data, &af); err != nil {
		return fmt.Errorf("failed to parse access file: %w", err)
	}

	entry := af.accessEntry
	if af.MongoAccess != nil {
		entry = *af.MongoAccess
	}
	if entry.Host == "" && entry.URI == "" {
		return fmt.Errorf("access file has no host or uri")
	}

	mongo.URI = entry.URI
	mongo.Host = entry.Host
	mongo.Username = entry.Username
	mongo.Password = entry.Password
	return nil
}

// storeInKeyring mirrors the passwords into the system keyring when one is
// available. Failures are not fatal; the config file keeps an encrypted copy.
func storeInKeyring(cfg *models.Config) {
	cm, err := security.NewCredentialManager()
	if err != nil {
		return
	}
	if cfg.Mongo.Password != "" {
		_ = cm.StoreCredential("mongo-password", "password", cfg.Mongo.Password,
			map[string]string{"host": cfg.Mongo.Host})
	}
	if cfg.Sink.Password != "" {
		_ = cm.StoreCredential("sink-password", "password", cfg.Sink.Password,
			map[string]string{"account": cfg.Sink.Account})
	}
}
