package main

import (
	"github.com/spf13/cobra"

	"github.com/askiada/go-pdq/internal/app"
)

// version is set at build time via -ldflags.
var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "pdq",
	Short: "Process data quality pipelines",
	Long: "pdq runs graphs of readers, pattern detectors, actions and writers over\n" +
		"tabular event logs, pausing for a human decision whenever a detector finds\n" +
		"imperfection candidates.",
	SilenceUsage: true,
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
}

var globalFlags struct {
	logLevel  string
	logFormat string
	storeDir  string
}

func init() {
	f := rootCmd.PersistentFlags()
	f.StringVar(&globalFlags.logLevel, "log-level", "info", "Log level: debug, info, warn or error")
	f.StringVar(&globalFlags.logFormat, "log-format", "text", "Log format: text or json")
	f.StringVar(&globalFlags.storeDir, "store", "", "Directory of saved graphs (kept in memory when empty)")

	rootCmd.AddCommand(stagesCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(resumeCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(drawCmd)
	rootCmd.AddCommand(graphsCmd)
	rootCmd.Version = version
}

// newApp completes cfg with the global flags and creates the application.
func newApp(cmd *cobra.Command, cfg app.Config) (*app.App, error) {
	cfg.LogLevel = globalFlags.logLevel
	cfg.LogFormat = globalFlags.logFormat
	cfg.StoreDir = globalFlags.storeDir
	valid, err := app.NewConfig(cfg)
	if err != nil {
		return nil, err
	}

	return app.NewApp(cmd.OutOrStdout(), cmd.ErrOrStderr(), valid)
}
