package cli

import (
	"github.com/spf13/cobra"

	"github.com/sfaret/stipslite/internal/config"
	"github.com/sfaret/stipslite/internal/logx"
)

var (
	cfg      config.Config
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:           "stipslite",
	Short:         "Student, print-center and virtual-assistant portal",
	Long:          "STIPS Lite serves the student / print-center / VA portal: role dashboards, plans, support chat and AI search.",
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return err
		}
		if logLevel != "" {
			c.Log.Level = logLevel
		}
		cfg = c
		logx.Setup(cfg.Log.Level, cfg.Log.Format)
		return nil
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override log level (debug, info, warn, error)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(findPrintCmd)
	rootCmd.AddCommand(findTasksCmd)
}
