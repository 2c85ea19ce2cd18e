package main

import (
	"fmt"
	"os"

	"github.com/lancet-ai/lancet/internal/config"
	"github.com/lancet-ai/lancet/internal/logger"

	"github.com/spf13/cobra"
)

var (
	cfgFile string
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "lancet",
	Short: "Lancet streaming analysis runtime",
	Long:  `Lancet streams model turns with live tool execution for clinical data analysis.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cmd)
		if err != nil {
			return err
		}

		logger.Setup(cfg.Server.LogLevel)
		return nil
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.lancet/config.yaml)")
	rootCmd.PersistentFlags().String("server.log_level", config.DefaultServerLogLevel, "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Int("server.port", config.DefaultServerPort, "server port")
	rootCmd.PersistentFlags().String("model.name", config.DefaultModelName, "model name")
	rootCmd.PersistentFlags().String("sandbox.base_url", "", "code execution sandbox base URL")
}
