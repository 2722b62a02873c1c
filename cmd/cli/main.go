package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"riskhypo/internal/config"
	"riskhypo/internal/errors"
)

// cli carries configuration resolved in the root command's pre-run hook
type cli struct {
	v   *viper.Viper
	cfg *config.Config
}

func main() {
	c := &cli{v: config.New()}
	rootCmd := c.newRootCmd()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error [%s]: %v\n", errors.GetCode(err), err)
		_ = zap.L().Sync()
		os.Exit(1)
	}
	_ = zap.L().Sync()
}

func (c *cli) newRootCmd() *cobra.Command {
	var configFile string

	rootCmd := &cobra.Command{
		Use:   "riskhypo",
		Short: "Segment risk hypothesis testing for insurance portfolios",
		Long: `riskhypo tests whether claim frequency, claim severity and margin differ
significantly across provinces, postal codes and gender.

Settings come from flags, RISKHYPO_* environment variables (a .env file is
honoured), an optional riskhypo.yaml, then built-in defaults.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if configFile != "" {
				c.v.SetConfigFile(configFile)
			}
			cfg, err := config.Load(c.v)
			if err != nil {
				return err
			}
			if err := config.InitLogger(cfg.Log); err != nil {
				return errors.WithCode(errors.CodeConfigInvalid, err)
			}
			c.cfg = cfg
			return nil
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "Config file (default ./riskhypo.yaml)")
	flags.Float64("alpha", 0.05, "Significance level, 0 < alpha < 1")
	flags.String("data", "", "Input file (.csv, .txt/.psv pipe-delimited, .tsv, .xlsx)")
	flags.String("delimiter", "", "Field delimiter override (e.g. '|', 'tab')")
	flags.String("sheet", "", "Worksheet for .xlsx input (default: first sheet)")
	flags.String("format", "text", "Output format: text, json or yaml")
	flags.String("log-level", "info", "Log level: debug, info, warn, error")
	flags.String("log-format", "console", "Log format: console or json")

	for key, flag := range map[string]string{
		"analysis.alpha": "alpha",
		"data.path":      "data",
		"data.delimiter": "delimiter",
		"data.sheet":     "sheet",
		"report.format":  "format",
		"log.level":      "log-level",
		"log.format":     "log-format",
	} {
		_ = c.v.BindPFlag(key, flags.Lookup(flag))
	}

	rootCmd.AddCommand(
		c.newTestCmd(),
		c.newDescribeCmd(),
		c.newTrendCmd(),
		c.newGenerateCmd(),
	)
	return rootCmd
}
