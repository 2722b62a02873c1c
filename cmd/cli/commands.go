package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"riskhypo/adapters/reader"
	"riskhypo/adapters/report"
	"riskhypo/app"
	"riskhypo/domain/policy"
	"riskhypo/internal/analysis/profile"
	"riskhypo/internal/analysis/trend"
	"riskhypo/internal/dataset"
	"riskhypo/internal/errors"
	"riskhypo/internal/testkit"
	"riskhypo/ports"
)

func (c *cli) newTestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "test [data-file]",
		Short: "Run the segment hypothesis battery (H1-H4)",
		Long: `Run the four segment hypotheses against a policy dataset:

  H1  claim frequency and severity across provinces
  H2  claim frequency and severity between postal codes
  H3  margin between postal codes
  H4  claim frequency and severity between women and men

Example: riskhypo test MachineLearningRating_v3.txt --alpha 0.05`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ds, err := c.loadDataset(cmd.Context(), args)
			if err != nil {
				return err
			}

			format, err := report.ParseFormat(c.cfg.Report.Format)
			if err != nil {
				return err
			}
			renderer, err := report.New(format)
			if err != nil {
				return err
			}

			var battery ports.BatteryPort = app.NewSegmentTestRunner(nil, zap.L())
			rep, err := battery.Run(cmd.Context(), ds, c.cfg.Analysis.Alpha)
			if err != nil {
				return err
			}
			return renderer.Render(cmd.OutOrStdout(), rep)
		},
	}
}

func (c *cli) newDescribeCmd() *cobra.Command {
	var by string

	cmd := &cobra.Command{
		Use:   "describe [data-file]",
		Short: "Summarise claim frequency, severity, margin and loss ratio per segment",
		Long: `Print a descriptive profile of every category of one dimension.

Example: riskhypo describe data.csv --by PostalCode`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dim, err := policy.ParseDimension(by)
			if err != nil {
				return errors.WithCode(errors.CodeInvalidInput, err)
			}
			ds, err := c.loadDataset(cmd.Context(), args)
			if err != nil {
				return err
			}
			profiles, err := profile.Build(ds, dim)
			if err != nil {
				return err
			}
			return c.emit(cmd.OutOrStdout(), profiles, func() string { return profile.Table(dim, profiles) })
		},
	}

	cmd.Flags().StringVar(&by, "by", string(policy.DimensionProvince), "Dimension: Province, PostalCode or Gender")
	return cmd
}

func (c *cli) newTrendCmd() *cobra.Command {
	var agg string

	cmd := &cobra.Command{
		Use:   "trend [data-file]",
		Short: "Aggregate TotalPremium and TotalClaims by TransactionMonth",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			aggregation, err := trend.ParseAggregation(agg)
			if err != nil {
				return err
			}
			raw, err := c.loadRaw(cmd.Context(), args)
			if err != nil {
				return err
			}
			res, err := trend.Aggregate(raw, aggregation)
			if err != nil {
				return err
			}
			if res.Unparsed > 0 {
				zap.L().Warn("rows without a readable TransactionMonth", zap.Int("rows", res.Unparsed))
			}
			return c.emit(cmd.OutOrStdout(), res, func() string { return trend.Table(res) })
		},
	}

	cmd.Flags().StringVar(&agg, "agg", string(trend.AggSum), "Aggregation: sum or mean")
	return cmd
}

func (c *cli) newGenerateCmd() *cobra.Command {
	var rows int
	var seed int64
	var out string
	var corrupt float64

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Write a synthetic policy dataset",
		Long: `Write seeded synthetic policy rows, handy for trying the other commands.

Example: riskhypo generate --rows 10000 --seed 7 --out sample.csv`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			gcfg := testkit.DefaultPolicyConfig()
			gcfg.Rows = rows
			gcfg.Seed = seed
			gcfg.CorruptRate = corrupt

			records, err := testkit.NewPolicyDataGenerator(gcfg).Generate()
			if err != nil {
				return err
			}

			var w io.Writer = cmd.OutOrStdout()
			if out != "" && out != "-" {
				f, err := os.Create(out)
				if err != nil {
					return errors.Wrapf(err, "create %s", out)
				}
				defer f.Close()
				w = f
			}

			comma := reader.ReaderConfig{FilePath: out, Delimiter: c.cfg.Data.Delimiter}.Comma()
			if err := testkit.WriteCSV(w, records, comma); err != nil {
				return err
			}
			zap.L().Info("synthetic data written", zap.String("out", out), zap.Int("rows", len(records)), zap.Int64("seed", seed))
			return nil
		},
	}

	cmd.Flags().IntVar(&rows, "rows", 5000, "Number of rows")
	cmd.Flags().Int64Var(&seed, "seed", 42, "Random seed")
	cmd.Flags().StringVar(&out, "out", "-", "Output file; '-' writes to stdout")
	cmd.Flags().Float64Var(&corrupt, "corrupt-rate", 0.01, "Share of rows with an unreadable premium")
	return cmd
}

// loadDataset reads and cleans the input named by args or data.path
func (c *cli) loadDataset(ctx context.Context, args []string) (*policy.Dataset, error) {
	raw, err := c.loadRaw(ctx, args)
	if err != nil {
		return nil, err
	}
	ds, _, err := dataset.NewProcessor(zap.L()).Preprocess(raw)
	return ds, err
}

// loadRaw reads the input named by args or data.path without cleaning it
func (c *cli) loadRaw(ctx context.Context, args []string) (*policy.RawDataset, error) {
	path := c.cfg.Data.Path
	if len(args) > 0 {
		path = args[0]
	}
	if path == "" {
		return nil, errors.ConfigInvalid("no input file: pass one as an argument, --data or data.path")
	}

	rcfg := reader.ReaderConfig{FilePath: path, Delimiter: c.cfg.Data.Delimiter, Sheet: c.cfg.Data.Sheet}
	var loader ports.LoaderPort = reader.NewDataReader(rcfg, zap.L())
	return loader.Load(ctx)
}

// emit writes v in the configured format; text uses render
func (c *cli) emit(w io.Writer, v interface{}, render func() string) error {
	switch strings.ToLower(c.cfg.Report.Format) {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return errors.Wrap(enc.Encode(v), "encode json")
	case "yaml":
		enc := yaml.NewEncoder(w)
		if err := enc.Encode(v); err != nil {
			return errors.Wrap(err, "encode yaml")
		}
		return errors.Wrap(enc.Close(), "flush yaml")
	}
	_, err := fmt.Fprintln(w, render())
	return errors.Wrap(err, "write table")
}
