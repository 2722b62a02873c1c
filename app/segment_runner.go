package app

import (
	"context"
	"fmt"
	"math"

	"go.uber.org/zap"

	"riskhypo/adapters/stats/hypothesis"
	"riskhypo/domain/core"
	"riskhypo/domain/policy"
	"riskhypo/domain/stats"
	"riskhypo/internal/errors"
)

// SegmentTestRunner executes a hypothesis battery against a cleaned dataset.
// Every test passes through the same guard sequence: restrict the population,
// reject an empty one, apply the structural guard, drop sparse groups, then
// apply the post-filter guard.
type SegmentTestRunner struct {
	battery []HypothesisSpec
	logger  *zap.Logger
}

// NewSegmentTestRunner creates a runner; a nil battery means DefaultBattery
// and a nil logger the global one
func NewSegmentTestRunner(battery []HypothesisSpec, logger *zap.Logger) *SegmentTestRunner {
	if battery == nil {
		battery = DefaultBattery()
	}
	if logger == nil {
		logger = zap.L()
	}
	return &SegmentTestRunner{battery: battery, logger: logger.Named("runner")}
}

// Battery returns the hypotheses this runner executes
func (r *SegmentTestRunner) Battery() []HypothesisSpec {
	return r.battery
}

// Run evaluates every hypothesis at significance level alpha. Per-test
// failures are recorded in the report and never abort the run.
func (r *SegmentTestRunner) Run(ctx context.Context, ds *policy.Dataset, alpha float64) (*stats.Report, error) {
	if math.IsNaN(alpha) || alpha <= 0 || alpha >= 1 {
		return nil, errors.InvalidInput(fmt.Sprintf("alpha must be in (0, 1), got %v", alpha))
	}
	if ds == nil {
		ds = policy.NewDataset(nil)
	}

	report := &stats.Report{
		RunID:       core.NewRunID(),
		Alpha:       alpha,
		Rows:        ds.Len(),
		ClaimRows:   ds.ClaimCount(),
		GeneratedAt: core.Now(),
		Hypotheses:  make([]stats.HypothesisResult, 0, len(r.battery)),
	}

	for _, h := range r.battery {
		hr := stats.HypothesisResult{ID: h.ID, Title: h.Title, Null: h.Null}
		for _, spec := range h.Tests {
			if err := ctx.Err(); err != nil {
				return nil, errors.Wrap(err, "battery run cancelled")
			}
			hr.Tests = append(hr.Tests, r.runTest(spec, ds, alpha))
		}
		report.Hypotheses = append(report.Hypotheses, hr)
	}

	s := report.Summarize()
	r.logger.Info("battery complete",
		zap.String("run_id", report.RunID.String()),
		zap.Float64("alpha", alpha),
		zap.Int("executed", s.Executed),
		zap.Int("significant", s.Significant),
		zap.Int("skipped", s.Skipped),
		zap.Int("failed", s.Failed),
	)
	return report, nil
}

func (r *SegmentTestRunner) runTest(spec TestSpec, ds *policy.Dataset, alpha float64) stats.TestResult {
	res := stats.TestResult{
		Name:      spec.Name,
		Kind:      spec.Kind,
		Dimension: spec.Dimension,
		Metric:    spec.Metric,
		Subject:   spec.Subject,
		Alpha:     alpha,
	}

	records := population(spec, ds)
	if len(records) == 0 {
		return r.skip(res, stats.SkipEmptyPopulation, spec.Messages.Empty)
	}

	var err error
	switch spec.Kind {
	case stats.TestChiSquare:
		err = r.runChiSquare(&res, spec, records)
	case stats.TestANOVA:
		err = r.runANOVA(&res, spec, records, alpha)
	case stats.TestWelchT:
		err = r.runWelch(&res, spec, records)
	default:
		err = errors.InvalidInput(fmt.Sprintf("unknown test kind %q", spec.Kind))
	}

	switch {
	case err != nil && errors.HasCode(err, errors.CodeInsufficientData):
		return r.skip(res, stats.SkipSparseGroups, err.Error())
	case err != nil:
		res.Status = stats.StatusFailed
		res.Error = err.Error()
		r.logger.Error("test failed",
			zap.String("test", spec.Name),
			zap.String("code", errors.GetCode(err)),
			zap.Error(err),
		)
		return res
	case res.Status == stats.StatusSkipped:
		return r.logSkip(res)
	}

	res.Status = stats.StatusExecuted
	res.Significant = stats.IsSignificant(res.PValue, alpha)
	r.logger.Debug("test executed",
		zap.String("test", spec.Name),
		zap.Float64("p_value", res.PValue),
		zap.Float64("statistic", res.Statistic),
		zap.Int("n", res.SampleSize),
		zap.Int("groups", res.Groups),
		zap.Bool("significant", res.Significant),
	)
	return res
}

func (r *SegmentTestRunner) skip(res stats.TestResult, code stats.SkipCode, reason string) stats.TestResult {
	markSkipped(&res, code, reason)
	return r.logSkip(res)
}

func (r *SegmentTestRunner) logSkip(res stats.TestResult) stats.TestResult {
	r.logger.Debug("test skipped",
		zap.String("test", res.Name),
		zap.String("code", string(res.SkipCode)),
		zap.String("reason", res.SkipReason),
	)
	return res
}

// markSkipped records a guard failure on res
func markSkipped(res *stats.TestResult, code stats.SkipCode, reason string) {
	res.Status = stats.StatusSkipped
	res.SkipCode = code
	res.SkipReason = reason
	res.PValue = math.NaN()
	res.Statistic = math.NaN()
}

func (r *SegmentTestRunner) runChiSquare(res *stats.TestResult, spec TestSpec, records []policy.Record) error {
	if len(spec.Categories) > 0 && len(policy.Categories(records, spec.Dimension)) < 2 {
		markSkipped(res, stats.SkipInsufficientGroups, spec.Messages.groups())
		return nil
	}

	table := hypothesis.NewContingencyTable(records, spec.Dimension)
	if rows, cols := table.Shape(); rows < 2 || cols < 2 {
		markSkipped(res, stats.SkipInsufficientVariation, spec.Messages.Variation)
		return nil
	}

	table = table.DropSparseRows(spec.MinGroupObs)
	if len(table.Rows) < 2 {
		markSkipped(res, stats.SkipSparseGroups, spec.Messages.Sparse)
		return nil
	}

	out, err := hypothesis.ChiSquareIndependence(table)
	if err != nil {
		return err
	}
	res.PValue = out.PValue
	res.Statistic = out.Statistic
	res.DF = float64(out.DF)
	res.SampleSize = out.N
	res.Groups = len(table.Rows)
	return nil
}

func (r *SegmentTestRunner) runANOVA(res *stats.TestResult, spec TestSpec, records []policy.Record, alpha float64) error {
	levels := policy.Categories(records, spec.Dimension)
	if len(levels) < 2 || len(records) <= len(levels) {
		markSkipped(res, stats.SkipInsufficientVariation, spec.Messages.Variation)
		return nil
	}

	records = dropSparseGroups(records, spec.Dimension, spec.MinGroupObs)
	if len(policy.Categories(records, spec.Dimension)) < 2 {
		markSkipped(res, stats.SkipSparseGroups, spec.Messages.Sparse)
		return nil
	}

	values, groups := columns(records, spec)
	table, err := hypothesis.OneWayANOVA(string(spec.Dimension), values, groups)
	if err != nil {
		return err
	}
	row, ok := table.Row(hypothesis.FactorTerm(string(spec.Dimension)))
	if !ok {
		return errors.ComputationFailure("anova", fmt.Errorf("no %s row in ANOVA table", hypothesis.FactorTerm(string(spec.Dimension))))
	}
	resid, _ := table.Row(hypothesis.ResidualTerm)

	res.PValue = row.PValue
	res.Statistic = row.F
	res.DF = row.DF
	res.DFResidual = resid.DF
	res.SampleSize = table.N
	res.Groups = len(table.Groups)

	if spec.PostHoc && stats.IsSignificant(row.PValue, alpha) {
		// Same rows and alpha as the omnibus test.
		posthoc, err := hypothesis.TukeyHSD(values, groups, alpha)
		if err != nil {
			res.Error = "post-hoc: " + err.Error()
			r.logger.Error("post-hoc failed", zap.String("test", spec.Name), zap.Error(err))
			return nil
		}
		res.PostHoc = posthoc
	}
	return nil
}

func (r *SegmentTestRunner) runWelch(res *stats.TestResult, spec TestSpec, records []policy.Record) error {
	levels := policy.Categories(records, spec.Dimension)
	if len(levels) != 2 {
		markSkipped(res, stats.SkipInsufficientGroups, spec.Messages.groups())
		return nil
	}
	if len(spec.Categories) == 2 {
		levels = spec.Categories
	}

	counts := policy.CountBy(records, spec.Dimension)
	minObs := spec.MinGroupObs
	if minObs < 2 {
		minObs = 2
	}
	for _, l := range levels {
		if counts[l] < minObs {
			markSkipped(res, stats.SkipSparseGroups, spec.Messages.Sparse)
			return nil
		}
	}

	samples := make([][]float64, 2)
	for _, rec := range records {
		for i, l := range levels {
			if spec.Dimension.Key(rec) == l {
				samples[i] = append(samples[i], spec.Metric.Value(rec))
			}
		}
	}

	out, err := hypothesis.WelchTTest(samples[0], samples[1])
	if err != nil {
		return err
	}
	res.PValue = out.PValue
	res.Statistic = out.T
	res.DF = out.DF
	res.SampleSize = out.N1 + out.N2
	res.Groups = 2
	return nil
}

// population applies the test's row population and category restriction
func population(spec TestSpec, ds *policy.Dataset) []policy.Record {
	records := ds.Records()
	if spec.Population == PopulationClaims {
		records = ds.Claims()
	}
	if len(spec.Categories) == 0 {
		return records
	}
	allowed := make(map[string]struct{}, len(spec.Categories))
	for _, c := range spec.Categories {
		allowed[c] = struct{}{}
	}
	return policy.Filter(records, func(rec policy.Record) bool {
		_, ok := allowed[spec.Dimension.Key(rec)]
		return ok
	})
}

// dropSparseGroups removes records whose category has fewer than minObs rows
func dropSparseGroups(records []policy.Record, dim policy.Dimension, minObs int) []policy.Record {
	if minObs <= 1 {
		return records
	}
	counts := policy.CountBy(records, dim)
	return policy.Filter(records, func(rec policy.Record) bool {
		return counts[dim.Key(rec)] >= minObs
	})
}

func columns(records []policy.Record, spec TestSpec) ([]float64, []string) {
	values := make([]float64, len(records))
	groups := make([]string, len(records))
	for i, rec := range records {
		values[i] = spec.Metric.Value(rec)
		groups[i] = spec.Dimension.Key(rec)
	}
	return values, groups
}
