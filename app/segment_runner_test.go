package app

import (
	"context"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"riskhypo/domain/policy"
	"riskhypo/domain/stats"
	"riskhypo/internal/errors"
)

func gender(i int) string {
	if i%2 == 0 {
		return policy.GenderMale
	}
	return policy.GenderFemale
}

// frequencyDataset has 100 rows: province A with 5% claims and B with 40%
func frequencyDataset() *policy.Dataset {
	var records []policy.Record
	for i := 0; i < 60; i++ {
		claims := 0.0
		if i < 3 {
			claims = 200 + float64(i)*10
		}
		records = append(records, policy.NewRecord(1000, claims, "A", fmt.Sprintf("A%d", i%3), gender(i)))
	}
	for i := 0; i < 40; i++ {
		claims := 0.0
		if i < 16 {
			claims = 210 + float64(i)*10
		}
		records = append(records, policy.NewRecord(1000, claims, "B", fmt.Sprintf("B%d", i%3), gender(i)))
	}
	return policy.NewDataset(records)
}

// severityDataset has claims in every row; C's claims are far larger
func severityDataset() *policy.Dataset {
	var records []policy.Record
	for _, prov := range []string{"A", "B", "C"} {
		base := 100.0
		if prov == "C" {
			base = 1000
		}
		for i := 0; i < 10; i++ {
			records = append(records, policy.NewRecord(1200, base+float64(i), prov, prov+"1", gender(i)))
		}
	}
	return policy.NewDataset(records)
}

func newRunner() *SegmentTestRunner {
	return NewSegmentTestRunner(nil, zap.NewNop())
}

func mustFind(t *testing.T, report *stats.Report, name string) stats.TestResult {
	t.Helper()
	res, ok := report.Find(name)
	require.True(t, ok, "test %q missing from report", name)
	return res
}

func TestDefaultBattery_Shape(t *testing.T) {
	battery := DefaultBattery()
	require.Len(t, battery, 4)

	var ids []string
	tests := 0
	for _, h := range battery {
		ids = append(ids, h.ID)
		tests += len(h.Tests)
		for _, spec := range h.Tests {
			assert.NotEmpty(t, spec.Messages.Empty, spec.Name)
			assert.NotEmpty(t, spec.Messages.Variation, spec.Name)
			assert.NotEmpty(t, spec.Messages.Sparse, spec.Name)
			assert.Equal(t, spec.Kind == stats.TestANOVA, spec.PostHoc, spec.Name)
		}
	}
	assert.Equal(t, []string{"H1", "H2", "H3", "H4"}, ids)
	assert.Equal(t, 7, tests)
}

func TestRun_ProvinceFrequencyRejects(t *testing.T) {
	report, err := newRunner().Run(context.Background(), frequencyDataset(), 0.05)
	require.NoError(t, err)

	assert.Equal(t, 100, report.Rows)
	assert.Equal(t, 19, report.ClaimRows)
	assert.NotEmpty(t, report.RunID.String())

	freq := mustFind(t, report, "Claim Frequency by Province")
	require.Equal(t, stats.StatusExecuted, freq.Status)
	assert.True(t, freq.Significant)
	assert.Less(t, freq.PValue, 0.05)
	assert.Equal(t, 1.0, freq.DF)
	assert.Equal(t, 100, freq.SampleSize)
	assert.Equal(t, 2, freq.Groups)
}

func TestRun_SingleProvinceSkipsANOVA(t *testing.T) {
	var records []policy.Record
	for i := 0; i < 20; i++ {
		records = append(records, policy.NewRecord(500, float64(i%4)*100, "Gauteng", "2000", gender(i)))
	}

	report, err := newRunner().Run(context.Background(), policy.NewDataset(records), 0.05)
	require.NoError(t, err)

	anova := mustFind(t, report, "Claim Severity by Province")
	assert.Equal(t, stats.StatusSkipped, anova.Status)
	assert.Equal(t, stats.SkipInsufficientVariation, anova.SkipCode)
	assert.Contains(t, anova.SkipReason, "Not enough variation in 'Province'")
	assert.False(t, anova.Significant)
	assert.Nil(t, anova.PostHoc)

	freq := mustFind(t, report, "Claim Frequency by Province")
	assert.Equal(t, stats.SkipInsufficientVariation, freq.SkipCode)
}

func TestRun_IdenticalClaimsAcrossGenders(t *testing.T) {
	var records []policy.Record
	for i := 0; i < 12; i++ {
		records = append(records, policy.NewRecord(900, 500, "A", "1", gender(i)))
	}

	report, err := newRunner().Run(context.Background(), policy.NewDataset(records), 0.05)
	require.NoError(t, err)

	welch := mustFind(t, report, "Claim Severity by Gender")
	require.Equal(t, stats.StatusExecuted, welch.Status)
	assert.Equal(t, 1.0, welch.PValue)
	assert.False(t, welch.Significant)
	assert.Equal(t, 12, welch.SampleSize)
}

func TestRun_PostHocOnlyWhenSignificant(t *testing.T) {
	report, err := newRunner().Run(context.Background(), severityDataset(), 0.05)
	require.NoError(t, err)

	anova := mustFind(t, report, "Claim Severity by Province")
	require.Equal(t, stats.StatusExecuted, anova.Status)
	require.True(t, anova.Significant)
	require.NotNil(t, anova.PostHoc)
	assert.Equal(t, stats.PostHocMethod, anova.PostHoc.Method)
	assert.Equal(t, 0.05, anova.PostHoc.Alpha)
	assert.Equal(t, 3, anova.PostHoc.Groups)
	require.Len(t, anova.PostHoc.Comparisons, 3)
	assert.Equal(t, 2, anova.PostHoc.RejectedPairs())

	ab := anova.PostHoc.Comparisons[0]
	assert.Equal(t, "A", ab.Group1)
	assert.Equal(t, "B", ab.Group2)
	assert.False(t, ab.Reject)
	assert.InDelta(t, 900, anova.PostHoc.Comparisons[1].MeanDiff, 1e-9)

	// every claim row is a claim, so the frequency table has one column
	freq := mustFind(t, report, "Claim Frequency by Province")
	assert.Equal(t, stats.SkipInsufficientVariation, freq.SkipCode)

	for _, h := range report.Hypotheses {
		for _, res := range h.Tests {
			hasPostHoc := res.PostHoc != nil
			assert.Equal(t, res.Kind == stats.TestANOVA && res.Executed() && res.Significant, hasPostHoc, res.Name)
		}
	}
}

func TestRun_NoPostHocWhenNotSignificant(t *testing.T) {
	var records []policy.Record
	for _, prov := range []string{"A", "B"} {
		for i := 0; i < 10; i++ {
			records = append(records, policy.NewRecord(1000, 100+float64(i), prov, prov, gender(i)))
		}
	}

	report, err := newRunner().Run(context.Background(), policy.NewDataset(records), 0.05)
	require.NoError(t, err)

	anova := mustFind(t, report, "Claim Severity by Province")
	require.Equal(t, stats.StatusExecuted, anova.Status)
	assert.InDelta(t, 1.0, anova.PValue, 1e-12)
	assert.False(t, anova.Significant)
	assert.Nil(t, anova.PostHoc)
}

func TestRun_PostalCodeSeverityFiltersSparseGroups(t *testing.T) {
	records := []policy.Record{
		policy.NewRecord(100, 10, "A", "1", policy.GenderMale),
		policy.NewRecord(100, 20, "A", "2", policy.GenderMale),
		policy.NewRecord(100, 30, "A", "3", policy.GenderFemale),
		policy.NewRecord(100, 40, "A", "3", policy.GenderFemale),
		policy.NewRecord(100, 50, "A", "3", policy.GenderMale),
	}

	report, err := newRunner().Run(context.Background(), policy.NewDataset(records), 0.05)
	require.NoError(t, err)

	res := mustFind(t, report, "Claim Severity by Zip Code")
	assert.Equal(t, stats.StatusSkipped, res.Status)
	assert.Equal(t, stats.SkipSparseGroups, res.SkipCode)
	assert.Contains(t, res.SkipReason, "after filtering sparse groups")
}

func TestRun_MarginByPostalCode(t *testing.T) {
	var records []policy.Record
	for i := 0; i < 6; i++ {
		records = append(records,
			policy.NewRecord(1000, float64(i), "A", "100", gender(i)),
			policy.NewRecord(200, float64(i), "A", "200", gender(i)),
		)
	}
	// a single-row code is dropped before the fit
	records = append(records, policy.NewRecord(5000, 0, "A", "300", policy.GenderMale))

	report, err := newRunner().Run(context.Background(), policy.NewDataset(records), 0.05)
	require.NoError(t, err)

	margin := mustFind(t, report, "Margin by Zip Code")
	require.Equal(t, stats.StatusExecuted, margin.Status)
	assert.Equal(t, 12, margin.SampleSize)
	assert.Equal(t, 2, margin.Groups)
	assert.Equal(t, 1.0, margin.DF)
	assert.Equal(t, 10.0, margin.DFResidual)
	assert.True(t, margin.Significant)
	require.NotNil(t, margin.PostHoc)
	assert.InDelta(t, -800, margin.PostHoc.Comparisons[0].MeanDiff, 1e-9)
}

func TestRun_GenderRestrictedToMaleAndFemale(t *testing.T) {
	var records []policy.Record
	for i := 0; i < 10; i++ {
		records = append(records, policy.NewRecord(100, float64(10+i), "A", "1", policy.GenderMale))
		records = append(records, policy.NewRecord(100, float64(i%2), "A", "1", "Not specified"))
	}

	report, err := newRunner().Run(context.Background(), policy.NewDataset(records), 0.05)
	require.NoError(t, err)

	welch := mustFind(t, report, "Claim Severity by Gender")
	assert.Equal(t, stats.SkipInsufficientGroups, welch.SkipCode)
	assert.Equal(t, "Not enough valid 'Gender' data (need both 'Male' and 'Female' with claims) after cleaning for t-test.", welch.SkipReason)

	freq := mustFind(t, report, "Claim Frequency by Gender")
	assert.Equal(t, stats.SkipInsufficientGroups, freq.SkipCode)
	assert.Equal(t, "Not enough valid 'Gender' data (need at least 'Male' and 'Female') after cleaning for Chi-squared test.", freq.SkipReason)
}

func TestRun_GenderFrequencyWithoutClaimVariation(t *testing.T) {
	var records []policy.Record
	for i := 0; i < 10; i++ {
		records = append(records, policy.NewRecord(100, 0, "A", "1", gender(i)))
	}

	report, err := newRunner().Run(context.Background(), policy.NewDataset(records), 0.05)
	require.NoError(t, err)

	freq := mustFind(t, report, "Claim Frequency by Gender")
	assert.Equal(t, stats.SkipInsufficientVariation, freq.SkipCode)
	assert.Equal(t, "Not enough variation in 'Gender' or 'HasClaim' for valid Chi-squared test.", freq.SkipReason)
}

func TestRun_ConstantClaimsNeverReject(t *testing.T) {
	for _, claim := range []float64{0.7, 0.1, 3817.33} {
		var records []policy.Record
		provinces := []struct {
			name string
			rows int
		}{{"Gauteng", 3}, {"Limpopo", 10}, {"Western Cape", 7}}
		n := 0
		for _, p := range provinces {
			for i := 0; i < p.rows; i++ {
				g := policy.GenderFemale
				if n < 3 {
					g = policy.GenderMale
				}
				records = append(records, policy.NewRecord(900, claim, p.name, fmt.Sprintf("%s-%d", p.name, i%2), g))
				n++
			}
		}

		report, err := newRunner().Run(context.Background(), policy.NewDataset(records), 0.05)
		require.NoError(t, err)

		for _, name := range []string{"Claim Severity by Province", "Claim Severity by Zip Code", "Claim Severity by Gender"} {
			res := mustFind(t, report, name)
			require.Equal(t, stats.StatusExecuted, res.Status, "%s claim=%v", name, claim)
			assert.Equal(t, 1.0, res.PValue, "%s claim=%v", name, claim)
			assert.False(t, res.Significant, "%s claim=%v", name, claim)
			assert.Nil(t, res.PostHoc, "%s claim=%v", name, claim)
		}
	}
}

func TestRun_WelchNeedsTwoObservationsPerGender(t *testing.T) {
	records := []policy.Record{
		policy.NewRecord(100, 10, "A", "1", policy.GenderMale),
		policy.NewRecord(100, 12, "A", "1", policy.GenderMale),
		policy.NewRecord(100, 14, "A", "1", policy.GenderMale),
		policy.NewRecord(100, 11, "A", "1", policy.GenderFemale),
	}

	report, err := newRunner().Run(context.Background(), policy.NewDataset(records), 0.05)
	require.NoError(t, err)

	welch := mustFind(t, report, "Claim Severity by Gender")
	assert.Equal(t, stats.SkipSparseGroups, welch.SkipCode)
	assert.Equal(t, "Not enough claim data for both 'Male' and 'Female' to perform Independent t-test.", welch.SkipReason)
}

func TestRun_EmptyDataset(t *testing.T) {
	report, err := newRunner().Run(context.Background(), policy.NewDataset(nil), 0.05)
	require.NoError(t, err)

	s := report.Summarize()
	assert.Equal(t, 7, s.Skipped)
	assert.Zero(t, s.Executed)
	for _, h := range report.Hypotheses {
		for _, res := range h.Tests {
			assert.Equal(t, stats.SkipEmptyPopulation, res.SkipCode, res.Name)
			assert.True(t, math.IsNaN(res.PValue))
		}
	}
}

func TestRun_InvalidAlpha(t *testing.T) {
	for _, alpha := range []float64{0, 1, -0.1, 1.5, math.NaN()} {
		_, err := newRunner().Run(context.Background(), frequencyDataset(), alpha)
		require.Error(t, err, "alpha %v", alpha)
		assert.Equal(t, errors.CodeInvalidInput, errors.GetCode(err))
	}
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newRunner().Run(ctx, frequencyDataset(), 0.05)
	require.Error(t, err)
}

func TestRun_FailureIsIsolated(t *testing.T) {
	battery := []HypothesisSpec{{
		ID: "HX",
		Tests: []TestSpec{
			{Name: "broken", Kind: stats.TestKind("kruskal"), Dimension: policy.DimensionProvince, Population: PopulationAll},
			DefaultBattery()[0].Tests[0],
		},
	}}

	report, err := NewSegmentTestRunner(battery, zap.NewNop()).Run(context.Background(), frequencyDataset(), 0.05)
	require.NoError(t, err)

	broken := mustFind(t, report, "broken")
	assert.Equal(t, stats.StatusFailed, broken.Status)
	assert.Contains(t, broken.Error, "unknown test kind")

	freq := mustFind(t, report, "Claim Frequency by Province")
	assert.Equal(t, stats.StatusExecuted, freq.Status)
}

func sameOutcome(t *testing.T, a, b stats.TestResult) {
	t.Helper()
	assert.Equal(t, a.Status, b.Status, a.Name)
	assert.Equal(t, a.Significant, b.Significant, a.Name)
	assert.Equal(t, a.SkipCode, b.SkipCode, a.Name)
	if math.IsNaN(a.PValue) {
		assert.True(t, math.IsNaN(b.PValue), a.Name)
	} else {
		assert.Equal(t, a.PValue, b.PValue, a.Name)
	}
	assert.Equal(t, a.PostHoc, b.PostHoc, a.Name)
}

func TestRun_Idempotent(t *testing.T) {
	ds := frequencyDataset()
	runner := newRunner()

	first, err := runner.Run(context.Background(), ds, 0.05)
	require.NoError(t, err)
	second, err := runner.Run(context.Background(), ds, 0.05)
	require.NoError(t, err)

	assert.NotEqual(t, first.RunID, second.RunID)
	require.Equal(t, len(first.Hypotheses), len(second.Hypotheses))
	for i := range first.Hypotheses {
		require.Equal(t, len(first.Hypotheses[i].Tests), len(second.Hypotheses[i].Tests))
		for j := range first.Hypotheses[i].Tests {
			sameOutcome(t, first.Hypotheses[i].Tests[j], second.Hypotheses[i].Tests[j])
		}
	}
}

func TestRun_SmallerAlphaNeverAddsRejections(t *testing.T) {
	runner := newRunner()
	for _, ds := range []*policy.Dataset{frequencyDataset(), severityDataset()} {
		rejected := map[string]bool{}
		for i, alpha := range []float64{0.2, 0.1, 0.05, 0.01, 0.001} {
			report, err := runner.Run(context.Background(), ds, alpha)
			require.NoError(t, err)
			for _, h := range report.Hypotheses {
				for _, res := range h.Tests {
					if i > 0 && res.Significant {
						assert.True(t, rejected[res.Name], "%s rejected at alpha %v only", res.Name, alpha)
					}
					rejected[res.Name] = res.Significant
				}
			}
		}
	}
}
