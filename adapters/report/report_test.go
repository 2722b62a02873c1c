package report

import (
	"bytes"
	"encoding/json"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"riskhypo/domain/core"
	"riskhypo/domain/policy"
	"riskhypo/domain/stats"
	"riskhypo/internal/errors"
)

func sampleReport() *stats.Report {
	return &stats.Report{
		RunID:       core.RunID("0190b6d2-8a4c-7def-8000-000000000001"),
		Alpha:       0.05,
		Rows:        100,
		ClaimRows:   19,
		GeneratedAt: core.Now(),
		Hypotheses: []stats.HypothesisResult{
			{
				ID:    "H1",
				Title: "Risk Differences across Provinces",
				Tests: []stats.TestResult{
					{
						Name: "Claim Frequency by Province", Kind: stats.TestChiSquare, Status: stats.StatusExecuted,
						Dimension: policy.DimensionProvince, Subject: "claim frequency across provinces",
						Alpha: 0.05, PValue: 0.01234, Statistic: 6.2, DF: 1, Significant: true,
					},
					{
						Name: "Claim Severity by Province", Kind: stats.TestANOVA, Status: stats.StatusExecuted,
						Subject: "claim severity across provinces", Alpha: 0.05, PValue: 0.0001, Statistic: 40, Significant: true,
						PostHoc: &stats.PostHocTable{
							Method: stats.PostHocMethod, Alpha: 0.05, Groups: 2,
							Comparisons: []stats.PairwiseComparison{
								{Group1: "A", Group2: "B", MeanDiff: 900, PAdj: 0.001, Lower: 800, Upper: 1000, Reject: true},
							},
						},
					},
				},
			},
			{
				ID:    "H4",
				Title: "Risk Differences between Women and Men",
				Tests: []stats.TestResult{
					{
						Name: "Claim Frequency by Gender", Kind: stats.TestChiSquare, Status: stats.StatusExecuted,
						Subject: "claim frequency between Women and Men", Alpha: 0.05, PValue: 0.5, Statistic: 0.4,
					},
					{
						Name: "Claim Severity by Gender", Kind: stats.TestWelchT, Status: stats.StatusSkipped,
						SkipCode: stats.SkipSparseGroups, PValue: math.NaN(), Statistic: math.NaN(),
						SkipReason: "Not enough claim data for both 'Male' and 'Female' to perform Independent t-test.",
					},
				},
			},
		},
	}
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat(" JSON ")
	require.NoError(t, err)
	assert.Equal(t, FormatJSON, f)

	_, err = ParseFormat("xml")
	require.Error(t, err)
	assert.Equal(t, errors.CodeInvalidInput, errors.GetCode(err))
}

func TestTextRenderer(t *testing.T) {
	r, err := New(FormatText)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, r.Render(&buf, sampleReport()))
	out := buf.String()

	assert.Contains(t, out, "Run 0190b6d2-8a4c-7def-8000-000000000001 | alpha = 0.05 | rows = 100 | claim rows = 19")
	assert.Contains(t, out, "Generated 20")
	assert.Contains(t, out, "--- Hypothesis 1: Risk Differences across Provinces ---")
	assert.Contains(t, out, "Claim Frequency by Province (Chi-squared test): p-value = 0.0123")
	assert.Contains(t, out, "Reject H₀: There is a significant difference in claim frequency across provinces (p < 0.05).")
	assert.Contains(t, out, "Fail to reject H₀: No significant difference in claim frequency between Women and Men (p >= 0.05).")
	assert.Contains(t, out, "Tukey's HSD Post-hoc Test for Claim Severity by Province:")
	assert.Contains(t, out, "900.0000")
	assert.Contains(t, out, "Not enough claim data for both 'Male' and 'Female'")
	assert.Contains(t, out, "--- Interpretation Guidelines ---")
	assert.Contains(t, out, "If p-value < 0.05: Reject the Null Hypothesis")
	assert.NotContains(t, out, "Claim Severity by Gender (Independent t-test)")
	assert.Less(t, strings.Index(out, "Hypothesis 1"), strings.Index(out, "Hypothesis 4"))
}

func TestTextRenderer_FailedAndTruncated(t *testing.T) {
	rep := sampleReport()
	rep.Hypotheses[0].Tests[0].Status = stats.StatusFailed
	rep.Hypotheses[0].Tests[0].Error = "chi-squared computation failed: boom"
	rep.Hypotheses[0].Tests[1].PostHoc.Comparisons = append(rep.Hypotheses[0].Tests[1].PostHoc.Comparisons,
		stats.PairwiseComparison{Group1: "A", Group2: "C"})

	var buf bytes.Buffer
	require.NoError(t, NewTextRenderer(TextConfig{MaxComparisons: 1}).Render(&buf, rep))
	out := buf.String()

	assert.Contains(t, out, "Claim Frequency by Province (Chi-squared test) could not be computed: chi-squared computation failed: boom")
	assert.Contains(t, strings.ToLower(out), "showing 1 of 2 comparisons")
	assert.NotContains(t, out, "Run 0190b6d2")
}

func TestJSONRenderer(t *testing.T) {
	r, err := New(FormatJSON)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, r.Render(&buf, sampleReport()))

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "0190b6d2-8a4c-7def-8000-000000000001", decoded["run_id"])
	assert.Equal(t, 0.05, decoded["alpha"])

	hyps := decoded["hypotheses"].([]interface{})
	require.Len(t, hyps, 2)
	h4 := hyps[1].(map[string]interface{})
	skipped := h4["tests"].([]interface{})[1].(map[string]interface{})
	assert.Nil(t, skipped["p_value"])
	assert.Equal(t, "SPARSE_GROUPS", skipped["skip_code"])
}

func TestYAMLRenderer(t *testing.T) {
	r, err := New(FormatYAML)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, r.Render(&buf, sampleReport()))

	var decoded struct {
		RunID      string `yaml:"run_id"`
		Hypotheses []struct {
			ID    string `yaml:"id"`
			Tests []struct {
				Name    string `yaml:"name"`
				PostHoc *struct {
					Method string `yaml:"method"`
				} `yaml:"post_hoc"`
			} `yaml:"tests"`
		} `yaml:"hypotheses"`
	}
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "0190b6d2-8a4c-7def-8000-000000000001", decoded.RunID)
	require.Len(t, decoded.Hypotheses, 2)
	require.NotNil(t, decoded.Hypotheses[0].Tests[1].PostHoc)
	assert.Equal(t, stats.PostHocMethod, decoded.Hypotheses[0].Tests[1].PostHoc.Method)
}
