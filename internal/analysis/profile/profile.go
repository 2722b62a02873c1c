// Package profile summarises risk metrics per segment of a dimension.
package profile

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/montanaflynn/stats"

	"riskhypo/domain/policy"
	"riskhypo/internal/errors"
)

// SegmentProfile describes one category of a dimension
type SegmentProfile struct {
	Category       string  `json:"category" yaml:"category"`
	Rows           int     `json:"rows" yaml:"rows"`
	Claims         int     `json:"claims" yaml:"claims"`
	ClaimFrequency float64 `json:"claim_frequency" yaml:"claim_frequency"`
	MeanSeverity   float64 `json:"mean_severity" yaml:"mean_severity"`     // 0 without claims
	MedianSeverity float64 `json:"median_severity" yaml:"median_severity"` // 0 without claims
	TotalPremium   float64 `json:"total_premium" yaml:"total_premium"`
	TotalClaims    float64 `json:"total_claims" yaml:"total_claims"`
	MeanMargin     float64 `json:"mean_margin" yaml:"mean_margin"`
	LossRatio      float64 `json:"loss_ratio" yaml:"loss_ratio"` // total claims / total premium, 0 without premium
}

// Build profiles every category of dim in sorted order
func Build(ds *policy.Dataset, dim policy.Dimension) ([]SegmentProfile, error) {
	if ds.IsEmpty() {
		return nil, errors.InsufficientData("no records to profile")
	}

	byCategory := make(map[string][]policy.Record)
	for _, r := range ds.Records() {
		key := dim.Key(r)
		byCategory[key] = append(byCategory[key], r)
	}

	categories := policy.Categories(ds.Records(), dim)
	out := make([]SegmentProfile, 0, len(categories))
	for _, c := range categories {
		p, err := profileSegment(c, byCategory[c])
		if err != nil {
			return nil, errors.Wrapf(err, "profile %s %q", dim, c)
		}
		out = append(out, p)
	}
	return out, nil
}

func profileSegment(category string, records []policy.Record) (SegmentProfile, error) {
	premiums := make(stats.Float64Data, 0, len(records))
	claims := make(stats.Float64Data, 0, len(records))
	margins := make(stats.Float64Data, 0, len(records))
	var severities stats.Float64Data
	for _, r := range records {
		premiums = append(premiums, r.TotalPremium)
		claims = append(claims, r.TotalClaims)
		margins = append(margins, r.Margin)
		if r.HasClaim {
			severities = append(severities, r.TotalClaims)
		}
	}

	p := SegmentProfile{
		Category: category,
		Rows:     len(records),
		Claims:   len(severities),
	}
	p.ClaimFrequency = float64(p.Claims) / float64(p.Rows)

	var err error
	if p.TotalPremium, err = premiums.Sum(); err != nil {
		return p, err
	}
	if p.TotalClaims, err = claims.Sum(); err != nil {
		return p, err
	}
	if p.MeanMargin, err = margins.Mean(); err != nil {
		return p, err
	}
	if p.TotalPremium != 0 {
		p.LossRatio = p.TotalClaims / p.TotalPremium
	}

	if len(severities) > 0 {
		if p.MeanSeverity, err = severities.Mean(); err != nil {
			return p, err
		}
		if p.MedianSeverity, err = severities.Median(); err != nil {
			return p, err
		}
	}
	return p, nil
}

// Table renders profiles with go-pretty
func Table(dim policy.Dimension, profiles []SegmentProfile) string {
	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleLight)
	tbl.SetTitle(fmt.Sprintf("Segment profile by %s", dim))
	tbl.AppendHeader(table.Row{string(dim), "rows", "claims", "frequency", "mean severity", "median severity", "total premium", "total claims", "mean margin", "loss ratio"})
	configs := make([]table.ColumnConfig, 0, 9)
	for n := 2; n <= 10; n++ {
		configs = append(configs, table.ColumnConfig{Number: n, Align: text.AlignRight})
	}
	tbl.SetColumnConfigs(configs)

	for _, p := range profiles {
		tbl.AppendRow(table.Row{
			p.Category,
			p.Rows,
			p.Claims,
			fmt.Sprintf("%.4f", p.ClaimFrequency),
			severity(p, p.MeanSeverity),
			severity(p, p.MedianSeverity),
			money(p.TotalPremium),
			money(p.TotalClaims),
			money(p.MeanMargin),
			fmt.Sprintf("%.4f", p.LossRatio),
		})
	}
	tbl.AppendFooter(table.Row{fmt.Sprintf("%d segments", len(profiles))})
	return tbl.Render()
}

func money(v float64) string {
	return fmt.Sprintf("%.2f", v)
}

func severity(p SegmentProfile, v float64) string {
	if p.Claims == 0 {
		return "-"
	}
	return money(v)
}
