package ports

import (
	"context"

	"riskhypo/domain/policy"
	"riskhypo/domain/stats"
)

// BatteryPort runs the segment hypothesis battery against a cleaned dataset
type BatteryPort interface {
	Run(ctx context.Context, ds *policy.Dataset, alpha float64) (*stats.Report, error)
}
