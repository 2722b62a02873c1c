package ports

import (
	"context"

	"riskhypo/domain/policy"
)

// LoaderPort reads a raw policy dataset from some tabular source
type LoaderPort interface {
	Load(ctx context.Context) (*policy.RawDataset, error)
}
