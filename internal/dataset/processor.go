// Package dataset turns loader output into the cleaned, typed dataset every
// hypothesis test runs on.
package dataset

import (
	"math"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"riskhypo/domain/policy"
	"riskhypo/internal/errors"
)

// missingTokens are cell values read as missing in every column, matching
// the NA markers the upstream exports use.
var missingTokens = map[string]struct{}{
	"":     {},
	"NA":   {},
	"N/A":  {},
	"n/a":  {},
	"NaN":  {},
	"nan":  {},
	"-NaN": {},
	"-nan": {},
	"NULL": {},
	"null": {},
	"None": {},
	"<NA>": {},
	"#N/A": {},
	"#NA":  {},
}

// PreprocessStats records how many rows each cleaning step removed
type PreprocessStats struct {
	InputRows          int `json:"input_rows"`
	DroppedMissing     int `json:"dropped_missing"`
	DroppedBlankGender int `json:"dropped_blank_gender"`
	OutputRows         int `json:"output_rows"`
	ClaimRows          int `json:"claim_rows"`
}

// Processor cleans raw policy data
type Processor struct {
	logger *zap.Logger
}

// NewProcessor creates a processor logging through logger; nil uses the global logger
func NewProcessor(logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.L()
	}
	return &Processor{logger: logger.Named("preprocess")}
}

// Preprocess validates the schema and returns a new cleaned dataset. The raw
// input is left untouched. A cleaned dataset may be empty; that is not an error.
func (p *Processor) Preprocess(raw *policy.RawDataset) (*policy.Dataset, PreprocessStats, error) {
	var st PreprocessStats
	if raw == nil {
		return nil, st, errors.InvalidInput("no dataset to preprocess")
	}
	if missing := raw.MissingColumns(); len(missing) > 0 {
		return nil, st, errors.SchemaError(missing)
	}

	st.InputRows = len(raw.Records)
	records := make([]policy.Record, 0, len(raw.Records))
	for _, rr := range raw.Records {
		premium, okPremium := ParseNumeric(rr.TotalPremium)
		claims, okClaims := ParseNumeric(rr.TotalClaims)
		if !okPremium || !okClaims || isMissing(rr.Province) || isMissing(rr.PostalCode) || isMissing(rr.Gender) {
			st.DroppedMissing++
			continue
		}
		// Blank strings survive the generic pass, so gender gets a second one.
		if strings.TrimSpace(rr.Gender) == "" {
			st.DroppedBlankGender++
			continue
		}

		records = append(records, policy.NewRecord(premium, claims, rr.Province, rr.PostalCode, rr.Gender))
	}

	ds := policy.NewDataset(records)
	st.OutputRows = ds.Len()
	st.ClaimRows = ds.ClaimCount()

	p.logger.Info("dataset cleaned",
		zap.String("source", raw.Source),
		zap.Int("input_rows", st.InputRows),
		zap.Int("dropped_missing", st.DroppedMissing),
		zap.Int("dropped_blank_gender", st.DroppedBlankGender),
		zap.Int("output_rows", st.OutputRows),
		zap.Int("claim_rows", st.ClaimRows),
	)
	if ds.IsEmpty() {
		p.logger.Warn("no rows left after cleaning; every test will report insufficient data")
	}

	return ds, st, nil
}

// Preprocess cleans raw with the global logger
func Preprocess(raw *policy.RawDataset) (*policy.Dataset, error) {
	ds, _, err := NewProcessor(nil).Preprocess(raw)
	return ds, err
}

func isMissing(s string) bool {
	_, ok := missingTokens[s]
	return ok
}

// ParseNumeric coerces a cell to float64. Missing tokens, NaN and hex
// literals report ok=false.
func ParseNumeric(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if isMissing(s) || isHexLiteral(s) {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) {
		return 0, false
	}
	return v, true
}

// isHexLiteral reports a 0x prefix, which strconv accepts but spreadsheets and
// CSV exports never mean as a number
func isHexLiteral(s string) bool {
	s = strings.TrimLeft(s, "+-")
	return len(s) > 1 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X')
}
