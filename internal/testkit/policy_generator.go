// Package testkit generates seeded synthetic policy data for tests and demos.
package testkit

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"math/rand"
	"strconv"
	"time"

	"github.com/jszwec/csvutil"

	"riskhypo/domain/policy"
	"riskhypo/internal/errors"
)

// ProvinceProfile sets the risk of one synthetic province
type ProvinceProfile struct {
	Name         string  `json:"name"`
	Weight       float64 `json:"weight"`        // relative share of rows
	ClaimRate    float64 `json:"claim_rate"`    // probability a policy has a claim
	MeanSeverity float64 `json:"mean_severity"` // mean claim amount
}

// GenderMix gives relative weights of the gender values written
type GenderMix struct {
	Male         float64 `json:"male"`
	Female       float64 `json:"female"`
	NotSpecified float64 `json:"not_specified"`
	Blank        float64 `json:"blank"`
}

// PolicyGeneratorConfig configures the policy data generator
type PolicyGeneratorConfig struct {
	Rows                   int               `json:"rows"`
	Provinces              []ProvinceProfile `json:"provinces"`
	PostalCodesPerProvince int               `json:"postal_codes_per_province"`
	Genders                GenderMix         `json:"genders"`
	MeanPremium            float64           `json:"mean_premium"`
	CorruptRate            float64           `json:"corrupt_rate"` // share of rows with an unreadable premium
	StartDate              time.Time         `json:"start_date"`
	Months                 int               `json:"months"`
	Seed                   int64             `json:"seed"`
}

// DefaultPolicyConfig returns defaults loosely shaped like a motor book
func DefaultPolicyConfig() PolicyGeneratorConfig {
	return PolicyGeneratorConfig{
		Rows: 5000,
		Provinces: []ProvinceProfile{
			{Name: "Gauteng", Weight: 0.40, ClaimRate: 0.06, MeanSeverity: 22000},
			{Name: "Western Cape", Weight: 0.25, ClaimRate: 0.04, MeanSeverity: 18000},
			{Name: "KwaZulu-Natal", Weight: 0.20, ClaimRate: 0.05, MeanSeverity: 20000},
			{Name: "Limpopo", Weight: 0.15, ClaimRate: 0.03, MeanSeverity: 15000},
		},
		PostalCodesPerProvince: 8,
		Genders:                GenderMix{Male: 0.45, Female: 0.35, NotSpecified: 0.15, Blank: 0.05},
		MeanPremium:            250,
		CorruptRate:            0.01,
		StartDate:              time.Date(2013, 10, 1, 0, 0, 0, 0, time.UTC),
		Months:                 18,
		Seed:                   42,
	}
}

// PolicyDataGenerator generates raw policy rows
type PolicyDataGenerator struct {
	config PolicyGeneratorConfig
	rng    *rand.Rand
}

// NewPolicyDataGenerator creates a new generator
func NewPolicyDataGenerator(config PolicyGeneratorConfig) *PolicyDataGenerator {
	return &PolicyDataGenerator{
		config: config,
		rng:    rand.New(rand.NewSource(config.Seed)),
	}
}

func (c PolicyGeneratorConfig) validate() error {
	if c.Rows < 0 {
		return errors.InvalidInput(fmt.Sprintf("rows must not be negative, got %d", c.Rows))
	}
	if len(c.Provinces) == 0 {
		return errors.InvalidInput("at least one province is required")
	}
	if c.PostalCodesPerProvince < 1 {
		return errors.InvalidInput("postal_codes_per_province must be at least 1")
	}
	for _, p := range c.Provinces {
		if p.ClaimRate < 0 || p.ClaimRate > 1 {
			return errors.InvalidInput(fmt.Sprintf("claim rate for %s outside [0, 1]", p.Name))
		}
	}
	return nil
}

// Generate returns config.Rows raw records
func (g *PolicyDataGenerator) Generate() ([]policy.RawRecord, error) {
	if err := g.config.validate(); err != nil {
		return nil, err
	}

	records := make([]policy.RawRecord, 0, g.config.Rows)
	for i := 0; i < g.config.Rows; i++ {
		records = append(records, g.policyRow())
	}
	return records, nil
}

// Dataset wraps Generate's rows with the header the loader would produce
func (g *PolicyDataGenerator) Dataset() (*policy.RawDataset, error) {
	records, err := g.Generate()
	if err != nil {
		return nil, err
	}
	header := append(append([]string(nil), policy.RequiredColumns...), policy.ColumnTransactionMonth)
	return &policy.RawDataset{Source: fmt.Sprintf("synthetic(seed=%d)", g.config.Seed), Header: header, Records: records}, nil
}

func (g *PolicyDataGenerator) policyRow() policy.RawRecord {
	provIdx := g.pickProvince()
	prov := g.config.Provinces[provIdx]

	premium := g.config.MeanPremium * g.rng.ExpFloat64()
	claims := 0.0
	if g.rng.Float64() < prov.ClaimRate {
		// Lognormal with mean MeanSeverity.
		const sigma = 0.6
		claims = prov.MeanSeverity * math.Exp(sigma*g.rng.NormFloat64()-sigma*sigma/2)
	}

	postal := 1000*(provIdx+1) + g.rng.Intn(g.config.PostalCodesPerProvince)
	month := g.config.StartDate
	if g.config.Months > 1 {
		month = month.AddDate(0, g.rng.Intn(g.config.Months), 0)
	}

	rec := policy.RawRecord{
		TotalPremium:     strconv.FormatFloat(round2(premium), 'f', -1, 64),
		TotalClaims:      strconv.FormatFloat(round2(claims), 'f', -1, 64),
		Province:         prov.Name,
		PostalCode:       strconv.Itoa(postal),
		Gender:           g.pickGender(),
		TransactionMonth: month.Format("2006-01-02 15:04:05"),
	}
	if g.config.CorruptRate > 0 && g.rng.Float64() < g.config.CorruptRate {
		rec.TotalPremium = []string{"", "NA", "#VALUE!"}[g.rng.Intn(3)]
	}
	return rec
}

func (g *PolicyDataGenerator) pickProvince() int {
	total := 0.0
	for _, p := range g.config.Provinces {
		total += p.Weight
	}
	if total <= 0 {
		return g.rng.Intn(len(g.config.Provinces))
	}
	x := g.rng.Float64() * total
	for i, p := range g.config.Provinces {
		if x < p.Weight {
			return i
		}
		x -= p.Weight
	}
	return len(g.config.Provinces) - 1
}

func (g *PolicyDataGenerator) pickGender() string {
	mix := g.config.Genders
	total := mix.Male + mix.Female + mix.NotSpecified + mix.Blank
	if total <= 0 {
		return policy.GenderMale
	}
	x := g.rng.Float64() * total
	switch {
	case x < mix.Male:
		return policy.GenderMale
	case x < mix.Male+mix.Female:
		return policy.GenderFemale
	case x < mix.Male+mix.Female+mix.NotSpecified:
		return "Not specified"
	}
	return " "
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}

// WriteCSV writes records with a header row using comma as delimiter
func WriteCSV(w io.Writer, records []policy.RawRecord, comma rune) error {
	cw := csv.NewWriter(w)
	cw.Comma = comma
	enc := csvutil.NewEncoder(cw)
	if err := enc.Encode(records); err != nil {
		return errors.Wrap(err, "encode policy rows")
	}
	cw.Flush()
	return errors.Wrap(cw.Error(), "flush policy rows")
}
