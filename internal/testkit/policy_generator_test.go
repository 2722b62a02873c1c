package testkit

import (
	"bytes"
	"encoding/csv"
	"strconv"
	"strings"
	"testing"

	"github.com/jszwec/csvutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"riskhypo/domain/policy"
	"riskhypo/internal/errors"
)

func smallConfig() PolicyGeneratorConfig {
	cfg := DefaultPolicyConfig()
	cfg.Rows = 400
	return cfg
}

func TestPolicyDataGenerator_Deterministic(t *testing.T) {
	a, err := NewPolicyDataGenerator(smallConfig()).Generate()
	require.NoError(t, err)
	b, err := NewPolicyDataGenerator(smallConfig()).Generate()
	require.NoError(t, err)
	assert.Equal(t, a, b)

	other := smallConfig()
	other.Seed = 7
	c, err := NewPolicyDataGenerator(other).Generate()
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}

func TestPolicyDataGenerator_Shape(t *testing.T) {
	cfg := smallConfig()
	cfg.CorruptRate = 0
	records, err := NewPolicyDataGenerator(cfg).Generate()
	require.NoError(t, err)
	require.Len(t, records, cfg.Rows)

	provinces := map[string]bool{}
	for _, p := range cfg.Provinces {
		provinces[p.Name] = true
	}
	for _, r := range records {
		assert.True(t, provinces[r.Province], r.Province)
		premium, err := strconv.ParseFloat(r.TotalPremium, 64)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, premium, 0.0)
		claims, err := strconv.ParseFloat(r.TotalClaims, 64)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, claims, 0.0)
		assert.Len(t, r.PostalCode, 4)
		assert.True(t, strings.HasPrefix(r.TransactionMonth, "201"))
	}
}

func TestPolicyDataGenerator_ClaimRateDrivesClaims(t *testing.T) {
	cfg := PolicyGeneratorConfig{
		Rows: 2000,
		Provinces: []ProvinceProfile{
			{Name: "Safe", Weight: 1, ClaimRate: 0, MeanSeverity: 1000},
			{Name: "Risky", Weight: 1, ClaimRate: 1, MeanSeverity: 1000},
		},
		PostalCodesPerProvince: 2,
		Genders:                GenderMix{Male: 1, Female: 1},
		MeanPremium:            100,
		Seed:                   1,
	}
	records, err := NewPolicyDataGenerator(cfg).Generate()
	require.NoError(t, err)

	for _, r := range records {
		claims, err := strconv.ParseFloat(r.TotalClaims, 64)
		require.NoError(t, err)
		if r.Province == "Safe" {
			assert.Zero(t, claims)
		} else {
			assert.Positive(t, claims)
		}
	}
}

func TestPolicyDataGenerator_InvalidConfig(t *testing.T) {
	cfg := smallConfig()
	cfg.Provinces = nil
	_, err := NewPolicyDataGenerator(cfg).Generate()
	require.Error(t, err)
	assert.Equal(t, errors.CodeInvalidInput, errors.GetCode(err))

	cfg = smallConfig()
	cfg.Provinces[0].ClaimRate = 1.5
	_, err = NewPolicyDataGenerator(cfg).Generate()
	require.Error(t, err)
}

func TestPolicyDataGenerator_Dataset(t *testing.T) {
	ds, err := NewPolicyDataGenerator(smallConfig()).Dataset()
	require.NoError(t, err)
	assert.Empty(t, ds.MissingColumns())
	assert.True(t, ds.HasColumn(policy.ColumnTransactionMonth))
	assert.Equal(t, 400, ds.Len())
}

func TestWriteCSV(t *testing.T) {
	records, err := NewPolicyDataGenerator(smallConfig()).Generate()
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, records, '|'))

	header := strings.SplitN(buf.String(), "\n", 2)[0]
	assert.Equal(t, "TotalPremium|TotalClaims|Province|PostalCode|Gender|TransactionMonth", header)

	dec, err := csvutil.NewDecoder(csvReader(buf.String(), '|'))
	require.NoError(t, err)
	var decoded []policy.RawRecord
	require.NoError(t, dec.Decode(&decoded))
	assert.Equal(t, records, decoded)
}

func csvReader(s string, comma rune) *csv.Reader {
	r := csv.NewReader(strings.NewReader(s))
	r.Comma = comma
	return r
}
