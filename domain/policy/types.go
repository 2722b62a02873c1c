// Package policy defines the typed policy-and-claims records the hypothesis
// battery runs on.
package policy

// Column names as they appear in the source file header
const (
	ColumnTotalPremium     = "TotalPremium"
	ColumnTotalClaims      = "TotalClaims"
	ColumnProvince         = "Province"
	ColumnPostalCode       = "PostalCode"
	ColumnGender           = "Gender"
	ColumnTransactionMonth = "TransactionMonth"
)

// RequiredColumns must all be present in the header of a raw dataset
var RequiredColumns = []string{
	ColumnTotalPremium,
	ColumnTotalClaims,
	ColumnProvince,
	ColumnPostalCode,
	ColumnGender,
}

// Gender values the gender hypotheses compare
const (
	GenderMale   = "Male"
	GenderFemale = "Female"
)

// RawRecord is one source row before coercion. Unknown columns are ignored.
type RawRecord struct {
	TotalPremium     string `csv:"TotalPremium" json:"total_premium"`
	TotalClaims      string `csv:"TotalClaims" json:"total_claims"`
	Province         string `csv:"Province" json:"province"`
	PostalCode       string `csv:"PostalCode" json:"postal_code"`
	Gender           string `csv:"Gender" json:"gender"`
	TransactionMonth string `csv:"TransactionMonth,omitempty" json:"transaction_month,omitempty"`
}

// RawDataset is the loader's output: the header as found plus decoded rows
type RawDataset struct {
	Source  string
	Header  []string
	Records []RawRecord
}

// HasColumn reports whether the header contains name
func (d *RawDataset) HasColumn(name string) bool {
	for _, h := range d.Header {
		if h == name {
			return true
		}
	}
	return false
}

// MissingColumns returns the required columns absent from the header, in
// RequiredColumns order
func (d *RawDataset) MissingColumns() []string {
	var missing []string
	for _, col := range RequiredColumns {
		if !d.HasColumn(col) {
			missing = append(missing, col)
		}
	}
	return missing
}

// Len returns the number of raw rows
func (d *RawDataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.Records)
}

// Record is a cleaned policy observation
type Record struct {
	TotalPremium float64 `json:"total_premium"`
	TotalClaims  float64 `json:"total_claims"`
	Province     string  `json:"province"`
	PostalCode   string  `json:"postal_code"`
	Gender       string  `json:"gender"`
	HasClaim     bool    `json:"has_claim"`
	Margin       float64 `json:"margin"`
}

// NewRecord builds a Record and derives HasClaim and Margin
func NewRecord(premium, claims float64, province, postalCode, gender string) Record {
	return Record{
		TotalPremium: premium,
		TotalClaims:  claims,
		Province:     province,
		PostalCode:   postalCode,
		Gender:       gender,
		HasClaim:     claims > 0,
		Margin:       premium - claims,
	}
}
