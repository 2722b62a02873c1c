package report

import (
	"encoding/json"
	"io"

	"gopkg.in/yaml.v3"

	"riskhypo/domain/stats"
	"riskhypo/internal/errors"
)

// JSONRenderer writes the structured report as JSON
type JSONRenderer struct {
	Indent string
}

func (r *JSONRenderer) Render(w io.Writer, report *stats.Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", r.Indent)
	if err := enc.Encode(report); err != nil {
		return errors.Wrap(err, "encode json report")
	}
	return nil
}

// YAMLRenderer writes the structured report as YAML
type YAMLRenderer struct {
	Indent int
}

func (r *YAMLRenderer) Render(w io.Writer, report *stats.Report) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(r.Indent)
	if err := enc.Encode(report); err != nil {
		return errors.Wrap(err, "encode yaml report")
	}
	return errors.Wrap(enc.Close(), "flush yaml report")
}
