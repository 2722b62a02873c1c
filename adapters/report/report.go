// Package report renders battery results as text, JSON or YAML.
package report

import (
	"fmt"
	"strings"

	"riskhypo/internal/errors"
	"riskhypo/ports"
)

// Format selects a renderer
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// Formats lists every supported output format
var Formats = []Format{FormatText, FormatJSON, FormatYAML}

// ParseFormat accepts a format name, case-insensitively
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Formats {
		if f == known {
			return f, nil
		}
	}
	return "", errors.InvalidInput(fmt.Sprintf("unknown report format %q (want text, json or yaml)", s))
}

// New returns the renderer for format
func New(format Format) (ports.ReporterPort, error) {
	switch format {
	case FormatText, "":
		return NewTextRenderer(DefaultTextConfig()), nil
	case FormatJSON:
		return &JSONRenderer{Indent: "  "}, nil
	case FormatYAML:
		return &YAMLRenderer{Indent: 2}, nil
	}
	return nil, errors.InvalidInput(fmt.Sprintf("unknown report format %q", format))
}
