package reader

import (
	"path/filepath"
	"strings"
)

// File types the reader understands
const (
	FileTypeDelimited = "delimited"
	FileTypeXLSX      = "xlsx"
)

// ReaderConfig holds configuration for a tabular data source
type ReaderConfig struct {
	FilePath  string `json:"file_path" mapstructure:"path"`
	Delimiter string `json:"delimiter" mapstructure:"delimiter"` // empty: inferred from the extension
	Sheet     string `json:"sheet" mapstructure:"sheet"`         // xlsx only; empty: first sheet
}

// DefaultReaderConfig returns a config that infers everything from the path
func DefaultReaderConfig(path string) ReaderConfig {
	return ReaderConfig{FilePath: path}
}

// FileType classifies the configured path by extension
func (c ReaderConfig) FileType() string {
	switch strings.ToLower(filepath.Ext(c.FilePath)) {
	case ".xlsx", ".xlsm":
		return FileTypeXLSX
	}
	return FileTypeDelimited
}

// Comma returns the field delimiter: the configured one, else by extension
// (.txt and .psv are pipe-separated, .tsv tab-separated, anything else comma).
func (c ReaderConfig) Comma() rune {
	switch c.Delimiter {
	case "":
	case `\t`, "tab":
		return '\t'
	case "pipe":
		return '|'
	default:
		return []rune(c.Delimiter)[0]
	}

	switch strings.ToLower(filepath.Ext(c.FilePath)) {
	case ".txt", ".psv":
		return '|'
	case ".tsv":
		return '\t'
	}
	return ','
}
