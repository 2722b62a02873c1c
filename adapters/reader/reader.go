// Package reader loads policy data from delimited text or Excel workbooks.
package reader

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"strings"
	"time"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"riskhypo/domain/policy"
	"riskhypo/internal/errors"
)

// DataReader handles reading CSV, pipe-delimited and Excel files
type DataReader struct {
	config ReaderConfig
	logger *zap.Logger
}

// NewDataReader creates a reader for cfg; nil logger uses the global one
func NewDataReader(cfg ReaderConfig, logger *zap.Logger) *DataReader {
	if logger == nil {
		logger = zap.L()
	}
	return &DataReader{config: cfg, logger: logger.Named("reader")}
}

// Load reads the configured file. A missing file yields a NOT_FOUND error and
// a malformed one INVALID_INPUT; callers abort the run on either.
func (r *DataReader) Load(ctx context.Context) (*policy.RawDataset, error) {
	path := r.config.FilePath
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NotFound("data file " + path)
		}
		return nil, errors.Wrapf(err, "stat %s", path)
	}

	start := time.Now()
	var (
		ds  *policy.RawDataset
		err error
	)
	switch r.config.FileType() {
	case FileTypeXLSX:
		ds, err = r.readExcel(ctx)
	default:
		ds, err = r.readDelimited(ctx)
	}
	if err != nil {
		return nil, err
	}

	r.logger.Info("data loaded",
		zap.String("path", path),
		zap.Int("rows", len(ds.Records)),
		zap.Int("columns", len(ds.Header)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return ds, nil
}

func (r *DataReader) readDelimited(ctx context.Context) (*policy.RawDataset, error) {
	f, err := os.Open(r.config.FilePath)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", r.config.FilePath)
	}
	defer f.Close()

	return r.Decode(ctx, f)
}

// Decode reads delimited data from src using the configured delimiter
func (r *DataReader) Decode(ctx context.Context, src io.Reader) (*policy.RawDataset, error) {
	cr := csv.NewReader(src)
	cr.Comma = r.config.Comma()
	cr.LazyQuotes = true
	cr.ReuseRecord = true
	return r.decodeRows(ctx, cr)
}

func (r *DataReader) readExcel(ctx context.Context) (*policy.RawDataset, error) {
	f, err := excelize.OpenFile(r.config.FilePath)
	if err != nil {
		return nil, errors.WithCode(errors.CodeInvalidInput, eris.Wrapf(err, "open workbook %s", r.config.FilePath))
	}
	defer f.Close()

	sheet := r.config.Sheet
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, errors.InvalidInput("workbook has no sheets: " + r.config.FilePath)
		}
		sheet = sheets[0]
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, errors.WithCode(errors.CodeInvalidInput, eris.Wrapf(err, "read sheet %q", sheet))
	}
	return r.decodeRows(ctx, &sliceReader{rows: rows})
}

// decodeRows maps header-named columns onto RawRecord. Columns the record
// does not know are ignored; absent required columns are left for the
// preprocessor's schema check to report.
func (r *DataReader) decodeRows(ctx context.Context, src csvutil.Reader) (*policy.RawDataset, error) {
	dec, err := csvutil.NewDecoder(&headerCleaner{r: src})
	if err != nil {
		if err == io.EOF {
			return nil, errors.InvalidInput("data file is empty: " + r.config.FilePath)
		}
		return nil, errors.WithCode(errors.CodeInvalidInput, eris.Wrap(err, "read header"))
	}

	ds := &policy.RawDataset{
		Source: r.config.FilePath,
		Header: append([]string(nil), dec.Header()...),
	}
	for line := 2; ; line++ {
		if line%10000 == 0 && ctx.Err() != nil {
			return nil, errors.Wrap(ctx.Err(), "load cancelled")
		}
		var rec policy.RawRecord
		if err := dec.Decode(&rec); err == io.EOF {
			break
		} else if err != nil {
			return nil, errors.WithCode(errors.CodeInvalidInput, eris.Wrapf(err, "decode row %d", line))
		}
		ds.Records = append(ds.Records, rec)
	}
	return ds, nil
}

// headerCleaner trims whitespace and a UTF-8 byte order mark from the header row
type headerCleaner struct {
	r    csvutil.Reader
	done bool
}

func (h *headerCleaner) Read() ([]string, error) {
	rec, err := h.r.Read()
	if err != nil || h.done {
		return rec, err
	}
	h.done = true
	header := make([]string, len(rec))
	for i, col := range rec {
		header[i] = strings.TrimSpace(strings.TrimPrefix(col, "\ufeff"))
	}
	return header, nil
}

// sliceReader feeds spreadsheet rows to csvutil, padding rows whose trailing
// empty cells the workbook omitted
type sliceReader struct {
	rows  [][]string
	next  int
	width int
}

func (s *sliceReader) Read() ([]string, error) {
	if s.next >= len(s.rows) {
		return nil, io.EOF
	}
	row := s.rows[s.next]
	s.next++
	if s.width == 0 {
		s.width = len(row)
		return row, nil
	}
	if len(row) < s.width {
		padded := make([]string, s.width)
		copy(padded, row)
		return padded, nil
	}
	return row[:s.width], nil
}
