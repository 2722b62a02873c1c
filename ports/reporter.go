package ports

import (
	"io"

	"riskhypo/domain/stats"
)

// ReporterPort renders a finished report
type ReporterPort interface {
	Render(w io.Writer, report *stats.Report) error
}
