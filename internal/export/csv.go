package export

import (
	"encoding/csv"
	"fmt"
	"io"

	"invoicelens/internal/domain"
)

// BOM is the UTF-8 byte order mark Excel on Windows needs to detect the encoding.
var BOM = []byte{0xEF, 0xBB, 0xBF}

// CSVContentType is the Content-Type of CSV exports.
const CSVContentType = "text/csv; charset=utf-8"

// WriteCSV writes a BOM, the header row and one row per invoice.
func WriteCSV(w io.Writer, rows []domain.ExportRow, detailed bool) error {
	if _, err := w.Write(BOM); err != nil {
		return fmt.Errorf("export.WriteCSV: %w", err)
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(Columns(detailed)); err != nil {
		return fmt.Errorf("export.WriteCSV header: %w", err)
	}
	for i := range rows {
		if err := cw.Write(Row(&rows[i], detailed)); err != nil {
			return fmt.Errorf("export.WriteCSV row %d: %w", i, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("export.WriteCSV flush: %w", err)
	}
	return nil
}
