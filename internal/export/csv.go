package export

import (
	"encoding/csv"
	"fmt"
	"io"
)

// ContentTypeCSV is the MIME type of WriteCSV output.
const ContentTypeCSV = "text/csv; charset=utf-8"

// WriteCSV writes the header and rows to w.
func WriteCSV(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, r := range rows {
		if err := cw.Write(r.Strings()); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}
