package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/despacho-tools/despachosuite/internal/dispatch"
	"github.com/ulikunitz/xz"
)

// delimitedHeader is the fixed header row for the delimited formats. The
// column names follow the downstream flow that consumes the export.
var delimitedHeader = []string{"data_hora_utc", "empresa", "excedido_%"}

// WriteDelimited writes one header row followed by one row per record,
// using delim as the field separator (';' for csv, '\t' for tsv).
func WriteDelimited(w io.Writer, records []dispatch.Record, delim rune) error {
	cw := csv.NewWriter(w)
	cw.Comma = delim

	if err := cw.Write(delimitedHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, record := range records {
		row := []string{record.AdjustedISO(), record.Company, strconv.Itoa(record.Percent)}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write record: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteDelimitedXZ writes the delimited export through an xz stream, for
// mailing large record sets around.
func WriteDelimitedXZ(w io.Writer, records []dispatch.Record, delim rune) error {
	xw, err := xz.NewWriter(w)
	if err != nil {
		return fmt.Errorf("start xz stream: %w", err)
	}
	if err := WriteDelimited(xw, records, delim); err != nil {
		return err
	}
	if err := xw.Close(); err != nil {
		return fmt.Errorf("finish xz stream: %w", err)
	}
	return nil
}
