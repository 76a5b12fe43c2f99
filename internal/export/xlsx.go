package export

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/despacho-tools/despachosuite/internal/dispatch"
	"github.com/xuri/excelize/v2"
)

const (
	// DefaultMaxPerTable caps the rows of one table before the next table
	// is laid out to its right on the same sheet.
	DefaultMaxPerTable = 256

	defaultSheetName = "Despacho"
	spacerWidth      = 2
)

var xlsxHeader = []string{"Data/Hora (UTC)", "Empresa", "Excedido (%)"}

// XLSXOptions controls the workbook layout.
type XLSXOptions struct {
	SheetName   string
	MaxPerTable int
}

// WriteXLSX writes the records as an xlsx workbook. Records are tiled into
// tables of at most MaxPerTable rows; overflow tables are placed side by
// side on the same sheet, each with its own header row and a narrow spacer
// column separating it from the previous table.
func WriteXLSX(w io.Writer, records []dispatch.Record, opts XLSXOptions) error {
	sheetName := opts.SheetName
	if sheetName == "" {
		sheetName = defaultSheetName
	}
	maxPerTable := opts.MaxPerTable
	if maxPerTable <= 0 {
		maxPerTable = DefaultMaxPerTable
	}

	file := excelize.NewFile()
	defer func() {
		_ = file.Close()
	}()

	if err := file.SetSheetName(file.GetSheetName(0), sheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	tableWidth := len(xlsxHeader)
	for blockIndex, block := range recordBlocks(records, maxPerTable) {
		startColumn := blockIndex*(tableWidth+1) + 1

		for offset, title := range xlsxHeader {
			cell, err := excelize.CoordinatesToCellName(startColumn+offset, 1)
			if err != nil {
				return fmt.Errorf("convert header cell: %w", err)
			}
			if err := file.SetCellValue(sheetName, cell, title); err != nil {
				return fmt.Errorf("write header %s: %w", cell, err)
			}
		}

		for rowOffset, record := range block {
			row := rowOffset + 2
			values := []any{record.AdjustedISO(), record.Company, record.Percent}
			for offset, value := range values {
				cell, err := excelize.CoordinatesToCellName(startColumn+offset, row)
				if err != nil {
					return fmt.Errorf("convert cell: %w", err)
				}
				if err := file.SetCellValue(sheetName, cell, value); err != nil {
					return fmt.Errorf("write %s: %w", cell, err)
				}
			}
		}

		// Narrow spacer column as a visual border before the next table.
		spacer, err := excelize.ColumnNumberToName(startColumn + tableWidth)
		if err != nil {
			return fmt.Errorf("convert spacer column: %w", err)
		}
		if err := file.SetColWidth(sheetName, spacer, spacer, spacerWidth); err != nil {
			return fmt.Errorf("set spacer width: %w", err)
		}
	}

	if err := file.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// SaveXLSX writes the workbook to a file on disk, creating parent
// directories as needed.
func SaveXLSX(path string, records []dispatch.Record, opts XLSXOptions) error {
	if path == "" {
		return errors.New("output path is required")
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}
	if err := WriteXLSX(f, records, opts); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func recordBlocks(records []dispatch.Record, blockSize int) [][]dispatch.Record {
	var blocks [][]dispatch.Record
	for start := 0; start < len(records); start += blockSize {
		end := start + blockSize
		if end > len(records) {
			end = len(records)
		}
		blocks = append(blocks, records[start:end])
	}
	return blocks
}
