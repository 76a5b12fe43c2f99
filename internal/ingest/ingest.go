// Package ingest reads raw dispatch log lines from the input formats the
// operators actually hand us: pasted/plain text, legacy .xls workbooks and
// .xlsx workbooks. Spreadsheets carry one log line per row, in the first
// non-empty cell.
package ingest

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"
)

const maxXLSRows = 100000

// ReadLines extracts raw log lines from reader, choosing the decoder by
// the file extension. Unknown extensions (including none, for stdin) are
// treated as plain text. Blank lines are kept; the parser skips them.
func ReadLines(reader io.Reader, filename string) ([]string, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xls":
		return readXLS(reader)
	case ".xlsx", ".xlsm":
		return readXLSX(reader)
	default:
		return readText(reader)
	}
}

func readText(reader io.Reader) ([]string, error) {
	var lines []string
	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	return lines, nil
}

func readXLS(reader io.Reader) ([]string, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}

	workbook, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
	if err != nil {
		return nil, fmt.Errorf("open xls: %w", err)
	}
	if workbook.NumSheets() == 0 {
		return nil, fmt.Errorf("no worksheet found")
	}
	if workbook.NumSheets() > 1 {
		return nil, fmt.Errorf("multiple worksheets found; upload a file with a single sheet")
	}

	rows := workbook.ReadAllCells(maxXLSRows)
	if len(rows) == 0 {
		return nil, fmt.Errorf("worksheet is empty")
	}
	return rowsToLines(rows), nil
}

func readXLSX(reader io.Reader) ([]string, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}

	file, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer func() { _ = file.Close() }()

	sheetName := file.GetSheetName(0)
	if sheetName == "" {
		return nil, fmt.Errorf("no worksheet found")
	}

	rows, err := file.GetRows(sheetName)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("worksheet is empty")
	}
	return rowsToLines(rows), nil
}

// rowsToLines takes the first non-empty cell of each row as one raw line.
func rowsToLines(rows [][]string) []string {
	lines := make([]string, 0, len(rows))
	for _, row := range rows {
		line := ""
		for _, cell := range row {
			if trimmed := strings.TrimSpace(cell); trimmed != "" {
				line = trimmed
				break
			}
		}
		lines = append(lines, line)
	}
	return lines
}
