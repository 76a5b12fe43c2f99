package despachocli

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/despacho-tools/despachosuite/internal/dispatch"
	"github.com/xuri/excelize/v2"
)

func TestExecuteUnknownCommand(t *testing.T) {
	if err := Execute([]string{"frobnicate"}); !errors.Is(err, ErrUsage) {
		t.Fatalf("got %v, want ErrUsage", err)
	}
	if err := Execute(nil); !errors.Is(err, ErrUsage) {
		t.Fatalf("got %v, want ErrUsage", err)
	}
}

func TestExportRequiresShiftDate(t *testing.T) {
	err := Execute([]string{"export"})
	if !errors.Is(err, dispatch.ErrMissingShiftDate) {
		t.Fatalf("got %v, want ErrMissingShiftDate", err)
	}
}

func TestExportRejectsBadShiftDate(t *testing.T) {
	err := Execute([]string{"export", "--data", "10/05/2024"})
	if err == nil || !strings.Contains(err.Error(), "YYYY-MM-DD") {
		t.Fatalf("got %v, want date format error", err)
	}
}

func TestDetectFormat(t *testing.T) {
	cases := map[string]string{
		"out.xlsx":        "xlsx",
		"out.csv":         "csv",
		"out.tsv":         "tsv",
		"out.csv.xz":      "csv.xz",
		"OUT.CSV":         "csv",
		"despacho_export": "xlsx",
	}
	for output, want := range cases {
		if got := detectFormat(output); got != want {
			t.Fatalf("detectFormat(%q) = %q, want %q", output, got, want)
		}
	}
}

func writeInputFile(t *testing.T, lines string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "lines.txt")
	if err := os.WriteFile(path, []byte(lines), 0o600); err != nil {
		t.Fatalf("write input: %v", err)
	}
	return path
}

func TestExportEndToEndCSV(t *testing.T) {
	input := writeInputFile(t,
		"05:15 - Abertura da tela de Despacho - ABC - EXCEDIDO EM: 12%\n"+
			"23:50 - Abertura da tela de Despacho - XYZ - EXCEDIDO EM: 3%\n"+
			"00:10 - Abertura da tela de Despacho - DEF - EXCEDIDO EM: 9%\n")
	output := filepath.Join(t.TempDir(), "out.csv")

	err := Execute([]string{"export", "--data", "2024-05-10", "--input", input, "--output", output})
	if err != nil {
		t.Fatalf("export: %v", err)
	}

	data, err := os.ReadFile(output)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	content := string(data)
	if !strings.HasPrefix(content, "data_hora_utc;empresa;excedido_%\n") {
		t.Fatalf("missing header:\n%s", content)
	}
	if !strings.Contains(content, "2024-05-11T03:10Z;DEF;9") {
		t.Fatalf("missing rolled-over record:\n%s", content)
	}
}

func TestExportEndToEndXLSXWithRules(t *testing.T) {
	input := writeInputFile(t,
		"05:15 — Abertura da tela de Despacho — ABC — EXCEDIDO EM: 12%\n")
	rulesPath := filepath.Join(t.TempDir(), "rules.yaml")
	if err := os.WriteFile(rulesPath, []byte("rules:\n  - find: \"—\"\n    replace: \"-\"\n"), 0o600); err != nil {
		t.Fatalf("write rules: %v", err)
	}
	output := filepath.Join(t.TempDir(), "out.xlsx")

	err := Execute([]string{
		"export", "--data", "2024-05-10",
		"--input", input, "--output", output, "--rules", rulesPath,
	})
	if err != nil {
		t.Fatalf("export: %v", err)
	}

	file, err := excelize.OpenFile(output)
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer func() { _ = file.Close() }()

	value, err := file.GetCellValue("Despacho", "A2")
	if err != nil {
		t.Fatalf("get cell: %v", err)
	}
	if value != "2024-05-10T08:15Z" {
		t.Fatalf("A2 = %q", value)
	}
}

func TestExportFailsOnBadLine(t *testing.T) {
	input := writeInputFile(t, "this is not a dispatch line\n")
	output := filepath.Join(t.TempDir(), "out.csv")

	err := Execute([]string{"export", "--data", "2024-05-10", "--input", input, "--output", output})
	var formatErr *dispatch.FormatError
	if !errors.As(err, &formatErr) {
		t.Fatalf("got %v, want FormatError", err)
	}
	if _, statErr := os.Stat(output); statErr == nil {
		t.Fatalf("output file written despite parse failure")
	}
}

func TestSetupWritesEnvFile(t *testing.T) {
	envPath := filepath.Join(t.TempDir(), ".env")
	err := Execute([]string{"setup", "--env-file", envPath, "--addr", ":4100", "--panel-password", "panel-shared-password"})
	if err != nil {
		t.Fatalf("setup: %v", err)
	}

	data, err := os.ReadFile(envPath)
	if err != nil {
		t.Fatalf("read env file: %v", err)
	}
	content := string(data)
	if !strings.Contains(content, "PANEL_ADDR=:4100\n") {
		t.Fatalf("missing PANEL_ADDR:\n%s", content)
	}
	if !strings.Contains(content, "PANEL_PASSWORD_HASH=v1$") {
		t.Fatalf("missing hashed password:\n%s", content)
	}
	if strings.Contains(content, "panel-shared-password") {
		t.Fatalf("plaintext password leaked into env file:\n%s", content)
	}
}

func TestSetupRejectsShortPassword(t *testing.T) {
	envPath := filepath.Join(t.TempDir(), ".env")
	err := Execute([]string{"setup", "--env-file", envPath, "--panel-password", "short"})
	if err == nil {
		t.Fatalf("expected error for short password")
	}
}
