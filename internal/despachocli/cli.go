package despachocli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/despacho-tools/despachosuite/internal/dispatch"
	"github.com/despacho-tools/despachosuite/internal/envutil"
	"github.com/despacho-tools/despachosuite/internal/export"
	"github.com/despacho-tools/despachosuite/internal/ingest"
	"github.com/despacho-tools/despachosuite/internal/panelapp"
	"github.com/despacho-tools/despachosuite/internal/security"
)

var ErrUsage = errors.New("usage")

func Execute(args []string) error {
	if len(args) < 1 {
		return usageError()
	}

	switch args[0] {
	case "export":
		return runExport(args[1:])
	case "serve":
		return runServe(args[1:])
	case "setup":
		return runSetup(args[1:])
	default:
		return usageError()
	}
}

func PrintUsage(w io.Writer) {
	fmt.Fprintln(w, "usage: despachosuite export --data YYYY-MM-DD [--input lines.txt] [--output despacho_export.xlsx]")
	fmt.Fprintln(w, "                            [--format xlsx|csv|tsv|csv.xz] [--max-per-table 256] [--rules rules.yaml]")
	fmt.Fprintln(w, "       despachosuite serve")
	fmt.Fprintln(w, "       despachosuite setup [--panel-password <password>] [--addr :4000] [--force]")
}

func usageError() error {
	return fmt.Errorf("%w: despachosuite <export|serve|setup> [...]", ErrUsage)
}

func runExport(args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	data := fs.String("data", "", "shift start date (YYYY-MM-DD)")
	input := fs.String("input", "", "file with dispatch log lines (.txt, .xls or .xlsx); reads STDIN when omitted")
	output := fs.String("output", "despacho_export.xlsx", "output file path")
	format := fs.String("format", "", "export format: xlsx, csv, tsv or csv.xz (defaults to the output extension)")
	maxPerTable := fs.Int("max-per-table", export.DefaultMaxPerTable, "rows per spreadsheet table before starting a new one alongside")
	rulesPath := fs.String("rules", "", "YAML file with ordered find/replace rules applied to each line")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if strings.TrimSpace(*data) == "" {
		return fmt.Errorf("%w: pass --data YYYY-MM-DD", dispatch.ErrMissingShiftDate)
	}
	shiftDate, err := time.Parse("2006-01-02", *data)
	if err != nil {
		return fmt.Errorf("invalid --data value %q: expected YYYY-MM-DD", *data)
	}

	var rules []dispatch.Rule
	if *rulesPath != "" {
		rules, err = dispatch.LoadRulesFile(*rulesPath)
		if err != nil {
			return err
		}
	}

	lines, err := readInputLines(*input)
	if err != nil {
		return err
	}

	session, err := dispatch.NewSession(shiftDate, rules...)
	if err != nil {
		return err
	}
	records, err := session.ParseLines(lines)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Fprintln(os.Stderr, "no records parsed; nothing exported")
		return nil
	}

	outFormat := *format
	if outFormat == "" {
		outFormat = detectFormat(*output)
	}
	if err := writeExport(*output, outFormat, records, *maxPerTable); err != nil {
		return err
	}

	fmt.Printf("exported %d records to %s\n", len(records), *output)
	return nil
}

func readInputLines(path string) ([]string, error) {
	if path == "" {
		if stat, err := os.Stdin.Stat(); err == nil && stat.Mode()&os.ModeCharDevice != 0 {
			fmt.Fprintln(os.Stderr, "paste the log lines and press Ctrl+D to finish:")
		}
		return ingest.ReadLines(os.Stdin, "")
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input file: %w", err)
	}
	defer f.Close()
	return ingest.ReadLines(f, path)
}

// detectFormat maps the output file name to an export format, defaulting
// to xlsx.
func detectFormat(output string) string {
	lower := strings.ToLower(output)
	switch {
	case strings.HasSuffix(lower, ".csv.xz"), strings.HasSuffix(lower, ".xz"):
		return "csv.xz"
	case filepath.Ext(lower) == ".csv":
		return "csv"
	case filepath.Ext(lower) == ".tsv":
		return "tsv"
	default:
		return "xlsx"
	}
}

func writeExport(output, format string, records []dispatch.Record, maxPerTable int) error {
	switch format {
	case "xlsx":
		return export.SaveXLSX(output, records, export.XLSXOptions{MaxPerTable: maxPerTable})
	case "csv", "tsv", "csv.xz":
		f, err := os.Create(output)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		delim := ';'
		if format == "tsv" {
			delim = '\t'
		}
		if format == "csv.xz" {
			err = export.WriteDelimitedXZ(f, records, delim)
		} else {
			err = export.WriteDelimited(f, records, delim)
		}
		if err != nil {
			_ = f.Close()
			return err
		}
		return f.Close()
	default:
		return fmt.Errorf("unknown export format %q", format)
	}
}

func runServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	envPath := fs.String("env-file", ".env", "path to .env file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if err := envutil.LoadDotEnv(*envPath); err != nil {
		return fmt.Errorf("load %s: %w", *envPath, err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := panelapp.Run(ctx, panelapp.DefaultConfigFromEnv()); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func runSetup(args []string) error {
	fs := flag.NewFlagSet("setup", flag.ContinueOnError)
	password := fs.String("panel-password", "", "optional shared password for the panel (min 10 chars)")
	addr := fs.String("addr", ":4000", "panel listen address")
	envPath := fs.String("env-file", ".env", "path to .env file")
	force := fs.Bool("force", false, "overwrite existing env file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	values := map[string]string{
		"PANEL_ADDR": *addr,
	}
	if *password != "" {
		hash, err := security.HashPassword(*password)
		if err != nil {
			return fmt.Errorf("invalid panel password: %w", err)
		}
		values["PANEL_PASSWORD_HASH"] = hash
	}

	if err := envutil.WriteDotEnv(*envPath, values, *force); err != nil {
		return err
	}
	fmt.Printf("wrote %s\n", *envPath)
	return nil
}
