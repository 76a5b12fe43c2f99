package export

import (
	"bytes"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/despacho-tools/despachosuite/internal/dispatch"
	"github.com/ulikunitz/xz"
)

func sampleRecords() []dispatch.Record {
	return []dispatch.Record{
		{Timestamp: time.Date(2024, 5, 10, 5, 15, 0, 0, time.UTC), Company: "ABC", Percent: 12},
		{Timestamp: time.Date(2024, 5, 10, 23, 50, 0, 0, time.UTC), Company: "XYZ", Percent: 3},
	}
}

func TestWriteDelimitedSemicolon(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteDelimited(&buf, sampleRecords(), ';'); err != nil {
		t.Fatalf("write delimited: %v", err)
	}

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3", len(lines))
	}
	if lines[0] != "data_hora_utc;empresa;excedido_%" {
		t.Fatalf("header = %q", lines[0])
	}
	if lines[1] != "2024-05-10T08:15Z;ABC;12" {
		t.Fatalf("first row = %q", lines[1])
	}
	if lines[2] != "2024-05-11T02:50Z;XYZ;3" {
		t.Fatalf("second row = %q", lines[2])
	}
}

func TestWriteDelimitedTab(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteDelimited(&buf, sampleRecords(), '\t'); err != nil {
		t.Fatalf("write delimited: %v", err)
	}
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if lines[0] != "data_hora_utc\tempresa\texcedido_%" {
		t.Fatalf("header = %q", lines[0])
	}
	if lines[1] != "2024-05-10T08:15Z\tABC\t12" {
		t.Fatalf("first row = %q", lines[1])
	}
}

func TestWriteDelimitedEmptyRecordSet(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteDelimited(&buf, nil, ';'); err != nil {
		t.Fatalf("write delimited: %v", err)
	}
	if got := strings.TrimRight(buf.String(), "\n"); got != "data_hora_utc;empresa;excedido_%" {
		t.Fatalf("empty export = %q, want header only", got)
	}
}

func TestWriteDelimitedXZRoundTrip(t *testing.T) {
	var compressed bytes.Buffer
	if err := WriteDelimitedXZ(&compressed, sampleRecords(), ';'); err != nil {
		t.Fatalf("write xz: %v", err)
	}

	xr, err := xz.NewReader(bytes.NewReader(compressed.Bytes()))
	if err != nil {
		t.Fatalf("open xz stream: %v", err)
	}
	plain, err := io.ReadAll(xr)
	if err != nil {
		t.Fatalf("decompress: %v", err)
	}

	var direct bytes.Buffer
	if err := WriteDelimited(&direct, sampleRecords(), ';'); err != nil {
		t.Fatalf("write delimited: %v", err)
	}
	if !bytes.Equal(plain, direct.Bytes()) {
		t.Fatalf("xz round trip differs from plain export")
	}
}
