package dispatch

import (
	"os"
	"path/filepath"
	"testing"
)

func TestApplyRulesOrderedPipeline(t *testing.T) {
	rules := []Rule{
		{Find: "a", Replace: "b"},
		{Find: "bb", Replace: "c"},
	}
	// "ab" -> first rule -> "bb" -> second rule -> "c": each rule feeds
	// the next one.
	if got := ApplyRules("ab", rules); got != "c" {
		t.Fatalf("got %q, want c", got)
	}
}

func TestRulesNormalizeVariantLine(t *testing.T) {
	rules := []Rule{
		{Find: "—", Replace: "-"},
		{Find: "EXCEDIDO", Replace: "excedido"},
	}
	variant := "05:15 — Abertura da tela de Despacho — ABC — EXCEDIDO EM: 12%"
	canonical := "05:15 - Abertura da tela de Despacho - ABC - excedido em: 12%"

	withRules := mustSession(t, rules...)
	got := parseOne(t, withRules, variant)

	plain := mustSession(t)
	want := parseOne(t, plain, canonical)

	if got != want {
		t.Fatalf("rule-normalized parse = %+v, want %+v", got, want)
	}
}

func TestRulesCanBlankOutLines(t *testing.T) {
	s := mustSession(t, Rule{Find: "NOISE", Replace: ""})
	_, ok, err := s.ParseLine("NOISE")
	if err != nil {
		t.Fatalf("blanked line: %v", err)
	}
	if ok {
		t.Fatalf("line blanked by rules was not skipped")
	}
}

func TestParseRulesYAML(t *testing.T) {
	data := []byte("rules:\n  - find: \"h\"\n    replace: \":\"\n  - find: \"EXCEDIDO\"\n    replace: \"excedido\"\n")
	rules, err := ParseRules(data)
	if err != nil {
		t.Fatalf("parse rules: %v", err)
	}
	if len(rules) != 2 {
		t.Fatalf("got %d rules, want 2", len(rules))
	}
	if rules[0].Find != "h" || rules[0].Replace != ":" {
		t.Fatalf("first rule = %+v", rules[0])
	}
}

func TestParseRulesEmptyInput(t *testing.T) {
	rules, err := ParseRules(nil)
	if err != nil {
		t.Fatalf("parse empty rules: %v", err)
	}
	if len(rules) != 0 {
		t.Fatalf("got %d rules, want 0", len(rules))
	}
}

func TestParseRulesRejectsBadYAML(t *testing.T) {
	if _, err := ParseRules([]byte("rules: [")); err == nil {
		t.Fatalf("expected error for malformed YAML")
	}
}

func TestLoadRulesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	content := "rules:\n  - find: \"—\"\n    replace: \"-\"\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write rules file: %v", err)
	}

	rules, err := LoadRulesFile(path)
	if err != nil {
		t.Fatalf("load rules file: %v", err)
	}
	if len(rules) != 1 || rules[0].Find != "—" {
		t.Fatalf("rules = %+v", rules)
	}

	if _, err := LoadRulesFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
