package dispatch

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Rule is one literal find/replace substitution applied to a raw line
// before pattern matching. Rules carry no regex semantics.
type Rule struct {
	Find    string `yaml:"find"`
	Replace string `yaml:"replace"`
}

type ruleFile struct {
	Rules []Rule `yaml:"rules"`
}

// ApplyRules runs the rules in order, each rule replacing every
// non-overlapping occurrence and feeding its output to the next rule.
func ApplyRules(line string, rules []Rule) string {
	for _, rule := range rules {
		if rule.Find == "" {
			continue
		}
		line = strings.ReplaceAll(line, rule.Find, rule.Replace)
	}
	return line
}

// ParseRules decodes an ordered rule list from YAML:
//
//	rules:
//	  - find: "h"
//	    replace: ":"
func ParseRules(data []byte) ([]Rule, error) {
	var f ruleFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse rules: %w", err)
	}
	return f.Rules, nil
}

// LoadRulesFile reads a YAML rule file from disk.
func LoadRulesFile(path string) ([]Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}
	return ParseRules(data)
}
