package dispatch

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// logPattern matches one dispatch screen opening line. Literals are
// case-insensitive, dashes may be hyphens or en-dashes, and surrounding
// whitespace is tolerated. Capture groups: clock, company, percent.
var logPattern = regexp.MustCompile(
	`^(?i)(\d{2}(?::|h)\d{2}h?)\s*[-–]\s*Abertura da tela de Despacho\s*[-–]\s*([A-Z]{3})\s*[-–]\s*EXCEDIDO EM:\s*(\d+)\s*%\s*$`,
)

var normalizedClockPattern = regexp.MustCompile(`^\d{2}:\d{2}$`)

// FormatError reports a line that does not match the dispatch template.
type FormatError struct {
	Line string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("line does not match the dispatch pattern: %q", e.Line)
}

// InvalidClockError reports a clock that survives the template match but
// fails normalization or range validation. Clock holds the raw text as it
// appeared in the line.
type InvalidClockError struct {
	Clock string
}

func (e *InvalidClockError) Error() string {
	return fmt.Sprintf("invalid clock time: %q", e.Clock)
}

// clockMinutes normalizes the three accepted clock spellings (HH:MM, HHhMM,
// HH:MMh) and converts the result to minutes since midnight. The hour must
// be at most 23 and the minute at most 59; the original tool only checked
// digit counts, which let times like 25:61 through.
func clockMinutes(clock string) (int, error) {
	normalized := strings.ToLower(strings.TrimSpace(clock))
	normalized = strings.TrimSuffix(normalized, "h")
	normalized = strings.ReplaceAll(normalized, "h", ":")

	if !normalizedClockPattern.MatchString(normalized) {
		return 0, &InvalidClockError{Clock: clock}
	}

	hour, _ := strconv.Atoi(normalized[:2])
	minute, _ := strconv.Atoi(normalized[3:])
	if hour > 23 || minute > 59 {
		return 0, &InvalidClockError{Clock: clock}
	}

	return hour*60 + minute, nil
}

// matchLine runs the template match and returns the raw captures.
func matchLine(line string) (clock, company, percent string, err error) {
	m := logPattern.FindStringSubmatch(line)
	if m == nil {
		return "", "", "", &FormatError{Line: line}
	}
	return m[1], m[2], m[3], nil
}
