package dispatch

import (
	"errors"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrMissingShiftDate is returned when a session is started without a
	// shift date; nothing can be parsed before one is supplied.
	ErrMissingShiftDate = errors.New("shift date is required")

	// ErrEmptyBatch is returned when a bulk input contains no lines at all.
	ErrEmptyBatch = errors.New("no log lines provided")
)

// Session parses an ordered stream of dispatch log lines anchored to one
// shift date. It carries the day-rollover state: whenever a line's clock
// time is strictly smaller than the previous line's, midnight was crossed
// and the anchor date advances one day. The offset accumulates across
// rollovers; equal clock values never trigger one.
//
// Parsing is strictly sequential by design: each successfully parsed line
// updates the rollover state before the next line may be considered, so a
// Session must not be shared between goroutines without external locking.
type Session struct {
	current time.Time
	rules   []Rule

	lastClock int
	hasLast   bool
}

// NewSession starts a parsing session anchored to shiftDate (the time of
// day is discarded). The optional rules are applied, in order, to every
// raw line before pattern matching.
func NewSession(shiftDate time.Time, rules ...Rule) (*Session, error) {
	if shiftDate.IsZero() {
		return nil, ErrMissingShiftDate
	}
	return &Session{
		current: time.Date(shiftDate.Year(), shiftDate.Month(), shiftDate.Day(), 0, 0, 0, 0, time.UTC),
		rules:   rules,
	}, nil
}

// ParseLine parses one raw line. It returns ok=false with a nil error when
// the line is blank, or becomes blank after the substitution rules run;
// such lines are skipped silently. Rollover state is updated on the
// success path only.
func (s *Session) ParseLine(raw string) (Record, bool, error) {
	line := strings.TrimSpace(ApplyRules(raw, s.rules))
	if line == "" {
		return Record{}, false, nil
	}

	clock, company, percentText, err := matchLine(line)
	if err != nil {
		return Record{}, false, err
	}

	minutes, err := clockMinutes(clock)
	if err != nil {
		return Record{}, false, err
	}

	percent, err := strconv.Atoi(percentText)
	if err != nil {
		return Record{}, false, &FormatError{Line: line}
	}

	if s.hasLast && minutes < s.lastClock {
		s.current = s.current.AddDate(0, 0, 1)
	}

	record := Record{
		Timestamp: s.current.Add(time.Duration(minutes) * time.Minute),
		Company:   strings.ToUpper(company),
		Percent:   percent,
	}

	s.lastClock = minutes
	s.hasLast = true
	return record, true, nil
}

// ParseLines parses raw lines strictly in order. The first failing line
// aborts the rest of the batch; records parsed before the failure are
// returned alongside the error.
func (s *Session) ParseLines(lines []string) ([]Record, error) {
	var records []Record
	for _, raw := range lines {
		record, ok, err := s.ParseLine(raw)
		if err != nil {
			return records, err
		}
		if ok {
			records = append(records, record)
		}
	}
	return records, nil
}

// ParseBatch splits pasted text on newlines and parses it with ParseLines.
// Blank input is rejected with ErrEmptyBatch.
func (s *Session) ParseBatch(text string) ([]Record, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyBatch
	}
	return s.ParseLines(strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n"))
}
