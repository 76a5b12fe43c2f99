package dispatch

import "time"

// Record is one structured dispatch log entry. Timestamp carries the
// inferred calendar date plus the clock time, minute precision, in UTC.
type Record struct {
	Timestamp time.Time
	Company   string
	Percent   int
}

// AdjustedISO returns the timestamp shifted by +3h with a literal "Z"
// suffix at minute precision, the format PowerAutomate/SharePoint flows
// expect. The stored timestamp is never modified.
func (r Record) AdjustedISO() string {
	return r.Timestamp.Add(3*time.Hour).Format("2006-01-02T15:04") + "Z"
}
