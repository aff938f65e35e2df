package model

import "time"

// SourceOutlook marks entries imported from an Outlook calendar.
const SourceOutlook = "outlook"

// Entry represents a single clock-in/clock-out interval.
// ClockOut is nil while the session is still open.
type Entry struct {
	ID         string     `json:"id"`
	ClockIn    time.Time  `json:"clockIn"`
	ClockOut   *time.Time `json:"clockOut,omitempty"`
	Source     string     `json:"source,omitempty"`
	ExternalID string     `json:"externalId,omitempty"`
	Note       *string    `json:"note,omitempty"`
}

// IsOpen reports whether the entry has not been clocked out yet.
func (e Entry) IsOpen() bool {
	return e.ClockOut == nil
}

// Duration returns the elapsed time of a closed entry and zero for an open one.
func (e Entry) Duration() time.Duration {
	if e.ClockOut == nil {
		return 0
	}
	return e.ClockOut.Sub(e.ClockIn)
}

// DurationSeconds is Duration expressed in (fractional) seconds.
func (e Entry) DurationSeconds() float64 {
	return e.Duration().Seconds()
}

// DateGroup aggregates the entries whose clock-in falls on one calendar date.
type DateGroup struct {
	Date          string  `json:"date"`
	TotalDuration float64 `json:"totalDuration"`
	Entries       []Entry `json:"entries"`
}

// DayFile is the structure stored in each daily JSON file of the file store.
type DayFile struct {
	Date    string  `json:"date"`
	Entries []Entry `json:"entries"`
}
