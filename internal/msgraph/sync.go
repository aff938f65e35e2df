package msgraph

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Tiliavir/time-tracking-app/internal/model"
	"github.com/Tiliavir/time-tracking-app/internal/storage"
	"github.com/Tiliavir/time-tracking-app/internal/timecalc"
)

// SyncResult holds counters for a sync operation.
type SyncResult struct {
	Imported int
	Skipped  int
	Updated  int
	Errors   int
}

// SyncOptions configures a sync run.
type SyncOptions struct {
	DryRun bool
	// Timezone is the IANA zone of event times without an offset. Empty = UTC.
	Timezone string
	// Out receives one progress line per event. Nil discards them.
	Out io.Writer
}

// parseGraphTime parses a Graph API dateTime string in the given timezone.
// Graph returns times like "2026-02-27T09:00:00.0000000" without a zone suffix
// when a Prefer: outlook.timezone header is set.
func parseGraphTime(dt, tz string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, dt); err == nil {
		return t, nil
	}

	loc := time.UTC
	if tz != "" {
		if l, err := time.LoadLocation(tz); err == nil {
			loc = l
		}
	}

	for _, layout := range []string{
		"2006-01-02T15:04:05.0000000",
		"2006-01-02T15:04:05",
	} {
		if t, err := time.ParseInLocation(layout, dt, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse graph time %q", dt)
}

// buildNote combines subject, bodyPreview and location into the entry note.
func buildNote(event CalendarEvent) *string {
	var parts []string
	for _, s := range []string{event.Subject, event.BodyPreview, event.Location.DisplayName} {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}
	if len(parts) == 0 {
		return nil
	}
	s := strings.Join(parts, "\n")
	return &s
}

// shouldSkip returns true if the event should not be imported.
func shouldSkip(event CalendarEvent) bool {
	switch {
	case event.IsCancelled, event.IsAllDay:
		return true
	case event.Sensitivity == "private":
		return true
	case event.ShowAs == "free":
		return true
	case event.Start.DateTime == "" || event.End.DateTime == "":
		return true
	}
	return false
}

// MapEventToEntry converts a Graph CalendarEvent into a closed Entry. The
// returned entry carries a fresh ID.
func MapEventToEntry(event CalendarEvent, timezone string) (model.Entry, error) {
	start, err := parseGraphTime(event.Start.DateTime, timezone)
	if err != nil {
		return model.Entry{}, fmt.Errorf("parsing start time: %w", err)
	}
	end, err := parseGraphTime(event.End.DateTime, timezone)
	if err != nil {
		return model.Entry{}, fmt.Errorf("parsing end time: %w", err)
	}
	if end.Before(start) {
		return model.Entry{}, fmt.Errorf("event ends before it starts: %w", storage.ErrInvalidInterval)
	}

	return model.Entry{
		ID:         uuid.NewString(),
		ClockIn:    start,
		ClockOut:   &end,
		Source:     model.SourceOutlook,
		ExternalID: event.ID,
		Note:       buildNote(event),
	}, nil
}

func sameContent(a, b model.Entry) bool {
	if !a.ClockIn.Equal(b.ClockIn) {
		return false
	}
	if (a.ClockOut == nil) != (b.ClockOut == nil) {
		return false
	}
	if a.ClockOut != nil && !a.ClockOut.Equal(*b.ClockOut) {
		return false
	}
	if (a.Note == nil) != (b.Note == nil) {
		return false
	}
	return a.Note == nil || *a.Note == *b.Note
}

// SyncEvents imports events into store as closed entries. Events already
// imported (matched by external id) are updated in place when they changed
// and skipped otherwise, so repeated syncs never duplicate entries.
func SyncEvents(ctx context.Context, store storage.Store, events []CalendarEvent, opts SyncOptions) (SyncResult, error) {
	var result SyncResult
	out := opts.Out
	if out == nil {
		out = io.Discard
	}

	for _, event := range events {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if shouldSkip(event) {
			continue
		}

		entry, err := MapEventToEntry(event, opts.Timezone)
		if err != nil {
			fmt.Fprintf(out, "  ! Error mapping event %q: %v\n", event.Subject, err)
			result.Errors++
			continue
		}

		existing, err := store.Find(ctx, storage.Filter{ExternalID: event.ID})
		if err != nil {
			return result, fmt.Errorf("looking up event %q: %w", event.Subject, err)
		}

		dur := timecalc.FormatDuration(int64(entry.Duration().Seconds()))
		if len(existing) > 0 {
			found := existing[0]
			if sameContent(found, entry) {
				fmt.Fprintf(out, "  – Skipped:  %s (already exists)\n", event.Subject)
				result.Skipped++
				continue
			}
			// Keep the stored ID so links and deletes stay valid.
			entry.ID = found.ID
			if !opts.DryRun {
				if err := store.Update(ctx, entry); err != nil {
					fmt.Fprintf(out, "  ! Error updating %q: %v\n", event.Subject, err)
					result.Errors++
					continue
				}
			}
			fmt.Fprintf(out, "  ↑ Updated:  %s (%s)\n", event.Subject, dur)
			result.Updated++
			continue
		}

		if !opts.DryRun {
			if err := store.Insert(ctx, entry); err != nil {
				fmt.Fprintf(out, "  ! Error saving %q: %v\n", event.Subject, err)
				result.Errors++
				continue
			}
		}
		fmt.Fprintf(out, "  ✓ Imported: %s (%s)\n", event.Subject, dur)
		result.Imported++
	}

	return result, nil
}
