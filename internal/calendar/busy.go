// Package calendar renders blocked time ranges as an iCalendar feed.
package calendar

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/emersion/go-ical"
)

// ProductID identifies the feed producer.
const ProductID = "-//swapmarket//busy-times//EN"

// ErrEmptyCalendar is returned when there is nothing to encode.
var ErrEmptyCalendar = errors.New("calendar: no busy ranges")

// Range is a half-open [Start, End) interval.
type Range struct {
	Start time.Time
	End   time.Time
}

// BusyCalendar builds a VCALENDAR with one opaque VEVENT per range.
func BusyCalendar(ranges []Range, stamp time.Time) *ical.Calendar {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, ProductID)

	stamp = stamp.UTC()
	for i, r := range ranges {
		ve := ical.NewComponent(ical.CompEvent)
		ve.Props.SetText(ical.PropUID, fmt.Sprintf("busy-%d-%d-%d@swapmarket", i, r.Start.Unix(), r.End.Unix()))
		ve.Props.SetText(ical.PropSummary, "Busy")
		ve.Props.SetText(ical.PropTransparency, "OPAQUE")
		ve.Props.SetDateTime(ical.PropDateTimeStamp, stamp)
		ve.Props.SetDateTime(ical.PropDateTimeStart, r.Start.UTC())
		ve.Props.SetDateTime(ical.PropDateTimeEnd, r.End.UTC())
		cal.Children = append(cal.Children, ve)
	}
	return cal
}

// Encode writes the busy calendar for ranges to w.
func Encode(w io.Writer, ranges []Range, stamp time.Time) error {
	if len(ranges) == 0 {
		return ErrEmptyCalendar
	}
	if err := ical.NewEncoder(w).Encode(BusyCalendar(ranges, stamp)); err != nil {
		return fmt.Errorf("failed to encode busy calendar: %w", err)
	}
	return nil
}
