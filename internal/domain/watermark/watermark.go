// Package watermark normalizes the timestamp cursors mobile clients hold
// between delta polls.
//
// Every conversion goes through StoreZone. The store keeps creation times as
// wall-clock values in that zone, and clients may send either the canonical
// store form or an ISO-8601 form with an explicit offset.
package watermark

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

const (
	// GraceWindow is how far back a client without a watermark starts.
	GraceWindow = 5 * time.Minute

	// Layout is the canonical store form ("date space time").
	Layout = "2006-01-02 15:04:05"

	// WallClockLayout is the client-facing wall-clock form without offset.
	WallClockLayout = "2006-01-02T15:04:05"
)

// StoreZone is the single fixed UTC+9 convention used for every watermark
// conversion and every stored creation time.
var StoreZone = time.FixedZone("KST", 9*60*60)

var ErrMalformed = errors.New("malformed watermark")

// offsetLayouts are tried for ISO-8601 input. Fractional seconds are
// accepted by time.Parse even when a layout does not name them.
var offsetLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05Z0700",
	"2006-01-02T15:04Z07:00",
}

// Default returns now minus the grace window, in the store zone.
func Default(now time.Time) time.Time {
	return now.In(StoreZone).Add(-GraceWindow).Truncate(time.Second)
}

// Parse normalizes a client watermark into an instant in StoreZone with
// second precision.
func Parse(raw string) (time.Time, error) {
	s := strings.TrimSpace(raw)
	if strings.Contains(s, "%") {
		if unescaped, err := url.QueryUnescape(s); err == nil {
			s = unescaped
		}
	}
	if s == "" {
		return time.Time{}, ErrMalformed
	}

	if !strings.Contains(s, "T") {
		t, err := time.ParseInLocation(Layout, s, StoreZone)
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: %q", ErrMalformed, raw)
		}
		return normalize(t), nil
	}

	s = restorePlus(s)
	for _, layout := range offsetLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return normalize(t), nil
		}
	}

	// No offset: the value is a store wall-clock time.
	t, err := time.ParseInLocation(WallClockLayout, s, StoreZone)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrMalformed, raw)
	}
	return normalize(t), nil
}

// Canonical formats t in the store's "date space time" form.
func Canonical(t time.Time) string {
	return t.In(StoreZone).Format(Layout)
}

// Resubmittable formats t so a client can send it back unchanged and have it
// parse to the same instant.
func Resubmittable(t time.Time) string {
	return t.In(StoreZone).Format(time.RFC3339)
}

// WallClock formats t as the store wall clock without offset.
func WallClock(t time.Time) string {
	return t.In(StoreZone).Format(WallClockLayout)
}

func normalize(t time.Time) time.Time {
	return t.In(StoreZone).Truncate(time.Second)
}

// restorePlus undoes a form-decoded "+hh:mm" offset that arrived as a space.
func restorePlus(s string) string {
	idx := strings.LastIndex(s, " ")
	if idx <= strings.Index(s, "T") {
		return s
	}
	return s[:idx] + "+" + s[idx+1:]
}
