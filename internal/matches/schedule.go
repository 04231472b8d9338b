// Package matches holds the scheduling rules for the match feed: combining
// the stored date and time fields, classifying matches as upcoming or past,
// and ordering the feed.
package matches

import (
	"sort"
	"time"

	"github.com/oguzcanoz/halisaha/internal/models"
)

const (
	dateLayout = "2006-01-02"

	TeamA = "A"
	TeamB = "B"
)

var timeLayouts = []string{"15:04:05", "15:04"}

// ScheduledAt combines a match's date and time fields into a wall-clock
// instant. A match with either field missing or unparsable has no scheduled
// time and reports ok=false.
func ScheduledAt(m models.Match) (time.Time, bool) {
	if m.MatchDate == nil || m.MatchTime == nil {
		return time.Time{}, false
	}

	day, err := time.ParseInLocation(dateLayout, *m.MatchDate, time.Local)
	if err != nil {
		return time.Time{}, false
	}

	for _, layout := range timeLayouts {
		clock, err := time.Parse(layout, *m.MatchTime)
		if err != nil {
			continue
		}
		return time.Date(day.Year(), day.Month(), day.Day(),
			clock.Hour(), clock.Minute(), clock.Second(), 0, time.Local), true
	}
	return time.Time{}, false
}

// IsUpcoming reports whether the match is scheduled strictly after now.
// A match with no scheduled time is never upcoming.
func IsUpcoming(m models.Match, now time.Time) bool {
	at, ok := ScheduledAt(m)
	return ok && at.After(now)
}

// Sort orders matches for the feed:
//  1. upcoming matches before past/undated matches
//  2. upcoming matches ascending by scheduled time (soonest first)
//  3. past matches descending by scheduled time (most recent first),
//     dated past matches before undated ones
//  4. undated matches by creation timestamp descending
//
// Remaining ties break on created_at descending, then id, so repeated calls
// on the same data yield the same order. The slice is sorted in place and
// returned. The result depends on now and must be recomputed per request.
func Sort(ms []models.Match, now time.Time) []models.Match {
	sort.SliceStable(ms, func(i, j int) bool {
		return compare(ms[i], ms[j], now) < 0
	})
	return ms
}

func compare(a, b models.Match, now time.Time) int {
	aAt, aOK := ScheduledAt(a)
	bAt, bOK := ScheduledAt(b)
	aUpcoming := aOK && aAt.After(now)
	bUpcoming := bOK && bAt.After(now)

	if aUpcoming != bUpcoming {
		if aUpcoming {
			return -1
		}
		return 1
	}

	if aUpcoming && bUpcoming {
		if !aAt.Equal(bAt) {
			if aAt.Before(bAt) {
				return -1
			}
			return 1
		}
		return tieBreak(a, b)
	}

	// Both past or undated.
	switch {
	case aOK && bOK:
		if !aAt.Equal(bAt) {
			if aAt.After(bAt) {
				return -1
			}
			return 1
		}
		return tieBreak(a, b)
	case aOK:
		return -1
	case bOK:
		return 1
	}
	return tieBreak(a, b)
}

// tieBreak orders by creation timestamp descending, then id ascending.
// created_at is RFC3339 UTC, so string comparison matches time comparison.
func tieBreak(a, b models.Match) int {
	if a.CreatedAt != b.CreatedAt {
		if a.CreatedAt > b.CreatedAt {
			return -1
		}
		return 1
	}
	if a.ID < b.ID {
		return -1
	}
	if a.ID > b.ID {
		return 1
	}
	return 0
}

// Upcoming returns the upcoming matches from an already sorted slice.
func Upcoming(ms []models.Match, now time.Time) []models.Match {
	out := make([]models.Match, 0, len(ms))
	for _, m := range ms {
		if IsUpcoming(m, now) {
			out = append(out, m)
		}
	}
	return out
}

// Next returns the soonest upcoming match, if any.
func Next(ms []models.Match, now time.Time) (models.Match, bool) {
	up := Upcoming(ms, now)
	if len(up) == 0 {
		return models.Match{}, false
	}
	next := up[0]
	nextAt, _ := ScheduledAt(next)
	for _, m := range up[1:] {
		at, _ := ScheduledAt(m)
		if at.Before(nextAt) {
			next, nextAt = m, at
		}
	}
	return next, true
}
