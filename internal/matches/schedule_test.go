package matches

import (
	"testing"
	"time"

	"github.com/oguzcanoz/halisaha/internal/models"
)

func strptr(s string) *string { return &s }

func newMatch(id, date, clock, createdAt string) models.Match {
	m := models.Match{ID: id, CreatedAt: createdAt}
	if date != "" {
		m.MatchDate = strptr(date)
	}
	if clock != "" {
		m.MatchTime = strptr(clock)
	}
	return m
}

func TestScheduledAt_MissingFields(t *testing.T) {
	if _, ok := ScheduledAt(newMatch("a", "", "", "2025-01-01T00:00:00Z")); ok {
		t.Fatalf("no date and no time should have no scheduled time")
	}
	if _, ok := ScheduledAt(newMatch("a", "2025-06-01", "", "2025-01-01T00:00:00Z")); ok {
		t.Fatalf("missing time should have no scheduled time")
	}
	if _, ok := ScheduledAt(newMatch("a", "", "18:00", "2025-01-01T00:00:00Z")); ok {
		t.Fatalf("missing date should have no scheduled time")
	}
}

func TestScheduledAt_Unparsable(t *testing.T) {
	if _, ok := ScheduledAt(newMatch("a", "sometime", "18:00", "2025-01-01T00:00:00Z")); ok {
		t.Fatalf("bad date should have no scheduled time")
	}
	if _, ok := ScheduledAt(newMatch("a", "2025-06-01", "6pm", "2025-01-01T00:00:00Z")); ok {
		t.Fatalf("bad time should have no scheduled time")
	}
}

func TestScheduledAt_WithAndWithoutSeconds(t *testing.T) {
	withSecs, ok := ScheduledAt(newMatch("a", "2025-06-01", "18:30:15", ""))
	if !ok {
		t.Fatalf("hh:mm:ss should parse")
	}
	if withSecs.Hour() != 18 || withSecs.Minute() != 30 || withSecs.Second() != 15 {
		t.Fatalf("unexpected clock: %v", withSecs)
	}

	noSecs, ok := ScheduledAt(newMatch("a", "2025-06-01", "18:30", ""))
	if !ok {
		t.Fatalf("hh:mm should parse")
	}
	if noSecs.Hour() != 18 || noSecs.Minute() != 30 || noSecs.Second() != 0 {
		t.Fatalf("unexpected clock: %v", noSecs)
	}
}

func TestIsUpcoming_UndatedNeverUpcoming(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.Local)
	if IsUpcoming(newMatch("a", "", "", "2025-01-01T00:00:00Z"), now) {
		t.Fatalf("undated match classified upcoming")
	}
}

func TestIsUpcoming_StrictlyAfter(t *testing.T) {
	m := newMatch("a", "2025-03-01", "12:00", "")
	at, _ := ScheduledAt(m)
	if IsUpcoming(m, at) {
		t.Fatalf("match at exactly now must not be upcoming")
	}
	if !IsUpcoming(m, at.Add(-time.Minute)) {
		t.Fatalf("match one minute ahead must be upcoming")
	}
}

func TestSort_UpcomingBeforePast(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.Local)
	past := newMatch("past", "2024-01-01", "18:00", "2023-12-01T00:00:00Z")
	future := newMatch("future", "2025-07-01", "18:00", "2023-11-01T00:00:00Z")

	sorted := Sort([]models.Match{past, future}, now)
	if sorted[0].ID != "future" || sorted[1].ID != "past" {
		t.Fatalf("order: %s, %s", sorted[0].ID, sorted[1].ID)
	}
}

func TestSort_UpcomingAscending(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.Local)
	later := newMatch("later", "2025-08-01", "18:00", "")
	sooner := newMatch("sooner", "2025-06-02", "18:00", "")

	sorted := Sort([]models.Match{later, sooner}, now)
	if sorted[0].ID != "sooner" {
		t.Fatalf("soonest upcoming must sort first, got %s", sorted[0].ID)
	}
}

func TestSort_PastDescending(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.Local)
	older := newMatch("older", "2024-01-01", "18:00", "")
	recent := newMatch("recent", "2025-05-01", "18:00", "")

	sorted := Sort([]models.Match{older, recent}, now)
	if sorted[0].ID != "recent" {
		t.Fatalf("most recent past must sort first, got %s", sorted[0].ID)
	}
}

func TestSort_DatedPastBeforeUndated(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.Local)
	undated := newMatch("undated", "", "", "2025-05-30T00:00:00Z")
	dated := newMatch("dated", "2024-01-01", "18:00", "2023-01-01T00:00:00Z")

	sorted := Sort([]models.Match{undated, dated}, now)
	if sorted[0].ID != "dated" {
		t.Fatalf("dated past must sort before undated, got %s", sorted[0].ID)
	}
}

func TestSort_UndatedByCreationDescending(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.Local)
	older := newMatch("older", "", "", "2025-01-01T00:00:00Z")
	newer := newMatch("newer", "", "", "2025-05-01T00:00:00Z")

	sorted := Sort([]models.Match{older, newer}, now)
	if sorted[0].ID != "newer" {
		t.Fatalf("newest undated must sort first, got %s", sorted[0].ID)
	}
}

func TestSort_Deterministic(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.Local)
	ms := []models.Match{
		newMatch("b", "2025-07-01", "18:00", "2025-01-01T00:00:00Z"),
		newMatch("a", "2025-07-01", "18:00", "2025-01-01T00:00:00Z"),
		newMatch("c", "", "", "2025-01-01T00:00:00Z"),
		newMatch("d", "2024-01-01", "09:00", "2025-02-01T00:00:00Z"),
	}

	first := Sort(append([]models.Match(nil), ms...), now)
	for i := 0; i < 10; i++ {
		again := Sort(append([]models.Match(nil), ms...), now)
		for j := range first {
			if first[j].ID != again[j].ID {
				t.Fatalf("run %d position %d: %s != %s", i, j, again[j].ID, first[j].ID)
			}
		}
	}

	// Equal scheduled times fall back to id ordering.
	if first[0].ID != "a" || first[1].ID != "b" {
		t.Fatalf("tie-break order: %s, %s", first[0].ID, first[1].ID)
	}
}

func TestSort_SpecScenario(t *testing.T) {
	// One future match (2025-01-01 18:00) and one past (2024-01-01 18:00),
	// with now after the past match but before the future one.
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.Local)
	future := newMatch("future", "2025-01-01", "18:00", "")
	past := newMatch("past", "2024-01-01", "18:00", "")

	sorted := Sort([]models.Match{past, future}, now)
	if sorted[0].ID != "future" {
		t.Fatalf("future match must come first, got %s", sorted[0].ID)
	}
}

func TestNext_SoonestUpcoming(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.Local)
	ms := []models.Match{
		newMatch("later", "2025-09-01", "18:00", ""),
		newMatch("sooner", "2025-06-05", "20:00", ""),
		newMatch("past", "2024-01-01", "18:00", ""),
	}

	next, ok := Next(ms, now)
	if !ok {
		t.Fatalf("expected an upcoming match")
	}
	if next.ID != "sooner" {
		t.Fatalf("next: %s", next.ID)
	}
}

func TestNext_NoneUpcoming(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.Local)
	ms := []models.Match{
		newMatch("past", "2024-01-01", "18:00", ""),
		newMatch("undated", "", "", "2025-01-01T00:00:00Z"),
	}

	if _, ok := Next(ms, now); ok {
		t.Fatalf("no match should be upcoming")
	}
}
