package schedule

import (
	"errors"
	"reflect"
	"testing"
	"time"
)

func day(d int) time.Time {
	return time.Date(2026, time.March, 1+d, 0, 0, 0, 0, time.UTC)
}

func TestComposeValidation(t *testing.T) {
	t.Run("no elements", func(t *testing.T) {
		_, err := Compose()
		if !errors.Is(err, ErrNoElements) {
			t.Fatalf("expected ErrNoElements, got %v", err)
		}
	})

	t.Run("zero interval", func(t *testing.T) {
		_, err := Compose(Element{Start: day(0)})
		if !errors.Is(err, ErrZeroStep) {
			t.Fatalf("expected ErrZeroStep, got %v", err)
		}
	})

	t.Run("end before start", func(t *testing.T) {
		end := day(0)
		_, err := Compose(Element{Start: day(1), End: &end, Interval: Interval{Days: 1}})
		if !errors.Is(err, ErrEndNotAfter) {
			t.Fatalf("expected ErrEndNotAfter, got %v", err)
		}
	})
}

func TestDailyOccurrences(t *testing.T) {
	s := DailyAtTime(8, 0, day(0), nil, "morning meds", Duration{})

	occs := s.Occurrences(day(0), day(5))
	if len(occs) != 5 {
		t.Fatalf("expected 5 occurrences, got %d", len(occs))
	}
	for i, o := range occs {
		if o.Index != i {
			t.Errorf("occurrence %d has index %d", i, o.Index)
		}
		want := time.Date(2026, time.March, 1+i, 8, 0, 0, 0, time.UTC)
		if !o.Start.Equal(want) {
			t.Errorf("occurrence %d starts at %v, want %v", i, o.Start, want)
		}
		if o.Text != "morning meds" {
			t.Errorf("occurrence %d text %q", i, o.Text)
		}
	}
}

func TestOccurrenceIndicesAreAbsolute(t *testing.T) {
	s := DailyAtTime(8, 0, day(0), nil, "", Duration{})

	occs := s.Occurrences(day(3), day(6))
	if len(occs) != 3 {
		t.Fatalf("expected 3 occurrences, got %d", len(occs))
	}
	if occs[0].Index != 3 {
		t.Errorf("first occurrence in sub-interval has index %d, want 3", occs[0].Index)
	}
}

func TestOccurrencesAreIdempotent(t *testing.T) {
	end := day(30)
	s := Schedule{Elements: []Element{
		{Start: day(0).Add(8 * time.Hour), End: &end, Interval: Interval{Days: 1}},
		{Start: day(0).Add(18 * time.Hour), End: &end, Interval: Interval{Days: 2}},
	}}

	a := s.Occurrences(day(2), day(20))
	b := s.Occurrences(day(2), day(20))
	if !reflect.DeepEqual(a, b) {
		t.Fatal("repeated generation produced different occurrences")
	}
}

func TestComposedElementsMergeByStartTime(t *testing.T) {
	// Three times a day: 7:30, 12:00, 17:30.
	mk := func(h, m int) Element {
		return Element{
			Start:    time.Date(2026, time.March, 1, h, m, 0, 0, time.UTC),
			Interval: Interval{Days: 1},
		}
	}
	s, err := Compose(mk(7, 30), mk(12, 0), mk(17, 30))
	if err != nil {
		t.Fatal(err)
	}

	occs := s.Occurrences(day(0), day(2))
	if len(occs) != 6 {
		t.Fatalf("expected 6 occurrences, got %d", len(occs))
	}
	wantHours := []int{7, 12, 17, 7, 12, 17}
	for i, o := range occs {
		if o.Start.Hour() != wantHours[i] {
			t.Errorf("occurrence %d at hour %d, want %d", i, o.Start.Hour(), wantHours[i])
		}
		if o.Index != i {
			t.Errorf("occurrence %d has index %d", i, o.Index)
		}
	}
}

func TestTieBreakByElementOrder(t *testing.T) {
	s := Schedule{Elements: []Element{
		{Start: day(0), Interval: Interval{Days: 1}, Text: "first"},
		{Start: day(0), Interval: Interval{Days: 1}, Text: "second"},
	}}

	occs := s.Occurrences(day(0), day(1))
	if len(occs) != 2 {
		t.Fatalf("expected 2 occurrences, got %d", len(occs))
	}
	if occs[0].Text != "first" || occs[1].Text != "second" {
		t.Fatalf("tie not broken by element order: %q, %q", occs[0].Text, occs[1].Text)
	}
}

func TestBoundedElementStops(t *testing.T) {
	end := day(3)
	s := Schedule{Elements: []Element{
		{Start: day(0), End: &end, Interval: Interval{Days: 1}},
	}}

	occs := s.Occurrences(day(0), day(10))
	if len(occs) != 3 {
		t.Fatalf("expected 3 occurrences, got %d", len(occs))
	}
}

func TestAllDayDuration(t *testing.T) {
	s := Schedule{Elements: []Element{
		{Start: day(0).Add(9 * time.Hour), Interval: Interval{Days: 1}, Duration: AllDay},
	}}

	occs := s.Occurrences(day(0), day(1))
	if len(occs) != 1 {
		t.Fatalf("expected 1 occurrence, got %d", len(occs))
	}
	if !occs[0].AllDay {
		t.Error("occurrence not marked all-day")
	}
	if !occs[0].End.Equal(day(1)) {
		t.Errorf("all-day occurrence ends at %v, want %v", occs[0].End, day(1))
	}
}

func TestFixedDuration(t *testing.T) {
	s := DailyAtTime(8, 0, day(0), nil, "", Fixed(123*time.Second))
	occs := s.Occurrences(day(0), day(1))
	if len(occs) != 1 {
		t.Fatal("expected 1 occurrence")
	}
	if got := occs[0].End.Sub(occs[0].Start); got != 123*time.Second {
		t.Fatalf("expected 123s duration, got %v", got)
	}
}

func TestOccurrenceAt(t *testing.T) {
	t.Run("unbounded", func(t *testing.T) {
		s := DailyAtTime(8, 0, day(0), nil, "", Duration{})
		occ, ok := s.OccurrenceAt(5)
		if !ok {
			t.Fatal("expected occurrence 5 to exist")
		}
		want := time.Date(2026, time.March, 6, 8, 0, 0, 0, time.UTC)
		if !occ.Start.Equal(want) {
			t.Fatalf("occurrence 5 starts at %v, want %v", occ.Start, want)
		}
		if occ.Index != 5 {
			t.Fatalf("occurrence index %d, want 5", occ.Index)
		}
	})

	t.Run("past schedule end", func(t *testing.T) {
		end := day(3)
		s := Schedule{Elements: []Element{
			{Start: day(0), End: &end, Interval: Interval{Days: 1}},
		}}
		if _, ok := s.OccurrenceAt(10); ok {
			t.Fatal("expected no occurrence past schedule end")
		}
	})
}

func TestStartDateIsEarliestElement(t *testing.T) {
	s := Schedule{Elements: []Element{
		{Start: day(2), Interval: Interval{Days: 1}},
		{Start: day(1), Interval: Interval{Days: 1}},
	}}
	if !s.StartDate().Equal(day(1)) {
		t.Fatalf("start date %v, want %v", s.StartDate(), day(1))
	}
}

func TestEveryNDays(t *testing.T) {
	s := EveryNDays(3, day(0), nil, "")
	occs := s.Occurrences(day(0), day(10))
	if len(occs) != 4 {
		t.Fatalf("expected 4 occurrences, got %d", len(occs))
	}
	for i, o := range occs {
		if !o.Start.Equal(day(i * 3)) {
			t.Errorf("occurrence %d starts at %v, want %v", i, o.Start, day(i*3))
		}
	}
}
