// Package schedule computes occurrence instances from declarative recurrence
// descriptions. A Schedule composes one or more Elements; each element steps
// from its start date by a calendar interval and contributes occurrences to a
// single merged stream, indexed from zero. Generation is pure: the same
// schedule and interval always produce the same occurrences.
package schedule

import (
	"errors"
	"time"
)

// Schedule construction errors.
var (
	ErrNoElements  = errors.New("schedule must contain at least one element")
	ErrZeroStep    = errors.New("schedule element interval must advance time")
	ErrEndNotAfter = errors.New("schedule element end must be after start")
)

// Interval is a calendar step between occurrences of one element. Stepping
// uses calendar arithmetic, so "one day" lands on the same wall-clock time
// across daylight saving transitions.
type Interval struct {
	Years   int `json:"years,omitempty"`
	Months  int `json:"months,omitempty"`
	Weeks   int `json:"weeks,omitempty"`
	Days    int `json:"days,omitempty"`
	Hours   int `json:"hours,omitempty"`
	Minutes int `json:"minutes,omitempty"`
	Seconds int `json:"seconds,omitempty"`
}

// IsZero reports whether stepping by the interval would not advance time.
func (i Interval) IsZero() bool {
	return i.Years == 0 && i.Months == 0 && i.Weeks == 0 && i.Days == 0 &&
		i.Hours == 0 && i.Minutes == 0 && i.Seconds == 0
}

// Step returns t advanced by one interval.
func (i Interval) Step(t time.Time) time.Time {
	t = t.AddDate(i.Years, i.Months, i.Weeks*7+i.Days)
	return t.Add(time.Duration(i.Hours)*time.Hour +
		time.Duration(i.Minutes)*time.Minute +
		time.Duration(i.Seconds)*time.Second)
}

// Duration describes how long a single occurrence lasts. The zero value is an
// instantaneous occurrence.
type Duration struct {
	// AllDay marks the occurrence as spanning its whole calendar day.
	AllDay bool `json:"allDay,omitempty"`
	// Length is the fixed occurrence length when AllDay is false.
	Length time.Duration `json:"length,omitempty"`
}

// Fixed returns a fixed-length duration.
func Fixed(d time.Duration) Duration { return Duration{Length: d} }

// AllDay is the duration of occurrences that span their whole calendar day.
var AllDay = Duration{AllDay: true}

// Target is a goal value attached to every occurrence of an element, such as
// "500 ml of water".
type Target struct {
	Label string  `json:"label,omitempty"`
	Value float64 `json:"value"`
	Units string  `json:"units,omitempty"`
}

// Element is a single recurrence rule: a start, an optional end, a calendar
// interval, and an occurrence duration.
type Element struct {
	Start    time.Time  `json:"start"`
	End      *time.Time `json:"end,omitempty"`
	Interval Interval   `json:"interval"`
	Duration Duration   `json:"duration"`
	Text     string     `json:"text,omitempty"`
	Targets  []Target   `json:"targets,omitempty"`
}

// Validate checks that the element can generate a well-formed stream.
func (e Element) Validate() error {
	if e.Interval.IsZero() {
		return ErrZeroStep
	}
	if !e.Interval.Step(e.Start).After(e.Start) {
		return ErrZeroStep
	}
	if e.End != nil && !e.End.After(e.Start) {
		return ErrEndNotAfter
	}
	return nil
}

// Occurrence is one concrete scheduled instance produced by a schedule.
// Index is zero-based and counted over the schedule's merged stream starting
// at the schedule's own start date.
type Occurrence struct {
	Start   time.Time `json:"start"`
	End     time.Time `json:"end"`
	Index   int       `json:"index"`
	Element int       `json:"element"`
	AllDay  bool      `json:"allDay,omitempty"`
	Text    string    `json:"text,omitempty"`
	Targets []Target  `json:"targets,omitempty"`
}

// Schedule is an ordered composition of elements. Occurrence streams of the
// elements are merged by start time; ties go to the earlier element.
type Schedule struct {
	Elements []Element `json:"elements"`
}

// Compose builds a schedule from one or more elements.
func Compose(elements ...Element) (Schedule, error) {
	if len(elements) == 0 {
		return Schedule{}, ErrNoElements
	}
	for _, e := range elements {
		if err := e.Validate(); err != nil {
			return Schedule{}, err
		}
	}
	return Schedule{Elements: elements}, nil
}

// DailyAtTime returns a schedule with one occurrence per day at the given
// wall-clock time, starting on the day of start. A nil end leaves the
// schedule unbounded.
func DailyAtTime(hour, minute int, start time.Time, end *time.Time, text string, duration Duration) Schedule {
	first := time.Date(start.Year(), start.Month(), start.Day(), hour, minute, 0, 0, start.Location())
	return Schedule{Elements: []Element{{
		Start:    first,
		End:      end,
		Interval: Interval{Days: 1},
		Duration: duration,
		Text:     text,
	}}}
}

// EveryNDays returns a schedule recurring every n calendar days from start.
func EveryNDays(n int, start time.Time, end *time.Time, text string) Schedule {
	return Schedule{Elements: []Element{{
		Start:    start,
		End:      end,
		Interval: Interval{Days: n},
		Text:     text,
	}}}
}

// StartDate returns the earliest element start. It is the instant occurrence
// index zero is counted from.
func (s Schedule) StartDate() time.Time {
	start := s.Elements[0].Start
	for _, e := range s.Elements[1:] {
		if e.Start.Before(start) {
			start = e.Start
		}
	}
	return start
}

// EndDate returns the latest element end, or nil if any element is unbounded.
func (s Schedule) EndDate() *time.Time {
	var end time.Time
	for _, e := range s.Elements {
		if e.End == nil {
			return nil
		}
		if e.End.After(end) {
			end = *e.End
		}
	}
	return &end
}

// elementCursor walks one element's occurrence stream in start order.
type elementCursor struct {
	element  int
	next     time.Time
	done     bool
	schedule *Schedule
}

func (c *elementCursor) advance() {
	e := c.schedule.Elements[c.element]
	c.next = e.Interval.Step(c.next)
	if e.End != nil && !c.next.Before(*e.End) {
		c.done = true
	}
}

// Occurrences returns every occurrence with a start in [start, end), in
// ascending start order with ties broken by element declaration order.
// Indices are absolute: they are counted from the schedule's start date, so
// querying a sub-interval never renumbers occurrences.
func (s Schedule) Occurrences(start, end time.Time) []Occurrence {
	cursors := make([]*elementCursor, len(s.Elements))
	for i, e := range s.Elements {
		c := &elementCursor{element: i, next: e.Start, schedule: &s}
		if e.End != nil && !e.Start.Before(*e.End) {
			c.done = true
		}
		cursors[i] = c
	}

	var out []Occurrence
	index := 0
	for {
		min := -1
		for i, c := range cursors {
			if c.done {
				continue
			}
			if min == -1 || c.next.Before(cursors[min].next) {
				min = i
			}
		}
		if min == -1 {
			break
		}
		c := cursors[min]
		occStart := c.next
		if !occStart.Before(end) {
			break
		}
		if !occStart.Before(start) {
			e := s.Elements[c.element]
			out = append(out, Occurrence{
				Start:   occStart,
				End:     occurrenceEnd(occStart, e.Duration),
				Index:   index,
				Element: c.element,
				AllDay:  e.Duration.AllDay,
				Text:    e.Text,
				Targets: e.Targets,
			})
		}
		index++
		c.advance()
	}
	return out
}

// OccurrenceAt returns the occurrence with the given zero-based index, or
// false if the schedule ends before reaching it.
func (s Schedule) OccurrenceAt(n int) (Occurrence, bool) {
	cursors := make([]*elementCursor, len(s.Elements))
	for i, e := range s.Elements {
		c := &elementCursor{element: i, next: e.Start, schedule: &s}
		if e.End != nil && !e.Start.Before(*e.End) {
			c.done = true
		}
		cursors[i] = c
	}

	for index := 0; ; index++ {
		min := -1
		for i, c := range cursors {
			if c.done {
				continue
			}
			if min == -1 || c.next.Before(cursors[min].next) {
				min = i
			}
		}
		if min == -1 {
			return Occurrence{}, false
		}
		c := cursors[min]
		if index == n {
			e := s.Elements[c.element]
			return Occurrence{
				Start:   c.next,
				End:     occurrenceEnd(c.next, e.Duration),
				Index:   index,
				Element: c.element,
				AllDay:  e.Duration.AllDay,
				Text:    e.Text,
				Targets: e.Targets,
			}, true
		}
		c.advance()
	}
}

// occurrenceEnd computes the occurrence end for a start and duration. All-day
// occurrences end at the start of the following calendar day.
func occurrenceEnd(start time.Time, d Duration) time.Time {
	if d.AllDay {
		day := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, start.Location())
		return day.AddDate(0, 0, 1)
	}
	return start.Add(d.Length)
}
