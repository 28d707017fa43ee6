package cron

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// fieldSet is the precomputed admissible-value set for one cron field.
type fieldSet struct {
	values []int
	lookup map[int]bool
}

func newFieldSet(values []int) *fieldSet {
	sort.Ints(values)
	lookup := make(map[int]bool, len(values))
	uniq := values[:0]
	for _, v := range values {
		if !lookup[v] {
			lookup[v] = true
			uniq = append(uniq, v)
		}
	}
	return &fieldSet{values: uniq, lookup: lookup}
}

func (f *fieldSet) has(v int) bool { return f.lookup[v] }
func (f *fieldSet) max() int       { return f.values[len(f.values)-1] }

// ceil returns the smallest admissible value >= v. ok is false if every
// admissible value is smaller than v.
func (f *fieldSet) ceil(v int) (value int, ok bool) {
	idx := sort.SearchInts(f.values, v)
	if idx == len(f.values) {
		return 0, false
	}
	return f.values[idx], true
}

const (
	yearHorizonLow  = 1970
	yearHorizonHigh = 2200
)

var fieldBounds = [7][2]int{
	{0, 59},               // second
	{0, 59},               // minute
	{0, 23},               // hour
	{1, 31},               // day of month
	{1, 12},               // month
	{0, 6},                // day of week, Sunday = 0
	{yearHorizonLow, yearHorizonHigh}, // year
}

// ValidatedSchedule is a 7-field cron expression — second minute hour
// day-of-month month day-of-week year — parsed and range-checked once at
// construction. It is the only form the scheduler ever accepts a job
// against.
type ValidatedSchedule struct {
	expr   string
	fields [7]*fieldSet
}

// ParseSchedule parses and validates expr. Every field is range-checked
// up front so NextAfter never has to fail on a malformed field later.
func ParseSchedule(expr string) (*ValidatedSchedule, error) {
	parts := strings.Fields(expr)
	if len(parts) != 7 {
		return nil, &InvalidCronExpressionError{
			FieldIndex: -1,
			Text:       expr,
			Reason:     fmt.Sprintf("expected 7 fields (sec min hour day month weekday year), got %d", len(parts)),
		}
	}
	var fields [7]*fieldSet
	for i, part := range parts {
		lo, hi := fieldBounds[i][0], fieldBounds[i][1]
		values, err := parseField(part, lo, hi)
		if err != nil {
			return nil, &InvalidCronExpressionError{FieldIndex: i, Text: part, Reason: err.Error()}
		}
		fields[i] = newFieldSet(values)
	}
	return &ValidatedSchedule{expr: strings.Join(parts, " "), fields: fields}, nil
}

// String returns the canonical (whitespace-normalized) form of the
// expression this schedule was parsed from.
func (s *ValidatedSchedule) String() string { return s.expr }

func parseField(text string, lo, hi int) ([]int, error) {
	var values []int
	for _, term := range strings.Split(text, ",") {
		vs, err := parseTerm(term, lo, hi)
		if err != nil {
			return nil, err
		}
		values = append(values, vs...)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("empty field")
	}
	return values, nil
}

func parseTerm(term string, lo, hi int) ([]int, error) {
	step := 1
	base := term
	if idx := strings.IndexByte(term, '/'); idx >= 0 {
		base = term[:idx]
		n, err := strconv.Atoi(term[idx+1:])
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid step in %q", term)
		}
		step = n
	}

	var rangeLo, rangeHi int
	switch {
	case base == "*":
		rangeLo, rangeHi = lo, hi
	case strings.Contains(base, "-"):
		parts := strings.SplitN(base, "-", 2)
		a, errA := strconv.Atoi(parts[0])
		b, errB := strconv.Atoi(parts[1])
		if errA != nil || errB != nil || a > b {
			return nil, fmt.Errorf("invalid range %q", base)
		}
		rangeLo, rangeHi = a, b
	default:
		v, err := strconv.Atoi(base)
		if err != nil {
			return nil, fmt.Errorf("invalid literal %q", base)
		}
		rangeLo, rangeHi = v, v
	}

	if rangeLo < lo || rangeHi > hi {
		return nil, fmt.Errorf("value out of range [%d-%d] in %q", lo, hi, term)
	}

	values := make([]int, 0, (rangeHi-rangeLo)/step+1)
	for v := rangeLo; v <= rangeHi; v += step {
		values = append(values, v)
	}
	return values, nil
}

// NextAfter returns the first instant strictly after now that satisfies
// every field, or false if the expression is provably satisfiable only
// in the past (for example a literal year earlier than now's).
func (s *ValidatedSchedule) NextAfter(now time.Time) (time.Time, bool) {
	loc := now.Location()
	candidate := now.Truncate(time.Second).Add(time.Second)
	yearField := s.fields[6]
	maxYear := yearField.max()

	for candidate.Year() <= maxYear {
		if !yearField.has(candidate.Year()) {
			nextYear, ok := yearField.ceil(candidate.Year())
			if !ok {
				return time.Time{}, false
			}
			candidate = time.Date(nextYear, 1, 1, 0, 0, 0, 0, loc)
			continue
		}

		monthField := s.fields[4]
		if !monthField.has(int(candidate.Month())) {
			nextMonth, ok := monthField.ceil(int(candidate.Month()))
			if !ok {
				candidate = time.Date(candidate.Year()+1, 1, 1, 0, 0, 0, 0, loc)
				continue
			}
			candidate = time.Date(candidate.Year(), time.Month(nextMonth), 1, 0, 0, 0, 0, loc)
			continue
		}

		dayField := s.fields[3]
		weekdayField := s.fields[5]
		if !dayField.has(candidate.Day()) || !weekdayField.has(int(candidate.Weekday())) {
			next := candidate.AddDate(0, 0, 1)
			candidate = time.Date(next.Year(), next.Month(), next.Day(), 0, 0, 0, 0, loc)
			continue
		}

		hourField := s.fields[2]
		if !hourField.has(candidate.Hour()) {
			nextHour, ok := hourField.ceil(candidate.Hour())
			if !ok {
				candidate = time.Date(candidate.Year(), candidate.Month(), candidate.Day(), 0, 0, 0, 0, loc).AddDate(0, 0, 1)
				continue
			}
			candidate = time.Date(candidate.Year(), candidate.Month(), candidate.Day(), nextHour, 0, 0, 0, loc)
			continue
		}

		minField := s.fields[1]
		if !minField.has(candidate.Minute()) {
			nextMin, ok := minField.ceil(candidate.Minute())
			if !ok {
				candidate = time.Date(candidate.Year(), candidate.Month(), candidate.Day(), candidate.Hour(), 0, 0, 0, loc).Add(time.Hour)
				continue
			}
			candidate = time.Date(candidate.Year(), candidate.Month(), candidate.Day(), candidate.Hour(), nextMin, 0, 0, loc)
			continue
		}

		secField := s.fields[0]
		if !secField.has(candidate.Second()) {
			nextSec, ok := secField.ceil(candidate.Second())
			if !ok {
				candidate = time.Date(candidate.Year(), candidate.Month(), candidate.Day(), candidate.Hour(), candidate.Minute(), 0, 0, loc).Add(time.Minute)
				continue
			}
			candidate = time.Date(candidate.Year(), candidate.Month(), candidate.Day(), candidate.Hour(), candidate.Minute(), nextSec, 0, loc)
			continue
		}

		return candidate, true
	}
	return time.Time{}, false
}
