package scheduler

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Schedule decides when a job runs next. A zero time means never.
type Schedule interface {
	Next(after time.Time) time.Time
	String() string
}

// Every fires at a fixed interval after the previous run.
type Every time.Duration

// NewIntervalSchedule is used for the notification cleanup.
func NewIntervalSchedule(d time.Duration) Every { return Every(d) }

func (e Every) Next(after time.Time) time.Time {
	if e <= 0 {
		return time.Time{}
	}
	return after.Add(time.Duration(e))
}

func (e Every) String() string { return "@every " + time.Duration(e).String() }

// Daily is the rollover default: local midnight.
const Daily = "0 0 * * *"

// Cron is a five-field expression: minute hour day-of-month month day-of-week.
// Each field accepts *, n, a-b, */s, a-b/s and comma lists of those.
// As in classic cron, when both day fields are restricted either may match.
type Cron struct {
	expr   string
	minute uint64
	hour   uint64
	dom    uint64
	month  uint64
	dow    uint64
	domAny bool
	dowAny bool
}

var cronFields = [5]struct {
	name   string
	lo, hi int
}{
	{"minute", 0, 59},
	{"hour", 0, 23},
	{"day-of-month", 1, 31},
	{"month", 1, 12},
	{"day-of-week", 0, 7},
}

// ParseCron parses a five-field expression.
func ParseCron(expr string) (*Cron, error) {
	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return nil, fmt.Errorf("cron %q: want 5 fields, got %d", expr, len(fields))
	}

	var masks [5]uint64
	for i, f := range fields {
		m, err := parseCronField(f, cronFields[i].lo, cronFields[i].hi)
		if err != nil {
			return nil, fmt.Errorf("cron %q: %s: %w", expr, cronFields[i].name, err)
		}
		masks[i] = m
	}
	// 7 is Sunday too.
	if masks[4]&(1<<7) != 0 {
		masks[4] |= 1
	}

	return &Cron{
		expr:   expr,
		minute: masks[0], hour: masks[1], dom: masks[2], month: masks[3], dow: masks[4],
		domAny: fields[2] == "*",
		dowAny: fields[4] == "*",
	}, nil
}

func parseCronField(field string, lo, hi int) (uint64, error) {
	var mask uint64
	for _, part := range strings.Split(field, ",") {
		rng, stepStr, hasStep := strings.Cut(part, "/")
		step := 1
		if hasStep {
			s, err := strconv.Atoi(stepStr)
			if err != nil || s <= 0 {
				return 0, fmt.Errorf("bad step %q", stepStr)
			}
			step = s
		}

		from, to := lo, hi
		switch {
		case rng == "*":
		case strings.Contains(rng, "-"):
			a, b, _ := strings.Cut(rng, "-")
			var err error
			if from, err = strconv.Atoi(a); err != nil {
				return 0, fmt.Errorf("bad value %q", a)
			}
			if to, err = strconv.Atoi(b); err != nil {
				return 0, fmt.Errorf("bad value %q", b)
			}
		default:
			v, err := strconv.Atoi(rng)
			if err != nil {
				return 0, fmt.Errorf("bad value %q", rng)
			}
			from = v
			if !hasStep {
				to = v
			}
		}
		if from < lo || to > hi || from > to {
			return 0, fmt.Errorf("%q outside %d-%d", part, lo, hi)
		}
		for v := from; v <= to; v += step {
			mask |= 1 << v
		}
	}
	return mask, nil
}

func (c *Cron) String() string { return c.expr }

func (c *Cron) dayMatches(t time.Time) bool {
	if c.month&(1<<int(t.Month())) == 0 {
		return false
	}
	dom := c.dom&(1<<t.Day()) != 0
	dow := c.dow&(1<<int(t.Weekday())) != 0
	switch {
	case c.domAny && c.dowAny:
		return true
	case c.domAny:
		return dow
	case c.dowAny:
		return dom
	}
	return dom || dow
}

// Next returns the first matching minute strictly after the argument, in
// the argument's location. Expressions that never match, such as 31 February,
// return the zero time.
func (c *Cron) Next(after time.Time) time.Time {
	loc := after.Location()
	t := time.Date(after.Year(), after.Month(), after.Day(), after.Hour(), after.Minute()+1, 0, 0, loc)
	limit := t.AddDate(5, 0, 0)

	for t.Before(limit) {
		if !c.dayMatches(t) {
			t = time.Date(t.Year(), t.Month(), t.Day()+1, 0, 0, 0, 0, loc)
			continue
		}
		if c.hour&(1<<t.Hour()) == 0 {
			t = time.Date(t.Year(), t.Month(), t.Day(), t.Hour()+1, 0, 0, 0, loc)
			continue
		}
		if c.minute&(1<<t.Minute()) == 0 {
			t = t.Add(time.Minute)
			continue
		}
		return t
	}
	return time.Time{}
}

// ParseSchedule accepts a cron expression, @daily, @midnight or
// "@every <duration>".
func ParseSchedule(expr string) (Schedule, error) {
	expr = strings.TrimSpace(expr)
	if rest, ok := strings.CutPrefix(expr, "@every "); ok {
		d, err := time.ParseDuration(strings.TrimSpace(rest))
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("invalid interval %q", rest)
		}
		return Every(d), nil
	}
	if expr == "@daily" || expr == "@midnight" {
		expr = Daily
	}
	return ParseCron(expr)
}
