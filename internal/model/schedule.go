package model

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// ErrBadDuration is returned for durations outside the supported
// ISO-8601 subset: P[nW][nD][T[nH][nM][nS]].
var ErrBadDuration = errors.New("invalid ISO-8601 duration")

// Interval returns the shortest distance between two reindex runs.
// Exactly one of Cron and Duration must be set.
func (s Schedule) Interval() (time.Duration, error) {
	var (
		d   time.Duration
		err error
	)
	switch {
	case s.Cron != "" && s.Duration != "":
		return 0, errors.New("cron and duration are mutually exclusive")
	case s.Cron != "":
		d, err = cronInterval(s.Cron)
	case s.Duration != "":
		d, err = parseDuration(s.Duration)
	default:
		return 0, errors.New("neither cron nor duration is set")
	}
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("schedule interval %s is not positive", d)
	}
	return d, nil
}

// cronActivations is how many consecutive activations are sampled
// to find the shortest gap of a cron expression.
const cronActivations = 8

// cronInterval accepts 5 field expressions and descriptors like @daily
// or @every 1h30m.
func cronInterval(expr string) (time.Duration, error) {
	sched, err := cron.ParseStandard(strings.TrimSpace(expr))
	if err != nil {
		return 0, fmt.Errorf("parsing cron %q: %w", expr, err)
	}
	var (
		shortest time.Duration
		at       = sched.Next(time.Now())
	)
	for range cronActivations {
		next := sched.Next(at)
		if next.IsZero() {
			break
		}
		if gap := next.Sub(at); shortest == 0 || gap < shortest {
			shortest = gap
		}
		at = next
	}
	return shortest, nil
}

type durationUnit struct {
	designator byte
	size       time.Duration
}

// Months and years have no fixed length and are rejected.
var (
	dateUnits = []durationUnit{{'W', 7 * 24 * time.Hour}, {'D', 24 * time.Hour}}
	timeUnits = []durationUnit{{'H', time.Hour}, {'M', time.Minute}, {'S', time.Second}}
)

func parseDuration(s string) (time.Duration, error) {
	rest, ok := strings.CutPrefix(s, "P")
	if !ok || rest == "" {
		return 0, fmt.Errorf("%w: %q", ErrBadDuration, s)
	}
	date, clock, hasT := strings.Cut(rest, "T")
	if hasT && clock == "" {
		return 0, fmt.Errorf("%w: %q has an empty time part", ErrBadDuration, s)
	}
	d1, err := sumUnits(date, dateUnits)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", err, s)
	}
	d2, err := sumUnits(clock, timeUnits)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", err, s)
	}
	return d1 + d2, nil
}

// sumUnits consumes <number><designator> pairs. Designators must follow
// the order of units and appear at most once.
func sumUnits(s string, units []durationUnit) (time.Duration, error) {
	var total time.Duration
	for s != "" {
		i := strings.IndexFunc(s, func(r rune) bool {
			return (r < '0' || r > '9') && r != '.' && r != ','
		})
		if i <= 0 {
			return 0, ErrBadDuration
		}
		for len(units) > 0 && units[0].designator != s[i] {
			units = units[1:]
		}
		if len(units) == 0 {
			return 0, ErrBadDuration
		}
		v, err := strconv.ParseFloat(strings.Replace(s[:i], ",", ".", 1), 64)
		if err != nil {
			return 0, ErrBadDuration
		}
		total += time.Duration(v * float64(units[0].size))
		units = units[1:]
		s = s[i+1:]
	}
	return total, nil
}
