// Package schedule computes publication times for batches of posts.
package schedule

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// Planner hands out publication slots.
type Planner interface {
	Slots(from time.Time, n int) []time.Time
}

// Interval spaces posts a fixed duration apart, the first one at from.
type Interval time.Duration

// Slots returns n times starting at from.
func (d Interval) Slots(from time.Time, n int) []time.Time {
	out := make([]time.Time, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, from.Add(time.Duration(i)*time.Duration(d)))
	}
	return out
}

// Cron places posts on consecutive firings of a cron schedule.
type Cron struct {
	sched cron.Schedule
}

// ParseCron accepts a standard 5-field expression or a descriptor like @daily.
func ParseCron(expr string) (*Cron, error) {
	sched, err := cron.ParseStandard(expr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse schedule %q: %w", expr, err)
	}
	return &Cron{sched: sched}, nil
}

// Slots returns the next n firings strictly after from.
func (c *Cron) Slots(from time.Time, n int) []time.Time {
	out := make([]time.Time, 0, n)
	next := from
	for i := 0; i < n; i++ {
		next = c.sched.Next(next)
		out = append(out, next)
	}
	return out
}

// New picks the cron planner when expr is set and the interval otherwise.
func New(expr string, interval time.Duration) (Planner, error) {
	if expr != "" {
		return ParseCron(expr)
	}
	if interval <= 0 {
		return nil, fmt.Errorf("schedule interval must be positive, got %s", interval)
	}
	return Interval(interval), nil
}
