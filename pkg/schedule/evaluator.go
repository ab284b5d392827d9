// Package schedule computes fire times for cron expressions and coarse
// calendar frequencies. Evaluation is pure: callers inject the reference time.
package schedule

import (
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// Spec is a firing rule: a standard 5-field cron expression or a coarse
// calendar frequency. Exactly one should be set; cron wins when both are.
type Spec struct {
	Cron      string `json:"cron,omitempty"`
	Frequency string `json:"frequency,omitempty"`
}

// Coarse frequencies.
const (
	FrequencyDaily   = "daily"
	FrequencyWeekly  = "weekly"
	FrequencyMonthly = "monthly"
)

// ErrInvalidScheduleSpec is returned when a spec carries neither rule, the
// cron expression does not parse, or the timezone is unrecognized.
var ErrInvalidScheduleSpec = errors.New("invalid schedule spec")

// standard 5-field parser: minute hour day month weekday.
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// NextFireTime returns the earliest fire time strictly after referenceTime,
// evaluated in the given timezone and returned as an absolute instant in UTC.
// A referenceTime exactly on a fire time yields the following occurrence,
// never the same instant.
func NextFireTime(spec Spec, timezone string, referenceTime time.Time) (time.Time, error) {
	loc, err := loadLocation(timezone)
	if err != nil {
		return time.Time{}, err
	}

	local := referenceTime.In(loc)

	if spec.Cron != "" {
		parsed, err := cronParser.Parse(spec.Cron)
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: cron %q: %w", ErrInvalidScheduleSpec, spec.Cron, err)
		}

		return parsed.Next(local).UTC(), nil
	}

	if spec.Frequency != "" {
		next, err := nextByFrequency(spec.Frequency, local)
		if err != nil {
			return time.Time{}, err
		}

		return next.UTC(), nil
	}

	return time.Time{}, fmt.Errorf("%w: neither cron nor frequency set", ErrInvalidScheduleSpec)
}

// Validate checks that the spec and timezone would evaluate without computing
// a fire time. Used at upsert time to surface definition errors synchronously.
func Validate(spec Spec, timezone string) error {
	if _, err := loadLocation(timezone); err != nil {
		return err
	}

	if spec.Cron != "" {
		if _, err := cronParser.Parse(spec.Cron); err != nil {
			return fmt.Errorf("%w: cron %q: %w", ErrInvalidScheduleSpec, spec.Cron, err)
		}

		return nil
	}

	if spec.Frequency != "" {
		switch spec.Frequency {
		case FrequencyDaily, FrequencyWeekly, FrequencyMonthly:
			return nil
		default:
			return fmt.Errorf("%w: unknown frequency %q", ErrInvalidScheduleSpec, spec.Frequency)
		}
	}

	return fmt.Errorf("%w: neither cron nor frequency set", ErrInvalidScheduleSpec)
}

// nextByFrequency applies fixed calendar offsets anchored to the reference
// time, preserving wall-clock time-of-day across DST edges via AddDate.
func nextByFrequency(frequency string, reference time.Time) (time.Time, error) {
	switch frequency {
	case FrequencyDaily:
		return reference.AddDate(0, 0, 1), nil
	case FrequencyWeekly:
		return reference.AddDate(0, 0, 7), nil
	case FrequencyMonthly:
		return reference.AddDate(0, 1, 0), nil
	default:
		return time.Time{}, fmt.Errorf("%w: unknown frequency %q", ErrInvalidScheduleSpec, frequency)
	}
}

func loadLocation(timezone string) (*time.Location, error) {
	if timezone == "" {
		return time.UTC, nil
	}

	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("%w: timezone %q: %w", ErrInvalidScheduleSpec, timezone, err)
	}

	return loc, nil
}
