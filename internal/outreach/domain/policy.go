package domain

import (
	"sort"
	"strings"
	"time"
)

// Policy is the immutable outbound-contact policy: which local hours are safe
// to call, how retries behave inside a call block, and when a short completed
// call still counts as answered. One value is built at startup from config
// and shared by the dispatcher and the call-outcome handler, so both always
// apply the same backoff table.
type Policy struct {
	// SafeHours are the local hours (lead's zone) during which calls may be
	// placed, sorted ascending.
	SafeHours []int
	// SameBlockDelay is the gap between retries inside one call block.
	SameBlockDelay time.Duration
	// SameBlockMaxRetries is the number of short retries after the first
	// attempt of a block. With 2, a block holds three attempts total.
	SameBlockMaxRetries int
	// NextDayStartHour is the local hour the cycle restarts at after the
	// last block of the day.
	NextDayStartHour int
	// AnswerDurationThreshold separates an answered call from a pickup-and-
	// hang-up. Completed calls under it normalize to rejected.
	AnswerDurationThreshold time.Duration
}

// DefaultPolicy returns the production policy: 9am/noon/7pm local blocks,
// three attempts per block five minutes apart, 10-second answer threshold.
func DefaultPolicy() Policy {
	return Policy{
		SafeHours:               []int{9, 12, 19},
		SameBlockDelay:          5 * time.Minute,
		SameBlockMaxRetries:     2,
		NextDayStartHour:        9,
		AnswerDurationThreshold: 10 * time.Second,
	}
}

// Normalize sorts the safe hours and fills zero fields from the defaults.
// Call once after constructing a Policy from config.
func (p Policy) Normalize() Policy {
	def := DefaultPolicy()
	if len(p.SafeHours) == 0 {
		p.SafeHours = def.SafeHours
	}
	sorted := make([]int, len(p.SafeHours))
	copy(sorted, p.SafeHours)
	sort.Ints(sorted)
	p.SafeHours = sorted

	if p.SameBlockDelay <= 0 {
		p.SameBlockDelay = def.SameBlockDelay
	}
	if p.SameBlockMaxRetries <= 0 {
		p.SameBlockMaxRetries = def.SameBlockMaxRetries
	}
	if p.NextDayStartHour <= 0 {
		p.NextDayStartHour = def.NextDayStartHour
	}
	if p.AnswerDurationThreshold <= 0 {
		p.AnswerDurationThreshold = def.AnswerDurationThreshold
	}
	return p
}

// InWindow reports whether now falls inside a safe call hour in loc.
// The conversion goes through the real location so DST shifts are honored.
func (p Policy) InWindow(now time.Time, loc *time.Location) bool {
	hour := now.In(loc).Hour()
	for _, h := range p.SafeHours {
		if h == hour {
			return true
		}
	}
	return false
}

// NextWindow returns the absolute time of the next safe call hour strictly
// after now. The target is computed by hour-delta arithmetic against the top
// of the current hour, never by formatting and re-parsing a wall-clock
// string, so the result is an unambiguous instant even near DST boundaries.
func (p Policy) NextWindow(now time.Time, loc *time.Location) time.Time {
	local := now.In(loc)
	hour := local.Hour()

	delta := -1
	for _, h := range p.SafeHours {
		if h > hour {
			delta = h - hour
			break
		}
	}
	if delta < 0 {
		// Past the last block of the day; roll to tomorrow's start hour.
		delta = 24 - hour + p.NextDayStartHour
	}

	topOfHour := now.Add(-(time.Duration(local.Minute())*time.Minute +
		time.Duration(local.Second())*time.Second +
		time.Duration(local.Nanosecond())))
	return topOfHour.Add(time.Duration(delta) * time.Hour).UTC()
}

// NextAttempt computes the follow-up attempt time after an unanswered or
// rejected call, given the number of retries already scheduled in the
// current block. It returns the attempt time, the new in-block retry count,
// and whether the attempt rolled over to a new local day (which resets the
// daily attempt counter).
func (p Policy) NextAttempt(now time.Time, loc *time.Location, retryCountBlock int) (time.Time, int, bool) {
	if retryCountBlock < p.SameBlockMaxRetries {
		return now.Add(p.SameBlockDelay).UTC(), retryCountBlock + 1, false
	}

	next := p.NextWindow(now, loc)
	rolled := next.In(loc).YearDay() != now.In(loc).YearDay() ||
		next.In(loc).Year() != now.In(loc).Year()
	return next, 0, rolled
}

// NormalizeOutcome maps a raw vendor delivery status plus call duration onto
// the closed outcome set. A completed call shorter than the answer threshold
// counts as rejected, not successful.
func (p Policy) NormalizeOutcome(rawStatus string, duration time.Duration) CallOutcome {
	switch strings.ToLower(strings.TrimSpace(rawStatus)) {
	case "completed", "ended", "answered":
		if duration >= p.AnswerDurationThreshold {
			return OutcomeSuccessful
		}
		return OutcomeRejected
	case "busy", "declined", "cancelled", "canceled", "rejected":
		return OutcomeRejected
	default:
		// no-answer, failed, error, and anything the vendor adds later.
		return OutcomeNoAnswer
	}
}
