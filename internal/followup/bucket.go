// Package followup classifies a customer's next scheduled follow-up into one
// mutually exclusive due bucket relative to "now".
package followup

import "time"

type Bucket string

const (
	BucketNoFollowUp        Bucket = "no_follow_up"
	BucketOverdue           Bucket = "overdue"
	BucketDueToday          Bucket = "due_today"
	BucketDueTomorrow       Bucket = "due_tomorrow"
	BucketDueThisWeek       Bucket = "due_this_week"
	BucketDueThisMonth      Bucket = "due_this_month"
	BucketUnscheduledFuture Bucket = "unscheduled_future"
)

// Buckets lists every bucket in evaluation order.
func Buckets() []Bucket {
	return []Bucket{
		BucketNoFollowUp,
		BucketOverdue,
		BucketDueToday,
		BucketDueTomorrow,
		BucketDueThisWeek,
		BucketDueThisMonth,
		BucketUnscheduledFuture,
	}
}

// Classify assigns exactly one bucket. Rules are evaluated in order, first
// match wins:
//
//	nil                       -> no_follow_up
//	before today              -> overdue
//	today                     -> due_today
//	tomorrow                  -> due_tomorrow
//	(tomorrow, end of week]   -> due_this_week
//	(end of week, month end]  -> due_this_month
//	beyond this month         -> unscheduled_future
//
// The week ends on the upcoming Sunday (weekday index Sunday=0); the month
// ends on the last calendar day of now's month. All comparisons use civil
// dates in UTC.
func Classify(next *time.Time, now time.Time) Bucket {
	if next == nil {
		return BucketNoFollowUp
	}

	today := floorDay(now)
	target := floorDay(*next)

	if target.Before(today) {
		return BucketOverdue
	}
	if target.Equal(today) {
		return BucketDueToday
	}

	tomorrow := today.AddDate(0, 0, 1)
	if target.Equal(tomorrow) {
		return BucketDueTomorrow
	}

	endOfWeek := today.AddDate(0, 0, 7-int(today.Weekday()))
	if target.After(today) && !target.After(endOfWeek) {
		return BucketDueThisWeek
	}

	endOfMonth := lastDayOfMonth(today)
	if target.After(endOfWeek) && !target.After(endOfMonth) {
		return BucketDueThisMonth
	}

	return BucketUnscheduledFuture
}

func floorDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func lastDayOfMonth(day time.Time) time.Time {
	return time.Date(day.Year(), day.Month()+1, 0, 0, 0, 0, 0, time.UTC)
}
