package followup

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func ts(value string) time.Time {
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		panic(err)
	}
	return t
}

func tsPtr(value string) *time.Time {
	t := ts(value)
	return &t
}

func TestClassify(t *testing.T) {
	// Monday afternoon. Week ends Sunday 2025-03-16, month ends 2025-03-31.
	now := ts("2025-03-10T15:00:00Z")

	tests := []struct {
		name string
		next *time.Time
		want Bucket
	}{
		{"nil is no follow-up", nil, BucketNoFollowUp},
		{"yesterday is overdue", tsPtr("2025-03-09T09:00:00Z"), BucketOverdue},
		{"last month is overdue", tsPtr("2025-02-27T23:59:00Z"), BucketOverdue},
		{"earlier today is due today", tsPtr("2025-03-10T08:00:00Z"), BucketDueToday},
		{"later today is due today", tsPtr("2025-03-10T23:30:00Z"), BucketDueToday},
		{"tomorrow morning is due tomorrow", tsPtr("2025-03-11T09:00:00Z"), BucketDueTomorrow},
		{"wednesday is due this week", tsPtr("2025-03-12T10:00:00Z"), BucketDueThisWeek},
		{"sunday is still this week", tsPtr("2025-03-16T23:00:00Z"), BucketDueThisWeek},
		{"next monday is due this month", tsPtr("2025-03-17T00:00:00Z"), BucketDueThisMonth},
		{"march 31 is due this month", tsPtr("2025-03-31T12:00:00Z"), BucketDueThisMonth},
		{"april 1 is beyond this month", tsPtr("2025-04-01T00:00:00Z"), BucketUnscheduledFuture},
		{"next year is beyond this month", tsPtr("2026-01-05T00:00:00Z"), BucketUnscheduledFuture},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.next, now))
		})
	}
}

func TestClassifySundayWeekBoundary(t *testing.T) {
	// On a Sunday the week ends seven days out, per the Sunday=0 index.
	now := ts("2025-03-16T10:00:00Z")

	assert.Equal(t, BucketDueTomorrow, Classify(tsPtr("2025-03-17T08:00:00Z"), now))
	assert.Equal(t, BucketDueThisWeek, Classify(tsPtr("2025-03-23T08:00:00Z"), now))
	assert.Equal(t, BucketDueThisMonth, Classify(tsPtr("2025-03-24T08:00:00Z"), now))
}

func TestClassifyWeekCrossingMonthEnd(t *testing.T) {
	// Friday 2025-01-31: the week runs into February, so nothing can land in
	// due_this_month and later dates fall straight through.
	now := ts("2025-01-31T09:00:00Z")

	assert.Equal(t, BucketDueToday, Classify(tsPtr("2025-01-31T18:00:00Z"), now))
	assert.Equal(t, BucketDueTomorrow, Classify(tsPtr("2025-02-01T09:00:00Z"), now))
	assert.Equal(t, BucketDueThisWeek, Classify(tsPtr("2025-02-02T09:00:00Z"), now))
	assert.Equal(t, BucketUnscheduledFuture, Classify(tsPtr("2025-02-03T09:00:00Z"), now))
}

func TestClassifyIsExhaustiveAndDisjoint(t *testing.T) {
	now := ts("2025-03-10T15:00:00Z")
	known := make(map[Bucket]bool)
	for _, b := range Buckets() {
		known[b] = true
	}

	// Every calendar day across a two-year window maps to exactly one
	// declared bucket.
	day := ts("2024-06-01T00:00:00Z")
	for i := 0; i < 730; i++ {
		next := day.AddDate(0, 0, i)
		got := Classify(&next, now)
		assert.True(t, known[got], "day %s produced unknown bucket %s", next, got)
	}

	assert.True(t, known[Classify(nil, now)])
}
