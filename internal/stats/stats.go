package stats

import (
	"context"
	"math"
	"time"

	"classtrack/internal/attendance"
)

// SessionCounter supplies the global session count.
type SessionCounter interface {
	Count(ctx context.Context) (int, error)
}

// AttendanceSource supplies a user's attendance, newest first, with session
// details resolved.
type AttendanceSource interface {
	ListByUser(ctx context.Context, userID string) ([]attendance.UserEntry, error)
}

// WeekBucket is one week of the trailing breakdown. Absent is always 0:
// attributing per-week absences would require knowing which sessions applied
// to the user's group, which the data model cannot answer, so only attended
// counts are reported.
type WeekBucket struct {
	Week     string `json:"week"`
	Attended int    `json:"attended"`
	Absent   int    `json:"absent"`
}

// Stats is the derived per-user attendance summary.
type Stats struct {
	TotalSessions     int                     `json:"total_sessions"`
	AttendanceCount   int                     `json:"attendance_count"`
	AbsenceCount      int                     `json:"absence_count"`
	AttendanceRate    int                     `json:"attendance_rate"`
	WeeklyBreakdown   []WeekBucket            `json:"weekly_breakdown"`
	RecentAttendances []attendance.UserEntry  `json:"recent_attendances"`
}

const (
	trailingWeeks = 8
	recentLimit   = 10
)

// Aggregator derives attendance statistics. Pure reads; safe to call
// repeatedly and tolerant of an empty system.
type Aggregator struct {
	sessions SessionCounter
	ledger   AttendanceSource
	now      func() time.Time
}

// NewAggregator creates an aggregator.
func NewAggregator(sessions SessionCounter, ledger AttendanceSource) *Aggregator {
	return &Aggregator{sessions: sessions, ledger: ledger, now: time.Now}
}

// Compute derives the summary for one user.
func (a *Aggregator) Compute(ctx context.Context, userID string) (Stats, error) {
	total, err := a.sessions.Count(ctx)
	if err != nil {
		return Stats{}, err
	}
	entries, err := a.ledger.ListByUser(ctx, userID)
	if err != nil {
		return Stats{}, err
	}

	attended := len(entries)
	absence := total - attended
	if absence < 0 {
		absence = 0
	}
	rate := 0
	if total > 0 {
		rate = int(math.Round(100 * float64(attended) / float64(total)))
	}

	recent := entries
	if len(recent) > recentLimit {
		recent = recent[:recentLimit]
	}

	return Stats{
		TotalSessions:     total,
		AttendanceCount:   attended,
		AbsenceCount:      absence,
		AttendanceRate:    rate,
		WeeklyBreakdown:   weeklyBreakdown(entries, a.now()),
		RecentAttendances: recent,
	}, nil
}

// weeklyBreakdown buckets attendance into the trailing 8 Monday-aligned
// weeks, labeled by the Monday's date.
func weeklyBreakdown(entries []attendance.UserEntry, now time.Time) []WeekBucket {
	buckets := make([]WeekBucket, 0, trailingWeeks)
	index := make(map[string]int, trailingWeeks)
	for i := trailingWeeks - 1; i >= 0; i-- {
		label := weekLabel(now.AddDate(0, 0, -7*i))
		index[label] = len(buckets)
		buckets = append(buckets, WeekBucket{Week: label})
	}
	for _, e := range entries {
		if i, ok := index[weekLabel(e.ScannedAt)]; ok {
			buckets[i].Attended++
		}
	}
	return buckets
}

// weekLabel returns the label of the Monday starting t's week, e.g. "Jan 2".
func weekLabel(t time.Time) string {
	offset := int(time.Monday - t.Weekday())
	if t.Weekday() == time.Sunday {
		offset = -6
	}
	return t.AddDate(0, 0, offset).Format("Jan 2")
}
