package reminders

import (
	"fmt"
	"time"

	"github.com/shajaurahman10/remindly-pay-flow/internal/clients"
)

// Job is a single planned reminder. Jobs are unique per
// (ClientID, ScheduledAt); regeneration is a set union, never a duplicate.
type Job struct {
	ClientID     string     `json:"client_id"`
	ScheduledAt  time.Time  `json:"scheduled_at"`
	OffsetLabel  string     `json:"offset_label"`
	Dispatched   bool       `json:"dispatched"`
	Attempts     int        `json:"attempts"`
	LastError    string     `json:"last_error,omitempty"`
	DispatchedAt *time.Time `json:"dispatched_at,omitempty"`
}

// Key returns the uniqueness key for the job.
func (j Job) Key() string {
	return j.ClientID + "|" + j.ScheduledAt.UTC().Format(time.RFC3339)
}

// PlanJobs computes the reminder instants for a client's payment window.
// Offsets are day counts measured back from the window end; an instant that
// would land before the window start is clamped to the start. Duplicate
// offsets collapse onto the same instant.
func PlanJobs(c *clients.Client, offsetsDays []int) []Job {
	if c == nil || len(offsetsDays) == 0 {
		return nil
	}

	seen := make(map[time.Time]struct{}, len(offsetsDays))
	jobs := make([]Job, 0, len(offsetsDays))
	for _, offset := range offsetsDays {
		if offset < 0 {
			continue
		}
		at := dateOnly(c.WindowEnd).AddDate(0, 0, -offset)
		if start := dateOnly(c.WindowStart); at.Before(start) {
			at = start
		}
		if _, dup := seen[at]; dup {
			continue
		}
		seen[at] = struct{}{}
		jobs = append(jobs, Job{
			ClientID:    c.ID,
			ScheduledAt: at,
			OffsetLabel: offsetLabel(offset),
		})
	}
	return jobs
}

func offsetLabel(days int) string {
	if days == 0 {
		return "due_date"
	}
	return fmt.Sprintf("%dd_before", days)
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
