package tracker

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/juju/errors"
)

type Period string

const (
	PeriodDaily   Period = "daily"
	PeriodWeekly  Period = "weekly"
	PeriodMonthly Period = "monthly"
	PeriodYearly  Period = "yearly"
)

// ParsePeriod accepts the four period names; empty means monthly.
func ParsePeriod(s string) (Period, error) {
	switch p := Period(s); p {
	case "":
		return PeriodMonthly, nil
	case PeriodDaily, PeriodWeekly, PeriodMonthly, PeriodYearly:
		return p, nil
	}
	return "", &ValidationError{Fields: map[string]string{
		"period": "must be one of daily, weekly, monthly, yearly",
	}}
}

// start returns the beginning of the period containing t and its label.
// Weeks start on Sunday.
func (p Period) start(t time.Time) (time.Time, string) {
	y, m, d := t.Date()
	switch p {
	case PeriodDaily:
		s := time.Date(y, m, d, 0, 0, 0, 0, t.Location())
		return s, s.Format("Jan 2, 2006")
	case PeriodWeekly:
		s := time.Date(y, m, d-int(t.Weekday()), 0, 0, 0, 0, t.Location())
		return s, "Week of " + s.Format("Jan 2, 2006")
	case PeriodYearly:
		s := time.Date(y, time.January, 1, 0, 0, 0, 0, t.Location())
		return s, s.Format("2006")
	default:
		s := time.Date(y, m, 1, 0, 0, 0, 0, t.Location())
		return s, s.Format("Jan 2006")
	}
}

type PeriodCount struct {
	Period string    `json:"period"`
	Start  time.Time `json:"start"`
	Count  int       `json:"count"`
}

type Stats struct {
	Period         Period           `json:"period"`
	TotalJobs      int              `json:"totalJobs"`
	CurrentJobs    int              `json:"currentJobs"`
	CompletedJobs  int              `json:"completedJobs"`
	CompletionRate int              `json:"completionRate"`
	Priorities     map[Priority]int `json:"priorities"`
	TotalTasks     int              `json:"totalTasks"`
	TaskStatuses   map[Status]int   `json:"taskStatuses"`
	Completions    []PeriodCount    `json:"completions"`
}

// ComputeStats summarizes jobs and tasks. Completions are bucketed by the
// calendar of loc and returned oldest first.
func ComputeStats(jobs []Job, tasks []Task, period Period, loc *time.Location) Stats {
	if loc == nil {
		loc = time.UTC
	}
	s := Stats{
		Period:     period,
		TotalJobs:  len(jobs),
		TotalTasks: len(tasks),
		Priorities: map[Priority]int{
			PriorityHigh:   0,
			PriorityMedium: 0,
			PriorityLow:    0,
		},
		TaskStatuses: map[Status]int{
			StatusPending:    0,
			StatusInProgress: 0,
			StatusCompleted:  0,
		},
		Completions: []PeriodCount{},
	}

	buckets := map[time.Time]*PeriodCount{}
	for _, j := range jobs {
		if _, ok := s.Priorities[j.Priority]; ok {
			s.Priorities[j.Priority]++
		}
		if !j.Completed() {
			s.CurrentJobs++
			continue
		}
		s.CompletedJobs++
		start, label := period.start(j.CompletedDate.In(loc))
		b, ok := buckets[start]
		if !ok {
			b = &PeriodCount{Period: label, Start: start}
			buckets[start] = b
		}
		b.Count++
	}
	for _, t := range tasks {
		if _, ok := s.TaskStatuses[t.Status]; ok {
			s.TaskStatuses[t.Status]++
		}
	}
	if s.TotalJobs > 0 {
		s.CompletionRate = int(math.Round(float64(s.CompletedJobs) / float64(s.TotalJobs) * 100))
	}

	for _, b := range buckets {
		s.Completions = append(s.Completions, *b)
	}
	sort.Slice(s.Completions, func(i, k int) bool {
		return s.Completions[i].Start.Before(s.Completions[k].Start)
	})
	return s
}

// StatsService loads everything once per call and aggregates in memory.
type StatsService struct {
	jobs  JobStore
	tasks TaskStore
	loc   *time.Location
}

func NewStatsService(jobs JobStore, tasks TaskStore, loc *time.Location) *StatsService {
	return &StatsService{jobs: jobs, tasks: tasks, loc: loc}
}

func (s *StatsService) Stats(ctx context.Context, period Period) (Stats, error) {
	jobs, err := s.jobs.ListJobs(ctx)
	if err != nil {
		return Stats{}, errors.Annotate(err, "list jobs")
	}
	tasks, err := s.tasks.ListTasks(ctx)
	if err != nil {
		return Stats{}, errors.Annotate(err, "list tasks")
	}
	return ComputeStats(jobs, tasks, period, s.loc), nil
}
