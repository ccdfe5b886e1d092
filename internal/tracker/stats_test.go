package tracker

import (
	"context"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
)

func completedOn(p Priority, y int, m time.Month, d int) Job {
	t := time.Date(y, m, d, 15, 0, 0, 0, time.UTC)
	return Job{Priority: p, CompletedDate: &t}
}

func TestComputeStats(t *testing.T) {
	c := qt.New(t)
	jobs := []Job{
		completedOn(PriorityHigh, 2024, time.March, 3),   // Sunday
		completedOn(PriorityLow, 2024, time.March, 9),    // Saturday, same week
		completedOn(PriorityLow, 2024, time.March, 10),   // next Sunday
		completedOn(PriorityMedium, 2023, time.December, 31),
		{Priority: PriorityHigh},
	}
	tasks := []Task{{Status: StatusPending}, {Status: StatusCompleted}, {Status: StatusCompleted}}

	s := ComputeStats(jobs, tasks, PeriodWeekly, time.UTC)
	c.Assert(s.TotalJobs, qt.Equals, 5)
	c.Assert(s.CompletedJobs, qt.Equals, 4)
	c.Assert(s.CurrentJobs, qt.Equals, 1)
	c.Assert(s.CompletionRate, qt.Equals, 80)
	c.Assert(s.Priorities, qt.DeepEquals, map[Priority]int{PriorityHigh: 2, PriorityMedium: 1, PriorityLow: 2})
	c.Assert(s.TaskStatuses, qt.DeepEquals, map[Status]int{StatusPending: 1, StatusInProgress: 0, StatusCompleted: 2})

	var labels []string
	var counts []int
	for _, p := range s.Completions {
		labels = append(labels, p.Period)
		counts = append(counts, p.Count)
	}
	c.Assert(labels, qt.DeepEquals, []string{"Week of Dec 31, 2023", "Week of Mar 3, 2024", "Week of Mar 10, 2024"})
	c.Assert(counts, qt.DeepEquals, []int{1, 2, 1})
}

func TestComputeStatsPeriods(t *testing.T) {
	c := qt.New(t)
	jobs := []Job{
		completedOn(PriorityLow, 2024, time.March, 3),
		completedOn(PriorityLow, 2024, time.March, 9),
		completedOn(PriorityLow, 2023, time.December, 31),
	}
	tests := []struct {
		period Period
		want   []string
	}{
		{PeriodDaily, []string{"Dec 31, 2023", "Mar 3, 2024", "Mar 9, 2024"}},
		{PeriodMonthly, []string{"Dec 2023", "Mar 2024"}},
		{PeriodYearly, []string{"2023", "2024"}},
	}
	for _, test := range tests {
		s := ComputeStats(jobs, nil, test.period, nil)
		var labels []string
		for _, p := range s.Completions {
			labels = append(labels, p.Period)
		}
		c.Assert(labels, qt.DeepEquals, test.want, qt.Commentf("period %s", test.period))
	}
}

func TestComputeStatsEmpty(t *testing.T) {
	c := qt.New(t)
	s := ComputeStats(nil, nil, PeriodMonthly, time.UTC)
	c.Assert(s.CompletionRate, qt.Equals, 0)
	c.Assert(s.Completions, qt.HasLen, 0)
}

func TestParsePeriod(t *testing.T) {
	c := qt.New(t)
	p, err := ParsePeriod("")
	c.Assert(err, qt.IsNil)
	c.Assert(p, qt.Equals, PeriodMonthly)
	p, err = ParsePeriod("weekly")
	c.Assert(err, qt.IsNil)
	c.Assert(p, qt.Equals, PeriodWeekly)
	_, err = ParsePeriod("hourly")
	c.Assert(IsValidation(err), qt.IsTrue)
}

func TestStatsService(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	f := newJobFixture(c)
	tasks := newTaskRepo()

	fields := culvert()
	fields.CompletedDate = Some("2024-03-05")
	_, err := f.repo.CreateJob(ctx, fields)
	c.Assert(err, qt.IsNil)
	_, err = tasks.CreateTask(ctx, TaskFields{Title: Some("Inspect")})
	c.Assert(err, qt.IsNil)

	svc := NewStatsService(f.store, tasks.store, time.UTC)
	s, err := svc.Stats(ctx, PeriodMonthly)
	c.Assert(err, qt.IsNil)
	c.Assert(s.CompletedJobs, qt.Equals, 1)
	c.Assert(s.TotalTasks, qt.Equals, 1)
	c.Assert(s.Completions, qt.DeepEquals, []PeriodCount{{
		Period: "Mar 2024",
		Start:  time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		Count:  1,
	}})
}
