package main

import (
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/juju/gnuflag"

	"github.com/kidandcat/jobtracker/internal/client"
	"github.com/kidandcat/jobtracker/internal/tracker"
)

type uploadCommand struct {
	jobID string
	paths []string
}

func (*uploadCommand) Info() info {
	return info{Name: "upload", Args: "<job id> <file>...", Purpose: "attach PDF files to a job"}
}

func (*uploadCommand) SetFlags(*gnuflag.FlagSet) {}

func (c *uploadCommand) Init(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("need a job id and at least one file")
	}
	c.jobID, c.paths = args[0], args[1:]
	return nil
}

func (c *uploadCommand) Run(ctx *cmdContext) error {
	files := make([]client.File, 0, len(c.paths))
	for _, p := range c.paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(p)))
		files = append(files, client.File{Name: filepath.Base(p), ContentType: ct, Data: data})
	}

	res, err := ctx.client.UploadFiles(ctx, c.jobID, files)
	if err != nil {
		return err
	}
	for _, d := range res.UploadedFiles {
		fmt.Fprintf(ctx.stdout, "%s  %s  %s\n", d.Filename, humanize.Bytes(uint64(d.Size)), d.OriginalName)
	}
	if skipped := len(files) - len(res.UploadedFiles); skipped > 0 {
		fmt.Fprintf(ctx.stderr, "%d file(s) were not PDFs and were skipped\n", skipped)
	}
	if res.Note != "" {
		fmt.Fprintln(ctx.stderr, res.Note)
	}
	return nil
}

type downloadCommand struct {
	jobID    string
	filename string
	output   string
}

func (*downloadCommand) Info() info {
	return info{Name: "download", Args: "<job id> <filename>", Purpose: "save a job document to disk"}
}

func (c *downloadCommand) SetFlags(f *gnuflag.FlagSet) {
	f.StringVar(&c.output, "o", "", "output path (default: the stored filename)")
	f.StringVar(&c.output, "output", "", "")
}

func (c *downloadCommand) Init(args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("need a job id and a filename")
	}
	c.jobID, c.filename = args[0], args[1]
	if c.output == "" {
		c.output = filepath.Base(c.filename)
	}
	return nil
}

func (c *downloadCommand) Run(ctx *cmdContext) (err error) {
	f, err := os.Create(c.output)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			os.Remove(c.output)
		}
	}()

	n, err := ctx.client.DownloadFile(ctx, c.jobID, c.filename, f)
	if err != nil {
		return err
	}
	fmt.Fprintf(ctx.stdout, "wrote %s to %s\n", humanize.Bytes(uint64(n)), c.output)
	return nil
}

var periodUnit = map[tracker.Period]string{
	tracker.PeriodDaily:   "day",
	tracker.PeriodWeekly:  "week",
	tracker.PeriodMonthly: "month",
	tracker.PeriodYearly:  "year",
}

type statsCommand struct {
	period string
}

func (*statsCommand) Info() info {
	return info{Name: "stats", Purpose: "show job and task statistics"}
}

func (c *statsCommand) SetFlags(f *gnuflag.FlagSet) {
	f.StringVar(&c.period, "period", "monthly", "daily, weekly, monthly or yearly")
}

func (*statsCommand) Init(args []string) error { return noArgs(args) }

func (c *statsCommand) Run(ctx *cmdContext) error {
	s, err := ctx.client.Stats(ctx, tracker.Period(c.period))
	if err != nil {
		return err
	}
	out := ctx.stdout
	fmt.Fprintf(out, "jobs:      %d (%d current, %d completed, %d%%)\n",
		s.TotalJobs, s.CurrentJobs, s.CompletedJobs, s.CompletionRate)
	fmt.Fprintf(out, "priority:  High %d, Medium %d, Low %d\n",
		s.Priorities[tracker.PriorityHigh], s.Priorities[tracker.PriorityMedium], s.Priorities[tracker.PriorityLow])
	fmt.Fprintf(out, "tasks:     %d (Pending %d, In Progress %d, Completed %d)\n",
		s.TotalTasks, s.TaskStatuses[tracker.StatusPending], s.TaskStatuses[tracker.StatusInProgress], s.TaskStatuses[tracker.StatusCompleted])
	if len(s.Completions) > 0 {
		fmt.Fprintf(out, "\ncompleted per %s:\n", periodUnit[s.Period])
		for _, p := range s.Completions {
			fmt.Fprintf(out, "  %-24s %d\n", p.Period, p.Count)
		}
	}
	return nil
}
