package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/juju/gnuflag"

	"github.com/kidandcat/jobtracker/internal/tracker"
)

// jobFlags maps command line flags to the fields of a create or update.
// Only flags given on the command line are sent.
type jobFlags struct {
	f      *gnuflag.FlagSet
	values map[string]*string
}

var jobFlagNames = []struct{ name, usage string }{
	{"customer", "customer name"},
	{"name", "job name"},
	{"number", "job number"},
	{"pm", "project manager (empty clears)"},
	{"start", "start date, YYYY-MM-DD"},
	{"finished", "finished date (empty clears)"},
	{"completed", "completed date (empty clears)"},
	{"priority", "High, Medium or Low"},
}

func (j *jobFlags) set(f *gnuflag.FlagSet) {
	j.f = f
	j.values = map[string]*string{}
	for _, fl := range jobFlagNames {
		j.values[fl.name] = f.String(fl.name, "", fl.usage)
	}
}

func (j *jobFlags) fields() tracker.JobFields {
	given := visited(j.f)
	opt := func(name string) tracker.Optional[string] {
		if !given[name] {
			return tracker.Optional[string]{}
		}
		return tracker.Some(*j.values[name])
	}
	return tracker.JobFields{
		Customer:       opt("customer"),
		JobName:        opt("name"),
		JobNumber:      opt("number"),
		ProjectManager: opt("pm"),
		StartDate:      opt("start"),
		FinishedDate:   opt("finished"),
		CompletedDate:  opt("completed"),
		Priority:       opt("priority"),
	}
}

type listJobsCommand struct{}

func (*listJobsCommand) Info() info {
	return info{Name: "jobs", Purpose: "list jobs, newest first"}
}

func (*listJobsCommand) SetFlags(*gnuflag.FlagSet) {}

func (*listJobsCommand) Init(args []string) error { return noArgs(args) }

func (*listJobsCommand) Run(ctx *cmdContext) error {
	jobs, err := ctx.client.ListJobs(ctx)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(ctx.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNUMBER\tCUSTOMER\tNAME\tPRIORITY\tPM\tDOCS\tSTATUS")
	for _, j := range jobs {
		status := "current"
		if j.Completed() {
			status = "completed " + j.CompletedDate.Format("2006-01-02")
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
			j.ID.Hex(), j.JobNumber, j.Customer, j.JobName, j.Priority, j.ProjectManager, len(j.Documents), status)
	}
	return w.Flush()
}

type showJobCommand struct {
	id string
}

func (*showJobCommand) Info() info {
	return info{Name: "show-job", Args: "<job id>", Purpose: "show a job and its documents"}
}

func (*showJobCommand) SetFlags(*gnuflag.FlagSet) {}

func (c *showJobCommand) Init(args []string) (err error) {
	c.id, err = oneArg(args, "job id")
	return err
}

func (c *showJobCommand) Run(ctx *cmdContext) error {
	job, err := ctx.client.GetJob(ctx, c.id)
	if err != nil {
		return err
	}
	fmt.Fprintf(ctx.stdout, "%s  %s / %s (%s)\n", job.ID.Hex(), job.Customer, job.JobName, job.JobNumber)
	fmt.Fprintf(ctx.stdout, "priority: %s\n", job.Priority)
	fmt.Fprintf(ctx.stdout, "started:  %s\n", job.StartDate.Format("2006-01-02"))
	if job.ProjectManager != "" {
		fmt.Fprintf(ctx.stdout, "pm:       %s\n", job.ProjectManager)
	}
	if job.Completed() {
		fmt.Fprintf(ctx.stdout, "completed: %s\n", job.CompletedDate.Format("2006-01-02"))
	}
	if len(job.Documents) == 0 {
		return nil
	}
	fmt.Fprintln(ctx.stdout)
	w := tabwriter.NewWriter(ctx.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "FILENAME\tNAME\tSIZE\tPAGES\tUPLOADED")
	for _, d := range job.Documents {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n",
			d.Filename, d.OriginalName, humanize.Bytes(uint64(d.Size)), d.Pages, humanize.Time(d.UploadedAt))
	}
	return w.Flush()
}

type addJobCommand struct {
	flags jobFlags
}

func (*addJobCommand) Info() info {
	return info{Name: "add-job", Purpose: "create a job"}
}

func (c *addJobCommand) SetFlags(f *gnuflag.FlagSet) { c.flags.set(f) }

func (*addJobCommand) Init(args []string) error { return noArgs(args) }

func (c *addJobCommand) Run(ctx *cmdContext) error {
	job, err := ctx.client.CreateJob(ctx, c.flags.fields())
	if err != nil {
		return err
	}
	return ctx.printJSON(job)
}

type updateJobCommand struct {
	id    string
	flags jobFlags
}

func (*updateJobCommand) Info() info {
	return info{Name: "update-job", Args: "<job id>", Purpose: "change fields of a job"}
}

func (c *updateJobCommand) SetFlags(f *gnuflag.FlagSet) { c.flags.set(f) }

func (c *updateJobCommand) Init(args []string) (err error) {
	c.id, err = oneArg(args, "job id")
	return err
}

func (c *updateJobCommand) Run(ctx *cmdContext) error {
	job, err := ctx.client.UpdateJob(ctx, c.id, c.flags.fields())
	if err != nil {
		return err
	}
	return ctx.printJSON(job)
}

type removeJobCommand struct {
	id string
}

func (*removeJobCommand) Info() info {
	return info{Name: "remove-job", Args: "<job id>", Purpose: "delete a job and its documents"}
}

func (*removeJobCommand) SetFlags(*gnuflag.FlagSet) {}

func (c *removeJobCommand) Init(args []string) (err error) {
	c.id, err = oneArg(args, "job id")
	return err
}

func (c *removeJobCommand) Run(ctx *cmdContext) error {
	if err := ctx.client.DeleteJob(ctx, c.id); err != nil {
		return err
	}
	fmt.Fprintf(ctx.stdout, "removed job %s\n", c.id)
	return nil
}
