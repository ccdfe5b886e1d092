package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/juju/gnuflag"

	"github.com/kidandcat/jobtracker/internal/tracker"
)

type taskFlags struct {
	f      *gnuflag.FlagSet
	values map[string]*string
}

var taskFlagNames = []struct{ name, usage string }{
	{"title", "task title"},
	{"description", "free text (empty clears)"},
	{"due", "due date, YYYY-MM-DD (empty clears)"},
	{"priority", "High, Medium or Low"},
	{"status", `"Pending", "In Progress" or "Completed"`},
	{"assignee", "person the task is assigned to"},
	{"job", "related job id"},
}

func (t *taskFlags) set(f *gnuflag.FlagSet) {
	t.f = f
	t.values = map[string]*string{}
	for _, fl := range taskFlagNames {
		t.values[fl.name] = f.String(fl.name, "", fl.usage)
	}
}

func (t *taskFlags) fields() tracker.TaskFields {
	given := visited(t.f)
	opt := func(name string) tracker.Optional[string] {
		if !given[name] {
			return tracker.Optional[string]{}
		}
		return tracker.Some(*t.values[name])
	}
	return tracker.TaskFields{
		Title:       opt("title"),
		Description: opt("description"),
		DueDate:     opt("due"),
		Priority:    opt("priority"),
		Status:      opt("status"),
		AssignedTo:  opt("assignee"),
		JobID:       opt("job"),
	}
}

type listTasksCommand struct{}

func (*listTasksCommand) Info() info {
	return info{Name: "tasks", Purpose: "list tasks, newest first"}
}

func (*listTasksCommand) SetFlags(*gnuflag.FlagSet) {}

func (*listTasksCommand) Init(args []string) error { return noArgs(args) }

func (*listTasksCommand) Run(ctx *cmdContext) error {
	tasks, err := ctx.client.ListTasks(ctx)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(ctx.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tSTATUS\tPRIORITY\tDUE\tASSIGNED")
	for _, t := range tasks {
		due := ""
		if t.DueDate != nil {
			due = t.DueDate.Format("2006-01-02")
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", t.ID.Hex(), t.Title, t.Status, t.Priority, due, t.AssignedTo)
	}
	return w.Flush()
}

type showTaskCommand struct {
	id string
}

func (*showTaskCommand) Info() info {
	return info{Name: "show-task", Args: "<task id>", Purpose: "show a task"}
}

func (*showTaskCommand) SetFlags(*gnuflag.FlagSet) {}

func (c *showTaskCommand) Init(args []string) (err error) {
	c.id, err = oneArg(args, "task id")
	return err
}

func (c *showTaskCommand) Run(ctx *cmdContext) error {
	task, err := ctx.client.GetTask(ctx, c.id)
	if err != nil {
		return err
	}
	return ctx.printJSON(task)
}

type addTaskCommand struct {
	flags taskFlags
}

func (*addTaskCommand) Info() info {
	return info{Name: "add-task", Purpose: "create a task"}
}

func (c *addTaskCommand) SetFlags(f *gnuflag.FlagSet) { c.flags.set(f) }

func (*addTaskCommand) Init(args []string) error { return noArgs(args) }

func (c *addTaskCommand) Run(ctx *cmdContext) error {
	task, err := ctx.client.CreateTask(ctx, c.flags.fields())
	if err != nil {
		return err
	}
	return ctx.printJSON(task)
}

type updateTaskCommand struct {
	id    string
	flags taskFlags
}

func (*updateTaskCommand) Info() info {
	return info{Name: "update-task", Args: "<task id>", Purpose: "change fields of a task"}
}

func (c *updateTaskCommand) SetFlags(f *gnuflag.FlagSet) { c.flags.set(f) }

func (c *updateTaskCommand) Init(args []string) (err error) {
	c.id, err = oneArg(args, "task id")
	return err
}

func (c *updateTaskCommand) Run(ctx *cmdContext) error {
	task, err := ctx.client.UpdateTask(ctx, c.id, c.flags.fields())
	if err != nil {
		return err
	}
	return ctx.printJSON(task)
}

type removeTaskCommand struct {
	id string
}

func (*removeTaskCommand) Info() info {
	return info{Name: "remove-task", Args: "<task id>", Purpose: "delete a task"}
}

func (*removeTaskCommand) SetFlags(*gnuflag.FlagSet) {}

func (c *removeTaskCommand) Init(args []string) (err error) {
	c.id, err = oneArg(args, "task id")
	return err
}

func (c *removeTaskCommand) Run(ctx *cmdContext) error {
	if err := ctx.client.DeleteTask(ctx, c.id); err != nil {
		return err
	}
	fmt.Fprintf(ctx.stdout, "removed task %s\n", c.id)
	return nil
}
