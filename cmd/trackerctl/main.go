// Command trackerctl manages jobs, tasks and documents through the tracker
// HTTP API.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"

	"github.com/juju/gnuflag"

	"github.com/kidandcat/jobtracker/internal/client"
)

type info struct {
	Name    string
	Args    string
	Purpose string
}

type command interface {
	Info() info
	SetFlags(f *gnuflag.FlagSet)
	Init(args []string) error
	Run(ctx *cmdContext) error
}

type cmdContext struct {
	context.Context
	client *client.Client
	stdout io.Writer
	stderr io.Writer
}

func (c *cmdContext) printJSON(v any) error {
	enc := json.NewEncoder(c.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func commands() map[string]command {
	all := []command{
		&listJobsCommand{},
		&showJobCommand{},
		&addJobCommand{},
		&updateJobCommand{},
		&removeJobCommand{},
		&uploadCommand{},
		&downloadCommand{},
		&listTasksCommand{},
		&showTaskCommand{},
		&addTaskCommand{},
		&updateTaskCommand{},
		&removeTaskCommand{},
		&statsCommand{},
	}
	m := make(map[string]command, len(all))
	for _, c := range all {
		m[c.Info().Name] = c
	}
	return m
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

func usage(w io.Writer, cmds map[string]command) {
	fmt.Fprintln(w, "usage: trackerctl [--server URL] <command> [options] [args]")
	fmt.Fprintln(w, "\ncommands:")
	names := make([]string, 0, len(cmds))
	for name := range cmds {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		i := cmds[name].Info()
		fmt.Fprintf(w, "  %-12s %s\n", name, i.Purpose)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmds := commands()

	global := gnuflag.NewFlagSet("trackerctl", gnuflag.ContinueOnError)
	global.SetOutput(stderr)
	server := global.String("server", envOr("TRACKER_URL", "http://localhost:8080/api"), "API base URL")
	if err := global.Parse(false, args); err != nil {
		return 2
	}
	args = global.Args()
	if len(args) == 0 || args[0] == "help" {
		usage(stderr, cmds)
		return 2
	}

	cmd, ok := cmds[args[0]]
	if !ok {
		fmt.Fprintf(stderr, "unrecognized command: trackerctl %s\n", args[0])
		return 2
	}
	i := cmd.Info()
	f := gnuflag.NewFlagSet(i.Name, gnuflag.ContinueOnError)
	f.SetOutput(stderr)
	cmd.SetFlags(f)
	if err := f.Parse(true, args[1:]); err != nil {
		return 2
	}
	if err := cmd.Init(f.Args()); err != nil {
		fmt.Fprintf(stderr, "error: %v\nusage: trackerctl %s %s\n", err, i.Name, i.Args)
		return 2
	}

	cl, err := client.New(*server)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 2
	}
	if err := cmd.Run(&cmdContext{Context: ctx, client: cl, stdout: stdout, stderr: stderr}); err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// oneArg is the Init of commands taking a single id.
func oneArg(args []string, what string) (string, error) {
	switch len(args) {
	case 0:
		return "", fmt.Errorf("no %s specified", what)
	case 1:
		return args[0], nil
	}
	return "", fmt.Errorf("unrecognized args: %s", strings.Join(args[1:], " "))
}

func noArgs(args []string) error {
	if len(args) > 0 {
		return fmt.Errorf("unrecognized args: %s", strings.Join(args, " "))
	}
	return nil
}

// visited returns the names of the flags given on the command line.
func visited(f *gnuflag.FlagSet) map[string]bool {
	set := map[string]bool{}
	f.Visit(func(fl *gnuflag.Flag) { set[fl.Name] = true })
	return set
}
