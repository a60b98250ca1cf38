// Command conductor drives release trains through their pipeline phases:
// prepare, build, conclude, distribute, or all of them with ship-it.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"text/tabwriter"

	"github.com/spf13/pflag"

	"github.com/spring-projects/spring-data-release-sub001/work"
)

// command is one CLI verb. The table below is the complete surface; there is
// no reflection and no nesting.
type command struct {
	name    string
	summary string
	usage   string
	run     func(ctx context.Context, a *app, args []string) error
}

var commands = []command{
	{
		name:    "prepare",
		summary: "Check out release branches and set release versions",
		usage:   "conductor prepare TRAIN MILESTONE",
		run:     runPrepare,
	},
	{
		name:    "build",
		summary: "Build all components in dependency order and stage their artifacts",
		usage:   "conductor build TRAIN MILESTONE",
		run:     runBuild,
	},
	{
		name:    "conclude",
		summary: "Tag the release and move development to the next version",
		usage:   "conductor conclude TRAIN MILESTONE",
		run:     runConclude,
	},
	{
		name:    "distribute",
		summary: "Promote staged artifacts and publish documentation",
		usage:   "conductor distribute TRAIN MILESTONE",
		run:     runDistribute,
	},
	{
		name:    "ship-it",
		summary: "Run every phase in sequence, stopping on the first failure",
		usage:   "conductor ship-it TRAIN MILESTONE",
		run:     runShipIt,
	},
	{
		name:    "resolve",
		summary: "Print the resolved component versions of an iteration",
		usage:   "conductor resolve TRAIN MILESTONE",
		run:     runResolve,
	},
	{
		name:    "catalog",
		summary: "List the configured release trains",
		usage:   "conductor catalog",
		run:     runCatalog,
	},
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	opts := defaultOptions()
	flags := pflag.NewFlagSet("conductor", pflag.ContinueOnError)
	flags.StringVar(&opts.catalogPath, "catalog", "", "catalog file (default: XDG config location)")
	flags.StringVar(&opts.workspaceDir, "workspace", opts.workspaceDir, "directory holding one checkout per component")
	flags.StringVar(&opts.stagingDir, "staging", opts.stagingDir, "local staging root")
	flags.IntVar(&opts.poolSize, "parallel", work.DefaultPoolSize(), "worker pool size for fan-out phases")
	flags.BoolVar(&opts.synchronous, "synchronous", false, "serialize all work, for deterministic runs")
	flags.BoolVar(&opts.verbose, "verbose", false, "enable debug logging")
	flags.StringVar(&opts.centralURL, "central-url", opts.centralURL, "base URL of the public release staging API")
	flags.StringVar(&opts.milestoneRepository, "milestone-repository", opts.milestoneRepository, "OCI repository prefix for milestone bundles")
	flags.StringVar(&opts.commercialBucket, "commercial-bucket", opts.commercialBucket, "S3 bucket of the commercial repository")
	flags.Usage = func() { printUsage(os.Stderr, flags) }

	if err := flags.Parse(args); err != nil {
		return err
	}
	rest := flags.Args()
	if len(rest) == 0 {
		printUsage(os.Stderr, flags)
		return fmt.Errorf("command required")
	}

	for _, cmd := range commands {
		if cmd.name != rest[0] {
			continue
		}
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		a, err := newApp(ctx, opts)
		if err != nil {
			return err
		}
		return cmd.run(ctx, a, rest[1:])
	}

	return fmt.Errorf("unknown command %q\n\nRun 'conductor --help' for usage", rest[0])
}

func printUsage(w io.Writer, flags *pflag.FlagSet) {
	fmt.Fprintln(w, "Usage: conductor [flags] COMMAND [args]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, cmd := range commands {
		fmt.Fprintf(tw, "  %s\t%s\n", cmd.name, cmd.summary)
	}
	tw.Flush()
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	fmt.Fprint(w, flags.FlagUsages())
}

// iterationArgs validates the TRAIN MILESTONE argument pair every phase
// command takes.
func iterationArgs(args []string, usage string) (trainName, milestoneName string, err error) {
	if len(args) != 2 {
		return "", "", fmt.Errorf("expected TRAIN MILESTONE arguments\n\nUsage: %s", usage)
	}
	return args[0], args[1], nil
}

func runPrepare(ctx context.Context, a *app, args []string) error {
	trainName, milestoneName, err := iterationArgs(args, "conductor prepare TRAIN MILESTONE")
	if err != nil {
		return err
	}
	release, err := a.release(trainName, milestoneName)
	if err != nil {
		return err
	}
	return a.pipeline.Prepare(ctx, release)
}

func runBuild(ctx context.Context, a *app, args []string) error {
	trainName, milestoneName, err := iterationArgs(args, "conductor build TRAIN MILESTONE")
	if err != nil {
		return err
	}
	release, err := a.release(trainName, milestoneName)
	if err != nil {
		return err
	}
	return a.pipeline.Build(ctx, release)
}

func runConclude(ctx context.Context, a *app, args []string) error {
	trainName, milestoneName, err := iterationArgs(args, "conductor conclude TRAIN MILESTONE")
	if err != nil {
		return err
	}
	release, err := a.release(trainName, milestoneName)
	if err != nil {
		return err
	}
	return a.pipeline.Conclude(ctx, release)
}

func runDistribute(ctx context.Context, a *app, args []string) error {
	trainName, milestoneName, err := iterationArgs(args, "conductor distribute TRAIN MILESTONE")
	if err != nil {
		return err
	}
	release, err := a.release(trainName, milestoneName)
	if err != nil {
		return err
	}

	// Staging repositories live for one process: distribution needs the
	// build's staging state, so it rebuilds unless run through ship-it.
	if err := a.pipeline.Build(ctx, release); err != nil {
		return err
	}
	return a.pipeline.Distribute(ctx, release)
}

func runShipIt(ctx context.Context, a *app, args []string) error {
	trainName, milestoneName, err := iterationArgs(args, "conductor ship-it TRAIN MILESTONE")
	if err != nil {
		return err
	}
	release, err := a.release(trainName, milestoneName)
	if err != nil {
		return err
	}
	return a.pipeline.ShipIt(ctx, release)
}

func runResolve(_ context.Context, a *app, args []string) error {
	trainName, milestoneName, err := iterationArgs(args, "conductor resolve TRAIN MILESTONE")
	if err != nil {
		return err
	}
	return a.printResolved(trainName, milestoneName)
}

func runCatalog(_ context.Context, a *app, args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("catalog takes no arguments")
	}
	return a.printCatalog()
}
