// Package main implements the message-runner CLI for draining the message
// queue on demand, outside the worker's schedule.
//
// Usage:
//
//	go run ./cmd/tools/message-runner --type=SEND_EMAIL
//	go run ./cmd/tools/message-runner --all
//	go run ./cmd/tools/message-runner --type=MAKE_PAYMENT --mark-processable
//	go run ./cmd/tools/message-runner --type=MAKE_PAYMENT --mark-processable --ids=a,b
//	go run ./cmd/tools/message-runner --list
//
// Configuration is read the same way as the worker (.env, SSM, environment).
// --mark-processable resets process_after to now so the next drain picks
// the messages up; add --process to drain the type straight away.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"
	"text/tabwriter"

	"benefitclaims/internal/app"
	"benefitclaims/internal/config"
	"benefitclaims/internal/messaging"
	"benefitclaims/internal/types"
)

type options struct {
	messageType     types.MessageType
	all             bool
	markProcessable bool
	process         bool
	ids             []string
	list            bool
}

var errUsage = errors.New("usage")

func parseOptions(args []string, stderr io.Writer) (options, error) {
	fs := flag.NewFlagSet("message-runner", flag.ContinueOnError)
	fs.SetOutput(stderr)

	typeFlag := fs.String("type", "", "Message type to drain (e.g. SEND_EMAIL)")
	allFlag := fs.Bool("all", false, "Drain every message type")
	markFlag := fs.Bool("mark-processable", false, "Make delayed messages of --type processable now")
	processFlag := fs.Bool("process", false, "With --mark-processable, drain the type afterwards")
	idsFlag := fs.String("ids", "", "Comma-separated message ids for --mark-processable")
	listFlag := fs.Bool("list", false, "List message types with pending counts and exit")

	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: message-runner [flags]\n\n")
		fmt.Fprintf(stderr, "Drain the benefit claims message queue on demand.\n\n")
		fmt.Fprintf(stderr, "Flags:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return options{}, err
	}

	opts := options{
		all:             *allFlag,
		markProcessable: *markFlag,
		process:         *processFlag,
		list:            *listFlag,
	}
	if *idsFlag != "" {
		for id := range strings.SplitSeq(*idsFlag, ",") {
			if id = strings.TrimSpace(id); id != "" {
				opts.ids = append(opts.ids, id)
			}
		}
	}
	if *typeFlag != "" {
		t, err := types.ParseMessageType(*typeFlag)
		if err != nil {
			return options{}, fmt.Errorf("unknown message type %q", *typeFlag)
		}
		opts.messageType = t
	}

	switch {
	case opts.list:
	case opts.all && opts.messageType != "":
		return options{}, fmt.Errorf("--all and --type are mutually exclusive")
	case opts.markProcessable && opts.messageType == "":
		return options{}, fmt.Errorf("--mark-processable requires --type")
	case !opts.all && opts.messageType == "":
		fs.Usage()
		return options{}, errUsage
	}
	return opts, nil
}

func main() {
	opts, err := parseOptions(os.Args[1:], os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		if !errors.Is(err, errUsage) {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		os.Exit(2)
	}

	if err := run(opts); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(opts options) error {
	cfg, err := config.LoadConfig(config.NewSSMProvider(os.Getenv("AWS_REGION")))
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	logger := app.NewLogger(cfg.LogLevel).With("service", "message-runner")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	worker, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer worker.Close()

	if opts.list {
		counts, err := worker.Messages.CountPending(ctx)
		if err != nil {
			return err
		}
		printPending(os.Stdout, counts)
		return nil
	}

	if opts.markProcessable {
		now := types.RealClock{}.Now()
		var n int64
		if len(opts.ids) > 0 {
			n, err = worker.Messages.MarkProcessable(ctx, opts.ids, now)
		} else {
			n, err = worker.Messages.MarkTypeProcessable(ctx, opts.messageType, now)
		}
		if err != nil {
			return fmt.Errorf("marking %s processable: %w", opts.messageType, err)
		}
		logger.Info("messages marked processable", "message_type", string(opts.messageType), "updated", n)
		if !opts.process {
			return nil
		}
	}

	if opts.all {
		results, err := worker.Scheduler.ProcessAll(ctx)
		printResults(os.Stdout, results)
		return err
	}

	result, err := worker.Scheduler.ProcessNow(ctx, opts.messageType)
	printResults(os.Stdout, map[types.MessageType]messaging.DrainResult{opts.messageType: result})
	return err
}

func printPending(w io.Writer, counts map[types.MessageType]int) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TYPE\tPENDING")
	for _, t := range types.AllMessageTypes() {
		fmt.Fprintf(tw, "%s\t%d\n", t, counts[t])
	}
	_ = tw.Flush()
}

func printResults(w io.Writer, results map[types.MessageType]messaging.DrainResult) {
	keys := make([]types.MessageType, 0, len(results))
	for t := range results {
		keys = append(keys, t)
	}
	slices.Sort(keys)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TYPE\tFOUND\tCOMPLETED\tFAILED\tDEAD_LETTERED\tSKIPPED")
	for _, t := range keys {
		r := results[t]
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%d\n", t, r.Found, r.Completed, r.Failed, r.DeadLettered, r.Skipped)
	}
	_ = tw.Flush()
}
