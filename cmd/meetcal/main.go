package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"meetcal/internal/config"
	"meetcal/internal/dates"
	"meetcal/internal/ics"
	appLog "meetcal/internal/log"
	"meetcal/internal/notes"
	"meetcal/internal/web"
)

// flagConfig holds CLI flag values.
type flagConfig struct {
	configPath string
	envFile    string
	serve      bool
	listen     string
	notesPath  string
	planPath   string
	inspect    string
	out        string
	batch      bool
	location   string
	attendees  stringList
	duration   time.Duration
	days       int
}

// stringList is a repeatable string flag.
type stringList []string

func (l *stringList) String() string { return strings.Join(*l, ",") }

func (l *stringList) Set(v string) error {
	*l = append(*l, v)
	return nil
}

func main() {
	flags := parseFlags()

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}
	if err := conf.ApplyEnv(flags.envFile); err != nil {
		appLog.Error("failed to apply environment", err, "env_file", flags.envFile)
		os.Exit(1)
	}
	appLog.SetLevel(appLog.ParseLevel(conf.LogLevel))

	// CLI --listen overrides config file listen if provided.
	if flags.listen != "" {
		conf.Listen = flags.listen
	}

	appLog.Info("effective config",
		"timezone", conf.Timezone.ID,
		"offset", conf.Timezone.Offset,
		"organizer", conf.Organizer.Email,
		"default_year", conf.DefaultYear,
		"output_dir", conf.OutputDir,
		"serve", flags.serve,
	)

	// Cancel the server or an in-flight download on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, flags, conf, os.Stdin, os.Stdout); err != nil {
		stop()
		appLog.Error("meetcal failed", err)
		os.Exit(1)
	}
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "meetcal.yaml", "Path to config file")
	flag.StringVar(&cfg.envFile, "env", ".env", "Optional .env file with MEETCAL_* overrides")
	flag.BoolVar(&cfg.serve, "serve", false, "Run the HTTP API until interrupted")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.StringVar(&cfg.notesPath, "notes", "", "Meeting notes file to turn into an invitation (- for stdin)")
	flag.StringVar(&cfg.planPath, "plan", "", "YAML/JSON plan of follow-up events")
	flag.StringVar(&cfg.inspect, "inspect", "", "ICS file or http(s) URL to read back and list occurrences")
	flag.StringVar(&cfg.out, "out", "", "Output file or directory (default: config output_dir)")
	flag.BoolVar(&cfg.batch, "batch", false, "Write all plan events into a single calendar")
	flag.StringVar(&cfg.location, "location", "", "Location for the meeting event")
	flag.Var(&cfg.attendees, "attendee", "Invitee address for the meeting event (repeatable)")
	flag.DurationVar(&cfg.duration, "duration", 0, "Meeting duration (overrides config)")
	flag.IntVar(&cfg.days, "days", 90, "Days after the first event to list when inspecting")

	flag.Parse()

	return cfg
}

func run(ctx context.Context, flags flagConfig, conf *config.Config, stdin io.Reader, stdout io.Writer) error {
	encCfg, err := conf.EncoderConfig()
	if err != nil {
		return err
	}
	resolverOpts, err := conf.ResolverOptions()
	if err != nil {
		return err
	}
	enc := ics.NewEncoder(encCfg)
	resolver := dates.New(resolverOpts)

	outDir := flags.out
	if outDir == "" {
		outDir = conf.OutputDir
	}

	switch {
	case flags.serve:
		return web.Serve(ctx, conf)
	case flags.notesPath != "":
		return runNotes(flags, conf, enc, resolver, outDir, stdin, stdout)
	case flags.planPath != "":
		return runPlan(flags, enc, resolver, outDir, stdout)
	case flags.inspect != "":
		return runInspect(ctx, flags, conf, enc.Zone().Location(), stdout)
	default:
		return errors.New("one of -serve, -notes, -plan or -inspect is required")
	}
}

func runNotes(flags flagConfig, conf *config.Config, enc *ics.Encoder, resolver *dates.Resolver, outDir string, stdin io.Reader, stdout io.Writer) error {
	var (
		raw []byte
		err error
	)
	if flags.notesPath == "-" {
		raw, err = io.ReadAll(stdin)
	} else {
		raw, err = os.ReadFile(flags.notesPath)
	}
	if err != nil {
		return fmt.Errorf("read notes: %w", err)
	}

	rec, err := notes.New(notes.Options{Resolver: resolver}).Parse(string(raw))
	if err != nil {
		return err
	}
	assignees, _, unassigned := rec.ActionItemsByAssignee()
	appLog.Info("notes parsed",
		"title", rec.Title,
		"date", rec.Date.Format("2006-01-02"),
		"attendees", len(rec.Attendees),
		"action_items", len(rec.ActionItems),
		"completed", rec.CompletedCount(),
		"pending", rec.PendingCount(),
		"assignees", strings.Join(assignees, ","),
		"unassigned", len(unassigned),
		"decisions", len(rec.Decisions),
	)

	opts := conf.MeetingOptions()
	opts.Location = flags.location
	opts.Attendees = flags.attendees
	if flags.duration > 0 {
		opts.Duration = flags.duration
	}
	ev, err := enc.FromMeeting(rec, opts)
	if err != nil {
		return err
	}
	body, err := enc.Encode(ev)
	if err != nil {
		return err
	}
	path, err := writeOutput(body, outDir, ev.Title)
	if err != nil {
		return err
	}
	appLog.Info("invitation written", "path", path, "uid", ev.UID)
	fmt.Fprintln(stdout, path)
	return nil
}

func runPlan(flags flagConfig, enc *ics.Encoder, resolver *dates.Resolver, outDir string, stdout io.Writer) error {
	plan, err := ics.LoadPlan(flags.planPath)
	if err != nil {
		return fmt.Errorf("load plan: %w", err)
	}
	events, err := enc.FromPlan(plan, resolver)
	if err != nil {
		return err
	}

	if flags.batch {
		body, err := enc.EncodeBatch(events)
		if err != nil {
			return err
		}
		title := plan.MeetingTitle
		if title == "" {
			title = "events"
		}
		path, err := writeOutput(body, outDir, title)
		if err != nil {
			return err
		}
		appLog.Info("calendar written", "path", path, "event_count", len(events))
		fmt.Fprintln(stdout, path)
		return nil
	}

	if isICSFile(outDir) && len(events) > 1 {
		return fmt.Errorf("-out %s names one file but the plan has %d events; use -batch or a directory", outDir, len(events))
	}
	taken := make(map[string]bool)
	for i, ev := range events {
		body, err := enc.Encode(ev)
		if err != nil {
			return fmt.Errorf("event %d: %w", i, err)
		}
		path, err := writeOutput(body, outDir, uniqueTitle(taken, ev.Title))
		if err != nil {
			return err
		}
		appLog.Info("invitation written", "path", path, "uid", ev.UID)
		fmt.Fprintln(stdout, path)
	}
	return nil
}

func runInspect(ctx context.Context, flags flagConfig, conf *config.Config, loc *time.Location, stdout io.Writer) error {
	var body []byte
	if ics.IsRemote(flags.inspect) {
		dl, err := ics.NewFetcher(conf.CacheDir).Fetch(ctx, flags.inspect)
		if err != nil {
			return err
		}
		body = dl.Body
	} else {
		var err error
		if body, err = os.ReadFile(flags.inspect); err != nil {
			return err
		}
	}
	events, err := ics.Parse(body)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flags.inspect, err)
	}
	if len(events) == 0 {
		appLog.Warn("no events found", "path", flags.inspect)
		return nil
	}

	first := events[0].Start
	for _, ev := range events[1:] {
		if ev.Start.Before(first) {
			first = ev.Start
		}
	}
	res, err := ics.Expand(events, ics.ExpandConfig{
		DisplayLocation: loc,
		RangeStart:      first,
		RangeEnd:        first.AddDate(0, 0, flags.days),
	})
	if err != nil {
		return err
	}
	for _, o := range res.Occurrences {
		fmt.Fprintf(stdout, "%s  %s  %s\n",
			o.Start.Format("2006-01-02 15:04"), o.End.Format("15:04"), o.Summary)
	}
	appLog.Info("inspect completed",
		"events", len(events),
		"occurrences", len(res.Occurrences),
		"truncated", strings.Join(res.Truncated, ","),
	)
	return nil
}

// uniqueTitle suffixes repeated titles with -2, -3, ... so events that share
// a title get their own file.
func uniqueTitle(taken map[string]bool, title string) string {
	key := func(t string) string { return strings.ToLower(ics.FileName(t)) }
	name := title
	for n := 2; taken[key(name)]; n++ {
		name = fmt.Sprintf("%s-%d", title, n)
	}
	taken[key(name)] = true
	return name
}

func isICSFile(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".ics")
}

// writeOutput writes into outDir unless it names an .ics file.
func writeOutput(body, outDir, title string) (string, error) {
	if isICSFile(outDir) {
		return ics.WriteFile(body, outDir, "")
	}
	return ics.WriteFile(body, outDir, ics.FileName(title))
}
