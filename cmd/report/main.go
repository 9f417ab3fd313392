package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"checkin/internal/attendance"
	"checkin/internal/config"
	"checkin/internal/options"
	"checkin/internal/orgday"
	"checkin/internal/store"
)

// Report prints attendance statistics and data-quality findings as JSON.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, config.Load(), os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "report:", err)
		os.Exit(1)
	}
}

type reportFlags struct {
	from, to    orgday.Day
	cal         *orgday.Calendar
	optionsFile string
	databaseURL string
	pretty      bool
}

func parseFlags(cfg config.App, args []string, now time.Time) (reportFlags, error) {
	fs := pflag.NewFlagSet("report", pflag.ContinueOnError)
	from := fs.String("from", "", "first organizational day, YYYY-MM-DD (default today)")
	to := fs.String("to", "", "last organizational day, YYYY-MM-DD (default --from)")
	tz := fs.String("timezone", cfg.OrgTimezone, "IANA timezone that defines the organizational day")
	optionsFile := fs.String("options-file", "", "YAML option sets (default: read from the database)")
	databaseURL := fs.String("database-url", cfg.DatabaseURL, "Postgres connection string")
	pretty := fs.Bool("pretty", false, "indent the JSON output")
	if err := fs.Parse(args); err != nil {
		return reportFlags{}, err
	}

	cal, err := orgday.New(*tz)
	if err != nil {
		return reportFlags{}, err
	}
	f := reportFlags{
		from:        cal.Today(now),
		cal:         cal,
		optionsFile: *optionsFile,
		databaseURL: *databaseURL,
		pretty:      *pretty,
	}
	if *from != "" {
		if f.from, err = orgday.ParseDay(*from); err != nil {
			return reportFlags{}, fmt.Errorf("--from: %w", err)
		}
	}
	f.to = f.from
	if *to != "" {
		if f.to, err = orgday.ParseDay(*to); err != nil {
			return reportFlags{}, fmt.Errorf("--to: %w", err)
		}
	}
	if f.to.Before(f.from) {
		return reportFlags{}, fmt.Errorf("%w: --to %s is before --from %s", attendance.ErrInvalidRange, f.to, f.from)
	}
	return f, nil
}

func run(ctx context.Context, cfg config.App, args []string, out io.Writer) error {
	f, err := parseFlags(cfg, args, time.Now())
	if err != nil {
		return err
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	db, err := store.NewDB(connectCtx, f.databaseURL)
	cancel()
	if err != nil {
		return err
	}
	defer db.Close()

	var source options.Source = options.NewPostgresSource(db.Client)
	if f.optionsFile != "" {
		source = options.NewFileSource(f.optionsFile)
	}
	svc := attendance.NewService(attendance.NewRepository(db.Client), source, f.cal)
	return writeReport(ctx, svc, f, out)
}

func writeReport(ctx context.Context, svc *attendance.Service, f reportFlags, out io.Writer) error {
	rep, err := svc.Report(ctx, f.from, f.to)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(out)
	if f.pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(rep)
}
