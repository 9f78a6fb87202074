// Command weather-alerts runs the advisory batch once and exits.
//
//	weather-alerts                 send alerts for every located property
//	weather-alerts -property 12    send alerts for one property
//	weather-alerts -test           dry run: report what would be sent
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/neexbeast/weather-advisory/internal/advisory"
	"github.com/neexbeast/weather-advisory/internal/app"
	"github.com/neexbeast/weather-advisory/internal/config"
	"github.com/neexbeast/weather-advisory/internal/notify"
	"github.com/neexbeast/weather-advisory/internal/observability"
)

// runner is the slice of the orchestrator the CLI drives.
type runner interface {
	RunAll(ctx context.Context) (advisory.Summary, error)
	RunOne(ctx context.Context, id int64) (notify.Outcome, error)
	Preview(ctx context.Context, id *int64) ([]advisory.Preview, error)
}

type options struct {
	test       bool
	propertyID int64
}

func main() {
	var opts options
	flag.BoolVar(&opts.test, "test", false, "dry run: evaluate and list recipients without sending")
	flag.Int64Var(&opts.propertyID, "property", 0, "process only this property id")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "err", err)
		os.Exit(1)
	}
	log := observability.NewLogger(os.Stderr, cfg.LogLevel, cfg.LogFormat)

	// The CLI exits before anything could scrape metrics.
	ctx := context.Background()
	a, err := app.New(ctx, cfg, log, nil)
	if err != nil {
		log.Error("startup failed", "err", err)
		os.Exit(1)
	}

	code := 0
	if err := run(ctx, a.Orchestrator, opts, os.Stdout); err != nil {
		log.Error("weather alerts failed", "err", err)
		code = 1
	}
	if err := a.Close(); err != nil {
		log.Warn("closing dependencies", "err", err)
	}
	os.Exit(code)
}

// run executes one invocation and prints its result to out. The error is
// non-nil only for orchestrator-level failures; per-property errors are reported in the output.
func run(ctx context.Context, r runner, opts options, out io.Writer) error {
	var id *int64
	if opts.propertyID > 0 {
		id = &opts.propertyID
	}

	switch {
	case opts.test:
		previews, err := r.Preview(ctx, id)
		if err != nil {
			return err
		}
		printPreviews(out, previews)
		return nil

	case id != nil:
		outcome, err := r.RunOne(ctx, *id)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(outcome)

	default:
		sum, err := r.RunAll(ctx)
		if err != nil {
			return err
		}
		printSummary(out, sum)
		return nil
	}
}

func printSummary(out io.Writer, s advisory.Summary) {
	fmt.Fprintf(out, "Weather alert run %s\n", s.RunID)
	fmt.Fprintf(out, "  Properties processed: %d\n", s.TotalProperties)
	fmt.Fprintf(out, "  Alerts sent:          %d\n", s.AlertsSent)
	fmt.Fprintf(out, "  Emails sent:          %d\n", s.EmailsSent)
	fmt.Fprintf(out, "  No alerts:            %d\n", s.NoAlerts)
	fmt.Fprintf(out, "  Errors:               %d\n", s.Errors)
	fmt.Fprintf(out, "  Duration:             %s\n", s.Duration.Round(time.Millisecond))
	if s.Errors > 0 {
		fmt.Fprintf(out, "WARNING: %d properties failed; check the logs for details\n", s.Errors)
	}
}

func printPreviews(out io.Writer, previews []advisory.Preview) {
	fmt.Fprintf(out, "Dry run: %d properties, nothing sent\n", len(previews))
	for _, p := range previews {
		switch {
		case p.Error != "":
			fmt.Fprintf(out, "- #%d %s: error: %s\n", p.PropertyID, p.PropertyName, p.Error)
		case !p.HasAlerts:
			fmt.Fprintf(out, "- #%d %s: no alerts\n", p.PropertyID, p.PropertyName)
		default:
			fmt.Fprintf(out, "- #%d %s: %s %s (%d alerts) -> %d recipients\n",
				p.PropertyID, p.PropertyName, p.Severity, p.AlertType, p.AlertCount, len(p.Recipients))
			for _, rc := range p.Recipients {
				fmt.Fprintf(out, "    %s <%s> (%s)\n", rc.DisplayName, rc.Email, rc.Role)
			}
		}
	}
}
