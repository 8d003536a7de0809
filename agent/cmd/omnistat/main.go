// Command omnistat polls an agent's Prometheus endpoint and prints pipeline
// progress and a health score, one line per interval.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/omnistream/omnistream/agent/internal/compute"
	"github.com/omnistream/omnistream/agent/internal/metrics"
)

func main() {
	url := flag.String("metrics-url", "http://localhost:9100/metrics", "agent metrics endpoint")
	interval := flag.Duration("interval", 2*time.Second, "poll interval")
	once := flag.Bool("once", false, "print a single sample and exit")
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, nil)))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	client := &http.Client{Timeout: *interval}
	engine := compute.NewEngine()

	for {
		snap, err := metrics.Scrape(ctx, client, *url)
		if err != nil && ctx.Err() != nil {
			return
		}
		res := engine.Process(snap, err, time.Now())
		if err != nil {
			slog.Error("scrape failed", "url", *url, "err", err, "uptime_pct", res.UptimePct)
			if *once {
				os.Exit(1)
			}
		} else {
			fmt.Println(formatLine(snap, res))
		}
		if *once {
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(*interval):
		}
	}
}

// formatLine renders snap together with the health derived from it. Rates
// are omitted until the engine has a baseline.
func formatLine(snap *metrics.Snapshot, res *compute.Result) string {
	sink := "simulated"
	switch {
	case snap.SinkConnected:
		sink = "connected"
	case res.SinkBroken:
		sink = "broken"
	}
	line := fmt.Sprintf("%s tick=%.0f sent=%.0f queue=%.0f/%.0f overruns=%.0f sink=%s",
		snap.ScrapedAt.Format(time.TimeOnly),
		snap.Ticks, snap.Sent, snap.QueueLength, snap.QueueCapacity, snap.Overruns, sink)

	if res.State != compute.StateUnknown {
		line += fmt.Sprintf(" tick_rate=%.1f/s send_rate=%.1f/s", res.TickRate, res.SendRate)
	}
	if n := snap.SinkFailures[metrics.FailureStream] + snap.SinkFailures[metrics.FailureInvalid]; n > 0 {
		line += fmt.Sprintf(" sink_failures=%.0f", n)
	}
	line += " health=" + res.State
	if res.State != compute.StateUnknown {
		line += fmt.Sprintf(" score=%.1f", res.Score)
	}
	return line
}
