package metrics

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
)

const defaultScrapeTimeout = 10 * time.Second

// Snapshot is the pipeline state read back from an agent's /metrics endpoint.
type Snapshot struct {
	ScrapedAt     time.Time
	Ticks         float64
	Overruns      float64
	Sent          float64
	QueueLength   float64
	QueueCapacity float64
	SinkConnected bool

	// SinkFailures is keyed by failure kind (invalid|stream).
	SinkFailures map[string]float64
}

// Scrape fetches url and extracts the pipeline metrics. A nil client
// selects one with a 10 second timeout.
func Scrape(ctx context.Context, client *http.Client, url string) (*Snapshot, error) {
	if client == nil {
		client = &http.Client{Timeout: defaultScrapeTimeout}
	}
	mfs, err := fetchMetrics(ctx, client, url)
	if err != nil {
		return nil, fmt.Errorf("metrics: scrape %s: %w", url, err)
	}
	return snapshotFrom(mfs), nil
}

func snapshotFrom(mfs map[string]*dto.MetricFamily) *Snapshot {
	s := &Snapshot{
		ScrapedAt:     time.Now().UTC(),
		Ticks:         sumFamily(mfs[TicksTotal]),
		Overruns:      sumFamily(mfs[OverrunsTotal]),
		Sent:          sumFamily(mfs[SentTotal]),
		QueueLength:   sumFamily(mfs[QueueLength]),
		QueueCapacity: sumFamily(mfs[QueueCapacity]),
		SinkConnected: sumFamily(mfs[SinkConnected]) > 0,
		SinkFailures:  make(map[string]float64),
	}
	if mf := mfs[SinkFailuresTotal]; mf != nil {
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if lp.GetName() == "kind" {
					s.SinkFailures[lp.GetValue()] += m.GetCounter().GetValue()
				}
			}
		}
	}
	return s
}

// fetchMetrics performs an HTTP GET to url and returns parsed metric families.
func fetchMetrics(ctx context.Context, client *http.Client, url string) (map[string]*dto.MetricFamily, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", string(expfmt.NewFormat(expfmt.TypeTextPlain)))

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http get: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return parseMetrics(resp.Body)
}

// parseMetrics decodes a Prometheus text exposition from r. A partial parse
// that still produced families is treated as success.
func parseMetrics(r io.Reader) (map[string]*dto.MetricFamily, error) {
	var parser expfmt.TextParser
	mfs, err := parser.TextToMetricFamilies(r)
	if err != nil && len(mfs) == 0 {
		return nil, fmt.Errorf("parse prometheus text: %w", err)
	}
	return mfs, nil
}

// sumFamily adds up all counter, gauge, or untyped values in mf.
// Returns 0 if mf is nil.
func sumFamily(mf *dto.MetricFamily) float64 {
	if mf == nil {
		return 0
	}
	var total float64
	for _, m := range mf.GetMetric() {
		switch {
		case m.Counter != nil:
			total += m.Counter.GetValue()
		case m.Gauge != nil:
			total += m.Gauge.GetValue()
		case m.Untyped != nil:
			total += m.Untyped.GetValue()
		}
	}
	return total
}
