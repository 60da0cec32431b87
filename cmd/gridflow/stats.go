package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"github.com/urfave/cli/v2"
)

func statsCmd() *cli.Command {
	return &cli.Command{
		Name:  "stats",
		Usage: "Poll the Prometheus metrics endpoint and print live counters",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "url",
				Value: "http://localhost:9100/metrics",
				Usage: "Prometheus metrics endpoint",
			},
			&cli.DurationFlag{
				Name:  "interval",
				Value: 2 * time.Second,
				Usage: "Refresh interval",
			},
			&cli.BoolFlag{
				Name:  "once",
				Usage: "Print a single snapshot and exit",
			},
		},
		Action: func(c *cli.Context) error {
			url := c.String("url")
			if c.Bool("once") {
				return printSnapshot(c, url)
			}

			ctx, stop := signalContext(c.Context)
			defer stop()

			ticker := time.NewTicker(c.Duration("interval"))
			defer ticker.Stop()

			printf(c, "Streaming metrics from %s (Ctrl+C to stop)\n", url)
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
					if err := printSnapshot(c, url); err != nil {
						_, _ = fmt.Fprintf(c.App.ErrWriter, "stats error: %v\n", err)
					}
				}
			}
		},
	}
}

func printSnapshot(c *cli.Context, url string) error {
	families, err := fetchMetrics(c.Context, url)
	if err != nil {
		return err
	}
	printf(c, "[%s] %s\n", time.Now().Format(time.RFC3339), formatSnapshot(summarize(families)))
	return nil
}

func fetchMetrics(ctx context.Context, url string) (map[string]*dto.MetricFamily, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}
	return parseMetrics(resp.Body)
}

func parseMetrics(r io.Reader) (map[string]*dto.MetricFamily, error) {
	var parser expfmt.TextParser
	families, err := parser.TextToMetricFamilies(r)
	if err != nil {
		return nil, fmt.Errorf("parse metrics: %w", err)
	}
	return families, nil
}

// snapshot maps "short_name" or "short_name{label}" to the summed value.
type snapshot map[string]float64

func summarize(families map[string]*dto.MetricFamily) snapshot {
	out := snapshot{}
	for name, family := range families {
		short, ok := strings.CutPrefix(name, "gridflow_")
		if !ok {
			continue
		}
		short = strings.TrimSuffix(short, "_total")
		for _, m := range family.GetMetric() {
			key := short
			if labels := m.GetLabel(); len(labels) > 0 {
				parts := make([]string, 0, len(labels))
				for _, l := range labels {
					parts = append(parts, l.GetValue())
				}
				key += "{" + strings.Join(parts, ",") + "}"
			}
			switch family.GetType() {
			case dto.MetricType_COUNTER:
				out[key] += m.GetCounter().GetValue()
			case dto.MetricType_GAUGE:
				out[key] += m.GetGauge().GetValue()
			case dto.MetricType_HISTOGRAM:
				h := m.GetHistogram()
				if n := h.GetSampleCount(); n > 0 {
					out[key+"_avg_ms"] = h.GetSampleSum() / float64(n) * 1000
				}
			}
		}
	}
	return out
}

func formatSnapshot(s snapshot) string {
	if len(s) == 0 {
		return "no gridflow metrics yet"
	}
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%s=%g", k, s[k])
	}
	return b.String()
}
