package metrics

import (
	"context"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// A harness run lives for one input, so nothing stays up to be scraped.
// Metrics leave the process either as a node_exporter textfile or through a
// Pushgateway.

// WriteTextfile writes g in the text exposition format to path atomically.
func WriteTextfile(path string, g prometheus.Gatherer) error {
	if err := prometheus.WriteToTextfile(path, g); err != nil {
		return fmt.Errorf("write metrics textfile %s: %w", path, err)
	}
	return nil
}

// Push adds g to the Pushgateway at url under job, grouped by host name.
func Push(ctx context.Context, url, job string, g prometheus.Gatherer) error {
	p := push.New(url, job).Gatherer(g)
	if host, err := os.Hostname(); err == nil && host != "" {
		p = p.Grouping("instance", host)
	}
	if err := p.AddContext(ctx); err != nil {
		return fmt.Errorf("push metrics to %s: %w", url, err)
	}
	return nil
}
