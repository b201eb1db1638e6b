// Package metrics records per-run gauges and pushes them to a Prometheus
// Pushgateway.
package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

const (
	namespace = "ipsift"
	jobName   = "ipsift"
)

// Run holds the gauges of one pipeline run in a private registry.
type Run struct {
	registry *prometheus.Registry
	started  time.Time

	collected    prometheus.Gauge
	excluded     prometheus.Gauge
	unverifiable prometheus.Gauge
	published    prometheus.Gauge
	lastSuccess  prometheus.Gauge
	duration     prometheus.Gauge
}

func NewRun(started time.Time) *Run {
	gauge := func(name, help string) prometheus.Gauge {
		return prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: name, Help: help})
	}

	r := &Run{
		registry:     prometheus.NewRegistry(),
		started:      started,
		collected:    gauge("addresses_collected", "Distinct addresses read from the source archive."),
		excluded:     gauge("addresses_excluded", "Addresses dropped because they fall inside an excluded range."),
		unverifiable: gauge("addresses_unverifiable", "Addresses dropped because they could not be checked against the ranges."),
		published:    gauge("addresses_published", "Addresses in the published list."),
		lastSuccess:  gauge("last_success_timestamp_seconds", "Unix time of the last successful publish."),
		duration:     gauge("run_duration_seconds", "Wall time of the last run."),
	}
	r.registry.MustRegister(r.collected, r.excluded, r.unverifiable, r.published, r.lastSuccess, r.duration)
	return r
}

// Counts is the per-run tally reported by the pipeline.
type Counts struct {
	Collected    int
	Excluded     int
	Unverifiable int
	Published    int
}

func (r *Run) Observe(c Counts) {
	r.collected.Set(float64(c.Collected))
	r.excluded.Set(float64(c.Excluded))
	r.unverifiable.Set(float64(c.Unverifiable))
	r.published.Set(float64(c.Published))
}

// Succeeded stamps the success time and run duration.
func (r *Run) Succeeded(finished time.Time) {
	r.lastSuccess.Set(float64(finished.Unix()))
	r.duration.Set(finished.Sub(r.started).Seconds())
}

// Registry exposes the run's registry for tests and local scraping.
func (r *Run) Registry() *prometheus.Registry {
	return r.registry
}

// Push replaces the job's metric group on the gateway at url. instance
// distinguishes concurrent publishers, typically the target repository.
func (r *Run) Push(ctx context.Context, url, instance string) error {
	pusher := push.New(url, jobName).Gatherer(r.registry)
	if instance != "" {
		pusher = pusher.Grouping("instance", instance)
	}
	if err := pusher.PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics: %w", err)
	}
	return nil
}
