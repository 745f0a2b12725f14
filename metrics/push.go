package metrics

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/golang/protobuf/proto"
	"github.com/golang/snappy"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/prometheus/prompb"
)

const (
	// DefaultTimeout is the default timeout for a single remote write request.
	DefaultTimeout = 30 * time.Second
	// DefaultPushInterval is how often Run flushes when no interval is configured.
	DefaultPushInterval = 15 * time.Second
)

// PushConfig configures a PushRegistry.
type PushConfig struct {
	// URL is the base URL of the remote write endpoint (e.g. "http://localhost:8428").
	URL string
	// Prefix is prepended, followed by an underscore, to every metric name.
	Prefix string
	// Job is the job label for all metrics.
	Job string
	// Instance is the instance label for all metrics.
	Instance string
	// Timeout is the HTTP client timeout. Defaults to DefaultTimeout.
	Timeout time.Duration
	// Interval is the flush period used by Run. Defaults to DefaultPushInterval.
	Interval time.Duration
	// Logger receives flush failures. Defaults to slog.Default().
	Logger *slog.Logger
}

// PushRegistry implements Registry for remote-write delivery. Metric updates only
// touch in-memory state; Flush sends the current value of every series in a single
// write request, and Run flushes periodically.
type PushRegistry struct {
	url        string
	httpClient *http.Client
	prefix     string
	job        string
	instance   string
	interval   time.Duration
	logger     *slog.Logger

	mu     sync.Mutex
	series map[string]*series
}

type series struct {
	name   string
	labels map[string]string
	value  float64
}

// NewPushRegistry creates a PushRegistry writing to cfg.URL + "/api/v1/write".
func NewPushRegistry(cfg PushConfig) *PushRegistry {
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Interval == 0 {
		cfg.Interval = DefaultPushInterval
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &PushRegistry{
		url:        strings.TrimSuffix(cfg.URL, "/") + "/api/v1/write",
		httpClient: &http.Client{Timeout: cfg.Timeout},
		prefix:     cfg.Prefix,
		job:        cfg.Job,
		instance:   cfg.Instance,
		interval:   cfg.Interval,
		logger:     cfg.Logger,
		series:     make(map[string]*series),
	}
}

// NewGauge creates a push-based Gauge.
func (r *PushRegistry) NewGauge(opts prometheus.GaugeOpts) (Gauge, error) {
	return &pushGauge{registry: r, name: fqName(opts.Namespace, opts.Subsystem, opts.Name)}, nil
}

// NewGaugeVec creates a push-based GaugeVec.
func (r *PushRegistry) NewGaugeVec(opts prometheus.GaugeOpts, labels []string) (GaugeVec, error) {
	return &pushGaugeVec{registry: r, name: fqName(opts.Namespace, opts.Subsystem, opts.Name)}, nil
}

// NewCounter creates a push-based Counter.
func (r *PushRegistry) NewCounter(opts prometheus.CounterOpts) (Counter, error) {
	return &pushCounter{registry: r, name: fqName(opts.Namespace, opts.Subsystem, opts.Name)}, nil
}

// NewCounterVec creates a push-based CounterVec.
func (r *PushRegistry) NewCounterVec(opts prometheus.CounterOpts, labels []string) (CounterVec, error) {
	return &pushCounterVec{registry: r, name: fqName(opts.Namespace, opts.Subsystem, opts.Name)}, nil
}

// Run flushes every interval until ctx is cancelled, then flushes one last time.
func (r *PushRegistry) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := r.Flush(ctx); err != nil {
				r.logger.Warn("failed to push metrics", "url", r.url, "error", err)
			}
		case <-ctx.Done():
			final, cancel := context.WithTimeout(context.Background(), r.httpClient.Timeout)
			if err := r.Flush(final); err != nil {
				r.logger.Warn("failed to push final metrics", "url", r.url, "error", err)
			}
			cancel()
			return
		}
	}
}

// Flush sends the current value of every known series. It is a no-op when no
// metric has been updated yet.
func (r *PushRegistry) Flush(ctx context.Context) error {
	timeseries := r.snapshot(time.Now())
	if len(timeseries) == 0 {
		return nil
	}

	data, err := proto.Marshal(&prompb.WriteRequest{Timeseries: timeseries})
	if err != nil {
		return fmt.Errorf("marshaling write request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(snappy.Encode(nil, data)))
	if err != nil {
		return fmt.Errorf("creating HTTP request: %w", err)
	}
	req.Header.Set("Content-Encoding", "snappy")
	req.Header.Set("Content-Type", "application/x-protobuf")
	req.Header.Set("X-Prometheus-Remote-Write-Version", "0.1.0")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}
	return nil
}

func (r *PushRegistry) set(name string, labels map[string]string, v float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lookup(name, labels).value = v
}

func (r *PushRegistry) add(name string, labels map[string]string, v float64) {
	if v < 0 {
		panic("counter cannot decrease in value")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lookup(name, labels).value += v
}

// lookup must be called with mu held.
func (r *PushRegistry) lookup(name string, labels map[string]string) *series {
	key := seriesKey(name, labels)
	s, ok := r.series[key]
	if !ok {
		copied := make(map[string]string, len(labels))
		for k, v := range labels {
			copied[k] = v
		}
		s = &series{name: name, labels: copied}
		r.series[key] = s
	}
	return s
}

// snapshot converts every series into a TimeSeries stamped with now. Labels are
// sorted by name as remote write receivers expect.
func (r *PushRegistry) snapshot(now time.Time) []prompb.TimeSeries {
	r.mu.Lock()
	defer r.mu.Unlock()

	keys := make([]string, 0, len(r.series))
	for k := range r.series {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]prompb.TimeSeries, 0, len(keys))
	for _, k := range keys {
		s := r.series[k]

		name := s.name
		if r.prefix != "" {
			name = r.prefix + "_" + name
		}
		labels := []prompb.Label{{Name: "__name__", Value: name}}
		if r.job != "" {
			labels = append(labels, prompb.Label{Name: "job", Value: r.job})
		}
		if r.instance != "" {
			labels = append(labels, prompb.Label{Name: "instance", Value: r.instance})
		}
		for lk, lv := range s.labels {
			labels = append(labels, prompb.Label{Name: lk, Value: lv})
		}
		sort.Slice(labels, func(i, j int) bool { return labels[i].Name < labels[j].Name })

		out = append(out, prompb.TimeSeries{
			Labels:  labels,
			Samples: []prompb.Sample{{Value: s.value, Timestamp: now.UnixMilli()}},
		})
	}
	return out
}

func fqName(namespace, subsystem, name string) string {
	return prometheus.BuildFQName(namespace, subsystem, name)
}

func seriesKey(name string, labels map[string]string) string {
	names := make([]string, 0, len(labels))
	for k := range labels {
		names = append(names, k)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString(name)
	for _, k := range names {
		b.WriteString("|")
		b.WriteString(k)
		b.WriteString("=")
		b.WriteString(labels[k])
	}
	return b.String()
}

type pushGauge struct {
	registry *PushRegistry
	name     string
	labels   map[string]string
}

func (g *pushGauge) Set(v float64) { g.registry.set(g.name, g.labels, v) }

type pushGaugeVec struct {
	registry *PushRegistry
	name     string
}

func (g *pushGaugeVec) With(labels prometheus.Labels) Gauge {
	return &pushGauge{registry: g.registry, name: g.name, labels: labels}
}

type pushCounter struct {
	registry *PushRegistry
	name     string
	labels   map[string]string
}

func (c *pushCounter) Inc()          { c.Add(1) }
func (c *pushCounter) Add(v float64) { c.registry.add(c.name, c.labels, v) }

type pushCounterVec struct {
	registry *PushRegistry
	name     string
}

func (c *pushCounterVec) With(labels prometheus.Labels) Counter {
	return &pushCounter{registry: c.registry, name: c.name, labels: labels}
}
