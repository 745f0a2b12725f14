package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// MultiRegistry fans every metric out to several registries, so the same
// instruments can be scraped and pushed at once.
type MultiRegistry []Registry

// NewGauge creates the gauge on every registry.
func (m MultiRegistry) NewGauge(opts prometheus.GaugeOpts) (Gauge, error) {
	gauges := make(multiGauge, 0, len(m))
	for _, reg := range m {
		g, err := reg.NewGauge(opts)
		if err != nil {
			return nil, err
		}
		gauges = append(gauges, g)
	}
	return gauges, nil
}

// NewGaugeVec creates the gauge vector on every registry.
func (m MultiRegistry) NewGaugeVec(opts prometheus.GaugeOpts, labels []string) (GaugeVec, error) {
	vecs := make(multiGaugeVec, 0, len(m))
	for _, reg := range m {
		v, err := reg.NewGaugeVec(opts, labels)
		if err != nil {
			return nil, err
		}
		vecs = append(vecs, v)
	}
	return vecs, nil
}

// NewCounter creates the counter on every registry.
func (m MultiRegistry) NewCounter(opts prometheus.CounterOpts) (Counter, error) {
	counters := make(multiCounter, 0, len(m))
	for _, reg := range m {
		c, err := reg.NewCounter(opts)
		if err != nil {
			return nil, err
		}
		counters = append(counters, c)
	}
	return counters, nil
}

// NewCounterVec creates the counter vector on every registry.
func (m MultiRegistry) NewCounterVec(opts prometheus.CounterOpts, labels []string) (CounterVec, error) {
	vecs := make(multiCounterVec, 0, len(m))
	for _, reg := range m {
		v, err := reg.NewCounterVec(opts, labels)
		if err != nil {
			return nil, err
		}
		vecs = append(vecs, v)
	}
	return vecs, nil
}

type multiGauge []Gauge

func (g multiGauge) Set(v float64) {
	for _, each := range g {
		each.Set(v)
	}
}

type multiGaugeVec []GaugeVec

func (g multiGaugeVec) With(labels prometheus.Labels) Gauge {
	out := make(multiGauge, len(g))
	for i, each := range g {
		out[i] = each.With(labels)
	}
	return out
}

type multiCounter []Counter

func (c multiCounter) Inc() {
	for _, each := range c {
		each.Inc()
	}
}

func (c multiCounter) Add(v float64) {
	for _, each := range c {
		each.Add(v)
	}
}

type multiCounterVec []CounterVec

func (c multiCounterVec) With(labels prometheus.Labels) Counter {
	out := make(multiCounter, len(c))
	for i, each := range c {
		out[i] = each.With(labels)
	}
	return out
}
