package monitoring

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metric names emitted by pkg/resource
const (
	MetricConnections   = "redis_connections"
	MetricInvalidations = "redis_invalidations"
	MetricActive        = "redis_active_connections"
	MetricConnectTime   = "redis_connect_time"
	MetricRequestTime   = "http_request_time"
)

// PrometheusReporter maps Reporter labels onto registered prometheus collectors
type PrometheusReporter struct {
	registerer    prometheus.Registerer
	countersVec   map[string]*prometheus.CounterVec
	counters      map[string]prometheus.Counter
	gaugesVec     map[string]*prometheus.GaugeVec
	gauges        map[string]prometheus.Gauge
	histograms    map[string]prometheus.Histogram
	histogramsVec map[string]*prometheus.HistogramVec
}

// NewPrometheusReporter creates reporter registering collectors in prometheus.DefaultRegisterer
func NewPrometheusReporter() *PrometheusReporter {
	return NewPrometheusReporterWithRegistry(prometheus.DefaultRegisterer)
}

// NewPrometheusReporterWithRegistry creates reporter registering collectors in r
func NewPrometheusReporterWithRegistry(r prometheus.Registerer) *PrometheusReporter {
	return &PrometheusReporter{
		registerer:    r,
		countersVec:   make(map[string]*prometheus.CounterVec),
		counters:      make(map[string]prometheus.Counter),
		gaugesVec:     make(map[string]*prometheus.GaugeVec),
		gauges:        make(map[string]prometheus.Gauge),
		histograms:    make(map[string]prometheus.Histogram),
		histogramsVec: make(map[string]*prometheus.HistogramVec),
	}
}

// RegisterResourceMetrics registers collectors for every metric emitted by the resource manager
func (p *PrometheusReporter) RegisterResourceMetrics() error {
	err := p.RegisterCounterVec(MetricConnections, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "redisres_connections_total",
		Help: "Lazy connection attempts by outcome",
	}, []string{"status"}))
	if err != nil {
		return err
	}

	err = p.RegisterCounter(MetricInvalidations, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "redisres_invalidations_total",
		Help: "Cached connections dropped because configuration changed",
	}))
	if err != nil {
		return err
	}

	err = p.RegisterGauge(MetricActive, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "redisres_active_connections",
		Help: "Connections currently cached by resource managers",
	}))
	if err != nil {
		return err
	}

	return p.RegisterHistogram(MetricConnectTime, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "redisres_connect_seconds",
		Help:    "Time spent establishing a connection",
		Buckets: prometheus.DefBuckets,
	}))
}

// RegisterHTTPMetrics registers collectors used by diagnostics server
func (p *PrometheusReporter) RegisterHTTPMetrics() error {
	return p.RegisterHistogramVec(MetricRequestTime, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "redisres_http_request_seconds",
		Help:    "Diagnostics request time",
		Buckets: prometheus.DefBuckets,
	}, []string{"method"}))
}

// Inc increments counter, metric - redis_connections;status:dialed
func (p *PrometheusReporter) Inc(metric string) {
	p.Counter(metric, 1)
}

func (p *PrometheusReporter) Counter(metric string, val float64) {
	name, labels := splitMetric(metric)
	if labels == nil {
		if c, ok := p.counters[name]; ok {
			c.Add(val)
		}
		return
	}

	if c, ok := p.countersVec[name]; ok {
		c.With(labels).Add(val)
	}
}

// Gauge adds val to gauge, negative values decrease it
func (p *PrometheusReporter) Gauge(metric string, val float64) {
	name, labels := splitMetric(metric)
	if labels == nil {
		if g, ok := p.gauges[name]; ok {
			g.Add(val)
		}
		return
	}

	if g, ok := p.gaugesVec[name]; ok {
		g.With(labels).Add(val)
	}
}

func (p *PrometheusReporter) Histogram(metric string, val float64) {
	name, labels := splitMetric(metric)
	if labels == nil {
		if h, ok := p.histograms[name]; ok {
			h.Observe(val)
		}
		return
	}

	if h, ok := p.histogramsVec[name]; ok {
		h.With(labels).Observe(val)
	}
}

// Timer observes elapsed seconds in histogram
func (p *PrometheusReporter) Timer(metric string) Timer {
	return NewTimer(func(d time.Duration) {
		p.Histogram(metric, d.Seconds())
	})
}

func (p *PrometheusReporter) RegisterCounter(name string, c prometheus.Counter) error {
	if err := p.registerer.Register(c); err != nil {
		return err
	}

	p.counters[name] = c
	return nil
}

func (p *PrometheusReporter) RegisterCounterVec(name string, c *prometheus.CounterVec) error {
	if err := p.registerer.Register(c); err != nil {
		return err
	}

	p.countersVec[name] = c
	return nil
}

func (p *PrometheusReporter) RegisterGauge(name string, g prometheus.Gauge) error {
	if err := p.registerer.Register(g); err != nil {
		return err
	}

	p.gauges[name] = g
	return nil
}

func (p *PrometheusReporter) RegisterGaugeVec(name string, g *prometheus.GaugeVec) error {
	if err := p.registerer.Register(g); err != nil {
		return err
	}

	p.gaugesVec[name] = g
	return nil
}

func (p *PrometheusReporter) RegisterHistogram(name string, h prometheus.Histogram) error {
	if err := p.registerer.Register(h); err != nil {
		return err
	}

	p.histograms[name] = h
	return nil
}

func (p *PrometheusReporter) RegisterHistogramVec(name string, h *prometheus.HistogramVec) error {
	if err := p.registerer.Register(h); err != nil {
		return err
	}

	p.histogramsVec[name] = h
	return nil
}

// splitMetric splits "name;k1:v1:k2:v2" into name and labels, labels are nil when absent
func splitMetric(metric string) (string, prometheus.Labels) {
	parts := strings.SplitN(metric, ";", 2)
	if len(parts) == 1 {
		return parts[0], nil
	}

	return parts[0], getLabels(parts[1])
}

func getLabels(label string) prometheus.Labels {
	parts := strings.Split(label, ":")
	labels := make(prometheus.Labels)
	for i := 0; i+1 < len(parts); i += 2 {
		labels[parts[i]] = parts[i+1]
	}

	return labels
}
