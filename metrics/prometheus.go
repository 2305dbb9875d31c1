package metrics

import (
	"context"
	"strings"
	"sync"

	"github.com/goliatone/go-commerce/core"
	"github.com/prometheus/client_golang/prometheus"
)

// Labels is the fixed label set every collector carries. Tags outside the
// set are dropped and missing tags are recorded as "".
var Labels = []string{"operation", "status", "resource", "status_code", "refresh_reason"}

// PrometheusRecorder maps observer counters and histograms onto lazily
// registered prometheus vectors. Dotted metric names become underscored.
type PrometheusRecorder struct {
	registerer prometheus.Registerer
	namespace  string
	buckets    []float64

	mu         sync.Mutex
	counters   map[string]*prometheus.CounterVec
	histograms map[string]*prometheus.HistogramVec
}

type Option func(*PrometheusRecorder)

func WithNamespace(namespace string) Option {
	return func(r *PrometheusRecorder) {
		r.namespace = sanitizeName(namespace)
	}
}

func WithBuckets(buckets []float64) Option {
	return func(r *PrometheusRecorder) {
		if len(buckets) > 0 {
			r.buckets = append([]float64(nil), buckets...)
		}
	}
}

func NewPrometheusRecorder(registerer prometheus.Registerer, opts ...Option) *PrometheusRecorder {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	r := &PrometheusRecorder{
		registerer: registerer,
		buckets:    []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		counters:   map[string]*prometheus.CounterVec{},
		histograms: map[string]*prometheus.HistogramVec{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

func (r *PrometheusRecorder) IncCounter(_ context.Context, name string, value int64, tags map[string]string) {
	if r == nil || value < 0 {
		return
	}
	vec := r.counter(name)
	if vec == nil {
		return
	}
	vec.WithLabelValues(labelValues(tags)...).Add(float64(value))
}

func (r *PrometheusRecorder) ObserveHistogram(_ context.Context, name string, value float64, tags map[string]string) {
	if r == nil {
		return
	}
	vec := r.histogram(name)
	if vec == nil {
		return
	}
	vec.WithLabelValues(labelValues(tags)...).Observe(value)
}

func (r *PrometheusRecorder) counter(name string) *prometheus.CounterVec {
	name = sanitizeName(name)
	if name == "" {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if vec, ok := r.counters[name]; ok {
		return vec
	}
	vec := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: r.namespace,
		Name:      name,
		Help:      "Total " + strings.ReplaceAll(name, "_", " "),
	}, Labels)
	if err := r.registerer.Register(vec); err != nil {
		existing, ok := err.(prometheus.AlreadyRegisteredError)
		if !ok {
			return nil
		}
		shared, ok := existing.ExistingCollector.(*prometheus.CounterVec)
		if !ok {
			return nil
		}
		vec = shared
	}
	r.counters[name] = vec
	return vec
}

func (r *PrometheusRecorder) histogram(name string) *prometheus.HistogramVec {
	name = sanitizeName(name)
	if name == "" {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if vec, ok := r.histograms[name]; ok {
		return vec
	}
	vec := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: r.namespace,
		Name:      name,
		Help:      "Distribution of " + strings.ReplaceAll(name, "_", " "),
		Buckets:   r.buckets,
	}, Labels)
	if err := r.registerer.Register(vec); err != nil {
		existing, ok := err.(prometheus.AlreadyRegisteredError)
		if !ok {
			return nil
		}
		shared, ok := existing.ExistingCollector.(*prometheus.HistogramVec)
		if !ok {
			return nil
		}
		vec = shared
	}
	r.histograms[name] = vec
	return vec
}

func labelValues(tags map[string]string) []string {
	values := make([]string, len(Labels))
	for i, label := range Labels {
		values[i] = strings.TrimSpace(tags[label])
	}
	return values
}

func sanitizeName(name string) string {
	name = strings.TrimSpace(strings.ToLower(name))
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			return r
		default:
			return '_'
		}
	}, name)
}

var _ core.MetricsRecorder = (*PrometheusRecorder)(nil)
