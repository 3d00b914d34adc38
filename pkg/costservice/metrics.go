package costservice

import (
	"context"
	"path"
	"time"

	"github.com/intel/npu-nn-cost-model/pkg/observability"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

const metricsNamespace = "vpunn"

// Metrics records per-method request counts and latency, the estimated
// cycles per subsystem, and the state of the model registry.
type Metrics struct {
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	cycles   *prometheus.HistogramVec
}

// NewMetrics registers the service metrics with reg.
func NewMetrics(reg prometheus.Registerer, registry *Registry) (*Metrics, error) {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "requests_total",
			Help:      "Cost service requests by method and status code.",
		}, []string{"method", "code"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "request_duration_seconds",
			Help:      "Cost service request latency by method.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
		}, []string{"method"}),
		cycles: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "estimated_cycles",
			Help:      "Estimated cycles returned by the cost service, by subsystem.",
			Buckets:   prometheus.ExponentialBuckets(100, 10, 8),
		}, []string{"subsystem"}),
	}

	collectors := []prometheus.Collector{m.requests, m.latency, m.cycles}
	if registry != nil {
		collectors = append(collectors, &registryCollector{registry: registry})
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) observeCycles(subsystem string, cycles uint32) {
	if m == nil {
		return
	}
	m.cycles.WithLabelValues(subsystem).Observe(float64(cycles))
}

// UnaryInterceptor wraps each call in a span and records its outcome.
func (m *Metrics) UnaryInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	method := path.Base(info.FullMethod)
	ctx, span := observability.StartSpan(ctx, "vpunn.CostService/"+method,
		attribute.String("rpc.method", method),
	)
	defer span.End()

	startedAt := time.Now()
	resp, err := handler(ctx, req)
	code := status.Code(err)

	span.SetAttributes(attribute.String("rpc.grpc.status_code", code.String()))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
	}

	if m != nil {
		m.requests.WithLabelValues(method, code.String()).Inc()
		m.latency.WithLabelValues(method).Observe(time.Since(startedAt).Seconds())
	}
	return resp, err
}

var (
	modelsLoadedDesc = prometheus.NewDesc(
		prometheus.BuildFQName(metricsNamespace, "", "models_loaded"),
		"Number of cost models in the registry.", nil, nil)
	modelInitializedDesc = prometheus.NewDesc(
		prometheus.BuildFQName(metricsNamespace, "", "model_initialized"),
		"1 if the model network loaded, 0 if costs fall back to the analytical model.",
		[]string{"model"}, nil)
	cacheHitsDesc = prometheus.NewDesc(
		prometheus.BuildFQName(metricsNamespace, "", "inference_cache_hits_total"),
		"Inference cache hits per model.", []string{"model"}, nil)
	cacheMissesDesc = prometheus.NewDesc(
		prometheus.BuildFQName(metricsNamespace, "", "inference_cache_misses_total"),
		"Inference cache misses per model.", []string{"model"}, nil)
)

// registryCollector reads the registry at scrape time.
type registryCollector struct {
	registry *Registry
}

func (c *registryCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- modelsLoadedDesc
	ch <- modelInitializedDesc
	ch <- cacheHitsDesc
	ch <- cacheMissesDesc
}

func (c *registryCollector) Collect(ch chan<- prometheus.Metric) {
	models := c.registry.models()
	ch <- prometheus.MustNewConstMetric(modelsLoadedDesc, prometheus.GaugeValue, float64(len(models)))
	for _, m := range models {
		initialized := 0.0
		if m.model.Initialized() {
			initialized = 1
		}
		hits, misses := m.model.CacheStats()
		ch <- prometheus.MustNewConstMetric(modelInitializedDesc, prometheus.GaugeValue, initialized, m.id)
		ch <- prometheus.MustNewConstMetric(cacheHitsDesc, prometheus.CounterValue, float64(hits), m.id)
		ch <- prometheus.MustNewConstMetric(cacheMissesDesc, prometheus.CounterValue, float64(misses), m.id)
	}
}
