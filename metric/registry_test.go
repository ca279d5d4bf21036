package metric

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetricsRegistry(t *testing.T) {
	registry := NewMetricsRegistry()

	assert.NotNil(t, registry)
	assert.NotNil(t, registry.PrometheusRegistry())
	assert.NotNil(t, registry.CoreMetrics())
}

func gatheredNames(t *testing.T, registry *MetricsRegistry) map[string]bool {
	t.Helper()

	families, err := registry.PrometheusRegistry().Gather()
	require.NoError(t, err)

	names := make(map[string]bool, len(families))
	for _, mf := range families {
		names[mf.GetName()] = true
	}
	return names
}

func TestMetricsRegistry_RegisterCounter(t *testing.T) {
	registry := NewMetricsRegistry()

	counter := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "test_counter",
		Help: "A test counter",
	})

	err := registry.RegisterCounter("test-service", "test_counter", counter)
	require.NoError(t, err)

	counter.Inc()

	names := gatheredNames(t, registry)
	assert.True(t, names["test_counter"], "counter should be registered in Prometheus registry")
}

func TestMetricsRegistry_RegisterGauge(t *testing.T) {
	registry := NewMetricsRegistry()

	gauge := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "test_gauge",
		Help: "A test gauge",
	})

	err := registry.RegisterGauge("test-service", "test_gauge", gauge)
	require.NoError(t, err)

	gauge.Set(42.0)

	names := gatheredNames(t, registry)
	assert.True(t, names["test_gauge"], "gauge should be registered in Prometheus registry")
}

func TestMetricsRegistry_RegisterHistogram(t *testing.T) {
	registry := NewMetricsRegistry()

	histogram := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "test_histogram",
		Help:    "A test histogram",
		Buckets: prometheus.DefBuckets,
	})

	err := registry.RegisterHistogram("test-service", "test_histogram", histogram)
	require.NoError(t, err)

	histogram.Observe(1.5)

	names := gatheredNames(t, registry)
	assert.True(t, names["test_histogram"], "histogram should be registered in Prometheus registry")
}

func TestMetricsRegistry_RegisterVectors(t *testing.T) {
	registry := NewMetricsRegistry()

	counterVec := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "test_counter_vec",
		Help: "A test counter vector",
	}, []string{"route"})
	require.NoError(t, registry.RegisterCounterVec("test-service", "test_counter_vec", counterVec))

	gaugeVec := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "test_gauge_vec",
		Help: "A test gauge vector",
	}, []string{"route"})
	require.NoError(t, registry.RegisterGaugeVec("test-service", "test_gauge_vec", gaugeVec))

	histogramVec := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name: "test_histogram_vec",
		Help: "A test histogram vector",
	}, []string{"route"})
	require.NoError(t, registry.RegisterHistogramVec("test-service", "test_histogram_vec", histogramVec))

	counterVec.WithLabelValues("/items").Inc()
	gaugeVec.WithLabelValues("/items").Set(3)
	histogramVec.WithLabelValues("/items").Observe(0.01)

	names := gatheredNames(t, registry)
	assert.True(t, names["test_counter_vec"])
	assert.True(t, names["test_gauge_vec"])
	assert.True(t, names["test_histogram_vec"])
}

func TestMetricsRegistry_PreventDuplicateRegistration(t *testing.T) {
	registry := NewMetricsRegistry()

	counter1 := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "duplicate_counter",
		Help: "First counter",
	})

	counter2 := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "duplicate_counter",
		Help: "First counter", // Same help to avoid Prometheus validation error
	})

	// First registration should succeed
	err := registry.RegisterCounter("service1", "duplicate_counter", counter1)
	require.NoError(t, err)

	// Second registration with same name should fail
	err = registry.RegisterCounter("service2", "duplicate_counter", counter2)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "prometheus conflict")

	// Same service.metric key should fail before touching Prometheus
	err = registry.RegisterCounter("service1", "duplicate_counter", counter2)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate metric registration")
}

func TestMetricsRegistry_UnregisterMetric(t *testing.T) {
	registry := NewMetricsRegistry()

	counter := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "unregister_counter",
		Help: "A counter to unregister",
	})

	err := registry.RegisterCounter("test-service", "unregister_counter", counter)
	require.NoError(t, err)

	names := gatheredNames(t, registry)
	assert.True(t, names["unregister_counter"])

	success := registry.Unregister("test-service", "unregister_counter")
	assert.True(t, success)

	names = gatheredNames(t, registry)
	assert.False(t, names["unregister_counter"])

	// Unregistering again reports failure
	assert.False(t, registry.Unregister("test-service", "unregister_counter"))
}

func TestMetricsRegistry_ConcurrentRegistration(t *testing.T) {
	registry := NewMetricsRegistry()

	var wg sync.WaitGroup
	errs := make([]error, 20)

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			counter := prometheus.NewCounter(prometheus.CounterOpts{
				Name: fmt.Sprintf("concurrent_counter_%d", n),
				Help: "A concurrently registered counter",
			})
			errs[n] = registry.RegisterCounter("svc", fmt.Sprintf("concurrent_counter_%d", n), counter)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		assert.NoError(t, err, "registration %d", i)
	}
}

func TestCoreMetrics_Record(t *testing.T) {
	registry := NewMetricsRegistry()
	core := registry.CoreMetrics()

	core.RecordServiceStatus("gateway", 2)
	core.RecordError("gateway", "transient")
	core.RecordHealthStatus("gateway", true)
	core.RecordNATSStatus(true)
	core.RecordNATSRTT(3 * time.Millisecond)
	core.RecordNATSReconnect()

	names := gatheredNames(t, registry)
	assert.True(t, names["shopstream_service_status"])
	assert.True(t, names["shopstream_errors_total"])
	assert.True(t, names["shopstream_health_status"])
	assert.True(t, names["shopstream_nats_connected"])
	assert.True(t, names["shopstream_nats_rtt_milliseconds"])
	assert.True(t, names["shopstream_nats_reconnects_total"])
}
