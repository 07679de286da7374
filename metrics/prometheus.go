package metrics

import (
	"net/http"
	"sync"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/traceloom/traceloom/config"
	"github.com/traceloom/traceloom/logger"
)

type PromMetrics struct {
	Config config.Config `inject:""`
	Logger logger.Logger `inject:""`

	// metrics keeps a record of all the registered metrics so we can
	// increment them by name
	metrics map[string]interface{}
	lock    sync.RWMutex
}

type promConfig struct {
	MetricsListenAddr string
}

func (p *PromMetrics) Start() error {
	p.Logger.Debugf("Starting PromMetrics")
	defer func() { p.Logger.Debugf("Finished starting PromMetrics") }()
	pc := &promConfig{MetricsListenAddr: "localhost:2112"}
	if err := p.Config.GetOtherConfig("PrometheusMetrics", pc); err != nil {
		p.Logger.Debugf("no PrometheusMetrics config section; using defaults: %v", err)
	}

	p.metrics = make(map[string]interface{})

	muxxer := mux.NewRouter()
	muxxer.Handle("/metrics", promhttp.Handler())
	go http.ListenAndServe(pc.MetricsListenAddr, muxxer)
	return nil
}

// Register takes a name and a metric type. The type should be one of
// "counter", "gauge", or "histogram"
func (p *PromMetrics) Register(name string, metricType string) {
	p.lock.Lock()
	defer p.lock.Unlock()

	// don't attempt to add the metric again as this will cause a panic
	if _, exists := p.metrics[name]; exists {
		return
	}

	var newmet interface{}
	switch metricType {
	case "counter":
		newmet = promauto.NewCounter(prometheus.CounterOpts{
			Name: name,
			Help: name,
		})
	case "gauge":
		newmet = promauto.NewGauge(prometheus.GaugeOpts{
			Name: name,
			Help: name,
		})
	case "histogram":
		newmet = promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    name,
			Help:    name,
			Buckets: prometheus.ExponentialBuckets(1, 4, 16),
		})
	}
	p.metrics[name] = newmet
}

func (p *PromMetrics) IncrementCounter(name string) {
	p.Count(name, 1)
}

func (p *PromMetrics) Count(name string, n float64) {
	p.lock.RLock()
	defer p.lock.RUnlock()
	if counter, ok := p.metrics[name].(prometheus.Counter); ok {
		counter.Add(n)
	}
}

func (p *PromMetrics) Gauge(name string, val float64) {
	p.lock.RLock()
	defer p.lock.RUnlock()
	if gauge, ok := p.metrics[name].(prometheus.Gauge); ok {
		gauge.Set(val)
	}
}

func (p *PromMetrics) Histogram(name string, obs float64) {
	p.lock.RLock()
	defer p.lock.RUnlock()
	if histogram, ok := p.metrics[name].(prometheus.Histogram); ok {
		histogram.Observe(obs)
	}
}
