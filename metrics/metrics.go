package metrics

import (
	"fmt"
	"os"

	"github.com/traceloom/traceloom/config"
)

type Metrics interface {
	// Register declares a metric; metricType should be one of counter,
	// gauge, histogram
	Register(name string, metricType string)
	IncrementCounter(name string)
	Count(name string, n float64)
	Gauge(name string, val float64)
	Histogram(name string, obs float64)
}

func GetMetricsImplementation(c config.Config) Metrics {
	var metricsr Metrics
	metricsType, err := c.GetMetricsType()
	if err != nil {
		fmt.Printf("unable to get metrics type from config: %v\n", err)
		os.Exit(1)
	}
	switch metricsType {
	case "prometheus":
		metricsr = &PromMetrics{}
	case "null":
		metricsr = &NullMetrics{}
	default:
		fmt.Printf("unknown metrics type %s. Exiting.\n", metricsType)
		os.Exit(1)
	}
	return metricsr
}
