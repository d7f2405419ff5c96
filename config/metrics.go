package config

import "fmt"

// MetricsConfig defines the metrics sinks.
type MetricsConfig struct {
	Prometheus PrometheusConfig `json:"prometheus"`
	Influx     InfluxConfig     `json:"influx"`
}

// PrometheusConfig exposes counters on an HTTP listener.
type PrometheusConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr"`
}

// InfluxConfig forwards measurements to an InfluxDB bucket.
type InfluxConfig struct {
	Enabled bool   `json:"enabled"`
	URL     string `json:"url"`
	Token   string `json:"token"`
	Org     string `json:"org"`
	Bucket  string `json:"bucket"`
}

// Validate checks mandatory fields.
func (c MetricsConfig) Validate() error {
	if c.Prometheus.Enabled && c.Prometheus.Addr == "" {
		return fmt.Errorf("prometheus addr is required")
	}
	if c.Influx.Enabled {
		if c.Influx.URL == "" {
			return fmt.Errorf("influx url is required")
		}
		if c.Influx.Bucket == "" {
			return fmt.Errorf("influx bucket is required")
		}
	}
	return nil
}
