package metrics

import (
	"maps"
	"slices"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Option tunes a Manager before its collectors are registered.
type Option func(*Manager)

// WithName overrides the namespace and subsystem every metric is
// published under. Empty parts keep their default.
func WithName(namespace, subsystem string) Option {
	return func(m *Manager) {
		if namespace != "" {
			m.namespace = namespace
		}
		if subsystem != "" {
			m.subsystem = subsystem
		}
	}
}

// WithLatencyBuckets replaces the millisecond buckets shared by the
// detection, scoring, repository and HTTP histograms. Bucket bounds must
// be strictly increasing; anything else is ignored.
func WithLatencyBuckets(buckets ...float64) Option {
	return func(m *Manager) {
		if len(buckets) == 0 {
			return
		}
		for i := 1; i < len(buckets); i++ {
			if buckets[i] <= buckets[i-1] {
				return
			}
		}
		m.histogramBuckets = slices.Clone(buckets)
	}
}

// WithMetricsEnabled turns collection on or off. A disabled manager
// records into a private registry nobody scrapes.
func WithMetricsEnabled(enabled bool) Option {
	return func(m *Manager) {
		m.enabled = enabled
	}
}

// WithRefreshInterval sets how often the catalog, group and system gauges
// are resampled.
func WithRefreshInterval(interval time.Duration) Option {
	return func(m *Manager) {
		if interval > 0 {
			m.refreshInterval = interval
		}
	}
}

// WithConstLabels merges labels into the constant labels of every metric.
func WithConstLabels(labels map[string]string) Option {
	return func(m *Manager) {
		maps.Copy(m.customLabels, labels)
	}
}

// WithTenant labels every metric with the tenant whose settings, groups
// and decisions this process serves.
func WithTenant(tenant string) Option {
	return func(m *Manager) {
		if tenant != "" {
			m.customLabels["tenant"] = tenant
		}
	}
}

// WithMetricPrefix prepends prefix to each metric name, after the
// namespace and subsystem.
func WithMetricPrefix(prefix string) Option {
	return func(m *Manager) {
		if prefix != "" {
			m.metricPrefix = prefix
		}
	}
}

// WithPrometheusRegistry registers the collectors with registry instead
// of the default registerer.
func WithPrometheusRegistry(registry prometheus.Registerer) Option {
	return func(m *Manager) {
		if registry != nil {
			m.registry = registry
		}
	}
}
