package metric

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/yndnr/tokpool/internal/infra/buildinfo"
)

// BuildInfoCollector exports tokpool_build_info with version labels and a constant value of 1.
type BuildInfoCollector struct {
	desc *prometheus.Desc
}

// NewBuildInfoCollector creates a build info collector.
func NewBuildInfoCollector() *BuildInfoCollector {
	return &BuildInfoCollector{
		desc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "build_info"),
			"Build information of the running binary",
			[]string{"version", "commit", "go_version"},
			nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *BuildInfoCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.desc
}

// Collect implements prometheus.Collector.
func (c *BuildInfoCollector) Collect(ch chan<- prometheus.Metric) {
	info := buildinfo.Get()
	ch <- prometheus.MustNewConstMetric(c.desc, prometheus.GaugeValue, 1,
		info.Version, info.Commit, info.GoVersion)
}
