package metric

import "github.com/prometheus/client_golang/prometheus"

// CountSource reports store sizes.
type CountSource interface {
	Counts() (attendances, users, tokens int)
}

// Collector reports store sizes at scrape time.
type Collector struct {
	src CountSource

	attendances *prometheus.Desc
	users       *prometheus.Desc
	tokens      *prometheus.Desc
}

var _ prometheus.Collector = (*Collector)(nil)

// NewCollector creates a collector over src.
func NewCollector(src CountSource) *Collector {
	return &Collector{
		src: src,
		attendances: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "store", "attendances"),
			"Attendance records held in the store.", nil, nil),
		users: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "store", "users"),
			"User accounts held in the store.", nil, nil),
		tokens: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "store", "tokens"),
			"Bearer tokens held in the store.", nil, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.attendances
	ch <- c.users
	ch <- c.tokens
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	a, u, t := c.src.Counts()
	ch <- prometheus.MustNewConstMetric(c.attendances, prometheus.GaugeValue, float64(a))
	ch <- prometheus.MustNewConstMetric(c.users, prometheus.GaugeValue, float64(u))
	ch <- prometheus.MustNewConstMetric(c.tokens, prometheus.GaugeValue, float64(t))
}
