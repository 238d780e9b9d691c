package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// workflowCollector exports point-in-time gauges read straight from the
// in-memory state instead of maintaining counters on every mutation.
type workflowCollector struct {
	sessionCount func() int
	reportCount  func() int

	sessionsDesc *prometheus.Desc
	reportsDesc  *prometheus.Desc
}

func newWorkflowCollector(sessionCount, reportCount func() int) *workflowCollector {
	return &workflowCollector{
		sessionCount: sessionCount,
		reportCount:  reportCount,
		sessionsDesc: prometheus.NewDesc(
			"aquaq_sessions_active",
			"Current number of tracked analysis sessions.",
			nil, nil,
		),
		reportsDesc: prometheus.NewDesc(
			"aquaq_reports_tracked",
			"Current number of report files tracked for expiry.",
			nil, nil,
		),
	}
}

func (c *workflowCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.sessionsDesc
	ch <- c.reportsDesc
}

func (c *workflowCollector) Collect(ch chan<- prometheus.Metric) {
	if c.sessionCount != nil {
		emitGauge(ch, c.sessionsDesc, float64(c.sessionCount()))
	}
	if c.reportCount != nil {
		emitGauge(ch, c.reportsDesc, float64(c.reportCount()))
	}
}

func emitGauge(ch chan<- prometheus.Metric, desc *prometheus.Desc, v float64) {
	m, err := prometheus.NewConstMetric(desc, prometheus.GaugeValue, v)
	if err != nil {
		return
	}
	ch <- m
}

var registerWorkflowCollectorOnce sync.Once

func RegisterWorkflowCollector(sessionCount, reportCount func() int) {
	registerWorkflowCollectorOnce.Do(func() {
		prometheus.MustRegister(newWorkflowCollector(sessionCount, reportCount))
	})
}
