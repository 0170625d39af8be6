package diag

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector exposes the most recently completed diagnostic window of
// every connection as Prometheus metrics. Grounded on
// runZeroInc-sockstats/pkg/exporter and runZeroInc-conniver/pkg/exporter,
// which expose per-connection socket counters the same way: a
// Collector wrapping a snapshot map, refreshed by Describe/Collect
// rather than pushed on every sample.
type Collector struct {
	snapshot func() []ConnectionDiagnosticData

	ecSafety  *prometheus.Desc
	ecAddress *prometheus.Desc
	ecType    *prometheus.Desc
	ecSN      *prometheus.Desc
	ecCSN     *prometheus.Desc
	tRtd      *prometheus.Desc
	tAlive    *prometheus.Desc
}

// NewCollector builds a Collector that calls snapshot on every scrape
// to obtain the latest ConnectionDiagnosticData per connection.
func NewCollector(snapshot func() []ConnectionDiagnosticData) *Collector {
	return &Collector{
		snapshot:  snapshot,
		ecSafety:  prometheus.NewDesc("rasta_ec_safety_total", "Safety code mismatches in the last closed diagnostic window.", []string{"connection_id"}, nil),
		ecAddress: prometheus.NewDesc("rasta_ec_address_total", "Address (sender/receiver id) mismatches in the last closed diagnostic window.", []string{"connection_id"}, nil),
		ecType:    prometheus.NewDesc("rasta_ec_type_total", "Unknown or invalid message types in the last closed diagnostic window.", []string{"connection_id"}, nil),
		ecSN:      prometheus.NewDesc("rasta_ec_sn_total", "Sequence number errors in the last closed diagnostic window.", []string{"connection_id"}, nil),
		ecCSN:     prometheus.NewDesc("rasta_ec_csn_total", "Confirmed sequence number errors in the last closed diagnostic window.", []string{"connection_id"}, nil),
		tRtd:      prometheus.NewDesc("rasta_t_rtd_distribution", "Round-trip delay histogram bin counts for the last diagnostic window.", []string{"connection_id", "bin"}, nil),
		tAlive:    prometheus.NewDesc("rasta_t_alive_distribution", "Alive-time histogram bin counts for the last diagnostic window.", []string{"connection_id", "bin"}, nil),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.ecSafety
	ch <- c.ecAddress
	ch <- c.ecType
	ch <- c.ecSN
	ch <- c.ecCSN
	ch <- c.tRtd
	ch <- c.tAlive
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	for _, d := range c.snapshot() {
		cid := strconv.Itoa(d.ConnectionID)
		ch <- prometheus.MustNewConstMetric(c.ecSafety, prometheus.CounterValue, float64(d.Counters.ECSafety), cid)
		ch <- prometheus.MustNewConstMetric(c.ecAddress, prometheus.CounterValue, float64(d.Counters.ECAddress), cid)
		ch <- prometheus.MustNewConstMetric(c.ecType, prometheus.CounterValue, float64(d.Counters.ECType), cid)
		ch <- prometheus.MustNewConstMetric(c.ecSN, prometheus.CounterValue, float64(d.Counters.ECSN), cid)
		ch <- prometheus.MustNewConstMetric(c.ecCSN, prometheus.CounterValue, float64(d.Counters.ECCSN), cid)
		for i, v := range d.TRtdDistribution {
			ch <- prometheus.MustNewConstMetric(c.tRtd, prometheus.GaugeValue, float64(v), cid, strconv.Itoa(i))
		}
		for i, v := range d.TAliveDistribution {
			ch <- prometheus.MustNewConstMetric(c.tAlive, prometheus.GaugeValue, float64(v), cid, strconv.Itoa(i))
		}
	}
}
