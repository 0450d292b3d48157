package session

import (
	"github.com/phuslu/log"
	"github.com/prometheus/client_golang/prometheus"

	"hsa_tracer/internal/logger"
	"hsa_tracer/internal/output"
	"hsa_tracer/internal/tracer/admission"
)

// Collector implements prometheus.Collector for the tracer's own counters.
type Collector struct {
	manager *Manager
	log     log.Logger

	apiCallsDesc       *prometheus.Desc
	tracingDesc        *prometheus.Desc
	maxCallEndDesc     *prometheus.Desc
	queuesCreatedDesc  *prometheus.Desc
	asyncCopiesDesc    *prometheus.Desc
	asyncInFlightDesc  *prometheus.Desc
	packetsDesc        *prometheus.Desc
	packetsPendingDesc *prometheus.Desc
	flushedBytesDesc   *prometheus.Desc
	flushErrorsDesc    *prometheus.Desc
}

// NewCollector creates a collector reading from m.
func NewCollector(m *Manager) *Collector {
	return &Collector{
		manager: m,
		log:     logger.NewLoggerWithContext("session_collector"),

		apiCallsDesc: prometheus.NewDesc(
			"hsa_tracer_api_calls_total",
			"Intercepted API calls by admission decision.",
			[]string{"decision"}, nil,
		),
		tracingDesc: prometheus.NewDesc(
			"hsa_tracer_tracing_enabled",
			"1 while calls are being recorded, 0 otherwise.",
			nil, nil,
		),
		maxCallEndDesc: prometheus.NewDesc(
			"hsa_tracer_max_call_end_timestamp",
			"Latest end timestamp among calls dropped by the call cap, in runtime nanoseconds.",
			nil, nil,
		),
		queuesCreatedDesc: prometheus.NewDesc(
			"hsa_tracer_queues_created_total",
			"Total number of queue registrations.",
			nil, nil,
		),
		asyncCopiesDesc: prometheus.NewDesc(
			"hsa_tracer_async_copies_total",
			"Async copies by outcome.",
			[]string{"outcome"}, nil,
		),
		asyncInFlightDesc: prometheus.NewDesc(
			"hsa_tracer_async_copies_in_flight",
			"Async copies whose replacement signal has not completed yet.",
			nil, nil,
		),
		packetsDesc: prometheus.NewDesc(
			"hsa_tracer_packets_total",
			"AQL packets by outcome.",
			[]string{"outcome"}, nil,
		),
		packetsPendingDesc: prometheus.NewDesc(
			"hsa_tracer_packets_pending",
			"AQL packets buffered and waiting for timestamps or a flush.",
			nil, nil,
		),
		flushedBytesDesc: prometheus.NewDesc(
			"hsa_tracer_flushed_bytes_total",
			"Bytes appended to trace files.",
			[]string{"file"}, nil,
		),
		flushErrorsDesc: prometheus.NewDesc(
			"hsa_tracer_flush_errors_total",
			"Flushes that returned an error.",
			nil, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.apiCallsDesc
	ch <- c.tracingDesc
	ch <- c.maxCallEndDesc
	ch <- c.queuesCreatedDesc
	ch <- c.asyncCopiesDesc
	ch <- c.asyncInFlightDesc
	ch <- c.packetsDesc
	ch <- c.packetsPendingDesc
	ch <- c.flushedBytesDesc
	ch <- c.flushErrorsDesc
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	st := c.manager.Stats()

	decisions := map[admission.Decision]uint64{
		admission.Admitted: st.Admitted,
		admission.Filtered: st.Filtered,
		admission.Capped:   st.Capped,
		admission.Disabled: st.Disabled,
	}
	for d, v := range decisions {
		ch <- prometheus.MustNewConstMetric(c.apiCallsDesc, prometheus.CounterValue, float64(v), d.String())
	}

	tracing := 0.0
	if st.Tracing {
		tracing = 1
	}
	ch <- prometheus.MustNewConstMetric(c.tracingDesc, prometheus.GaugeValue, tracing)
	ch <- prometheus.MustNewConstMetric(c.maxCallEndDesc, prometheus.GaugeValue, float64(st.MaxCallEndTime))
	ch <- prometheus.MustNewConstMetric(c.queuesCreatedDesc, prometheus.CounterValue, float64(st.QueuesCreated))

	ch <- prometheus.MustNewConstMetric(c.asyncCopiesDesc, prometheus.CounterValue, float64(st.Copies.Completed), "completed")
	ch <- prometheus.MustNewConstMetric(c.asyncCopiesDesc, prometheus.CounterValue, float64(st.Copies.Failed), "failed")
	ch <- prometheus.MustNewConstMetric(c.asyncCopiesDesc, prometheus.CounterValue, float64(st.Copies.Dropped), "dropped")
	ch <- prometheus.MustNewConstMetric(c.asyncInFlightDesc, prometheus.GaugeValue, float64(st.Copies.InFlight))

	ch <- prometheus.MustNewConstMetric(c.packetsDesc, prometheus.CounterValue, float64(st.Packets.Submitted), "submitted")
	ch <- prometheus.MustNewConstMetric(c.packetsDesc, prometheus.CounterValue, float64(st.Packets.Rejected), "rejected")
	ch <- prometheus.MustNewConstMetric(c.packetsDesc, prometheus.CounterValue, float64(st.Packets.Flushed), "flushed")
	ch <- prometheus.MustNewConstMetric(c.packetsPendingDesc, prometheus.GaugeValue, float64(st.Packets.Pending))

	for _, k := range []output.FileKind{output.APITraceFile, output.KernelTimestampFile, output.CopyTimestampFile} {
		ch <- prometheus.MustNewConstMetric(c.flushedBytesDesc, prometheus.CounterValue, float64(st.FlushedBytes[k]), k.String())
	}
	ch <- prometheus.MustNewConstMetric(c.flushErrorsDesc, prometheus.CounterValue, float64(st.FlushErrors))

	c.log.Trace().Uint64("admitted", st.Admitted).Msg("Session metrics collected")
}
