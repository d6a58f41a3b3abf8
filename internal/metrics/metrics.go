package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EventsIngested = promauto.NewCounter(prometheus.CounterOpts{
		Name: "trafficmeter_events_ingested_total",
		Help: "Total number of traffic events folded into a window bucket.",
	})

	EventsFiltered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "trafficmeter_events_filtered_total",
		Help: "Total number of traffic events dropped by exclude rules.",
	})

	IngestFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "trafficmeter_ingest_failures_total",
		Help: "Total number of ingestion attempts that failed and were swallowed.",
	})

	BucketsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "trafficmeter_buckets_created_total",
		Help: "Total number of window buckets created.",
	})

	BucketsExpired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "trafficmeter_buckets_expired_total",
		Help: "Total number of window buckets removed after their TTL.",
	})

	BucketsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "trafficmeter_buckets_active",
		Help: "Number of window buckets currently held in memory.",
	})

	ForwardsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "trafficmeter_forwards_dropped_total",
		Help: "Total number of sink forwards rejected due to a full queue.",
	})

	ForwardQueueUtilization = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "trafficmeter_forward_queue_utilization_ratio",
		Help: "Current forward queue utilization (0–1).",
	})

	SinkWrites = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trafficmeter_sink_writes_total",
		Help: "Total number of sink writes, labelled by sink and status.",
	}, []string{"sink", "status"})

	SinkWriteDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "trafficmeter_sink_write_duration_ms",
		Help:    "Sink write latency in milliseconds.",
		Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500},
	}, []string{"sink"})

	StreamClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "trafficmeter_stream_clients",
		Help: "Number of connected live snapshot stream clients.",
	})
)
