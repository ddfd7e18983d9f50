// Package metrics exposes the Prometheus instrumentation of the intercom.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the binaural intercom
type Metrics struct {
	// UDP packet metrics
	PacketsReceived  prometheus.Counter
	PacketsProcessed prometheus.Counter
	PacketsSent      prometheus.Counter
	ParseErrors      prometheus.Counter
	SendErrors       prometheus.Counter
	PeersRejected    prometheus.Counter
	QueueSize        prometheus.Gauge

	// Bitplane transport metrics
	BitplanesSent     prometheus.Counter
	BitplanesReceived prometheus.Counter
	BitplanesDropped  *prometheus.CounterVec

	// Pipeline metrics
	ChunksSent          prometheus.Counter
	ChunksPlayed        prometheus.Counter
	PartialChunks       prometheus.Counter
	LostChunks          prometheus.Counter
	ReceivedPlanes      prometheus.Histogram
	OverflowCoefficient prometheus.Counter
	ProcessingTime      *prometheus.HistogramVec
	Overruns            prometheus.Counter
	CalibratedBitplanes prometheus.Gauge

	// HTTP API metrics
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPErrors          *prometheus.CounterVec
}

// NewMetrics creates all metrics and registers them with reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		// UDP packet metrics
		PacketsReceived: f.NewCounter(prometheus.CounterOpts{
			Name: "intercom_packets_received_total",
			Help: "Total number of UDP packets received",
		}),
		PacketsProcessed: f.NewCounter(prometheus.CounterOpts{
			Name: "intercom_packets_processed_total",
			Help: "Total number of UDP packets successfully processed",
		}),
		PacketsSent: f.NewCounter(prometheus.CounterOpts{
			Name: "intercom_packets_sent_total",
			Help: "Total number of UDP packets sent",
		}),
		ParseErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "intercom_parse_errors_total",
			Help: "Total number of packet parsing errors",
		}),
		SendErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "intercom_send_errors_total",
			Help: "Total number of failed UDP writes",
		}),
		PeersRejected: f.NewCounter(prometheus.CounterOpts{
			Name: "intercom_peers_rejected_total",
			Help: "Total number of announces rejected for a mismatched session layout",
		}),
		QueueSize: f.NewGauge(prometheus.GaugeOpts{
			Name: "intercom_packet_queue_size",
			Help: "Current number of packets in processing queue",
		}),

		// Bitplane transport metrics
		BitplanesSent: f.NewCounter(prometheus.CounterOpts{
			Name: "intercom_bitplanes_sent_total",
			Help: "Total number of bitplane packets sent",
		}),
		BitplanesReceived: f.NewCounter(prometheus.CounterOpts{
			Name: "intercom_bitplanes_received_total",
			Help: "Total number of bitplane packets stored in the jitter buffer",
		}),
		BitplanesDropped: f.NewCounterVec(prometheus.CounterOpts{
			Name: "intercom_bitplanes_dropped_total",
			Help: "Total number of received bitplane packets not stored",
		}, []string{"reason"}),

		// Pipeline metrics
		ChunksSent: f.NewCounter(prometheus.CounterOpts{
			Name: "intercom_chunks_sent_total",
			Help: "Total number of captured chunks encoded and sent",
		}),
		ChunksPlayed: f.NewCounter(prometheus.CounterOpts{
			Name: "intercom_chunks_played_total",
			Help: "Total number of chunks reconstructed for playback",
		}),
		PartialChunks: f.NewCounter(prometheus.CounterOpts{
			Name: "intercom_partial_chunks_total",
			Help: "Total number of chunks played with missing bitplanes",
		}),
		LostChunks: f.NewCounter(prometheus.CounterOpts{
			Name: "intercom_lost_chunks_total",
			Help: "Total number of chunks played without any bitplane",
		}),
		ReceivedPlanes: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "intercom_chunk_received_bitplanes",
			Help:    "Bitplane packets received per played chunk",
			Buckets: prometheus.LinearBuckets(0, 4, 17), // 0 to 64
		}),
		OverflowCoefficient: f.NewCounter(prometheus.CounterOpts{
			Name: "intercom_overflow_coefficients_total",
			Help: "Total number of values wider than the calibrated bitplanes",
		}),
		ProcessingTime: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "intercom_processing_duration_seconds",
			Help:    "Time spent in the send and play paths per chunk",
			Buckets: prometheus.ExponentialBuckets(0.00001, 2, 14), // 10us to ~80ms
		}, []string{"path"}),
		Overruns: f.NewCounter(prometheus.CounterOpts{
			Name: "intercom_period_overruns_total",
			Help: "Total number of audio periods whose processing exceeded the period",
		}),
		CalibratedBitplanes: f.NewGauge(prometheus.GaugeOpts{
			Name: "intercom_calibrated_bitplanes",
			Help: "Magnitude bitplanes of the current session",
		}),

		// HTTP API metrics
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "intercom_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "endpoint", "status_code"}),
		HTTPRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "intercom_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),
		HTTPErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "intercom_http_errors_total",
			Help: "Total number of HTTP errors",
		}, []string{"method", "endpoint", "error_type"}),
	}
}

// RecordPacketReceived increments the packets received counter
func (m *Metrics) RecordPacketReceived() {
	m.PacketsReceived.Inc()
}

// RecordPacketProcessed increments the packets processed counter
func (m *Metrics) RecordPacketProcessed() {
	m.PacketsProcessed.Inc()
}

// RecordPacketSent increments the packets sent counter
func (m *Metrics) RecordPacketSent() {
	m.PacketsSent.Inc()
}

// RecordParseError increments the parse errors counter
func (m *Metrics) RecordParseError() {
	m.ParseErrors.Inc()
}

// RecordSendError increments the send errors counter
func (m *Metrics) RecordSendError() {
	m.SendErrors.Inc()
}

// RecordPeerRejected increments the rejected peers counter
func (m *Metrics) RecordPeerRejected() {
	m.PeersRejected.Inc()
}

// SetQueueSize sets the current queue size
func (m *Metrics) SetQueueSize(size int) {
	m.QueueSize.Set(float64(size))
}

// RecordBitplanesSent adds n to the bitplanes sent counter
func (m *Metrics) RecordBitplanesSent(n int) {
	m.BitplanesSent.Add(float64(n))
}

// RecordBitplaneReceived increments the bitplanes received counter
func (m *Metrics) RecordBitplaneReceived() {
	m.BitplanesReceived.Inc()
}

// RecordBitplaneDropped increments the dropped bitplanes counter for reason
func (m *Metrics) RecordBitplaneDropped(reason string) {
	m.BitplanesDropped.WithLabelValues(reason).Inc()
}

// RecordChunkSent records an encoded chunk and its overflow count
func (m *Metrics) RecordChunkSent(overflows int, durationSeconds float64) {
	m.ChunksSent.Inc()
	if overflows > 0 {
		m.OverflowCoefficient.Add(float64(overflows))
	}
	m.ProcessingTime.WithLabelValues("send").Observe(durationSeconds)
}

// RecordChunkPlayed records a reconstructed chunk. expected is the number of
// bitplane packets of a complete chunk.
func (m *Metrics) RecordChunkPlayed(received, expected int, durationSeconds float64) {
	m.ChunksPlayed.Inc()
	switch {
	case received == 0:
		m.LostChunks.Inc()
	case received < expected:
		m.PartialChunks.Inc()
	}
	m.ReceivedPlanes.Observe(float64(received))
	m.ProcessingTime.WithLabelValues("play").Observe(durationSeconds)
}

// RecordOverrun increments the overrun counter
func (m *Metrics) RecordOverrun() {
	m.Overruns.Inc()
}

// SetCalibratedBitplanes sets the bitplane gauge
func (m *Metrics) SetCalibratedBitplanes(bitplanes int) {
	m.CalibratedBitplanes.Set(float64(bitplanes))
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, durationSeconds float64) {
	m.HTTPRequests.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(durationSeconds)
}

// RecordHTTPError records an HTTP error
func (m *Metrics) RecordHTTPError(method, endpoint, errorType string) {
	m.HTTPErrors.WithLabelValues(method, endpoint, errorType).Inc()
}
