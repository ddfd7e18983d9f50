package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordChunkPlayed(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordChunkPlayed(36, 36, 0.001)
	m.RecordChunkPlayed(20, 36, 0.001)
	m.RecordChunkPlayed(0, 36, 0.001)

	if got := testutil.ToFloat64(m.ChunksPlayed); got != 3 {
		t.Errorf("Expected 3 chunks played, got %v", got)
	}
	if got := testutil.ToFloat64(m.PartialChunks); got != 1 {
		t.Errorf("Expected 1 partial chunk, got %v", got)
	}
	if got := testutil.ToFloat64(m.LostChunks); got != 1 {
		t.Errorf("Expected 1 lost chunk, got %v", got)
	}
}

func TestRecordChunkSent(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordChunkSent(0, 0.001)
	m.RecordChunkSent(5, 0.002)

	if got := testutil.ToFloat64(m.ChunksSent); got != 2 {
		t.Errorf("Expected 2 chunks sent, got %v", got)
	}
	if got := testutil.ToFloat64(m.OverflowCoefficient); got != 5 {
		t.Errorf("Expected 5 overflowed coefficients, got %v", got)
	}
	if got := testutil.CollectAndCount(m.ProcessingTime); got != 1 {
		t.Errorf("Expected one processing time series, got %d", got)
	}
}

func TestTransportCounters(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordBitplanesSent(18)
	m.RecordBitplaneReceived()
	m.RecordBitplaneDropped("late")
	m.RecordBitplaneDropped("late")
	m.RecordBitplaneDropped("duplicate")
	m.SetCalibratedBitplanes(17)

	if got := testutil.ToFloat64(m.BitplanesSent); got != 18 {
		t.Errorf("Expected 18 bitplanes sent, got %v", got)
	}
	if got := testutil.ToFloat64(m.BitplanesDropped.WithLabelValues("late")); got != 2 {
		t.Errorf("Expected 2 late bitplanes, got %v", got)
	}
	if got := testutil.ToFloat64(m.CalibratedBitplanes); got != 17 {
		t.Errorf("Expected gauge 17, got %v", got)
	}
}

func TestIndependentRegistries(t *testing.T) {
	// Two instances must not collide when they use separate registries
	reg := prometheus.NewRegistry()
	NewMetrics(reg)
	NewMetrics(prometheus.NewRegistry())

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}
	if len(families) == 0 {
		t.Error("Expected registered metric families")
	}
}
