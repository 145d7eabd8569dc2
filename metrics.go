package goaio

import (
	"sync/atomic"
	"time"
)

// LatencyBuckets defines the latency histogram buckets in nanoseconds.
// Buckets cover from 1us to 10s with logarithmic spacing.
var LatencyBuckets = []uint64{
	1_000,          // 1us
	10_000,         // 10us
	100_000,        // 100us
	1_000_000,      // 1ms
	10_000_000,     // 10ms
	100_000_000,    // 100ms
	1_000_000_000,  // 1s
	10_000_000_000, // 10s
}

const numLatencyBuckets = 8

// Metrics tracks performance and operational statistics for an IoContext
// and the front ends built on it. A *Metrics is safe for concurrent use;
// wire one in via an Observer to have it fed automatically.
type Metrics struct {
	// Operation counters
	ReadOps  atomic.Uint64 // Pread + Preadv completions
	WriteOps atomic.Uint64 // Pwrite + Pwritev completions
	SyncOps  atomic.Uint64 // Fsync + Fdsync completions

	// Byte counters
	ReadBytes  atomic.Uint64
	WriteBytes atomic.Uint64

	// Error counters
	ReadErrors  atomic.Uint64
	WriteErrors atomic.Uint64
	SyncErrors  atomic.Uint64

	// Queue depth statistics, sampled via RecordPending
	PendingTotal atomic.Uint64 // Cumulative pending-depth samples
	PendingCount atomic.Uint64 // Number of pending-depth measurements
	MaxPending   atomic.Uint32 // Maximum observed pending depth

	// Performance tracking
	TotalLatencyNs atomic.Uint64
	OpCount        atomic.Uint64

	// Latency histogram buckets (cumulative counts). Each bucket[i]
	// contains the count of operations with latency <= LatencyBuckets[i].
	LatencyBuckets [numLatencyBuckets]atomic.Uint64

	// Context lifecycle
	StartTime atomic.Int64 // UnixNano
	StopTime  atomic.Int64 // UnixNano; 0 while still running
}

// NewMetrics creates a new metrics instance with StartTime set to now.
func NewMetrics() *Metrics {
	m := &Metrics{}
	m.StartTime.Store(time.Now().UnixNano())
	return m
}

// RecordRead records a completed Pread/Preadv.
func (m *Metrics) RecordRead(bytes uint64, latencyNs uint64, success bool) {
	m.ReadOps.Add(1)
	if success {
		m.ReadBytes.Add(bytes)
	} else {
		m.ReadErrors.Add(1)
	}
	m.recordLatency(latencyNs)
}

// RecordWrite records a completed Pwrite/Pwritev.
func (m *Metrics) RecordWrite(bytes uint64, latencyNs uint64, success bool) {
	m.WriteOps.Add(1)
	if success {
		m.WriteBytes.Add(bytes)
	} else {
		m.WriteErrors.Add(1)
	}
	m.recordLatency(latencyNs)
}

// RecordSync records a completed Fsync/Fdsync.
func (m *Metrics) RecordSync(latencyNs uint64, success bool) {
	m.SyncOps.Add(1)
	if !success {
		m.SyncErrors.Add(1)
	}
	m.recordLatency(latencyNs)
}

// RecordPending samples the current pending (batched+submitted) depth.
func (m *Metrics) RecordPending(depth uint32) {
	m.PendingTotal.Add(uint64(depth))
	m.PendingCount.Add(1)

	for {
		current := m.MaxPending.Load()
		if depth <= current {
			break
		}
		if m.MaxPending.CompareAndSwap(current, depth) {
			break
		}
	}
}

func (m *Metrics) recordLatency(latencyNs uint64) {
	m.TotalLatencyNs.Add(latencyNs)
	m.OpCount.Add(1)

	for i, bucket := range LatencyBuckets {
		if latencyNs <= bucket {
			m.LatencyBuckets[i].Add(1)
		}
	}
}

// Stop marks the context as stopped, fixing UptimeNs in future snapshots.
func (m *Metrics) Stop() {
	m.StopTime.Store(time.Now().UnixNano())
}

// MetricsSnapshot is a point-in-time snapshot of Metrics.
type MetricsSnapshot struct {
	ReadOps  uint64
	WriteOps uint64
	SyncOps  uint64

	ReadBytes  uint64
	WriteBytes uint64

	ReadErrors  uint64
	WriteErrors uint64
	SyncErrors  uint64

	AvgPendingDepth float64
	MaxPending      uint32

	AvgLatencyNs uint64
	UptimeNs     uint64

	LatencyP50Ns  uint64
	LatencyP99Ns  uint64
	LatencyP999Ns uint64

	LatencyHistogram [numLatencyBuckets]uint64

	ReadIOPS       float64
	WriteIOPS      float64
	ReadBandwidth  float64 // bytes/sec
	WriteBandwidth float64
	TotalOps       uint64
	TotalBytes     uint64
	ErrorRate      float64 // percentage of failed operations
}

// Snapshot creates a point-in-time snapshot of metrics, computing derived
// rates and latency percentiles.
func (m *Metrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{
		ReadOps:     m.ReadOps.Load(),
		WriteOps:    m.WriteOps.Load(),
		SyncOps:     m.SyncOps.Load(),
		ReadBytes:   m.ReadBytes.Load(),
		WriteBytes:  m.WriteBytes.Load(),
		ReadErrors:  m.ReadErrors.Load(),
		WriteErrors: m.WriteErrors.Load(),
		SyncErrors:  m.SyncErrors.Load(),
		MaxPending:  m.MaxPending.Load(),
	}

	snap.TotalOps = snap.ReadOps + snap.WriteOps + snap.SyncOps
	snap.TotalBytes = snap.ReadBytes + snap.WriteBytes

	pendingTotal := m.PendingTotal.Load()
	pendingCount := m.PendingCount.Load()
	if pendingCount > 0 {
		snap.AvgPendingDepth = float64(pendingTotal) / float64(pendingCount)
	}

	totalLatencyNs := m.TotalLatencyNs.Load()
	opCount := m.OpCount.Load()
	if opCount > 0 {
		snap.AvgLatencyNs = totalLatencyNs / opCount
	}

	startTime := m.StartTime.Load()
	stopTime := m.StopTime.Load()
	if stopTime > 0 {
		snap.UptimeNs = uint64(stopTime - startTime)
	} else {
		snap.UptimeNs = uint64(time.Now().UnixNano() - startTime)
	}

	if snap.UptimeNs > 0 {
		uptimeSeconds := float64(snap.UptimeNs) / 1e9
		snap.ReadIOPS = float64(snap.ReadOps) / uptimeSeconds
		snap.WriteIOPS = float64(snap.WriteOps) / uptimeSeconds
		snap.ReadBandwidth = float64(snap.ReadBytes) / uptimeSeconds
		snap.WriteBandwidth = float64(snap.WriteBytes) / uptimeSeconds
	}

	totalErrors := snap.ReadErrors + snap.WriteErrors + snap.SyncErrors
	if snap.TotalOps > 0 {
		snap.ErrorRate = float64(totalErrors) / float64(snap.TotalOps) * 100.0
	}

	for i := 0; i < numLatencyBuckets; i++ {
		snap.LatencyHistogram[i] = m.LatencyBuckets[i].Load()
	}

	if opCount > 0 {
		snap.LatencyP50Ns = m.calculatePercentile(0.50)
		snap.LatencyP99Ns = m.calculatePercentile(0.99)
		snap.LatencyP999Ns = m.calculatePercentile(0.999)
	}

	return snap
}

// calculatePercentile estimates the latency at the given percentile
// (0.0-1.0) using linear interpolation between histogram buckets.
func (m *Metrics) calculatePercentile(percentile float64) uint64 {
	totalOps := m.OpCount.Load()
	if totalOps == 0 {
		return 0
	}

	targetCount := uint64(float64(totalOps) * percentile)

	prevBucket := uint64(0)
	for i, bucket := range LatencyBuckets {
		bucketCount := m.LatencyBuckets[i].Load()
		if bucketCount >= targetCount {
			prevCount := uint64(0)
			if i > 0 {
				prevCount = m.LatencyBuckets[i-1].Load()
			}
			if bucketCount == prevCount {
				return bucket
			}
			fraction := float64(targetCount-prevCount) / float64(bucketCount-prevCount)
			return prevBucket + uint64(fraction*float64(bucket-prevBucket))
		}
		prevBucket = bucket
	}

	return LatencyBuckets[numLatencyBuckets-1]
}

// Reset zeroes all counters, useful between test cases or benchmark runs.
func (m *Metrics) Reset() {
	m.ReadOps.Store(0)
	m.WriteOps.Store(0)
	m.SyncOps.Store(0)
	m.ReadBytes.Store(0)
	m.WriteBytes.Store(0)
	m.ReadErrors.Store(0)
	m.WriteErrors.Store(0)
	m.SyncErrors.Store(0)
	m.PendingTotal.Store(0)
	m.PendingCount.Store(0)
	m.MaxPending.Store(0)
	m.TotalLatencyNs.Store(0)
	m.OpCount.Store(0)
	for i := 0; i < numLatencyBuckets; i++ {
		m.LatencyBuckets[i].Store(0)
	}
	m.StartTime.Store(time.Now().UnixNano())
	m.StopTime.Store(0)
}

// Observer allows pluggable metrics collection, decoupling IoContext
// callers from the concrete Metrics type.
type Observer interface {
	ObserveRead(bytes uint64, latencyNs uint64, success bool)
	ObserveWrite(bytes uint64, latencyNs uint64, success bool)
	ObserveSync(latencyNs uint64, success bool)
	ObservePending(depth uint32)
}

// NoOpObserver is a no-op Observer, the default when metrics aren't wired.
type NoOpObserver struct{}

func (NoOpObserver) ObserveRead(uint64, uint64, bool)  {}
func (NoOpObserver) ObserveWrite(uint64, uint64, bool) {}
func (NoOpObserver) ObserveSync(uint64, bool)          {}
func (NoOpObserver) ObservePending(uint32)             {}

// MetricsObserver implements Observer by recording into a Metrics.
type MetricsObserver struct {
	metrics *Metrics
}

// NewMetricsObserver creates an observer that records to m.
func NewMetricsObserver(m *Metrics) *MetricsObserver {
	return &MetricsObserver{metrics: m}
}

func (o *MetricsObserver) ObserveRead(bytes uint64, latencyNs uint64, success bool) {
	o.metrics.RecordRead(bytes, latencyNs, success)
}

func (o *MetricsObserver) ObserveWrite(bytes uint64, latencyNs uint64, success bool) {
	o.metrics.RecordWrite(bytes, latencyNs, success)
}

func (o *MetricsObserver) ObserveSync(latencyNs uint64, success bool) {
	o.metrics.RecordSync(latencyNs, success)
}

func (o *MetricsObserver) ObservePending(depth uint32) {
	o.metrics.RecordPending(depth)
}

var _ Observer = (*MetricsObserver)(nil)
var _ Observer = (*NoOpObserver)(nil)
