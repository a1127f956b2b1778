package arenax

import (
	"sync"
	"testing"
	"time"
)

func TestMetricsIncAndValue(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})

	m.Inc(MetricTokensIssued)
	m.Inc(MetricTokensIssued)
	m.Inc(MetricValidateFailure)

	if got := m.Value(MetricTokensIssued); got != 2 {
		t.Fatalf("expected 2, got %d", got)
	}
	if got := m.Value(MetricValidateFailure); got != 1 {
		t.Fatalf("expected 1, got %d", got)
	}
	if got := m.Value(MetricRefreshSuccess); got != 0 {
		t.Fatalf("untouched counter must be 0, got %d", got)
	}
}

func TestMetricsDisabledIsNoOp(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: false})

	m.Inc(MetricTokensIssued)
	m.Observe(MetricValidateLatency, time.Millisecond)

	if got := m.Value(MetricTokensIssued); got != 0 {
		t.Fatalf("disabled metrics must not count, got %d", got)
	}

	snap := m.Snapshot()
	if len(snap.Counters) != 0 || len(snap.Histograms) != 0 {
		t.Fatalf("disabled snapshot must be empty, got %+v", snap)
	}

	// Nil receivers are no-ops too.
	var nilMetrics *Metrics
	nilMetrics.Inc(MetricTokensIssued)
	if nilMetrics.Enabled() || nilMetrics.LatencyEnabled() {
		t.Fatal("nil metrics must report disabled")
	}
}

func TestMetricsSnapshotIsDeepCopy(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true, EnableLatencyHistograms: true})

	m.Inc(MetricTokensIssued)
	m.Observe(MetricValidateLatency, 3*time.Millisecond)

	snap := m.Snapshot()
	if snap.Counters[MetricTokensIssued] != 1 {
		t.Fatalf("counter missing from snapshot: %+v", snap.Counters)
	}
	buckets := snap.Histograms[MetricValidateLatency]
	if len(buckets) != 8 || buckets[0] != 1 {
		t.Fatalf("latency sample missing from snapshot: %v", buckets)
	}

	// Mutating after the snapshot must not change it.
	m.Inc(MetricTokensIssued)
	m.Observe(MetricValidateLatency, 3*time.Millisecond)
	if snap.Counters[MetricTokensIssued] != 1 || buckets[0] != 1 {
		t.Fatal("snapshot must be detached from live state")
	}
}

func TestMetricsObserveIgnoresCounterIDs(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true, EnableLatencyHistograms: true})

	m.Observe(MetricTokensIssued, time.Millisecond)

	snap := m.Snapshot()
	for _, n := range snap.Histograms[MetricValidateLatency] {
		if n != 0 {
			t.Fatalf("non-latency observe must be ignored: %v", snap.Histograms)
		}
	}
}

func TestMetricsLatencyRequiresHistogramToggle(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true, EnableLatencyHistograms: false})

	m.Observe(MetricValidateLatency, time.Millisecond)

	snap := m.Snapshot()
	if _, ok := snap.Histograms[MetricValidateLatency]; ok {
		t.Fatal("histogram must be absent when the toggle is off")
	}
}

func TestBucketIndexBoundaries(t *testing.T) {
	cases := []struct {
		d    time.Duration
		want int
	}{
		{0, 0},
		{5 * time.Millisecond, 0},
		{6 * time.Millisecond, 1},
		{10 * time.Millisecond, 1},
		{25 * time.Millisecond, 2},
		{50 * time.Millisecond, 3},
		{100 * time.Millisecond, 4},
		{250 * time.Millisecond, 5},
		{500 * time.Millisecond, 6},
		{time.Second, 7},
		{time.Minute, 7},
	}

	for _, tc := range cases {
		if got := bucketIndex(tc.d); got != tc.want {
			t.Errorf("bucketIndex(%s) = %d, want %d", tc.d, got, tc.want)
		}
	}
}

func TestMetricsConcurrentIncrements(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})

	const (
		workers = 8
		perW    = 1000
	)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perW; i++ {
				m.Inc(MetricValidateSuccess)
			}
		}()
	}
	wg.Wait()

	if got := m.Value(MetricValidateSuccess); got != workers*perW {
		t.Fatalf("expected %d, got %d", workers*perW, got)
	}
}
