package drift

import "testing"

func TestStationaryStreamNeverTriggers(t *testing.T) {
	m := NewMonitor(0.002)
	for i := 0; i < 1000; i++ {
		// Small bounded noise around a fixed level.
		v := 0.5 + float64(i%3)*0.01
		if m.Add(v) {
			t.Fatalf("false trigger at observation %d", i)
		}
	}
	if m.Changed() {
		t.Error("change flag set on a stationary stream")
	}
}

func TestConstantStreamNeverTriggers(t *testing.T) {
	m := NewMonitor(0.002)
	for i := 0; i < 500; i++ {
		if m.Add(1.0) {
			t.Fatalf("false trigger at observation %d on a constant stream", i)
		}
	}
}

func TestMeanShiftTriggers(t *testing.T) {
	m := NewMonitor(0.002)
	for i := 0; i < 200; i++ {
		m.Add(0.0)
	}
	triggered := false
	for i := 0; i < 200; i++ {
		if m.Add(5.0) {
			triggered = true
			break
		}
	}
	if !triggered {
		t.Fatal("abrupt mean shift did not trigger")
	}
	if !m.Changed() {
		t.Error("change flag not latched after trigger")
	}
}

func TestTriggerDropsStalePrefix(t *testing.T) {
	m := NewMonitor(0.002)
	for i := 0; i < 300; i++ {
		m.Add(0.0)
	}
	for i := 0; i < 300; i++ {
		m.Add(5.0)
	}
	// After the cut the surviving window leans on the new regime.
	if mean := m.Mean(); mean < 2.5 {
		t.Errorf("post-cut window mean = %.2f, want the new regime to dominate", mean)
	}
	if m.Width() >= 600 {
		t.Errorf("width = %d, stale prefix was not dropped", m.Width())
	}
}

func TestResetClearsState(t *testing.T) {
	m := NewMonitor(0.002)
	for i := 0; i < 200; i++ {
		m.Add(0.0)
	}
	for i := 0; i < 200; i++ {
		m.Add(5.0)
	}
	if !m.Changed() {
		t.Fatal("expected a change before reset")
	}

	m.Reset()
	if m.Changed() || m.Width() != 0 || m.Mean() != 0 {
		t.Error("reset must clear the flag, the window and the mean")
	}

	// The same regime does not re-trigger after acknowledgment.
	for i := 0; i < 200; i++ {
		if m.Add(5.0) {
			t.Fatalf("re-trigger at observation %d after reset", i)
		}
	}
}

func TestBoundedMemory(t *testing.T) {
	m := NewMonitor(0.002)
	for i := 0; i < 10000; i++ {
		m.Add(0.5)
	}
	m.mu.Lock()
	buckets := len(m.buckets)
	m.mu.Unlock()
	// Exponential compression keeps bucket count logarithmic in width.
	if buckets > 100 {
		t.Errorf("bucket count = %d after 10k observations, compression failed", buckets)
	}
}

func TestDefaultDelta(t *testing.T) {
	m := NewMonitor(0)
	if m.delta != 0.002 {
		t.Errorf("delta = %g, want 0.002", m.delta)
	}
}
