// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package share

import (
	"fmt"
	"sync"
	"time"
)

// latencySmoothing is the weight of the newest sample in the moving
// average.
const latencySmoothing = 0.2

// Latency is a snapshot of LatencyStats.
type Latency struct {
	Last    time.Duration `json:"last_ns"`
	Average time.Duration `json:"average_ns"`
	Count   uint64        `json:"count"`
}

func (l Latency) String() string {
	if l.Count == 0 {
		return "latency: -"
	}
	return fmt.Sprintf("latency: %d ms", l.Last.Milliseconds())
}

// LatencyStats tracks the most recent latency sample and an
// exponentially weighted moving average.
type LatencyStats struct {
	mu       sync.Mutex
	snapshot Latency
}

// Record adds a sample. Negative samples, which appear when the peers'
// clocks disagree, are recorded as zero.
func (s *LatencyStats) Record(sample time.Duration) {
	sample = max(sample, 0)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snapshot.Count == 0 {
		s.snapshot.Average = sample
	} else {
		s.snapshot.Average += time.Duration(latencySmoothing * float64(sample-s.snapshot.Average))
	}
	s.snapshot.Last = sample
	s.snapshot.Count++
}

// Snapshot returns the current statistics.
func (s *LatencyStats) Snapshot() Latency {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot
}
