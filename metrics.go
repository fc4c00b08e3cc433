package rewardsearch

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like Prometheus.
type MetricsCollector interface {
	// RecordReward is called after each reward evaluation.
	// particles is the population size, err is nil if successful.
	RecordReward(particles int, duration time.Duration, err error)

	// RecordSearch is called after each search call. groupSize is 0 on
	// steps that do not resample.
	RecordSearch(step, groupSize int, duration time.Duration, err error)

	// RecordResample is called when a step actually reassigns particles.
	// survivors is the number of distinct original particles kept.
	RecordResample(step, survivors int)

	// RecordGradients is called after each gradient evaluation.
	RecordGradients(duration time.Duration, supported bool, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordReward(int, time.Duration, error)      {}
func (NoopMetricsCollector) RecordSearch(int, int, time.Duration, error) {}
func (NoopMetricsCollector) RecordResample(int, int)                     {}
func (NoopMetricsCollector) RecordGradients(time.Duration, bool, error)  {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	RewardCount          atomic.Int64
	RewardErrors         atomic.Int64
	RewardParticles      atomic.Int64
	RewardTotalNanos     atomic.Int64
	SearchCount          atomic.Int64
	SearchErrors         atomic.Int64
	SearchTotalNanos     atomic.Int64
	ResampleCount        atomic.Int64
	ResampleSurvivors    atomic.Int64
	GradientCount        atomic.Int64
	GradientErrors       atomic.Int64
	GradientsUnsupported atomic.Int64
}

// RecordReward implements MetricsCollector.
func (b *BasicMetricsCollector) RecordReward(particles int, duration time.Duration, err error) {
	b.RewardCount.Add(1)
	b.RewardParticles.Add(int64(particles))
	b.RewardTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.RewardErrors.Add(1)
	}
}

// RecordSearch implements MetricsCollector.
func (b *BasicMetricsCollector) RecordSearch(step, groupSize int, duration time.Duration, err error) {
	b.SearchCount.Add(1)
	b.SearchTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.SearchErrors.Add(1)
	}
}

// RecordResample implements MetricsCollector.
func (b *BasicMetricsCollector) RecordResample(step, survivors int) {
	b.ResampleCount.Add(1)
	b.ResampleSurvivors.Add(int64(survivors))
}

// RecordGradients implements MetricsCollector.
func (b *BasicMetricsCollector) RecordGradients(duration time.Duration, supported bool, err error) {
	b.GradientCount.Add(1)
	if err != nil {
		b.GradientErrors.Add(1)
	}
	if err == nil && !supported {
		b.GradientsUnsupported.Add(1)
	}
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		RewardCount:          b.RewardCount.Load(),
		RewardErrors:         b.RewardErrors.Load(),
		RewardParticles:      b.RewardParticles.Load(),
		RewardAvgNanos:       avg(b.RewardTotalNanos.Load(), b.RewardCount.Load()),
		SearchCount:          b.SearchCount.Load(),
		SearchErrors:         b.SearchErrors.Load(),
		SearchAvgNanos:       avg(b.SearchTotalNanos.Load(), b.SearchCount.Load()),
		ResampleCount:        b.ResampleCount.Load(),
		ResampleAvgSurvivors: avg(b.ResampleSurvivors.Load(), b.ResampleCount.Load()),
		GradientCount:        b.GradientCount.Load(),
		GradientErrors:       b.GradientErrors.Load(),
		GradientsUnsupported: b.GradientsUnsupported.Load(),
	}
}

func avg(total, count int64) int64 {
	if count == 0 {
		return 0
	}
	return total / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	RewardCount          int64
	RewardErrors         int64
	RewardParticles      int64
	RewardAvgNanos       int64
	SearchCount          int64
	SearchErrors         int64
	SearchAvgNanos       int64
	ResampleCount        int64
	ResampleAvgSurvivors int64
	GradientCount        int64
	GradientErrors       int64
	GradientsUnsupported int64
}
