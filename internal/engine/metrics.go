package engine

import (
	"fmt"
	"strings"
	"sync/atomic"
)

// Metrics tracks operational counters across the engine.
var metrics struct {
	AnalyzeRequests     atomic.Int64
	RateLimited         atomic.Int64
	LLMCalls            atomic.Int64
	LLMErrors           atomic.Int64
	FetchRequests       atomic.Int64
	FetchErrors         atomic.Int64
	CaptionRequests     atomic.Int64
	TranscriptionJobs   atomic.Int64
	TranscriptionErrors atomic.Int64
	ExtractionFailures  atomic.Int64
	PersistenceFailures atomic.Int64
}

// GetMetrics returns a snapshot of all metrics including cache stats.
func GetMetrics() map[string]int64 {
	hits, misses := CacheStats()
	return map[string]int64{
		"analyze_requests":     metrics.AnalyzeRequests.Load(),
		"rate_limited":         metrics.RateLimited.Load(),
		"llm_calls":            metrics.LLMCalls.Load(),
		"llm_errors":           metrics.LLMErrors.Load(),
		"fetch_requests":       metrics.FetchRequests.Load(),
		"fetch_errors":         metrics.FetchErrors.Load(),
		"caption_requests":     metrics.CaptionRequests.Load(),
		"transcription_jobs":   metrics.TranscriptionJobs.Load(),
		"transcription_errors": metrics.TranscriptionErrors.Load(),
		"extraction_failures":  metrics.ExtractionFailures.Load(),
		"persistence_failures": metrics.PersistenceFailures.Load(),
		"cache_hits":           hits,
		"cache_misses":         misses,
	}
}

// FormatMetrics returns metrics as a simple text format for the HTTP endpoint.
func FormatMetrics() string {
	m := GetMetrics()
	keys := []string{
		"analyze_requests", "rate_limited",
		"llm_calls", "llm_errors",
		"fetch_requests", "fetch_errors",
		"caption_requests",
		"transcription_jobs", "transcription_errors",
		"extraction_failures", "persistence_failures",
		"cache_hits", "cache_misses",
	}
	var sb strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&sb, "%s %d\n", k, m[k])
	}
	return sb.String()
}

// Incrementors for the analysis and sources sub-packages.
func IncrAnalyzeRequests()     { metrics.AnalyzeRequests.Add(1) }
func IncrCaptionRequests()     { metrics.CaptionRequests.Add(1) }
func IncrTranscriptionJobs()   { metrics.TranscriptionJobs.Add(1) }
func IncrTranscriptionErrors() { metrics.TranscriptionErrors.Add(1) }
func IncrExtractionFailures()  { metrics.ExtractionFailures.Add(1) }
func IncrPersistenceFailures() { metrics.PersistenceFailures.Add(1) }
