package main

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type benchReport struct {
	Version    string         `json:"version"`
	Run        runInfo        `json:"run"`
	Workload   workloadInfo   `json:"workload"`
	LatencyMS  latencyInfo    `json:"latency_ms"`
	Throughput throughputInfo `json:"throughput"`
	Runtime    runtimeInfo    `json:"runtime"`
	GC         gcInfo         `json:"gc"`
}

type runInfo struct {
	Timestamp string `json:"timestamp"`
	Go        string `json:"go"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
	CPUCount  int    `json:"cpu_count"`
}

type workloadInfo struct {
	Profile       string  `json:"profile"`
	Writers       int     `json:"writers"`
	Depth         int     `json:"depth"`
	Width         int     `json:"width"`
	DurationMS    int64   `json:"duration_ms"`
	RPSPerWriter  float64 `json:"rps_per_writer"`
	MaxProcs      int     `json:"max_procs"`
	MemLimitBytes int64   `json:"mem_limit_bytes"`
}

type latencyInfo struct {
	Min float64 `json:"min"`
	P50 float64 `json:"p50"`
	P95 float64 `json:"p95"`
	P99 float64 `json:"p99"`
	Max float64 `json:"max"`
}

type throughputInfo struct {
	WritesTotal        uint64  `json:"writes_total"`
	WritesPerSec       float64 `json:"writes_per_sec"`
	WritesPerSecWriter float64 `json:"writes_per_sec_per_writer"`
	SinkDeliveries     uint64  `json:"sink_deliveries"`
	SinkErrors         uint64  `json:"sink_errors"`
}

type runtimeInfo struct {
	SignalsCreated    float64 `json:"signals_created"`
	RecomputesTotal   float64 `json:"recomputes_total"`
	RecomputeFailures float64 `json:"recompute_failures"`
	FlushesTotal      float64 `json:"flushes_total"`
	RecomputesPerSec  float64 `json:"recomputes_per_sec"`
	FlushesPerSec     float64 `json:"flushes_per_sec"`
}

type gcInfo struct {
	AllocMB      float64 `json:"alloc_mb"`
	HeapLiveMB   float64 `json:"heap_live_mb"`
	NumGC        uint32  `json:"num_gc"`
	PauseTotalMS float64 `json:"pause_total_ms"`
	PauseAvgMS   float64 `json:"pause_avg_ms"`
}

func buildReport(
	cfg benchConfig,
	elapsed time.Duration,
	latencies []time.Duration,
	writes uint64,
	deliveries uint64,
	registry *prometheus.Registry,
	before runtime.MemStats,
	after runtime.MemStats,
) benchReport {
	elapsedSeconds := math.Max(0.001, elapsed.Seconds())
	writesPerSec := float64(writes) / elapsedSeconds

	latency := latencyInfo{}
	if len(latencies) > 0 {
		latency = latencyInfo{
			Min: ms(latencies[0]),
			P50: ms(percentile(latencies, 0.50)),
			P95: ms(percentile(latencies, 0.95)),
			P99: ms(percentile(latencies, 0.99)),
			Max: ms(latencies[len(latencies)-1]),
		}
	}

	rt := gatherRuntimeInfo(registry)
	rt.RecomputesPerSec = rt.RecomputesTotal / elapsedSeconds
	rt.FlushesPerSec = rt.FlushesTotal / elapsedSeconds

	pauseTotal := time.Duration(after.PauseTotalNs - before.PauseTotalNs)

	return benchReport{
		Version: "1",
		Run: runInfo{
			Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
			Go:        runtime.Version(),
			OS:        runtime.GOOS,
			Arch:      runtime.GOARCH,
			CPUCount:  runtime.NumCPU(),
		},
		Workload: workloadInfo{
			Profile:       cfg.Profile,
			Writers:       cfg.Writers,
			Depth:         cfg.Depth,
			Width:         cfg.Width,
			DurationMS:    cfg.Duration.Milliseconds(),
			RPSPerWriter:  cfg.RPS,
			MaxProcs:      cfg.MaxProcs,
			MemLimitBytes: cfg.MemLimitBytes,
		},
		LatencyMS: latency,
		Throughput: throughputInfo{
			WritesTotal:        writes,
			WritesPerSec:       writesPerSec,
			WritesPerSecWriter: writesPerSec / float64(cfg.Writers),
			SinkDeliveries:     deliveries,
		},
		Runtime: rt,
		GC: gcInfo{
			AllocMB:      float64(after.TotalAlloc-before.TotalAlloc) / (1024 * 1024),
			HeapLiveMB:   float64(after.HeapAlloc) / (1024 * 1024),
			NumGC:        after.NumGC - before.NumGC,
			PauseTotalMS: ms(pauseTotal),
			PauseAvgMS:   ms(avgPause(after, before)),
		},
	}
}

// gatherRuntimeInfo pulls the pulse observer's counters out of the
// benchmark-local Prometheus registry.
func gatherRuntimeInfo(registry *prometheus.Registry) runtimeInfo {
	var rt runtimeInfo

	families, err := registry.Gather()
	if err != nil {
		return rt
	}

	for _, family := range families {
		switch family.GetName() {
		case "pulse_signals_created_total":
			for _, m := range family.GetMetric() {
				rt.SignalsCreated += m.GetCounter().GetValue()
			}
		case "pulse_recomputes_total":
			for _, m := range family.GetMetric() {
				value := m.GetCounter().GetValue()
				rt.RecomputesTotal += value
				for _, label := range m.GetLabel() {
					if label.GetName() == "status" && label.GetValue() == "error" {
						rt.RecomputeFailures += value
					}
				}
			}
		case "pulse_flushes_total":
			for _, m := range family.GetMetric() {
				rt.FlushesTotal += m.GetCounter().GetValue()
			}
		}
	}

	return rt
}

func avgPause(after, before runtime.MemStats) time.Duration {
	gcCount := after.NumGC - before.NumGC
	if gcCount == 0 {
		return 0
	}
	return time.Duration((after.PauseTotalNs - before.PauseTotalNs) / uint64(gcCount))
}

func writeSummary(report benchReport) {
	w := os.Stderr

	fmt.Fprintln(w, "=== Pulse Runtime Benchmark ===")
	fmt.Fprintf(w, "Profile: %s\n", report.Workload.Profile)
	fmt.Fprintf(w, "Writers: %d\n", report.Workload.Writers)
	fmt.Fprintf(w, "Graph: %d sources, %d layers of %d computeds\n",
		report.Workload.Width, report.Workload.Depth, report.Workload.Width)
	fmt.Fprintf(w, "Duration: %s\n", time.Duration(report.Workload.DurationMS)*time.Millisecond)
	fmt.Fprintf(w, "Target per-writer rate: %.2f writes/s\n", report.Workload.RPSPerWriter)
	if report.Workload.MaxProcs > 0 {
		fmt.Fprintf(w, "GOMAXPROCS cap: %d\n", report.Workload.MaxProcs)
	}
	if report.Workload.MemLimitBytes > 0 {
		fmt.Fprintf(w, "GOMEMLIMIT cap: %.2f GiB\n", float64(report.Workload.MemLimitBytes)/float64(gib))
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "Total writes: %d\n", report.Throughput.WritesTotal)
	fmt.Fprintf(w, "Throughput: %.1f writes/s (%.2f per writer)\n",
		report.Throughput.WritesPerSec, report.Throughput.WritesPerSecWriter)
	fmt.Fprintf(w, "Sink deliveries: %d\n", report.Throughput.SinkDeliveries)
	fmt.Fprintln(w)

	if report.LatencyMS.Max == 0 {
		fmt.Fprintln(w, "No latency samples recorded.")
	} else {
		fmt.Fprintln(w, "Batch latency (writes -> cascade -> flush):")
		fmt.Fprintf(w, "  min: %.3f ms\n", report.LatencyMS.Min)
		fmt.Fprintf(w, "  p50: %.3f ms\n", report.LatencyMS.P50)
		fmt.Fprintf(w, "  p95: %.3f ms\n", report.LatencyMS.P95)
		fmt.Fprintf(w, "  p99: %.3f ms\n", report.LatencyMS.P99)
		fmt.Fprintf(w, "  max: %.3f ms\n", report.LatencyMS.Max)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Runtime:")
	fmt.Fprintf(w, "  signals:    %.0f\n", report.Runtime.SignalsCreated)
	fmt.Fprintf(w, "  recomputes: %.0f (%.1f/s, %.0f failed)\n",
		report.Runtime.RecomputesTotal, report.Runtime.RecomputesPerSec, report.Runtime.RecomputeFailures)
	fmt.Fprintf(w, "  flushes:    %.0f (%.1f/s)\n",
		report.Runtime.FlushesTotal, report.Runtime.FlushesPerSec)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Go runtime / GC (process-wide):")
	fmt.Fprintf(w, "  alloc:     %.2f MB\n", report.GC.AllocMB)
	fmt.Fprintf(w, "  heap_live: %.2f MB\n", report.GC.HeapLiveMB)
	fmt.Fprintf(w, "  num_gc:    %d\n", report.GC.NumGC)
	fmt.Fprintf(w, "  gc_pause:  %.2f ms (total)\n", report.GC.PauseTotalMS)
	fmt.Fprintf(w, "  gc_pause:  %.2f ms (avg)\n", report.GC.PauseAvgMS)
}

func writeJSON(path string, report benchReport) error {
	var out io.Writer
	if path == "-" {
		out = os.Stdout
	} else {
		file, err := os.Create(path)
		if err != nil {
			return err
		}
		defer file.Close()
		out = file
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}
