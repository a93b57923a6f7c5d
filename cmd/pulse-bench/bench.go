package main

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"runtime/debug"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/vango-dev/pulse/pkg/instrument"
	"github.com/vango-dev/pulse/pkg/pulse"
)

const gib = int64(1024 * 1024 * 1024)

type profile struct {
	Name     string
	Writers  int
	Depth    int
	Width    int
	Duration time.Duration
	RPS      float64

	MaxProcs      int
	MemLimitBytes int64
}

var profiles = map[string]profile{
	"fast": {
		Name:     "fast",
		Writers:  4,
		Depth:    4,
		Width:    8,
		Duration: 5 * time.Second,
		RPS:      200,
	},
	"standard": {
		Name:     "standard",
		Writers:  16,
		Depth:    8,
		Width:    32,
		Duration: 30 * time.Second,
		RPS:      500,
	},
	"stress": {
		Name:          "stress",
		Writers:       64,
		Depth:         16,
		Width:         64,
		Duration:      60 * time.Second,
		RPS:           1000,
		MaxProcs:      4,
		MemLimitBytes: 2 * gib,
	},
}

func profileNames() []string {
	names := make([]string, 0, len(profiles))
	for name := range profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type benchConfig struct {
	Profile       string
	Writers       int
	Depth         int
	Width         int
	Duration      time.Duration
	RPS           float64
	MaxProcs      int
	MemLimitBytes int64
	JSONOutput    string
}

func runCmd() *cobra.Command {
	var (
		profileFlag  string
		writersFlag  int
		depthFlag    int
		widthFlag    int
		durationFlag time.Duration
		rpsFlag      float64
		maxProcsFlag int
		memLimitFlag string
		jsonFlag     string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a benchmark workload",
		RunE: func(cmd *cobra.Command, args []string) error {
			name := strings.ToLower(strings.TrimSpace(profileFlag))
			base, ok := profiles[name]
			if !ok {
				return fmt.Errorf("unknown profile %q", name)
			}

			cfg := benchConfig{
				Profile:       base.Name,
				Writers:       base.Writers,
				Depth:         base.Depth,
				Width:         base.Width,
				Duration:      base.Duration,
				RPS:           base.RPS,
				MaxProcs:      base.MaxProcs,
				MemLimitBytes: base.MemLimitBytes,
				JSONOutput:    strings.TrimSpace(jsonFlag),
			}

			if writersFlag != -1 {
				cfg.Writers = writersFlag
			}
			if depthFlag != -1 {
				cfg.Depth = depthFlag
			}
			if widthFlag != -1 {
				cfg.Width = widthFlag
			}
			if durationFlag != 0 {
				cfg.Duration = durationFlag
			}
			if rpsFlag != -1 {
				cfg.RPS = rpsFlag
			}
			if maxProcsFlag != -1 {
				cfg.MaxProcs = maxProcsFlag
			}
			if memLimitFlag != "" {
				limit, err := parseBytes(memLimitFlag)
				if err != nil {
					return fmt.Errorf("invalid --mem-limit: %w", err)
				}
				cfg.MemLimitBytes = limit
			}
			if cfg.JSONOutput == "" {
				cfg.JSONOutput = "-"
			}

			if err := validate(cfg); err != nil {
				return err
			}

			return runBench(cfg)
		},
	}

	cmd.Flags().StringVar(&profileFlag, "profile", "standard", "profile: fast|standard|stress")
	cmd.Flags().IntVar(&writersFlag, "writers", -1, "number of concurrent writer goroutines")
	cmd.Flags().IntVar(&depthFlag, "depth", -1, "computed layers between sources and sinks")
	cmd.Flags().IntVar(&widthFlag, "width", -1, "signals per layer")
	cmd.Flags().DurationVar(&durationFlag, "duration", 0, "benchmark duration, e.g. 30s")
	cmd.Flags().Float64Var(&rpsFlag, "rps", -1, "target writes/sec per writer")
	cmd.Flags().IntVar(&maxProcsFlag, "max-procs", -1, "GOMAXPROCS cap (0 to leave unchanged)")
	cmd.Flags().StringVar(&memLimitFlag, "mem-limit", "", "GOMEMLIMIT (e.g. 2GiB)")
	cmd.Flags().StringVar(&jsonFlag, "json", "-", "JSON output path ('-' for stdout)")

	return cmd
}

func validate(cfg benchConfig) error {
	if cfg.Writers <= 0 {
		return errors.New("--writers must be > 0")
	}
	if cfg.Depth <= 0 {
		return errors.New("--depth must be > 0")
	}
	if cfg.Width <= 0 {
		return errors.New("--width must be > 0")
	}
	if cfg.Duration <= 0 {
		return errors.New("--duration must be > 0")
	}
	if cfg.RPS <= 0 {
		return errors.New("--rps must be > 0")
	}
	if cfg.MaxProcs < 0 {
		return errors.New("--max-procs must be >= 0")
	}
	if cfg.MemLimitBytes < 0 {
		return errors.New("--mem-limit must be >= 0")
	}
	return nil
}

// graph is a layered signal topology: a row of mutable sources feeding
// Depth rows of computeds, each node summing a slice of the previous row.
type graph struct {
	sources []*pulse.Mutable[int]
	sinks   []*pulse.Computed[int]

	deliveries atomic.Uint64
	sinkErrors atomic.Uint64
}

func buildGraph(cfg benchConfig) (*graph, error) {
	g := &graph{}

	g.sources = make([]*pulse.Mutable[int], cfg.Width)
	for i := range g.sources {
		g.sources[i] = pulse.NewMutable(0, pulse.WithName(fmt.Sprintf("src-%d", i)))
	}

	prev := make([]pulse.Source, cfg.Width)
	for i, s := range g.sources {
		prev[i] = s
	}

	for layer := 0; layer < cfg.Depth; layer++ {
		next := make([]pulse.Source, cfg.Width)
		row := make([]*pulse.Computed[int], cfg.Width)
		for i := 0; i < cfg.Width; i++ {
			left := prev[i]
			right := prev[(i+1)%cfg.Width]
			row[i] = pulse.NewComputed(func() (int, error) {
				a, err := readInt(left)
				if err != nil {
					return 0, err
				}
				b, err := readInt(right)
				if err != nil {
					return 0, err
				}
				return a + b, nil
			}, pulse.WithName(fmt.Sprintf("l%d-%d", layer, i)))
			next[i] = row[i]
		}
		prev = next
		if layer == cfg.Depth-1 {
			g.sinks = row
		}
	}

	for _, sink := range g.sinks {
		s := sink
		if _, err := s.On(func() {
			g.deliveries.Add(1)
			if _, err := s.Get(); err != nil {
				g.sinkErrors.Add(1)
			}
		}); err != nil {
			return nil, err
		}
	}

	return g, nil
}

func readInt(s pulse.Source) (int, error) {
	switch v := s.(type) {
	case *pulse.Mutable[int]:
		return v.Get(), nil
	case *pulse.Computed[int]:
		return v.Get()
	default:
		return 0, fmt.Errorf("unexpected source type %T", s)
	}
}

func runBench(cfg benchConfig) error {
	if cfg.MaxProcs > 0 {
		runtime.GOMAXPROCS(cfg.MaxProcs)
	}
	if cfg.MemLimitBytes > 0 {
		debug.SetMemoryLimit(cfg.MemLimitBytes)
	}
	debug.SetGCPercent(100)

	registry := prometheus.NewRegistry()
	instrument.Prometheus(instrument.WithRegistry(registry))
	defer pulse.SetObserver(nil)

	g, err := buildGraph(cfg)
	if err != nil {
		return err
	}

	// Settle the graph once before timing starts.
	for _, sink := range g.sinks {
		if _, err := sink.Get(); err != nil {
			return err
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Duration)
	defer cancel()

	samplesCh := make(chan time.Duration, cfg.Writers*4)
	var samples []time.Duration
	collectorDone := make(chan struct{})
	go func() {
		defer close(collectorDone)
		for d := range samplesCh {
			samples = append(samples, d)
		}
	}()

	var writesTotal atomic.Uint64

	var before runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&before)

	start := time.Now()
	var wg sync.WaitGroup
	wg.Add(cfg.Writers)
	for w := 0; w < cfg.Writers; w++ {
		writerID := w
		go func() {
			defer wg.Done()
			runWriter(ctx, writerID, cfg, g, &writesTotal, samplesCh)
		}()
	}

	wg.Wait()
	close(samplesCh)
	<-collectorDone

	elapsed := time.Since(start)

	var after runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&after)

	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })

	report := buildReport(cfg, elapsed, samples, writesTotal.Load(), g.deliveries.Load(), registry, before, after)
	report.Throughput.SinkErrors = g.sinkErrors.Load()

	writeSummary(report)
	return writeJSON(cfg.JSONOutput, report)
}

// runWriter performs batched writes against a fixed stripe of sources at the
// target rate. Each sample is the duration of one Batch call, which covers
// the writes, the dirty cascade, and the synchronous flush.
func runWriter(
	ctx context.Context,
	writerID int,
	cfg benchConfig,
	g *graph,
	writesTotal *atomic.Uint64,
	samples chan<- time.Duration,
) {
	period := time.Duration(float64(time.Second) / cfg.RPS)
	src := g.sources[writerID%len(g.sources)]
	next := g.sources[(writerID+1)%len(g.sources)]

	var n int
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		n++
		begin := time.Now()
		pulse.Batch(func() {
			src.Set(n)
			next.Update(func(v int) int { return v + 1 })
		})
		writesTotal.Add(2)

		select {
		case samples <- time.Since(begin):
		default:
		}

		if sleep := period - time.Since(begin); sleep > 0 {
			timer := time.NewTimer(sleep)
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}
		}
	}
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[len(sorted)-1]
	}
	idx := int(math.Ceil(float64(len(sorted))*p)) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func ms(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

func parseBytes(input string) (int64, error) {
	s := strings.TrimSpace(strings.ToLower(input))
	if s == "" {
		return 0, errors.New("empty size")
	}

	multiplier := float64(1)
	switch {
	case strings.HasSuffix(s, "kib"):
		multiplier, s = 1024, strings.TrimSuffix(s, "kib")
	case strings.HasSuffix(s, "mib"):
		multiplier, s = 1024*1024, strings.TrimSuffix(s, "mib")
	case strings.HasSuffix(s, "gib"):
		multiplier, s = 1024*1024*1024, strings.TrimSuffix(s, "gib")
	case strings.HasSuffix(s, "kb"):
		multiplier, s = 1e3, strings.TrimSuffix(s, "kb")
	case strings.HasSuffix(s, "mb"):
		multiplier, s = 1e6, strings.TrimSuffix(s, "mb")
	case strings.HasSuffix(s, "gb"):
		multiplier, s = 1e9, strings.TrimSuffix(s, "gb")
	case strings.HasSuffix(s, "b"):
		s = strings.TrimSuffix(s, "b")
	}

	var value float64
	if _, err := fmt.Sscanf(strings.TrimSpace(s), "%g", &value); err != nil {
		return 0, fmt.Errorf("invalid size %q", input)
	}
	if value < 0 {
		return 0, fmt.Errorf("invalid size %q", input)
	}
	return int64(value*multiplier + 0.5), nil
}
