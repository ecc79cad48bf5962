package metrics

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v4/process"
)

// Usage summarises resource samples taken while the target ran.
type Usage struct {
	Samples    int     `json:"samples"`
	PeakRSS    uint64  `json:"peak_rss"`
	CPUSeconds float64 `json:"cpu_seconds"`
	MaxThreads int32   `json:"max_threads"`
}

// Sampler polls one process until stopped or until the process disappears.
// A nil *Sampler is valid and reports zero usage.
type Sampler struct {
	pid      int32
	interval time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	mu    sync.Mutex
	usage Usage
}

// StartSampler begins sampling pid every interval. It returns nil when
// interval or pid is not positive.
func StartSampler(ctx context.Context, pid int, interval time.Duration) *Sampler {
	if interval <= 0 || pid <= 0 {
		return nil
	}
	s := &Sampler{pid: int32(pid), interval: interval, stopCh: make(chan struct{})}
	s.wg.Add(1)
	go s.loop(ctx)
	return s
}

func (s *Sampler) loop(ctx context.Context) {
	defer s.wg.Done()
	proc, err := process.NewProcessWithContext(ctx, s.pid)
	if err != nil {
		slog.Debug("Usage sampling unavailable", "pid", s.pid, "error", err)
		return
	}
	if !s.sample(ctx, proc) {
		return
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			if !s.sample(ctx, proc) {
				return
			}
		}
	}
}

// sample reads one snapshot; false means the process is gone.
func (s *Sampler) sample(ctx context.Context, proc *process.Process) bool {
	mem, err := proc.MemoryInfoWithContext(ctx)
	if err != nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.usage.Samples++
	if mem.RSS > s.usage.PeakRSS {
		s.usage.PeakRSS = mem.RSS
	}
	if times, err := proc.TimesWithContext(ctx); err == nil {
		if cpu := times.User + times.System; cpu > s.usage.CPUSeconds {
			s.usage.CPUSeconds = cpu
		}
	}
	if n, err := proc.NumThreadsWithContext(ctx); err == nil && n > s.usage.MaxThreads {
		s.usage.MaxThreads = n
	}
	return true
}

// Stop ends sampling and returns what was observed.
func (s *Sampler) Stop() Usage {
	if s == nil {
		return Usage{}
	}
	s.stopOnce.Do(func() { close(s.stopCh) })
	s.wg.Wait()
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.usage
}
