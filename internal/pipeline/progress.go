package pipeline

import (
	"fmt"
	"sync/atomic"
	"time"
)

// liveProgress renders a single status line while the pool runs. Workers
// bump the counters; one goroutine owns the terminal.
type liveProgress struct {
	enabled bool

	runID   string
	planned int
	resumed int

	completed atomic.Int64
	failed    atomic.Int64

	started time.Time
	stop    chan struct{}
}

func newLiveProgress(enabled bool, runID string, planned, resumed int) *liveProgress {
	return &liveProgress{
		enabled: enabled,
		runID:   runID,
		planned: planned,
		resumed: resumed,
		started: time.Now(),
		stop:    make(chan struct{}),
	}
}

func (p *liveProgress) Start() {
	if !p.enabled {
		return
	}
	go func() {
		t := time.NewTicker(700 * time.Millisecond)
		defer t.Stop()
		for {
			select {
			case <-p.stop:
				return
			case <-t.C:
				fmt.Printf("\r\033[2K%s", p.render())
			}
		}
	}()
}

func (p *liveProgress) Stop(final string) {
	if !p.enabled {
		return
	}
	close(p.stop)
	fmt.Printf("\r\033[2K%s\n", final)
}

func (p *liveProgress) ItemCompleted() {
	p.completed.Add(1)
}

func (p *liveProgress) ItemFailed() {
	p.failed.Add(1)
}

func (p *liveProgress) render() string {
	line := fmt.Sprintf("[run %s] translated %d/%d", p.runID, p.completed.Load(), p.planned)
	if n := p.failed.Load(); n > 0 {
		line += fmt.Sprintf("  failed %d", n)
	}
	if p.resumed > 0 {
		line += fmt.Sprintf("  resumed %d", p.resumed)
	}
	line += "  " + time.Since(p.started).Round(time.Second).String()
	return line
}
