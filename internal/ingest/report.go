package ingest

import (
	"fmt"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
)

// RunReport is a point-in-time view of a run's progress.
type RunReport struct {
	RunID     string        `json:"run_id"`
	Total     int           `json:"total"`
	Processed int           `json:"processed"`
	Failed    int           `json:"failed"`
	Started   time.Time     `json:"started"`
	Elapsed   time.Duration `json:"elapsed"`
	Deleted   int           `json:"deleted"`
	DryRun    bool          `json:"dry_run"`
}

// Done is the number of items with a known outcome.
func (r RunReport) Done() int {
	return r.Processed + r.Failed
}

// Throughput is finished items per second.
func (r RunReport) Throughput() float64 {
	secs := r.Elapsed.Seconds()
	if secs <= 0 {
		return 0
	}
	return float64(r.Done()) / secs
}

// ETA estimates the time left from the observed rate. Zero when unknown or finished.
func (r RunReport) ETA() time.Duration {
	remaining := r.Total - r.Done()
	rate := r.Throughput()
	if remaining <= 0 || rate <= 0 {
		return 0
	}
	return time.Duration(float64(remaining) / rate * float64(time.Second))
}

// String renders the one-line progress summary.
func (r RunReport) String() string {
	return fmt.Sprintf("%s/%s done (%d ok, %d failed) in %s, %.2f items/s, eta %s",
		humanize.Comma(int64(r.Done())), humanize.Comma(int64(r.Total)),
		r.Processed, r.Failed,
		r.Elapsed.Round(time.Millisecond), r.Throughput(), r.ETA().Round(time.Second))
}

// Progress accumulates outcomes from concurrent items.
type Progress struct {
	mu      sync.Mutex
	report  RunReport
	nowFunc func() time.Time
}

// NewProgress starts tracking a run of total items.
func NewProgress(runID string, total int) *Progress {
	p := &Progress{nowFunc: time.Now}
	p.report = RunReport{RunID: runID, Total: total, Started: p.nowFunc()}
	return p
}

// Record adds one item outcome.
func (p *Progress) Record(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err != nil {
		p.report.Failed++
		return
	}
	p.report.Processed++
}

// SetTotal changes the expected item count.
func (p *Progress) SetTotal(total int) {
	p.mu.Lock()
	p.report.Total = total
	p.mu.Unlock()
}

// SetDeleted records the reconciliation outcome.
func (p *Progress) SetDeleted(n int) {
	p.mu.Lock()
	p.report.Deleted = n
	p.mu.Unlock()
}

// Snapshot returns the current report with elapsed time filled in.
func (p *Progress) Snapshot() RunReport {
	p.mu.Lock()
	defer p.mu.Unlock()
	r := p.report
	r.Elapsed = p.nowFunc().Sub(r.Started)
	return r
}
