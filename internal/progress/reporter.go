package progress

import (
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/ligustah/objtar/pkg/tarstream"
)

// Options configures the progress reporter.
type Options struct {
	// Source describes what is being archived (for display).
	Source string

	// Output is where to write progress output.
	// Default: os.Stderr
	Output io.Writer

	// UpdateInterval is how often to update the progress display.
	// Default: 500ms
	UpdateInterval time.Duration
}

// Reporter outputs human-readable progress information. It implements
// tarstream.Observer.
type Reporter struct {
	opts Options

	objects atomic.Int64
	bytes   atomic.Int64
	skipped atomic.Int64
	chunks  atomic.Int64
	written atomic.Int64

	mu         sync.Mutex
	startTime  time.Time
	lastUpdate time.Time
	lastBytes  int64
	stopCh     chan struct{}
	doneCh     chan struct{}
	started    bool
	stopped    bool
}

var _ tarstream.Observer = (*Reporter)(nil)

// NewReporter creates a new progress reporter.
func NewReporter(opts Options) *Reporter {
	if opts.Output == nil {
		opts.Output = os.Stderr
	}
	if opts.UpdateInterval == 0 {
		opts.UpdateInterval = 500 * time.Millisecond
	}

	return &Reporter{
		opts:   opts,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Start begins outputting progress information.
func (r *Reporter) Start() {
	r.mu.Lock()
	r.started = true
	r.startTime = time.Now()
	r.lastUpdate = r.startTime
	r.mu.Unlock()

	fmt.Fprintf(r.opts.Output, "[objtar] Archiving: %s\n", r.opts.Source)

	go r.updateLoop()
}

// Stop stops the reporter and prints the final summary. It waits for the
// update loop to finish.
func (r *Reporter) Stop() {
	r.mu.Lock()
	if r.stopped || !r.started {
		r.mu.Unlock()
		return
	}
	r.stopped = true
	r.mu.Unlock()

	close(r.stopCh)
	<-r.doneCh
}

// ObjectArchived counts an object written to an archive.
func (r *Reporter) ObjectArchived(_ string, size int64) {
	r.objects.Add(1)
	r.bytes.Add(size)
}

// ObjectSkipped counts an object left out of the archives.
func (r *Reporter) ObjectSkipped(string, error) {
	r.skipped.Add(1)
}

// ChunkCompleted counts a finished archive.
func (r *Reporter) ChunkCompleted(info tarstream.ChunkInfo) {
	r.chunks.Add(1)
	r.written.Add(info.Size)
}

func (r *Reporter) updateLoop() {
	defer close(r.doneCh)

	ticker := time.NewTicker(r.opts.UpdateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopCh:
			r.printFinalStatus()
			return
		case <-ticker.C:
			r.printProgress()
		}
	}
}

func (r *Reporter) printProgress() {
	now := time.Now()
	completed := r.bytes.Load()

	elapsed := now.Sub(r.lastUpdate).Seconds()
	if elapsed < 0.1 {
		elapsed = 0.1
	}
	speed := float64(completed-r.lastBytes) / elapsed

	r.lastUpdate = now
	r.lastBytes = completed

	fmt.Fprintf(r.opts.Output, "\r[objtar] Objects: %d | %s | Chunks: %d | Skipped: %d | Speed: %s/s    ",
		r.objects.Load(),
		FormatBytes(completed),
		r.chunks.Load(),
		r.skipped.Load(),
		FormatBytes(int64(speed)),
	)
}

func (r *Reporter) printFinalStatus() {
	completed := r.bytes.Load()
	duration := time.Since(r.startTime)
	avgSpeed := float64(completed) / max(duration.Seconds(), 0.001)

	fmt.Fprintf(r.opts.Output, "\r[objtar] Objects: %d | %s | Chunks: %d | Skipped: %d | Complete!    \n",
		r.objects.Load(),
		FormatBytes(completed),
		r.chunks.Load(),
		r.skipped.Load(),
	)
	fmt.Fprintf(r.opts.Output, "[objtar] Written: %s | Total time: %s | Average speed: %s/s\n",
		FormatBytes(r.written.Load()),
		formatDuration(duration),
		FormatBytes(int64(avgSpeed)),
	)
}

// formatDuration formats a duration as a human-readable string.
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.0fs", d.Seconds())
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm %ds", m, s)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%dh %dm %ds", h, m, s)
}

// FormatBytes formats bytes with IEC units, e.g. "1.5 KiB".
func FormatBytes(b int64) string {
	if b < 0 {
		b = 0
	}
	return humanize.IBytes(uint64(b))
}
