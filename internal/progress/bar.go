package progress

import (
	"fmt"
	"io"
	"sync"

	"github.com/schollz/progressbar/v3"
)

// BarReporter renders a terminal progress bar counting finished videos.
// Stage changes and failures are written above the bar.
type BarReporter struct {
	w io.Writer

	mu     sync.Mutex
	bar    *progressbar.ProgressBar
	active int
}

// NewBarReporter creates a BarReporter drawing to w, typically os.Stderr.
func NewBarReporter(w io.Writer) *BarReporter {
	return &BarReporter{w: w}
}

func (r *BarReporter) Stage(stage Stage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.bar != nil {
		r.bar.Describe(string(stage))
		return
	}
	_, _ = fmt.Fprintf(r.w, "%s...\n", stage)
}

func (r *BarReporter) Start(total int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.active = 0
	r.bar = progressbar.NewOptions(total,
		progressbar.OptionSetWriter(r.w),
		progressbar.OptionSetDescription("sampling"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "▐",
			BarEnd:        "▌",
		}),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetRenderBlankState(true),
		progressbar.OptionOnCompletion(func() {
			_, _ = fmt.Fprintln(r.w)
		}),
	)
}

func (r *BarReporter) VideoStarted(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.active++
	if r.bar != nil {
		r.bar.Describe(fmt.Sprintf("sampling %s (%d active)", name, r.active))
	}
}

func (r *BarReporter) VideoFinished(status VideoStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active > 0 {
		r.active--
	}
	if r.bar == nil {
		return
	}
	if status.Err != "" {
		_ = r.bar.Clear()
		_, _ = fmt.Fprintf(r.w, "%s: %s: %s\n", status.Name, status.Status, status.Err)
	}
	_ = r.bar.Add(1)
}

func (r *BarReporter) Finish() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.bar != nil {
		_ = r.bar.Finish()
		r.bar = nil
	}
}

var _ Reporter = (*BarReporter)(nil)
