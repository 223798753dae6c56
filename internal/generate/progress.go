package generate

import (
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/progress"

	"github.com/vk/phylogen/internal/config"
)

// tracker wraps the optional terminal progress bar so the worker loop does
// not care whether progress rendering is enabled.
type tracker struct {
	pw progress.Writer
	t  *progress.Tracker
}

func (r *Runner) newTracker(split config.Split, dataDir string) *tracker {
	if !r.ShowProgress {
		return &tracker{}
	}

	pw := progress.NewWriter()
	pw.SetOutputWriter(os.Stderr)
	pw.SetUpdateFrequency(250 * time.Millisecond)
	pw.SetTrackerLength(30)
	pw.Style().Visibility.ETA = true

	t := &progress.Tracker{
		Message: "Generating " + dataDir,
		Total:   int64(split.Count),
		Units:   progress.UnitsDefault,
	}
	pw.AppendTracker(t)
	go pw.Render()
	return &tracker{pw: pw, t: t}
}

func (t *tracker) increment() {
	if t.t != nil {
		t.t.Increment(1)
	}
}

func (t *tracker) stop() {
	if t.pw == nil {
		return
	}
	t.t.MarkAsDone()
	t.pw.Stop()
}
