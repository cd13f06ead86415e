package jobs

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"yayd/internal/fetch"
)

const (
	messageQueued     = "Queued"
	messageStarting   = "Starting download"
	messageUnknown    = "Downloading: size unknown"
	messageProcessing = "Download completed. Processing video..."
	messagePostProc   = "Post-processing..."
	messageCompleted  = "Download completed"
	messageCancelled  = "Download cancelled"
	messageCancelling = "Cancelling..."
)

// applyEvent folds one provider event into the record. Progress is clamped to
// [0,100] and never moves backwards.
func applyEvent(rec *record, ev fetch.Event) {
	if ev.ItemCount > 0 {
		rec.itemCount = ev.ItemCount
		rec.itemIndex = ev.ItemIndex
	}
	if title := strings.TrimSpace(ev.Title); title != "" && rec.title == "" {
		rec.title = title
	}

	switch ev.Phase {
	case fetch.PhaseDownloading:
		if ev.Total <= 0 {
			rec.indeterminate = true
			rec.statusMessage = itemPrefix(ev) + messageUnknown
			break
		}
		fraction := float64(ev.Downloaded) / float64(ev.Total)
		rec.indeterminate = false
		rec.setProgress(overallPercent(fraction, ev.ItemIndex, ev.ItemCount))
		rec.statusMessage = itemPrefix(ev) + downloadingMessage(clampPercent(fraction*100), ev)
	case fetch.PhasePostProcessing:
		rec.statusMessage = itemPrefix(ev) + messagePostProc
	case fetch.PhaseFinished, fetch.PhaseMerged:
		if name := strings.TrimSpace(ev.Filename); name != "" {
			rec.outputPath = name
		}
		if ev.ItemCount > 1 && ev.ItemIndex > 0 {
			rec.setProgress(overallPercent(1, ev.ItemIndex, ev.ItemCount))
		}
		rec.indeterminate = false
		rec.statusMessage = itemPrefix(ev) + messageProcessing
	}
	rec.version++
}

func (r *record) setProgress(percent float64) {
	percent = clampPercent(percent)
	if percent > r.progress {
		r.progress = percent
	}
}

// overallPercent converts an item fraction into job progress. Collections
// weight every item equally.
func overallPercent(fraction float64, index, count int) float64 {
	fraction = math.Max(0, math.Min(1, fraction))
	if count > 1 && index >= 1 && index <= count {
		return (float64(index-1) + fraction) / float64(count) * 100
	}
	return fraction * 100
}

func clampPercent(value float64) float64 {
	switch {
	case math.IsNaN(value), value < 0:
		return 0
	case value > 100:
		return 100
	default:
		return value
	}
}

func itemPrefix(ev fetch.Event) string {
	if ev.ItemCount > 1 && ev.ItemIndex > 0 {
		return fmt.Sprintf("[%d/%d] ", ev.ItemIndex, ev.ItemCount)
	}
	return ""
}

// downloadingMessage renders "Downloading: 42.1% (12 MB/30 MB) @ 2.1 MB/s ETA: 8s".
func downloadingMessage(percent float64, ev fetch.Event) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Downloading: %.1f%% (%s/%s)", percent, humanize.Bytes(uint64(max(ev.Downloaded, 0))), humanize.Bytes(uint64(ev.Total)))
	if ev.Speed > 0 {
		fmt.Fprintf(&b, " @ %s/s", humanize.Bytes(uint64(ev.Speed)))
	}
	if ev.ETA > 0 {
		fmt.Fprintf(&b, " ETA: %s", ev.ETA.Round(time.Second))
	}
	return b.String()
}
