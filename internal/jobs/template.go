package jobs

import (
	"path/filepath"
)

// formatSelectors maps quality tiers to provider format selectors.
var formatSelectors = map[Quality]string{
	Quality480:  "bestvideo[height<=480]+bestaudio/best[height<=480]",
	Quality720:  "bestvideo[height<=720]+bestaudio/best[height<=720]",
	Quality1080: "bestvideo[height<=1080]+bestaudio/best[height<=1080]",
	QualityBest: "bestvideo+bestaudio/best",
}

const audioFormatSelector = "bestaudio/best"

// FormatSelector returns the provider format selector for the requested
// quality. Audio-only requests ignore quality. Unknown tiers select best.
func FormatSelector(quality Quality, audioOnly bool) string {
	if audioOnly {
		return audioFormatSelector
	}
	if selector, ok := formatSelectors[quality]; ok {
		return selector
	}
	return formatSelectors[QualityBest]
}

// OutputTemplate builds the provider output template for a job. token keeps
// concurrent jobs writing to the same directory apart; the result scan relies
// on it appearing in every filename. Collections nest under a directory named
// after the collection title and prefix each item with its 1-based index.
func OutputTemplate(dir, token string, collection bool) string {
	if collection {
		return filepath.Join(dir, "%(playlist_title)s", token+"_%(playlist_index)03d-%(title)s.%(ext)s")
	}
	return filepath.Join(dir, "%(title).100s_"+token+".%(ext)s")
}
