package captions

import (
	"golang.org/x/text/cases"

	"github.com/iiab/tubeshelf/internal/catalog"
)

// Passage is a merged, contiguous caption span. End is estimated from the
// reading speed of the accumulated text rather than reported by the source.
type Passage struct {
	MediaID int64
	Start   float64
	End     float64
	Text    string
}

// Reading-speed model for estimating how long a fragment stays on screen.
const (
	charsPerWord   = 4.2
	wordsPerMinute = 220.0
	// mergeSlack absorbs encoding jitter between adjacent fragments.
	mergeSlack = 0.5
)

var foldCaser = cases.Fold()

func estimatedReadSeconds(text string) float64 {
	return float64(len(text)) / charsPerWord / wordsPerMinute * 60
}

// Merge coalesces temporally-adjacent fragments into passages. Fragments
// must arrive grouped by owning media and ordered by time offset within each
// group; the sweep is a single left-to-right pass, O(n).
func Merge(fragments []catalog.Caption) []Passage {
	if len(fragments) == 0 {
		return nil
	}

	passages := make([]Passage, 0, len(fragments))
	current := seedPassage(fragments[0])
	lastText := fragments[0].Text

	for _, frag := range fragments[1:] {
		if frag.MediaID != current.MediaID || frag.Time > current.End+mergeSlack {
			passages = append(passages, current)
			current = seedPassage(frag)
			lastText = frag.Text
			continue
		}
		if foldCaser.String(frag.Text) != foldCaser.String(lastText) {
			current.Text += " " + frag.Text
			lastText = frag.Text
		}
		current.End = frag.Time + estimatedReadSeconds(frag.Text)
	}
	passages = append(passages, current)
	return passages
}

func seedPassage(frag catalog.Caption) Passage {
	return Passage{
		MediaID: frag.MediaID,
		Start:   frag.Time,
		End:     frag.Time + estimatedReadSeconds(frag.Text),
		Text:    frag.Text,
	}
}
