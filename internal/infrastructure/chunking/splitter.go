package chunking

import (
	"strings"
	"unicode"
)

// Splitter cuts extracted page text into overlapping rune windows. Windows
// prefer to end on whitespace so a word is never torn across two chunks; the
// scan back for a boundary gives up after an eighth of the window, since text
// without any whitespace (tables, base64 runs) still has to be cut somewhere.
type Splitter struct {
	ChunkSize int
	Overlap   int
}

func NewSplitter(chunkSize, overlap int) *Splitter {
	if chunkSize <= 0 {
		chunkSize = 900
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= chunkSize {
		overlap = chunkSize / 4
	}
	return &Splitter{
		ChunkSize: chunkSize,
		Overlap:   overlap,
	}
}

func (s *Splitter) Split(text string) []string {
	runes := []rune(text)
	out := make([]string, 0, len(runes)/s.ChunkSize+1)

	start := 0
	for start < len(runes) {
		end := start + s.ChunkSize
		if end >= len(runes) {
			end = len(runes)
		} else {
			end = s.cutAt(runes, start, end)
		}

		if piece := strings.TrimSpace(string(runes[start:end])); piece != "" {
			out = append(out, piece)
		}
		if end == len(runes) {
			break
		}

		next := end - s.Overlap
		if next <= start {
			next = start + 1
		}
		// The overlapped restart snaps forward to a word start so no chunk
		// begins mid-word. Unbroken text forfeits its overlap instead.
		for next < end && !unicode.IsSpace(runes[next-1]) {
			next++
		}
		start = next
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// cutAt moves a window end left to the nearest whitespace rune, bounded by an
// eighth of the window so pathological unbroken text still advances.
func (s *Splitter) cutAt(runes []rune, start, end int) int {
	limit := end - s.ChunkSize/8
	if limit < start+1 {
		limit = start + 1
	}
	for i := end; i > limit; i-- {
		if unicode.IsSpace(runes[i-1]) {
			return i
		}
	}
	return end
}
