package chunking

// Splitter cuts text into pieces of at most MaxRunes runes. Cuts land after a line
// break when one exists in the second half of the window, then after a space, then
// mid-word. Joining the pieces yields the original text.
type Splitter struct {
	MaxRunes int
}

func NewSplitter(maxRunes int) *Splitter {
	if maxRunes <= 0 {
		maxRunes = 4096
	}
	return &Splitter{MaxRunes: maxRunes}
}

func (s *Splitter) Split(text string) []string {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	out := make([]string, 0, len(runes)/s.MaxRunes+1)
	for start := 0; start < len(runes); {
		end := start + s.MaxRunes
		if end >= len(runes) {
			out = append(out, string(runes[start:]))
			break
		}
		cut := cutPoint(runes[start:end])
		out = append(out, string(runes[start:start+cut]))
		start += cut
	}
	return out
}

func cutPoint(window []rune) int {
	half := len(window) / 2
	for _, sep := range []rune{'\n', ' '} {
		for i := len(window) - 1; i >= half; i-- {
			if window[i] == sep {
				return i + 1
			}
		}
	}
	return len(window)
}
