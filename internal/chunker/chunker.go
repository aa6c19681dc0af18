// Package chunker splits raw text into overlapping bounded-size segments.
package chunker

// Profile bundles a chunk size and overlap, both in characters.
type Profile struct {
	MaxSize int
	Overlap int
}

// BootstrapProfile is the small profile used for the built-in default corpus.
var BootstrapProfile = Profile{MaxSize: 500, Overlap: 50}

// DocumentProfile is the larger profile used for uploaded documents.
var DocumentProfile = Profile{MaxSize: 1000, Overlap: 200}

// Split applies the profile to text.
func (p Profile) Split(text string) []string {
	return Split(text, p.MaxSize, p.Overlap)
}

// Split splits text into chunks of at most maxSize characters, where adjacent
// chunks share overlap trailing/leading characters. Cut points prefer, in
// order: paragraph breaks, sentence ends, word breaks, and finally a hard cut
// at maxSize. Empty input yields no chunks; any non-empty input yields at
// least one. The result is deterministic for identical arguments.
func Split(text string, maxSize, overlap int) []string {
	if len(text) == 0 {
		return nil
	}
	if maxSize < 1 {
		maxSize = 1
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= maxSize {
		overlap = maxSize - 1
	}

	runes := []rune(text)
	var chunks []string
	start := 0
	for {
		if len(runes)-start <= maxSize {
			chunks = append(chunks, string(runes[start:]))
			return chunks
		}
		cut := cutPoint(runes, start, start+maxSize, overlap)
		chunks = append(chunks, string(runes[start:cut]))
		start = cut - overlap
	}
}

// cutPoint returns the position to end the current chunk at, searching
// (start+overlap, end] so every chunk advances past the previous one.
func cutPoint(runes []rune, start, end, overlap int) int {
	min := start + overlap + 1
	if p := lastParagraphBreak(runes, start, end); p >= min {
		return p
	}
	if p := lastSentenceBreak(runes, start, end); p >= min {
		return p
	}
	if p := lastWordBreak(runes, start, end); p >= min {
		return p
	}
	return end
}

// lastParagraphBreak returns the position just after the last blank line in
// (start, end), or -1.
func lastParagraphBreak(runes []rune, start, end int) int {
	for i := end - 1; i > start; i-- {
		if runes[i] == '\n' && runes[i-1] == '\n' {
			return i + 1
		}
	}
	return -1
}

// lastSentenceBreak returns the position just after the last sentence end
// (".", "!" or "?" followed by a space, or any newline) in (start, end), or -1.
func lastSentenceBreak(runes []rune, start, end int) int {
	for i := end - 1; i > start; i-- {
		if runes[i] == '\n' {
			return i + 1
		}
		if i+1 < end && runes[i+1] == ' ' && isSentenceEnd(runes[i]) {
			return i + 2
		}
	}
	return -1
}

func isSentenceEnd(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

// lastWordBreak returns the position just after the last space in (start, end), or -1.
func lastWordBreak(runes []rune, start, end int) int {
	for i := end - 1; i > start; i-- {
		if runes[i] == ' ' {
			return i + 1
		}
	}
	return -1
}
