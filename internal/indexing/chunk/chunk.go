package chunk

import (
	"strings"
	"unicode"
)

const (
	DefaultSize    = 1000
	DefaultOverlap = 200
)

// Split breaks text into chunks of at most size characters with roughly
// overlap characters of context carried between neighbors. Sentence
// boundaries are respected when possible; a single sentence longer than
// size falls back to a plain sliding window. Text that already fits in
// one chunk is returned as-is.
func Split(text string, size, overlap int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if size <= 0 {
		size = DefaultSize
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= size {
		overlap = size / 2
	}
	if len(text) <= size {
		return []string{text}
	}

	sentences := sentences(text)
	if len(sentences) == 1 && len(sentences[0]) > size {
		return simpleSplit(sentences[0], size, overlap)
	}

	var (
		chunks  []string
		current strings.Builder
	)
	flush := func() {
		chunk := strings.TrimSpace(current.String())
		if chunk != "" {
			chunks = append(chunks, chunk)
		}
		current.Reset()
	}

	for _, sentence := range sentences {
		if len(sentence) > size {
			// Oversized sentence: flush what we have and window it alone.
			flush()
			chunks = append(chunks, simpleSplit(sentence, size, overlap)...)
			continue
		}

		if current.Len() > 0 && current.Len()+1+len(sentence) > size {
			tail := overlapTail(current.String(), overlap)
			flush()
			if tail != "" {
				current.WriteString(tail)
			}
		}
		if current.Len() > 0 {
			current.WriteByte(' ')
		}
		current.WriteString(sentence)
	}
	flush()
	return chunks
}

// sentences splits on runs of sentence-ending punctuation followed by
// whitespace or end of text, keeping the punctuation with its sentence.
func sentences(text string) []string {
	var (
		out   []string
		start int
	)
	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		if !isSentenceEnd(runes[i]) {
			continue
		}
		for i+1 < len(runes) && isSentenceEnd(runes[i+1]) {
			i++
		}
		if i+1 < len(runes) && !unicode.IsSpace(runes[i+1]) {
			continue
		}
		sentence := strings.TrimSpace(string(runes[start : i+1]))
		if sentence != "" {
			out = append(out, sentence)
		}
		start = i + 1
	}
	if rest := strings.TrimSpace(string(runes[start:])); rest != "" {
		out = append(out, rest)
	}
	if len(out) == 0 {
		return []string{strings.TrimSpace(text)}
	}
	return out
}

func isSentenceEnd(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

// overlapTail returns the last whole words of text, at most overlap
// characters worth, to seed the next chunk with context. Works in runes
// so multibyte text is never cut mid-character.
func overlapTail(text string, overlap int) string {
	text = strings.TrimSpace(text)
	if overlap <= 0 || text == "" {
		return ""
	}
	runes := []rune(text)
	if len(runes) <= overlap {
		return text
	}
	tail := string(runes[len(runes)-overlap:])
	if idx := strings.IndexByte(tail, ' '); idx >= 0 {
		tail = tail[idx+1:]
	}
	return strings.TrimSpace(tail)
}

// simpleSplit is the fallback sliding window: fixed-size chunks stepping
// by size-overlap, so chunks[i] starts where chunks[i-1] minus the
// overlap region ended. Windows are measured in runes, keeping every
// chunk valid UTF-8.
func simpleSplit(text string, size, overlap int) []string {
	runes := []rune(text)
	if len(runes) <= size {
		return []string{text}
	}
	step := size - overlap
	if step <= 0 {
		step = size
	}
	var out []string
	for start := 0; start < len(runes); start += step {
		end := start + size
		if end >= len(runes) {
			out = append(out, string(runes[start:]))
			break
		}
		out = append(out, string(runes[start:end]))
	}
	return out
}
