// Package chunker splits long document text into overlapping, paragraph-aligned segments.
package chunker

import "strings"

const paragraphBreak = "\n\n"

// Chunk is one segment of a document. Overlap holds the tail copied from the
// previous chunk and is empty for the first chunk.
type Chunk struct {
	Index   int
	Text    string
	Overlap string
}

// Split packs paragraphs greedily into chunks of at most maxChunkSize runes,
// then prefixes every chunk after the first with the last overlap runes of its
// predecessor. A paragraph longer than maxChunkSize becomes its own chunk and is
// not split further, and the overlap prefix may push a chunk past maxChunkSize.
func Split(text string, maxChunkSize, overlap int) []string {
	chunks := Build(text, maxChunkSize, overlap)
	out := make([]string, len(chunks))
	for i, c := range chunks {
		out[i] = c.Text
	}
	return out
}

// Build is Split with each segment annotated by its index and overlap prefix.
func Build(text string, maxChunkSize, overlap int) []Chunk {
	if text == "" {
		return []Chunk{}
	}
	if runeLen(text) < maxChunkSize {
		return []Chunk{{Index: 0, Text: text}}
	}

	base := pack(text, maxChunkSize)
	chunks := make([]Chunk, len(base))
	for i, segment := range base {
		chunks[i] = Chunk{Index: i, Text: segment}
		if i == 0 || overlap <= 0 {
			continue
		}
		prefix := tail(base[i-1], overlap)
		chunks[i].Overlap = prefix
		chunks[i].Text = prefix + paragraphBreak + segment
	}
	return chunks
}

func pack(text string, maxChunkSize int) []string {
	var base []string
	var buf strings.Builder
	bufLen := 0
	breakLen := runeLen(paragraphBreak)

	for _, para := range strings.Split(text, paragraphBreak) {
		paraLen := runeLen(para)
		if bufLen > 0 && bufLen+breakLen+paraLen > maxChunkSize {
			base = append(base, buf.String())
			buf.Reset()
			bufLen = 0
		}
		if bufLen > 0 {
			buf.WriteString(paragraphBreak)
			bufLen += breakLen
		}
		buf.WriteString(para)
		bufLen += paraLen
	}
	if bufLen > 0 {
		base = append(base, buf.String())
	}
	return base
}

func tail(s string, n int) string {
	runes := []rune(s)
	if n >= len(runes) {
		return s
	}
	return string(runes[len(runes)-n:])
}

func runeLen(s string) int {
	return len([]rune(s))
}
