package ai

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"unicode"
	"unicode/utf8"
)

const maxWordRunes = 100

// WordPiece is a BERT uncased tokenizer driven by a vocab.txt file.
type WordPiece struct {
	vocab map[string]int64
	unk   int64
	cls   int64
	sep   int64
	pad   int64
}

func LoadWordPiece(path string) (*WordPiece, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open vocab: %w", err)
	}
	defer f.Close()

	var tokens []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		tokens = append(tokens, strings.TrimRight(sc.Text(), "\r"))
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read vocab: %w", err)
	}
	return NewWordPiece(tokens)
}

// NewWordPiece builds a tokenizer where each token's id is its line index.
func NewWordPiece(tokens []string) (*WordPiece, error) {
	w := &WordPiece{vocab: make(map[string]int64, len(tokens))}
	for i, tok := range tokens {
		if _, dup := w.vocab[tok]; !dup {
			w.vocab[tok] = int64(i)
		}
	}
	for name, dst := range map[string]*int64{"[UNK]": &w.unk, "[CLS]": &w.cls, "[SEP]": &w.sep, "[PAD]": &w.pad} {
		id, ok := w.vocab[name]
		if !ok {
			return nil, fmt.Errorf("vocab is missing %s", name)
		}
		*dst = id
	}
	return w, nil
}

// wordSpan is the byte range of one pre-tokenized word in the source text.
type wordSpan struct {
	start int
	end   int
}

// tokenize returns word-piece ids, the word each id came from, and the word
// byte ranges.
func (w *WordPiece) tokenize(text string) ([]int64, []int, []wordSpan) {
	words := splitWords(text)
	var (
		ids    []int64
		owners []int
	)
	for i, span := range words {
		for _, id := range w.pieces(strings.ToLower(text[span.start:span.end])) {
			ids = append(ids, id)
			owners = append(owners, i)
		}
	}
	return ids, owners, words
}

func (w *WordPiece) pieces(word string) []int64 {
	runes := []rune(word)
	if len(runes) > maxWordRunes {
		return []int64{w.unk}
	}

	var ids []int64
	for start := 0; start < len(runes); {
		end := len(runes)
		found := int64(-1)
		for ; end > start; end-- {
			sub := string(runes[start:end])
			if start > 0 {
				sub = "##" + sub
			}
			if id, ok := w.vocab[sub]; ok {
				found = id
				break
			}
		}
		if found < 0 {
			return []int64{w.unk}
		}
		ids = append(ids, found)
		start = end
	}
	return ids
}

// splitWords separates on whitespace and isolates punctuation.
func splitWords(text string) []wordSpan {
	var spans []wordSpan
	start := -1
	for i, r := range text {
		switch {
		case unicode.IsSpace(r) || unicode.IsControl(r):
			if start >= 0 {
				spans = append(spans, wordSpan{start, i})
				start = -1
			}
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			if start >= 0 {
				spans = append(spans, wordSpan{start, i})
				start = -1
			}
			spans = append(spans, wordSpan{i, i + utf8.RuneLen(r)})
		default:
			if start < 0 {
				start = i
			}
		}
	}
	if start >= 0 {
		spans = append(spans, wordSpan{start, len(text)})
	}
	return spans
}
