// Package splitter implements the two-level greedy text chunker the
// ingestion worker runs over each parent buffer: paragraphs are packed
// up to chunkSize; a paragraph that doesn't fit alone is cut at
// sentence boundaries; a sentence that still doesn't fit is cut at
// word boundaries, falling back to raw runes if word segmentation
// fails. Grounded on manshu's ParseService
// splitTextIntoChunksWithSemantics/splitLongParagraph/
// splitLongSentence/splitByCharacters.
package splitter

import (
	"regexp"
	"strings"
)

var (
	paragraphSep = regexp.MustCompile(`\n\n+`)
	sentenceSep  = regexp.MustCompile(`(?:[。!?；]|[.!?;]\s+)`)
	wordSep      = regexp.MustCompile(`\s+`)
)

// Split packs text into chunks of at most chunkSize runes, preferring
// to break on paragraph, then sentence, then word boundaries.
func Split(text string, chunkSize int) []string {
	if chunkSize <= 0 {
		chunkSize = 512
	}
	paragraphs := paragraphSep.Split(text, -1)

	var chunks []string
	var current strings.Builder

	flush := func() {
		if current.Len() > 0 {
			chunks = append(chunks, strings.TrimSpace(current.String()))
			current.Reset()
		}
	}

	for _, paragraph := range paragraphs {
		paragraph = strings.TrimSpace(paragraph)
		if paragraph == "" {
			continue
		}
		switch {
		case runeLen(paragraph) > chunkSize:
			flush()
			chunks = append(chunks, splitLongParagraph(paragraph, chunkSize)...)
		case runeLen(current.String())+2+runeLen(paragraph) > chunkSize: // +2 for the "\n\n" join
			flush()
			current.WriteString(paragraph)
		default:
			if current.Len() > 0 {
				current.WriteString("\n\n")
			}
			current.WriteString(paragraph)
		}
	}
	flush()
	return chunks
}

func splitLongParagraph(paragraph string, chunkSize int) []string {
	sentences := splitKeepingBoundary(paragraph, sentenceSep)

	var chunks []string
	var current strings.Builder

	for _, sentence := range sentences {
		if runeLen(current.String())+runeLen(sentence) > chunkSize {
			if current.Len() > 0 {
				chunks = append(chunks, strings.TrimSpace(current.String()))
				current.Reset()
			}
			if runeLen(sentence) > chunkSize {
				chunks = append(chunks, splitLongSentence(sentence, chunkSize)...)
				continue
			}
		}
		current.WriteString(sentence)
	}
	if current.Len() > 0 {
		chunks = append(chunks, strings.TrimSpace(current.String()))
	}
	return chunks
}

// splitLongSentence packs whitespace-delimited words up to chunkSize;
// a "word" with no whitespace at all (e.g. unsegmented CJK text) that
// is longer than chunkSize falls through to splitByCharacters.
func splitLongSentence(sentence string, chunkSize int) []string {
	words := wordSep.Split(sentence, -1)
	if len(words) <= 1 {
		return splitByCharacters(sentence, chunkSize)
	}

	var chunks []string
	var current strings.Builder
	for _, word := range words {
		if word == "" {
			continue
		}
		if runeLen(word) > chunkSize {
			if current.Len() > 0 {
				chunks = append(chunks, current.String())
				current.Reset()
			}
			chunks = append(chunks, splitByCharacters(word, chunkSize)...)
			continue
		}
		if runeLen(current.String())+runeLen(word) > chunkSize && current.Len() > 0 {
			chunks = append(chunks, current.String())
			current.Reset()
		}
		current.WriteString(word)
	}
	if current.Len() > 0 {
		chunks = append(chunks, current.String())
	}
	return chunks
}

func splitByCharacters(sentence string, chunkSize int) []string {
	runes := []rune(sentence)
	var chunks []string
	for i := 0; i < len(runes); i += chunkSize {
		end := i + chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[i:end]))
	}
	return chunks
}

func runeLen(s string) int {
	return len([]rune(s))
}

// splitKeepingBoundary splits on sep but keeps each match's delimiter
// attached to the preceding piece, like Java's lookbehind-based split.
func splitKeepingBoundary(s string, sep *regexp.Regexp) []string {
	locs := sep.FindAllStringIndex(s, -1)
	if len(locs) == 0 {
		return []string{s}
	}
	var out []string
	start := 0
	for _, loc := range locs {
		out = append(out, s[start:loc[1]])
		start = loc[1]
	}
	if start < len(s) {
		out = append(out, s[start:])
	}
	return out
}
