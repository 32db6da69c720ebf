package splitter

import (
	"strings"
	"testing"
)

func TestSplit_SingleShortParagraph(t *testing.T) {
	chunks := Split("a short paragraph", 512)
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d: %v", len(chunks), chunks)
	}
	if chunks[0] != "a short paragraph" {
		t.Fatalf("unexpected chunk content: %q", chunks[0])
	}
}

func TestSplit_PacksParagraphsUntilLimit(t *testing.T) {
	text := "first paragraph\n\nsecond paragraph\n\nthird paragraph"
	chunks := Split(text, 100)
	if len(chunks) != 1 {
		t.Fatalf("expected paragraphs to be packed into 1 chunk, got %d: %v", len(chunks), chunks)
	}
}

func TestSplit_BreaksAtParagraphBoundaryWhenOverLimit(t *testing.T) {
	text := "first paragraph\n\nsecond paragraph"
	chunks := Split(text, 16)
	if len(chunks) < 2 {
		t.Fatalf("expected at least 2 chunks, got %d: %v", len(chunks), chunks)
	}
	for _, c := range chunks {
		if len([]rune(c)) > 16 {
			t.Errorf("chunk exceeds limit: %q (%d runes)", c, len([]rune(c)))
		}
	}
}

func TestSplit_FallsBackToSentenceBoundary(t *testing.T) {
	paragraph := strings.Repeat("word ", 40) + "end of sentence. " + strings.Repeat("more ", 40) + "final."
	chunks := Split(paragraph, 50)
	if len(chunks) < 2 {
		t.Fatalf("expected the long paragraph to be split, got %d chunks", len(chunks))
	}
}

func TestSplit_FallsBackToCharactersForUnsegmentedText(t *testing.T) {
	// No whitespace at all: word segmentation can't help, so the
	// splitter must fall back to raw rune slicing.
	cjk := strings.Repeat("知识库系统", 30)
	chunks := Split(cjk, 10)
	if len(chunks) == 0 {
		t.Fatal("expected at least one chunk")
	}
	for _, c := range chunks {
		if len([]rune(c)) > 10 {
			t.Errorf("chunk exceeds limit: %q", c)
		}
	}
}

func TestSplit_EmptyInputProducesNoChunks(t *testing.T) {
	chunks := Split("   \n\n  ", 512)
	if len(chunks) != 0 {
		t.Fatalf("expected no chunks for blank input, got %v", chunks)
	}
}

func TestSplit_DefaultsChunkSizeWhenNonPositive(t *testing.T) {
	chunks := Split("hello world", 0)
	if len(chunks) != 1 || chunks[0] != "hello world" {
		t.Fatalf("unexpected result with zero chunk size: %v", chunks)
	}
}
