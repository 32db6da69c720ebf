package textextract

import (
	"strings"
	"testing"
)

func TestExtract_PlainText(t *testing.T) {
	text, err := Extract("notes.txt", strings.NewReader("hello world"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "hello world" {
		t.Fatalf("unexpected text: %q", text)
	}
}

func TestExtract_NoExtensionTreatedAsPlainText(t *testing.T) {
	text, err := Extract("README", strings.NewReader("plain content"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "plain content" {
		t.Fatalf("unexpected text: %q", text)
	}
}

func TestExtract_UnsupportedExtension(t *testing.T) {
	_, err := Extract("archive.zip", strings.NewReader("binary"))
	if err == nil {
		t.Fatal("expected an error for unsupported extension")
	}
}

func TestExtract_MarkdownAndCSVTreatedAsPlainText(t *testing.T) {
	for _, name := range []string{"notes.md", "data.csv", "log.json"} {
		text, err := Extract(name, strings.NewReader("content"))
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", name, err)
		}
		if text != "content" {
			t.Fatalf("%s: unexpected text: %q", name, text)
		}
	}
}
